// Package mention turns @handle references into profile links, but only for
// handles an identity registry confirms exist.
//
// Every answer is cached, including "does not exist" and failed lookups,
// which are treated as "does not exist". Handles repeated in a document are
// looked up once, distinct handles are looked up in parallel, and the text is
// rewritten only after the full set of answers is known.
//
// Handles inside code spans and code blocks are left exactly as written.
package mention
