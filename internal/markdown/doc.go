// Package markdown converts post markdown to HTML with goldmark.
//
// The renderer handles structure only. Raw HTML passes through untouched
// because the sanitize package owns the allowlist; running goldmark's own
// escaping as well would apply two different policies to the same document.
//
// Links are post-processed on the AST: relative destinations resolve against
// the configured base URL, ipfs:// destinations go through the gateway, and
// links leaving the site get rel="nofollow noopener". Hashtags in plain text
// link to the tag route.
package markdown
