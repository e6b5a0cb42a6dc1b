// Package pipeline turns untrusted post markdown into HTML that is safe to
// display.
//
// # Stages
//
//  1. Output cache lookup, keyed by a hash of the raw text.
//  2. Embed tokenization.
//  3. Intermediate cache lookup, keyed by a hash of the tokenized text.
//  4. Mention resolution against the identity registry.
//  5. Markdown rendering.
//  6. Token expansion into player markup.
//  7. Sanitization.
//  8. Output cache store.
//
// A stage that fails or panics produces FallbackHTML, which is cached under
// the raw key like a successful result. Cancellation is the one error Render
// returns; a cancelled render caches nothing for its document.
//
// # Caches
//
// The pipeline owns its three caches. Config.DevMode clears them at the start
// of every Render call so rule changes show up immediately.
package pipeline
