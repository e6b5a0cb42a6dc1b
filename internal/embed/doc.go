// Package embed detects embeddable media in untrusted post text and carries
// it through markdown rendering as opaque placeholder tokens.
//
// # Tokens
//
// A token is written as [[PROVIDER:id]]. The bracket syntax is disjoint from
// markdown link syntax and from HTML, so the renderer passes it through as
// text. Identifiers are validated per provider; anything that does not look
// like a real id is left as the original text.
//
// # Passes
//
// Tokenizer applies, in order:
//
//  1. linked-thumbnail: [![alt](thumb)](video-url)
//  2. hosted-image-link: [text](https://media-host/x.gif) to inline image
//  3. iframe: raw <iframe src="player-url"> to token
//  4. provider-link: bare YouTube, 3Speak, Vimeo, Odysee, Instagram and
//     direct video file links
//  5. bare-image: image URL alone on a line to inline image
//
// Later passes never match text produced by earlier ones, so Tokenize is
// idempotent.
//
// # Expansion
//
// Expander runs on rendered HTML and swaps each token in text for a
// sandboxed iframe (or a <video> element for direct files). Tokens inside
// attribute values or code are defused to single-bracket text instead. The
// player URLs it emits are exactly those matched by DefaultTrustedSources.
package embed
