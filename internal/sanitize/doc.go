// Package sanitize cleans rendered HTML before it is displayed.
//
// # Embedded Players
//
// Every iframe, frame, video, object and embed element is checked before the
// allowlist runs. Iframes and videos are kept only when their src matches one
// of the configured trusted patterns; frames, objects and embeds are always
// removed. A removed element takes its content with it.
//
// # Links
//
// Links to hosts outside Config.InternalHosts get rel="nofollow noopener",
// whether the renderer produced them or the author wrote raw HTML. Links to
// the site itself, and relative links, stay followable.
//
// # Allowlist
//
// The remaining document goes through bluemonday's UGC policy, extended with
// the attributes embed markup needs. Kept iframes always carry a sandbox
// attribute limited to scripts, same-origin, popups and presentation.
//
// Sanitize is idempotent: running it on its own output is a no-op.
package sanitize
