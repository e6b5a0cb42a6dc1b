// ABOUTME: Ordered regex passes that replace embeddable media references with placeholder tokens.
// ABOUTME: Each pass is a pure string function; running the full list twice changes nothing.

package embed

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// DefaultMediaHosts are the image hosts whose markdown links are shown inline.
var DefaultMediaHosts = []string{
	"files.peakd.com",
	"images.hive.blog",
	"images.ecency.com",
	"files.ecency.com",
	"ipfs.io",
	"i.imgur.com",
	"media.giphy.com",
}

// Pass is one named rewrite step of the tokenizer.
type Pass struct {
	Name  string
	Apply func(string) string
}

// Tokenizer rewrites raw post text so embeds survive markdown rendering.
type Tokenizer struct {
	passes []Pass
}

// TokenizerOption configures a Tokenizer.
type TokenizerOption func(*tokenizerConfig)

type tokenizerConfig struct {
	mediaHosts []string
}

// WithMediaHosts replaces the set of hosts whose image links are inlined.
func WithMediaHosts(hosts ...string) TokenizerOption {
	return func(c *tokenizerConfig) {
		c.mediaHosts = hosts
	}
}

var (
	linkedThumbnailPattern = regexp.MustCompile(`(?i)\[!\[[^\[\]]*\]\([^()\s]*\)\]\((https?://[^()\s]+)\)`)
	// iframePattern spans a whole iframe element; quoted attribute values may contain '>'
	iframePattern          = regexp.MustCompile(`(?is)<iframe\b(?:[^>"']|"[^"]*"|'[^']*')*>(?:[^<]*</iframe\s*>)?`)
	bareURLPattern         = regexp.MustCompile(`(?i)(^|[^\w("'=/\[\]<>.:@])(https?://[^\s<>"'()\[\]]+)`)
	bareImagePattern       = regexp.MustCompile(`(?im)^([ \t]*)(https?://[^\s<>"'()\[\]]+\.(?:png|jpe?g|gif|webp)(?:\?[^\s<>"'()\[\]]*)?)([ \t]*)$`)
	gifPattern             = regexp.MustCompile(`(?i)\.gif(?:\?.*)?$`)
)

// NewTokenizer builds the ordered pass list.
func NewTokenizer(opts ...TokenizerOption) *Tokenizer {
	cfg := tokenizerConfig{mediaHosts: DefaultMediaHosts}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Tokenizer{
		passes: []Pass{
			{Name: "linked-thumbnail", Apply: replaceLinkedThumbnails},
			{Name: "hosted-image-link", Apply: hostedImageLinks(cfg.mediaHosts)},
			{Name: "iframe", Apply: replaceIframes},
			{Name: "provider-link", Apply: replaceProviderLinks},
			{Name: "bare-image", Apply: replaceBareImages},
		},
	}
}

// Passes returns the passes in application order.
func (t *Tokenizer) Passes() []Pass {
	out := make([]Pass, len(t.passes))
	copy(out, t.passes)
	return out
}

// Tokenize applies every pass in order.
func (t *Tokenizer) Tokenize(raw string) string {
	text := raw
	for _, p := range t.passes {
		text = p.Apply(text)
	}
	return text
}

// replaceLinkedThumbnails turns [![alt](thumb)](video) into a token for the video.
func replaceLinkedThumbnails(text string) string {
	return linkedThumbnailPattern.ReplaceAllStringFunc(text, func(match string) string {
		m := linkedThumbnailPattern.FindStringSubmatch(match)
		tok, ok := ClassifyLink(m[1])
		if !ok {
			return match
		}
		return tok.Markdown()
	})
}

// hostedImageLinks returns a pass turning [text](https://host/x.png) into inline image markup.
// Links that are part of an image (![...]) or follow a closing bracket are skipped.
func hostedImageLinks(hosts []string) func(string) string {
	if len(hosts) == 0 {
		return func(s string) string { return s }
	}
	quoted := make([]string, len(hosts))
	for i, h := range hosts {
		quoted[i] = regexp.QuoteMeta(h)
	}
	pattern := regexp.MustCompile(`(?i)\[([^\[\]]*)\]\((https?://(?:` + strings.Join(quoted, "|") +
		`)/[^()\s]+?\.(?:png|jpe?g|gif|webp))\)`)

	return func(text string) string {
		matches := pattern.FindAllStringSubmatchIndex(text, -1)
		if len(matches) == 0 {
			return text
		}

		var b strings.Builder
		b.Grow(len(text))
		last := 0
		for _, m := range matches {
			if start := m[0]; start > 0 && (text[start-1] == '!' || text[start-1] == ']') {
				continue
			}
			b.WriteString(text[last:m[0]])
			b.WriteString(imageMarkup(text[m[4]:m[5]], text[m[2]:m[3]]))
			last = m[1]
		}
		b.WriteString(text[last:])
		return b.String()
	}
}

// replaceIframes destroys raw iframes that point at a known player and leaves a token.
// Unrecognised iframes are left for the sanitizer to remove.
func replaceIframes(text string) string {
	return iframePattern.ReplaceAllStringFunc(text, func(match string) string {
		tok, ok := ClassifyPlayer(iframeSrc(match))
		if !ok {
			return match
		}
		return tok.Markdown()
	})
}

// iframeSrc returns the unescaped src attribute of the iframe start tag
// that element begins with.
func iframeSrc(element string) string {
	z := html.NewTokenizer(strings.NewReader(element))
	if tt := z.Next(); tt != html.StartTagToken && tt != html.SelfClosingTagToken {
		return ""
	}
	for _, a := range z.Token().Attr {
		if a.Key == "src" {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// replaceProviderLinks tokenizes bare provider URLs. URLs inside markdown link
// targets, autolinks or HTML attributes are skipped by the prefix class.
func replaceProviderLinks(text string) string {
	return bareURLPattern.ReplaceAllStringFunc(text, func(match string) string {
		m := bareURLPattern.FindStringSubmatch(match)
		prefix, rawURL := m[1], m[2]

		trimmed := strings.TrimRight(rawURL, ".,!?;:")
		suffix := rawURL[len(trimmed):]

		tok, ok := ClassifyLink(trimmed)
		if !ok {
			return match
		}
		return prefix + tok.Markdown() + suffix
	})
}

// replaceBareImages inlines image URLs that stand alone on their line.
func replaceBareImages(text string) string {
	return bareImagePattern.ReplaceAllStringFunc(text, func(match string) string {
		m := bareImagePattern.FindStringSubmatch(match)
		return m[1] + imageMarkup(m[2], "") + m[3]
	})
}

// imageMarkup renders a centered inline image. GIFs get their own class.
func imageMarkup(src, alt string) string {
	class := "embed-img"
	if gifPattern.MatchString(src) {
		class = "embed-gif"
	}
	return fmt.Sprintf(`<span class="embed-image"><img src="%s" alt="%s" class="%s" loading="lazy"></span>`,
		html.EscapeString(src), html.EscapeString(alt), class)
}
