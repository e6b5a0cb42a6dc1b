// ABOUTME: Post-render pass replacing placeholder tokens in HTML text with provider embed markup.
// ABOUTME: Tokens in attributes or code are defused to plain text; unknown ones in text stay literal.

package embed

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

const iframeSandbox = "allow-scripts allow-same-origin allow-popups allow-presentation"

const iframeAllow = "autoplay; encrypted-media; fullscreen; picture-in-picture"

// Expander turns tokens in rendered HTML into embed elements.
type Expander struct {
	width, height int
}

// NewExpander returns an expander producing 640x360 players.
func NewExpander() *Expander {
	return &Expander{width: 640, height: 360}
}

// verbatimElements show their text as written, or never show it, so a token
// inside one is not a player.
var verbatimElements = map[string]bool{
	"code":     true,
	"pre":      true,
	"script":   true,
	"style":    true,
	"textarea": true,
	"title":    true,
}

// Expand replaces every recognised token in the document's text. Tokens with
// an unknown provider or an identifier of the wrong shape are left untouched.
// Tokens inside tags (attribute values) or inside code are defused, since
// player markup there would break the element or show as live content.
func (e *Expander) Expand(doc string) string {
	if !strings.Contains(doc, "[[") {
		return doc
	}

	z := html.NewTokenizer(strings.NewReader(doc))
	var b strings.Builder
	b.Grow(len(doc))
	verbatim := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// Reading from a string, so the only error is io.EOF
			return b.String()
		}
		raw := string(z.Raw())

		switch tt {
		case html.TextToken:
			if verbatim == 0 {
				b.WriteString(e.expandText(raw))
				continue
			}
		case html.StartTagToken:
			if name, _ := z.TagName(); verbatimElements[string(name)] {
				verbatim++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); verbatimElements[string(name)] && verbatim > 0 {
				verbatim--
			}
		}

		defused, _ := Defuse(raw)
		b.WriteString(defused)
	}
}

// expandText replaces the tokens in one run of HTML text.
func (e *Expander) expandText(text string) string {
	return markerPattern.ReplaceAllStringFunc(text, func(match string) string {
		tok, ok := ParseToken(match)
		if !ok {
			return match
		}
		markup, ok := e.Markup(tok)
		if !ok {
			return match
		}
		return markup
	})
}

// Markup returns the embed element for a single token.
func (e *Expander) Markup(tok Token) (string, bool) {
	src, ok := EmbedURL(tok)
	if !ok {
		return "", false
	}
	src = html.EscapeString(src)

	if tok.Provider == GenericVideo {
		return fmt.Sprintf(`<video class="embed-video embed-file" src="%s" controls preload="metadata"></video>`, src), true
	}

	name := strings.ToLower(string(tok.Provider))
	return fmt.Sprintf(`<iframe class="embed-video embed-%s" src="%s" title="%s video" width="%d" height="%d" frameborder="0" loading="lazy" sandbox="%s" allow="%s" allowfullscreen></iframe>`,
		name, src, name, e.width, e.height, iframeSandbox, iframeAllow), true
}

// markerOpenPattern matches the opening of a marker whose body is not a
// valid identifier, such as one containing spaces or nested brackets.
var markerOpenPattern = regexp.MustCompile(`\[\[([A-Za-z0-9]+):`)

// Defuse rewrites any marker still present into single-bracket text so no
// placeholder syntax reaches the reader. It returns the markers it found.
func Defuse(doc string) (string, []string) {
	var found []string
	out := markerPattern.ReplaceAllStringFunc(doc, func(match string) string {
		found = append(found, match)
		return "[" + match[2:len(match)-2] + "]"
	})
	out = markerOpenPattern.ReplaceAllStringFunc(out, func(match string) string {
		found = append(found, match)
		return match[1:]
	})
	return out, found
}
