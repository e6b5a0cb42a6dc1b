// ABOUTME: Allowlist HTML sanitizer with a structural hook for embedded players.
// ABOUTME: Removes iframes and videos from untrusted origins, then applies a bluemonday policy.

package sanitize

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// Config lists the trusted player origins.
type Config struct {
	// IframeSources are patterns an iframe src must match to be kept.
	IframeSources []string
	// VideoSources are patterns a video src must match to be kept.
	VideoSources []string
	// InternalHosts are the site's own hosts. Links anywhere else get
	// rel="nofollow noopener".
	InternalHosts []string
}

// Sanitizer cleans rendered HTML for display.
type Sanitizer struct {
	policy *bluemonday.Policy
	// checked maps element names to the src patterns they must match.
	// A nil slice means the element is always removed.
	checked  map[string][]*regexp.Regexp
	internal map[string]bool
	logger   *slog.Logger
}

// Option configures a Sanitizer.
type Option func(*Sanitizer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sanitizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// externalRel is required on links leaving the internal hosts.
var externalRel = []string{"nofollow", "noopener"}

// voidElements have no closing tag, so removing one never skips content.
var voidElements = map[string]bool{"frame": true, "embed": true}

var (
	classPattern   = regexp.MustCompile(`^[A-Za-z0-9 _-]+$`)
	relPattern     = regexp.MustCompile(`^[a-z ]+$`)
	sandboxPattern = regexp.MustCompile(`^[a-z -]+$`)
	allowPattern   = regexp.MustCompile(`^[a-z; -]+$`)
	loadingPattern = regexp.MustCompile(`^(lazy|eager)$`)
	preloadPattern = regexp.MustCompile(`^(none|metadata|auto)$`)
)

// New builds a sanitizer. Invalid patterns are reported as errors.
func New(cfg Config, opts ...Option) (*Sanitizer, error) {
	iframes, err := compileAll(cfg.IframeSources)
	if err != nil {
		return nil, fmt.Errorf("compiling iframe sources: %w", err)
	}
	videos, err := compileAll(cfg.VideoSources)
	if err != nil {
		return nil, fmt.Errorf("compiling video sources: %w", err)
	}

	internal := make(map[string]bool, len(cfg.InternalHosts))
	for _, h := range cfg.InternalHosts {
		internal[strings.ToLower(h)] = true
	}

	s := &Sanitizer{
		policy: newPolicy(),
		checked: map[string][]*regexp.Regexp{
			"iframe": iframes,
			"frame":  nil,
			"video":  videos,
			"object": nil,
			"embed":  nil,
		},
		internal: internal,
		logger:   slog.Default().With("component", "sanitize"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// newPolicy extends the UGC policy with the elements and attributes embed
// markup needs. Scripts, objects and event handlers stay disallowed.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	// Link rel is decided by the structural pass, which knows the internal hosts
	p.RequireNoFollowOnLinks(false)

	p.AllowElements("iframe", "video")
	p.AllowAttrs("src").OnElements("iframe", "video")
	p.AllowAttrs("width", "height").Matching(bluemonday.Number).OnElements("iframe", "video")
	p.AllowAttrs("frameborder").Matching(bluemonday.Number).OnElements("iframe")
	p.AllowAttrs("allowfullscreen").OnElements("iframe")
	p.AllowAttrs("sandbox").Matching(sandboxPattern).OnElements("iframe")
	p.RequireSandboxOnIFrame(
		bluemonday.SandboxAllowScripts,
		bluemonday.SandboxAllowSameOrigin,
		bluemonday.SandboxAllowPopups,
		bluemonday.SandboxAllowPresentation,
	)
	p.AllowAttrs("allow").Matching(allowPattern).OnElements("iframe")
	p.AllowAttrs("controls").OnElements("video")
	p.AllowAttrs("preload").Matching(preloadPattern).OnElements("video")
	p.AllowAttrs("loading").Matching(loadingPattern).OnElements("iframe", "img")

	p.AllowAttrs("class").Matching(classPattern).OnElements("span", "div", "img", "iframe", "video", "p")
	p.AllowAttrs("rel").Matching(relPattern).OnElements("a")

	return p
}

// Sanitize removes untrusted embeds and everything outside the allowlist.
// It is idempotent: sanitizing its own output returns the same string.
func (s *Sanitizer) Sanitize(doc string) (string, error) {
	stripped, removed, err := s.stripUntrustedEmbeds(doc)
	if err != nil {
		return "", err
	}
	if removed > 0 {
		s.logger.Debug("removed untrusted embeds", "count", removed)
	}
	return s.policy.Sanitize(stripped), nil
}

// stripUntrustedEmbeds drops every checked element whose src is not trusted,
// including its content. All other bytes are copied verbatim.
func (s *Sanitizer) stripUntrustedEmbeds(doc string) (string, int, error) {
	z := html.NewTokenizer(strings.NewReader(doc))

	var b strings.Builder
	b.Grow(len(doc))

	removed := 0
	skipping := ""
	depth := 0
	// open counts kept start tags per checked element, so stray end tags
	// left behind by a removed element can be dropped
	open := make(map[string]int)

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", removed, fmt.Errorf("tokenizing html: %w", err)
			}
			return b.String(), removed, nil
		}

		// TagName lowercases the buffer in place, so keep the raw bytes first
		raw := append([]byte(nil), z.Raw()...)

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)

			if skipping != "" {
				if tt == html.StartTagToken && tag == skipping {
					depth++
				}
				continue
			}

			if patterns, ok := s.checked[tag]; ok && !trusted(patterns, srcAttr(z, hasAttr)) {
				removed++
				if tt == html.StartTagToken && !voidElements[tag] {
					skipping = tag
					depth = 1
				}
				continue
			}
			if _, ok := s.checked[tag]; ok && tt == html.StartTagToken && !voidElements[tag] {
				open[tag]++
			}
			if tag == "a" && hasAttr {
				raw = s.markExternal(raw)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)

			if skipping != "" {
				if tag == skipping {
					depth--
					if depth == 0 {
						skipping = ""
					}
				}
				continue
			}
			if _, ok := s.checked[tag]; ok {
				if open[tag] == 0 {
					continue
				}
				open[tag]--
			}

		default:
			if skipping != "" {
				continue
			}
		}

		b.Write(raw)
	}
}

// markExternal rewrites an <a> start tag so a link leaving the internal
// hosts carries rel="nofollow noopener". Other tags are returned unchanged.
func (s *Sanitizer) markExternal(raw []byte) []byte {
	z := html.NewTokenizer(bytes.NewReader(raw))
	z.Next()
	tok := z.Token()

	href, rel := "", -1
	for i, a := range tok.Attr {
		switch a.Key {
		case "href":
			href = strings.TrimSpace(a.Val)
		case "rel":
			rel = i
		}
	}
	if !s.external(href) {
		return raw
	}

	if rel < 0 {
		tok.Attr = append(tok.Attr, html.Attribute{Key: "rel"})
		rel = len(tok.Attr) - 1
	}
	values := strings.Fields(strings.ToLower(tok.Attr[rel].Val))
	for _, want := range externalRel {
		if !slices.Contains(values, want) {
			values = append(values, want)
		}
	}
	tok.Attr[rel].Val = strings.Join(values, " ")
	return []byte(tok.String())
}

// external reports whether href points at a host outside the internal set.
// Relative links are internal.
func (s *Sanitizer) external(href string) bool {
	if href == "" {
		return false
	}
	u, err := url.Parse(href)
	if err != nil {
		return true
	}
	if u.Host == "" {
		return false
	}
	return !s.internal[strings.ToLower(u.Hostname())] && !s.internal[strings.ToLower(u.Host)]
}

func srcAttr(z *html.Tokenizer, hasAttr bool) string {
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		if string(key) == "src" {
			return strings.TrimSpace(string(val))
		}
	}
	return ""
}

func trusted(patterns []*regexp.Regexp, src string) bool {
	if src == "" {
		return false
	}
	for _, re := range patterns {
		if re.MatchString(src) {
			return true
		}
	}
	return false
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
