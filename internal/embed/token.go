// ABOUTME: Embed placeholder tokens and the providers they can reference.
// ABOUTME: Tokens are written as [[PROVIDER:id]] and never survive into final output.

package embed

import (
	"encoding/base64"
	"regexp"
	"strings"
)

// Provider identifies the media service an embed token points at.
type Provider string

// Supported providers.
const (
	ThreeSpeak   Provider = "THREESPEAK"
	YouTube      Provider = "YOUTUBE"
	Vimeo        Provider = "VIMEO"
	Odysee       Provider = "ODYSEE"
	Instagram    Provider = "INSTAGRAM"
	GenericVideo Provider = "VIDEO"
)

// Providers lists every provider the expander knows how to render.
var Providers = []Provider{ThreeSpeak, YouTube, Vimeo, Odysee, Instagram, GenericVideo}

// Token is a placeholder for an embed, carried through markdown rendering.
type Token struct {
	Provider Provider
	ID       string
}

// String returns the literal marker form, [[PROVIDER:id]].
func (t Token) String() string {
	return "[[" + string(t.Provider) + ":" + t.ID + "]]"
}

// Markdown returns the marker with underscores escaped so the markdown
// renderer emits the identifier verbatim instead of reading emphasis.
func (t Token) Markdown() string {
	return "[[" + string(t.Provider) + ":" + strings.ReplaceAll(t.ID, "_", `\_`) + "]]"
}

// Valid reports whether the token names a known provider and its identifier
// has that provider's shape.
func (t Token) Valid() bool {
	pattern, ok := idPatterns[t.Provider]
	if !ok || isArtifact(t.ID) || !pattern.MatchString(t.ID) {
		return false
	}
	if t.Provider == GenericVideo {
		_, ok := DecodeVideoID(t.ID)
		return ok
	}
	return true
}

// markerPattern matches any marker, including ones with unknown providers and
// markdown escapes still present in the identifier.
var markerPattern = regexp.MustCompile(`\[\[([A-Za-z0-9]+):([^\[\]\s<>"']+)\]\]`)

// ParseToken parses a single marker. Unknown providers parse successfully
// so callers can tell tokenization bugs apart from plain text.
func ParseToken(s string) (Token, bool) {
	m := markerPattern.FindStringSubmatch(s)
	if m == nil || m[0] != s {
		return Token{}, false
	}
	return Token{
		Provider: Provider(strings.ToUpper(m[1])),
		ID:       strings.ReplaceAll(m[2], `\`, ""),
	}, true
}

var idPatterns = map[Provider]*regexp.Regexp{
	YouTube:      regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`),
	ThreeSpeak:   regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,15}/[A-Za-z0-9_-]{1,255}$`),
	Vimeo:        regexp.MustCompile(`^[0-9]{5,12}$`),
	Odysee:       regexp.MustCompile(`^@?[A-Za-z0-9_.-]+(?::[0-9a-f]+)?(?:/[A-Za-z0-9_.-]+(?::[0-9a-f]+)?)?$`),
	Instagram:    regexp.MustCompile(`^[A-Za-z0-9_-]{5,40}$`),
	GenericVideo: regexp.MustCompile(`^[A-Za-z0-9_-]+$`),
}

// isArtifact catches identifiers produced by broken upstream serialization.
func isArtifact(id string) bool {
	lower := strings.ToLower(id)
	switch lower {
	case "", "undefined", "null", "nan", "object", "none":
		return true
	}
	return strings.Contains(lower, "[object") || strings.Contains(lower, "object%20object")
}

// EncodeVideoID turns a direct video URL into an identifier that contains no
// URL syntax, so later passes and the markdown renderer leave it alone.
func EncodeVideoID(rawURL string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(rawURL))
}

// DecodeVideoID reverses EncodeVideoID and checks the result is still a
// direct https video URL.
func DecodeVideoID(id string) (string, bool) {
	b, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return "", false
	}
	u := string(b)
	if !directVideoPattern.MatchString(u) {
		return "", false
	}
	return u, true
}
