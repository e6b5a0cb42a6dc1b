// ABOUTME: Tests for token expansion into embed markup and residual marker defusing.
// ABOUTME: Ensures expanded players always match the default trusted sources.

package embed

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var iframeSrc = regexp.MustCompile(`src="([^"]+)"`)

func TestExpand_YouTube(t *testing.T) {
	e := NewExpander()

	out := e.Expand("<p>check [[YOUTUBE:dQw4w9WgXcQ]]</p>")
	assert.Contains(t, out, `<iframe class="embed-video embed-youtube" src="https://www.youtube.com/embed/dQw4w9WgXcQ"`)
	assert.Contains(t, out, `sandbox="allow-scripts allow-same-origin allow-popups allow-presentation"`)
	assert.Contains(t, out, `loading="lazy"`)
	assert.NotContains(t, out, "[[")
}

func TestExpand_StripsMarkdownEscapes(t *testing.T) {
	e := NewExpander()

	out := e.Expand(`[[YOUTUBE:ab\_cd\_ef\_gh]]`)
	assert.Contains(t, out, `src="https://www.youtube.com/embed/ab_cd_ef_gh"`)
}

func TestExpand_GenericVideo(t *testing.T) {
	e := NewExpander()

	tok := Token{Provider: GenericVideo, ID: EncodeVideoID("https://cdn.example.com/a.mp4")}
	out := e.Expand(tok.String())
	assert.Equal(t, `<video class="embed-video embed-file" src="https://cdn.example.com/a.mp4" controls preload="metadata"></video>`, out)
}

func TestExpand_UnknownProviderLeftLiteral(t *testing.T) {
	e := NewExpander()

	in := "<p>[[DAILYMOTION:x7abc]]</p>"
	assert.Equal(t, in, e.Expand(in))

	// Known provider but malformed id
	bad := "<p>[[YOUTUBE:short]]</p>"
	assert.Equal(t, bad, e.Expand(bad))
}

func TestExpand_OnlyInText(t *testing.T) {
	e := NewExpander()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "image alt",
			in:   `<p><img src="https://i.imgur.com/a.png" alt="[[YOUTUBE:dQw4w9WgXcQ]]"></p>`,
			want: `<p><img src="https://i.imgur.com/a.png" alt="[YOUTUBE:dQw4w9WgXcQ]"></p>`,
		},
		{
			name: "link title",
			in:   `<p><a href="https://example.com" title="[[YOUTUBE:dQw4w9WgXcQ]]" rel="nofollow noopener">x</a></p>`,
			want: `<p><a href="https://example.com" title="[YOUTUBE:dQw4w9WgXcQ]" rel="nofollow noopener">x</a></p>`,
		},
		{
			name: "inline code",
			in:   `<p>use <code>[[YOUTUBE:dQw4w9WgXcQ]]</code> here</p>`,
			want: `<p>use <code>[YOUTUBE:dQw4w9WgXcQ]</code> here</p>`,
		},
		{
			name: "code block",
			in:   "<pre><code>[[VIMEO:123456789]]\n</code></pre>",
			want: "<pre><code>[VIMEO:123456789]\n</code></pre>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Expand(tt.in))
		})
	}

	// Text after the code element is expanded again
	out := e.Expand(`<p><code>[[YOUTUBE:dQw4w9WgXcQ]]</code> [[YOUTUBE:dQw4w9WgXcQ]]</p>`)
	assert.Equal(t, 1, strings.Count(out, "<iframe"))
	assert.Contains(t, out, "<code>[YOUTUBE:dQw4w9WgXcQ]</code>")
}

func TestExpand_MatchesTrustedSources(t *testing.T) {
	e := NewExpander()

	tokens := []Token{
		{Provider: YouTube, ID: "dQw4w9WgXcQ"},
		{Provider: ThreeSpeak, ID: "alice/xyzabc12"},
		{Provider: Vimeo, ID: "123456789"},
		{Provider: Odysee, ID: "@chan:3/my-video:a"},
		{Provider: Instagram, ID: "CxYz123AbC"},
	}

	var trusted []*regexp.Regexp
	for _, p := range DefaultTrustedSources {
		trusted = append(trusted, regexp.MustCompile(p))
	}

	for _, tok := range tokens {
		t.Run(string(tok.Provider), func(t *testing.T) {
			out, ok := e.Markup(tok)
			require.True(t, ok)

			m := iframeSrc.FindStringSubmatch(out)
			require.NotNil(t, m)

			matched := false
			for _, re := range trusted {
				if re.MatchString(m[1]) {
					matched = true
					break
				}
			}
			assert.True(t, matched, "expanded src %q must be trusted", m[1])
		})
	}
}

func TestDefuse(t *testing.T) {
	out, found := Defuse("<p>[[DAILYMOTION:x7abc]] and [[YOUTUBE:short]]</p>")
	assert.Equal(t, "<p>[DAILYMOTION:x7abc] and [YOUTUBE:short]</p>", out)
	assert.Equal(t, []string{"[[DAILYMOTION:x7abc]]", "[[YOUTUBE:short]]"}, found)
	assert.False(t, strings.Contains(out, "[["))

	out, found = Defuse("<p>[[INSTAGRAM:[object Object]]]</p>")
	assert.Equal(t, "<p>[INSTAGRAM:[object Object]]]</p>", out)
	assert.Equal(t, []string{"[[INSTAGRAM:"}, found)

	clean, found := Defuse("<p>nothing</p>")
	assert.Equal(t, "<p>nothing</p>", clean)
	assert.Empty(t, found)
}

func TestParseToken(t *testing.T) {
	tok, ok := ParseToken("[[youtube:dQw4w9WgXcQ]]")
	require.True(t, ok)
	assert.Equal(t, YouTube, tok.Provider)
	assert.True(t, tok.Valid())

	_, ok = ParseToken("x [[YOUTUBE:dQw4w9WgXcQ]]")
	assert.False(t, ok, "surrounding text is not a token")

	tok, ok = ParseToken("[[NOPE:abc]]")
	require.True(t, ok)
	assert.False(t, tok.Valid())
}

func TestToken_ValidRejectsArtifacts(t *testing.T) {
	for _, id := range []string{"undefined", "null", "[object Object]", "object%20Object"} {
		assert.False(t, Token{Provider: Instagram, ID: id}.Valid(), id)
	}
}
