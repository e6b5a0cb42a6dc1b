// ABOUTME: Tests for the HTML sanitizer and its embed origin hook.
// ABOUTME: Covers script removal, untrusted iframe removal, trusted players and idempotence.

package sanitize

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/hive-render/internal/embed"
)

func newTestSanitizer(t *testing.T) *Sanitizer {
	t.Helper()
	s, err := New(Config{
		IframeSources: embed.DefaultTrustedSources,
		VideoSources:  embed.DefaultTrustedVideoSources,
	})
	require.NoError(t, err)
	return s
}

func mustSanitize(t *testing.T, s *Sanitizer, in string) string {
	t.Helper()
	out, err := s.Sanitize(in)
	require.NoError(t, err)
	return out
}

const trustedPlayer = `<iframe class="embed-video embed-youtube" src="https://www.youtube.com/embed/dQw4w9WgXcQ" title="youtube video" width="640" height="360" frameborder="0" loading="lazy" sandbox="allow-scripts allow-same-origin allow-popups allow-presentation" allow="autoplay; encrypted-media; fullscreen; picture-in-picture" allowfullscreen></iframe>`

func TestSanitize_RemovesScript(t *testing.T) {
	s := newTestSanitizer(t)

	out := mustSanitize(t, s, "<p>hi</p><script>alert(1)</script>")
	assert.Equal(t, "<p>hi</p>", out)
}

func TestSanitize_RemovesEventHandlersAndJavascriptURLs(t *testing.T) {
	s := newTestSanitizer(t)

	out := mustSanitize(t, s, `<p onclick="steal()">x</p><a href="javascript:alert(1)">y</a><img src="x.png" onerror="alert(1)">`)
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "onerror")
	assert.NotContains(t, out, "javascript:")
}

func TestSanitize_RemovesObjectAndEmbed(t *testing.T) {
	s := newTestSanitizer(t)

	out := mustSanitize(t, s, `<object data="evil.swf"><param name="x" value="y">fallback</object><embed src="evil.swf"><p>ok</p>`)
	assert.NotContains(t, out, "object")
	assert.NotContains(t, out, "embed")
	assert.NotContains(t, out, "fallback")
	assert.Contains(t, out, "<p>ok</p>")
}

func TestSanitize_RemovesUntrustedIframe(t *testing.T) {
	s := newTestSanitizer(t)

	tests := []string{
		`<iframe src="https://evil.example/embed/x"></iframe>`,
		`<IFRAME SRC="https://evil.example/"></IFRAME>`,
		`<iframe src="https://www.youtube.com.evil.example/embed/dQw4w9WgXcQ"></iframe>`,
		`<iframe srcdoc="<script>alert(1)</script>"></iframe>`,
		`<iframe src="https://evil.example/">nested <iframe src="https://www.youtube.com/embed/dQw4w9WgXcQ"></iframe></iframe>`,
		`<iframe src="https://evil.example/" />`,
		`<frame src="https://www.youtube.com/embed/dQw4w9WgXcQ">`,
	}

	for _, in := range tests {
		out := mustSanitize(t, s, "<p>before</p>"+in+"<p>after</p>")
		assert.NotContains(t, strings.ToLower(out), "iframe", in)
		assert.NotContains(t, strings.ToLower(out), "frame", in)
		assert.NotContains(t, out, "evil", in)
		assert.Contains(t, out, "<p>after</p>", "content after a removed element must survive: %s", in)
	}
}

func TestSanitize_KeepsTrustedIframe(t *testing.T) {
	s := newTestSanitizer(t)

	out := mustSanitize(t, s, "<p>"+trustedPlayer+"</p>")
	assert.Contains(t, out, `src="https://www.youtube.com/embed/dQw4w9WgXcQ"`)
	assert.Contains(t, out, `sandbox="allow-scripts allow-same-origin allow-popups allow-presentation"`)
	assert.Contains(t, out, `loading="lazy"`)
	assert.Contains(t, out, "</iframe>")
}

func TestSanitize_IframeSandboxIsEnforced(t *testing.T) {
	s := newTestSanitizer(t)

	out := mustSanitize(t, s, `<iframe src="https://www.youtube.com/embed/dQw4w9WgXcQ" sandbox="allow-scripts allow-top-navigation"></iframe>`)
	assert.Contains(t, out, `sandbox="allow-scripts"`)

	out = mustSanitize(t, s, `<iframe src="https://www.youtube.com/embed/dQw4w9WgXcQ"></iframe>`)
	assert.Contains(t, out, `sandbox=""`)
}

func TestSanitize_TrustedPatternIsAnchored(t *testing.T) {
	s := newTestSanitizer(t)

	// Trusted prefix followed by extra path must not pass
	out := mustSanitize(t, s, `<iframe src="https://www.youtube.com/embed/dQw4w9WgXcQ/../../evil"></iframe>`)
	assert.NotContains(t, out, "iframe")
}

func TestSanitize_Video(t *testing.T) {
	s := newTestSanitizer(t)

	out := mustSanitize(t, s, `<video class="embed-video embed-file" src="https://cdn.example.com/a.mp4" controls preload="metadata"></video>`)
	assert.Contains(t, out, `<video class="embed-video embed-file" src="https://cdn.example.com/a.mp4"`)

	out = mustSanitize(t, s, `<video src="http://cdn.example.com/a.mp4" controls></video><p>x</p>`)
	assert.NotContains(t, out, "video")
	assert.Contains(t, out, "<p>x</p>")
}

func TestSanitize_KeepsEmbedImageMarkup(t *testing.T) {
	s := newTestSanitizer(t)

	in := `<p><span class="embed-image"><img src="https://files.peakd.com/cat.gif" alt="cat" class="embed-gif" loading="lazy"></span></p>`
	out := mustSanitize(t, s, in)
	assert.Contains(t, out, `class="embed-image"`)
	assert.Contains(t, out, `class="embed-gif"`)
	assert.Contains(t, out, `src="https://files.peakd.com/cat.gif"`)
}

func TestSanitize_ExternalLinksNoFollow(t *testing.T) {
	s := newTestSanitizer(t)

	out := mustSanitize(t, s, `<a href="https://example.com" rel="nofollow noopener">x</a>`)
	assert.Contains(t, out, `rel="nofollow noopener"`)

	out = mustSanitize(t, s, `<a href="https://example.com">x</a>`)
	assert.Contains(t, out, "nofollow")
}

func TestSanitize_InternalLinksStayFollowable(t *testing.T) {
	s, err := New(Config{InternalHosts: []string{"hive.blog"}})
	require.NoError(t, err)

	out := mustSanitize(t, s, `<a href="https://hive.blog/@alice">@alice</a>`)
	assert.Equal(t, `<a href="https://hive.blog/@alice">@alice</a>`, out)

	out = mustSanitize(t, s, `<a href="/trending/go">#go</a>`)
	assert.NotContains(t, out, "rel=")

	// Authored HTML links are marked even though the renderer never saw them
	out = mustSanitize(t, s, `<a href="https://evil.example/x" rel="me">x</a>`)
	assert.Contains(t, out, `rel="me nofollow noopener"`)

	out = mustSanitize(t, s, `<a href="//evil.example/x">x</a>`)
	assert.Contains(t, out, `rel="nofollow noopener"`)
}

func TestSanitize_WithLogger(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s, err := New(Config{}, WithLogger(logger))
	require.NoError(t, err)

	mustSanitize(t, s, `<iframe src="https://evil.example/"></iframe>`)
	assert.Contains(t, buf.String(), "removed untrusted embeds")
}

func TestSanitize_Idempotent(t *testing.T) {
	s := newTestSanitizer(t)

	docs := []string{
		"<p>hello <strong>world</strong> &amp; &lt;friends&gt;</p>",
		"<p>" + trustedPlayer + "</p>",
		`<p><a href="https://hive.blog/@alice"><img src="https://images.hive.blog/u/alice/avatar/small" alt=""> @alice</a></p>`,
		`<p>bad <script>x()</script><iframe src="https://evil.example/"></iframe> "quotes" 'single'</p>`,
		"<ul><li>one</li><li>two<br>three</li></ul><pre><code>a &lt; b</code></pre>",
		`<video class="embed-video embed-file" src="https://cdn.example.com/a.mp4" controls preload="metadata"></video>`,
	}

	for _, doc := range docs {
		once := mustSanitize(t, s, doc)
		twice := mustSanitize(t, s, once)
		assert.Equal(t, once, twice, "sanitize must be a fixed point for %q", doc)
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New(Config{IframeSources: []string{"("}})
	assert.Error(t, err)
}
