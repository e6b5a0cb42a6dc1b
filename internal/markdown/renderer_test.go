// ABOUTME: Tests for the goldmark-backed markdown renderer.
// ABOUTME: Covers link resolution, nofollow marking, hashtags, line breaks and token passthrough.

package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(DefaultOptions())
	require.NoError(t, err)
	return r
}

func TestRender_Structure(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render("# Title\n\n- one\n- two\n\n`code`")
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>Title</h1>")
	assert.Contains(t, out, "<li>one</li>")
	assert.Contains(t, out, "<code>code</code>")
}

func TestRender_TokensPassThrough(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render("watch [[YOUTUBE:dQw4w9WgXcQ]]")
	require.NoError(t, err)
	assert.Equal(t, "<p>watch [[YOUTUBE:dQw4w9WgXcQ]]</p>\n", out)

	// Escaped underscores come out as plain underscores, not emphasis
	out, err = r.Render(`[[YOUTUBE:ab\_cd\_ef\_gh]]`)
	require.NoError(t, err)
	assert.Equal(t, "<p>[[YOUTUBE:ab_cd_ef_gh]]</p>\n", out)
}

func TestRender_RelativeLinksUseBaseURL(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render("[profile](/@alice)")
	require.NoError(t, err)
	assert.Contains(t, out, `href="https://hive.blog/@alice"`)
	assert.NotContains(t, out, "nofollow", "internal links stay followable")
}

func TestRender_ExternalLinksNoFollow(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render("[elsewhere](https://example.com/page)")
	require.NoError(t, err)
	assert.Equal(t, `<p><a href="https://example.com/page" rel="nofollow noopener">elsewhere</a></p>`+"\n", out)
}

func TestRender_IPFSImages(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render("![pic](ipfs://QmHash/image.png)")
	require.NoError(t, err)
	assert.Contains(t, out, `src="https://ipfs.io/ipfs/QmHash/image.png"`)
}

func TestRender_HardBreaks(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render("line one\nline two")
	require.NoError(t, err)
	assert.Contains(t, out, "<br>")

	opts := DefaultOptions()
	opts.Breaks = false
	plain, err := New(opts)
	require.NoError(t, err)
	out, err = plain.Render("line one\nline two")
	require.NoError(t, err)
	assert.NotContains(t, out, "<br>")
}

func TestRender_Hashtags(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render("posting in #Hive today")
	require.NoError(t, err)
	assert.Equal(t, `<p>posting in <a href="https://hive.blog/trending/hive">#Hive</a> today</p>`+"\n", out)

	// Code spans and link text are left alone
	out, err = r.Render("`#notatag` and [#nope](https://example.com)")
	require.NoError(t, err)
	assert.NotContains(t, out, "/trending/")
}

func TestRender_CustomRoutes(t *testing.T) {
	opts := DefaultOptions()
	opts.BaseURL = "https://peakd.com/"
	opts.Routes.Hashtag = func(tag string) string { return "/c/" + tag }
	r, err := New(opts)
	require.NoError(t, err)

	out, err := r.Render("#travel")
	require.NoError(t, err)
	assert.Contains(t, out, `href="https://peakd.com/c/travel"`)
	assert.NotNil(t, r.Routes().User)
}

func TestRender_RawHTMLIsNotSanitizedHere(t *testing.T) {
	r := newTestRenderer(t)

	// Sanitization is the sanitizer's job; the renderer must not double process
	out, err := r.Render("<b>bold</b>")
	require.NoError(t, err)
	assert.Contains(t, out, "<b>bold</b>")
}

func TestNew_InvalidBaseURL(t *testing.T) {
	opts := DefaultOptions()
	opts.BaseURL = "relative/path"
	_, err := New(opts)
	assert.Error(t, err)
}
