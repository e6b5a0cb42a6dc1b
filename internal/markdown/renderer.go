// ABOUTME: Structural markdown to HTML conversion using goldmark.
// ABOUTME: Resolves links against the site base URL and leaves sanitization to the sanitize package.

package markdown

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// Routes builds this application's URLs for users and hashtags.
type Routes struct {
	User    func(handle string) string
	Hashtag func(tag string) string
}

// DefaultRoutes returns the Hive-style profile and tag routes.
func DefaultRoutes() Routes {
	return Routes{
		User:    func(h string) string { return "/@" + h },
		Hashtag: func(tag string) string { return "/trending/" + tag },
	}
}

// Options configures the renderer.
type Options struct {
	// BaseURL resolves relative links and identifies internal links.
	BaseURL string
	// IPFSGateway replaces the ipfs:// scheme in links and images.
	IPFSGateway string
	// Breaks renders single newlines as <br>.
	Breaks bool
	Routes Routes
}

// DefaultOptions returns the production renderer settings.
func DefaultOptions() Options {
	return Options{
		BaseURL:     "https://hive.blog/",
		IPFSGateway: "https://ipfs.io/ipfs/",
		Breaks:      true,
		Routes:      DefaultRoutes(),
	}
}

// Renderer converts markdown to unsanitized HTML.
type Renderer struct {
	md     goldmark.Markdown
	routes Routes
}

// New builds a renderer. Raw HTML in the source is passed through; callers
// must sanitize the output.
func New(opts Options) (*Renderer, error) {
	routes := opts.Routes
	defaults := DefaultRoutes()
	if routes.User == nil {
		routes.User = defaults.User
	}
	if routes.Hashtag == nil {
		routes.Hashtag = defaults.Hashtag
	}

	res, err := newResolver(opts.BaseURL, opts.IPFSGateway)
	if err != nil {
		return nil, err
	}

	rendererOpts := []goldmark.Option{
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithASTTransformers(
				util.Prioritized(&hashtagTransformer{resolver: res, route: routes.Hashtag}, 200),
				util.Prioritized(&linkTransformer{resolver: res}, 100),
			),
		),
	}
	htmlOpts := []renderer.Option{html.WithUnsafe()}
	if opts.Breaks {
		htmlOpts = append(htmlOpts, html.WithHardWraps())
	}
	rendererOpts = append(rendererOpts, goldmark.WithRendererOptions(htmlOpts...))

	return &Renderer{
		md:     goldmark.New(rendererOpts...),
		routes: routes,
	}, nil
}

// Routes returns the routes the renderer links users and tags to.
func (r *Renderer) Routes() Routes {
	return r.routes
}

// Render converts src to HTML. Embed tokens pass through as text.
func (r *Renderer) Render(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return buf.String(), nil
}

// resolver rewrites link destinations relative to the site.
type resolver struct {
	base        *url.URL
	ipfsGateway string
}

func newResolver(baseURL, ipfsGateway string) (*resolver, error) {
	r := &resolver{ipfsGateway: ipfsGateway}
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing base url %q: %w", baseURL, err)
		}
		if !u.IsAbs() || u.Host == "" {
			return nil, fmt.Errorf("base url %q must be absolute", baseURL)
		}
		r.base = u
	}
	if r.ipfsGateway != "" && !strings.HasSuffix(r.ipfsGateway, "/") {
		r.ipfsGateway += "/"
	}
	return r, nil
}

// resolve maps ipfs:// to the gateway and relative paths onto the base URL.
// Absolute URLs with any other scheme are returned unchanged.
func (r *resolver) resolve(dest string) string {
	if dest == "" || strings.HasPrefix(dest, "#") {
		return dest
	}
	if r.ipfsGateway != "" && len(dest) > len("ipfs://") && strings.EqualFold(dest[:len("ipfs://")], "ipfs://") {
		return r.ipfsGateway + dest[len("ipfs://"):]
	}
	u, err := url.Parse(dest)
	if err != nil || u.IsAbs() || strings.HasPrefix(dest, "//") || r.base == nil {
		return dest
	}
	return r.base.ResolveReference(u).String()
}

// external reports whether dest leaves the site.
func (r *resolver) external(dest string) bool {
	u, err := url.Parse(dest)
	if err != nil || !u.IsAbs() {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return r.base == nil || !strings.EqualFold(u.Host, r.base.Host)
}
