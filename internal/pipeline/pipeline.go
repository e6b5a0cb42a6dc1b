// ABOUTME: Orchestrates the render pipeline from untrusted markdown to sanitized HTML.
// ABOUTME: Owns the output, intermediate and mention caches and the fallback document.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/2389/hive-render/internal/contenthash"
	"github.com/2389/hive-render/internal/embed"
	"github.com/2389/hive-render/internal/lru"
	"github.com/2389/hive-render/internal/markdown"
	"github.com/2389/hive-render/internal/mention"
	"github.com/2389/hive-render/internal/sanitize"
)

// FallbackHTML is returned in place of a document that could not be rendered.
const FallbackHTML = `<p class="render-error">This content could not be displayed.</p>`

// CacheConfig bounds one cache.
type CacheConfig struct {
	Capacity int
	TTL      time.Duration
}

// Config is fixed at construction.
type Config struct {
	Output       CacheConfig
	Intermediate CacheConfig
	Mentions     CacheConfig

	Renderer markdown.Options
	Trusted  sanitize.Config

	// MediaHosts are the image hosts whose links are shown inline.
	MediaHosts []string

	MinHandleLength    int
	MaxHandleLength    int
	MentionConcurrency int

	// AvatarURL builds the avatar shown beside a linked mention.
	// Nil disables avatars.
	AvatarURL func(handle string) string

	// DevMode clears every cache on every Render call. Never enable it in
	// production.
	DevMode bool
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		Output:       CacheConfig{Capacity: 256, TTL: 30 * time.Minute},
		Intermediate: CacheConfig{Capacity: 256, TTL: 30 * time.Minute},
		Mentions:     CacheConfig{Capacity: 4096, TTL: time.Hour},
		Renderer:     markdown.DefaultOptions(),
		Trusted: sanitize.Config{
			IframeSources: embed.DefaultTrustedSources,
			VideoSources:  embed.DefaultTrustedVideoSources,
		},
		MediaHosts:         embed.DefaultMediaHosts,
		MinHandleLength:    mention.DefaultMinLength,
		MaxHandleLength:    mention.DefaultMaxLength,
		MentionConcurrency: mention.DefaultConcurrency,
		AvatarURL:          mention.DefaultAvatarURL,
	}
}

// Stats reports the state of the three caches.
type Stats struct {
	Output       lru.Stats `json:"output"`
	Intermediate lru.Stats `json:"intermediate"`
	Mentions     lru.Stats `json:"mentions"`
}

// Pipeline renders documents. It is safe for concurrent use.
type Pipeline struct {
	output       *lru.Cache[string, string]
	intermediate *lru.Cache[string, string]
	mentionCache *lru.Cache[string, bool]

	tokenizer *embed.Tokenizer
	mentions  *mention.Validator
	renderer  *markdown.Renderer
	expander  *embed.Expander
	sanitizer *sanitize.Sanitizer

	devMode bool
	logger  *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New builds a pipeline that checks mentions against reg.
func New(cfg Config, reg mention.Registry, opts ...Option) (*Pipeline, error) {
	if reg == nil {
		return nil, errors.New("mention registry is required")
	}

	renderer, err := markdown.New(cfg.Renderer)
	if err != nil {
		return nil, fmt.Errorf("creating markdown renderer: %w", err)
	}
	p := &Pipeline{
		output:       lru.New[string, string](cfg.Output.Capacity, cfg.Output.TTL),
		intermediate: lru.New[string, string](cfg.Intermediate.Capacity, cfg.Intermediate.TTL),
		mentionCache: lru.New[string, bool](cfg.Mentions.Capacity, cfg.Mentions.TTL),
		renderer:     renderer,
		expander:     embed.NewExpander(),
		devMode:      cfg.DevMode,
		logger:       slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}

	trusted := cfg.Trusted
	if len(trusted.InternalHosts) == 0 {
		if u, err := url.Parse(cfg.Renderer.BaseURL); err == nil && u.Host != "" {
			trusted.InternalHosts = []string{u.Hostname()}
		}
	}
	sanitizer, err := sanitize.New(trusted, sanitize.WithLogger(p.logger.With("stage", "sanitize")))
	if err != nil {
		return nil, fmt.Errorf("creating sanitizer: %w", err)
	}
	p.sanitizer = sanitizer

	var tokOpts []embed.TokenizerOption
	if cfg.MediaHosts != nil {
		tokOpts = append(tokOpts, embed.WithMediaHosts(cfg.MediaHosts...))
	}
	p.tokenizer = embed.NewTokenizer(tokOpts...)

	minLen, maxLen := cfg.MinHandleLength, cfg.MaxHandleLength
	if minLen <= 0 {
		minLen = mention.DefaultMinLength
	}
	if maxLen <= 0 {
		maxLen = mention.DefaultMaxLength
	}
	p.mentions = mention.New(reg, p.mentionCache,
		mention.WithConcurrency(cfg.MentionConcurrency),
		mention.WithLengths(minLen, maxLen),
		mention.WithProfileURL(renderer.Routes().User),
		mention.WithAvatarURL(cfg.AvatarURL),
		mention.WithLogger(p.logger.With("stage", "mentions")),
	)

	if p.devMode {
		p.logger.Warn("dev mode enabled, caches are cleared on every render")
	}
	return p, nil
}

// Render turns untrusted markdown into HTML that is safe to display.
//
// The result is either a fully processed document or FallbackHTML; partial
// output is never returned. Failures inside the pipeline produce the fallback,
// which is cached like any other result. The only error returned is the
// context's, when ctx ends before rendering completes; nothing is cached for
// the document in that case.
func (p *Pipeline) Render(ctx context.Context, raw string) (html string, err error) {
	if p.devMode {
		p.ClearCaches()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := contenthash.Sum(raw)
	logger := p.logger.With("render_id", uuid.NewString(), "key", key)

	if cached, ok := p.output.Get(key); ok {
		logger.Debug("output cache hit")
		return cached, nil
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("render panicked, using fallback", "panic", r)
			p.output.Set(key, FallbackHTML)
			html, err = FallbackHTML, nil
		}
	}()

	start := time.Now()
	html, err = p.render(ctx, logger, raw)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			logger.Debug("render cancelled", "error", err)
			return "", ctxErr
		}
		logger.Error("render failed, using fallback", "error", err)
		p.output.Set(key, FallbackHTML)
		return FallbackHTML, nil
	}

	p.output.Set(key, html)
	logger.Debug("rendered", "duration", time.Since(start), "bytes", len(html))
	return html, nil
}

// render runs every stage after the output cache.
func (p *Pipeline) render(ctx context.Context, logger *slog.Logger, raw string) (string, error) {
	tokenized := p.tokenizer.Tokenize(raw)

	ikey := contenthash.Sum(tokenized)
	resolved, ok := p.intermediate.Get(ikey)
	if ok {
		logger.Debug("intermediate cache hit")
	} else {
		var err error
		resolved, err = p.mentions.Resolve(ctx, tokenized)
		if err != nil {
			return "", fmt.Errorf("resolving mentions: %w", err)
		}
		p.intermediate.Set(ikey, resolved)
	}

	rendered, err := p.renderer.Render(resolved)
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}

	expanded, residual := embed.Defuse(p.expander.Expand(rendered))
	if len(residual) > 0 {
		logger.Warn("unexpanded embed markers", "markers", residual)
	}

	clean, err := p.sanitizer.Sanitize(expanded)
	if err != nil {
		return "", fmt.Errorf("sanitizing: %w", err)
	}
	return clean, nil
}

// ClearCaches empties all three caches.
func (p *Pipeline) ClearCaches() {
	p.output.Clear()
	p.intermediate.Clear()
	p.mentionCache.Clear()
}

// Stats returns counters for all three caches.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Output:       p.output.Stats(),
		Intermediate: p.intermediate.Stats(),
		Mentions:     p.mentionCache.Stats(),
	}
}
