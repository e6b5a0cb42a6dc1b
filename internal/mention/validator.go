// ABOUTME: Resolves @handle mentions against an identity registry and links the ones that exist.
// ABOUTME: Lookups are cached (including negatives), deduplicated and run concurrently.

package mention

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/2389/hive-render/internal/lru"
)

// Registry answers whether a handle names an existing identity.
type Registry interface {
	Exists(ctx context.Context, handle string) (bool, error)
}

// RegistryFunc adapts a function to the Registry interface.
type RegistryFunc func(ctx context.Context, handle string) (bool, error)

// Exists calls f.
func (f RegistryFunc) Exists(ctx context.Context, handle string) (bool, error) {
	return f(ctx, handle)
}

// DefaultConcurrency caps parallel registry lookups per document.
const DefaultConcurrency = 8

// Validator links mentions of existing handles.
type Validator struct {
	registry    Registry
	cache       *lru.Cache[string, bool]
	extractor   *Extractor
	concurrency int
	profileURL  func(string) string
	avatarURL   func(string) string
	logger      *slog.Logger
	group       singleflight.Group
}

// Option configures a Validator.
type Option func(*Validator)

// WithConcurrency sets the maximum number of lookups in flight per Resolve call.
func WithConcurrency(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.concurrency = n
		}
	}
}

// WithLengths sets the accepted handle length range.
func WithLengths(minLen, maxLen int) Option {
	return func(v *Validator) {
		v.extractor = NewExtractor(minLen, maxLen)
	}
}

// WithProfileURL sets the link target for a confirmed handle.
func WithProfileURL(fn func(handle string) string) Option {
	return func(v *Validator) {
		if fn != nil {
			v.profileURL = fn
		}
	}
}

// WithAvatarURL sets the avatar image shown next to a linked handle.
// A nil function disables avatars.
func WithAvatarURL(fn func(handle string) string) Option {
	return func(v *Validator) {
		v.avatarURL = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// DefaultAvatarURL points at the public Hive image service.
func DefaultAvatarURL(handle string) string {
	return "https://images.hive.blog/u/" + handle + "/avatar/small"
}

// New creates a validator backed by reg, storing results in cache.
func New(reg Registry, cache *lru.Cache[string, bool], opts ...Option) *Validator {
	v := &Validator{
		registry:    reg,
		cache:       cache,
		extractor:   NewExtractor(DefaultMinLength, DefaultMaxLength),
		concurrency: DefaultConcurrency,
		profileURL:  func(h string) string { return "/@" + h },
		avatarURL:   DefaultAvatarURL,
		logger:      slog.Default().With("component", "mention"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Resolve rewrites text so that every mention of an existing handle becomes a
// markdown link. Mentions of unknown handles, and handles whose lookup
// failed, stay as plain text.
//
// The rewrite happens once, after every lookup has finished, so the result
// does not depend on the order lookups complete in. If ctx is cancelled,
// results already cached are kept and ctx.Err() is returned.
func (v *Validator) Resolve(ctx context.Context, text string) (string, error) {
	cands := v.extractor.Extract(text)
	if len(cands) == 0 {
		return text, nil
	}

	valid, err := v.Check(ctx, Unique(cands))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, c := range cands {
		if !valid[c.Handle] {
			continue
		}
		b.WriteString(text[last:c.Start])
		b.WriteString(v.link(c.Handle))
		last = c.End
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// Check returns the existence of each handle, consulting the cache first.
// Misses are looked up concurrently, bounded by the configured concurrency.
func (v *Validator) Check(ctx context.Context, handles []string) (map[string]bool, error) {
	result := make(map[string]bool, len(handles))
	var misses []string
	for _, h := range handles {
		if exists, ok := v.cache.Get(h); ok {
			result[h] = exists
			continue
		}
		misses = append(misses, h)
	}
	if len(misses) == 0 {
		return result, nil
	}

	found := make([]bool, len(misses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for i, h := range misses {
		g.Go(func() error {
			exists, err := v.lookup(gctx, h)
			if err != nil {
				return err
			}
			found[i] = exists
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, h := range misses {
		result[h] = found[i]
	}
	return result, nil
}

// lookup resolves one handle. Concurrent lookups of the same handle share a
// single registry call.
func (v *Validator) lookup(ctx context.Context, handle string) (bool, error) {
	res, err, _ := v.group.Do(handle, func() (any, error) {
		return v.fetch(ctx, handle)
	})
	if err != nil {
		if ctx.Err() == nil {
			// The shared call belonged to a document that was cancelled
			return v.fetch(ctx, handle)
		}
		return false, err
	}
	return res.(bool), nil
}

// fetch queries the registry and caches the answer. Registry failures are
// fail-closed and cached as "does not exist"; only cancellation is returned
// as an error, and then nothing is cached.
func (v *Validator) fetch(ctx context.Context, handle string) (bool, error) {
	if exists, ok := v.cache.Get(handle); ok {
		return exists, nil
	}

	exists, err := v.safeExists(ctx, handle)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		v.logger.Warn("mention lookup failed, treating as unknown", "handle", handle, "error", err)
		exists = false
	}
	v.cache.Set(handle, exists)
	return exists, nil
}

// safeExists converts a panicking registry into an error.
func (v *Validator) safeExists(ctx context.Context, handle string) (exists bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("registry panic: %v", r)
		}
	}()
	return v.registry.Exists(ctx, handle)
}

func (v *Validator) link(handle string) string {
	label := "@" + handle
	if v.avatarURL != nil {
		label = "![](" + v.avatarURL(handle) + ") " + label
	}
	return "[" + label + "](" + v.profileURL(handle) + ")"
}
