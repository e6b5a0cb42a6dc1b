// ABOUTME: Tests for mention extraction and validation.
// ABOUTME: Covers dedupe, caching of negative results, fail-closed lookups and cancellation.

package mention

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/hive-render/internal/lru"
)

// fakeRegistry records every lookup and answers from a fixed set.
type fakeRegistry struct {
	mu       sync.Mutex
	existing map[string]bool
	failing  map[string]error
	delay    time.Duration
	calls    map[string]int
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newFakeRegistry(existing ...string) *fakeRegistry {
	r := &fakeRegistry{
		existing: make(map[string]bool),
		failing:  make(map[string]error),
		calls:    make(map[string]int),
	}
	for _, h := range existing {
		r.existing[h] = true
	}
	return r
}

func (r *fakeRegistry) Exists(ctx context.Context, handle string) (bool, error) {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		seen := r.maxSeen.Load()
		if n <= seen || r.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	r.mu.Lock()
	r.calls[handle]++
	err := r.failing[handle]
	exists := r.existing[handle]
	r.mu.Unlock()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *fakeRegistry) callCount(handle string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[handle]
}

func newTestValidator(reg Registry, opts ...Option) (*Validator, *lru.Cache[string, bool]) {
	cache := lru.New[string, bool](100, time.Hour)
	opts = append([]Option{WithAvatarURL(nil)}, opts...)
	return New(reg, cache, opts...), cache
}

func TestExtract(t *testing.T) {
	x := NewExtractor(DefaultMinLength, DefaultMaxLength)

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"simple", "hi @alice", []string{"alice"}},
		{"start of text", "@bob.dev said", []string{"bob.dev"}},
		{"trailing dot", "thanks @alice.", []string{"alice"}},
		{"multiple and repeated", "@alice and @bob and @alice", []string{"alice", "bob", "alice"}},
		{"email is not a mention", "mail me at me@alice.com", nil},
		{"url path is not a mention", "https://peakd.com/@alice/post", nil},
		{"too short", "hey @ab", nil},
		{"too long", "hey @abcdefghijklmnopq", nil},
		{"uppercase rejected", "hey @Alice", nil},
		{"underscore continues word", "hey @alice_b", nil},
		{"must start with letter", "hey @1alice", nil},
		{"inside token identifier", "[[ODYSEE:@chan:3/video:a]]", nil},
		{"in parentheses", "(cc @carol)", []string{"carol"}},
		{"inside code span", "try `@alice` or @bob", []string{"bob"}},
		{"inside fenced code", "```\n@alice\n```\n\n@bob", []string{"bob"}},
		{"inside indented code", "intro\n\n    @alice\n\nthen @bob", []string{"bob"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, c := range x.Extract(tt.input) {
				got = append(got, c.Handle)
				assert.Equal(t, "@"+c.Handle, tt.input[c.Start:c.End])
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnique(t *testing.T) {
	cands := []Candidate{{Handle: "b"}, {Handle: "a"}, {Handle: "b"}}
	assert.Equal(t, []string{"b", "a"}, Unique(cands))
}

func TestResolve_LinksOnlyExisting(t *testing.T) {
	reg := newFakeRegistry("alice")
	v, _ := newTestValidator(reg)

	out, err := v.Resolve(context.Background(), "hi @alice and @ghost, bye @alice")
	require.NoError(t, err)
	assert.Equal(t, "hi [@alice](/@alice) and @ghost, bye [@alice](/@alice)", out)

	// Repeated handles share one lookup
	assert.Equal(t, 1, reg.callCount("alice"))
	assert.Equal(t, 1, reg.callCount("ghost"))
}

func TestResolve_CodeIsLeftVerbatim(t *testing.T) {
	reg := newFakeRegistry("alice")
	v, _ := newTestValidator(reg)

	in := "`@alice` and\n\n    @alice code\n\n~~~\n@alice\n~~~\n\nhi @alice"
	out, err := v.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "`@alice` and\n\n    @alice code\n\n~~~\n@alice\n~~~\n\nhi [@alice](/@alice)", out)

	// Only code mentions: nothing to look up
	_, err = v.Resolve(context.Background(), "`@carol`")
	require.NoError(t, err)
	assert.Equal(t, 0, reg.callCount("carol"))
}

func TestResolve_AvatarAndProfileRoute(t *testing.T) {
	reg := newFakeRegistry("alice")
	cache := lru.New[string, bool](10, time.Hour)
	v := New(reg, cache, WithProfileURL(func(h string) string { return "https://example.com/u/" + h }))

	out, err := v.Resolve(context.Background(), "@alice")
	require.NoError(t, err)
	assert.Equal(t, "[![](https://images.hive.blog/u/alice/avatar/small) @alice](https://example.com/u/alice)", out)
}

func TestResolve_NoMentions(t *testing.T) {
	reg := newFakeRegistry()
	v, _ := newTestValidator(reg)

	out, err := v.Resolve(context.Background(), "plain text")
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)
}

func TestResolve_NegativeResultsCached(t *testing.T) {
	reg := newFakeRegistry()
	v, cache := newTestValidator(reg)

	for i := 0; i < 3; i++ {
		_, err := v.Resolve(context.Background(), "@nobody")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, reg.callCount("nobody"))
	exists, ok := cache.Get("nobody")
	assert.True(t, ok)
	assert.False(t, exists)
}

func TestResolve_FailClosed(t *testing.T) {
	reg := newFakeRegistry("ghost")
	reg.failing["ghost"] = errors.New("registry unavailable")
	v, _ := newTestValidator(reg)

	out, err := v.Resolve(context.Background(), "boo @ghost")
	require.NoError(t, err)
	assert.Equal(t, "boo @ghost", out, "failed lookup renders as plain text")

	// Failure is cached; the registry is not asked again within the TTL
	out, err = v.Resolve(context.Background(), "again @ghost")
	require.NoError(t, err)
	assert.Equal(t, "again @ghost", out)
	assert.Equal(t, 1, reg.callCount("ghost"))
}

func TestResolve_RegistryPanicIsFailClosed(t *testing.T) {
	reg := RegistryFunc(func(ctx context.Context, handle string) (bool, error) {
		panic("boom")
	})
	v, _ := newTestValidator(reg)

	out, err := v.Resolve(context.Background(), "@alice")
	require.NoError(t, err)
	assert.Equal(t, "@alice", out)
}

func TestResolve_BoundedConcurrency(t *testing.T) {
	reg := newFakeRegistry("aaa", "bbb", "ccc", "ddd", "eee", "fff")
	reg.delay = 20 * time.Millisecond
	v, _ := newTestValidator(reg, WithConcurrency(2))

	out, err := v.Resolve(context.Background(), "@aaa @bbb @ccc @ddd @eee @fff")
	require.NoError(t, err)
	assert.Equal(t, "[@aaa](/@aaa) [@bbb](/@bbb) [@ccc](/@ccc) [@ddd](/@ddd) [@eee](/@eee) [@fff](/@fff)", out)
	assert.LessOrEqual(t, reg.maxSeen.Load(), int32(2))
}

func TestResolve_DeterministicRegardlessOfCompletionOrder(t *testing.T) {
	// Earlier handles answer slower than later ones
	delays := map[string]time.Duration{"aaa": 30 * time.Millisecond, "bbb": 15 * time.Millisecond, "ccc": 0}
	reg := RegistryFunc(func(ctx context.Context, handle string) (bool, error) {
		time.Sleep(delays[handle])
		return handle != "bbb", nil
	})

	want := "[@aaa](/@aaa) @bbb [@ccc](/@ccc)"
	for i := 0; i < 3; i++ {
		v, _ := newTestValidator(reg)
		out, err := v.Resolve(context.Background(), "@aaa @bbb @ccc")
		require.NoError(t, err)
		assert.Equal(t, want, out)
	}
}

func TestResolve_CancellationDoesNotCacheFailures(t *testing.T) {
	reg := newFakeRegistry("slow")
	reg.delay = time.Second
	v, cache := newTestValidator(reg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := v.Resolve(ctx, "@slow")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, ok := cache.Get("slow")
	assert.False(t, ok, "a cancelled lookup must not be cached as nonexistent")
}

func TestResolve_CachedResultsSurviveCancellation(t *testing.T) {
	reg := newFakeRegistry("alice")
	v, cache := newTestValidator(reg)
	cache.Set("alice", true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Everything is cached, so no lookup runs and the cancelled context is never consulted
	out, err := v.Resolve(ctx, "@alice")
	require.NoError(t, err)
	assert.Equal(t, "[@alice](/@alice)", out)
	assert.Equal(t, 0, reg.callCount("alice"))
}

func TestResolve_ConcurrentDocumentsShareLookups(t *testing.T) {
	reg := newFakeRegistry("alice")
	reg.delay = 30 * time.Millisecond
	v, _ := newTestValidator(reg)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := v.Resolve(context.Background(), "hello @alice")
			assert.NoError(t, err)
			assert.Equal(t, "hello [@alice](/@alice)", out)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, reg.callCount("alice"))
}
