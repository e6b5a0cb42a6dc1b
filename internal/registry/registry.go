// ABOUTME: Small registry implementations: a fixed handle set and a first-match chain.
// ABOUTME: Used for offline rendering and to put a local mirror in front of the network.

package registry

import (
	"context"
	"errors"
	"strings"

	"github.com/2389/hive-render/internal/mention"
)

// Static is a fixed set of existing handles.
type Static map[string]bool

// NewStatic returns a registry that knows exactly handles.
func NewStatic(handles ...string) Static {
	s := make(Static, len(handles))
	for _, h := range handles {
		s[strings.ToLower(h)] = true
	}
	return s
}

// Exists reports whether handle is in the set.
func (s Static) Exists(_ context.Context, handle string) (bool, error) {
	return s[strings.ToLower(handle)], nil
}

// Chain asks each registry in turn and stops at the first that confirms the
// handle. Errors are only reported when no registry confirmed it.
type Chain []mention.Registry

// Exists implements mention.Registry.
func (c Chain) Exists(ctx context.Context, handle string) (bool, error) {
	var errs []error
	for _, reg := range c {
		ok, err := reg.Exists(ctx, handle)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			errs = append(errs, err)
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}

var (
	_ mention.Registry = Static(nil)
	_ mention.Registry = Chain(nil)
	_ mention.Registry = (*Hive)(nil)
)
