// Package flight deduplicates concurrent loads of the same key.
package flight

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds a shared load once it no longer follows any caller.
const DefaultTimeout = 10 * time.Second

// Group runs one load per key at a time. The load runs on a context that
// keeps the first caller's values but not its cancellation, so a caller
// that gives up only abandons its own wait.
type Group struct {
	Timeout time.Duration

	sf singleflight.Group
}

func (g *Group) Do(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := g.sf.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout())
		defer cancel()
		return fn(loadCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *Group) timeout() time.Duration {
	if g.Timeout > 0 {
		return g.Timeout
	}
	return DefaultTimeout
}
