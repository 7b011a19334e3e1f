package ownership

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Pass scopes memoized source reads to a single resolution.
type Pass struct {
	ID string

	mu   sync.Mutex
	memo map[string]*memoEntry
}

type memoEntry struct {
	once  sync.Once
	value any
	err   error
}

// NewPass starts a resolution pass with a fresh id.
func NewPass() *Pass {
	return &Pass{ID: uuid.NewString(), memo: make(map[string]*memoEntry)}
}

type passKey struct{}

// WithPass attaches p to ctx.
func WithPass(ctx context.Context, p *Pass) context.Context {
	return context.WithValue(ctx, passKey{}, p)
}

// PassFrom returns the pass attached to ctx, or nil.
func PassFrom(ctx context.Context) *Pass {
	p, _ := ctx.Value(passKey{}).(*Pass)
	return p
}

// memoize runs fn at most once per key within the pass of ctx. Without a pass fn always runs.
func memoize[T any](ctx context.Context, key string, fn func() (T, error)) (T, error) {
	p := PassFrom(ctx)
	if p == nil {
		return fn()
	}

	p.mu.Lock()
	e, ok := p.memo[key]
	if !ok {
		e = &memoEntry{}
		p.memo[key] = e
	}
	p.mu.Unlock()

	e.once.Do(func() {
		e.value, e.err = fn()
	})
	v, _ := e.value.(T)
	return v, e.err
}
