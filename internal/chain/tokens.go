package chain

import (
	"context"
	"sync"
)

// tokens is an arena of per-key exclusion tokens. A token is a buffered
// channel of size one; holding it means having sent into it. Tokens are never
// evicted, so the arena grows by one channel per wallet ever seen.
type tokens struct {
	mu    sync.Mutex
	byKey map[string]chan struct{}
}

func newTokens() *tokens {
	return &tokens{byKey: make(map[string]chan struct{})}
}

func (t *tokens) get(key string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	tok, ok := t.byKey[key]
	if !ok {
		tok = make(chan struct{}, 1)
		t.byKey[key] = tok
	}
	return tok
}

// acquire blocks until the token for key is held or ctx ends.
func (t *tokens) acquire(ctx context.Context, key string) (release func(), err error) {
	tok := t.get(key)
	select {
	case tok <- struct{}{}:
		return func() { <-tok }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
