package flow

import (
	"context"
	"sync"
)

// Locker admits at most one transition per draft key. It never blocks: a second
// caller for a busy key gets ErrBusy.
type Locker interface {
	TryLock(ctx context.Context, key Key) (unlock func(), err error)
}

// guard is the in-process Locker. It is enough for a single instance; replicas
// sharing a draft store need a shared Locker such as NewRedisLocker.
type guard struct {
	mu       sync.Mutex
	inFlight map[Key]struct{}
}

func newGuard() *guard {
	return &guard{inFlight: make(map[Key]struct{})}
}

func (g *guard) TryLock(_ context.Context, key Key) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[key]; busy {
		return nil, ErrBusy
	}
	g.inFlight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, key)
			g.mu.Unlock()
		})
	}, nil
}
