package syncer

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// userGuard serializes work per user. Callers for different users never
// block each other.
type userGuard struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func newUserGuard() *userGuard {
	return &userGuard{sems: make(map[string]*semaphore.Weighted)}
}

// acquire waits until userID is free or ctx is done.
func (g *userGuard) acquire(ctx context.Context, userID string) (release func(), err error) {
	g.mu.Lock()
	sem, ok := g.sems[userID]
	if !ok {
		sem = semaphore.NewWeighted(1)
		g.sems[userID] = sem
	}
	g.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}

// busy reports whether a sync currently holds userID.
func (g *userGuard) busy(userID string) bool {
	g.mu.Lock()
	sem, ok := g.sems[userID]
	g.mu.Unlock()
	if !ok {
		return false
	}
	if !sem.TryAcquire(1) {
		return true
	}
	sem.Release(1)
	return false
}
