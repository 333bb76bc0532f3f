package analysis

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// flightGuard admits one run per key at a time. Entries are dropped once no
// caller holds or waits on them.
type flightGuard struct {
	mu    sync.Mutex
	slots map[string]*flightSlot
}

type flightSlot struct {
	sem  *semaphore.Weighted
	refs int
}

func newFlightGuard() *flightGuard {
	return &flightGuard{slots: make(map[string]*flightSlot)}
}

// tryAcquire returns a release func, or false when key is already running.
func (g *flightGuard) tryAcquire(key string) (func(), bool) {
	g.mu.Lock()
	slot, ok := g.slots[key]
	if !ok {
		slot = &flightSlot{sem: semaphore.NewWeighted(1)}
		g.slots[key] = slot
	}
	slot.refs++
	g.mu.Unlock()

	if !slot.sem.TryAcquire(1) {
		g.drop(key, slot)
		return nil, false
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			slot.sem.Release(1)
			g.drop(key, slot)
		})
	}, true
}

func (g *flightGuard) drop(key string, slot *flightSlot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(g.slots, key)
	}
}

func (g *flightGuard) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.slots)
}
