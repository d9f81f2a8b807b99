package engine

import (
	"sync"
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Move swaps target with its neighbor in dir and returns the new order.
// It reports false, with ids unchanged, when target is absent, already
// first (up) or already last (down).
func Move(ids []int64, target int64, dir Direction) ([]int64, bool) {
	idx := -1
	for i, id := range ids {
		if id == target {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ids, false
	}

	swap := idx - 1
	if dir == Down {
		swap = idx + 1
	}
	if swap < 0 || swap >= len(ids) {
		return ids, false
	}

	out := make([]int64, len(ids))
	copy(out, ids)
	out[idx], out[swap] = out[swap], out[idx]
	return out, true
}

// ReorderGuard rejects overlapping reorders of the same sibling list within
// this process.
type ReorderGuard struct {
	mu     sync.Mutex
	active map[string]bool
}

func NewReorderGuard() *ReorderGuard {
	return &ReorderGuard{active: make(map[string]bool)}
}

// TryAcquire marks key busy. The returned release must be called when done;
// ok is false if key is already busy.
func (g *ReorderGuard) TryAcquire(key string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[key] {
		return nil, false
	}
	g.active[key] = true
	return func() {
		g.mu.Lock()
		delete(g.active, key)
		g.mu.Unlock()
	}, true
}
