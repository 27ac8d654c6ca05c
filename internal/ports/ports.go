// Package ports tracks the set of network ports bound to live instances.
package ports

import (
	"sort"
	"sync"
)

// Allocator records which ports are in use. Allocation is an idempotent
// marking, not a search: the caller supplies the desired port.
type Allocator struct {
	mu   sync.Mutex
	used map[int]struct{}
}

func NewAllocator() *Allocator {
	return &Allocator{used: make(map[int]struct{})}
}

// Allocate marks a port as in use.
func (a *Allocator) Allocate(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.used[port] = struct{}{}
}

// Release frees a port. Releasing a port that is not allocated is a no-op.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.used, port)
}

// InUse reports whether a port is currently allocated.
func (a *Allocator) InUse(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.used[port]
	return ok
}

// Used returns the allocated ports in ascending order.
func (a *Allocator) Used() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]int, 0, len(a.used))
	for p := range a.used {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
