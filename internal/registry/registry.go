// Package registry is the single source of truth for which instances exist.
package registry

import (
	"sync"

	"github.com/outpost-sh/outpost/internal/instance"
)

// Registry is a concurrency-safe mapping from instance id to instance handle.
// One exclusive lock guards the mapping's shape; individual handles carry
// their own synchronization. Callers must not perform filesystem I/O while
// relying on registry state being frozen — every method releases the lock
// before returning.
type Registry struct {
	mu        sync.Mutex
	instances map[instance.ID]instance.Instance
}

func New() *Registry {
	return &Registry{instances: make(map[instance.ID]instance.Instance)}
}

// Insert registers a handle. Only called after provisioning fully succeeded.
func (r *Registry) Insert(inst instance.Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[inst.ID()] = inst
}

// Get looks up a handle by id.
func (r *Registry) Get(id instance.ID) (instance.Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	return inst, ok
}

// Remove drops an entry. Only called after a deletion has passed its point of
// no return; removing an absent id is a no-op.
func (r *Registry) Remove(id instance.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, id)
}

// List returns a snapshot of all registered handles in no particular order.
func (r *Registry) List() []instance.Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]instance.Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst)
	}
	return out
}

// Len reports the number of registered instances.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}
