package world

import (
	"sync"

	"github.com/google/uuid"
)

// ScriptRegistry is an in-process ScriptHost that tracks nested suspensions
// per part. Runners consult Suspended before executing a part's scripts.
type ScriptRegistry struct {
	mu        sync.Mutex
	cond      *sync.Cond
	suspended map[uuid.UUID]int
}

func NewScriptRegistry() *ScriptRegistry {
	r := &ScriptRegistry{suspended: map[uuid.UUID]int{}}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func (r *ScriptRegistry) Suspend(partID uuid.UUID) error {
	r.mu.Lock()
	r.suspended[partID]++
	r.mu.Unlock()
	return nil
}

func (r *ScriptRegistry) Resume(partID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.suspended[partID]
	if n <= 1 {
		delete(r.suspended, partID)
		r.cond.Broadcast()
		return nil
	}
	r.suspended[partID] = n - 1
	return nil
}

func (r *ScriptRegistry) Suspended(partID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suspended[partID] > 0
}

// WaitRunnable blocks until partID is not suspended.
func (r *ScriptRegistry) WaitRunnable(partID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.suspended[partID] > 0 {
		r.cond.Wait()
	}
}

// SuspendedCount is the number of parts with at least one open suspension.
func (r *ScriptRegistry) SuspendedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.suspended)
}
