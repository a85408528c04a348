package world

import "sync"

// UpdateSnapshot hands out encoded snapshots of one part until it is killed.
// Kill is one-way: after it returns, every accessor reports no data.
type UpdateSnapshot struct {
	part *Part

	mu     sync.RWMutex
	killed bool
}

// Kill marks the part as gone. It waits for in-flight reads to finish.
func (u *UpdateSnapshot) Kill() {
	u.mu.Lock()
	u.killed = true
	u.mu.Unlock()
}

func (u *UpdateSnapshot) Killed() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.killed
}

func (u *UpdateSnapshot) read(fn func(p *Part) []byte) []byte {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.killed {
		return nil
	}
	return fn(u.part)
}

// FullUpdate returns the complete visible state, or nil once killed.
func (u *UpdateSnapshot) FullUpdate() []byte { return u.read(encodeFullUpdate) }

// TerseUpdate returns pose and motion only, or nil once killed.
func (u *UpdateSnapshot) TerseUpdate() []byte { return u.read(encodeTerseUpdate) }

// PropertiesUpdate returns ownership, masks and naming, or nil once killed.
func (u *UpdateSnapshot) PropertiesUpdate() []byte { return u.read(encodePropertiesUpdate) }

// IsPhysics reports whether the part is physical. ok is false once killed.
func (u *UpdateSnapshot) IsPhysics() (physical, ok bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.killed {
		return false, false
	}
	return u.part.IsPhysical(), true
}
