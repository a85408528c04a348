package world

import (
	"sync"

	"github.com/google/uuid"

	"primsim.ai/internal/sim/world/logic/mathx"
)

// cell is one independently locked sub-record of a part. Reads hand out a
// copy and writes replace the stored value with a copy, so callers never
// share memory with the part.
type cell[T any] struct {
	mu    sync.RWMutex
	v     T
	clone func(T) T
}

func newCell[T any](v T, clone func(T) T) *cell[T] {
	c := &cell[T]{clone: clone}
	c.v = c.copyOf(v)
	return c
}

func (c *cell[T]) copyOf(v T) T {
	if c.clone == nil {
		return v
	}
	return c.clone(v)
}

func (c *cell[T]) get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copyOf(c.v)
}

// swap stores a copy of v and returns the previous value. The previous value
// is no longer referenced by the cell.
func (c *cell[T]) swap(v T) T {
	v = c.copyOf(v)
	c.mu.Lock()
	old := c.v
	c.v = v
	c.mu.Unlock()
	return old
}

// update applies fn to the stored value under the write lock.
func (c *cell[T]) update(fn func(T) T) (old, cur T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old = c.v
	c.v = c.copyOf(fn(c.copyOf(c.v)))
	return c.copyOf(old), c.copyOf(c.v)
}

// MaxTextLength is the longest hover text kept, in bytes.
const MaxTextLength = 254

type Text struct {
	Value string
	Color Color4
}

type MediaEntry struct {
	Face     int
	URL      string
	AutoPlay bool
	Width    int
	Height   int
}

type CameraOffsets struct {
	Eye mathx.Vec3
	At  mathx.Vec3
}

type Shape struct {
	// AnimatedMesh marks meshes that play object animations.
	AnimatedMesh bool
	Data         []byte
}

type PartMeta struct {
	Name        string
	Description string
	OwnerID     uuid.UUID
	CreatorID   uuid.UUID
	GroupID     uuid.UUID
}

type StatusFlags uint32

const (
	StatusSandbox StatusFlags = 1 << iota
	StatusBlockGrab
	StatusDieAtEdge
	StatusReturnAtEdge
	StatusBlockGrabObject
)

// Extra-parameter bits: which optional blocks a full update carries.
const (
	ExtraText uint32 = 1 << iota
	ExtraParticles
	ExtraSound
	ExtraCollisionSound
	ExtraMedia
	ExtraAnimatedMesh
)

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneMedia(m []MediaEntry) []MediaEntry {
	if m == nil {
		return nil
	}
	out := make([]MediaEntry, len(m))
	copy(out, m)
	return out
}

func cloneShape(s Shape) Shape {
	s.Data = cloneBytes(s.Data)
	return s
}

func truncateText(s string) string {
	if len(s) <= MaxTextLength {
		return s
	}
	// Do not cut a UTF-8 sequence in half.
	n := MaxTextLength
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
