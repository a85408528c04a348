package world

import (
	"sync"

	"github.com/google/uuid"

	"primsim.ai/internal/protocol"
	"primsim.ai/internal/sim/wire"
)

// AnimationController holds the object animations playing on one part.
// Sequence numbers come from a per-part counter and are never reused.
type AnimationController struct {
	part *Part

	mu      sync.Mutex
	entries []wire.AnimationEntry
	nextSeq uint32
}

func newAnimationController(p *Part) *AnimationController {
	return &AnimationController{part: p, nextSeq: 1}
}

func (a *AnimationController) indexLocked(id uuid.UUID) int {
	for i, e := range a.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (a *AnimationController) appendLocked(id uuid.UUID) {
	a.nextSeq++
	a.entries = append(a.entries, wire.AnimationEntry{ID: id, Seq: a.nextSeq})
}

func (a *AnimationController) removeLocked(id uuid.UUID) bool {
	i := a.indexLocked(id)
	if i < 0 {
		return false
	}
	a.entries = append(a.entries[:i], a.entries[i+1:]...)
	return true
}

func (a *AnimationController) snapshotLocked() []wire.AnimationEntry {
	out := make([]wire.AnimationEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Play starts id unless it is already playing.
func (a *AnimationController) Play(id uuid.UUID) {
	a.mu.Lock()
	if a.indexLocked(id) < 0 {
		a.appendLocked(id)
	}
	entries := a.snapshotLocked()
	a.mu.Unlock()
	a.broadcast(nil, entries)
}

func (a *AnimationController) Stop(id uuid.UUID) {
	a.mu.Lock()
	a.removeLocked(id)
	entries := a.snapshotLocked()
	a.mu.Unlock()
	a.broadcast(nil, entries)
}

// Replace is Stop(oldID) followed by Play(newID) with a single broadcast. A
// newID that is still playing after the stop keeps its entry.
func (a *AnimationController) Replace(newID, oldID uuid.UUID) {
	a.mu.Lock()
	a.removeLocked(oldID)
	if a.indexLocked(newID) < 0 {
		a.appendLocked(newID)
	}
	entries := a.snapshotLocked()
	a.mu.Unlock()
	a.broadcast(nil, entries)
}

// Restore re-applies a persisted entry. An id that is already playing keeps
// its position and takes seq; otherwise the entry is appended. The counter is
// left untouched and nothing is broadcast.
func (a *AnimationController) Restore(id uuid.UUID, seq uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i := a.indexLocked(id); i >= 0 {
		a.entries[i].Seq = seq
		return
	}
	a.entries = append(a.entries, wire.AnimationEntry{ID: id, Seq: seq})
}

func (a *AnimationController) Entries() []wire.AnimationEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// NextSeq is the counter value the next Play will increment.
func (a *AnimationController) NextSeq() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nextSeq
}

func (a *AnimationController) setNextSeq(n uint32) {
	a.mu.Lock()
	if n > a.nextSeq {
		a.nextSeq = n
	}
	a.mu.Unlock()
}

// Bytes is the persisted form: one 20-byte record per entry.
func (a *AnimationController) Bytes() []byte {
	return wire.EncodeAnimations(a.Entries())
}

// SendTo sends the current animation state to one agent.
func (a *AnimationController) SendTo(ag Agent) {
	if ag == nil {
		return
	}
	a.broadcast(ag, a.Entries())
}

// broadcast sends entries to target, or to every observer when target is
// nil. Parts without an animated mesh or outside a scene are skipped.
func (a *AnimationController) broadcast(target Agent, entries []wire.AnimationEntry) {
	if !a.part.shape.get().AnimatedMesh {
		return
	}
	sc := a.part.scene()
	if sc == nil {
		return
	}
	msg := protocol.EncodeAnimationUpdate(sc.ID(), a.part.id, entries)
	if target != nil {
		_ = target.SendReliable(msg)
		return
	}
	for _, ag := range sc.Observers() {
		_ = ag.SendReliable(msg)
	}
}
