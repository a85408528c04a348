package world

import (
	"fmt"

	"github.com/google/uuid"

	"primsim.ai/internal/sim/world/logic/mathx"
)

// Link merges other into g. other's parts are appended after g's in their
// current link order and keep their absolute poses; other is left deleted.
// other must not be nil.
func (g *Group) Link(other *Group) error {
	if other == nil {
		panic("world: Link called with a nil group")
	}
	if other == g {
		return ErrSameGroup
	}
	oldRoot := other.Root()
	if err := g.linkLocked(other); err != nil {
		return err
	}
	if sc := g.Scene(); sc != nil {
		sc.PostEvent(Event{Kind: EventGroupRemoved, Part: oldRoot, Group: other})
	}
	g.postLinkChanged()
	return nil
}

func (g *Group) linkLocked(other *Group) error {
	first, second := g, other
	if other.serial < g.serial {
		first, second = other, g
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if g.deleted || other.deleted {
		return ErrGroupDeleted
	}
	env := g.environment()
	if total := len(g.parts) + len(other.parts); env.maxLinks > 0 && total > env.maxLinks {
		return fmt.Errorf("%w: %d parts, max %d", ErrLinksetTooLarge, total, env.maxLinks)
	}

	rootAbs := g.parts[0].LocalPose()
	moved := other.parts
	abs := make([]mathx.Pose, len(moved))
	for i, p := range moved {
		abs[i] = other.absoluteLocked(p)
	}
	other.parts = nil
	other.byID = map[uuid.UUID]*Part{}
	other.deleted = true

	for i, p := range moved {
		p.setLocalPose(mathx.Relative(rootAbs, abs[i]))
		g.parts = append(g.parts, p)
		g.byID[p.id] = p
		p.setLink(g, len(g.parts))
	}
	return nil
}
