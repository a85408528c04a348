package world

import (
	"fmt"

	"github.com/google/uuid"

	"primsim.ai/internal/sim/world/logic/mathx"
)

// UnlinkResult describes the groups produced by an unlink.
type UnlinkResult struct {
	// Survivors holds the parts that stayed linked together.
	Survivors *Group

	// Detached holds one single-part group per removed part, in the removed
	// parts' former link order.
	Detached []*Group

	// Created lists the groups that did not exist before the call.
	Created []*Group
}

func (r UnlinkResult) affected() []*Group {
	out := []*Group{r.Survivors}
	for _, d := range r.Detached {
		if d != r.Survivors {
			out = append(out, d)
		}
	}
	return out
}

// UnlinkOne removes a single part. If it is the root, link 2 becomes the root
// and the remaining children are rebased onto it; every absolute pose is
// preserved. The removed part ends up alone in a new group.
func (g *Group) UnlinkOne(id uuid.UUID) (UnlinkResult, error) {
	return g.unlink(func() ([]uuid.UUID, bool, error) {
		return []uuid.UUID{id}, true, nil
	})
}

// UnlinkMany removes every listed part, or nothing at all if one of them is
// not a member. When the root is among them the surviving parts move to a new
// group rooted at the lowest remaining link number and the original group is
// left holding only the old root.
func (g *Group) UnlinkMany(ids []uuid.UUID) (UnlinkResult, error) {
	return g.unlink(func() ([]uuid.UUID, bool, error) {
		return ids, false, nil
	})
}

// UnlinkRoot separates the root and keeps the other parts linked together.
func (g *Group) UnlinkRoot() (UnlinkResult, error) {
	return g.unlink(func() ([]uuid.UUID, bool, error) {
		if len(g.parts) == 0 {
			return nil, false, ErrGroupDeleted
		}
		return []uuid.UUID{g.parts[0].id}, false, nil
	})
}

// unlink runs pick under the group lock to choose the parts to remove.
// keepRootGroup selects the single-part promotion where the original group
// keeps the survivors.
func (g *Group) unlink(pick func() (ids []uuid.UUID, keepRootGroup bool, err error)) (UnlinkResult, error) {
	res, err := g.unlinkLocked(pick)
	if err != nil {
		return UnlinkResult{}, err
	}
	sc := g.Scene()
	if sc != nil {
		for _, ng := range res.Created {
			sc.PostEvent(Event{Kind: EventGroupAdded, Group: ng})
		}
	}
	for _, ag := range res.affected() {
		ag.postLinkChanged()
	}
	return res, nil
}

func (g *Group) unlinkLocked(pick func() ([]uuid.UUID, bool, error)) (res UnlinkResult, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.deleted {
		return res, ErrGroupDeleted
	}
	ids, keepRootGroup, err := pick()
	if err != nil {
		return res, err
	}
	if len(g.parts) <= 1 {
		return res, ErrGroupTooSmall
	}

	remove := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if _, ok := g.byID[id]; !ok {
			return res, fmt.Errorf("%w: %s", ErrPartNotFound, id)
		}
		remove[id] = true
	}
	if len(remove) == 0 {
		return res, fmt.Errorf("%w: no parts requested", ErrPartNotFound)
	}
	if len(remove) >= len(g.parts) {
		return res, ErrGroupWouldBeEmpty
	}

	env := g.environment()
	removed := make([]*Part, 0, len(remove))
	for _, p := range g.parts {
		if remove[p.id] {
			removed = append(removed, p)
		}
	}
	resume, err := suspendScripts(env.scripts, removed)
	defer resume()
	if err != nil {
		return res, err
	}

	// Capture every absolute pose before touching anything.
	abs := make(map[*Part]mathx.Pose, len(g.parts))
	for _, p := range g.parts {
		abs[p] = g.absoluteLocked(p)
	}
	survivors := make([]*Part, 0, len(g.parts)-len(removed))
	for _, p := range g.parts {
		if !remove[p.id] {
			survivors = append(survivors, p)
		}
	}
	rootRemoved := remove[g.parts[0].id]

	if rootRemoved && !keepRootGroup {
		return g.extractSurvivorsLocked(env, survivors, removed, abs), nil
	}

	// The original group keeps the survivors.
	if rootRemoved {
		rebase(survivors, abs)
	}
	for _, p := range removed {
		p.setLocalPose(abs[p])
		delete(g.byID, p.id)
	}
	g.parts = survivors
	g.renumberLocked()

	res.Survivors = g
	for _, p := range removed {
		ng := newGroupFrom(env, []*Part{p})
		res.Detached = append(res.Detached, ng)
		res.Created = append(res.Created, ng)
	}
	return res, nil
}

// extractSurvivorsLocked moves survivors into a brand-new group; g keeps the
// old root and every other removed part gets its own group.
func (g *Group) extractSurvivorsLocked(env groupEnv, survivors, removed []*Part, abs map[*Part]mathx.Pose) UnlinkResult {
	var res UnlinkResult
	rebase(survivors, abs)
	for _, p := range survivors {
		delete(g.byID, p.id)
	}
	res.Survivors = newGroupFrom(env, survivors)
	res.Created = append(res.Created, res.Survivors)

	oldRoot := removed[0]
	for _, p := range removed[1:] {
		p.setLocalPose(abs[p])
		delete(g.byID, p.id)
	}
	g.parts = []*Part{oldRoot}
	g.renumberLocked()
	res.Detached = append(res.Detached, g)

	for _, p := range removed[1:] {
		ng := newGroupFrom(env, []*Part{p})
		res.Detached = append(res.Detached, ng)
		res.Created = append(res.Created, ng)
	}
	return res
}

// rebase makes parts[0] a root at its absolute pose and re-expresses the
// others relative to it.
func rebase(parts []*Part, abs map[*Part]mathx.Pose) {
	if len(parts) == 0 {
		return
	}
	rootAbs := abs[parts[0]]
	for _, p := range parts[1:] {
		p.setLocalPose(mathx.Relative(rootAbs, abs[p]))
	}
	parts[0].setLocalPose(rootAbs)
}

// renumberLocked assigns dense link numbers from the current order. The new
// order is fully built before any number is written.
func (g *Group) renumberLocked() {
	for i, p := range g.parts {
		if p.LinkNum() != i+1 {
			p.setLinkNum(i + 1)
		}
	}
}

// suspendScripts suspends the scripts of parts and returns a func resuming
// every part that was suspended. On failure the already suspended parts are
// still covered by the returned func.
func suspendScripts(host ScriptHost, parts []*Part) (resume func(), err error) {
	if host == nil {
		return func() {}, nil
	}
	suspended := make([]uuid.UUID, 0, len(parts))
	resume = func() {
		for _, id := range suspended {
			_ = host.Resume(id)
		}
	}
	for _, p := range parts {
		if err := host.Suspend(p.id); err != nil {
			return resume, fmt.Errorf("%w: part %s: %v", ErrScriptSuspend, p.id, err)
		}
		suspended = append(suspended, p.id)
	}
	return resume, nil
}
