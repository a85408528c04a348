package world

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"primsim.ai/internal/sim/world/logic/mathx"
	"primsim.ai/internal/sim/wire"
)

var (
	ErrGroupTooSmall     = errors.New("group has a single part")
	ErrGroupWouldBeEmpty = errors.New("unlink would leave the group empty")
	ErrPartNotFound      = errors.New("part not in group")
	ErrLinksetTooLarge   = errors.New("linkset too large")
	ErrSameGroup         = errors.New("cannot link a group to itself")
	ErrGroupDeleted      = errors.New("group deleted")
	ErrScriptSuspend     = errors.New("script suspend failed")
)

var groupSerial atomic.Uint64

// groupEnv is what a group inherits from the region and passes on to the
// groups split off from it.
type groupEnv struct {
	scene    Scene
	scripts  ScriptHost
	maxLinks int
}

// Group is a linkset: parts ordered by link number, the root at link 1.
// All structural changes hold mu for their whole duration.
type Group struct {
	serial uint64

	envMu sync.RWMutex
	env   groupEnv

	mu      sync.Mutex
	parts   []*Part // parts[i] has link number i+1
	byID    map[uuid.UUID]*Part
	deleted bool
}

// NewGroup creates a single-part group. root must not belong to a group; its
// local pose is taken as its absolute pose.
func NewGroup(root *Part) *Group {
	g := &Group{serial: groupSerial.Add(1), byID: map[uuid.UUID]*Part{}}
	g.attachLocked(root)
	return g
}

// newGroupFrom builds a group over parts whose poses are already relative to
// parts[0] and publishes the new membership on each part.
func newGroupFrom(env groupEnv, parts []*Part) *Group {
	g := &Group{
		serial: groupSerial.Add(1),
		env:    env,
		parts:  make([]*Part, 0, len(parts)),
		byID:   make(map[uuid.UUID]*Part, len(parts)),
	}
	for _, p := range parts {
		g.parts = append(g.parts, p)
		g.byID[p.id] = p
	}
	for i, p := range g.parts {
		p.setLink(g, i+1)
	}
	return g
}

func (g *Group) attachLocked(p *Part) {
	if owner := p.Group(); owner != nil {
		panic(fmt.Sprintf("world: part %s already belongs to group %s", p.id, owner.ID()))
	}
	g.parts = append(g.parts, p)
	g.byID[p.id] = p
	p.setLink(g, len(g.parts))
}

// AddLink appends p as the highest link number. p must not belong to a
// group; its local pose is taken as relative to the root. A group already in
// a scene raises a link change once p is attached.
func (g *Group) AddLink(p *Part) {
	g.mu.Lock()
	g.attachLocked(p)
	g.mu.Unlock()
	if g.Scene() != nil {
		g.postLinkChanged()
	}
}

func (g *Group) environment() groupEnv {
	g.envMu.RLock()
	defer g.envMu.RUnlock()
	return g.env
}

func (g *Group) setEnvironment(env groupEnv) {
	g.envMu.Lock()
	g.env = env
	g.envMu.Unlock()
}

func (g *Group) Scene() Scene { return g.environment().scene }

// ID is the id of the current root part.
func (g *Group) ID() uuid.UUID {
	if r := g.Root(); r != nil {
		return r.id
	}
	return uuid.Nil
}

func (g *Group) Root() *Part {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.parts) == 0 {
		return nil
	}
	return g.parts[0]
}

func (g *Group) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.parts)
}

func (g *Group) Deleted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deleted
}

func (g *Group) Part(id uuid.UUID) (*Part, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.byID[id]
	return p, ok
}

func (g *Group) PartByLink(n int) (*Part, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n < 1 || n > len(g.parts) {
		return nil, false
	}
	return g.parts[n-1], true
}

// Parts returns the members in link order.
func (g *Group) Parts() []*Part {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Part, len(g.parts))
	copy(out, g.parts)
	return out
}

func (g *Group) AbsolutePose(id uuid.UUID) (mathx.Pose, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.byID[id]
	if !ok {
		return mathx.Pose{}, false
	}
	return g.absoluteLocked(p), true
}

func (g *Group) absoluteLocked(p *Part) mathx.Pose {
	root := g.parts[0]
	if p == root {
		return root.LocalPose()
	}
	return mathx.Compose(root.LocalPose(), p.LocalPose())
}

// markDeletedLocked detaches every part; the group is unusable afterwards.
func (g *Group) markDeletedLocked() []*Part {
	parts := g.parts
	for _, p := range parts {
		p.setLink(nil, 0)
	}
	g.parts = nil
	g.byID = map[uuid.UUID]*Part{}
	g.deleted = true
	return parts
}

func (g *Group) postLinkChanged() {
	sc := g.Scene()
	root := g.Root()
	if sc == nil || root == nil {
		return
	}
	sc.PostEvent(Event{Kind: EventPartChanged, Part: root, Group: g, Flags: wire.ChangedLink})
}
