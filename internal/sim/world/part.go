package world

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"primsim.ai/internal/sim/world/logic/mathx"
	"primsim.ai/internal/sim/wire"
)

// Part is one primitive of a linkset. Every sub-record has its own lock; the
// owning group's lock must be taken before any of them.
type Part struct {
	id      uuid.UUID
	localID atomic.Uint32

	// group and linkNum change together, only while the group lock is held.
	linkMu  sync.RWMutex
	group   *Group
	linkNum int

	poseMu sync.RWMutex
	pose   mathx.Pose
	scale  mathx.Vec3

	status      atomic.Uint32
	extraParams atomic.Uint32

	meta           *cell[PartMeta]
	shape          *cell[Shape]
	texture        *cell[*TextureEntry]
	text           *cell[Text]
	particles      *cell[[]byte]
	media          *cell[[]MediaEntry]
	sound          *cell[wire.Sound]
	collisionSound *cell[wire.CollisionSound]
	camera         *cell[CameraOffsets]

	physMu sync.RWMutex
	phys   PhysicsActor

	anims   *AnimationController
	updates *UpdateSnapshot
}

func NewPart(id uuid.UUID, pose mathx.Pose) *Part {
	if id == uuid.Nil {
		id = uuid.New()
	}
	if pose.Rot == (mathx.Quat{}) {
		pose.Rot = mathx.Identity
	}
	p := &Part{
		id:             id,
		pose:           pose,
		scale:          mathx.Vec3{X: 0.5, Y: 0.5, Z: 0.5},
		meta:           newCell(PartMeta{Name: "Object"}, nil),
		shape:          newCell(Shape{}, cloneShape),
		texture:        newCell(NewTextureEntry(uuid.Nil), (*TextureEntry).Clone),
		text:           newCell(Text{}, nil),
		particles:      newCell([]byte(nil), cloneBytes),
		media:          newCell([]MediaEntry(nil), cloneMedia),
		sound:          newCell(wire.Sound{}, nil),
		collisionSound: newCell(wire.CollisionSound{}, nil),
		camera:         newCell(CameraOffsets{}, nil),
	}
	p.anims = newAnimationController(p)
	p.updates = &UpdateSnapshot{part: p}
	return p
}

func (p *Part) ID() uuid.UUID { return p.id }

// LocalID is the region-local numeric id used on the wire. Zero until the
// part is registered with a region.
func (p *Part) LocalID() uint32 { return p.localID.Load() }

func (p *Part) Group() *Group {
	p.linkMu.RLock()
	defer p.linkMu.RUnlock()
	return p.group
}

func (p *Part) LinkNum() int {
	p.linkMu.RLock()
	defer p.linkMu.RUnlock()
	return p.linkNum
}

// Link returns the owning group and link number as one consistent pair.
func (p *Part) Link() (*Group, int) {
	p.linkMu.RLock()
	defer p.linkMu.RUnlock()
	return p.group, p.linkNum
}

func (p *Part) IsRoot() bool {
	g, n := p.Link()
	return g != nil && n == 1
}

func (p *Part) setLink(g *Group, n int) {
	p.linkMu.Lock()
	p.group = g
	p.linkNum = n
	p.linkMu.Unlock()
}

func (p *Part) setLinkNum(n int) {
	p.linkMu.Lock()
	p.linkNum = n
	p.linkMu.Unlock()
}

// LocalPose is relative to the group root, or absolute for a root part.
func (p *Part) LocalPose() mathx.Pose {
	p.poseMu.RLock()
	defer p.poseMu.RUnlock()
	return p.pose
}

func (p *Part) setLocalPose(pose mathx.Pose) {
	p.poseMu.Lock()
	p.pose = pose
	p.poseMu.Unlock()
}

// SetLocalPose moves the part inside its group (or in the world, for a root).
func (p *Part) SetLocalPose(pose mathx.Pose) {
	pose.Rot = pose.Rot.Normalize()
	p.setLocalPose(pose)
	p.postEvent(Event{Kind: EventPoseChanged, Part: p})
}

// AbsolutePose is the world-space pose of the part.
func (p *Part) AbsolutePose() mathx.Pose {
	for {
		g := p.Group()
		if g == nil {
			return p.LocalPose()
		}
		if pose, ok := g.AbsolutePose(p.id); ok {
			return pose
		}
		// Re-parented between the two reads; try the new group.
	}
}

func (p *Part) Scale() mathx.Vec3 {
	p.poseMu.RLock()
	defer p.poseMu.RUnlock()
	return p.scale
}

func (p *Part) SetScale(s mathx.Vec3) {
	p.poseMu.Lock()
	p.scale = s
	p.poseMu.Unlock()
	p.notify(wire.ChangedScale)
}

func (p *Part) Status() StatusFlags { return StatusFlags(p.status.Load()) }

func (p *Part) HasStatus(f StatusFlags) bool { return p.Status()&f == f }

func (p *Part) SetStatus(f StatusFlags, on bool) {
	for {
		old := p.status.Load()
		next := old &^ uint32(f)
		if on {
			next = old | uint32(f)
		}
		if old == next || p.status.CompareAndSwap(old, next) {
			return
		}
	}
}

func (p *Part) PhysicsActor() PhysicsActor {
	p.physMu.RLock()
	defer p.physMu.RUnlock()
	return p.phys
}

func (p *Part) SetPhysicsActor(a PhysicsActor) {
	p.physMu.Lock()
	p.phys = a
	p.physMu.Unlock()
	p.notify(wire.ChangedPhysics)
}

func (p *Part) IsPhysical() bool {
	a := p.PhysicsActor()
	return a != nil && a.Physical()
}

func (p *Part) Velocity() mathx.Vec3 {
	if a := p.PhysicsActor(); a != nil {
		return a.Velocity()
	}
	return mathx.Vec3{}
}

func (p *Part) SetVelocity(v mathx.Vec3) {
	if a := p.PhysicsActor(); a != nil {
		a.SetVelocity(v)
	}
}

func (p *Part) Animations() *AnimationController { return p.anims }

func (p *Part) Updates() *UpdateSnapshot { return p.updates }

// ExtraParams reports which optional blocks the part currently carries.
func (p *Part) ExtraParams() uint32 { return p.extraParams.Load() }

func (p *Part) refreshExtraParams() {
	var v uint32
	if p.text.get().Value != "" {
		v |= ExtraText
	}
	if len(p.particles.get()) > 0 {
		v |= ExtraParticles
	}
	if !p.sound.get().IsZero() {
		v |= ExtraSound
	}
	if !p.collisionSound.get().IsZero() {
		v |= ExtraCollisionSound
	}
	if len(p.media.get()) > 0 {
		v |= ExtraMedia
	}
	if p.shape.get().AnimatedMesh {
		v |= ExtraAnimatedMesh
	}
	p.extraParams.Store(v)
}

func (p *Part) scene() Scene {
	g := p.Group()
	if g == nil {
		return nil
	}
	return g.Scene()
}
