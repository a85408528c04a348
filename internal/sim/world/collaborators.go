package world

import (
	"github.com/google/uuid"

	"primsim.ai/internal/sim/world/logic/mathx"
	"primsim.ai/internal/sim/wire"
)

// Scene is the region a group lives in. It routes messages to observing
// agents and receives change events.
type Scene interface {
	ID() uuid.UUID
	// Observers returns the agents currently watching the scene.
	Observers() []Agent
	PostEvent(ev Event)
	Permissions() PermissionSource
}

// Agent is one connected session.
type Agent interface {
	ID() uuid.UUID
	// SendReliable queues msg for guaranteed-delivery transmission.
	SendReliable(msg []byte) error
}

// ScriptHost suspends and resumes script execution scoped to a part.
// Suspend blocks until the scripts have acknowledged.
type ScriptHost interface {
	Suspend(partID uuid.UUID) error
	Resume(partID uuid.UUID) error
}

type Masks struct {
	Base      uint32
	Owner     uint32
	Group     uint32
	Everyone  uint32
	NextOwner uint32
}

type PermissionSource interface {
	Masks(partID uuid.UUID) Masks
}

// PhysicsActor is the physics engine's handle for a part. Calls are forwarded
// as-is.
type PhysicsActor interface {
	Velocity() mathx.Vec3
	SetVelocity(v mathx.Vec3)
	Physical() bool
}

type EventKind int

const (
	// EventPartChanged carries the flags of a field or structural change.
	EventPartChanged EventKind = iota + 1
	// EventPoseChanged is a pose-only change (terse update is enough).
	EventPoseChanged
	// EventGroupAdded announces a group produced by an unlink.
	EventGroupAdded
	// EventGroupRemoved announces a group that was merged away. Part is its
	// former root.
	EventGroupRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventPartChanged:
		return "PART_CHANGED"
	case EventPoseChanged:
		return "POSE_CHANGED"
	case EventGroupAdded:
		return "GROUP_ADDED"
	case EventGroupRemoved:
		return "GROUP_REMOVED"
	default:
		return "UNKNOWN"
	}
}

type Event struct {
	Kind  EventKind
	Part  *Part
	Group *Group
	Flags wire.ChangeFlags
}
