package world

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"

	"primsim.ai/internal/sim/world/logic/mathx"
)

type fakeScene struct {
	id        uuid.UUID
	mu        sync.Mutex
	events    []Event
	observers []Agent
}

func newFakeScene(observers ...Agent) *fakeScene {
	return &fakeScene{id: uuid.New(), observers: observers}
}

func (s *fakeScene) ID() uuid.UUID                 { return s.id }
func (s *fakeScene) Observers() []Agent            { return s.observers }
func (s *fakeScene) Permissions() PermissionSource { return FullPermissions{} }

func (s *fakeScene) PostEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *fakeScene) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

type fakeAgent struct {
	id   uuid.UUID
	mu   sync.Mutex
	msgs [][]byte
}

func newFakeAgent() *fakeAgent { return &fakeAgent{id: uuid.New()} }

func (a *fakeAgent) ID() uuid.UUID { return a.id }

func (a *fakeAgent) SendReliable(msg []byte) error {
	a.mu.Lock()
	a.msgs = append(a.msgs, msg)
	a.mu.Unlock()
	return nil
}

func (a *fakeAgent) Messages() [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([][]byte, len(a.msgs))
	copy(out, a.msgs)
	return out
}

// recordingScripts logs suspend/resume calls and can refuse to suspend one part.
type recordingScripts struct {
	mu      sync.Mutex
	calls   []string
	failFor uuid.UUID
	open    map[uuid.UUID]int
}

func newRecordingScripts() *recordingScripts {
	return &recordingScripts{open: map[uuid.UUID]int{}}
}

func (r *recordingScripts) Suspend(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == r.failFor {
		return errors.New("script engine refused")
	}
	r.calls = append(r.calls, "suspend:"+id.String())
	r.open[id]++
	return nil
}

func (r *recordingScripts) Resume(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "resume:"+id.String())
	r.open[id]--
	if r.open[id] == 0 {
		delete(r.open, id)
	}
	return nil
}

func (r *recordingScripts) OpenSuspensions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}

func (r *recordingScripts) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func pose(x, y, z float64, rot mathx.Quat) mathx.Pose {
	return mathx.Pose{Pos: mathx.Vec3{X: x, Y: y, Z: z}, Rot: rot}
}

// buildGroup creates a group whose root sits at root and whose children use
// the given local poses.
func buildGroup(t *testing.T, root mathx.Pose, children ...mathx.Pose) (*Group, []*Part) {
	t.Helper()
	parts := []*Part{NewPart(uuid.New(), root)}
	g := NewGroup(parts[0])
	for _, c := range children {
		p := NewPart(uuid.New(), c)
		g.AddLink(p)
		parts = append(parts, p)
	}
	return g, parts
}

// standardGroup is a rotated root with three children.
func standardGroup(t *testing.T) (*Group, []*Part) {
	t.Helper()
	return buildGroup(t,
		pose(10, 20, 30, mathx.AxisAngle(mathx.Vec3{Z: 1}, math.Pi/2)),
		pose(1, 0, 0, mathx.AxisAngle(mathx.Vec3{X: 1}, 0.3)),
		pose(0, 2, 0.5, mathx.Identity),
		pose(-1, -1, 3, mathx.AxisAngle(mathx.Vec3{Y: 1}, 1.1)),
	)
}

func absolutePoses(parts []*Part) map[uuid.UUID]mathx.Pose {
	out := map[uuid.UUID]mathx.Pose{}
	for _, p := range parts {
		out[p.ID()] = p.AbsolutePose()
	}
	return out
}

func assertPosesPreserved(t *testing.T, before map[uuid.UUID]mathx.Pose, parts []*Part) {
	t.Helper()
	for _, p := range parts {
		want, ok := before[p.ID()]
		if !ok {
			t.Fatalf("no recorded pose for %s", p.ID())
		}
		if got := p.AbsolutePose(); !got.ApproxEqual(want, 1e-9) {
			t.Fatalf("part %s moved: got %+v want %+v", p.ID(), got, want)
		}
	}
}

func assertDense(t *testing.T, g *Group) {
	t.Helper()
	for i, p := range g.Parts() {
		pg, n := p.Link()
		if pg != g || n != i+1 {
			t.Fatalf("part %d of group: link=(%p,%d) want (%p,%d)", i, pg, n, g, i+1)
		}
	}
}
