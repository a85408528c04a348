package world

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestScriptRegistry_NestedSuspension(t *testing.T) {
	r := NewScriptRegistry()
	id := uuid.New()
	_ = r.Suspend(id)
	_ = r.Suspend(id)
	_ = r.Resume(id)
	if !r.Suspended(id) {
		t.Fatalf("one suspension still open")
	}
	_ = r.Resume(id)
	if r.Suspended(id) || r.SuspendedCount() != 0 {
		t.Fatalf("still suspended")
	}
	// Extra resumes are harmless.
	_ = r.Resume(id)
	if r.SuspendedCount() != 0 {
		t.Fatalf("count=%d", r.SuspendedCount())
	}
}

func TestScriptRegistry_WaitRunnable(t *testing.T) {
	r := NewScriptRegistry()
	id := uuid.New()
	_ = r.Suspend(id)
	done := make(chan struct{})
	go func() {
		r.WaitRunnable(id)
		close(done)
	}()
	select {
	case <-done:
		t.Fatalf("WaitRunnable returned while suspended")
	case <-time.After(20 * time.Millisecond):
	}
	_ = r.Resume(id)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("WaitRunnable did not return after resume")
	}
}

func TestScriptRegistry_UnlinkLeavesNothingSuspended(t *testing.T) {
	r := testRegion(t)
	g, parts := standardGroup(t)
	r.AddGroup(g)
	if _, err := g.UnlinkRoot(); err != nil {
		t.Fatalf("UnlinkRoot: %v", err)
	}
	reg := r.scripts.(*ScriptRegistry)
	if reg.SuspendedCount() != 0 || reg.Suspended(parts[0].ID()) {
		t.Fatalf("scripts left suspended")
	}
}
