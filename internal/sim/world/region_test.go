package world

import (
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/google/uuid"

	"primsim.ai/internal/persistence/snapshot"
	"primsim.ai/internal/protocol"
	"primsim.ai/internal/sim/world/logic/mathx"
	"primsim.ai/internal/sim/wire"
)

type memEventLog struct {
	mu      sync.Mutex
	entries []EventLogEntry
}

func (m *memEventLog) WriteEvent(e EventLogEntry) error {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

func (m *memEventLog) Kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Kind)
	}
	return out
}

func testRegion(t *testing.T) *Region {
	t.Helper()
	return NewRegion(RegionConfig{Name: "test", TickRateHz: 20, MaxLinks: 16, SnapshotEveryTicks: 2},
		NewScriptRegistry(), nil, log.New(io.Discard, "", 0))
}

func frameTypes(t *testing.T, msgs [][]byte) map[byte]int {
	t.Helper()
	out := map[byte]int{}
	for _, m := range msgs {
		h, _, err := protocol.DecodeHeader(m)
		if err != nil {
			t.Fatalf("DecodeHeader: %v", err)
		}
		out[h.Type]++
	}
	return out
}

func TestRegion_AddGroupAssignsLocalIDsAndFlushesFull(t *testing.T) {
	r := testRegion(t)
	g, parts := standardGroup(t)
	r.AddGroup(g)

	seen := map[uint32]bool{}
	for _, p := range parts {
		if p.LocalID() == 0 || seen[p.LocalID()] {
			t.Fatalf("bad local id %d", p.LocalID())
		}
		seen[p.LocalID()] = true
	}

	obs := newFakeAgent()
	r.obsMu.Lock()
	r.observers[obs.ID()] = obs
	r.obsMu.Unlock()

	if n := r.Flush(); n != len(parts) {
		t.Fatalf("flushed %d want %d", n, len(parts))
	}
	types := frameTypes(t, obs.Messages())
	if types[protocol.TypeObjectUpdate] != len(parts) {
		t.Fatalf("frames=%v", types)
	}
	if n := r.Flush(); n != 0 {
		t.Fatalf("second flush sent %d", n)
	}
}

func TestRegion_PoseChangeIsTerse(t *testing.T) {
	r := testRegion(t)
	g, parts := standardGroup(t)
	r.AddGroup(g)
	r.Flush()
	obs := newFakeAgent()
	r.AddObserver(obs)
	base := len(obs.Messages())

	parts[2].SetLocalPose(pose(0, 5, 0, mathx.Identity))
	if n := r.Flush(); n != 1 {
		t.Fatalf("flushed %d", n)
	}
	types := frameTypes(t, obs.Messages()[base:])
	if types[protocol.TypeTerseUpdate] != 1 || types[protocol.TypeObjectUpdate] != 0 {
		t.Fatalf("frames=%v", types)
	}
}

func TestRegion_FlagsAccumulateUntilFlush(t *testing.T) {
	r := testRegion(t)
	g, parts := standardGroup(t)
	r.AddGroup(g)
	r.Flush()

	p := parts[1]
	p.SetScale(mathx.Vec3{X: 1, Y: 1, Z: 1})
	p.SetShape(Shape{Data: []byte{1}})
	p.SetOwner(uuid.New())
	flags, ok := r.PendingFlags(p)
	want := wire.ChangedScale | wire.ChangedShape | wire.ChangedOwner | wire.ChangedPermissions
	if !ok || flags != want {
		t.Fatalf("flags=%v want %v", flags, want)
	}

	obs := newFakeAgent()
	r.obsMu.Lock()
	r.observers[obs.ID()] = obs
	r.obsMu.Unlock()
	r.Flush()
	types := frameTypes(t, obs.Messages())
	if types[protocol.TypeObjectUpdate] != 1 || types[protocol.TypeObjectProperties] != 1 {
		t.Fatalf("frames=%v", types)
	}
	if _, ok := r.PendingFlags(p); ok {
		t.Fatalf("pending not cleared")
	}
}

func TestRegion_UnlinkRegistersNewGroups(t *testing.T) {
	r := testRegion(t)
	logs := &memEventLog{}
	r.AddEventLogger(logs)
	g, parts := standardGroup(t)
	r.AddGroup(g)
	r.Flush()

	res, err := g.UnlinkMany([]uuid.UUID{parts[0].ID(), parts[2].ID()})
	if err != nil {
		t.Fatalf("UnlinkMany: %v", err)
	}
	if n := len(r.Groups()); n != 3 {
		t.Fatalf("region groups=%d want 3", n)
	}
	if p, ok := r.FindPart(parts[3].ID()); !ok || p.Group() != res.Survivors {
		t.Fatalf("FindPart did not locate survivor")
	}
	for _, p := range parts {
		flags, ok := r.PendingFlags(p)
		if !ok || !flags.Has(wire.ChangedLink) {
			t.Fatalf("part %s pending=%v ok=%v", p.ID(), flags, ok)
		}
	}
	var added, changed int
	for _, k := range logs.Kinds() {
		switch k {
		case "GROUP_ADDED":
			added++
		case "PART_CHANGED":
			changed++
		}
	}
	if added != 3 || changed != 3 {
		t.Fatalf("log kinds=%v", logs.Kinds())
	}
}

func TestRegion_LinkRemovesMergedGroup(t *testing.T) {
	r := testRegion(t)
	a, _ := standardGroup(t)
	b, _ := buildGroup(t, pose(3, 3, 3, mathx.Identity))
	r.AddGroup(a)
	r.AddGroup(b)
	if err := a.Link(b); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if gs := r.Groups(); len(gs) != 1 || gs[0] != a {
		t.Fatalf("groups=%d", len(gs))
	}
}

func TestRegion_MaxLinksFromConfig(t *testing.T) {
	r := NewRegion(RegionConfig{MaxLinks: 4}, nil, nil, log.New(io.Discard, "", 0))
	a, _ := standardGroup(t)
	b, _ := buildGroup(t, pose(0, 0, 0, mathx.Identity))
	r.AddGroup(a)
	r.AddGroup(b)
	if err := a.Link(b); !errors.Is(err, ErrLinksetTooLarge) {
		t.Fatalf("expected ErrLinksetTooLarge, got %v", err)
	}
}

func TestRegion_DeleteGroupKillsAndBroadcasts(t *testing.T) {
	r := testRegion(t)
	g, parts := standardGroup(t)
	r.AddGroup(g)
	obs := newFakeAgent()
	r.AddObserver(obs)
	base := len(obs.Messages())

	r.DeleteGroup(g)
	r.DeleteGroup(g)
	for _, p := range parts {
		if !p.Updates().Killed() {
			t.Fatalf("part %s not killed", p.ID())
		}
		if p.Group() != nil {
			t.Fatalf("part still grouped")
		}
	}
	msgs := obs.Messages()[base:]
	if len(msgs) != 1 {
		t.Fatalf("messages=%d want 1 kill frame", len(msgs))
	}
	h, payload, err := protocol.DecodeHeader(msgs[0])
	if err != nil || h.Type != protocol.TypeKillObject {
		t.Fatalf("header=%+v err=%v", h, err)
	}
	ids, err := protocol.DecodeKillObject(payload)
	if err != nil || len(ids) != len(parts) {
		t.Fatalf("ids=%v err=%v", ids, err)
	}
	if n := r.Flush(); n != 0 {
		t.Fatalf("flush after delete sent %d", n)
	}
	if len(r.Groups()) != 0 {
		t.Fatalf("group still registered")
	}
}

func TestRegion_LateObserverGetsState(t *testing.T) {
	r := testRegion(t)
	g, parts := standardGroup(t)
	r.AddGroup(g)
	parts[1].SetShape(Shape{AnimatedMesh: true})
	parts[1].Animations().Play(uuid.New())
	r.Flush()

	late := newFakeAgent()
	r.AddObserver(late)
	types := frameTypes(t, late.Messages())
	if types[protocol.TypeObjectUpdate] != 4 || types[protocol.TypeObjectProperties] != 4 || types[protocol.TypeAnimationUpdate] != 1 {
		t.Fatalf("frames=%v", types)
	}
	r.RemoveObserver(late.ID())
	if len(r.Observers()) != 0 {
		t.Fatalf("observer not removed")
	}
}

func TestRegion_SnapshotRoundTrip(t *testing.T) {
	r := testRegion(t)
	g, parts := standardGroup(t)
	r.AddGroup(g)
	p := parts[2]
	p.SetShape(Shape{AnimatedMesh: true, Data: []byte{7, 7}})
	p.SetText(Text{Value: "sign", Color: Color4{1, 0, 0, 1}})
	p.SetSound(wire.Sound{ID: uuid.New(), Gain: 0.5, Radius: 20, Flags: wire.SoundLoop})
	p.SetCollisionSound(wire.CollisionSound{ID: uuid.New(), Volume: 0.25})
	p.SetMedia([]MediaEntry{{Face: 2, URL: "http://example.invalid/m", Width: 640, Height: 480}})
	p.SetName("sign")
	p.SetStatus(StatusBlockGrab, true)
	te := p.TextureEntry()
	f := te.Default
	f.Color = Color4{0, 1, 0, 1}
	te.SetFace(4, f)
	p.SetTextureEntry(te)
	a1, a2 := uuid.New(), uuid.New()
	p.Animations().Play(a1)
	p.Animations().Play(a2)
	p.Animations().Stop(a1)

	snap := r.ExportSnapshot()
	if snap.Header.Groups != 1 || len(snap.Groups[0].Parts) != 4 {
		t.Fatalf("snapshot header=%+v", snap.Header)
	}

	r2 := testRegion(t)
	if err := r2.ImportSnapshot(snap); err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}
	q, ok := r2.FindPart(p.ID())
	if !ok {
		t.Fatalf("part missing after import")
	}
	if q.LinkNum() != 3 || q.Text() != p.Text() || q.Sound() != p.Sound() || q.CollisionSound() != p.CollisionSound() {
		t.Fatalf("fields differ after import")
	}
	if q.Meta().Name != "sign" || !q.HasStatus(StatusBlockGrab) || !q.Shape().AnimatedMesh {
		t.Fatalf("meta/status/shape differ")
	}
	if d := DiffTextureEntries(p.TextureEntry(), q.TextureEntry()); d != 0 {
		t.Fatalf("texture differs: %v", d)
	}
	if len(q.Media()) != 1 || q.Media()[0].URL != "http://example.invalid/m" {
		t.Fatalf("media=%+v", q.Media())
	}
	got := q.Animations().Entries()
	if len(got) != 1 || got[0].ID != a2 || got[0].Seq != 3 {
		t.Fatalf("animations=%+v", got)
	}
	// The counter must not hand out a sequence number already used.
	q.Animations().Play(uuid.New())
	if e := q.Animations().Entries(); e[1].Seq != 4 {
		t.Fatalf("next seq=%d want 4", e[1].Seq)
	}
	if q.ExtraParams() != p.ExtraParams() {
		t.Fatalf("extra params %b want %b", q.ExtraParams(), p.ExtraParams())
	}
	for _, orig := range parts {
		imp, _ := r2.FindPart(orig.ID())
		if !imp.AbsolutePose().ApproxEqual(orig.AbsolutePose(), 1e-9) {
			t.Fatalf("pose differs for %s", orig.ID())
		}
	}
}

func TestRegion_ImportMissingRoot(t *testing.T) {
	r := testRegion(t)
	g, _ := standardGroup(t)
	r.AddGroup(g)
	snap := r.ExportSnapshot()
	snap.Groups[0].RootID = uuid.NewString()

	r2 := testRegion(t)
	err := r2.ImportSnapshot(snap)
	var knf *snapshot.KeyNotFoundError
	if !errors.As(err, &knf) {
		t.Fatalf("expected KeyNotFoundError, got %v", err)
	}
	if knf.Key != snap.Groups[0].RootID {
		t.Fatalf("key=%q", knf.Key)
	}
	if len(r2.Groups()) != 0 {
		t.Fatalf("partial import")
	}
}

func TestRegion_ImportRejectsBadRecords(t *testing.T) {
	r := testRegion(t)
	g, _ := standardGroup(t)
	r.AddGroup(g)

	cases := []struct {
		name   string
		mutate func(s *snapshot.SnapshotV1)
	}{
		{"short sound", func(s *snapshot.SnapshotV1) { s.Groups[0].Parts[1].Sound = make([]byte, 32) }},
		{"ragged animations", func(s *snapshot.SnapshotV1) { s.Groups[0].Parts[2].Animations = make([]byte, 21) }},
		{"long collision sound", func(s *snapshot.SnapshotV1) { s.Groups[0].Parts[3].CollisionSound = make([]byte, 25) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap := r.ExportSnapshot()
			tc.mutate(&snap)
			r2 := testRegion(t)
			if err := r2.ImportSnapshot(snap); !errors.Is(err, wire.ErrBadLength) {
				t.Fatalf("expected ErrBadLength, got %v", err)
			}
			if len(r2.Groups()) != 0 {
				t.Fatalf("partial import")
			}
		})
	}
}

func TestRegion_StepSendsSnapshots(t *testing.T) {
	r := testRegion(t)
	g, _ := standardGroup(t)
	r.AddGroup(g)
	sink := make(chan snapshot.SnapshotV1, 1)
	r.SetSnapshotSink(sink)

	r.step()
	select {
	case <-sink:
		t.Fatalf("snapshot on tick 1")
	default:
	}
	r.step()
	select {
	case s := <-sink:
		if s.Header.Tick != 2 || len(s.Groups) != 1 {
			t.Fatalf("header=%+v", s.Header)
		}
	default:
		t.Fatalf("no snapshot on tick 2")
	}
	// A full sink drops the snapshot instead of blocking the tick.
	sink <- snapshot.SnapshotV1{}
	r.step()
	r.step()
	if r.CurrentTick() != 4 {
		t.Fatalf("tick=%d", r.CurrentTick())
	}
}

func TestRegion_AddLinkAfterAddGroup(t *testing.T) {
	r := testRegion(t)
	g, parts := standardGroup(t)
	r.AddGroup(g)
	r.Flush()
	obs := newFakeAgent()
	r.obsMu.Lock()
	r.observers[obs.ID()] = obs
	r.obsMu.Unlock()

	p := NewPart(uuid.New(), pose(0, 0, 3, mathx.Identity))
	g.AddLink(p)

	if p.LocalID() == 0 {
		t.Fatalf("new part has no local id")
	}
	for _, q := range parts {
		if q.LocalID() == p.LocalID() {
			t.Fatalf("local id %d reused", p.LocalID())
		}
	}
	flags, ok := r.PendingFlags(p)
	if !ok || flags&wire.ChangedLink == 0 {
		t.Fatalf("new part pending=%v flags=%v", ok, flags)
	}
	if n := r.Flush(); n != g.Size() {
		t.Fatalf("flushed %d want %d", n, g.Size())
	}
	if types := frameTypes(t, obs.Messages()); types[protocol.TypeObjectUpdate] != g.Size() {
		t.Fatalf("frames=%v", types)
	}
}

type tickLog struct {
	memEventLog
	ended []uint64
}

func (l *tickLog) EndTick(tick uint64) error {
	l.mu.Lock()
	l.ended = append(l.ended, tick)
	l.mu.Unlock()
	return nil
}

func TestRegion_StepEndsTickAndNamesMergedGroup(t *testing.T) {
	r := testRegion(t)
	logs := &tickLog{}
	r.AddEventLogger(logs)

	a, _ := standardGroup(t)
	b, bParts := buildGroup(t, pose(3, 3, 3, mathx.Identity))
	r.AddGroup(a)
	r.AddGroup(b)
	r.step()
	r.step()

	if err := a.Link(b); err != nil {
		t.Fatalf("Link: %v", err)
	}
	var removed *EventLogEntry
	logs.mu.Lock()
	for i := range logs.entries {
		if logs.entries[i].Kind == "GROUP_REMOVED" {
			removed = &logs.entries[i]
		}
	}
	ended := append([]uint64(nil), logs.ended...)
	logs.mu.Unlock()

	if removed == nil || removed.PartID != bParts[0].ID().String() || removed.GroupID != "" || removed.Tick != 2 {
		t.Fatalf("removed entry=%+v", removed)
	}
	if len(ended) != 2 || ended[0] != 0 || ended[1] != 1 {
		t.Fatalf("ended=%v", ended)
	}
}
