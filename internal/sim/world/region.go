package world

import (
	"context"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"primsim.ai/internal/persistence/snapshot"
	"primsim.ai/internal/protocol"
	"primsim.ai/internal/sim/wire"
)

type RegionConfig struct {
	ID                 uuid.UUID
	Name               string
	TickRateHz         int
	SnapshotEveryTicks int

	// MaxLinks caps the size of a linkset built by Group.Link (0 = no cap).
	MaxLinks int
}

// EventLogger receives one entry per region event. Implemented in
// internal/persistence/*.
type EventLogger interface {
	WriteEvent(entry EventLogEntry) error
}

// TickEnder is implemented by event loggers that batch per tick. EndTick is
// called once every event of tick has been written.
type TickEnder interface {
	EndTick(tick uint64) error
}

type EventLogEntry struct {
	Tick    uint64 `json:"tick"`
	Kind    string `json:"kind"`
	PartID  string `json:"part_id,omitempty"`
	GroupID string `json:"group_id,omitempty"`
	LinkNum int    `json:"link_num,omitempty"`
	Size    int    `json:"size,omitempty"`
	Flags   uint32 `json:"flags,omitempty"`
	Changed string `json:"changed,omitempty"`
}

// FullPermissions grants every mask bit; used when no permission source is
// configured.
type FullPermissions struct{}

func (FullPermissions) Masks(uuid.UUID) Masks {
	const all = 0x7FFFFFFF
	return Masks{Base: all, Owner: all, Group: all, Everyone: all, NextOwner: all}
}

type pendingUpdate struct {
	flags wire.ChangeFlags
	full  bool
	props bool
}

// Region is the scene groups live in. It accumulates per-part changes and
// sends them to observers on every flush.
type Region struct {
	cfg     RegionConfig
	log     *log.Logger
	scripts ScriptHost
	perms   PermissionSource

	tick        atomic.Uint64
	nextLocalID atomic.Uint32
	closed      atomic.Bool

	mu     sync.RWMutex
	groups map[*Group]struct{}

	obsMu     sync.RWMutex
	observers map[uuid.UUID]Agent

	pendMu  sync.Mutex
	pending map[*Part]*pendingUpdate

	loggers []EventLogger

	// Optional snapshot sink. Writing happens off the tick loop.
	snapshotSink chan<- snapshot.SnapshotV1
}

func NewRegion(cfg RegionConfig, scripts ScriptHost, perms PermissionSource, logger *log.Logger) *Region {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 10
	}
	if perms == nil {
		perms = FullPermissions{}
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[region] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Region{
		cfg:       cfg,
		log:       logger,
		scripts:   scripts,
		perms:     perms,
		groups:    map[*Group]struct{}{},
		observers: map[uuid.UUID]Agent{},
		pending:   map[*Part]*pendingUpdate{},
	}
}

func (r *Region) ID() uuid.UUID                 { return r.cfg.ID }
func (r *Region) Config() RegionConfig          { return r.cfg }
func (r *Region) Permissions() PermissionSource { return r.perms }
func (r *Region) CurrentTick() uint64           { return r.tick.Load() }

// AddEventLogger registers a sink for region events. Call before Run.
func (r *Region) AddEventLogger(l EventLogger) {
	if l != nil {
		r.loggers = append(r.loggers, l)
	}
}

func (r *Region) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { r.snapshotSink = ch }

func (r *Region) env() groupEnv {
	return groupEnv{scene: r, scripts: r.scripts, maxLinks: r.cfg.MaxLinks}
}

// AddGroup places g in the region and schedules a full update of its parts.
func (r *Region) AddGroup(g *Group) {
	g.setEnvironment(r.env())
	r.register(g)
	r.logEvent("GROUP_ADDED", nil, g, 0)
}

func (r *Region) register(g *Group) {
	r.mu.Lock()
	r.groups[g] = struct{}{}
	r.mu.Unlock()
	for _, p := range g.Parts() {
		r.assignLocalID(p)
		r.queue(p, 0, true)
	}
}

// assignLocalID gives p a region-local id the first time the region sees it.
func (r *Region) assignLocalID(p *Part) {
	if p.LocalID() == 0 {
		p.localID.CompareAndSwap(0, r.nextLocalID.Add(1))
	}
}

// DeleteGroup removes g and every part in it. Each part's update snapshot is
// killed before observers are told to drop it.
func (r *Region) DeleteGroup(g *Group) {
	g.mu.Lock()
	if g.deleted {
		g.mu.Unlock()
		return
	}
	parts := g.markDeletedLocked()
	g.mu.Unlock()

	r.mu.Lock()
	delete(r.groups, g)
	r.mu.Unlock()

	ids := make([]uint32, 0, len(parts))
	r.pendMu.Lock()
	for _, p := range parts {
		p.updates.Kill()
		delete(r.pending, p)
		ids = append(ids, p.LocalID())
	}
	r.pendMu.Unlock()

	r.broadcast(protocol.EncodeKillObject(r.cfg.ID, ids))
	if len(parts) > 0 {
		r.logEvent("GROUP_DELETED", parts[0], nil, 0)
	}
}

// Groups returns the live groups ordered by root id.
func (r *Region) Groups() []*Group {
	r.mu.RLock()
	out := make([]*Group, 0, len(r.groups))
	for g := range r.groups {
		out = append(out, g)
	}
	r.mu.RUnlock()
	ids := make(map[*Group]string, len(out))
	for _, g := range out {
		ids[g] = g.ID().String()
	}
	sort.Slice(out, func(i, j int) bool { return ids[out[i]] < ids[out[j]] })
	return out
}

func (r *Region) FindPart(id uuid.UUID) (*Part, bool) {
	r.mu.RLock()
	groups := make([]*Group, 0, len(r.groups))
	for g := range r.groups {
		groups = append(groups, g)
	}
	r.mu.RUnlock()
	for _, g := range groups {
		if p, ok := g.Part(id); ok {
			return p, true
		}
	}
	return nil, false
}

// PostEvent implements Scene.
func (r *Region) PostEvent(ev Event) {
	switch ev.Kind {
	case EventGroupAdded:
		if ev.Group != nil {
			r.register(ev.Group)
			r.logEvent("GROUP_ADDED", nil, ev.Group, 0)
		}
	case EventGroupRemoved:
		if ev.Group != nil {
			r.mu.Lock()
			delete(r.groups, ev.Group)
			r.mu.Unlock()
			r.logEvent("GROUP_REMOVED", ev.Part, ev.Group, 0)
		}
	case EventPoseChanged:
		if ev.Part != nil {
			r.queue(ev.Part, 0, false)
		}
	case EventPartChanged:
		if ev.Part == nil {
			return
		}
		if ev.Flags&wire.ChangedLink != 0 && ev.Group != nil {
			// Link numbers and parents of every member may have moved.
			for _, p := range ev.Group.Parts() {
				r.assignLocalID(p)
				r.queue(p, ev.Flags, true)
			}
		} else {
			r.queue(ev.Part, ev.Flags, true)
		}
		r.logEvent("PART_CHANGED", ev.Part, ev.Group, ev.Flags)
	}
}

func (r *Region) queue(p *Part, flags wire.ChangeFlags, full bool) {
	r.pendMu.Lock()
	defer r.pendMu.Unlock()
	u := r.pending[p]
	if u == nil {
		u = &pendingUpdate{}
		r.pending[p] = u
	}
	u.flags |= flags
	u.full = u.full || full
	u.props = u.props || flags&(wire.ChangedOwner|wire.ChangedPermissions) != 0
}

// PendingFlags returns the flags accumulated for a part since the last flush.
func (r *Region) PendingFlags(p *Part) (wire.ChangeFlags, bool) {
	r.pendMu.Lock()
	defer r.pendMu.Unlock()
	u, ok := r.pending[p]
	if !ok {
		return 0, false
	}
	return u.flags, true
}

// Flush encodes and sends every pending update. It returns the number of
// parts sent.
func (r *Region) Flush() int {
	r.pendMu.Lock()
	pending := r.pending
	r.pending = map[*Part]*pendingUpdate{}
	r.pendMu.Unlock()
	if len(pending) == 0 {
		return 0
	}

	parts := make([]*Part, 0, len(pending))
	for p := range pending {
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].LocalID() < parts[j].LocalID() })

	sent := 0
	for _, p := range parts {
		u := pending[p]
		var frames [][]byte
		if u.full {
			if b := p.updates.FullUpdate(); b != nil {
				frames = append(frames, protocol.EncodeObjectUpdate(protocol.TypeObjectUpdate, r.cfg.ID, b))
			}
		} else if b := p.updates.TerseUpdate(); b != nil {
			frames = append(frames, protocol.EncodeObjectUpdate(protocol.TypeTerseUpdate, r.cfg.ID, b))
		}
		if u.props {
			if b := p.updates.PropertiesUpdate(); b != nil {
				frames = append(frames, protocol.EncodeObjectUpdate(protocol.TypeObjectProperties, r.cfg.ID, b))
			}
		}
		if len(frames) == 0 {
			continue
		}
		for _, f := range frames {
			r.broadcast(f)
		}
		sent++
	}
	return sent
}

func (r *Region) broadcast(msg []byte) {
	for _, ag := range r.Observers() {
		if err := ag.SendReliable(msg); err != nil {
			r.log.Printf("send to %s: %v", ag.ID(), err)
		}
	}
}

// Observers implements Scene. A closed region has no observers.
func (r *Region) Observers() []Agent {
	if r.closed.Load() {
		return nil
	}
	r.obsMu.RLock()
	defer r.obsMu.RUnlock()
	out := make([]Agent, 0, len(r.observers))
	for _, a := range r.observers {
		out = append(out, a)
	}
	return out
}

// AddObserver registers an agent and brings it up to date: a full update and
// properties for every part, then the animation state of animated parts.
func (r *Region) AddObserver(a Agent) {
	r.obsMu.Lock()
	r.observers[a.ID()] = a
	r.obsMu.Unlock()

	for _, g := range r.Groups() {
		for _, p := range g.Parts() {
			if b := p.updates.FullUpdate(); b != nil {
				_ = a.SendReliable(protocol.EncodeObjectUpdate(protocol.TypeObjectUpdate, r.cfg.ID, b))
			}
			if b := p.updates.PropertiesUpdate(); b != nil {
				_ = a.SendReliable(protocol.EncodeObjectUpdate(protocol.TypeObjectProperties, r.cfg.ID, b))
			}
			if len(p.anims.Entries()) > 0 {
				p.anims.SendTo(a)
			}
		}
	}
}

func (r *Region) RemoveObserver(id uuid.UUID) {
	r.obsMu.Lock()
	delete(r.observers, id)
	r.obsMu.Unlock()
}

func (r *Region) logEvent(kind string, p *Part, g *Group, flags wire.ChangeFlags) {
	if len(r.loggers) == 0 {
		return
	}
	e := EventLogEntry{Tick: r.tick.Load(), Kind: kind, Flags: uint32(flags)}
	if flags != 0 {
		e.Changed = flags.String()
	}
	if p != nil {
		e.PartID = p.id.String()
		e.LinkNum = p.LinkNum()
	}
	// A merged-away group has no parts left and no id of its own.
	if g != nil && g.Size() > 0 {
		e.GroupID = g.ID().String()
		e.Size = g.Size()
	}
	for _, l := range r.loggers {
		if err := l.WriteEvent(e); err != nil {
			r.log.Printf("event log: %v", err)
		}
	}
}

// endTick tells batching loggers that no more events of tick will arrive.
func (r *Region) endTick(tick uint64) {
	for _, l := range r.loggers {
		if te, ok := l.(TickEnder); ok {
			if err := te.EndTick(tick); err != nil {
				r.log.Printf("event log: end tick %d: %v", tick, err)
			}
		}
	}
}

// Run flushes pending updates every tick until ctx is done.
func (r *Region) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(r.cfg.TickRateHz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closed.Store(true)
			return
		case <-ticker.C:
			r.step()
		}
	}
}

func (r *Region) step() {
	tick := r.tick.Add(1)
	r.endTick(tick - 1)
	r.Flush()
	if r.snapshotSink != nil && r.cfg.SnapshotEveryTicks > 0 && tick%uint64(r.cfg.SnapshotEveryTicks) == 0 {
		snap := r.ExportSnapshot()
		select {
		case r.snapshotSink <- snap:
		default:
			r.log.Printf("snapshot sink busy; skipped tick %d", tick)
		}
	}
}
