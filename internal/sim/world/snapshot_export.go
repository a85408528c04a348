package world

import (
	"github.com/google/uuid"

	"primsim.ai/internal/persistence/snapshot"
	"primsim.ai/internal/sim/wire"
)

// ExportSnapshot captures every live group. Each group is read under its own
// structural lock so its link numbering is consistent.
func (r *Region) ExportSnapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:  snapshot.Version,
			RegionID: r.cfg.ID.String(),
			Tick:     r.tick.Load(),
		},
	}
	for _, g := range r.Groups() {
		if gv, ok := exportGroup(g); ok {
			snap.Groups = append(snap.Groups, gv)
		}
	}
	snap.Header.Groups = len(snap.Groups)
	return snap
}

func exportGroup(g *Group) (snapshot.GroupV1, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.deleted || len(g.parts) == 0 {
		return snapshot.GroupV1{}, false
	}
	gv := snapshot.GroupV1{
		RootID: g.parts[0].id.String(),
		Parts:  make([]snapshot.PartV1, 0, len(g.parts)),
	}
	for i, p := range g.parts {
		gv.Parts = append(gv.Parts, exportPart(p, i+1))
	}
	return gv, true
}

func exportPart(p *Part, link int) snapshot.PartV1 {
	pose := p.LocalPose()
	scale := p.Scale()
	meta := p.Meta()
	shape := p.Shape()
	text := p.Text()
	cam := p.CameraOffsets()

	pv := snapshot.PartV1{
		ID:          p.id.String(),
		LinkNum:     link,
		Pos:         [3]float64{pose.Pos.X, pose.Pos.Y, pose.Pos.Z},
		Rot:         [4]float64{pose.Rot.X, pose.Rot.Y, pose.Rot.Z, pose.Rot.W},
		Scale:       [3]float64{scale.X, scale.Y, scale.Z},
		Status:      uint32(p.Status()),
		Name:        meta.Name,
		Description: meta.Description,
		OwnerID:     idString(meta.OwnerID),
		CreatorID:   idString(meta.CreatorID),
		GroupID:     idString(meta.GroupID),

		AnimatedMesh:   shape.AnimatedMesh,
		ShapeData:      shape.Data,
		TextureEntry:   p.TextureEntry().Bytes(),
		Text:           text.Value,
		TextColor:      [4]float32{text.Color.R, text.Color.G, text.Color.B, text.Color.A},
		ParticleSystem: p.ParticleSystem(),

		CameraEye: [3]float64{cam.Eye.X, cam.Eye.Y, cam.Eye.Z},
		CameraAt:  [3]float64{cam.At.X, cam.At.Y, cam.At.Z},

		Animations:   p.anims.Bytes(),
		AnimationSeq: p.anims.NextSeq(),
	}
	if s := p.Sound(); !s.IsZero() {
		pv.Sound = wire.EncodeSound(s)
	}
	if s := p.CollisionSound(); !s.IsZero() {
		pv.CollisionSound = wire.EncodeCollisionSound(s)
	}
	for _, m := range p.Media() {
		pv.Media = append(pv.Media, snapshot.MediaV1{
			Face: m.Face, URL: m.URL, AutoPlay: m.AutoPlay, Width: m.Width, Height: m.Height,
		})
	}
	return pv
}

func idString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
