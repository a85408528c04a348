package world

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"primsim.ai/internal/persistence/snapshot"
	"primsim.ai/internal/sim/world/logic/mathx"
	"primsim.ai/internal/sim/wire"
)

// ImportSnapshot rebuilds every group of snap and adds it to the region.
// Nothing is added if any group fails to decode.
func (r *Region) ImportSnapshot(snap snapshot.SnapshotV1) error {
	groups := make([]*Group, 0, len(snap.Groups))
	for i, gv := range snap.Groups {
		g, err := importGroup(gv)
		if err != nil {
			return fmt.Errorf("group %d: %w", i, err)
		}
		groups = append(groups, g)
	}
	r.tick.Store(snap.Header.Tick)
	for _, g := range groups {
		r.AddGroup(g)
	}
	return nil
}

func importGroup(gv snapshot.GroupV1) (*Group, error) {
	if len(gv.Parts) == 0 {
		return nil, fmt.Errorf("empty group %q", gv.RootID)
	}
	pvs := make([]snapshot.PartV1, len(gv.Parts))
	copy(pvs, gv.Parts)
	sort.SliceStable(pvs, func(i, j int) bool { return pvs[i].LinkNum < pvs[j].LinkNum })

	rootAt := -1
	for i, pv := range pvs {
		if pv.ID == gv.RootID {
			rootAt = i
			break
		}
	}
	if rootAt < 0 {
		return nil, &snapshot.KeyNotFoundError{Kind: "root part", Key: gv.RootID}
	}
	if rootAt != 0 {
		return nil, fmt.Errorf("root %s has link number %d", gv.RootID, pvs[rootAt].LinkNum)
	}

	parts := make([]*Part, 0, len(pvs))
	seen := map[uuid.UUID]bool{}
	for i, pv := range pvs {
		if pv.LinkNum != i+1 {
			return nil, fmt.Errorf("part %s: link number %d, want %d", pv.ID, pv.LinkNum, i+1)
		}
		p, err := importPart(pv)
		if err != nil {
			return nil, fmt.Errorf("part %s: %w", pv.ID, err)
		}
		if seen[p.id] {
			return nil, fmt.Errorf("duplicate part %s", p.id)
		}
		seen[p.id] = true
		parts = append(parts, p)
	}
	g := NewGroup(parts[0])
	for _, p := range parts[1:] {
		g.AddLink(p)
	}
	return g, nil
}

func parseOptionalID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}

func importPart(pv snapshot.PartV1) (*Part, error) {
	id, err := uuid.Parse(pv.ID)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	var meta PartMeta
	meta.Name, meta.Description = pv.Name, pv.Description
	for _, f := range []struct {
		dst *uuid.UUID
		src string
	}{{&meta.OwnerID, pv.OwnerID}, {&meta.CreatorID, pv.CreatorID}, {&meta.GroupID, pv.GroupID}} {
		if *f.dst, err = parseOptionalID(f.src); err != nil {
			return nil, fmt.Errorf("meta id %q: %w", f.src, err)
		}
	}

	p := NewPart(id, mathx.Pose{
		Pos: mathx.Vec3{X: pv.Pos[0], Y: pv.Pos[1], Z: pv.Pos[2]},
		Rot: mathx.Quat{X: pv.Rot[0], Y: pv.Rot[1], Z: pv.Rot[2], W: pv.Rot[3]},
	})
	p.scale = mathx.Vec3{X: pv.Scale[0], Y: pv.Scale[1], Z: pv.Scale[2]}
	p.status.Store(pv.Status)
	p.meta.swap(meta)
	p.shape.swap(Shape{AnimatedMesh: pv.AnimatedMesh, Data: pv.ShapeData})

	if len(pv.TextureEntry) > 0 {
		te, err := DecodeTextureEntry(pv.TextureEntry)
		if err != nil {
			return nil, fmt.Errorf("texture entry: %w", err)
		}
		p.texture.swap(te)
	}
	p.text.swap(Text{
		Value: truncateText(pv.Text),
		Color: Color4{pv.TextColor[0], pv.TextColor[1], pv.TextColor[2], pv.TextColor[3]},
	})
	p.particles.swap(pv.ParticleSystem)
	if len(pv.Sound) > 0 {
		s, err := wire.DecodeSound(pv.Sound)
		if err != nil {
			return nil, err
		}
		p.sound.swap(s)
	}
	if len(pv.CollisionSound) > 0 {
		s, err := wire.DecodeCollisionSound(pv.CollisionSound)
		if err != nil {
			return nil, err
		}
		p.collisionSound.swap(s)
	}
	if len(pv.Media) > 0 {
		media := make([]MediaEntry, 0, len(pv.Media))
		for _, m := range pv.Media {
			media = append(media, MediaEntry{Face: m.Face, URL: m.URL, AutoPlay: m.AutoPlay, Width: m.Width, Height: m.Height})
		}
		p.media.swap(media)
	}
	p.camera.swap(CameraOffsets{
		Eye: mathx.Vec3{X: pv.CameraEye[0], Y: pv.CameraEye[1], Z: pv.CameraEye[2]},
		At:  mathx.Vec3{X: pv.CameraAt[0], Y: pv.CameraAt[1], Z: pv.CameraAt[2]},
	})

	anims, err := wire.DecodeAnimations(pv.Animations)
	if err != nil {
		return nil, fmt.Errorf("animations: %w", err)
	}
	next := pv.AnimationSeq
	for _, a := range anims {
		p.anims.Restore(a.ID, a.Seq)
		if a.Seq > next {
			next = a.Seq
		}
	}
	p.anims.setNextSeq(next)
	p.refreshExtraParams()
	return p, nil
}
