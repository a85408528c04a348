package world

import (
	"encoding/binary"
	"math"

	"primsim.ai/internal/sim/world/logic/mathx"
	"primsim.ai/internal/sim/wire"
)

type encoder struct{ b []byte }

func (e *encoder) u8(v uint8)   { e.b = append(e.b, v) }
func (e *encoder) u16(v uint16) { e.b = binary.LittleEndian.AppendUint16(e.b, v) }
func (e *encoder) u32(v uint32) { e.b = binary.LittleEndian.AppendUint32(e.b, v) }
func (e *encoder) f32(v float64) {
	e.b = binary.LittleEndian.AppendUint32(e.b, math.Float32bits(float32(v)))
}
func (e *encoder) raw(b []byte) { e.b = append(e.b, b...) }

func (e *encoder) vec(v mathx.Vec3) {
	e.f32(v.X)
	e.f32(v.Y)
	e.f32(v.Z)
}

func (e *encoder) quat(q mathx.Quat) {
	e.f32(q.X)
	e.f32(q.Y)
	e.f32(q.Z)
	e.f32(q.W)
}

func (e *encoder) color(c Color4) {
	for _, v := range []float32{c.R, c.G, c.B, c.A} {
		e.b = binary.LittleEndian.AppendUint32(e.b, math.Float32bits(v))
	}
}

// blob16 writes a u16 length prefix and at most 65535 bytes.
func (e *encoder) blob16(b []byte) {
	if len(b) > math.MaxUint16 {
		b = b[:math.MaxUint16]
	}
	e.u16(uint16(len(b)))
	e.raw(b)
}

// str8 writes a u8 length prefix and at most 255 bytes.
func (e *encoder) str8(s string) {
	if len(s) > math.MaxUint8 {
		s = s[:math.MaxUint8]
	}
	e.u8(uint8(len(s)))
	e.b = append(e.b, s...)
}

// parentLocalID is the local id of the group root, or 0 for a root part.
func parentLocalID(p *Part) uint32 {
	g, n := p.Link()
	if g == nil || n == 1 {
		return 0
	}
	if root := g.Root(); root != nil {
		return root.LocalID()
	}
	return 0
}

func encodeFullUpdate(p *Part) []byte {
	e := &encoder{b: make([]byte, 0, 512)}
	_, link := p.Link()
	e.raw(p.id[:])
	e.u32(p.LocalID())
	e.u32(parentLocalID(p))
	e.u32(uint32(link))

	pose := p.LocalPose()
	e.vec(pose.Pos)
	e.quat(pose.Rot)
	e.vec(p.Scale())
	e.u32(uint32(p.Status()))
	e.u32(p.ExtraParams())

	shape := p.Shape()
	e.u8(boolByte(shape.AnimatedMesh))
	e.blob16(shape.Data)
	e.blob16(p.TextureEntry().Bytes())

	text := p.Text()
	e.str8(text.Value)
	e.color(text.Color)
	e.blob16(p.ParticleSystem())
	e.raw(wire.EncodeSound(p.Sound()))
	e.raw(wire.EncodeCollisionSound(p.CollisionSound()))

	media := p.Media()
	if len(media) > math.MaxUint8 {
		media = media[:math.MaxUint8]
	}
	e.u8(uint8(len(media)))
	for _, m := range media {
		e.u8(uint8(m.Face))
		e.u8(boolByte(m.AutoPlay))
		e.u16(uint16(m.Width))
		e.u16(uint16(m.Height))
		e.blob16([]byte(m.URL))
	}
	return e.b
}

func encodeTerseUpdate(p *Part) []byte {
	e := &encoder{b: make([]byte, 0, 64)}
	e.raw(p.id[:])
	e.u32(p.LocalID())
	e.u32(uint32(p.LinkNum()))
	pose := p.LocalPose()
	e.vec(pose.Pos)
	e.quat(pose.Rot)
	e.vec(p.Velocity())
	e.u8(boolByte(p.IsPhysical()))
	return e.b
}

func encodePropertiesUpdate(p *Part) []byte {
	e := &encoder{b: make([]byte, 0, 160)}
	meta := p.Meta()
	e.raw(p.id[:])
	e.raw(meta.OwnerID[:])
	e.raw(meta.CreatorID[:])
	e.raw(meta.GroupID[:])

	var masks Masks
	if sc := p.scene(); sc != nil {
		if ps := sc.Permissions(); ps != nil {
			masks = ps.Masks(p.id)
		}
	}
	e.u32(masks.Base)
	e.u32(masks.Owner)
	e.u32(masks.Group)
	e.u32(masks.Everyone)
	e.u32(masks.NextOwner)

	e.str8(meta.Name)
	e.str8(meta.Description)
	return e.b
}
