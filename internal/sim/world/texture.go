package world

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	"github.com/google/uuid"

	"primsim.ai/internal/sim/wire"
)

// MaxFaces is the number of individually addressable faces of a part.
const MaxFaces = 32

const faceRecordSize = 76

type Color4 struct {
	R, G, B, A float32
}

type TextureFace struct {
	TextureID  uuid.UUID
	Color      Color4
	RepeatU    float32
	RepeatV    float32
	OffsetU    float32
	OffsetV    float32
	Rotation   float32
	Glow       float32
	Bump       uint8
	Shiny      uint8
	Fullbright bool
	MediaFlags bool
	MaterialID uuid.UUID
}

// DefaultTextureFace is the face every part starts with.
func DefaultTextureFace(textureID uuid.UUID) TextureFace {
	return TextureFace{
		TextureID: textureID,
		Color:     Color4{1, 1, 1, 1},
		RepeatU:   1,
		RepeatV:   1,
	}
}

func (f TextureFace) visualEqual(o TextureFace) bool {
	return f.TextureID == o.TextureID &&
		f.RepeatU == o.RepeatU && f.RepeatV == o.RepeatV &&
		f.OffsetU == o.OffsetU && f.OffsetV == o.OffsetV &&
		f.Rotation == o.Rotation && f.Glow == o.Glow &&
		f.Bump == o.Bump && f.Shiny == o.Shiny &&
		f.Fullbright == o.Fullbright && f.MaterialID == o.MaterialID
}

// diffFace reports which categories differ between two faces.
func diffFace(a, b TextureFace) wire.ChangeFlags {
	var flags wire.ChangeFlags
	if !a.visualEqual(b) {
		flags |= wire.ChangedTexture
	}
	if a.Color != b.Color {
		flags |= wire.ChangedColor
	}
	if a.MediaFlags != b.MediaFlags {
		flags |= wire.ChangedMedia
	}
	return flags
}

// TextureEntry is the default face plus optional per-face overrides.
// A nil override means the face uses Default.
type TextureEntry struct {
	Default TextureFace
	Faces   [MaxFaces]*TextureFace
}

func NewTextureEntry(textureID uuid.UUID) *TextureEntry {
	return &TextureEntry{Default: DefaultTextureFace(textureID)}
}

// Face returns the effective face i.
func (te *TextureEntry) Face(i int) TextureFace {
	if i >= 0 && i < MaxFaces && te.Faces[i] != nil {
		return *te.Faces[i]
	}
	return te.Default
}

func (te *TextureEntry) SetFace(i int, f TextureFace) {
	if i < 0 || i >= MaxFaces {
		return
	}
	te.Faces[i] = &f
}

func (te *TextureEntry) ClearFace(i int) {
	if i < 0 || i >= MaxFaces {
		return
	}
	te.Faces[i] = nil
}

func (te *TextureEntry) Clone() *TextureEntry {
	if te == nil {
		return nil
	}
	out := &TextureEntry{Default: te.Default}
	for i, f := range te.Faces {
		if f != nil {
			c := *f
			out.Faces[i] = &c
		}
	}
	return out
}

// DiffTextureEntries ORs the per-face differences of the default face and
// every indexed face.
func DiffTextureEntries(old, cur *TextureEntry) wire.ChangeFlags {
	if old == nil {
		old = NewTextureEntry(uuid.Nil)
	}
	if cur == nil {
		cur = NewTextureEntry(uuid.Nil)
	}
	flags := diffFace(old.Default, cur.Default)
	for i := 0; i < MaxFaces; i++ {
		flags |= diffFace(old.Face(i), cur.Face(i))
	}
	return flags
}

// Bytes encodes the entry as: default face, u32 override mask, one record per
// set mask bit in face order.
func (te *TextureEntry) Bytes() []byte {
	if te == nil {
		return nil
	}
	var mask uint32
	for i, f := range te.Faces {
		if f != nil {
			mask |= 1 << uint(i)
		}
	}
	buf := make([]byte, 0, faceRecordSize+4+bits.OnesCount32(mask)*faceRecordSize)
	buf = appendFace(buf, te.Default)
	buf = binary.LittleEndian.AppendUint32(buf, mask)
	for _, f := range te.Faces {
		if f != nil {
			buf = appendFace(buf, *f)
		}
	}
	return buf
}

func DecodeTextureEntry(b []byte) (*TextureEntry, error) {
	if len(b) < faceRecordSize+4 {
		return nil, fmt.Errorf("%w: texture entry of %d bytes", wire.ErrBadLength, len(b))
	}
	te := &TextureEntry{Default: readFace(b[:faceRecordSize])}
	mask := binary.LittleEndian.Uint32(b[faceRecordSize:])
	want := faceRecordSize + 4 + bits.OnesCount32(mask)*faceRecordSize
	if len(b) != want {
		return nil, fmt.Errorf("%w: texture entry got %d bytes, want %d", wire.ErrBadLength, len(b), want)
	}
	off := faceRecordSize + 4
	for i := 0; i < MaxFaces; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		f := readFace(b[off : off+faceRecordSize])
		te.Faces[i] = &f
		off += faceRecordSize
	}
	return te, nil
}

func appendFace(buf []byte, f TextureFace) []byte {
	buf = append(buf, f.TextureID[:]...)
	for _, v := range []float32{
		f.Color.R, f.Color.G, f.Color.B, f.Color.A,
		f.RepeatU, f.RepeatV, f.OffsetU, f.OffsetV, f.Rotation, f.Glow,
	} {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	buf = append(buf, f.Bump, f.Shiny, boolByte(f.Fullbright), boolByte(f.MediaFlags))
	return append(buf, f.MaterialID[:]...)
}

func readFace(b []byte) TextureFace {
	var f TextureFace
	copy(f.TextureID[:], b[0:16])
	fl := func(i int) float32 {
		off := 16 + 4*i
		return math.Float32frombits(binary.LittleEndian.Uint32(b[off : off+4]))
	}
	f.Color = Color4{fl(0), fl(1), fl(2), fl(3)}
	f.RepeatU, f.RepeatV = fl(4), fl(5)
	f.OffsetU, f.OffsetV = fl(6), fl(7)
	f.Rotation, f.Glow = fl(8), fl(9)
	f.Bump, f.Shiny = b[56], b[57]
	f.Fullbright = b[58] != 0
	f.MediaFlags = b[59] != 0
	copy(f.MaterialID[:], b[60:76])
	return f
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
