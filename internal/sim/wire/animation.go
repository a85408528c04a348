package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// AnimationEntrySize is the encoded size of one AnimationEntry:
// 16 bytes id followed by a little-endian uint32 sequence number.
const AnimationEntrySize = 20

type AnimationEntry struct {
	ID  uuid.UUID
	Seq uint32
}

func EncodeAnimations(entries []AnimationEntry) []byte {
	buf := make([]byte, len(entries)*AnimationEntrySize)
	for i, e := range entries {
		off := i * AnimationEntrySize
		copy(buf[off:off+16], e.ID[:])
		binary.LittleEndian.PutUint32(buf[off+16:off+20], e.Seq)
	}
	return buf
}

func DecodeAnimations(b []byte) ([]AnimationEntry, error) {
	if len(b)%AnimationEntrySize != 0 {
		return nil, fmt.Errorf("%w: animation buffer of %d bytes is not a multiple of %d", ErrBadLength, len(b), AnimationEntrySize)
	}
	n := len(b) / AnimationEntrySize
	out := make([]AnimationEntry, n)
	for i := 0; i < n; i++ {
		off := i * AnimationEntrySize
		copy(out[i].ID[:], b[off:off+16])
		out[i].Seq = binary.LittleEndian.Uint32(b[off+16 : off+20])
	}
	return out, nil
}
