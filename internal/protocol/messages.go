package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"primsim.ai/internal/sim/wire"
)

// EncodeObjectUpdate frames an encoded part snapshot. typ must be one of the
// update types (full, terse or properties).
func EncodeObjectUpdate(typ byte, sceneID uuid.UUID, snapshot []byte) []byte {
	buf := make([]byte, 0, HeaderSize+len(snapshot))
	buf = appendHeader(buf, typ, sceneID)
	return append(buf, snapshot...)
}

// EncodeKillObject tells agents to forget the listed region-local ids.
func EncodeKillObject(sceneID uuid.UUID, localIDs []uint32) []byte {
	buf := make([]byte, 0, HeaderSize+4+4*len(localIDs))
	buf = appendHeader(buf, TypeKillObject, sceneID)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(localIDs)))
	for _, id := range localIDs {
		buf = binary.LittleEndian.AppendUint32(buf, id)
	}
	return buf
}

func DecodeKillObject(payload []byte) ([]uint32, error) {
	if len(payload) < 4 {
		return nil, ErrBadPayload
	}
	n := int(binary.LittleEndian.Uint32(payload))
	if (len(payload)-4)/4 != n || (len(payload)-4)%4 != 0 {
		return nil, fmt.Errorf("%w: kill list of %d ids in %d bytes", ErrBadPayload, n, len(payload))
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(payload[4+4*i:])
	}
	return out, nil
}

// AnimationUpdate lists every active animation of one part.
type AnimationUpdate struct {
	PartID  uuid.UUID
	Entries []wire.AnimationEntry
}

func EncodeAnimationUpdate(sceneID uuid.UUID, partID uuid.UUID, entries []wire.AnimationEntry) []byte {
	body := wire.EncodeAnimations(entries)
	buf := make([]byte, 0, HeaderSize+16+len(body))
	buf = appendHeader(buf, TypeAnimationUpdate, sceneID)
	buf = append(buf, partID[:]...)
	return append(buf, body...)
}

func DecodeAnimationUpdate(payload []byte) (AnimationUpdate, error) {
	var u AnimationUpdate
	if len(payload) < 16 {
		return u, ErrBadPayload
	}
	copy(u.PartID[:], payload[:16])
	entries, err := wire.DecodeAnimations(payload[16:])
	if err != nil {
		return u, err
	}
	u.Entries = entries
	return u, nil
}
