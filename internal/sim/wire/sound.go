package wire

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

const (
	SoundSize          = 33
	CollisionSoundSize = 24
)

// Sound flag bits as carried in the trailing byte of a sound record.
const (
	SoundLoop       uint8 = 0x01
	SoundSyncMaster uint8 = 0x02
	SoundSyncSlave  uint8 = 0x04
	SoundSyncPend   uint8 = 0x08
	SoundQueue      uint8 = 0x10
	SoundStop       uint8 = 0x20
)

// Sound is the looped/attached sound of a part.
type Sound struct {
	ID     uuid.UUID
	Gain   float64
	Radius float64
	Flags  uint8
}

func (s Sound) IsZero() bool { return s == Sound{} }

// CollisionSound is played by the part on collision.
type CollisionSound struct {
	ID     uuid.UUID
	Volume float64
}

func (s CollisionSound) IsZero() bool { return s == CollisionSound{} }

func EncodeSound(s Sound) []byte {
	buf := make([]byte, SoundSize)
	copy(buf[0:16], s.ID[:])
	binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(s.Gain))
	binary.LittleEndian.PutUint64(buf[24:32], math.Float64bits(s.Radius))
	buf[32] = s.Flags
	return buf
}

func DecodeSound(b []byte) (Sound, error) {
	var s Sound
	if len(b) != SoundSize {
		return s, badLength("sound", len(b), SoundSize)
	}
	copy(s.ID[:], b[0:16])
	s.Gain = math.Float64frombits(binary.LittleEndian.Uint64(b[16:24]))
	s.Radius = math.Float64frombits(binary.LittleEndian.Uint64(b[24:32]))
	s.Flags = b[32]
	return s, nil
}

func EncodeCollisionSound(s CollisionSound) []byte {
	buf := make([]byte, CollisionSoundSize)
	copy(buf[0:16], s.ID[:])
	binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(s.Volume))
	return buf
}

func DecodeCollisionSound(b []byte) (CollisionSound, error) {
	var s CollisionSound
	if len(b) != CollisionSoundSize {
		return s, badLength("collision sound", len(b), CollisionSoundSize)
	}
	copy(s.ID[:], b[0:16])
	s.Volume = math.Float64frombits(binary.LittleEndian.Uint64(b[16:24]))
	return s, nil
}
