package protocol

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Version is the binary agent protocol version carried in every frame header.
const Version byte = 1

// Message types.
const (
	TypeObjectUpdate     byte = 0x01
	TypeTerseUpdate      byte = 0x02
	TypeObjectProperties byte = 0x03
	TypeKillObject       byte = 0x04
	TypeAnimationUpdate  byte = 0x05
)

// HeaderSize is the fixed frame prefix: [type:1][version:1][scene id:16].
const HeaderSize = 18

var (
	ErrShortFrame  = errors.New("protocol: frame shorter than header")
	ErrBadVersion  = errors.New("protocol: unsupported version")
	ErrBadPayload  = errors.New("protocol: malformed payload")
	ErrUnknownType = errors.New("protocol: unknown message type")
)

type Header struct {
	Type    byte
	Version byte
	SceneID uuid.UUID
}

func TypeName(t byte) string {
	switch t {
	case TypeObjectUpdate:
		return "OBJECT_UPDATE"
	case TypeTerseUpdate:
		return "TERSE_UPDATE"
	case TypeObjectProperties:
		return "OBJECT_PROPERTIES"
	case TypeKillObject:
		return "KILL_OBJECT"
	case TypeAnimationUpdate:
		return "ANIMATION_UPDATE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", t)
	}
}

func appendHeader(dst []byte, typ byte, sceneID uuid.UUID) []byte {
	dst = append(dst, typ, Version)
	return append(dst, sceneID[:]...)
}

// DecodeHeader splits a frame into its header and payload.
func DecodeHeader(b []byte) (Header, []byte, error) {
	var h Header
	if len(b) < HeaderSize {
		return h, nil, ErrShortFrame
	}
	h.Type = b[0]
	h.Version = b[1]
	copy(h.SceneID[:], b[2:18])
	if h.Version != Version {
		return h, nil, fmt.Errorf("%w: %d", ErrBadVersion, h.Version)
	}
	switch h.Type {
	case TypeObjectUpdate, TypeTerseUpdate, TypeObjectProperties, TypeKillObject, TypeAnimationUpdate:
	default:
		return h, nil, fmt.Errorf("%w: %d", ErrUnknownType, h.Type)
	}
	return h, b[HeaderSize:], nil
}
