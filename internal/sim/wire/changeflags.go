package wire

import (
	"encoding/binary"
	"strings"
)

// ChangeFlags describes which aspects of a part changed in one mutation.
// Bits are independent; the zero value means "changed, no specific category".
type ChangeFlags uint32

const (
	ChangedInventory ChangeFlags = 1 << iota
	ChangedColor
	ChangedShape
	ChangedScale
	ChangedTexture
	ChangedLink
	ChangedAllowedDrop
	ChangedOwner
	ChangedRegion
	ChangedTeleport
	ChangedRegionStart
	ChangedMedia
	ChangedPhysics
	ChangedPermissions
)

const ChangeFlagsSize = 4

var changeFlagNames = []struct {
	f    ChangeFlags
	name string
}{
	{ChangedInventory, "INVENTORY"},
	{ChangedColor, "COLOR"},
	{ChangedShape, "SHAPE"},
	{ChangedScale, "SCALE"},
	{ChangedTexture, "TEXTURE"},
	{ChangedLink, "LINK"},
	{ChangedAllowedDrop, "ALLOWED_DROP"},
	{ChangedOwner, "OWNER"},
	{ChangedRegion, "REGION"},
	{ChangedTeleport, "TELEPORT"},
	{ChangedRegionStart, "REGION_START"},
	{ChangedMedia, "MEDIA"},
	{ChangedPhysics, "PHYSICS"},
	{ChangedPermissions, "PERMISSIONS"},
}

func (f ChangeFlags) Has(bits ChangeFlags) bool { return f&bits == bits }

func (f ChangeFlags) String() string {
	if f == 0 {
		return "NONE"
	}
	var parts []string
	for _, n := range changeFlagNames {
		if f&n.f != 0 {
			parts = append(parts, n.name)
		}
	}
	if rest := f &^ allChangeFlags(); rest != 0 {
		parts = append(parts, "UNKNOWN")
	}
	return strings.Join(parts, "|")
}

func allChangeFlags() ChangeFlags {
	var all ChangeFlags
	for _, n := range changeFlagNames {
		all |= n.f
	}
	return all
}

func EncodeChangeFlags(f ChangeFlags) []byte {
	buf := make([]byte, ChangeFlagsSize)
	binary.LittleEndian.PutUint32(buf, uint32(f))
	return buf
}

func DecodeChangeFlags(b []byte) (ChangeFlags, error) {
	if len(b) != ChangeFlagsSize {
		return 0, badLength("change flags", len(b), ChangeFlagsSize)
	}
	return ChangeFlags(binary.LittleEndian.Uint32(b)), nil
}
