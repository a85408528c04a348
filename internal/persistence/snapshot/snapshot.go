package snapshot

import (
	"fmt"
	"path/filepath"
)

const Version = 1

type Header struct {
	Version  int    `json:"version"`
	RegionID string `json:"region_id"`
	Tick     uint64 `json:"tick"`
	Groups   int    `json:"groups"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Groups []GroupV1 `json:"groups"`
}

type GroupV1 struct {
	RootID string   `json:"root_id"`
	Parts  []PartV1 `json:"parts"`
}

// PartV1 is one persisted part. Byte fields hold the fixed wire records
// (sound: 33 bytes, collision sound: 24 bytes, animations: 20 bytes each).
type PartV1 struct {
	ID      string `json:"id"`
	LinkNum int    `json:"link_num"`

	Pos   [3]float64 `json:"pos"`
	Rot   [4]float64 `json:"rot"`
	Scale [3]float64 `json:"scale"`

	Status uint32 `json:"status,omitempty"`

	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
	CreatorID   string `json:"creator_id,omitempty"`
	GroupID     string `json:"group_id,omitempty"`

	AnimatedMesh bool   `json:"animated_mesh,omitempty"`
	ShapeData    []byte `json:"shape_data,omitempty"`

	TextureEntry   []byte     `json:"texture_entry,omitempty"`
	Text           string     `json:"text,omitempty"`
	TextColor      [4]float32 `json:"text_color,omitempty"`
	ParticleSystem []byte     `json:"particle_system,omitempty"`
	Sound          []byte     `json:"sound,omitempty"`
	CollisionSound []byte     `json:"collision_sound,omitempty"`
	Media          []MediaV1  `json:"media,omitempty"`

	CameraEye [3]float64 `json:"camera_eye,omitempty"`
	CameraAt  [3]float64 `json:"camera_at,omitempty"`

	Animations   []byte `json:"animations,omitempty"`
	AnimationSeq uint32 `json:"animation_seq,omitempty"`
}

type MediaV1 struct {
	Face     int    `json:"face"`
	URL      string `json:"url"`
	AutoPlay bool   `json:"auto_play,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// KeyNotFoundError reports a persisted object graph that references a key
// absent from the data being restored.
type KeyNotFoundError struct {
	Kind string
	Key  string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("snapshot: %s %q not found", e.Kind, e.Key)
}

// SnapshotPath is the conventional file name for a snapshot taken at tick.
func SnapshotPath(regionDir string, tick uint64) string {
	return filepath.Join(regionDir, "snapshots", fmt.Sprintf("%012d.snap.zst", tick))
}
