package world

import (
	"github.com/google/uuid"

	"primsim.ai/internal/sim/wire"
)

// notify raises a part-changed event carrying flags. It must be called with
// no field lock held.
func (p *Part) notify(flags wire.ChangeFlags) {
	p.postEvent(Event{Kind: EventPartChanged, Part: p, Flags: flags})
}

func (p *Part) postEvent(ev Event) {
	sc := p.scene()
	if sc == nil {
		return
	}
	sc.PostEvent(ev)
}

func (p *Part) TextureEntry() *TextureEntry { return p.texture.get() }

// SetTextureEntry replaces the texture entry and reports which categories
// changed, face by face.
func (p *Part) SetTextureEntry(te *TextureEntry) wire.ChangeFlags {
	if te == nil {
		te = NewTextureEntry(uuid.Nil)
	}
	old := p.texture.swap(te)
	flags := DiffTextureEntries(old, te)
	p.notify(flags)
	return flags
}

func (p *Part) Text() Text { return p.text.get() }

func (p *Part) SetText(t Text) {
	t.Value = truncateText(t.Value)
	p.text.swap(t)
	p.refreshExtraParams()
	p.notify(0)
}

func (p *Part) ParticleSystem() []byte { return p.particles.get() }

func (p *Part) SetParticleSystem(b []byte) {
	p.particles.swap(b)
	p.refreshExtraParams()
	p.notify(0)
}

func (p *Part) Media() []MediaEntry { return p.media.get() }

func (p *Part) SetMedia(m []MediaEntry) {
	p.media.swap(m)
	p.refreshExtraParams()
	p.notify(wire.ChangedMedia)
}

func (p *Part) Sound() wire.Sound { return p.sound.get() }

func (p *Part) SetSound(s wire.Sound) {
	p.sound.swap(s)
	p.refreshExtraParams()
	p.notify(0)
}

func (p *Part) CollisionSound() wire.CollisionSound { return p.collisionSound.get() }

func (p *Part) SetCollisionSound(s wire.CollisionSound) {
	p.collisionSound.swap(s)
	p.refreshExtraParams()
	p.notify(0)
}

func (p *Part) CameraOffsets() CameraOffsets { return p.camera.get() }

// SetCameraOffsets only affects sitting avatars; observers are not updated.
func (p *Part) SetCameraOffsets(c CameraOffsets) { p.camera.swap(c) }

func (p *Part) Shape() Shape { return p.shape.get() }

func (p *Part) SetShape(s Shape) {
	p.shape.swap(s)
	p.refreshExtraParams()
	p.notify(wire.ChangedShape)
}

func (p *Part) Meta() PartMeta { return p.meta.get() }

func (p *Part) SetName(name string) {
	p.meta.update(func(m PartMeta) PartMeta {
		m.Name = name
		return m
	})
	p.notify(0)
}

func (p *Part) SetDescription(desc string) {
	p.meta.update(func(m PartMeta) PartMeta {
		m.Description = desc
		return m
	})
	p.notify(0)
}

func (p *Part) SetOwner(owner uuid.UUID) {
	old, _ := p.meta.update(func(m PartMeta) PartMeta {
		m.OwnerID = owner
		return m
	})
	if old.OwnerID == owner {
		return
	}
	p.notify(wire.ChangedOwner | wire.ChangedPermissions)
}

// InventoryChanged is raised by the inventory layer after it touched the
// part's contents.
func (p *Part) InventoryChanged(allowedDrop bool) {
	flags := wire.ChangedInventory
	if allowedDrop {
		flags |= wire.ChangedAllowedDrop
	}
	p.notify(flags)
}

// PermissionsChanged is raised after the permission masks were recomputed.
func (p *Part) PermissionsChanged() { p.notify(wire.ChangedPermissions) }
