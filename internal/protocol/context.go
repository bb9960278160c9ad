package protocol

import (
	"sync/atomic"

	"golang.org/x/text/language"

	"voxelcraft.ai/advancements/internal/i18n"
)

// Localizer resolves translatable text for one receiving locale.
type Localizer interface {
	Localize(t i18n.Text, tag language.Tag) i18n.Text
}

// ItemRegistry maps item keys to the numeric ids used in slots.
type ItemRegistry interface {
	ItemID(key string) (int32, bool)
	ItemKey(id int32) (string, bool)
}

// Context carries the per-connection state a codec may need. It is owned by
// the connection. Locale is only touched by the goroutine that encodes; the
// entity ids are also read by the decoding reader goroutine.
type Context struct {
	Locale    language.Tag
	Localizer Localizer
	Items     ItemRegistry

	MaxNBTDepth int
	MaxNBTBytes int

	// self is the current server-side entity id of the connected player;
	// client is the id that client was told at join. The player keeps its
	// client id across respawns while the server id changes, so ids are
	// swapped between the two on the way in and out.
	self   atomic.Int32
	client atomic.Int32
}

func NewContext(locale language.Tag) *Context {
	return &Context{
		Locale:      locale,
		MaxNBTDepth: DefaultNBTMaxDepth,
		MaxNBTBytes: DefaultNBTMaxBytes,
	}
}

// SetEntityIDs records the server id of the player and the id its client
// knows it by.
func (c *Context) SetEntityIDs(self, client int32) {
	c.self.Store(self)
	c.client.Store(client)
}

// SetSelfEntityID updates the server id after a respawn.
func (c *Context) SetSelfEntityID(self int32) { c.self.Store(self) }

func (c *Context) SelfEntityID() int32 {
	if c == nil {
		return 0
	}
	return c.self.Load()
}

func (c *Context) ClientEntityID() int32 {
	if c == nil {
		return 0
	}
	return c.client.Load()
}

// localize returns t formatted for the connection locale.
func (c *Context) localize(t i18n.Text) i18n.Text {
	if c == nil || c.Localizer == nil {
		return t
	}
	return c.Localizer.Localize(t, c.Locale)
}

// outboundEntity maps a server entity id to the id the client uses.
func (c *Context) outboundEntity(id int32) int32 {
	if c != nil && id == c.self.Load() {
		return c.client.Load()
	}
	return id
}

// inboundEntity maps a client entity id back to the server id.
func (c *Context) inboundEntity(id int32) int32 {
	if c != nil && id == c.client.Load() {
		return c.self.Load()
	}
	return id
}

func (c *Context) nbtLimits() (int, int) {
	depth, size := DefaultNBTMaxDepth, DefaultNBTMaxBytes
	if c != nil {
		if c.MaxNBTDepth > 0 {
			depth = c.MaxNBTDepth
		}
		if c.MaxNBTBytes > 0 {
			size = c.MaxNBTBytes
		}
	}
	return depth, size
}

func (c *Context) itemID(key string) (int32, error) {
	if c == nil || c.Items == nil {
		return 0, encodeErrorf("no item registry for %q", key)
	}
	id, ok := c.Items.ItemID(key)
	if !ok {
		return 0, encodeErrorf("unknown item %q", key)
	}
	return id, nil
}

func (c *Context) itemKey(id int32) (string, error) {
	if c == nil || c.Items == nil {
		return "", decodeErrorf(ErrBadValue, "no item registry for id %d", id)
	}
	key, ok := c.Items.ItemKey(id)
	if !ok {
		return "", decodeErrorf(ErrUnknownCode, "item id %d", id)
	}
	return key, nil
}
