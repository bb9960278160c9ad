package world

import (
	"github.com/google/uuid"

	"voxelcraft.ai/advancements/internal/i18n"
	"voxelcraft.ai/advancements/internal/protocol"
	"voxelcraft.ai/advancements/internal/sim/advancement"
)

// client is one connected session. It is the advancement.Connection of its
// player: packets are encoded on the world goroutine with the session's
// codec context and queued for the transport writer.
type client struct {
	w *World

	id       uuid.UUID
	session  uuid.UUID
	name     string
	locale   string
	ctx      *protocol.Context
	out      chan []byte
	entityID int32
	player   *advancement.Player

	// restoreTab is the saved tab, selected once the first sync went out.
	restoreTab string

	keepAliveID      int64
	keepAlivePending bool
	keepAliveSent    uint64

	hasPos     bool
	x, z       float64
	travelled  float64
	chatWindow uint64
	chatCount  int

	// kick is set when the session must be dropped at the end of the tick.
	kick *i18n.Text
}

var _ advancement.Connection = (*client)(nil)

func (c *client) Send(m protocol.Message) {
	if c.kick != nil {
		return
	}
	b, err := protocol.Clientbound().Encode(c.ctx, m)
	if err != nil {
		c.w.log.Printf("encode %T for %s: %v", m, c.name, err)
		c.w.stats.encodeErrors++
		return
	}
	select {
	case c.out <- b:
	default:
		reason := i18n.Translatable("multiplayer.disconnect.slow")
		c.kick = &reason
	}
}

func (c *client) chat(t i18n.Text) {
	c.Send(protocol.ChatMessage{Text: t, Position: protocol.ChatPositionSystem})
}
