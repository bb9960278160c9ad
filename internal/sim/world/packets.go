package world

import (
	"math"
	"strings"

	"voxelcraft.ai/advancements/internal/i18n"
	"voxelcraft.ai/advancements/internal/protocol"
)

// Trigger names fired by gameplay packets.
const (
	TriggerInventoryChanged = "inventory_changed"
	TriggerBlockBroken      = "block_broken"
	TriggerSneaked          = "sneaked"
	TriggerSprinted         = "sprinted"
	TriggerSleptInBed       = "slept_in_bed"
	TriggerElytraFlight     = "elytra_flight"
	TriggerRespawned        = "respawned"
	TriggerTravelled        = "travelled"
)

func (w *World) handlePacket(c *client, msg protocol.Message, nowTick uint64) {
	switch m := msg.(type) {
	case protocol.KeepAlive:
		if c.keepAlivePending && m.ID == c.keepAliveID {
			c.keepAlivePending = false
		}
	case protocol.ClientChat:
		w.handleChat(c, m.Message, nowTick)
	case protocol.ClientSettings:
		if tag, err := i18n.ParseLocale(m.Locale); err == nil {
			c.ctx.Locale = tag
			c.locale = m.Locale
		}
	case protocol.PlayerPosition:
		w.handleMove(c, m)
	case protocol.FinishDigging:
		w.fire(c, TriggerBlockBroken, nil)
	case protocol.StartSneaking:
		w.fire(c, TriggerSneaked, nil)
	case protocol.StartSprinting:
		w.fire(c, TriggerSprinted, nil)
	case protocol.LeaveBed:
		w.fire(c, TriggerSleptInBed, nil)
	case protocol.StartElytraFlying:
		w.fire(c, TriggerElytraFlight, nil)
	case protocol.PerformRespawn:
		// The client keeps the id it was told at join.
		w.nextEntityID++
		c.entityID = w.nextEntityID
		c.ctx.SetSelfEntityID(c.entityID)
		c.hasPos = false
		w.fire(c, TriggerRespawned, nil)
	case protocol.OpenAdvancementTab:
		c.player.SelectTab(m.TabID)
	case protocol.CreativeInventoryAction:
		if !m.Item.Empty() {
			w.fire(c, TriggerInventoryChanged, map[string]string{"item": m.Item.Item})
		}
	}
}

func (w *World) fire(c *client, trigger string, attrs map[string]string) {
	w.reg.Fire(c.id, trigger, attrs)
}

// handleMove accumulates horizontal distance and fires one travelled
// trigger per TravelStepBlocks walked.
func (w *World) handleMove(c *client, m protocol.PlayerPosition) {
	if c.hasPos {
		d := math.Hypot(m.X-c.x, m.Z-c.z)
		if d <= w.cfg.MaxMoveBlocks {
			c.travelled += d
		}
	}
	c.x, c.z, c.hasPos = m.X, m.Z, true
	for c.travelled >= w.cfg.TravelStepBlocks {
		c.travelled -= w.cfg.TravelStepBlocks
		w.fire(c, TriggerTravelled, nil)
	}
}

func (w *World) handleChat(c *client, line string, nowTick uint64) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if nowTick-c.chatWindow >= uint64(w.cfg.RateLimits.ChatWindowTicks) {
		c.chatWindow = nowTick
		c.chatCount = 0
	}
	c.chatCount++
	if c.chatCount > w.cfg.RateLimits.ChatMax {
		c.chat(i18n.Translatable("chat.rate_limited").WithColor("red"))
		return
	}
	if strings.HasPrefix(line, "/") {
		w.handleCommand(c, line)
		return
	}
	msg := protocol.ChatMessage{Text: i18n.Translatable("chat.type.text", i18n.Plain(c.name), i18n.Plain(line))}
	for _, p := range w.reg.Players() {
		if other, ok := p.Connection().(*client); ok {
			other.Send(msg)
		}
	}
}
