package world

import (
	"voxelcraft.ai/advancements/internal/i18n"
	"voxelcraft.ai/advancements/internal/protocol"
	"voxelcraft.ai/advancements/internal/sim/advancement"
)

var _ advancement.Notifier = (*World)(nil)

// Granted audits the grant and, when asked, announces it to every player in
// their own locale.
func (w *World) Granted(p *advancement.Player, a *advancement.Advancement, at int64, announce bool) {
	w.stats.grants++
	w.writeAudit("grant", p, a, at)
	if !announce || a.Display() == nil {
		return
	}
	d := a.Display()
	msg := protocol.ChatMessage{
		Text: i18n.Translatable("chat.type.advancement."+d.Frame.String(),
			i18n.Plain(p.Name()),
			d.Title.WithColor("green"),
		),
		Position: protocol.ChatPositionChat,
	}
	for _, other := range w.reg.Players() {
		if c, ok := other.Connection().(*client); ok {
			c.Send(msg)
		}
	}
}

func (w *World) Revoked(p *advancement.Player, a *advancement.Advancement) {
	w.stats.revokes++
	w.writeAudit("revoke", p, a, w.nowMillis())
}

func (w *World) writeAudit(kind string, p *advancement.Player, a *advancement.Advancement, at int64) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(AuditEntry{
		Tick:        w.tick.Load(),
		Time:        at,
		Kind:        kind,
		PlayerID:    p.ID().String(),
		Player:      p.Name(),
		Advancement: a.Key(),
		Criterion:   w.actorCriterion,
		Actor:       w.actor,
	})
}
