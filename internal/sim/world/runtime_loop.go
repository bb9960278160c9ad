package world

import (
	"context"
	"time"

	"voxelcraft.ai/advancements/internal/i18n"
	"voxelcraft.ai/advancements/internal/protocol"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingPackets []PacketEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []LeaveRequest

	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return ctx.Err()
		case <-w.stop:
			w.shutdown()
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case req := <-w.leave:
			pendingLeaves = append(pendingLeaves, req)
		case env := <-w.inbox:
			pendingPackets = append(pendingPackets, env)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingPackets)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingPackets = pendingPackets[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// step runs one tick: leaves, joins, then packets in arrival order, then
// the periodic sync pulse, keepalives and saves.
func (w *World) step(joins []JoinRequest, leaves []LeaveRequest, packets []PacketEnvelope) {
	start := time.Now()
	nowTick := w.tick.Load()

	for _, req := range leaves {
		w.handleLeave(req)
	}
	for _, req := range joins {
		w.handleJoin(req, nowTick)
	}
	for _, env := range packets {
		c := w.clients[env.PlayerID]
		if c == nil || c.session != env.Session || c.kick != nil {
			continue
		}
		w.handlePacket(c, env.Msg, nowTick)
	}

	if nowTick%uint64(w.cfg.SyncEveryTicks) == 0 {
		w.reg.Pulse()
		for _, c := range w.clients {
			if c.restoreTab != "" {
				c.player.SelectTab(c.restoreTab)
				c.restoreTab = ""
			}
		}
	}

	w.keepAlive(nowTick)

	if w.cfg.SaveEveryTicks > 0 && nowTick > 0 && nowTick%uint64(w.cfg.SaveEveryTicks) == 0 {
		for _, c := range w.clients {
			w.queueSave(c)
		}
	}

	for _, p := range w.reg.Players() {
		if c := w.clients[p.ID()]; c != nil && c.kick != nil {
			w.dropClient(c, "kick", *c.kick)
		}
	}

	w.publishMetrics(nowTick, float64(time.Since(start).Microseconds())/1000)
	w.tick.Add(1)
}

func (w *World) keepAlive(nowTick uint64) {
	for _, c := range w.clients {
		switch {
		case c.keepAlivePending:
			if nowTick-c.keepAliveSent >= uint64(w.cfg.KeepAliveTimeoutTicks) {
				reason := i18n.Translatable("multiplayer.disconnect.timeout")
				c.kick = &reason
			}
		case nowTick-c.keepAliveSent >= uint64(w.cfg.KeepAliveEveryTicks):
			c.keepAliveID = int64(nowTick)
			c.keepAliveSent = nowTick
			c.keepAlivePending = true
			c.Send(protocol.KeepAlive{ID: c.keepAliveID})
		}
	}
}

// shutdown disconnects and saves every session.
func (w *World) shutdown() {
	reason := i18n.Translatable("multiplayer.disconnect.server_shutdown")
	for _, p := range w.reg.Players() {
		if c := w.clients[p.ID()]; c != nil {
			w.dropClient(c, "leave", reason)
		}
	}
}
