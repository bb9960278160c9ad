package world

import (
	"voxelcraft.ai/advancements/internal/i18n"
	"voxelcraft.ai/advancements/internal/persistence/snapshot"
	"voxelcraft.ai/advancements/internal/protocol"
)

func (w *World) handleJoin(req JoinRequest, nowTick uint64) {
	if old := w.clients[req.UUID]; old != nil {
		w.dropClient(old, "kick", i18n.Translatable("multiplayer.disconnect.duplicate_login"))
	}
	if len(w.clients) >= w.cfg.MaxPlayers {
		req.Resp <- JoinResponse{Refused: true, Reason: i18n.Translatable("multiplayer.disconnect.server_full")}
		return
	}

	w.nextEntityID++
	eid := w.nextEntityID
	req.Ctx.SetEntityIDs(eid, eid)

	c := &client{
		w:             w,
		id:            req.UUID,
		session:       req.Session,
		name:          req.Name,
		locale:        req.Ctx.Locale.String(),
		ctx:           req.Ctx,
		out:           req.Out,
		entityID:      eid,
		keepAliveSent: nowTick,
	}
	p, err := w.reg.AddPlayer(req.UUID, req.Name, c)
	if err != nil {
		// Only possible when the registry and client map disagree.
		w.log.Printf("join %s: %v", req.Name, err)
		req.Resp <- JoinResponse{Refused: true, Reason: i18n.Plain(err.Error())}
		return
	}
	c.player = p
	if req.Saved != nil {
		if skipped := p.Restore(req.Saved.Progress); skipped > 0 {
			w.log.Printf("restore %s: skipped %d unknown entries", req.Name, skipped)
		}
		c.restoreTab = req.Saved.SelectedTab
	}
	w.clients[req.UUID] = c

	c.Send(protocol.JoinGame{
		EntityID:   eid,
		Dimension:  0,
		Difficulty: 1,
		MaxPlayers: uint8(min(w.cfg.MaxPlayers, 255)),
		LevelType:  "default",
	})
	w.logSession("join", c, "")
	req.Resp <- JoinResponse{EntityID: eid}
}

func (w *World) handleLeave(req LeaveRequest) {
	c := w.clients[req.PlayerID]
	if c == nil || c.session != req.Session {
		// Already kicked, or replaced by a newer login.
		return
	}
	w.dropClient(c, "leave", i18n.Text{})
}

// dropClient saves and unloads a session and closes its outbound queue.
// A non-zero reason is sent as a Disconnect first when the queue has room.
func (w *World) dropClient(c *client, kind string, reason i18n.Text) {
	if !reason.IsZero() {
		if b, err := protocol.Clientbound().Encode(c.ctx, protocol.Disconnect{Reason: reason}); err == nil {
			select {
			case c.out <- b:
			default:
			}
		}
	}
	w.queueSave(c)
	w.reg.RemovePlayer(c.id)
	delete(w.clients, c.id)
	close(c.out)
	if kind == "kick" {
		w.stats.kicks++
	}
	w.logSession(kind, c, reason.String())
}

func (w *World) exportSnapshot(c *client) snapshot.PlayerV1 {
	return snapshot.PlayerV1{
		Header: snapshot.Header{
			Version:  snapshot.Version,
			PlayerID: c.id.String(),
			Name:     c.name,
			SavedAt:  w.nowMillis(),
		},
		Progress:    c.player.Snapshot(),
		SelectedTab: c.player.SelectedTab(),
	}
}

func (w *World) queueSave(c *client) {
	if w.snapshotSink == nil || c.player == nil {
		return
	}
	select {
	case w.snapshotSink <- w.exportSnapshot(c):
	default:
		w.stats.saveDrops++
	}
}

func (w *World) logSession(kind string, c *client, reason string) {
	if w.sessionLogger == nil {
		return
	}
	_ = w.sessionLogger.WriteSession(SessionEntry{
		Tick:     w.tick.Load(),
		Time:     w.nowMillis(),
		Kind:     kind,
		PlayerID: c.id.String(),
		Player:   c.name,
		Locale:   c.locale,
		Reason:   reason,
	})
}
