package world

import (
	"github.com/google/uuid"

	"voxelcraft.ai/advancements/internal/i18n"
	"voxelcraft.ai/advancements/internal/persistence/snapshot"
	"voxelcraft.ai/advancements/internal/protocol"
)

// JoinRequest is sent by the transport once LoginStart was read and the
// player's saved progress was loaded. Out is owned by the world from then
// on: it is closed when the session ends.
//
// Session identifies the connection. A later login with the same UUID
// replaces the session, and leaves or packets still carrying the old
// Session are ignored.
type JoinRequest struct {
	Name    string
	UUID    uuid.UUID
	Session uuid.UUID
	Saved   *snapshot.PlayerV1
	Ctx     *protocol.Context
	Out     chan []byte
	Resp    chan JoinResponse
}

// JoinResponse carries the assigned entity id, or a refusal reason when
// Refused is set; Out is not used after a refusal.
type JoinResponse struct {
	EntityID int32
	Refused  bool
	Reason   i18n.Text
}

type PacketEnvelope struct {
	PlayerID uuid.UUID
	Session  uuid.UUID
	Msg      protocol.Message
}

type LeaveRequest struct {
	PlayerID uuid.UUID
	Session  uuid.UUID
}

type AuditLogger interface {
	WriteAudit(AuditEntry) error
}

type SessionLogger interface {
	WriteSession(SessionEntry) error
}

// AuditEntry records one grant or revoke transition.
type AuditEntry struct {
	Tick        uint64 `json:"tick"`
	Time        int64  `json:"time"`
	Kind        string `json:"kind"` // "grant" or "revoke"
	PlayerID    string `json:"player_id"`
	Player      string `json:"player"`
	Advancement string `json:"advancement"`
	Criterion   string `json:"criterion,omitempty"`
	// Actor is the operator behind a command, empty for gameplay.
	Actor string `json:"actor,omitempty"`
}

type SessionEntry struct {
	Tick     uint64 `json:"tick"`
	Time     int64  `json:"time"`
	Kind     string `json:"kind"` // "join", "leave" or "kick"
	PlayerID string `json:"player_id"`
	Player   string `json:"player"`
	Locale   string `json:"locale,omitempty"`
	Reason   string `json:"reason,omitempty"`
}
