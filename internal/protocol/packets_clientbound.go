package protocol

import (
	"github.com/google/uuid"

	"voxelcraft.ai/advancements/internal/i18n"
)

const (
	// MaxIdentifierLen bounds advancement, criterion and tab ids.
	MaxIdentifierLen = 32767
	maxLevelTypeLen  = 16
)

type LoginSuccess struct {
	UUID uuid.UUID
	Name string
}

// JoinGame tells the client which entity id it has for this session.
type JoinGame struct {
	EntityID         int32
	GameMode         uint8
	Dimension        int32
	Difficulty       uint8
	MaxPlayers       uint8
	LevelType        string
	ReducedDebugInfo bool
}

type Animation uint8

const (
	AnimSwingMainArm Animation = iota
	AnimTakeDamage
	AnimLeaveBed
	AnimSwingOffhand
	AnimCriticalEffect
	AnimMagicCriticalEffect
)

type EntityAnimation struct {
	EntityID  int32
	Animation Animation
}

type ChatPosition uint8

const (
	ChatPositionChat ChatPosition = iota
	ChatPositionSystem
	ChatPositionGameInfo
)

// ChatMessage is a server to client chat line.
type ChatMessage struct {
	Text     i18n.Text
	Position ChatPosition
}

type Disconnect struct {
	Reason i18n.Text
}

// SelectAdvancementTab switches the open tab; an empty TabID selects none.
type SelectAdvancementTab struct {
	TabID string
}

type AdvancementFrame int32

const (
	FrameTask AdvancementFrame = iota
	FrameChallenge
	FrameGoal
)

func (f AdvancementFrame) String() string {
	switch f {
	case FrameTask:
		return "task"
	case FrameChallenge:
		return "challenge"
	case FrameGoal:
		return "goal"
	}
	return "unknown"
}

const (
	displayHasBackground = 0x1
	displayShowToast     = 0x2
	displayHidden        = 0x4
)

type AdvancementDisplay struct {
	Title       i18n.Text
	Description i18n.Text
	Icon        Slot
	Frame       AdvancementFrame
	Background  string
	ShowToast   bool
	Hidden      bool
	X, Y        float32
}

// AdvancementStruct is one advancement node as sent to clients. Parent is
// empty for tab roots.
type AdvancementStruct struct {
	ID           string
	Parent       string
	Display      *AdvancementDisplay
	Criteria     []string
	Requirements [][]string
}

type CriterionProgress struct {
	ID       string
	Achieved bool
	Time     int64
}

type ProgressEntry struct {
	ID       string
	Criteria []CriterionProgress
}

// Advancements carries one sync delta for a player.
type Advancements struct {
	Clear    bool
	Added    []AdvancementStruct
	Removed  []string
	Progress []ProgressEntry
}

// Empty reports whether the delta carries nothing.
func (a Advancements) Empty() bool {
	return !a.Clear && len(a.Added) == 0 && len(a.Removed) == 0 && len(a.Progress) == 0
}

func buildClientbound() *Protocol {
	p := newProtocol("clientbound")
	p.register(IDLoginSuccess, single(encodeLoginSuccess, decodeLoginSuccess), LoginSuccess{})
	p.register(IDEntityAnimation, single(encodeEntityAnimation, decodeEntityAnimation), EntityAnimation{})
	p.register(IDChatMessageOut, single(encodeChatMessage, decodeChatMessage), ChatMessage{})
	p.register(IDDisconnect, single(encodeDisconnect, decodeDisconnect), Disconnect{})
	p.register(IDKeepAliveOut, single(encodeKeepAlive, decodeKeepAlive), KeepAlive{})
	p.register(IDJoinGame, single(encodeJoinGame, decodeJoinGame), JoinGame{})
	p.register(IDSelectAdvancementTab, single(encodeSelectTab, decodeSelectTab), SelectAdvancementTab{})
	p.register(IDAdvancements, single(encodeAdvancements, decodeAdvancements), Advancements{})
	return p
}

func encodeLoginSuccess(_ *Context, b *Buffer, m LoginSuccess) error {
	if len(m.Name) == 0 || len(m.Name) > MaxNameLen {
		return encodeErrorf("login name length %d", len(m.Name))
	}
	b.WriteString(m.UUID.String())
	b.WriteString(m.Name)
	return nil
}

func decodeLoginSuccess(_ *Context, b *Buffer) (LoginSuccess, error) {
	raw, err := b.ReadLimitedString(36)
	if err != nil {
		return LoginSuccess{}, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return LoginSuccess{}, decodeErrorf(ErrBadValue, "uuid %q: %v", raw, err)
	}
	name, err := b.ReadLimitedString(MaxNameLen)
	if err != nil {
		return LoginSuccess{}, err
	}
	return LoginSuccess{UUID: id, Name: name}, nil
}

func encodeJoinGame(ctx *Context, b *Buffer, m JoinGame) error {
	b.WriteInt32(ctx.outboundEntity(m.EntityID))
	b.WriteUint8(m.GameMode)
	b.WriteInt32(m.Dimension)
	b.WriteUint8(m.Difficulty)
	b.WriteUint8(m.MaxPlayers)
	b.WriteString(m.LevelType)
	b.WriteBool(m.ReducedDebugInfo)
	return nil
}

func decodeJoinGame(_ *Context, b *Buffer) (JoinGame, error) {
	var m JoinGame
	var err error
	if m.EntityID, err = b.ReadInt32(); err != nil {
		return m, err
	}
	if m.GameMode, err = b.ReadUint8(); err != nil {
		return m, err
	}
	if m.Dimension, err = b.ReadInt32(); err != nil {
		return m, err
	}
	if m.Difficulty, err = b.ReadUint8(); err != nil {
		return m, err
	}
	if m.MaxPlayers, err = b.ReadUint8(); err != nil {
		return m, err
	}
	if m.LevelType, err = b.ReadLimitedString(maxLevelTypeLen); err != nil {
		return m, err
	}
	m.ReducedDebugInfo, err = b.ReadBool()
	return m, err
}

func encodeEntityAnimation(ctx *Context, b *Buffer, m EntityAnimation) error {
	if m.Animation > AnimMagicCriticalEffect {
		return encodeErrorf("animation %d", m.Animation)
	}
	b.WriteVarInt(ctx.outboundEntity(m.EntityID))
	b.WriteUint8(uint8(m.Animation))
	return nil
}

func decodeEntityAnimation(_ *Context, b *Buffer) (EntityAnimation, error) {
	id, err := b.ReadVarInt()
	if err != nil {
		return EntityAnimation{}, err
	}
	a, err := b.ReadUint8()
	if err != nil {
		return EntityAnimation{}, err
	}
	if Animation(a) > AnimMagicCriticalEffect {
		return EntityAnimation{}, decodeErrorf(ErrUnknownCode, "animation %d", a)
	}
	return EntityAnimation{EntityID: id, Animation: Animation(a)}, nil
}

func encodeChatMessage(ctx *Context, b *Buffer, m ChatMessage) error {
	if m.Position > ChatPositionGameInfo {
		return encodeErrorf("chat position %d", m.Position)
	}
	if err := writeText(ctx, b, m.Text); err != nil {
		return err
	}
	b.WriteUint8(uint8(m.Position))
	return nil
}

func decodeChatMessage(_ *Context, b *Buffer) (ChatMessage, error) {
	t, err := readText(b)
	if err != nil {
		return ChatMessage{}, err
	}
	pos, err := b.ReadUint8()
	if err != nil {
		return ChatMessage{}, err
	}
	if ChatPosition(pos) > ChatPositionGameInfo {
		return ChatMessage{}, decodeErrorf(ErrUnknownCode, "chat position %d", pos)
	}
	return ChatMessage{Text: t, Position: ChatPosition(pos)}, nil
}

func encodeDisconnect(ctx *Context, b *Buffer, m Disconnect) error {
	return writeText(ctx, b, m.Reason)
}

func decodeDisconnect(_ *Context, b *Buffer) (Disconnect, error) {
	t, err := readText(b)
	return Disconnect{Reason: t}, err
}

func encodeSelectTab(_ *Context, b *Buffer, m SelectAdvancementTab) error {
	b.WriteBool(m.TabID != "")
	if m.TabID != "" {
		b.WriteString(m.TabID)
	}
	return nil
}

func decodeSelectTab(_ *Context, b *Buffer) (SelectAdvancementTab, error) {
	has, err := b.ReadBool()
	if err != nil || !has {
		return SelectAdvancementTab{}, err
	}
	id, err := b.ReadLimitedString(MaxIdentifierLen)
	return SelectAdvancementTab{TabID: id}, err
}

func encodeAdvancements(ctx *Context, b *Buffer, m Advancements) error {
	b.WriteBool(m.Clear)
	b.WriteVarInt(int32(len(m.Added)))
	for _, a := range m.Added {
		if err := writeAdvancementStruct(ctx, b, a); err != nil {
			return err
		}
	}
	writeStrings(b, m.Removed)
	b.WriteVarInt(int32(len(m.Progress)))
	for _, p := range m.Progress {
		b.WriteString(p.ID)
		b.WriteVarInt(int32(len(p.Criteria)))
		for _, c := range p.Criteria {
			b.WriteString(c.ID)
			b.WriteBool(c.Achieved)
			if c.Achieved {
				if c.Time < 0 {
					return encodeErrorf("criterion %s of %s achieved at %d", c.ID, p.ID, c.Time)
				}
				b.WriteInt64(c.Time)
			}
		}
	}
	return nil
}

func writeAdvancementStruct(ctx *Context, b *Buffer, a AdvancementStruct) error {
	b.WriteString(a.ID)
	b.WriteBool(a.Parent != "")
	if a.Parent != "" {
		b.WriteString(a.Parent)
	}
	b.WriteBool(a.Display != nil)
	if d := a.Display; d != nil {
		if d.Frame < FrameTask || d.Frame > FrameGoal {
			return encodeErrorf("advancement %s frame %d", a.ID, d.Frame)
		}
		if err := writeText(ctx, b, d.Title); err != nil {
			return err
		}
		if err := writeText(ctx, b, d.Description); err != nil {
			return err
		}
		if err := writeSlot(ctx, b, d.Icon); err != nil {
			return err
		}
		b.WriteVarInt(int32(d.Frame))
		var flags int32
		if d.Background != "" {
			flags |= displayHasBackground
		}
		if d.ShowToast {
			flags |= displayShowToast
		}
		if d.Hidden {
			flags |= displayHidden
		}
		b.WriteInt32(flags)
		if d.Background != "" {
			b.WriteString(d.Background)
		}
		b.WriteFloat32(d.X)
		b.WriteFloat32(d.Y)
	}
	writeStrings(b, a.Criteria)
	b.WriteVarInt(int32(len(a.Requirements)))
	for _, group := range a.Requirements {
		writeStrings(b, group)
	}
	return nil
}

func decodeAdvancements(ctx *Context, b *Buffer) (Advancements, error) {
	var m Advancements
	var err error
	if m.Clear, err = b.ReadBool(); err != nil {
		return m, err
	}
	n, err := readCount(b, 4, "added advancement")
	if err != nil {
		return m, err
	}
	if n > 0 {
		m.Added = make([]AdvancementStruct, 0, n)
	}
	for i := 0; i < n; i++ {
		a, err := readAdvancementStruct(ctx, b)
		if err != nil {
			return m, err
		}
		m.Added = append(m.Added, a)
	}
	if m.Removed, err = readStrings(b, MaxIdentifierLen, "removed advancement"); err != nil {
		return m, err
	}
	n, err = readCount(b, 2, "progress entry")
	if err != nil {
		return m, err
	}
	if n > 0 {
		m.Progress = make([]ProgressEntry, 0, n)
	}
	for i := 0; i < n; i++ {
		var p ProgressEntry
		if p.ID, err = b.ReadLimitedString(MaxIdentifierLen); err != nil {
			return m, err
		}
		cn, err := readCount(b, 2, "criterion progress")
		if err != nil {
			return m, err
		}
		if cn > 0 {
			p.Criteria = make([]CriterionProgress, 0, cn)
		}
		for j := 0; j < cn; j++ {
			var c CriterionProgress
			if c.ID, err = b.ReadLimitedString(MaxIdentifierLen); err != nil {
				return m, err
			}
			if c.Achieved, err = b.ReadBool(); err != nil {
				return m, err
			}
			c.Time = -1
			if c.Achieved {
				if c.Time, err = b.ReadInt64(); err != nil {
					return m, err
				}
				if c.Time < 0 {
					return m, decodeErrorf(ErrBadValue, "criterion %s achieved at %d", c.ID, c.Time)
				}
			}
			p.Criteria = append(p.Criteria, c)
		}
		m.Progress = append(m.Progress, p)
	}
	return m, nil
}

func readAdvancementStruct(ctx *Context, b *Buffer) (AdvancementStruct, error) {
	var a AdvancementStruct
	var err error
	if a.ID, err = b.ReadLimitedString(MaxIdentifierLen); err != nil {
		return a, err
	}
	hasParent, err := b.ReadBool()
	if err != nil {
		return a, err
	}
	if hasParent {
		if a.Parent, err = b.ReadLimitedString(MaxIdentifierLen); err != nil {
			return a, err
		}
	}
	hasDisplay, err := b.ReadBool()
	if err != nil {
		return a, err
	}
	if hasDisplay {
		d := &AdvancementDisplay{}
		if d.Title, err = readText(b); err != nil {
			return a, err
		}
		if d.Description, err = readText(b); err != nil {
			return a, err
		}
		if d.Icon, err = readSlot(ctx, b); err != nil {
			return a, err
		}
		frame, err := b.ReadVarInt()
		if err != nil {
			return a, err
		}
		if frame < int32(FrameTask) || frame > int32(FrameGoal) {
			return a, decodeErrorf(ErrUnknownCode, "advancement frame %d", frame)
		}
		d.Frame = AdvancementFrame(frame)
		flags, err := b.ReadInt32()
		if err != nil {
			return a, err
		}
		if flags&^(displayHasBackground|displayShowToast|displayHidden) != 0 {
			return a, decodeErrorf(ErrUnknownCode, "advancement display flags 0x%x", flags)
		}
		if flags&displayHasBackground != 0 {
			if d.Background, err = b.ReadLimitedString(MaxIdentifierLen); err != nil {
				return a, err
			}
		}
		d.ShowToast = flags&displayShowToast != 0
		d.Hidden = flags&displayHidden != 0
		if d.X, err = b.ReadFloat32(); err != nil {
			return a, err
		}
		if d.Y, err = b.ReadFloat32(); err != nil {
			return a, err
		}
		a.Display = d
	}
	if a.Criteria, err = readStrings(b, MaxIdentifierLen, "criterion"); err != nil {
		return a, err
	}
	groups, err := readCount(b, 1, "requirement group")
	if err != nil {
		return a, err
	}
	if groups > 0 {
		a.Requirements = make([][]string, 0, groups)
	}
	for i := 0; i < groups; i++ {
		g, err := readStrings(b, MaxIdentifierLen, "requirement")
		if err != nil {
			return a, err
		}
		a.Requirements = append(a.Requirements, g)
	}
	return a, nil
}
