package protocol

const (
	MaxNameLen    = 16
	MaxChatLen    = 256
	MaxLocaleLen  = 16
	MaxTabIDLen   = 32767
	maxBoostValue = 100
)

type LoginStart struct {
	Name string
}

// KeepAlive is used in both directions with different packet ids.
type KeepAlive struct {
	ID int64
}

// ClientChat is a chat line or command typed by the player.
type ClientChat struct {
	Message string
}

// ClientStatusAction is PerformRespawn or RequestStats.
type ClientStatusAction interface{ clientStatus() }

type PerformRespawn struct{}
type RequestStats struct{}

func (PerformRespawn) clientStatus() {}
func (RequestStats) clientStatus()   {}

type ChatMode int32

const (
	ChatEnabled ChatMode = iota
	ChatCommandsOnly
	ChatHidden
)

type MainHand int32

const (
	HandLeft MainHand = iota
	HandRight
)

type ClientSettings struct {
	Locale       string
	ViewDistance int8
	ChatMode     ChatMode
	ChatColors   bool
	SkinParts    uint8
	MainHand     MainHand
}

type PlayerPosition struct {
	X, Y, Z  float64
	OnGround bool
}

// DiggingAction is one of the seven player digging variants.
type DiggingAction interface{ diggingStatus() int32 }

type StartDigging struct {
	Pos  Position
	Face BlockFace
}
type CancelDigging struct {
	Pos  Position
	Face BlockFace
}
type FinishDigging struct {
	Pos  Position
	Face BlockFace
}
type DropItemStack struct{}
type DropItem struct{}
type FinishUsingItem struct{}
type SwapHands struct{}

func (StartDigging) diggingStatus() int32    { return 0 }
func (CancelDigging) diggingStatus() int32   { return 1 }
func (FinishDigging) diggingStatus() int32   { return 2 }
func (DropItemStack) diggingStatus() int32   { return 3 }
func (DropItem) diggingStatus() int32        { return 4 }
func (FinishUsingItem) diggingStatus() int32 { return 5 }
func (SwapHands) diggingStatus() int32       { return 6 }

// EntityAction is one of the nine entity action variants. The entity id on
// the wire must be the sender's own.
type EntityAction interface{ entityAction() int32 }

type StartSneaking struct{}
type StopSneaking struct{}
type LeaveBed struct{}
type StartSprinting struct{}
type StopSprinting struct{}
type StartVehicleJump struct {
	Boost int32
}
type StopVehicleJump struct{}
type OpenVehicleInventory struct{}
type StartElytraFlying struct{}

func (StartSneaking) entityAction() int32        { return 0 }
func (StopSneaking) entityAction() int32         { return 1 }
func (LeaveBed) entityAction() int32             { return 2 }
func (StartSprinting) entityAction() int32       { return 3 }
func (StopSprinting) entityAction() int32        { return 4 }
func (StartVehicleJump) entityAction() int32     { return 5 }
func (StopVehicleJump) entityAction() int32      { return 6 }
func (OpenVehicleInventory) entityAction() int32 { return 7 }
func (StartElytraFlying) entityAction() int32    { return 8 }

// AdvancementTabAction is OpenAdvancementTab or CloseAdvancementScreen.
type AdvancementTabAction interface{ tabAction() int32 }

type OpenAdvancementTab struct {
	TabID string
}
type CloseAdvancementScreen struct{}

func (OpenAdvancementTab) tabAction() int32     { return 0 }
func (CloseAdvancementScreen) tabAction() int32 { return 1 }

type CreativeInventoryAction struct {
	Slot int16
	Item Slot
}

func buildServerbound() *Protocol {
	p := newProtocol("serverbound")
	p.register(IDLoginStart, single(encodeLoginStart, decodeLoginStart), LoginStart{})
	p.register(IDChatMessageIn, single(encodeClientChat, decodeClientChat), ClientChat{})
	p.register(IDClientStatus, clientStatusCodec{}, PerformRespawn{}, RequestStats{})
	p.register(IDClientSettings, single(encodeClientSettings, decodeClientSettings), ClientSettings{})
	p.register(IDKeepAliveIn, single(encodeKeepAlive, decodeKeepAlive), KeepAlive{})
	p.register(IDPlayerPosition, single(encodePlayerPosition, decodePlayerPosition), PlayerPosition{})
	p.register(IDPlayerDigging, diggingCodec{},
		StartDigging{}, CancelDigging{}, FinishDigging{}, DropItemStack{}, DropItem{}, FinishUsingItem{}, SwapHands{})
	p.register(IDPlayerAction, entityActionCodec{},
		StartSneaking{}, StopSneaking{}, LeaveBed{}, StartSprinting{}, StopSprinting{},
		StartVehicleJump{}, StopVehicleJump{}, OpenVehicleInventory{}, StartElytraFlying{})
	p.register(IDAdvancementTab, tabCodec{}, OpenAdvancementTab{}, CloseAdvancementScreen{})
	p.register(IDCreativeInventoryAction, single(encodeCreative, decodeCreative), CreativeInventoryAction{})
	return p
}

func encodeLoginStart(_ *Context, b *Buffer, m LoginStart) error {
	if len(m.Name) == 0 || len(m.Name) > MaxNameLen {
		return encodeErrorf("login name length %d", len(m.Name))
	}
	b.WriteString(m.Name)
	return nil
}

func decodeLoginStart(_ *Context, b *Buffer) (LoginStart, error) {
	name, err := b.ReadLimitedString(MaxNameLen)
	if err != nil {
		return LoginStart{}, err
	}
	if name == "" {
		return LoginStart{}, decodeErrorf(ErrBadValue, "empty login name")
	}
	return LoginStart{Name: name}, nil
}

func encodeKeepAlive(_ *Context, b *Buffer, m KeepAlive) error {
	b.WriteInt64(m.ID)
	return nil
}

func decodeKeepAlive(_ *Context, b *Buffer) (KeepAlive, error) {
	id, err := b.ReadInt64()
	return KeepAlive{ID: id}, err
}

func encodeClientChat(_ *Context, b *Buffer, m ClientChat) error {
	b.WriteString(m.Message)
	return nil
}

func decodeClientChat(_ *Context, b *Buffer) (ClientChat, error) {
	s, err := b.ReadLimitedString(MaxChatLen)
	return ClientChat{Message: s}, err
}

type clientStatusCodec struct{}

func (clientStatusCodec) Encode(_ *Context, b *Buffer, m Message) error {
	switch m.(type) {
	case PerformRespawn:
		b.WriteVarInt(0)
	case RequestStats:
		b.WriteVarInt(1)
	default:
		return encodeErrorf("client status variant %T", m)
	}
	return nil
}

func (clientStatusCodec) Decode(_ *Context, b *Buffer) (Message, error) {
	action, err := b.ReadVarInt()
	if err != nil {
		return nil, err
	}
	switch action {
	case 0:
		return PerformRespawn{}, nil
	case 1:
		return RequestStats{}, nil
	}
	return nil, decodeErrorf(ErrUnknownCode, "client status action %d", action)
}

func encodeClientSettings(_ *Context, b *Buffer, m ClientSettings) error {
	if len(m.Locale) > MaxLocaleLen {
		return encodeErrorf("locale %q too long", m.Locale)
	}
	b.WriteString(m.Locale)
	b.WriteInt8(m.ViewDistance)
	b.WriteVarInt(int32(m.ChatMode))
	b.WriteBool(m.ChatColors)
	b.WriteUint8(m.SkinParts)
	b.WriteVarInt(int32(m.MainHand))
	return nil
}

func decodeClientSettings(_ *Context, b *Buffer) (ClientSettings, error) {
	var m ClientSettings
	var err error
	if m.Locale, err = b.ReadLimitedString(MaxLocaleLen); err != nil {
		return m, err
	}
	if m.ViewDistance, err = b.ReadInt8(); err != nil {
		return m, err
	}
	mode, err := b.ReadVarInt()
	if err != nil {
		return m, err
	}
	if mode < int32(ChatEnabled) || mode > int32(ChatHidden) {
		return m, decodeErrorf(ErrUnknownCode, "chat mode %d", mode)
	}
	m.ChatMode = ChatMode(mode)
	if m.ChatColors, err = b.ReadBool(); err != nil {
		return m, err
	}
	if m.SkinParts, err = b.ReadUint8(); err != nil {
		return m, err
	}
	hand, err := b.ReadVarInt()
	if err != nil {
		return m, err
	}
	if hand != int32(HandLeft) && hand != int32(HandRight) {
		return m, decodeErrorf(ErrUnknownCode, "main hand %d", hand)
	}
	m.MainHand = MainHand(hand)
	return m, nil
}

func encodePlayerPosition(_ *Context, b *Buffer, m PlayerPosition) error {
	b.WriteFloat64(m.X)
	b.WriteFloat64(m.Y)
	b.WriteFloat64(m.Z)
	b.WriteBool(m.OnGround)
	return nil
}

func decodePlayerPosition(_ *Context, b *Buffer) (PlayerPosition, error) {
	var m PlayerPosition
	var err error
	if m.X, err = b.ReadFloat64(); err != nil {
		return m, err
	}
	if m.Y, err = b.ReadFloat64(); err != nil {
		return m, err
	}
	if m.Z, err = b.ReadFloat64(); err != nil {
		return m, err
	}
	m.OnGround, err = b.ReadBool()
	return m, err
}

type diggingCodec struct{}

// Every variant carries a position and face on the wire; variants that do
// not target a block send zeros.
func (diggingCodec) Encode(_ *Context, b *Buffer, m Message) error {
	var pos Position
	var face BlockFace
	switch v := m.(type) {
	case StartDigging:
		pos, face = v.Pos, v.Face
	case CancelDigging:
		pos, face = v.Pos, v.Face
	case FinishDigging:
		pos, face = v.Pos, v.Face
	case DropItemStack, DropItem, FinishUsingItem, SwapHands:
	default:
		return encodeErrorf("digging variant %T", m)
	}
	b.WriteVarInt(m.(DiggingAction).diggingStatus())
	b.WritePosition(pos)
	b.WriteInt8(int8(face))
	return nil
}

func (diggingCodec) Decode(_ *Context, b *Buffer) (Message, error) {
	status, err := b.ReadVarInt()
	if err != nil {
		return nil, err
	}
	if status < 0 || status > 6 {
		return nil, decodeErrorf(ErrUnknownCode, "digging status %d", status)
	}
	pos, err := b.ReadPosition()
	if err != nil {
		return nil, err
	}
	face, err := readFace(b)
	if err != nil {
		return nil, err
	}
	switch status {
	case 0:
		return StartDigging{Pos: pos, Face: face}, nil
	case 1:
		return CancelDigging{Pos: pos, Face: face}, nil
	case 2:
		return FinishDigging{Pos: pos, Face: face}, nil
	case 3:
		return DropItemStack{}, nil
	case 4:
		return DropItem{}, nil
	case 5:
		return FinishUsingItem{}, nil
	default:
		return SwapHands{}, nil
	}
}

type entityActionCodec struct{}

func (entityActionCodec) Encode(ctx *Context, b *Buffer, m Message) error {
	var boost int32
	switch v := m.(type) {
	case StartVehicleJump:
		if v.Boost < 0 || v.Boost > maxBoostValue {
			return encodeErrorf("jump boost %d", v.Boost)
		}
		boost = v.Boost
	case StartSneaking, StopSneaking, LeaveBed, StartSprinting, StopSprinting,
		StopVehicleJump, OpenVehicleInventory, StartElytraFlying:
	default:
		return encodeErrorf("entity action variant %T", m)
	}
	b.WriteVarInt(ctx.ClientEntityID())
	b.WriteVarInt(m.(EntityAction).entityAction())
	b.WriteVarInt(boost)
	return nil
}

func (entityActionCodec) Decode(ctx *Context, b *Buffer) (Message, error) {
	entity, err := b.ReadVarInt()
	if err != nil {
		return nil, err
	}
	if ctx != nil {
		if got, want := ctx.inboundEntity(entity), ctx.SelfEntityID(); got != want {
			return nil, decodeErrorf(ErrBadValue, "entity action for entity %d, sender is %d", got, want)
		}
	}
	action, err := b.ReadVarInt()
	if err != nil {
		return nil, err
	}
	boost, err := b.ReadVarInt()
	if err != nil {
		return nil, err
	}
	switch action {
	case 0:
		return StartSneaking{}, nil
	case 1:
		return StopSneaking{}, nil
	case 2:
		return LeaveBed{}, nil
	case 3:
		return StartSprinting{}, nil
	case 4:
		return StopSprinting{}, nil
	case 5:
		if boost < 0 || boost > maxBoostValue {
			return nil, decodeErrorf(ErrBadValue, "jump boost %d", boost)
		}
		return StartVehicleJump{Boost: boost}, nil
	case 6:
		return StopVehicleJump{}, nil
	case 7:
		return OpenVehicleInventory{}, nil
	case 8:
		return StartElytraFlying{}, nil
	}
	return nil, decodeErrorf(ErrUnknownCode, "entity action %d", action)
}

type tabCodec struct{}

func (tabCodec) Encode(_ *Context, b *Buffer, m Message) error {
	switch v := m.(type) {
	case OpenAdvancementTab:
		b.WriteVarInt(0)
		b.WriteString(v.TabID)
	case CloseAdvancementScreen:
		b.WriteVarInt(1)
	default:
		return encodeErrorf("advancement tab variant %T", m)
	}
	return nil
}

func (tabCodec) Decode(_ *Context, b *Buffer) (Message, error) {
	action, err := b.ReadVarInt()
	if err != nil {
		return nil, err
	}
	switch action {
	case 0:
		id, err := b.ReadLimitedString(MaxTabIDLen)
		if err != nil {
			return nil, err
		}
		return OpenAdvancementTab{TabID: id}, nil
	case 1:
		return CloseAdvancementScreen{}, nil
	}
	return nil, decodeErrorf(ErrUnknownCode, "advancement tab action %d", action)
}

func encodeCreative(ctx *Context, b *Buffer, m CreativeInventoryAction) error {
	b.WriteInt16(m.Slot)
	return writeSlot(ctx, b, m.Item)
}

func decodeCreative(ctx *Context, b *Buffer) (CreativeInventoryAction, error) {
	slot, err := b.ReadInt16()
	if err != nil {
		return CreativeInventoryAction{}, err
	}
	item, err := readSlot(ctx, b)
	if err != nil {
		return CreativeInventoryAction{}, err
	}
	return CreativeInventoryAction{Slot: slot, Item: item}, nil
}
