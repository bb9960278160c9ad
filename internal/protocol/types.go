package protocol

import (
	"encoding/json"

	"voxelcraft.ai/advancements/internal/i18n"
)

// MaxTextLen is the character limit for JSON chat components.
const MaxTextLen = 262144

// Slot is an item stack. The zero value is an empty slot.
type Slot struct {
	Item  string
	Count int8
	NBT   NBTCompound
}

func (s Slot) Empty() bool { return s.Item == "" || s.Count <= 0 }

func writeSlot(ctx *Context, b *Buffer, s Slot) error {
	if s.Empty() {
		b.WriteBool(false)
		return nil
	}
	id, err := ctx.itemID(s.Item)
	if err != nil {
		return err
	}
	b.WriteBool(true)
	b.WriteVarInt(id)
	b.WriteInt8(s.Count)
	return b.WriteNBT(s.NBT)
}

func readSlot(ctx *Context, b *Buffer) (Slot, error) {
	present, err := b.ReadBool()
	if err != nil || !present {
		return Slot{}, err
	}
	id, err := b.ReadVarInt()
	if err != nil {
		return Slot{}, err
	}
	key, err := ctx.itemKey(id)
	if err != nil {
		return Slot{}, err
	}
	count, err := b.ReadInt8()
	if err != nil {
		return Slot{}, err
	}
	if count <= 0 {
		return Slot{}, decodeErrorf(ErrBadValue, "slot count %d", count)
	}
	depth, size := ctx.nbtLimits()
	tag, err := b.ReadLimitedNBT(depth, size)
	if err != nil {
		return Slot{}, err
	}
	return Slot{Item: key, Count: count, NBT: tag}, nil
}

// writeText writes a component as JSON after localizing it for the
// receiving connection.
func writeText(ctx *Context, b *Buffer, t i18n.Text) error {
	raw, err := json.Marshal(ctx.localize(t))
	if err != nil {
		return encodeErrorf("chat component: %v", err)
	}
	b.WriteString(string(raw))
	return nil
}

func readText(b *Buffer) (i18n.Text, error) {
	s, err := b.ReadLimitedString(MaxTextLen)
	if err != nil {
		return i18n.Text{}, err
	}
	var t i18n.Text
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return i18n.Text{}, decodeErrorf(ErrBadValue, "chat component: %v", err)
	}
	return t, nil
}

// readCount reads a varint element count and rejects it before allocation
// when the remaining bytes cannot hold that many elements of minSize each.
func readCount(b *Buffer, minSize int, what string) (int, error) {
	n, err := b.ReadVarInt()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, decodeErrorf(ErrBadValue, "negative %s count %d", what, n)
	}
	if minSize < 1 {
		minSize = 1
	}
	if int(n) > b.Readable()/minSize {
		return 0, decodeErrorf(ErrTooLarge, "%s count %d, %d bytes readable", what, n, b.Readable())
	}
	return int(n), nil
}

func readStrings(b *Buffer, maxChars int, what string) ([]string, error) {
	n, err := readCount(b, 1, what)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = b.ReadLimitedString(maxChars); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeStrings(b *Buffer, ss []string) {
	b.WriteVarInt(int32(len(ss)))
	for _, s := range ss {
		b.WriteString(s)
	}
}

// BlockFace is the face of a block a player interacts with.
type BlockFace int8

const (
	FaceBottom BlockFace = iota
	FaceTop
	FaceNorth
	FaceSouth
	FaceWest
	FaceEast
)

func readFace(b *Buffer) (BlockFace, error) {
	v, err := b.ReadInt8()
	if err != nil {
		return 0, err
	}
	if v < int8(FaceBottom) || v > int8(FaceEast) {
		return 0, decodeErrorf(ErrUnknownCode, "block face %d", v)
	}
	return BlockFace(v), nil
}
