package protocol

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"
)

// All fixed-width values are big-endian (network order).
var order = binary.BigEndian

const (
	MaxVarIntLen  = 5
	MaxVarLongLen = 10

	// DefaultMaxStringLen is the character limit used by ReadString.
	DefaultMaxStringLen = 32767

	// utf8 worst case per character; string limits are enforced against
	// maxChars*maxBytesPerChar before any bytes are read.
	maxBytesPerChar = 4
)

// Buffer is a growable byte region with independent read and write cursors.
// Relative Read*/Write* calls move the cursors; absolute Get*/Set* calls do
// not. A Buffer is owned by a single encode or decode call.
type Buffer struct {
	data []byte
	r    int
	w    int
}

func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{data: make([]byte, 0, capacity)}
}

// WrapBuffer returns a buffer whose readable bytes are b. The slice is not copied.
func WrapBuffer(b []byte) *Buffer {
	return &Buffer{data: b, w: len(b)}
}

func (b *Buffer) ReaderIndex() int { return b.r }
func (b *Buffer) WriterIndex() int { return b.w }
func (b *Buffer) Readable() int    { return b.w - b.r }

func (b *Buffer) SetReaderIndex(i int) error {
	if i < 0 || i > b.w {
		return decodeErrorf(ErrTruncated, "reader index %d outside [0,%d]", i, b.w)
	}
	b.r = i
	return nil
}

func (b *Buffer) SetWriterIndex(i int) error {
	if i < b.r {
		return decodeErrorf(ErrBadValue, "writer index %d before reader index %d", i, b.r)
	}
	b.grow(i)
	b.w = i
	return nil
}

// Bytes returns the unread portion. It aliases the backing store.
func (b *Buffer) Bytes() []byte { return b.data[b.r:b.w] }

// Written returns everything written so far, read or not.
func (b *Buffer) Written() []byte { return b.data[:b.w] }

func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.r, b.w = 0, 0
}

// grow makes data[:end] addressable.
func (b *Buffer) grow(end int) {
	if end <= len(b.data) {
		return
	}
	if end <= cap(b.data) {
		b.data = b.data[:end]
		return
	}
	c := 2 * cap(b.data)
	if c < end {
		c = end
	}
	if c < 64 {
		c = 64
	}
	nd := make([]byte, end, c)
	copy(nd, b.data)
	b.data = nd
}

func (b *Buffer) reserve(n int) []byte {
	b.grow(b.w + n)
	p := b.data[b.w : b.w+n]
	b.w += n
	return p
}

func (b *Buffer) take(n int) ([]byte, error) {
	if n < 0 || b.r+n > b.w {
		return nil, decodeErrorf(ErrTruncated, "need %d bytes at %d, %d readable", n, b.r, b.Readable())
	}
	p := b.data[b.r : b.r+n]
	b.r += n
	return p, nil
}

func (b *Buffer) at(i, n int) ([]byte, error) {
	if i < 0 || i+n > b.w {
		return nil, decodeErrorf(ErrTruncated, "need %d bytes at index %d, %d written", n, i, b.w)
	}
	return b.data[i : i+n], nil
}

// ---- writes ----

func (b *Buffer) Write(p []byte) (int, error) {
	copy(b.reserve(len(p)), p)
	return len(p), nil
}

func (b *Buffer) WriteUint8(v uint8) { b.reserve(1)[0] = v }
func (b *Buffer) WriteInt8(v int8)   { b.WriteUint8(uint8(v)) }

func (b *Buffer) WriteBool(v bool) {
	if v {
		b.WriteUint8(1)
		return
	}
	b.WriteUint8(0)
}

func (b *Buffer) WriteUint16(v uint16) { order.PutUint16(b.reserve(2), v) }
func (b *Buffer) WriteInt16(v int16)   { b.WriteUint16(uint16(v)) }
func (b *Buffer) WriteInt32(v int32)   { order.PutUint32(b.reserve(4), uint32(v)) }
func (b *Buffer) WriteInt64(v int64)   { order.PutUint64(b.reserve(8), uint64(v)) }

func (b *Buffer) WriteFloat32(v float32) { order.PutUint32(b.reserve(4), math.Float32bits(v)) }
func (b *Buffer) WriteFloat64(v float64) { order.PutUint64(b.reserve(8), math.Float64bits(v)) }

// WriteVarInt writes 7 bits per byte, low groups first, high bit set while
// more bytes follow. Negative values always take 5 bytes.
func (b *Buffer) WriteVarInt(v int32) {
	u := uint32(v)
	for u >= 0x80 {
		b.WriteUint8(byte(u) | 0x80)
		u >>= 7
	}
	b.WriteUint8(byte(u))
}

func (b *Buffer) WriteVarLong(v int64) {
	u := uint64(v)
	for u >= 0x80 {
		b.WriteUint8(byte(u) | 0x80)
		u >>= 7
	}
	b.WriteUint8(byte(u))
}

// WriteByteArray writes a varint length followed by p.
func (b *Buffer) WriteByteArray(p []byte) {
	b.WriteVarInt(int32(len(p)))
	_, _ = b.Write(p)
}

func (b *Buffer) WriteString(s string) {
	b.WriteVarInt(int32(len(s)))
	copy(b.reserve(len(s)), s)
}

func (b *Buffer) WriteUUID(id uuid.UUID) { copy(b.reserve(16), id[:]) }

func (b *Buffer) WritePosition(p Position) { b.WriteInt64(p.Pack()) }

// ---- reads ----

func (b *Buffer) ReadUint8() (uint8, error) {
	p, err := b.take(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// ReadByte makes Buffer an io.ByteReader.
func (b *Buffer) ReadByte() (byte, error) { return b.ReadUint8() }

func (b *Buffer) ReadInt8() (int8, error) {
	v, err := b.ReadUint8()
	return int8(v), err
}

func (b *Buffer) ReadBool() (bool, error) {
	v, err := b.ReadUint8()
	return v != 0, err
}

func (b *Buffer) ReadUint16() (uint16, error) {
	p, err := b.take(2)
	if err != nil {
		return 0, err
	}
	return order.Uint16(p), nil
}

func (b *Buffer) ReadInt16() (int16, error) {
	v, err := b.ReadUint16()
	return int16(v), err
}

func (b *Buffer) ReadInt32() (int32, error) {
	p, err := b.take(4)
	if err != nil {
		return 0, err
	}
	return int32(order.Uint32(p)), nil
}

func (b *Buffer) ReadInt64() (int64, error) {
	p, err := b.take(8)
	if err != nil {
		return 0, err
	}
	return int64(order.Uint64(p)), nil
}

func (b *Buffer) ReadFloat32() (float32, error) {
	p, err := b.take(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(order.Uint32(p)), nil
}

func (b *Buffer) ReadFloat64() (float64, error) {
	p, err := b.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(order.Uint64(p)), nil
}

func (b *Buffer) ReadVarInt() (int32, error) {
	var v uint32
	for i := 0; i < MaxVarIntLen; i++ {
		c, err := b.ReadUint8()
		if err != nil {
			return 0, err
		}
		v |= uint32(c&0x7f) << (7 * i)
		if c&0x80 == 0 {
			return int32(v), nil
		}
	}
	return 0, decodeErrorf(ErrVarIntTooBig, "varint longer than %d bytes", MaxVarIntLen)
}

func (b *Buffer) ReadVarLong() (int64, error) {
	var v uint64
	for i := 0; i < MaxVarLongLen; i++ {
		c, err := b.ReadUint8()
		if err != nil {
			return 0, err
		}
		v |= uint64(c&0x7f) << (7 * i)
		if c&0x80 == 0 {
			return int64(v), nil
		}
	}
	return 0, decodeErrorf(ErrVarIntTooBig, "varlong longer than %d bytes", MaxVarLongLen)
}

// ReadRaw copies the next n bytes.
func (b *Buffer) ReadRaw(n int) ([]byte, error) {
	p, err := b.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, p)
	return out, nil
}

// ReadByteArray reads a length-prefixed array bounded only by the readable bytes.
func (b *Buffer) ReadByteArray() ([]byte, error) {
	return b.ReadLimitedByteArray(b.Readable())
}

// ReadLimitedByteArray fails with ErrTooLarge before allocating when the
// declared length exceeds maxLen.
func (b *Buffer) ReadLimitedByteArray(maxLen int) ([]byte, error) {
	n, err := b.readLength(maxLen, "byte array")
	if err != nil {
		return nil, err
	}
	return b.ReadRaw(n)
}

func (b *Buffer) ReadString() (string, error) {
	return b.ReadLimitedString(DefaultMaxStringLen)
}

// ReadLimitedString reads a varint-prefixed utf8 string of at most maxChars
// characters. The declared byte length is checked against maxChars*4 before
// anything is read.
func (b *Buffer) ReadLimitedString(maxChars int) (string, error) {
	maxBytes := math.MaxInt32
	if maxChars < math.MaxInt32/maxBytesPerChar {
		maxBytes = maxChars * maxBytesPerChar
	}
	n, err := b.readLength(maxBytes, "string")
	if err != nil {
		return "", err
	}
	p, err := b.take(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(p) {
		return "", decodeErrorf(ErrBadValue, "string is not valid utf8")
	}
	if c := utf8.RuneCount(p); c > maxChars {
		return "", decodeErrorf(ErrTooLarge, "string has %d characters, max %d", c, maxChars)
	}
	return string(p), nil
}

func (b *Buffer) readLength(maxLen int, what string) (int, error) {
	n, err := b.ReadVarInt()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, decodeErrorf(ErrBadValue, "negative %s length %d", what, n)
	}
	if int(n) > maxLen {
		return 0, decodeErrorf(ErrTooLarge, "%s length %d exceeds max %d", what, n, maxLen)
	}
	if int(n) > b.Readable() {
		return 0, decodeErrorf(ErrTruncated, "%s length %d, %d readable", what, n, b.Readable())
	}
	return int(n), nil
}

func (b *Buffer) ReadUUID() (uuid.UUID, error) {
	var id uuid.UUID
	p, err := b.take(16)
	if err != nil {
		return id, err
	}
	copy(id[:], p)
	return id, nil
}

func (b *Buffer) ReadPosition() (Position, error) {
	v, err := b.ReadInt64()
	if err != nil {
		return Position{}, err
	}
	return UnpackPosition(v), nil
}

// ---- absolute access ----

func (b *Buffer) GetUint8(i int) (uint8, error) {
	p, err := b.at(i, 1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (b *Buffer) GetInt16(i int) (int16, error) {
	p, err := b.at(i, 2)
	if err != nil {
		return 0, err
	}
	return int16(order.Uint16(p)), nil
}

func (b *Buffer) GetInt32(i int) (int32, error) {
	p, err := b.at(i, 4)
	if err != nil {
		return 0, err
	}
	return int32(order.Uint32(p)), nil
}

func (b *Buffer) GetInt64(i int) (int64, error) {
	p, err := b.at(i, 8)
	if err != nil {
		return 0, err
	}
	return int64(order.Uint64(p)), nil
}

// GetVarInt decodes a varint at index i and reports how many bytes it used.
func (b *Buffer) GetVarInt(i int) (v int32, size int, err error) {
	var u uint32
	for size = 0; size < MaxVarIntLen; size++ {
		c, err := b.GetUint8(i + size)
		if err != nil {
			return 0, 0, err
		}
		u |= uint32(c&0x7f) << (7 * size)
		if c&0x80 == 0 {
			return int32(u), size + 1, nil
		}
	}
	return 0, 0, decodeErrorf(ErrVarIntTooBig, "varint at %d longer than %d bytes", i, MaxVarIntLen)
}

// Set* write at an absolute index, growing the store when needed. The write
// cursor does not move.
func (b *Buffer) SetUint8(i int, v uint8) {
	b.grow(i + 1)
	b.data[i] = v
}

func (b *Buffer) SetInt16(i int, v int16) {
	b.grow(i + 2)
	order.PutUint16(b.data[i:], uint16(v))
}

func (b *Buffer) SetInt32(i int, v int32) {
	b.grow(i + 4)
	order.PutUint32(b.data[i:], uint32(v))
}

func (b *Buffer) SetInt64(i int, v int64) {
	b.grow(i + 8)
	order.PutUint64(b.data[i:], uint64(v))
}

// VarIntSize reports how many bytes WriteVarInt uses for v.
func VarIntSize(v int32) int {
	u := uint32(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}

// Position is a block position packed into one long on the wire:
// x (26 bits) | z (26 bits) | y (12 bits).
type Position struct{ X, Y, Z int32 }

func (p Position) Pack() int64 {
	return (int64(p.X)&0x3FFFFFF)<<38 | (int64(p.Z)&0x3FFFFFF)<<12 | int64(p.Y)&0xFFF
}

func UnpackPosition(v int64) Position {
	return Position{
		X: int32(v >> 38),
		Y: int32(v << 52 >> 52),
		Z: int32(v << 26 >> 38),
	}
}
