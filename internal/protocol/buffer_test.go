package protocol

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestVarInt_RoundTrip(t *testing.T) {
	cases := []int32{0, 1, 127, 128, 255, 300, 2097151, math.MaxInt32, -1, math.MinInt32}
	for _, n := range cases {
		b := NewBuffer(0)
		b.WriteVarInt(n)
		if got := b.Readable(); got != VarIntSize(n) {
			t.Fatalf("%d: wrote %d bytes, VarIntSize says %d", n, got, VarIntSize(n))
		}
		out, err := b.ReadVarInt()
		if err != nil {
			t.Fatalf("%d: ReadVarInt: %v", n, err)
		}
		if out != n {
			t.Fatalf("round trip: got %d want %d", out, n)
		}
		if b.Readable() != 0 {
			t.Fatalf("%d: %d bytes left over", n, b.Readable())
		}
	}
}

func TestVarInt_KnownEncodings(t *testing.T) {
	cases := []struct {
		n    int32
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
		{math.MaxInt32, []byte{0xff, 0xff, 0xff, 0xff, 0x07}},
		{-1, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}
	for _, c := range cases {
		b := NewBuffer(0)
		b.WriteVarInt(c.n)
		if !bytes.Equal(b.Written(), c.want) {
			t.Fatalf("%d: got % x want % x", c.n, b.Written(), c.want)
		}
	}
}

func TestVarLong_RoundTrip(t *testing.T) {
	cases := []int64{0, 1, 127, 128, 300, math.MaxInt32, math.MaxInt64, -1, math.MinInt64}
	for _, n := range cases {
		b := NewBuffer(0)
		b.WriteVarLong(n)
		out, err := b.ReadVarLong()
		if err != nil {
			t.Fatalf("%d: ReadVarLong: %v", n, err)
		}
		if out != n {
			t.Fatalf("round trip: got %d want %d", out, n)
		}
	}
	b := NewBuffer(0)
	b.WriteVarLong(-1)
	if b.Readable() != MaxVarLongLen {
		t.Fatalf("-1 should use %d bytes, used %d", MaxVarLongLen, b.Readable())
	}
}

func TestVarInt_TooManyGroups(t *testing.T) {
	b := WrapBuffer([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	if _, err := b.ReadVarInt(); !errors.Is(err, ErrVarIntTooBig) {
		t.Fatalf("expected ErrVarIntTooBig, got %v", err)
	}

	long := bytes.Repeat([]byte{0xff}, MaxVarLongLen+1)
	if _, err := WrapBuffer(long).ReadVarLong(); !errors.Is(err, ErrVarIntTooBig) {
		t.Fatalf("expected ErrVarIntTooBig for varlong, got %v", err)
	}
}

func TestVarInt_Truncated(t *testing.T) {
	b := WrapBuffer([]byte{0x80, 0x80})
	if _, err := b.ReadVarInt(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestReadLimitedByteArray_RejectsBeforeRead(t *testing.T) {
	b := NewBuffer(0)
	b.WriteVarInt(11)
	// Only the length prefix is present: a reader that trusted the prefix
	// would report truncation, not the size violation.
	_, err := b.ReadLimitedByteArray(10)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	b = NewBuffer(0)
	b.WriteByteArray([]byte("0123456789"))
	p, err := b.ReadLimitedByteArray(10)
	if err != nil {
		t.Fatalf("ReadLimitedByteArray: %v", err)
	}
	if string(p) != "0123456789" {
		t.Fatalf("got %q", p)
	}
}

func TestReadByteArray_NegativeLength(t *testing.T) {
	b := NewBuffer(0)
	b.WriteVarInt(-5)
	if _, err := b.ReadByteArray(); !errors.Is(err, ErrBadValue) {
		t.Fatalf("expected ErrBadValue, got %v", err)
	}
}

func TestStrings(t *testing.T) {
	b := NewBuffer(0)
	b.WriteString("héllo wörld")
	s, err := b.ReadLimitedString(11)
	if err != nil {
		t.Fatalf("ReadLimitedString: %v", err)
	}
	if s != "héllo wörld" {
		t.Fatalf("got %q", s)
	}

	// Byte budget is 4x the character limit.
	b = NewBuffer(0)
	b.WriteVarInt(17)
	if _, err := b.ReadLimitedString(4); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge for byte budget, got %v", err)
	}

	// Within the byte budget but too many characters.
	b = NewBuffer(0)
	b.WriteString("abcdef")
	if _, err := b.ReadLimitedString(4); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge for char count, got %v", err)
	}

	b = NewBuffer(0)
	b.WriteByteArray([]byte{0xff, 0xfe})
	if _, err := b.ReadString(); !errors.Is(err, ErrBadValue) {
		t.Fatalf("expected ErrBadValue for invalid utf8, got %v", err)
	}

	// Huge limits clamp the byte budget instead of overflowing it.
	for _, limit := range []int{math.MaxInt32, math.MaxInt} {
		b = NewBuffer(0)
		b.WriteString("abc")
		if s, err := b.ReadLimitedString(limit); err != nil || s != "abc" {
			t.Fatalf("ReadLimitedString(%d) = %q, %v", limit, s, err)
		}
	}
}

func TestFixedWidth(t *testing.T) {
	b := NewBuffer(2)
	b.WriteBool(true)
	b.WriteInt8(-3)
	b.WriteInt16(-300)
	b.WriteUint16(65000)
	b.WriteInt32(-70000)
	b.WriteInt64(math.MinInt64 + 7)
	b.WriteFloat32(1.5)
	b.WriteFloat64(-2.25)

	if !bytes.Equal(b.Written()[2:4], []byte{0xfe, 0xd4}) {
		t.Fatalf("int16 not big-endian: % x", b.Written()[2:4])
	}

	if v, err := b.ReadBool(); err != nil || !v {
		t.Fatalf("bool: %v %v", v, err)
	}
	if v, err := b.ReadInt8(); err != nil || v != -3 {
		t.Fatalf("int8: %v %v", v, err)
	}
	if v, err := b.ReadInt16(); err != nil || v != -300 {
		t.Fatalf("int16: %v %v", v, err)
	}
	if v, err := b.ReadUint16(); err != nil || v != 65000 {
		t.Fatalf("uint16: %v %v", v, err)
	}
	if v, err := b.ReadInt32(); err != nil || v != -70000 {
		t.Fatalf("int32: %v %v", v, err)
	}
	if v, err := b.ReadInt64(); err != nil || v != math.MinInt64+7 {
		t.Fatalf("int64: %v %v", v, err)
	}
	if v, err := b.ReadFloat32(); err != nil || v != 1.5 {
		t.Fatalf("float32: %v %v", v, err)
	}
	if v, err := b.ReadFloat64(); err != nil || v != -2.25 {
		t.Fatalf("float64: %v %v", v, err)
	}
	if _, err := b.ReadUint8(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated on empty buffer, got %v", err)
	}
}

func TestAbsoluteAccessDoesNotMoveCursors(t *testing.T) {
	b := NewBuffer(0)
	b.WriteInt32(0)
	b.WriteVarInt(300)
	b.SetInt32(0, 42)
	if b.ReaderIndex() != 0 || b.WriterIndex() != 6 {
		t.Fatalf("cursors moved: r=%d w=%d", b.ReaderIndex(), b.WriterIndex())
	}
	v, err := b.GetInt32(0)
	if err != nil || v != 42 {
		t.Fatalf("GetInt32: %v %v", v, err)
	}
	vi, size, err := b.GetVarInt(4)
	if err != nil || vi != 300 || size != 2 {
		t.Fatalf("GetVarInt: %d size=%d err=%v", vi, size, err)
	}
	if _, err := b.GetInt64(0); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated reading past writer index, got %v", err)
	}
	if b.ReaderIndex() != 0 {
		t.Fatalf("reader index moved")
	}
}

func TestGrowth(t *testing.T) {
	b := NewBuffer(1)
	payload := strings.Repeat("x", 10000)
	b.WriteString(payload)
	b.SetInt64(20000, 7)
	if b.WriterIndex() != VarIntSize(10000)+10000 {
		t.Fatalf("writer index %d", b.WriterIndex())
	}
	s, err := b.ReadString()
	if err != nil || s != payload {
		t.Fatalf("ReadString after growth: %v", err)
	}
}

func TestUUIDAndPosition(t *testing.T) {
	id := uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5")
	positions := []Position{{0, 0, 0}, {1, 2, 3}, {-1, -1, -1}, {33554431, 2047, -33554432}, {-300, 64, 1200}}

	b := NewBuffer(0)
	b.WriteUUID(id)
	for _, p := range positions {
		b.WritePosition(p)
	}
	got, err := b.ReadUUID()
	if err != nil || got != id {
		t.Fatalf("uuid: %v %v", got, err)
	}
	for _, p := range positions {
		out, err := b.ReadPosition()
		if err != nil {
			t.Fatalf("ReadPosition: %v", err)
		}
		if out != p {
			t.Fatalf("position: got %+v want %+v", out, p)
		}
	}
}
