package protocol

import (
	"sort"
	"unicode/utf8"
)

// NBT tag ids as they appear on the wire.
type TagType uint8

const (
	TagEnd TagType = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

const (
	DefaultNBTMaxDepth = 512
	DefaultNBTMaxBytes = 2 << 20
)

// Tag is one of the NBT* value types below.
type Tag interface{ Type() TagType }

type (
	NBTByte      int8
	NBTShort     int16
	NBTInt       int32
	NBTLong      int64
	NBTFloat     float32
	NBTDouble    float64
	NBTByteArray []byte
	NBTString    string
	NBTIntArray  []int32
	NBTLongArray []int64
	NBTCompound  map[string]Tag
)

// NBTList is homogeneous; Elem is the element type even when empty.
type NBTList struct {
	Elem  TagType
	Items []Tag
}

func (NBTByte) Type() TagType      { return TagByte }
func (NBTShort) Type() TagType     { return TagShort }
func (NBTInt) Type() TagType       { return TagInt }
func (NBTLong) Type() TagType      { return TagLong }
func (NBTFloat) Type() TagType     { return TagFloat }
func (NBTDouble) Type() TagType    { return TagDouble }
func (NBTByteArray) Type() TagType { return TagByteArray }
func (NBTString) Type() TagType    { return TagString }
func (NBTList) Type() TagType      { return TagList }
func (NBTCompound) Type() TagType  { return TagCompound }
func (NBTIntArray) Type() TagType  { return TagIntArray }
func (NBTLongArray) Type() TagType { return TagLongArray }

// WriteNBT writes root as an unnamed root compound. A nil root is written as
// a single TagEnd byte, which is how "no data" is encoded in item slots.
func (b *Buffer) WriteNBT(root NBTCompound) error {
	if root == nil {
		b.WriteUint8(uint8(TagEnd))
		return nil
	}
	b.WriteUint8(uint8(TagCompound))
	b.writeNBTString("")
	return b.writeNBTPayload(root, 0)
}

func (b *Buffer) writeNBTString(s string) {
	b.WriteUint16(uint16(len(s)))
	copy(b.reserve(len(s)), s)
}

func (b *Buffer) writeNBTPayload(t Tag, depth int) error {
	if depth > DefaultNBTMaxDepth {
		return encodeErrorf("nbt nested deeper than %d", DefaultNBTMaxDepth)
	}
	switch v := t.(type) {
	case NBTByte:
		b.WriteInt8(int8(v))
	case NBTShort:
		b.WriteInt16(int16(v))
	case NBTInt:
		b.WriteInt32(int32(v))
	case NBTLong:
		b.WriteInt64(int64(v))
	case NBTFloat:
		b.WriteFloat32(float32(v))
	case NBTDouble:
		b.WriteFloat64(float64(v))
	case NBTByteArray:
		b.WriteInt32(int32(len(v)))
		_, _ = b.Write(v)
	case NBTString:
		if len(v) > 0xFFFF {
			return encodeErrorf("nbt string of %d bytes", len(v))
		}
		b.writeNBTString(string(v))
	case NBTList:
		b.WriteUint8(uint8(v.Elem))
		b.WriteInt32(int32(len(v.Items)))
		for i, it := range v.Items {
			if it == nil || it.Type() != v.Elem {
				return encodeErrorf("nbt list element %d is not type %d", i, v.Elem)
			}
			if err := b.writeNBTPayload(it, depth+1); err != nil {
				return err
			}
		}
	case NBTCompound:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := v[k]
			if child == nil {
				return encodeErrorf("nbt compound key %q has nil value", k)
			}
			b.WriteUint8(uint8(child.Type()))
			b.writeNBTString(k)
			if err := b.writeNBTPayload(child, depth+1); err != nil {
				return err
			}
		}
		b.WriteUint8(uint8(TagEnd))
	case NBTIntArray:
		b.WriteInt32(int32(len(v)))
		for _, x := range v {
			b.WriteInt32(x)
		}
	case NBTLongArray:
		b.WriteInt32(int32(len(v)))
		for _, x := range v {
			b.WriteInt64(x)
		}
	default:
		return encodeErrorf("unsupported nbt value %T", t)
	}
	return nil
}

// ReadNBT reads a root compound with the default depth limit, bounded only by
// the bytes available in the buffer. Returns nil for a lone TagEnd.
func (b *Buffer) ReadNBT() (NBTCompound, error) {
	return b.ReadLimitedNBT(DefaultNBTMaxDepth, b.Readable())
}

// ReadLimitedNBT reads a root compound, failing once nesting exceeds maxDepth
// or the encoded size would exceed maxBytes. Array and list sizes are checked
// against the remaining budget before anything is allocated.
func (b *Buffer) ReadLimitedNBT(maxDepth, maxBytes int) (NBTCompound, error) {
	r := nbtReader{b: b, start: b.r, maxDepth: maxDepth, maxBytes: maxBytes}
	if err := r.charge(1); err != nil {
		return nil, err
	}
	id, err := b.ReadUint8()
	if err != nil {
		return nil, err
	}
	switch TagType(id) {
	case TagEnd:
		return nil, nil
	case TagCompound:
	default:
		return nil, decodeErrorf(ErrUnknownCode, "root nbt tag %d, want compound", id)
	}
	if _, err := r.readString(); err != nil {
		return nil, err
	}
	t, err := r.readPayload(TagCompound, 1)
	if err != nil {
		return nil, err
	}
	return t.(NBTCompound), nil
}

type nbtReader struct {
	b        *Buffer
	start    int
	maxDepth int
	maxBytes int
}

func (r *nbtReader) used() int { return r.b.r - r.start }

func (r *nbtReader) charge(n int) error {
	if n < 0 || r.used()+n > r.maxBytes {
		return decodeErrorf(ErrTooLarge, "nbt needs %d more bytes, budget %d, used %d", n, r.maxBytes, r.used())
	}
	return nil
}

func (r *nbtReader) readString() (string, error) {
	if err := r.charge(2); err != nil {
		return "", err
	}
	n, err := r.b.ReadUint16()
	if err != nil {
		return "", err
	}
	if err := r.charge(int(n)); err != nil {
		return "", err
	}
	p, err := r.b.take(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(p) {
		return "", decodeErrorf(ErrBadValue, "nbt string is not valid utf8")
	}
	return string(p), nil
}

func (r *nbtReader) readCount(elemSize int) (int, error) {
	if err := r.charge(4); err != nil {
		return 0, err
	}
	n, err := r.b.ReadInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, decodeErrorf(ErrBadValue, "negative nbt length %d", n)
	}
	if err := r.charge(int(n) * elemSize); err != nil {
		return 0, err
	}
	return int(n), nil
}

// minPayload is the smallest encoding of a payload of type t.
func minPayload(t TagType) int {
	switch t {
	case TagByte, TagCompound:
		return 1
	case TagShort, TagString:
		return 2
	case TagInt, TagFloat, TagByteArray, TagIntArray, TagLongArray:
		return 4
	case TagLong, TagDouble:
		return 8
	case TagList:
		return 5
	}
	return 0
}

func (r *nbtReader) readPayload(t TagType, depth int) (Tag, error) {
	if depth > r.maxDepth {
		return nil, decodeErrorf(ErrNBTDepth, "depth %d exceeds %d", depth, r.maxDepth)
	}
	if n := minPayload(t); n > 0 {
		if err := r.charge(n); err != nil {
			return nil, err
		}
	}
	b := r.b
	switch t {
	case TagByte:
		v, err := b.ReadInt8()
		return NBTByte(v), err
	case TagShort:
		v, err := b.ReadInt16()
		return NBTShort(v), err
	case TagInt:
		v, err := b.ReadInt32()
		return NBTInt(v), err
	case TagLong:
		v, err := b.ReadInt64()
		return NBTLong(v), err
	case TagFloat:
		v, err := b.ReadFloat32()
		return NBTFloat(v), err
	case TagDouble:
		v, err := b.ReadFloat64()
		return NBTDouble(v), err
	case TagByteArray:
		n, err := r.readCount(1)
		if err != nil {
			return nil, err
		}
		p, err := b.ReadRaw(n)
		return NBTByteArray(p), err
	case TagString:
		s, err := r.readString()
		return NBTString(s), err
	case TagIntArray:
		n, err := r.readCount(4)
		if err != nil {
			return nil, err
		}
		out := make(NBTIntArray, n)
		for i := range out {
			if out[i], err = b.ReadInt32(); err != nil {
				return nil, err
			}
		}
		return out, nil
	case TagLongArray:
		n, err := r.readCount(8)
		if err != nil {
			return nil, err
		}
		out := make(NBTLongArray, n)
		for i := range out {
			if out[i], err = b.ReadInt64(); err != nil {
				return nil, err
			}
		}
		return out, nil
	case TagList:
		if err := r.charge(1); err != nil {
			return nil, err
		}
		id, err := b.ReadUint8()
		if err != nil {
			return nil, err
		}
		elem := TagType(id)
		if elem > TagLongArray {
			return nil, decodeErrorf(ErrUnknownCode, "nbt list element tag %d", id)
		}
		n, err := r.readCount(minPayload(elem))
		if err != nil {
			return nil, err
		}
		if elem == TagEnd && n > 0 {
			return nil, decodeErrorf(ErrBadValue, "nbt list of %d end tags", n)
		}
		list := NBTList{Elem: elem, Items: make([]Tag, 0, n)}
		for i := 0; i < n; i++ {
			it, err := r.readPayload(elem, depth+1)
			if err != nil {
				return nil, err
			}
			list.Items = append(list.Items, it)
		}
		return list, nil
	case TagCompound:
		out := NBTCompound{}
		for {
			id, err := b.ReadUint8()
			if err != nil {
				return nil, err
			}
			ct := TagType(id)
			if ct == TagEnd {
				return out, nil
			}
			if ct > TagLongArray {
				return nil, decodeErrorf(ErrUnknownCode, "nbt tag %d", id)
			}
			name, err := r.readString()
			if err != nil {
				return nil, err
			}
			v, err := r.readPayload(ct, depth+1)
			if err != nil {
				return nil, err
			}
			out[name] = v
			if err := r.charge(1); err != nil {
				return nil, err
			}
		}
	}
	return nil, decodeErrorf(ErrUnknownCode, "nbt tag %d", t)
}
