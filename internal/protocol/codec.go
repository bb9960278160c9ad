package protocol

import (
	"fmt"
	"reflect"
	"sort"
)

// Codec encodes and decodes the body of one packet id. Union codecs accept
// several concrete message types and pick the variant by discriminator.
type Codec interface {
	Encode(ctx *Context, b *Buffer, m Message) error
	Decode(ctx *Context, b *Buffer) (Message, error)
}

type singleCodec[T Message] struct {
	enc func(*Context, *Buffer, T) error
	dec func(*Context, *Buffer) (T, error)
}

func single[T Message](enc func(*Context, *Buffer, T) error, dec func(*Context, *Buffer) (T, error)) Codec {
	return singleCodec[T]{enc: enc, dec: dec}
}

func (c singleCodec[T]) Encode(ctx *Context, b *Buffer, m Message) error {
	v, ok := m.(T)
	if !ok {
		var zero T
		return encodeErrorf("codec for %T got %T", zero, m)
	}
	return c.enc(ctx, b, v)
}

func (c singleCodec[T]) Decode(ctx *Context, b *Buffer) (Message, error) {
	v, err := c.dec(ctx, b)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Protocol is the packet table for one direction.
type Protocol struct {
	name   string
	byID   map[int32]Codec
	byType map[reflect.Type]int32
}

func newProtocol(name string) *Protocol {
	return &Protocol{name: name, byID: map[int32]Codec{}, byType: map[reflect.Type]int32{}}
}

// register binds id to c and routes every sample's concrete type to id.
func (p *Protocol) register(id int32, c Codec, samples ...Message) {
	if _, dup := p.byID[id]; dup {
		panic(fmt.Sprintf("protocol %s: packet id 0x%02x registered twice", p.name, id))
	}
	p.byID[id] = c
	for _, s := range samples {
		t := reflect.TypeOf(s)
		if _, dup := p.byType[t]; dup {
			panic(fmt.Sprintf("protocol %s: %v registered twice", p.name, t))
		}
		p.byType[t] = id
	}
}

func (p *Protocol) Name() string { return p.name }

// IDs returns the registered packet ids in ascending order.
func (p *Protocol) IDs() []int32 {
	out := make([]int32, 0, len(p.byID))
	for id := range p.byID {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IDOf reports the packet id a message would be sent with.
func (p *Protocol) IDOf(m Message) (int32, bool) {
	id, ok := p.byType[reflect.TypeOf(m)]
	return id, ok
}

// Encode returns the frame payload: varint packet id followed by the body.
func (p *Protocol) Encode(ctx *Context, m Message) ([]byte, error) {
	id, ok := p.byType[reflect.TypeOf(m)]
	if !ok {
		return nil, fmt.Errorf("%w: %T on %s", ErrUnknownMessage, m, p.name)
	}
	b := NewBuffer(64)
	b.WriteVarInt(id)
	if err := p.byID[id].Encode(ctx, b, m); err != nil {
		return nil, fmt.Errorf("encode 0x%02x %T: %w", id, m, err)
	}
	return b.Written(), nil
}

// Decode reads one complete frame. Bytes left after the body are an error.
func (p *Protocol) Decode(ctx *Context, frame []byte) (Message, error) {
	b := WrapBuffer(frame)
	id, err := b.ReadVarInt()
	if err != nil {
		return nil, fmt.Errorf("packet id: %w", err)
	}
	c, ok := p.byID[id]
	if !ok {
		return nil, decodeErrorf(ErrUnknownPacket, "0x%02x on %s", id, p.name)
	}
	m, err := c.Decode(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("decode 0x%02x: %w", id, err)
	}
	if b.Readable() != 0 {
		return nil, decodeErrorf(ErrTrailingBytes, "%d bytes after packet 0x%02x", b.Readable(), id)
	}
	return m, nil
}

var (
	serverbound = buildServerbound()
	clientbound = buildClientbound()
)

// Serverbound is the table for packets sent by clients.
func Serverbound() *Protocol { return serverbound }

// Clientbound is the table for packets sent by the server.
func Clientbound() *Protocol { return clientbound }
