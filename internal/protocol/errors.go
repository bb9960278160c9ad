package protocol

import (
	"errors"
	"fmt"
)

// Decode/encode failures. Every decode error wraps ErrDecode and every encode
// error wraps ErrEncode, so callers can branch with errors.Is.
var (
	ErrDecode = errors.New("protocol: decode")
	ErrEncode = errors.New("protocol: encode")

	ErrTruncated     = fmt.Errorf("%w: truncated buffer", ErrDecode)
	ErrTooLarge      = fmt.Errorf("%w: declared length too large", ErrDecode)
	ErrVarIntTooBig  = fmt.Errorf("%w: varint too big", ErrDecode)
	ErrUnknownCode   = fmt.Errorf("%w: unknown discriminator", ErrDecode)
	ErrUnknownPacket = fmt.Errorf("%w: unknown packet id", ErrDecode)
	ErrTrailingBytes = fmt.Errorf("%w: trailing bytes", ErrDecode)
	ErrNBTDepth      = fmt.Errorf("%w: nbt nested too deep", ErrDecode)
	ErrBadValue      = fmt.Errorf("%w: invalid value", ErrDecode)

	ErrUnknownMessage = fmt.Errorf("%w: unknown message type", ErrEncode)
)

// Disconnect reason codes sent to peers and written to logs.
const (
	// Protocol/transport validation.
	ErrProtoMalformed     = "E_PROTO_MALFORMED"
	ErrProtoTooLarge      = "E_PROTO_TOO_LARGE"
	ErrProtoUnknownPacket = "E_PROTO_UNKNOWN_PACKET"
	ErrProtoUnknownCode   = "E_PROTO_UNKNOWN_CODE"
	ErrProtoBadState      = "E_PROTO_BAD_STATE"

	// Session layer.
	ErrSessionSlow   = "E_SESSION_SLOW"
	ErrSessionClosed = "E_SESSION_CLOSED"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoMalformed:     {},
	ErrProtoTooLarge:      {},
	ErrProtoUnknownPacket: {},
	ErrProtoUnknownCode:   {},
	ErrProtoBadState:      {},
	ErrSessionSlow:        {},
	ErrSessionClosed:      {},
	ErrInternal:           {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeFor maps a codec error onto the reason code used when the connection
// layer decides to drop the peer.
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTooLarge), errors.Is(err, ErrNBTDepth):
		return ErrProtoTooLarge
	case errors.Is(err, ErrUnknownPacket):
		return ErrProtoUnknownPacket
	case errors.Is(err, ErrUnknownCode):
		return ErrProtoUnknownCode
	case errors.Is(err, ErrDecode):
		return ErrProtoMalformed
	default:
		return ErrInternal
	}
}

func decodeErrorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

func encodeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrEncode, fmt.Sprintf(format, args...))
}
