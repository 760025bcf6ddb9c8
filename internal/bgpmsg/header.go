package bgpmsg

import "encoding/binary"

// Type is the tagged-union discriminant
type Type uint8

const (
	TypeOpen         Type = 1
	TypeUpdate       Type = 2
	TypeNotification Type = 3
	TypeKeepalive    Type = 4
	TypeTrustRate    Type = 5
	TypeVoting       Type = 6
)

func (t Type) String() string {
	switch t {
	case TypeOpen:
		return "OPEN"
	case TypeUpdate:
		return "UPDATE"
	case TypeNotification:
		return "NOTIFICATION"
	case TypeKeepalive:
		return "KEEPALIVE"
	case TypeTrustRate:
		return "TRUSTRATE"
	case TypeVoting:
		return "VOTING"
	default:
		return "UNKNOWN"
	}
}

const (
	HeaderLength = 19
	MaxLength    = 4096
	markerByte   = 0xFF
)

// minLength gives the minimum legal total wire length per type.
func minLength(t Type) int {
	switch t {
	case TypeOpen:
		return 29
	case TypeUpdate:
		return 23
	case TypeNotification:
		return 21 // header(19) + code(1) + subcode(1)
	case TypeKeepalive:
		return HeaderLength
	case TypeTrustRate:
		return 23
	case TypeVoting:
		return 29
	default:
		return HeaderLength
	}
}

// Header is the 19-byte envelope every message begins with.
type Header struct {
	Length uint16
	Type   Type
}

func marker() [16]byte {
	var m [16]byte
	for i := range m {
		m[i] = markerByte
	}
	return m
}

func encodeHeader(buf []byte, length uint16, typ Type) {
	m := marker()
	copy(buf[0:16], m[:])
	binary.BigEndian.PutUint16(buf[16:18], length)
	buf[18] = byte(typ)
}

// verifyHeader checks the marker, message type, and declared length
// before any type-specific decoding runs.
func verifyHeader(buf []byte) (Header, *Error) {
	if len(buf) < HeaderLength {
		return Header{}, errBadMessageLength("short header")
	}
	for i := 0; i < 16; i++ {
		if buf[i] != markerByte {
			return Header{}, errConnectionNotSynchronized()
		}
	}
	length := binary.BigEndian.Uint16(buf[16:18])
	typ := Type(buf[18])

	switch typ {
	case TypeOpen, TypeUpdate, TypeNotification, TypeKeepalive, TypeTrustRate, TypeVoting:
	default:
		return Header{}, errBadMessageType("unknown message type")
	}

	if int(length) < minLength(typ) || int(length) > MaxLength {
		return Header{}, errBadMessageLength("length out of range for type")
	}

	return Header{Length: length, Type: typ}, nil
}
