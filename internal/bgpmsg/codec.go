package bgpmsg

// Encode serialises a Message to its wire form: 19-byte header
// followed by the type-specific body
func Encode(m Message) ([]byte, error) {
	var body []byte
	var err *Error

	switch v := m.(type) {
	case Open:
		body = v.encode()
	case Update:
		body, err = v.encode()
	case Keepalive:
		body = nil
	case Notification:
		body = v.encode()
	case TrustRate:
		body = v.encode()
	case Voting:
		body = v.encode()
	default:
		return nil, errBadMessageType("unknown message value")
	}
	if err != nil {
		return nil, err
	}

	total := HeaderLength + len(body)
	if total > MaxLength {
		return nil, errBadMessageLength("encoded message exceeds 4096 bytes")
	}
	buf := make([]byte, total)
	encodeHeader(buf, uint16(total), m.MsgType())
	copy(buf[HeaderLength:], body)
	return buf, nil
}

// Decode parses a complete wire-format message (header + body).
func Decode(buf []byte) (Message, error) {
	hdr, err := verifyHeader(buf)
	if err != nil {
		return nil, err
	}
	if len(buf) != int(hdr.Length) {
		return nil, errBadMessageLength("buffer does not match declared length")
	}
	body := buf[HeaderLength:]

	switch hdr.Type {
	case TypeOpen:
		m, e := decodeOpen(body)
		if e != nil {
			return nil, e
		}
		return m, nil
	case TypeUpdate:
		m, e := decodeUpdate(body)
		if e != nil {
			return nil, e
		}
		return m, nil
	case TypeKeepalive:
		if len(body) != 0 {
			return nil, errBadMessageLength("KEEPALIVE carries no body")
		}
		return Keepalive{}, nil
	case TypeNotification:
		m, e := decodeNotification(body)
		if e != nil {
			return nil, e
		}
		return m, nil
	case TypeTrustRate:
		m, e := decodeTrustRate(body)
		if e != nil {
			return nil, e
		}
		return m, nil
	case TypeVoting:
		m, e := decodeVoting(body)
		if e != nil {
			return nil, e
		}
		return m, nil
	default:
		return nil, errBadMessageType("unknown message type")
	}
}

// DecodeHeader exposes verify_header() for callers (the listener's
// connection reader) that need to know the total length before reading
// the rest of the body off the wire.
func DecodeHeader(buf []byte) (Header, error) {
	hdr, err := verifyHeader(buf)
	if err != nil {
		return Header{}, err
	}
	return hdr, nil
}
