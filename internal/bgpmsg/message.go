package bgpmsg

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Message is the tagged-union interface every decoded value satisfies.
type Message interface {
	MsgType() Type
}

// Prefix is a CIDR carried in withdrawn-routes or NLRI lists, encoded
// on the wire as a 1-byte prefix length followed by 4 address octets
// (IPv6 is out of scope).
type Prefix struct {
	IP  net.IP
	Len int
}

func (p Prefix) String() string {
	return fmt.Sprintf("%s/%d", p.IP.String(), p.Len)
}

func encodePrefix(p Prefix) ([]byte, *Error) {
	if p.Len > 32 {
		return nil, errInvalidNetworkField("prefix length exceeds 32")
	}
	buf := make([]byte, 5)
	buf[0] = byte(p.Len)
	ip4 := p.IP.To4()
	if ip4 == nil {
		ip4 = make([]byte, 4)
	}
	copy(buf[1:], ip4)
	return buf, nil
}

func decodePrefix(buf []byte) (Prefix, *Error) {
	if len(buf) != 5 {
		return Prefix{}, errInvalidNetworkField("truncated prefix entry")
	}
	plen := int(buf[0])
	if plen > 32 {
		return Prefix{}, errInvalidNetworkField("prefix length exceeds 32")
	}
	return Prefix{IP: net.IP(append([]byte{}, buf[1:5]...)), Len: plen}, nil
}

// ---- OPEN ----

type Open struct {
	Version  uint8
	AS       uint16
	HoldTime uint16
	Identity net.IP
}

func (Open) MsgType() Type { return TypeOpen }

func NewOpen(as uint16, holdTime uint16, identity net.IP) Open {
	return Open{Version: 4, AS: as, HoldTime: holdTime, Identity: identity}
}

func (m Open) encode() []byte {
	body := make([]byte, 10)
	body[0] = m.Version
	binary.BigEndian.PutUint16(body[1:3], m.AS)
	binary.BigEndian.PutUint16(body[3:5], m.HoldTime)
	ip4 := m.Identity.To4()
	if ip4 == nil {
		ip4 = make([]byte, 4)
	}
	copy(body[5:9], ip4)
	body[9] = 0 // optional-parameters length: always empty
	return body
}

func decodeOpen(body []byte) (Open, *Error) {
	if len(body) < 10 {
		return Open{}, errBadMessageLength("short OPEN body")
	}
	m := Open{
		Version:  body[0],
		AS:       binary.BigEndian.Uint16(body[1:3]),
		HoldTime: binary.BigEndian.Uint16(body[3:5]),
		Identity: net.IP(append([]byte{}, body[5:9]...)),
	}
	if m.Version != 4 {
		return m, errUnsupportedVersion()
	}
	if m.AS < 1 {
		return m, errBadPeerAS("AS number must be >= 1")
	}
	if m.Identity.To4() == nil || m.Identity.IsUnspecified() {
		return m, errBadBGPIdentifier()
	}
	if m.HoldTime == 0 || m.HoldTime > 100 {
		return m, errUnacceptableHoldTime()
	}
	return m, nil
}

// ---- UPDATE ----

type Update struct {
	Withdrawn []Prefix
	Attrs     PathAttrs
	NLRI      []Prefix
}

func (Update) MsgType() Type { return TypeUpdate }

func (m Update) encode() ([]byte, *Error) {
	var withdrawn []byte
	for _, p := range m.Withdrawn {
		b, err := encodePrefix(p)
		if err != nil {
			return nil, err
		}
		withdrawn = append(withdrawn, b...)
	}

	attrBytes := []byte{}
	if !m.Attrs.empty() || len(m.NLRI) > 0 {
		attrBytes = m.Attrs.encode()
	}

	var nlri []byte
	for _, p := range m.NLRI {
		b, err := encodePrefix(p)
		if err != nil {
			return nil, err
		}
		nlri = append(nlri, b...)
	}

	body := make([]byte, 0, 4+len(withdrawn)+len(attrBytes)+len(nlri))
	wl := make([]byte, 2)
	binary.BigEndian.PutUint16(wl, uint16(len(withdrawn)))
	body = append(body, wl...)
	body = append(body, withdrawn...)
	pl := make([]byte, 2)
	binary.BigEndian.PutUint16(pl, uint16(len(attrBytes)))
	body = append(body, pl...)
	body = append(body, attrBytes...)
	body = append(body, nlri...)
	return body, nil
}

func decodeUpdate(body []byte) (Update, *Error) {
	if len(body) < 4 {
		return Update{}, errBadMessageLength("short UPDATE body")
	}
	var m Update
	i := 0
	wlen := int(binary.BigEndian.Uint16(body[i : i+2]))
	i += 2
	if i+wlen > len(body) {
		return m, errMalformedAttributeList("withdrawn-routes length overruns body")
	}
	if wlen == 0 {
		// withdrawn-length=0 implies the withdrawn list must be empty.
	} else {
		wbuf := body[i : i+wlen]
		if len(wbuf)%5 != 0 {
			return m, errMalformedAttributeList("malformed withdrawn-routes list")
		}
		for j := 0; j < len(wbuf); j += 5 {
			p, err := decodePrefix(wbuf[j : j+5])
			if err != nil {
				return m, err
			}
			m.Withdrawn = append(m.Withdrawn, p)
		}
	}
	i += wlen

	if i+2 > len(body) {
		return m, errBadMessageLength("missing path-attributes length")
	}
	palen := int(binary.BigEndian.Uint16(body[i : i+2]))
	i += 2
	if i+palen > len(body) {
		return m, errMalformedAttributeList("path-attributes length overruns body")
	}
	pabuf := body[i : i+palen]
	i += palen

	nbuf := body[i:]

	if palen == 0 {
		if len(pabuf) != 0 || len(nbuf) != 0 {
			return m, errMalformedAttributeList("empty path-attr-length but attrs or NLRI present")
		}
		return m, nil
	}

	attrs, err := decodePathAttrs(pabuf)
	if err != nil {
		return m, err
	}
	m.Attrs = attrs

	if len(nbuf)%5 != 0 {
		return m, errMalformedAttributeList("malformed NLRI list")
	}
	for j := 0; j < len(nbuf); j += 5 {
		p, perr := decodePrefix(nbuf[j : j+5])
		if perr != nil {
			return m, perr
		}
		m.NLRI = append(m.NLRI, p)
	}
	return m, nil
}

// ---- KEEPALIVE ----

type Keepalive struct{}

func (Keepalive) MsgType() Type { return TypeKeepalive }

// ---- NOTIFICATION ----

type Notification struct {
	Code    uint8
	Subcode uint8
	Data    []byte
}

func (Notification) MsgType() Type { return TypeNotification }

func NewNotificationFromError(e *Error) Notification {
	return Notification{Code: e.Code, Subcode: e.Subcode}
}

func (m Notification) encode() []byte {
	body := make([]byte, 2+len(m.Data))
	body[0] = m.Code
	body[1] = m.Subcode
	copy(body[2:], m.Data)
	return body
}

func decodeNotification(body []byte) (Notification, *Error) {
	if len(body) < 2 {
		return Notification{}, errBadMessageLength("short NOTIFICATION body")
	}
	return Notification{Code: body[0], Subcode: body[1], Data: append([]byte{}, body[2:]...)}, nil
}

// ---- TRUSTRATE ----

type TrustRate struct {
	AS    uint16
	Trust float64
}

func (TrustRate) MsgType() Type { return TypeTrustRate }

func encodeTrustFixed(v float64) uint16 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint16(v * 10000)
}

func decodeTrustFixed(u uint16) float64 {
	return float64(u) / 10000
}

func (m TrustRate) encode() []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], m.AS)
	binary.BigEndian.PutUint16(body[2:4], encodeTrustFixed(m.Trust))
	return body
}

func decodeTrustRate(body []byte) (TrustRate, *Error) {
	if len(body) != 4 {
		return TrustRate{}, errBadMessageLength("TRUSTRATE body must be 4 bytes")
	}
	return TrustRate{
		AS:    binary.BigEndian.Uint16(body[0:2]),
		Trust: decodeTrustFixed(binary.BigEndian.Uint16(body[2:4])),
	}, nil
}

// ---- VOTING ----

type VoteType uint8

const (
	VoteQuery  VoteType = 0
	VoteAnswer VoteType = 1
)

type Voting struct {
	TTL                 uint8
	Kind                VoteType
	NumSecondNeighbours uint16
	OriginAS            uint16
	PeerInQuestion      uint16
	VoteValue           float64
}

func (Voting) MsgType() Type { return TypeVoting }

func (m Voting) encode() []byte {
	body := make([]byte, 10)
	body[0] = m.TTL
	body[1] = byte(m.Kind)
	binary.BigEndian.PutUint16(body[2:4], m.NumSecondNeighbours)
	binary.BigEndian.PutUint16(body[4:6], m.OriginAS)
	binary.BigEndian.PutUint16(body[6:8], m.PeerInQuestion)
	binary.BigEndian.PutUint16(body[8:10], encodeTrustFixed(m.VoteValue))
	return body
}

// decodeVoting parses a VOTING body and verifies it: origin_as must be
// non-zero, type must be query or answer, and for a query the ttl is
// decremented here. The decremented value, not the wire value, is what
// the dispatcher's forward-vs-answer gate and any re-forwarded copy
// use; an answer's ttl is carried through unchanged (it is pinned at 0
// for the whole return phase).
func decodeVoting(body []byte) (Voting, *Error) {
	if len(body) != 10 {
		return Voting{}, errBadMessageLength("VOTING body must be 10 bytes")
	}
	m := Voting{
		TTL:                 body[0],
		Kind:                VoteType(body[1]),
		NumSecondNeighbours: binary.BigEndian.Uint16(body[2:4]),
		OriginAS:            binary.BigEndian.Uint16(body[4:6]),
		PeerInQuestion:      binary.BigEndian.Uint16(body[6:8]),
		VoteValue:           decodeTrustFixed(binary.BigEndian.Uint16(body[8:10])),
	}
	if m.Kind != VoteQuery && m.Kind != VoteAnswer {
		return m, errBadMessageType("unknown VOTING type")
	}
	if m.OriginAS == 0 {
		return m, errBadPeerAS("VOTING origin_as must be non-zero")
	}
	if m.Kind == VoteQuery && m.TTL > 0 {
		m.TTL--
	}
	return m, nil
}
