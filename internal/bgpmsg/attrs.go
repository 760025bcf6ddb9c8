package bgpmsg

import (
	"encoding/binary"
	"math"
	"net"
)

// AttrType enumerates the UPDATE path-attribute keys.
type AttrType uint8

const (
	AttrOrigin    AttrType = 1
	AttrNextHop   AttrType = 2
	AttrLocalPref AttrType = 3
	AttrWeight    AttrType = 4
	AttrASPath    AttrType = 5
	AttrTrustRate AttrType = 6
	AttrMED       AttrType = 7
)

// Origin values, carried for completeness from the RFC-4271 lineage;
// the simulator never chooses between them (every locally originated
// route uses OriginIGP).
const (
	OriginIGP        uint8 = 0
	OriginEGP        uint8 = 1
	OriginIncomplete uint8 = 2
)

// PathAttrs is the path-attribute mapping carried on an UPDATE. Encoding
// always writes all seven attributes; decoding requires none of them,
// and an absent attribute leaves its field at the zero value.
type PathAttrs struct {
	Origin    uint8
	NextHop   net.IP
	LocalPref uint32
	Weight    uint32
	ASPath    []uint32 // leftmost = most recent hop
	TrustRate float64
	MED       uint32
}

func (pa PathAttrs) encode() []byte {
	var buf []byte

	put := func(t AttrType, val []byte) {
		hdr := make([]byte, 3)
		hdr[0] = byte(t)
		binary.BigEndian.PutUint16(hdr[1:3], uint16(len(val)))
		buf = append(buf, hdr...)
		buf = append(buf, val...)
	}

	put(AttrOrigin, []byte{pa.Origin})

	nh := pa.NextHop.To4()
	if nh == nil {
		nh = make([]byte, 4)
	}
	put(AttrNextHop, nh)

	lp := make([]byte, 4)
	binary.BigEndian.PutUint32(lp, pa.LocalPref)
	put(AttrLocalPref, lp)

	wt := make([]byte, 4)
	binary.BigEndian.PutUint32(wt, pa.Weight)
	put(AttrWeight, wt)

	asb := make([]byte, len(pa.ASPath)*4)
	for i, as := range pa.ASPath {
		binary.BigEndian.PutUint32(asb[i*4:i*4+4], as)
	}
	put(AttrASPath, asb)

	tr := make([]byte, 8)
	binary.BigEndian.PutUint64(tr, math.Float64bits(pa.TrustRate))
	put(AttrTrustRate, tr)

	med := make([]byte, 4)
	binary.BigEndian.PutUint32(med, pa.MED)
	put(AttrMED, med)

	return buf
}

func decodePathAttrs(buf []byte) (PathAttrs, *Error) {
	var pa PathAttrs
	i := 0
	for i < len(buf) {
		if i+3 > len(buf) {
			return pa, errMalformedAttributeList("truncated attribute TLV")
		}
		t := AttrType(buf[i])
		l := int(binary.BigEndian.Uint16(buf[i+1 : i+3]))
		i += 3
		if i+l > len(buf) {
			return pa, errMalformedAttributeList("attribute length overruns body")
		}
		val := buf[i : i+l]
		i += l

		switch t {
		case AttrOrigin:
			if len(val) != 1 {
				return pa, errMalformedAttributeList("bad ORIGIN length")
			}
			pa.Origin = val[0]
		case AttrNextHop:
			if len(val) != 4 {
				return pa, errMalformedAttributeList("bad NEXT_HOP length")
			}
			pa.NextHop = net.IP(append([]byte{}, val...))
		case AttrLocalPref:
			if len(val) != 4 {
				return pa, errMalformedAttributeList("bad LOCAL_PREF length")
			}
			pa.LocalPref = binary.BigEndian.Uint32(val)
		case AttrWeight:
			if len(val) != 4 {
				return pa, errMalformedAttributeList("bad WEIGHT length")
			}
			pa.Weight = binary.BigEndian.Uint32(val)
		case AttrASPath:
			if len(val)%4 != 0 {
				return pa, errMalformedAttributeList("bad AS_PATH length")
			}
			for j := 0; j < len(val); j += 4 {
				pa.ASPath = append(pa.ASPath, binary.BigEndian.Uint32(val[j:j+4]))
			}
		case AttrTrustRate:
			if len(val) != 8 {
				return pa, errMalformedAttributeList("bad TRUST_RATE length")
			}
			pa.TrustRate = math.Float64frombits(binary.BigEndian.Uint64(val))
		case AttrMED:
			if len(val) != 4 {
				return pa, errMalformedAttributeList("bad MED length")
			}
			pa.MED = binary.BigEndian.Uint32(val)
		default:
			return pa, errMalformedAttributeList("unrecognized attribute type")
		}
	}
	return pa, nil
}

func (pa PathAttrs) empty() bool {
	return pa.NextHop == nil && pa.LocalPref == 0 && pa.Weight == 0 &&
		len(pa.ASPath) == 0 && pa.TrustRate == 0 && pa.MED == 0 && pa.Origin == 0
}
