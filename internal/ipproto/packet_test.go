package ipproto

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildValidPacket(ttl uint8) []byte {
	p := Packet{
		Version:  4,
		IHL:      5,
		TotalLen: 20,
		TTL:      ttl,
		Src:      net.ParseIP("192.168.101.0"),
		Dst:      net.ParseIP("192.168.101.1"),
	}
	return p.Encode()
}

func TestDecodeValidPacket(t *testing.T) {
	raw := buildValidPacket(64)
	p, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, uint8(4), p.Version)
	assert.True(t, p.Src.Equal(net.ParseIP("192.168.101.0")))
	assert.Equal(t, uint8(64), p.TTL)
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	raw := buildValidPacket(64)
	raw[0] = (3 << 4) | 5
	_, err := Decode(raw)
	assert.ErrorIs(t, err, ErrBadVersion)
}

func TestDecodeRejectsCorruptChecksum(t *testing.T) {
	raw := buildValidPacket(64)
	raw[10] ^= 0xFF
	_, err := Decode(raw)
	assert.ErrorIs(t, err, ErrBadChecksum)
}

func TestDecrementTTLExpires(t *testing.T) {
	p := Packet{TTL: 1}
	err := p.DecrementTTL()
	assert.ErrorIs(t, err, ErrTTLExpired)
	assert.Equal(t, uint8(0), p.TTL)
}

func TestDecrementTTLRegeneratesChecksum(t *testing.T) {
	raw := buildValidPacket(2)
	p, err := Decode(raw)
	require.NoError(t, err)
	require.NoError(t, p.DecrementTTL())
	assert.Equal(t, uint8(1), p.TTL)

	reencoded := p.Encode()
	redecoded, err := Decode(reencoded)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), redecoded.TTL)
}
