package bgpmsg

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripKeepalive(t *testing.T) {
	buf, err := Encode(Keepalive{})
	require.NoError(t, err)
	assert.Len(t, buf, HeaderLength)

	m, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, Keepalive{}, m)
}

func TestRoundTripOpen(t *testing.T) {
	want := NewOpen(65001, 90, net.ParseIP("10.0.0.1"))
	buf, err := Encode(want)
	require.NoError(t, err)
	assert.Len(t, buf, 29)

	got, err := Decode(buf)
	require.NoError(t, err)
	open := got.(Open)
	assert.Equal(t, want.Version, open.Version)
	assert.Equal(t, want.AS, open.AS)
	assert.Equal(t, want.HoldTime, open.HoldTime)
	assert.True(t, want.Identity.Equal(open.Identity))
}

func TestOpenBoundaryErrors(t *testing.T) {
	cases := []struct {
		name string
		m    Open
		code uint8
		sub  uint8
	}{
		{"bad version", Open{Version: 3, AS: 1, HoldTime: 10, Identity: net.ParseIP("1.1.1.1")}, CodeOpen, SubUnsupportedVersion},
		{"bad as", Open{Version: 4, AS: 0, HoldTime: 10, Identity: net.ParseIP("1.1.1.1")}, CodeOpen, SubBadPeerAS},
		{"hold time zero", Open{Version: 4, AS: 1, HoldTime: 0, Identity: net.ParseIP("1.1.1.1")}, CodeOpen, SubUnacceptableHoldTime},
		{"hold time 101", Open{Version: 4, AS: 1, HoldTime: 101, Identity: net.ParseIP("1.1.1.1")}, CodeOpen, SubUnacceptableHoldTime},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf, err := Encode(c.m)
			require.NoError(t, err)
			_, derr := Decode(buf)
			require.Error(t, derr)
			berr := derr.(*Error)
			assert.Equal(t, c.code, berr.Code)
			assert.Equal(t, c.sub, berr.Subcode)
		})
	}
}

func TestBadBGPIdentifier(t *testing.T) {
	m := Open{Version: 4, AS: 1, HoldTime: 10, Identity: net.IP{}}
	buf, err := Encode(m)
	require.NoError(t, err)
	_, derr := Decode(buf)
	require.Error(t, derr)
	berr := derr.(*Error)
	assert.Equal(t, CodeOpen, berr.Code)
	assert.Equal(t, SubBadBGPIdentifier, berr.Subcode)
}

func TestKeepaliveWrongLength(t *testing.T) {
	buf, err := Encode(Keepalive{})
	require.NoError(t, err)
	// corrupt the length field to something else while leaving the
	// body (none) unchanged.
	buf[17] = buf[17] + 1
	_, derr := Decode(buf)
	require.Error(t, derr)
	berr := derr.(*Error)
	assert.Equal(t, uint8(CodeMessageHeader), berr.Code)
	assert.Equal(t, uint8(SubBadMessageLength), berr.Subcode)
}

func TestRoundTripUpdate(t *testing.T) {
	want := Update{
		NLRI: []Prefix{{IP: net.ParseIP("100.1.1.0"), Len: 24}},
		Attrs: PathAttrs{
			Origin:    OriginIGP,
			NextHop:   net.ParseIP("10.0.0.1"),
			LocalPref: 100,
			Weight:    0,
			ASPath:    []uint32{1, 2},
			TrustRate: 0.73,
			MED:       5,
		},
	}
	buf, err := Encode(want)
	require.NoError(t, err)

	got, err := Decode(buf)
	require.NoError(t, err)
	update := got.(Update)
	require.Len(t, update.NLRI, 1)
	assert.Equal(t, "100.1.1.0/24", update.NLRI[0].String())
	assert.Equal(t, want.Attrs.ASPath, update.Attrs.ASPath)
	assert.InDelta(t, want.Attrs.TrustRate, update.Attrs.TrustRate, 1e-9)
	assert.Equal(t, want.Attrs.LocalPref, update.Attrs.LocalPref)
	assert.Equal(t, want.Attrs.MED, update.Attrs.MED)
}

func TestEmptyUpdateRoundTrips(t *testing.T) {
	want := Update{}
	buf, err := Encode(want)
	require.NoError(t, err)
	assert.Len(t, buf, 23)

	got, err := Decode(buf)
	require.NoError(t, err)
	update := got.(Update)
	assert.Empty(t, update.Withdrawn)
	assert.Empty(t, update.NLRI)
}

func TestPrefixTooLongFails(t *testing.T) {
	m := Update{NLRI: []Prefix{{IP: net.ParseIP("10.0.0.0"), Len: 33}}}
	_, err := Encode(m)
	require.Error(t, err)
	berr := err.(*Error)
	assert.Equal(t, uint8(CodeSimPrivate), berr.Code)
	assert.Equal(t, uint8(SubPrefixTooLong), berr.Subcode)
}

func TestRoundTripNotification(t *testing.T) {
	want := Notification{Code: CodeFSM, Subcode: 0}
	buf, err := Encode(want)
	require.NoError(t, err)

	got, err := Decode(buf)
	require.NoError(t, err)
	n := got.(Notification)
	assert.Equal(t, want.Code, n.Code)
	assert.Equal(t, want.Subcode, n.Subcode)
}

func TestRoundTripTrustRate(t *testing.T) {
	want := TrustRate{AS: 65010, Trust: 0.512}
	buf, err := Encode(want)
	require.NoError(t, err)
	assert.Len(t, buf, 23)

	got, err := Decode(buf)
	require.NoError(t, err)
	tr := got.(TrustRate)
	assert.Equal(t, want.AS, tr.AS)
	assert.InDelta(t, want.Trust, tr.Trust, 1e-3)
}

func TestRoundTripVoting(t *testing.T) {
	// Decode verifies a query by decrementing its ttl, so the value
	// read back is one below the value encoded.
	want := Voting{TTL: 2, Kind: VoteQuery, OriginAS: 1, PeerInQuestion: 2, NumSecondNeighbours: 0, VoteValue: 0}
	buf, err := Encode(want)
	require.NoError(t, err)
	assert.Len(t, buf, 29)

	got, err := Decode(buf)
	require.NoError(t, err)
	v := got.(Voting)
	assert.Equal(t, want.TTL-1, v.TTL)
	assert.Equal(t, want.Kind, v.Kind)
	assert.Equal(t, want.OriginAS, v.OriginAS)
	assert.Equal(t, want.PeerInQuestion, v.PeerInQuestion)
}

func TestVotingAnswerTTLNotDecremented(t *testing.T) {
	// An answer's ttl is pinned at 0 through the whole return phase;
	// only a query's ttl is decremented on verification.
	want := Voting{TTL: 0, Kind: VoteAnswer, OriginAS: 1, PeerInQuestion: 2, VoteValue: 0.5}
	buf, err := Encode(want)
	require.NoError(t, err)

	got, err := Decode(buf)
	require.NoError(t, err)
	v := got.(Voting)
	assert.Equal(t, want.TTL, v.TTL)
}

func TestVotingZeroOriginASIsBadPeerAS(t *testing.T) {
	buf, err := Encode(Voting{TTL: 2, Kind: VoteQuery, OriginAS: 0, PeerInQuestion: 2})
	require.NoError(t, err)
	_, derr := Decode(buf)
	require.Error(t, derr)
	berr := derr.(*Error)
	assert.Equal(t, uint8(CodeOpen), berr.Code)
	assert.Equal(t, uint8(SubBadPeerAS), berr.Subcode)
}

func TestVotingBadType(t *testing.T) {
	buf, err := Encode(Voting{TTL: 1, Kind: VoteAnswer, OriginAS: 1, PeerInQuestion: 2})
	require.NoError(t, err)
	buf[HeaderLength+1] = 7 // corrupt the type field to an unknown value
	_, derr := Decode(buf)
	require.Error(t, derr)
	berr := derr.(*Error)
	assert.Equal(t, uint8(CodeMessageHeader), berr.Code)
	assert.Equal(t, uint8(SubBadMessageType), berr.Subcode)
}

func TestMarkerMismatch(t *testing.T) {
	buf, err := Encode(Keepalive{})
	require.NoError(t, err)
	buf[0] = 0x00
	_, derr := Decode(buf)
	require.Error(t, derr)
	berr := derr.(*Error)
	assert.Equal(t, uint8(CodeMessageHeader), berr.Code)
	assert.Equal(t, uint8(SubConnectionNotSynchronized), berr.Subcode)
}
