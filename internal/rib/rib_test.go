package rib

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopSuppression(t *testing.T) {
	r := New()
	_, inserted := r.Ingest(1, "100.1.1.0/24", []uint32{2, 3, 1}, net.ParseIP("10.0.0.2"), 0, 0, 0, 0, 0.5)
	assert.False(t, inserted)
	assert.Empty(t, r.Rows("100.1.1.0/24"))
}

func TestIdempotentIngestion(t *testing.T) {
	r := New()
	_, first := r.Ingest(1, "10.0.0.0/8", []uint32{2}, net.ParseIP("10.0.0.2"), 0, 0, 0, 0, 0.5)
	require.True(t, first)
	_, second := r.Ingest(1, "10.0.0.0/8", []uint32{2}, net.ParseIP("10.0.0.2"), 0, 0, 0, 0, 0.5)
	assert.False(t, second)
	assert.Len(t, r.Rows("10.0.0.0/8"), 1)
}

func TestTrustRateComputation(t *testing.T) {
	r := New()
	// len(AS_PATH) == 1: trust is t_eff(leftmost) alone.
	row, _ := r.Ingest(9, "10.0.0.0/8", []uint32{2}, net.ParseIP("10.0.0.2"), 0, 0, 0, 0.9 /* ignored */, 0.5)
	assert.Equal(t, 0.5, row.TrustRate)

	// len(AS_PATH) > 1: trust is pa.TRUST_RATE + t_eff(leftmost).
	row2, _ := r.Ingest(9, "10.0.0.0/8", []uint32{2, 3}, net.ParseIP("10.0.0.2"), 0, 0, 0, 0.2, 0.5)
	assert.InDelta(t, 0.7, row2.TrustRate, 1e-9)
}

func TestBestPathByWeight(t *testing.T) {
	r := New()
	r.Ingest(9, "10.0.0.0/8", []uint32{1}, net.ParseIP("1.1.1.1"), 50, 100, 0, 0, 0)
	r.Ingest(9, "10.0.0.0/8", []uint32{2}, net.ParseIP("1.1.1.2"), 10, 200, 0, 0, 0)

	best, nextHopAS, ok := r.BestPath(net.ParseIP("10.1.2.3"))
	require.True(t, ok)
	assert.Equal(t, 200, best.Weight)
	assert.Equal(t, uint32(2), nextHopAS)
}

func TestBestPathByTrustRateWhenWeightAndLocPrefTie(t *testing.T) {
	r := New()
	r.Ingest(9, "10.0.0.0/8", []uint32{1}, net.ParseIP("1.1.1.1"), 0, 0, 0, 0, 0.8)
	r.Ingest(9, "10.0.0.0/8", []uint32{2}, net.ParseIP("1.1.1.2"), 0, 0, 0, 0, 1.2)

	best, _, ok := r.BestPath(net.ParseIP("10.1.2.3"))
	require.True(t, ok)
	assert.InDelta(t, 0.8, best.TrustRate, 1e-9)
}

func TestLongestPrefixMatch(t *testing.T) {
	r := New()
	r.Ingest(9, "10.0.0.0/8", []uint32{1}, net.ParseIP("1.1.1.1"), 0, 0, 0, 0, 0)
	r.Ingest(9, "10.1.0.0/16", []uint32{2}, net.ParseIP("1.1.1.2"), 0, 0, 0, 0, 0)

	best, _, ok := r.BestPath(net.ParseIP("10.1.2.3"))
	require.True(t, ok)
	assert.Equal(t, "10.1.0.0/16", best.Network)
}

func TestLocalDelivery(t *testing.T) {
	ownIP := net.ParseIP("100.1.1.1")
	advertised := []string{"100.1.1.0/24"}
	assert.True(t, LocalDelivery(net.ParseIP("100.1.1.1"), ownIP, advertised))
	assert.True(t, LocalDelivery(net.ParseIP("100.1.1.55"), ownIP, advertised))
	assert.False(t, LocalDelivery(net.ParseIP("100.2.2.2"), ownIP, advertised))
}

func TestValidNetwork(t *testing.T) {
	assert.NoError(t, ValidNetwork("100.1.1.0/24"))
	assert.Error(t, ValidNetwork("not-a-cidr"))
}
