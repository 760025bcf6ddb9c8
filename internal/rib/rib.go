// Package rib implements the routing information base and best-path
// selection, modelled on a conventional Path/RIB shape but simplified
// to the closed attribute set this simulator's message family
// carries.
package rib

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Row is one (prefix, AS_PATH) entry.
type Row struct {
	Network   string // CIDR, e.g. "100.1.1.0/24"
	NextHop   net.IP
	MED       int
	LocPref   int
	Weight    int
	TrustRate float64
	ASPath    []uint32 // leftmost = most recent hop
}

// ASPathString renders AS_PATH the way it is conceptually stored on
// the wire: a space-separated sequence of AS numbers.
func (r Row) ASPathString() string {
	parts := make([]string, len(r.ASPath))
	for i, as := range r.ASPath {
		parts[i] = strconv.FormatUint(uint64(as), 10)
	}
	return strings.Join(parts, " ")
}

func (r Row) key() string {
	return r.Network + "|" + r.ASPathString()
}

// RIB holds every known row, keyed by NETWORK. It carries no lock of
// its own: the owning router is the serialisation boundary.
type RIB struct {
	rows map[string][]Row
	seen map[string]bool // (network, AS_PATH) dedup set, idempotence
}

func New() *RIB {
	return &RIB{
		rows: make(map[string][]Row),
		seen: make(map[string]bool),
	}
}

// Ingest applies the ingestion rule for a single NLRI
// prefix: loop suppression against ownAS, then TRUST_RATE
// computation, then idempotent insertion. trustEffLeftmost is
// t_eff(leftmost-AS-of-AS_PATH), resolved by the caller from the
// trust table (internal/trust) so this package stays decoupled from
// trust bookkeeping.
func (r *RIB) Ingest(ownAS uint32, network string, asPath []uint32, nextHop net.IP, locPref, weight, med int, pathTrustRate, trustEffLeftmost float64) (Row, bool) {
	for _, as := range asPath {
		if as == ownAS {
			return Row{}, false // loop suppression
		}
	}

	trust := trustEffLeftmost
	if len(asPath) > 1 {
		trust = pathTrustRate + trustEffLeftmost
	}

	row := Row{
		Network:   network,
		NextHop:   nextHop,
		MED:       med,
		LocPref:   locPref,
		Weight:    weight,
		TrustRate: trust,
		ASPath:    append([]uint32{}, asPath...),
	}

	if r.seen[row.key()] {
		return row, false // idempotence: duplicate (prefix, AS_PATH)
	}
	r.seen[row.key()] = true
	r.rows[network] = append(r.rows[network], row)
	return row, true
}

// Propagate builds the re-advertisement of a freshly ingested row:
// the AS_PATH gains ownAS as its new leftmost hop.
func Propagate(ownAS uint32, ownIP net.IP, row Row) (asPath []uint32, nextHop net.IP, trustRate float64) {
	asPath = append([]uint32{ownAS}, row.ASPath...)
	return asPath, ownIP, row.TrustRate
}

// Rows returns every row known for a network, for tests and snapshots.
func (r *RIB) Rows(network string) []Row {
	return append([]Row{}, r.rows[network]...)
}

// Networks lists every distinct NETWORK prefix currently held.
func (r *RIB) Networks() []string {
	nets := make([]string, 0, len(r.rows))
	for n := range r.rows {
		nets = append(nets, n)
	}
	return nets
}

// BestPath implements best-path selection given a
// destination address: longest-prefix match (XOR-distance tie-break)
// then the WEIGHT/LOC_PREF/TRUST_RATE/AS_PATH-length/MED preference
// order. It returns the chosen row and the next-hop AS (leftmost AS
// of its AS_PATH).
func (r *RIB) BestPath(dst net.IP) (Row, uint32, bool) {
	network, ok := r.longestMatch(dst)
	if !ok {
		return Row{}, 0, false
	}
	rows := r.rows[network]
	if len(rows) == 0 {
		return Row{}, 0, false
	}

	best := rows[0]
	for _, candidate := range rows[1:] {
		if better(candidate, best) {
			best = candidate
		}
	}
	if len(best.ASPath) == 0 {
		return best, 0, false
	}
	return best, best.ASPath[0], true
}

// better reports whether candidate outranks incumbent under the
// WEIGHT/LOC_PREF/TRUST_RATE/AS_PATH-length/MED ordered preference
// list.
func better(candidate, incumbent Row) bool {
	if candidate.Weight != incumbent.Weight {
		return candidate.Weight > incumbent.Weight
	}
	if candidate.LocPref != incumbent.LocPref {
		return candidate.LocPref > incumbent.LocPref
	}
	if candidate.TrustRate != incumbent.TrustRate {
		return candidate.TrustRate < incumbent.TrustRate
	}
	if len(candidate.ASPath) != len(incumbent.ASPath) {
		return len(candidate.ASPath) < len(incumbent.ASPath)
	}
	return candidate.MED < incumbent.MED
}

func (r *RIB) longestMatch(dst net.IP) (string, bool) {
	dst4 := dst.To4()
	if dst4 == nil {
		return "", false
	}
	var bestNet string
	bestLen := -1
	var bestXOR uint32
	found := false

	for network := range r.rows {
		_, ipnet, err := net.ParseCIDR(network)
		if err != nil || ipnet == nil {
			continue
		}
		if !ipnet.Contains(dst4) {
			continue
		}
		ones, _ := ipnet.Mask.Size()
		x := xor32(ipnet.IP.To4(), dst4)
		switch {
		case ones > bestLen:
			bestLen, bestNet, bestXOR, found = ones, network, x, true
		case ones == bestLen && found && x < bestXOR:
			bestNet, bestXOR = network, x
		}
	}
	return bestNet, found
}

func xor32(a, b net.IP) uint32 {
	var x uint32
	for i := 0; i < 4; i++ {
		x = x<<8 | uint32(a[i]^b[i])
	}
	return x
}

// LocalDelivery implements the local-delivery rule: dst is local if
// it equals the router's own IP or falls inside any advertised CIDR.
func LocalDelivery(dst, ownIP net.IP, advertised []string) bool {
	if ownIP.Equal(dst) {
		return true
	}
	for _, cidr := range advertised {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if ipnet.Contains(dst) {
			return true
		}
	}
	return false
}

// ValidNetwork reports whether a NETWORK string is a legal CIDR.
func ValidNetwork(network string) error {
	_, _, err := net.ParseCIDR(network)
	if err != nil {
		return fmt.Errorf("rib: invalid CIDR %q: %w", network, err)
	}
	return nil
}
