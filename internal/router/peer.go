package router

import (
	"fmt"

	"github.com/evazorman/bgpsim/internal/fsm"
)

// peer is one adjacency's bookkeeping, grounded on the conventional Peer
// type (stigt-gobgp/server/peer.go: fsm plus per-peer bookkeeping fields).
// The outbound queue itself lives on the router's shared sched.Scheduler
// rather than per peer.
type peer struct {
	as   uint32
	host string
	port int // peer's BGP-listen base port (B)

	fsm *fsm.FSM

	messagesExchanged int
	trustRateRecvd    int             // counts received TRUSTRATE, for the every-20th rule
	votingFor         map[uint32]bool // subject ASes this router has an outstanding forwarded VOTING query for on this peer's behalf
}

func newPeer(as uint32, host string, port int, retryTime int) *peer {
	return &peer{
		as:        as,
		host:      host,
		port:      port,
		fsm:       fsm.New(as, retryTime),
		votingFor: make(map[uint32]bool),
	}
}

func (p *peer) controlAddr() string {
	return fmt.Sprintf("%s:%d", p.host, p.port)
}

// controlSourcePort is the deterministic source port (B+1) the
// fresh-connection-per-message speaker always dials from. Routers use
// it to resolve which peer an inbound connection on their own listen
// port came from, since every send opens a brand-new TCP connection
// and cannot otherwise be told apart by remote IP alone when every
// router shares one host.
func (p *peer) controlSourcePort() int {
	return p.port + 1
}
