// Package router implements the per-router dispatcher: it owns one
// FSM per peer, the RIB, the trust table, and the timer scheduler,
// and is the sole component allowed to touch a socket or mutate
// shared state, per the cycle-breaking design that keeps the FSM
// itself free of I/O.
package router

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/evazorman/bgpsim/internal/bgpmsg"
	"github.com/evazorman/bgpsim/internal/config"
	"github.com/evazorman/bgpsim/internal/event"
	"github.com/evazorman/bgpsim/internal/fsm"
	"github.com/evazorman/bgpsim/internal/log"
	"github.com/evazorman/bgpsim/internal/rib"
	"github.com/evazorman/bgpsim/internal/sched"
	"github.com/evazorman/bgpsim/internal/trust"
)

// trustRateRaiseEvery is the "every 20th received TRUSTRATE raises
// t_inherent" cadence.
const trustRateRaiseEvery = 20

// Router is one simulated BGP speaker: its identity, its adjacency,
// and the RIB/trust/scheduler state every dispatch branch reads or
// mutates. A single mutex serialises all of it: a router's entire
// state (RIB, peer FSMs, trust table) is protected by one mutex, and
// handlers never run concurrently against it.
type Router struct {
	cfg   config.Router
	ownIP net.IP
	log   *logrus.Entry

	mu    sync.Mutex
	peers map[uint32]*peer
	rib   *rib.RIB
	trust *trust.Table
	sched *sched.Scheduler
	tick  *sched.Ticker

	cancel context.CancelFunc
}

// New constructs a router from its static configuration. Peers are
// seeded from cfg.PeerASNs; a peer missing an explicit base port falls
// back to config.BasePortFor(int(peerAS)), the well-known port formula
// the out-of-scope topology generator uses.
func New(cfg config.Router) *Router {
	r := &Router{
		cfg:   cfg,
		ownIP: resolveOwnIP(cfg),
		log:   log.WithKey(log.New("Router"), fmt.Sprintf("AS%d", cfg.ASNumber)),
		peers: make(map[uint32]*peer),
		rib:   rib.New(),
		trust: trust.NewTable(rand.New(rand.NewSource(int64(cfg.ASNumber)))),
		sched: sched.NewScheduler(),
	}
	for _, as := range cfg.PeerASNs {
		port := cfg.PeerBasePorts[as]
		if port == 0 {
			port = config.BasePortFor(int(as))
		}
		r.peers[as] = newPeer(as, cfg.PeerHost(as), port, cfg.ConnectRetry)
	}
	return r
}

func resolveOwnIP(cfg config.Router) net.IP {
	if ip := net.ParseIP(cfg.RouterID); ip != nil {
		return ip
	}
	return net.ParseIP("127.0.0.1")
}

// Run starts the listener and the 1Hz timer tick and blocks until Stop
// is called or the listener fails. The listener and (eventually) any
// other long-running per-router goroutine are fanned out through an
// errgroup.Group and joined here, the way the pack's networked
// daemons join their worker goroutines on shutdown.
func (r *Router) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.listenLoop(gctx) })

	r.tick = sched.NewTicker(time.Second, r.onTick)
	r.tick.Start()

	return g.Wait()
}

// Stop implements shutdown semantics: the listener stops
// accepting, the ticker stops, in-flight scheduled sends are allowed
// to complete, and there is no forced TCP reset.
func (r *Router) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.tick != nil {
		r.tick.Stop()
	}
	return r.sched.Stop()
}

// InitiateSession implements the Idle + peer-hello branch: the
// out-of-scope bring-up collaborator calls this once per
// configured peer to kick its FSM out of Idle. ManualStart moves the
// FSM to Connect; a successful dial then feeds TcpConnectionConfirmed,
// which yields the SendOpen effect. The dial itself runs outside the
// state lock; every FSM.Transition/applyEffect pair runs under it,
// matching the convention dispatch.go's message handlers already use.
func (r *Router) InitiateSession(peerAS uint32) error {
	r.mu.Lock()
	p, ok := r.peers[peerAS]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("router: no configured peer AS%d", peerAS)
	}
	r.trust.Ensure(peerAS)
	p.fsm.Transition(event.ManualStart)
	r.mu.Unlock()

	conn, err := net.DialTimeout("tcp", p.controlAddr(), dialTimeout)
	if err != nil {
		r.mu.Lock()
		eff := p.fsm.Transition(event.TcpConnectionFails)
		r.applyEffect(p, eff)
		r.mu.Unlock()
		return err
	}
	conn.Close()

	r.mu.Lock()
	eff := p.fsm.Transition(event.TcpConnectionConfirmed)
	r.applyEffect(p, eff)
	r.mu.Unlock()
	return nil
}

// RequestVote originates the voting protocol's query phase: it sends
// peerAS a ttl=2 VOTING query asking for its view of subject. peerAS
// answers directly if its adjacency (minus this router) is empty, or
// fans the query out one further hop otherwise; whatever comes back
// arrives through onVoteAnswer and accumulates in the trust entry for
// subject.
func (r *Router) RequestVote(peerAS, subject uint32) error {
	r.mu.Lock()
	p, ok := r.peers[peerAS]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("router: no configured peer AS%d", peerAS)
	}
	r.trust.Ensure(subject)
	r.mu.Unlock()

	query := bgpmsg.Voting{
		TTL:            2,
		Kind:           bgpmsg.VoteQuery,
		OriginAS:       uint16(r.cfg.ASNumber),
		PeerInQuestion: uint16(subject),
	}
	r.sched.After(sched.LinkDelay, func() { r.send(p, query) })
	return nil
}

// applyEffect performs the send side effects an FSM.Transition asked
// for and runs the established/idle hooks. CloseConnection and
// FlushQueue are not acted on: every send and every accepted connection
// is already closed after one message, and sends already queued on the
// scheduler for the peer still go out.
// Callers always hold r.mu: scheduling a send only enqueues a closure
// for the scheduler's own goroutine to run later, so holding the lock
// here is cheap and keeps Transition+applyEffect atomic, matching the
// cycle-breaking split (FSM decides, router acts).
func (r *Router) applyEffect(p *peer, eff fsm.Effect) {
	if eff.SendOpen {
		open := r.openFor(p)
		r.sched.After(sched.LinkDelay, func() { r.send(p, open) })
	}
	if eff.SendKeepalive {
		r.sched.After(sched.LinkDelay, func() { r.send(p, keepaliveMsg) })
	}
	if eff.SendNotification != nil {
		n := *eff.SendNotification
		r.sched.After(sched.LinkDelay, func() { r.send(p, n) })
	}
	if eff.NextState == fsm.Established && eff.FromState != fsm.Established {
		r.onSessionEstablished(p)
	}
	if eff.NextState == fsm.Idle && eff.FromState != fsm.Idle {
		r.onSessionIdled(p)
	}
}

// onSessionEstablished seeds the established-state keepalive cadence
// (15s) and advertises this router's own prefixes.
// Called with r.mu held.
func (r *Router) onSessionEstablished(p *peer) {
	p.fsm.KeepaliveTimer = 15
	p.fsm.KeepaliveTime = 15

	for _, network := range r.cfg.Advertised {
		r.advertise(p, network)
	}
	r.log.Infof("session with AS%d established", p.as)
}

func (r *Router) onSessionIdled(p *peer) {
	r.log.Infof("session with AS%d returned to Idle", p.as)
}

// PeerSnapshot is one peer's state as of a Snapshot call.
type PeerSnapshot struct {
	AS               uint32
	State            fsm.State
	MessagesExchanged int
	TrustInherent    float64
	TrustEffective   float64
}

// Snapshot returns a read-only copy of this router's RIB and per-peer
// trust/FSM state, a debugging aid modelled on the original
// simulator's periodic RIB/trust dump.
func (r *Router) Snapshot() (networks []string, peers []PeerSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	networks = r.rib.Networks()
	for as, p := range r.peers {
		entry, _ := r.trust.Get(as)
		snap := PeerSnapshot{AS: as, State: p.fsm.State, MessagesExchanged: p.messagesExchanged}
		if entry != nil {
			snap.TrustInherent = entry.Inherent
			snap.TrustEffective = entry.Effective()
		}
		peers = append(peers, snap)
	}
	return networks, peers
}

// onTick drives the 1Hz timer tick: every peer's three timers are
// decremented, and an Expires event fires exactly when a timer
// reaches zero from a nonzero value.
func (r *Router) onTick() {
	r.mu.Lock()
	type firing struct {
		p    *peer
		kind event.Kind
	}
	var fire []firing
	for _, p := range r.peers {
		f := p.fsm
		if f.RetryTimer > 0 {
			f.RetryTimer--
			if f.RetryTimer == 0 {
				fire = append(fire, firing{p, event.ConnectRetryTimerExpires})
			}
		}
		if f.HoldTimer > 0 {
			f.HoldTimer--
			if f.HoldTimer == 0 {
				fire = append(fire, firing{p, event.HoldTimerExpires})
			}
		}
		if f.KeepaliveTimer > 0 {
			f.KeepaliveTimer--
			if f.KeepaliveTimer == 0 {
				fire = append(fire, firing{p, event.KeepaliveTimerExpires})
			}
		}
	}
	type retry struct {
		p    *peer
		kind event.Kind
		eff  fsm.Effect
	}
	var needRetry []retry
	for _, f := range fire {
		eff := f.p.fsm.Transition(f.kind)
		r.applyEffect(f.p, eff)
		if f.kind == event.ConnectRetryTimerExpires &&
			(eff.NextState == fsm.Connect || eff.NextState == fsm.Active) {
			needRetry = append(needRetry, retry{f.p, f.kind, eff})
		}
	}
	r.mu.Unlock()

	for _, rt := range needRetry {
		go r.retryConnect(rt.p)
	}
}
