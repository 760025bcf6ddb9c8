package router

import (
	"net"

	"github.com/evazorman/bgpsim/internal/bgpmsg"
	"github.com/evazorman/bgpsim/internal/event"
	"github.com/evazorman/bgpsim/internal/fsm"
	"github.com/evazorman/bgpsim/internal/rib"
	"github.com/evazorman/bgpsim/internal/sched"
	"github.com/evazorman/bgpsim/internal/trust"
)

var keepaliveMsg = bgpmsg.Keepalive{}

// openFor builds the OPEN this router sends a given peer: its own AS
// number, negotiated hold time, and router identity
func (r *Router) openFor(p *peer) bgpmsg.Open {
	return bgpmsg.NewOpen(uint16(r.cfg.ASNumber), uint16(r.cfg.HoldTime), r.ownIP)
}

// advertise sends an UPDATE originating one of this router's own
// advertised prefixes: AS_PATH is just this router's own AS.
func (r *Router) advertise(p *peer, network string) {
	_, ipnet, err := net.ParseCIDR(network)
	if err != nil {
		r.log.Warnf("skipping malformed advertised prefix %q: %s", network, err)
		return
	}
	ones, _ := ipnet.Mask.Size()
	upd := bgpmsg.Update{
		NLRI: []bgpmsg.Prefix{{IP: ipnet.IP, Len: ones}},
		Attrs: bgpmsg.PathAttrs{
			Origin:    bgpmsg.OriginIGP,
			NextHop:   r.ownIP,
			LocalPref: 100,
			ASPath:    []uint32{r.cfg.ASNumber},
		},
	}
	r.sched.After(sched.LinkDelay, func() { r.send(p, upd) })
}

// dispatch routes an inbound message by (current FSM state, message
// type) to an FSM event, side effect, and any domain-level (RIB/trust)
// update. Called with r.mu held.
func (r *Router) dispatch(senderAS uint32, msg bgpmsg.Message) {
	p, ok := r.peers[senderAS]
	if !ok {
		r.log.Warnf("message from unconfigured AS%d ignored", senderAS)
		return
	}

	switch m := msg.(type) {
	case bgpmsg.Open:
		r.onOpen(p, m)
	case bgpmsg.Keepalive:
		r.onKeepalive(p)
	case bgpmsg.Update:
		r.onUpdate(p, m)
	case bgpmsg.Notification:
		r.onNotification(p, m)
	case bgpmsg.TrustRate:
		r.onTrustRate(p, m)
	case bgpmsg.Voting:
		r.onVoting(p, m)
	default:
		r.log.Warnf("unhandled message type from AS%d", senderAS)
	}
}

// onMessageError handles a malformed inbound message: a decode failure
// is fed to the peer's FSM as the matching BGPHeaderErr/BGPOpenMsgErr
// event, which always yields a NOTIFICATION-and-close effect outside
// Idle/Connect/Active.
func (r *Router) onMessageError(senderAS uint32, berr *bgpmsg.Error) {
	p, ok := r.peers[senderAS]
	if !ok {
		return
	}
	kind := event.BGPHeaderErr
	if berr.Code == bgpmsg.CodeOpen {
		kind = event.BGPOpenMsgErr
	}
	eff := p.fsm.Transition(kind)
	if eff.SendNotification != nil {
		n := bgpmsg.NewNotificationFromError(berr)
		eff.SendNotification = &n
	}
	r.applyEffect(p, eff)
	r.trust.Ensure(senderAS).LowerOnNotification()
}

// onOpen handles an inbound OPEN. Active+OPEN and OpenSent+OPEN are
// the two meaningful branches; elsewhere it falls to the FSM's
// catchall.
func (r *Router) onOpen(p *peer, m bgpmsg.Open) {
	switch p.fsm.State {
	case fsm.Active:
		eff := p.fsm.Transition(event.TcpConnectionConfirmed)
		r.applyEffect(p, eff)
		if eff.NextState == fsm.OpenSent {
			open := r.openFor(p)
			r.sched.After(sched.LinkDelay, func() { r.send(p, open) })
		}
	case fsm.OpenSent:
		eff := p.fsm.Transition(event.BGPOpen)
		if eff.NextState == fsm.OpenConfirm {
			// 10s keepalive cadence while the three-way handshake
			// is still pending; onSessionEstablished raises this to
			// 15s once KEEPALIVE completes the handshake.
			p.fsm.KeepaliveTime = 10
			p.fsm.KeepaliveTimer = 10
		}
		r.applyEffect(p, eff)
	default:
		eff := p.fsm.Transition(event.Other)
		r.applyEffect(p, eff)
	}
}

// onKeepalive handles an inbound KEEPALIVE: in OpenConfirm it
// completes the three-way handshake into Established; in Established
// it is just a hold-timer reset (the FSM's Established branch only
// special-cases its own KeepaliveTimerExpires, so a peer's inbound
// KEEPALIVE is handled here instead of via Transition).
func (r *Router) onKeepalive(p *peer) {
	switch p.fsm.State {
	case fsm.OpenConfirm:
		eff := p.fsm.Transition(event.KeepAliveMsg)
		r.applyEffect(p, eff)
	case fsm.Established:
		p.fsm.HoldTimer = p.fsm.HoldTime
		p.messagesExchanged++
	default:
		eff := p.fsm.Transition(event.Other)
		r.applyEffect(p, eff)
	}
}

// onUpdate implements the ingestion and re-advertisement pipeline.
// UPDATE outside Established is a protocol error.
func (r *Router) onUpdate(p *peer, m bgpmsg.Update) {
	if p.fsm.State != fsm.Established {
		eff := p.fsm.Transition(event.Other)
		r.applyEffect(p, eff)
		return
	}
	p.fsm.HoldTimer = p.fsm.HoldTime
	p.messagesExchanged++

	if len(m.Attrs.ASPath) == 0 {
		return
	}
	leftmost := m.Attrs.ASPath[0]
	trustEff := r.trust.Ensure(leftmost).Effective()

	for _, nlri := range m.NLRI {
		network := nlri.String()
		if err := rib.ValidNetwork(network); err != nil {
			continue
		}
		row, fresh := r.rib.Ingest(
			r.cfg.ASNumber,
			network,
			m.Attrs.ASPath,
			m.Attrs.NextHop,
			int(m.Attrs.LocalPref),
			int(m.Attrs.Weight),
			int(m.Attrs.MED),
			m.Attrs.TrustRate,
			trustEff,
		)
		if !fresh {
			continue
		}
		r.reflood(p, row)
	}
}

// reflood re-advertises a freshly ingested row to every other
// established peer.
func (r *Router) reflood(origin *peer, row rib.Row) {
	asPath, nextHop, trustRate := rib.Propagate(r.cfg.ASNumber, r.ownIP, row)
	_, ipnet, err := net.ParseCIDR(row.Network)
	if err != nil {
		return
	}
	ones, _ := ipnet.Mask.Size()
	upd := bgpmsg.Update{
		NLRI: []bgpmsg.Prefix{{IP: ipnet.IP, Len: ones}},
		Attrs: bgpmsg.PathAttrs{
			Origin:    bgpmsg.OriginIGP,
			NextHop:   nextHop,
			LocalPref: 100,
			ASPath:    asPath,
			TrustRate: trustRate,
		},
	}
	for as, other := range r.peers {
		if as == origin.as || other.fsm.State != fsm.Established {
			continue
		}
		dst := other
		r.sched.After(sched.LinkDelay, func() { r.send(dst, upd) })
	}
}

// onNotification implements the any-state + NOTIFICATION branch: the
// sender's own error detection lowers this router's trust in it, and
// the FSM takes its catchall branch, which returns every non-Idle
// state to Idle (from Idle it moves to Active).
func (r *Router) onNotification(p *peer, m bgpmsg.Notification) {
	eff := p.fsm.Transition(event.Other)
	r.applyEffect(p, eff)
	r.trust.Ensure(p.as).LowerOnNotification()
}

// onTrustRate implements the TRUSTRATE branch: every 20th receipt
// from a peer raises t_inherent for that peer. This router sends no
// TRUSTRATE of its own, neither in reply to a receipt nor on a timer.
func (r *Router) onTrustRate(p *peer, m bgpmsg.TrustRate) {
	p.trustRateRecvd++
	if p.trustRateRecvd%trustRateRaiseEvery == 0 {
		r.trust.Ensure(p.as).RaiseOnTrustRate()
	}
}

// onVoting implements the voting protocol's query/answer phases. A
// VoteQuery asks this router to either answer from its own trust table
// or forward to its other peers; a VoteAnswer either completes this
// router's own pending vote, if it originated the query, or is relayed
// one hop back toward whichever router did.
func (r *Router) onVoting(p *peer, m bgpmsg.Voting) {
	switch m.Kind {
	case bgpmsg.VoteQuery:
		r.onVoteQuery(p, m)
	case bgpmsg.VoteAnswer:
		r.onVoteAnswer(p, m)
	}
}

// onVoteQuery handles an inbound query-phase VOTING message. decodeVoting
// has already decremented ttl on the way in, so ttl==0 here means this
// router is the last hop the protocol allows: it always answers from its
// own trust table, regardless of its own adjacency. Only at ttl>0 does
// adjacency (minus the origin router) decide self-answer-vs-forward.
func (r *Router) onVoteQuery(queryingPeer *peer, m bgpmsg.Voting) {
	subject := uint32(m.PeerInQuestion)
	origin := uint32(m.OriginAS)

	if queryingPeer.votingFor[subject] {
		// Already forwarded a query for this subject and haven't seen
		// its answer return yet; don't fan out a second round over the
		// same adjacency.
		return
	}

	if m.TTL == 0 {
		r.answerVoteQuery(queryingPeer, m, subject)
		return
	}

	var adjacency []uint32
	for as := range r.peers {
		if as != origin {
			adjacency = append(adjacency, as)
		}
	}
	decision := trust.DecideQuery(origin, adjacency)

	if decision.AnswerSelf {
		r.answerVoteQuery(queryingPeer, m, origin)
		return
	}

	queryingPeer.votingFor[subject] = true
	for _, as := range decision.Forward {
		target, ok := r.peers[as]
		if !ok {
			continue
		}
		fwd := bgpmsg.Voting{
			TTL:                 m.TTL,
			Kind:                bgpmsg.VoteQuery,
			NumSecondNeighbours: uint16(len(decision.Forward)),
			OriginAS:            m.OriginAS,
			PeerInQuestion:      m.PeerInQuestion,
		}
		dst := target
		r.sched.After(sched.LinkDelay, func() { r.send(dst, fwd) })
	}
}

// answerVoteQuery constructs this router's own answer, carrying its
// t_inherent for the AS about, and sends it back the way the query came.
func (r *Router) answerVoteQuery(queryingPeer *peer, m bgpmsg.Voting, about uint32) {
	entry := r.trust.Ensure(about)
	answer := bgpmsg.Voting{
		TTL:                 0,
		Kind:                bgpmsg.VoteAnswer,
		NumSecondNeighbours: m.NumSecondNeighbours,
		OriginAS:            m.OriginAS,
		PeerInQuestion:      m.PeerInQuestion,
		VoteValue:           entry.Inherent,
	}
	dst := queryingPeer
	r.sched.After(sched.LinkDelay, func() { r.send(dst, answer) })
}

// onVoteAnswer handles the return phase. A router that did not
// originate the query (its own AS != origin_as) is an intermediate hop:
// it relays the answer on to origin_as, its directly-connected peer that
// the original query came from, rather than treating it as its own
// vote. Only the originating router appends vote_value and checks
// vote_complete.
func (r *Router) onVoteAnswer(answeringPeer *peer, m bgpmsg.Voting) {
	subject := uint32(m.PeerInQuestion)

	if uint32(m.OriginAS) != r.cfg.ASNumber {
		origin, ok := r.peers[uint32(m.OriginAS)]
		if !ok {
			return
		}
		delete(origin.votingFor, subject)
		dst := origin
		answer := m
		r.sched.After(sched.LinkDelay, func() { r.send(dst, answer) })
		return
	}

	entry := r.trust.Ensure(subject)
	entry.SetExpectedVotes(int(m.NumSecondNeighbours))
	entry.AppendVote(m.VoteValue)
}

// retryConnect re-attempts the dial for a peer whose ConnectRetryTimer
// just expired while still in Connect/Active. The dial itself happens
// outside the state lock; only the resulting Transition call needs it.
func (r *Router) retryConnect(p *peer) {
	conn, err := net.DialTimeout("tcp", p.controlAddr(), dialTimeout)
	if err != nil {
		return
	}
	conn.Close()

	r.mu.Lock()
	eff := p.fsm.Transition(event.TcpConnectionConfirmed)
	r.applyEffect(p, eff)
	r.mu.Unlock()
}
