package router

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/evazorman/bgpsim/internal/bgpmsg"
)

// acceptPollInterval bounds how long Accept blocks before re-checking
// the stop signal: the listen loop blocks on accept with a 0.5s
// timeout and polls the stop flag on each wakeup.
const acceptPollInterval = 500 * time.Millisecond

// listenLoop accepts BGP control-plane connections on the router's
// base port (B) until ctx is cancelled (Stop).
func (r *Router) listenLoop(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", r.cfg.BasePort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("router: listen %s: %w", addr, err)
	}
	defer ln.Close()

	tl, ok := ln.(*net.TCPListener)
	if !ok {
		return fmt.Errorf("router: expected *net.TCPListener")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		tl.SetDeadline(time.Now().Add(acceptPollInterval))
		conn, err := tl.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			r.log.Warnf("accept error: %s", err)
			continue
		}
		go r.handleConn(conn)
	}
}

// handleConn reads exactly one message off a freshly accepted
// connection (the speaker never keeps one open), decodes
// it, resolves the sending peer, and hands it to the dispatcher.
func (r *Router) handleConn(conn net.Conn) {
	defer conn.Close()

	header := make([]byte, bgpmsg.HeaderLength)
	if _, err := io.ReadFull(conn, header); err != nil {
		return
	}
	hdr, err := bgpmsg.DecodeHeader(header)
	if err != nil {
		r.handleDecodeError(conn, err)
		return
	}

	body := make([]byte, int(hdr.Length)-bgpmsg.HeaderLength)
	if _, err := io.ReadFull(conn, body); err != nil {
		return
	}

	full := append(header, body...)
	msg, err := bgpmsg.Decode(full)
	if err != nil {
		r.handleDecodeError(conn, err)
		return
	}

	senderAS, ok := r.resolveSender(conn, msg)
	if !ok {
		r.log.Warn("dropping message from unresolvable peer")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatch(senderAS, msg)
}

// resolveSender identifies which configured peer sent a message. The
// remote port is matched first against each peer's deterministic
// control-plane source port (B+1); a match is returned without looking
// at the payload. Only when no port matches does it fall back to an AS
// number carried in the payload (OPEN, TRUSTRATE, VOTING's origin_as,
// UPDATE's AS_PATH leftmost hop); KEEPALIVE and NOTIFICATION carry
// none, so the port is the sole resolution mechanism for them.
func (r *Router) resolveSender(conn net.Conn, msg bgpmsg.Message) (uint32, bool) {
	_, portStr, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return 0, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, false
	}

	for as, p := range r.peers {
		if p.controlSourcePort() == port {
			return as, true
		}
	}

	// Fall back to a payload-carried AS number if the port didn't
	// resolve (e.g. a peer dialing from a non-deterministic port in a
	// test harness).
	switch m := msg.(type) {
	case bgpmsg.Open:
		return uint32(m.AS), r.peers[uint32(m.AS)] != nil
	case bgpmsg.TrustRate:
		return uint32(m.AS), r.peers[uint32(m.AS)] != nil
	case bgpmsg.Voting:
		return uint32(m.OriginAS), r.peers[uint32(m.OriginAS)] != nil
	case bgpmsg.Update:
		if len(m.Attrs.ASPath) > 0 {
			as := m.Attrs.ASPath[0]
			return as, r.peers[as] != nil
		}
	}
	return 0, false
}

func (r *Router) handleDecodeError(conn net.Conn, err error) {
	berr, ok := err.(*bgpmsg.Error)
	if !ok {
		return
	}
	as, ok := r.resolveSenderByPort(conn)
	if !ok {
		r.log.Warnf("malformed message from unresolvable peer: %s", berr)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onMessageError(as, berr)
}

func (r *Router) resolveSenderByPort(conn net.Conn) (uint32, bool) {
	_, portStr, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return 0, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, false
	}
	for as, p := range r.peers {
		if p.controlSourcePort() == port {
			return as, true
		}
	}
	return 0, false
}
