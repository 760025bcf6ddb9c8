package router

import (
	"fmt"
	"net"
	"time"

	"github.com/evazorman/bgpsim/internal/bgpmsg"
)

// dialTimeout bounds how long a single outbound send's connect phase
// may take; this is a simulator, not a WAN link.
const dialTimeout = 2 * time.Second

// send establishes a fresh TCP connection per outbound message, sends
// the serialised payload, and closes: the speaker never maintains a
// persistent connection. It dials from the router's own fixed
// control-plane source port (B+1) so the remote listener can resolve
// the sender.
func (r *Router) send(p *peer, msg bgpmsg.Message) error {
	buf, err := bgpmsg.Encode(msg)
	if err != nil {
		return err
	}

	localAddr := &net.TCPAddr{Port: r.cfg.BasePort + 1}
	dialer := net.Dialer{Timeout: dialTimeout, LocalAddr: localAddr}
	conn, err := dialer.Dial("tcp", p.controlAddr())
	if err != nil {
		r.log.WithField("Key", fmt.Sprintf("AS%d", p.as)).
			Warnf("failed to dial peer: %s", err)
		return err
	}
	defer conn.Close()

	_, err = conn.Write(buf)
	if err != nil {
		r.log.WithField("Key", fmt.Sprintf("AS%d", p.as)).
			Warnf("failed to send %s: %s", msg.MsgType(), err)
		return err
	}
	return nil
}
