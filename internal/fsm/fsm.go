// Package fsm implements the per-peer BGP finite state machine.
// Following a cycle-breaking design, the FSM never touches a socket:
// Transition mutates the FSM's own state/timers/counters and returns
// an Effect descriptor; the router (internal/router) is the one
// side-effecting component that sends messages and closes
// connections.
package fsm

import (
	"github.com/evazorman/bgpsim/internal/bgpmsg"
	"github.com/evazorman/bgpsim/internal/event"
)

// State is one of the six BGP session states.
type State int

const (
	Idle State = iota
	Connect
	Active
	OpenSent
	OpenConfirm
	Established
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Connect:
		return "Connect"
	case Active:
		return "Active"
	case OpenSent:
		return "OpenSent"
	case OpenConfirm:
		return "OpenConfirm"
	case Established:
		return "Established"
	default:
		return "Unknown"
	}
}

// Effect is everything the FSM asks the router to do as a result of
// one Transition call. Fields are additive; zero value means "do
// nothing" for that concern.
type Effect struct {
	FromState        State
	NextState        State
	SendOpen         bool
	SendKeepalive    bool
	SendNotification *bgpmsg.Notification
	CloseConnection  bool
	FlushQueue       bool
}

// FSM holds the per-peer session state: current state,
// connect_retry_counter, the three timers (seconds remaining), and an
// exchanged-message count field (MessagesExchanged) that neither the
// FSM nor the router updates; the router keeps its own count per peer.
// RetryTime comes from the router's configuration at construction;
// OpenSentHoldTime is fixed at 240 and HoldTime at 60 (BGPOpen sets it
// to 60 again and copies it into KeepaliveTime, which the router then
// overrides).
type FSM struct {
	PeerAS uint32

	State             State
	RetryCounter      int
	RetryTimer        int
	HoldTimer         int
	KeepaliveTimer    int
	MessagesExchanged int

	RetryTime        int
	OpenSentHoldTime int // 240
	HoldTime         int // negotiated hold time, 60 by default
	KeepaliveTime    int
}

// New constructs an FSM in Idle, the mandated initial state.
func New(peerAS uint32, retryTime int) *FSM {
	return &FSM{
		PeerAS:           peerAS,
		State:            Idle,
		RetryTime:        retryTime,
		OpenSentHoldTime: 240,
		HoldTime:         60,
	}
}

func notificationFSMError() *bgpmsg.Notification {
	n := bgpmsg.NewNotificationFromError(&bgpmsg.Error{Code: bgpmsg.CodeFSM, Subcode: 0})
	return &n
}

// clearOnIdle implements entering Idle: the FSM clears the
// retry/keepalive/hold timers; dropping the underlying TCP connection
// is reported to the caller through Effect.CloseConnection.
func (f *FSM) clearOnIdle() {
	f.RetryTimer = 0
	f.HoldTimer = 0
	f.KeepaliveTimer = 0
}

// Transition consumes one event and applies the row of the
// transition table matching (f.State, kind). Unhandled events hit the
// "any other" catchall for the current state.
func (f *FSM) Transition(kind event.Kind) Effect {
	from := f.State
	eff := Effect{FromState: from}

	switch from {
	case Idle:
		switch kind {
		case event.ManualStart:
			f.RetryCounter = 0
			f.RetryTimer = f.RetryTime
			f.State = Connect
		default:
			f.State = Active
		}

	case Connect:
		switch kind {
		case event.ManualStop:
			f.RetryCounter = 0
			f.State = Idle
			f.clearOnIdle()
			eff.CloseConnection = true
			eff.FlushQueue = true
		case event.ConnectRetryTimerExpires:
			f.RetryTimer = f.RetryTime
			f.State = Connect
		case event.TcpCRAcked, event.TcpConnectionConfirmed:
			f.RetryTimer = 0
			f.HoldTimer = f.OpenSentHoldTime
			f.State = OpenSent
			eff.SendOpen = true
		default:
			f.RetryCounter++
			f.State = Idle
			f.clearOnIdle()
			eff.CloseConnection = true
		}

	case Active:
		switch kind {
		case event.ManualStop:
			f.RetryCounter = 0
			f.State = Idle
			f.clearOnIdle()
			eff.CloseConnection = true
			eff.FlushQueue = true
		case event.ConnectRetryTimerExpires:
			f.RetryTimer = f.RetryTime
			f.KeepaliveTimer = 0
			f.State = Connect
		case event.TcpCRAcked, event.TcpConnectionConfirmed:
			f.RetryTimer = 0
			f.HoldTimer = f.OpenSentHoldTime
			f.State = OpenSent
		default:
			f.RetryCounter++
			f.State = Idle
			f.clearOnIdle()
			eff.CloseConnection = true
		}

	case OpenSent:
		switch kind {
		case event.TcpConnectionFails:
			f.RetryTimer = f.RetryTime
			f.State = Active
		case event.BGPOpen:
			f.RetryTimer = 0
			f.HoldTime = 60
			f.KeepaliveTime = f.HoldTime
			f.State = OpenConfirm
			eff.SendKeepalive = true
		case event.BGPHeaderErr, event.BGPOpenMsgErr:
			f.RetryCounter++
			f.State = Idle
			f.clearOnIdle()
			eff.SendNotification = notificationFSMError()
			eff.CloseConnection = true
		default:
			f.RetryTimer = 0
			f.RetryCounter++
			f.State = Idle
			f.clearOnIdle()
			eff.SendNotification = notificationFSMError()
			eff.CloseConnection = true
		}

	case OpenConfirm:
		switch kind {
		case event.KeepaliveTimerExpires:
			f.KeepaliveTimer = f.KeepaliveTime
			f.State = OpenConfirm
			eff.SendKeepalive = true
		case event.TcpConnectionFails:
			f.RetryCounter++
			f.State = Idle
			f.clearOnIdle()
			eff.CloseConnection = true
		case event.BGPHeaderErr, event.BGPOpenMsgErr:
			f.RetryCounter++
			f.State = Idle
			f.clearOnIdle()
			eff.SendNotification = notificationFSMError()
			eff.CloseConnection = true
		case event.KeepAliveMsg:
			f.HoldTimer = f.HoldTime
			f.State = Established
		default:
			f.RetryCounter++
			f.State = Idle
			f.clearOnIdle()
			eff.SendNotification = notificationFSMError()
			eff.CloseConnection = true
		}

	case Established:
		switch kind {
		case event.KeepaliveTimerExpires:
			f.KeepaliveTimer = f.KeepaliveTime
			f.State = Established
			eff.SendKeepalive = true
		default:
			f.RetryCounter++
			f.State = Idle
			f.clearOnIdle()
			eff.SendNotification = notificationFSMError()
			eff.CloseConnection = true
		}
	}

	eff.NextState = f.State
	return eff
}
