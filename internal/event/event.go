// Package event implements the event envelope fed into a peer's FSM:
// events are created by the dispatcher or by timer expiration, each
// gets a monotonically increasing serial number for debug ordering,
// and is consumed exactly once by an FSM.
package event

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Kind enumerates the FSM event alphabet.
type Kind int

const (
	ManualStart Kind = iota
	ManualStop
	ConnectRetryTimerExpires
	HoldTimerExpires
	KeepaliveTimerExpires
	TcpCRAcked
	TcpConnectionConfirmed
	TcpConnectionFails
	BGPOpen
	BGPHeaderErr
	BGPOpenMsgErr
	KeepAliveMsg
	Other // the implicit "any other" catchall
)

func (k Kind) String() string {
	switch k {
	case ManualStart:
		return "ManualStart"
	case ManualStop:
		return "ManualStop"
	case ConnectRetryTimerExpires:
		return "ConnectRetryTimer_Expires"
	case HoldTimerExpires:
		return "HoldTimer_Expires"
	case KeepaliveTimerExpires:
		return "KeepaliveTimer_Expires"
	case TcpCRAcked:
		return "Tcp_CR_Acked"
	case TcpConnectionConfirmed:
		return "TcpConnectionConfirmed"
	case TcpConnectionFails:
		return "TcpConnectionFails"
	case BGPOpen:
		return "BGPOpen"
	case BGPHeaderErr:
		return "BGPHeaderErr"
	case BGPOpenMsgErr:
		return "BGPOpenMsgErr"
	case KeepAliveMsg:
		return "KeepAliveMsg"
	default:
		return "Other"
	}
}

var serial uint64

// Event is the unit the dispatcher hands to a peer's FSM. Serial is
// monotonically increasing across the whole process (debug ordering
// only — it carries no causal meaning across routers). Tag is a uuid
// used purely for log correlation, since Serial alone collides once
// logs from multiple router processes are merged.
type Event struct {
	Kind   Kind
	Peer   uint32 // peer AS number this event pertains to
	Data   interface{}
	Serial uint64
	Tag    string
}

// New stamps an event with the next serial and a fresh correlation tag.
func New(kind Kind, peerAS uint32, data interface{}) Event {
	return Event{
		Kind:   kind,
		Peer:   peerAS,
		Data:   data,
		Serial: atomic.AddUint64(&serial, 1),
		Tag:    uuid.NewString(),
	}
}
