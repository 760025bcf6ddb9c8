package fsm

import (
	"testing"

	"github.com/evazorman/bgpsim/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdleManualStartGoesToConnect(t *testing.T) {
	f := New(2, 5)
	eff := f.Transition(event.ManualStart)
	assert.Equal(t, Connect, eff.NextState)
	assert.Equal(t, 5, f.RetryTimer)
	assert.Equal(t, 0, f.RetryCounter)
}

func TestIdleCatchallGoesToActive(t *testing.T) {
	f := New(2, 5)
	eff := f.Transition(event.Other)
	assert.Equal(t, Active, eff.NextState)
}

func TestEstablishedRequiresOrderedEventSequence(t *testing.T) {
	// Reaching Established implies having observed
	// [ManualStart, TcpConnectionConfirmed, BGPOpen, KeepAliveMsg].
	f := New(2, 5)
	seq := []event.Kind{event.ManualStart, event.TcpConnectionConfirmed, event.BGPOpen, event.KeepAliveMsg}
	var last Effect
	for _, k := range seq {
		last = f.Transition(k)
	}
	require.Equal(t, Established, last.NextState)
	assert.Equal(t, Established, f.State)
}

func TestOpenSentUnexpectedEventSendsFSMNotification(t *testing.T) {
	f := New(2, 5)
	f.Transition(event.ManualStart)
	f.Transition(event.TcpConnectionConfirmed)
	require.Equal(t, OpenSent, f.State)

	eff := f.Transition(event.HoldTimerExpires)
	assert.Equal(t, Idle, eff.NextState)
	require.NotNil(t, eff.SendNotification)
	assert.Equal(t, uint8(5), eff.SendNotification.Code) // CodeFSM
	assert.Equal(t, 1, f.RetryCounter)
	assert.Equal(t, 0, f.RetryTimer)
	assert.Equal(t, 0, f.HoldTimer)
}

func TestHeaderErrorInEstablishedResetsToIdle(t *testing.T) {
	// scenario 6: a header-malformed message drives the session back to Idle.
	f := New(2, 5)
	f.Transition(event.ManualStart)
	f.Transition(event.TcpConnectionConfirmed)
	f.Transition(event.BGPOpen)
	f.Transition(event.KeepAliveMsg)
	require.Equal(t, Established, f.State)

	eff := f.Transition(event.BGPHeaderErr)
	assert.Equal(t, Idle, eff.NextState)
	assert.Equal(t, 1, f.RetryCounter)
}

func TestEstablishedKeepaliveTimerStaysEstablished(t *testing.T) {
	f := New(2, 5)
	f.State = Established
	f.KeepaliveTime = 15
	eff := f.Transition(event.KeepaliveTimerExpires)
	assert.Equal(t, Established, eff.NextState)
	assert.True(t, eff.SendKeepalive)
	assert.Equal(t, 15, f.KeepaliveTimer)
}

func TestConnectManualStopFlushesQueue(t *testing.T) {
	f := New(2, 5)
	f.Transition(event.ManualStart)
	eff := f.Transition(event.ManualStop)
	assert.Equal(t, Idle, eff.NextState)
	assert.True(t, eff.FlushQueue)
	assert.True(t, eff.CloseConnection)
	assert.Equal(t, 0, f.RetryCounter)
}

func TestOpenConfirmKeepaliveTimerResendsKeepalive(t *testing.T) {
	f := New(2, 5)
	f.State = OpenConfirm
	f.KeepaliveTime = 10
	eff := f.Transition(event.KeepaliveTimerExpires)
	assert.Equal(t, OpenConfirm, eff.NextState)
	assert.True(t, eff.SendKeepalive)
	assert.Equal(t, 10, f.KeepaliveTimer)
}
