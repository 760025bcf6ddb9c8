package sched

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickerFiresRepeatedly(t *testing.T) {
	var count int64
	tk := NewTicker(10*time.Millisecond, func() {
		atomic.AddInt64(&count, 1)
	})
	tk.Start()
	time.Sleep(55 * time.Millisecond)
	require.NoError(t, tk.Stop())
	assert.GreaterOrEqual(t, atomic.LoadInt64(&count), int64(3))
}

func TestSchedulerFiresOnceAfterDelay(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var count int64
	done := make(chan struct{})
	s.After(10*time.Millisecond, func() {
		atomic.AddInt64(&count, 1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("scheduled job never fired")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&count))
}
