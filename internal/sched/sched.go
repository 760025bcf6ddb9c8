// Package sched implements the timer and delay-scheduler mechanisms:
// a 1Hz ticker that drives the three per-peer timers to zero and a
// single-run delay scheduler that spaces outbound sends to
// approximate link latency. Lifecycle follows the conventional
// tomb.v2 idiom; the outbound queue uses the same
// github.com/eapache/channels.InfiniteChannel a peer's outgoing queue
// uses.
package sched

import (
	"time"

	"github.com/eapache/channels"
	tomb "gopkg.in/tomb.v2"
)

// Ticker fires fn once per interval until Stop is called. A single
// instance is meant to serve every timer of every peer FSM a router
// owns: one per-router ticker driving all three timers is sufficient.
type Ticker struct {
	t        tomb.Tomb
	interval time.Duration
	fn       func()
}

func NewTicker(interval time.Duration, fn func()) *Ticker {
	return &Ticker{interval: interval, fn: fn}
}

// Start launches the ticker loop in the background.
func (tk *Ticker) Start() {
	tk.t.Go(func() error {
		ticker := time.NewTicker(tk.interval)
		defer ticker.Stop()
		for {
			select {
			case <-tk.t.Dying():
				return nil
			case <-ticker.C:
				tk.fn()
			}
		}
	})
}

// Stop signals the ticker to exit and waits for it to do so.
func (tk *Ticker) Stop() error {
	tk.t.Kill(nil)
	return tk.t.Wait()
}

// job is one pending delayed send.
type job struct {
	fn func()
}

// Scheduler defers outbound sends at explicit offsets (0.2s, 10s,
// 15s, ...) to approximate link delay and avoid lock-step races
// between routers. Each entry fires exactly once.
type Scheduler struct {
	t     tomb.Tomb
	ready *channels.InfiniteChannel
}

func NewScheduler() *Scheduler {
	s := &Scheduler{ready: channels.NewInfiniteChannel()}
	s.t.Go(s.run)
	return s
}

func (s *Scheduler) run() error {
	for {
		select {
		case <-s.t.Dying():
			return nil
		case v, ok := <-s.ready.Out():
			if !ok {
				return nil
			}
			j := v.(job)
			j.fn()
		}
	}
}

// After schedules fn to run once, delay after the call, unless the
// scheduler is stopped first. In-flight entries are allowed to
// complete on Stop.
func (s *Scheduler) After(delay time.Duration, fn func()) {
	s.t.Go(func() error {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-s.t.Dying():
			return nil
		case <-timer.C:
		}
		s.ready.In() <- job{fn: fn}
		return nil
	})
}

// Stop drains no further entries: a send already running finishes
// before Stop returns, while entries still waiting out their delay, or
// queued but not yet started, are dropped. There is no forced TCP
// reset.
func (s *Scheduler) Stop() error {
	s.t.Kill(nil)
	err := s.t.Wait()
	s.ready.Close()
	return err
}

// Well-known delay offsets.
const (
	LinkDelay            = 200 * time.Millisecond
	OpenConfirmKeepalive = 10 * time.Second
	EstablishedKeepalive = 15 * time.Second
	TrustRateCadence     = 15 * time.Second
)
