// Package log centralises the logrus conventions shared by every
// router subsystem: a "Topic" field naming the subsystem and a "Key"
// field naming the router or peer involved, matching the fields the
// teacher's FSM emits on every state change.
package log

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// printMu serialises writes from every router's logger so interleaved
// stdout from concurrent routers stays readable. It stands in for the
// simulator's process-wide print-lock.
var printMu sync.Mutex

type lockedWriter struct {
	w io.Writer
}

func (l lockedWriter) Write(p []byte) (int, error) {
	printMu.Lock()
	defer printMu.Unlock()
	return l.w.Write(p)
}

// New returns a logger dedicated to one topic (subsystem), e.g. "Peer",
// "Rib", "Trust", "Dispatcher", "Sched".
func New(topic string) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(lockedWriter{w: logrus.StandardLogger().Out})
	return l.WithField("Topic", topic)
}

// WithKey attaches the router/peer key a log line pertains to.
func WithKey(e *logrus.Entry, key string) *logrus.Entry {
	return e.WithField("Key", key)
}
