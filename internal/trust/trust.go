// Package trust implements the trust table and two-hop voting
// protocol. The effective-trust formula is the literal, quirky form
// named the majority source draft in DESIGN.md; see there for how the
// conflicting draft was resolved.
package trust

import (
	"math/rand"
)

// Entry is one peer's trust bookkeeping.
type Entry struct {
	PeerAS       uint32
	Inherent     float64 // t_inherent, in [0,1]
	Votes        []float64
	VoteComplete bool

	// expectedVotes is num_of_2nd_neighbours as communicated by the
	// peer being queried; vote_complete flips true once len(Votes)
	// reaches it (or immediately when it is 0).
	expectedVotes int
	expectedSet   bool
}

// NewEntry seeds t_inherent uniformly in [0.45, 0.55].
func NewEntry(peerAS uint32, rng *rand.Rand) *Entry {
	return &Entry{
		PeerAS:   peerAS,
		Inherent: 0.45 + rng.Float64()*0.10,
	}
}

// Effective computes t_eff:
//
//	t_eff = 1/(0.4*t_inherent) + 0.6*mean(votes)   when votes is non-empty
//	t_eff = t_inherent                              otherwise
//
// This is the majority form of two conflicting source drafts; it is
// not bounded to [0,1] as t_inherent -> 0, which is a documented
// property of the chosen form, not a bug here.
func (e *Entry) Effective() float64 {
	if len(e.Votes) == 0 {
		return e.Inherent
	}
	sum := 0.0
	for _, v := range e.Votes {
		sum += v
	}
	mean := sum / float64(len(e.Votes))

	denom := e.Inherent
	if denom == 0 {
		denom = 1e-9 // avoid a literal divide-by-zero; t_inherent is floored at 0 on repeated NOTIFICATIONs
	}
	return 1/(0.4*denom) + 0.6*mean
}

// LowerOnNotification implements the any-state + NOTIFICATION rule:
// decrement t_inherent[peer] by 0.1, floored at 0.
func (e *Entry) LowerOnNotification() {
	e.Inherent -= 0.1
	if e.Inherent < 0 {
		e.Inherent = 0
	}
}

// RaiseOnTrustRate implements the rule: every 20th received TRUSTRATE
// from a peer increments t_inherent[peer] by 0.1, capped at 1.
// Counting which receipt is the 20th is the dispatcher's job
// (internal/router); this just applies the bounded increment.
func (e *Entry) RaiseOnTrustRate() {
	e.Inherent += 0.1
	if e.Inherent > 1 {
		e.Inherent = 1
	}
}

// SetExpectedVotes records num_of_2nd_neighbours from the first
// answer-bearing VOTING response seen for this peer, and immediately
// completes voting when it is zero.
func (e *Entry) SetExpectedVotes(n int) {
	if e.expectedSet {
		return
	}
	e.expectedSet = true
	e.expectedVotes = n
	if n == 0 {
		e.VoteComplete = true
	}
}

// AppendVote implements the voting protocol's return phase: append
// vote_value, then complete once len(votes) == num_of_2nd_neighbours.
func (e *Entry) AppendVote(v float64) {
	e.Votes = append(e.Votes, v)
	if e.expectedSet && len(e.Votes) >= e.expectedVotes {
		e.VoteComplete = true
	}
}

// Table is the per-router map of peer AS -> trust Entry. It carries
// no lock of its own: the owning router is the serialisation boundary.
type Table struct {
	rng     *rand.Rand
	entries map[uint32]*Entry
}

func NewTable(rng *rand.Rand) *Table {
	return &Table{rng: rng, entries: make(map[uint32]*Entry)}
}

// Ensure returns the entry for peerAS, creating and seeding one on
// first use.
func (t *Table) Ensure(peerAS uint32) *Entry {
	e, ok := t.entries[peerAS]
	if !ok {
		e = NewEntry(peerAS, t.rng)
		t.entries[peerAS] = e
	}
	return e
}

// Get returns the entry for peerAS without creating one.
func (t *Table) Get(peerAS uint32) (*Entry, bool) {
	e, ok := t.entries[peerAS]
	return e, ok
}

// AllComplete reports whether vote_complete holds for every directly
// adjacent peer this table tracks — the "voting setup is complete"
// condition.
func (t *Table) AllComplete() bool {
	for _, e := range t.entries {
		if !e.VoteComplete {
			return false
		}
	}
	return true
}

// QueryDecision is what a peer P must do on receiving a VOTING query
// (the protocol's query phase) about a third peer R.
type QueryDecision struct {
	AnswerSelf bool     // adj(P)\{R} is empty: P answers with its own t_inherent[R]
	Forward    []uint32 // otherwise, forward a decremented copy to each of these second neighbours
}

// DecideQuery implements the Query phase: P's adjacency set minus the
// querying router R.
func DecideQuery(originRouterAS uint32, adjacencyOfP []uint32) QueryDecision {
	var second []uint32
	for _, as := range adjacencyOfP {
		if as != originRouterAS {
			second = append(second, as)
		}
	}
	if len(second) == 0 {
		return QueryDecision{AnswerSelf: true}
	}
	return QueryDecision{Forward: second}
}
