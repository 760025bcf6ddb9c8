package trust

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntrySeedsWithinRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		e := NewEntry(2, rng)
		assert.GreaterOrEqual(t, e.Inherent, 0.45)
		assert.LessOrEqual(t, e.Inherent, 0.55)
	}
}

func TestEffectiveFallsBackToInherentWithoutVotes(t *testing.T) {
	e := &Entry{Inherent: 0.5}
	assert.Equal(t, 0.5, e.Effective())
}

func TestEffectiveUsesVoteMeanWhenPresent(t *testing.T) {
	e := &Entry{Inherent: 0.5, Votes: []float64{0.4, 0.6}}
	want := 1/(0.4*0.5) + 0.6*0.5
	assert.InDelta(t, want, e.Effective(), 1e-9)
}

func TestLowerOnNotificationFloorsAtZero(t *testing.T) {
	e := &Entry{Inherent: 0.05}
	e.LowerOnNotification()
	assert.Equal(t, 0.0, e.Inherent)
}

func TestRaiseOnTrustRateCapsAtOne(t *testing.T) {
	e := &Entry{Inherent: 0.95}
	e.RaiseOnTrustRate()
	assert.Equal(t, 1.0, e.Inherent)
}

func TestVotingConvergence(t *testing.T) {
	// scenario 5: {AS1<->AS2<->AS3}, AS1 requests votes for AS2.
	table := NewTable(rand.New(rand.NewSource(1)))
	e := table.Ensure(2)

	decision := DecideQuery(1 /* origin = AS1 */, []uint32{1, 3} /* adj(AS2) */)
	require.False(t, decision.AnswerSelf)
	require.Equal(t, []uint32{3}, decision.Forward)

	e.SetExpectedVotes(len(decision.Forward))
	e.AppendVote(0.5) // answer from AS3

	assert.Len(t, e.Votes, 1)
	assert.True(t, e.VoteComplete)
}

func TestVotingCompletesImmediatelyWhenNoSecondNeighbours(t *testing.T) {
	e := &Entry{}
	e.SetExpectedVotes(0)
	assert.True(t, e.VoteComplete)
}

func TestAllCompleteRequiresEveryPeer(t *testing.T) {
	table := NewTable(rand.New(rand.NewSource(1)))
	a := table.Ensure(2)
	b := table.Ensure(3)
	assert.False(t, table.AllComplete())
	a.VoteComplete = true
	assert.False(t, table.AllComplete())
	b.VoteComplete = true
	assert.True(t, table.AllComplete())
}
