package match

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/chessd/internal/game/chess"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(zaptest.NewLogger(t))
}

func TestJoinCreatesWaitingSession(t *testing.T) {
	r := newTestRegistry(t)

	res, err := r.Join("alice")
	require.NoError(t, err)

	assert.False(t, res.Paired)
	assert.False(t, res.Rejoined)
	assert.Equal(t, chess.StatusWaiting, res.Game.Status)
	assert.Equal(t, "alice", res.Game.ParticipantA)
	assert.Equal(t, 1, r.WaitingCount())
	assert.Equal(t, 1, r.SessionCount())
}

func TestJoinPairsOldestWaiter(t *testing.T) {
	r := newTestRegistry(t)

	first, err := r.Join("alice")
	require.NoError(t, err)
	second, err := r.Join("bob")
	require.NoError(t, err)

	assert.True(t, second.Paired)
	assert.Equal(t, first.Game.ID, second.Game.ID)
	assert.Equal(t, "alice", second.Game.ParticipantA)
	assert.Equal(t, "bob", second.Game.ParticipantB)
	assert.Equal(t, chess.StatusTurnA, second.Game.Status)
	assert.Equal(t, 0, r.WaitingCount())

	third, err := r.Join("carol")
	require.NoError(t, err)
	assert.False(t, third.Paired)
	assert.NotEqual(t, second.Game.ID, third.Game.ID)
	assert.Equal(t, 1, r.WaitingCount())
}

func TestJoinIsIdempotent(t *testing.T) {
	r := newTestRegistry(t)

	first, err := r.Join("alice")
	require.NoError(t, err)

	again, err := r.Join("alice")
	require.NoError(t, err)

	assert.True(t, again.Rejoined)
	assert.False(t, again.Paired)
	assert.Equal(t, first.Game.ID, again.Game.ID)
	assert.Equal(t, 1, r.SessionCount())
	assert.Equal(t, 1, r.WaitingCount())
}

func TestJoinBlankName(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Join("")
	assert.ErrorIs(t, err, ErrBlankParticipant)
	assert.Equal(t, 0, r.SessionCount())
}

func TestGet(t *testing.T) {
	r := newTestRegistry(t)

	res, err := r.Join("alice")
	require.NoError(t, err)

	g, err := r.Get(res.Game.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", g.ParticipantA)

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestGetReturnsSnapshot(t *testing.T) {
	r := newTestRegistry(t)

	res, err := r.Join("alice")
	require.NoError(t, err)
	_, err = r.Join("bob")
	require.NoError(t, err)

	snapshot, err := r.Get(res.Game.ID)
	require.NoError(t, err)
	snapshot.MoveHistory = append(snapshot.MoveHistory, "e2e4")

	fresh, err := r.Get(res.Game.ID)
	require.NoError(t, err)
	assert.Empty(t, fresh.MoveHistory)
}

func TestFindByParticipant(t *testing.T) {
	r := newTestRegistry(t)

	res, err := r.Join("alice")
	require.NoError(t, err)

	g, ok := r.FindByParticipant("alice")
	require.True(t, ok)
	assert.Equal(t, res.Game.ID, g.ID)

	_, ok = r.FindByParticipant("bob")
	assert.False(t, ok)
}

func TestApplyMove(t *testing.T) {
	r := newTestRegistry(t)

	res, err := r.Join("alice")
	require.NoError(t, err)
	_, err = r.Join("bob")
	require.NoError(t, err)

	g, err := r.ApplyMove(res.Game.ID, "alice", "e2e4")
	require.NoError(t, err)
	assert.Equal(t, []string{"e2e4"}, g.MoveHistory)
	assert.Equal(t, chess.StatusTurnB, g.Status)
}

func TestApplyMoveErrors(t *testing.T) {
	r := newTestRegistry(t)

	res, err := r.Join("alice")
	require.NoError(t, err)
	_, err = r.Join("bob")
	require.NoError(t, err)

	_, err = r.ApplyMove("nope", "alice", "e2e4")
	assert.ErrorIs(t, err, ErrUnknownSession)

	_, err = r.ApplyMove(res.Game.ID, "carol", "e2e4")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = r.ApplyMove(res.Game.ID, "", "e2e4")
	assert.ErrorIs(t, err, ErrBlankParticipant)

	_, err = r.ApplyMove(res.Game.ID, "bob", "e7e5")
	assert.ErrorIs(t, err, chess.ErrTurnViolation)

	_, err = r.ApplyMove(res.Game.ID, "alice", "e2")
	assert.ErrorIs(t, err, chess.ErrMalformedMove)
}

func TestLeaveSoleOccupantRemovesSession(t *testing.T) {
	r := newTestRegistry(t)

	res, err := r.Join("alice")
	require.NoError(t, err)

	out, err := r.Leave(res.Game.ID, "alice")
	require.NoError(t, err)

	assert.True(t, out.Removed)
	assert.False(t, out.Forfeited)
	assert.Equal(t, 0, r.SessionCount())
	assert.Equal(t, 0, r.WaitingCount())

	_, err = r.Get(res.Game.ID)
	assert.ErrorIs(t, err, ErrUnknownSession)

	// The seat index is cleared, so a fresh join creates a new session.
	fresh, err := r.Join("alice")
	require.NoError(t, err)
	assert.NotEqual(t, res.Game.ID, fresh.Game.ID)
}

func TestLeaveForfeitsToOpponent(t *testing.T) {
	r := newTestRegistry(t)

	res, err := r.Join("alice")
	require.NoError(t, err)
	_, err = r.Join("bob")
	require.NoError(t, err)

	out, err := r.Leave(res.Game.ID, "alice")
	require.NoError(t, err)

	assert.False(t, out.Removed)
	assert.True(t, out.Forfeited)
	assert.Equal(t, chess.StatusWonB, out.Game.Status)
	assert.Equal(t, "bob", out.Game.Winner)

	// The session stays observable until the caller removes it.
	g, err := r.Get(res.Game.ID)
	require.NoError(t, err)
	assert.Equal(t, chess.StatusWonB, g.Status)

	r.Remove(res.Game.ID)
	_, err = r.Get(res.Game.ID)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestLeaveAfterGameOverDoesNotFlipOutcome(t *testing.T) {
	r := newTestRegistry(t)

	res, err := r.Join("alice")
	require.NoError(t, err)
	_, err = r.Join("bob")
	require.NoError(t, err)

	first, err := r.Leave(res.Game.ID, "alice")
	require.NoError(t, err)
	require.True(t, first.Forfeited)

	second, err := r.Leave(res.Game.ID, "bob")
	require.NoError(t, err)
	assert.False(t, second.Forfeited)
	assert.Equal(t, chess.StatusWonB, second.Game.Status)
	assert.Equal(t, "bob", second.Game.Winner)
}

func TestLeaveErrors(t *testing.T) {
	r := newTestRegistry(t)

	res, err := r.Join("alice")
	require.NoError(t, err)

	_, err = r.Leave("nope", "alice")
	assert.ErrorIs(t, err, ErrUnknownSession)

	_, err = r.Leave(res.Game.ID, "carol")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = r.Leave(res.Game.ID, "")
	assert.ErrorIs(t, err, ErrBlankParticipant)
}

func TestRemoveUnknownSessionIsNoOp(t *testing.T) {
	r := newTestRegistry(t)
	r.Remove("nope")
	assert.Equal(t, 0, r.SessionCount())
}

func TestSweepStale(t *testing.T) {
	r := newTestRegistry(t)

	base := time.Now()
	r.now = func() time.Time { return base }

	_, err := r.Join("alice")
	require.NoError(t, err)

	r.now = func() time.Time { return base.Add(10 * time.Minute) }
	_, err = r.Join("bob")
	require.NoError(t, err)
	_, err = r.Join("carol")
	require.NoError(t, err)

	// alice and bob are paired now; only carol waits, aged zero.
	removed := r.SweepStale(5 * time.Minute)
	assert.Empty(t, removed)

	r.now = func() time.Time { return base.Add(20 * time.Minute) }
	removed = r.SweepStale(5 * time.Minute)
	require.Len(t, removed, 1)
	assert.Equal(t, "carol", removed[0].ParticipantA)
	assert.Equal(t, 0, r.WaitingCount())

	// carol can join again after being swept.
	res, err := r.Join("carol")
	require.NoError(t, err)
	assert.False(t, res.Rejoined)
}

func TestSweepNeverTouchesPairedSessions(t *testing.T) {
	r := newTestRegistry(t)

	base := time.Now()
	r.now = func() time.Time { return base }

	res, err := r.Join("alice")
	require.NoError(t, err)
	_, err = r.Join("bob")
	require.NoError(t, err)

	r.now = func() time.Time { return base.Add(time.Hour) }
	removed := r.SweepStale(time.Minute)
	assert.Empty(t, removed)

	_, err = r.Get(res.Game.ID)
	assert.NoError(t, err)
}

func TestConcurrentJoinsSeatEveryoneOnce(t *testing.T) {
	r := newTestRegistry(t)

	const participants = 64
	var wg sync.WaitGroup
	for i := 0; i < participants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Join(fmt.Sprintf("participant-%02d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, participants/2, r.SessionCount())
	assert.Equal(t, 0, r.WaitingCount())

	seen := make(map[string]int)
	for i := 0; i < participants; i++ {
		name := fmt.Sprintf("participant-%02d", i)
		g, ok := r.FindByParticipant(name)
		require.True(t, ok, "participant %s not seated", name)
		require.True(t, g.HasParticipant(name))
		seen[g.ID]++
	}
	for id, count := range seen {
		assert.Equal(t, 2, count, "session %s", id)
	}
}

func TestPropertyPairingIsFIFO(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRegistry(zaptest.NewLogger(t))

		waiters := rapid.IntRange(1, 10).Draw(t, "waiters")
		var ids []string
		for i := 0; i < waiters; i++ {
			res, err := r.Join(fmt.Sprintf("waiter-%d", i))
			require.NoError(t, err)
			ids = append(ids, res.Game.ID)
		}

		for i := 0; i < waiters; i++ {
			res, err := r.Join(fmt.Sprintf("filler-%d", i))
			require.NoError(t, err)
			require.True(t, res.Paired)
			require.Equal(t, ids[i], res.Game.ID)
			require.Equal(t, fmt.Sprintf("waiter-%d", i), res.Game.ParticipantA)
		}

		require.Equal(t, 0, r.WaitingCount())
	})
}

func TestPropertyParticipantHoldsAtMostOneSeat(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRegistry(zaptest.NewLogger(t))

		names := []string{"a", "b", "c", "d"}
		ops := rapid.IntRange(1, 40).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			name := rapid.SampledFrom(names).Draw(t, "name")
			if rapid.Bool().Draw(t, "leave") {
				if g, ok := r.FindByParticipant(name); ok {
					_, err := r.Leave(g.ID, name)
					require.NoError(t, err)
				}
				continue
			}
			_, err := r.Join(name)
			require.NoError(t, err)
		}

		seats := 0
		for _, name := range names {
			if _, ok := r.FindByParticipant(name); ok {
				seats++
			}
		}
		require.LessOrEqual(t, r.WaitingCount(), seats)
		require.LessOrEqual(t, r.WaitingCount(), 1)
	})
}
