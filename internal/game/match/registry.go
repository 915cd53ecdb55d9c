// Package match pairs participants into game sessions and tracks every live
// session. A single Registry guards all session state behind one mutex so
// that join, move, and leave decisions are serialized.
package match

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/chessd/internal/game/chess"
)

// Registry lookup and membership failure modes.
var (
	// ErrBlankParticipant is returned when an operation names no participant.
	ErrBlankParticipant = errors.New("participant name must not be blank")
	// ErrUnknownSession is returned when a session ID does not resolve.
	ErrUnknownSession = errors.New("no such session")
	// ErrNotParticipant is returned when the named participant holds no seat
	// in the session.
	ErrNotParticipant = errors.New("participant is not seated in this session")
)

type session struct {
	game *chess.Game
	// enqueuedAt is the creation time, used to expire sessions that never
	// find an opponent.
	enqueuedAt time.Time
}

// Registry owns all live sessions and the FIFO pool of sessions waiting for
// an opponent. All methods are safe for concurrent use.
type Registry struct {
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
	// byParticipant maps a participant name to the session seating them.
	// A participant holds at most one seat at a time.
	byParticipant map[string]string
	// waiting holds session IDs in creation order. Invariant: every ID in
	// the queue resolves to a session in StatusWaiting, and every waiting
	// session appears exactly once.
	waiting []string

	now func() time.Time
}

// NewRegistry creates an empty session registry.
//
// Precondition: logger must be non-nil.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:        logger,
		sessions:      make(map[string]*session),
		byParticipant: make(map[string]string),
		now:           time.Now,
	}
}

// JoinResult describes the outcome of a join.
type JoinResult struct {
	// Game is a snapshot of the joined session.
	Game *chess.Game
	// Paired is true when this join filled the second seat and started the
	// game.
	Paired bool
	// Rejoined is true when the participant already held a seat and the join
	// was a no-op.
	Rejoined bool
}

// Join seats a participant. A participant already holding a seat gets their
// existing session back unchanged. Otherwise the oldest waiting session is
// filled, or a new waiting session is created when the pool is empty.
//
// Postcondition: the participant holds exactly one seat.
func (r *Registry) Join(name string) (JoinResult, error) {
	if name == "" {
		return JoinResult{}, ErrBlankParticipant
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byParticipant[name]; ok {
		if s, ok := r.sessions[id]; ok {
			return JoinResult{Game: s.game.Clone(), Rejoined: true}, nil
		}
		// Stale index entry, fall through and seat fresh.
		delete(r.byParticipant, name)
	}

	if len(r.waiting) > 0 {
		id := r.waiting[0]
		r.waiting = r.waiting[1:]
		s := r.sessions[id]
		s.game.Seat(name)
		r.byParticipant[name] = id
		r.logger.Debug("paired session",
			zap.String("session", id),
			zap.String("participant_a", s.game.ParticipantA),
			zap.String("participant_b", name),
		)
		return JoinResult{Game: s.game.Clone(), Paired: true}, nil
	}

	g := chess.NewGame(name)
	r.sessions[g.ID] = &session{game: g, enqueuedAt: r.now()}
	r.byParticipant[name] = g.ID
	r.waiting = append(r.waiting, g.ID)
	r.logger.Debug("created waiting session",
		zap.String("session", g.ID),
		zap.String("participant", name),
	)
	return JoinResult{Game: g.Clone()}, nil
}

// Get returns a snapshot of the identified session.
func (r *Registry) Get(id string) (*chess.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	return s.game.Clone(), nil
}

// FindByParticipant returns a snapshot of the session seating the named
// participant, if any.
func (r *Registry) FindByParticipant(name string) (*chess.Game, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byParticipant[name]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return s.game.Clone(), true
}

// ApplyMove validates and records a move in the identified session.
// Membership is checked before the move itself, so an outsider's move is
// rejected as ErrNotParticipant regardless of the token.
//
// Postcondition: on success the returned snapshot reflects the applied move.
func (r *Registry) ApplyMove(id, name, token string) (*chess.Game, error) {
	if name == "" {
		return nil, ErrBlankParticipant
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	if !s.game.HasParticipant(name) {
		return nil, ErrNotParticipant
	}
	if err := s.game.ApplyMove(name, token); err != nil {
		return nil, err
	}
	return s.game.Clone(), nil
}

// LeaveResult describes the outcome of a leave or disconnect.
type LeaveResult struct {
	// Game is a snapshot taken after the leave was applied. For a removed
	// session it is the final pre-removal state.
	Game *chess.Game
	// Removed is true when the session was deleted immediately because the
	// leaver was its only occupant.
	Removed bool
	// Forfeited is true when the leave handed the win to the opponent. The
	// caller is expected to schedule removal of the session after its
	// farewell broadcast.
	Forfeited bool
}

// Leave removes a participant from the identified session. A sole occupant
// tears the session down immediately. With an opponent seated, the session
// is marked won by the opponent but kept in the registry so the outcome
// stays observable until the caller removes it.
func (r *Registry) Leave(id, name string) (LeaveResult, error) {
	if name == "" {
		return LeaveResult{}, ErrBlankParticipant
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return LeaveResult{}, ErrUnknownSession
	}
	if !s.game.HasParticipant(name) {
		return LeaveResult{}, ErrNotParticipant
	}

	opponent := s.game.Opponent(name)
	if opponent == "" {
		snapshot := s.game.Clone()
		r.removeLocked(id)
		r.logger.Debug("removed waiting session on leave",
			zap.String("session", id),
			zap.String("participant", name),
		)
		return LeaveResult{Game: snapshot, Removed: true}, nil
	}

	forfeited := false
	if !s.game.Status.Terminal() {
		s.game.MarkWinner(opponent)
		forfeited = true
	}
	delete(r.byParticipant, name)
	r.logger.Debug("participant left session",
		zap.String("session", id),
		zap.String("participant", name),
		zap.Bool("forfeited", forfeited),
	)
	return LeaveResult{Game: s.game.Clone(), Forfeited: forfeited}, nil
}

// Remove deletes the identified session and all of its index entries.
// Removing an unknown session is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

// removeLocked must be called with r.mu held.
func (r *Registry) removeLocked(id string) {
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	if cur, ok := r.byParticipant[s.game.ParticipantA]; ok && cur == id {
		delete(r.byParticipant, s.game.ParticipantA)
	}
	if cur, ok := r.byParticipant[s.game.ParticipantB]; ok && cur == id {
		delete(r.byParticipant, s.game.ParticipantB)
	}
	for i, wid := range r.waiting {
		if wid == id {
			r.waiting = append(r.waiting[:i], r.waiting[i+1:]...)
			break
		}
	}
}

// SessionCount returns the number of live sessions.
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// WaitingCount returns the number of sessions still waiting for an opponent.
func (r *Registry) WaitingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiting)
}

// SweepStale removes waiting sessions older than maxAge and returns
// snapshots of the removed sessions so the caller can announce them.
// Paired sessions are never swept.
func (r *Registry) SweepStale(maxAge time.Duration) []*chess.Game {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	var removed []*chess.Game
	// Walk a copy; removeLocked edits the queue in place.
	for _, id := range append([]string(nil), r.waiting...) {
		s, ok := r.sessions[id]
		if !ok || !s.enqueuedAt.Before(cutoff) {
			continue
		}
		removed = append(removed, s.game.Clone())
		r.removeLocked(id)
		r.logger.Debug("swept stale waiting session",
			zap.String("session", id),
			zap.String("participant", s.game.ParticipantA),
			zap.Duration("age", r.now().Sub(s.enqueuedAt)),
		)
	}
	return removed
}
