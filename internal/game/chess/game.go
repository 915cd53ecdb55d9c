// Package chess provides the two-party session state machine: turn tracking,
// move history, and board derivation. It holds no locks of its own; all
// mutation happens under the owning registry's critical section.
package chess

import (
	"errors"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a game session.
type Status string

const (
	// StatusWaiting means the session has one seated participant and is
	// waiting to be paired.
	StatusWaiting Status = "WAITING"
	// StatusTurnA means participant A moves next.
	StatusTurnA Status = "A_TURN"
	// StatusTurnB means participant B moves next.
	StatusTurnB Status = "B_TURN"
	// StatusWonA means participant A has won.
	StatusWonA Status = "A_WON"
	// StatusWonB means participant B has won.
	StatusWonB Status = "B_WON"
	// StatusTie means the game ended with no winner.
	StatusTie Status = "TIE"
)

// Terminal reports whether the status admits no further moves.
func (s Status) Terminal() bool {
	return s == StatusWonA || s == StatusWonB || s == StatusTie
}

// MoveTokenLength is the required length of a move token ("e2e4" style
// from-square/to-square encoding).
const MoveTokenLength = 4

// Move application failure modes. Each leaves the game unchanged.
var (
	// ErrGameOver is returned when a move arrives after a terminal status.
	ErrGameOver = errors.New("game is already over")
	// ErrAwaitingOpponent is returned when a move arrives before pairing.
	ErrAwaitingOpponent = errors.New("game is waiting for another participant")
	// ErrTurnViolation is returned when a participant moves out of turn.
	ErrTurnViolation = errors.New("not this participant's turn")
	// ErrMalformedMove is returned for a token that is not exactly 4 characters.
	ErrMalformedMove = errors.New("malformed move token")
)

// Game is a two-party session with an ordered, append-only move history.
// ParticipantA is always seated first and always moves first.
type Game struct {
	// ID is the immutable session identifier, assigned at creation.
	ID string
	// ParticipantA is the first-seated participant (moves first).
	ParticipantA string
	// ParticipantB is the second-seated participant, empty until pairing.
	ParticipantB string
	// MoveHistory is the ordered sequence of accepted move tokens. It is never
	// truncated or reordered.
	MoveHistory []string
	// Turn is the participant who moves next; meaningful only while the
	// status is A_TURN or B_TURN.
	Turn string
	// Status is the current lifecycle state.
	Status Status
	// Winner is set only when Status is terminal with a winner.
	Winner string
}

// NewGame creates a WAITING session seating participantA.
//
// Precondition: participantA must be non-empty.
// Postcondition: Returns a Game with a fresh unique ID, empty history, and
// Turn set to participantA.
func NewGame(participantA string) *Game {
	return &Game{
		ID:           uuid.NewString(),
		ParticipantA: participantA,
		Turn:         participantA,
		Status:       StatusWaiting,
	}
}

// Seat pairs participantB into a waiting session and starts the game.
//
// Precondition: the game must be in StatusWaiting; participantB must be
// non-empty and distinct from ParticipantA.
// Postcondition: Status is A_TURN and Turn is ParticipantA.
func (g *Game) Seat(participantB string) {
	g.ParticipantB = participantB
	g.Status = StatusTurnA
	g.Turn = g.ParticipantA
}

// HasParticipant reports whether name occupies either seat.
func (g *Game) HasParticipant(name string) bool {
	if name == "" {
		return false
	}
	return g.ParticipantA == name || g.ParticipantB == name
}

// Opponent returns the other seat's participant, or "" when name is not
// seated or the other seat is empty.
func (g *Game) Opponent(name string) string {
	switch name {
	case g.ParticipantA:
		return g.ParticipantB
	case g.ParticipantB:
		return g.ParticipantA
	default:
		return ""
	}
}

// ApplyMove validates and records a move token for the given participant.
// Checks run in a fixed order: terminal status, unpaired session, turn
// ownership, token shape. A failed check leaves the game untouched.
//
// Postcondition: On success the token is appended to MoveHistory and Turn
// and Status flip to the opponent.
func (g *Game) ApplyMove(participant, token string) error {
	if g.Status.Terminal() {
		return ErrGameOver
	}
	if g.Status == StatusWaiting {
		return ErrAwaitingOpponent
	}
	if participant != g.Turn {
		return ErrTurnViolation
	}
	if len(token) != MoveTokenLength {
		return ErrMalformedMove
	}

	g.MoveHistory = append(g.MoveHistory, token)
	if participant == g.ParticipantA {
		g.Turn = g.ParticipantB
		g.Status = StatusTurnB
	} else {
		g.Turn = g.ParticipantA
		g.Status = StatusTurnA
	}
	return nil
}

// MarkWinner sets the terminal won status for the given participant.
//
// Postcondition: Returns false and leaves the game unchanged if the
// participant is not seated.
func (g *Game) MarkWinner(participant string) bool {
	switch participant {
	case g.ParticipantA:
		g.Status = StatusWonA
	case g.ParticipantB:
		g.Status = StatusWonB
	default:
		return false
	}
	g.Winner = participant
	return true
}

// MarkTie sets the terminal tie status with no winner.
func (g *Game) MarkTie() {
	g.Status = StatusTie
	g.Winner = ""
}

// Board derives the current position by replaying MoveHistory from the
// standard initial arrangement.
func (g *Game) Board() [][]string {
	return DeriveBoard(g.MoveHistory)
}

// FEN derives the position encoding for the current history.
func (g *Game) FEN() string {
	return FEN(g.MoveHistory)
}

// Clone returns a deep copy safe to read after the registry lock is
// released.
func (g *Game) Clone() *Game {
	cp := *g
	cp.MoveHistory = append([]string(nil), g.MoveHistory...)
	return &cp
}
