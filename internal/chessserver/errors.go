// Package chessserver coordinates session operations: it drives the match
// registry, publishes broadcasts, and exposes the WebSocket and HTTP
// surfaces.
package chessserver

import (
	"errors"

	"github.com/cory-johannsen/chessd/internal/game/chess"
	"github.com/cory-johannsen/chessd/internal/game/match"
)

// Error codes carried on rejected-operation envelopes.
const (
	CodeBlankParticipant = "blankParticipant"
	CodeUnknownSession   = "unknownSession"
	CodeNotParticipant   = "notParticipant"
	CodeGameOver         = "gameOver"
	CodeAwaitingOpponent = "awaitingOpponent"
	CodeTurnViolation    = "turnViolation"
	CodeMalformedMove    = "malformedMove"
	CodeBadRequest       = "badRequest"
	CodeInternal         = "internal"
)

// ErrorCode maps an operation error onto its wire code. Unrecognized errors
// map to CodeInternal.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, match.ErrBlankParticipant):
		return CodeBlankParticipant
	case errors.Is(err, match.ErrUnknownSession):
		return CodeUnknownSession
	case errors.Is(err, match.ErrNotParticipant):
		return CodeNotParticipant
	case errors.Is(err, chess.ErrGameOver):
		return CodeGameOver
	case errors.Is(err, chess.ErrAwaitingOpponent):
		return CodeAwaitingOpponent
	case errors.Is(err, chess.ErrTurnViolation):
		return CodeTurnViolation
	case errors.Is(err, chess.ErrMalformedMove):
		return CodeMalformedMove
	default:
		return CodeInternal
	}
}
