package chessserver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/chessd/internal/broadcast"
	"github.com/cory-johannsen/chessd/internal/game/chess"
	"github.com/cory-johannsen/chessd/internal/game/match"
)

// Archiver persists finished games. The zero-value nil Archiver disables
// archiving.
type Archiver interface {
	ArchiveGame(ctx context.Context, g *chess.Game) error
}

// Service executes session operations and announces their outcomes. Registry
// mutation happens first; broadcasts go out after the registry lock is
// released, so subscribers always observe a state at least as new as the
// envelope describes.
type Service struct {
	logger        *zap.Logger
	registry      *match.Registry
	router        *broadcast.Router
	scheduler     match.Scheduler
	teardownGrace time.Duration
	archiver      Archiver
}

// NewService wires the coordinating service.
//
// Precondition: logger, registry, router, and scheduler must be non-nil.
// archiver may be nil to disable archiving.
func NewService(
	logger *zap.Logger,
	registry *match.Registry,
	router *broadcast.Router,
	scheduler match.Scheduler,
	teardownGrace time.Duration,
	archiver Archiver,
) *Service {
	return &Service{
		logger:        logger,
		registry:      registry,
		router:        router,
		scheduler:     scheduler,
		teardownGrace: teardownGrace,
		archiver:      archiver,
	}
}

// Registry exposes the session registry for read-only queries.
func (s *Service) Registry() *match.Registry {
	return s.registry
}

// Router exposes the broadcast router for subscription management.
func (s *Service) Router() *broadcast.Router {
	return s.router
}

// Join seats a participant and announces the result. A first join opens a
// waiting session; a join that fills the second seat starts the game. A
// participant who already holds a seat gets their session back with no
// broadcast.
func (s *Service) Join(name string) (*chess.Game, error) {
	res, err := s.registry.Join(name)
	if err != nil {
		return nil, err
	}
	g := res.Game

	if res.Rejoined {
		s.logger.Debug("participant rejoined",
			zap.String("session", g.ID),
			zap.String("participant", name),
		)
		return g, nil
	}

	s.router.Publish(broadcast.SessionChannel(g.ID), stateEnvelope(broadcast.KindJoined, g, name))
	if res.Paired {
		s.router.Publish(broadcast.LobbyChannel, broadcast.Envelope{
			Kind:      broadcast.KindSystem,
			SessionID: g.ID,
			Content:   g.ParticipantA + " and " + g.ParticipantB + " started a game",
		})
	} else {
		s.router.Publish(broadcast.LobbyChannel, broadcast.Envelope{
			Kind:      broadcast.KindSystem,
			SessionID: g.ID,
			Content:   name + " is waiting for an opponent",
		})
	}

	s.logger.Info("participant joined",
		zap.String("session", g.ID),
		zap.String("participant", name),
		zap.Bool("paired", res.Paired),
	)
	return g, nil
}

// Move applies a move and announces the new position to the session channel.
func (s *Service) Move(sessionID, name, token string) (*chess.Game, error) {
	g, err := s.registry.ApplyMove(sessionID, name, token)
	if err != nil {
		return nil, err
	}

	env := stateEnvelope(broadcast.KindMoved, g, name)
	env.Move = token
	env.Content = name + " played " + token
	s.router.Publish(broadcast.SessionChannel(g.ID), env)

	s.logger.Debug("move applied",
		zap.String("session", g.ID),
		zap.String("participant", name),
		zap.String("move", token),
		zap.Int("history_len", len(g.MoveHistory)),
	)
	return g, nil
}

// Leave removes a participant. An empty sessionID resolves to whatever
// session seats the participant. Leaving a waiting session tears it down
// immediately. Leaving a running session forfeits to the opponent: the
// departure and the outcome are broadcast first, and the session is removed
// from the registry only after the teardown grace period so late readers
// still see the result.
func (s *Service) Leave(sessionID, name string) (*chess.Game, error) {
	if name == "" {
		return nil, match.ErrBlankParticipant
	}
	if sessionID == "" {
		g, ok := s.registry.FindByParticipant(name)
		if !ok {
			return nil, match.ErrUnknownSession
		}
		sessionID = g.ID
	}
	out, err := s.registry.Leave(sessionID, name)
	if err != nil {
		return nil, err
	}
	g := out.Game
	channel := broadcast.SessionChannel(g.ID)

	s.router.Publish(channel, stateEnvelope(broadcast.KindLeft, g, name))

	if out.Removed {
		s.router.Publish(broadcast.LobbyChannel, broadcast.Envelope{
			Kind:      broadcast.KindSystem,
			SessionID: g.ID,
			Content:   name + " left before an opponent arrived",
		})
		s.logger.Info("waiting session removed",
			zap.String("session", g.ID),
			zap.String("participant", name),
		)
		return g, nil
	}

	if out.Forfeited {
		s.router.Publish(channel, stateEnvelope(broadcast.KindGameOver, g, name))
		s.archive(g)
		s.scheduleTeardown(g.ID)
		s.logger.Info("session forfeited",
			zap.String("session", g.ID),
			zap.String("leaver", name),
			zap.String("winner", g.Winner),
		)
	}
	return g, nil
}

// Disconnect handles an abrupt transport loss for a participant. It resolves
// the participant's session, if any, and applies the same semantics as an
// explicit leave.
func (s *Service) Disconnect(name string) {
	g, ok := s.registry.FindByParticipant(name)
	if !ok {
		return
	}
	if _, err := s.Leave(g.ID, name); err != nil {
		s.logger.Warn("disconnect cleanup failed",
			zap.String("session", g.ID),
			zap.String("participant", name),
			zap.Error(err),
		)
	}
}

// PublishError reports a rejected operation. Errors for a known session go
// to its channel; everything else goes to the lobby.
func (s *Service) PublishError(sessionID, sender string, err error) {
	env := broadcast.Envelope{
		Kind:      broadcast.KindError,
		SessionID: sessionID,
		Sender:    sender,
		Code:      ErrorCode(err),
		Content:   err.Error(),
	}
	channel := broadcast.LobbyChannel
	if sessionID != "" {
		channel = broadcast.SessionChannel(sessionID)
	}
	s.router.Publish(channel, env)
}

// SweepStale expires waiting sessions older than maxAge and announces each
// expiry on the lobby.
func (s *Service) SweepStale(maxAge time.Duration) int {
	removed := s.registry.SweepStale(maxAge)
	for _, g := range removed {
		s.router.Publish(broadcast.LobbyChannel, broadcast.Envelope{
			Kind:      broadcast.KindSystem,
			SessionID: g.ID,
			Content:   g.ParticipantA + "'s waiting session expired",
		})
	}
	if len(removed) > 0 {
		s.logger.Info("swept stale sessions", zap.Int("count", len(removed)))
	}
	return len(removed)
}

// scheduleTeardown removes the session after the grace period. The delay
// keeps the terminal state readable while farewell broadcasts drain.
func (s *Service) scheduleTeardown(sessionID string) {
	s.scheduler.Schedule(s.teardownGrace, func() {
		s.registry.Remove(sessionID)
		s.logger.Debug("session torn down", zap.String("session", sessionID))
	})
}

// archive hands a finished game to the archiver off the caller's goroutine.
func (s *Service) archive(g *chess.Game) {
	if s.archiver == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.archiver.ArchiveGame(ctx, g); err != nil {
			s.logger.Error("archiving finished game failed",
				zap.String("session", g.ID),
				zap.Error(err),
			)
		}
	}()
}

// stateEnvelope builds an envelope carrying the session's full visible state
// and a human-readable summary of what happened.
func stateEnvelope(kind broadcast.Kind, g *chess.Game, sender string) broadcast.Envelope {
	var content string
	switch kind {
	case broadcast.KindJoined:
		content = sender + " joined"
	case broadcast.KindLeft:
		content = sender + " left"
	case broadcast.KindGameOver:
		if g.Winner != "" {
			content = g.Winner + " wins"
		} else {
			content = "game drawn"
		}
	}
	return broadcast.Envelope{
		Kind:         kind,
		SessionID:    g.ID,
		Sender:       sender,
		ParticipantA: g.ParticipantA,
		ParticipantB: g.ParticipantB,
		Turn:         g.Turn,
		Status:       string(g.Status),
		Winner:       g.Winner,
		Board:        g.Board(),
		Content:      content,
	}
}
