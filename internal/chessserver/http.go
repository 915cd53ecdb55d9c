package chessserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/cory-johannsen/chessd/internal/config"
	"github.com/cory-johannsen/chessd/internal/game/chess"
	"github.com/cory-johannsen/chessd/internal/game/match"
)

// SessionSnapshot is the read-only session view served by the snapshot API.
type SessionSnapshot struct {
	FEN          string   `json:"fen"`
	MoveHistory  []string `json:"moveHistory"`
	ParticipantA string   `json:"participantA,omitempty"`
	ParticipantB string   `json:"participantB,omitempty"`
	Status       string   `json:"status"`
	Turn         string   `json:"turn"`
}

// SnapshotOf builds the snapshot view of a session.
func SnapshotOf(g *chess.Game) SessionSnapshot {
	history := g.MoveHistory
	if history == nil {
		history = []string{}
	}
	return SessionSnapshot{
		FEN:          g.FEN(),
		MoveHistory:  history,
		ParticipantA: g.ParticipantA,
		ParticipantB: g.ParticipantB,
		Status:       string(g.Status),
		Turn:         g.Turn,
	}
}

// DefaultSnapshot is the placeholder view served when no session is named:
// the initial position, no participants, and white to move.
func DefaultSnapshot() SessionSnapshot {
	return SessionSnapshot{
		FEN:         chess.InitialFEN,
		MoveHistory: []string{},
		Status:      string(chess.StatusWaiting),
		Turn:        "w",
	}
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

type statsResponse struct {
	Sessions int `json:"sessions"`
	Waiting  int `json:"waiting"`
}

// HTTPServer hosts the WebSocket gateway and the snapshot API behind one
// listener and plugs into the application lifecycle.
type HTTPServer struct {
	logger  *zap.Logger
	service *Service
	cfg     config.ServerConfig
	srv     *http.Server
}

// NewHTTPServer wires the HTTP routes.
//
// Precondition: logger, service, and gateway must be non-nil.
func NewHTTPServer(logger *zap.Logger, cfg config.ServerConfig, service *Service, gateway *Gateway) *HTTPServer {
	s := &HTTPServer{
		logger:  logger,
		service: service,
		cfg:     cfg,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/session", s.handleDefaultSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/api/session/{id}", s.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)
	r.Handle("/ws", gateway)

	s.srv = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s
}

// Handler returns the route tree, used directly by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.srv.Handler
}

// Start runs the listener until Stop is called.
func (s *HTTPServer) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr()))
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the listener down, waiting up to the configured timeout for
// in-flight requests.
func (s *HTTPServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDefaultSnapshot serves the placeholder view for clients that have
// not joined a session yet.
func (s *HTTPServer) handleDefaultSnapshot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, DefaultSnapshot())
}

func (s *HTTPServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	g, err := s.service.Registry().Get(id)
	if err != nil {
		if errors.Is(err, match.ErrUnknownSession) {
			s.writeJSON(w, http.StatusNotFound, errorResponse{Code: CodeUnknownSession, Error: err.Error()})
			return
		}
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Code: CodeInternal, Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, SnapshotOf(g))
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, statsResponse{
		Sessions: s.service.Registry().SessionCount(),
		Waiting:  s.service.Registry().WaitingCount(),
	})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("writing response", zap.Error(err))
	}
}
