package chessserver

import (
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically expires waiting sessions that never found an
// opponent. It runs as a lifecycle service alongside the HTTP server.
type Sweeper struct {
	logger   *zap.Logger
	service  *Service
	interval time.Duration
	maxAge   time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewSweeper creates a sweeper.
//
// Precondition: logger and service must be non-nil; interval and maxAge
// must be positive.
func NewSweeper(logger *zap.Logger, service *Service, interval, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		logger:   logger,
		service:  service,
		interval: interval,
		maxAge:   maxAge,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.
func (s *Sweeper) Start() error {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("max_age", s.maxAge),
	)
	for {
		select {
		case <-ticker.C:
			s.service.SweepStale(s.maxAge)
		case <-s.stop:
			return nil
		}
	}
}

// Stop halts the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}
