package chessserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSweeperExpiresWaitingSessions(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Join("alice")
	require.NoError(t, err)
	require.Equal(t, 1, f.registry.WaitingCount())

	sw := NewSweeper(zaptest.NewLogger(t), f.service, 10*time.Millisecond, 0)
	done := make(chan error, 1)
	go func() { done <- sw.Start() }()

	assert.Eventually(t, func() bool {
		return f.registry.WaitingCount() == 0
	}, 2*time.Second, 10*time.Millisecond)

	sw.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
