package broadcast

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	r := NewRouter(zaptest.NewLogger(t))

	a := NewOutbox("a", 4)
	b := NewOutbox("b", 4)
	r.Subscribe(LobbyChannel, a)
	r.Subscribe(LobbyChannel, b)

	delivered := r.Publish(LobbyChannel, Envelope{Kind: KindSystem, Content: "hi"})
	assert.Equal(t, 2, delivered)

	assert.Equal(t, "hi", (<-a.C()).Content)
	assert.Equal(t, "hi", (<-b.C()).Content)
}

func TestPublishIsScopedToChannel(t *testing.T) {
	r := NewRouter(zaptest.NewLogger(t))

	lobby := NewOutbox("lobby-sub", 4)
	session := NewOutbox("session-sub", 4)
	r.Subscribe(LobbyChannel, lobby)
	r.Subscribe(SessionChannel("s1"), session)

	delivered := r.Publish(SessionChannel("s1"), Envelope{Kind: KindMoved})
	assert.Equal(t, 1, delivered)
	assert.Len(t, session.C(), 1)
	assert.Empty(t, lobby.C())
}

func TestPublishToEmptyChannel(t *testing.T) {
	r := NewRouter(zaptest.NewLogger(t))
	assert.Equal(t, 0, r.Publish(SessionChannel("nope"), Envelope{Kind: KindSystem}))
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	r := NewRouter(zaptest.NewLogger(t))

	slow := NewOutbox("slow", 1)
	fast := NewOutbox("fast", 4)
	r.Subscribe(LobbyChannel, slow)
	r.Subscribe(LobbyChannel, fast)

	require.NoError(t, slow.Push(Envelope{Kind: KindSystem}))

	delivered := r.Publish(LobbyChannel, Envelope{Kind: KindMoved})
	assert.Equal(t, 1, delivered)
	assert.Len(t, fast.C(), 1)
}

func TestUnsubscribeLeavesOutboxOpen(t *testing.T) {
	r := NewRouter(zaptest.NewLogger(t))

	o := NewOutbox("a", 4)
	r.Subscribe(LobbyChannel, o)
	r.Subscribe(SessionChannel("s1"), o)

	r.Unsubscribe(LobbyChannel, o)
	assert.Equal(t, 0, r.Subscribers(LobbyChannel))

	delivered := r.Publish(SessionChannel("s1"), Envelope{Kind: KindSystem})
	assert.Equal(t, 1, delivered)
	assert.NoError(t, o.Push(Envelope{Kind: KindSystem}))
}

func TestDropRemovesFromAllChannelsAndCloses(t *testing.T) {
	r := NewRouter(zaptest.NewLogger(t))

	o := NewOutbox("a", 4)
	r.Subscribe(LobbyChannel, o)
	r.Subscribe(SessionChannel("s1"), o)

	r.Drop(o)

	assert.Equal(t, 0, r.Subscribers(LobbyChannel))
	assert.Equal(t, 0, r.Subscribers(SessionChannel("s1")))
	assert.ErrorIs(t, o.Push(Envelope{Kind: KindSystem}), ErrOutboxClosed)
}

func TestResubscribeReplacesPrevious(t *testing.T) {
	r := NewRouter(zaptest.NewLogger(t))

	first := NewOutbox("a", 4)
	second := NewOutbox("a", 4)
	r.Subscribe(LobbyChannel, first)
	r.Subscribe(LobbyChannel, second)

	assert.Equal(t, 1, r.Subscribers(LobbyChannel))

	r.Publish(LobbyChannel, Envelope{Kind: KindSystem})
	assert.Empty(t, first.C())
	assert.Len(t, second.C(), 1)
}

func TestCloseClosesAllOutboxes(t *testing.T) {
	r := NewRouter(zaptest.NewLogger(t))

	a := NewOutbox("a", 4)
	b := NewOutbox("b", 4)
	r.Subscribe(LobbyChannel, a)
	r.Subscribe(SessionChannel("s1"), b)

	r.Close()

	assert.ErrorIs(t, a.Push(Envelope{}), ErrOutboxClosed)
	assert.ErrorIs(t, b.Push(Envelope{}), ErrOutboxClosed)
	assert.Equal(t, 0, r.Subscribers(LobbyChannel))
}

func TestConcurrentPublishAndDrop(t *testing.T) {
	r := NewRouter(zaptest.NewLogger(t))

	const subscribers = 16
	outboxes := make([]*Outbox, subscribers)
	for i := range outboxes {
		outboxes[i] = NewOutbox(fmt.Sprintf("sub-%d", i), 64)
		r.Subscribe(LobbyChannel, outboxes[i])
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			r.Publish(LobbyChannel, Envelope{Kind: KindSystem})
		}
	}()
	go func() {
		defer wg.Done()
		for _, o := range outboxes {
			r.Drop(o)
		}
	}()
	wg.Wait()

	assert.Equal(t, 0, r.Subscribers(LobbyChannel))
}
