package broadcast

import (
	"sync"

	"go.uber.org/zap"
)

// Router delivers envelopes published to a named channel to every outbox
// subscribed to it. Closing an outbox always goes through Drop, which holds
// the write lock, so pushes under the read lock never race a close.
type Router struct {
	logger *zap.Logger

	mu sync.RWMutex
	// channels maps channel name to subscriber ID to outbox.
	channels map[string]map[string]*Outbox
}

// NewRouter creates an empty router.
//
// Precondition: logger must be non-nil.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		logger:   logger,
		channels: make(map[string]map[string]*Outbox),
	}
}

// Subscribe adds an outbox to a channel. Re-subscribing the same outbox ID
// replaces the previous subscription on that channel.
func (r *Router) Subscribe(channel string, o *Outbox) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.channels[channel]
	if !ok {
		subs = make(map[string]*Outbox)
		r.channels[channel] = subs
	}
	subs[o.ID()] = o
	r.logger.Debug("subscribed",
		zap.String("channel", channel),
		zap.String("subscriber", o.ID()),
	)
}

// Unsubscribe removes an outbox from one channel without closing it.
func (r *Router) Unsubscribe(channel string, o *Outbox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(channel, o.ID())
}

// Drop removes the outbox from every channel and closes it.
//
// Postcondition: no further envelopes reach the outbox and its delivery
// channel is closed.
func (r *Router) Drop(o *Outbox) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for channel := range r.channels {
		r.removeLocked(channel, o.ID())
	}
	o.Close()
}

// removeLocked must be called with r.mu held for writing.
func (r *Router) removeLocked(channel, subscriberID string) {
	subs, ok := r.channels[channel]
	if !ok {
		return
	}
	if _, ok := subs[subscriberID]; !ok {
		return
	}
	delete(subs, subscriberID)
	if len(subs) == 0 {
		delete(r.channels, channel)
	}
	r.logger.Debug("unsubscribed",
		zap.String("channel", channel),
		zap.String("subscriber", subscriberID),
	)
}

// Publish fans an envelope out to every subscriber on the channel and
// returns the number of deliveries. A full or closed outbox drops the
// envelope for that subscriber only.
func (r *Router) Publish(channel string, e Envelope) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for id, o := range r.channels[channel] {
		if err := o.Push(e); err != nil {
			r.logger.Warn("dropping envelope",
				zap.String("channel", channel),
				zap.String("subscriber", id),
				zap.String("kind", string(e.Kind)),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	return delivered
}

// Subscribers returns the number of outboxes on a channel.
func (r *Router) Subscribers(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[channel])
}

// Close drops every subscription and closes every outbox.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for channel, subs := range r.channels {
		for _, o := range subs {
			o.Close()
		}
		delete(r.channels, channel)
	}
}
