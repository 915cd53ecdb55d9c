package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Outbox delivery failure modes.
var (
	// ErrOutboxClosed is returned when pushing to a closed outbox.
	ErrOutboxClosed = errors.New("outbox is closed")
	// ErrOutboxFull is returned when the subscriber is not draining fast
	// enough and the buffer is exhausted.
	ErrOutboxFull = errors.New("outbox buffer is full")
)

// Outbox is a subscriber's bounded delivery queue. One goroutine drains C()
// while the router pushes from publishers.
type Outbox struct {
	id        string
	ch        chan Envelope
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewOutbox creates an outbox for the identified subscriber.
//
// Precondition: buffer must be positive.
func NewOutbox(id string, buffer int) *Outbox {
	return &Outbox{
		id: id,
		ch: make(chan Envelope, buffer),
	}
}

// ID returns the subscriber identifier.
func (o *Outbox) ID() string {
	return o.id
}

// C returns the delivery channel. It is closed when the outbox closes.
func (o *Outbox) C() <-chan Envelope {
	return o.ch
}

// Push enqueues an envelope without blocking.
//
// Postcondition: returns ErrOutboxClosed after Close, ErrOutboxFull when the
// buffer is exhausted, nil otherwise.
func (o *Outbox) Push(e Envelope) error {
	if o.closed.Load() {
		return ErrOutboxClosed
	}
	select {
	case o.ch <- e:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Close shuts the delivery channel. Safe to call more than once.
func (o *Outbox) Close() {
	o.closeOnce.Do(func() {
		o.closed.Store(true)
		close(o.ch)
	})
}
