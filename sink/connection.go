package sink

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"sync"
)

// ConnectionSink is the outbound queue of one connection.
// Consume never blocks: a connection that cannot keep up is closed instead of
// slowing down the fan-out to everybody else.
type ConnectionSink struct {
	outbound  chan event.Event
	done      chan struct{}
	closeOnce sync.Once
}

func NewConnectionSink(bufferSize int) *ConnectionSink {
	return &ConnectionSink{
		outbound: make(chan event.Event, bufferSize),
		done:     make(chan struct{}),
	}
}

func (s *ConnectionSink) Consume(_ context.Context, e event.Event) error {
	select {
	case <-s.done:
		return errors.ErrSinkClosed
	default:
	}
	select {
	case s.outbound <- e:
		return nil
	case <-s.done:
		return errors.ErrSinkClosed
	default:
		s.Close()
		return errors.ErrSlowConsumer
	}
}

// Events is drained by the connection writer.
func (s *ConnectionSink) Events() <-chan event.Event {
	return s.outbound
}

// Done is closed once the sink stops accepting events.
func (s *ConnectionSink) Done() <-chan struct{} {
	return s.done
}

// Close is idempotent. Events still buffered stay readable.
func (s *ConnectionSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
