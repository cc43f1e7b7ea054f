package sink

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectionSink_Buffers_Then_Closes_On_Overflow(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewConnectionSink(2)

	// Given a full buffer
	req.NoError(s.Consume(ctx, event.New(event.TypingShow, nil)))
	req.NoError(s.Consume(ctx, event.New(event.TypingHide, nil)))

	// When one more event arrives
	err := s.Consume(ctx, event.New(event.UsersUpdate, nil))

	// Then the sink is closed but buffered events stay readable
	req.ErrorIs(err, errors.ErrSlowConsumer)
	req.ErrorIs(s.Consume(ctx, event.New(event.UsersUpdate, nil)), errors.ErrSinkClosed)
	select {
	case <-s.Done():
	default:
		req.Fail("sink should be closed")
	}
	req.Equal(event.TypingShow, (<-s.Events()).Name)
	req.Equal(event.TypingHide, (<-s.Events()).Name)
}

func TestConnectionSink_Close_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink(1)

	s.Close()
	s.Close()

	req.ErrorIs(s.Consume(context.Background(), event.New(event.History, nil)), errors.ErrSinkClosed)
}
