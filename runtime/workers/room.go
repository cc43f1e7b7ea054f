package workers

import (
	"chat-relay/domain"
	"context"
	"log/slog"
	"time"
)

// Job is one unit of work on a conversation. Jobs of the same conversation never overlap.
type Job func(ctx context.Context)

// RoomWorker executes the jobs of one conversation in arrival order.
// When it has been idle for idleTimeout it asks its owner whether it may retire.
type RoomWorker struct {
	conversationID domain.ConversationID
	jobs           chan Job
	idleTimeout    time.Duration
	retire         func() bool
	log            *slog.Logger
}

func NewRoomWorker(conversationID domain.ConversationID, jobs chan Job, idleTimeout time.Duration,
	retire func() bool, log *slog.Logger) *RoomWorker {
	return &RoomWorker{
		conversationID: conversationID,
		jobs:           jobs,
		idleTimeout:    idleTimeout,
		retire:         retire,
		log:            log.With("conversation", conversationID),
	}
}

func (w *RoomWorker) Run(ctx context.Context) error {
	idle := time.NewTimer(w.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case job, ok := <-w.jobs:
			if !ok {
				return nil
			}
			job(ctx)
			idle.Reset(w.idleTimeout)
		case <-idle.C:
			if w.retire() {
				w.log.Debug("Room worker retired")
				return nil
			}
			idle.Reset(w.idleTimeout)
		}
	}
}
