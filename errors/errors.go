package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")
	ErrNotStarted  = fmt.Errorf("orchestrator not started")

	ErrUnauthenticated = fmt.Errorf("unauthenticated")
	ErrNotAuthorized   = fmt.Errorf("not authorized")
	ErrNotFound        = fmt.Errorf("not found")
	ErrInvalidMessage  = fmt.Errorf("invalid message")
	ErrInvalidReaction = fmt.Errorf("the reaction is not valid, it must be a single emoji")
	ErrInvalidPayload  = fmt.Errorf("invalid payload")
	ErrUnknownEvent    = fmt.Errorf("unknown event")

	ErrNoCallSession = fmt.Errorf("no call session for this pair")
	ErrCallBusy      = fmt.Errorf("participant already in a call")

	ErrSinkClosed    = fmt.Errorf("sink closed")
	ErrSlowConsumer  = fmt.Errorf("sink buffer full")
	ErrUnknownTarget = fmt.Errorf("unknown connection")
)

// IsSilent reports whether an error must be dropped without surfacing anything to the
// client, so that unauthorized actors cannot learn whether a resource exists.
func IsSilent(err error) bool {
	return is(err, ErrNotAuthorized) || is(err, ErrNotFound) ||
		is(err, ErrInvalidMessage) || is(err, ErrInvalidReaction) ||
		is(err, ErrInvalidPayload) || is(err, ErrNoCallSession) || is(err, ErrCallBusy)
}

func is(err, target error) bool {
	return stderrors.Is(err, target)
}
