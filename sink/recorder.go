package sink

import (
	"chat-relay/domain/event"
	"context"
	"sync"

	"github.com/samber/lo"
)

// Recorder keeps every consumed event in memory. It backs local tooling and tests.
type Recorder struct {
	mu     sync.Mutex
	Owner  string
	events []event.Event
}

func NewRecorder(owner string) *Recorder {
	return &Recorder{Owner: owner}
}

func (r *Recorder) Consume(_ context.Context, e event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

// Named returns the recorded events carrying the given name, in arrival order.
func (r *Recorder) Named(name event.Name) []event.Event {
	return lo.Filter(r.Events(), func(e event.Event, _ int) bool {
		return e.Name == name
	})
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
