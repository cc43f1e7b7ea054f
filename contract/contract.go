//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the outbound side of one connection.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// IRouter delivers events to connections. Membership here is delivery only,
// authorization happens before Join is called.
type IRouter interface {
	Attach(connID domain.ConnID, sink EventSink)
	Detach(connID domain.ConnID)
	Join(connID domain.ConnID, conversationID domain.ConversationID)
	Leave(connID domain.ConnID, conversationID domain.ConversationID)
	Deliver(ctx context.Context, audience domain.Audience, e event.Event) int
}

// ConversationResolver turns wire ids into typed conversations and answers
// whether a user may see one.
type ConversationResolver interface {
	Resolve(id domain.ConversationID, participant string) (domain.Conversation, error)
	Authorize(conversation domain.Conversation, userID string) (bool, error)
}

type MessageIndex interface {
	Index(message domain.Message) error
	Remove(messageID string) error
	Search(ctx context.Context, conversationID domain.ConversationID, terms string, limit int) ([]string, error)
}

type Censor interface {
	Censor(original string) (string, []string)
}

type IOrchestrator interface {
	Connect(ctx context.Context, identity domain.Identity, sink EventSink) (domain.ConnID, error)
	Disconnect(ctx context.Context, connID domain.ConnID)
	Handle(ctx context.Context, connID domain.ConnID, cmd domain.Command) error
}
