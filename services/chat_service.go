//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"log/slog"
)

type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// IChatService is what a transport needs: authenticate, open, dispatch, close.
type IChatService interface {
	Authenticate(token string) (domain.Identity, error)
	Open(ctx context.Context, identity domain.Identity, sink contract.EventSink) (domain.ConnID, error)
	Dispatch(ctx context.Context, connID domain.ConnID, cmd domain.Command) error
	Close(ctx context.Context, connID domain.ConnID)
}

type ChatService struct {
	verifier     TokenVerifier
	orchestrator contract.IOrchestrator
	log          *slog.Logger
}

func NewChatService(verifier TokenVerifier, orchestrator contract.IOrchestrator, log *slog.Logger) *ChatService {
	return &ChatService{verifier: verifier, orchestrator: orchestrator, log: log}
}

func (s *ChatService) Authenticate(token string) (domain.Identity, error) {
	identity, err := s.verifier.Verify(token)
	if err != nil {
		s.log.Debug("Authentication refused", "error", err)
	}
	return identity, err
}

func (s *ChatService) Open(ctx context.Context, identity domain.Identity, sink contract.EventSink) (domain.ConnID, error) {
	return s.orchestrator.Connect(ctx, identity, sink)
}

func (s *ChatService) Dispatch(ctx context.Context, connID domain.ConnID, cmd domain.Command) error {
	return s.orchestrator.Handle(ctx, connID, cmd)
}

func (s *ChatService) Close(ctx context.Context, connID domain.ConnID) {
	s.orchestrator.Disconnect(ctx, connID)
}
