// Package runtime handles connection lifecycle, event dispatch and fan-out.
// It orchestrates the system without containing business logic or domain rules.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Config struct {
	RoomBufferSize  int
	RoomIdleTimeout time.Duration
	MetricInterval  time.Duration
}

// mailbox feeds the worker of one conversation. pending counts jobs accepted but not
// finished, a worker only retires when it is zero.
type mailbox struct {
	jobs    chan workers.Job
	pending int
}

type Orchestrator struct {
	mu            sync.Mutex
	log           *slog.Logger
	metrics       *observability.Metrics
	config        Config
	supervisor    contract.ISupervisor
	presence      *Presence
	router        *Router
	users         repositories.IUserRepository
	conversations *services.ConversationService
	messages      *services.MessageService
	typing        *services.TypingService
	calls         *services.CallService
	stories       *services.StoryService
	contacts      *services.ContactService
	rooms         map[domain.ConversationID]*mailbox
	runCtx        context.Context
	cancel        context.CancelFunc
	ready         chan struct{}
	readyOnce     sync.Once
}

func NewOrchestrator(
	log *slog.Logger,
	metrics *observability.Metrics,
	config Config,
	supervisor contract.ISupervisor,
	presence *Presence,
	router *Router,
	users repositories.IUserRepository,
	conversations *services.ConversationService,
	messages *services.MessageService,
	typing *services.TypingService,
	calls *services.CallService,
	stories *services.StoryService,
	contacts *services.ContactService,
) *Orchestrator {
	if config.RoomBufferSize <= 0 {
		config.RoomBufferSize = 64
	}
	if config.RoomIdleTimeout <= 0 {
		config.RoomIdleTimeout = time.Minute
	}
	if config.MetricInterval <= 0 {
		config.MetricInterval = 5 * time.Second
	}
	return &Orchestrator{
		log:           log,
		metrics:       metrics,
		config:        config,
		supervisor:    supervisor,
		presence:      presence,
		router:        router,
		users:         users,
		conversations: conversations,
		messages:      messages,
		typing:        typing,
		calls:         calls,
		stories:       stories,
		contacts:      contacts,
		rooms:         make(map[domain.ConversationID]*mailbox),
		ready:         make(chan struct{}),
	}
}

// Start runs the supervised workers and blocks until ctx is cancelled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.runCtx != nil {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.runCtx, o.cancel = runCtx, cancel
	o.supervisor.Add(workers.NewTelemetryWorker(o.log, o.metrics, o.config.MetricInterval, o.sample))
	o.mu.Unlock()

	o.readyOnce.Do(func() { close(o.ready) })
	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(runCtx)
	return nil
}

// Ready is closed once commands can be accepted.
func (o *Orchestrator) Ready() <-chan struct{} {
	return o.ready
}

func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	o.supervisor.Stop()
}

// Connect registers a verified identity and its outbound sink, then broadcasts presence.
func (o *Orchestrator) Connect(ctx context.Context, identity domain.Identity, sink contract.EventSink) (domain.ConnID, error) {
	connID := domain.NewConnID()
	if err := o.presence.Register(connID, identity); err != nil {
		return "", err
	}
	o.router.Attach(connID, sink)
	if err := o.users.SaveIdentity(identity); err != nil {
		o.log.Warn("Unable to save identity", "user", identity.ID, "error", err)
	}
	o.log.Info("User connected", "user", identity.ID, "conn", connID)
	o.sample()
	o.broadcastPresence(ctx)
	return connID, nil
}

// Disconnect cleans a connection up exactly once: memberships, typing timers,
// presence, and the call of an identity that has no device left.
func (o *Orchestrator) Disconnect(ctx context.Context, connID domain.ConnID) {
	departure, ok := o.presence.Unregister(connID)
	if !ok {
		return
	}
	o.router.Detach(connID)
	o.typing.DropConnection(ctx, connID)
	if departure.LastConnection {
		o.calls.DropIdentity(ctx, departure.Identity.ID)
	}
	o.log.Info("User disconnected", "user", departure.Identity.ID, "conn", connID)
	o.sample()
	o.broadcastPresence(ctx)
}

// Handle dispatches one command of a connection. Conversation mutations are queued on
// the worker of their conversation and run asynchronously.
func (o *Orchestrator) Handle(ctx context.Context, connID domain.ConnID, cmd domain.Command) error {
	identity, ok := o.presence.Identity(connID)
	if !ok {
		return errors.ErrUnknownTarget
	}
	o.metrics.InboundEvents.WithLabelValues(cmd.Name()).Inc()

	if conversational, ok := cmd.(domain.ConversationCommand); ok {
		conversationID, err := o.route(conversational)
		if err != nil {
			return o.drop(cmd, err)
		}
		return o.enqueue(ctx, conversationID, func(jobCtx context.Context) {
			_ = o.drop(cmd, o.apply(jobCtx, connID, identity, cmd))
		})
	}
	return o.drop(cmd, o.apply(ctx, connID, identity, cmd))
}

// route picks the conversation a command is serialized on. Reactions and deletes
// sent without one follow the stored message.
func (o *Orchestrator) route(cmd domain.ConversationCommand) (domain.ConversationID, error) {
	if conversationID := cmd.Conversation(); conversationID != "" {
		return conversationID, nil
	}
	switch c := cmd.(type) {
	case domain.ToggleReaction:
		return o.messages.ConversationOf(c.MessageID)
	case domain.DeleteMessage:
		return o.messages.ConversationOf(c.MessageID)
	}
	return "", errors.ErrInvalidPayload
}

func (o *Orchestrator) apply(ctx context.Context, connID domain.ConnID, identity domain.Identity, cmd domain.Command) error {
	switch c := cmd.(type) {
	case domain.JoinConversation:
		conversation, err := o.authorized(c.ConversationID, identity.ID)
		if err != nil {
			return err
		}
		o.router.Join(connID, conversation.ID)
		return nil
	case domain.LeaveConversation:
		o.router.Leave(connID, c.ConversationID)
		return nil
	case domain.SendMessage:
		_, err := o.messages.Create(ctx, identity, c.Message)
		return err
	case domain.ToggleReaction:
		return o.messages.ToggleReaction(ctx, identity, c.MessageID, c.ConversationID, c.Emoji)
	case domain.DeleteMessage:
		return o.messages.SoftDelete(ctx, identity, c.MessageID, c.ConversationID)
	case domain.MarkRead:
		return o.messages.MarkRead(ctx, identity, c.ConversationID)
	case domain.MarkDelivered:
		return o.messages.MarkDelivered(ctx, identity, c.MessageID)
	case domain.StartTyping:
		return o.typing.Start(ctx, connID, identity, c.ConversationID)
	case domain.StopTyping:
		return o.typing.Stop(ctx, identity, c.ConversationID)
	case domain.CallInvite:
		return o.calls.Invite(ctx, identity, c.TargetUserID, c.Offer, c.IsVideo)
	case domain.CallAnswer:
		return o.calls.Answer(ctx, identity, c.TargetUserID, c.Answer)
	case domain.CallIceCandidate:
		return o.calls.IceCandidate(ctx, identity, c.TargetUserID, c.Candidate)
	case domain.CallReject:
		return o.calls.Reject(ctx, identity, c.TargetUserID)
	case domain.CallEnd:
		return o.calls.End(ctx, identity, c.TargetUserID)
	case domain.RequestHistory:
		if c.ConversationID == "" {
			conversations, err := o.conversations.List(identity.ID)
			if err != nil {
				return err
			}
			messages, err := o.messages.Recent(identity, conversations)
			if err != nil {
				return err
			}
			o.router.Deliver(ctx, domain.ToConnection(connID), event.New(event.History, messages))
			return nil
		}
		page, err := o.messages.History(identity, c.ConversationID, c.Cursor)
		if err != nil {
			return err
		}
		if c.Paged {
			o.router.Deliver(ctx, domain.ToConnection(connID), event.New(event.PagedHistory, page))
			return nil
		}
		o.router.Deliver(ctx, domain.ToConnection(connID), event.New(event.History, page.Messages))
		return nil
	case domain.SearchMessages:
		page, err := o.messages.Search(ctx, identity, c.ConversationID, c.Query, c.Limit)
		if err != nil {
			return err
		}
		o.router.Deliver(ctx, domain.ToConnection(connID), event.New(event.SearchResults, page))
		return nil
	case domain.CreateConversation:
		creations, err := o.conversations.Create(identity, c)
		if err != nil {
			return err
		}
		for _, creation := range creations {
			o.router.Deliver(ctx, domain.Audience{Identities: creation.Members},
				event.New(event.ConversationCreated, event.Created{Conversation: creation.Conversation, Members: creation.Members}))
		}
		return nil
	case domain.ListConversations:
		conversations, err := o.conversations.List(identity.ID)
		if err != nil {
			return err
		}
		o.router.Deliver(ctx, domain.ToConnection(connID), event.New(event.ConversationsListing, conversations))
		return nil
	case domain.CreateStory:
		_, err := o.stories.Post(ctx, identity, c.Story)
		return err
	case domain.ListStories:
		stories, err := o.stories.List()
		if err != nil {
			return err
		}
		o.router.Deliver(ctx, domain.ToConnection(connID), event.New(event.Stories, stories))
		return nil
	case domain.SearchContacts:
		contacts, err := o.contacts.Search(identity, c.Query)
		if err != nil {
			return err
		}
		o.router.Deliver(ctx, domain.ToConnection(connID), event.New(event.Contacts, event.ContactPage{Query: c.Query, Contacts: contacts}))
		return nil
	}
	return fmt.Errorf("%s: %w", cmd.Name(), errors.ErrUnknownEvent)
}

func (o *Orchestrator) authorized(conversationID domain.ConversationID, userID string) (domain.Conversation, error) {
	conversation, err := o.conversations.Resolve(conversationID, userID)
	if err != nil {
		return domain.Conversation{}, err
	}
	ok, err := o.conversations.Authorize(conversation, userID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !ok {
		return domain.Conversation{}, errors.ErrNotAuthorized
	}
	return conversation, nil
}

// drop logs a failed command. Failures that could reveal whether a resource exists
// are swallowed, the client never gets an acknowledgement anyway.
func (o *Orchestrator) drop(cmd domain.Command, err error) error {
	if err == nil {
		return nil
	}
	if errors.IsSilent(err) {
		o.log.Debug("Command dropped", "event", cmd.Name(), "error", err)
		o.metrics.DroppedCommands.WithLabelValues(reason(err)).Inc()
		return nil
	}
	o.log.Error("Command failed", "event", cmd.Name(), "error", err)
	o.metrics.DroppedCommands.WithLabelValues("failure").Inc()
	return err
}

func reason(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrNotAuthorized):
		return "not_authorized"
	case stderrors.Is(err, errors.ErrNotFound):
		return "not_found"
	case stderrors.Is(err, errors.ErrNoCallSession), stderrors.Is(err, errors.ErrCallBusy):
		return "call_state"
	}
	return "invalid"
}

// enqueue hands a job to the worker of a conversation, starting one if needed.
func (o *Orchestrator) enqueue(ctx context.Context, conversationID domain.ConversationID, job workers.Job) error {
	o.mu.Lock()
	if o.runCtx == nil || o.runCtx.Err() != nil {
		o.mu.Unlock()
		return errors.ErrNotStarted
	}
	box, ok := o.rooms[conversationID]
	if !ok {
		box = &mailbox{jobs: make(chan workers.Job, o.config.RoomBufferSize)}
		o.rooms[conversationID] = box
		worker := workers.NewRoomWorker(conversationID, box.jobs, o.config.RoomIdleTimeout,
			func() bool { return o.retire(conversationID, box) }, o.log)
		o.supervisor.Start(o.runCtx, worker)
		o.metrics.RoomWorkers.Inc()
	}
	box.pending++
	runCtx := o.runCtx
	o.mu.Unlock()

	wrapped := func(jobCtx context.Context) {
		defer o.done(box)
		job(jobCtx)
	}
	select {
	case box.jobs <- wrapped:
		return nil
	case <-ctx.Done():
		o.done(box)
		return ctx.Err()
	case <-runCtx.Done():
		o.done(box)
		return errors.ErrNotStarted
	}
}

func (o *Orchestrator) done(box *mailbox) {
	o.mu.Lock()
	defer o.mu.Unlock()
	box.pending--
}

// retire lets an idle worker go when nothing is queued for it.
func (o *Orchestrator) retire(conversationID domain.ConversationID, box *mailbox) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if box.pending > 0 {
		return false
	}
	if o.rooms[conversationID] == box {
		delete(o.rooms, conversationID)
		o.metrics.RoomWorkers.Dec()
	}
	return true
}

func (o *Orchestrator) broadcastPresence(ctx context.Context) {
	o.router.Deliver(ctx, domain.Audience{Everyone: true}, event.New(event.UsersUpdate, o.presence.Snapshot()))
}

func (o *Orchestrator) sample() {
	connections, identities := o.presence.Counts()
	o.metrics.Connections.Set(float64(connections))
	o.metrics.OnlineIdentities.Set(float64(identities))
}
