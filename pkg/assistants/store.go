// Package assistants is an in-memory implementation of assistants,
// threads, messages and runs.
//
// Records live in maps keyed by their ids; threads keep the ordered ids of
// their messages and runs. Nothing is persisted. Runs execute
// asynchronously through a Dispatcher and call the chat adapter once.
package assistants

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/ids"
	"mercator-hq/poebridge/pkg/proxy/types"
)

// Completer runs a blocking chat completion.
type Completer interface {
	Complete(ctx context.Context, req *types.ChatCompletionRequest) (*types.ChatCompletionResponse, error)
}

// Dispatcher schedules run execution. The default starts a goroutine.
type Dispatcher func(job func())

// GoDispatcher runs every job on its own goroutine.
func GoDispatcher(job func()) { go job() }

// thread is a thread record with its ordered children.
type thread struct {
	Thread
	messageIDs []string
	runIDs     []string
}

// Counts reports how many records the store holds.
type Counts struct {
	Assistants int
	Threads    int
	Messages   int
	Runs       int
}

// Store holds assistants state.
type Store struct {
	mu             sync.RWMutex
	assistants     map[string]*Assistant
	assistantOrder []string
	threads        map[string]*thread
	messages       map[string]*Message
	runs           map[string]*Run
	cancels        map[string]context.CancelFunc

	completer  Completer
	dispatch   Dispatcher
	runTimeout time.Duration
	now        func() time.Time
	tracer     trace.Tracer
	logger     *slog.Logger

	base    context.Context
	stop    context.CancelFunc
	running sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithDispatcher replaces the goroutine dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Store) { s.dispatch = d }
}

// WithRunTimeout bounds each run's backend call.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Store) { s.runTimeout = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty store whose runs call c.
func NewStore(c Completer, opts ...Option) *Store {
	base, stop := context.WithCancel(context.Background())
	s := &Store{
		assistants: make(map[string]*Assistant),
		threads:    make(map[string]*thread),
		messages:   make(map[string]*Message),
		runs:       make(map[string]*Run),
		cancels:    make(map[string]context.CancelFunc),
		completer:  c,
		dispatch:   GoDispatcher,
		now:        time.Now,
		tracer:     otel.Tracer("mercator-hq/poebridge/assistants"),
		logger:     slog.Default().With("component", "assistants"),
		base:       base,
		stop:       stop,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Warn("assistants state is kept in memory and lost on restart")
	return s
}

// Close cancels in-flight runs and waits for their workers to return.
func (s *Store) Close() {
	s.stop()
	s.running.Wait()
}

// Counts returns the number of stored records.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Assistants: len(s.assistants),
		Threads:    len(s.threads),
		Messages:   len(s.messages),
		Runs:       len(s.runs),
	}
}

func (s *Store) unix() int64 {
	return s.now().Unix()
}

// CreateAssistant stores a new assistant.
func (s *Store) CreateAssistant(req *AssistantRequest) (*Assistant, error) {
	if req.Model == nil || strings.TrimSpace(*req.Model) == "" {
		return nil, apierror.Validation("model", "model is required")
	}
	if err := validateTools(req.Tools); err != nil {
		return nil, err
	}
	a := &Assistant{
		ID:        ids.New(ids.Assistant),
		Object:    ObjectAssistant,
		CreatedAt: s.unix(),
		Tools:     []Tool{},
		Metadata:  map[string]string{},
	}
	applyAssistant(a, req)

	s.mu.Lock()
	s.assistants[a.ID] = a
	s.assistantOrder = append(s.assistantOrder, a.ID)
	s.mu.Unlock()

	s.logger.Info("created assistant", "assistant_id", a.ID, "model", a.Model)
	return copyAssistant(a), nil
}

// GetAssistant returns an assistant.
func (s *Store) GetAssistant(id string) (*Assistant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assistants[id]
	if !ok {
		return nil, apierror.NotFound("assistant", id)
	}
	return copyAssistant(a), nil
}

// UpdateAssistant changes the fields set in req.
func (s *Store) UpdateAssistant(id string, req *AssistantRequest) (*Assistant, error) {
	if req.Model != nil && strings.TrimSpace(*req.Model) == "" {
		return nil, apierror.Validation("model", "model must not be empty")
	}
	if err := validateTools(req.Tools); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assistants[id]
	if !ok {
		return nil, apierror.NotFound("assistant", id)
	}
	applyAssistant(a, req)
	return copyAssistant(a), nil
}

// DeleteAssistant removes an assistant. Existing runs keep its id.
func (s *Store) DeleteAssistant(id string) (*types.DeletedObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assistants[id]; !ok {
		return nil, apierror.NotFound("assistant", id)
	}
	delete(s.assistants, id)
	s.assistantOrder = removeID(s.assistantOrder, id)
	return deleted(id, ObjectAssistant), nil
}

// ListAssistants pages assistants by creation.
func (s *Store) ListAssistants(p ListParams) (List[*Assistant], error) {
	p, err := p.normalize()
	if err != nil {
		return List[*Assistant]{}, err
	}
	s.mu.RLock()
	items := make([]*Assistant, 0, len(s.assistantOrder))
	for _, id := range s.assistantOrder {
		items = append(items, copyAssistant(s.assistants[id]))
	}
	s.mu.RUnlock()
	return paginate(items, func(a *Assistant) string { return a.ID }, p), nil
}

// CreateThread stores a thread and its initial messages.
func (s *Store) CreateThread(req *ThreadRequest) (*Thread, error) {
	now := s.unix()
	t := &thread{Thread: Thread{
		ID:        ids.New(ids.Thread),
		Object:    ObjectThread,
		CreatedAt: now,
		Metadata:  orEmpty(req.Metadata),
	}}

	msgs := make([]*Message, 0, len(req.Messages))
	for i := range req.Messages {
		m, err := newMessage(t.ID, &req.Messages[i], now)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}

	s.mu.Lock()
	s.threads[t.ID] = t
	for _, m := range msgs {
		s.messages[m.ID] = m
		t.messageIDs = append(t.messageIDs, m.ID)
	}
	s.mu.Unlock()

	s.logger.Info("created thread", "thread_id", t.ID, "messages", len(msgs))
	out := t.Thread
	return &out, nil
}

// GetThread returns a thread.
func (s *Store) GetThread(id string) (*Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[id]
	if !ok {
		return nil, apierror.NotFound("thread", id)
	}
	out := t.Thread
	return &out, nil
}

// UpdateThread replaces a thread's metadata.
func (s *Store) UpdateThread(id string, req *ThreadRequest) (*Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		return nil, apierror.NotFound("thread", id)
	}
	if req.Metadata != nil {
		t.Metadata = req.Metadata
	}
	out := t.Thread
	return &out, nil
}

// DeleteThread removes a thread with its messages and runs. Active runs
// are cancelled.
func (s *Store) DeleteThread(id string) (*types.DeletedObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		return nil, apierror.NotFound("thread", id)
	}
	for _, mid := range t.messageIDs {
		delete(s.messages, mid)
	}
	for _, rid := range t.runIDs {
		if cancel, ok := s.cancels[rid]; ok {
			cancel()
			delete(s.cancels, rid)
		}
		delete(s.runs, rid)
	}
	delete(s.threads, id)
	return deleted(id, ObjectThread), nil
}

func applyAssistant(a *Assistant, req *AssistantRequest) {
	if req.Model != nil {
		a.Model = *req.Model
	}
	if req.Name != nil {
		a.Name = req.Name
	}
	if req.Description != nil {
		a.Description = req.Description
	}
	if req.Instructions != nil {
		a.Instructions = req.Instructions
	}
	if req.Tools != nil {
		a.Tools = req.Tools
	}
	if req.Metadata != nil {
		a.Metadata = req.Metadata
	}
	if req.Temperature != nil {
		a.Temperature = req.Temperature
	}
	if req.TopP != nil {
		a.TopP = req.TopP
	}
	if len(req.ResponseFormat) > 0 {
		a.ResponseFormat = req.ResponseFormat
	}
}

func validateTools(tools []Tool) error {
	for i, t := range tools {
		switch t.Type {
		case "code_interpreter", "file_search":
		case "function":
			if t.Function == nil || t.Function.Name == "" {
				return apierror.Validation("tools", "tools[%d].function.name is required", i)
			}
		default:
			return apierror.Validation("tools", "tools[%d].type '%s' is not supported", i, t.Type)
		}
	}
	return nil
}

func copyAssistant(a *Assistant) *Assistant {
	out := *a
	return &out
}

func deleted(id, object string) *types.DeletedObject {
	return &types.DeletedObject{ID: id, Object: object + ".deleted", Deleted: true}
}

func removeID(list []string, id string) []string {
	for i, v := range list {
		if v == id {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
