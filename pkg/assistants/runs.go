package assistants

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/backend"
	"mercator-hq/poebridge/pkg/ids"
	"mercator-hq/poebridge/pkg/proxy/types"
)

// Run error codes.
const (
	CodeServerError   = "server_error"
	CodeInvalidPrompt = "invalid_prompt"
)

// redactedBackendMessage replaces upstream error text in last_error.
const redactedBackendMessage = "The upstream model service returned an error."

// CreateRun records a queued run and dispatches it.
func (s *Store) CreateRun(threadID string, req *RunRequest) (*Run, error) {
	if req.AssistantID == "" {
		return nil, apierror.Validation("assistant_id", "assistant_id is required")
	}
	if err := validateTools(req.Tools); err != nil {
		return nil, err
	}
	now := s.unix()
	extra := make([]*Message, 0, len(req.AdditionalMessages))
	for i := range req.AdditionalMessages {
		m, err := newMessage(threadID, &req.AdditionalMessages[i], now)
		if err != nil {
			return nil, err
		}
		extra = append(extra, m)
	}

	s.mu.Lock()
	t, ok := s.threads[threadID]
	if !ok {
		s.mu.Unlock()
		return nil, apierror.NotFound("thread", threadID)
	}
	a, ok := s.assistants[req.AssistantID]
	if !ok {
		s.mu.Unlock()
		return nil, apierror.NotFound("assistant", req.AssistantID)
	}

	run := &Run{
		ID:          ids.New(ids.Run),
		Object:      ObjectRun,
		CreatedAt:   now,
		ThreadID:    threadID,
		AssistantID: a.ID,
		Status:      StatusQueued,
		Model:       a.Model,
		Tools:       a.Tools,
		Metadata:    orEmpty(req.Metadata),
		Temperature: a.Temperature,
	}
	if req.Model != nil && *req.Model != "" {
		run.Model = *req.Model
	}
	if a.Instructions != nil {
		run.Instructions = *a.Instructions
	}
	if req.Instructions != nil {
		run.Instructions = *req.Instructions
	}
	if req.AdditionalInstructions != nil && *req.AdditionalInstructions != "" {
		if run.Instructions != "" {
			run.Instructions += "\n\n"
		}
		run.Instructions += *req.AdditionalInstructions
	}
	if req.Tools != nil {
		run.Tools = req.Tools
	}
	if req.Temperature != nil {
		run.Temperature = req.Temperature
	}

	for _, m := range extra {
		s.messages[m.ID] = m
		t.messageIDs = append(t.messageIDs, m.ID)
	}
	s.runs[run.ID] = run
	t.runIDs = append(t.runIDs, run.ID)

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.runTimeout > 0 {
		ctx, cancel = context.WithTimeout(s.base, s.runTimeout)
	} else {
		ctx, cancel = context.WithCancel(s.base)
	}
	s.cancels[run.ID] = cancel
	out := *run
	s.running.Add(1)
	s.mu.Unlock()

	s.logger.Info("created run", "run_id", run.ID, "thread_id", threadID, "assistant_id", a.ID, "model", run.Model)

	maxTokens := req.MaxCompletionTokens
	s.dispatch(func() {
		defer s.running.Done()
		defer cancel()
		s.execute(ctx, run.ID, maxTokens)
	})
	return &out, nil
}

// execute moves a queued run through in_progress to a terminal status.
func (s *Store) execute(ctx context.Context, runID string, maxTokens *int) {
	s.mu.Lock()
	run, ok := s.runs[runID]
	if !ok || run.Status != StatusQueued {
		s.mu.Unlock()
		return
	}
	run.Status = StatusInProgress
	started := s.unix()
	run.StartedAt = &started
	req := s.chatRequest(run, maxTokens)
	threadID, assistantID := run.ThreadID, run.AssistantID
	s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "assistants.run",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("model", req.Model),
		),
	)
	defer span.End()

	resp, err := s.completer.Complete(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, runID)

	run, ok = s.runs[runID]
	if !ok || run.Status != StatusInProgress {
		// Cancelled or deleted while the backend was answering.
		s.logger.Info("discarding result of inactive run", "run_id", runID)
		return
	}
	now := s.unix()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		run.Status = StatusFailed
		run.FailedAt = &now
		run.LastError = runError(err)
		s.logger.Warn("run failed", "run_id", runID, "error", err)
		return
	}

	text := ""
	if c := resp.Choices[0].Message.Content; c != nil {
		text = *c
	}
	m := &Message{
		ID:          ids.New(ids.Message),
		Object:      ObjectMessage,
		CreatedAt:   now,
		ThreadID:    threadID,
		Role:        RoleAssistant,
		Content:     textContent(text),
		AssistantID: &assistantID,
		RunID:       &run.ID,
		Metadata:    map[string]string{},
	}
	if t, ok := s.threads[threadID]; ok {
		s.messages[m.ID] = m
		t.messageIDs = append(t.messageIDs, m.ID)
	}
	usage := resp.Usage
	run.Usage = &usage
	run.Status = StatusCompleted
	run.CompletedAt = &now
	s.logger.Info("run completed", "run_id", runID)
}

// chatRequest builds the chat request for a run. Callers hold s.mu.
func (s *Store) chatRequest(run *Run, maxTokens *int) *types.ChatCompletionRequest {
	req := &types.ChatCompletionRequest{
		Model:               run.Model,
		Temperature:         run.Temperature,
		MaxCompletionTokens: maxTokens,
	}
	if strings.TrimSpace(run.Instructions) != "" {
		req.Messages = append(req.Messages, types.Message{Role: "system", Content: types.TextContent(run.Instructions)})
	}
	if t, ok := s.threads[run.ThreadID]; ok {
		for _, id := range t.messageIDs {
			m := s.messages[id]
			req.Messages = append(req.Messages, types.Message{Role: m.Role, Content: types.TextContent(m.Text())})
		}
	}
	return req
}

func runError(err error) *RunError {
	var aerr *apierror.Error
	if errors.As(err, &aerr) {
		code := CodeServerError
		if aerr.HTTPStatus() < 500 {
			code = CodeInvalidPrompt
		}
		return &RunError{Code: code, Message: aerr.Message}
	}
	var berr *backend.Error
	if errors.As(err, &berr) {
		return &RunError{Code: CodeServerError, Message: redactedBackendMessage}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RunError{Code: CodeServerError, Message: "The run timed out."}
	}
	return &RunError{Code: CodeServerError, Message: "The run failed."}
}

// GetRun returns a run of a thread.
func (s *Store) GetRun(threadID, runID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.threads[threadID]; !ok {
		return nil, apierror.NotFound("thread", threadID)
	}
	r, ok := s.runs[runID]
	if !ok || r.ThreadID != threadID {
		return nil, apierror.NotFound("run", runID)
	}
	out := *r
	return &out, nil
}

// ListRuns pages a thread's runs.
func (s *Store) ListRuns(threadID string, p ListParams) (List[*Run], error) {
	p, err := p.normalize()
	if err != nil {
		return List[*Run]{}, err
	}
	s.mu.RLock()
	t, ok := s.threads[threadID]
	if !ok {
		s.mu.RUnlock()
		return List[*Run]{}, apierror.NotFound("thread", threadID)
	}
	items := make([]*Run, 0, len(t.runIDs))
	for _, id := range t.runIDs {
		r := *s.runs[id]
		items = append(items, &r)
	}
	s.mu.RUnlock()
	return paginate(items, func(r *Run) string { return r.ID }, p), nil
}

// CancelRun cancels a queued or in-progress run. An in-progress run's
// backend call is left to finish and its result is discarded.
func (s *Store) CancelRun(threadID, runID string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[threadID]; !ok {
		return nil, apierror.NotFound("thread", threadID)
	}
	r, ok := s.runs[runID]
	if !ok || r.ThreadID != threadID {
		return nil, apierror.NotFound("run", runID)
	}
	if r.Terminal() {
		return nil, apierror.Validation("run_id", "Cannot cancel run with status '%s'.", r.Status)
	}
	now := s.unix()
	r.Status = StatusCancelled
	r.CancelledAt = &now
	s.logger.Info("cancelled run", "run_id", runID)
	out := *r
	return &out, nil
}
