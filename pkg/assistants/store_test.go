package assistants

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/backend"
	"mercator-hq/poebridge/pkg/proxy/types"
)

// completerFunc adapts a function to Completer.
type completerFunc func(ctx context.Context, req *types.ChatCompletionRequest) (*types.ChatCompletionResponse, error)

func (f completerFunc) Complete(ctx context.Context, req *types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
	return f(ctx, req)
}

func reply(text string) completerFunc {
	return func(ctx context.Context, req *types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
		return &types.ChatCompletionResponse{
			Choices: []types.Choice{{Message: types.ResponseMessage{Role: "assistant", Content: &text}}},
			Usage:   types.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3},
		}, nil
	}
}

// queue is a dispatcher that holds jobs until the test runs them.
type queue struct {
	mu   sync.Mutex
	jobs []func()
}

func (q *queue) dispatch(job func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
}

func (q *queue) runAll() {
	q.mu.Lock()
	jobs := q.jobs
	q.jobs = nil
	q.mu.Unlock()
	for _, j := range jobs {
		j()
	}
}

func str(s string) *string { return &s }

func newTestStore(c Completer) (*Store, *queue) {
	q := &queue{}
	tick := int64(1700000000)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return time.Unix(tick, 0)
	}
	return NewStore(c, WithDispatcher(q.dispatch), WithClock(clock)), q
}

func TestAssistantLifecycle(t *testing.T) {
	s, _ := newTestStore(reply(""))

	if _, err := s.CreateAssistant(&AssistantRequest{}); !apierror.Is(err, apierror.KindValidation) {
		t.Errorf("CreateAssistant() without model error = %v", err)
	}
	if _, err := s.CreateAssistant(&AssistantRequest{Model: str("gpt-4o"), Tools: []Tool{{Type: "browser"}}}); !apierror.Is(err, apierror.KindValidation) {
		t.Errorf("CreateAssistant() with bad tool error = %v", err)
	}

	a, err := s.CreateAssistant(&AssistantRequest{Model: str("gpt-4o"), Name: str("Helper"), Instructions: str("Be brief.")})
	if err != nil {
		t.Fatalf("CreateAssistant() error = %v", err)
	}
	if !isID(a.ID, "asst_") || a.Object != ObjectAssistant {
		t.Errorf("assistant = %+v", a)
	}

	updated, err := s.UpdateAssistant(a.ID, &AssistantRequest{Name: str("Renamed")})
	if err != nil {
		t.Fatalf("UpdateAssistant() error = %v", err)
	}
	if *updated.Name != "Renamed" || updated.Model != "gpt-4o" || *updated.Instructions != "Be brief." {
		t.Errorf("partial update = %+v", updated)
	}

	del, err := s.DeleteAssistant(a.ID)
	if err != nil {
		t.Fatalf("DeleteAssistant() error = %v", err)
	}
	if del.ID != a.ID || del.Object != "assistant.deleted" || !del.Deleted {
		t.Errorf("DeleteAssistant() = %+v", del)
	}
	if _, err := s.GetAssistant(a.ID); !apierror.Is(err, apierror.KindNotFound) {
		t.Errorf("GetAssistant() after delete error = %v", err)
	}
	if _, err := s.DeleteAssistant(a.ID); !apierror.Is(err, apierror.KindNotFound) {
		t.Errorf("second DeleteAssistant() error = %v", err)
	}
}

func isID(id, prefix string) bool {
	return len(id) == len(prefix)+24 && id[:len(prefix)] == prefix
}

func TestListAssistants(t *testing.T) {
	s, _ := newTestStore(reply(""))
	var created []string
	for i := 0; i < 5; i++ {
		a, err := s.CreateAssistant(&AssistantRequest{Model: str(fmt.Sprintf("m%d", i))})
		if err != nil {
			t.Fatal(err)
		}
		created = append(created, a.ID)
	}

	tests := []struct {
		name        string
		params      ListParams
		wantIDs     []string
		wantHasMore bool
	}{
		{"default desc", ListParams{}, []string{created[4], created[3], created[2], created[1], created[0]}, false},
		{"limit desc", ListParams{Limit: 2}, []string{created[4], created[3]}, true},
		{"asc after", ListParams{Limit: 2, Order: OrderAsc, After: created[1]}, []string{created[2], created[3]}, true},
		{"desc after", ListParams{Order: OrderDesc, After: created[1]}, []string{created[0]}, false},
		{"before", ListParams{Order: OrderAsc, Before: created[2]}, []string{created[0], created[1]}, false},
		{"unknown cursor", ListParams{After: "asst_missing"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := s.ListAssistants(tt.params)
			if err != nil {
				t.Fatalf("ListAssistants() error = %v", err)
			}
			if page.Object != "list" || page.HasMore != tt.wantHasMore {
				t.Errorf("page = object %q has_more %v, want has_more %v", page.Object, page.HasMore, tt.wantHasMore)
			}
			if len(page.Data) != len(tt.wantIDs) {
				t.Fatalf("len(Data) = %d, want %d", len(page.Data), len(tt.wantIDs))
			}
			for i, a := range page.Data {
				if a.ID != tt.wantIDs[i] {
					t.Errorf("Data[%d] = %s, want %s", i, a.ID, tt.wantIDs[i])
				}
			}
			if len(tt.wantIDs) == 0 {
				if page.FirstID != nil || page.LastID != nil {
					t.Errorf("empty page has cursors %v %v", page.FirstID, page.LastID)
				}
				return
			}
			if *page.FirstID != tt.wantIDs[0] || *page.LastID != tt.wantIDs[len(tt.wantIDs)-1] {
				t.Errorf("cursors = %s..%s", *page.FirstID, *page.LastID)
			}
		})
	}

	for _, p := range []ListParams{{Limit: 101}, {Limit: -1}, {Order: "sideways"}} {
		if _, err := s.ListAssistants(p); !apierror.Is(err, apierror.KindValidation) {
			t.Errorf("ListAssistants(%+v) error = %v, want validation error", p, err)
		}
	}
}

func TestThreadsAndMessages(t *testing.T) {
	s, _ := newTestStore(reply(""))

	th, err := s.CreateThread(&ThreadRequest{Messages: []MessageRequest{
		{Content: types.TextContent("hello")},
		{Role: RoleAssistant, Content: types.TextContent("hi there")},
	}})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	if !isID(th.ID, "thread_") {
		t.Errorf("thread id = %q", th.ID)
	}

	m, err := s.CreateMessage(th.ID, &MessageRequest{Role: RoleUser, Content: types.TextContent("again")})
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}
	if !isID(m.ID, "msg_") || m.Text() != "again" || m.ThreadID != th.ID {
		t.Errorf("message = %+v", m)
	}

	page, err := s.ListMessages(th.ID, ListParams{Order: OrderAsc})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Data) != 3 || page.Data[0].Role != RoleUser || page.Data[1].Text() != "hi there" {
		t.Errorf("messages = %+v", page.Data)
	}

	got, err := s.GetMessage(th.ID, m.ID)
	if err != nil || got.ID != m.ID {
		t.Errorf("GetMessage() = %v, %v", got, err)
	}

	other, _ := s.CreateThread(&ThreadRequest{})
	if _, err := s.GetMessage(other.ID, m.ID); !apierror.Is(err, apierror.KindNotFound) {
		t.Errorf("GetMessage() from another thread error = %v", err)
	}

	invalid := []MessageRequest{
		{Role: "system", Content: types.TextContent("x")},
		{Role: RoleUser},
	}
	for _, req := range invalid {
		if _, err := s.CreateMessage(th.ID, &req); !apierror.Is(err, apierror.KindValidation) {
			t.Errorf("CreateMessage(%+v) error = %v", req, err)
		}
	}
	if _, err := s.CreateMessage("thread_missing", &MessageRequest{Content: types.TextContent("x")}); !apierror.Is(err, apierror.KindNotFound) {
		t.Errorf("CreateMessage() on missing thread error = %v", err)
	}

	updated, err := s.UpdateThread(th.ID, &ThreadRequest{Metadata: map[string]string{"k": "v"}})
	if err != nil || updated.Metadata["k"] != "v" {
		t.Errorf("UpdateThread() = %+v, %v", updated, err)
	}

	if c := s.Counts(); c.Threads != 2 || c.Messages != 3 {
		t.Errorf("Counts() = %+v", c)
	}
	if _, err := s.DeleteThread(th.ID); err != nil {
		t.Fatal(err)
	}
	if c := s.Counts(); c.Threads != 1 || c.Messages != 0 {
		t.Errorf("Counts() after delete = %+v", c)
	}
	if _, err := s.ListMessages(th.ID, ListParams{}); !apierror.Is(err, apierror.KindNotFound) {
		t.Errorf("ListMessages() on deleted thread error = %v", err)
	}
}

func setupRun(t *testing.T, s *Store) (string, string) {
	t.Helper()
	a, err := s.CreateAssistant(&AssistantRequest{Model: str("gpt-4o"), Instructions: str("Be brief.")})
	if err != nil {
		t.Fatal(err)
	}
	th, err := s.CreateThread(&ThreadRequest{Messages: []MessageRequest{{Content: types.TextContent("What is 2+2?")}}})
	if err != nil {
		t.Fatal(err)
	}
	return a.ID, th.ID
}

func TestRun_Completes(t *testing.T) {
	var got *types.ChatCompletionRequest
	c := completerFunc(func(ctx context.Context, req *types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
		got = req
		return reply("4")(ctx, req)
	})
	s, q := newTestStore(c)
	asst, th := setupRun(t, s)

	run, err := s.CreateRun(th, &RunRequest{AssistantID: asst, Model: str("claude-sonnet-4"), AdditionalInstructions: str("Answer with digits.")})
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if run.Status != StatusQueued || !isID(run.ID, "run_") {
		t.Errorf("new run = %+v", run)
	}

	q.runAll()

	done, err := s.GetRun(th, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != StatusCompleted || done.StartedAt == nil || done.CompletedAt == nil || done.Usage.TotalTokens != 3 {
		t.Errorf("finished run = %+v", done)
	}

	if got.Model != "claude-sonnet-4" {
		t.Errorf("chat model = %q, want run override", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" ||
		got.Messages[0].Content.Text() != "Be brief.\n\nAnswer with digits." || got.Messages[1].Content.Text() != "What is 2+2?" {
		t.Errorf("chat messages = %+v", got.Messages)
	}

	page, _ := s.ListMessages(th, ListParams{})
	last := page.Data[0]
	if last.Role != RoleAssistant || last.Text() != "4" || *last.RunID != run.ID || *last.AssistantID != asst {
		t.Errorf("reply message = %+v", last)
	}

	if _, err := s.CancelRun(th, run.ID); !apierror.Is(err, apierror.KindValidation) {
		t.Errorf("CancelRun() on completed run error = %v", err)
	}
}

func TestRun_Fails(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantMsg  string
	}{
		{
			name:     "backend error is redacted",
			err:      &backend.Error{Bot: "gpt-4o", StatusCode: 500, Message: "internal upstream detail"},
			wantCode: CodeServerError,
			wantMsg:  redactedBackendMessage,
		},
		{
			name:     "invalid request",
			err:      apierror.Validation("messages", "bad input"),
			wantCode: CodeInvalidPrompt,
			wantMsg:  "bad input",
		},
		{
			name:     "other failure",
			err:      errors.New("boom"),
			wantCode: CodeServerError,
			wantMsg:  "The run failed.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, q := newTestStore(completerFunc(func(context.Context, *types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
				return nil, tt.err
			}))
			asst, th := setupRun(t, s)
			run, err := s.CreateRun(th, &RunRequest{AssistantID: asst})
			if err != nil {
				t.Fatal(err)
			}
			q.runAll()

			got, _ := s.GetRun(th, run.ID)
			if got.Status != StatusFailed || got.FailedAt == nil {
				t.Fatalf("run = %+v, want failed", got)
			}
			if got.LastError == nil || got.LastError.Code != tt.wantCode || got.LastError.Message != tt.wantMsg {
				t.Errorf("LastError = %+v, want %s %q", got.LastError, tt.wantCode, tt.wantMsg)
			}
			if c := s.Counts(); c.Messages != 1 {
				t.Errorf("messages = %d, want no reply appended", c.Messages)
			}
		})
	}
}

func TestRun_CancelQueued(t *testing.T) {
	called := false
	s, q := newTestStore(completerFunc(func(ctx context.Context, req *types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
		called = true
		return reply("x")(ctx, req)
	}))
	asst, th := setupRun(t, s)
	run, _ := s.CreateRun(th, &RunRequest{AssistantID: asst})

	cancelled, err := s.CancelRun(th, run.ID)
	if err != nil {
		t.Fatalf("CancelRun() error = %v", err)
	}
	if cancelled.Status != StatusCancelled || cancelled.CancelledAt == nil {
		t.Errorf("cancelled run = %+v", cancelled)
	}

	q.runAll()
	if called {
		t.Error("backend called for a cancelled run")
	}
	got, _ := s.GetRun(th, run.ID)
	if got.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
}

func TestRun_CancelInProgressDiscardsResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var callErr error
	s, _ := newTestStore(completerFunc(func(ctx context.Context, req *types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		callErr = ctx.Err()
		return reply("late")(ctx, req)
	}))
	s.dispatch = GoDispatcher
	asst, th := setupRun(t, s)
	run, _ := s.CreateRun(th, &RunRequest{AssistantID: asst})

	<-started
	if got, _ := s.GetRun(th, run.ID); got.Status != StatusInProgress {
		t.Fatalf("status = %s, want in_progress", got.Status)
	}
	if _, err := s.CancelRun(th, run.ID); err != nil {
		t.Fatalf("CancelRun() error = %v", err)
	}
	close(release)
	s.Close()

	got, _ := s.GetRun(th, run.ID)
	if got.Status != StatusCancelled || got.CompletedAt != nil {
		t.Errorf("run = %+v, want cancelled", got)
	}
	if c := s.Counts(); c.Messages != 1 {
		t.Errorf("messages = %d, want late reply discarded", c.Messages)
	}
	if callErr != nil {
		t.Errorf("backend call context error = %v, want call left to finish", callErr)
	}
}

func TestRun_NotFound(t *testing.T) {
	s, _ := newTestStore(reply(""))
	asst, th := setupRun(t, s)

	if _, err := s.CreateRun("thread_missing", &RunRequest{AssistantID: asst}); !apierror.Is(err, apierror.KindNotFound) {
		t.Errorf("CreateRun() on missing thread error = %v", err)
	}
	if _, err := s.CreateRun(th, &RunRequest{AssistantID: "asst_missing"}); !apierror.Is(err, apierror.KindNotFound) {
		t.Errorf("CreateRun() with missing assistant error = %v", err)
	}
	if _, err := s.CreateRun(th, &RunRequest{}); !apierror.Is(err, apierror.KindValidation) {
		t.Errorf("CreateRun() without assistant error = %v", err)
	}
	if _, err := s.GetRun(th, "run_missing"); !apierror.Is(err, apierror.KindNotFound) {
		t.Errorf("GetRun() error = %v", err)
	}
	if _, err := s.CancelRun(th, "run_missing"); !apierror.Is(err, apierror.KindNotFound) {
		t.Errorf("CancelRun() error = %v", err)
	}
}

func TestListRuns(t *testing.T) {
	s, q := newTestStore(reply("ok"))
	asst, th := setupRun(t, s)
	var ids []string
	for i := 0; i < 3; i++ {
		r, err := s.CreateRun(th, &RunRequest{AssistantID: asst})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, r.ID)
	}
	q.runAll()

	page, err := s.ListRuns(th, ListParams{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Data) != 2 || page.Data[0].ID != ids[2] || !page.HasMore {
		t.Errorf("ListRuns() = %+v", page)
	}
	for _, r := range page.Data {
		if r.Status != StatusCompleted {
			t.Errorf("run %s status = %s", r.ID, r.Status)
		}
	}
}
