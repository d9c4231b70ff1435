package adapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/attachments"
	"mercator-hq/poebridge/pkg/backend"
	"mercator-hq/poebridge/pkg/backend/backendtest"
	"mercator-hq/poebridge/pkg/capability"
	"mercator-hq/poebridge/pkg/proxy/types"
	"mercator-hq/poebridge/pkg/stream"
)

const mb = 1024 * 1024

type recordingObserver struct {
	mu     sync.Mutex
	chunks int
	calls  map[string]int
}

func (o *recordingObserver) ObserveStreamChunk() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.chunks++
}

func (o *recordingObserver) ObserveToolCalls(mode string, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls == nil {
		o.calls = make(map[string]int)
	}
	o.calls[mode] += n
}

func newTestAdapter(fake *backendtest.Backend, opts ...Option) *Adapter {
	table := capability.NewTable(capability.Builtin(), false)
	codec := attachments.New(fake, nil, 5*mb, time.Second)
	opts = append([]Option{WithClock(func() time.Time { return time.Unix(1700000000, 0) })}, opts...)
	return New(fake, codec, table, opts...)
}

func TestComplete_Basic(t *testing.T) {
	fake := backendtest.New(backendtest.Text("Hello", " there friend"))
	a := newTestAdapter(fake)

	temp := 0.2
	resp, err := a.Complete(context.Background(), &types.ChatCompletionRequest{
		Model:       "openai-gpt-4o",
		Messages:    []types.Message{userMsg("say hello to me")},
		Temperature: &temp,
		Stop:        types.StringList{"END"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if !strings.HasPrefix(resp.ID, "chatcmpl-") || len(resp.ID) != len("chatcmpl-")+29 {
		t.Errorf("ID = %q", resp.ID)
	}
	if resp.Model != "openai-gpt-4o" || resp.Object != types.ObjectChatCompletion || resp.Created != 1700000000 {
		t.Errorf("response header = %+v", resp)
	}
	choice := resp.Choices[0]
	if choice.Message.Content == nil || *choice.Message.Content != "Hello there friend" {
		t.Errorf("Content = %v", choice.Message.Content)
	}
	if choice.FinishReason != types.FinishStop {
		t.Errorf("FinishReason = %q, want stop", choice.FinishReason)
	}
	// 4 prompt words -> 3, 3 completion words -> 2
	if resp.Usage.PromptTokens != 3 || resp.Usage.CompletionTokens != 2 || resp.Usage.TotalTokens != 5 {
		t.Errorf("Usage = %+v", resp.Usage)
	}

	call := fake.Calls()[0]
	if call.Bot != "gpt-4o" {
		t.Errorf("bot = %q, want gpt-4o", call.Bot)
	}
	if *call.Request.Temperature != 0.2 || len(call.Request.StopSequences) != 1 {
		t.Errorf("sampling not forwarded: %+v", call.Request)
	}
}

func TestComplete_FallbackTools(t *testing.T) {
	reply := "<tool_call>\n<name>get_weather</name>\n<arguments>{\"city\": \"Paris\"}</arguments>\n</tool_call>"
	fake := backendtest.New(backendtest.Text(reply))
	obs := &recordingObserver{}
	a := newTestAdapter(fake, WithObserver(obs))

	resp, err := a.Complete(context.Background(), &types.ChatCompletionRequest{
		Model: "deepseek-r1",
		Messages: []types.Message{
			{Role: RoleSystem, Content: types.TextContent("You are terse.")},
			userMsg("weather in Paris?"),
		},
		Tools: []types.Tool{fn("get_weather")},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	choice := resp.Choices[0]
	if choice.FinishReason != types.FinishToolCalls {
		t.Errorf("FinishReason = %q, want tool_calls", choice.FinishReason)
	}
	if choice.Message.Content != nil {
		t.Errorf("Content = %q, want null", *choice.Message.Content)
	}
	if len(choice.Message.ToolCalls) != 1 || choice.Message.ToolCalls[0].Function.Arguments != `{"city": "Paris"}` {
		t.Errorf("ToolCalls = %+v", choice.Message.ToolCalls)
	}

	req := fake.Calls()[0].Request
	if req.Tools != nil {
		t.Errorf("native tools sent to a fallback model: %+v", req.Tools)
	}
	system := req.Query[0]
	if system.Role != backend.RoleSystem || !strings.HasPrefix(system.Content, "\n<tools>") || !strings.HasSuffix(system.Content, "\n\nYou are terse.") {
		t.Errorf("system message = %q, want tool prompt prepended", system.Content)
	}
	if obs.calls["fallback"] != 1 {
		t.Errorf("observed tool calls = %v", obs.calls)
	}
}

func TestComplete_NativeTools(t *testing.T) {
	fake := backendtest.New(backendtest.Reply{Events: []backend.Event{
		{Kind: backend.EventText, Text: "<tool_call><name>ignored</name><arguments>{}</arguments></tool_call>"},
		{Kind: backend.EventJSON, ToolCalls: []backend.ToolCallDelta{{Index: 0, Name: "get_weather", Arguments: `{"city":"Paris"}`}}},
		{Kind: backend.EventDone},
	}})
	a := newTestAdapter(fake)

	resp, err := a.Complete(context.Background(), &types.ChatCompletionRequest{
		Model:    "gpt-4o",
		Messages: []types.Message{userMsg("weather?")},
		Tools:    []types.Tool{fn("get_weather")},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	req := fake.Calls()[0].Request
	if len(req.Tools) != 1 || req.Query[0].Role != backend.RoleUser {
		t.Errorf("native request = %+v", req)
	}
	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) != 1 || calls[0].Function.Name != "get_weather" || !strings.HasPrefix(calls[0].ID, "call_") {
		t.Errorf("ToolCalls = %+v", calls)
	}
}

func TestComplete_SystemInstructionsAndRoles(t *testing.T) {
	fake := backendtest.New(backendtest.Text("{}"))
	a := newTestAdapter(fake)

	maxTok := 50
	_, err := a.Complete(context.Background(), &types.ChatCompletionRequest{
		Model: "gpt-4o",
		Messages: []types.Message{
			{Role: RoleDeveloper, Content: types.TextContent("Base.")},
			userMsg("call f"),
			{Role: RoleAssistant, ToolCalls: []types.ToolCall{{ID: "call_1", Function: types.FunctionCall{Name: "f", Arguments: "{}"}}}},
			{Role: RoleTool, ToolCallID: "call_1", Content: types.TextContent("42")},
		},
		ResponseFormat: &types.ResponseFormat{Type: "json_object"},
		MaxTokens:      &maxTok,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	q := fake.Calls()[0].Request.Query
	want := "Base.\n\nYou must respond with valid JSON only. Do not include any text before or after the JSON.\n\n\nIMPORTANT: Keep your response under 50 tokens."
	if q[0].Role != backend.RoleSystem || q[0].Content != want {
		t.Errorf("system = %q, want %q", q[0].Content, want)
	}
	if q[2].Role != backend.RoleBot || !strings.Contains(q[2].Content, "<name>f</name>") {
		t.Errorf("assistant turn = %+v", q[2])
	}
	if q[3].Role != backend.RoleUser || !strings.Contains(q[3].Content, "42") || !strings.Contains(q[3].Content, "call_1") {
		t.Errorf("tool turn = %+v", q[3])
	}
}

func TestComplete_JSONSchemaInstruction(t *testing.T) {
	fake := backendtest.New(backendtest.Text("{}"))
	a := newTestAdapter(fake)

	_, err := a.Complete(context.Background(), &types.ChatCompletionRequest{
		Model:          "gpt-4o",
		Messages:       []types.Message{userMsg("hi")},
		ResponseFormat: &types.ResponseFormat{Type: "json_schema", JSONSchema: json.RawMessage(`{"name": "x"}`)},
	})
	if err != nil {
		t.Fatal(err)
	}
	q := fake.Calls()[0].Request.Query
	if q[0].Content != `You must respond with valid JSON that conforms to this schema: {"name":"x"}` {
		t.Errorf("system = %q", q[0].Content)
	}
}

func TestComplete_ReasoningModel(t *testing.T) {
	fake := backendtest.New(backendtest.Text("Thinking... (2s elapsed)\n", "The answer is 4."))
	a := newTestAdapter(fake)

	resp, err := a.Complete(context.Background(), &types.ChatCompletionRequest{
		Model:    "deepseek-r1",
		Messages: []types.Message{userMsg("2+2?")},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got := *resp.Choices[0].Message.Content; got != "*Thinking...*\n\nThe answer is 4." {
		t.Errorf("Content = %q", got)
	}
	details := resp.Usage.CompletionTokensDetails
	if details == nil || details.ReasoningTokens != 150 {
		t.Errorf("CompletionTokensDetails = %+v, want 150 reasoning tokens", details)
	}
}

func TestComplete_OversizeAttachmentNoBackendCalls(t *testing.T) {
	fake := backendtest.New()
	a := newTestAdapter(fake)

	big := "data:image/png;base64," + base64.StdEncoding.EncodeToString(make([]byte, 10*mb))
	_, err := a.Complete(context.Background(), &types.ChatCompletionRequest{
		Model: "gpt-4o",
		Messages: []types.Message{{Role: RoleUser, Content: types.Content{Parts: []types.ContentPart{
			{Type: types.PartText, Text: "what is this"},
			{Type: types.PartImageURL, ImageURL: &types.ImageURL{URL: big}},
		}}}},
	})
	if !apierror.Is(err, apierror.KindPayloadTooLarge) {
		t.Fatalf("Complete() error = %v, want payload too large", err)
	}
	if n := len(fake.Calls()) + len(fake.Uploads()); n != 0 {
		t.Errorf("backend calls = %d, want 0", n)
	}
}

func TestComplete_AttachmentsOnLastUserMessage(t *testing.T) {
	fake := backendtest.New(backendtest.Text("a cat"))
	a := newTestAdapter(fake)

	img := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png"))
	_, err := a.Complete(context.Background(), &types.ChatCompletionRequest{
		Model: "gpt-4o",
		Messages: []types.Message{
			{Role: RoleUser, Content: types.Content{Parts: []types.ContentPart{
				{Type: types.PartImageURL, ImageURL: &types.ImageURL{URL: img}},
			}}},
			{Role: RoleAssistant, Content: types.TextContent("ok")},
			userMsg("what is it?"),
		},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	q := fake.Calls()[0].Request.Query
	if len(q[0].Attachments) != 0 || len(q[2].Attachments) != 1 {
		t.Errorf("attachments placed on %d/%d/%d", len(q[0].Attachments), len(q[1].Attachments), len(q[2].Attachments))
	}
}

func TestComplete_BackendError(t *testing.T) {
	berr := &backend.Error{Bot: "gpt-4o", StatusCode: 500, Message: "boom"}
	fake := backendtest.New(backendtest.Reply{Err: berr})
	a := newTestAdapter(fake)

	_, err := a.Complete(context.Background(), &types.ChatCompletionRequest{Model: "gpt-4o", Messages: []types.Message{userMsg("hi")}})
	if !errors.Is(err, berr) {
		t.Errorf("Complete() error = %v, want backend error", err)
	}
}

func drain(t *testing.T, events <-chan stream.Event) (string, []types.ToolCall, *types.ChatCompletionStreamChunk) {
	t.Helper()
	var (
		content  string
		calls    []types.ToolCall
		terminal *types.ChatCompletionStreamChunk
	)
	for ev := range events {
		if ev.Err != nil {
			t.Fatalf("stream error = %v", ev.Err)
		}
		c := ev.Chunk.Choices[0]
		content += c.Delta.Content
		calls = append(calls, c.Delta.ToolCalls...)
		if c.FinishReason != nil {
			terminal = ev.Chunk
		}
	}
	return content, calls, terminal
}

func TestStream_FallbackToolCallsAndUsage(t *testing.T) {
	fake := backendtest.New(backendtest.Text("Sure. <tool_call><name>f</name>", "<arguments>{}</arguments></tool_call>"))
	obs := &recordingObserver{}
	a := newTestAdapter(fake, WithObserver(obs))

	events, err := a.Stream(context.Background(), &types.ChatCompletionRequest{
		Model:         "deepseek-r1",
		Messages:      []types.Message{userMsg("use f now")},
		Tools:         []types.Tool{fn("f")},
		Stream:        true,
		StreamOptions: &types.StreamOptions{IncludeUsage: true},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	content, calls, terminal := drain(t, events)

	if content != "Sure. " {
		t.Errorf("content = %q", content)
	}
	if len(calls) != 1 || calls[0].Function.Name != "f" {
		t.Errorf("calls = %+v", calls)
	}
	if terminal == nil || *terminal.Choices[0].FinishReason != types.FinishToolCalls {
		t.Fatalf("terminal = %+v", terminal)
	}
	if terminal.Usage == nil || terminal.Usage.PromptTokens != 2 {
		t.Errorf("terminal usage = %+v", terminal.Usage)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.chunks == 0 || obs.calls["fallback"] != 1 {
		t.Errorf("observer = %d chunks, %v calls", obs.chunks, obs.calls)
	}
}

func TestStream_NoUsageUnlessRequested(t *testing.T) {
	fake := backendtest.New(backendtest.Text("hi"))
	a := newTestAdapter(fake)

	events, err := a.Stream(context.Background(), &types.ChatCompletionRequest{Model: "gpt-4o", Messages: []types.Message{userMsg("hi")}, Stream: true})
	if err != nil {
		t.Fatal(err)
	}
	_, _, terminal := drain(t, events)
	if terminal == nil || terminal.Usage != nil {
		t.Errorf("terminal = %+v, want no usage", terminal)
	}
}

func TestStream_QueryErrorReturnedDirectly(t *testing.T) {
	fake := backendtest.New(backendtest.Reply{Err: &backend.Error{Bot: "gpt-4o", StatusCode: 401}})
	a := newTestAdapter(fake)

	events, err := a.Stream(context.Background(), &types.ChatCompletionRequest{Model: "gpt-4o", Messages: []types.Message{userMsg("hi")}})
	if err == nil || events != nil {
		t.Errorf("Stream() = %v, %v, want error before streaming", events, err)
	}
}

func TestCompleteText(t *testing.T) {
	fake := backendtest.New(backendtest.Text("world"))
	a := newTestAdapter(fake)

	resp, err := a.CompleteText(context.Background(), &types.CompletionRequest{Model: "gpt-4o", Prompt: types.StringList{"hello"}})
	if err != nil {
		t.Fatalf("CompleteText() error = %v", err)
	}
	if !strings.HasPrefix(resp.ID, "cmpl-") || len(resp.ID) != len("cmpl-")+29 {
		t.Errorf("ID = %q", resp.ID)
	}
	if resp.Object != types.ObjectTextCompletion || resp.Choices[0].Text != "world" || *resp.Choices[0].FinishReason != "stop" {
		t.Errorf("response = %+v", resp)
	}
	q := fake.Calls()[0].Request.Query
	if len(q) != 1 || q[0].Role != backend.RoleUser || q[0].Content != "hello" {
		t.Errorf("query = %+v", q)
	}

	if _, err := a.CompleteText(context.Background(), &types.CompletionRequest{Model: "gpt-4o"}); !apierror.Is(err, apierror.KindValidation) {
		t.Errorf("CompleteText() without prompt error = %v", err)
	}
}

func TestStreamText(t *testing.T) {
	fake := backendtest.New(backendtest.Text("a", "b"))
	a := newTestAdapter(fake)

	events, err := a.StreamText(context.Background(), &types.CompletionRequest{Model: "gpt-4o", Prompt: types.StringList{"x"}, Stream: true})
	if err != nil {
		t.Fatal(err)
	}
	var text string
	var finished int
	for ev := range events {
		if ev.Err != nil {
			t.Fatal(ev.Err)
		}
		text += ev.Chunk.Choices[0].Text
		if ev.Chunk.Choices[0].FinishReason != nil {
			finished++
		}
	}
	if text != "ab" || finished != 1 {
		t.Errorf("text = %q, finished = %d", text, finished)
	}
}
