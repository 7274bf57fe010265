package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ollama/ollama/api"

	"github.com/kunaaa123/ai-mcp-hub/internal/auth"
	"github.com/kunaaa123/ai-mcp-hub/internal/events"
	"github.com/kunaaa123/ai-mcp-hub/internal/llm"
	"github.com/kunaaa123/ai-mcp-hub/internal/logging"
	"github.com/kunaaa123/ai-mcp-hub/internal/metrics"
	"github.com/kunaaa123/ai-mcp-hub/internal/session"
	"github.com/kunaaa123/ai-mcp-hub/internal/tools"
)

func init() {
	logging.Disable()
}

// scriptedLLM returns canned responses turn by turn. When the script is
// exhausted it keeps returning the last response, or errors.
type scriptedLLM struct {
	responses []*llm.ChatResponse
	err       error
	calls     int
	seen      [][]llm.Message
}

func (s *scriptedLLM) Chat(ctx context.Context, messages []llm.Message, toolDefs []api.Tool) (*llm.ChatResponse, error) {
	s.seen = append(s.seen, messages)
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	idx := s.calls - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

func (s *scriptedLLM) ChatStream(ctx context.Context, messages []llm.Message, toolDefs []api.Tool, onToken func(string)) (string, error) {
	resp, err := s.Chat(ctx, messages, toolDefs)
	if err != nil {
		return "", err
	}
	if onToken != nil {
		onToken(resp.Message.Content)
	}
	return resp.Message.Content, nil
}

func (s *scriptedLLM) Health(ctx context.Context) (*llm.Health, error) {
	return &llm.Health{Available: true}, nil
}

func assistantText(content string) *llm.ChatResponse {
	return &llm.ChatResponse{Message: llm.Message{Role: llm.RoleAssistant, Content: content}}
}

func assistantCalls(names ...string) *llm.ChatResponse {
	msg := llm.Message{Role: llm.RoleAssistant}
	for _, name := range names {
		msg.ToolCalls = append(msg.ToolCalls, llm.ToolCallRequest{
			Name: name,
			Args: map[string]any{},
		})
	}
	return &llm.ChatResponse{Message: msg}
}

// stubTool is a minimal catalog tool for loop tests.
type stubTool struct {
	name     string
	roles    []auth.Role
	safe     bool
	result   tools.Result
	err      error
	executed int
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "stub" }
func (t *stubTool) Spec() *tools.Spec {
	return &tools.Spec{
		Name:              t.name,
		Description:       "stub",
		InputSchema:       &tools.Schema{Type: "object"},
		RequiredRoles:     t.roles,
		SafeForProduction: t.safe,
	}
}
func (t *stubTool) Validate(args map[string]any) error { return nil }
func (t *stubTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	t.executed++
	if t.err != nil {
		return tools.Result{}, t.err
	}
	return t.result, nil
}

type harness struct {
	agent    *Agent
	llm      *scriptedLLM
	sessions *session.Store
	bus      *events.Bus
	metrics  *metrics.Store
	tools    map[string]*stubTool
}

func newHarness(t *testing.T, model *scriptedLLM, stubs ...*stubTool) *harness {
	t.Helper()

	registry := tools.NewRegistry()
	byName := make(map[string]*stubTool, len(stubs))
	for _, st := range stubs {
		if st.roles == nil {
			st.roles = auth.All()
		}
		if err := registry.Register(st); err != nil {
			t.Fatalf("Register(%s) error = %v", st.name, err)
		}
		byName[st.name] = st
	}

	sessions := session.NewStore()
	bus := events.NewBus()
	store := metrics.NewStore()
	executor := tools.NewExecutor(registry, nil, false)
	executor.SetRecorder(store)

	ag := New(Options{
		LLM:      model,
		Registry: registry,
		Executor: executor,
		Sessions: sessions,
		Bus:      bus,
		Metrics:  store,
	})
	return &harness{agent: ag, llm: model, sessions: sessions, bus: bus, metrics: store, tools: byName}
}

func (h *harness) newSession() *session.Memory {
	return h.sessions.Create("tester", auth.RoleAdmin)
}

func TestRunWithoutToolCalls(t *testing.T) {
	h := newHarness(t, &scriptedLLM{responses: []*llm.ChatResponse{assistantText("Hi there")}})
	sess := h.newSession()

	timeline := h.agent.Run(context.Background(), RunRequest{UserPrompt: "Hi", Session: sess})

	if timeline.FinalResponse != "Hi there" {
		t.Errorf("FinalResponse = %q", timeline.FinalResponse)
	}
	if len(timeline.ToolCalls) != 0 {
		t.Errorf("ToolCalls = %d, want 0", len(timeline.ToolCalls))
	}
	if h.llm.calls != 1 {
		t.Errorf("model calls = %d, want 1", h.llm.calls)
	}

	history := h.sessions.Recent(sess.ID, 10)
	if len(history) != 2 {
		t.Fatalf("session history = %d messages, want 2", len(history))
	}
	if history[0].Role != llm.RoleUser || history[0].Content != "Hi" {
		t.Errorf("history[0] = %+v", history[0])
	}
	if history[1].Role != llm.RoleAssistant || history[1].Content != "Hi there" {
		t.Errorf("history[1] = %+v", history[1])
	}
}

func TestRunExecutesToolsThenAnswers(t *testing.T) {
	h := newHarness(t, &scriptedLLM{responses: []*llm.ChatResponse{
		assistantCalls("list_files"),
		assistantText("You have 3 files."),
	}}, &stubTool{name: "list_files", safe: true, result: tools.NewSuccessResult("a b c")})
	sess := h.newSession()

	timeline := h.agent.Run(context.Background(), RunRequest{UserPrompt: "ls", Session: sess})

	if timeline.FinalResponse != "You have 3 files." {
		t.Errorf("FinalResponse = %q", timeline.FinalResponse)
	}
	if len(timeline.ToolCalls) != 1 || timeline.ToolCalls[0].ToolName != "list_files" {
		t.Fatalf("ToolCalls = %+v", timeline.ToolCalls)
	}
	if timeline.ToolCalls[0].Status != tools.StatusSuccess {
		t.Errorf("call status = %s", timeline.ToolCalls[0].Status)
	}
	if h.tools["list_files"].executed != 1 {
		t.Errorf("tool executed %d times", h.tools["list_files"].executed)
	}

	// The second model turn has to see the assistant tool request and a
	// tool message carrying the result.
	second := h.llm.seen[1]
	var sawToolMsg bool
	for _, msg := range second {
		if msg.Role == llm.RoleTool && msg.ToolName == "list_files" {
			sawToolMsg = true
		}
	}
	if !sawToolMsg {
		t.Error("second turn is missing the tool result message")
	}
}

func TestRunPreservesToolOrder(t *testing.T) {
	var order []string
	mk := func(name string) *stubTool {
		return &stubTool{name: name, safe: true, result: tools.NewSuccessResult(name)}
	}
	a, b, c := mk("tool_a"), mk("tool_b"), mk("tool_c")

	h := newHarness(t, &scriptedLLM{responses: []*llm.ChatResponse{
		assistantCalls("tool_a", "tool_b", "tool_c"),
		assistantText("done"),
	}}, a, b, c)
	sess := h.newSession()

	timeline := h.agent.Run(context.Background(), RunRequest{UserPrompt: "go", Session: sess})

	for _, call := range timeline.ToolCalls {
		order = append(order, call.ToolName)
	}
	want := []string{"tool_a", "tool_b", "tool_c"}
	if len(order) != 3 {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestRunIterationCap(t *testing.T) {
	// The model asks for a tool on every turn and never answers.
	h := newHarness(t, &scriptedLLM{responses: []*llm.ChatResponse{
		assistantCalls("list_files"),
	}}, &stubTool{name: "list_files", safe: true, result: tools.NewSuccessResult("x")})
	sess := h.newSession()

	timeline := h.agent.Run(context.Background(), RunRequest{
		UserPrompt:    "loop forever",
		Session:       sess,
		MaxIterations: 3,
	})

	if h.llm.calls != 3 {
		t.Errorf("model calls = %d, want 3", h.llm.calls)
	}
	if len(timeline.ToolCalls) != 3 {
		t.Errorf("ToolCalls = %d, want 3", len(timeline.ToolCalls))
	}
	want := "Completed 3 tool operations. Check the execution timeline for details."
	if timeline.FinalResponse != want {
		t.Errorf("FinalResponse = %q, want %q", timeline.FinalResponse, want)
	}
}

func TestRunModelFailure(t *testing.T) {
	h := newHarness(t, &scriptedLLM{err: errors.New("connection refused")})
	sess := h.newSession()

	var streamed strings.Builder
	timeline := h.agent.Run(context.Background(), RunRequest{
		UserPrompt: "hello",
		Session:    sess,
		OnToken:    func(tok string) { streamed.WriteString(tok) },
	})

	if timeline.FinalResponse != "AI Error: connection refused" {
		t.Errorf("FinalResponse = %q", timeline.FinalResponse)
	}
	if streamed.Len() != 0 {
		t.Errorf("error response was streamed: %q", streamed.String())
	}

	// The failed run still lands in the session so the user sees it.
	history := h.sessions.Recent(sess.ID, 10)
	if len(history) != 2 || !strings.HasPrefix(history[1].Content, "AI Error:") {
		t.Errorf("history = %+v", history)
	}
}

func TestRunToolFailureContinuesLoop(t *testing.T) {
	h := newHarness(t, &scriptedLLM{responses: []*llm.ChatResponse{
		assistantCalls("broken"),
		assistantText("The tool failed, sorry."),
	}}, &stubTool{name: "broken", safe: true, err: errors.New("disk on fire")})
	sess := h.newSession()

	timeline := h.agent.Run(context.Background(), RunRequest{UserPrompt: "try it", Session: sess})

	if timeline.FinalResponse != "The tool failed, sorry." {
		t.Errorf("FinalResponse = %q", timeline.FinalResponse)
	}
	if len(timeline.ToolCalls) != 1 || timeline.ToolCalls[0].Status != tools.StatusError {
		t.Fatalf("ToolCalls = %+v", timeline.ToolCalls)
	}

	// The model sees the failure as an ERROR tool message.
	second := h.llm.seen[1]
	last := second[len(second)-1]
	if last.Role != llm.RoleTool || !strings.HasPrefix(last.Content, "ERROR:") {
		t.Errorf("tool message = %+v", last)
	}
}

func TestRunPermissionDenied(t *testing.T) {
	h := newHarness(t, &scriptedLLM{responses: []*llm.ChatResponse{
		assistantCalls("admin_only"),
		assistantText("I cannot do that."),
	}}, &stubTool{name: "admin_only", safe: true, roles: []auth.Role{auth.RoleAdmin}})

	sess := h.sessions.Create("tester", auth.RoleReadonly)
	timeline := h.agent.Run(context.Background(), RunRequest{UserPrompt: "do admin", Session: sess})

	if len(timeline.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d", len(timeline.ToolCalls))
	}
	call := timeline.ToolCalls[0]
	if call.Status != tools.StatusError || call.DurationMS != 0 {
		t.Errorf("denied call = status %s, duration %d", call.Status, call.DurationMS)
	}
	if h.tools["admin_only"].executed != 0 {
		t.Error("denied tool was executed")
	}
	if timeline.FinalResponse != "I cannot do that." {
		t.Errorf("FinalResponse = %q", timeline.FinalResponse)
	}
}

func TestRunAllowedToolsFilter(t *testing.T) {
	h := newHarness(t, &scriptedLLM{responses: []*llm.ChatResponse{assistantText("ok")}},
		&stubTool{name: "tool_a", safe: true},
		&stubTool{name: "tool_b", safe: true},
	)
	sess := h.newSession()

	h.agent.Run(context.Background(), RunRequest{
		UserPrompt:   "hi",
		Session:      sess,
		AllowedTools: []string{"tool_b"},
	})

	defs := h.agent.modelTools(sess.Role, []string{"tool_b"})
	if len(defs) != 1 || defs[0].Function.Name != "tool_b" {
		t.Errorf("model tool defs = %+v", defs)
	}
}

func TestRunOnTokenStreamsFinalResponse(t *testing.T) {
	h := newHarness(t, &scriptedLLM{responses: []*llm.ChatResponse{assistantText("héllo")}})
	sess := h.newSession()

	var got strings.Builder
	h.agent.Run(context.Background(), RunRequest{
		UserPrompt: "hi",
		Session:    sess,
		OnToken:    func(tok string) { got.WriteString(tok) },
	})

	if got.String() != "héllo" {
		t.Errorf("streamed = %q", got.String())
	}
}

func TestRunPublishesLifecycleEvents(t *testing.T) {
	h := newHarness(t, &scriptedLLM{responses: []*llm.ChatResponse{
		assistantCalls("list_files"),
		assistantText("done"),
	}}, &stubTool{name: "list_files", safe: true, result: tools.NewSuccessResult("x")})
	sess := h.newSession()

	sub := h.bus.Subscribe(sess.ID)
	defer sub.Close()

	h.agent.Run(context.Background(), RunRequest{UserPrompt: "ls", Session: sess})

	want := []string{events.AgentStart, events.ToolExecuted, events.AgentDone}
	for _, name := range want {
		ev := <-sub.C
		if ev.Name != name {
			t.Errorf("event = %s, want %s", ev.Name, name)
		}
	}
}

func TestRunHistoryWindow(t *testing.T) {
	h := newHarness(t, &scriptedLLM{responses: []*llm.ChatResponse{assistantText("ok")}})
	sess := h.newSession()

	// Preload more history than the replay window holds.
	for i := 0; i < 12; i++ {
		h.sessions.Append(sess.ID, session.AgentMessage{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("old message %d", i),
		})
	}

	h.agent.Run(context.Background(), RunRequest{UserPrompt: "new", Session: sess})

	// system + window + current user message.
	first := h.llm.seen[0]
	if len(first) != 1+DefaultHistoryWindow+1 {
		t.Fatalf("model saw %d messages, want %d", len(first), 1+DefaultHistoryWindow+1)
	}
	if first[0].Role != llm.RoleSystem {
		t.Error("first message is not the system prompt")
	}
	if first[1].Content != "old message 4" {
		t.Errorf("window starts at %q, want old message 4", first[1].Content)
	}
	if first[len(first)-1].Content != "new" {
		t.Errorf("last message = %q", first[len(first)-1].Content)
	}
}

func TestAvailableToolNamesByRole(t *testing.T) {
	h := newHarness(t, &scriptedLLM{responses: []*llm.ChatResponse{assistantText("ok")}},
		&stubTool{name: "everyone", safe: true},
		&stubTool{name: "admin_only", safe: true, roles: []auth.Role{auth.RoleAdmin}},
	)

	names := h.agent.AvailableToolNames(auth.RoleReadonly)
	for _, name := range names {
		if name == "admin_only" {
			t.Error("readonly role sees admin tool")
		}
	}

	names = h.agent.AvailableToolNames(auth.RoleAdmin)
	found := 0
	for _, name := range names {
		if name == "everyone" || name == "admin_only" {
			found++
		}
	}
	if found != 2 {
		t.Errorf("admin names = %v", names)
	}
}
