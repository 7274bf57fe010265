package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/ollama/ollama/api"

	"github.com/kunaaa123/ai-mcp-hub/internal/auth"
	"github.com/kunaaa123/ai-mcp-hub/internal/events"
	"github.com/kunaaa123/ai-mcp-hub/internal/llm"
	"github.com/kunaaa123/ai-mcp-hub/internal/logging"
	"github.com/kunaaa123/ai-mcp-hub/internal/mcp"
	"github.com/kunaaa123/ai-mcp-hub/internal/metrics"
	"github.com/kunaaa123/ai-mcp-hub/internal/session"
	"github.com/kunaaa123/ai-mcp-hub/internal/tools"
)

// DefaultMaxIterations bounds the reasoning loop when the request does
// not say otherwise.
const DefaultMaxIterations = 6

// DefaultHistoryWindow is how many history messages are replayed to the
// model on each run.
const DefaultHistoryWindow = 8

// Federation lists the tools discovered on external servers. Nil is a
// valid value meaning no federation.
type Federation interface {
	AllTools() []*mcp.FederatedTool
}

// Agent drives the bounded LLM / tool loop for one deployment. Safe for
// concurrent use; per-session runs are serialized through the store.
type Agent struct {
	llm        llm.Client
	registry   *tools.Registry
	executor   *tools.Executor
	federation Federation
	sessions   *session.Store
	bus        *events.Bus
	metrics    *metrics.Store

	env           PromptEnv
	safeMode      bool
	maxIterations int
	historyWindow int
}

// Options configures an Agent.
type Options struct {
	LLM           llm.Client
	Registry      *tools.Registry
	Executor      *tools.Executor
	Federation    Federation
	Sessions      *session.Store
	Bus           *events.Bus
	Metrics       *metrics.Store
	PromptEnv     PromptEnv
	SafeMode      bool
	MaxIterations int
	HistoryWindow int
}

// New creates an agent.
func New(opts Options) *Agent {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	return &Agent{
		llm:           opts.LLM,
		registry:      opts.Registry,
		executor:      opts.Executor,
		federation:    opts.Federation,
		sessions:      opts.Sessions,
		bus:           opts.Bus,
		metrics:       opts.Metrics,
		env:           opts.PromptEnv,
		safeMode:      opts.SafeMode,
		maxIterations: opts.MaxIterations,
		historyWindow: opts.HistoryWindow,
	}
}

// RunRequest is one agent invocation.
type RunRequest struct {
	UserPrompt    string
	Session       *session.Memory
	AllowedTools  []string
	MaxIterations int
	OnToken       func(string)

	// ownDoneEvent is set by the orchestrator, which announces
	// completion itself once the review phase has finished.
	ownDoneEvent bool
}

// Run executes the reasoning loop for one user prompt and returns the
// timeline of what happened. Tool-level failures never abort the loop;
// model-level failures terminate it with an error response.
func (a *Agent) Run(ctx context.Context, req RunRequest) *ExecutionTimeline {
	sess := req.Session
	unlock := a.sessions.LockRun(sess.ID)
	defer unlock()

	if a.metrics != nil {
		a.metrics.RecordRequest()
	}

	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = a.maxIterations
	}

	timeline := newTimeline(sess.ID, req.UserPrompt)
	a.publish(sess.ID, events.AgentStart, map[string]any{"prompt": req.UserPrompt})

	modelTools := a.modelTools(sess.Role, req.AllowedTools)
	messages := a.buildMessages(sess, req.UserPrompt)

	a.sessions.Append(sess.ID, session.AgentMessage{
		Role:      llm.RoleUser,
		Content:   req.UserPrompt,
		Timestamp: timeline.StartedAt,
	})

	var finalResponse string
	var requested []llm.ToolCallRequest
	done := false
	failed := false

	for i := 0; i < maxIterations; i++ {
		resp, err := a.llm.Chat(ctx, messages, modelTools)
		if err != nil {
			finalResponse = "AI Error: " + err.Error()
			failed = true
			logging.Error("model call failed", "session_id", sess.ID, "error", err)
			break
		}

		assistant := resp.Message
		if len(assistant.ToolCalls) == 0 {
			finalResponse = assistant.Content
			done = true
			break
		}

		messages = append(messages, assistant)
		requested = append(requested, assistant.ToolCalls...)

		// Sequential, in emission order. The model may carry data
		// dependencies between calls in the same turn.
		for _, tc := range assistant.ToolCalls {
			call := a.executor.Execute(ctx, tc.Name, tc.Args, sess.Role)
			timeline.addCall(call)
			a.publish(sess.ID, events.ToolExecuted, call)

			messages = append(messages, llm.Message{
				Role:     llm.RoleTool,
				Content:  toolMessageContent(call),
				ToolName: tc.Name,
			})
		}
	}

	if !done && !failed {
		finalResponse = fmt.Sprintf("Completed %d tool operations. Check the execution timeline for details.", len(timeline.ToolCalls))
	}

	if req.OnToken != nil && !failed {
		for _, r := range finalResponse {
			req.OnToken(string(r))
		}
	}

	timeline.finalize(finalResponse)

	a.sessions.Append(sess.ID, session.AgentMessage{
		Role:      llm.RoleAssistant,
		Content:   finalResponse,
		ToolCalls: requested,
		Timestamp: timeline.FinishedAt,
	})

	if a.metrics != nil {
		a.metrics.RecordSession(sess.ID, sess.UserID, len(timeline.ToolCalls))
	}

	if failed {
		a.publish(sess.ID, events.AgentError, map[string]any{"error": finalResponse})
	} else if !req.ownDoneEvent {
		a.publish(sess.ID, events.AgentDone, map[string]any{
			"response":   finalResponse,
			"tool_calls": len(timeline.ToolCalls),
		})
	}

	return timeline
}

// modelTools builds the descriptor list the model sees: built-in tools
// filtered by role and safe mode, plus every federated tool.
func (a *Agent) modelTools(role auth.Role, allowed []string) []api.Tool {
	var out []api.Tool
	for _, tool := range a.registry.ForRole(role, a.safeMode) {
		if len(allowed) > 0 && !slices.Contains(allowed, tool.Name()) {
			continue
		}
		out = append(out, tools.Descriptor(tool.Spec()))
	}

	if a.federation != nil {
		for _, ft := range a.federation.AllTools() {
			out = append(out, tools.Descriptor(ft.Spec()))
		}
	}
	return out
}

// AvailableToolNames returns the built-in tool names usable by a role,
// for the planner's known-name set.
func (a *Agent) AvailableToolNames(role auth.Role) []string {
	available := a.registry.ForRole(role, a.safeMode)
	names := make([]string, 0, len(available))
	for _, tool := range available {
		names = append(names, tool.Name())
	}
	if a.federation != nil {
		for _, ft := range a.federation.AllTools() {
			names = append(names, ft.FullName())
		}
	}
	return names
}

// buildMessages assembles the system prompt, the history replay window,
// and the new user message.
func (a *Agent) buildMessages(sess *session.Memory, userPrompt string) []llm.Message {
	messages := []llm.Message{{
		Role:    llm.RoleSystem,
		Content: operatingPrompt(a.env),
	}}

	for _, msg := range a.sessions.Recent(sess.ID, a.historyWindow) {
		messages = append(messages, llm.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: userPrompt,
	})
}

func (a *Agent) publish(sessionID, name string, payload any) {
	if a.bus != nil {
		a.bus.Publish(sessionID, name, payload)
	}
}

// toolMessageContent renders an execution record for the model: the
// result pretty-printed on success, the error otherwise.
func toolMessageContent(call *tools.Call) string {
	if call.Status != tools.StatusSuccess {
		return "ERROR: " + call.Error
	}
	raw, err := json.MarshalIndent(call.Result, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", call.Result)
	}
	return string(raw)
}
