// Package agent implements the bounded reasoning loop and the
// planner/executor/reviewer orchestration on top of it.
package agent

import (
	"time"

	"github.com/kunaaa123/ai-mcp-hub/internal/tools"
)

// ExecutionTimeline records what one agent run actually did: every tool
// call in execution order plus the final response. Append-only during a
// run, finalized on completion.
type ExecutionTimeline struct {
	SessionID       string        `json:"session_id"`
	UserPrompt      string        `json:"user_prompt"`
	ToolCalls       []*tools.Call `json:"tool_calls"`
	FinalResponse   string        `json:"final_response"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
	TotalDurationMS int64         `json:"total_duration_ms"`
}

func newTimeline(sessionID, userPrompt string) *ExecutionTimeline {
	return &ExecutionTimeline{
		SessionID:  sessionID,
		UserPrompt: userPrompt,
		ToolCalls:  make([]*tools.Call, 0),
		StartedAt:  time.Now(),
	}
}

func (t *ExecutionTimeline) addCall(call *tools.Call) {
	t.ToolCalls = append(t.ToolCalls, call)
}

func (t *ExecutionTimeline) finalize(response string) {
	t.FinalResponse = response
	t.FinishedAt = time.Now()
	t.TotalDurationMS = t.FinishedAt.Sub(t.StartedAt).Milliseconds()
}

// AgentLog is one phase entry in a multi-agent run.
type AgentLog struct {
	Agent     string    `json:"agent"` // planner, executor, reviewer
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MultiAgentTimeline augments the execution timeline with the plan, the
// review, and the per-phase log.
type MultiAgentTimeline struct {
	*ExecutionTimeline
	Plan      *Plan      `json:"plan"`
	Review    *Review    `json:"review"`
	AgentLogs []AgentLog `json:"agent_logs"`
}
