package tools

import (
	"time"

	"github.com/google/uuid"
)

// CallStatus is the lifecycle state of a tool execution record.
type CallStatus string

const (
	StatusPending CallStatus = "pending"
	StatusRunning CallStatus = "running"
	StatusSuccess CallStatus = "success"
	StatusError   CallStatus = "error"
	StatusSkipped CallStatus = "skipped"
)

// Call records one tool execution. It is mutated only by the executor
// that created it; once FinishedAt is set it is immutable.
type Call struct {
	ID         string         `json:"id"`
	ToolName   string         `json:"tool_name"`
	Args       map[string]any `json:"args"`
	Status     CallStatus     `json:"status"`
	Result     any            `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	DurationMS int64          `json:"duration_ms"`
}

// newCall allocates a pending call record.
func newCall(toolName string, args map[string]any) *Call {
	return &Call{
		ID:        uuid.NewString(),
		ToolName:  toolName,
		Args:      args,
		Status:    StatusPending,
		StartedAt: time.Now(),
	}
}

// complete marks the call successful with the given result payload.
func (c *Call) complete(result any) {
	c.Status = StatusSuccess
	c.Result = result
	c.FinishedAt = time.Now()
	c.DurationMS = c.FinishedAt.Sub(c.StartedAt).Milliseconds()
}

// fail marks the call failed with the given message.
func (c *Call) fail(msg string) {
	c.Status = StatusError
	c.Error = msg
	c.FinishedAt = time.Now()
	c.DurationMS = c.FinishedAt.Sub(c.StartedAt).Milliseconds()
}

// deny marks the call rejected before it ran; no execution time accrues.
func (c *Call) deny(msg string) {
	c.Status = StatusError
	c.Error = msg
	c.FinishedAt = time.Now()
	c.DurationMS = 0
}
