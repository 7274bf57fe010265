package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kunaaa123/ai-mcp-hub/internal/auth"
	"github.com/kunaaa123/ai-mcp-hub/internal/logging"
)

// FederatedPrefix marks tool names served by external tool servers.
const FederatedPrefix = "mcp__"

// placeholderPattern catches unresolved template literals the model
// sometimes inlines into SQL instead of a real parameter.
var placeholderPattern = regexp.MustCompile(`\{[A-Za-z_][A-Za-z0-9_]*\}`)

// Federation dispatches calls to federated tools by their full
// mcp__<server_id>__<tool_name> name.
type Federation interface {
	ExecuteTool(ctx context.Context, fullName string, args map[string]any) (any, error)
}

// Recorder receives per-call accounting. Implemented by the metrics store.
type Recorder interface {
	RecordToolCall(toolName string, success bool, durationMS int64)
}

// Executor validates permissions and dispatches tool calls, producing an
// execution record per call. Tool-level failures never escape as errors;
// they are captured on the record so the reasoning loop can continue.
type Executor struct {
	registry   *Registry
	federation Federation
	recorder   Recorder
	safeMode   bool
}

// NewExecutor creates a tool executor.
func NewExecutor(registry *Registry, federation Federation, safeMode bool) *Executor {
	return &Executor{
		registry:   registry,
		federation: federation,
		safeMode:   safeMode,
	}
}

// SetRecorder attaches a call recorder.
func (e *Executor) SetRecorder(r Recorder) {
	e.recorder = r
}

// Execute runs one tool call on behalf of the given role and returns its
// execution record. The returned call always has a terminal status.
func (e *Executor) Execute(ctx context.Context, toolName string, args map[string]any, role auth.Role) *Call {
	call := newCall(toolName, args)
	defer e.record(call)

	// Federated names bypass the built-in catalog and role gate applies
	// at the manager's discretion; routing is on the name prefix.
	if strings.HasPrefix(toolName, FederatedPrefix) {
		e.executeFederated(ctx, call)
		return call
	}

	tool, ok := e.registry.Get(toolName)
	if !ok {
		call.deny(fmt.Sprintf("Unknown tool: %s", toolName))
		return call
	}

	spec := tool.Spec()
	if !spec.AllowsRole(role) {
		call.deny(fmt.Sprintf("Permission denied: role '%s' cannot use tool '%s'", role, toolName))
		return call
	}
	if e.safeMode && !spec.SafeForProduction {
		call.deny(fmt.Sprintf("Permission denied: tool '%s' is disabled in production-safe mode", toolName))
		return call
	}

	if err := checkSQLPlaceholders(toolName, args); err != nil {
		call.deny(err.Error())
		return call
	}

	if err := tool.Validate(args); err != nil {
		call.deny(fmt.Sprintf("Invalid arguments: %s", err))
		return call
	}

	call.Status = StatusRunning

	result, err := tool.Execute(ctx, args)
	if err != nil {
		call.fail(err.Error())
		return call
	}
	if !result.Success {
		call.fail(result.Error)
		return call
	}

	call.complete(result.Value())
	return call
}

// executeFederated routes a call to the external tool-server manager.
func (e *Executor) executeFederated(ctx context.Context, call *Call) {
	if e.federation == nil {
		call.deny(fmt.Sprintf("Unknown tool: %s", call.ToolName))
		return
	}

	call.Status = StatusRunning

	result, err := e.federation.ExecuteTool(ctx, call.ToolName, call.Args)
	if err != nil {
		call.fail(err.Error())
		return
	}
	call.complete(result)
}

// checkSQLPlaceholders rejects SQL carrying an unresolved {name} template
// literal. Motivated by repeatedly observed model behavior on db tools.
func checkSQLPlaceholders(toolName string, args map[string]any) error {
	if !strings.HasPrefix(toolName, "db_") {
		return nil
	}
	sql, ok := GetString(args, "sql")
	if !ok {
		return nil
	}
	if m := placeholderPattern.FindString(sql); m != "" {
		return fmt.Errorf("SQL contains unresolved placeholder %s: use query parameters instead of template literals", m)
	}
	return nil
}

func (e *Executor) record(call *Call) {
	if e.recorder != nil {
		e.recorder.RecordToolCall(call.ToolName, call.Status == StatusSuccess, call.DurationMS)
	}
	if call.Status == StatusError {
		logging.Debug("tool call failed", "tool", call.ToolName, "error", call.Error)
	}
}
