package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/kunaaa123/ai-mcp-hub/internal/auth"
	"github.com/kunaaa123/ai-mcp-hub/internal/logging"
)

func init() {
	logging.Disable()
}

// fakeTool is a minimal Tool for executor tests.
type fakeTool struct {
	name     string
	roles    []auth.Role
	safe     bool
	result   Result
	err      error
	executed int
}

func (t *fakeTool) Name() string        { return t.name }
func (t *fakeTool) Description() string { return "test tool" }
func (t *fakeTool) Spec() *Spec {
	return &Spec{
		Name:              t.name,
		Description:       t.Description(),
		InputSchema:       &Schema{Type: "object"},
		RequiredRoles:     t.roles,
		SafeForProduction: t.safe,
	}
}
func (t *fakeTool) Validate(args map[string]any) error { return nil }
func (t *fakeTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	t.executed++
	return t.result, t.err
}

// fakeFederation records dispatched names.
type fakeFederation struct {
	calls  []string
	result any
	err    error
}

func (f *fakeFederation) ExecuteTool(ctx context.Context, fullName string, args map[string]any) (any, error) {
	f.calls = append(f.calls, fullName)
	return f.result, f.err
}

func newTestExecutor(t *testing.T, safeMode bool, fed Federation, toolList ...Tool) *Executor {
	t.Helper()
	registry := NewRegistry()
	for _, tool := range toolList {
		if err := registry.Register(tool); err != nil {
			t.Fatalf("Register(%s) error = %v", tool.Name(), err)
		}
	}
	return NewExecutor(registry, fed, safeMode)
}

func TestExecuteSuccess(t *testing.T) {
	tool := &fakeTool{name: "echo_tool", roles: auth.All(), safe: true, result: NewSuccessResult("hello")}
	exec := newTestExecutor(t, false, nil, tool)

	call := exec.Execute(context.Background(), "echo_tool", nil, auth.RoleReadonly)
	if call.Status != StatusSuccess {
		t.Fatalf("Execute() status = %s, want %s (error: %s)", call.Status, StatusSuccess, call.Error)
	}
	if call.Result != "hello" {
		t.Errorf("Execute() result = %v, want hello", call.Result)
	}
	if tool.executed != 1 {
		t.Errorf("tool executed %d times, want 1", tool.executed)
	}
	if call.FinishedAt.IsZero() {
		t.Error("FinishedAt not set")
	}
}

func TestCallJSONAlwaysCarriesFinishedAt(t *testing.T) {
	call := newCall("echo_tool", nil)

	raw, err := json.Marshal(call)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	// A zero time must still serialize; omitempty never fires on
	// struct values, so the tag must not promise it.
	if _, ok := fields["finished_at"]; !ok {
		t.Error("finished_at missing from serialized call")
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	exec := newTestExecutor(t, false, nil)

	call := exec.Execute(context.Background(), "nope", nil, auth.RoleAdmin)
	if call.Status != StatusError {
		t.Fatalf("Execute() status = %s, want %s", call.Status, StatusError)
	}
	if !strings.Contains(call.Error, "Unknown tool") {
		t.Errorf("Execute() error = %q, want Unknown tool", call.Error)
	}
}

func TestExecutePermissionDenied(t *testing.T) {
	tool := &fakeTool{name: "admin_only", roles: []auth.Role{auth.RoleAdmin}, safe: true, result: NewSuccessResult("ok")}
	exec := newTestExecutor(t, false, nil, tool)

	call := exec.Execute(context.Background(), "admin_only", nil, auth.RoleReadonly)
	if call.Status != StatusError {
		t.Fatalf("Execute() status = %s, want %s", call.Status, StatusError)
	}
	if !strings.Contains(call.Error, "Permission denied: role 'readonly' cannot use tool 'admin_only'") {
		t.Errorf("Execute() error = %q", call.Error)
	}
	if call.DurationMS != 0 {
		t.Errorf("denied call DurationMS = %d, want 0", call.DurationMS)
	}
	if tool.executed != 0 {
		t.Errorf("denied tool was executed %d times", tool.executed)
	}
}

func TestExecuteSafeModeBlocksUnsafeTool(t *testing.T) {
	tool := &fakeTool{name: "unsafe_tool", roles: auth.All(), safe: false, result: NewSuccessResult("ok")}
	exec := newTestExecutor(t, true, nil, tool)

	call := exec.Execute(context.Background(), "unsafe_tool", nil, auth.RoleAdmin)
	if call.Status != StatusError {
		t.Fatalf("Execute() status = %s, want %s", call.Status, StatusError)
	}
	if !strings.Contains(call.Error, "production-safe mode") {
		t.Errorf("Execute() error = %q", call.Error)
	}
	if tool.executed != 0 {
		t.Errorf("blocked tool was executed %d times", tool.executed)
	}
}

func TestExecuteSQLPlaceholderGuard(t *testing.T) {
	tool := &fakeTool{name: "db_query", roles: auth.All(), safe: true, result: NewSuccessResult("ok")}
	exec := newTestExecutor(t, false, nil, tool)

	args := map[string]any{"sql": "INSERT INTO gold(price) VALUES ({price})"}
	call := exec.Execute(context.Background(), "db_query", args, auth.RoleAdmin)
	if call.Status != StatusError {
		t.Fatalf("Execute() status = %s, want %s", call.Status, StatusError)
	}
	if !strings.Contains(call.Error, "placeholder") {
		t.Errorf("Execute() error = %q, want placeholder message", call.Error)
	}
	if tool.executed != 0 {
		t.Errorf("guarded tool was executed %d times", tool.executed)
	}

	// Parameterized SQL passes the guard.
	ok := exec.Execute(context.Background(), "db_query", map[string]any{"sql": "SELECT * FROM gold WHERE price > $1"}, auth.RoleAdmin)
	if ok.Status != StatusSuccess {
		t.Errorf("parameterized SQL status = %s, want success (%s)", ok.Status, ok.Error)
	}
}

func TestExecuteToolFailureBecomesErrorCall(t *testing.T) {
	tool := &fakeTool{name: "flaky", roles: auth.All(), safe: true, result: NewErrorResult("backend down")}
	exec := newTestExecutor(t, false, nil, tool)

	call := exec.Execute(context.Background(), "flaky", nil, auth.RoleDev)
	if call.Status != StatusError {
		t.Fatalf("Execute() status = %s, want %s", call.Status, StatusError)
	}
	if call.Error != "backend down" {
		t.Errorf("Execute() error = %q, want backend down", call.Error)
	}
}

func TestExecuteRoutesFederatedNames(t *testing.T) {
	fed := &fakeFederation{result: "file contents"}
	exec := newTestExecutor(t, false, fed)

	full := "mcp__abc123__read_file"
	call := exec.Execute(context.Background(), full, map[string]any{"path": "a.txt"}, auth.RoleReadonly)
	if call.Status != StatusSuccess {
		t.Fatalf("Execute() status = %s, want success (%s)", call.Status, call.Error)
	}
	if len(fed.calls) != 1 || fed.calls[0] != full {
		t.Errorf("federation calls = %v, want [%s]", fed.calls, full)
	}
	if call.Result != "file contents" {
		t.Errorf("Execute() result = %v", call.Result)
	}
}

func TestExecuteFederatedWithoutManager(t *testing.T) {
	exec := newTestExecutor(t, false, nil)

	call := exec.Execute(context.Background(), "mcp__x__y", nil, auth.RoleAdmin)
	if call.Status != StatusError {
		t.Fatalf("Execute() status = %s, want %s", call.Status, StatusError)
	}
}

func TestExecuteRecordsMetrics(t *testing.T) {
	var recorded []string
	recorder := recorderFunc(func(name string, success bool, durationMS int64) {
		recorded = append(recorded, fmt.Sprintf("%s:%t", name, success))
	})

	tool := &fakeTool{name: "ok_tool", roles: auth.All(), safe: true, result: NewSuccessResult("ok")}
	exec := newTestExecutor(t, false, nil, tool)
	exec.SetRecorder(recorder)

	exec.Execute(context.Background(), "ok_tool", nil, auth.RoleDev)
	exec.Execute(context.Background(), "missing", nil, auth.RoleDev)

	want := []string{"ok_tool:true", "missing:false"}
	if len(recorded) != 2 || recorded[0] != want[0] || recorded[1] != want[1] {
		t.Errorf("recorded = %v, want %v", recorded, want)
	}
}

type recorderFunc func(toolName string, success bool, durationMS int64)

func (f recorderFunc) RecordToolCall(toolName string, success bool, durationMS int64) {
	f(toolName, success, durationMS)
}
