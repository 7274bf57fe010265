package tools

import (
	"testing"

	"github.com/kunaaa123/ai-mcp-hub/internal/auth"
)

func TestRegistryRejectsInvalidNames(t *testing.T) {
	registry := NewRegistry()

	tests := []struct {
		name    string
		wantErr bool
	}{
		{"db_query", false},
		{"kv_get", false},
		{"DbQuery", true},
		{"9lives", true},
		{"", true},
		{"weird-name", true},
	}
	for _, tt := range tests {
		err := registry.Register(&fakeTool{name: tt.name, roles: auth.All(), safe: true})
		if (err != nil) != tt.wantErr {
			t.Errorf("Register(%q) error = %v, wantErr %t", tt.name, err, tt.wantErr)
		}
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(&fakeTool{name: "db_query", roles: auth.All(), safe: true}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := registry.Register(&fakeTool{name: "db_query", roles: auth.All(), safe: true}); err == nil {
		t.Error("Register() accepted a duplicate name")
	}
}

func TestRegistryForRole(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(&fakeTool{name: "open_tool", roles: auth.All(), safe: true})
	registry.MustRegister(&fakeTool{name: "dev_tool", roles: []auth.Role{auth.RoleDev, auth.RoleOperator, auth.RoleAdmin}, safe: false})
	registry.MustRegister(&fakeTool{name: "admin_tool", roles: []auth.Role{auth.RoleAdmin}, safe: false})

	names := func(list []Tool) []string {
		out := make([]string, 0, len(list))
		for _, tool := range list {
			out = append(out, tool.Name())
		}
		return out
	}

	got := names(registry.ForRole(auth.RoleReadonly, false))
	if len(got) != 1 || got[0] != "open_tool" {
		t.Errorf("ForRole(readonly) = %v", got)
	}

	got = names(registry.ForRole(auth.RoleAdmin, false))
	if len(got) != 3 {
		t.Errorf("ForRole(admin) = %v, want 3 tools", got)
	}

	// Safe mode strips tools not flagged safe for production.
	got = names(registry.ForRole(auth.RoleAdmin, true))
	if len(got) != 1 || got[0] != "open_tool" {
		t.Errorf("ForRole(admin, safeMode) = %v", got)
	}
}

func TestDescriptorShape(t *testing.T) {
	spec := &Spec{
		Name:        "db_query",
		Description: "Runs a query.",
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"sql":    {Type: "string", Description: "The SQL."},
				"params": {Type: "array"},
			},
			Required: []string{"sql"},
		},
	}

	desc := Descriptor(spec)
	if desc.Type != "function" {
		t.Errorf("Descriptor().Type = %q", desc.Type)
	}
	if desc.Function.Name != "db_query" {
		t.Errorf("Descriptor().Function.Name = %q", desc.Function.Name)
	}
	if len(desc.Function.Parameters.Required) != 1 || desc.Function.Parameters.Required[0] != "sql" {
		t.Errorf("Descriptor().Required = %v", desc.Function.Parameters.Required)
	}
	if desc.Function.Parameters.Type != "object" {
		t.Errorf("Descriptor().Parameters.Type = %q", desc.Function.Parameters.Type)
	}
}

func TestValidateAgainst(t *testing.T) {
	schema := &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"sql":    {Type: "string"},
			"limit":  {Type: "integer"},
			"staged": {Type: "boolean"},
		},
		Required: []string{"sql"},
	}

	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{"sql": "SELECT 1"}, false},
		{"missing required", map[string]any{}, true},
		{"wrong type", map[string]any{"sql": 42}, true},
		{"json number for integer", map[string]any{"sql": "SELECT 1", "limit": float64(5)}, false},
		{"bool ok", map[string]any{"sql": "SELECT 1", "staged": true}, false},
		{"bool wrong", map[string]any{"sql": "SELECT 1", "staged": "yes"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAgainst(schema, tt.args)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAgainst() error = %v, wantErr %t", err, tt.wantErr)
			}
		})
	}
}
