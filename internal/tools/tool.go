// Package tools defines the built-in tool catalog, the uniform tool
// interface, and the executor that dispatches role-gated tool calls.
package tools

import (
	"context"

	"github.com/kunaaa123/ai-mcp-hub/internal/auth"
)

// Schema is a JSON Schema fragment describing a tool's argument object.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []any              `json:"enum,omitempty"`
	Default     any                `json:"default,omitempty"`
}

// Spec declares a tool: its name, argument schema, the roles allowed to
// call it, and whether it survives production-safe mode.
type Spec struct {
	Name              string      `json:"name"`
	Description       string      `json:"description"`
	InputSchema       *Schema     `json:"input_schema"`
	RequiredRoles     []auth.Role `json:"required_roles"`
	SafeForProduction bool        `json:"safe_for_production"`
}

// AllowsRole reports whether the given role may call the tool.
func (s *Spec) AllowsRole(role auth.Role) bool {
	for _, r := range s.RequiredRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Tool is the uniform interface every tool implements; built-in tools
// register concrete invokers, federated tools register a forwarder to the
// external-server manager.
type Tool interface {
	// Name returns the unique name of the tool.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// Spec returns the full tool declaration.
	Spec() *Spec

	// Validate validates the arguments before execution.
	Validate(args map[string]any) error

	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args map[string]any) (Result, error)
}

// Result represents the outcome of a tool execution.
type Result struct {
	// Content is the main result content (usually text).
	Content string

	// Data contains structured data if applicable.
	Data any

	// Error contains an error message if the tool failed.
	Error string

	// Success indicates if the tool executed successfully.
	Success bool
}

// NewSuccessResult creates a successful tool result.
func NewSuccessResult(content string) Result {
	return Result{Content: content, Success: true}
}

// NewSuccessResultWithData creates a successful tool result with data.
func NewSuccessResultWithData(content string, data any) Result {
	return Result{Content: content, Data: data, Success: true}
}

// NewErrorResult creates a failed tool result.
func NewErrorResult(errMsg string) Result {
	return Result{Error: errMsg, Success: false}
}

// Value returns the payload to record on a ToolCall: structured data if
// present, the text content otherwise.
func (r Result) Value() any {
	if r.Data != nil {
		return r.Data
	}
	return r.Content
}

// ValidationError represents a tool argument validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// ValidateAgainst checks args against a schema: required fields present,
// supplied properties type-correct.
func ValidateAgainst(schema *Schema, args map[string]any) error {
	if schema == nil {
		return nil
	}

	for _, required := range schema.Required {
		if _, ok := args[required]; !ok {
			return NewValidationError(required, "is required")
		}
	}

	for name, prop := range schema.Properties {
		val, ok := args[name]
		if !ok {
			continue
		}
		if err := validateValue(name, val, prop); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(name string, val any, schema *Schema) error {
	if schema == nil {
		return nil
	}

	switch schema.Type {
	case "string":
		if _, ok := val.(string); !ok {
			return NewValidationError(name, "must be a string")
		}
	case "number", "integer":
		switch val.(type) {
		case int, int64, float64:
		default:
			return NewValidationError(name, "must be a number")
		}
	case "boolean":
		if _, ok := val.(bool); !ok {
			return NewValidationError(name, "must be a boolean")
		}
	case "array":
		if _, ok := val.([]any); !ok {
			return NewValidationError(name, "must be an array")
		}
	case "object":
		if _, ok := val.(map[string]any); !ok {
			return NewValidationError(name, "must be an object")
		}
	}
	return nil
}

// GetString extracts a string argument from the args map.
func GetString(args map[string]any, key string) (string, bool) {
	val, ok := args[key]
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetStringDefault extracts a string argument with a default value.
func GetStringDefault(args map[string]any, key, defaultVal string) string {
	if val, ok := GetString(args, key); ok {
		return val
	}
	return defaultVal
}

// GetInt extracts an integer argument from the args map.
func GetInt(args map[string]any, key string) (int, bool) {
	val, ok := args[key]
	if !ok {
		return 0, false
	}
	// Models return JSON numbers as float64
	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// GetIntDefault extracts an integer argument with a default value.
func GetIntDefault(args map[string]any, key string, defaultVal int) int {
	if val, ok := GetInt(args, key); ok {
		return val
	}
	return defaultVal
}

// GetBool extracts a boolean argument from the args map.
func GetBool(args map[string]any, key string) (bool, bool) {
	val, ok := args[key]
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}

// GetBoolDefault extracts a boolean argument with a default value.
func GetBoolDefault(args map[string]any, key string, defaultVal bool) bool {
	if val, ok := GetBool(args, key); ok {
		return val
	}
	return defaultVal
}
