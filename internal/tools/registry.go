package tools

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/ollama/ollama/api"

	"github.com/kunaaa123/ai-mcp-hub/internal/auth"
	"github.com/kunaaa123/ai-mcp-hub/internal/logging"
)

// namePattern is the shape every built-in tool name must match.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Registry manages the collection of built-in tools. It is populated at
// startup and read-only afterwards.
type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid tool name: %q", name)
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}

	r.tools[name] = tool
	return nil
}

// MustRegister adds a tool to the registry and logs a warning on error.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		logging.Warn("failed to register tool", "tool", tool.Name(), "error", err)
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns the names of all registered tools.
func (r *Registry) Names() []string {
	tools := r.List()
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name())
	}
	return names
}

// Specs returns all tool specs sorted by name.
func (r *Registry) Specs() []*Spec {
	tools := r.List()
	specs := make([]*Spec, 0, len(tools))
	for _, tool := range tools {
		specs = append(specs, tool.Spec())
	}
	return specs
}

// ForRole returns the tools callable by the given role. With safe mode
// on, tools not flagged safe for production are removed as well.
func (r *Registry) ForRole(role auth.Role, productionSafeMode bool) []Tool {
	tools := r.List()
	out := make([]Tool, 0, len(tools))
	for _, tool := range tools {
		spec := tool.Spec()
		if !spec.AllowsRole(role) {
			continue
		}
		if productionSafeMode && !spec.SafeForProduction {
			continue
		}
		out = append(out, tool)
	}
	return out
}

// Descriptors projects tools to the shape the model expects.
func Descriptors(tools []Tool) []api.Tool {
	out := make([]api.Tool, 0, len(tools))
	for _, tool := range tools {
		out = append(out, Descriptor(tool.Spec()))
	}
	return out
}

// Descriptor converts one spec to a model-side tool declaration.
func Descriptor(spec *Spec) api.Tool {
	params := api.ToolFunctionParameters{
		Type:       "object",
		Properties: api.NewToolPropertiesMap(),
	}

	if schema := spec.InputSchema; schema != nil {
		if len(schema.Required) > 0 {
			params.Required = schema.Required
		}
		// Sort property names for a stable declaration order
		names := make([]string, 0, len(schema.Properties))
		for name := range schema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			prop := schema.Properties[name]
			tp := api.ToolProperty{
				Description: prop.Description,
			}
			if prop.Type != "" {
				tp.Type = api.PropertyType{prop.Type}
			}
			if len(prop.Enum) > 0 {
				enumVals := make([]any, len(prop.Enum))
				for i, v := range prop.Enum {
					enumVals[i] = v
				}
				tp.Enum = enumVals
			}
			params.Properties.Set(name, tp)
		}
	}

	return api.Tool{
		Type: "function",
		Function: api.ToolFunction{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  params,
		},
	}
}
