package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/kunaaa123/ai-mcp-hub/internal/logging"
)

// OllamaConfig holds configuration for the Ollama API client.
type OllamaConfig struct {
	BaseURL       string        // Default: "http://localhost:11434"
	Model         string        // e.g., "llama3.1"
	Temperature   float32       // Temperature for generation
	ContextLength int           // Context window (num_ctx)
	Timeout       time.Duration // HTTP request timeout (default: 60s)
}

// OllamaClient implements Client for the Ollama API.
type OllamaClient struct {
	client *api.Client
	config OllamaConfig
}

// NewOllamaClient creates a new Ollama API client.
func NewOllamaClient(config OllamaConfig) (*OllamaClient, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid BaseURL: %w", err)
	}

	httpClient := &http.Client{Timeout: config.Timeout}

	return &OllamaClient{
		client: api.NewClient(baseURL, httpClient),
		config: config,
	}, nil
}

// Chat performs one synchronous round-trip with optional tool descriptors.
func (c *OllamaClient) Chat(ctx context.Context, messages []Message, tools []api.Tool) (*ChatResponse, error) {
	req := c.buildRequest(messages, tools, false)

	var out ChatResponse
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.Message.Role = RoleAssistant
		out.Message.Content += resp.Message.Content
		for i, tc := range resp.Message.ToolCalls {
			out.Message.ToolCalls = append(out.Message.ToolCalls, convertToolCall(tc, i))
		}
		if resp.Done {
			out.DoneReason = resp.DoneReason
		}
		return nil
	})
	if err != nil {
		return nil, classifyError(err)
	}

	logging.Debug("llm chat round-trip",
		"model", c.config.Model,
		"tool_calls", len(out.Message.ToolCalls),
		"done_reason", out.DoneReason)

	return &out, nil
}

// ChatStream performs a streaming round-trip, emitting content fragments
// through onToken. Tool descriptors are accepted for interface symmetry
// but tool calls never travel on this path.
func (c *OllamaClient) ChatStream(ctx context.Context, messages []Message, tools []api.Tool, onToken func(string)) (string, error) {
	req := c.buildRequest(messages, tools, true)

	var full string
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			full += resp.Message.Content
			if onToken != nil {
				onToken(resp.Message.Content)
			}
		}
		return nil
	})
	if err != nil {
		return "", classifyError(err)
	}
	return full, nil
}

// Health checks backend availability by listing served models.
func (c *OllamaClient) Health(ctx context.Context) (*Health, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return &Health{Available: false}, nil
	}

	models := make([]string, 0, len(resp.Models))
	for _, model := range resp.Models {
		models = append(models, model.Name)
	}
	return &Health{Available: true, Models: models}, nil
}

func (c *OllamaClient) buildRequest(messages []Message, tools []api.Tool, stream bool) *api.ChatRequest {
	req := &api.ChatRequest{
		Model:    c.config.Model,
		Messages: convertMessages(messages),
		Stream:   &stream,
		Options:  map[string]any{},
	}

	if c.config.Temperature > 0 {
		req.Options["temperature"] = c.config.Temperature
	}
	if c.config.ContextLength > 0 {
		req.Options["num_ctx"] = c.config.ContextLength
	}
	if len(tools) > 0 {
		req.Tools = tools
	}
	return req
}

func convertMessages(messages []Message) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		msg := api.Message{
			Role:    m.Role,
			Content: m.Content,
		}
		if m.Role == RoleTool {
			msg.ToolName = m.ToolName
		}
		for _, tc := range m.ToolCalls {
			args := api.NewToolCallFunctionArguments()
			for k, v := range tc.Args {
				args.Set(k, v)
			}
			msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{
				ID: tc.ID,
				Function: api.ToolCallFunction{
					Name:      tc.Name,
					Arguments: args,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func convertToolCall(tc api.ToolCall, index int) ToolCallRequest {
	id := tc.ID
	if id == "" {
		id = fmt.Sprintf("call_%d", index)
	}
	return ToolCallRequest{
		ID:   id,
		Name: tc.Function.Name,
		Args: tc.Function.Arguments.ToMap(),
	}
}

// classifyError separates backend-reported errors from transport failures.
func classifyError(err error) error {
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		return &ServerError{Err: err}
	}
	return &TransportError{Err: err}
}
