package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kunaaa123/ai-mcp-hub/internal/auth"
)

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
	http.MethodHead:   true,
}

// HTTPRequestTool issues an arbitrary HTTP request against a REST API.
type HTTPRequestTool struct{}

// NewHTTPRequestTool creates a new HTTPRequestTool instance.
func NewHTTPRequestTool() *HTTPRequestTool { return &HTTPRequestTool{} }

func (t *HTTPRequestTool) Name() string { return "http_request" }
func (t *HTTPRequestTool) Description() string {
	return "Sends an HTTP request with an optional body and headers and returns the status and response body."
}

func (t *HTTPRequestTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"method": {
					Type:        "string",
					Description: "The HTTP method.",
					Enum:        []any{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
				},
				"url":     {Type: "string", Description: "The http(s) URL to call."},
				"headers": {Type: "object", Description: "Optional request headers as a string map."},
				"body":    {Type: "string", Description: "Optional request body, sent as-is."},
			},
			Required: []string{"method", "url"},
		},
		RequiredRoles:     []auth.Role{auth.RoleDev, auth.RoleOperator, auth.RoleAdmin},
		SafeForProduction: false,
	}
}

func (t *HTTPRequestTool) Validate(args map[string]any) error {
	if err := ValidateAgainst(t.Spec().InputSchema, args); err != nil {
		return err
	}
	method, _ := GetString(args, "method")
	if !allowedMethods[strings.ToUpper(method)] {
		return NewValidationError("method", "unsupported HTTP method")
	}
	raw, _ := GetString(args, "url")
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return NewValidationError("url", "must be an http(s) URL")
	}
	return nil
}

func (t *HTTPRequestTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	method, _ := GetString(args, "method")
	method = strings.ToUpper(method)
	rawURL, _ := GetString(args, "url")
	body := GetStringDefault(args, "body", "")

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("invalid request: %s", err)), nil
	}
	if headers, ok := args["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}
	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := webHTTPClient.Do(req)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("request failed: %s", err)), nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxWebBody))
	if err != nil {
		return NewErrorResult(fmt.Sprintf("failed to read response: %s", err)), nil
	}

	data := map[string]any{
		"status": resp.StatusCode,
		"body":   string(respBody),
	}
	// Surface parsed JSON when the response is JSON so the model can
	// chain on individual fields.
	var parsed any
	if json.Unmarshal(respBody, &parsed) == nil {
		data["json"] = parsed
	}
	return NewSuccessResultWithData(fmt.Sprintf("%s %s -> %d", method, rawURL, resp.StatusCode), data), nil
}
