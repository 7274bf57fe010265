package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/kunaaa123/ai-mcp-hub/internal/auth"
)

const (
	// maxWebBody caps response bodies fed back to the model.
	maxWebBody = 512 * 1024
	// maxSearchResults caps best-effort web search output.
	maxSearchResults = 8
)

var webHTTPClient = &http.Client{Timeout: 20 * time.Second}

// WebFetchJSONTool fetches and parses a JSON document.
type WebFetchJSONTool struct{}

// NewWebFetchJSONTool creates a new WebFetchJSONTool instance.
func NewWebFetchJSONTool() *WebFetchJSONTool { return &WebFetchJSONTool{} }

func (t *WebFetchJSONTool) Name() string { return "web_fetch_json" }
func (t *WebFetchJSONTool) Description() string {
	return "Fetches a URL and parses the response body as JSON."
}

func (t *WebFetchJSONTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"url": {Type: "string", Description: "The http(s) URL to fetch."},
			},
			Required: []string{"url"},
		},
		RequiredRoles:     auth.All(),
		SafeForProduction: true,
	}
}

func (t *WebFetchJSONTool) Validate(args map[string]any) error {
	if err := ValidateAgainst(t.Spec().InputSchema, args); err != nil {
		return err
	}
	raw, _ := GetString(args, "url")
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return NewValidationError("url", "must be an http(s) URL")
	}
	return nil
}

func (t *WebFetchJSONTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	raw, _ := GetString(args, "url")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("invalid request: %s", err)), nil
	}
	req.Header.Set("Accept", "application/json")

	resp, err := webHTTPClient.Do(req)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("fetch failed: %s", err)), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWebBody))
	if err != nil {
		return NewErrorResult(fmt.Sprintf("failed to read body: %s", err)), nil
	}
	if resp.StatusCode >= 400 {
		return NewErrorResult(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 500))), nil
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return NewErrorResult(fmt.Sprintf("response is not valid JSON: %s", err)), nil
	}
	return NewSuccessResultWithData(fmt.Sprintf("fetched %s", raw), parsed), nil
}

// resultLinkPattern extracts anchor links from the scraped results page.
var resultLinkPattern = regexp.MustCompile(`<a[^>]+class="result__a"[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// WebSearchTool performs a best-effort web search by scraping a
// third-party HTML results page. Its output shape is inherently fragile;
// callers must not assume stable fields.
type WebSearchTool struct{}

// NewWebSearchTool creates a new WebSearchTool instance.
func NewWebSearchTool() *WebSearchTool { return &WebSearchTool{} }

func (t *WebSearchTool) Name() string { return "web_search" }
func (t *WebSearchTool) Description() string {
	return "Searches the web and returns a short list of result titles and URLs. Best effort."
}

func (t *WebSearchTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"query": {Type: "string", Description: "The search query."},
			},
			Required: []string{"query"},
		},
		RequiredRoles:     auth.All(),
		SafeForProduction: true,
	}
}

func (t *WebSearchTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	query, _ := GetString(args, "query")

	searchURL := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("invalid request: %s", err)), nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ai-mcp-hub)")

	resp, err := webHTTPClient.Do(req)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("search failed: %s", err)), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWebBody))
	if err != nil {
		return NewErrorResult(fmt.Sprintf("failed to read results: %s", err)), nil
	}

	matches := resultLinkPattern.FindAllStringSubmatch(string(body), maxSearchResults)
	if len(matches) == 0 {
		return NewSuccessResult("No results found."), nil
	}

	var lines []string
	var results []map[string]string
	for _, m := range matches {
		link := html.UnescapeString(m[1])
		title := strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(m[2], "")))
		lines = append(lines, fmt.Sprintf("%s - %s", title, link))
		results = append(results, map[string]string{"title": title, "url": link})
	}
	return NewSuccessResultWithData(strings.Join(lines, "\n"), results), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
