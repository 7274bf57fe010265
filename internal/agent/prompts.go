package agent

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/kunaaa123/ai-mcp-hub/internal/config"
)

// PromptEnv carries the environment slots interpolated into the
// operating prompt. Every slot must be present in the rendered prompt;
// the surrounding wording is free to change.
type PromptEnv struct {
	CWD         string
	FSRoot      string
	DBCoords    string
	CacheCoords string
	OS          string
	SafeMode    bool
}

// NewPromptEnv derives the prompt environment from the runtime config.
func NewPromptEnv(cfg *config.Config) PromptEnv {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return PromptEnv{
		CWD:         cwd,
		FSRoot:      cfg.FS.AllowedPath,
		DBCoords:    fmt.Sprintf("%s:%d/%s", cfg.DB.Host, cfg.DB.Port, cfg.DB.Name),
		CacheCoords: cfg.Redis.Addr(),
		OS:          runtime.GOOS,
		SafeMode:    cfg.Server.ProductionSafeMode,
	}
}

// operatingPrompt renders the system message for the reasoning loop.
func operatingPrompt(env PromptEnv) string {
	var b strings.Builder

	b.WriteString("You are an AI assistant with access to tools for databases, caching, files, git, and the web.\n\n")

	b.WriteString("Environment:\n")
	fmt.Fprintf(&b, "- Working directory: %s\n", env.CWD)
	fmt.Fprintf(&b, "- Filesystem access is restricted to: %s\n", env.FSRoot)
	fmt.Fprintf(&b, "- PostgreSQL database: %s\n", env.DBCoords)
	fmt.Fprintf(&b, "- Redis cache: %s\n", env.CacheCoords)
	fmt.Fprintf(&b, "- Operating system: %s\n", env.OS)
	fmt.Fprintf(&b, "- Production safe mode: %t\n", env.SafeMode)

	b.WriteString(`
Tool usage rules:
- Call tools one step at a time. NEVER nest one tool's output as a literal
  argument to another tool call in the same turn; wait for the result,
  then use it in your next tool call.
- If a tool fails, read the error message and either correct the call or
  explain the failure to the user.

SQL rules:
- Always use query parameters ($1, $2, ...) with the params argument.
- Never interpolate values or {placeholders} into the SQL string itself.
- Prefer SELECT with explicit column lists; large results are truncated.

Answer in the user's language. Be concise and factual; when you used
tools, summarize what they returned rather than guessing.`)

	return b.String()
}

// plannerPrompt is the system message for the planning call. The model
// must answer with a single JSON object and nothing else.
const plannerPrompt = `You are a planning assistant. Given a user request and the list of
available tools, produce a short execution plan.

Respond with ONLY a JSON object in this exact shape:
{
  "goal": "one sentence restating the objective",
  "complexity": "simple" | "medium" | "complex",
  "estimated_tools": ["tool_name", ...],
  "steps": [
    {"step_no": 1, "description": "what to do", "tool_hint": "tool_name or omit"}
  ]
}

Use only tool names from the provided list. Keep plans to at most 5 steps.`

// reviewerPrompt is the system message for the review call.
const reviewerPrompt = `You are a quality reviewer. You are given a user request, the plan,
the tool calls that were executed with their outcomes, and the final
response. Judge whether the work satisfies the request.

Respond with ONLY a JSON object in this exact shape:
{
  "passed": true | false,
  "score": 0-10,
  "feedback": "one short paragraph",
  "issues": ["problem", ...],
  "suggestions": ["improvement", ...]
}`
