package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/kunaaa123/ai-mcp-hub/internal/llm"
	"github.com/kunaaa123/ai-mcp-hub/internal/logging"
)

// PlanStep is one step of an execution plan.
type PlanStep struct {
	StepNo      int    `json:"step_no"`
	Description string `json:"description"`
	ToolHint    string `json:"tool_hint,omitempty"`
	Status      string `json:"status"` // pending, running, done, skipped
}

// Plan is the planner's output.
type Plan struct {
	Goal           string     `json:"goal"`
	Complexity     string     `json:"complexity"` // simple, medium, complex
	EstimatedTools []string   `json:"estimated_tools"`
	Steps          []PlanStep `json:"steps"`
}

// Planner turns a user prompt into an execution plan with a single model
// call. Unparseable model output falls back to a deterministic one-step
// plan, so planning never fails.
type Planner struct {
	llm llm.Client
}

// NewPlanner creates a planner.
func NewPlanner(client llm.Client) *Planner {
	return &Planner{llm: client}
}

// Plan produces a plan for the prompt. knownTools is the set of tool
// names the caller may use; estimated tools outside it are dropped.
func (p *Planner) Plan(ctx context.Context, userPrompt string, knownTools []string) *Plan {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: plannerPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Available tools: %s\n\nRequest: %s", strings.Join(knownTools, ", "), userPrompt)},
	}

	resp, err := p.llm.Chat(ctx, messages, nil)
	if err != nil {
		logging.Warn("planner model call failed, using fallback", "error", err)
		return fallbackPlan(userPrompt)
	}

	plan, err := parsePlan(resp.Message.Content)
	if err != nil {
		logging.Debug("planner output unparseable, using fallback", "error", err)
		return fallbackPlan(userPrompt)
	}

	sanitizePlan(plan, knownTools)
	return plan
}

// parsePlan decodes the model's JSON, tolerating code fences.
func parsePlan(content string) (*Plan, error) {
	var plan Plan
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &plan); err != nil {
		return nil, err
	}
	if plan.Goal == "" || len(plan.Steps) == 0 {
		return nil, fmt.Errorf("plan missing goal or steps")
	}
	return &plan, nil
}

// sanitizePlan normalizes fields the model is allowed to get wrong.
func sanitizePlan(plan *Plan, knownTools []string) {
	switch plan.Complexity {
	case "simple", "medium", "complex":
	default:
		plan.Complexity = "medium"
	}

	kept := plan.EstimatedTools[:0]
	for _, name := range plan.EstimatedTools {
		if slices.Contains(knownTools, name) {
			kept = append(kept, name)
		}
	}
	plan.EstimatedTools = kept

	for i := range plan.Steps {
		if plan.Steps[i].StepNo == 0 {
			plan.Steps[i].StepNo = i + 1
		}
		if plan.Steps[i].Status == "" {
			plan.Steps[i].Status = "pending"
		}
		if plan.Steps[i].ToolHint != "" && !slices.Contains(knownTools, plan.Steps[i].ToolHint) {
			plan.Steps[i].ToolHint = ""
		}
	}
}

// fallbackPlan is the deterministic plan used when the model's output is
// unusable: one step echoing the prompt.
func fallbackPlan(userPrompt string) *Plan {
	return &Plan{
		Goal:           userPrompt,
		Complexity:     "simple",
		EstimatedTools: []string{},
		Steps: []PlanStep{{
			StepNo:      1,
			Description: userPrompt,
			Status:      "pending",
		}},
	}
}

// stripCodeFences removes a surrounding markdown code fence if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an optional language tag on the opening fence.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 && !strings.ContainsAny(s[:idx], "{}") {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
