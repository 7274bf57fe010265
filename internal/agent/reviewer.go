package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kunaaa123/ai-mcp-hub/internal/llm"
	"github.com/kunaaa123/ai-mcp-hub/internal/logging"
	"github.com/kunaaa123/ai-mcp-hub/internal/tools"
)

// Review is the reviewer's verdict on one run.
type Review struct {
	Passed      bool     `json:"passed"`
	Score       int      `json:"score"` // 0..10
	Feedback    string   `json:"feedback"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// Reviewer judges a finished run with a single model call. Unparseable
// model output falls back to a deterministic verdict derived from the
// tool-call outcomes.
type Reviewer struct {
	llm llm.Client
}

// NewReviewer creates a reviewer.
func NewReviewer(client llm.Client) *Reviewer {
	return &Reviewer{llm: client}
}

// Review evaluates the run recorded in the timeline against the plan.
func (r *Reviewer) Review(ctx context.Context, plan *Plan, timeline *ExecutionTimeline) *Review {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: reviewerPrompt},
		{Role: llm.RoleUser, Content: reviewInput(plan, timeline)},
	}

	resp, err := r.llm.Chat(ctx, messages, nil)
	if err != nil {
		logging.Warn("reviewer model call failed, using fallback", "error", err)
		return fallbackReview(timeline)
	}

	review, err := parseReview(resp.Message.Content)
	if err != nil {
		logging.Debug("reviewer output unparseable, using fallback", "error", err)
		return fallbackReview(timeline)
	}

	review.Score = clampScore(review.Score)
	if review.Issues == nil {
		review.Issues = []string{}
	}
	if review.Suggestions == nil {
		review.Suggestions = []string{}
	}
	return review
}

// parseReview decodes the model's verdict. A JSON object that carries
// neither passed nor score is no verdict at all, so it is rejected
// rather than read as zero values.
func parseReview(content string) (*Review, error) {
	raw := stripCodeFences(content)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, err
	}
	if _, ok := fields["passed"]; !ok {
		return nil, fmt.Errorf("review missing passed field")
	}
	if _, ok := fields["score"]; !ok {
		return nil, fmt.Errorf("review missing score field")
	}

	var review Review
	if err := json.Unmarshal([]byte(raw), &review); err != nil {
		return nil, err
	}
	return &review, nil
}

// reviewInput renders the run for the reviewer model.
func reviewInput(plan *Plan, timeline *ExecutionTimeline) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Request: %s\n", timeline.UserPrompt)
	if plan != nil {
		fmt.Fprintf(&b, "Plan goal: %s (%s, %d steps)\n", plan.Goal, plan.Complexity, len(plan.Steps))
	}

	b.WriteString("Executed tool calls:\n")
	if len(timeline.ToolCalls) == 0 {
		b.WriteString("  (none)\n")
	}
	for i, call := range timeline.ToolCalls {
		if call.Status == tools.StatusSuccess {
			fmt.Fprintf(&b, "  %d. %s: success (%dms)\n", i+1, call.ToolName, call.DurationMS)
		} else {
			fmt.Fprintf(&b, "  %d. %s: %s (%s)\n", i+1, call.ToolName, call.Status, call.Error)
		}
	}

	fmt.Fprintf(&b, "Final response: %s\n", timeline.FinalResponse)
	return b.String()
}

// fallbackReview derives a deterministic verdict from tool outcomes.
func fallbackReview(timeline *ExecutionTimeline) *Review {
	successes, errors := 0, 0
	for _, call := range timeline.ToolCalls {
		if call.Status == tools.StatusSuccess {
			successes++
		} else {
			errors++
		}
	}

	score := 8
	if errors > 0 {
		if successes > 0 {
			score = 6
		} else {
			score = 4
		}
	}

	return &Review{
		Passed:      errors == 0 || successes > errors,
		Score:       score,
		Feedback:    fmt.Sprintf("Automated review: %d tool calls succeeded, %d failed.", successes, errors),
		Issues:      []string{},
		Suggestions: []string{},
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
