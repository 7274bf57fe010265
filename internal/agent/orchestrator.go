package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/kunaaa123/ai-mcp-hub/internal/events"
)

// Orchestrator runs the plan / execute / review pipeline: a planning
// call, then the reasoning loop, then a review call, each phase
// announced on the event bus.
type Orchestrator struct {
	agent    *Agent
	planner  *Planner
	reviewer *Reviewer
	bus      *events.Bus
}

// NewOrchestrator creates an orchestrator over an existing agent.
func NewOrchestrator(agent *Agent, planner *Planner, reviewer *Reviewer, bus *events.Bus) *Orchestrator {
	return &Orchestrator{
		agent:    agent,
		planner:  planner,
		reviewer: reviewer,
		bus:      bus,
	}
}

// Run executes the full pipeline for one prompt and returns the
// augmented timeline. The agent_logs carry exactly three entries in
// planner, executor, reviewer order.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) *MultiAgentTimeline {
	sess := req.Session
	logs := make([]AgentLog, 0, 3)

	o.publish(sess.ID, events.AgentPlanning, map[string]any{"prompt": req.UserPrompt})
	plan := o.planner.Plan(ctx, req.UserPrompt, o.agent.AvailableToolNames(sess.Role))
	logs = append(logs, AgentLog{
		Agent:     "planner",
		Message:   fmt.Sprintf("Plan ready: %s (%d steps, %s)", plan.Goal, len(plan.Steps), plan.Complexity),
		Timestamp: time.Now(),
	})
	o.publish(sess.ID, events.AgentPlanReady, plan)

	o.publish(sess.ID, events.AgentExecuting, nil)
	req.ownDoneEvent = true
	timeline := o.agent.Run(ctx, req)
	logs = append(logs, AgentLog{
		Agent:     "executor",
		Message:   fmt.Sprintf("Executed %d tool calls in %dms", len(timeline.ToolCalls), timeline.TotalDurationMS),
		Timestamp: time.Now(),
	})

	o.publish(sess.ID, events.AgentReviewing, nil)
	review := o.reviewer.Review(ctx, plan, timeline)
	logs = append(logs, AgentLog{
		Agent:     "reviewer",
		Message:   fmt.Sprintf("Review done: passed=%t score=%d", review.Passed, review.Score),
		Timestamp: time.Now(),
	})
	o.publish(sess.ID, events.AgentReviewDone, review)
	o.publish(sess.ID, events.AgentDone, map[string]any{
		"response":   timeline.FinalResponse,
		"tool_calls": len(timeline.ToolCalls),
	})

	return &MultiAgentTimeline{
		ExecutionTimeline: timeline,
		Plan:              plan,
		Review:            review,
		AgentLogs:         logs,
	}
}

func (o *Orchestrator) publish(sessionID, name string, payload any) {
	if o.bus != nil {
		o.bus.Publish(sessionID, name, payload)
	}
}
