package agent

import (
	"context"
	"testing"

	"github.com/kunaaa123/ai-mcp-hub/internal/events"
	"github.com/kunaaa123/ai-mcp-hub/internal/llm"
	"github.com/kunaaa123/ai-mcp-hub/internal/tools"
)

func TestOrchestratorPipeline(t *testing.T) {
	// One scripted model for all three phases: plan JSON, a tool turn,
	// the final answer, then garbage so the reviewer falls back.
	model := &scriptedLLM{responses: []*llm.ChatResponse{
		assistantText(`{"goal": "list files", "complexity": "simple", "steps": [{"description": "list"}]}`),
		assistantCalls("list_files"),
		assistantText("You have 3 files."),
		assistantText("not json"),
	}}
	h := newHarness(t, model, &stubTool{name: "list_files", safe: true, result: tools.NewSuccessResult("a b c")})
	orch := NewOrchestrator(h.agent, NewPlanner(model), NewReviewer(model), h.bus)

	sess := h.newSession()
	sub := h.bus.Subscribe(sess.ID)
	defer sub.Close()

	result := orch.Run(context.Background(), RunRequest{UserPrompt: "ls", Session: sess})

	if result.Plan == nil || result.Plan.Goal != "list files" {
		t.Errorf("plan = %+v", result.Plan)
	}
	if result.FinalResponse != "You have 3 files." {
		t.Errorf("FinalResponse = %q", result.FinalResponse)
	}
	if result.Review == nil || !result.Review.Passed || result.Review.Score != 8 {
		t.Errorf("review = %+v", result.Review)
	}

	if len(result.AgentLogs) != 3 {
		t.Fatalf("agent logs = %d entries, want 3", len(result.AgentLogs))
	}
	wantAgents := []string{"planner", "executor", "reviewer"}
	for i, want := range wantAgents {
		if result.AgentLogs[i].Agent != want {
			t.Errorf("log[%d].Agent = %s, want %s", i, result.AgentLogs[i].Agent, want)
		}
	}
	for i := 1; i < len(result.AgentLogs); i++ {
		if result.AgentLogs[i].Timestamp.Before(result.AgentLogs[i-1].Timestamp) {
			t.Errorf("log timestamps out of order at %d", i)
		}
	}
}

func TestOrchestratorEventSequence(t *testing.T) {
	model := &scriptedLLM{responses: []*llm.ChatResponse{
		assistantText(`{"goal": "g", "steps": [{"description": "d"}]}`),
		assistantText("done"),
		assistantText("not json"),
	}}
	h := newHarness(t, model)
	orch := NewOrchestrator(h.agent, NewPlanner(model), NewReviewer(model), h.bus)

	sess := h.newSession()
	sub := h.bus.Subscribe(sess.ID)
	defer sub.Close()

	orch.Run(context.Background(), RunRequest{UserPrompt: "hi", Session: sess})

	// The done event closes the pipeline, after the review phase.
	want := []string{
		events.AgentPlanning,
		events.AgentPlanReady,
		events.AgentExecuting,
		events.AgentStart,
		events.AgentReviewing,
		events.AgentReviewDone,
		events.AgentDone,
	}
	var got []string
	for range want {
		ev := <-sub.C
		got = append(got, ev.Name)
	}
	for i, name := range want {
		if got[i] != name {
			t.Fatalf("event sequence = %v, want %v", got, want)
		}
	}
	if got[len(got)-1] != events.AgentDone {
		t.Errorf("last event = %s, want %s", got[len(got)-1], events.AgentDone)
	}

	select {
	case ev := <-sub.C:
		t.Errorf("unexpected trailing event %s", ev.Name)
	default:
	}
}

func TestOrchestratorFallbackPlanStillRuns(t *testing.T) {
	model := &scriptedLLM{responses: []*llm.ChatResponse{
		assistantText("I refuse to emit JSON"),
		assistantText("answer"),
		assistantText("still no json"),
	}}
	h := newHarness(t, model)
	orch := NewOrchestrator(h.agent, NewPlanner(model), NewReviewer(model), h.bus)

	sess := h.newSession()
	result := orch.Run(context.Background(), RunRequest{UserPrompt: "do it", Session: sess})

	if result.Plan.Goal != "do it" || result.Plan.Complexity != "simple" {
		t.Errorf("fallback plan = %+v", result.Plan)
	}
	if result.FinalResponse != "answer" {
		t.Errorf("FinalResponse = %q", result.FinalResponse)
	}
}
