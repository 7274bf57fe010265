// Package metrics keeps in-process counters for tool usage and request
// volume, exposed as an atomic snapshot over the HTTP API.
package metrics

import (
	"sync"
	"time"
)

// maxRecentSessions bounds the recent-session list.
const maxRecentSessions = 50

// ToolMetrics are the counters kept per tool name.
type ToolMetrics struct {
	Count           int64 `json:"count"`
	Successes       int64 `json:"successes"`
	Errors          int64 `json:"errors"`
	TotalDurationMS int64 `json:"total_duration_ms"`
}

// RecentSession is one entry in the bounded recent-session list.
type RecentSession struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	ToolCalls int       `json:"tool_calls"`
	Timestamp time.Time `json:"timestamp"`
}

// SystemMetrics is the snapshot view.
type SystemMetrics struct {
	TotalRequests   int64                   `json:"total_requests"`
	TotalToolCalls  int64                   `json:"total_tool_calls"`
	TotalDurationMS int64                   `json:"total_duration_ms"`
	Tools           map[string]ToolMetrics  `json:"tools"`
	RecentSessions  []RecentSession         `json:"recent_sessions"`
	CapturedAt      time.Time               `json:"captured_at"`
}

// Store accumulates metrics from concurrent agent runs.
type Store struct {
	totalRequests   int64
	totalToolCalls  int64
	totalDurationMS int64
	tools           map[string]*ToolMetrics
	recent          []RecentSession
	mu              sync.Mutex
}

// NewStore creates an empty metrics store.
func NewStore() *Store {
	return &Store{tools: make(map[string]*ToolMetrics)}
}

// RecordRequest counts one chat request.
func (s *Store) RecordRequest() {
	s.mu.Lock()
	s.totalRequests++
	s.mu.Unlock()
}

// RecordToolCall counts one tool execution. It satisfies the executor's
// recorder interface.
func (s *Store) RecordToolCall(toolName string, success bool, durationMS int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tm, ok := s.tools[toolName]
	if !ok {
		tm = &ToolMetrics{}
		s.tools[toolName] = tm
	}
	tm.Count++
	tm.TotalDurationMS += durationMS
	if success {
		tm.Successes++
	} else {
		tm.Errors++
	}

	s.totalToolCalls++
	s.totalDurationMS += durationMS
}

// RecordSession pushes a run onto the recent-session list, evicting the
// oldest entry past the cap.
func (s *Store) RecordSession(sessionID, userID string, toolCalls int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent = append(s.recent, RecentSession{
		SessionID: sessionID,
		UserID:    userID,
		ToolCalls: toolCalls,
		Timestamp: time.Now(),
	})
	if len(s.recent) > maxRecentSessions {
		s.recent = s.recent[len(s.recent)-maxRecentSessions:]
	}
}

// Snapshot returns a consistent copy of all counters.
func (s *Store) Snapshot() SystemMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	tools := make(map[string]ToolMetrics, len(s.tools))
	for name, tm := range s.tools {
		tools[name] = *tm
	}
	recent := make([]RecentSession, len(s.recent))
	copy(recent, s.recent)

	return SystemMetrics{
		TotalRequests:   s.totalRequests,
		TotalToolCalls:  s.totalToolCalls,
		TotalDurationMS: s.totalDurationMS,
		Tools:           tools,
		RecentSessions:  recent,
		CapturedAt:      time.Now(),
	}
}

// Reset clears every counter atomically.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRequests = 0
	s.totalToolCalls = 0
	s.totalDurationMS = 0
	s.tools = make(map[string]*ToolMetrics)
	s.recent = nil
}
