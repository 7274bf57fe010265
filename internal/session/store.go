// Package session holds per-conversation state: message history, scratch
// variables, and the caller identity a session was created under.
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kunaaa123/ai-mcp-hub/internal/auth"
	"github.com/kunaaa123/ai-mcp-hub/internal/llm"
)

// AgentMessage is one entry in a session's conversation history.
type AgentMessage struct {
	Role      string                `json:"role"` // system, user, assistant, tool
	Content   string                `json:"content"`
	ToolCalls []llm.ToolCallRequest `json:"tool_calls,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// Memory is the state of one session. Messages are strictly append-only
// and the role is fixed at creation.
type Memory struct {
	ID        string         `json:"session_id"`
	UserID    string         `json:"user_id"`
	Role      auth.Role      `json:"role"`
	Messages  []AgentMessage `json:"messages"`
	Variables map[string]any `json:"variables"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Summary is the lightweight view returned by history queries.
type Summary struct {
	SessionID     string    `json:"session_id"`
	UserID        string    `json:"user_id"`
	Role          auth.Role `json:"role"`
	MessageCount  int       `json:"message_count"`
	ToolCallCount int       `json:"tool_call_count"`
	LastActivity  time.Time `json:"last_activity"`
}

// Store is the in-process session registry. Runs against the same
// session are serialized through a per-session mutex so concurrent
// requests cannot interleave history appends.
type Store struct {
	sessions map[string]*Memory
	runLocks map[string]*sync.Mutex
	mu       sync.RWMutex
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Memory),
		runLocks: make(map[string]*sync.Mutex),
	}
}

// Create allocates a new session for the given caller.
func (s *Store) Create(userID string, role auth.Role) *Memory {
	now := time.Now()
	mem := &Memory{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		Variables: make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[mem.ID] = mem
	s.runLocks[mem.ID] = &sync.Mutex{}
	s.mu.Unlock()

	return mem
}

// Get returns the session with the given id.
func (s *Store) Get(id string) (*Memory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mem, ok := s.sessions[id]
	return mem, ok
}

// GetOrCreate returns the existing session or creates a fresh one when
// id is empty or unknown.
func (s *Store) GetOrCreate(id, userID string, role auth.Role) *Memory {
	if id != "" {
		if mem, ok := s.Get(id); ok {
			return mem
		}
	}
	return s.Create(userID, role)
}

// Clear removes a session and its run lock.
func (s *Store) Clear(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("unknown session: %s", id)
	}
	delete(s.sessions, id)
	delete(s.runLocks, id)
	return nil
}

// LockRun takes the per-session run mutex, serializing agent runs that
// target the same session. The returned func releases it.
func (s *Store) LockRun(id string) func() {
	s.mu.Lock()
	lock, ok := s.runLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.runLocks[id] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Append adds messages to a session's history and bumps updated_at.
func (s *Store) Append(id string, msgs ...AgentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mem, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("unknown session: %s", id)
	}
	mem.Messages = append(mem.Messages, msgs...)
	mem.UpdatedAt = time.Now()
	return nil
}

// SetVariable stores a scratch value on a session.
func (s *Store) SetVariable(id, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mem, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("unknown session: %s", id)
	}
	if mem.Variables == nil {
		mem.Variables = make(map[string]any)
	}
	mem.Variables[key] = value
	mem.UpdatedAt = time.Now()
	return nil
}

// List returns summaries for every live session, most recent first.
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.sessions))
	for _, mem := range s.sessions {
		out = append(out, summarize(mem))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

// HistorySummary returns the summary view of one session.
func (s *Store) HistorySummary(id string) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mem, ok := s.sessions[id]
	if !ok {
		return Summary{}, fmt.Errorf("unknown session: %s", id)
	}
	return summarize(mem), nil
}

// Recent returns up to limit of the most recent history messages, oldest
// first. This is the replay window handed to the model on each run.
func (s *Store) Recent(id string, limit int) []AgentMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mem, ok := s.sessions[id]
	if !ok || limit <= 0 {
		return nil
	}

	msgs := mem.Messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]AgentMessage, len(msgs))
	copy(out, msgs)
	return out
}

func summarize(mem *Memory) Summary {
	toolCalls := 0
	for _, msg := range mem.Messages {
		toolCalls += len(msg.ToolCalls)
	}
	return Summary{
		SessionID:     mem.ID,
		UserID:        mem.UserID,
		Role:          mem.Role,
		MessageCount:  len(mem.Messages),
		ToolCallCount: toolCalls,
		LastActivity:  mem.UpdatedAt,
	}
}
