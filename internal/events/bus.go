// Package events is the in-process pub/sub bus that fans agent progress
// out to WebSocket subscribers. Topics are session ids; delivery is
// best-effort with no durability.
package events

import (
	"sync"
	"time"
)

// Event names emitted by the agent core.
const (
	AgentStart      = "agent:start"
	AgentPlanning   = "agent:planning"
	AgentPlanReady  = "agent:plan_ready"
	AgentExecuting  = "agent:executing"
	AgentReviewing  = "agent:reviewing"
	AgentReviewDone = "agent:review_done"
	ToolExecuted    = "tool:executed"
	AgentDone       = "agent:done"
	AgentError      = "agent:error"
)

// Event is one published notification.
type Event struct {
	SessionID string    `json:"session_id"`
	Name      string    `json:"event"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// subscriberBuffer bounds each subscriber channel. A subscriber that
// falls this far behind starts losing events rather than blocking
// publishers.
const subscriberBuffer = 64

// Subscription is one live subscriber on a session topic.
type Subscription struct {
	C chan Event

	bus       *Bus
	sessionID string
	id        int
}

// Close unsubscribes and releases the channel.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.sessionID, s.id)
}

// Bus routes events by session id. Publish never blocks.
type Bus struct {
	subs   map[string]map[int]*Subscription
	nextID int
	mu     sync.RWMutex
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]*Subscription)}
}

// Subscribe registers a subscriber for one session's events.
func (b *Bus) Subscribe(sessionID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		C:         make(chan Event, subscriberBuffer),
		bus:       b,
		sessionID: sessionID,
		id:        b.nextID,
	}

	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[int]*Subscription)
	}
	b.subs[sessionID][sub.id] = sub
	return sub
}

func (b *Bus) unsubscribe(sessionID string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subs[sessionID]
	if !ok {
		return
	}
	if sub, ok := subs[id]; ok {
		delete(subs, id)
		close(sub.C)
	}
	if len(subs) == 0 {
		delete(b.subs, sessionID)
	}
}

// Publish delivers an event to every subscriber of the session. Slow
// subscribers drop events; publishers are never blocked.
func (b *Bus) Publish(sessionID, name string, payload any) {
	event := Event{
		SessionID: sessionID,
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs[sessionID] {
		select {
		case sub.C <- event:
		default:
		}
	}
}
