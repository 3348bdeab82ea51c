package event

import (
	"strings"
	"sync"
	"time"
)

const (
	EventAgentRegistered = "agent.registered"
	EventAgentPaired     = "agent.paired"
	EventAgentUnpaired   = "agent.unpaired"
	EventAgentOffline    = "agent.offline"
	EventJobQueued       = "job.queued"
	EventJobFinished     = "job.finished"
)

type AgentPayload struct {
	AgentID   string    `json:"agent_id"`
	TenantID  string    `json:"tenant_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type JobPayload struct {
	JobID     string    `json:"job_id"`
	AgentID   string    `json:"agent_id"`
	DeviceID  string    `json:"device_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus is an in-process publish/subscribe fan-out. Handlers run on their own
// goroutines; a slow subscriber never blocks the publisher.
type Bus struct {
	handlers sync.Map
	mu       sync.Mutex
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(event string, handler func(payload any)) {
	if b == nil || handler == nil {
		return
	}

	eventName := strings.TrimSpace(event)
	if eventName == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := make([]func(payload any), 0, 1)
	if current, ok := b.handlers.Load(eventName); ok {
		if existing, valid := current.([]func(payload any)); valid {
			handlers = append(handlers, existing...)
		}
	}
	handlers = append(handlers, handler)
	b.handlers.Store(eventName, handlers)
}

func (b *Bus) Publish(event string, payload any) {
	if b == nil {
		return
	}

	eventName := strings.TrimSpace(event)
	if eventName == "" {
		return
	}

	current, ok := b.handlers.Load(eventName)
	if !ok {
		return
	}

	handlers, ok := current.([]func(payload any))
	if !ok {
		return
	}

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		go handler(payload)
	}
}
