package service

import (
	"sync"

	"github.com/cinescribe/cinescribe/internal/domain"
)

// Event is one observable job transition, pushed to SSE subscribers.
type Event struct {
	Type   string             `json:"type"` // "status" or "stage"
	Status domain.JobStatus   `json:"status,omitempty"`
	Stage  domain.Stage       `json:"stage,omitempty"`
	State  domain.StageStatus `json:"state,omitempty"`
	Detail string             `json:"detail,omitempty"`
}

// EventBus fans job events out to per-job subscribers. Slow subscribers
// lose events rather than blocking the pipeline.
type EventBus struct {
	subscribers map[string][]chan Event
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan Event),
	}
}

func (eb *EventBus) Subscribe(jobID string) chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, 16)
	eb.subscribers[jobID] = append(eb.subscribers[jobID], ch)
	return ch
}

func (eb *EventBus) Unsubscribe(jobID string, ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[jobID]
	for i, sub := range subs {
		if sub == ch {
			eb.subscribers[jobID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}

	if len(eb.subscribers[jobID]) == 0 {
		delete(eb.subscribers, jobID)
	}
}

func (eb *EventBus) Publish(jobID string, event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers[jobID] {
		select {
		case ch <- event:
		default:
			// Drop event if subscriber is slow
		}
	}
}
