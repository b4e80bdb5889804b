// Package events provides a small in-process event bus for training
// lifecycle notifications. The CLI subscribes to relay progress to the
// user; other observers (metrics, logging) can attach without coupling to
// the dispatcher.
package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SecurityRonin/nfchat-sub001/internal/models"
)

// EventType defines the type of event.
type EventType string

const (
	EventTrainingProgress  EventType = "training:progress"
	EventTrainingCompleted EventType = "training:completed"
	EventTrainingFailed    EventType = "training:failed"
)

// Event carries one notification.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp int64       `json:"timestamp"` // Nanosecond precision
	Data      interface{} `json:"data"`
}

// JSON returns the JSON representation of an event.
func (e *Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventHandler is a function that handles events.
type EventHandler func(event *Event)

// Bus distributes events to subscribed handlers. Safe for concurrent use.
type Bus struct {
	mu            sync.RWMutex
	handlers      map[EventType][]EventHandler
	globalHandler EventHandler
	eventsEmitted atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]EventHandler),
	}
}

// SetGlobalHandler sets a handler that receives every event.
func (b *Bus) SetGlobalHandler(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.globalHandler = handler
}

// Subscribe adds a handler for a specific event type.
func (b *Bus) Subscribe(eventType EventType, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Unsubscribe removes all handlers for a specific event type.
func (b *Bus) Unsubscribe(eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, eventType)
}

// Emit dispatches an event to the global handler and every handler
// subscribed to its type, synchronously in the caller's goroutine.
func (b *Bus) Emit(eventType EventType, data interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		Data:      data,
	}

	b.eventsEmitted.Add(1)

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.globalHandler != nil {
		b.globalHandler(event)
	}
	for _, handler := range b.handlers[eventType] {
		handler(event)
	}
}

// EventsEmitted returns the number of events dispatched so far.
func (b *Bus) EventsEmitted() uint64 {
	return b.eventsEmitted.Load()
}

// ProgressData is the payload of a training:progress event.
type ProgressData struct {
	JobID   string  `json:"jobId,omitempty"`
	Percent float64 `json:"percent"`
	Phase   string  `json:"phase"`
}

// EmitProgress emits a training progress notification.
func (b *Bus) EmitProgress(jobID string, percent float64, phase string) {
	b.Emit(EventTrainingProgress, &ProgressData{JobID: jobID, Percent: percent, Phase: phase})
}

// EmitCompleted emits a training completion notification.
func (b *Bus) EmitCompleted(result *models.TrainingResult) {
	b.Emit(EventTrainingCompleted, result)
}

// EmitFailed emits a training failure notification.
func (b *Bus) EmitFailed(err error) {
	b.Emit(EventTrainingFailed, map[string]interface{}{
		"error": err.Error(),
	})
}
