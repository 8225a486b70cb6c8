package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

const (
	EventMenuUpdated    = "menu.updated"
	EventPricesAdjusted = "prices.adjusted"
	EventArchiveCreated = "archive.created"
	EventMenuRestored   = "menu.restored"
	EventExportProgress = "export.progress"
	EventExportFinished = "export.finished"

	// AllEvents subscribes a handler to every event type.
	AllEvents = "*"
)

// MenuEventPayload describes a change to the live menu.
type MenuEventPayload struct {
	Action    string    `json:"action"`
	Section   string    `json:"section,omitempty"`
	Category  int       `json:"category,omitempty"`
	Item      string    `json:"item,omitempty"`
	Percent   float64   `json:"percent,omitempty"`
	ArchiveID string    `json:"archive_id,omitempty"`
	Items     int       `json:"items"`
	ChangedAt time.Time `json:"changed_at"`
}

// ArchiveEventPayload is published after a snapshot has been archived.
type ArchiveEventPayload struct {
	ArchiveID string    `json:"archive_id"`
	Note      string    `json:"note"`
	Items     int       `json:"items"`
	CreatedAt time.Time `json:"created_at"`
}

// ExportEventPayload carries per-page progress and the final job outcome.
type ExportEventPayload struct {
	JobID     string   `json:"job_id"`
	Kind      string   `json:"kind"`
	Status    string   `json:"status"`
	Page      string   `json:"page,omitempty"`
	Position  int      `json:"position,omitempty"`
	Total     int      `json:"total,omitempty"`
	Failed    []string `json:"failed,omitempty"`
	Artifacts []string `json:"artifacts,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the JSON payload into v.
func (e *Event) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return errors.New("empty event payload")
	}
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	onError     func(event *Event, err error)
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError sets the callback for handler failures.
func (b *EventBus) OnError(fn func(event *Event, err error)) {
	b.mu.Lock()
	b.onError = fn
	b.mu.Unlock()
}

// Subscribe registers a handler for a given event type or AllEvents.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type, then wildcard subscribers.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.subscribers[AllEvents]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
