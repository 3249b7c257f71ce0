package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventBookingExpired   = "booking_expired"
	EventBookingCompleted = "booking_completed"
	EventPaymentSettled   = "payment_settled"
	EventPaymentFailed    = "payment_failed"
)

// BookingEventPayload is the minimal booking snapshot pushed to consumers.
type BookingEventPayload struct {
	BookingID     int64  `json:"booking_id"`
	ShortRef      string `json:"short_ref"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	AmountPaid    int64  `json:"amount_paid"`
	AmountDue     int64  `json:"amount_due"`
	ChangedBy     string `json:"changed_by,omitempty"`
}

// Event is a lightweight state-change notification.
type Event struct {
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub. The core state machine publishes
// here and stays push-agnostic; the boundary decides delivery.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]EventHandler
	seq         int64
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers. Handlers run synchronously; caller decides
// the concurrency model.
func (b *EventBus) Publish(event *Event) {
	b.mu.Lock()
	b.seq++
	event.Seq = b.seq
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.Unlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		_ = handler(event)
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
