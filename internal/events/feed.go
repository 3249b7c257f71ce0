package events

import (
	"encoding/json"
	"sync"
)

const defaultFeedDepth = 64

// Feed retains recent booking events for the short-poll contract at the API
// boundary. Clients pass the last seq they saw and receive everything newer.
type Feed struct {
	mu     sync.RWMutex
	perRef map[int64][]*Event
	depth  int
}

// NewFeed subscribes a feed to every booking event type on the bus.
func NewFeed(bus *EventBus) *Feed {
	f := &Feed{perRef: make(map[int64][]*Event), depth: defaultFeedDepth}
	for _, t := range []string{
		EventBookingCreated, EventBookingConfirmed, EventBookingCancelled,
		EventBookingExpired, EventBookingCompleted, EventPaymentSettled, EventPaymentFailed,
	} {
		bus.Subscribe(t, f.record)
	}
	return f
}

func (f *Feed) record(event *Event) error {
	var payload BookingEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}
	if payload.BookingID == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	ring := append(f.perRef[payload.BookingID], event)
	if len(ring) > f.depth {
		ring = ring[len(ring)-f.depth:]
	}
	f.perRef[payload.BookingID] = ring
	return nil
}

// Since returns events for a booking with seq strictly greater than afterSeq.
func (f *Feed) Since(bookingID, afterSeq int64) []*Event {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ring := f.perRef[bookingID]
	out := make([]*Event, 0, len(ring))
	for _, e := range ring {
		if e.Seq > afterSeq {
			out = append(out, e)
		}
	}
	return out
}
