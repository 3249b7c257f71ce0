package sheets

import (
	"context"
	"encoding/json"
	"time"

	"stayflow/internal/domain"
	"stayflow/internal/events"
	"stayflow/internal/logging"

	"github.com/rs/zerolog"
)

// Mirror pushes every booking state change into the spreadsheet. Sync errors
// are logged and dropped; the sheet catches up on the next event.
type Mirror struct {
	store  domain.Store
	writer domain.SheetWriter
	logger zerolog.Logger
}

func NewMirror(store domain.Store, writer domain.SheetWriter, logger *zerolog.Logger) *Mirror {
	return &Mirror{store: store, writer: writer, logger: logging.Component(logger, "sheets_mirror")}
}

// Attach subscribes the mirror to every booking event type on the bus.
func (m *Mirror) Attach(bus *events.EventBus) {
	for _, eventType := range []string{
		events.EventBookingCreated,
		events.EventBookingConfirmed,
		events.EventBookingCancelled,
		events.EventBookingExpired,
		events.EventBookingCompleted,
		events.EventPaymentSettled,
		events.EventPaymentFailed,
	} {
		bus.Subscribe(eventType, m.handle)
	}
}

func (m *Mirror) handle(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		m.logger.Error().Err(err).Str("type", event.Type).Msg("decode event payload")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	booking, err := m.store.GetBooking(ctx, payload.BookingID)
	if err != nil {
		m.logger.Warn().Err(err).Int64("booking_id", payload.BookingID).Msg("load booking for sheet sync")
		return nil
	}

	if err := m.writer.UpsertBooking(ctx, booking); err != nil {
		m.logger.Warn().Err(err).Int64("booking_id", booking.ID).Msg("sheet sync failed")
	}
	return nil
}
