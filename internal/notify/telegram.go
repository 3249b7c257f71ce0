package notify

import (
	"encoding/json"
	"fmt"

	"stayflow/internal/events"
	"stayflow/internal/logging"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the slice of the Telegram API the notifier needs. Satisfied by
// *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier mirrors booking lifecycle events to the staff chats so managers
// see settlements and cancellations without watching the admin panel.
type Notifier struct {
	sender  Sender
	chatIDs []int64
	logger  zerolog.Logger
}

func New(sender Sender, chatIDs []int64, logger *zerolog.Logger) *Notifier {
	return &Notifier{
		sender:  sender,
		chatIDs: chatIDs,
		logger:  logging.Component(logger, "notify"),
	}
}

// Attach subscribes the notifier to every booking event type on the bus.
func (n *Notifier) Attach(bus *events.EventBus) {
	for _, eventType := range []string{
		events.EventBookingCreated,
		events.EventBookingConfirmed,
		events.EventBookingCancelled,
		events.EventBookingExpired,
		events.EventBookingCompleted,
		events.EventPaymentSettled,
		events.EventPaymentFailed,
	} {
		bus.Subscribe(eventType, n.handle)
	}
}

func (n *Notifier) handle(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		n.logger.Error().Err(err).Str("type", event.Type).Msg("decode event payload")
		return nil
	}

	text := formatEvent(event.Type, &payload)
	if text == "" {
		return nil
	}

	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := n.sender.Send(msg); err != nil {
			n.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("send notification")
		}
	}
	return nil
}

func formatEvent(eventType string, p *events.BookingEventPayload) string {
	switch eventType {
	case events.EventBookingCreated:
		return fmt.Sprintf("🆕 Новая бронь *%s*\nК оплате: %s", p.ShortRef, formatAmount(p.AmountDue))
	case events.EventPaymentSettled:
		return fmt.Sprintf("💰 Оплата по брони *%s*: %s (остаток %s)", p.ShortRef, formatAmount(p.AmountPaid), formatAmount(p.AmountDue))
	case events.EventPaymentFailed:
		return fmt.Sprintf("⚠️ Платёж по брони *%s* не прошёл", p.ShortRef)
	case events.EventBookingConfirmed:
		return fmt.Sprintf("✅ Бронь *%s* подтверждена", p.ShortRef)
	case events.EventBookingCancelled:
		return fmt.Sprintf("❌ Бронь *%s* отменена", p.ShortRef)
	case events.EventBookingExpired:
		return fmt.Sprintf("⏰ Бронь *%s* истекла без оплаты", p.ShortRef)
	case events.EventBookingCompleted:
		return fmt.Sprintf("🏁 Бронь *%s* завершена", p.ShortRef)
	}
	return ""
}

func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
