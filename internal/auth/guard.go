package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stayflow/internal/domain"
	"stayflow/internal/logging"
	"stayflow/internal/models"

	"github.com/rs/zerolog"
)

// Guard decides whether an actor may read or act on a booking. Denials are
// generic on purpose: the caller cannot distinguish "no such booking" from
// "not yours", which blocks booking-id enumeration.
type Guard struct {
	tokens domain.TokenValidator
	logger zerolog.Logger
}

func NewGuard(tokens domain.TokenValidator, logger *zerolog.Logger) *Guard {
	return &Guard{tokens: tokens, logger: logging.Component(logger, "auth")}
}

// Authorize checks access in precedence order: staff, authenticated owner
// match, then a valid verification token bound to this exact booking.
// An expired token is reported distinctly so the caller can prompt a fresh
// lookup instead of a dead end.
func (g *Guard) Authorize(ctx context.Context, actor domain.ActorContext, booking *models.Booking) error {
	if booking == nil {
		return domain.ErrUnauthorized
	}

	if actor.IsStaff {
		return nil
	}

	if actor.Authenticated() {
		if booking.UserID != nil && *booking.UserID == *actor.UserID {
			return nil
		}
		if actor.Email != "" && strings.EqualFold(actor.Email, booking.GuestEmail) {
			return nil
		}
	}

	if actor.Token != "" {
		result, err := g.tokens.Validate(ctx, actor.Token, booking.ID, time.Now())
		if err != nil {
			g.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("token validation error")
			return domain.ErrUnauthorized
		}
		if result.Expired {
			return fmt.Errorf("booking %d: %w", booking.ID, domain.ErrExpiredToken)
		}
		if result.Valid {
			return nil
		}
	}

	return domain.ErrUnauthorized
}
