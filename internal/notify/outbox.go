package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/wolfman30/dental-booking/internal/events"
)

// EventBookingConfirmed is the outbox type carrying a Confirmation.
const EventBookingConfirmed = "booking.confirmed.v1"

// OutboxWriter appends events for later delivery.
type OutboxWriter interface {
	Insert(ctx context.Context, eventType, key string, payload any) (uuid.UUID, error)
}

// QueuedNotifier records confirmations in the outbox instead of emailing
// inline; a Deliverer running Service.Handle sends them.
type QueuedNotifier struct {
	outbox OutboxWriter
}

func NewQueuedNotifier(outbox OutboxWriter) *QueuedNotifier {
	return &QueuedNotifier{outbox: outbox}
}

func (q *QueuedNotifier) NotifyBookingConfirmed(ctx context.Context, c Confirmation) error {
	if _, err := q.outbox.Insert(ctx, EventBookingConfirmed, c.ReservationID, c); err != nil {
		return fmt.Errorf("notify: queue confirmation: %w", err)
	}
	return nil
}

// Handle delivers one outbox entry. Unknown event types are acknowledged and
// logged so they do not block the queue.
func (s *Service) Handle(ctx context.Context, entry events.OutboxEntry) error {
	switch entry.Type {
	case EventBookingConfirmed:
		var c Confirmation
		if err := json.Unmarshal(entry.Payload, &c); err != nil {
			s.logger.Error("notify: undecodable confirmation dropped", "event_id", entry.ID, "error", err)
			return nil
		}
		return s.NotifyBookingConfirmed(ctx, c)
	default:
		s.logger.Warn("notify: unknown outbox event", "event_id", entry.ID, "type", entry.Type)
		return nil
	}
}
