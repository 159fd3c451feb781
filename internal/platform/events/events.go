package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"teacherhr/internal/platform/logger"
)

const TypeAppraisalTransition = "appraisal.transition"

// Event is the envelope every publisher receives.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

func NewEvent(eventType string, payload any, at time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{ID: uuid.NewString(), Type: eventType, OccurredAt: at.UTC(), Payload: raw}, nil
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type LogPublisher struct {
	log *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &LogPublisher{log: log.With("service", "events")}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.log.Info("event published", "eventId", event.ID, "type", event.Type, "payload", string(event.Payload))
	return nil
}

// Fanout delivers to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
