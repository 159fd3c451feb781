package events

import (
	"context"

	"teacherhr/internal/domain/appraisal"
	"teacherhr/internal/platform/logger"
)

// AppraisalSink adapts a Publisher to appraisal.EventSink.
type AppraisalSink struct {
	pub Publisher
	log *logger.Logger
}

func NewAppraisalSink(pub Publisher, log *logger.Logger) *AppraisalSink {
	if log == nil {
		log = logger.Nop()
	}
	return &AppraisalSink{pub: pub, log: log}
}

func (s *AppraisalSink) Publish(ctx context.Context, event appraisal.TransitionEvent) {
	evt, err := NewEvent(TypeAppraisalTransition, event, event.OccurredAt)
	if err != nil {
		s.log.Error("transition event encode failed", "appraisalId", event.AppraisalID, "err", err)
		return
	}
	if err := s.pub.Publish(ctx, evt); err != nil {
		s.log.Warn("transition event publish failed", "appraisalId", event.AppraisalID, "eventId", evt.ID, "err", err)
	}
}

// Sinks delivers one transition to several sinks in order.
type Sinks []appraisal.EventSink

func (s Sinks) Publish(ctx context.Context, event appraisal.TransitionEvent) {
	for _, sink := range s {
		sink.Publish(ctx, event)
	}
}
