package notifications

import (
	"context"
	"fmt"

	"teacherhr/internal/domain/appraisal"
	"teacherhr/internal/platform/logger"
)

// RecipientResolver maps a teacher profile to its login account.
type RecipientResolver interface {
	UserIDForTeacher(ctx context.Context, teacherID string) (string, error)
}

// TransitionNotifier tells the appraised teacher about every committed
// workflow transition. It satisfies appraisal.EventSink.
type TransitionNotifier struct {
	svc        *Service
	recipients RecipientResolver
	log        *logger.Logger
}

func NewTransitionNotifier(svc *Service, recipients RecipientResolver, log *logger.Logger) *TransitionNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &TransitionNotifier{svc: svc, recipients: recipients, log: log}
}

func (n *TransitionNotifier) Publish(ctx context.Context, event appraisal.TransitionEvent) {
	userID, err := n.recipients.UserIDForTeacher(ctx, event.TeacherID)
	if err != nil {
		n.log.Warn("notification recipient lookup failed", "teacherId", event.TeacherID, "err", err)
		return
	}
	if userID == "" || userID == event.ActorID {
		return
	}

	title, body := transitionMessage(event)
	if err := n.svc.Create(ctx, userID, TypeAppraisalTransition, title, body); err != nil {
		n.log.Warn("transition notification failed", "appraisalId", event.AppraisalID, "err", err)
	}
}

func transitionMessage(event appraisal.TransitionEvent) (string, string) {
	title := fmt.Sprintf("Appraisal %d: %s", event.AppraisalYear, label(event.To))
	body := fmt.Sprintf("Your %d appraisal moved from %s to %s.", event.AppraisalYear, label(event.From), label(event.To))
	switch event.To {
	case appraisal.StateUnderRevision, appraisal.StateRevisionRequired:
		body += " Please review the requested changes."
	case appraisal.StateCompleted:
		body += " The appraisal is now locked."
	}
	if event.Comment != "" {
		body += "\n\nComment: " + event.Comment
	}
	return title, body
}

var stateLabels = map[appraisal.State]string{
	appraisal.StateDraft:            "draft",
	appraisal.StateKPIProposal:      "KPI proposal",
	appraisal.StatePendingFEO:       "awaiting FEO scoring",
	appraisal.StateUnderRevision:    "under revision",
	appraisal.StateDisputed:         "disputed",
	appraisal.StatePendingPrincipal: "awaiting principal review",
	appraisal.StateRevisionRequired: "revision required",
	appraisal.StatePendingHR:        "awaiting HR sign-off",
	appraisal.StateCompleted:        "completed",
}

func label(s appraisal.State) string {
	if l, ok := stateLabels[s]; ok {
		return l
	}
	return string(s)
}
