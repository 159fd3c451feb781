package shared

import (
	"context"

	"teacherhr/internal/platform/logger"
)

type Notifier interface {
	Create(ctx context.Context, userID, ntype, title, body string) error
}

type RecipientResolver interface {
	UserIDForTeacher(ctx context.Context, teacherID string) (string, error)
}

// Auditor records who changed what. Handlers log failures and carry on.
type Auditor interface {
	Record(ctx context.Context, actorID, action, entityType, entityID string, before, after any) error
}

// NotifyTeacher sends an in-app notification to the teacher's login, if the
// teacher has one. Failures are logged and swallowed.
func NotifyTeacher(ctx context.Context, log *logger.Logger, recipients RecipientResolver, notifier Notifier, teacherID, ntype, title, body string) {
	if recipients == nil || notifier == nil {
		return
	}
	userID, err := recipients.UserIDForTeacher(ctx, teacherID)
	if err != nil {
		log.Warn("notification recipient lookup failed", "teacherId", teacherID, "err", err)
		return
	}
	if userID == "" {
		return
	}
	if err := notifier.Create(ctx, userID, ntype, title, body); err != nil {
		log.Warn("notification create failed", "userId", userID, "type", ntype, "err", err)
	}
}

// RecordAudit writes an audit event, logging instead of failing the request.
func RecordAudit(ctx context.Context, log *logger.Logger, auditor Auditor, actorID, action, entityType, entityID string, before, after any) {
	if auditor == nil {
		return
	}
	if err := auditor.Record(ctx, actorID, action, entityType, entityID, before, after); err != nil {
		log.Error("audit record failed", "action", action, "entityId", entityID, "err", err)
	}
}
