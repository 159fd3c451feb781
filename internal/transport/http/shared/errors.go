package shared

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"teacherhr/internal/domain/appraisal"
	"teacherhr/internal/domain/cpe"
	"teacherhr/internal/domain/kpi"
	"teacherhr/internal/domain/notifications"
	"teacherhr/internal/domain/rubric"
	"teacherhr/internal/domain/scoring"
	"teacherhr/internal/domain/teachers"
	"teacherhr/internal/platform/logger"
	"teacherhr/internal/transport/http/api"
)

// FailError maps domain errors to status codes and stable error codes. Anything
// unrecognised is logged and reported as a 500 with fallbackCode.
func FailError(w http.ResponseWriter, log *logger.Logger, err error, fallbackCode, requestID string) {
	var rv *scoring.RubricViolation
	if errors.As(err, &rv) {
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "rubric_violation", rv.Error(), rv, requestID)
		return
	}
	var te *appraisal.TransitionError
	if errors.As(err, &te) && errors.Is(err, appraisal.ErrGuardViolation) {
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "guard_violation", te.Condition,
			map[string]string{"from": string(te.From), "to": string(te.To)}, requestID)
		return
	}

	status, code := classify(err)
	if status == 0 {
		if log != nil {
			log.Error("request failed", "code", fallbackCode, "requestId", requestID, "err", err)
		}
		api.Fail(w, http.StatusInternalServerError, fallbackCode, "internal server error", requestID)
		return
	}
	if code == "retryable_failure" {
		if log != nil {
			log.Warn("request failed on storage", "requestId", requestID, "err", err)
		}
		api.Fail(w, status, code, "temporary storage failure, retry the request", requestID)
		return
	}
	api.Fail(w, status, code, err.Error(), requestID)
}

// ValidID reports whether a path id is a well-formed uuid.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, appraisal.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, appraisal.ErrGuardViolation):
		return http.StatusUnprocessableEntity, "guard_violation"
	case errors.Is(err, appraisal.ErrRubricViolation):
		return http.StatusUnprocessableEntity, "rubric_violation"
	case errors.Is(err, appraisal.ErrLocked):
		return http.StatusConflict, "appraisal_locked"
	case errors.Is(err, appraisal.ErrPersistence):
		return http.StatusServiceUnavailable, "retryable_failure"
	case errors.Is(err, appraisal.ErrOverrideNotAllowed):
		return http.StatusConflict, "override_not_allowed"
	case errors.Is(err, appraisal.ErrNotEditable),
		errors.Is(err, cpe.ErrNotEditable):
		return http.StatusConflict, "not_editable"
	case errors.Is(err, appraisal.ErrAlreadyExists),
		errors.Is(err, teachers.ErrDuplicate):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, kpi.ErrAlreadyReviewed),
		errors.Is(err, cpe.ErrAlreadyReviewed):
		return http.StatusConflict, "already_reviewed"
	case errors.Is(err, appraisal.ErrInvalidInput),
		errors.Is(err, kpi.ErrInvalidRequest),
		errors.Is(err, cpe.ErrInvalidRecord),
		errors.Is(err, rubric.ErrInvalidRubric),
		errors.Is(err, teachers.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, appraisal.ErrNotFound),
		errors.Is(err, kpi.ErrNotFound),
		errors.Is(err, cpe.ErrNotFound),
		errors.Is(err, rubric.ErrNotFound),
		errors.Is(err, teachers.ErrNotFound),
		errors.Is(err, notifications.ErrNotFound):
		return http.StatusNotFound, "not_found"
	}
	return 0, ""
}
