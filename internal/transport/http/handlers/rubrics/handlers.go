package rubricshandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"teacherhr/internal/domain/audit"
	"teacherhr/internal/domain/auth"
	"teacherhr/internal/domain/rubric"
	"teacherhr/internal/platform/logger"
	"teacherhr/internal/transport/http/api"
	"teacherhr/internal/transport/http/middleware"
	"teacherhr/internal/transport/http/shared"
)

type Service interface {
	ActiveVersion(ctx context.Context, key string) (rubric.Version, error)
	Update(ctx context.Context, key string, value rubric.Rubric, actorID, description string) (rubric.Version, error)
	History(ctx context.Context, key string) ([]rubric.Version, error)
	Restore(ctx context.Context, key string, version int, actorID string) (rubric.Version, error)
}

// Handler serves the single rubric document configured under Key.
type Handler struct {
	Service Service
	Key     string
	Perms   middleware.PermissionStore
	Audit   shared.Auditor
	Log     *logger.Logger
}

func NewHandler(service Service, key string, perms middleware.PermissionStore, auditor shared.Auditor, log *logger.Logger) *Handler {
	if key == "" {
		key = rubric.DefaultKey
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{Service: service, Key: key, Perms: perms, Audit: auditor, Log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermRubricRead, h.Perms)
	write := middleware.RequirePermission(auth.PermRubricWrite, h.Perms)
	r.Route("/rubric", func(r chi.Router) {
		r.With(read).Get("/", h.handleActive)
		r.With(read).Get("/history", h.handleHistory)
		r.With(read).Post("/validate", h.handleValidate)
		r.With(write).Put("/", h.handleUpdate)
		r.With(write).Post("/restore", h.handleRestore)
	})
}

func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	v, err := h.Service.ActiveVersion(r.Context(), h.Key)
	if err != nil {
		shared.FailError(w, h.Log, err, "rubric_get_failed", reqID)
		return
	}
	api.Success(w, v, reqID)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	versions, err := h.Service.History(r.Context(), h.Key)
	if err != nil {
		shared.FailError(w, h.Log, err, "rubric_history_failed", reqID)
		return
	}
	if versions == nil {
		versions = []rubric.Version{}
	}
	api.Success(w, versions, reqID)
}

type updateRequest struct {
	Value       rubric.Rubric `json:"value"`
	Description string        `json:"description" validate:"max=500"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	var payload updateRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}

	before, err := h.Service.ActiveVersion(r.Context(), h.Key)
	if err != nil {
		shared.FailError(w, h.Log, err, "rubric_update_failed", reqID)
		return
	}
	v, err := h.Service.Update(r.Context(), h.Key, payload.Value, user.UserID, payload.Description)
	if err != nil {
		shared.FailError(w, h.Log, err, "rubric_update_failed", reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Log, h.Audit, user.UserID, audit.ActionRubricUpdate, "rubric", h.Key, before, v)
	api.Success(w, v, reqID)
}

type restoreRequest struct {
	Version int `json:"version" validate:"required,min=1"`
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	var payload restoreRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}

	before, err := h.Service.ActiveVersion(r.Context(), h.Key)
	if err != nil {
		shared.FailError(w, h.Log, err, "rubric_restore_failed", reqID)
		return
	}
	v, err := h.Service.Restore(r.Context(), h.Key, payload.Version, user.UserID)
	if err != nil {
		shared.FailError(w, h.Log, err, "rubric_restore_failed", reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Log, h.Audit, user.UserID, audit.ActionRubricRestore, "rubric", h.Key, before, v)
	api.Success(w, v, reqID)
}

type validateRequest struct {
	Scores       map[string]*int `json:"scores"`
	TeachingLoad *int            `json:"teachingLoadLessonsPerWeek"`
}

// handleValidate checks a score sheet against the active rubric without
// touching any appraisal.
func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload validateRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	active, err := h.Service.ActiveVersion(r.Context(), h.Key)
	if err != nil {
		shared.FailError(w, h.Log, err, "rubric_get_failed", reqID)
		return
	}
	violations := rubric.Validate(rubric.Scores{Values: payload.Scores, TeachingLoad: payload.TeachingLoad}, active.Value)
	if violations == nil {
		violations = []string{}
	}
	api.Success(w, map[string]any{
		"valid":      len(violations) == 0,
		"violations": violations,
		"version":    active.Version,
	}, reqID)
}
