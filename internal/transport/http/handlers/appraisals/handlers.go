package appraisalshandler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"teacherhr/internal/domain/appraisal"
	"teacherhr/internal/domain/auth"
	"teacherhr/internal/domain/scoring"
	"teacherhr/internal/domain/teachers"
	"teacherhr/internal/platform/logger"
	"teacherhr/internal/transport/http/api"
	"teacherhr/internal/transport/http/middleware"
	"teacherhr/internal/transport/http/shared"
)

type Service interface {
	Create(ctx context.Context, in appraisal.CreateInput) (appraisal.Appraisal, error)
	Get(ctx context.Context, appraisalID string) (appraisal.Appraisal, error)
	List(ctx context.Context, filter appraisal.Filter) ([]appraisal.Appraisal, error)
	UpdateSelf(ctx context.Context, appraisalID string, in appraisal.SelfInput) (appraisal.Appraisal, error)
	UpdateScores(ctx context.Context, appraisalID string, in appraisal.ScoresInput) (appraisal.Appraisal, error)
	UpdateReview(ctx context.Context, appraisalID string, in appraisal.ReviewInput) (appraisal.Appraisal, error)
	Transition(ctx context.Context, req appraisal.TransitionRequest) (appraisal.TransitionResult, error)
	CalculateFinalScore(ctx context.Context, appraisalID string) (scoring.Result, error)
	Recalculate(ctx context.Context, appraisalID string) (appraisal.Appraisal, scoring.Result, error)
	Override(ctx context.Context, appraisalID, actorID, actorRole string, in appraisal.OverrideInput) (appraisal.Appraisal, error)
	History(ctx context.Context, appraisalID string) ([]appraisal.HistoryEntry, error)
	AllowedTransitions(ctx context.Context, appraisalID string) ([]appraisal.State, error)
}

type Handler struct {
	Service Service
	Perms   middleware.PermissionStore
	Log     *logger.Logger
	Now     func() time.Time
}

func NewHandler(service Service, perms middleware.PermissionStore, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{Service: service, Perms: perms, Log: log, Now: time.Now}
}

// transitionPermissions names the permission that moving into each state
// requires. Teachers may only move their own appraisal.
var transitionPermissions = map[appraisal.State]string{
	appraisal.StateKPIProposal:      auth.PermAppraisalSelf,
	appraisal.StatePendingFEO:       auth.PermAppraisalSelf,
	appraisal.StateDisputed:         auth.PermAppraisalSelf,
	appraisal.StateUnderRevision:    auth.PermAppraisalScore,
	appraisal.StatePendingPrincipal: auth.PermAppraisalScore,
	appraisal.StateRevisionRequired: auth.PermAppraisalReview,
	appraisal.StatePendingHR:        auth.PermAppraisalReview,
	appraisal.StateCompleted:        auth.PermAppraisalFinalize,
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermAppraisalRead, h.Perms)
	r.Route("/appraisals", func(r chi.Router) {
		r.With(read).Get("/", h.handleList)
		r.With(read).Post("/", h.handleCreate)
		r.Route("/{appraisalID}", func(r chi.Router) {
			r.With(read).Get("/", h.handleGet)
			r.With(middleware.RequirePermission(auth.PermAppraisalSelf, h.Perms)).Put("/self", h.handleUpdateSelf)
			r.With(middleware.RequirePermission(auth.PermAppraisalScore, h.Perms)).Put("/scores", h.handleUpdateScores)
			r.With(read).Put("/review", h.handleUpdateReview)
			r.With(read).Post("/transitions", h.handleTransition)
			r.With(read).Get("/transitions", h.handleAllowedTransitions)
			r.With(read).Get("/history", h.handleHistory)
			r.With(read).Get("/score", h.handleCalculate)
			r.With(middleware.RequirePermission(auth.PermAppraisalScore, h.Perms)).Post("/recalculate", h.handleRecalculate)
			r.With(middleware.RequirePermission(auth.PermAppraisalOverride, h.Perms)).Post("/override", h.handleOverride)
		})
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()

	filter := appraisal.Filter{
		TeacherID:    q.Get("teacherId"),
		DepartmentID: q.Get("departmentId"),
		Status:       appraisal.State(q.Get("status")),
	}
	if q.Get("year") != "" {
		year, ok := shared.Year(r, h.Now())
		if !ok {
			api.Fail(w, http.StatusBadRequest, "invalid_year", "year must be between 2000 and 2100", reqID)
			return
		}
		filter.Year = year
	}
	if user.Role == auth.RoleTeacher {
		if user.TeacherID == "" {
			api.Success(w, []appraisal.Appraisal{}, reqID)
			return
		}
		filter.TeacherID = user.TeacherID
	}

	list, err := h.Service.List(r.Context(), filter)
	if err != nil {
		shared.FailError(w, h.Log, err, "appraisal_list_failed", reqID)
		return
	}
	if list == nil {
		list = []appraisal.Appraisal{}
	}
	api.Success(w, list, reqID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload appraisal.CreateInput
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	switch user.Role {
	case auth.RoleTeacher:
		if payload.TeacherID != user.TeacherID || user.TeacherID == "" {
			api.Fail(w, http.StatusForbidden, "forbidden", "teachers may only open their own appraisal", reqID)
			return
		}
	case auth.RoleHRAdmin:
	default:
		api.Fail(w, http.StatusForbidden, "forbidden", "only the teacher or HR may open an appraisal", reqID)
		return
	}

	created, err := h.Service.Create(r.Context(), payload)
	if err != nil {
		shared.FailError(w, h.Log, err, "appraisal_create_failed", reqID)
		return
	}
	api.Created(w, created, reqID)
}

// load fetches the appraisal and enforces teacher ownership. It writes the
// failure response itself.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (appraisal.Appraisal, auth.UserContext, bool) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	id := chi.URLParam(r, "appraisalID")
	if !shared.ValidID(id) {
		api.Fail(w, http.StatusNotFound, "not_found", appraisal.ErrNotFound.Error(), reqID)
		return appraisal.Appraisal{}, user, false
	}
	a, err := h.Service.Get(r.Context(), id)
	if err != nil {
		shared.FailError(w, h.Log, err, "appraisal_get_failed", reqID)
		return appraisal.Appraisal{}, user, false
	}
	if !teachers.CanView(user, a.TeacherID) {
		api.Fail(w, http.StatusNotFound, "not_found", appraisal.ErrNotFound.Error(), reqID)
		return appraisal.Appraisal{}, user, false
	}
	return a, user, true
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.load(w, r)
	if !ok {
		return
	}
	api.Success(w, a, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateSelf(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	a, _, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload appraisal.SelfInput
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	updated, err := h.Service.UpdateSelf(r.Context(), a.ID, payload)
	if err != nil {
		shared.FailError(w, h.Log, err, "appraisal_update_failed", reqID)
		return
	}
	api.Success(w, updated, reqID)
}

func (h *Handler) handleUpdateScores(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	a, _, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload appraisal.ScoresInput
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	updated, err := h.Service.UpdateScores(r.Context(), a.ID, payload)
	if err != nil {
		shared.FailError(w, h.Log, err, "appraisal_update_failed", reqID)
		return
	}
	api.Success(w, updated, reqID)
}

// handleUpdateReview lets principals edit the principal and revision fields and
// HR edit the HR fields. Fields the caller may not edit are ignored and never
// written.
func (h *Handler) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	a, user, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload appraisal.ReviewInput
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}

	var in appraisal.ReviewInput
	switch user.Role {
	case auth.RolePrincipal:
		in.PrincipalOverallComment = payload.PrincipalOverallComment
		in.PrincipalCareerAdvancement = payload.PrincipalCareerAdvancement
		in.RevisionReason = payload.RevisionReason
		in.RevisionComments = payload.RevisionComments
	case auth.RoleHRAdmin:
		in.HROverallComment = payload.HROverallComment
		in.HRCareerAdvancement = payload.HRCareerAdvancement
	default:
		api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", reqID)
		return
	}

	updated, err := h.Service.UpdateReview(r.Context(), a.ID, in)
	if err != nil {
		shared.FailError(w, h.Log, err, "appraisal_update_failed", reqID)
		return
	}
	api.Success(w, updated, reqID)
}

type transitionRequest struct {
	To       string         `json:"to" validate:"required"`
	Comment  string         `json:"comment" validate:"max=2000"`
	Metadata map[string]any `json:"metadata"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	a, user, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload transitionRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}

	to := appraisal.State(payload.To)
	if perm, known := transitionPermissions[to]; known {
		allowed, err := h.Perms.HasPermission(r.Context(), user.Role, perm)
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", reqID)
			return
		}
		if !allowed {
			api.Fail(w, http.StatusForbidden, "forbidden", "role "+user.Role+" cannot move an appraisal to "+payload.To, reqID)
			return
		}
	}

	result, err := h.Service.Transition(r.Context(), appraisal.TransitionRequest{
		AppraisalID: a.ID,
		To:          to,
		ActorID:     user.UserID,
		ActorRole:   user.Role,
		Comment:     payload.Comment,
		Metadata:    payload.Metadata,
	})
	if err != nil {
		shared.FailError(w, h.Log, err, "appraisal_transition_failed", reqID)
		return
	}
	api.Success(w, result, reqID)
}

func (h *Handler) handleAllowedTransitions(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	a, user, ok := h.load(w, r)
	if !ok {
		return
	}
	targets, err := h.Service.AllowedTransitions(r.Context(), a.ID)
	if err != nil {
		shared.FailError(w, h.Log, err, "appraisal_transitions_failed", reqID)
		return
	}
	out := make([]appraisal.State, 0, len(targets))
	for _, to := range targets {
		if allowed, err := h.Perms.HasPermission(r.Context(), user.Role, transitionPermissions[to]); err == nil && allowed {
			out = append(out, to)
		}
	}
	api.Success(w, map[string]any{"status": a.Status, "allowed": out}, reqID)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	a, _, ok := h.load(w, r)
	if !ok {
		return
	}
	history, err := h.Service.History(r.Context(), a.ID)
	if err != nil {
		shared.FailError(w, h.Log, err, "appraisal_history_failed", reqID)
		return
	}
	if history == nil {
		history = []appraisal.HistoryEntry{}
	}
	api.Success(w, history, reqID)
}

// handleCalculate previews the weighted score without persisting it.
func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	a, _, ok := h.load(w, r)
	if !ok {
		return
	}
	result, err := h.Service.CalculateFinalScore(r.Context(), a.ID)
	if err != nil {
		shared.FailError(w, h.Log, err, "appraisal_score_failed", reqID)
		return
	}
	api.Success(w, result, reqID)
}

func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	a, _, ok := h.load(w, r)
	if !ok {
		return
	}
	updated, result, err := h.Service.Recalculate(r.Context(), a.ID)
	if err != nil {
		shared.FailError(w, h.Log, err, "appraisal_score_failed", reqID)
		return
	}
	api.Success(w, map[string]any{"appraisal": updated, "calculation": result}, reqID)
}

func (h *Handler) handleOverride(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	a, user, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload appraisal.OverrideInput
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	updated, err := h.Service.Override(r.Context(), a.ID, user.UserID, user.Role, payload)
	if err != nil {
		shared.FailError(w, h.Log, err, "appraisal_override_failed", reqID)
		return
	}
	api.Success(w, updated, reqID)
}
