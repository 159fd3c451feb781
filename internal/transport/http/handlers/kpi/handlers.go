package kpihandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"teacherhr/internal/domain/audit"
	"teacherhr/internal/domain/auth"
	"teacherhr/internal/domain/kpi"
	"teacherhr/internal/domain/notifications"
	"teacherhr/internal/domain/teachers"
	"teacherhr/internal/platform/logger"
	"teacherhr/internal/transport/http/api"
	"teacherhr/internal/transport/http/middleware"
	"teacherhr/internal/transport/http/shared"
)

type Service interface {
	Create(ctx context.Context, teacherID string, in kpi.RequestInput) (kpi.Request, error)
	Get(ctx context.Context, requestID string) (kpi.Request, error)
	List(ctx context.Context, filter kpi.Filter) ([]kpi.Request, error)
	Approve(ctx context.Context, requestID, reviewerID, comments string) (kpi.Request, error)
	Reject(ctx context.Context, requestID, reviewerID, comments string) (kpi.Request, error)
}

type Handler struct {
	Service    Service
	Perms      middleware.PermissionStore
	Audit      shared.Auditor
	Notifier   shared.Notifier
	Recipients shared.RecipientResolver
	Log        *logger.Logger
}

func NewHandler(service Service, perms middleware.PermissionStore, auditor shared.Auditor, notifier shared.Notifier, recipients shared.RecipientResolver, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{Service: service, Perms: perms, Audit: auditor, Notifier: notifier, Recipients: recipients, Log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/kpi-requests", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermKPIRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermKPIWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermKPIRead, h.Perms)).Get("/{requestID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermKPIReview, h.Perms)).Post("/{requestID}/approve", h.handleReview(kpi.StatusApproved))
		r.With(middleware.RequirePermission(auth.PermKPIReview, h.Perms)).Post("/{requestID}/reject", h.handleReview(kpi.StatusRejected))
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	filter := kpi.Filter{
		TeacherID: r.URL.Query().Get("teacherId"),
		Status:    r.URL.Query().Get("status"),
	}
	if user.Role == auth.RoleTeacher {
		if user.TeacherID == "" {
			api.Success(w, []kpi.Request{}, reqID)
			return
		}
		filter.TeacherID = user.TeacherID
	}
	list, err := h.Service.List(r.Context(), filter)
	if err != nil {
		shared.FailError(w, h.Log, err, "kpi_list_failed", reqID)
		return
	}
	if list == nil {
		list = []kpi.Request{}
	}
	api.Success(w, list, reqID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	if user.TeacherID == "" {
		api.Fail(w, http.StatusForbidden, "forbidden", "only teachers may propose KPIs", reqID)
		return
	}
	var payload kpi.RequestInput
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	created, err := h.Service.Create(r.Context(), user.TeacherID, payload)
	if err != nil {
		shared.FailError(w, h.Log, err, "kpi_create_failed", reqID)
		return
	}
	api.Created(w, created, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	req, err := h.Service.Get(r.Context(), chi.URLParam(r, "requestID"))
	if err != nil {
		shared.FailError(w, h.Log, err, "kpi_get_failed", reqID)
		return
	}
	if !teachers.CanView(user, req.TeacherID) {
		api.Fail(w, http.StatusNotFound, "not_found", kpi.ErrNotFound.Error(), reqID)
		return
	}
	api.Success(w, req, reqID)
}

type reviewRequest struct {
	Comments string `json:"comments" validate:"max=2000"`
}

func (h *Handler) handleReview(status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.GetUser(r.Context())
		reqID := middleware.GetRequestID(r.Context())
		var payload reviewRequest
		if r.ContentLength != 0 && !shared.DecodeJSON(w, r, &payload, reqID) {
			return
		}

		id := chi.URLParam(r, "requestID")
		before, err := h.Service.Get(r.Context(), id)
		if err != nil {
			shared.FailError(w, h.Log, err, "kpi_review_failed", reqID)
			return
		}

		var reviewed kpi.Request
		if status == kpi.StatusApproved {
			reviewed, err = h.Service.Approve(r.Context(), id, user.UserID, payload.Comments)
		} else {
			reviewed, err = h.Service.Reject(r.Context(), id, user.UserID, payload.Comments)
		}
		if err != nil {
			shared.FailError(w, h.Log, err, "kpi_review_failed", reqID)
			return
		}

		shared.RecordAudit(r.Context(), h.Log, h.Audit, user.UserID, audit.ActionKPIReview, "kpi_request", id, before, reviewed)
		body := "Your KPI proposal \"" + reviewed.Title + "\" was " + status + "."
		if reviewed.ReviewerComments != "" {
			body += " Comments: " + reviewed.ReviewerComments
		}
		shared.NotifyTeacher(r.Context(), h.Log, h.Recipients, h.Notifier, reviewed.TeacherID, notifications.TypeKPIReviewed, "KPI proposal "+status, body)
		api.Success(w, reviewed, reqID)
	}
}
