package cpehandler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"teacherhr/internal/domain/audit"
	"teacherhr/internal/domain/auth"
	"teacherhr/internal/domain/cpe"
	"teacherhr/internal/domain/notifications"
	"teacherhr/internal/domain/teachers"
	"teacherhr/internal/platform/logger"
	"teacherhr/internal/transport/http/api"
	"teacherhr/internal/transport/http/middleware"
	"teacherhr/internal/transport/http/shared"
)

type Service interface {
	Create(ctx context.Context, teacherID string, in cpe.RecordInput) (cpe.Record, error)
	Update(ctx context.Context, recordID string, in cpe.RecordInput) (cpe.Record, error)
	Get(ctx context.Context, recordID string) (cpe.Record, error)
	Approve(ctx context.Context, recordID, reviewerID string) (cpe.Record, error)
	Reject(ctx context.Context, recordID, reviewerID string) (cpe.Record, error)
	List(ctx context.Context, teacherID string, year int, status string) ([]cpe.Record, error)
	CheckCompliance(ctx context.Context, teacherID string, year int) (cpe.Compliance, error)
	Summary(ctx context.Context, teacherID string, year int) (cpe.Summary, error)
	TeacherDetails(ctx context.Context, teacherID string, year int) (cpe.TeacherDetails, error)
}

type Handler struct {
	Service    Service
	Perms      middleware.PermissionStore
	Audit      shared.Auditor
	Notifier   shared.Notifier
	Recipients shared.RecipientResolver
	Log        *logger.Logger
	Now        func() time.Time
}

func NewHandler(service Service, perms middleware.PermissionStore, auditor shared.Auditor, notifier shared.Notifier, recipients shared.RecipientResolver, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{Service: service, Perms: perms, Audit: auditor, Notifier: notifier, Recipients: recipients, Log: log, Now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermCPERead, h.Perms)
	write := middleware.RequirePermission(auth.PermCPEWrite, h.Perms)
	review := middleware.RequirePermission(auth.PermCPEReview, h.Perms)

	r.Route("/cpe-records", func(r chi.Router) {
		r.With(read).Get("/", h.handleList)
		r.With(write).Post("/", h.handleCreate)
		r.With(read).Get("/{recordID}", h.handleGet)
		r.With(write).Put("/{recordID}", h.handleUpdate)
		r.With(review).Post("/{recordID}/approve", h.handleReview(cpe.StatusApproved))
		r.With(review).Post("/{recordID}/reject", h.handleReview(cpe.StatusRejected))
	})
	r.Route("/cpe/teachers/{teacherID}", func(r chi.Router) {
		r.Use(read)
		r.Get("/summary", h.handleSummary)
		r.Get("/details", h.handleDetails)
		r.Get("/compliance", h.handleCompliance)
	})
}

type recordRequest struct {
	TeacherID       string  `json:"teacherId" validate:"omitempty,uuid"`
	CourseTitle     string  `json:"courseTitle" validate:"required,max=255"`
	Provider        string  `json:"provider" validate:"max=255"`
	Location        string  `json:"location" validate:"max=255"`
	Description     string  `json:"description"`
	CertificatePath string  `json:"certificatePath" validate:"max=500"`
	DateAttended    string  `json:"dateAttended" validate:"required"`
	DurationHours   float64 `json:"durationHours" validate:"gte=0,lte=1000"`
}

func (h *Handler) decodeRecord(w http.ResponseWriter, r *http.Request, reqID string) (recordRequest, cpe.RecordInput, bool) {
	var payload recordRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return payload, cpe.RecordInput{}, false
	}
	attended, err := shared.ParseDate(payload.DateAttended)
	if err != nil {
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "dateAttended", Reason: "must be a date (YYYY-MM-DD)"}})
		return payload, cpe.RecordInput{}, false
	}
	return payload, cpe.RecordInput{
		CourseTitle:     payload.CourseTitle,
		Provider:        payload.Provider,
		Location:        payload.Location,
		Description:     payload.Description,
		CertificatePath: payload.CertificatePath,
		DateAttended:    attended,
		DurationHours:   payload.DurationHours,
	}, true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	teacherID := r.URL.Query().Get("teacherId")
	if user.Role == auth.RoleTeacher {
		teacherID = user.TeacherID
		if teacherID == "" {
			api.Success(w, []cpe.Record{}, reqID)
			return
		}
	}
	year := 0
	if r.URL.Query().Get("year") != "" {
		var ok bool
		if year, ok = shared.Year(r, h.Now()); !ok {
			api.Fail(w, http.StatusBadRequest, "invalid_year", "year must be between 2000 and 2100", reqID)
			return
		}
	}
	list, err := h.Service.List(r.Context(), teacherID, year, r.URL.Query().Get("status"))
	if err != nil {
		shared.FailError(w, h.Log, err, "cpe_list_failed", reqID)
		return
	}
	if list == nil {
		list = []cpe.Record{}
	}
	api.Success(w, list, reqID)
}

// handleCreate files a record for the caller. HR may file on behalf of any
// teacher by naming teacherId.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	payload, in, ok := h.decodeRecord(w, r, reqID)
	if !ok {
		return
	}
	teacherID := user.TeacherID
	if user.Role == auth.RoleHRAdmin && payload.TeacherID != "" {
		teacherID = payload.TeacherID
	}
	if teacherID == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_input", "teacherId is required", reqID)
		return
	}
	created, err := h.Service.Create(r.Context(), teacherID, in)
	if err != nil {
		shared.FailError(w, h.Log, err, "cpe_create_failed", reqID)
		return
	}
	api.Created(w, created, reqID)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (cpe.Record, auth.UserContext, bool) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	rec, err := h.Service.Get(r.Context(), chi.URLParam(r, "recordID"))
	if err != nil {
		shared.FailError(w, h.Log, err, "cpe_get_failed", reqID)
		return cpe.Record{}, user, false
	}
	if !teachers.CanView(user, rec.TeacherID) {
		api.Fail(w, http.StatusNotFound, "not_found", cpe.ErrNotFound.Error(), reqID)
		return cpe.Record{}, user, false
	}
	return rec, user, true
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, _, ok := h.load(w, r)
	if !ok {
		return
	}
	api.Success(w, rec, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	rec, _, ok := h.load(w, r)
	if !ok {
		return
	}
	_, in, ok := h.decodeRecord(w, r, reqID)
	if !ok {
		return
	}
	updated, err := h.Service.Update(r.Context(), rec.ID, in)
	if err != nil {
		shared.FailError(w, h.Log, err, "cpe_update_failed", reqID)
		return
	}
	api.Success(w, updated, reqID)
}

func (h *Handler) handleReview(status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.GetUser(r.Context())
		reqID := middleware.GetRequestID(r.Context())
		id := chi.URLParam(r, "recordID")

		before, err := h.Service.Get(r.Context(), id)
		if err != nil {
			shared.FailError(w, h.Log, err, "cpe_review_failed", reqID)
			return
		}
		var reviewed cpe.Record
		if status == cpe.StatusApproved {
			reviewed, err = h.Service.Approve(r.Context(), id, user.UserID)
		} else {
			reviewed, err = h.Service.Reject(r.Context(), id, user.UserID)
		}
		if err != nil {
			shared.FailError(w, h.Log, err, "cpe_review_failed", reqID)
			return
		}

		shared.RecordAudit(r.Context(), h.Log, h.Audit, user.UserID, audit.ActionCPEReview, "cpe_record", id, before, reviewed)
		shared.NotifyTeacher(r.Context(), h.Log, h.Recipients, h.Notifier, reviewed.TeacherID, notifications.TypeCPEReviewed,
			"CPE record "+status, "Your CPE record \""+reviewed.CourseTitle+"\" was "+status+".")
		api.Success(w, reviewed, reqID)
	}
}

// teacherYear resolves the {teacherID} path parameter and ?year=, enforcing
// teacher ownership.
func (h *Handler) teacherYear(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	teacherID := chi.URLParam(r, "teacherID")
	if teacherID == "me" {
		teacherID = user.TeacherID
	}
	if !teachers.CanView(user, teacherID) {
		api.Fail(w, http.StatusNotFound, "not_found", teachers.ErrNotFound.Error(), reqID)
		return "", 0, false
	}
	year, ok := shared.Year(r, h.Now())
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_year", "year must be between 2000 and 2100", reqID)
		return "", 0, false
	}
	return teacherID, year, true
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	teacherID, year, ok := h.teacherYear(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	summary, err := h.Service.Summary(r.Context(), teacherID, year)
	if err != nil {
		shared.FailError(w, h.Log, err, "cpe_summary_failed", reqID)
		return
	}
	api.Success(w, summary, reqID)
}

func (h *Handler) handleDetails(w http.ResponseWriter, r *http.Request) {
	teacherID, year, ok := h.teacherYear(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	details, err := h.Service.TeacherDetails(r.Context(), teacherID, year)
	if err != nil {
		shared.FailError(w, h.Log, err, "cpe_details_failed", reqID)
		return
	}
	api.Success(w, details, reqID)
}

func (h *Handler) handleCompliance(w http.ResponseWriter, r *http.Request) {
	teacherID, year, ok := h.teacherYear(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	compliance, err := h.Service.CheckCompliance(r.Context(), teacherID, year)
	if err != nil {
		shared.FailError(w, h.Log, err, "cpe_compliance_failed", reqID)
		return
	}
	api.Success(w, compliance, reqID)
}
