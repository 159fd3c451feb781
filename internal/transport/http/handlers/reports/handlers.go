package reportshandler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"teacherhr/internal/domain/appraisal"
	"teacherhr/internal/domain/audit"
	"teacherhr/internal/domain/auth"
	"teacherhr/internal/domain/cpe"
	"teacherhr/internal/domain/reports"
	"teacherhr/internal/domain/teachers"
	"teacherhr/internal/platform/jobs"
	"teacherhr/internal/platform/logger"
	"teacherhr/internal/transport/http/api"
	"teacherhr/internal/transport/http/middleware"
	"teacherhr/internal/transport/http/shared"
)

type Service interface {
	Dashboard(ctx context.Context, user auth.UserContext, year int) (reports.Dashboard, error)
	BulkCompliance(ctx context.Context, year int, departmentID string) (cpe.BulkReport, error)
	DepartmentCompliance(ctx context.Context, year int) (cpe.DepartmentReport, error)
	ScoreSheetPDF(ctx context.Context, appraisalID string) (appraisal.Appraisal, []byte, error)
}

type JobRunner interface {
	Trigger(ctx context.Context, jobType string, year int) (any, error)
	Runs(ctx context.Context, jobType string, limit int) ([]jobs.Run, error)
}

type Handler struct {
	Service Service
	Jobs    JobRunner
	Perms   middleware.PermissionStore
	Audit   shared.Auditor
	Log     *logger.Logger
	Now     func() time.Time
}

func NewHandler(service Service, runner JobRunner, perms middleware.PermissionStore, auditor shared.Auditor, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{Service: service, Jobs: runner, Perms: perms, Audit: auditor, Log: log, Now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	reportsRead := middleware.RequirePermission(auth.PermReportsRead, h.Perms)
	jobsRun := middleware.RequirePermission(auth.PermJobsRun, h.Perms)

	r.Route("/reports", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermAppraisalRead, h.Perms)).Get("/dashboard", h.handleDashboard)
		r.With(middleware.RequirePermission(auth.PermAppraisalRead, h.Perms)).Get("/appraisals/{appraisalID}/pdf", h.handleScoreSheet)
		r.With(reportsRead).Get("/cpe/compliance", h.handleBulkCompliance)
		r.With(reportsRead).Get("/cpe/departments", h.handleDepartmentCompliance)
		r.With(jobsRun).Get("/jobs", h.handleJobRuns)
		r.With(jobsRun).Post("/jobs/{jobType}", h.handleTriggerJob)
	})
}

func (h *Handler) year(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, ok := shared.Year(r, h.Now())
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_year", "year must be between 2000 and 2100", middleware.GetRequestID(r.Context()))
	}
	return year, ok
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	year, ok := h.year(w, r)
	if !ok {
		return
	}
	dashboard, err := h.Service.Dashboard(r.Context(), user, year)
	if err != nil {
		shared.FailError(w, h.Log, err, "dashboard_failed", reqID)
		return
	}
	api.Success(w, dashboard, reqID)
}

func (h *Handler) handleBulkCompliance(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	year, ok := h.year(w, r)
	if !ok {
		return
	}
	report, err := h.Service.BulkCompliance(r.Context(), year, r.URL.Query().Get("departmentId"))
	if err != nil {
		shared.FailError(w, h.Log, err, "compliance_report_failed", reqID)
		return
	}
	api.Success(w, report, reqID)
}

func (h *Handler) handleDepartmentCompliance(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	year, ok := h.year(w, r)
	if !ok {
		return
	}
	report, err := h.Service.DepartmentCompliance(r.Context(), year)
	if err != nil {
		shared.FailError(w, h.Log, err, "compliance_report_failed", reqID)
		return
	}
	api.Success(w, report, reqID)
}

func (h *Handler) handleScoreSheet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	a, pdf, err := h.Service.ScoreSheetPDF(r.Context(), chi.URLParam(r, "appraisalID"))
	if err != nil {
		shared.FailError(w, h.Log, err, "score_sheet_failed", reqID)
		return
	}
	if !teachers.CanView(user, a.TeacherID) {
		api.Fail(w, http.StatusNotFound, "not_found", appraisal.ErrNotFound.Error(), reqID)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=appraisal-%d-%s.pdf", a.AppraisalYear, a.ID))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	if _, err := w.Write(pdf); err != nil {
		h.Log.Warn("score sheet write failed", "appraisalId", a.ID, "err", err)
	}
}

func (h *Handler) handleJobRuns(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 50, 200)
	runs, err := h.Jobs.Runs(r.Context(), r.URL.Query().Get("jobType"), page.Limit)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_runs_failed", "failed to list job runs", reqID)
		return
	}
	if runs == nil {
		runs = []jobs.Run{}
	}
	api.Success(w, runs, reqID)
}

// handleTriggerJob runs the job inline and returns its details. A failed run
// is still recorded in job_runs.
func (h *Handler) handleTriggerJob(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	year, ok := h.year(w, r)
	if !ok {
		return
	}
	jobType := chi.URLParam(r, "jobType")

	details, err := h.Jobs.Trigger(r.Context(), jobType, year)
	if errors.Is(err, jobs.ErrUnknownJob) {
		api.Fail(w, http.StatusNotFound, "unknown_job", err.Error(), reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Log, h.Audit, user.UserID, audit.ActionJobTriggered, "job", jobType, nil, map[string]any{"year": year, "ok": err == nil})
	if err != nil {
		api.FailWithDetails(w, http.StatusInternalServerError, "job_failed", err.Error(), details, reqID)
		return
	}
	api.Success(w, map[string]any{"jobType": jobType, "year": year, "details": details}, reqID)
}
