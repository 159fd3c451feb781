package teachershandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"teacherhr/internal/domain/audit"
	"teacherhr/internal/domain/auth"
	"teacherhr/internal/domain/teachers"
	"teacherhr/internal/platform/logger"
	"teacherhr/internal/transport/http/api"
	"teacherhr/internal/transport/http/middleware"
	"teacherhr/internal/transport/http/shared"
)

type Service interface {
	List(ctx context.Context, filter teachers.Filter) ([]teachers.Teacher, error)
	Get(ctx context.Context, teacherID string) (teachers.Teacher, error)
	Create(ctx context.Context, in teachers.TeacherInput) (teachers.Teacher, error)
	Update(ctx context.Context, teacherID string, in teachers.TeacherInput) (teachers.Teacher, error)
	ListDepartments(ctx context.Context) ([]teachers.Department, error)
	CreateDepartment(ctx context.Context, in teachers.DepartmentInput) (teachers.Department, error)
}

type Handler struct {
	Service Service
	Perms   middleware.PermissionStore
	Audit   shared.Auditor
	Log     *logger.Logger
}

func NewHandler(service Service, perms middleware.PermissionStore, auditor shared.Auditor, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{Service: service, Perms: perms, Audit: auditor, Log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermTeachersRead, h.Perms)
	write := middleware.RequirePermission(auth.PermTeachersWrite, h.Perms)

	r.Route("/teachers", func(r chi.Router) {
		r.With(read).Get("/", h.handleList)
		r.With(write).Post("/", h.handleCreate)
		r.Get("/{teacherID}", h.handleGet)
		r.With(write).Put("/{teacherID}", h.handleUpdate)
	})
	r.Route("/departments", func(r chi.Router) {
		r.With(read).Get("/", h.handleListDepartments)
		r.With(write).Post("/", h.handleCreateDepartment)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	filter := teachers.Filter{
		DepartmentID: r.URL.Query().Get("departmentId"),
		ActiveOnly:   r.URL.Query().Get("active") == "true",
	}
	list, err := h.Service.List(r.Context(), filter)
	if err != nil {
		shared.FailError(w, h.Log, err, "teacher_list_failed", reqID)
		return
	}
	if list == nil {
		list = []teachers.Teacher{}
	}
	api.Success(w, list, reqID)
}

// handleGet is open to any signed-in user so teachers can load their own
// profile; CanView keeps them out of everyone else's.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	teacherID := chi.URLParam(r, "teacherID")
	if teacherID == "me" {
		teacherID = user.TeacherID
	}
	if !teachers.CanView(user, teacherID) {
		api.Fail(w, http.StatusNotFound, "not_found", teachers.ErrNotFound.Error(), reqID)
		return
	}
	t, err := h.Service.Get(r.Context(), teacherID)
	if err != nil {
		shared.FailError(w, h.Log, err, "teacher_get_failed", reqID)
		return
	}
	api.Success(w, t, reqID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	var payload teachers.TeacherInput
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	created, err := h.Service.Create(r.Context(), payload)
	if err != nil {
		shared.FailError(w, h.Log, err, "teacher_create_failed", reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Log, h.Audit, user.UserID, audit.ActionTeacherWrite, "teacher", created.ID, nil, created)
	api.Created(w, created, reqID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	var payload teachers.TeacherInput
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	teacherID := chi.URLParam(r, "teacherID")
	before, err := h.Service.Get(r.Context(), teacherID)
	if err != nil {
		shared.FailError(w, h.Log, err, "teacher_update_failed", reqID)
		return
	}
	updated, err := h.Service.Update(r.Context(), teacherID, payload)
	if err != nil {
		shared.FailError(w, h.Log, err, "teacher_update_failed", reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Log, h.Audit, user.UserID, audit.ActionTeacherWrite, "teacher", teacherID, before, updated)
	api.Success(w, updated, reqID)
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	list, err := h.Service.ListDepartments(r.Context())
	if err != nil {
		shared.FailError(w, h.Log, err, "department_list_failed", reqID)
		return
	}
	if list == nil {
		list = []teachers.Department{}
	}
	api.Success(w, list, reqID)
}

func (h *Handler) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload teachers.DepartmentInput
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	created, err := h.Service.CreateDepartment(r.Context(), payload)
	if err != nil {
		shared.FailError(w, h.Log, err, "department_create_failed", reqID)
		return
	}
	api.Created(w, created, reqID)
}
