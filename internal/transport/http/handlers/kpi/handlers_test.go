package kpihandler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teacherhr/internal/domain/audit"
	"teacherhr/internal/domain/auth"
	"teacherhr/internal/domain/kpi"
	"teacherhr/internal/domain/notifications"
	"teacherhr/internal/transport/http/middleware"
)

type fakeService struct {
	requests map[string]kpi.Request
	filter   kpi.Filter
}

func (f *fakeService) Create(_ context.Context, teacherID string, in kpi.RequestInput) (kpi.Request, error) {
	req := kpi.Request{ID: "k-new", TeacherID: teacherID, Title: in.Title, Status: kpi.StatusPending}
	f.requests[req.ID] = req
	return req, nil
}

func (f *fakeService) Get(_ context.Context, id string) (kpi.Request, error) {
	req, ok := f.requests[id]
	if !ok {
		return kpi.Request{}, kpi.ErrNotFound
	}
	return req, nil
}

func (f *fakeService) List(_ context.Context, filter kpi.Filter) ([]kpi.Request, error) {
	f.filter = filter
	return nil, nil
}

func (f *fakeService) review(id, status, reviewerID, comments string) (kpi.Request, error) {
	req, ok := f.requests[id]
	if !ok {
		return kpi.Request{}, kpi.ErrNotFound
	}
	if req.Status != kpi.StatusPending {
		return kpi.Request{}, kpi.ErrAlreadyReviewed
	}
	req.Status, req.ReviewerID, req.ReviewerComments = status, reviewerID, comments
	f.requests[id] = req
	return req, nil
}

func (f *fakeService) Approve(_ context.Context, id, reviewerID, comments string) (kpi.Request, error) {
	return f.review(id, kpi.StatusApproved, reviewerID, comments)
}

func (f *fakeService) Reject(_ context.Context, id, reviewerID, comments string) (kpi.Request, error) {
	if comments == "" {
		return kpi.Request{}, kpi.ErrInvalidRequest
	}
	return f.review(id, kpi.StatusRejected, reviewerID, comments)
}

type recorder struct {
	actions       []string
	notifications []string
}

func (r *recorder) Record(_ context.Context, _, action, _, _ string, _, _ any) error {
	r.actions = append(r.actions, action)
	return nil
}

func (r *recorder) Create(_ context.Context, userID, ntype, _, _ string) error {
	r.notifications = append(r.notifications, userID+":"+ntype)
	return nil
}

func (r *recorder) UserIDForTeacher(_ context.Context, teacherID string) (string, error) {
	return "user-" + teacherID, nil
}

func setup(user auth.UserContext) (http.Handler, *fakeService, *recorder) {
	svc := &fakeService{requests: map[string]kpi.Request{
		"k1": {ID: "k1", TeacherID: "t1", Title: "Lab pass rate", Status: kpi.StatusPending},
	}}
	rec := &recorder{}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), user)))
		})
	})
	NewHandler(svc, auth.StaticPermissions{}, rec, rec, rec, nil).RegisterRoutes(r)
	return r, svc, rec
}

func send(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTeacherCreatesForSelf(t *testing.T) {
	h, svc, _ := setup(auth.UserContext{UserID: "u1", Role: auth.RoleTeacher, TeacherID: "t1"})

	rec := send(h, http.MethodPost, "/kpi-requests", `{"kpiTitle":"Reading club"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "t1", svc.requests["k-new"].TeacherID)

	rec = send(h, http.MethodPost, "/kpi-requests", `{"description":"no title"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(h, http.MethodGet, "/kpi-requests?teacherId=t9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", svc.filter.TeacherID)
}

func TestTeacherCannotReview(t *testing.T) {
	h, _, _ := setup(auth.UserContext{UserID: "u1", Role: auth.RoleTeacher, TeacherID: "t1"})
	rec := send(h, http.MethodPost, "/kpi-requests/k1/approve", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestApproveAuditsAndNotifies(t *testing.T) {
	h, svc, side := setup(auth.UserContext{UserID: "p1", Role: auth.RolePrincipal})

	rec := send(h, http.MethodPost, "/kpi-requests/k1/approve", `{"comments":"good target"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, kpi.StatusApproved, svc.requests["k1"].Status)
	assert.Equal(t, "p1", svc.requests["k1"].ReviewerID)
	assert.Equal(t, []string{audit.ActionKPIReview}, side.actions)
	assert.Equal(t, []string{"user-t1:" + notifications.TypeKPIReviewed}, side.notifications)

	rec = send(h, http.MethodPost, "/kpi-requests/k1/reject", `{"comments":"too late"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, side.actions, 1)
}

func TestRejectRequiresComments(t *testing.T) {
	h, _, side := setup(auth.UserContext{UserID: "p1", Role: auth.RolePrincipal})
	rec := send(h, http.MethodPost, "/kpi-requests/k1/reject", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, side.notifications)

	rec = send(h, http.MethodPost, "/kpi-requests/missing/approve", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
