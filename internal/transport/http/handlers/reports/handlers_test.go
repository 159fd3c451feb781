package reportshandler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teacherhr/internal/domain/appraisal"
	"teacherhr/internal/domain/audit"
	"teacherhr/internal/domain/auth"
	"teacherhr/internal/domain/cpe"
	"teacherhr/internal/domain/reports"
	"teacherhr/internal/platform/jobs"
	"teacherhr/internal/transport/http/middleware"
)

type fakeReports struct {
	dashboardYear int
	bulkDept      string
}

func (f *fakeReports) Dashboard(_ context.Context, user auth.UserContext, year int) (reports.Dashboard, error) {
	f.dashboardYear = year
	return reports.Dashboard{Role: user.Role, Year: year}, nil
}

func (f *fakeReports) BulkCompliance(_ context.Context, year int, departmentID string) (cpe.BulkReport, error) {
	f.bulkDept = departmentID
	return cpe.BulkReport{Year: year}, nil
}

func (f *fakeReports) DepartmentCompliance(_ context.Context, year int) (cpe.DepartmentReport, error) {
	return cpe.DepartmentReport{Year: year}, nil
}

func (f *fakeReports) ScoreSheetPDF(_ context.Context, id string) (appraisal.Appraisal, []byte, error) {
	if id != "a1" {
		return appraisal.Appraisal{}, nil, appraisal.ErrNotFound
	}
	return appraisal.Appraisal{ID: "a1", TeacherID: "t1", AppraisalYear: 2026}, []byte("%PDF-1.3 fake"), nil
}

type fakeJobs struct {
	triggered []string
}

func (f *fakeJobs) Trigger(_ context.Context, jobType string, year int) (any, error) {
	switch jobType {
	case jobs.JobRecalculateYear:
		f.triggered = append(f.triggered, fmt.Sprintf("%s:%d", jobType, year))
		return jobs.RecalculationSummary{Year: year}, nil
	case jobs.JobComplianceSnapshot:
		return nil, errors.New("database unavailable")
	}
	return nil, fmt.Errorf("%w: %s", jobs.ErrUnknownJob, jobType)
}

func (f *fakeJobs) Runs(context.Context, string, int) ([]jobs.Run, error) {
	return []jobs.Run{{ID: "r1", JobType: jobs.JobRecalculateYear, Status: jobs.StatusCompleted}}, nil
}

type auditLog []string

func (a *auditLog) Record(_ context.Context, _, action, _, entityID string, _, _ any) error {
	*a = append(*a, action+":"+entityID)
	return nil
}

type fixture struct {
	reports *fakeReports
	jobs    *fakeJobs
	audit   *auditLog
}

func (f *fixture) serve(user auth.UserContext, method, path string) *httptest.ResponseRecorder {
	h := NewHandler(f.reports, f.jobs, auth.StaticPermissions{}, f.audit, nil)
	h.Now = func() time.Time { return time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest(method, path, nil)
	req = req.WithContext(middleware.WithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func newFixture() *fixture {
	return &fixture{reports: &fakeReports{}, jobs: &fakeJobs{}, audit: &auditLog{}}
}

var (
	teacher   = auth.UserContext{UserID: "u1", Role: auth.RoleTeacher, TeacherID: "t1"}
	stranger  = auth.UserContext{UserID: "u2", Role: auth.RoleTeacher, TeacherID: "t2"}
	principal = auth.UserContext{UserID: "p1", Role: auth.RolePrincipal}
	hr        = auth.UserContext{UserID: "h1", Role: auth.RoleHRAdmin}
)

func TestDashboardDefaultsToCurrentYear(t *testing.T) {
	f := newFixture()
	rec := f.serve(teacher, http.MethodGet, "/reports/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2026, f.reports.dashboardYear)

	rec = f.serve(teacher, http.MethodGet, "/reports/dashboard?year=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestComplianceReportsNeedReportsPermission(t *testing.T) {
	f := newFixture()
	assert.Equal(t, http.StatusForbidden, f.serve(teacher, http.MethodGet, "/reports/cpe/compliance").Code)

	rec := f.serve(principal, http.MethodGet, "/reports/cpe/compliance?year=2025&departmentId=d1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "d1", f.reports.bulkDept)
	assert.Equal(t, http.StatusOK, f.serve(hr, http.MethodGet, "/reports/cpe/departments").Code)
}

func TestScoreSheetDownload(t *testing.T) {
	f := newFixture()
	rec := f.serve(teacher, http.MethodGet, "/reports/appraisals/a1/pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "appraisal-2026-a1.pdf")
	assert.Equal(t, "%PDF-1.3 fake", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, f.serve(stranger, http.MethodGet, "/reports/appraisals/a1/pdf").Code)
	assert.Equal(t, http.StatusNotFound, f.serve(hr, http.MethodGet, "/reports/appraisals/zz/pdf").Code)
}

func TestTriggerJobs(t *testing.T) {
	f := newFixture()
	assert.Equal(t, http.StatusForbidden, f.serve(principal, http.MethodPost, "/reports/jobs/"+jobs.JobRecalculateYear).Code)

	rec := f.serve(hr, http.MethodPost, "/reports/jobs/"+jobs.JobRecalculateYear+"?year=2025")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{jobs.JobRecalculateYear + ":2025"}, f.jobs.triggered)

	rec = f.serve(hr, http.MethodPost, "/reports/jobs/"+jobs.JobComplianceSnapshot)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = f.serve(hr, http.MethodPost, "/reports/jobs/payroll_run")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, []string{
		audit.ActionJobTriggered + ":" + jobs.JobRecalculateYear,
		audit.ActionJobTriggered + ":" + jobs.JobComplianceSnapshot,
	}, []string(*f.audit))

	rec = f.serve(hr, http.MethodGet, "/reports/jobs")
	assert.Equal(t, http.StatusOK, rec.Code)
}
