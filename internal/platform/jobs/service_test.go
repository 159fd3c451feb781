package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teacherhr/internal/domain/appraisal"
	"teacherhr/internal/domain/cpe"
	"teacherhr/internal/domain/scoring"
)

type memRuns struct {
	mu   sync.Mutex
	runs []Run
}

func (m *memRuns) Start(_ context.Context, jobType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := string(rune('a' + len(m.runs)))
	m.runs = append(m.runs, Run{ID: id, JobType: jobType, Status: StatusRunning})
	return id, nil
}

func (m *memRuns) Finish(_ context.Context, runID, status string, details []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == runID {
			m.runs[i].Status = status
			m.runs[i].Details = details
		}
	}
	return nil
}

func (m *memRuns) List(_ context.Context, _ string, _ int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Run(nil), m.runs...), nil
}

type fakeAppraisals struct {
	list     []appraisal.Appraisal
	failID   string
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (f *fakeAppraisals) List(_ context.Context, _ appraisal.Filter) ([]appraisal.Appraisal, error) {
	return f.list, nil
}

func (f *fakeAppraisals) Recalculate(_ context.Context, id string) (appraisal.Appraisal, scoring.Result, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	f.calls.Add(1)
	time.Sleep(5 * time.Millisecond)
	if id == f.failID {
		return appraisal.Appraisal{}, scoring.Result{}, errors.New("rubric unavailable")
	}
	return appraisal.Appraisal{ID: id}, scoring.Result{}, nil
}

type staticCompliance struct{ report cpe.BulkReport }

func (s staticCompliance) BulkReport(context.Context, int, string) (cpe.BulkReport, error) {
	return s.report, nil
}

func scored(id string, locked bool) appraisal.Appraisal {
	score := 70.0
	return appraisal.Appraisal{ID: id, FinalWeightedScore: &score, IsLocked: locked}
}

func TestRecalculateYearBoundedAndTolerant(t *testing.T) {
	fake := &fakeAppraisals{failID: "a3"}
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5", "a6"} {
		fake.list = append(fake.list, scored(id, false))
	}
	fake.list = append(fake.list, scored("locked", true), appraisal.Appraisal{ID: "unscored"})

	runs := &memRuns{}
	svc := New(runs, fake, staticCompliance{}, Options{Concurrency: 2}, nil)

	out, err := svc.Trigger(context.Background(), JobRecalculateYear, 2026)
	require.NoError(t, err)
	summary := out.(RecalculationSummary)

	assert.Equal(t, 8, summary.Considered)
	assert.Equal(t, 5, summary.Recalculated)
	assert.Equal(t, 2, summary.Skipped)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "a3", summary.Failed[0].AppraisalID)
	assert.EqualValues(t, 6, fake.calls.Load())
	assert.LessOrEqual(t, fake.peak.Load(), int32(2))

	recorded, err := svc.Runs(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, StatusCompleted, recorded[0].Status)
}

func TestRecalculateYearRetriesUnscoredPastScoring(t *testing.T) {
	fake := &fakeAppraisals{list: []appraisal.Appraisal{
		{ID: "hook-failed", Status: appraisal.StatePendingHR},
		{ID: "revision", Status: appraisal.StateRevisionRequired},
		{ID: "not-yet", Status: appraisal.StatePendingFEO},
		{ID: "done", Status: appraisal.StateCompleted, IsLocked: true},
	}}
	svc := New(&memRuns{}, fake, staticCompliance{}, Options{Concurrency: 1}, nil)

	out, err := svc.Trigger(context.Background(), JobRecalculateYear, 2026)
	require.NoError(t, err)
	summary := out.(RecalculationSummary)
	assert.Equal(t, 2, summary.Recalculated)
	assert.Equal(t, 2, summary.Skipped)
	assert.EqualValues(t, 2, fake.calls.Load())
}

func TestComplianceSnapshotRecordsRun(t *testing.T) {
	report := cpe.BulkReport{
		Year:    2026,
		Summary: cpe.BulkSummary{TotalTeachers: 2, CompliantCount: 1, NonCompliantCount: 1, ComplianceRate: 50},
		NonCompliant: []cpe.TeacherCompliance{
			{TeacherPoints: cpe.TeacherPoints{TeacherID: "t2"}},
		},
	}
	runs := &memRuns{}
	now := func() time.Time { return time.Date(2026, 11, 1, 2, 0, 0, 0, time.UTC) }
	svc := New(runs, &fakeAppraisals{}, staticCompliance{report: report}, Options{Now: now}, nil)

	_, err := svc.Trigger(context.Background(), JobComplianceSnapshot, 0)
	require.NoError(t, err)

	require.Len(t, runs.runs, 1)
	var snap ComplianceSnapshot
	require.NoError(t, json.Unmarshal(runs.runs[0].Details, &snap))
	assert.Equal(t, 2026, snap.Year)
	assert.Equal(t, []string{"t2"}, snap.NonCompliant)
}

func TestTriggerUnknownJob(t *testing.T) {
	svc := New(&memRuns{}, &fakeAppraisals{}, staticCompliance{}, Options{}, nil)
	_, err := svc.Trigger(context.Background(), "payroll_run", 2026)
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := New(&memRuns{}, &fakeAppraisals{}, staticCompliance{}, Options{ComplianceCron: "not a cron"}, nil)
	assert.Error(t, svc.Start(ctx))
}
