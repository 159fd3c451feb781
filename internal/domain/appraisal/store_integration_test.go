package appraisal_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teacherhr/internal/domain/appraisal"
	"teacherhr/internal/domain/cpe"
	"teacherhr/internal/domain/kpi"
	"teacherhr/internal/domain/rubric"
	"teacherhr/internal/platform/dbtest"
)

func intPtr(v int) *int { return &v }

func TestWorkflowAgainstPostgres(t *testing.T) {
	pool := dbtest.Postgres(t)
	ctx := context.Background()

	teacherID := dbtest.Teacher(t, pool, "T-001", "Ada Mensah")
	principalID := dbtest.User(t, pool, "principal@school.test", appraisal.RolePrincipal)
	hrID := dbtest.User(t, pool, "hr@school.test", appraisal.RoleHRAdmin)

	kpis := kpi.NewService(kpi.NewStore(pool), nil)
	records := cpe.NewService(cpe.NewStore(pool), nil)
	svc, err := appraisal.NewService(appraisal.Deps{
		Store:   appraisal.NewStore(pool),
		Rubrics: rubric.NewService(rubric.NewStore(pool), nil),
		CPE:     records,
		KPIs:    kpis,
	})
	require.NoError(t, err)

	as := func(actorID, role string, id string, to appraisal.State) error {
		_, err := svc.Transition(ctx, appraisal.TransitionRequest{AppraisalID: id, To: to, ActorID: actorID, ActorRole: role})
		return err
	}

	a, err := svc.Create(ctx, appraisal.CreateInput{TeacherID: teacherID, AppraisalYear: 2026})
	require.NoError(t, err)
	_, err = svc.Create(ctx, appraisal.CreateInput{TeacherID: teacherID, AppraisalYear: 2026})
	require.ErrorIs(t, err, appraisal.ErrAlreadyExists)

	require.ErrorIs(t, as(teacherID, appraisal.RoleTeacher, a.ID, appraisal.StateKPIProposal), appraisal.ErrGuardViolation)
	_, err = svc.UpdateSelf(ctx, a.ID, appraisal.SelfInput{
		TeachingLoad:   intPtr(22),
		SelfAssessment: appraisal.SelfAssessment{Strengths: "lab work", AreasForImprovement: "differentiation"},
	})
	require.NoError(t, err)
	require.NoError(t, as(teacherID, appraisal.RoleTeacher, a.ID, appraisal.StateKPIProposal))

	req, err := kpis.Create(ctx, teacherID, kpi.RequestInput{Title: "Raise lab pass rate"})
	require.NoError(t, err)
	require.ErrorIs(t, as(teacherID, appraisal.RoleTeacher, a.ID, appraisal.StatePendingFEO), appraisal.ErrGuardViolation)
	_, err = kpis.Approve(ctx, req.ID, principalID, "")
	require.NoError(t, err)
	require.NoError(t, as(teacherID, appraisal.RoleTeacher, a.ID, appraisal.StatePendingFEO))

	sheet := appraisal.ScoreSheet{
		CurriculumContent: intPtr(20), AlignedCurriculum: intPtr(10), StudentOutcome: intPtr(20),
		ClassroomManagement: intPtr(10), MarkingStudentsWork: intPtr(10), CocurricularActivities: intPtr(15),
		DutiesOtherTasks: intPtr(10), EventManagement: intPtr(10), OtherResponsibilities: intPtr(10),
		Competition: intPtr(10), CommunityQuantity: intPtr(5), CommunityQuality: intPtr(10),
	}
	_, err = svc.UpdateScores(ctx, a.ID, appraisal.ScoresInput{Scores: sheet})
	require.NoError(t, err)

	attended := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	for _, hours := range []float64{18, 12} {
		rec, err := records.Create(ctx, teacherID, cpe.RecordInput{CourseTitle: "Workshop", DateAttended: attended, DurationHours: hours})
		require.NoError(t, err)
		_, err = records.Approve(ctx, rec.ID, hrID)
		require.NoError(t, err)
	}

	require.NoError(t, as(principalID, appraisal.RolePrincipal, a.ID, appraisal.StatePendingPrincipal))
	scored, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, scored.FinalWeightedScore)
	// Part 2 and Part 3 are maxed; 30 CPE points score 75.
	assert.InDelta(t, 95.0, *scored.FinalWeightedScore, 1e-9)
	assert.InDelta(t, 75.0, *scored.CPEScore, 1e-9)

	// Each reviewer sends only their own fields; neither write drops the other's.
	_, err = svc.UpdateReview(ctx, a.ID, appraisal.ReviewInput{PrincipalOverallComment: strPtr("excellent")})
	require.NoError(t, err)
	reviewed, err := svc.UpdateReview(ctx, a.ID, appraisal.ReviewInput{HROverallComment: strPtr("signed off")})
	require.NoError(t, err)
	assert.Equal(t, "excellent", reviewed.Review.PrincipalOverallComment)
	assert.Equal(t, "signed off", reviewed.Review.HROverallComment)
	require.NoError(t, as(principalID, appraisal.RolePrincipal, a.ID, appraisal.StatePendingHR))

	err = as(hrID, appraisal.RoleHRAdmin, a.ID, appraisal.StateCompleted)
	require.ErrorIs(t, err, appraisal.ErrGuardViolation)
	pending, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, appraisal.StatePendingHR, pending.Status)
	assert.False(t, pending.IsLocked)

	rec, err := records.Create(ctx, teacherID, cpe.RecordInput{CourseTitle: "Conference", DateAttended: attended, DurationHours: 10})
	require.NoError(t, err)
	_, err = records.Approve(ctx, rec.ID, hrID)
	require.NoError(t, err)
	require.NoError(t, as(hrID, appraisal.RoleHRAdmin, a.ID, appraisal.StateCompleted))

	done, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, done.IsLocked)
	assert.NotNil(t, done.CompletedAt)
	_, err = svc.UpdateReview(ctx, a.ID, appraisal.ReviewInput{HROverallComment: strPtr("changed")})
	assert.ErrorIs(t, err, appraisal.ErrLocked)

	history, err := svc.History(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, history, 5)
	assert.Equal(t, appraisal.StateDraft, history[0].FromStatus)
	assert.Equal(t, appraisal.StateCompleted, history[4].ToStatus)
	assert.Equal(t, hrID, history[4].ActorID)
}

func TestConcurrentTransitionsAgainstPostgres(t *testing.T) {
	pool := dbtest.Postgres(t)
	ctx := context.Background()
	teacherID := dbtest.Teacher(t, pool, "T-002", "Kofi Boateng")

	store := appraisal.NewStore(pool)
	svc, err := appraisal.NewService(appraisal.Deps{
		Store:   store,
		Rubrics: rubric.NewService(rubric.NewStore(pool), nil),
		CPE:     cpe.NewService(cpe.NewStore(pool), nil),
		KPIs:    kpi.NewService(kpi.NewStore(pool), nil),
	})
	require.NoError(t, err)

	a, err := svc.Create(ctx, appraisal.CreateInput{TeacherID: teacherID, AppraisalYear: 2026})
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
    UPDATE annual_appraisals
    SET status = 'pending_principal', principal_overall_comment = 'ok'
    WHERE id = $1
  `, a.ID)
	require.NoError(t, err)

	targets := []appraisal.State{appraisal.StatePendingHR, appraisal.StateDisputed}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for n, to := range targets {
		wg.Add(1)
		go func(n int, to appraisal.State) {
			defer wg.Done()
			_, errs[n] = svc.Transition(ctx, appraisal.TransitionRequest{AppraisalID: a.ID, To: to, ActorID: "p1", ActorRole: appraisal.RolePrincipal})
		}(n, to)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, appraisal.ErrInvalidTransition), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, wins)

	history, err := store.History(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func strPtr(v string) *string { return &v }
