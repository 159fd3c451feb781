package appraisal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teacherhr/internal/domain/rubric"
	"teacherhr/internal/domain/scoring"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

var fixedNow = time.Date(2026, 11, 30, 9, 0, 0, 0, time.UTC)

type harness struct {
	svc     *Service
	store   *memStore
	cpe     *cpeTotals
	kpis    kpiCounts
	sink    *recordingSink
	metrics *countingRecorder
	audit   *recordingAuditor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:   newMemStore(),
		cpe:     &cpeTotals{},
		kpis:    kpiCounts{},
		sink:    &recordingSink{},
		metrics: &countingRecorder{},
		audit:   &recordingAuditor{},
	}
	svc, err := NewService(Deps{
		Store:   h.store,
		Rubrics: staticRubrics{r: rubric.Default()},
		CPE:     h.cpe,
		KPIs:    h.kpis,
		Events:  h.sink,
		Audit:   h.audit,
		Metrics: h.metrics,
	})
	require.NoError(t, err)
	svc.Now = func() time.Time { return fixedNow }
	h.svc = svc
	return h
}

// fullScores is a sheet with every sub-score at its maximum.
func fullScores() ScoreSheet {
	return ScoreSheet{
		CurriculumContent:      intPtr(20),
		AlignedCurriculum:      intPtr(10),
		StudentOutcome:         intPtr(20),
		ClassroomManagement:    intPtr(10),
		MarkingStudentsWork:    intPtr(10),
		CocurricularActivities: intPtr(15),
		DutiesOtherTasks:       intPtr(10),
		EventManagement:        intPtr(10),
		OtherResponsibilities:  intPtr(10),
		Competition:            intPtr(10),
		CommunityQuantity:      intPtr(5),
		CommunityQuality:       intPtr(10),
	}
}

// readyAppraisal satisfies every guard so only the transition table decides.
func (h *harness) readyAppraisal(id string, status State) Appraisal {
	a := Appraisal{
		ID:            id,
		TeacherID:     "teacher-" + id,
		AppraisalYear: 2026,
		Status:        status,
		TeachingLoad:  intPtr(22),
		Scores:        fullScores(),
		Self:          SelfAssessment{Strengths: "planning", AreasForImprovement: "feedback"},
		Review:        Review{PrincipalOverallComment: "strong year", HROverallComment: "approved"},
	}
	h.cpe.set(a.TeacherID, a.AppraisalYear, 40)
	h.store.put(a)
	return a
}

func (h *harness) transition(id string, to State) (TransitionResult, error) {
	return h.svc.Transition(context.Background(), TransitionRequest{
		AppraisalID: id,
		To:          to,
		ActorID:     "user-1",
		ActorRole:   RoleHRAdmin,
	})
}

func TestTransitionTableIsExhaustive(t *testing.T) {
	for _, from := range States {
		for _, to := range States {
			h := newHarness(t)
			h.readyAppraisal("a1", from)
			allowed := false
			for _, target := range workflowTargets[from] {
				allowed = allowed || target == to
			}

			_, err := h.transition("a1", to)
			got, getErr := h.store.Get(context.Background(), "a1")
			require.NoError(t, getErr)
			if allowed {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, got.Status)
				continue
			}
			require.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", from, to)
			assert.Equal(t, from, got.Status, "%s -> %s must leave the status alone", from, to)
			assert.Empty(t, h.store.history)
		}
	}
}

func TestCompletedIsTerminalAndLocks(t *testing.T) {
	h := newHarness(t)
	h.readyAppraisal("a1", StatePendingHR)

	res, err := h.transition("a1", StateCompleted)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.NewState)
	assert.NotEmpty(t, res.HistoryEntryID)
	assert.True(t, res.Appraisal.IsLocked)
	require.NotNil(t, res.Appraisal.CompletedAt)
	assert.True(t, h.svc.Machine().Terminal(StateCompleted))

	for _, to := range States {
		_, err := h.transition("a1", to)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}

	ctx := context.Background()
	_, err = h.svc.UpdateReview(ctx, "a1", ReviewInput{HROverallComment: strPtr("edited")})
	assert.ErrorIs(t, err, ErrLocked)
	_, _, err = h.svc.Recalculate(ctx, "a1")
	assert.ErrorIs(t, err, ErrLocked)
	_, err = h.svc.Override(ctx, "a1", "p1", RolePrincipal, OverrideInput{Score: 90, Justification: "late evidence"})
	assert.ErrorIs(t, err, ErrLocked)
	_, err = h.svc.UpdateScores(ctx, "a1", ScoresInput{Scores: fullScores()})
	assert.ErrorIs(t, err, ErrLocked)
}

func TestPendingFEOToCompletedIsInvalid(t *testing.T) {
	h := newHarness(t)
	h.readyAppraisal("a1", StatePendingFEO)

	_, err := h.transition("a1", StateCompleted)
	require.ErrorIs(t, err, ErrInvalidTransition)
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, StatePendingFEO, transitionErr.From)
	assert.Equal(t, StateCompleted, transitionErr.To)
	assert.Equal(t, 1, h.metrics.rejected["invalid_transition"])
}

func TestCompletionGuardRequiresCPEMinimum(t *testing.T) {
	h := newHarness(t)
	a := h.readyAppraisal("a1", StatePendingHR)
	h.cpe.set(a.TeacherID, a.AppraisalYear, 30)

	_, err := h.transition("a1", StateCompleted)
	require.ErrorIs(t, err, ErrGuardViolation)
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Contains(t, transitionErr.Condition, "CPE requirement not met")

	got, _ := h.store.Get(context.Background(), "a1")
	assert.Equal(t, StatePendingHR, got.Status)
	assert.False(t, got.IsLocked)
	assert.Nil(t, got.CompletedAt)
	assert.Empty(t, h.store.history)
	assert.Empty(t, h.sink.events)
}

func TestCompletionGuardUsesConfiguredRequirement(t *testing.T) {
	h := newHarness(t)
	h.cpe.required = 50
	a := h.readyAppraisal("a1", StatePendingHR)
	h.cpe.set(a.TeacherID, a.AppraisalYear, 45)

	_, err := h.transition("a1", StateCompleted)
	require.ErrorIs(t, err, ErrGuardViolation)
	assert.Contains(t, err.Error(), "45.00 of 50 approved points")

	h.cpe.set(a.TeacherID, a.AppraisalYear, 50)
	res, err := h.transition("a1", StateCompleted)
	require.NoError(t, err)
	assert.True(t, res.Appraisal.IsLocked)
}

func TestGuardFactsAreLoadedOutsideTheRowLock(t *testing.T) {
	h := newHarness(t)
	h.readyAppraisal("a1", StatePendingHR)
	var calls, underLock int
	h.cpe.checked = func() {
		calls++
		if h.store.applying.Load() {
			underLock++
		}
	}

	_, err := h.transition("a1", StateCompleted)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Zero(t, underLock)
}

func TestGuardFactsForUnknownAppraisal(t *testing.T) {
	h := newHarness(t)
	_, err := h.transition("missing", StateCompleted)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGuards(t *testing.T) {
	tests := []struct {
		name      string
		from      State
		to        State
		spoil     func(h *harness, a *Appraisal)
		condition string
	}{
		{
			name:      "self assessment incomplete",
			from:      StateDraft,
			to:        StateKPIProposal,
			spoil:     func(_ *harness, a *Appraisal) { a.Self.AreasForImprovement = "  " },
			condition: "self assessment",
		},
		{
			name:      "pending KPI requests",
			from:      StateKPIProposal,
			to:        StatePendingFEO,
			spoil:     func(h *harness, a *Appraisal) { h.kpis[a.TeacherID] = 2 },
			condition: "2 KPI request(s) still pending",
		},
		{
			name:      "FEO scoring incomplete",
			from:      StatePendingFEO,
			to:        StatePendingPrincipal,
			spoil:     func(_ *harness, a *Appraisal) { a.Scores.StudentOutcome = nil },
			condition: "FEO scoring is incomplete",
		},
		{
			name:      "principal comment missing",
			from:      StatePendingPrincipal,
			to:        StatePendingHR,
			spoil:     func(_ *harness, a *Appraisal) { a.Review.PrincipalOverallComment = "" },
			condition: "principal overall comment",
		},
		{
			name:      "HR comment missing",
			from:      StatePendingHR,
			to:        StateCompleted,
			spoil:     func(_ *harness, a *Appraisal) { a.Review.HROverallComment = "" },
			condition: "HR overall comment",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			a := h.readyAppraisal("a1", tc.from)
			tc.spoil(h, &a)
			h.store.put(a)

			_, err := h.transition("a1", tc.to)
			require.ErrorIs(t, err, ErrGuardViolation)
			assert.Contains(t, err.Error(), tc.condition)
			got, _ := h.store.Get(context.Background(), "a1")
			assert.Equal(t, tc.from, got.Status)
			assert.Equal(t, 1, h.metrics.rejected["guard_violation"])
		})
	}
}

func TestEnteringPendingPrincipalScoresTheAppraisal(t *testing.T) {
	h := newHarness(t)
	h.readyAppraisal("a1", StatePendingFEO)

	res, err := h.svc.Transition(context.Background(), TransitionRequest{
		AppraisalID: "a1",
		To:          StatePendingPrincipal,
		ActorID:     "feo-1",
		ActorRole:   RolePrincipal,
		Comment:     " scored ",
		Metadata:    map[string]any{"source": "test"},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Appraisal.FinalWeightedScore)
	assert.Equal(t, 100.0, *res.Appraisal.FinalWeightedScore)
	assert.Equal(t, 100.0, *res.Appraisal.Part2Score)
	assert.Equal(t, fixedNow, *res.Appraisal.CalculatedAt)

	history, err := h.svc.History(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, StatePendingFEO, history[0].FromStatus)
	assert.Equal(t, StatePendingPrincipal, history[0].ToStatus)
	assert.Equal(t, "feo-1", history[0].ActorID)
	assert.Equal(t, RolePrincipal, history[0].ActorRole)
	assert.Equal(t, "scored", history[0].Comment)
	assert.Equal(t, "test", history[0].Metadata["source"])

	require.Len(t, h.sink.events, 1)
	assert.Equal(t, res.HistoryEntryID, h.sink.events[0].HistoryEntryID)
	assert.Equal(t, "teacher-a1", h.sink.events[0].TeacherID)
	assert.Equal(t, 1, h.metrics.committed)
}

func TestScoringFailureDoesNotBlockTransition(t *testing.T) {
	h := newHarness(t)
	a := h.readyAppraisal("a1", StatePendingFEO)
	a.Scores.CurriculumContent = intPtr(25)
	h.store.put(a)

	res, err := h.transition("a1", StatePendingPrincipal)
	require.NoError(t, err)
	assert.Equal(t, StatePendingPrincipal, res.NewState)
	assert.Nil(t, res.Appraisal.FinalWeightedScore)
	assert.Equal(t, 1, h.metrics.scoring)

	_, _, err = h.svc.Recalculate(context.Background(), "a1")
	var violation *scoring.RubricViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "curriculum_content_score", violation.Field)
	assert.Equal(t, 25, violation.Value)
	assert.Equal(t, 20, violation.Max)
}

func TestStorageFailureIsRetryable(t *testing.T) {
	h := newHarness(t)
	h.readyAppraisal("a1", StateDraft)
	h.store.failWrites = errors.New("connection reset")

	_, err := h.transition("a1", StateKPIProposal)
	require.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, 1, h.metrics.rejected["persistence"])

	h.store.failWrites = nil
	_, err = h.transition("a1", StateKPIProposal)
	require.NoError(t, err)
}

func TestTransitionRequiresActor(t *testing.T) {
	h := newHarness(t)
	h.readyAppraisal("a1", StateDraft)
	_, err := h.svc.Transition(context.Background(), TransitionRequest{AppraisalID: "a1", To: StateKPIProposal})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = h.transition("missing", StateKPIProposal)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = h.transition("a1", State("archived"))
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConcurrentTransitionsHaveOneWinner(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newHarness(t)
		h.readyAppraisal("a1", StatePendingPrincipal)

		targets := []State{StatePendingHR, StateRevisionRequired}
		errs := make([]error, len(targets))
		var wg sync.WaitGroup
		start := make(chan struct{})
		for n, to := range targets {
			wg.Add(1)
			go func(n int, to State) {
				defer wg.Done()
				<-start
				_, errs[n] = h.transition("a1", to)
			}(n, to)
		}
		close(start)
		wg.Wait()

		var wins, invalid int
		for _, err := range errs {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrInvalidTransition):
				invalid++
			}
		}
		require.Equal(t, 1, wins)
		require.Equal(t, 1, invalid)
		require.Len(t, h.store.history, 1)
		got, _ := h.store.Get(context.Background(), "a1")
		assert.Equal(t, h.store.history[0].ToStatus, got.Status)
	}
}

func TestCalculateFinalScoreIsIdempotent(t *testing.T) {
	h := newHarness(t)
	a := h.readyAppraisal("a1", StatePendingPrincipal)
	a.Scores.CocurricularActivities = intPtr(7)
	a.TeachingLoad = intPtr(12)
	h.store.put(a)
	h.cpe.set(a.TeacherID, a.AppraisalYear, 13)

	first, err := h.svc.CalculateFinalScore(context.Background(), "a1")
	require.NoError(t, err)
	second, err := h.svc.CalculateFinalScore(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 90.0, first.Part2Score)
	assert.Equal(t, 32.5, first.CPEScore)

	got, _ := h.store.Get(context.Background(), "a1")
	assert.Nil(t, got.FinalWeightedScore, "calculation alone must not persist")
}

func TestOverride(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.readyAppraisal("a1", StatePendingPrincipal)
	input := OverrideInput{Score: 92.5, Justification: "moderated by panel"}

	_, err := h.svc.Override(ctx, "a1", "p1", RolePrincipal, input)
	require.ErrorIs(t, err, ErrOverrideNotAllowed, "scores not calculated yet")

	_, _, err = h.svc.Recalculate(ctx, "a1")
	require.NoError(t, err)

	_, err = h.svc.Override(ctx, "a1", "hr1", RoleHRAdmin, input)
	require.ErrorIs(t, err, ErrOverrideNotAllowed)
	_, err = h.svc.Override(ctx, "a1", "p1", RolePrincipal, OverrideInput{Score: 92.5})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = h.svc.Override(ctx, "a1", "p1", RolePrincipal, OverrideInput{Score: 120, Justification: "x"})
	require.ErrorIs(t, err, ErrInvalidInput)

	got, err := h.svc.Override(ctx, "a1", "p1", RolePrincipal, input)
	require.NoError(t, err)
	assert.Equal(t, 92.5, *got.FinalWeightedScore)
	assert.Equal(t, 100.0, *got.OriginalFinalScore)
	assert.Equal(t, "p1", got.OverriddenBy)
	require.Len(t, h.audit.calls, 1)
	assert.Equal(t, "appraisal.score_override", h.audit.calls[0].action)

	a, _ := h.store.Get(ctx, "a1")
	a.Scores.Competition = intPtr(0)
	h.store.put(a)
	recalculated, _, err := h.svc.Recalculate(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 92.5, *recalculated.FinalWeightedScore, "override stays in effect")
	assert.Less(t, *recalculated.OriginalFinalScore, 100.0)

	h.readyAppraisal("a2", StatePendingFEO)
	_, err = h.svc.Override(ctx, "a2", "p1", RolePrincipal, input)
	require.ErrorIs(t, err, ErrOverrideNotAllowed)
}

func TestUpdateScoresValidatesAgainstRubric(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.readyAppraisal("a1", StatePendingFEO)

	sheet := fullScores()
	sheet.CurriculumContent = intPtr(25)
	_, err := h.svc.UpdateScores(ctx, "a1", ScoresInput{Scores: sheet})
	require.ErrorIs(t, err, ErrRubricViolation)
	assert.Contains(t, err.Error(), "curriculum_content_score")
	got, _ := h.store.Get(ctx, "a1")
	assert.Equal(t, 20, *got.Scores.CurriculumContent, "nothing written")

	_, err = h.svc.UpdateScores(ctx, "a1", ScoresInput{Scores: fullScores(), Personality: Personality{Resilience: intPtr(11)}})
	require.ErrorIs(t, err, ErrInvalidInput)

	updated, err := h.svc.UpdateScores(ctx, "a1", ScoresInput{Scores: fullScores(), Personality: Personality{Resilience: intPtr(8)}})
	require.NoError(t, err)
	assert.Equal(t, 8, *updated.Personality.Resilience)

	h.readyAppraisal("a2", StateDraft)
	_, err = h.svc.UpdateScores(ctx, "a2", ScoresInput{Scores: fullScores()})
	require.ErrorIs(t, err, ErrNotEditable)
}

func TestScoreEditAfterCalculationIsRescored(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.readyAppraisal("a1", StatePendingFEO)

	res, err := h.transition("a1", StatePendingPrincipal)
	require.NoError(t, err)
	require.Equal(t, 100.0, *res.Appraisal.FinalWeightedScore)

	sheet := fullScores()
	sheet.CurriculumContent = intPtr(0)
	sheet.StudentOutcome = intPtr(0)
	edited, err := h.svc.UpdateScores(ctx, "a1", ScoresInput{Scores: sheet})
	require.NoError(t, err)

	preview, err := h.svc.CalculateFinalScore(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, edited.FinalWeightedScore)
	assert.Less(t, *edited.FinalWeightedScore, 100.0)
	assert.Equal(t, preview.FinalWeightedScore, *edited.FinalWeightedScore)
	assert.Equal(t, preview.Part2Score, *edited.Part2Score)

	_, err = h.transition("a1", StatePendingHR)
	require.NoError(t, err)
	done, err := h.transition("a1", StateCompleted)
	require.NoError(t, err)
	assert.True(t, done.Appraisal.IsLocked)
	assert.Equal(t, preview.FinalWeightedScore, *done.Appraisal.FinalWeightedScore)
}

func TestScoreEditBeforeCalculationStaysUnscored(t *testing.T) {
	h := newHarness(t)
	h.readyAppraisal("a1", StatePendingFEO)

	got, err := h.svc.UpdateScores(context.Background(), "a1", ScoresInput{Scores: fullScores()})
	require.NoError(t, err)
	assert.Nil(t, got.CalculatedAt)
	assert.Nil(t, got.FinalWeightedScore)
}

func TestUpdateReviewKeepsUnsentFields(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.readyAppraisal("a1", StatePendingHR)

	got, err := h.svc.UpdateReview(ctx, "a1", ReviewInput{HRCareerAdvancement: strPtr("promote")})
	require.NoError(t, err)
	assert.Equal(t, "strong year", got.Review.PrincipalOverallComment)
	assert.Equal(t, "approved", got.Review.HROverallComment)
	assert.Equal(t, "promote", got.Review.HRCareerAdvancement)

	got, err = h.svc.UpdateReview(ctx, "a1", ReviewInput{HRCareerAdvancement: strPtr("")})
	require.NoError(t, err)
	assert.Empty(t, got.Review.HRCareerAdvancement)
	assert.Equal(t, "approved", got.Review.HROverallComment)
}

func TestUpdateSelfChecksTeachingLoadCeiling(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.readyAppraisal("a1", StateDraft)

	_, err := h.svc.UpdateSelf(ctx, "a1", SelfInput{TeachingLoad: intPtr(41)})
	require.ErrorIs(t, err, ErrRubricViolation)

	got, err := h.svc.UpdateSelf(ctx, "a1", SelfInput{
		TeachingLoad:   intPtr(40),
		SelfAssessment: SelfAssessment{Strengths: "labs", AreasForImprovement: "pacing"},
	})
	require.NoError(t, err)
	assert.Equal(t, 40, *got.TeachingLoad)

	h.readyAppraisal("a2", StatePendingPrincipal)
	_, err = h.svc.UpdateSelf(ctx, "a2", SelfInput{})
	require.ErrorIs(t, err, ErrNotEditable)
}

func TestCreateAndAllowedTransitions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.svc.Create(ctx, CreateInput{TeacherID: "t1", AppraisalYear: 1999})
	require.ErrorIs(t, err, ErrInvalidInput)

	a, err := h.svc.Create(ctx, CreateInput{TeacherID: "t1", AppraisalYear: 2026})
	require.NoError(t, err)
	assert.Equal(t, StateDraft, a.Status)
	_, err = h.svc.Create(ctx, CreateInput{TeacherID: "t1", AppraisalYear: 2026})
	require.ErrorIs(t, err, ErrAlreadyExists)

	targets, err := h.svc.AllowedTransitions(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []State{StateKPIProposal}, targets)

	_, err = h.svc.List(ctx, Filter{Status: "archived"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewMachineRejectsIncompleteTables(t *testing.T) {
	complete := func() map[State]Rule {
		rules := map[State]Rule{}
		for _, state := range States {
			rules[state] = Rule{Targets: workflowTargets[state], Guard: noGuard}
		}
		return rules
	}

	_, err := NewMachine(complete())
	require.NoError(t, err)

	missingRow := complete()
	delete(missingRow, StateDisputed)
	_, err = NewMachine(missingRow)
	assert.ErrorContains(t, err, "missing row for disputed")

	missingGuard := complete()
	missingGuard[StatePendingHR] = Rule{Targets: []State{StateCompleted}}
	_, err = NewMachine(missingGuard)
	assert.ErrorContains(t, err, "missing guard for pending_hr")

	unknownTarget := complete()
	unknownTarget[StateDraft] = Rule{Targets: []State{"archived"}, Guard: noGuard}
	_, err = NewMachine(unknownTarget)
	assert.ErrorContains(t, err, "unknown state")

	_, err = NewService(Deps{})
	assert.Error(t, err)
}
