package appraisal

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"teacherhr/internal/domain/cpe"
	"teacherhr/internal/domain/rubric"
	"teacherhr/internal/domain/scoring"
	"teacherhr/internal/platform/logger"
)

// RubricSource returns the active rubric for a configuration key.
type RubricSource interface {
	Active(ctx context.Context, key string) (rubric.Rubric, error)
}

// CPETotals reads a teacher's approved CPE points. CheckCompliance applies the
// configured requirement to them.
type CPETotals interface {
	SumApprovedPoints(ctx context.Context, teacherID string, year int) (float64, error)
	CheckCompliance(ctx context.Context, teacherID string, year int) (cpe.Compliance, error)
}

type KPICounter interface {
	CountPending(ctx context.Context, teacherID string) (int, error)
}

// EventSink receives committed transitions. Delivery is fire-and-forget.
type EventSink interface {
	Publish(ctx context.Context, event TransitionEvent)
}

type Auditor interface {
	Record(ctx context.Context, actorID, action, entityType, entityID string, before, after any) error
}

// Recorder counts transition outcomes.
type Recorder interface {
	TransitionCommitted(to string)
	TransitionRejected(kind string)
	ScoringFailed()
}

type Deps struct {
	Store     StoreAPI
	Rubrics   RubricSource
	CPE       CPETotals
	KPIs      KPICounter
	Events    EventSink
	Audit     Auditor
	Metrics   Recorder
	Log       *logger.Logger
	RubricKey string
}

type Service struct {
	store     StoreAPI
	rubrics   RubricSource
	cpe       CPETotals
	kpis      KPICounter
	events    EventSink
	audit     Auditor
	metrics   Recorder
	log       *logger.Logger
	machine   *Machine
	rubricKey string
	Now       func() time.Time
}

func NewService(deps Deps) (*Service, error) {
	if deps.Store == nil || deps.Rubrics == nil || deps.CPE == nil || deps.KPIs == nil {
		return nil, fmt.Errorf("appraisal service: store, rubrics, cpe and kpi collaborators are required")
	}
	s := &Service{
		store:     deps.Store,
		rubrics:   deps.Rubrics,
		cpe:       deps.CPE,
		kpis:      deps.KPIs,
		events:    deps.Events,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		log:       deps.Log,
		rubricKey: deps.RubricKey,
		Now:       time.Now,
	}
	if s.events == nil {
		s.events = nopSink{}
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.rubricKey == "" {
		s.rubricKey = rubric.DefaultKey
	}
	machine, err := NewMachine(s.workflowRules())
	if err != nil {
		return nil, err
	}
	s.machine = machine
	return s, nil
}

func (s *Service) Machine() *Machine {
	return s.machine
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Appraisal, error) {
	if strings.TrimSpace(in.TeacherID) == "" {
		return Appraisal{}, fmt.Errorf("%w: teacher is required", ErrInvalidInput)
	}
	if in.AppraisalYear < 2000 || in.AppraisalYear > 2100 {
		return Appraisal{}, fmt.Errorf("%w: appraisal year %d is out of range", ErrInvalidInput, in.AppraisalYear)
	}
	a, err := s.store.Create(ctx, in.TeacherID, in.AppraisalYear)
	if err != nil {
		return Appraisal{}, classify(err)
	}
	s.log.Info("appraisal created", "appraisalId", a.ID, "teacherId", a.TeacherID, "year", a.AppraisalYear)
	return a, nil
}

func (s *Service) Get(ctx context.Context, appraisalID string) (Appraisal, error) {
	a, err := s.store.Get(ctx, appraisalID)
	if err != nil {
		return Appraisal{}, classify(err)
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Appraisal, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	list, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, classify(err)
	}
	return list, nil
}

// UpdateSelf edits the teacher-owned part of the appraisal.
func (s *Service) UpdateSelf(ctx context.Context, appraisalID string, in SelfInput) (Appraisal, error) {
	current, err := s.editable(ctx, appraisalID, selfEditableStates)
	if err != nil {
		return Appraisal{}, err
	}
	r, err := s.rubrics.Active(ctx, s.rubricKey)
	if err != nil {
		return Appraisal{}, classify(err)
	}
	if in.TeachingLoad != nil {
		if violations := rubric.Validate(rubric.Scores{TeachingLoad: in.TeachingLoad}, r); len(violations) > 0 {
			return Appraisal{}, fmt.Errorf("%w: %s", ErrRubricViolation, strings.Join(violations, "; "))
		}
	}
	a, err := s.store.UpdateSelf(ctx, current.ID, in)
	if err != nil {
		return Appraisal{}, classify(err)
	}
	return a, nil
}

// UpdateScores replaces the score sheet. Every sub-score must fit the active
// rubric; nothing is written when any of them does not. A sheet that was
// already scored is scored again, so the derived fields never describe an
// older sheet.
func (s *Service) UpdateScores(ctx context.Context, appraisalID string, in ScoresInput) (Appraisal, error) {
	current, err := s.editable(ctx, appraisalID, scorableStates)
	if err != nil {
		return Appraisal{}, err
	}
	r, err := s.rubrics.Active(ctx, s.rubricKey)
	if err != nil {
		return Appraisal{}, classify(err)
	}
	sheet := rubric.Scores{Values: in.Scores.Values(), TeachingLoad: current.TeachingLoad}
	if violations := rubric.Validate(sheet, r); len(violations) > 0 {
		return Appraisal{}, fmt.Errorf("%w: %s", ErrRubricViolation, strings.Join(violations, "; "))
	}
	personality := in.Personality.Values()
	for _, field := range slices.Sorted(maps.Keys(personality)) {
		value := personality[field]
		if value != nil && (*value < PersonalityMin || *value > PersonalityMax) {
			return Appraisal{}, fmt.Errorf("%w: %s must be between %d and %d", ErrInvalidInput, field, PersonalityMin, PersonalityMax)
		}
	}
	a, err := s.store.UpdateScores(ctx, current.ID, in)
	if err != nil {
		return Appraisal{}, classify(err)
	}
	if a.CalculatedAt == nil {
		return a, nil
	}
	result, err := s.calculate(ctx, a)
	if err != nil {
		return Appraisal{}, err
	}
	if a, err = s.store.SaveScores(ctx, a.ID, result); err != nil {
		return Appraisal{}, classify(err)
	}
	s.log.Info("appraisal scores recalculated after edit", "appraisalId", a.ID, "finalWeightedScore", result.FinalWeightedScore)
	return a, nil
}

func (s *Service) UpdateReview(ctx context.Context, appraisalID string, in ReviewInput) (Appraisal, error) {
	current, err := s.Get(ctx, appraisalID)
	if err != nil {
		return Appraisal{}, err
	}
	if current.IsLocked {
		return Appraisal{}, ErrLocked
	}
	a, err := s.store.UpdateReview(ctx, current.ID, in)
	if err != nil {
		return Appraisal{}, classify(err)
	}
	return a, nil
}

func (s *Service) editable(ctx context.Context, appraisalID string, states map[State]bool) (Appraisal, error) {
	current, err := s.Get(ctx, appraisalID)
	if err != nil {
		return Appraisal{}, err
	}
	if current.IsLocked {
		return Appraisal{}, ErrLocked
	}
	if !states[current.Status] {
		return Appraisal{}, fmt.Errorf("%w: status %s", ErrNotEditable, current.Status)
	}
	return current, nil
}

// CalculateFinalScore scores the appraisal against the active rubric and the
// teacher's approved CPE points for the appraisal year. Nothing is persisted.
func (s *Service) CalculateFinalScore(ctx context.Context, appraisalID string) (scoring.Result, error) {
	a, err := s.Get(ctx, appraisalID)
	if err != nil {
		return scoring.Result{}, err
	}
	return s.calculate(ctx, a)
}

func (s *Service) calculate(ctx context.Context, a Appraisal) (scoring.Result, error) {
	r, err := s.rubrics.Active(ctx, s.rubricKey)
	if err != nil {
		return scoring.Result{}, classify(err)
	}
	total, err := s.cpe.SumApprovedPoints(ctx, a.TeacherID, a.AppraisalYear)
	if err != nil {
		return scoring.Result{}, classify(err)
	}
	return scoring.Calculate(a.RubricScores(), r, total, s.Now().UTC())
}

// Recalculate scores the appraisal and persists the derived fields.
func (s *Service) Recalculate(ctx context.Context, appraisalID string) (Appraisal, scoring.Result, error) {
	a, err := s.Get(ctx, appraisalID)
	if err != nil {
		return Appraisal{}, scoring.Result{}, err
	}
	if a.IsLocked {
		return Appraisal{}, scoring.Result{}, ErrLocked
	}
	result, err := s.calculate(ctx, a)
	if err != nil {
		return Appraisal{}, scoring.Result{}, err
	}
	saved, err := s.store.SaveScores(ctx, a.ID, result)
	if err != nil {
		return Appraisal{}, scoring.Result{}, classify(err)
	}
	s.log.Info("appraisal scores calculated", "appraisalId", a.ID, "finalWeightedScore", result.FinalWeightedScore)
	return saved, result, nil
}

// Override replaces the final weighted score with a principal's judgement. The
// calculated score is kept as original_final_score.
func (s *Service) Override(ctx context.Context, appraisalID, actorID, actorRole string, in OverrideInput) (Appraisal, error) {
	if actorRole != RolePrincipal {
		return Appraisal{}, fmt.Errorf("%w: only a principal may override scores", ErrOverrideNotAllowed)
	}
	if strings.TrimSpace(in.Justification) == "" {
		return Appraisal{}, fmt.Errorf("%w: justification is required", ErrInvalidInput)
	}
	if in.Score < 0 || in.Score > 100 {
		return Appraisal{}, fmt.Errorf("%w: score must be between 0 and 100", ErrInvalidInput)
	}
	before, err := s.Get(ctx, appraisalID)
	if err != nil {
		return Appraisal{}, err
	}
	switch {
	case before.IsLocked:
		return Appraisal{}, ErrLocked
	case !overridableStates[before.Status]:
		return Appraisal{}, fmt.Errorf("%w: status %s", ErrOverrideNotAllowed, before.Status)
	case before.FinalWeightedScore == nil:
		return Appraisal{}, fmt.Errorf("%w: scores have not been calculated", ErrOverrideNotAllowed)
	}

	after, err := s.store.SaveOverride(ctx, before.ID, Override{
		Score:         in.Score,
		Justification: strings.TrimSpace(in.Justification),
		ActorID:       actorID,
		At:            s.Now().UTC(),
	})
	if err != nil {
		return Appraisal{}, classify(err)
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, actorID, "appraisal.score_override", "appraisal", after.ID, overrideSnapshot(before), overrideSnapshot(after)); err != nil {
			s.log.Warn("audit record failed", "appraisalId", after.ID, "error", err)
		}
	}
	s.log.Info("appraisal score overridden", "appraisalId", after.ID, "actorId", actorID, "score", in.Score)
	return after, nil
}

func overrideSnapshot(a Appraisal) map[string]any {
	return map[string]any{
		"finalWeightedScore":         a.FinalWeightedScore,
		"originalFinalScore":         a.OriginalFinalScore,
		"scoreOverrideJustification": a.OverrideJustification,
	}
}

func (s *Service) History(ctx context.Context, appraisalID string) ([]HistoryEntry, error) {
	if _, err := s.Get(ctx, appraisalID); err != nil {
		return nil, err
	}
	entries, err := s.store.History(ctx, appraisalID)
	if err != nil {
		return nil, classify(err)
	}
	return entries, nil
}

// AllowedTransitions lists the states the appraisal may move to next. Guards
// are not evaluated.
func (s *Service) AllowedTransitions(ctx context.Context, appraisalID string) ([]State, error) {
	a, err := s.Get(ctx, appraisalID)
	if err != nil {
		return nil, err
	}
	return s.machine.Targets(a.Status), nil
}

type nopSink struct{}

func (nopSink) Publish(context.Context, TransitionEvent) {}

type nopRecorder struct{}

func (nopRecorder) TransitionCommitted(string) {}
func (nopRecorder) TransitionRejected(string) {}
func (nopRecorder) ScoringFailed() {}
