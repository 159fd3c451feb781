package appraisal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"teacherhr/internal/domain/rubric"
)

// Transition moves an appraisal to req.To. Guard facts that live outside the
// appraisal row are read first, so the transaction never waits on a second
// connection. The row stays locked from the table check through the history
// insert; after-hooks run once the change has committed and never fail the
// transition.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (TransitionResult, error) {
	if strings.TrimSpace(req.ActorID) == "" || strings.TrimSpace(req.ActorRole) == "" {
		return TransitionResult{}, fmt.Errorf("%w: actor id and role are required", ErrInvalidInput)
	}
	if !req.To.Valid() {
		s.metrics.TransitionRejected("invalid_transition")
		return TransitionResult{}, &TransitionError{To: req.To, Err: ErrInvalidTransition}
	}

	rule := s.machine.Rule(req.To)
	var facts Facts
	if rule.Facts != nil {
		a, err := s.store.Get(ctx, req.AppraisalID)
		if err == nil {
			facts, err = rule.Facts(ctx, a)
		}
		if err != nil {
			return TransitionResult{}, s.rejected(req, err)
		}
	}

	updated, entry, err := s.store.ApplyTransition(ctx, req.AppraisalID, func(current Appraisal) (StatusChange, error) {
		if !s.machine.Allows(current.Status, req.To) {
			return StatusChange{}, &TransitionError{From: current.Status, To: req.To, Err: ErrInvalidTransition}
		}
		if condition := rule.Guard(current, facts); condition != "" {
			return StatusChange{}, &TransitionError{From: current.Status, To: req.To, Condition: condition, Err: ErrGuardViolation}
		}
		return StatusChange{
			From:      current.Status,
			To:        req.To,
			ActorID:   req.ActorID,
			ActorRole: req.ActorRole,
			Comment:   strings.TrimSpace(req.Comment),
			Metadata:  req.Metadata,
			Lock:      rule.Locks,
		}, nil
	})
	if err != nil {
		return TransitionResult{}, s.rejected(req, err)
	}
	s.metrics.TransitionCommitted(string(req.To))
	s.log.Info("appraisal transitioned", "appraisalId", updated.ID, "from", entry.FromStatus, "to", entry.ToStatus,
		"actorId", req.ActorID, "actorRole", req.ActorRole)

	if rule.After != nil {
		if err := rule.After(ctx, updated); err != nil {
			s.metrics.ScoringFailed()
			s.log.Error("appraisal after-hook failed", "appraisalId", updated.ID, "state", req.To, "error", err)
		} else if refreshed, err := s.store.Get(ctx, updated.ID); err == nil {
			updated = refreshed
		}
	}

	s.events.Publish(ctx, TransitionEvent{
		AppraisalID:    updated.ID,
		TeacherID:      updated.TeacherID,
		AppraisalYear:  updated.AppraisalYear,
		From:           entry.FromStatus,
		To:             entry.ToStatus,
		ActorID:        entry.ActorID,
		ActorRole:      entry.ActorRole,
		Comment:        entry.Comment,
		HistoryEntryID: entry.ID,
		OccurredAt:     entry.TransitionedAt,
	})
	return TransitionResult{NewState: updated.Status, HistoryEntryID: entry.ID, Appraisal: updated}, nil
}

func (s *Service) rejected(req TransitionRequest, err error) error {
	err = classify(err)
	s.metrics.TransitionRejected(rejectionKind(err))
	s.log.Warn("appraisal transition rejected", "appraisalId", req.AppraisalID, "to", req.To, "actorId", req.ActorID, "error", err)
	return err
}

func (s *Service) guardSelfAssessment(a Appraisal, _ Facts) string {
	if strings.TrimSpace(a.Self.Strengths) == "" || strings.TrimSpace(a.Self.AreasForImprovement) == "" {
		return "self assessment strengths and areas for improvement must be completed"
	}
	return ""
}

func (s *Service) loadPendingKPIs(ctx context.Context, a Appraisal) (Facts, error) {
	pending, err := s.kpis.CountPending(ctx, a.TeacherID)
	if err != nil {
		return Facts{}, err
	}
	return Facts{PendingKPIs: pending}, nil
}

func (s *Service) guardNoPendingKPIs(_ Appraisal, f Facts) string {
	if f.PendingKPIs > 0 {
		return fmt.Sprintf("%d KPI request(s) still pending review", f.PendingKPIs)
	}
	return ""
}

func (s *Service) guardFEOScored(a Appraisal, _ Facts) string {
	if a.Scores.CurriculumContent == nil || a.Scores.StudentOutcome == nil {
		return "FEO scoring is incomplete: curriculum content and student outcome scores are required"
	}
	return ""
}

func (s *Service) guardPrincipalComment(a Appraisal, _ Facts) string {
	if strings.TrimSpace(a.Review.PrincipalOverallComment) == "" {
		return "principal overall comment is required"
	}
	return ""
}

// loadCompliance runs the same compliance check the CPE reports use, so the
// completed guard and the reports never disagree on the threshold.
func (s *Service) loadCompliance(ctx context.Context, a Appraisal) (Facts, error) {
	compliance, err := s.cpe.CheckCompliance(ctx, a.TeacherID, a.AppraisalYear)
	if err != nil {
		return Facts{}, err
	}
	return Facts{CPE: compliance}, nil
}

func (s *Service) guardHRSignOff(a Appraisal, f Facts) string {
	if strings.TrimSpace(a.Review.HROverallComment) == "" {
		return "HR overall comment is required"
	}
	if !f.CPE.IsCompliant {
		return fmt.Sprintf("CPE requirement not met: %.2f of %.0f approved points", f.CPE.TotalPoints, f.CPE.RequiredPoints)
	}
	return ""
}

// scoreAfterCommit is the pending_principal after-hook. Scoring is idempotent,
// so a failed run is repaired by an explicit recalculation.
func (s *Service) scoreAfterCommit(ctx context.Context, a Appraisal) error {
	result, err := s.calculate(ctx, a)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrScoring, err)
	}
	if _, err := s.store.SaveScores(ctx, a.ID, result); err != nil {
		return fmt.Errorf("%w: %w", ErrScoring, err)
	}
	return nil
}

// classify keeps domain errors as they are and marks everything else as a
// retryable storage failure.
func classify(err error) error {
	var transitionErr *TransitionError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &transitionErr),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrLocked),
		errors.Is(err, ErrNotEditable),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrRubricViolation),
		errors.Is(err, ErrPersistence),
		errors.Is(err, rubric.ErrNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func rejectionKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrGuardViolation):
		return "guard_violation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	}
	return "other"
}
