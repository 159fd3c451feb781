package jobs

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"teacherhr/internal/domain/appraisal"
	"teacherhr/internal/domain/cpe"
	"teacherhr/internal/domain/scoring"
)

type Recalculator interface {
	List(ctx context.Context, filter appraisal.Filter) ([]appraisal.Appraisal, error)
	Recalculate(ctx context.Context, appraisalID string) (appraisal.Appraisal, scoring.Result, error)
}

type ComplianceReporter interface {
	BulkReport(ctx context.Context, year int, departmentID string) (cpe.BulkReport, error)
}

type RecalculationFailure struct {
	AppraisalID string `json:"appraisalId"`
	Error       string `json:"error"`
}

type RecalculationSummary struct {
	Year         int                    `json:"year"`
	Considered   int                    `json:"considered"`
	Recalculated int                    `json:"recalculated"`
	Skipped      int                    `json:"skipped"`
	Failed       []RecalculationFailure `json:"failed,omitempty"`
}

// pastScoring are the states only reachable through the scoring hook. An
// appraisal in one of them with no score had its hook fail and is retried.
var pastScoring = map[appraisal.State]bool{
	appraisal.StatePendingPrincipal: true,
	appraisal.StateRevisionRequired: true,
	appraisal.StatePendingHR:        true,
}

// recalculateYear rescores every unlocked appraisal of the year that is scored
// or past scoring, so CPE approvals made after scoring are reflected. A
// failure on one appraisal is recorded and does not stop the others.
func (s *Service) recalculateYear(ctx context.Context, year int) (RecalculationSummary, error) {
	summary := RecalculationSummary{Year: year}
	list, err := s.appraisals.List(ctx, appraisal.Filter{Year: year})
	if err != nil {
		return summary, err
	}
	summary.Considered = len(list)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, a := range list {
		if a.IsLocked || (a.FinalWeightedScore == nil && !pastScoring[a.Status]) {
			summary.Skipped++
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, _, err := s.appraisals.Recalculate(gctx, a.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed = append(summary.Failed, RecalculationFailure{AppraisalID: a.ID, Error: err.Error()})
				return nil
			}
			summary.Recalculated++
			return nil
		})
	}
	err = g.Wait()
	return summary, err
}

type ComplianceSnapshot struct {
	Year    int             `json:"year"`
	Summary cpe.BulkSummary `json:"summary"`
	// NonCompliant lists teacher ids below the minimum.
	NonCompliant []string `json:"nonCompliantTeacherIds"`
}

func (s *Service) complianceSnapshot(ctx context.Context, year int) (ComplianceSnapshot, error) {
	report, err := s.compliance.BulkReport(ctx, year, "")
	if err != nil {
		return ComplianceSnapshot{Year: year}, err
	}
	snap := ComplianceSnapshot{Year: year, Summary: report.Summary}
	for _, t := range report.NonCompliant {
		snap.NonCompliant = append(snap.NonCompliant, t.TeacherID)
	}
	return snap, nil
}
