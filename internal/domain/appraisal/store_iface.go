package appraisal

import (
	"context"

	"teacherhr/internal/domain/scoring"
)

type StoreAPI interface {
	Create(ctx context.Context, teacherID string, year int) (Appraisal, error)
	Get(ctx context.Context, appraisalID string) (Appraisal, error)
	List(ctx context.Context, filter Filter) ([]Appraisal, error)
	UpdateSelf(ctx context.Context, appraisalID string, in SelfInput) (Appraisal, error)
	UpdateScores(ctx context.Context, appraisalID string, in ScoresInput) (Appraisal, error)
	UpdateReview(ctx context.Context, appraisalID string, in ReviewInput) (Appraisal, error)
	// ApplyTransition locks the appraisal row, passes it to decide and, when
	// decide succeeds, writes the status change and its history entry in the
	// same transaction. Any error leaves the row untouched.
	ApplyTransition(ctx context.Context, appraisalID string, decide func(Appraisal) (StatusChange, error)) (Appraisal, HistoryEntry, error)
	SaveScores(ctx context.Context, appraisalID string, result scoring.Result) (Appraisal, error)
	SaveOverride(ctx context.Context, appraisalID string, override Override) (Appraisal, error)
	History(ctx context.Context, appraisalID string) ([]HistoryEntry, error)
}
