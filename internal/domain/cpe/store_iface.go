package cpe

import "context"

type StoreAPI interface {
	Create(ctx context.Context, teacherID string, in RecordInput, points float64) (Record, error)
	Update(ctx context.Context, recordID string, in RecordInput, points float64) (Record, error)
	Get(ctx context.Context, recordID string) (Record, error)
	Review(ctx context.Context, recordID, status, reviewerID string) (Record, error)
	ListByTeacherYear(ctx context.Context, teacherID string, year int, status string) ([]Record, error)
	SumApprovedPoints(ctx context.Context, teacherID string, year int) (float64, error)
	TeacherPoints(ctx context.Context, year int, departmentID string) ([]TeacherPoints, error)
}
