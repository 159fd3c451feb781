package kpi

import "context"

type StoreAPI interface {
	Create(ctx context.Context, teacherID string, in RequestInput) (Request, error)
	Get(ctx context.Context, requestID string) (Request, error)
	List(ctx context.Context, filter Filter) ([]Request, error)
	Review(ctx context.Context, requestID, status, reviewerID, comments string) (Request, error)
	CountPending(ctx context.Context, teacherID string) (int, error)
}
