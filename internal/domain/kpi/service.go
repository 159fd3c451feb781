package kpi

import (
	"context"
	"fmt"
	"strings"

	"teacherhr/internal/platform/logger"
)

type Service struct {
	store StoreAPI
	log   *logger.Logger
}

func NewService(store StoreAPI, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, log: log}
}

func (s *Service) Create(ctx context.Context, teacherID string, in RequestInput) (Request, error) {
	if strings.TrimSpace(teacherID) == "" {
		return Request{}, fmt.Errorf("%w: teacher is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(in.Title) == "" {
		return Request{}, fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	return s.store.Create(ctx, teacherID, in)
}

func (s *Service) Get(ctx context.Context, requestID string) (Request, error) {
	return s.store.Get(ctx, requestID)
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Request, error) {
	return s.store.List(ctx, filter)
}

func (s *Service) Approve(ctx context.Context, requestID, reviewerID, comments string) (Request, error) {
	return s.review(ctx, requestID, StatusApproved, reviewerID, comments)
}

// Reject requires a reviewer comment so the teacher knows what to change.
func (s *Service) Reject(ctx context.Context, requestID, reviewerID, comments string) (Request, error) {
	if strings.TrimSpace(comments) == "" {
		return Request{}, fmt.Errorf("%w: rejection comments are required", ErrInvalidRequest)
	}
	return s.review(ctx, requestID, StatusRejected, reviewerID, comments)
}

func (s *Service) review(ctx context.Context, requestID, status, reviewerID, comments string) (Request, error) {
	req, err := s.store.Review(ctx, requestID, status, reviewerID, comments)
	if err != nil {
		return Request{}, err
	}
	s.log.Info("kpi request reviewed", "requestId", requestID, "status", status, "reviewerId", reviewerID)
	return req, nil
}

// CountPending is the number of the teacher's requests still awaiting review.
func (s *Service) CountPending(ctx context.Context, teacherID string) (int, error) {
	return s.store.CountPending(ctx, teacherID)
}
