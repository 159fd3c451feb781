package cpe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"teacherhr/internal/platform/logger"
)

// RequirementSource supplies the approved points a teacher needs in a year.
type RequirementSource interface {
	RequiredPoints(ctx context.Context) (float64, error)
}

type Service struct {
	store StoreAPI
	log   *logger.Logger
	// Requirement overrides MinimumPoints. Every compliance figure, including
	// the appraisal sign-off check, reads it through RequiredPoints.
	Requirement RequirementSource
	Now         func() time.Time
}

func NewService(store StoreAPI, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, log: log, Now: time.Now}
}

// RequiredPoints returns the configured requirement, or MinimumPoints when
// none is configured.
func (s *Service) RequiredPoints(ctx context.Context) (float64, error) {
	if s.Requirement == nil {
		return MinimumPoints, nil
	}
	required, err := s.Requirement.RequiredPoints(ctx)
	if err != nil {
		return 0, fmt.Errorf("cpe requirement: %w", err)
	}
	if required <= 0 {
		return MinimumPoints, nil
	}
	return required, nil
}

func validateInput(in RecordInput) error {
	switch {
	case strings.TrimSpace(in.CourseTitle) == "":
		return fmt.Errorf("%w: course title is required", ErrInvalidRecord)
	case in.DateAttended.IsZero():
		return fmt.Errorf("%w: date attended is required", ErrInvalidRecord)
	case in.DurationHours < 0:
		return fmt.Errorf("%w: duration must not be negative", ErrInvalidRecord)
	}
	return nil
}

// Create stores a pending record. Points are always derived from the duration.
func (s *Service) Create(ctx context.Context, teacherID string, in RecordInput) (Record, error) {
	if err := validateInput(in); err != nil {
		return Record{}, err
	}
	return s.store.Create(ctx, teacherID, in, PointsForDuration(in.DurationHours))
}

// Update re-derives points on every write, so a points edit without a
// duration change cannot stick.
func (s *Service) Update(ctx context.Context, recordID string, in RecordInput) (Record, error) {
	if err := validateInput(in); err != nil {
		return Record{}, err
	}
	return s.store.Update(ctx, recordID, in, PointsForDuration(in.DurationHours))
}

func (s *Service) Get(ctx context.Context, recordID string) (Record, error) {
	return s.store.Get(ctx, recordID)
}

func (s *Service) Approve(ctx context.Context, recordID, reviewerID string) (Record, error) {
	return s.store.Review(ctx, recordID, StatusApproved, reviewerID)
}

func (s *Service) Reject(ctx context.Context, recordID, reviewerID string) (Record, error) {
	return s.store.Review(ctx, recordID, StatusRejected, reviewerID)
}

func (s *Service) List(ctx context.Context, teacherID string, year int, status string) ([]Record, error) {
	return s.store.ListByTeacherYear(ctx, teacherID, year, status)
}

func (s *Service) SumApprovedPoints(ctx context.Context, teacherID string, year int) (float64, error) {
	return s.store.SumApprovedPoints(ctx, teacherID, year)
}

func (s *Service) CheckCompliance(ctx context.Context, teacherID string, year int) (Compliance, error) {
	required, err := s.RequiredPoints(ctx)
	if err != nil {
		return Compliance{}, err
	}
	total, err := s.store.SumApprovedPoints(ctx, teacherID, year)
	if err != nil {
		return Compliance{}, err
	}
	return Evaluate(teacherID, year, total, required), nil
}

func (s *Service) Summary(ctx context.Context, teacherID string, year int) (Summary, error) {
	records, err := s.store.ListByTeacherYear(ctx, teacherID, year, StatusApproved)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(records), nil
}

func (s *Service) TeacherDetails(ctx context.Context, teacherID string, year int) (TeacherDetails, error) {
	required, err := s.RequiredPoints(ctx)
	if err != nil {
		return TeacherDetails{}, err
	}
	records, err := s.store.ListByTeacherYear(ctx, teacherID, year, "")
	if err != nil {
		return TeacherDetails{}, err
	}
	return BuildTeacherDetails(teacherID, year, records, required), nil
}

func (s *Service) BulkReport(ctx context.Context, year int, departmentID string) (BulkReport, error) {
	required, err := s.RequiredPoints(ctx)
	if err != nil {
		return BulkReport{}, err
	}
	teachers, err := s.store.TeacherPoints(ctx, year, departmentID)
	if err != nil {
		return BulkReport{}, err
	}
	return BuildBulkReport(year, teachers, required, s.Now()), nil
}

func (s *Service) DepartmentReport(ctx context.Context, year int) (DepartmentReport, error) {
	required, err := s.RequiredPoints(ctx)
	if err != nil {
		return DepartmentReport{}, err
	}
	teachers, err := s.store.TeacherPoints(ctx, year, "")
	if err != nil {
		return DepartmentReport{}, err
	}
	return BuildDepartmentReport(year, teachers, required, s.Now()), nil
}
