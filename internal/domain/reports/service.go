package reports

import (
	"context"

	"teacherhr/internal/domain/appraisal"
	"teacherhr/internal/domain/auth"
	"teacherhr/internal/domain/cpe"
	"teacherhr/internal/domain/teachers"
)

type DashboardStore interface {
	StatusCounts(ctx context.Context, year int, teacherID string) (map[string]int, error)
	PendingKPIRequests(ctx context.Context, teacherID string) (int, error)
	PendingCPERecords(ctx context.Context, teacherID string) (int, error)
}

type AppraisalSource interface {
	Get(ctx context.Context, appraisalID string) (appraisal.Appraisal, error)
	List(ctx context.Context, filter appraisal.Filter) ([]appraisal.Appraisal, error)
	History(ctx context.Context, appraisalID string) ([]appraisal.HistoryEntry, error)
}

type TeacherSource interface {
	Get(ctx context.Context, teacherID string) (teachers.Teacher, error)
}

type ComplianceSource interface {
	SumApprovedPoints(ctx context.Context, teacherID string, year int) (float64, error)
	BulkReport(ctx context.Context, year int, departmentID string) (cpe.BulkReport, error)
	DepartmentReport(ctx context.Context, year int) (cpe.DepartmentReport, error)
}

type Service struct {
	store      DashboardStore
	appraisals AppraisalSource
	teachers   TeacherSource
	cpe        ComplianceSource
}

func NewService(store DashboardStore, appraisals AppraisalSource, directory TeacherSource, compliance ComplianceSource) *Service {
	return &Service{store: store, appraisals: appraisals, teachers: directory, cpe: compliance}
}

// awaiting lists the states in which each role has the next move.
var awaiting = map[string][]appraisal.State{
	auth.RoleTeacher:   {appraisal.StateDraft, appraisal.StateKPIProposal, appraisal.StateUnderRevision},
	auth.RolePrincipal: {appraisal.StatePendingFEO, appraisal.StateDisputed, appraisal.StatePendingPrincipal, appraisal.StateRevisionRequired},
	auth.RoleHRAdmin:   {appraisal.StatePendingHR},
}

func (s *Service) Dashboard(ctx context.Context, user auth.UserContext, year int) (Dashboard, error) {
	scope := ""
	if user.Role == auth.RoleTeacher {
		scope = user.TeacherID
		if scope == "" {
			return Dashboard{Role: user.Role, Year: year, StatusCounts: map[string]int{}}, nil
		}
	}

	counts, err := s.store.StatusCounts(ctx, year, scope)
	if err != nil {
		return Dashboard{}, err
	}
	out := Dashboard{Role: user.Role, Year: year, StatusCounts: counts}
	for _, state := range awaiting[user.Role] {
		out.AwaitingAction += counts[string(state)]
	}
	if out.PendingKPIs, err = s.store.PendingKPIRequests(ctx, scope); err != nil {
		return Dashboard{}, err
	}
	if out.PendingCPE, err = s.store.PendingCPERecords(ctx, scope); err != nil {
		return Dashboard{}, err
	}

	if scope != "" {
		if out.CPEPoints, err = s.cpe.SumApprovedPoints(ctx, scope, year); err != nil {
			return Dashboard{}, err
		}
		list, err := s.appraisals.List(ctx, appraisal.Filter{TeacherID: scope, Year: year})
		if err != nil {
			return Dashboard{}, err
		}
		if len(list) > 0 {
			out.AppraisalID = list[0].ID
			out.AppraisalStatus = string(list[0].Status)
		}
	}
	return out, nil
}

func (s *Service) BulkCompliance(ctx context.Context, year int, departmentID string) (cpe.BulkReport, error) {
	return s.cpe.BulkReport(ctx, year, departmentID)
}

func (s *Service) DepartmentCompliance(ctx context.Context, year int) (cpe.DepartmentReport, error) {
	return s.cpe.DepartmentReport(ctx, year)
}

// ScoreSheetPDF renders the appraisal's scores, weighted contributions and
// workflow history.
func (s *Service) ScoreSheetPDF(ctx context.Context, appraisalID string) (appraisal.Appraisal, []byte, error) {
	a, err := s.appraisals.Get(ctx, appraisalID)
	if err != nil {
		return appraisal.Appraisal{}, nil, err
	}
	teacher, err := s.teachers.Get(ctx, a.TeacherID)
	if err != nil {
		return appraisal.Appraisal{}, nil, err
	}
	history, err := s.appraisals.History(ctx, a.ID)
	if err != nil {
		return appraisal.Appraisal{}, nil, err
	}
	doc, err := renderScoreSheet(a, teacher, history)
	if err != nil {
		return appraisal.Appraisal{}, nil, err
	}
	return a, doc, nil
}
