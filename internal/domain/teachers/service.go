package teachers

import (
	"context"
	"fmt"
	"strings"

	"teacherhr/internal/domain/auth"
)

type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Teacher, error) {
	return s.store.ListTeachers(ctx, filter)
}

func (s *Service) Get(ctx context.Context, teacherID string) (Teacher, error) {
	return s.store.GetTeacher(ctx, teacherID)
}

func (s *Service) Create(ctx context.Context, in TeacherInput) (Teacher, error) {
	in = normalize(in)
	if in.EmployeeID == "" || in.FullName == "" || in.Email == "" {
		return Teacher{}, fmt.Errorf("%w: employee id, name and email are required", ErrInvalidInput)
	}
	return s.store.CreateTeacher(ctx, in)
}

func (s *Service) Update(ctx context.Context, teacherID string, in TeacherInput) (Teacher, error) {
	in = normalize(in)
	if in.EmployeeID == "" || in.FullName == "" || in.Email == "" {
		return Teacher{}, fmt.Errorf("%w: employee id, name and email are required", ErrInvalidInput)
	}
	return s.store.UpdateTeacher(ctx, teacherID, in)
}

func (s *Service) ListDepartments(ctx context.Context) ([]Department, error) {
	return s.store.ListDepartments(ctx)
}

func (s *Service) CreateDepartment(ctx context.Context, in DepartmentInput) (Department, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	if in.Name == "" || in.Code == "" {
		return Department{}, fmt.Errorf("%w: department name and code are required", ErrInvalidInput)
	}
	return s.store.CreateDepartment(ctx, in)
}

func (s *Service) UserIDForTeacher(ctx context.Context, teacherID string) (string, error) {
	return s.store.UserIDForTeacher(ctx, teacherID)
}

// CanView reports whether user may read records that belong to teacherID.
// Teachers only see their own; principals and HR see everyone.
func CanView(user auth.UserContext, teacherID string) bool {
	switch user.Role {
	case auth.RoleHRAdmin, auth.RolePrincipal:
		return true
	case auth.RoleTeacher:
		return user.TeacherID != "" && user.TeacherID == teacherID
	}
	return false
}

func normalize(in TeacherInput) TeacherInput {
	in.EmployeeID = strings.TrimSpace(in.EmployeeID)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.DepartmentID = strings.TrimSpace(in.DepartmentID)
	return in
}
