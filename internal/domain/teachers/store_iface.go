package teachers

import "context"

type StoreAPI interface {
	ListTeachers(ctx context.Context, filter Filter) ([]Teacher, error)
	GetTeacher(ctx context.Context, teacherID string) (Teacher, error)
	CreateTeacher(ctx context.Context, in TeacherInput) (Teacher, error)
	UpdateTeacher(ctx context.Context, teacherID string, in TeacherInput) (Teacher, error)
	ListDepartments(ctx context.Context) ([]Department, error)
	CreateDepartment(ctx context.Context, in DepartmentInput) (Department, error)
	UserIDForTeacher(ctx context.Context, teacherID string) (string, error)
}
