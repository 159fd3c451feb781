package teachers

import (
	"context"
	"testing"

	"teacherhr/internal/domain/auth"
)

func TestCanViewHRAndPrincipal(t *testing.T) {
	for _, role := range []string{auth.RoleHRAdmin, auth.RolePrincipal} {
		if !CanView(auth.UserContext{Role: role}, "t1") {
			t.Fatalf("%s should see every teacher", role)
		}
	}
}

func TestCanViewTeacherSelfOnly(t *testing.T) {
	user := auth.UserContext{Role: auth.RoleTeacher, TeacherID: "t1"}
	if !CanView(user, "t1") {
		t.Fatal("teacher should see own records")
	}
	if CanView(user, "t2") {
		t.Fatal("teacher should not see another teacher")
	}
	if CanView(auth.UserContext{Role: auth.RoleTeacher}, "") {
		t.Fatal("teacher without a linked profile should see nothing")
	}
}

type captureStore struct {
	StoreAPI
	created TeacherInput
	dept    DepartmentInput
}

func (c *captureStore) CreateTeacher(_ context.Context, in TeacherInput) (Teacher, error) {
	c.created = in
	return Teacher{ID: "t1", EmployeeID: in.EmployeeID, FullName: in.FullName, Email: in.Email}, nil
}

func (c *captureStore) CreateDepartment(_ context.Context, in DepartmentInput) (Department, error) {
	c.dept = in
	return Department{ID: "d1", Name: in.Name, Code: in.Code}, nil
}

func TestCreateNormalizesInput(t *testing.T) {
	store := &captureStore{}
	svc := NewService(store)

	if _, err := svc.Create(context.Background(), TeacherInput{FullName: "Ada"}); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := svc.Create(context.Background(), TeacherInput{EmployeeID: " T-9 ", FullName: " Ada Mensah ", Email: "Ada@School.TEST"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if store.created.EmployeeID != "T-9" || store.created.Email != "ada@school.test" || store.created.FullName != "Ada Mensah" {
		t.Fatalf("unexpected normalized input: %+v", store.created)
	}

	if _, err := svc.CreateDepartment(context.Background(), DepartmentInput{Name: "Science", Code: " sci "}); err != nil {
		t.Fatalf("create department: %v", err)
	}
	if store.dept.Code != "SCI" {
		t.Fatalf("expected upper-cased code, got %q", store.dept.Code)
	}
}
