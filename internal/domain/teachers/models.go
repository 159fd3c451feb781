package teachers

import "time"

type Teacher struct {
	ID             string    `json:"id"`
	EmployeeID     string    `json:"employeeId"`
	FullName       string    `json:"fullName"`
	Email          string    `json:"email"`
	DepartmentID   string    `json:"departmentId,omitempty"`
	DepartmentName string    `json:"departmentName,omitempty"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
}

type TeacherInput struct {
	EmployeeID   string `json:"employeeId" validate:"required,max=50"`
	FullName     string `json:"fullName" validate:"required,max=255"`
	Email        string `json:"email" validate:"required,email"`
	DepartmentID string `json:"departmentId" validate:"omitempty,uuid"`
	IsActive     *bool  `json:"isActive"`
}

type Department struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	PrincipalID string    `json:"principalId,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

type DepartmentInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	Code        string `json:"code" validate:"required,max=20"`
	PrincipalID string `json:"principalId" validate:"omitempty,uuid"`
}

type Filter struct {
	DepartmentID string
	ActiveOnly   bool
}
