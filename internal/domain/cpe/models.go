package cpe

import "time"

type Record struct {
	ID              string     `json:"id"`
	TeacherID       string     `json:"teacherId"`
	CourseTitle     string     `json:"courseTitle"`
	Provider        string     `json:"provider"`
	Location        string     `json:"location"`
	Description     string     `json:"description"`
	CertificatePath string     `json:"certificatePath,omitempty"`
	DateAttended    time.Time  `json:"dateAttended"`
	DurationHours   float64    `json:"durationHours"`
	CPEPoints       float64    `json:"cpePoints"`
	Status          string     `json:"status"`
	ReviewerID      string     `json:"reviewerId,omitempty"`
	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// RecordInput carries the teacher-editable fields; points are never accepted
// from callers.
type RecordInput struct {
	CourseTitle     string    `json:"courseTitle" validate:"required,max=255"`
	Provider        string    `json:"provider" validate:"max=255"`
	Location        string    `json:"location" validate:"max=255"`
	Description     string    `json:"description"`
	CertificatePath string    `json:"certificatePath"`
	DateAttended    time.Time `json:"dateAttended"`
	DurationHours   float64   `json:"durationHours" validate:"gte=0,lte=1000"`
}

type Compliance struct {
	TeacherID            string  `json:"teacherId"`
	Year                 int     `json:"year"`
	IsCompliant          bool    `json:"isCompliant"`
	TotalPoints          float64 `json:"totalPoints"`
	RequiredPoints       float64 `json:"requiredPoints"`
	Deficit              float64 `json:"deficit"`
	CompliancePercentage float64 `json:"compliancePercentage"`
}

type Summary struct {
	TotalPoints float64  `json:"totalPoints"`
	TotalHours  float64  `json:"totalHours"`
	RecordCount int      `json:"recordCount"`
	Records     []Record `json:"records"`
}

type TeacherDetails struct {
	TeacherID        string   `json:"teacherId"`
	Year             int      `json:"year"`
	TotalApproved    float64  `json:"totalApprovedHours"`
	TotalPending     float64  `json:"totalPendingHours"`
	PotentialTotal   float64  `json:"potentialTotal"`
	MinimumRequired  float64  `json:"minimumRequired"`
	ComplianceStatus string   `json:"complianceStatus"`
	HoursNeeded      float64  `json:"hoursNeeded"`
	ApprovedRecords  []Record `json:"approved"`
	PendingRecords   []Record `json:"pending"`
}

// TeacherPoints is one active teacher with their approved points for a year.
type TeacherPoints struct {
	TeacherID      string  `json:"teacherId"`
	EmployeeID     string  `json:"employeeId"`
	FullName       string  `json:"fullName"`
	DepartmentID   string  `json:"departmentId,omitempty"`
	DepartmentName string  `json:"department,omitempty"`
	DepartmentCode string  `json:"departmentCode,omitempty"`
	Points         float64 `json:"cpeHours"`
}

type TeacherCompliance struct {
	TeacherPoints
	CompletionPercentage float64 `json:"completionPercentage"`
	Status               string  `json:"status"`
	Shortfall            float64 `json:"shortfall"`
}

type BulkSummary struct {
	TotalTeachers     int     `json:"totalTeachers"`
	CompliantCount    int     `json:"compliantCount"`
	NonCompliantCount int     `json:"nonCompliantCount"`
	ComplianceRate    float64 `json:"complianceRate"`
	AverageHours      float64 `json:"averageCpeHours"`
	MinimumRequired   float64 `json:"minimumRequiredHours"`
}

type BulkReport struct {
	Year         int                 `json:"year"`
	Summary      BulkSummary         `json:"summary"`
	Compliant    []TeacherCompliance `json:"compliantTeachers"`
	NonCompliant []TeacherCompliance `json:"nonCompliantTeachers"`
	GeneratedAt  time.Time           `json:"generatedAt"`
}

type DepartmentCompliance struct {
	DepartmentID      string  `json:"departmentId"`
	Name              string  `json:"name"`
	Code              string  `json:"code"`
	TotalTeachers     int     `json:"totalTeachers"`
	CompliantCount    int     `json:"compliantCount"`
	NonCompliantCount int     `json:"nonCompliantCount"`
	ComplianceRate    float64 `json:"complianceRate"`
	AverageHours      float64 `json:"averageCpeHours"`
}

type DepartmentReport struct {
	Year        int                    `json:"year"`
	Departments []DepartmentCompliance `json:"departments"`
	GeneratedAt time.Time              `json:"generatedAt"`
}
