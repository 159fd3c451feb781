package auth

import "context"

const (
	RoleTeacher   = "teacher"
	RolePrincipal = "principal"
	RoleHRAdmin   = "hr_admin"
)

const (
	PermAppraisalRead     = "appraisal.read"
	PermAppraisalSelf     = "appraisal.self"
	PermAppraisalScore    = "appraisal.score"
	PermAppraisalReview   = "appraisal.review"
	PermAppraisalFinalize = "appraisal.finalize"
	PermAppraisalOverride = "appraisal.override"
	PermKPIRead           = "kpi.read"
	PermKPIWrite          = "kpi.write"
	PermKPIReview         = "kpi.review"
	PermCPERead           = "cpe.read"
	PermCPEWrite          = "cpe.write"
	PermCPEReview         = "cpe.review"
	PermRubricRead        = "rubric.read"
	PermRubricWrite       = "rubric.write"
	PermTeachersRead      = "teachers.read"
	PermTeachersWrite     = "teachers.write"
	PermReportsRead       = "reports.read"
	PermJobsRun           = "jobs.run"
	PermAuditRead         = "audit.read"
)

var DefaultPermissions = []string{
	PermAppraisalRead,
	PermAppraisalSelf,
	PermAppraisalScore,
	PermAppraisalReview,
	PermAppraisalFinalize,
	PermAppraisalOverride,
	PermKPIRead,
	PermKPIWrite,
	PermKPIReview,
	PermCPERead,
	PermCPEWrite,
	PermCPEReview,
	PermRubricRead,
	PermRubricWrite,
	PermTeachersRead,
	PermTeachersWrite,
	PermReportsRead,
	PermJobsRun,
	PermAuditRead,
}

var RolePermissions = map[string][]string{
	RoleTeacher: {
		PermAppraisalRead,
		PermAppraisalSelf,
		PermKPIRead,
		PermKPIWrite,
		PermCPERead,
		PermCPEWrite,
		PermRubricRead,
	},
	RolePrincipal: {
		PermAppraisalRead,
		PermAppraisalScore,
		PermAppraisalReview,
		PermAppraisalOverride,
		PermKPIRead,
		PermKPIReview,
		PermCPERead,
		PermCPEReview,
		PermRubricRead,
		PermTeachersRead,
		PermReportsRead,
	},
	RoleHRAdmin: {
		PermAppraisalRead,
		PermAppraisalScore,
		PermAppraisalFinalize,
		PermKPIRead,
		PermKPIReview,
		PermCPERead,
		PermCPEWrite,
		PermCPEReview,
		PermRubricRead,
		PermRubricWrite,
		PermTeachersRead,
		PermTeachersWrite,
		PermReportsRead,
		PermJobsRun,
		PermAuditRead,
	},
}

func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}

// StaticPermissions resolves permissions from RolePermissions.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(ctx context.Context, role, permission string) (bool, error) {
	for _, perm := range RolePermissions[role] {
		if perm == permission {
			return true, nil
		}
	}
	return false, nil
}
