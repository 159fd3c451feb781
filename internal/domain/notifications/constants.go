package notifications

const (
	TypeAppraisalTransition = "appraisal_transition"
	TypeScoreOverridden     = "appraisal_score_overridden"
	TypeKPIReviewed         = "kpi_reviewed"
	TypeCPEReviewed         = "cpe_reviewed"
)
