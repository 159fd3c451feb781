package cpe

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"

	ComplianceCompliant    = "compliant"
	ComplianceNonCompliant = "non_compliant"

	// MinimumPoints is the yearly approved CPE requirement.
	MinimumPoints = 40.0
)
