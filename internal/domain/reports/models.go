package reports

// Dashboard is the landing summary; which counters are filled depends on the
// caller's role.
type Dashboard struct {
	Role            string         `json:"role"`
	Year            int            `json:"year"`
	StatusCounts    map[string]int `json:"statusCounts"`
	AwaitingAction  int            `json:"awaitingAction"`
	PendingKPIs     int            `json:"pendingKpiRequests"`
	PendingCPE      int            `json:"pendingCpeRecords"`
	CPEPoints       float64        `json:"cpePoints"`
	AppraisalID     string         `json:"appraisalId,omitempty"`
	AppraisalStatus string         `json:"appraisalStatus,omitempty"`
}
