package appraisal

// State is an appraisal workflow status as stored in annual_appraisals.status.
type State string

const (
	StateDraft            State = "draft"
	StateKPIProposal      State = "kpi_proposal"
	StatePendingFEO       State = "pending_feo"
	StateUnderRevision    State = "under_revision"
	StateDisputed         State = "disputed"
	StatePendingPrincipal State = "pending_principal"
	StateRevisionRequired State = "revision_required"
	StatePendingHR        State = "pending_hr"
	StateCompleted        State = "completed"
)

// States lists every workflow state in workflow order.
var States = []State{
	StateDraft,
	StateKPIProposal,
	StatePendingFEO,
	StateUnderRevision,
	StateDisputed,
	StatePendingPrincipal,
	StateRevisionRequired,
	StatePendingHR,
	StateCompleted,
}

func (s State) Valid() bool {
	for _, state := range States {
		if state == s {
			return true
		}
	}
	return false
}

func (s State) String() string {
	return string(s)
}

// Self-assessment text and the teaching load can be edited while the teacher
// still owns the appraisal.
var selfEditableStates = map[State]bool{
	StateDraft:         true,
	StateKPIProposal:   true,
	StateUnderRevision: true,
}

// Scores are entered by the FEO and may be corrected during the review loops.
var scorableStates = map[State]bool{
	StatePendingFEO:       true,
	StateUnderRevision:    true,
	StateDisputed:         true,
	StatePendingPrincipal: true,
	StateRevisionRequired: true,
}

var overridableStates = map[State]bool{
	StatePendingPrincipal: true,
	StatePendingHR:        true,
}

const (
	RoleTeacher   = "teacher"
	RolePrincipal = "principal"
	RoleHRAdmin   = "hr_admin"
)

const (
	PersonalityMin = 1
	PersonalityMax = 10
)
