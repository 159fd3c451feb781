package appraisal

import (
	"context"
	"fmt"

	"teacherhr/internal/domain/cpe"
)

// Facts are the lookups a guard needs beyond the appraisal row. They are read
// before the row is locked, so a transition never waits for a second pool
// connection while its transaction holds one.
type Facts struct {
	PendingKPIs int
	CPE         cpe.Compliance
}

// FactLoader reads the facts for the appraisal's teacher and year. Both are
// fixed at creation, so loading them ahead of the lock is safe.
type FactLoader func(ctx context.Context, a Appraisal) (Facts, error)

// Guard checks the entry precondition of a state against the locked row. A
// non-empty condition rejects the transition.
type Guard func(a Appraisal, facts Facts) (condition string)

// AfterHook runs once the transition into its state has been committed.
type AfterHook func(ctx context.Context, a Appraisal) error

// noGuard marks states that can be entered unconditionally. Every target state
// carries a guard entry, so a missing guard is a table error, never a pass.
func noGuard(Appraisal, Facts) string {
	return ""
}

// Rule is the row of the transition table for one state.
type Rule struct {
	// Targets are the states reachable from this state.
	Targets []State
	// Guard is evaluated when a transition targets this state.
	Guard Guard
	// Facts loads what Guard needs before the row is locked. Optional.
	Facts FactLoader
	// After runs after a transition into this state commits. Optional.
	After AfterHook
	// Locks marks the state as final: entering it sets is_locked and completed_at
	// in the same statement as the status change.
	Locks bool
}

type Machine struct {
	rules map[State]Rule
}

// NewMachine validates the table: every state has a row and a guard, and every
// target is a known state.
func NewMachine(rules map[State]Rule) (*Machine, error) {
	for _, state := range States {
		rule, ok := rules[state]
		if !ok {
			return nil, fmt.Errorf("transition table: missing row for %s", state)
		}
		if rule.Guard == nil {
			return nil, fmt.Errorf("transition table: missing guard for %s", state)
		}
		for _, target := range rule.Targets {
			if !target.Valid() {
				return nil, fmt.Errorf("transition table: %s targets unknown state %q", state, target)
			}
			if target == state {
				return nil, fmt.Errorf("transition table: %s targets itself", state)
			}
		}
	}
	for state := range rules {
		if !state.Valid() {
			return nil, fmt.Errorf("transition table: unknown state %q", state)
		}
	}
	return &Machine{rules: rules}, nil
}

func (m *Machine) Allows(from, to State) bool {
	for _, target := range m.rules[from].Targets {
		if target == to {
			return true
		}
	}
	return false
}

// Targets returns a copy of the states reachable from state.
func (m *Machine) Targets(state State) []State {
	targets := m.rules[state].Targets
	out := make([]State, len(targets))
	copy(out, targets)
	return out
}

func (m *Machine) Rule(state State) Rule {
	return m.rules[state]
}

// Terminal reports whether state has no outgoing transitions.
func (m *Machine) Terminal(state State) bool {
	return len(m.rules[state].Targets) == 0
}

// workflowTargets is the allowed transition table of the appraisal workflow.
var workflowTargets = map[State][]State{
	StateDraft:            {StateKPIProposal},
	StateKPIProposal:      {StatePendingFEO},
	StatePendingFEO:       {StatePendingPrincipal, StateDisputed, StateUnderRevision},
	StateUnderRevision:    {StatePendingFEO},
	StateDisputed:         {StatePendingPrincipal},
	StatePendingPrincipal: {StatePendingHR, StateDisputed, StateRevisionRequired},
	StateRevisionRequired: {StatePendingPrincipal},
	StatePendingHR:        {StateCompleted},
	StateCompleted:        {},
}

// workflowRules binds the service's guards and hooks to the workflow table.
func (s *Service) workflowRules() map[State]Rule {
	rules := make(map[State]Rule, len(States))
	for _, state := range States {
		rules[state] = Rule{Targets: workflowTargets[state], Guard: noGuard}
	}
	set := func(state State, edit func(*Rule)) {
		rule := rules[state]
		edit(&rule)
		rules[state] = rule
	}
	set(StateKPIProposal, func(r *Rule) { r.Guard = s.guardSelfAssessment })
	set(StatePendingFEO, func(r *Rule) {
		r.Guard = s.guardNoPendingKPIs
		r.Facts = s.loadPendingKPIs
	})
	set(StatePendingPrincipal, func(r *Rule) {
		r.Guard = s.guardFEOScored
		r.After = s.scoreAfterCommit
	})
	set(StatePendingHR, func(r *Rule) { r.Guard = s.guardPrincipalComment })
	set(StateCompleted, func(r *Rule) {
		r.Guard = s.guardHRSignOff
		r.Facts = s.loadCompliance
		r.Locks = true
	})
	return rules
}
