// Package workflow provides the transition-table guard shared by the
// clinic's status machines (assignments, consultations, sessions, client
// lifecycle). A machine is a static table; the guard is evaluated by the
// owning service inside the transaction that re-reads current state, so
// two racing transitions resolve against committed state rather than
// last-committer-wins.
package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// InvalidTransitionError reports a status change not permitted from the
// current state. Allowed lists the permissible targets so callers can
// surface actionable guidance.
type InvalidTransitionError struct {
	From      string
	Requested string
	Allowed   []string
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("cannot transition from terminal status %q", e.From)
	}
	return fmt.Sprintf("cannot transition from %q to %q; allowed targets: %s",
		e.From, e.Requested, strings.Join(e.Allowed, ", "))
}

// Machine is an immutable transition table over string statuses.
type Machine struct {
	transitions map[string][]string
}

// New builds a machine from a transition table. States with an empty (or
// absent) target list are terminal.
func New(transitions map[string][]string) *Machine {
	copied := make(map[string][]string, len(transitions))
	for from, targets := range transitions {
		ts := append([]string(nil), targets...)
		sort.Strings(ts)
		copied[from] = ts
	}
	return &Machine{transitions: copied}
}

// Allowed returns the permissible targets from the given state. The
// result is sorted and must not be mutated.
func (m *Machine) Allowed(from string) []string {
	return m.transitions[from]
}

// Can reports whether the transition from -> to is in the table.
func (m *Machine) Can(from, to string) bool {
	for _, t := range m.transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Check returns nil when the transition is permitted and an
// *InvalidTransitionError otherwise.
func (m *Machine) Check(from, to string) error {
	if m.Can(from, to) {
		return nil
	}
	return &InvalidTransitionError{
		From:      from,
		Requested: to,
		Allowed:   m.Allowed(from),
	}
}

// Terminal reports whether the state has no outgoing transitions.
func (m *Machine) Terminal(state string) bool {
	return len(m.transitions[state]) == 0
}
