package reconciler

import (
	"fmt"
	"net/netip"
	"time"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/metrics"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/plan"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
)

// ActionStatus represents the outcome of an action.
type ActionStatus string

const (
	// StatusSuccess indicates the provider applied the action.
	StatusSuccess ActionStatus = "success"

	// StatusFailed indicates the provider rejected the action.
	StatusFailed ActionStatus = "failed"

	// StatusPlanned indicates the action was reported but not applied (dry-run).
	StatusPlanned ActionStatus = "planned"

	// StatusDropped indicates the policy did not permit the action.
	StatusDropped ActionStatus = "dropped"
)

// Action records a single planned or applied record change.
type Action struct {
	Kind     provider.ActionKind
	Status   ActionStatus
	Provider string
	Name     string
	Type     provider.RecordType
	Value    string

	// Previous is the value being replaced, set for updates.
	Previous string

	// Error contains the failure message for failed actions.
	Error string
}

// newAction converts a provider action into a result entry.
func newAction(providerName string, a provider.Action, status ActionStatus, err error) Action {
	out := Action{
		Kind:     a.Kind,
		Status:   status,
		Provider: providerName,
		Name:     a.Record.Name,
		Type:     a.Record.Type,
		Value:    a.Record.Value,
	}
	if a.Previous != nil {
		out.Previous = a.Previous.Value
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// String returns a human-readable representation of the action.
func (a Action) String() string {
	value := a.Value
	if a.Previous != "" {
		value = a.Previous + " -> " + a.Value
	}

	if a.Error != "" {
		return fmt.Sprintf("[%s] %s %s %s %s (%s): %s",
			a.Status, a.Kind, a.Name, a.Type, value, a.Provider, a.Error)
	}
	return fmt.Sprintf("[%s] %s %s %s %s (%s)",
		a.Status, a.Kind, a.Name, a.Type, value, a.Provider)
}

// Result holds the outcome of one reconciliation cycle.
type Result struct {
	// CycleID correlates the log lines of one cycle.
	CycleID string

	StartTime time.Time
	EndTime   time.Time

	// Provider is the name of the provider instance the cycle ran against.
	Provider string

	// Target is the IPv4 address resolved for this cycle.
	Target netip.Addr

	// RecordsFetched is the number of records the provider returned.
	RecordsFetched int

	// Actions contains every action that was applied, planned (dry-run) or
	// dropped by the policy.
	Actions []Action

	// Skipped lists names that needed changes but belong to someone else.
	Skipped []plan.Skip

	// ParseErrors is the number of malformed ownership records seen.
	ParseErrors int

	// Err is set when the cycle was aborted before planning.
	Err error

	// DryRun indicates if this was a dry-run (no changes applied).
	DryRun bool
}

// NewResult creates a new Result with the start time set to now.
func NewResult(cycleID string, dryRun bool) *Result {
	return &Result{
		CycleID:   cycleID,
		StartTime: time.Now(),
		Actions:   make([]Action, 0),
		DryRun:    dryRun,
	}
}

// Complete marks the result as complete with the end time set to now.
func (r *Result) Complete() {
	r.EndTime = time.Now()
}

// Duration returns the total cycle duration.
func (r *Result) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// AddAction adds an action to the result.
func (r *Result) AddAction(action Action) {
	r.Actions = append(r.Actions, action)
}

func (r *Result) filterActions(kind provider.ActionKind, status ActionStatus) []Action {
	var filtered []Action
	for _, a := range r.Actions {
		if (kind == "" || a.Kind == kind) && a.Status == status {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

// Created returns all successful create actions.
func (r *Result) Created() []Action {
	return r.filterActions(provider.ActionCreate, StatusSuccess)
}

// Updated returns all successful update actions.
func (r *Result) Updated() []Action {
	return r.filterActions(provider.ActionUpdate, StatusSuccess)
}

// Deleted returns all successful delete actions.
func (r *Result) Deleted() []Action {
	return r.filterActions(provider.ActionDelete, StatusSuccess)
}

// Failed returns all failed actions.
func (r *Result) Failed() []Action {
	return r.filterActions("", StatusFailed)
}

// Planned returns the actions a dry-run would have applied.
func (r *Result) Planned() []Action {
	return r.filterActions("", StatusPlanned)
}

// Dropped returns the actions the policy did not permit.
func (r *Result) Dropped() []Action {
	return r.filterActions("", StatusDropped)
}

// HasErrors returns true if the cycle was aborted or any action failed.
func (r *Result) HasErrors() bool {
	return r.Err != nil || len(r.Failed()) > 0
}

// Status returns the cycle outcome used as the cycles_total label.
func (r *Result) Status() string {
	if r.Err != nil {
		return metrics.CycleFailed
	}
	failed := len(r.Failed())
	switch {
	case failed > 0 && failed == len(r.Actions)-len(r.Dropped()):
		return metrics.CycleFailed
	case failed > 0:
		return metrics.CyclePartial
	case r.DryRun:
		return metrics.CycleDryRun
	default:
		return metrics.CycleSuccess
	}
}

// Summary returns a brief summary string.
func (r *Result) Summary() string {
	if r.Err != nil {
		return fmt.Sprintf("cycle aborted after %v: %v", r.Duration().Round(time.Millisecond), r.Err)
	}

	if r.DryRun {
		return fmt.Sprintf("[dry-run] planned=%d dropped=%d skipped=%d duration=%v",
			len(r.Planned()), len(r.Dropped()), len(r.Skipped), r.Duration().Round(time.Millisecond))
	}
	return fmt.Sprintf("created=%d updated=%d deleted=%d failed=%d dropped=%d skipped=%d duration=%v",
		len(r.Created()),
		len(r.Updated()),
		len(r.Deleted()),
		len(r.Failed()),
		len(r.Dropped()),
		len(r.Skipped),
		r.Duration().Round(time.Millisecond),
	)
}
