// Package plan computes the actions needed to bring A records in line with
// the AAAA records of a zone.
package plan

import (
	"net/netip"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
)

// Endpoint is the desired IPv4 state for one name.
type Endpoint struct {
	Name   string
	Target netip.Addr
}

// SkipReason describes why a name was left alone.
type SkipReason string

const (
	// SkipForeign means the name is claimed by another instance.
	SkipForeign SkipReason = "foreign"

	// SkipUnlabeled means the name already has A records that carry no
	// ownership record. They were not written by this tool.
	SkipUnlabeled SkipReason = "unlabeled"
)

// Skip records a name that needed changes but was not touched.
type Skip struct {
	Name   string
	Reason SkipReason
	Owner  string
}

// Plan is the ordered set of actions for one cycle.
type Plan struct {
	Target    netip.Addr
	Actions   []provider.Action
	Skipped   []Skip
	Endpoints []Endpoint

	// ParseErrors holds the ownership records that were ignored as malformed.
	ParseErrors []error
}

// Empty reports whether the plan has no actions.
func (p *Plan) Empty() bool {
	return len(p.Actions) == 0
}

// Count returns the number of actions of the given kind.
func (p *Plan) Count(kind provider.ActionKind) int {
	n := 0
	for _, a := range p.Actions {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// WithActions returns a copy of the plan carrying a different action list.
func (p *Plan) WithActions(actions []provider.Action) *Plan {
	cp := *p
	cp.Actions = actions
	return &cp
}
