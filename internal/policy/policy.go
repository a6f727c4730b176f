// Package policy restricts a plan to the action kinds an operator permits.
package policy

import (
	"fmt"
	"strings"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/plan"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
)

// Policy selects which action kinds may be applied.
type Policy string

const (
	// CreateOnly only creates records.
	CreateOnly Policy = "createonly"
	// Upsert creates and updates records.
	Upsert Policy = "upsert"
	// Sync creates, updates and deletes records.
	Sync Policy = "sync"
)

// Default is the policy used when none is configured.
const Default = Sync

// Parse converts a configuration string into a Policy.
func Parse(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case CreateOnly, Upsert, Sync:
		return p, nil
	default:
		return "", fmt.Errorf("invalid policy %q (must be createonly, upsert, or sync)", s)
	}
}

func (p Policy) String() string {
	return string(p)
}

// Allows reports whether the policy permits actions of kind.
func (p Policy) Allows(kind provider.ActionKind) bool {
	switch kind {
	case provider.ActionCreate:
		return p == CreateOnly || p == Upsert || p == Sync
	case provider.ActionUpdate:
		return p == Upsert || p == Sync
	case provider.ActionDelete:
		return p == Sync
	default:
		return false
	}
}

// Filter returns the part of in that p permits, plus the dropped actions.
// Relative order of the kept actions is preserved.
func Filter(in *plan.Plan, p Policy) (*plan.Plan, []provider.Action) {
	kept := make([]provider.Action, 0, len(in.Actions))
	var dropped []provider.Action

	for _, action := range in.Actions {
		if p.Allows(action.Kind) {
			kept = append(kept, action)
		} else {
			dropped = append(dropped, action)
		}
	}

	return in.WithActions(kept), dropped
}
