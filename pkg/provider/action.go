package provider

import (
	"context"
	"fmt"
)

// ActionKind represents the kind of change an action makes.
type ActionKind string

const (
	ActionCreate ActionKind = "create"
	ActionUpdate ActionKind = "update"
	ActionDelete ActionKind = "delete"
)

// Action is a single change to a record in the zone.
// For updates Previous holds the record being replaced.
type Action struct {
	Kind     ActionKind
	Record   Record
	Previous *Record
}

// Create returns an action that adds record.
func Create(record Record) Action {
	return Action{Kind: ActionCreate, Record: record}
}

// Update returns an action that replaces old with updated.
func Update(old, updated Record) Action {
	return Action{Kind: ActionUpdate, Record: updated, Previous: &old}
}

// Delete returns an action that removes record.
func Delete(record Record) Action {
	return Action{Kind: ActionDelete, Record: record}
}

// Key returns the record identity the action targets.
func (a Action) Key() Key {
	return a.Record.Key()
}

func (a Action) String() string {
	switch a.Kind {
	case ActionUpdate:
		if a.Previous != nil {
			return fmt.Sprintf("update %s %s %s -> %s", a.Record.Name, a.Record.Type, a.Previous.Value, a.Record.Value)
		}
	}
	return fmt.Sprintf("%s %s", a.Kind, a.Record)
}

// ActionResult is the outcome of applying one action.
type ActionResult struct {
	Action Action
	Err    error
}

// OK reports whether the action was applied.
func (r ActionResult) OK() bool {
	return r.Err == nil
}

// ApplyEach applies actions one at a time through w.
// Errors are wrapped in *ApplyError and recorded; the batch always runs to completion.
func ApplyEach(ctx context.Context, w RecordWriter, actions []Action) []ActionResult {
	results := make([]ActionResult, 0, len(actions))
	for _, action := range actions {
		var err error
		switch action.Kind {
		case ActionCreate:
			err = w.Create(ctx, action.Record)
		case ActionUpdate:
			if action.Previous == nil {
				err = fmt.Errorf("update of %s has no previous record", action.Key())
				break
			}
			err = w.Update(ctx, *action.Previous, action.Record)
		case ActionDelete:
			err = w.Delete(ctx, action.Record)
		default:
			err = fmt.Errorf("unknown action kind %q", action.Kind)
		}
		if err != nil {
			err = &ApplyError{Action: action, Err: err}
		}
		results = append(results, ActionResult{Action: action, Err: err})
	}
	return results
}
