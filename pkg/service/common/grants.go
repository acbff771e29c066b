// Package common holds the capability model shared by the authorization and
// resource sides of the service.
package common

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Action is a capability class a grant can authorize.
type Action string

const (
	ActionView    Action = "view"
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
)

// IsValid reports whether the action is one of the known capability classes.
func (a Action) IsValid() bool {
	switch a {
	case ActionView, ActionSubmit, ActionApprove:
		return true
	}
	return false
}

// Grant is a capability, optionally bounded by a numeric ceiling. A ceiling is
// only meaningful on the approve action, where its value is always a verbatim
// copy of a verified credential claim.
type Grant struct {
	Action  Action `json:"action"`
	Ceiling int64  `json:"ceiling,omitempty"`
}

// GrantSet is a deduplicated set of grants keyed by action.
type GrantSet map[Action]Grant

// Get returns the grant for an action, if present.
func (gs GrantSet) Get(action Action) (Grant, bool) {
	grant, ok := gs[action]
	return grant, ok
}

// Actions returns the sorted actions present in the set.
func (gs GrantSet) Actions() []Action {
	actions := make([]Action, 0, len(gs))
	for action := range gs {
		actions = append(actions, action)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

// Encode serializes the grant set as a space-separated scope string, e.g.
// "approve:10000 submit view". The encoding is stable across calls.
func (gs GrantSet) Encode() string {
	parts := make([]string, 0, len(gs))
	for _, action := range gs.Actions() {
		grant := gs[action]
		if grant.Ceiling > 0 {
			parts = append(parts, string(grant.Action)+":"+strconv.FormatInt(grant.Ceiling, 10))
		} else {
			parts = append(parts, string(grant.Action))
		}
	}
	return strings.Join(parts, " ")
}

// ParseGrantSet decodes a scope string produced by Encode.
func ParseGrantSet(scope string) (GrantSet, error) {
	grants := make(GrantSet)
	if scope == "" {
		return grants, nil
	}
	for _, part := range strings.Fields(scope) {
		action, ceilingStr, hasCeiling := strings.Cut(part, ":")
		grant := Grant{Action: Action(action)}
		if !grant.Action.IsValid() {
			return nil, errors.Errorf("unknown action in scope: %s", action)
		}
		if hasCeiling {
			ceiling, err := strconv.ParseInt(ceilingStr, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing ceiling for action<%s>", action)
			}
			grant.Ceiling = ceiling
		}
		grants[grant.Action] = grant
	}
	return grants, nil
}
