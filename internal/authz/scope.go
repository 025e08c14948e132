package authz

import (
	"fmt"

	"github.com/stratus-ops/stratus/internal/directory"
)

// EvaluateScope decides whether a granted permission with the given scope
// covers the object described by rctx. Both the single-object check and the
// list-filter path derive from this one predicate so the two can never
// disagree.
func EvaluateScope(scope Scope, user directory.User, rctx *ResourceContext) (bool, error) {
	switch scope {
	case ScopeAll:
		return true, nil
	case ScopeOwn:
		if rctx == nil {
			return false, fmt.Errorf("%w: scope %q", ErrMissingContext, scope)
		}
		return rctx.OwnerID == user.ID, nil
	case ScopeTeam:
		if rctx == nil {
			return false, fmt.Errorf("%w: scope %q", ErrMissingContext, scope)
		}
		// A user without a team never passes a team-scoped grant.
		if user.TeamID == nil || rctx.TeamID == nil {
			return false, nil
		}
		return *rctx.TeamID == *user.TeamID, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}
}

// FilterForScope turns a granted scope into the equivalent list filter for
// the given user.
func FilterForScope(scope Scope, user directory.User) (ListFilter, error) {
	switch scope {
	case ScopeAll:
		return ListFilter{Kind: FilterUnrestricted}, nil
	case ScopeOwn:
		return ListFilter{Kind: FilterOwnerEquals, OwnerID: user.ID}, nil
	case ScopeTeam:
		if user.TeamID == nil {
			return ListFilter{Kind: FilterForbidden}, nil
		}
		return ListFilter{Kind: FilterTeamEquals, TeamID: *user.TeamID}, nil
	default:
		return ListFilter{}, fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}
}
