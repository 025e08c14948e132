package authz

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratus-ops/stratus/internal/directory"
)

func TestEvaluateScopeAll(t *testing.T) {
	user := directory.User{ID: 7}

	allow, err := EvaluateScope(ScopeAll, user, nil)
	require.NoError(t, err)
	require.True(t, allow)

	allow, err = EvaluateScope(ScopeAll, user, &ResourceContext{OwnerID: 99})
	require.NoError(t, err)
	require.True(t, allow)
}

func TestEvaluateScopeOwn(t *testing.T) {
	user := directory.User{ID: 7}

	allow, err := EvaluateScope(ScopeOwn, user, &ResourceContext{OwnerID: 7})
	require.NoError(t, err)
	require.True(t, allow)

	allow, err = EvaluateScope(ScopeOwn, user, &ResourceContext{OwnerID: 8})
	require.NoError(t, err)
	require.False(t, allow)

	_, err = EvaluateScope(ScopeOwn, user, nil)
	require.ErrorIs(t, err, ErrMissingContext)
}

func TestEvaluateScopeTeam(t *testing.T) {
	user := directory.User{ID: 7, TeamID: teamID(3)}

	allow, err := EvaluateScope(ScopeTeam, user, &ResourceContext{OwnerID: 8, TeamID: teamID(3)})
	require.NoError(t, err)
	require.True(t, allow)

	allow, err = EvaluateScope(ScopeTeam, user, &ResourceContext{OwnerID: 8, TeamID: teamID(4)})
	require.NoError(t, err)
	require.False(t, allow)

	// Object with no team never matches a team-scoped grant.
	allow, err = EvaluateScope(ScopeTeam, user, &ResourceContext{OwnerID: 8})
	require.NoError(t, err)
	require.False(t, allow)

	_, err = EvaluateScope(ScopeTeam, user, nil)
	require.ErrorIs(t, err, ErrMissingContext)
}

func TestEvaluateScopeTeamUserWithoutTeam(t *testing.T) {
	user := directory.User{ID: 7}

	allow, err := EvaluateScope(ScopeTeam, user, &ResourceContext{OwnerID: 7, TeamID: teamID(3)})
	require.NoError(t, err)
	require.False(t, allow)
}

func TestEvaluateScopeInvalid(t *testing.T) {
	_, err := EvaluateScope(Scope("everything"), directory.User{ID: 1}, nil)
	require.ErrorIs(t, err, ErrInvalidScope)
}

func TestFilterForScope(t *testing.T) {
	withTeam := directory.User{ID: 7, TeamID: teamID(3)}
	withoutTeam := directory.User{ID: 9}

	f, err := FilterForScope(ScopeAll, withoutTeam)
	require.NoError(t, err)
	require.Equal(t, FilterUnrestricted, f.Kind)

	f, err = FilterForScope(ScopeOwn, withoutTeam)
	require.NoError(t, err)
	require.Equal(t, FilterOwnerEquals, f.Kind)
	require.Equal(t, int64(9), f.OwnerID)

	f, err = FilterForScope(ScopeTeam, withTeam)
	require.NoError(t, err)
	require.Equal(t, FilterTeamEquals, f.Kind)
	require.Equal(t, int64(3), f.TeamID)

	f, err = FilterForScope(ScopeTeam, withoutTeam)
	require.NoError(t, err)
	require.Equal(t, FilterForbidden, f.Kind)

	_, err = FilterForScope(Scope("x"), withTeam)
	require.ErrorIs(t, err, ErrInvalidScope)
}

// The filter must agree with the predicate for every object a scope can see.
func TestFilterMatchesEvaluateScope(t *testing.T) {
	users := []directory.User{
		{ID: 1, TeamID: teamID(10)},
		{ID: 2, TeamID: teamID(20)},
		{ID: 3},
	}
	objects := []ResourceContext{
		{OwnerID: 1, TeamID: teamID(10)},
		{OwnerID: 2, TeamID: teamID(20)},
		{OwnerID: 3},
		{OwnerID: 4, TeamID: teamID(10)},
	}

	for _, scope := range []Scope{ScopeOwn, ScopeTeam, ScopeAll} {
		for _, user := range users {
			filter, err := FilterForScope(scope, user)
			require.NoError(t, err)
			for _, obj := range objects {
				obj := obj
				allow, err := EvaluateScope(scope, user, &obj)
				require.NoError(t, err)
				require.Equal(t, allow, filter.Matches(obj),
					"scope %s user %d object owner %d", scope, user.ID, obj.OwnerID)
			}
		}
	}
}
