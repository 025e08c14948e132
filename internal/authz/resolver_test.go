package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratus-ops/stratus/internal/directory"
)

func newTestResolver(t *testing.T) (*Resolver, *memoryStore, *memoryCatalog) {
	t.Helper()
	dir := newMemoryDirectory(
		directory.User{ID: 1, RoleID: 1, IsActive: true},                  // admin, no team
		directory.User{ID: 2, RoleID: 2, TeamID: teamID(5), IsActive: true}, // team leader, team 5
		directory.User{ID: 3, RoleID: 3, TeamID: teamID(5), IsActive: true}, // employee, team 5
		directory.User{ID: 4, RoleID: 3, IsActive: true},                  // employee, no team
	)
	store := newMemoryStore()
	catalog := newMemoryCatalog()
	return NewResolver(dir, store, catalog), store, catalog
}

func grant(catalog *memoryCatalog, roleID int64, resource, action string, granted bool, scope Scope) Permission {
	return Permission{
		RoleID:     roleID,
		ResourceID: catalog.resourceID(resource),
		ActionID:   catalog.actionID(action),
		Granted:    granted,
		Scope:      scope,
	}
}

func TestCheckFailClosedWithoutRow(t *testing.T) {
	resolver, _, _ := newTestResolver(t)

	dec, err := resolver.Check(context.Background(), 3, ActionRead, ResourceEntries, &ResourceContext{OwnerID: 3})
	require.NoError(t, err)
	require.False(t, dec.Allow)
}

func TestCheckRevokedRowDeniesRegardlessOfScope(t *testing.T) {
	resolver, store, catalog := newTestResolver(t)
	store.put(grant(catalog, 3, ResourceEntries, ActionRead, false, ScopeAll))

	dec, err := resolver.Check(context.Background(), 3, ActionRead, ResourceEntries, nil)
	require.NoError(t, err)
	require.False(t, dec.Allow)
}

func TestCheckAllScope(t *testing.T) {
	resolver, store, catalog := newTestResolver(t)
	store.put(grant(catalog, 1, ResourceEntries, ActionRead, true, ScopeAll))

	dec, err := resolver.Check(context.Background(), 1, ActionRead, ResourceEntries, nil)
	require.NoError(t, err)
	require.True(t, dec.Allow)
	require.Equal(t, ScopeAll, dec.Scope)
}

func TestCheckOwnScope(t *testing.T) {
	resolver, store, catalog := newTestResolver(t)
	store.put(grant(catalog, 3, ResourceEntries, ActionUpdate, true, ScopeOwn))

	dec, err := resolver.Check(context.Background(), 3, ActionUpdate, ResourceEntries, &ResourceContext{OwnerID: 3})
	require.NoError(t, err)
	require.True(t, dec.Allow)

	dec, err = resolver.Check(context.Background(), 3, ActionUpdate, ResourceEntries, &ResourceContext{OwnerID: 2})
	require.NoError(t, err)
	require.False(t, dec.Allow)

	_, err = resolver.Check(context.Background(), 3, ActionUpdate, ResourceEntries, nil)
	require.ErrorIs(t, err, ErrMissingContext)
}

func TestCheckTeamScope(t *testing.T) {
	resolver, store, catalog := newTestResolver(t)
	store.put(grant(catalog, 2, ResourceEntries, ActionRead, true, ScopeTeam))

	dec, err := resolver.Check(context.Background(), 2, ActionRead, ResourceEntries, &ResourceContext{OwnerID: 3, TeamID: teamID(5)})
	require.NoError(t, err)
	require.True(t, dec.Allow)

	dec, err = resolver.Check(context.Background(), 2, ActionRead, ResourceEntries, &ResourceContext{OwnerID: 9, TeamID: teamID(6)})
	require.NoError(t, err)
	require.False(t, dec.Allow)
}

func TestCheckTeamScopeUserWithoutTeamAlwaysDenied(t *testing.T) {
	resolver, store, catalog := newTestResolver(t)
	store.put(grant(catalog, 3, ResourceEntries, ActionRead, true, ScopeTeam))

	// User 4 has the grant through their role but no team assignment.
	dec, err := resolver.Check(context.Background(), 4, ActionRead, ResourceEntries, &ResourceContext{OwnerID: 4, TeamID: teamID(5)})
	require.NoError(t, err)
	require.False(t, dec.Allow)
}

func TestCheckUnknownUser(t *testing.T) {
	resolver, _, _ := newTestResolver(t)

	_, err := resolver.Check(context.Background(), 999, ActionRead, ResourceEntries, nil)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestCheckUnknownResource(t *testing.T) {
	resolver, _, _ := newTestResolver(t)

	_, err := resolver.Check(context.Background(), 1, ActionRead, "ledgers", nil)
	require.ErrorIs(t, err, ErrUnknownReference)
}

func TestFilterForForbiddenWithoutRow(t *testing.T) {
	resolver, _, _ := newTestResolver(t)

	filter, err := resolver.FilterFor(context.Background(), 3, ActionRead, ResourceEntries)
	require.NoError(t, err)
	require.Equal(t, FilterForbidden, filter.Kind)
}

func TestFilterForUnknownUser(t *testing.T) {
	resolver, _, _ := newTestResolver(t)

	_, err := resolver.FilterFor(context.Background(), 999, ActionRead, ResourceEntries)
	require.ErrorIs(t, err, ErrUserNotFound)
}

// FilterFor and Check share one matrix lookup and one scope predicate: for
// any object, the filter admits it exactly when Check allows it.
func TestFilterForAgreesWithCheck(t *testing.T) {
	resolver, store, catalog := newTestResolver(t)

	objects := []ResourceContext{
		{OwnerID: 1},
		{OwnerID: 2, TeamID: teamID(5)},
		{OwnerID: 3, TeamID: teamID(5)},
		{OwnerID: 4},
		{OwnerID: 9, TeamID: teamID(6)},
	}

	cases := []struct {
		name   string
		roleID int64
		userID int64
		scope  Scope
	}{
		{"admin all", 1, 1, ScopeAll},
		{"leader team", 2, 2, ScopeTeam},
		{"employee own", 3, 3, ScopeOwn},
		{"employee no team, team scope", 3, 4, ScopeTeam},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store.put(grant(catalog, tc.roleID, ResourceEntries, ActionRead, true, tc.scope))

			filter, err := resolver.FilterFor(context.Background(), tc.userID, ActionRead, ResourceEntries)
			require.NoError(t, err)

			for _, obj := range objects {
				obj := obj
				dec, err := resolver.Check(context.Background(), tc.userID, ActionRead, ResourceEntries, &obj)
				require.NoError(t, err)
				require.Equal(t, dec.Allow, filter.Matches(obj),
					"object owner %d must be visible iff individually checkable", obj.OwnerID)
			}
		})
	}
}

func TestIsTopRole(t *testing.T) {
	resolver, _, _ := newTestResolver(t)

	top, err := resolver.IsTopRole(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, top)

	top, err = resolver.IsTopRole(context.Background(), 3)
	require.NoError(t, err)
	require.False(t, top)

	_, err = resolver.IsTopRole(context.Background(), 999)
	require.ErrorIs(t, err, ErrUserNotFound)
}
