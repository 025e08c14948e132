package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/stratus-ops/stratus/internal/directory"
	"github.com/stratus-ops/stratus/internal/shared"
)

// Directory resolves acting users to their role and team assignment. Owned
// by the user store, consumed here.
type Directory interface {
	GetUser(ctx context.Context, userID int64) (directory.User, error)
}

// MatrixReader is the read path into the permission matrix. Absence of a row
// is not an error: it is the fail-closed default.
type MatrixReader interface {
	GetPermission(ctx context.Context, key Key) (*Permission, error)
}

// Resolver answers "may user U perform action A on resource R" against the
// current matrix snapshot. Purely a read path; safe for arbitrary concurrent
// callers.
type Resolver struct {
	dir     Directory
	matrix  MatrixReader
	catalog Catalog
}

// NewResolver constructs a Resolver.
func NewResolver(dir Directory, matrix MatrixReader, catalog Catalog) *Resolver {
	return &Resolver{dir: dir, matrix: matrix, catalog: catalog}
}

// Check decides a single-object operation. rctx may be nil only for
// permissions that turn out to be all-scoped; own/team scopes without a
// context are a caller bug and surface as ErrMissingContext.
//
// A deny is a normal outcome. Errors are never downgraded to deny: the
// caller must be able to tell "you may not" from "could not determine".
func (r *Resolver) Check(ctx context.Context, userID int64, action, resource string, rctx *ResourceContext) (Decision, error) {
	user, perm, err := r.lookup(ctx, userID, action, resource)
	if err != nil {
		return Decision{}, err
	}
	if perm == nil || !perm.Granted {
		return Decision{Allow: false}, nil
	}
	allow, err := EvaluateScope(perm.Scope, user, rctx)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Allow: allow, Scope: perm.Scope}, nil
}

// FilterFor builds the list-query filter equivalent of Check for the user.
// It shares the exact matrix lookup and scope semantics with Check, so a
// list endpoint can never expose a row the user could not check directly.
func (r *Resolver) FilterFor(ctx context.Context, userID int64, action, resource string) (ListFilter, error) {
	user, perm, err := r.lookup(ctx, userID, action, resource)
	if err != nil {
		return ListFilter{}, err
	}
	if perm == nil || !perm.Granted {
		return ListFilter{Kind: FilterForbidden}, nil
	}
	return FilterForScope(perm.Scope, user)
}

// IsTopRole reports whether the user's role sits at the top of the role
// hierarchy. The workflow guard layers its approved-state invariant on this.
func (r *Resolver) IsTopRole(ctx context.Context, userID int64) (bool, error) {
	user, err := r.getUser(ctx, userID)
	if err != nil {
		return false, err
	}
	role, err := r.catalog.RoleByID(ctx, user.RoleID)
	if err != nil {
		return false, err
	}
	top, err := r.catalog.MaxHierarchyLevel(ctx)
	if err != nil {
		return false, err
	}
	return role.HierarchyLevel >= top, nil
}

func (r *Resolver) lookup(ctx context.Context, userID int64, action, resource string) (directory.User, *Permission, error) {
	user, err := r.getUser(ctx, userID)
	if err != nil {
		return directory.User{}, nil, err
	}
	res, err := r.catalog.ResourceByName(ctx, resource)
	if err != nil {
		return directory.User{}, nil, err
	}
	act, err := r.catalog.ActionByName(ctx, action)
	if err != nil {
		return directory.User{}, nil, err
	}
	perm, err := r.matrix.GetPermission(ctx, Key{RoleID: user.RoleID, ResourceID: res.ID, ActionID: act.ID})
	if err != nil {
		return directory.User{}, nil, fmt.Errorf("authz: matrix lookup: %w", err)
	}
	return user, perm, nil
}

func (r *Resolver) getUser(ctx context.Context, userID int64) (directory.User, error) {
	user, err := r.dir.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return directory.User{}, fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
		}
		return directory.User{}, fmt.Errorf("authz: directory lookup: %w", err)
	}
	return user, nil
}
