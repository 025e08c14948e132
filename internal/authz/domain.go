// Package authz implements the permission matrix and its resolution engine.
// Every protected operation in the platform is decided here: a fixed
// (role, resource, action) matrix qualified by a single scope value.
package authz

import (
	"errors"
	"time"
)

// Scope narrows a granted permission to a subset of objects.
type Scope string

const (
	// ScopeOwn restricts the grant to rows owned by the acting user.
	ScopeOwn Scope = "own"
	// ScopeTeam restricts the grant to rows owned by the acting user's team.
	ScopeTeam Scope = "team"
	// ScopeAll places no restriction on the grant.
	ScopeAll Scope = "all"
)

// Valid reports whether the scope is one of the recognised values.
func (s Scope) Valid() bool {
	switch s {
	case ScopeOwn, ScopeTeam, ScopeAll:
		return true
	}
	return false
}

// Role is a catalog entry. Hierarchy levels order roles; the engine never
// hardcodes role names or count.
type Role struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	HierarchyLevel int    `json:"hierarchy_level"`
}

// Resource is a protected noun (entries, schedules, users, settings).
type Resource struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Action is a verb applied to a resource (read, create, update, delete, approve).
type Action struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Permission is one matrix row: the sole source of truth for authorization
// decisions. A (role, resource, action) triple has at most one live row.
type Permission struct {
	RoleID     int64     `json:"role_id"`
	ResourceID int64     `json:"resource_id"`
	ActionID   int64     `json:"action_id"`
	Granted    bool      `json:"granted"`
	Scope      Scope     `json:"scope"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Key identifies a matrix row.
type Key struct {
	RoleID     int64
	ResourceID int64
	ActionID   int64
}

// Key returns the matrix key of the permission row.
func (p Permission) Key() Key {
	return Key{RoleID: p.RoleID, ResourceID: p.ResourceID, ActionID: p.ActionID}
}

// ResourceContext carries the ownership metadata of the specific object being
// checked. Absent for creation and listing, where scope becomes a filter.
type ResourceContext struct {
	OwnerID int64
	TeamID  *int64
}

// Decision is the outcome of a single-object check. A deny is a normal
// outcome, not an error.
type Decision struct {
	Allow bool
	Scope Scope
}

// FilterKind enumerates the shapes a list filter can take.
type FilterKind int

const (
	// FilterForbidden yields no rows: the grant is absent or revoked.
	FilterForbidden FilterKind = iota
	// FilterOwnerEquals yields rows owned by the acting user.
	FilterOwnerEquals
	// FilterTeamEquals yields rows owned by the acting user's team.
	FilterTeamEquals
	// FilterUnrestricted yields every row.
	FilterUnrestricted
)

// ListFilter is the list-query counterpart of a Decision. It must agree with
// Check for every object: list endpoints never show a row the caller could
// not check individually.
type ListFilter struct {
	Kind    FilterKind
	OwnerID int64
	TeamID  int64
}

// Matches reports whether an object with the given context would pass the
// filter. Used by in-memory stores and by tests asserting filter/check
// agreement.
func (f ListFilter) Matches(rctx ResourceContext) bool {
	switch f.Kind {
	case FilterUnrestricted:
		return true
	case FilterOwnerEquals:
		return rctx.OwnerID == f.OwnerID
	case FilterTeamEquals:
		return rctx.TeamID != nil && *rctx.TeamID == f.TeamID
	default:
		return false
	}
}

// PermissionUpdate is one item of a batch matrix mutation.
type PermissionUpdate struct {
	RoleID     int64 `json:"role_id" validate:"required,gt=0"`
	ResourceID int64 `json:"resource_id" validate:"required,gt=0"`
	ActionID   int64 `json:"action_id" validate:"required,gt=0"`
	Granted    bool  `json:"granted"`
	Scope      Scope `json:"scope" validate:"required,oneof=own team all"`
}

// Key returns the matrix key targeted by the update.
func (u PermissionUpdate) Key() Key {
	return Key{RoleID: u.RoleID, ResourceID: u.ResourceID, ActionID: u.ActionID}
}

// FailedUpdate reports a batch item that did not validate.
type FailedUpdate struct {
	Update PermissionUpdate `json:"update"`
	Reason string           `json:"reason"`
}

// BatchResult reports the per-item outcome of ApplyBatch.
type BatchResult struct {
	Applied []PermissionUpdate `json:"applied"`
	Failed  []FailedUpdate     `json:"failed"`
}

// Well-known catalog names used by the engine itself.
const (
	ResourceSettings  = "settings"
	ResourceSchedules = "schedules"
	ResourceEntries   = "entries"
	ResourceEvals     = "evaluations"
	ResourceUsers     = "users"

	ActionRead    = "read"
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionApprove = "approve"
)

var (
	// ErrUserNotFound indicates the acting user is absent from the directory.
	ErrUserNotFound = errors.New("authz: user not found")
	// ErrMissingContext indicates a scoped check was made without a resource
	// context. Caller bug, not policy.
	ErrMissingContext = errors.New("authz: resource context required for scoped permission")
	// ErrInvalidScope indicates an unrecognised scope value was read from
	// storage. Should be unreachable given the enum constraint.
	ErrInvalidScope = errors.New("authz: invalid scope value")
	// ErrUnknownReference indicates a role, resource, or action id that does
	// not exist in the catalog.
	ErrUnknownReference = errors.New("authz: unknown role, resource, or action")
	// ErrAuditWriteFailed indicates the audit insert failed; the triggering
	// mutation is aborted with it.
	ErrAuditWriteFailed = errors.New("authz: audit write failed")
	// ErrForbidden indicates the actor may not mutate the matrix.
	ErrForbidden = errors.New("authz: forbidden")
)
