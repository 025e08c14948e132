package authz

import (
	"context"
	"fmt"

	"github.com/stratus-ops/stratus/internal/audit"
	"github.com/stratus-ops/stratus/internal/directory"
	"github.com/stratus-ops/stratus/internal/shared"
)

// In-memory fakes shared by the resolver and mutator tests.

type memoryDirectory struct {
	users map[int64]directory.User
}

func newMemoryDirectory(users ...directory.User) *memoryDirectory {
	d := &memoryDirectory{users: make(map[int64]directory.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *memoryDirectory) GetUser(ctx context.Context, userID int64) (directory.User, error) {
	u, ok := d.users[userID]
	if !ok {
		return directory.User{}, shared.ErrNotFound
	}
	return u, nil
}

type memoryCatalog struct {
	roles     map[int64]Role
	resources map[int64]Resource
	actions   map[int64]Action
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		roles: map[int64]Role{
			1: {ID: 1, Name: "admin", HierarchyLevel: 30},
			2: {ID: 2, Name: "team_leader", HierarchyLevel: 20},
			3: {ID: 3, Name: "employee", HierarchyLevel: 10},
		},
		resources: map[int64]Resource{
			1: {ID: 1, Name: ResourceEntries},
			2: {ID: 2, Name: ResourceSchedules},
			3: {ID: 3, Name: ResourceSettings},
			4: {ID: 4, Name: ResourceEvals},
		},
		actions: map[int64]Action{
			1: {ID: 1, Name: ActionRead},
			2: {ID: 2, Name: ActionCreate},
			3: {ID: 3, Name: ActionUpdate},
			4: {ID: 4, Name: ActionDelete},
			5: {ID: 5, Name: ActionApprove},
		},
	}
}

func (c *memoryCatalog) RoleByID(ctx context.Context, id int64) (Role, error) {
	r, ok := c.roles[id]
	if !ok {
		return Role{}, fmt.Errorf("%w: role %d", ErrUnknownReference, id)
	}
	return r, nil
}

func (c *memoryCatalog) RoleByName(ctx context.Context, name string) (Role, error) {
	for _, r := range c.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return Role{}, fmt.Errorf("%w: role %q", ErrUnknownReference, name)
}

func (c *memoryCatalog) ResourceByID(ctx context.Context, id int64) (Resource, error) {
	r, ok := c.resources[id]
	if !ok {
		return Resource{}, fmt.Errorf("%w: resource %d", ErrUnknownReference, id)
	}
	return r, nil
}

func (c *memoryCatalog) ResourceByName(ctx context.Context, name string) (Resource, error) {
	for _, r := range c.resources {
		if r.Name == name {
			return r, nil
		}
	}
	return Resource{}, fmt.Errorf("%w: resource %q", ErrUnknownReference, name)
}

func (c *memoryCatalog) ActionByID(ctx context.Context, id int64) (Action, error) {
	a, ok := c.actions[id]
	if !ok {
		return Action{}, fmt.Errorf("%w: action %d", ErrUnknownReference, id)
	}
	return a, nil
}

func (c *memoryCatalog) ActionByName(ctx context.Context, name string) (Action, error) {
	for _, a := range c.actions {
		if a.Name == name {
			return a, nil
		}
	}
	return Action{}, fmt.Errorf("%w: action %q", ErrUnknownReference, name)
}

func (c *memoryCatalog) Roles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(c.roles))
	for _, r := range c.roles {
		out = append(out, r)
	}
	return out, nil
}

func (c *memoryCatalog) Resources(ctx context.Context) ([]Resource, error) {
	out := make([]Resource, 0, len(c.resources))
	for _, r := range c.resources {
		out = append(out, r)
	}
	return out, nil
}

func (c *memoryCatalog) Actions(ctx context.Context) ([]Action, error) {
	out := make([]Action, 0, len(c.actions))
	for _, a := range c.actions {
		out = append(out, a)
	}
	return out, nil
}

func (c *memoryCatalog) MaxHierarchyLevel(ctx context.Context) (int, error) {
	max := 0
	for _, r := range c.roles {
		if r.HierarchyLevel > max {
			max = r.HierarchyLevel
		}
	}
	return max, nil
}

func (c *memoryCatalog) resourceID(name string) int64 {
	for _, r := range c.resources {
		if r.Name == name {
			return r.ID
		}
	}
	return 0
}

func (c *memoryCatalog) actionID(name string) int64 {
	for _, a := range c.actions {
		if a.Name == name {
			return a.ID
		}
	}
	return 0
}

type memoryStore struct {
	perms     map[Key]Permission
	audits    []audit.Entry
	failAudit bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{perms: make(map[Key]Permission)}
}

func (s *memoryStore) put(p Permission) {
	s.perms[p.Key()] = p
}

func (s *memoryStore) GetPermission(ctx context.Context, key Key) (*Permission, error) {
	p, ok := s.perms[key]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *memoryStore) ListMatrix(ctx context.Context) ([]MatrixEntry, error) {
	entries := make([]MatrixEntry, 0, len(s.perms))
	for _, p := range s.perms {
		entries = append(entries, MatrixEntry{
			RoleID:     p.RoleID,
			ResourceID: p.ResourceID,
			ActionID:   p.ActionID,
			Granted:    p.Granted,
			Scope:      p.Scope,
		})
	}
	return entries, nil
}

// WithTx snapshots state up front and restores it when fn fails, mirroring
// the all-or-nothing behavior of the real store.
func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	snapshot := make(map[Key]Permission, len(s.perms))
	for k, v := range s.perms {
		snapshot[k] = v
	}
	auditLen := len(s.audits)

	if err := fn(ctx, &memoryTxStore{store: s}); err != nil {
		s.perms = snapshot
		s.audits = s.audits[:auditLen]
		return err
	}
	return nil
}

type memoryTxStore struct {
	store *memoryStore
}

func (t *memoryTxStore) GetPermissionForUpdate(ctx context.Context, key Key) (*Permission, error) {
	return t.store.GetPermission(ctx, key)
}

func (t *memoryTxStore) UpsertPermission(ctx context.Context, p Permission) error {
	t.store.put(p)
	return nil
}

func (t *memoryTxStore) InsertAuditEntry(ctx context.Context, e audit.Entry) error {
	if t.store.failAudit {
		return fmt.Errorf("%w: sink unavailable", ErrAuditWriteFailed)
	}
	e.ID = int64(len(t.store.audits) + 1)
	t.store.audits = append(t.store.audits, e)
	return nil
}

func teamID(id int64) *int64 {
	return &id
}
