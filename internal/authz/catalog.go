package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Catalog serves the role/resource/action tables. These are small, nearly
// static, and read on every permission check, so implementations are
// expected to cache aggressively.
type Catalog interface {
	RoleByID(ctx context.Context, id int64) (Role, error)
	RoleByName(ctx context.Context, name string) (Role, error)
	ResourceByID(ctx context.Context, id int64) (Resource, error)
	ResourceByName(ctx context.Context, name string) (Resource, error)
	ActionByID(ctx context.Context, id int64) (Action, error)
	ActionByName(ctx context.Context, name string) (Action, error)
	Roles(ctx context.Context) ([]Role, error)
	Resources(ctx context.Context) ([]Resource, error)
	Actions(ctx context.Context) ([]Action, error)
	MaxHierarchyLevel(ctx context.Context) (int, error)
}

// CatalogSnapshot is a point-in-time copy of the catalog tables.
type CatalogSnapshot struct {
	Roles     []Role     `json:"roles"`
	Resources []Resource `json:"resources"`
	Actions   []Action   `json:"actions"`
}

// PGCatalog loads the catalog tables from PostgreSQL.
type PGCatalog struct {
	pool *pgxpool.Pool
}

// NewPGCatalog constructs a PGCatalog.
func NewPGCatalog(pool *pgxpool.Pool) *PGCatalog {
	return &PGCatalog{pool: pool}
}

// Load reads the full catalog in one round of queries.
func (c *PGCatalog) Load(ctx context.Context) (CatalogSnapshot, error) {
	var snap CatalogSnapshot

	rows, err := c.pool.Query(ctx, `SELECT id, name, hierarchy_level FROM roles ORDER BY hierarchy_level DESC`)
	if err != nil {
		return snap, fmt.Errorf("authz: load roles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.HierarchyLevel); err != nil {
			return snap, fmt.Errorf("authz: scan role: %w", err)
		}
		snap.Roles = append(snap.Roles, r)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}

	resRows, err := c.pool.Query(ctx, `SELECT id, name FROM resources ORDER BY name`)
	if err != nil {
		return snap, fmt.Errorf("authz: load resources: %w", err)
	}
	defer resRows.Close()
	for resRows.Next() {
		var r Resource
		if err := resRows.Scan(&r.ID, &r.Name); err != nil {
			return snap, fmt.Errorf("authz: scan resource: %w", err)
		}
		snap.Resources = append(snap.Resources, r)
	}
	if err := resRows.Err(); err != nil {
		return snap, err
	}

	actRows, err := c.pool.Query(ctx, `SELECT id, name FROM actions ORDER BY name`)
	if err != nil {
		return snap, fmt.Errorf("authz: load actions: %w", err)
	}
	defer actRows.Close()
	for actRows.Next() {
		var a Action
		if err := actRows.Scan(&a.ID, &a.Name); err != nil {
			return snap, fmt.Errorf("authz: scan action: %w", err)
		}
		snap.Actions = append(snap.Actions, a)
	}
	if err := actRows.Err(); err != nil {
		return snap, err
	}

	return snap, nil
}

const catalogCacheKey = "authz:catalog"

// CatalogSource loads the full catalog from durable storage.
type CatalogSource interface {
	Load(ctx context.Context) (CatalogSnapshot, error)
}

// CachedCatalog layers an in-process snapshot plus a shared Redis copy over
// a CatalogSource. Concurrent misses are collapsed through singleflight.
type CachedCatalog struct {
	source CatalogSource
	client *redis.Client
	ttl    time.Duration

	mu      sync.RWMutex
	snap    *indexedSnapshot
	expires time.Time

	group singleflight.Group
}

type indexedSnapshot struct {
	roles           []Role
	resources       []Resource
	actions         []Action
	rolesByID       map[int64]Role
	rolesByName     map[string]Role
	resourcesByID   map[int64]Resource
	resourcesByName map[string]Resource
	actionsByID     map[int64]Action
	actionsByName   map[string]Action
	maxHierarchy    int
}

// NewCachedCatalog constructs a CachedCatalog. The Redis client may be nil,
// in which case only the in-process cache is used.
func NewCachedCatalog(source CatalogSource, client *redis.Client, ttl time.Duration) *CachedCatalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedCatalog{source: source, client: client, ttl: ttl}
}

// Refresh discards cached state and reloads from the source. Used by the
// cache warmup job and after catalog migrations.
func (c *CachedCatalog) Refresh(ctx context.Context) error {
	snap, err := c.source.Load(ctx)
	if err != nil {
		return err
	}
	c.storeRedis(ctx, snap)
	c.install(snap)
	return nil
}

func (c *CachedCatalog) current(ctx context.Context) (*indexedSnapshot, error) {
	c.mu.RLock()
	if c.snap != nil && time.Now().Before(c.expires) {
		snap := c.snap
		c.mu.RUnlock()
		return snap, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("catalog", func() (any, error) {
		if snap, ok := c.loadRedis(ctx); ok {
			return c.install(snap), nil
		}
		snap, err := c.source.Load(ctx)
		if err != nil {
			return nil, err
		}
		c.storeRedis(ctx, snap)
		return c.install(snap), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*indexedSnapshot), nil
}

func (c *CachedCatalog) loadRedis(ctx context.Context) (CatalogSnapshot, bool) {
	if c.client == nil {
		return CatalogSnapshot{}, false
	}
	data, err := c.client.Get(ctx, catalogCacheKey).Bytes()
	if err != nil {
		return CatalogSnapshot{}, false
	}
	var snap CatalogSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return CatalogSnapshot{}, false
	}
	if len(snap.Roles) == 0 {
		return CatalogSnapshot{}, false
	}
	return snap, true
}

func (c *CachedCatalog) storeRedis(ctx context.Context, snap CatalogSnapshot) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, catalogCacheKey, data, c.ttl).Err()
}

func (c *CachedCatalog) install(snap CatalogSnapshot) *indexedSnapshot {
	idx := &indexedSnapshot{
		roles:           snap.Roles,
		resources:       snap.Resources,
		actions:         snap.Actions,
		rolesByID:       make(map[int64]Role, len(snap.Roles)),
		rolesByName:     make(map[string]Role, len(snap.Roles)),
		resourcesByID:   make(map[int64]Resource, len(snap.Resources)),
		resourcesByName: make(map[string]Resource, len(snap.Resources)),
		actionsByID:     make(map[int64]Action, len(snap.Actions)),
		actionsByName:   make(map[string]Action, len(snap.Actions)),
	}
	for _, r := range snap.Roles {
		idx.rolesByID[r.ID] = r
		idx.rolesByName[strings.ToLower(r.Name)] = r
		if r.HierarchyLevel > idx.maxHierarchy {
			idx.maxHierarchy = r.HierarchyLevel
		}
	}
	for _, r := range snap.Resources {
		idx.resourcesByID[r.ID] = r
		idx.resourcesByName[strings.ToLower(r.Name)] = r
	}
	for _, a := range snap.Actions {
		idx.actionsByID[a.ID] = a
		idx.actionsByName[strings.ToLower(a.Name)] = a
	}

	c.mu.Lock()
	c.snap = idx
	c.expires = time.Now().Add(c.ttl)
	c.mu.Unlock()
	return idx
}

// RoleByID returns the role with the given id.
func (c *CachedCatalog) RoleByID(ctx context.Context, id int64) (Role, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return Role{}, err
	}
	role, ok := snap.rolesByID[id]
	if !ok {
		return Role{}, fmt.Errorf("%w: role %d", ErrUnknownReference, id)
	}
	return role, nil
}

// RoleByName returns the role with the given name, case-insensitive.
func (c *CachedCatalog) RoleByName(ctx context.Context, name string) (Role, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return Role{}, err
	}
	role, ok := snap.rolesByName[strings.ToLower(name)]
	if !ok {
		return Role{}, fmt.Errorf("%w: role %q", ErrUnknownReference, name)
	}
	return role, nil
}

// ResourceByID returns the resource with the given id.
func (c *CachedCatalog) ResourceByID(ctx context.Context, id int64) (Resource, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return Resource{}, err
	}
	res, ok := snap.resourcesByID[id]
	if !ok {
		return Resource{}, fmt.Errorf("%w: resource %d", ErrUnknownReference, id)
	}
	return res, nil
}

// ResourceByName returns the resource with the given name, case-insensitive.
func (c *CachedCatalog) ResourceByName(ctx context.Context, name string) (Resource, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return Resource{}, err
	}
	res, ok := snap.resourcesByName[strings.ToLower(name)]
	if !ok {
		return Resource{}, fmt.Errorf("%w: resource %q", ErrUnknownReference, name)
	}
	return res, nil
}

// ActionByID returns the action with the given id.
func (c *CachedCatalog) ActionByID(ctx context.Context, id int64) (Action, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return Action{}, err
	}
	act, ok := snap.actionsByID[id]
	if !ok {
		return Action{}, fmt.Errorf("%w: action %d", ErrUnknownReference, id)
	}
	return act, nil
}

// ActionByName returns the action with the given name, case-insensitive.
func (c *CachedCatalog) ActionByName(ctx context.Context, name string) (Action, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return Action{}, err
	}
	act, ok := snap.actionsByName[strings.ToLower(name)]
	if !ok {
		return Action{}, fmt.Errorf("%w: action %q", ErrUnknownReference, name)
	}
	return act, nil
}

// Roles lists all roles ordered by descending hierarchy.
func (c *CachedCatalog) Roles(ctx context.Context) ([]Role, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	return append([]Role(nil), snap.roles...), nil
}

// Resources lists all resources.
func (c *CachedCatalog) Resources(ctx context.Context) ([]Resource, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	return append([]Resource(nil), snap.resources...), nil
}

// Actions lists all actions.
func (c *CachedCatalog) Actions(ctx context.Context) ([]Action, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	return append([]Action(nil), snap.actions...), nil
}

// MaxHierarchyLevel returns the highest hierarchy level in the role catalog.
func (c *CachedCatalog) MaxHierarchyLevel(ctx context.Context) (int, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return 0, err
	}
	if len(snap.roles) == 0 {
		return 0, errors.New("authz: role catalog is empty")
	}
	return snap.maxHierarchy, nil
}

var _ Catalog = (*CachedCatalog)(nil)
