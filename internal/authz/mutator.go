package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stratus-ops/stratus/internal/audit"
)

// Checker is the slice of the Resolver the mutator needs to protect itself.
type Checker interface {
	Check(ctx context.Context, userID int64, action, resource string, rctx *ResourceContext) (Decision, error)
}

// Mutator applies batched permission changes. Validation is per item — one
// bad reference does not abort the rest — but the storage write is
// all-or-nothing: every applied row and its audit entry commit together or
// not at all.
type Mutator struct {
	store   Store
	catalog Catalog
	checker Checker
	logger  *slog.Logger
}

// NewMutator constructs a Mutator.
func NewMutator(store Store, catalog Catalog, checker Checker, logger *slog.Logger) *Mutator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutator{store: store, catalog: catalog, checker: checker, logger: logger}
}

// ApplyBatch validates and applies the updates on behalf of actorID.
//
// The mutator checks the actor against the settings/update grant itself
// rather than trusting the caller, so no code path can reach the matrix
// write without authorization. Duplicate keys within one batch resolve
// last-write-wins with a single audit entry for the final value.
func (m *Mutator) ApplyBatch(ctx context.Context, actorID int64, updates []PermissionUpdate) (BatchResult, error) {
	if err := m.authorize(ctx, actorID); err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	valid := make([]PermissionUpdate, 0, len(updates))
	seen := make(map[Key]int, len(updates))

	for _, u := range updates {
		if reason := m.validate(ctx, u); reason != "" {
			result.Failed = append(result.Failed, FailedUpdate{Update: u, Reason: reason})
			continue
		}
		if idx, ok := seen[u.Key()]; ok {
			// Last write wins within the batch; only the final value is
			// persisted and audited.
			valid[idx] = u
			continue
		}
		seen[u.Key()] = len(valid)
		valid = append(valid, u)
	}

	if len(valid) == 0 {
		return result, nil
	}

	err := m.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		for _, u := range valid {
			prev, err := tx.GetPermissionForUpdate(ctx, u.Key())
			if err != nil {
				return fmt.Errorf("authz: lock permission row: %w", err)
			}
			if prev != nil && prev.Granted == u.Granted && prev.Scope == u.Scope {
				// No change to the row, so no audit entry either.
				result.Applied = append(result.Applied, u)
				continue
			}
			next := Permission{
				RoleID:     u.RoleID,
				ResourceID: u.ResourceID,
				ActionID:   u.ActionID,
				Granted:    u.Granted,
				Scope:      u.Scope,
			}
			if err := tx.UpsertPermission(ctx, next); err != nil {
				return err
			}
			if err := tx.InsertAuditEntry(ctx, auditEntry(actorID, prev, next)); err != nil {
				// A permission change without its audit record must never
				// commit; failing here rolls back the whole batch.
				return err
			}
			result.Applied = append(result.Applied, u)
		}
		return nil
	})
	if err != nil {
		m.logger.Error("apply permission batch", slog.Int64("actor", actorID), slog.Any("error", err))
		return BatchResult{Failed: result.Failed}, err
	}

	m.logger.Info("permission batch applied",
		slog.Int64("actor", actorID),
		slog.Int("applied", len(result.Applied)),
		slog.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (m *Mutator) authorize(ctx context.Context, actorID int64) error {
	dec, err := m.checker.Check(ctx, actorID, ActionUpdate, ResourceSettings, nil)
	if err != nil {
		// A settings grant scoped to own/team cannot authorize a global
		// matrix mutation; treat it the same as no grant.
		if errors.Is(err, ErrMissingContext) {
			return fmt.Errorf("%w: settings update requires an unscoped grant", ErrForbidden)
		}
		return err
	}
	if !dec.Allow {
		return fmt.Errorf("%w: actor %d may not update settings", ErrForbidden, actorID)
	}
	return nil
}

func (m *Mutator) validate(ctx context.Context, u PermissionUpdate) string {
	if !u.Scope.Valid() {
		return fmt.Sprintf("invalid scope %q", u.Scope)
	}
	if _, err := m.catalog.RoleByID(ctx, u.RoleID); err != nil {
		return fmt.Sprintf("unknown role %d", u.RoleID)
	}
	if _, err := m.catalog.ResourceByID(ctx, u.ResourceID); err != nil {
		return fmt.Sprintf("unknown resource %d", u.ResourceID)
	}
	if _, err := m.catalog.ActionByID(ctx, u.ActionID); err != nil {
		return fmt.Sprintf("unknown action %d", u.ActionID)
	}
	return ""
}

func auditEntry(actorID int64, prev *Permission, next Permission) audit.Entry {
	e := audit.Entry{
		ActorUserID: actorID,
		RoleID:      next.RoleID,
		ResourceID:  next.ResourceID,
		ActionID:    next.ActionID,
		NewGranted:  next.Granted,
		NewScope:    string(next.Scope),
	}
	if prev != nil {
		granted := prev.Granted
		scope := string(prev.Scope)
		e.PrevGranted = &granted
		e.PrevScope = &scope
	}
	return e
}
