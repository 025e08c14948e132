package entries

import (
	"context"
	"errors"
	"time"

	"github.com/stratus-ops/stratus/internal/authz"
	"github.com/stratus-ops/stratus/internal/shared"
)

// ErrNotFound indicates the entry does not exist.
var ErrNotFound = errors.New("entries: not found")

// Authorizer is the slice of the permission resolver this module consumes.
type Authorizer interface {
	Check(ctx context.Context, userID int64, action, resource string, rctx *authz.ResourceContext) (authz.Decision, error)
	FilterFor(ctx context.Context, userID int64, action, resource string) (authz.ListFilter, error)
}

// Repository defines persistence for entries.
type Repository interface {
	Get(ctx context.Context, id int64) (Entry, error)
	List(ctx context.Context, filter authz.ListFilter) ([]Entry, error)
	Create(ctx context.Context, e Entry) (Entry, error)
	Update(ctx context.Context, e Entry) error
	Delete(ctx context.Context, id int64) error
}

// Service applies matrix checks around entry persistence.
type Service struct {
	repo  Repository
	authz Authorizer
	now   func() time.Time
}

// NewService constructs an entry Service.
func NewService(repo Repository, authorizer Authorizer) *Service {
	return &Service{repo: repo, authz: authorizer, now: time.Now}
}

func (s *Service) List(ctx context.Context, actorID int64) ([]Entry, error) {
	filter, err := s.authz.FilterFor(ctx, actorID, authz.ActionRead, authz.ResourceEntries)
	if err != nil {
		return nil, err
	}
	if filter.Kind == authz.FilterForbidden {
		return []Entry{}, nil
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, actorID, id int64) (Entry, error) {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if err := s.require(ctx, actorID, authz.ActionRead, entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (s *Service) Create(ctx context.Context, actorID int64, actorTeam *int64, input EntryInput) (Entry, error) {
	filter, err := s.authz.FilterFor(ctx, actorID, authz.ActionCreate, authz.ResourceEntries)
	if err != nil {
		return Entry{}, err
	}
	if filter.Kind == authz.FilterForbidden {
		return Entry{}, shared.ErrForbidden
	}
	now := s.now().UTC()
	return s.repo.Create(ctx, Entry{
		OwnerUserID: actorID,
		TeamID:      actorTeam,
		Day:         input.Day,
		Hours:       input.Hours,
		Note:        input.Note,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (s *Service) Update(ctx context.Context, actorID, id int64, input EntryInput) (Entry, error) {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if err := s.require(ctx, actorID, authz.ActionUpdate, entry); err != nil {
		return Entry{}, err
	}
	entry.Day = input.Day
	entry.Hours = input.Hours
	entry.Note = input.Note
	entry.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.require(ctx, actorID, authz.ActionDelete, entry); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) require(ctx context.Context, actorID int64, action string, entry Entry) error {
	rctx := &authz.ResourceContext{OwnerID: entry.OwnerUserID, TeamID: entry.TeamID}
	dec, err := s.authz.Check(ctx, actorID, action, authz.ResourceEntries, rctx)
	if err != nil {
		return err
	}
	if !dec.Allow {
		return shared.ErrForbidden
	}
	return nil
}
