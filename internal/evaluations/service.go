package evaluations

import (
	"context"
	"errors"
	"time"

	"github.com/stratus-ops/stratus/internal/authz"
	"github.com/stratus-ops/stratus/internal/directory"
	"github.com/stratus-ops/stratus/internal/shared"
)

// ErrNotFound indicates the evaluation does not exist.
var ErrNotFound = errors.New("evaluations: not found")

// Authorizer is the slice of the permission resolver this module consumes.
type Authorizer interface {
	Check(ctx context.Context, userID int64, action, resource string, rctx *authz.ResourceContext) (authz.Decision, error)
	FilterFor(ctx context.Context, userID int64, action, resource string) (authz.ListFilter, error)
}

// Repository defines persistence for evaluations.
type Repository interface {
	Get(ctx context.Context, id int64) (Evaluation, error)
	List(ctx context.Context, filter authz.ListFilter) ([]Evaluation, error)
	Create(ctx context.Context, e Evaluation) (Evaluation, error)
}

// UserLookup resolves directory records for evaluation subjects.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (directory.User, error)
}

// Service applies matrix checks around evaluation reads and writes.
type Service struct {
	repo  Repository
	users UserLookup
	authz Authorizer
	now   func() time.Time
}

// NewService constructs an evaluation Service.
func NewService(repo Repository, users UserLookup, authorizer Authorizer) *Service {
	return &Service{repo: repo, users: users, authz: authorizer, now: time.Now}
}

func (s *Service) List(ctx context.Context, actorID int64) ([]Evaluation, error) {
	filter, err := s.authz.FilterFor(ctx, actorID, authz.ActionRead, authz.ResourceEvals)
	if err != nil {
		return nil, err
	}
	if filter.Kind == authz.FilterForbidden {
		return []Evaluation{}, nil
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, actorID, id int64) (Evaluation, error) {
	eval, err := s.repo.Get(ctx, id)
	if err != nil {
		return Evaluation{}, err
	}
	rctx := &authz.ResourceContext{OwnerID: eval.OwnerUserID, TeamID: eval.TeamID}
	dec, err := s.authz.Check(ctx, actorID, authz.ActionRead, authz.ResourceEvals, rctx)
	if err != nil {
		return Evaluation{}, err
	}
	if !dec.Allow {
		return Evaluation{}, shared.ErrForbidden
	}
	return eval, nil
}

// Create writes a new evaluation of the subject. The create grant is checked
// against the subject's context: a team-scoped reviewer can only evaluate
// their own team.
func (s *Service) Create(ctx context.Context, actorID int64, input EvaluationInput) (Evaluation, error) {
	subject, err := s.users.GetUser(ctx, input.SubjectUserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Evaluation{}, ErrNotFound
		}
		return Evaluation{}, err
	}
	rctx := &authz.ResourceContext{OwnerID: subject.ID, TeamID: subject.TeamID}
	dec, err := s.authz.Check(ctx, actorID, authz.ActionCreate, authz.ResourceEvals, rctx)
	if err != nil {
		return Evaluation{}, err
	}
	if !dec.Allow {
		return Evaluation{}, shared.ErrForbidden
	}

	return s.repo.Create(ctx, Evaluation{
		OwnerUserID:    subject.ID,
		TeamID:         subject.TeamID,
		ReviewerUserID: actorID,
		Period:         input.Period,
		Rating:         input.Rating,
		Summary:        input.Summary,
		CreatedAt:      s.now().UTC(),
	})
}
