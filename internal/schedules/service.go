package schedules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stratus-ops/stratus/internal/authz"
	"github.com/stratus-ops/stratus/internal/shared"
)

var (
	// ErrNotFound indicates the schedule does not exist.
	ErrNotFound = errors.New("schedules: not found")
	// ErrInvalidTransition indicates the schedule is not in a state the
	// requested action can leave from.
	ErrInvalidTransition = errors.New("schedules: invalid status transition")
	// ErrReasonRequired indicates a rejection without a reason.
	ErrReasonRequired = errors.New("schedules: rejection reason required")
	// ErrApprovedImmutable indicates a delete attempt against an approved
	// schedule. Approved schedules cannot be deleted by anyone.
	ErrApprovedImmutable = errors.New("schedules: approved schedules cannot be deleted")
)

// Authorizer is the slice of the permission resolver this module consumes.
type Authorizer interface {
	Check(ctx context.Context, userID int64, action, resource string, rctx *authz.ResourceContext) (authz.Decision, error)
	FilterFor(ctx context.Context, userID int64, action, resource string) (authz.ListFilter, error)
	IsTopRole(ctx context.Context, userID int64) (bool, error)
}

// Repository defines persistence for schedules.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Schedule, error)
	List(ctx context.Context, filter authz.ListFilter) ([]Schedule, error)
	Create(ctx context.Context, s Schedule) error
	Update(ctx context.Context, s Schedule) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service enforces the schedule approval workflow on top of the permission
// matrix.
type Service struct {
	repo   Repository
	authz  Authorizer
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a schedule Service.
func NewService(repo Repository, authorizer Authorizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, authz: authorizer, logger: logger, now: time.Now}
}

// Create opens a new draft schedule owned by the actor.
func (s *Service) Create(ctx context.Context, actorID int64, actorTeam *int64, req CreateScheduleRequest) (Schedule, error) {
	// Creation has no object yet, so the grant is checked as a filter.
	filter, err := s.authz.FilterFor(ctx, actorID, authz.ActionCreate, authz.ResourceSchedules)
	if err != nil {
		return Schedule{}, err
	}
	if filter.Kind == authz.FilterForbidden {
		return Schedule{}, shared.ErrForbidden
	}
	if req.PeriodEnd.Before(req.PeriodStart) {
		return Schedule{}, fmt.Errorf("schedules: period_end must not precede period_start")
	}

	now := s.now().UTC()
	sched := Schedule{
		ID:          uuid.New(),
		OwnerUserID: actorID,
		TeamID:      actorTeam,
		Title:       req.Title,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, sched); err != nil {
		return Schedule{}, err
	}
	return sched, nil
}

// Get returns one schedule if the actor may read it.
func (s *Service) Get(ctx context.Context, actorID int64, id uuid.UUID) (Schedule, error) {
	sched, err := s.repo.Get(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	dec, err := s.authz.Check(ctx, actorID, authz.ActionRead, authz.ResourceSchedules, contextOf(sched))
	if err != nil {
		return Schedule{}, err
	}
	if !dec.Allow {
		return Schedule{}, shared.ErrForbidden
	}
	return sched, nil
}

// List returns the schedules visible to the actor under their read grant.
func (s *Service) List(ctx context.Context, actorID int64) ([]Schedule, error) {
	filter, err := s.authz.FilterFor(ctx, actorID, authz.ActionRead, authz.ResourceSchedules)
	if err != nil {
		return nil, err
	}
	if filter.Kind == authz.FilterForbidden {
		return []Schedule{}, nil
	}
	return s.repo.List(ctx, filter)
}

// Update edits a schedule. Once approved, a schedule may only be touched by
// the top of the role hierarchy, and even then the matrix grant must also
// pass: the state invariant layers on top of the matrix, it does not
// replace it.
func (s *Service) Update(ctx context.Context, actorID int64, id uuid.UUID, req UpdateScheduleRequest) (Schedule, error) {
	sched, err := s.repo.Get(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	if err := s.requireAction(ctx, actorID, authz.ActionUpdate, sched); err != nil {
		return Schedule{}, err
	}
	if req.PeriodEnd.Before(req.PeriodStart) {
		return Schedule{}, fmt.Errorf("schedules: period_end must not precede period_start")
	}

	sched.Title = req.Title
	sched.PeriodStart = req.PeriodStart
	sched.PeriodEnd = req.PeriodEnd
	sched.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, sched); err != nil {
		return Schedule{}, err
	}
	return sched, nil
}

// Delete removes a schedule. Approved schedules are not deletable at all;
// there is no reversal action in this system.
func (s *Service) Delete(ctx context.Context, actorID int64, id uuid.UUID) error {
	sched, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if sched.Status == StatusApproved {
		return ErrApprovedImmutable
	}
	dec, err := s.authz.Check(ctx, actorID, authz.ActionDelete, authz.ResourceSchedules, contextOf(sched))
	if err != nil {
		return err
	}
	if !dec.Allow {
		return shared.ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

// Submit moves a draft (or a rejected schedule being resubmitted) into
// pending approval.
func (s *Service) Submit(ctx context.Context, actorID int64, id uuid.UUID) (Schedule, error) {
	sched, err := s.repo.Get(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	if sched.Status != StatusDraft && sched.Status != StatusRejected {
		return Schedule{}, fmt.Errorf("%w: submit from %s", ErrInvalidTransition, sched.Status)
	}
	dec, err := s.authz.Check(ctx, actorID, authz.ActionUpdate, authz.ResourceSchedules, contextOf(sched))
	if err != nil {
		return Schedule{}, err
	}
	if !dec.Allow {
		return Schedule{}, shared.ErrForbidden
	}

	now := s.now().UTC()
	sched.Status = StatusPendingApproval
	sched.SubmittedAt = &now
	sched.RejectedBy = nil
	sched.RejectedAt = nil
	sched.RejectionReason = nil
	sched.UpdatedAt = now
	if err := s.repo.Update(ctx, sched); err != nil {
		return Schedule{}, err
	}
	s.logger.Info("schedule submitted", slog.String("id", id.String()), slog.Int64("actor", actorID))
	return sched, nil
}

// Approve moves a pending schedule to approved.
func (s *Service) Approve(ctx context.Context, actorID int64, id uuid.UUID) (Schedule, error) {
	sched, err := s.transitionTarget(ctx, actorID, id)
	if err != nil {
		return Schedule{}, err
	}

	now := s.now().UTC()
	sched.Status = StatusApproved
	sched.ApprovedBy = &actorID
	sched.ApprovedAt = &now
	sched.UpdatedAt = now
	if err := s.repo.Update(ctx, sched); err != nil {
		return Schedule{}, err
	}
	s.logger.Info("schedule approved", slog.String("id", id.String()), slog.Int64("actor", actorID))
	return sched, nil
}

// Reject moves a pending schedule back to rejected. A reason is mandatory.
func (s *Service) Reject(ctx context.Context, actorID int64, id uuid.UUID, reason string) (Schedule, error) {
	if reason == "" {
		return Schedule{}, ErrReasonRequired
	}
	sched, err := s.transitionTarget(ctx, actorID, id)
	if err != nil {
		return Schedule{}, err
	}

	now := s.now().UTC()
	sched.Status = StatusRejected
	sched.RejectedBy = &actorID
	sched.RejectedAt = &now
	sched.RejectionReason = &reason
	sched.UpdatedAt = now
	if err := s.repo.Update(ctx, sched); err != nil {
		return Schedule{}, err
	}
	s.logger.Info("schedule rejected", slog.String("id", id.String()), slog.Int64("actor", actorID))
	return sched, nil
}

// transitionTarget loads the schedule and authorizes an approve/reject
// transition against it.
func (s *Service) transitionTarget(ctx context.Context, actorID int64, id uuid.UUID) (Schedule, error) {
	sched, err := s.repo.Get(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	if sched.Status != StatusPendingApproval {
		return Schedule{}, fmt.Errorf("%w: decide from %s", ErrInvalidTransition, sched.Status)
	}
	dec, err := s.authz.Check(ctx, actorID, authz.ActionApprove, authz.ResourceSchedules, contextOf(sched))
	if err != nil {
		return Schedule{}, err
	}
	if !dec.Allow {
		return Schedule{}, shared.ErrForbidden
	}
	return sched, nil
}

// requireAction enforces the matrix grant plus, for approved schedules, the
// top-role state invariant. Both must pass.
func (s *Service) requireAction(ctx context.Context, actorID int64, action string, sched Schedule) error {
	if sched.Status == StatusApproved {
		top, err := s.authz.IsTopRole(ctx, actorID)
		if err != nil {
			return err
		}
		if !top {
			return shared.ErrForbidden
		}
	}
	dec, err := s.authz.Check(ctx, actorID, action, authz.ResourceSchedules, contextOf(sched))
	if err != nil {
		return err
	}
	if !dec.Allow {
		return shared.ErrForbidden
	}
	return nil
}

func contextOf(sched Schedule) *authz.ResourceContext {
	return &authz.ResourceContext{OwnerID: sched.OwnerUserID, TeamID: sched.TeamID}
}
