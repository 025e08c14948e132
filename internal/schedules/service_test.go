package schedules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/stratus-ops/stratus/internal/authz"
	"github.com/stratus-ops/stratus/internal/directory"
	"github.com/stratus-ops/stratus/internal/shared"
)

type memRepo struct {
	items map[uuid.UUID]Schedule
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[uuid.UUID]Schedule)}
}

func (m *memRepo) Get(ctx context.Context, id uuid.UUID) (Schedule, error) {
	s, ok := m.items[id]
	if !ok {
		return Schedule{}, ErrNotFound
	}
	return s, nil
}

func (m *memRepo) List(ctx context.Context, filter authz.ListFilter) ([]Schedule, error) {
	out := make([]Schedule, 0)
	for _, s := range m.items {
		rctx := authz.ResourceContext{OwnerID: s.OwnerUserID, TeamID: s.TeamID}
		if filter.Matches(rctx) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memRepo) Create(ctx context.Context, s Schedule) error {
	m.items[s.ID] = s
	return nil
}

func (m *memRepo) Update(ctx context.Context, s Schedule) error {
	if _, ok := m.items[s.ID]; !ok {
		return ErrNotFound
	}
	m.items[s.ID] = s
	return nil
}

func (m *memRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

// fakeAuthorizer evaluates grants from a static table through the real scope
// evaluation functions, so scope semantics in these tests match production.
type fakeAuthorizer struct {
	users  map[int64]directory.User
	grants map[string]authz.Scope
	top    map[int64]bool
}

func grantKey(roleID int64, action string) string {
	return fmt.Sprintf("%d/%s", roleID, action)
}

func (f *fakeAuthorizer) Check(ctx context.Context, userID int64, action, resource string, rctx *authz.ResourceContext) (authz.Decision, error) {
	user, ok := f.users[userID]
	if !ok {
		return authz.Decision{}, authz.ErrUserNotFound
	}
	scope, ok := f.grants[grantKey(user.RoleID, action)]
	if !ok {
		return authz.Decision{Allow: false}, nil
	}
	allow, err := authz.EvaluateScope(scope, user, rctx)
	if err != nil {
		return authz.Decision{}, err
	}
	return authz.Decision{Allow: allow, Scope: scope}, nil
}

func (f *fakeAuthorizer) FilterFor(ctx context.Context, userID int64, action, resource string) (authz.ListFilter, error) {
	user, ok := f.users[userID]
	if !ok {
		return authz.ListFilter{}, authz.ErrUserNotFound
	}
	scope, ok := f.grants[grantKey(user.RoleID, action)]
	if !ok {
		return authz.ListFilter{Kind: authz.FilterForbidden}, nil
	}
	return authz.FilterForScope(scope, user)
}

func (f *fakeAuthorizer) IsTopRole(ctx context.Context, userID int64) (bool, error) {
	return f.top[userID], nil
}

const (
	roleAdmin    int64 = 1
	roleLeader   int64 = 2
	roleEmployee int64 = 3

	adminID    int64 = 1
	leaderID   int64 = 2
	employeeID int64 = 3
)

func teamRef(id int64) *int64 { return &id }

func testAuthorizer() *fakeAuthorizer {
	return &fakeAuthorizer{
		users: map[int64]directory.User{
			adminID:    {ID: adminID, RoleID: roleAdmin, IsActive: true},
			leaderID:   {ID: leaderID, RoleID: roleLeader, TeamID: teamRef(5), IsActive: true},
			employeeID: {ID: employeeID, RoleID: roleEmployee, TeamID: teamRef(5), IsActive: true},
		},
		grants: map[string]authz.Scope{
			grantKey(roleAdmin, authz.ActionRead):      authz.ScopeAll,
			grantKey(roleAdmin, authz.ActionUpdate):    authz.ScopeAll,
			grantKey(roleAdmin, authz.ActionDelete):    authz.ScopeAll,
			grantKey(roleAdmin, authz.ActionApprove):   authz.ScopeAll,
			grantKey(roleLeader, authz.ActionRead):     authz.ScopeTeam,
			grantKey(roleLeader, authz.ActionApprove):  authz.ScopeTeam,
			grantKey(roleEmployee, authz.ActionRead):   authz.ScopeOwn,
			grantKey(roleEmployee, authz.ActionCreate): authz.ScopeOwn,
			grantKey(roleEmployee, authz.ActionUpdate): authz.ScopeOwn,
			grantKey(roleEmployee, authz.ActionDelete): authz.ScopeOwn,
		},
		top: map[int64]bool{adminID: true},
	}
}

func newTestService(t *testing.T) (*Service, *memRepo, *fakeAuthorizer) {
	t.Helper()
	repo := newMemRepo()
	az := testAuthorizer()
	return NewService(repo, az, slog.Default()), repo, az
}

func createRequest() CreateScheduleRequest {
	return CreateScheduleRequest{
		Title:       "June rotation",
		PeriodStart: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateStartsAsDraft(t *testing.T) {
	svc, repo, _ := newTestService(t)

	sched, err := svc.Create(context.Background(), employeeID, teamRef(5), createRequest())
	require.NoError(t, err)
	require.Equal(t, StatusDraft, sched.Status)
	require.Equal(t, employeeID, sched.OwnerUserID)
	require.Contains(t, repo.items, sched.ID)
}

func TestCreateDeniedWithoutGrant(t *testing.T) {
	svc, _, _ := newTestService(t)

	// Leaders hold no create grant in the fixture matrix.
	_, err := svc.Create(context.Background(), leaderID, teamRef(5), createRequest())
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCreateRejectsInvertedPeriod(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := createRequest()
	req.PeriodStart, req.PeriodEnd = req.PeriodEnd, req.PeriodStart
	_, err := svc.Create(context.Background(), employeeID, teamRef(5), req)
	require.Error(t, err)
}

func TestSubmitApproveLifecycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sched, err := svc.Create(ctx, employeeID, teamRef(5), createRequest())
	require.NoError(t, err)

	// Owner submits their own draft.
	sched, err = svc.Submit(ctx, employeeID, sched.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, sched.Status)
	require.NotNil(t, sched.SubmittedAt)

	// The team leader holds approve/team and shares the owner's team.
	sched, err = svc.Approve(ctx, leaderID, sched.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, sched.Status)
	require.Equal(t, leaderID, *sched.ApprovedBy)
}

func TestSubmitFromPendingRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sched, err := svc.Create(ctx, employeeID, teamRef(5), createRequest())
	require.NoError(t, err)
	_, err = svc.Submit(ctx, employeeID, sched.ID)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, employeeID, sched.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRejectRequiresReasonAndAllowsResubmit(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sched, err := svc.Create(ctx, employeeID, teamRef(5), createRequest())
	require.NoError(t, err)
	_, err = svc.Submit(ctx, employeeID, sched.ID)
	require.NoError(t, err)

	_, err = svc.Reject(ctx, leaderID, sched.ID, "")
	require.ErrorIs(t, err, ErrReasonRequired)

	sched, err = svc.Reject(ctx, leaderID, sched.ID, "overlaps the holiday freeze")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, sched.Status)
	require.Equal(t, "overlaps the holiday freeze", *sched.RejectionReason)

	// Resubmission clears the rejection metadata.
	sched, err = svc.Submit(ctx, employeeID, sched.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, sched.Status)
	require.Nil(t, sched.RejectedBy)
	require.Nil(t, sched.RejectionReason)
}

func TestApproveOutsideTeamDenied(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	sched := Schedule{
		ID:          uuid.New(),
		OwnerUserID: 99,
		TeamID:      teamRef(8),
		Title:       "Other team",
		Status:      StatusPendingApproval,
	}
	require.NoError(t, repo.Create(ctx, sched))

	// Leader of team 5 cannot approve a team 8 schedule under approve/team.
	_, err := svc.Approve(ctx, leaderID, sched.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestApproveFromDraftRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sched, err := svc.Create(ctx, employeeID, teamRef(5), createRequest())
	require.NoError(t, err)

	_, err = svc.Approve(ctx, adminID, sched.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func approvedSchedule(t *testing.T, svc *Service) Schedule {
	t.Helper()
	ctx := context.Background()
	sched, err := svc.Create(ctx, employeeID, teamRef(5), createRequest())
	require.NoError(t, err)
	_, err = svc.Submit(ctx, employeeID, sched.ID)
	require.NoError(t, err)
	sched, err = svc.Approve(ctx, adminID, sched.ID)
	require.NoError(t, err)
	return sched
}

func TestApprovedUpdateRequiresTopRole(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	sched := approvedSchedule(t, svc)

	// The owner still holds update/own, but the schedule is approved and the
	// owner is not at the top of the hierarchy.
	_, err := svc.Update(ctx, employeeID, sched.ID, UpdateScheduleRequest(createRequest()))
	require.ErrorIs(t, err, shared.ErrForbidden)

	updated, err := svc.Update(ctx, adminID, sched.ID, UpdateScheduleRequest{
		Title:       "June rotation (corrected)",
		PeriodStart: sched.PeriodStart,
		PeriodEnd:   sched.PeriodEnd,
	})
	require.NoError(t, err)
	require.Equal(t, "June rotation (corrected)", updated.Title)
	require.Equal(t, StatusApproved, updated.Status)
}

func TestApprovedUpdateStillNeedsMatrixGrant(t *testing.T) {
	svc, _, az := newTestService(t)
	ctx := context.Background()
	sched := approvedSchedule(t, svc)

	// Top role without an update grant: the hierarchy does not bypass the
	// matrix.
	delete(az.grants, grantKey(roleAdmin, authz.ActionUpdate))
	_, err := svc.Update(ctx, adminID, sched.ID, UpdateScheduleRequest(createRequest()))
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestApprovedDeleteForbiddenForEveryone(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	sched := approvedSchedule(t, svc)

	err := svc.Delete(ctx, adminID, sched.ID)
	require.ErrorIs(t, err, ErrApprovedImmutable)
	require.Contains(t, repo.items, sched.ID)
}

func TestDraftDeleteByOwner(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	sched, err := svc.Create(ctx, employeeID, teamRef(5), createRequest())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, employeeID, sched.ID))
	require.NotContains(t, repo.items, sched.ID)
}

func TestListScopesByGrant(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	mine, err := svc.Create(ctx, employeeID, teamRef(5), createRequest())
	require.NoError(t, err)
	other := Schedule{ID: uuid.New(), OwnerUserID: 99, TeamID: teamRef(8), Status: StatusDraft}
	require.NoError(t, repo.Create(ctx, other))

	listed, err := svc.List(ctx, employeeID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, mine.ID, listed[0].ID)

	all, err := svc.List(ctx, adminID)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestListWithoutGrantIsEmptyNotError(t *testing.T) {
	svc, repo, az := newTestService(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, Schedule{ID: uuid.New(), OwnerUserID: employeeID, Status: StatusDraft}))
	delete(az.grants, grantKey(roleEmployee, authz.ActionRead))

	listed, err := svc.List(ctx, employeeID)
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestGetUnknownSchedule(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Get(context.Background(), adminID, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetOutsideScopeDenied(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	other := Schedule{ID: uuid.New(), OwnerUserID: 99, TeamID: teamRef(8), Status: StatusDraft}
	require.NoError(t, repo.Create(ctx, other))

	_, err := svc.Get(ctx, employeeID, other.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.False(t, errors.Is(err, ErrNotFound))
}
