package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	rows       []Row
	lastLimit  int
	lastOffset int
	lastFilter Filters
}

func (s *stubRepo) Query(ctx context.Context, filters Filters, limit, offset int) ([]Row, error) {
	s.lastFilter = filters
	s.lastLimit = limit
	s.lastOffset = offset
	if limit > len(s.rows) {
		limit = len(s.rows)
	}
	return s.rows[:limit], nil
}

func (s *stubRepo) QueryAll(ctx context.Context, filters Filters) ([]Row, error) {
	s.lastFilter = filters
	return s.rows, nil
}

func makeRow(id int64, actor, role, resource, action string) Row {
	return Row{
		Entry: Entry{
			ID:          id,
			ActorUserID: 1,
			NewGranted:  true,
			NewScope:    "own",
			At:          time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
		},
		ActorEmail:   actor,
		RoleName:     role,
		ResourceName: resource,
		ActionName:   action,
	}
}

func TestQueryPaging(t *testing.T) {
	repo := &stubRepo{rows: []Row{
		makeRow(3, "ops@example.com", "employee", "entries", "read"),
		makeRow(2, "ops@example.com", "employee", "entries", "update"),
		makeRow(1, "ops@example.com", "admin", "settings", "update"),
	}}
	svc := NewService(repo)

	result, err := svc.Query(context.Background(), Filters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Equal(t, 3, repo.lastLimit, "fetches one extra row to detect next page")
	require.Equal(t, 0, repo.lastOffset)
}

func TestQueryLastPage(t *testing.T) {
	repo := &stubRepo{rows: []Row{
		makeRow(1, "ops@example.com", "admin", "settings", "update"),
	}}
	svc := NewService(repo)

	result, err := svc.Query(context.Background(), Filters{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.False(t, result.Paging.HasNext)
	require.Zero(t, result.Paging.NextPage)
}

func TestQueryClampsPageSize(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	_, err := svc.Query(context.Background(), Filters{Page: 1, PageSize: 5000})
	require.NoError(t, err)
	require.Equal(t, maxPageSize+1, repo.lastLimit)
}

func TestExportReturnsAllRows(t *testing.T) {
	repo := &stubRepo{rows: []Row{
		makeRow(2, "lead@example.com", "team_leader", "schedules", "approve"),
		makeRow(1, "ops@example.com", "employee", "entries", "read"),
	}}
	svc := NewService(repo)

	rows, err := svc.Export(context.Background(), Filters{RoleID: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, int64(2), repo.lastFilter.RoleID)
}

func TestWriteCSV(t *testing.T) {
	prev := true
	scope := "all"
	row := makeRow(1, "ops@example.com", "team_leader", "entries", "read")
	row.PrevGranted = &prev
	row.PrevScope = &scope

	data, err := WriteCSV([]Row{row})
	require.NoError(t, err)

	out := string(data)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "At,Actor,Role,Resource,Action,Previous,New", lines[0])
	require.Contains(t, lines[1], "ops@example.com")
	require.Contains(t, lines[1], "Team_leader")
	require.Contains(t, lines[1], "granted/all")
	require.Contains(t, lines[1], "granted/own")
}
