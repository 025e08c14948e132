package directory

import "time"

// User is the directory view of a platform account: exactly one role,
// at most one team.
type User struct {
	ID        int64
	Email     string
	RoleID    int64
	TeamID    *int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasTeam reports whether the user belongs to a team.
func (u User) HasTeam() bool {
	return u.TeamID != nil
}
