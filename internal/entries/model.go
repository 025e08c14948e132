// Package entries implements time entries, the highest-volume resource
// guarded by the permission matrix.
package entries

import "time"

// Entry is one logged block of work.
type Entry struct {
	ID          int64     `json:"id"`
	OwnerUserID int64     `json:"owner_user_id"`
	TeamID      *int64    `json:"team_id,omitempty"`
	Day         time.Time `json:"day"`
	Hours       float64   `json:"hours"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EntryInput carries the writable fields of an entry.
type EntryInput struct {
	Day   time.Time `json:"day" validate:"required"`
	Hours float64   `json:"hours" validate:"required,gt=0,lte=24"`
	Note  string    `json:"note" validate:"max=500"`
}
