// Package schedules implements work schedules and their approval workflow.
// Every operation is gated twice: by the permission matrix, and for approved
// schedules by state invariants the matrix cannot override.
package schedules

import (
	"time"

	"github.com/google/uuid"
)

// Status is the approval state of a schedule.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
)

// Schedule is a work schedule owned by one user.
type Schedule struct {
	ID              uuid.UUID  `json:"id"`
	OwnerUserID     int64      `json:"owner_user_id"`
	TeamID          *int64     `json:"team_id,omitempty"`
	Title           string     `json:"title"`
	PeriodStart     time.Time  `json:"period_start"`
	PeriodEnd       time.Time  `json:"period_end"`
	Status          Status     `json:"status"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	ApprovedBy      *int64     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedBy      *int64     `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CreateScheduleRequest carries the fields for a new draft schedule.
type CreateScheduleRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	PeriodStart time.Time `json:"period_start" validate:"required"`
	PeriodEnd   time.Time `json:"period_end" validate:"required"`
}

// UpdateScheduleRequest carries the editable fields of a schedule.
type UpdateScheduleRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	PeriodStart time.Time `json:"period_start" validate:"required"`
	PeriodEnd   time.Time `json:"period_end" validate:"required"`
}
