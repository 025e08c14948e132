// Package evaluations implements performance evaluations. The subject of an
// evaluation counts as its owner for scope checks, so "own" grants let users
// read their own reviews without seeing anyone else's.
package evaluations

import "time"

// Evaluation is one performance review of a user.
type Evaluation struct {
	ID             int64     `json:"id"`
	OwnerUserID    int64     `json:"owner_user_id"`
	TeamID         *int64    `json:"team_id,omitempty"`
	ReviewerUserID int64     `json:"reviewer_user_id"`
	Period         string    `json:"period"`
	Rating         int       `json:"rating"`
	Summary        string    `json:"summary"`
	CreatedAt      time.Time `json:"created_at"`
}

// EvaluationInput carries the fields of a new evaluation.
type EvaluationInput struct {
	SubjectUserID int64  `json:"subject_user_id" validate:"required,gt=0"`
	Period        string `json:"period" validate:"required,max=20"`
	Rating        int    `json:"rating" validate:"required,min=1,max=5"`
	Summary       string `json:"summary" validate:"required,max=2000"`
}
