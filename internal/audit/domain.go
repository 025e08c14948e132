// Package audit holds the append-only trail of permission matrix mutations.
// Entries are written inside the mutating transaction and never updated or
// deleted afterwards.
package audit

import "time"

// Entry is one recorded matrix change: who changed which row, from what
// value to what value, at commit time.
type Entry struct {
	ID          int64     `json:"id"`
	ActorUserID int64     `json:"actor_user_id"`
	RoleID      int64     `json:"role_id"`
	ResourceID  int64     `json:"resource_id"`
	ActionID    int64     `json:"action_id"`
	PrevGranted *bool     `json:"prev_granted,omitempty"`
	PrevScope   *string   `json:"prev_scope,omitempty"`
	NewGranted  bool      `json:"new_granted"`
	NewScope    string    `json:"new_scope"`
	At          time.Time `json:"at"`
}

// Filters narrows an audit query. Zero values mean "any".
type Filters struct {
	RoleID      int64
	ResourceID  int64
	ActorUserID int64
	From        time.Time
	To          time.Time
	Page        int
	PageSize    int
}

// Row is an entry joined with catalog names for display and export.
type Row struct {
	Entry
	ActorEmail   string `json:"actor_email"`
	RoleName     string `json:"role_name"`
	ResourceName string `json:"resource_name"`
	ActionName   string `json:"action_name"`
}

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result bundles a page of audit rows with paging metadata.
type Result struct {
	Rows   []Row      `json:"rows"`
	Paging PagingInfo `json:"paging"`
}
