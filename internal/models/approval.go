package models

import "time"

// ApprovalStatus captures the per-stage decision state.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// ApproverRole names a stage in the approval chain.
type ApproverRole string

const (
	ApproverRoleHOD       ApproverRole = "HOD"
	ApproverRolePrincipal ApproverRole = "Principal"
)

// Approval is one row per (event, stage). Sequence carries the explicit
// chain order; a stage is actionable only once every lower-sequence stage
// is approved. Rows are append-created and transition at most once, except
// for the cascade-reject rule.
type Approval struct {
	ID         int64          `db:"id" json:"id"`
	EventID    int64          `db:"event_id" json:"event_id"`
	ApproverID int64          `db:"approver_id" json:"approver_id"`
	Role       ApproverRole   `db:"approver_role" json:"approver_role"`
	Sequence   int            `db:"sequence" json:"sequence"`
	Status     ApprovalStatus `db:"status" json:"status"`
	Remarks    *string        `db:"remarks" json:"remarks,omitempty"`
	DecidedAt  *time.Time     `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// ApprovalDetail joins approval rows with their event for dashboards.
type ApprovalDetail struct {
	Approval
	EventTitle     string      `db:"event_title" json:"event_title"`
	EventDate      time.Time   `db:"event_date" json:"event_date"`
	EventStartTime string      `db:"event_start_time" json:"event_start_time"`
	EventEndTime   string      `db:"event_end_time" json:"event_end_time"`
	EventStatus    EventStatus `db:"event_status" json:"event_status"`
	OrganizerID    int64       `db:"organizer_id" json:"organizer_id"`
	OrganizerName  string      `db:"organizer_name" json:"organizer_name"`
}

// ChainStage is one entry of a department's configured approval chain.
type ChainStage struct {
	Role       ApproverRole `db:"approver_role"`
	ApproverID int64        `db:"approver_id"`
	Sequence   int          `db:"sequence"`
}
