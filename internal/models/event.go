package models

import "time"

// EventStatus is the aggregate pending/approved/rejected value on an event.
// It is a cached projection of the event's approval rows and must only be
// written inside the same transaction that mutates those rows.
type EventStatus string

const (
	EventStatusPending  EventStatus = "pending"
	EventStatusApproved EventStatus = "approved"
	EventStatusRejected EventStatus = "rejected"
)

// EventMode distinguishes physical events from online ones.
type EventMode string

const (
	EventModeOffline EventMode = "offline"
	EventModeOnline  EventMode = "online"
)

// Event is a proposed campus gathering. Times are 24h "HH:MM" strings and
// compare lexicographically; intervals are half-open [start, end).
type Event struct {
	ID               int64       `db:"id" json:"id"`
	Title            string      `db:"title" json:"title"`
	Description      string      `db:"description" json:"description"`
	EventDate        time.Time   `db:"event_date" json:"event_date"`
	StartTime        string      `db:"start_time" json:"start_time"`
	EndTime          string      `db:"end_time" json:"end_time"`
	VenueID          *int64      `db:"venue_id" json:"venue_id,omitempty"`
	MeetingURL       *string     `db:"meeting_url" json:"meeting_url,omitempty"`
	OrganizerID      int64       `db:"organizer_id" json:"organizer_id"`
	DepartmentID     *int64      `db:"department_id" json:"department_id,omitempty"`
	Mode             EventMode   `db:"mode" json:"mode"`
	Status           EventStatus `db:"status" json:"status"`
	RequiresApproval bool        `db:"requires_approval" json:"requires_approval"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

// EventFilter constrains event listing queries.
type EventFilter struct {
	Status       []EventStatus
	OrganizerID  int64
	DepartmentID int64
	VenueID      int64
	TitleSearch  string
	DateFrom     *time.Time
	DateTo       *time.Time
	Limit        int
	Offset       int
}

// ConflictDescriptor carries enough data to render a clash message.
type ConflictDescriptor struct {
	EventID   int64  `json:"event_id"`
	Title     string `json:"title"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ClashResult is the outcome of a venue availability check.
type ClashResult struct {
	Clash     bool                 `json:"clash"`
	Conflicts []ConflictDescriptor `json:"conflicts"`
}
