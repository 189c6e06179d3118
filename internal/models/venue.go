package models

import "time"

// Venue is a bookable location. A nil DepartmentID marks a shared venue.
type Venue struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Capacity     int       `db:"capacity" json:"capacity"`
	DepartmentID *int64    `db:"department_id" json:"department_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Department owns venues and configures the approval chain for its events.
type Department struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
