package models

import "time"

// Registration ties a student to an approved event. QRToken is the scannable
// attendance token; CertificatePath is set once a certificate is generated.
type Registration struct {
	ID              int64      `db:"id" json:"id"`
	EventID         int64      `db:"event_id" json:"event_id"`
	StudentID       int64      `db:"student_id" json:"student_id"`
	QRToken         string     `db:"qr_token" json:"qr_token"`
	Attended        bool       `db:"attended" json:"attended"`
	AttendedAt      *time.Time `db:"attended_at" json:"attended_at,omitempty"`
	CertificatePath *string    `db:"certificate_path" json:"certificate_path,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// RegistrationFilter constrains registration listing queries.
type RegistrationFilter struct {
	EventID   int64
	StudentID int64
	Attended  *bool
	Limit     int
	Offset    int
}
