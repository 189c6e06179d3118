package dto

// CreateEventRequest is the organizer's event submission payload.
// Times are 24h "HH:MM"; event_date is "2006-01-02".
type CreateEventRequest struct {
	Title        string `json:"title" validate:"required,max=200"`
	Description  string `json:"description" validate:"max=2000"`
	EventDate    string `json:"event_date" validate:"required,datetime=2006-01-02"`
	StartTime    string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime      string `json:"end_time" validate:"required,datetime=15:04"`
	Mode         string `json:"mode" validate:"required,oneof=offline online"`
	VenueID      *int64 `json:"venue_id"`
	MeetingURL   string `json:"meeting_url" validate:"omitempty,url"`
	DepartmentID *int64 `json:"department_id"`
}

// UpdateEventRequest edits a still-pending event.
type UpdateEventRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	EventDate   *string `json:"event_date" validate:"omitempty,datetime=2006-01-02"`
	StartTime   *string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime     *string `json:"end_time" validate:"omitempty,datetime=15:04"`
	VenueID     *int64  `json:"venue_id"`
	MeetingURL  *string `json:"meeting_url" validate:"omitempty,url"`
}

// AvailabilityQuery is the venue availability check input.
type AvailabilityQuery struct {
	VenueID        *int64 `json:"venue_id"`
	EventDate      string `json:"event_date" validate:"required,datetime=2006-01-02"`
	StartTime      string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime        string `json:"end_time" validate:"required,datetime=15:04"`
	ExcludeEventID int64  `json:"exclude_event_id"`
}
