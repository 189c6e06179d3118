package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cems-project/cems-api/internal/models"
)

const eventColumns = `id, title, description, event_date, start_time, end_time, venue_id, meeting_url,
       organizer_id, department_id, mode, status, requires_approval, created_at, updated_at`

// EventRepository persists event rows.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// CreateWithChain inserts a new event row together with its approval stage
// rows in one transaction, so a submission can never end up half-stored. The
// generated event ID is filled in; stages may be empty.
func (r *EventRepository) CreateWithChain(ctx context.Context, event *models.Event, stages []models.ChainStage) error {
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	if event.Status == "" {
		event.Status = models.EventStatusPending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event submission: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const eventQuery = `INSERT INTO events
	(title, description, event_date, start_time, end_time, venue_id, meeting_url, organizer_id, department_id, mode, status, requires_approval, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	RETURNING id`
	if err := tx.QueryRowxContext(ctx, eventQuery,
		event.Title, event.Description, event.EventDate, event.StartTime, event.EndTime,
		event.VenueID, event.MeetingURL, event.OrganizerID, event.DepartmentID,
		event.Mode, event.Status, event.RequiresApproval, event.CreatedAt, event.UpdatedAt,
	).Scan(&event.ID); err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	const stageQuery = `INSERT INTO approvals (event_id, approver_id, approver_role, sequence, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`
	for _, stage := range stages {
		if _, err := tx.ExecContext(ctx, stageQuery,
			event.ID, stage.ApproverID, stage.Role, stage.Sequence, models.ApprovalStatusPending, now,
		); err != nil {
			return fmt.Errorf("create approval stage %s: %w", stage.Role, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event submission: %w", err)
	}
	return nil
}

// GetByID fetches an event by identifier.
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// List returns events matching the filter, newest first.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + eventColumns + ` FROM events`)
	args := make([]interface{}, 0, 6)

	conditions := make([]string, 0, 5)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.OrganizerID > 0 {
		args = append(args, filter.OrganizerID)
		conditions = append(conditions, fmt.Sprintf("organizer_id = $%d", len(args)))
	}
	if filter.DepartmentID > 0 {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if filter.VenueID > 0 {
		args = append(args, filter.VenueID)
		conditions = append(conditions, fmt.Sprintf("venue_id = $%d", len(args)))
	}
	if filter.TitleSearch != "" {
		args = append(args, "%"+strings.ToLower(filter.TitleSearch)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(title) LIKE $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("event_date >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conditions = append(conditions, fmt.Sprintf("event_date <= $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY event_date DESC, start_time DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// ListApprovedByVenueDate returns approved events occupying the venue on the
// given date, optionally excluding one event (used when re-checking edits).
func (r *EventRepository) ListApprovedByVenueDate(ctx context.Context, venueID int64, date time.Time, excludeEventID int64) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
	WHERE venue_id = $1 AND event_date = $2 AND status = $3 AND id <> $4
	ORDER BY start_time ASC`
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, venueID, date, models.EventStatusApproved, excludeEventID); err != nil {
		return nil, fmt.Errorf("list approved events for venue: %w", err)
	}
	return events, nil
}

// UpdateDetails edits a still-pending event. Zero rows means the event has
// already left the pending state.
func (r *EventRepository) UpdateDetails(ctx context.Context, event *models.Event) error {
	const query = `UPDATE events SET
		title = $1, description = $2, event_date = $3, start_time = $4, end_time = $5,
		venue_id = $6, meeting_url = $7, updated_at = $8
	WHERE id = $9 AND status = $10`
	result, err := r.db.ExecContext(ctx, query,
		event.Title, event.Description, event.EventDate, event.StartTime, event.EndTime,
		event.VenueID, event.MeetingURL, time.Now().UTC(), event.ID, models.EventStatusPending,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check event update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
