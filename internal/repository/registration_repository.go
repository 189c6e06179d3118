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

const registrationColumns = `id, event_id, student_id, qr_token, attended, attended_at, certificate_path, created_at`

// RegistrationRepository persists event registrations and attendance.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create inserts a registration row and fills in the generated ID.
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO registrations (event_id, student_id, qr_token, attended, created_at)
	VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		reg.EventID, reg.StudentID, reg.QRToken, reg.Attended, reg.CreatedAt,
	).Scan(&reg.ID); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// UpdateQRToken stores the token once the registration ID is known.
func (r *RegistrationRepository) UpdateQRToken(ctx context.Context, id int64, token string) error {
	const query = `UPDATE registrations SET qr_token = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, token, id); err != nil {
		return fmt.Errorf("update qr token: %w", err)
	}
	return nil
}

// GetByID fetches a registration.
func (r *RegistrationRepository) GetByID(ctx context.Context, id int64) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetByEventAndStudent fetches the student's registration for one event.
func (r *RegistrationRepository) GetByEventAndStudent(ctx context.Context, eventID, studentID int64) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE event_id = $1 AND student_id = $2`
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, eventID, studentID); err != nil {
		return nil, err
	}
	return &reg, nil
}

// List returns registrations matching the filter, newest first.
func (r *RegistrationRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + registrationColumns + ` FROM registrations`)
	args := make([]interface{}, 0, 3)

	conditions := make([]string, 0, 3)
	if filter.EventID > 0 {
		args = append(args, filter.EventID)
		conditions = append(conditions, fmt.Sprintf("event_id = $%d", len(args)))
	}
	if filter.StudentID > 0 {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.Attended != nil {
		args = append(args, *filter.Attended)
		conditions = append(conditions, fmt.Sprintf("attended = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// CountByEvent returns the number of registrations for capacity checks.
func (r *RegistrationRepository) CountByEvent(ctx context.Context, eventID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations WHERE event_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, eventID); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}

// MarkAttended flips attendance exactly once. Zero rows means the
// registration was already marked.
func (r *RegistrationRepository) MarkAttended(ctx context.Context, id int64, at time.Time) error {
	const query = `UPDATE registrations SET attended = TRUE, attended_at = $1 WHERE id = $2 AND attended = FALSE`
	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("mark attendance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check attendance rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetCertificatePath records the generated certificate location.
func (r *RegistrationRepository) SetCertificatePath(ctx context.Context, id int64, path string) error {
	const query = `UPDATE registrations SET certificate_path = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, path, id); err != nil {
		return fmt.Errorf("set certificate path: %w", err)
	}
	return nil
}
