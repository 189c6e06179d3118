package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cems-project/cems-api/internal/models"
)

// WorkflowTx is the set of storage operations available inside one approval
// transition transaction. The decision, the aggregate recompute, and the
// cascade must all commit or roll back together.
type WorkflowTx interface {
	// GetApprovalForEvent loads the approval row for a stage of an event.
	// Rows are locked for the duration of the transaction.
	GetApprovalForEvent(ctx context.Context, eventID int64, role models.ApproverRole) (*models.Approval, error)
	ListApprovals(ctx context.Context, eventID int64) ([]models.Approval, error)
	GetEvent(ctx context.Context, eventID int64) (*models.Event, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	// ListApprovedEvents re-runs the clash query inside the transaction so
	// concurrent approvals cannot both slip past the pre-check.
	ListApprovedEvents(ctx context.Context, venueID int64, date time.Time, excludeEventID int64) ([]models.Event, error)
	// DecideApproval is a compare-and-set on status = 'pending'. Returns
	// sql.ErrNoRows when the row was already decided.
	DecideApproval(ctx context.Context, approvalID int64, status models.ApprovalStatus, remarks *string, decidedAt time.Time) error
	// ForceRejectPending applies the cascade-reject rule to every still
	// pending sibling and reports how many rows transitioned.
	ForceRejectPending(ctx context.Context, eventID int64, remark string, decidedAt time.Time) (int64, error)
	UpdateEventStatus(ctx context.Context, eventID int64, status models.EventStatus) error
}

// WorkflowRepository runs approval transitions inside a single database
// transaction.
type WorkflowRepository struct {
	db *sqlx.DB
}

// NewWorkflowRepository constructs the repository.
func NewWorkflowRepository(db *sqlx.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// InTx executes fn within one transaction, committing on nil and rolling
// back otherwise.
func (r *WorkflowRepository) InTx(ctx context.Context, fn func(tx WorkflowTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin workflow tx: %w", err)
	}
	wtx := &workflowTx{tx: tx}
	if err := fn(wtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit workflow tx: %w", err)
	}
	return nil
}

type workflowTx struct {
	tx *sqlx.Tx
}

func (t *workflowTx) GetApprovalForEvent(ctx context.Context, eventID int64, role models.ApproverRole) (*models.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals
	WHERE event_id = $1 AND approver_role = $2 FOR UPDATE`
	var approval models.Approval
	if err := t.tx.GetContext(ctx, &approval, query, eventID, role); err != nil {
		return nil, err
	}
	return &approval, nil
}

func (t *workflowTx) ListApprovals(ctx context.Context, eventID int64) ([]models.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals
	WHERE event_id = $1 ORDER BY sequence ASC FOR UPDATE`
	var approvals []models.Approval
	if err := t.tx.SelectContext(ctx, &approvals, query, eventID); err != nil {
		return nil, fmt.Errorf("list approvals in tx: %w", err)
	}
	return approvals, nil
}

func (t *workflowTx) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`
	var event models.Event
	if err := t.tx.GetContext(ctx, &event, query, eventID); err != nil {
		return nil, err
	}
	return &event, nil
}

func (t *workflowTx) GetUser(ctx context.Context, id int64) (*models.User, error) {
	const query = `SELECT id, email, mobile_number, username, password_hash, full_name, role,
       department_id, active, last_login, created_at, updated_at
	FROM users WHERE id = $1`
	var user models.User
	if err := t.tx.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

func (t *workflowTx) ListApprovedEvents(ctx context.Context, venueID int64, date time.Time, excludeEventID int64) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
	WHERE venue_id = $1 AND event_date = $2 AND status = $3 AND id <> $4
	ORDER BY start_time ASC`
	var events []models.Event
	if err := t.tx.SelectContext(ctx, &events, query, venueID, date, models.EventStatusApproved, excludeEventID); err != nil {
		return nil, fmt.Errorf("list approved events in tx: %w", err)
	}
	return events, nil
}

func (t *workflowTx) DecideApproval(ctx context.Context, approvalID int64, status models.ApprovalStatus, remarks *string, decidedAt time.Time) error {
	const query = `UPDATE approvals SET status = $1, remarks = $2, decided_at = $3
	WHERE id = $4 AND status = $5`
	result, err := t.tx.ExecContext(ctx, query, status, remarks, decidedAt, approvalID, models.ApprovalStatusPending)
	if err != nil {
		return fmt.Errorf("decide approval: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check decide rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (t *workflowTx) ForceRejectPending(ctx context.Context, eventID int64, remark string, decidedAt time.Time) (int64, error) {
	const query = `UPDATE approvals SET status = $1, remarks = $2, decided_at = $3
	WHERE event_id = $4 AND status = $5`
	result, err := t.tx.ExecContext(ctx, query, models.ApprovalStatusRejected, remark, decidedAt, eventID, models.ApprovalStatusPending)
	if err != nil {
		return 0, fmt.Errorf("cascade reject approvals: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check cascade rows: %w", err)
	}
	return rows, nil
}

func (t *workflowTx) UpdateEventStatus(ctx context.Context, eventID int64, status models.EventStatus) error {
	const query = `UPDATE events SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := t.tx.ExecContext(ctx, query, status, time.Now().UTC(), eventID); err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	return nil
}
