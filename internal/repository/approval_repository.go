package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cems-project/cems-api/internal/models"
)

const approvalColumns = `id, event_id, approver_id, approver_role, sequence, status, remarks, decided_at, created_at`

const approvalDetailQuery = `SELECT a.id, a.event_id, a.approver_id, a.approver_role, a.sequence, a.status,
       a.remarks, a.decided_at, a.created_at,
       e.title AS event_title, e.event_date, e.start_time AS event_start_time,
       e.end_time AS event_end_time, e.status AS event_status,
       e.organizer_id, u.full_name AS organizer_name
	FROM approvals a
	JOIN events e ON e.id = a.event_id
	JOIN users u ON u.id = e.organizer_id`

// ApprovalRepository provides read access to the approval ledger. All writes
// go through a transaction: decisions via WorkflowRepository, stage creation
// via EventRepository.CreateWithChain.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// ListByEvent returns all approval rows for one event ordered by sequence.
func (r *ApprovalRepository) ListByEvent(ctx context.Context, eventID int64) ([]models.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE event_id = $1 ORDER BY sequence ASC`
	var approvals []models.Approval
	if err := r.db.SelectContext(ctx, &approvals, query, eventID); err != nil {
		return nil, fmt.Errorf("list approvals for event: %w", err)
	}
	return approvals, nil
}

// ListPendingByApprover returns the approver's undecided rows with event
// context. Prerequisite gating is applied by the service, not here.
func (r *ApprovalRepository) ListPendingByApprover(ctx context.Context, approverID int64) ([]models.ApprovalDetail, error) {
	query := approvalDetailQuery + `
	WHERE a.approver_id = $1 AND a.status = $2
	ORDER BY e.event_date ASC, e.start_time ASC`
	var details []models.ApprovalDetail
	if err := r.db.SelectContext(ctx, &details, query, approverID, models.ApprovalStatusPending); err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	return details, nil
}

// ListByApprover returns the approver's full decision history, most recent
// decisions first.
func (r *ApprovalRepository) ListByApprover(ctx context.Context, approverID int64) ([]models.ApprovalDetail, error) {
	query := approvalDetailQuery + `
	WHERE a.approver_id = $1
	ORDER BY a.decided_at DESC NULLS LAST, a.created_at DESC`
	var details []models.ApprovalDetail
	if err := r.db.SelectContext(ctx, &details, query, approverID); err != nil {
		return nil, fmt.Errorf("list approval history: %w", err)
	}
	return details, nil
}
