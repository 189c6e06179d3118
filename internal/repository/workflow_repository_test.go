package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/cems-project/cems-api/internal/models"
)

func TestWorkflowRepositoryCommitsOnSuccess(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE approvals SET")).
		WithArgs(models.ApprovalStatusApproved, nil, sqlmock.AnyArg(), int64(1), models.ApprovalStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.InTx(context.Background(), func(tx WorkflowTx) error {
		return tx.DecideApproval(context.Background(), 1, models.ApprovalStatusApproved, nil, time.Now().UTC())
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepositoryRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE approvals SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(tx WorkflowTx) error {
		return tx.DecideApproval(context.Background(), 1, models.ApprovalStatusApproved, nil, time.Now().UTC())
	})
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowTxForceRejectPendingCountsRows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE approvals SET")).
		WithArgs(models.ApprovalStatusRejected, "Rejected at HOD level", sqlmock.AnyArg(), int64(10), models.ApprovalStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := repo.InTx(context.Background(), func(tx WorkflowTx) error {
		rows, err := tx.ForceRejectPending(context.Background(), 10, "Rejected at HOD level", time.Now().UTC())
		require.NoError(t, err)
		require.Equal(t, int64(2), rows)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowTxGetApprovalForEventLocksRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	rows := sqlmock.NewRows([]string{"id", "event_id", "approver_id", "approver_role", "sequence", "status", "remarks", "decided_at", "created_at"}).
		AddRow(int64(1), int64(10), int64(200), models.ApproverRoleHOD, 1, models.ApprovalStatusPending, nil, nil, time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery("FROM approvals\\s+WHERE event_id = \\$1 AND approver_role = \\$2 FOR UPDATE").
		WithArgs(int64(10), models.ApproverRoleHOD).
		WillReturnRows(rows)
	mock.ExpectCommit()

	err := repo.InTx(context.Background(), func(tx WorkflowTx) error {
		approval, err := tx.GetApprovalForEvent(context.Background(), 10, models.ApproverRoleHOD)
		require.NoError(t, err)
		require.Equal(t, int64(1), approval.ID)
		require.Equal(t, models.ApprovalStatusPending, approval.Status)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
