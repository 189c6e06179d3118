package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/cems-project/cems-api/internal/models"
)

func TestRegistrationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO registrations")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	reg := &models.Registration{EventID: 10, StudentID: 400}
	require.NoError(t, repo.Create(context.Background(), reg))
	require.Equal(t, int64(5), reg.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryMarkAttendedOnce(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	at := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET attended = TRUE")).
		WithArgs(at, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkAttended(context.Background(), 5, at))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET attended = TRUE")).
		WithArgs(at, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.MarkAttended(context.Background(), 5, at)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCountByEvent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM registrations")).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := repo.CountByEvent(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 42, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryListByEvent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	rows := sqlmock.NewRows([]string{"id", "event_id", "approver_id", "approver_role", "sequence", "status", "remarks", "decided_at", "created_at"}).
		AddRow(int64(1), int64(10), int64(200), models.ApproverRoleHOD, 1, models.ApprovalStatusApproved, nil, time.Now(), time.Now()).
		AddRow(int64(2), int64(10), int64(300), models.ApproverRolePrincipal, 2, models.ApprovalStatusPending, nil, nil, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("FROM approvals WHERE event_id = $1 ORDER BY sequence ASC")).
		WithArgs(int64(10)).
		WillReturnRows(rows)

	approvals, err := repo.ListByEvent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, approvals, 2)
	require.Equal(t, models.ApproverRoleHOD, approvals[0].Role)
	require.Equal(t, 2, approvals[1].Sequence)
	require.NoError(t, mock.ExpectationsWereMet())
}
