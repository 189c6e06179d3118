package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/cems-project/cems-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func eventRows(events ...models.Event) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "title", "description", "event_date", "start_time", "end_time", "venue_id", "meeting_url",
		"organizer_id", "department_id", "mode", "status", "requires_approval", "created_at", "updated_at",
	})
	for _, e := range events {
		rows.AddRow(e.ID, e.Title, e.Description, e.EventDate, e.StartTime, e.EndTime, e.VenueID, e.MeetingURL,
			e.OrganizerID, e.DepartmentID, e.Mode, e.Status, e.RequiresApproval, e.CreatedAt, e.UpdatedAt)
	}
	return rows
}

func TestEventRepositoryCreateWithChain(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approvals")).
		WithArgs(int64(42), int64(200), models.ApproverRoleHOD, 1, models.ApprovalStatusPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approvals")).
		WithArgs(int64(42), int64(300), models.ApproverRolePrincipal, 2, models.ApprovalStatusPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	venueID := int64(7)
	event := &models.Event{
		Title:       "Tech Symposium",
		EventDate:   time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		StartTime:   "10:00",
		EndTime:     "12:00",
		VenueID:     &venueID,
		OrganizerID: 100,
		Mode:        models.EventModeOffline,
	}
	err := repo.CreateWithChain(context.Background(), event, []models.ChainStage{
		{Role: models.ApproverRoleHOD, ApproverID: 200, Sequence: 1},
		{Role: models.ApproverRolePrincipal, ApproverID: 300, Sequence: 2},
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), event.ID)
	require.Equal(t, models.EventStatusPending, event.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryCreateWithChainRollsBackOnStageFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approvals")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	event := &models.Event{
		Title:       "Tech Symposium",
		EventDate:   time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		StartTime:   "10:00",
		EndTime:     "12:00",
		OrganizerID: 100,
		Mode:        models.EventModeOnline,
	}
	err := repo.CreateWithChain(context.Background(), event, []models.ChainStage{
		{Role: models.ApproverRoleHOD, ApproverID: 200, Sequence: 1},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryListApprovedByVenueDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM events")).
		WithArgs(int64(7), date, models.EventStatusApproved, int64(10)).
		WillReturnRows(eventRows(models.Event{
			ID: 55, Title: "Hack Night", StartTime: "10:00", EndTime: "12:00",
			OrganizerID: 1, Mode: models.EventModeOffline, Status: models.EventStatusApproved,
			EventDate: date, CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}))

	events, err := repo.ListApprovedByVenueDate(context.Background(), 7, date, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "Hack Night", events[0].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM events")).
		WithArgs(models.EventStatusApproved, int64(100), "%tech%").
		WillReturnRows(eventRows())

	_, err := repo.List(context.Background(), models.EventFilter{
		Status:      []models.EventStatus{models.EventStatusApproved},
		OrganizerID: 100,
		TitleSearch: "Tech",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryUpdateDetailsRequiresPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateDetails(context.Background(), &models.Event{ID: 10, Title: "Edited"})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
