package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cems-project/cems-api/internal/models"
	appErrors "github.com/cems-project/cems-api/pkg/errors"
)

type registrationStoreStub struct {
	nextID        int64
	registrations map[int64]*models.Registration
}

func newRegistrationStoreStub() *registrationStoreStub {
	return &registrationStoreStub{nextID: 1, registrations: make(map[int64]*models.Registration)}
}

func (s *registrationStoreStub) Create(ctx context.Context, reg *models.Registration) error {
	reg.ID = s.nextID
	s.nextID++
	copy := *reg
	s.registrations[reg.ID] = &copy
	return nil
}

func (s *registrationStoreStub) UpdateQRToken(ctx context.Context, id int64, token string) error {
	reg, ok := s.registrations[id]
	if !ok {
		return sql.ErrNoRows
	}
	reg.QRToken = token
	return nil
}

func (s *registrationStoreStub) GetByID(ctx context.Context, id int64) (*models.Registration, error) {
	if reg, ok := s.registrations[id]; ok {
		copy := *reg
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *registrationStoreStub) GetByEventAndStudent(ctx context.Context, eventID, studentID int64) (*models.Registration, error) {
	for _, reg := range s.registrations {
		if reg.EventID == eventID && reg.StudentID == studentID {
			copy := *reg
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *registrationStoreStub) List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error) {
	result := make([]models.Registration, 0, len(s.registrations))
	for _, reg := range s.registrations {
		if filter.EventID > 0 && reg.EventID != filter.EventID {
			continue
		}
		if filter.StudentID > 0 && reg.StudentID != filter.StudentID {
			continue
		}
		result = append(result, *reg)
	}
	return result, nil
}

func (s *registrationStoreStub) CountByEvent(ctx context.Context, eventID int64) (int, error) {
	count := 0
	for _, reg := range s.registrations {
		if reg.EventID == eventID {
			count++
		}
	}
	return count, nil
}

func (s *registrationStoreStub) MarkAttended(ctx context.Context, id int64, at time.Time) error {
	reg, ok := s.registrations[id]
	if !ok || reg.Attended {
		return sql.ErrNoRows
	}
	reg.Attended = true
	reg.AttendedAt = &at
	return nil
}

func (s *registrationStoreStub) SetCertificatePath(ctx context.Context, id int64, path string) error {
	reg, ok := s.registrations[id]
	if !ok {
		return sql.ErrNoRows
	}
	reg.CertificatePath = &path
	return nil
}

func registrationFixture() (*RegistrationService, *registrationStoreStub, *eventStoreStub) {
	venueID := int64(7)
	events := newEventStoreStub()
	events.events[10] = &models.Event{
		ID:          10,
		Title:       "Tech Symposium",
		EventDate:   time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		StartTime:   "10:00",
		EndTime:     "12:00",
		VenueID:     &venueID,
		OrganizerID: 100,
		Status:      models.EventStatusApproved,
	}
	venues := &venueReaderStub{venues: map[int64]*models.Venue{
		7: {ID: 7, Name: "Main Auditorium", Capacity: 2},
	}}
	store := newRegistrationStoreStub()
	return NewRegistrationService(store, events, venues, zap.NewNop()), store, events
}

func TestRegistrationServiceRegister(t *testing.T) {
	svc, store, _ := registrationFixture()

	reg, err := svc.Register(context.Background(), 10, 400)
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("REG-%d-EVT-10-STU-400-", reg.ID), reg.QRToken[:len(reg.QRToken)-8])
	require.Equal(t, reg.QRToken, store.registrations[reg.ID].QRToken)
}

func TestRegistrationServiceRejectsDuplicate(t *testing.T) {
	svc, _, _ := registrationFixture()

	_, err := svc.Register(context.Background(), 10, 400)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), 10, 400)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestRegistrationServiceRejectsUnapprovedEvent(t *testing.T) {
	svc, _, events := registrationFixture()
	events.events[10].Status = models.EventStatusPending

	_, err := svc.Register(context.Background(), 10, 400)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestRegistrationServiceCapacityFull(t *testing.T) {
	svc, _, _ := registrationFixture()

	_, err := svc.Register(context.Background(), 10, 400)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), 10, 401)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), 10, 402)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrCapacityFull.Code, appErr.Code)
}

func TestRegistrationServiceScanMarksOnce(t *testing.T) {
	svc, store, _ := registrationFixture()

	reg, err := svc.Register(context.Background(), 10, 400)
	require.NoError(t, err)

	scanned, err := svc.Scan(context.Background(), 10, reg.QRToken, organizer())
	require.NoError(t, err)
	require.True(t, scanned.Attended)
	require.NotNil(t, scanned.AttendedAt)
	require.True(t, store.registrations[reg.ID].Attended)

	_, err = svc.Scan(context.Background(), 10, reg.QRToken, organizer())
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrAlreadyMarked.Code, appErr.Code)
}

func TestRegistrationServiceScanAcceptsURLForm(t *testing.T) {
	svc, _, _ := registrationFixture()

	reg, err := svc.Register(context.Background(), 10, 400)
	require.NoError(t, err)

	url := fmt.Sprintf("https://campus.example.com/scan?code=%s", reg.QRToken)
	scanned, err := svc.Scan(context.Background(), 10, url, organizer())
	require.NoError(t, err)
	require.True(t, scanned.Attended)
}

func TestRegistrationServiceScanWrongEvent(t *testing.T) {
	svc, _, events := registrationFixture()
	events.events[99] = &models.Event{
		ID:          99,
		Title:       "Robotics Expo",
		EventDate:   time.Date(2026, 9, 16, 0, 0, 0, 0, time.UTC),
		OrganizerID: 100,
		Status:      models.EventStatusApproved,
	}

	reg, err := svc.Register(context.Background(), 10, 400)
	require.NoError(t, err)

	_, err = svc.Scan(context.Background(), 99, reg.QRToken, organizer())
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestRegistrationServiceScanForbiddenForOtherOrganizer(t *testing.T) {
	svc, store, _ := registrationFixture()

	reg, err := svc.Register(context.Background(), 10, 400)
	require.NoError(t, err)

	stranger := &models.User{ID: 555, Role: models.RoleOrganizer}
	_, err = svc.Scan(context.Background(), 10, reg.QRToken, stranger)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	require.False(t, store.registrations[reg.ID].Attended)

	admin := &models.User{ID: 556, Role: models.RoleAdmin}
	scanned, err := svc.Scan(context.Background(), 10, reg.QRToken, admin)
	require.NoError(t, err)
	require.True(t, scanned.Attended)
}

func TestRegistrationServiceScanTamperedToken(t *testing.T) {
	svc, _, _ := registrationFixture()

	reg, err := svc.Register(context.Background(), 10, 400)
	require.NoError(t, err)

	tampered := fmt.Sprintf("REG-%d-EVT-10-STU-400-deadbeef", reg.ID)
	_, err = svc.Scan(context.Background(), 10, tampered, organizer())
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
