package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cems-project/cems-api/internal/dto"
	"github.com/cems-project/cems-api/internal/models"
	appErrors "github.com/cems-project/cems-api/pkg/errors"
)

type eventStoreStub struct {
	nextID     int64
	events     map[int64]*models.Event
	updated    *models.Event
	lastFilter models.EventFilter
	lastChain  []models.ChainStage
}

func newEventStoreStub() *eventStoreStub {
	return &eventStoreStub{nextID: 1, events: make(map[int64]*models.Event)}
}

func (s *eventStoreStub) CreateWithChain(ctx context.Context, event *models.Event, stages []models.ChainStage) error {
	event.ID = s.nextID
	s.nextID++
	copy := *event
	s.events[event.ID] = &copy
	s.lastChain = stages
	return nil
}

func (s *eventStoreStub) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	if event, ok := s.events[id]; ok {
		copy := *event
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *eventStoreStub) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	s.lastFilter = filter
	result := make([]models.Event, 0, len(s.events))
	for _, event := range s.events {
		result = append(result, *event)
	}
	return result, nil
}

func (s *eventStoreStub) UpdateDetails(ctx context.Context, event *models.Event) error {
	stored, ok := s.events[event.ID]
	if !ok || stored.Status != models.EventStatusPending {
		return sql.ErrNoRows
	}
	copy := *event
	s.events[event.ID] = &copy
	s.updated = &copy
	return nil
}

func (s *eventStoreStub) ListApprovedByVenueDate(ctx context.Context, venueID int64, date time.Time, excludeEventID int64) ([]models.Event, error) {
	result := make([]models.Event, 0)
	for _, event := range s.events {
		if event.ID == excludeEventID || event.Status != models.EventStatusApproved {
			continue
		}
		if event.VenueID != nil && *event.VenueID == venueID && event.EventDate.Equal(date) {
			result = append(result, *event)
		}
	}
	return result, nil
}

type chainStoreStub struct {
	chains map[int64][]models.ChainStage
}

func (s *chainStoreStub) GetApprovalChain(ctx context.Context, departmentID int64) ([]models.ChainStage, error) {
	return s.chains[departmentID], nil
}

type venueReaderStub struct {
	venues map[int64]*models.Venue
}

func (s *venueReaderStub) GetByID(ctx context.Context, id int64) (*models.Venue, error) {
	if venue, ok := s.venues[id]; ok {
		copy := *venue
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *venueReaderStub) List(ctx context.Context) ([]models.Venue, error) {
	result := make([]models.Venue, 0, len(s.venues))
	for _, venue := range s.venues {
		result = append(result, *venue)
	}
	return result, nil
}

type userReaderStub struct {
	users map[int64]*models.User
}

func (s *userReaderStub) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if user, ok := s.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type eventFixture struct {
	store  *eventStoreStub
	chains *chainStoreStub
	venues *venueReaderStub
	users  *userReaderStub
	svc    *EventService
}

func newEventFixture() *eventFixture {
	deptID := int64(1)
	store := newEventStoreStub()
	chains := &chainStoreStub{chains: map[int64][]models.ChainStage{
		1: {
			{Role: models.ApproverRoleHOD, ApproverID: 200, Sequence: 1},
			{Role: models.ApproverRolePrincipal, ApproverID: 300, Sequence: 2},
		},
	}}
	venues := &venueReaderStub{venues: map[int64]*models.Venue{
		7: {ID: 7, Name: "Main Auditorium", Capacity: 300, DepartmentID: &deptID},
		8: {ID: 8, Name: "Open Grounds", Capacity: 1000},
	}}
	users := &userReaderStub{users: map[int64]*models.User{
		200: {ID: 200, Email: strPtr("hod@campus.edu"), FullName: "Dr. Mehta"},
	}}
	availability := NewAvailabilityService(store, venues, zap.NewNop())
	svc := NewEventService(store, chains, venues, users, availability, nil, "http://localhost:8080", zap.NewNop())
	return &eventFixture{store: store, chains: chains, venues: venues, users: users, svc: svc}
}

func organizer() *models.User {
	return &models.User{ID: 100, Email: strPtr("organizer@campus.edu"), FullName: "Ravi Kumar", Role: models.RoleOrganizer}
}

func validCreateRequest() dto.CreateEventRequest {
	venueID := int64(7)
	return dto.CreateEventRequest{
		Title:     "Tech Symposium",
		EventDate: "2026-09-15",
		StartTime: "10:00",
		EndTime:   "12:00",
		Mode:      "offline",
		VenueID:   &venueID,
	}
}

func TestEventServiceCreateWithChain(t *testing.T) {
	f := newEventFixture()

	result, err := f.svc.Create(context.Background(), validCreateRequest(), organizer())
	require.NoError(t, err)
	require.Equal(t, models.EventStatusPending, result.Event.Status)
	require.True(t, result.Event.RequiresApproval)
	require.Len(t, result.Chain, 2)
	require.Len(t, f.store.lastChain, 2)
	require.Equal(t, models.ApproverRoleHOD, f.store.lastChain[0].Role)

	// First approver in the chain is notified.
	require.Len(t, result.Notifications, 1)
	require.Equal(t, "hod@campus.edu", result.Notifications[0].Recipient)
}

func TestEventServiceCreateWithoutChainAutoApproves(t *testing.T) {
	f := newEventFixture()
	venueID := int64(8)
	req := validCreateRequest()
	req.VenueID = &venueID

	result, err := f.svc.Create(context.Background(), req, organizer())
	require.NoError(t, err)
	require.Equal(t, models.EventStatusApproved, result.Event.Status)
	require.False(t, result.Event.RequiresApproval)
	require.Empty(t, result.Chain)
	require.Empty(t, f.store.lastChain)

	require.Len(t, result.Notifications, 1)
	require.Equal(t, "organizer@campus.edu", result.Notifications[0].Recipient)
}

func TestEventServiceCreateOfflineNeedsVenue(t *testing.T) {
	f := newEventFixture()
	req := validCreateRequest()
	req.VenueID = nil

	_, err := f.svc.Create(context.Background(), req, organizer())
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestEventServiceCreateRejectsInvertedTimes(t *testing.T) {
	f := newEventFixture()
	req := validCreateRequest()
	req.StartTime = "12:00"
	req.EndTime = "10:00"

	_, err := f.svc.Create(context.Background(), req, organizer())
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestEventServiceCreateBlocksOnClash(t *testing.T) {
	f := newEventFixture()
	venueID := int64(8)
	f.store.events[99] = &models.Event{
		ID:        99,
		Title:     "Hack Night",
		EventDate: time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "12:00",
		VenueID:   &venueID,
		Status:    models.EventStatusApproved,
	}
	req := validCreateRequest()
	req.VenueID = &venueID

	_, err := f.svc.Create(context.Background(), req, organizer())
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrVenueClash.Code, appErr.Code)
}

func TestEventServiceOnlineEventSkipsVenue(t *testing.T) {
	f := newEventFixture()
	req := dto.CreateEventRequest{
		Title:      "Remote Workshop",
		EventDate:  "2026-09-20",
		StartTime:  "15:00",
		EndTime:    "17:00",
		Mode:       "online",
		MeetingURL: "https://meet.example.com/workshop",
	}

	result, err := f.svc.Create(context.Background(), req, organizer())
	require.NoError(t, err)
	require.Nil(t, result.Event.VenueID)
	require.NotNil(t, result.Event.MeetingURL)
}

func TestEventServiceUpdateOnlyPending(t *testing.T) {
	f := newEventFixture()
	result, err := f.svc.Create(context.Background(), validCreateRequest(), organizer())
	require.NoError(t, err)

	title := "Tech Symposium 2026"
	updated, err := f.svc.Update(context.Background(), result.Event.ID, dto.UpdateEventRequest{Title: &title}, organizer())
	require.NoError(t, err)
	require.Equal(t, title, updated.Title)

	f.store.events[result.Event.ID].Status = models.EventStatusApproved
	_, err = f.svc.Update(context.Background(), result.Event.ID, dto.UpdateEventRequest{Title: &title}, organizer())
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestEventServiceUpdateForbiddenForOthers(t *testing.T) {
	f := newEventFixture()
	result, err := f.svc.Create(context.Background(), validCreateRequest(), organizer())
	require.NoError(t, err)

	title := "Hijacked"
	stranger := &models.User{ID: 555, Role: models.RoleOrganizer}
	_, err = f.svc.Update(context.Background(), result.Event.ID, dto.UpdateEventRequest{Title: &title}, stranger)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestEventServiceListScopesStudentsToApproved(t *testing.T) {
	f := newEventFixture()
	student := &models.User{ID: 400, Role: models.RoleStudent}

	_, err := f.svc.List(context.Background(), models.EventFilter{
		Status: []models.EventStatus{models.EventStatusPending},
	}, student)
	require.NoError(t, err)
	require.Equal(t, []models.EventStatus{models.EventStatusApproved}, f.store.lastFilter.Status)
}
