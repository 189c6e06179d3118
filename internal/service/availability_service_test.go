package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cems-project/cems-api/internal/models"
	appErrors "github.com/cems-project/cems-api/pkg/errors"
)

func availabilityFixture() (*AvailabilityService, *eventStoreStub) {
	venueID := int64(7)
	store := newEventStoreStub()
	store.events[55] = &models.Event{
		ID:        55,
		Title:     "Hack Night",
		EventDate: time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "12:00",
		VenueID:   &venueID,
		Status:    models.EventStatusApproved,
	}
	venues := &venueReaderStub{venues: map[int64]*models.Venue{
		7: {ID: 7, Name: "Main Auditorium", Capacity: 300},
	}}
	return NewAvailabilityService(store, venues, zap.NewNop()), store
}

func TestAvailabilityServiceDetectsClash(t *testing.T) {
	svc, _ := availabilityFixture()
	venueID := int64(7)
	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

	result, err := svc.CheckClash(context.Background(), &venueID, date, "11:00", "13:00", 0)
	require.NoError(t, err)
	require.True(t, result.Clash)
	require.Len(t, result.Conflicts, 1)
	require.Equal(t, "Hack Night", result.Conflicts[0].Title)
}

func TestAvailabilityServiceBackToBackIsFree(t *testing.T) {
	svc, _ := availabilityFixture()
	venueID := int64(7)
	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

	result, err := svc.CheckClash(context.Background(), &venueID, date, "12:00", "14:00", 0)
	require.NoError(t, err)
	require.False(t, result.Clash)
	require.Empty(t, result.Conflicts)
}

func TestAvailabilityServiceNilVenueNeverClashes(t *testing.T) {
	svc, _ := availabilityFixture()
	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

	result, err := svc.CheckClash(context.Background(), nil, date, "10:00", "12:00", 0)
	require.NoError(t, err)
	require.False(t, result.Clash)
}

func TestAvailabilityServiceExcludesCandidate(t *testing.T) {
	svc, _ := availabilityFixture()
	venueID := int64(7)
	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

	result, err := svc.CheckClash(context.Background(), &venueID, date, "10:00", "12:00", 55)
	require.NoError(t, err)
	require.False(t, result.Clash)
}

func TestAvailabilityServiceUnknownVenue(t *testing.T) {
	svc, _ := availabilityFixture()
	venueID := int64(999)
	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

	_, err := svc.CheckClash(context.Background(), &venueID, date, "10:00", "12:00", 0)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
