package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cems-project/cems-api/internal/models"
	appErrors "github.com/cems-project/cems-api/pkg/errors"
)

type availabilityEventStore interface {
	ListApprovedByVenueDate(ctx context.Context, venueID int64, date time.Time, excludeEventID int64) ([]models.Event, error)
}

type availabilityVenueStore interface {
	GetByID(ctx context.Context, id int64) (*models.Venue, error)
	List(ctx context.Context) ([]models.Venue, error)
}

// AvailabilityService answers "is this venue free" questions. Only approved
// events occupy a venue; pending and rejected bookings never block a slot.
type AvailabilityService struct {
	events availabilityEventStore
	venues availabilityVenueStore
	logger *zap.Logger
}

// NewAvailabilityService constructs the service.
func NewAvailabilityService(events availabilityEventStore, venues availabilityVenueStore, logger *zap.Logger) *AvailabilityService {
	return &AvailabilityService{events: events, venues: venues, logger: logger}
}

// CheckClash reports every approved event overlapping the candidate slot.
// A nil venue (online events) never clashes. excludeEventID removes the
// candidate itself from consideration when re-checking an edit.
func (s *AvailabilityService) CheckClash(ctx context.Context, venueID *int64, date time.Time, startTime, endTime string, excludeEventID int64) (*models.ClashResult, error) {
	result := &models.ClashResult{Conflicts: []models.ConflictDescriptor{}}
	if venueID == nil {
		return result, nil
	}
	if _, err := s.venues.GetByID(ctx, *venueID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "venue not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load venue")
	}

	booked, err := s.events.ListApprovedByVenueDate(ctx, *venueID, date, excludeEventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load venue bookings")
	}

	result.Conflicts = FindConflicts(booked, startTime, endTime)
	result.Clash = len(result.Conflicts) > 0
	if result.Clash {
		s.logger.Debug("venue clash detected",
			zap.Int64("venue_id", *venueID),
			zap.String("date", date.Format("2006-01-02")),
			zap.Int("conflicts", len(result.Conflicts)),
		)
	}
	return result, nil
}

// ListVenues returns every bookable venue.
func (s *AvailabilityService) ListVenues(ctx context.Context) ([]models.Venue, error) {
	venues, err := s.venues.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list venues")
	}
	return venues, nil
}
