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

type registrationStore interface {
	Create(ctx context.Context, reg *models.Registration) error
	UpdateQRToken(ctx context.Context, id int64, token string) error
	GetByID(ctx context.Context, id int64) (*models.Registration, error)
	GetByEventAndStudent(ctx context.Context, eventID, studentID int64) (*models.Registration, error)
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error)
	CountByEvent(ctx context.Context, eventID int64) (int, error)
	MarkAttended(ctx context.Context, id int64, at time.Time) error
}

// RegistrationService handles student sign-up and QR attendance scanning.
// Registration is only open on approved events; attendance marks exactly
// once per registration.
type RegistrationService struct {
	registrations registrationStore
	events        eventStore
	venues        venueReader
	logger        *zap.Logger
}

// NewRegistrationService constructs the service.
func NewRegistrationService(registrations registrationStore, events eventStore, venues venueReader, logger *zap.Logger) *RegistrationService {
	return &RegistrationService{registrations: registrations, events: events, venues: venues, logger: logger}
}

// Register signs a student up for an approved event and mints the QR token.
func (s *RegistrationService) Register(ctx context.Context, eventID, studentID int64) (*models.Registration, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load event")
	}
	if event.Status != models.EventStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "registrations are only open on approved events")
	}

	if existing, err := s.registrations.GetByEventAndStudent(ctx, eventID, studentID); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already registered for this event")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check registration")
	}

	if event.VenueID != nil {
		venue, err := s.venues.GetByID(ctx, *event.VenueID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load venue")
		}
		if venue != nil && venue.Capacity > 0 {
			count, err := s.registrations.CountByEvent(ctx, eventID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "count registrations")
			}
			if count >= venue.Capacity {
				return nil, appErrors.ErrCapacityFull
			}
		}
	}

	reg := models.Registration{EventID: eventID, StudentID: studentID}
	if err := s.registrations.Create(ctx, &reg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store registration")
	}

	// Token embeds the registration ID, so it is minted after the insert.
	reg.QRToken = BuildQRToken(reg.ID, eventID, studentID)
	if err := s.registrations.UpdateQRToken(ctx, reg.ID, reg.QRToken); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store qr token")
	}

	s.logger.Info("registration created",
		zap.Int64("registration_id", reg.ID),
		zap.Int64("event_id", eventID),
		zap.Int64("student_id", studentID),
	)
	return &reg, nil
}

// Scan marks attendance from a scanned QR code for the given event. Only the
// event's organizer (or an admin) may scan, and the token's embedded IDs and
// nonce must match the stored registration.
func (s *RegistrationService) Scan(ctx context.Context, eventID int64, code string, caller *models.User) (*models.Registration, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load event")
	}
	if event.OrganizerID != caller.ID && caller.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the organizer can scan attendance")
	}

	ref, err := ParseQRToken(code)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if ref.EventID != eventID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "token does not belong to this event")
	}

	reg, err := s.registrations.GetByID(ctx, ref.RegistrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load registration")
	}
	if reg.EventID != ref.EventID || reg.StudentID != ref.StudentID || reg.QRToken != ref.RawToken() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "token does not match the registration")
	}

	now := time.Now().UTC()
	if err := s.registrations.MarkAttended(ctx, reg.ID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrAlreadyMarked
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "mark attendance")
	}
	reg.Attended = true
	reg.AttendedAt = &now

	s.logger.Info("attendance marked",
		zap.Int64("registration_id", reg.ID),
		zap.Int64("event_id", eventID),
		zap.Int64("student_id", reg.StudentID),
	)
	return reg, nil
}

// ListForStudent returns a student's registrations, newest first.
func (s *RegistrationService) ListForStudent(ctx context.Context, studentID int64, limit, offset int) ([]models.Registration, error) {
	regs, err := s.registrations.List(ctx, models.RegistrationFilter{
		StudentID: studentID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list registrations")
	}
	return regs, nil
}

// ListForEvent returns an event's registrations. Only the organizer or an
// admin may inspect the attendee list.
func (s *RegistrationService) ListForEvent(ctx context.Context, eventID int64, caller *models.User, limit, offset int) ([]models.Registration, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load event")
	}
	if event.OrganizerID != caller.ID && caller.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the organizer can view registrations")
	}
	regs, err := s.registrations.List(ctx, models.RegistrationFilter{
		EventID: eventID,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list registrations")
	}
	return regs, nil
}
