package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/cems-project/cems-api/internal/dto"
	"github.com/cems-project/cems-api/internal/models"
	appErrors "github.com/cems-project/cems-api/pkg/errors"
)

type eventStore interface {
	CreateWithChain(ctx context.Context, event *models.Event, stages []models.ChainStage) error
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	UpdateDetails(ctx context.Context, event *models.Event) error
}

type chainStore interface {
	GetApprovalChain(ctx context.Context, departmentID int64) ([]models.ChainStage, error)
}

type venueReader interface {
	GetByID(ctx context.Context, id int64) (*models.Venue, error)
}

type userReader interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

type clashChecker interface {
	CheckClash(ctx context.Context, venueID *int64, date time.Time, startTime, endTime string, excludeEventID int64) (*models.ClashResult, error)
}

// SubmissionResult is the outcome of creating an event: the stored row, its
// approval chain, and any notifications to dispatch after the writes.
type SubmissionResult struct {
	Event         models.Event
	Chain         []models.ChainStage
	Notifications []models.NotificationCommand
}

// EventService handles event submission, editing, and listing. The approval
// chain is resolved from the owning department at submission time; an empty
// chain means the event needs no approval and goes live immediately.
type EventService struct {
	events       eventStore
	departments  chainStore
	venues       venueReader
	users        userReader
	availability clashChecker
	validator    *validator.Validate
	baseURL      string
	logger       *zap.Logger
}

// NewEventService constructs the service.
func NewEventService(events eventStore, departments chainStore, venues venueReader, users userReader, availability clashChecker, validate *validator.Validate, baseURL string, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	return &EventService{
		events:       events,
		departments:  departments,
		venues:       venues,
		users:        users,
		availability: availability,
		validator:    validate,
		baseURL:      baseURL,
		logger:       logger,
	}
}

// Create validates and stores a new event submission.
func (s *EventService) Create(ctx context.Context, req dto.CreateEventRequest, organizer *models.User) (*SubmissionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if req.EndTime <= req.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	eventDate, err := time.Parse("2006-01-02", req.EventDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event_date must be YYYY-MM-DD")
	}

	event := models.Event{
		Title:       req.Title,
		Description: req.Description,
		EventDate:   eventDate,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		OrganizerID: organizer.ID,
		Mode:        models.EventMode(req.Mode),
	}

	switch event.Mode {
	case models.EventModeOffline:
		if req.VenueID == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "venue_id is required for offline events")
		}
		event.VenueID = req.VenueID
	case models.EventModeOnline:
		if req.MeetingURL == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "meeting_url is required for online events")
		}
		event.MeetingURL = &req.MeetingURL
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "mode must be offline or online")
	}

	department, err := s.resolveDepartment(ctx, req.DepartmentID, event.VenueID, organizer)
	if err != nil {
		return nil, err
	}
	event.DepartmentID = department

	var chain []models.ChainStage
	if department != nil {
		chain, err = s.departments.GetApprovalChain(ctx, *department)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load approval chain")
		}
	}

	clash, err := s.availability.CheckClash(ctx, event.VenueID, event.EventDate, event.StartTime, event.EndTime, 0)
	if err != nil {
		return nil, err
	}
	if clash.Clash {
		return nil, appErrors.WithDetails(appErrors.ErrVenueClash, ClashMessage(clash.Conflicts), clash.Conflicts)
	}

	event.RequiresApproval = len(chain) > 0
	if event.RequiresApproval {
		event.Status = models.EventStatusPending
	} else {
		// No chain configured: the event goes live at submission. The clash
		// check above is the only gate it passes through.
		event.Status = models.EventStatusApproved
	}

	// One transaction stores the event and its stage rows, so a pending
	// event always has its full chain or does not exist at all.
	if err := s.events.CreateWithChain(ctx, &event, chain); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store event")
	}

	s.logger.Info("event submitted",
		zap.Int64("event_id", event.ID),
		zap.Int64("organizer_id", organizer.ID),
		zap.String("status", string(event.Status)),
		zap.Int("chain_stages", len(chain)),
	)

	return &SubmissionResult{
		Event:         event,
		Chain:         chain,
		Notifications: s.submissionNotifications(ctx, &event, chain, organizer),
	}, nil
}

// Update edits a still-pending event. Only the organizer (or an admin) may
// edit, and only while no stage has been decided against the event.
func (s *EventService) Update(ctx context.Context, eventID int64, req dto.UpdateEventRequest, caller *models.User) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	event, err := s.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != caller.ID && caller.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the organizer can edit this event")
	}
	if event.Status != models.EventStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only pending events can be edited")
	}

	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.EventDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.EventDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "event_date must be YYYY-MM-DD")
		}
		event.EventDate = parsed
	}
	if req.StartTime != nil {
		event.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		event.EndTime = *req.EndTime
	}
	if req.VenueID != nil {
		event.VenueID = req.VenueID
	}
	if req.MeetingURL != nil {
		event.MeetingURL = req.MeetingURL
	}
	if event.EndTime <= event.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}

	clash, err := s.availability.CheckClash(ctx, event.VenueID, event.EventDate, event.StartTime, event.EndTime, event.ID)
	if err != nil {
		return nil, err
	}
	if clash.Clash {
		return nil, appErrors.WithDetails(appErrors.ErrVenueClash, ClashMessage(clash.Conflicts), clash.Conflicts)
	}

	if err := s.events.UpdateDetails(ctx, event); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "event has already been decided and can no longer be edited")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update event")
	}

	s.logger.Info("event updated", zap.Int64("event_id", event.ID), zap.Int64("caller_id", caller.ID))
	return event, nil
}

// GetByID fetches one event.
func (s *EventService) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load event")
	}
	return event, nil
}

// List returns events matching the filter. Students and guests only ever see
// approved events regardless of the requested statuses.
func (s *EventService) List(ctx context.Context, filter models.EventFilter, caller *models.User) ([]models.Event, error) {
	if caller.Role == models.RoleStudent || caller.Role == models.RoleGuest {
		filter.Status = []models.EventStatus{models.EventStatusApproved}
	}
	events, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list events")
	}
	return events, nil
}

func (s *EventService) resolveDepartment(ctx context.Context, explicit, venueID *int64, organizer *models.User) (*int64, error) {
	if explicit != nil {
		return explicit, nil
	}
	if venueID != nil {
		venue, err := s.venues.GetByID(ctx, *venueID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "venue not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load venue")
		}
		if venue.DepartmentID != nil {
			return venue.DepartmentID, nil
		}
	}
	return organizer.DepartmentID, nil
}

func (s *EventService) submissionNotifications(ctx context.Context, event *models.Event, chain []models.ChainStage, organizer *models.User) []models.NotificationCommand {
	commands := make([]models.NotificationCommand, 0, 1)
	if !event.RequiresApproval {
		if addr := organizer.ContactAddress(); addr != "" {
			commands = append(commands, models.NotificationCommand{
				Recipient: addr,
				Subject:   fmt.Sprintf("Event Published: %s", event.Title),
				Body: fmt.Sprintf("Hi %s,\n\nYour event %q on %s is live. No approval was required.\n\n%s/events/%d",
					organizer.FullName, event.Title, event.EventDate.Format("2006-01-02"), s.baseURL, event.ID),
			})
		}
		return commands
	}

	first := chain[0]
	approver, err := s.users.FindByID(ctx, first.ApproverID)
	if err != nil {
		s.logger.Warn("approver lookup failed for notification", zap.Int64("event_id", event.ID), zap.Error(err))
		return commands
	}
	if addr := approver.ContactAddress(); addr != "" {
		commands = append(commands, models.NotificationCommand{
			Recipient: addr,
			Subject:   fmt.Sprintf("Event Awaiting Your Approval: %s", event.Title),
			Body: fmt.Sprintf("Hi %s,\n\nThe event %q on %s (%s - %s) has been submitted and is awaiting your approval.\n\n%s/approvals",
				approver.FullName, event.Title, event.EventDate.Format("2006-01-02"),
				event.StartTime, event.EndTime, s.baseURL),
		})
	}
	return commands
}
