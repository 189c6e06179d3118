package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cems-project/cems-api/internal/dto"
	"github.com/cems-project/cems-api/internal/models"
	"github.com/cems-project/cems-api/internal/service"
	appErrors "github.com/cems-project/cems-api/pkg/errors"
	"github.com/cems-project/cems-api/pkg/response"
)

type eventService interface {
	Create(ctx context.Context, req dto.CreateEventRequest, organizer *models.User) (*service.SubmissionResult, error)
	Update(ctx context.Context, eventID int64, req dto.UpdateEventRequest, caller *models.User) (*models.Event, error)
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter, caller *models.User) ([]models.Event, error)
}

type chainReader interface {
	ListChain(ctx context.Context, eventID int64) ([]models.Approval, error)
}

// EventHandler exposes REST endpoints for event submission and browsing.
type EventHandler struct {
	service       eventService
	approvals     chainReader
	users         userLoader
	notifications notificationSink
}

// NewEventHandler constructs the handler.
func NewEventHandler(service eventService, approvals chainReader, users userLoader, notifications notificationSink) *EventHandler {
	return &EventHandler{service: service, approvals: approvals, users: users, notifications: notifications}
}

// Create godoc
// @Summary Submit a new event
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	organizer := h.currentUser(c)
	if organizer == nil {
		return
	}
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event payload"))
		return
	}
	result, err := h.service.Create(c.Request.Context(), req, organizer)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.notifications.Dispatch(result.Notifications)
	response.Created(c, result.Event)
}

// Update godoc
// @Summary Edit a pending event
// @Tags Events
// @Accept json
// @Produce json
// @Param id path int true "Event ID"
// @Param payload body dto.UpdateEventRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id} [put]
func (h *EventHandler) Update(c *gin.Context) {
	caller := h.currentUser(c)
	if caller == nil {
		return
	}
	eventID, ok := pathID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event id"))
		return
	}
	var req dto.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event payload"))
		return
	}
	event, err := h.service.Update(c.Request.Context(), eventID, req, caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Get godoc
// @Summary Fetch one event
// @Tags Events
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event id"))
		return
	}
	event, err := h.service.GetByID(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param organizer_id query int false "Organizer filter"
// @Param department_id query int false "Department filter"
// @Param venue_id query int false "Venue filter"
// @Param search query string false "Title search"
// @Param date_from query string false "Earliest date (YYYY-MM-DD)"
// @Param date_to query string false "Latest date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	caller := h.currentUser(c)
	if caller == nil {
		return
	}
	filter := models.EventFilter{
		OrganizerID:  int64(queryInt(c, "organizer_id", 0)),
		DepartmentID: int64(queryInt(c, "department_id", 0)),
		VenueID:      int64(queryInt(c, "venue_id", 0)),
		TitleSearch:  strings.TrimSpace(c.Query("search")),
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			filter.Status = append(filter.Status, models.EventStatus(part))
		}
	}
	if raw := c.Query("date_from"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateFrom = &parsed
		}
	}
	if raw := c.Query("date_to"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateTo = &parsed
		}
	}
	filter.Limit, filter.Offset = pageWindow(c)

	events, err := h.service.List(c.Request.Context(), filter, caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Chain godoc
// @Summary List an event's approval chain
// @Tags Events
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/approvals [get]
func (h *EventHandler) Chain(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event id"))
		return
	}
	chain, err := h.approvals.ListChain(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, chain, nil)
}

func (h *EventHandler) currentUser(c *gin.Context) *models.User {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}
	user, err := h.users.FindByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "account not found"))
		return nil
	}
	return user
}
