package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cems-project/cems-api/internal/dto"
	"github.com/cems-project/cems-api/internal/models"
	appErrors "github.com/cems-project/cems-api/pkg/errors"
	"github.com/cems-project/cems-api/pkg/response"
)

type availabilityService interface {
	CheckClash(ctx context.Context, venueID *int64, date time.Time, startTime, endTime string, excludeEventID int64) (*models.ClashResult, error)
	ListVenues(ctx context.Context) ([]models.Venue, error)
}

// VenueHandler exposes venue reference data and the availability pre-check.
type VenueHandler struct {
	service availabilityService
}

// NewVenueHandler constructs the handler.
func NewVenueHandler(service availabilityService) *VenueHandler {
	return &VenueHandler{service: service}
}

// List godoc
// @Summary List venues
// @Tags Venues
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /venues [get]
func (h *VenueHandler) List(c *gin.Context) {
	venues, err := h.service.ListVenues(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, venues, nil)
}

// Availability godoc
// @Summary Check a venue slot for clashes with approved events
// @Tags Venues
// @Accept json
// @Produce json
// @Param payload body dto.AvailabilityQuery true "Slot to check"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /venues/availability [post]
func (h *VenueHandler) Availability(c *gin.Context) {
	var req dto.AvailabilityQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid availability payload"))
		return
	}
	date, err := time.Parse("2006-01-02", req.EventDate)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "event_date must be YYYY-MM-DD"))
		return
	}
	if req.EndTime <= req.StartTime {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time"))
		return
	}
	result, err := h.service.CheckClash(c.Request.Context(), req.VenueID, date, req.StartTime, req.EndTime, req.ExcludeEventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
