package handler

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/cems-project/cems-api/internal/dto"
	"github.com/cems-project/cems-api/internal/models"
	appErrors "github.com/cems-project/cems-api/pkg/errors"
	"github.com/cems-project/cems-api/pkg/response"
)

type registrationService interface {
	Register(ctx context.Context, eventID, studentID int64) (*models.Registration, error)
	Scan(ctx context.Context, eventID int64, code string, caller *models.User) (*models.Registration, error)
	ListForStudent(ctx context.Context, studentID int64, limit, offset int) ([]models.Registration, error)
	ListForEvent(ctx context.Context, eventID int64, caller *models.User, limit, offset int) ([]models.Registration, error)
}

type certificateService interface {
	Generate(ctx context.Context, registrationID int64, caller *models.User) (*dto.CertificateResponse, error)
	Download(ctx context.Context, token string) (*os.File, string, error)
}

// RegistrationHandler exposes registration, attendance and certificate
// endpoints.
type RegistrationHandler struct {
	registrations registrationService
	certificates  certificateService
	users         userLoader
}

// NewRegistrationHandler constructs the handler.
func NewRegistrationHandler(registrations registrationService, certificates certificateService, users userLoader) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations, certificates: certificates, users: users}
}

// Register godoc
// @Summary Register the authenticated student for an event
// @Tags Registrations
// @Produce json
// @Param id path int true "Event ID"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/register [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	eventID, ok := pathID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event id"))
		return
	}
	reg, err := h.registrations.Register(c.Request.Context(), eventID, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reg)
}

// Scan godoc
// @Summary Mark attendance from a scanned QR code
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path int true "Event ID"
// @Param payload body dto.ScanRequest true "Scanned code"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/scan [post]
func (h *RegistrationHandler) Scan(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	caller, err := h.users.FindByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "account not found"))
		return
	}
	eventID, ok := pathID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event id"))
		return
	}
	var req dto.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "scan code is required"))
		return
	}
	reg, err := h.registrations.Scan(c.Request.Context(), eventID, req.Code, caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg, nil)
}

// Mine godoc
// @Summary List the authenticated student's registrations
// @Tags Registrations
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations [get]
func (h *RegistrationHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, offset := pageWindow(c)
	regs, err := h.registrations.ListForStudent(c.Request.Context(), claims.UserID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, nil)
}

// ForEvent godoc
// @Summary List an event's registrations
// @Tags Registrations
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/registrations [get]
func (h *RegistrationHandler) ForEvent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	caller, err := h.users.FindByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "account not found"))
		return
	}
	eventID, ok := pathID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event id"))
		return
	}
	limit, offset := pageWindow(c)
	regs, err := h.registrations.ListForEvent(c.Request.Context(), eventID, caller, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, nil)
}

// Certificate godoc
// @Summary Generate a certificate for an attended registration
// @Tags Certificates
// @Produce json
// @Param id path int true "Registration ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/{id}/certificate [post]
func (h *RegistrationHandler) Certificate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	caller, err := h.users.FindByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "account not found"))
		return
	}
	regID, ok := pathID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid registration id"))
		return
	}
	cert, err := h.certificates.Generate(c.Request.Context(), regID, caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cert, nil)
}

// DownloadCertificate godoc
// @Summary Download a certificate with a signed token
// @Tags Certificates
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /certificates/download [get]
func (h *RegistrationHandler) DownloadCertificate(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, filename, err := h.certificates.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
