package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cems-project/cems-api/internal/dto"
	"github.com/cems-project/cems-api/internal/middleware"
	"github.com/cems-project/cems-api/internal/models"
	"github.com/cems-project/cems-api/internal/service"
	appErrors "github.com/cems-project/cems-api/pkg/errors"
	"github.com/cems-project/cems-api/pkg/response"
)

type approvalService interface {
	Approve(ctx context.Context, eventID int64, stage models.ApproverRole, approverID int64, remarks string) (*service.DecisionResult, error)
	Reject(ctx context.Context, eventID int64, stage models.ApproverRole, approverID int64, remarks string) (*service.DecisionResult, error)
	ListPending(ctx context.Context, approverID int64) ([]models.ApprovalDetail, error)
	ListHistory(ctx context.Context, approverID int64) ([]models.ApprovalDetail, error)
}

// ApprovalHandler exposes the approver's queue and decision endpoints.
type ApprovalHandler struct {
	service       approvalService
	notifications notificationSink
}

// NewApprovalHandler constructs the handler.
func NewApprovalHandler(service approvalService, notifications notificationSink) *ApprovalHandler {
	return &ApprovalHandler{service: service, notifications: notifications}
}

// Pending godoc
// @Summary List approvals waiting on the authenticated approver
// @Tags Approvals
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /approvals/pending [get]
func (h *ApprovalHandler) Pending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	pending, err := h.service.ListPending(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pending, nil)
}

// History godoc
// @Summary List the authenticated approver's decision history
// @Tags Approvals
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /approvals/history [get]
func (h *ApprovalHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	history, err := h.service.ListHistory(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// Approve godoc
// @Summary Approve one stage of an event
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path int true "Event ID"
// @Param payload body dto.DecisionRequest false "Optional remarks"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/approve [post]
func (h *ApprovalHandler) Approve(c *gin.Context) {
	h.decide(c, true)
}

// Reject godoc
// @Summary Reject one stage of an event
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path int true "Event ID"
// @Param payload body dto.DecisionRequest false "Optional remarks"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/reject [post]
func (h *ApprovalHandler) Reject(c *gin.Context) {
	h.decide(c, false)
}

func (h *ApprovalHandler) decide(c *gin.Context, approve bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stage, ok := stageForRole(claims.Role)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role cannot decide approvals"))
		return
	}
	eventID, ok := pathID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event id"))
		return
	}
	var req dto.DecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
			return
		}
	}

	var (
		result *service.DecisionResult
		err    error
	)
	if approve {
		result, err = h.service.Approve(c.Request.Context(), eventID, stage, claims.UserID, req.Remarks)
	} else {
		result, err = h.service.Reject(c.Request.Context(), eventID, stage, claims.UserID, req.Remarks)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.CountApprovalDecision(string(stage), string(result.Approval.Status))
	h.notifications.Dispatch(result.Notifications)
	response.JSON(c, http.StatusOK, gin.H{
		"approval":     result.Approval,
		"event_status": result.EventStatus,
	}, nil)
}

// stageForRole maps an authenticated role onto the chain stage it decides.
func stageForRole(role models.UserRole) (models.ApproverRole, bool) {
	switch role {
	case models.RoleHOD:
		return models.ApproverRoleHOD, true
	case models.RolePrincipal:
		return models.ApproverRolePrincipal, true
	default:
		return "", false
	}
}
