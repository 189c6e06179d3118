package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/cems-project/cems-api/internal/middleware"
	"github.com/cems-project/cems-api/internal/models"
	"github.com/cems-project/cems-api/internal/service"
	appErrors "github.com/cems-project/cems-api/pkg/errors"
)

type approvalServiceStub struct {
	result  *service.DecisionResult
	err     error
	eventID int64
	stage   models.ApproverRole
	remarks string
}

func (s *approvalServiceStub) Approve(ctx context.Context, eventID int64, stage models.ApproverRole, approverID int64, remarks string) (*service.DecisionResult, error) {
	s.eventID, s.stage, s.remarks = eventID, stage, remarks
	return s.result, s.err
}

func (s *approvalServiceStub) Reject(ctx context.Context, eventID int64, stage models.ApproverRole, approverID int64, remarks string) (*service.DecisionResult, error) {
	s.eventID, s.stage, s.remarks = eventID, stage, remarks
	return s.result, s.err
}

func (s *approvalServiceStub) ListPending(ctx context.Context, approverID int64) ([]models.ApprovalDetail, error) {
	return nil, nil
}

func (s *approvalServiceStub) ListHistory(ctx context.Context, approverID int64) ([]models.ApprovalDetail, error) {
	return nil, nil
}

type sinkStub struct {
	dispatched []models.NotificationCommand
}

func (s *sinkStub) Dispatch(commands []models.NotificationCommand) {
	s.dispatched = append(s.dispatched, commands...)
}

func performDecision(t *testing.T, stub *approvalServiceStub, sink *sinkStub, role models.UserRole, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextClaimsKey, &models.JWTClaims{UserID: 200, Role: role})
		c.Next()
	})
	h := NewApprovalHandler(stub, sink)
	r.POST("/events/:id/approve", h.Approve)
	r.POST("/events/:id/reject", h.Reject)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestApprovalHandlerApprove(t *testing.T) {
	stub := &approvalServiceStub{
		result: &service.DecisionResult{
			Approval:    models.Approval{ID: 1, EventID: 10, Status: models.ApprovalStatusApproved},
			EventStatus: models.EventStatusPending,
			Notifications: []models.NotificationCommand{
				{Recipient: "principal@campus.edu", Subject: "Event Awaiting Your Approval: Tech Symposium"},
			},
		},
	}
	sink := &sinkStub{}

	w := performDecision(t, stub, sink, models.RoleHOD, "/events/10/approve", `{"remarks":"ok"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, int64(10), stub.eventID)
	require.Equal(t, models.ApproverRoleHOD, stub.stage)
	require.Equal(t, "ok", stub.remarks)
	require.Len(t, sink.dispatched, 1)

	var envelope struct {
		Data struct {
			EventStatus models.EventStatus `json:"event_status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, models.EventStatusPending, envelope.Data.EventStatus)
}

func TestApprovalHandlerRejectMapsRoleToStage(t *testing.T) {
	stub := &approvalServiceStub{
		result: &service.DecisionResult{
			Approval:    models.Approval{ID: 2, EventID: 10, Status: models.ApprovalStatusRejected},
			EventStatus: models.EventStatusRejected,
		},
	}
	sink := &sinkStub{}

	w := performDecision(t, stub, sink, models.RolePrincipal, "/events/10/reject", `{"remarks":"clash"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, models.ApproverRolePrincipal, stub.stage)
}

func TestApprovalHandlerConflictPassthrough(t *testing.T) {
	stub := &approvalServiceStub{err: appErrors.ErrAlreadyDecided}
	sink := &sinkStub{}

	w := performDecision(t, stub, sink, models.RoleHOD, "/events/10/approve", "")
	require.Equal(t, http.StatusConflict, w.Code)
	require.Empty(t, sink.dispatched)

	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, appErrors.ErrAlreadyDecided.Code, envelope.Error.Code)
}

func TestApprovalHandlerRejectsNonApproverRole(t *testing.T) {
	stub := &approvalServiceStub{}
	sink := &sinkStub{}

	w := performDecision(t, stub, sink, models.RoleStudent, "/events/10/approve", "")
	require.Equal(t, http.StatusForbidden, w.Code)
}
