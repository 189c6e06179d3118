package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cems-project/cems-api/internal/models"
	"github.com/cems-project/cems-api/internal/repository"
	appErrors "github.com/cems-project/cems-api/pkg/errors"
)

type workflowStore interface {
	InTx(ctx context.Context, fn func(tx repository.WorkflowTx) error) error
}

type approvalReader interface {
	ListByEvent(ctx context.Context, eventID int64) ([]models.Approval, error)
	ListPendingByApprover(ctx context.Context, approverID int64) ([]models.ApprovalDetail, error)
	ListByApprover(ctx context.Context, approverID int64) ([]models.ApprovalDetail, error)
}

// DecisionResult is the outcome of one approval transition: the decided row,
// the event's recomputed aggregate status, and the notifications to dispatch
// once the transaction has committed.
type DecisionResult struct {
	Approval      models.Approval
	EventStatus   models.EventStatus
	Notifications []models.NotificationCommand
}

// ApprovalService runs the multi-stage approval state machine. Every
// transition executes inside one storage transaction: the per-stage decision,
// the aggregate recompute, the cascade on rejection, and the transactional
// clash re-check all commit together or not at all.
type ApprovalService struct {
	workflow workflowStore
	reader   approvalReader
	baseURL  string
	logger   *zap.Logger
}

// NewApprovalService constructs the service. baseURL is embedded in
// notification bodies so approvers can follow a link to their dashboard.
func NewApprovalService(workflow workflowStore, reader approvalReader, baseURL string, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{workflow: workflow, reader: reader, baseURL: baseURL, logger: logger}
}

// Approve records an approval for one stage. Preconditions:
//
//  1. The stage exists, belongs to this approver, and is still pending.
//  2. Every lower-sequence stage is already approved.
//  3. The slot must still be free. The booking query is re-run inside the
//     transaction on every approve of a venue-backed event, so a doomed
//     submission fails at the first stage instead of wasting the chain.
func (s *ApprovalService) Approve(ctx context.Context, eventID int64, stage models.ApproverRole, approverID int64, remarks string) (*DecisionResult, error) {
	result := &DecisionResult{}
	err := s.workflow.InTx(ctx, func(tx repository.WorkflowTx) error {
		approval, siblings, event, err := s.loadStage(ctx, tx, eventID, stage, approverID)
		if err != nil {
			return err
		}

		if event.VenueID != nil {
			booked, err := tx.ListApprovedEvents(ctx, *event.VenueID, event.EventDate, event.ID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "re-check venue bookings")
			}
			conflicts := FindConflicts(booked, event.StartTime, event.EndTime)
			if len(conflicts) > 0 {
				return appErrors.WithDetails(appErrors.ErrVenueClash, ClashMessage(conflicts), conflicts)
			}
		}

		now := time.Now().UTC()
		if err := tx.DecideApproval(ctx, approval.ID, models.ApprovalStatusApproved, optionalString(remarks), now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrAlreadyDecided
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "record approval")
		}
		approval.Status = models.ApprovalStatusApproved
		approval.Remarks = optionalString(remarks)
		approval.DecidedAt = &now
		applyDecision(siblings, approval.ID, models.ApprovalStatusApproved)

		aggregate := RecomputeAggregate(siblings)
		if aggregate != event.Status {
			if err := tx.UpdateEventStatus(ctx, event.ID, aggregate); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update event status")
			}
		}

		result.Approval = *approval
		result.EventStatus = aggregate
		result.Notifications = s.approvalNotifications(ctx, tx, event, siblings, aggregate)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("approval recorded",
		zap.Int64("event_id", eventID),
		zap.String("stage", string(stage)),
		zap.Int64("approver_id", approverID),
		zap.String("event_status", string(result.EventStatus)),
	)
	return result, nil
}

// Reject records a rejection for one stage. Any other still-pending stages
// cascade to rejected with a remark naming the deciding level, and the event
// aggregate becomes rejected immediately.
func (s *ApprovalService) Reject(ctx context.Context, eventID int64, stage models.ApproverRole, approverID int64, remarks string) (*DecisionResult, error) {
	result := &DecisionResult{}
	err := s.workflow.InTx(ctx, func(tx repository.WorkflowTx) error {
		approval, _, event, err := s.loadStage(ctx, tx, eventID, stage, approverID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := tx.DecideApproval(ctx, approval.ID, models.ApprovalStatusRejected, optionalString(remarks), now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrAlreadyDecided
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "record rejection")
		}
		approval.Status = models.ApprovalStatusRejected
		approval.Remarks = optionalString(remarks)
		approval.DecidedAt = &now

		cascadeRemark := fmt.Sprintf("Rejected at %s level", stage)
		if _, err := tx.ForceRejectPending(ctx, event.ID, cascadeRemark, now); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "cascade rejection")
		}

		if err := tx.UpdateEventStatus(ctx, event.ID, models.EventStatusRejected); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update event status")
		}

		result.Approval = *approval
		result.EventStatus = models.EventStatusRejected
		result.Notifications = s.rejectionNotifications(ctx, tx, event, stage, remarks)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("rejection recorded",
		zap.Int64("event_id", eventID),
		zap.String("stage", string(stage)),
		zap.Int64("approver_id", approverID),
	)
	return result, nil
}

// ListPending returns the approver's actionable queue. Stages still waiting
// on a prerequisite are filtered out so an approver never sees work they
// cannot act on yet.
func (s *ApprovalService) ListPending(ctx context.Context, approverID int64) ([]models.ApprovalDetail, error) {
	pending, err := s.reader.ListPendingByApprover(ctx, approverID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list pending approvals")
	}

	actionable := make([]models.ApprovalDetail, 0, len(pending))
	for _, detail := range pending {
		siblings, err := s.reader.ListByEvent(ctx, detail.EventID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load approval chain")
		}
		if Actionable(detail.Approval, siblings) {
			actionable = append(actionable, detail)
		}
	}
	return actionable, nil
}

// ListHistory returns the approver's full decision history.
func (s *ApprovalService) ListHistory(ctx context.Context, approverID int64) ([]models.ApprovalDetail, error) {
	history, err := s.reader.ListByApprover(ctx, approverID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list approval history")
	}
	return history, nil
}

// ListChain returns the approval rows for one event in chain order.
func (s *ApprovalService) ListChain(ctx context.Context, eventID int64) ([]models.Approval, error) {
	chain, err := s.reader.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list approval chain")
	}
	return chain, nil
}

// loadStage fetches and validates the stage under row locks. A stage that
// does not exist, or that belongs to a different approver, reports not found
// so callers cannot probe other approvers' queues.
func (s *ApprovalService) loadStage(ctx context.Context, tx repository.WorkflowTx, eventID int64, stage models.ApproverRole, approverID int64) (*models.Approval, []models.Approval, *models.Event, error) {
	approval, err := tx.GetApprovalForEvent(ctx, eventID, stage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "approval stage not found")
		}
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load approval")
	}
	if approval.ApproverID != approverID {
		return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "approval stage not found")
	}
	if approval.Status != models.ApprovalStatusPending {
		return nil, nil, nil, appErrors.ErrAlreadyDecided
	}

	siblings, err := tx.ListApprovals(ctx, eventID)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load approval chain")
	}
	if !Actionable(*approval, siblings) {
		blocker := blockingStage(*approval, siblings)
		return nil, nil, nil, appErrors.Clone(appErrors.ErrPrerequisiteNotMet, fmt.Sprintf("Waiting for %s approval", blocker))
	}

	event, err := tx.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load event")
	}
	return approval, siblings, event, nil
}

func (s *ApprovalService) approvalNotifications(ctx context.Context, tx repository.WorkflowTx, event *models.Event, siblings []models.Approval, aggregate models.EventStatus) []models.NotificationCommand {
	commands := make([]models.NotificationCommand, 0, 1)
	switch aggregate {
	case models.EventStatusApproved:
		organizer, err := tx.GetUser(ctx, event.OrganizerID)
		if err != nil {
			s.logger.Warn("organizer lookup failed for notification", zap.Int64("event_id", event.ID), zap.Error(err))
			return commands
		}
		if addr := organizer.ContactAddress(); addr != "" {
			commands = append(commands, models.NotificationCommand{
				Recipient: addr,
				Subject:   fmt.Sprintf("Event Approved: %s", event.Title),
				Body: fmt.Sprintf("Hi %s,\n\nYour event %q on %s has been fully approved. Registrations are now open.\n\n%s/events/%d",
					organizer.FullName, event.Title, event.EventDate.Format("2006-01-02"), s.baseURL, event.ID),
			})
		}
	case models.EventStatusPending:
		next := nextActionable(siblings)
		if next == nil {
			return commands
		}
		approver, err := tx.GetUser(ctx, next.ApproverID)
		if err != nil {
			s.logger.Warn("approver lookup failed for notification", zap.Int64("event_id", event.ID), zap.Error(err))
			return commands
		}
		if addr := approver.ContactAddress(); addr != "" {
			commands = append(commands, models.NotificationCommand{
				Recipient: addr,
				Subject:   fmt.Sprintf("Event Awaiting Your Approval: %s", event.Title),
				Body: fmt.Sprintf("Hi %s,\n\nThe event %q on %s (%s - %s) is awaiting your approval.\n\n%s/approvals",
					approver.FullName, event.Title, event.EventDate.Format("2006-01-02"),
					event.StartTime, event.EndTime, s.baseURL),
			})
		}
	}
	return commands
}

func (s *ApprovalService) rejectionNotifications(ctx context.Context, tx repository.WorkflowTx, event *models.Event, stage models.ApproverRole, remarks string) []models.NotificationCommand {
	organizer, err := tx.GetUser(ctx, event.OrganizerID)
	if err != nil {
		s.logger.Warn("organizer lookup failed for notification", zap.Int64("event_id", event.ID), zap.Error(err))
		return nil
	}
	addr := organizer.ContactAddress()
	if addr == "" {
		return nil
	}
	body := fmt.Sprintf("Hi %s,\n\nYour event %q was rejected at the %s stage.",
		organizer.FullName, event.Title, stage)
	if remarks != "" {
		body += fmt.Sprintf("\n\nRemarks: %s", remarks)
	}
	body += fmt.Sprintf("\n\n%s/events/%d", s.baseURL, event.ID)
	return []models.NotificationCommand{{
		Recipient: addr,
		Subject:   fmt.Sprintf("Event Rejected: %s", event.Title),
		Body:      body,
	}}
}

func applyDecision(approvals []models.Approval, approvalID int64, decision models.ApprovalStatus) {
	for i := range approvals {
		if approvals[i].ID == approvalID {
			approvals[i].Status = decision
			return
		}
	}
}

// blockingStage names the lowest-sequence unapproved prerequisite.
func blockingStage(approval models.Approval, siblings []models.Approval) models.ApproverRole {
	for _, s := range siblings {
		if s.ID == approval.ID {
			continue
		}
		if s.Sequence < approval.Sequence && s.Status != models.ApprovalStatusApproved {
			return s.Role
		}
	}
	return approval.Role
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
