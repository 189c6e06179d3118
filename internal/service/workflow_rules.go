package service

import (
	"fmt"
	"strings"

	"github.com/cems-project/cems-api/internal/models"
)

// Overlaps reports whether two half-open "HH:MM" intervals intersect.
// [s1,e1) and [s2,e2) overlap iff s1 < e2 && s2 < e1, so back-to-back
// slots (e1 == s2) never clash. Fixed-width 24h strings compare
// lexicographically.
func Overlaps(start1, end1, start2, end2 string) bool {
	return start1 < end2 && start2 < end1
}

// FindConflicts collects every event whose slot overlaps the candidate
// interval, preserving query order. It never stops at the first match.
func FindConflicts(events []models.Event, start, end string) []models.ConflictDescriptor {
	conflicts := make([]models.ConflictDescriptor, 0)
	for _, event := range events {
		if Overlaps(start, end, event.StartTime, event.EndTime) {
			conflicts = append(conflicts, models.ConflictDescriptor{
				EventID:   event.ID,
				Title:     event.Title,
				StartTime: event.StartTime,
				EndTime:   event.EndTime,
			})
		}
	}
	return conflicts
}

// ClashMessage renders a human-readable summary of the conflict list.
func ClashMessage(conflicts []models.ConflictDescriptor) string {
	if len(conflicts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		parts = append(parts, fmt.Sprintf("'%s' (%s - %s)", c.Title, c.StartTime, c.EndTime))
	}
	return "Venue clash detected with: " + strings.Join(parts, ", ")
}

// RecomputeAggregate derives the event's aggregate status from its approval
// rows. It is a pure function: recomputing over an unchanged set always
// yields the same result.
//
//  1. Any rejected stage rejects the whole event.
//  2. Any pending stage keeps the event pending, even if others approved.
//  3. All stages approved approves the event.
//
// Events that require no approval never reach this function; an empty set
// is reported as pending so a misconfigured chain cannot self-approve.
func RecomputeAggregate(approvals []models.Approval) models.EventStatus {
	if len(approvals) == 0 {
		return models.EventStatusPending
	}
	pending := false
	for _, a := range approvals {
		switch a.Status {
		case models.ApprovalStatusRejected:
			return models.EventStatusRejected
		case models.ApprovalStatusPending:
			pending = true
		}
	}
	if pending {
		return models.EventStatusPending
	}
	return models.EventStatusApproved
}

// Actionable reports whether a stage may be decided: every stage ahead of it
// in the chain must be absent or already approved. This guards the action;
// nothing is stored on the approval row itself.
func Actionable(approval models.Approval, siblings []models.Approval) bool {
	for _, s := range siblings {
		if s.ID == approval.ID {
			continue
		}
		if s.Sequence < approval.Sequence && s.Status != models.ApprovalStatusApproved {
			return false
		}
	}
	return true
}

// nextActionable returns the lowest-sequence pending stage whose
// prerequisites are all approved, or nil when no stage is actionable.
func nextActionable(approvals []models.Approval) *models.Approval {
	for i := range approvals {
		a := approvals[i]
		if a.Status != models.ApprovalStatusPending {
			continue
		}
		if Actionable(a, approvals) {
			return &approvals[i]
		}
	}
	return nil
}
