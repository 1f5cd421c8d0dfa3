package leads

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fentro/cms-console/internal/apperr"
	"github.com/fentro/cms-console/internal/metrics"
)

const meetingLockPrefix = "meeting:"

// Transition moves lead id to target with feedback. Local rules are checked
// before any request; while one transition for id is pending, others are
// refused. Failures leave the board untouched.
func (b *Board) Transition(ctx context.Context, id string, target Status, feedback string) (Lead, error) {
	if !b.acquire(id) {
		metrics.LeadTransitions.WithLabelValues(string(target), "rejected").Inc()
		return Lead{}, ErrTransitionBusy
	}
	defer b.release(id)

	lead, err := b.resolve(ctx, id)
	if err != nil {
		return Lead{}, err
	}
	if err := ValidateTransition(lead, target, feedback); err != nil {
		metrics.LeadTransitions.WithLabelValues(string(target), "rejected").Inc()
		return Lead{}, err
	}

	update := StatusUpdate{
		Status:      target,
		Feedback:    strings.TrimSpace(feedback),
		UpdatedBy:   b.actor(),
		ClientName:  lead.Name,
		ClientEmail: lead.Email,
		Company:     lead.Company,
	}
	reply, err := b.gateway.UpdateStatus(ctx, id, update)
	if err != nil {
		metrics.LeadTransitions.WithLabelValues(string(target), "error").Inc()
		b.report(err, "Failed to update lead status", "transition")
		return Lead{}, err
	}
	if ctx.Err() != nil {
		return Lead{}, apperr.ErrCancelled
	}

	var updated Lead
	if reply == nil {
		updated = b.appendLocally(lead, update)
	} else {
		updated = reply.Clone()
		if !historyExtends(lead.StatusHistory, updated.StatusHistory) {
			b.logger.Warn("lead history not extended by exactly one entry",
				zap.String("lead_id", id),
				zap.Int("before", len(lead.StatusHistory)),
				zap.Int("after", len(updated.StatusHistory)))
		}
	}
	b.replace(updated)

	metrics.LeadTransitions.WithLabelValues(string(target), "ok").Inc()
	b.toasts.Success("Lead status updated to " + string(target))
	return updated.Clone(), nil
}

// appendLocally builds the post-transition lead when the reply omitted it.
func (b *Board) appendLocally(lead Lead, update StatusUpdate) Lead {
	next := lead.Clone()
	next.StatusHistory = append(next.StatusHistory, HistoryEntry{
		ID:          uuid.NewString(),
		Status:      update.Status,
		Feedback:    update.Feedback,
		UpdatedAt:   b.clock().UTC(),
		UpdatedBy:   update.UpdatedBy,
		ClientName:  update.ClientName,
		ClientEmail: update.ClientEmail,
		Company:     update.Company,
	})
	next.Status = update.Status
	return next
}

// ScheduleMeeting validates the form and books the meeting. Field failures
// come back as a validation error wrapping FieldErrors and never reach the
// service.
func (b *Board) ScheduleMeeting(ctx context.Context, request MeetingRequest) (MeetingReceipt, error) {
	request = request.Normalize()
	if problems := request.Validate(); len(problems) > 0 {
		return MeetingReceipt{}, invalidMeeting(problems)
	}

	lockKey := meetingLockPrefix + request.LeadID
	if !b.acquire(lockKey) {
		return MeetingReceipt{}, apperr.Validation("meeting_in_flight", "A meeting for this lead is already being scheduled")
	}
	defer b.release(lockKey)

	receipt, err := b.gateway.ScheduleMeeting(ctx, request)
	if err != nil {
		b.report(err, "Failed to schedule meeting", "schedule_meeting")
		return receipt, err
	}
	b.toasts.Success("Meeting scheduled")
	return receipt, nil
}
