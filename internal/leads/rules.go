package leads

import (
	"strings"

	"github.com/fentro/cms-console/internal/apperr"
)

var (
	ErrTargetRequired   = apperr.Validation("status_required", "Select a status")
	ErrFeedbackRequired = apperr.Validation("feedback_required", "Feedback is required")
	ErrInvalidTarget    = apperr.Validation("status_invalid", "This status cannot be selected")
	ErrStatusUsed       = apperr.Validation("status_used", "This status has already been used for this lead")
	ErrTransitionBusy   = apperr.Validation("transition_in_flight", "A status update for this lead is already in progress")
)

// Target is one option in the status picker.
type Target struct {
	Status   Status `json:"status"`
	Disabled bool   `json:"disabled"`
	Reason   string `json:"reason,omitempty"`
}

// AvailableTargets returns S \ {new}, disabling statuses already used by lead.
func AvailableTargets(lead Lead) []Target {
	used := lead.UsedStatuses()
	targets := make([]Target, 0, len(Statuses)-1)
	for _, status := range Statuses {
		if status == StatusNew {
			continue
		}
		target := Target{Status: status}
		if _, ok := used[status]; ok {
			target.Disabled = true
			target.Reason = ErrStatusUsed.Message
		}
		targets = append(targets, target)
	}
	return targets
}

// ValidateTransition applies every local rule; a nil result means the
// request may be sent.
func ValidateTransition(lead Lead, target Status, feedback string) error {
	if target == "" {
		return ErrTargetRequired
	}
	if !target.Valid() || target == StatusNew {
		return ErrInvalidTarget
	}
	if strings.TrimSpace(feedback) == "" {
		return ErrFeedbackRequired
	}
	if _, ok := lead.UsedStatuses()[target]; ok {
		return ErrStatusUsed
	}
	return nil
}

// historyExtends reports whether next keeps previous as an untouched prefix
// and adds exactly one entry.
func historyExtends(previous, next []HistoryEntry) bool {
	if len(next) != len(previous)+1 {
		return false
	}
	for i := range previous {
		if !sameEntry(previous[i], next[i]) {
			return false
		}
	}
	return true
}

func sameEntry(a, b HistoryEntry) bool {
	return a.ID == b.ID &&
		a.Status == b.Status &&
		a.Feedback == b.Feedback &&
		a.UpdatedAt.Equal(b.UpdatedAt) &&
		a.UpdatedBy == b.UpdatedBy &&
		a.ClientName == b.ClientName &&
		a.ClientEmail == b.ClientEmail &&
		a.Company == b.Company
}
