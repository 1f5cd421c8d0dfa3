package leads

import (
	"encoding/json"
	"time"
)

// Status is a lead's position in the workflow.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusLost      Status = "lost"
	StatusRejected  Status = "rejected"
)

// Statuses lists S in display order.
var Statuses = []Status{StatusNew, StatusContacted, StatusQualified, StatusLost, StatusRejected}

// Valid reports whether s is a member of S.
func (s Status) Valid() bool {
	for _, candidate := range Statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// HistoryEntry is an immutable record of one transition.
type HistoryEntry struct {
	ID          string    `json:"id"`
	Status      Status    `json:"status"`
	Feedback    string    `json:"feedback"`
	UpdatedAt   time.Time `json:"updatedAt"`
	UpdatedBy   string    `json:"updatedBy"`
	ClientName  string    `json:"clientName,omitempty"`
	ClientEmail string    `json:"clientEmail,omitempty"`
	Company     string    `json:"company,omitempty"`
}

// UnmarshalJSON accepts the service's `_id` member.
func (e *HistoryEntry) UnmarshalJSON(data []byte) error {
	type plain HistoryEntry
	var aux struct {
		plain
		LegacyID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = HistoryEntry(aux.plain)
	if e.ID == "" {
		e.ID = aux.LegacyID
	}
	return nil
}

// Lead is an inbound prospect.
type Lead struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	Phone         string         `json:"phone,omitempty"`
	Company       string         `json:"company,omitempty"`
	Message       string         `json:"message,omitempty"`
	Status        Status         `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
	StatusHistory []HistoryEntry `json:"statusHistory"`
}

// UnmarshalJSON accepts `_id` and derives a missing status from history.
func (l *Lead) UnmarshalJSON(data []byte) error {
	type plain Lead
	var aux struct {
		plain
		LegacyID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*l = Lead(aux.plain)
	if l.ID == "" {
		l.ID = aux.LegacyID
	}
	if l.Status == "" {
		l.Status = l.DerivedStatus()
	}
	return nil
}

// DerivedStatus is the status of the latest history entry, or new.
func (l Lead) DerivedStatus() Status {
	if len(l.StatusHistory) == 0 {
		return StatusNew
	}
	return l.StatusHistory[len(l.StatusHistory)-1].Status
}

// UsedStatuses returns the current status plus every status in the history.
func (l Lead) UsedStatuses() map[Status]struct{} {
	used := map[Status]struct{}{l.Status: {}}
	for _, entry := range l.StatusHistory {
		used[entry.Status] = struct{}{}
	}
	return used
}

// Clone returns a deep copy.
func (l Lead) Clone() Lead {
	clone := l
	clone.StatusHistory = append([]HistoryEntry(nil), l.StatusHistory...)
	return clone
}
