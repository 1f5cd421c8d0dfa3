package leads

import "sort"

// Timeline is the status history rendered newest first with at most one
// expanded entry.
type Timeline struct {
	Entries  []HistoryEntry `json:"entries"`
	Expanded string         `json:"expanded,omitempty"`
}

// NewTimeline orders history by updatedAt descending. Equal timestamps keep
// reverse insertion order.
func NewTimeline(history []HistoryEntry) Timeline {
	entries := make([]HistoryEntry, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		entries = append(entries, history[i])
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
	})
	return Timeline{Entries: entries}
}

// Toggle expands id, collapsing whatever was open; toggling the open entry
// collapses it. Unknown ids leave the timeline unchanged.
func (t Timeline) Toggle(id string) Timeline {
	if t.Expanded == id {
		t.Expanded = ""
		return t
	}
	for _, entry := range t.Entries {
		if entry.ID == id {
			t.Expanded = id
			return t
		}
	}
	return t
}

func (t Timeline) has(id string) bool {
	for _, entry := range t.Entries {
		if entry.ID == id {
			return true
		}
	}
	return false
}
