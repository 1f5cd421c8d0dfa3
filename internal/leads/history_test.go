package leads

import (
	"testing"
	"time"
)

func TestTimelineOrderAndSingleExpansion(t *testing.T) {
	history := []HistoryEntry{
		{ID: "h1", Status: StatusContacted, UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "h2", Status: StatusQualified, UpdatedAt: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
		{ID: "h3", Status: StatusLost, UpdatedAt: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
	}
	timeline := NewTimeline(history)
	if timeline.Entries[0].ID != "h3" || timeline.Entries[1].ID != "h2" || timeline.Entries[2].ID != "h1" {
		t.Fatalf("unexpected order %+v", timeline.Entries)
	}
	if history[0].ID != "h1" {
		t.Fatalf("source history must not be reordered")
	}

	timeline = timeline.Toggle("h2")
	if timeline.Expanded != "h2" {
		t.Fatalf("expected h2 expanded")
	}
	timeline = timeline.Toggle("h1")
	if timeline.Expanded != "h1" {
		t.Fatalf("switching must collapse the previous entry")
	}
	timeline = timeline.Toggle("h1")
	if timeline.Expanded != "" {
		t.Fatalf("toggling the open entry collapses it")
	}
	if timeline.Toggle("missing").Expanded != "" {
		t.Fatalf("unknown ids must not expand")
	}
}
