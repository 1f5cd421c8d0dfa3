package notifications

import "sort"

// Merge folds a pulled batch into the current list: a set union by id where
// pulled records replace existing ones field by field, re-sorted newest first.
// Items absent from the batch are kept.
func Merge(current, pulled []Notification) []Notification {
	index := make(map[string]int, len(current)+len(pulled))
	merged := make([]Notification, 0, len(current)+len(pulled))
	for _, item := range current {
		if item.ID == "" {
			continue
		}
		if position, ok := index[item.ID]; ok {
			merged[position] = item
			continue
		}
		index[item.ID] = len(merged)
		merged = append(merged, item)
	}
	for _, item := range pulled {
		if item.ID == "" {
			continue
		}
		if position, ok := index[item.ID]; ok {
			merged[position] = item
			continue
		}
		index[item.ID] = len(merged)
		merged = append(merged, item)
	}
	sortNewestFirst(merged)
	return merged
}

// CountUnread counts items not yet read.
func CountUnread(items []Notification) int {
	count := 0
	for _, item := range items {
		if !item.Read {
			count++
		}
	}
	return count
}

// SetRead returns a copy of items with id's read flag set, plus the previous flag.
func SetRead(items []Notification, id string, read bool) ([]Notification, bool, bool) {
	updated := append([]Notification(nil), items...)
	for i := range updated {
		if updated[i].ID == id {
			previous := updated[i].Read
			updated[i].Read = read
			return updated, previous, true
		}
	}
	return updated, false, false
}

// SetAllRead returns a copy of items with every item read, plus the ids that changed.
func SetAllRead(items []Notification) ([]Notification, []string) {
	updated := append([]Notification(nil), items...)
	var changed []string
	for i := range updated {
		if !updated[i].Read {
			updated[i].Read = true
			changed = append(changed, updated[i].ID)
		}
	}
	return updated, changed
}

// Remove returns a copy of items without id, plus the removed record.
func Remove(items []Notification, id string) ([]Notification, *Notification) {
	updated := make([]Notification, 0, len(items))
	var removed *Notification
	for _, item := range items {
		if item.ID == id && removed == nil {
			copied := item
			removed = &copied
			continue
		}
		updated = append(updated, item)
	}
	return updated, removed
}

func sortNewestFirst(items []Notification) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}
