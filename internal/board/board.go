// Package board groups canonical items the way the tracker surface shows them:
// one column per time window plus one group per initiative.
package board

import (
	"sort"
	"time"

	"scoutline/internal/domain"
	"scoutline/internal/timewindow"
)

type Options struct {
	ShowClosed bool
}

type WindowGroup struct {
	Window timewindow.Window      `json:"window"`
	Label  string                 `json:"label"`
	Bucket domain.Bucket          `json:"bucket"`
	Items  []domain.TrackableItem `json:"items"`
}

type InitiativeGroup struct {
	Initiative domain.Initiative      `json:"initiative"`
	Items      []domain.TrackableItem `json:"items"`
}

type Board struct {
	Windows           []WindowGroup     `json:"windows"`
	ActiveInitiatives []InitiativeGroup `json:"active_initiatives"`
	ClosedInitiatives []InitiativeGroup `json:"closed_initiatives"`
	// ClosedCount counts completed and closed items whether shown or not.
	ClosedCount int `json:"closed_count"`
}

// Build groups items for display at instant now.
//
// Items pointing at a missing or archived initiative are treated as
// unallocated and placed by their due date. Items under a live initiative keep
// the allocation the initiative gave them and are not reclassified.
func Build(items []domain.TrackableItem, initiatives []domain.Initiative, now time.Time, opts Options) Board {
	b := Board{
		ActiveInitiatives: []InitiativeGroup{},
		ClosedInitiatives: []InitiativeGroup{},
	}
	byWindow := map[timewindow.Window]int{}
	for i, s := range timewindow.Windows() {
		b.Windows = append(b.Windows, WindowGroup{Window: s.Key, Label: s.Label, Bucket: s.Bucket, Items: []domain.TrackableItem{}})
		byWindow[s.Key] = i
	}

	active := map[string]int{}
	closed := map[string]int{}
	for _, in := range initiatives {
		switch in.Status {
		case domain.InitiativeActive:
			active[in.ID] = len(b.ActiveInitiatives)
			b.ActiveInitiatives = append(b.ActiveInitiatives, InitiativeGroup{Initiative: in, Items: []domain.TrackableItem{}})
		case domain.InitiativeCompleted:
			closed[in.ID] = len(b.ClosedInitiatives)
			b.ClosedInitiatives = append(b.ClosedInitiatives, InitiativeGroup{Initiative: in, Items: []domain.TrackableItem{}})
		}
	}

	for _, it := range items {
		if it.Status.IsDone() {
			b.ClosedCount++
			if !opts.ShowClosed {
				continue
			}
		}
		if it.InitiativeID != nil {
			if idx, ok := active[*it.InitiativeID]; ok {
				b.ActiveInitiatives[idx].Items = append(b.ActiveInitiatives[idx].Items, it)
				continue
			}
			if idx, ok := closed[*it.InitiativeID]; ok {
				b.ClosedInitiatives[idx].Items = append(b.ClosedInitiatives[idx].Items, it)
				continue
			}
		}
		w := timewindow.Classify(it.DueDate, now)
		idx := byWindow[w]
		b.Windows[idx].Items = append(b.Windows[idx].Items, it)
	}

	for i := range b.Windows {
		sortItems(b.Windows[i].Items)
	}
	for _, groups := range [][]InitiativeGroup{b.ActiveInitiatives, b.ClosedInitiatives} {
		for i := range groups {
			sortItems(groups[i].Items)
		}
	}
	return b
}

// Overdue reports whether an open item's due date has passed. It is a display
// hint only; overdue items still classify as this_week.
func Overdue(it domain.TrackableItem, now time.Time) bool {
	return it.DueDate != nil && !it.Status.IsDone() && it.DueDate.Before(now)
}

// sortItems orders by priority, then earliest due date, then title.
func sortItems(items []domain.TrackableItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		switch {
		case a.DueDate == nil && b.DueDate != nil:
			return false
		case a.DueDate != nil && b.DueDate == nil:
			return true
		case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		}
		return a.Title < b.Title
	})
}
