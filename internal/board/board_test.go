package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoutline/internal/domain"
	"scoutline/internal/timewindow"
)

var now = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func due(days int) *time.Time {
	t := now.AddDate(0, 0, days)
	return &t
}

func ptr(s string) *string { return &s }

func item(id string, p domain.Priority, st domain.Status, d *time.Time, initiative *string) domain.TrackableItem {
	return domain.TrackableItem{ID: id, Kind: domain.KindActionItem, Title: id, Priority: p, Status: st, DueDate: d, InitiativeID: initiative}
}

func windowItems(b Board, w timewindow.Window) []string {
	for _, g := range b.Windows {
		if g.Window == w {
			ids := []string{}
			for _, it := range g.Items {
				ids = append(ids, it.ID)
			}
			return ids
		}
	}
	return nil
}

func TestBuildGroupsByWindowAndInitiative(t *testing.T) {
	initiatives := []domain.Initiative{
		{ID: "launch", Name: "Launch", Status: domain.InitiativeActive},
		{ID: "old", Name: "Old", Status: domain.InitiativeCompleted},
		{ID: "gone", Name: "Gone", Status: domain.InitiativeArchived},
	}
	items := []domain.TrackableItem{
		item("soon", domain.P2, domain.StatusOpen, due(2), nil),
		item("later", domain.P2, domain.StatusOpen, due(20), nil),
		item("undated", domain.P3, domain.StatusOpen, nil, nil),
		item("in-launch", domain.P1, domain.StatusOpen, due(60), ptr("launch")),
		item("in-old", domain.P1, domain.StatusInProgress, nil, ptr("old")),
		item("dangling", domain.P2, domain.StatusOpen, due(10), ptr("deleted")),
		item("archived-member", domain.P2, domain.StatusOpen, due(3), ptr("gone")),
	}
	b := Build(items, initiatives, now, Options{})

	require.Len(t, b.Windows, 4)
	assert.Equal(t, []string{"soon", "archived-member"}, windowItems(b, timewindow.ThisWeek))
	assert.Equal(t, []string{"dangling"}, windowItems(b, timewindow.NextWeek))
	assert.Equal(t, []string{"later"}, windowItems(b, timewindow.ThisMonth))
	assert.Equal(t, []string{"undated"}, windowItems(b, timewindow.Backlog))

	require.Len(t, b.ActiveInitiatives, 1)
	assert.Equal(t, "in-launch", b.ActiveInitiatives[0].Items[0].ID)
	require.Len(t, b.ClosedInitiatives, 1)
	assert.Equal(t, "in-old", b.ClosedInitiatives[0].Items[0].ID)
}

func TestBuildHidesClosedItemsByDefault(t *testing.T) {
	items := []domain.TrackableItem{
		item("open", domain.P2, domain.StatusOpen, due(1), nil),
		item("done", domain.P2, domain.StatusCompleted, due(1), nil),
		item("closed", domain.P2, domain.StatusClosed, due(1), nil),
	}
	b := Build(items, nil, now, Options{})
	assert.Equal(t, 2, b.ClosedCount)
	assert.Equal(t, []string{"open"}, windowItems(b, timewindow.ThisWeek))

	b = Build(items, nil, now, Options{ShowClosed: true})
	assert.Equal(t, 2, b.ClosedCount)
	assert.Len(t, windowItems(b, timewindow.ThisWeek), 3)
}

func TestBuildSortsByPriorityThenDueDate(t *testing.T) {
	items := []domain.TrackableItem{
		item("p3", domain.P3, domain.StatusOpen, due(1), nil),
		item("p1-late", domain.P1, domain.StatusOpen, due(5), nil),
		item("p1-early", domain.P1, domain.StatusOpen, due(2), nil),
	}
	b := Build(items, nil, now, Options{})
	assert.Equal(t, []string{"p1-early", "p1-late", "p3"}, windowItems(b, timewindow.ThisWeek))
}

func TestOverdueIsDisplayOnly(t *testing.T) {
	late := item("late", domain.P2, domain.StatusOpen, due(-2), nil)
	assert.True(t, Overdue(late, now))
	assert.Equal(t, timewindow.ThisWeek, timewindow.Classify(late.DueDate, now))

	late.Status = domain.StatusClosed
	assert.False(t, Overdue(late, now))
}
