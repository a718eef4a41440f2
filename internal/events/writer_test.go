package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoutline/internal/db"
	"scoutline/internal/domain"
	"scoutline/internal/events"
	"scoutline/internal/migrate"
)

var pinned = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newWriter(t *testing.T) events.Writer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return events.Writer{DB: conn, Now: func() time.Time { return pinned }}
}

func TestListPagination(t *testing.T) {
	w := newWriter(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, w.Append(ctx, events.InitiativeEntry(events.InitiativeCreated, "acct-1", id, events.EventPayload{"name": id})))
	}
	require.NoError(t, w.Append(ctx, events.ItemEntry(events.ItemMoved, "acct-1", "action_item/x", nil)))

	page, err := w.List(ctx, domain.EventFilter{AccountID: "acct-1", Type: events.InitiativeCreated, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].EntityID)
	assert.Equal(t, "b", page[1].EntityID)

	rest, err := w.List(ctx, domain.EventFilter{AccountID: "acct-1", Type: events.InitiativeCreated, BeforeID: page[1].ID})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "a", rest[0].EntityID)

	items, err := w.List(ctx, domain.EventFilter{EntityKind: "item"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, events.ItemMoved, items[0].Type)
	assert.Equal(t, `{}`, items[0].Payload)
}

func TestAppendPrefersEntryTime(t *testing.T) {
	w := newWriter(t)
	ctx := context.Background()
	at := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	entry := events.ItemEntry(events.ItemCreated, "acct-1", "risk/r-1", nil)
	entry.TS = at
	require.NoError(t, w.Append(ctx, entry))
	require.NoError(t, w.Append(ctx, events.ItemEntry(events.ItemMoved, "acct-1", "risk/r-1", nil)))

	got, err := w.List(ctx, domain.EventFilter{EntityID: "risk/r-1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, pinned.Format(time.RFC3339), got[0].TS)
	assert.Equal(t, at.Format(time.RFC3339), got[1].TS)
}
