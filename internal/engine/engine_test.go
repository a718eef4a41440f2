package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"scoutline/internal/config"
	"scoutline/internal/db"
	"scoutline/internal/domain"
	"scoutline/internal/engine"
	"scoutline/internal/events"
	"scoutline/internal/migrate"
	"scoutline/internal/normalize"
	"scoutline/internal/timewindow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default("acct-1"), zap.NewNop())
	eng.Now = func() time.Time { return testNow }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func (env testEnv) createItem(t *testing.T, title string) domain.TrackableItem {
	t.Helper()
	it, err := env.Engine.CreateItem(env.Ctx, engine.ItemCreateOptions{Title: title})
	require.NoError(t, err)
	return it
}

func (env testEnv) createInitiative(t *testing.T, name string, due *time.Time) domain.Initiative {
	t.Helper()
	in, err := env.Engine.CreateInitiative(env.Ctx, engine.InitiativeCreateOptions{Name: name, DueDate: due})
	require.NoError(t, err)
	return in
}

func (env testEnv) reload(t *testing.T, it domain.TrackableItem) domain.TrackableItem {
	t.Helper()
	got, err := env.Engine.GetItem(env.Ctx, it.Ref())
	require.NoError(t, err)
	return got
}

func at(d time.Duration) *time.Time {
	t := testNow.Add(d)
	return &t
}

func assertDue(t *testing.T, want *time.Time, got *time.Time) {
	t.Helper()
	if want == nil {
		assert.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	assert.True(t, want.Equal(*got), "due date: want %s got %s", want, got)
}

func TestCreateItemDefaults(t *testing.T) {
	env := newTestEnv(t)
	it := env.createItem(t, "  Call the customer ")

	assert.Equal(t, "Call the customer", it.Title)
	assert.Equal(t, domain.KindActionItem, it.Kind)
	assert.Equal(t, domain.P2, it.Priority)
	assert.Equal(t, domain.StatusOpen, it.Status)
	assert.Equal(t, domain.Bucket30, it.Bucket)
	assert.Nil(t, it.InitiativeID)
	assertDue(t, at(7*day), it.DueDate)

	stored := env.reload(t, it)
	assert.Equal(t, it.Bucket, stored.Bucket)
	assertDue(t, it.DueDate, stored.DueDate)
}

func TestCreateItemValidation(t *testing.T) {
	env := newTestEnv(t)
	var ve *domain.ValidationError

	_, err := env.Engine.CreateItem(env.Ctx, engine.ItemCreateOptions{Title: "   "})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "title", ve.Field)

	_, err = env.Engine.CreateItem(env.Ctx, engine.ItemCreateOptions{Title: "x", Priority: "urgent"})
	require.ErrorAs(t, err, &ve)

	_, err = env.Engine.CreateItem(env.Ctx, engine.ItemCreateOptions{Title: "x", Kind: "ticket"})
	require.ErrorAs(t, err, &ve)

	_, err = env.Engine.CreateItem(env.Ctx, engine.ItemCreateOptions{Title: "x", Target: engine.InitiativeTarget{ID: "missing"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	items, err := env.Engine.ListItems(env.Ctx, domain.ItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMoveToWindow(t *testing.T) {
	env := newTestEnv(t)
	in := env.createInitiative(t, "Launch", at(3*day))
	it := env.createItem(t, "Prepare deck")

	for _, spec := range timewindow.Windows() {
		_, err := env.Engine.Move(env.Ctx, engine.MoveCommand{Ref: it.Ref(), Target: engine.InitiativeTarget{ID: in.ID}})
		require.NoError(t, err)

		moved, err := env.Engine.Move(env.Ctx, engine.MoveCommand{Ref: it.Ref(), Target: engine.WindowTarget{Window: spec.Key}})
		require.NoError(t, err)
		stored := env.reload(t, moved)
		assert.Equal(t, spec.Bucket, stored.Bucket, spec.Key)
		assert.Nil(t, stored.InitiativeID, spec.Key)
		assertDue(t, at(spec.Offset), stored.DueDate)
		assert.Equal(t, spec.Key, timewindow.Classify(stored.DueDate, testNow))
	}
}

func TestMoveToUnknownBucketFallsBackToBacklog(t *testing.T) {
	env := newTestEnv(t)
	it := env.createItem(t, "Someday")
	moved, err := env.Engine.Move(env.Ctx, engine.MoveCommand{Ref: it.Ref(), Target: engine.BucketTarget{Bucket: "45"}})
	require.NoError(t, err)
	assert.Equal(t, domain.BucketBacklog, moved.Bucket)
	assertDue(t, at(90*day), moved.DueDate)
}

func TestMoveToDate(t *testing.T) {
	env := newTestEnv(t)
	in := env.createInitiative(t, "Launch", nil)
	it := env.createItem(t, "Renewal call")
	_, err := env.Engine.Move(env.Ctx, engine.MoveCommand{Ref: it.Ref(), Target: engine.InitiativeTarget{ID: in.ID}})
	require.NoError(t, err)

	cases := []struct {
		offset time.Duration
		bucket domain.Bucket
	}{
		{3 * day, domain.Bucket30},
		{10 * day, domain.Bucket60},
		{25 * day, domain.Bucket90},
		{40 * day, domain.BucketBacklog},
		{-5 * day, domain.Bucket30},
	}
	for _, tc := range cases {
		moved, err := env.Engine.Move(env.Ctx, engine.MoveCommand{Ref: it.Ref(), Target: engine.DateTarget{Due: *at(tc.offset)}})
		require.NoError(t, err)
		stored := env.reload(t, moved)
		assert.Equal(t, tc.bucket, stored.Bucket)
		assert.Nil(t, stored.InitiativeID)
		assertDue(t, at(tc.offset), stored.DueDate)
	}

	_, err = env.Engine.Move(env.Ctx, engine.MoveCommand{Ref: it.Ref(), Target: engine.DateTarget{}})
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestMoveStoresSubSecondDueDate(t *testing.T) {
	env := newTestEnv(t)
	now := testNow.Add(9*time.Hour + 500*time.Millisecond)
	env.Engine.Now = func() time.Time { return now }
	it := env.createItem(t, "Precise")

	moved, err := env.Engine.Move(env.Ctx, engine.MoveCommand{Ref: it.Ref(), Target: engine.WindowTarget{Window: timewindow.NextWeek}})
	require.NoError(t, err)
	want := now.Add(14 * day)
	assertDue(t, &want, moved.DueDate)
	assertDue(t, &want, env.reload(t, it).DueDate)
}

func TestMoveToInitiativeCopiesDueDate(t *testing.T) {
	env := newTestEnv(t)
	it, err := env.Engine.CreateItem(env.Ctx, engine.ItemCreateOptions{Title: "Migrate billing", Target: engine.DateTarget{Due: *at(10 * day)}})
	require.NoError(t, err)
	assert.Equal(t, timewindow.NextWeek, timewindow.Classify(it.DueDate, testNow))

	far := env.createInitiative(t, "Q2 platform", at(40*day))
	moved, err := env.Engine.Move(env.Ctx, engine.MoveCommand{Ref: it.Ref(), Target: engine.InitiativeTarget{ID: far.ID}})
	require.NoError(t, err)
	stored := env.reload(t, moved)
	require.NotNil(t, stored.InitiativeID)
	assert.Equal(t, far.ID, *stored.InitiativeID)
	assertDue(t, at(40*day), stored.DueDate)
	assert.Equal(t, domain.BucketBacklog, stored.Bucket)

	month := env.createInitiative(t, "Month end", at(25*day))
	moved, err = env.Engine.Move(env.Ctx, engine.MoveCommand{Ref: it.Ref(), Target: engine.InitiativeTarget{ID: month.ID}})
	require.NoError(t, err)
	assert.Equal(t, domain.Bucket90, env.reload(t, moved).Bucket)

	undated := env.createInitiative(t, "Undated", nil)
	moved, err = env.Engine.Move(env.Ctx, engine.MoveCommand{Ref: it.Ref(), Target: engine.InitiativeTarget{ID: undated.ID}})
	require.NoError(t, err)
	stored = env.reload(t, moved)
	assert.Nil(t, stored.DueDate)
	assert.Equal(t, domain.BucketBacklog, stored.Bucket)
	assert.Equal(t, undated.ID, *stored.InitiativeID)
}

func TestMoveRejectsUnknownInitiativeWithoutWriting(t *testing.T) {
	env := newTestEnv(t)
	it := env.createItem(t, "Stay put")
	before := env.reload(t, it)

	_, err := env.Engine.Move(env.Ctx, engine.MoveCommand{Ref: it.Ref(), Target: engine.InitiativeTarget{ID: "nope"}})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, before, env.reload(t, it))

	archived := env.createInitiative(t, "Old", nil)
	_, err = env.Engine.ArchiveInitiative(env.Ctx, archived.ID)
	require.NoError(t, err)
	_, err = env.Engine.Move(env.Ctx, engine.MoveCommand{Ref: it.Ref(), Target: engine.InitiativeTarget{ID: archived.ID}})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, before, env.reload(t, it))
}

func TestMoveMissingItem(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Move(env.Ctx, engine.MoveCommand{
		Ref:    domain.ItemRef{Kind: domain.KindRisk, ID: "ghost"},
		Target: engine.WindowTarget{Window: timewindow.NextWeek},
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateItemFieldsAndTarget(t *testing.T) {
	env := newTestEnv(t)
	it := env.createItem(t, "Draft")
	title, prio, status := "Final", "critical", "in_progress"
	updated, err := env.Engine.UpdateItem(env.Ctx, engine.ItemUpdateOptions{
		Ref:      it.Ref(),
		Title:    &title,
		Priority: &prio,
		Status:   &status,
		Target:   engine.WindowTarget{Window: timewindow.ThisMonth},
	})
	require.NoError(t, err)
	stored := env.reload(t, updated)
	assert.Equal(t, "Final", stored.Title)
	assert.Equal(t, domain.P1, stored.Priority)
	assert.Equal(t, domain.StatusInProgress, stored.Status)
	assert.Equal(t, domain.Bucket90, stored.Bucket)

	bad := "done-ish"
	_, err = env.Engine.UpdateItem(env.Ctx, engine.ItemUpdateOptions{Ref: it.Ref(), Status: &bad})
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestDeleteItem(t *testing.T) {
	env := newTestEnv(t)
	it := env.createItem(t, "Temporary")
	require.NoError(t, env.Engine.DeleteItem(env.Ctx, it.Ref()))
	_, err := env.Engine.GetItem(env.Ctx, it.Ref())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, env.Engine.DeleteItem(env.Ctx, it.Ref()), domain.ErrNotFound)
}

func seedMembers(t *testing.T, env testEnv, in domain.Initiative, statuses ...domain.Status) []domain.TrackableItem {
	t.Helper()
	var out []domain.TrackableItem
	for i, st := range statuses {
		it, err := env.Engine.CreateItem(env.Ctx, engine.ItemCreateOptions{
			Title:  "member " + string(rune('a'+i)),
			Status: string(st),
			Target: engine.InitiativeTarget{ID: in.ID},
		})
		require.NoError(t, err)
		out = append(out, it)
	}
	return out
}

func TestCloseInitiativeCascades(t *testing.T) {
	env := newTestEnv(t)
	in := env.createInitiative(t, "Onboarding revamp", at(20*day))
	members := seedMembers(t, env, in, domain.StatusOpen, domain.StatusInProgress, domain.StatusCompleted, domain.StatusClosed)
	outsider := env.createItem(t, "Not a member")

	res, err := env.Engine.CloseInitiative(env.Ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InitiativeCompleted, res.Initiative.Status)
	assert.ElementsMatch(t, []domain.ItemRef{members[0].Ref(), members[1].Ref()}, res.Closed)
	assert.ElementsMatch(t, []domain.ItemRef{members[2].Ref(), members[3].Ref()}, res.Skipped)
	assert.Empty(t, res.Failed)

	assert.Equal(t, domain.StatusClosed, env.reload(t, members[0]).Status)
	assert.Equal(t, domain.StatusClosed, env.reload(t, members[1]).Status)
	assert.Equal(t, domain.StatusCompleted, env.reload(t, members[2]).Status)
	assert.Equal(t, domain.StatusOpen, env.reload(t, outsider).Status)

	stored, err := env.Engine.GetInitiative(env.Ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InitiativeCompleted, stored.Status)
	assert.Equal(t, 4, stored.ItemsCount)
}

func TestReopenNeverReopensMembers(t *testing.T) {
	env := newTestEnv(t)
	in := env.createInitiative(t, "Pilot", nil)
	members := seedMembers(t, env, in, domain.StatusOpen, domain.StatusOpen)
	_, err := env.Engine.CloseInitiative(env.Ctx, in.ID)
	require.NoError(t, err)

	reopened, err := env.Engine.ReopenInitiative(env.Ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InitiativeActive, reopened.Status)
	for _, m := range members {
		assert.Equal(t, domain.StatusClosed, env.reload(t, m).Status)
	}
}

func TestEditStatusDoesNotCascade(t *testing.T) {
	env := newTestEnv(t)
	in := env.createInitiative(t, "Rename me", nil)
	members := seedMembers(t, env, in, domain.StatusOpen)

	name, status := "Renamed", "completed"
	edited, err := env.Engine.EditInitiative(env.Ctx, engine.InitiativeEditOptions{ID: in.ID, Name: &name, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", edited.Name)
	assert.Equal(t, domain.InitiativeCompleted, edited.Status)
	assert.Equal(t, domain.StatusOpen, env.reload(t, members[0]).Status)

	empty := " "
	_, err = env.Engine.EditInitiative(env.Ctx, engine.InitiativeEditOptions{ID: in.ID, Name: &empty})
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
}

// flakyStore fails selected writes and passes everything else through.
type flakyStore struct {
	engine.Store
	failItems      map[string]bool
	failInitiative bool
}

var errStorage = errors.New("storage unavailable")

func (s flakyStore) UpdateItem(ctx context.Context, ref domain.ItemRef, p domain.ItemPatch) error {
	if s.failItems[ref.ID] {
		return errStorage
	}
	return s.Store.UpdateItem(ctx, ref, p)
}

func (s flakyStore) UpdateInitiative(ctx context.Context, id string, p domain.InitiativePatch) error {
	if s.failInitiative {
		return errStorage
	}
	return s.Store.UpdateInitiative(ctx, id, p)
}

func TestCloseInitiativePartialFailure(t *testing.T) {
	env := newTestEnv(t)
	in := env.createInitiative(t, "Churn rescue", nil)
	members := seedMembers(t, env, in, domain.StatusOpen, domain.StatusOpen, domain.StatusOpen)
	broken := members[1]

	eng := env.Engine
	eng.Store = flakyStore{Store: env.Engine.Store, failItems: map[string]bool{broken.ID: true}}
	res, err := eng.CloseInitiative(env.Ctx, in.ID)

	var pce *engine.PartialCascadeError
	require.ErrorAs(t, err, &pce)
	assert.Equal(t, []domain.ItemRef{broken.Ref()}, pce.FailedRefs())
	require.Len(t, res.Failed, 1)
	assert.Equal(t, broken.Ref(), res.Failed[0].Ref)
	assert.ElementsMatch(t, []domain.ItemRef{members[0].Ref(), members[2].Ref()}, res.Closed)

	stored, err := env.Engine.GetInitiative(env.Ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InitiativeCompleted, stored.Status)
	assert.Equal(t, domain.StatusClosed, env.reload(t, members[0]).Status)
	assert.Equal(t, domain.StatusOpen, env.reload(t, broken).Status)
	assert.Equal(t, domain.StatusClosed, env.reload(t, members[2]).Status)

	// Closing again retries only what is still open.
	res, err = env.Engine.CloseInitiative(env.Ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.ItemRef{broken.Ref()}, res.Closed)
}

func TestCloseInitiativeStatusFailureTouchesNoMember(t *testing.T) {
	env := newTestEnv(t)
	in := env.createInitiative(t, "Blocked", nil)
	members := seedMembers(t, env, in, domain.StatusOpen)

	eng := env.Engine
	eng.Store = flakyStore{Store: env.Engine.Store, failInitiative: true}
	_, err := eng.CloseInitiative(env.Ctx, in.ID)
	require.ErrorIs(t, err, errStorage)

	var pce *engine.PartialCascadeError
	assert.False(t, errors.As(err, &pce))
	assert.Equal(t, domain.StatusOpen, env.reload(t, members[0]).Status)
}

func TestDeleteInitiativeLeavesMembersDangling(t *testing.T) {
	env := newTestEnv(t)
	in := env.createInitiative(t, "Short lived", nil)
	members := seedMembers(t, env, in, domain.StatusOpen)

	require.NoError(t, env.Engine.DeleteInitiative(env.Ctx, in.ID))
	_, err := env.Engine.GetInitiative(env.Ctx, in.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	orphan := env.reload(t, members[0])
	require.NotNil(t, orphan.InitiativeID)
	assert.Equal(t, in.ID, *orphan.InitiativeID)

	b, err := env.Engine.Board(env.Ctx, engine.BoardOptions{})
	require.NoError(t, err)
	assert.Empty(t, b.ActiveInitiatives)
	assert.Len(t, b.Windows[3].Items, 1)
	assert.Equal(t, orphan.ID, b.Windows[3].Items[0].ID)
}

func TestArchivedInitiativeMembersShowAsUnallocated(t *testing.T) {
	env := newTestEnv(t)
	in := env.createInitiative(t, "Archived soon", at(5*day))
	seedMembers(t, env, in, domain.StatusOpen)

	archived, err := env.Engine.ArchiveInitiative(env.Ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InitiativeArchived, archived.Status)

	b, err := env.Engine.Board(env.Ctx, engine.BoardOptions{})
	require.NoError(t, err)
	assert.Empty(t, b.ActiveInitiatives)
	assert.Len(t, b.Windows[0].Items, 1)

	_, err = env.Engine.ReopenInitiative(env.Ctx, in.ID)
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
	_, err = env.Engine.CloseInitiative(env.Ctx, in.ID)
	assert.ErrorAs(t, err, &ve)
}

func TestIngestUpsertsCanonicalItem(t *testing.T) {
	env := newTestEnv(t)
	first, err := env.Engine.Ingest(env.Ctx, "", normalize.PainPoint{
		PainPointID: "pp-7",
		Description: "Billing confusion",
		Severity:    "critical",
		Status:      "active",
	})
	require.NoError(t, err)
	assert.Equal(t, "acct-1", first.AccountID)
	assert.Equal(t, "Billing confusion", first.Title)
	assert.Equal(t, domain.P1, first.Priority)
	assert.Equal(t, domain.StatusOpen, first.Status)

	env.Engine.Now = func() time.Time { return testNow.Add(time.Hour) }
	second, err := env.Engine.Ingest(env.Ctx, "", normalize.PainPoint{
		PainPointID: "pp-7",
		Description: "Billing confusion",
		Severity:    "critical",
		Status:      "addressed",
	})
	require.NoError(t, err)
	stored := env.reload(t, second)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.Equal(t, first.CreatedAt, stored.CreatedAt)
	assert.NotEqual(t, first.UpdatedAt, stored.UpdatedAt)

	items, err := env.Engine.ListItems(env.Ctx, domain.ItemFilter{Kind: domain.KindPainPoint})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestReingestKeepsAllocationAndClosedStatus(t *testing.T) {
	env := newTestEnv(t)
	record := normalize.PainPoint{PainPointID: "pp-1", Description: "Onboarding stalls", Status: "active"}
	it, err := env.Engine.Ingest(env.Ctx, "", record)
	require.NoError(t, err)

	in := env.createInitiative(t, "Rescue", at(10*day))
	_, err = env.Engine.Move(env.Ctx, engine.MoveCommand{Ref: it.Ref(), Target: engine.InitiativeTarget{ID: in.ID}})
	require.NoError(t, err)
	_, err = env.Engine.CloseInitiative(env.Ctx, in.ID)
	require.NoError(t, err)

	record.Description = "Onboarding stalls for new seats"
	_, err = env.Engine.Ingest(env.Ctx, "", record)
	require.NoError(t, err)

	got := env.reload(t, it)
	assert.Equal(t, "Onboarding stalls for new seats", got.Description)
	assert.Equal(t, domain.StatusClosed, got.Status)
	require.NotNil(t, got.InitiativeID)
	assert.Equal(t, in.ID, *got.InitiativeID)
	assert.Equal(t, domain.Bucket60, got.Bucket)
	assertDue(t, at(10*day), got.DueDate)
}

func TestReingestWithOwnAllocationReplacesIt(t *testing.T) {
	env := newTestEnv(t)
	record := normalize.ActionItem{ActionID: "a-1", Title: "Send recap"}
	it, err := env.Engine.Ingest(env.Ctx, "", record)
	require.NoError(t, err)
	_, err = env.Engine.Move(env.Ctx, engine.MoveCommand{Ref: it.Ref(), Target: engine.WindowTarget{Window: timewindow.ThisWeek}})
	require.NoError(t, err)

	record.Bucket = "90"
	_, err = env.Engine.Ingest(env.Ctx, "", record)
	require.NoError(t, err)
	got := env.reload(t, it)
	assert.Equal(t, domain.Bucket90, got.Bucket)
	assert.Nil(t, got.DueDate)
}

func TestIngestBatchReportsEachRecord(t *testing.T) {
	env := newTestEnv(t)
	res := env.Engine.IngestBatch(env.Ctx, "", []normalize.Source{
		normalize.Risk{RiskID: "r-1", Description: "Vendor lock-in", Status: "mitigated"},
		normalize.Hazard{Title: "no id"},
		normalize.DistressSignal{SignalID: "ds-1", Title: "Usage drop", Severity: "high"},
	})
	require.Len(t, res.Items, 2)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, domain.StatusCompleted, res.Items[0].Status)
	assert.Equal(t, domain.P2, res.Items[1].Priority)
}

func TestImportInitiativeFromLegacyRecord(t *testing.T) {
	env := newTestEnv(t)
	in, err := env.Engine.ImportInitiative(env.Ctx, normalize.InitiativeRecord{BucketID: "b-1", Name: "Q3 launch", TargetDate: "2024-02-15"})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultColor, in.Color)
	assert.Equal(t, domain.InitiativeActive, in.Status)

	in, err = env.Engine.ImportInitiative(env.Ctx, normalize.InitiativeRecord{BucketID: "b-1", Name: "Q3 launch v2", Color: "red"})
	require.NoError(t, err)
	assert.Equal(t, "Q3 launch v2", in.Name)
	assert.Equal(t, "red", in.Color)
	assert.Nil(t, in.DueDate)
}

type brokenJournal struct{}

func (brokenJournal) Append(context.Context, events.Entry) error { return errStorage }
func (brokenJournal) List(context.Context, domain.EventFilter) ([]domain.Event, error) {
	return nil, errStorage
}

func TestJournalFailureDoesNotFailMutation(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Journal = brokenJournal{}
	it := env.createItem(t, "Still saved")
	assert.Equal(t, "Still saved", env.reload(t, it).Title)
}

func TestMutationsAreJournaled(t *testing.T) {
	env := newTestEnv(t)
	it := env.createItem(t, "Tracked")
	_, err := env.Engine.Move(env.Ctx, engine.MoveCommand{Ref: it.Ref(), Target: engine.WindowTarget{Window: timewindow.Backlog}})
	require.NoError(t, err)

	evts, err := env.Engine.ListEvents(env.Ctx, domain.EventFilter{AccountID: "acct-1", EntityID: it.Ref().String()})
	require.NoError(t, err)
	require.Len(t, evts, 2)
	assert.Equal(t, events.ItemMoved, evts[0].Type)
	assert.Equal(t, events.ItemCreated, evts[1].Type)
	assert.Equal(t, testNow.Format(time.RFC3339), evts[0].TS)
}

func TestListEventsGoesThroughJournal(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Journal = brokenJournal{}
	_, err := env.Engine.ListEvents(env.Ctx, domain.EventFilter{})
	assert.ErrorIs(t, err, errStorage)
}
