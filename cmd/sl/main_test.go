package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoutline/internal/board"
	"scoutline/internal/domain"
	"scoutline/internal/engine"
	"scoutline/internal/timewindow"
)

func TestParseRef(t *testing.T) {
	ref, err := parseRef("risk/r-12")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemRef{Kind: domain.KindRisk, ID: "r-12"}, ref)

	ref, err = parseRef("a-1")
	require.NoError(t, err)
	assert.Equal(t, domain.KindActionItem, ref.Kind)

	_, err = parseRef("meeting/x")
	require.Error(t, err)
}

func newMoveCmd(args ...string) (*cobra.Command, *targetFlags) {
	var tf targetFlags
	cmd := &cobra.Command{Use: "move"}
	tf.register(cmd)
	_ = cmd.ParseFlags(args)
	return cmd, &tf
}

func TestTargetFlags(t *testing.T) {
	cmd, tf := newMoveCmd("--window", "next_week")
	target, err := tf.target(cmd)
	require.NoError(t, err)
	assert.Equal(t, engine.WindowTarget{Window: timewindow.NextWeek}, target)

	cmd, tf = newMoveCmd("--initiative", "ini-1")
	target, err = tf.target(cmd)
	require.NoError(t, err)
	assert.Equal(t, engine.InitiativeTarget{ID: "ini-1"}, target)

	cmd, tf = newMoveCmd()
	target, err = tf.target(cmd)
	require.NoError(t, err)
	assert.Nil(t, target)

	cmd, tf = newMoveCmd("--window", "backlog", "--date", "2024-02-01")
	_, err = tf.target(cmd)
	require.Error(t, err)
}

func TestDecodeSourcesBatch(t *testing.T) {
	srcs, errs, err := decodeSources(domain.KindRisk, []byte(`[{"risk_id":"r-1","title":"Churn"},{"title":"no id"}]`))
	require.NoError(t, err)
	assert.Len(t, srcs, 1)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "record 1")

	_, _, err = decodeSources(domain.KindRisk, []byte("  "))
	require.Error(t, err)
}

func TestRenderBoard(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := now.AddDate(0, 0, -2)
	ini := "ini-1"
	items := []domain.TrackableItem{
		{ID: "a", Kind: domain.KindActionItem, Title: "Call champion", Priority: domain.P1, Status: domain.StatusOpen, DueDate: &late},
		{ID: "b", Kind: domain.KindRisk, Title: "Renewal at risk", Priority: domain.P2, Status: domain.StatusOpen, InitiativeID: &ini},
	}
	initiatives := []domain.Initiative{{ID: ini, Name: "Q1 Save", Color: "purple", Status: domain.InitiativeActive}}
	b := board.Build(items, initiatives, now, board.Options{})

	out := renderBoard(b, now)
	for _, want := range []string{"This Week (1)", "Backlog", "Call champion", "overdue", "Q1 Save", "Renewal at risk"} {
		assert.Contains(t, out, want)
	}
}
