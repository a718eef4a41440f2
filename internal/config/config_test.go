package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default("acme")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "acme", cfg.Account.ID)
	assert.Equal(t, "blue", cfg.Tracker.DefaultColor)
	assert.Equal(t, "P2", cfg.Tracker.DefaultPriority)
	assert.Equal(t, "/v0", cfg.Server.BasePath)
}

func TestFromYAMLKeepsDefaultsForMissingSections(t *testing.T) {
	cfg, err := FromYAML([]byte("account:\n  id: acme\ntracker:\n  show_closed: true\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Tracker.ShowClosed)
	assert.Equal(t, "blue", cfg.Tracker.DefaultColor)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"missing account": "tracker:\n  show_closed: true\n",
		"bad color":       "account:\n  id: a\ntracker:\n  default_color: teal\n",
		"bad priority":    "account:\n  id: a\ntracker:\n  default_priority: urgent\n",
		"bad window":      "account:\n  id: a\ntracker:\n  default_window: someday\n",
		"bad level":       "account:\n  id: a\nlog:\n  level: loud\n",
		"bad base path":   "account:\n  id: a\nserver:\n  base_path: v0\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestWriteAndLoad(t *testing.T) {
	dir := t.TempDir()
	missing, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Nil(t, missing)

	cfg := Default("acme")
	cfg.Tracker.ShowClosed = true
	require.NoError(t, Write(dir, cfg))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "acme", loaded.Account.ID)
	assert.True(t, loaded.Tracker.ShowClosed)
}
