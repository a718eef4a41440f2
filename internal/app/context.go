package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"scoutline/internal/config"
	"scoutline/internal/repo"
)

// ResolveAccountAndConfig picks the active account and makes sure it exists.
// The workspace config is used when present, otherwise defaults are seeded.
// An explicit override wins over the config, which wins over a single-account DB.
func ResolveAccountAndConfig(ctx context.Context, workspace, accountOverride string, r repo.Repo) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default("")
	}
	accountID := accountOverride
	if accountID == "" {
		accountID = cfg.Account.ID
	}
	if accountID == "" {
		a, err := r.SingleAccount(ctx)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, fmt.Errorf("account not specified; use --account or sl config init")
			}
			return nil, err
		}
		accountID = a.ID
	}
	cfg.Account.ID = accountID
	now := time.Now().UTC().Format(time.RFC3339)
	if err := r.EnsureAccount(ctx, accountID, cfg.Account.Name, now); err != nil {
		return nil, fmt.Errorf("ensure account: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the process logger from the log section of the config.
// Console format writes human-readable lines to stderr; json uses the
// production encoder.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	format := "console"
	if cfg != nil {
		if cfg.Log.Level != "" {
			if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
				return nil, fmt.Errorf("log level %q: %w", cfg.Log.Level, err)
			}
		}
		if cfg.Log.Format != "" {
			format = cfg.Log.Format
		}
	}
	var zc zap.Config
	if format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.Config{
			Encoding:         "console",
			EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
			OutputPaths:      []string{"stderr"},
			ErrorOutputPaths: []string{"stderr"},
		}
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
