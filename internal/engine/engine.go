package engine

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"scoutline/internal/board"
	"scoutline/internal/config"
	"scoutline/internal/domain"
	"scoutline/internal/events"
	"scoutline/internal/metrics"
	"scoutline/internal/repo"
)

// Store is the record store the engine reads and writes through.
type Store interface {
	EnsureAccount(ctx context.Context, id, name, createdAt string) error

	CreateItem(ctx context.Context, it domain.TrackableItem) error
	UpsertItem(ctx context.Context, it domain.TrackableItem) error
	GetItem(ctx context.Context, ref domain.ItemRef) (domain.TrackableItem, error)
	UpdateItem(ctx context.Context, ref domain.ItemRef, p domain.ItemPatch) error
	DeleteItem(ctx context.Context, ref domain.ItemRef) error
	ListItems(ctx context.Context, f domain.ItemFilter) ([]domain.TrackableItem, error)

	CreateInitiative(ctx context.Context, in domain.Initiative) error
	GetInitiative(ctx context.Context, id string) (domain.Initiative, error)
	UpdateInitiative(ctx context.Context, id string, p domain.InitiativePatch) error
	DeleteInitiative(ctx context.Context, id string) error
	ListInitiatives(ctx context.Context, f domain.InitiativeFilter) ([]domain.Initiative, error)
}

// Journal records one event per mutation and lists them back newest first.
type Journal interface {
	Append(ctx context.Context, e events.Entry) error
	List(ctx context.Context, f domain.EventFilter) ([]domain.Event, error)
}

type Engine struct {
	Store   Store
	Journal Journal
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Config  *config.Config
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config, logger *zap.Logger) Engine {
	return Engine{
		Store:   repo.Repo{DB: db},
		Journal: events.Writer{DB: db},
		Logger:  logger,
		Metrics: metrics.New(),
		Config:  cfg,
		Now:     time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e Engine) accountID(override string) string {
	if override != "" {
		return override
	}
	if e.Config != nil {
		return e.Config.Account.ID
	}
	return ""
}

// record appends to the journal. A journal failure never fails the mutation
// that already happened.
func (e Engine) record(ctx context.Context, entry events.Entry) {
	if e.Journal == nil {
		return
	}
	if entry.TS.IsZero() {
		entry.TS = e.now()
	}
	if err := e.Journal.Append(ctx, entry); err != nil {
		e.log().Warn("journal append failed",
			zap.String("type", entry.Type),
			zap.String("entity_id", entry.EntityID),
			zap.Error(err))
	}
}

// ListEvents returns the newest journal entries matching the filter.
func (e Engine) ListEvents(ctx context.Context, f domain.EventFilter) ([]domain.Event, error) {
	if e.Journal == nil {
		return []domain.Event{}, nil
	}
	return e.Journal.List(ctx, f)
}

// BoardOptions select what the board shows. ShowClosed falls back to the
// tracker config when nil.
type BoardOptions struct {
	AccountID  string
	ShowClosed *bool
}

// Board loads the account's items and initiatives and groups them for display.
func (e Engine) Board(ctx context.Context, opts BoardOptions) (board.Board, error) {
	accountID := e.accountID(opts.AccountID)
	items, err := e.Store.ListItems(ctx, domain.ItemFilter{AccountID: accountID})
	if err != nil {
		return board.Board{}, err
	}
	initiatives, err := e.Store.ListInitiatives(ctx, domain.InitiativeFilter{AccountID: accountID})
	if err != nil {
		return board.Board{}, err
	}
	showClosed := e.Config != nil && e.Config.Tracker.ShowClosed
	if opts.ShowClosed != nil {
		showClosed = *opts.ShowClosed
	}
	return board.Build(items, initiatives, e.now(), board.Options{ShowClosed: showClosed}), nil
}
