package engine

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"scoutline/internal/domain"
	"scoutline/internal/events"
	"scoutline/internal/timewindow"
)

// Target is where an item is allocated. Exactly one of the concrete target
// types is used per reallocation.
type Target interface {
	Mode() string
	target()
}

// WindowTarget drops an item into a time window.
type WindowTarget struct {
	Window timewindow.Window
}

// BucketTarget drops an item by raw bucket code. Unknown codes land in the
// backlog with the backlog offset.
type BucketTarget struct {
	Bucket string
}

// DateTarget pins an explicit due date.
type DateTarget struct {
	Due time.Time
}

// InitiativeTarget groups the item under an initiative.
type InitiativeTarget struct {
	ID string
}

const (
	ModeWindow     = "window"
	ModeDate       = "date"
	ModeInitiative = "initiative"
)

func (WindowTarget) Mode() string     { return ModeWindow }
func (BucketTarget) Mode() string     { return ModeWindow }
func (DateTarget) Mode() string       { return ModeDate }
func (InitiativeTarget) Mode() string { return ModeInitiative }

func (WindowTarget) target()     {}
func (BucketTarget) target()     {}
func (DateTarget) target()       {}
func (InitiativeTarget) target() {}

// ParseTarget builds a target from a mode name and its value:
// window/this_week, date/2024-05-01, initiative/<id>.
func ParseTarget(mode, value string) (Target, error) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeWindow:
		w, err := timewindow.ParseWindow(value)
		if err != nil {
			return nil, err
		}
		return WindowTarget{Window: w}, nil
	case "bucket":
		return BucketTarget{Bucket: value}, nil
	case ModeDate:
		if value == "" {
			return nil, domain.Invalid("due_date", "required for date mode")
		}
		due, err := parseDay(value)
		if err != nil {
			return nil, err
		}
		return DateTarget{Due: due}, nil
	case ModeInitiative:
		if value == "" {
			return nil, domain.Invalid("initiative_id", "required for initiative mode")
		}
		return InitiativeTarget{ID: value}, nil
	}
	return nil, domain.Invalid("mode", "unknown allocation mode %q", mode)
}

func parseDay(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, domain.Invalid("due_date", "%q is not a date", raw)
	}
	return t, nil
}

// Plan computes the allocation triple for a target. It does no I/O;
// initiative must be the resolved initiative for an InitiativeTarget.
func Plan(t Target, initiative *domain.Initiative, now time.Time) (domain.Allocation, error) {
	switch tg := t.(type) {
	case WindowTarget:
		spec, ok := timewindow.Lookup(tg.Window)
		if !ok {
			return domain.Allocation{}, domain.Invalid("window", "unknown window %q", tg.Window)
		}
		due := timewindow.DefaultDueDate(spec.Bucket, now)
		return domain.Allocation{DueDate: &due, Bucket: spec.Bucket}, nil
	case BucketTarget:
		due := timewindow.DefaultDueDate(domain.Bucket(strings.TrimSpace(tg.Bucket)), now)
		return domain.Allocation{DueDate: &due, Bucket: domain.NormalizeBucket(tg.Bucket)}, nil
	case DateTarget:
		if tg.Due.IsZero() {
			return domain.Allocation{}, domain.Invalid("due_date", "required for date mode")
		}
		due := tg.Due
		return domain.Allocation{DueDate: &due, Bucket: timewindow.BucketFor(&due, now)}, nil
	case InitiativeTarget:
		if initiative == nil || initiative.ID != tg.ID {
			return domain.Allocation{}, notFound("initiative", tg.ID)
		}
		id := initiative.ID
		alloc := domain.Allocation{InitiativeID: &id, Bucket: domain.BucketBacklog}
		if initiative.DueDate != nil {
			due := *initiative.DueDate
			alloc.DueDate = &due
			alloc.Bucket = timewindow.BucketFor(&due, now)
		}
		return alloc, nil
	case nil:
		return domain.Allocation{}, domain.Invalid("target", "required")
	}
	return domain.Allocation{}, domain.Invalid("target", "unsupported target %T", t)
}

// resolveTarget looks up the initiative an InitiativeTarget points at. Missing,
// archived and foreign initiatives are all reported as not found.
func (e Engine) resolveTarget(ctx context.Context, t Target, accountID string) (*domain.Initiative, error) {
	it, ok := t.(InitiativeTarget)
	if !ok {
		return nil, nil
	}
	if strings.TrimSpace(it.ID) == "" {
		return nil, domain.Invalid("initiative_id", "required for initiative mode")
	}
	in, err := e.Store.GetInitiative(ctx, it.ID)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("initiative", it.ID)
		}
		return nil, err
	}
	if in.Status == domain.InitiativeArchived || (accountID != "" && in.AccountID != accountID) {
		return nil, notFound("initiative", it.ID)
	}
	return &in, nil
}

// MoveCommand is an explicit reallocation request, issued when a drag ends.
type MoveCommand struct {
	Ref    domain.ItemRef
	Target Target
}

// Move reallocates an item. The item and any target initiative are checked
// before anything is written, and the three allocation fields are stored in
// one update.
func (e Engine) Move(ctx context.Context, cmd MoveCommand) (domain.TrackableItem, error) {
	if cmd.Target == nil {
		return domain.TrackableItem{}, domain.Invalid("target", "required")
	}
	it, err := e.getItem(ctx, cmd.Ref)
	if err != nil {
		return it, err
	}
	initiative, err := e.resolveTarget(ctx, cmd.Target, it.AccountID)
	if err != nil {
		return it, err
	}
	now := e.now()
	alloc, err := Plan(cmd.Target, initiative, now)
	if err != nil {
		return it, err
	}
	previous := it.Allocation()
	patch := domain.ItemPatch{Allocation: &alloc, UpdatedAt: e.stamp()}
	if err := e.Store.UpdateItem(ctx, cmd.Ref, patch); err != nil {
		return it, err
	}
	it.Apply(alloc)
	it.UpdatedAt = patch.UpdatedAt
	e.Metrics.Moved(cmd.Target.Mode())
	e.log().Info("item moved",
		zap.String("item", cmd.Ref.String()),
		zap.String("mode", cmd.Target.Mode()),
		zap.String("bucket", string(alloc.Bucket)),
		zap.Stringp("initiative_id", alloc.InitiativeID))
	e.record(ctx, events.ItemEntry(events.ItemMoved, it.AccountID, cmd.Ref.String(), events.EventPayload{
		"mode": cmd.Target.Mode(),
		"from": allocationPayload(previous),
		"to":   allocationPayload(alloc),
	}))
	return it, nil
}

func allocationPayload(a domain.Allocation) map[string]any {
	out := map[string]any{"bucket": string(a.Bucket)}
	if a.DueDate != nil {
		out["due_date"] = a.DueDate.UTC().Format(time.RFC3339)
	}
	if a.InitiativeID != nil {
		out["initiative_id"] = *a.InitiativeID
	}
	return out
}
