package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scoutline/internal/domain"
	"scoutline/internal/events"
	"scoutline/internal/normalize"
)

func (e Engine) getInitiative(ctx context.Context, id string) (domain.Initiative, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Initiative{}, domain.Invalid("id", "required")
	}
	in, err := e.Store.GetInitiative(ctx, id)
	if isNotFound(err) {
		return in, notFound("initiative", id)
	}
	return in, err
}

func (e Engine) GetInitiative(ctx context.Context, id string) (domain.Initiative, error) {
	return e.getInitiative(ctx, id)
}

func (e Engine) ListInitiatives(ctx context.Context, f domain.InitiativeFilter) ([]domain.Initiative, error) {
	f.AccountID = e.accountID(f.AccountID)
	return e.Store.ListInitiatives(ctx, f)
}

// InitiativeCreateOptions are parameters for creating an initiative.
type InitiativeCreateOptions struct {
	ID          string
	AccountID   string
	Name        string
	Description string
	Color       string
	DueDate     *time.Time
}

func (e Engine) CreateInitiative(ctx context.Context, opts InitiativeCreateOptions) (domain.Initiative, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return domain.Initiative{}, domain.Invalid("name", "required")
	}
	color, err := e.colorOrDefault(opts.Color)
	if err != nil {
		return domain.Initiative{}, err
	}
	accountID := e.accountID(opts.AccountID)
	if accountID == "" {
		return domain.Initiative{}, domain.Invalid("account_id", "required")
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.stamp()
	in := domain.Initiative{
		ID:          id,
		AccountID:   accountID,
		Name:        name,
		Description: opts.Description,
		Color:       color,
		DueDate:     opts.DueDate,
		Status:      domain.InitiativeActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Store.EnsureAccount(ctx, accountID, "", now); err != nil {
		return domain.Initiative{}, err
	}
	if err := e.Store.CreateInitiative(ctx, in); err != nil {
		return domain.Initiative{}, err
	}
	e.record(ctx, events.InitiativeEntry(events.InitiativeCreated, accountID, in.ID, events.EventPayload{"name": in.Name, "color": in.Color}))
	return in, nil
}

func (e Engine) colorOrDefault(raw string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(raw))
	if c == "" {
		if e.Config != nil && domain.ValidColor(e.Config.Tracker.DefaultColor) {
			return e.Config.Tracker.DefaultColor, nil
		}
		return domain.DefaultColor, nil
	}
	if !domain.ValidColor(c) {
		return "", domain.Invalid("color", "%q is not one of %s", raw, strings.Join(domain.Colors(), ", "))
	}
	return c, nil
}

// InitiativeEditOptions change initiative fields. Editing never touches
// member items, even when Status is set.
type InitiativeEditOptions struct {
	ID           string
	Name         *string
	Description  *string
	Color        *string
	DueDate      *time.Time
	ClearDueDate bool
	Status       *string
}

func (e Engine) EditInitiative(ctx context.Context, opts InitiativeEditOptions) (domain.Initiative, error) {
	var patch domain.InitiativePatch
	changed := events.EventPayload{}
	if opts.Name != nil {
		name := strings.TrimSpace(*opts.Name)
		if name == "" {
			return domain.Initiative{}, domain.Invalid("name", "must not be empty")
		}
		patch.Name = &name
		changed["name"] = name
	}
	if opts.Description != nil {
		patch.Description = opts.Description
		changed["description"] = *opts.Description
	}
	if opts.Color != nil {
		c, err := e.colorOrDefault(*opts.Color)
		if err != nil {
			return domain.Initiative{}, err
		}
		patch.Color = &c
		changed["color"] = c
	}
	if opts.ClearDueDate && opts.DueDate != nil {
		return domain.Initiative{}, domain.Invalid("due_date", "cannot set and clear at once")
	}
	if opts.ClearDueDate {
		patch.ClearDueDate = true
		changed["due_date"] = nil
	} else if opts.DueDate != nil {
		patch.DueDate = opts.DueDate
		changed["due_date"] = opts.DueDate.UTC().Format(time.RFC3339)
	}
	if opts.Status != nil {
		st, ok := domain.ParseInitiativeStatus(*opts.Status)
		if !ok {
			return domain.Initiative{}, domain.Invalid("status", "unknown initiative status %q", *opts.Status)
		}
		patch.Status = &st
		changed["status"] = string(st)
	}
	in, err := e.getInitiative(ctx, opts.ID)
	if err != nil {
		return in, err
	}
	if len(changed) == 0 {
		return in, nil
	}
	patch.UpdatedAt = e.stamp()
	if err := e.Store.UpdateInitiative(ctx, in.ID, patch); err != nil {
		return in, err
	}
	e.record(ctx, events.InitiativeEntry(events.InitiativeUpdated, in.AccountID, in.ID, changed))
	return e.getInitiative(ctx, in.ID)
}

// CloseResult reports the outcome for every member item of a closed initiative.
type CloseResult struct {
	Initiative domain.Initiative `json:"initiative"`
	Closed     []domain.ItemRef  `json:"closed"`
	Skipped    []domain.ItemRef  `json:"skipped"`
	Failed     []ItemFailure     `json:"failed"`
}

// CloseInitiative marks the initiative completed, then closes each member item
// that is not already completed or closed. Every member is attempted once and
// failures do not stop the loop. If the initiative itself cannot be updated no
// member is touched. A *PartialCascadeError is returned alongside the result
// when any member failed; earlier closures are kept.
func (e Engine) CloseInitiative(ctx context.Context, id string) (CloseResult, error) {
	res := CloseResult{Closed: []domain.ItemRef{}, Skipped: []domain.ItemRef{}, Failed: []ItemFailure{}}
	in, err := e.getInitiative(ctx, id)
	if err != nil {
		return res, err
	}
	if in.Status == domain.InitiativeArchived {
		return res, domain.Invalid("status", "initiative %s is archived", id)
	}
	completed := domain.InitiativeCompleted
	stamp := e.stamp()
	if err := e.Store.UpdateInitiative(ctx, in.ID, domain.InitiativePatch{Status: &completed, UpdatedAt: stamp}); err != nil {
		return res, fmt.Errorf("close initiative %s: %w", in.ID, err)
	}
	in.Status = completed
	in.UpdatedAt = stamp
	res.Initiative = in

	members, err := e.Store.ListItems(ctx, domain.ItemFilter{InitiativeID: in.ID})
	if err != nil {
		return res, fmt.Errorf("list members of %s: %w", in.ID, err)
	}
	closed := domain.StatusClosed
	for _, it := range members {
		if it.Status.IsDone() {
			res.Skipped = append(res.Skipped, it.Ref())
			continue
		}
		err := e.Store.UpdateItem(ctx, it.Ref(), domain.ItemPatch{Status: &closed, UpdatedAt: e.stamp()})
		if err != nil {
			e.log().Warn("cascade close failed",
				zap.String("initiative_id", in.ID),
				zap.String("item", it.Ref().String()),
				zap.Error(err))
			res.Failed = append(res.Failed, ItemFailure{Ref: it.Ref(), Err: err.Error()})
			continue
		}
		res.Closed = append(res.Closed, it.Ref())
	}
	e.Metrics.Cascade("closed", len(res.Closed))
	e.Metrics.Cascade("skipped", len(res.Skipped))
	e.Metrics.Cascade("failed", len(res.Failed))
	e.log().Info("initiative closed",
		zap.String("initiative_id", in.ID),
		zap.Int("closed", len(res.Closed)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("failed", len(res.Failed)))
	e.record(ctx, events.InitiativeEntry(events.InitiativeClosed, in.AccountID, in.ID, events.EventPayload{
		"closed":  refStrings(res.Closed),
		"skipped": refStrings(res.Skipped),
		"failed":  failureStrings(res.Failed),
	}))
	res.Initiative.ItemsCount = len(members)
	if len(res.Failed) > 0 {
		return res, &PartialCascadeError{InitiativeID: in.ID, Failed: res.Failed}
	}
	return res, nil
}

// ReopenInitiative sets the initiative active again. Member items stay as they are.
func (e Engine) ReopenInitiative(ctx context.Context, id string) (domain.Initiative, error) {
	return e.setInitiativeStatus(ctx, id, domain.InitiativeActive, events.InitiativeReopened)
}

// ArchiveInitiative hides the initiative. Members keep their reference and are
// shown as unallocated.
func (e Engine) ArchiveInitiative(ctx context.Context, id string) (domain.Initiative, error) {
	return e.setInitiativeStatus(ctx, id, domain.InitiativeArchived, events.InitiativeArchived)
}

func (e Engine) setInitiativeStatus(ctx context.Context, id string, status domain.InitiativeStatus, evt string) (domain.Initiative, error) {
	in, err := e.getInitiative(ctx, id)
	if err != nil {
		return in, err
	}
	if status == domain.InitiativeActive && in.Status == domain.InitiativeArchived {
		return in, domain.Invalid("status", "initiative %s is archived", id)
	}
	if in.Status == status {
		return in, nil
	}
	from := in.Status
	in.UpdatedAt = e.stamp()
	if err := e.Store.UpdateInitiative(ctx, in.ID, domain.InitiativePatch{Status: &status, UpdatedAt: in.UpdatedAt}); err != nil {
		return in, err
	}
	in.Status = status
	e.record(ctx, events.InitiativeEntry(evt, in.AccountID, in.ID, events.EventPayload{"from": string(from), "to": string(status)}))
	return in, nil
}

// DeleteInitiative removes the initiative and leaves member items in place.
func (e Engine) DeleteInitiative(ctx context.Context, id string) error {
	in, err := e.getInitiative(ctx, id)
	if err != nil {
		return err
	}
	if err := e.Store.DeleteInitiative(ctx, in.ID); err != nil {
		if isNotFound(err) {
			return notFound("initiative", id)
		}
		return err
	}
	e.record(ctx, events.InitiativeEntry(events.InitiativeDeleted, in.AccountID, in.ID, events.EventPayload{
		"name":         in.Name,
		"members_left": in.ItemsCount,
	}))
	return nil
}

// ImportInitiative creates or refreshes an initiative from a legacy grouping record.
func (e Engine) ImportInitiative(ctx context.Context, rec normalize.InitiativeRecord) (domain.Initiative, error) {
	in := normalize.InitiativeFromRecord(rec)
	if in.ID == "" {
		return in, domain.Invalid("bucket_id", "required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return in, domain.Invalid("name", "required")
	}
	in.AccountID = e.accountID(in.AccountID)
	if in.AccountID == "" {
		return in, domain.Invalid("account_id", "required")
	}
	now := e.stamp()
	existing, err := e.Store.GetInitiative(ctx, in.ID)
	switch {
	case err == nil:
		patch := domain.InitiativePatch{
			Name:        &in.Name,
			Description: &in.Description,
			Color:       &in.Color,
			Status:      &in.Status,
			UpdatedAt:   now,
		}
		if in.DueDate != nil {
			patch.DueDate = in.DueDate
		} else {
			patch.ClearDueDate = true
		}
		if err := e.Store.UpdateInitiative(ctx, existing.ID, patch); err != nil {
			return in, err
		}
	case isNotFound(err):
		in.CreatedAt = now
		in.UpdatedAt = now
		if err := e.Store.EnsureAccount(ctx, in.AccountID, "", now); err != nil {
			return in, err
		}
		if err := e.Store.CreateInitiative(ctx, in); err != nil {
			return in, err
		}
	default:
		return in, err
	}
	e.record(ctx, events.InitiativeEntry(events.InitiativeImported, in.AccountID, in.ID, events.EventPayload{"name": in.Name}))
	return e.getInitiative(ctx, in.ID)
}

func refStrings(refs []domain.ItemRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}

func failureStrings(fs []ItemFailure) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Ref.String()
	}
	return out
}
