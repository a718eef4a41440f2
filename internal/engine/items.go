package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scoutline/internal/domain"
	"scoutline/internal/events"
	"scoutline/internal/normalize"
	"scoutline/internal/timewindow"
)

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

func (e Engine) getItem(ctx context.Context, ref domain.ItemRef) (domain.TrackableItem, error) {
	if ref.ID == "" {
		return domain.TrackableItem{}, domain.Invalid("id", "required")
	}
	if ref.Kind == "" {
		ref.Kind = domain.KindActionItem
	}
	it, err := e.Store.GetItem(ctx, ref)
	if isNotFound(err) {
		return it, notFound("item", ref.String())
	}
	return it, err
}

// GetItem returns one item.
func (e Engine) GetItem(ctx context.Context, ref domain.ItemRef) (domain.TrackableItem, error) {
	return e.getItem(ctx, ref)
}

// ListItems returns items of the configured account unless the filter names one.
func (e Engine) ListItems(ctx context.Context, f domain.ItemFilter) ([]domain.TrackableItem, error) {
	f.AccountID = e.accountID(f.AccountID)
	return e.Store.ListItems(ctx, f)
}

// ItemCreateOptions are parameters for creating an item directly.
type ItemCreateOptions struct {
	ID          string
	AccountID   string
	Kind        string
	Title       string
	Description string
	Priority    string
	Status      string
	Severity    string
	// Target defaults to the configured window, this_week when unset.
	Target Target
}

func (e Engine) CreateItem(ctx context.Context, opts ItemCreateOptions) (domain.TrackableItem, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return domain.TrackableItem{}, domain.Invalid("title", "required")
	}
	kind := domain.KindActionItem
	if opts.Kind != "" {
		k, err := domain.ParseSourceKind(opts.Kind)
		if err != nil {
			return domain.TrackableItem{}, err
		}
		kind = k
	}
	priority, err := e.priorityOrDefault(opts.Priority)
	if err != nil {
		return domain.TrackableItem{}, err
	}
	status := domain.StatusOpen
	if opts.Status != "" {
		st, ok := domain.ParseStatus(opts.Status)
		if !ok {
			return domain.TrackableItem{}, domain.Invalid("status", "unknown status %q", opts.Status)
		}
		status = st
	}
	accountID := e.accountID(opts.AccountID)
	if accountID == "" {
		return domain.TrackableItem{}, domain.Invalid("account_id", "required")
	}
	target := opts.Target
	if target == nil {
		target = e.defaultTarget()
	}
	initiative, err := e.resolveTarget(ctx, target, accountID)
	if err != nil {
		return domain.TrackableItem{}, err
	}
	alloc, err := Plan(target, initiative, e.now())
	if err != nil {
		return domain.TrackableItem{}, err
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.stamp()
	it := domain.TrackableItem{
		ID:          id,
		AccountID:   accountID,
		Kind:        kind,
		Title:       title,
		Description: opts.Description,
		Priority:    priority,
		Status:      status,
		Severity:    opts.Severity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	it.Apply(alloc)
	if err := e.Store.EnsureAccount(ctx, accountID, "", now); err != nil {
		return domain.TrackableItem{}, err
	}
	if err := e.Store.CreateItem(ctx, it); err != nil {
		return domain.TrackableItem{}, err
	}
	e.log().Debug("item created", zap.String("item", it.Ref().String()), zap.String("mode", target.Mode()))
	e.record(ctx, events.ItemEntry(events.ItemCreated, accountID, it.Ref().String(), events.EventPayload{
		"title":      it.Title,
		"priority":   string(it.Priority),
		"allocation": allocationPayload(alloc),
	}))
	return it, nil
}

func (e Engine) priorityOrDefault(raw string) (domain.Priority, error) {
	if strings.TrimSpace(raw) == "" {
		if e.Config != nil {
			if p, ok := domain.ParsePriority(e.Config.Tracker.DefaultPriority); ok {
				return p, nil
			}
		}
		return domain.P2, nil
	}
	p, ok := domain.ParsePriority(raw)
	if !ok {
		return "", domain.Invalid("priority", "unknown priority %q", raw)
	}
	return p, nil
}

func (e Engine) defaultTarget() Target {
	if e.Config != nil {
		if w, err := timewindow.ParseWindow(e.Config.Tracker.DefaultWindow); err == nil {
			return WindowTarget{Window: w}
		}
	}
	return WindowTarget{Window: timewindow.ThisWeek}
}

// ItemUpdateOptions is a partial edit. Allocation fields only change through Target.
type ItemUpdateOptions struct {
	Ref         domain.ItemRef
	Title       *string
	Description *string
	Priority    *string
	Status      *string
	Severity    *string
	Target      Target
}

func (e Engine) UpdateItem(ctx context.Context, opts ItemUpdateOptions) (domain.TrackableItem, error) {
	var patch domain.ItemPatch
	changed := events.EventPayload{}
	if opts.Title != nil {
		title := strings.TrimSpace(*opts.Title)
		if title == "" {
			return domain.TrackableItem{}, domain.Invalid("title", "must not be empty")
		}
		patch.Title = &title
		changed["title"] = title
	}
	if opts.Description != nil {
		patch.Description = opts.Description
		changed["description"] = *opts.Description
	}
	if opts.Priority != nil {
		p, ok := domain.ParsePriority(*opts.Priority)
		if !ok {
			return domain.TrackableItem{}, domain.Invalid("priority", "unknown priority %q", *opts.Priority)
		}
		patch.Priority = &p
		changed["priority"] = string(p)
	}
	if opts.Status != nil {
		st, ok := domain.ParseStatus(*opts.Status)
		if !ok {
			return domain.TrackableItem{}, domain.Invalid("status", "unknown status %q", *opts.Status)
		}
		patch.Status = &st
		changed["status"] = string(st)
	}
	if opts.Severity != nil {
		patch.Severity = opts.Severity
		changed["severity"] = *opts.Severity
	}
	it, err := e.getItem(ctx, opts.Ref)
	if err != nil {
		return it, err
	}
	if opts.Target != nil {
		initiative, err := e.resolveTarget(ctx, opts.Target, it.AccountID)
		if err != nil {
			return it, err
		}
		alloc, err := Plan(opts.Target, initiative, e.now())
		if err != nil {
			return it, err
		}
		patch.Allocation = &alloc
		changed["allocation"] = allocationPayload(alloc)
	}
	if patch.Empty() {
		return it, nil
	}
	patch.UpdatedAt = e.stamp()
	if err := e.Store.UpdateItem(ctx, it.Ref(), patch); err != nil {
		return it, err
	}
	applyPatch(&it, patch)
	if opts.Target != nil {
		e.Metrics.Moved(opts.Target.Mode())
	}
	e.record(ctx, events.ItemEntry(events.ItemUpdated, it.AccountID, it.Ref().String(), changed))
	return it, nil
}

func applyPatch(it *domain.TrackableItem, p domain.ItemPatch) {
	if p.Title != nil {
		it.Title = *p.Title
	}
	if p.Description != nil {
		it.Description = *p.Description
	}
	if p.Priority != nil {
		it.Priority = *p.Priority
	}
	if p.Status != nil {
		it.Status = *p.Status
	}
	if p.Severity != nil {
		it.Severity = *p.Severity
	}
	if p.Allocation != nil {
		it.Apply(*p.Allocation)
	}
	if p.UpdatedAt != "" {
		it.UpdatedAt = p.UpdatedAt
	}
}

// DeleteItem removes an item. It is the only way an item stops existing.
func (e Engine) DeleteItem(ctx context.Context, ref domain.ItemRef) error {
	it, err := e.getItem(ctx, ref)
	if err != nil {
		return err
	}
	if err := e.Store.DeleteItem(ctx, it.Ref()); err != nil {
		if isNotFound(err) {
			return notFound("item", it.Ref().String())
		}
		return err
	}
	e.record(ctx, events.ItemEntry(events.ItemDeleted, it.AccountID, it.Ref().String(), events.EventPayload{"title": it.Title}))
	return nil
}

// Ingest normalizes a source record and stores the canonical item. Re-ingesting
// a stored record refreshes its content but keeps the allocation the item was
// given since, unless the record carries allocation fields of its own, and
// never reopens a completed or closed item.
func (e Engine) Ingest(ctx context.Context, accountID string, src normalize.Source) (domain.TrackableItem, error) {
	if src == nil {
		return domain.TrackableItem{}, domain.Invalid("record", "required")
	}
	it := normalize.Item(src)
	if it.ID == "" {
		return it, domain.Invalid("record", "%s record has no id", it.Kind)
	}
	if it.AccountID == "" {
		it.AccountID = e.accountID(accountID)
	}
	if it.AccountID == "" {
		return it, domain.Invalid("account_id", "required")
	}
	now := e.stamp()
	existing, err := e.Store.GetItem(ctx, it.Ref())
	switch {
	case err == nil:
		if it.CreatedAt == "" {
			it.CreatedAt = existing.CreatedAt
		}
		keepTracked(&it, existing)
	case isNotFound(err):
	default:
		return it, err
	}
	if it.CreatedAt == "" {
		it.CreatedAt = now
	}
	it.UpdatedAt = now
	if err := e.Store.EnsureAccount(ctx, it.AccountID, "", now); err != nil {
		return it, err
	}
	if err := e.Store.UpsertItem(ctx, it); err != nil {
		return it, err
	}
	e.Metrics.Ingested(string(it.Kind))
	e.record(ctx, events.ItemEntry(events.ItemIngested, it.AccountID, it.Ref().String(), events.EventPayload{
		"title":    it.Title,
		"priority": string(it.Priority),
		"status":   string(it.Status),
	}))
	return it, nil
}

// keepTracked carries over what the tracker owns on an already stored item.
func keepTracked(it *domain.TrackableItem, existing domain.TrackableItem) {
	if it.DueDate == nil && it.Bucket == domain.BucketBacklog && it.InitiativeID == nil {
		it.Apply(existing.Allocation())
	}
	if existing.Status.IsDone() && !it.Status.IsDone() {
		it.Status = existing.Status
	}
}

// IngestResult reports each record of a batch ingest separately.
type IngestResult struct {
	Items  []domain.TrackableItem `json:"items"`
	Errors []string               `json:"errors,omitempty"`
}

// IngestBatch ingests records one by one; a bad record does not stop the rest.
func (e Engine) IngestBatch(ctx context.Context, accountID string, srcs []normalize.Source) IngestResult {
	res := IngestResult{Items: []domain.TrackableItem{}}
	for _, src := range srcs {
		it, err := e.Ingest(ctx, accountID, src)
		if err != nil {
			res.Errors = append(res.Errors, normalize.SourceID(src)+": "+err.Error())
			continue
		}
		res.Items = append(res.Items, it)
	}
	return res
}
