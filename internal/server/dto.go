package server

import (
	"time"

	"scoutline/internal/board"
	"scoutline/internal/domain"
	"scoutline/internal/engine"
	"scoutline/internal/timewindow"
)

// Request payloads

// TargetRequest names where an item goes. Value holds the window key, bucket
// code, YYYY-MM-DD date or initiative id depending on Mode.
type TargetRequest struct {
	Mode  string `json:"mode" enum:"window,bucket,date,initiative"`
	Value string `json:"value"`
}

type CreateItemRequest struct {
	ID          *string        `json:"id,omitempty"`
	Kind        string         `json:"kind,omitempty" enum:"pain_point,risk,field_request,hazard,distress_signal,action_item"`
	Title       string         `json:"title"`
	Description *string        `json:"description,omitempty"`
	Priority    *string        `json:"priority,omitempty"`
	Status      *string        `json:"status,omitempty" enum:"open,in_progress,completed,closed"`
	Severity    *string        `json:"severity,omitempty"`
	Target      *TargetRequest `json:"target,omitempty"`
}

type UpdateItemRequest struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Priority    *string        `json:"priority,omitempty"`
	Status      *string        `json:"status,omitempty" enum:"open,in_progress,completed,closed"`
	Severity    *string        `json:"severity,omitempty"`
	Target      *TargetRequest `json:"target,omitempty"`
}

type CreateInitiativeRequest struct {
	ID          *string `json:"id,omitempty"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
	DueDate     *string `json:"due_date,omitempty" example:"2024-06-30"`
}

type UpdateInitiativeRequest struct {
	Name         *string `json:"name,omitempty"`
	Description  *string `json:"description,omitempty"`
	Color        *string `json:"color,omitempty"`
	DueDate      *string `json:"due_date,omitempty" example:"2024-06-30"`
	ClearDueDate bool    `json:"clear_due_date,omitempty"`
	Status       *string `json:"status,omitempty" enum:"active,completed,archived"`
}

type ImportInitiativeRequest struct {
	BucketID    string `json:"bucket_id"`
	AccountID   string `json:"account_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	TargetDate  string `json:"target_date,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Responses

type ItemResponse struct {
	ID           string  `json:"id"`
	Kind         string  `json:"kind"`
	Ref          string  `json:"ref"`
	AccountID    string  `json:"account_id"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	Priority     string  `json:"priority"`
	Status       string  `json:"status"`
	DueDate      *string `json:"due_date,omitempty" format:"date-time"`
	Bucket       string  `json:"bucket"`
	InitiativeID *string `json:"initiative_id,omitempty"`
	Window       string  `json:"window"`
	Overdue      bool    `json:"overdue"`
	Severity     string  `json:"severity,omitempty"`
	SignalType   string  `json:"signal_type,omitempty"`
	SourceURL    string  `json:"source_url,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	UpdatedAt    string  `json:"updated_at" format:"date-time"`
}

type InitiativeResponse struct {
	ID          string  `json:"id"`
	AccountID   string  `json:"account_id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Color       string  `json:"color"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	Status      string  `json:"status"`
	ItemsCount  int     `json:"items_count"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type ItemFailureResponse struct {
	Ref   string `json:"ref"`
	Error string `json:"error"`
}

// CloseInitiativeResponse is returned with 200 even when some members failed;
// Partial is then true and Failed lists them.
type CloseInitiativeResponse struct {
	Initiative InitiativeResponse    `json:"initiative"`
	Closed     []string              `json:"closed"`
	Skipped    []string              `json:"skipped"`
	Failed     []ItemFailureResponse `json:"failed"`
	Partial    bool                  `json:"partial"`
}

type IngestBatchResponse struct {
	Items  []ItemResponse `json:"items"`
	Errors []string       `json:"errors"`
}

type WindowGroupResponse struct {
	Window string         `json:"window"`
	Label  string         `json:"label"`
	Bucket string         `json:"bucket"`
	Items  []ItemResponse `json:"items"`
}

type InitiativeGroupResponse struct {
	Initiative InitiativeResponse `json:"initiative"`
	Items      []ItemResponse     `json:"items"`
}

type BoardResponse struct {
	Windows           []WindowGroupResponse     `json:"windows"`
	ActiveInitiatives []InitiativeGroupResponse `json:"active_initiatives"`
	ClosedInitiatives []InitiativeGroupResponse `json:"closed_initiatives"`
	ClosedCount       int                       `json:"closed_count"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	AccountID  string `json:"account_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func itemResponse(it domain.TrackableItem, now time.Time) ItemResponse {
	return ItemResponse{
		ID:           it.ID,
		Kind:         string(it.Kind),
		Ref:          it.Ref().String(),
		AccountID:    it.AccountID,
		Title:        it.Title,
		Description:  it.Description,
		Priority:     string(it.Priority),
		Status:       string(it.Status),
		DueDate:      timeString(it.DueDate),
		Bucket:       string(it.Bucket),
		InitiativeID: it.InitiativeID,
		Window:       string(timewindow.Classify(it.DueDate, now)),
		Overdue:      board.Overdue(it, now),
		Severity:     it.Severity,
		SignalType:   it.SignalType,
		SourceURL:    it.SourceURL,
		CreatedAt:    it.CreatedAt,
		UpdatedAt:    it.UpdatedAt,
	}
}

func mapItems(items []domain.TrackableItem, now time.Time) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, itemResponse(it, now))
	}
	return out
}

func initiativeResponse(in domain.Initiative) InitiativeResponse {
	return InitiativeResponse{
		ID:          in.ID,
		AccountID:   in.AccountID,
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
		DueDate:     timeString(in.DueDate),
		Status:      string(in.Status),
		ItemsCount:  in.ItemsCount,
		CreatedAt:   in.CreatedAt,
		UpdatedAt:   in.UpdatedAt,
	}
}

func mapInitiatives(items []domain.Initiative) []InitiativeResponse {
	out := make([]InitiativeResponse, 0, len(items))
	for _, in := range items {
		out = append(out, initiativeResponse(in))
	}
	return out
}

func closeResponse(res engine.CloseResult) CloseInitiativeResponse {
	out := CloseInitiativeResponse{
		Initiative: initiativeResponse(res.Initiative),
		Closed:     refStrings(res.Closed),
		Skipped:    refStrings(res.Skipped),
		Failed:     []ItemFailureResponse{},
		Partial:    len(res.Failed) > 0,
	}
	for _, f := range res.Failed {
		out.Failed = append(out.Failed, ItemFailureResponse{Ref: f.Ref.String(), Error: f.Err})
	}
	return out
}

func boardResponse(b board.Board, now time.Time) BoardResponse {
	out := BoardResponse{
		Windows:           []WindowGroupResponse{},
		ActiveInitiatives: []InitiativeGroupResponse{},
		ClosedInitiatives: []InitiativeGroupResponse{},
		ClosedCount:       b.ClosedCount,
	}
	for _, w := range b.Windows {
		out.Windows = append(out.Windows, WindowGroupResponse{
			Window: string(w.Window),
			Label:  w.Label,
			Bucket: string(w.Bucket),
			Items:  mapItems(w.Items, now),
		})
	}
	for _, g := range b.ActiveInitiatives {
		out.ActiveInitiatives = append(out.ActiveInitiatives, InitiativeGroupResponse{Initiative: initiativeResponse(g.Initiative), Items: mapItems(g.Items, now)})
	}
	for _, g := range b.ClosedInitiatives {
		out.ClosedInitiatives = append(out.ClosedInitiatives, InitiativeGroupResponse{Initiative: initiativeResponse(g.Initiative), Items: mapItems(g.Items, now)})
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		AccountID:  e.AccountID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		Payload:    e.Payload,
	}
}

func refStrings(refs []domain.ItemRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.String())
	}
	return out
}

func timeString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
