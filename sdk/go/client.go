package scoutlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Scoutline HTTP API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults. baseURL includes the API base
// path, for example http://127.0.0.1:8080/v0.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Target names where an item goes: mode is window, bucket, date or initiative.
type Target struct {
	Mode  string `json:"mode"`
	Value string `json:"value"`
}

// Item is the unified work item.
type Item struct {
	ID           string  `json:"id"`
	Kind         string  `json:"kind"`
	Ref          string  `json:"ref"`
	AccountID    string  `json:"account_id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Priority     string  `json:"priority"`
	Status       string  `json:"status"`
	DueDate      *string `json:"due_date"`
	Bucket       string  `json:"bucket"`
	InitiativeID *string `json:"initiative_id"`
	Window       string  `json:"window"`
	Overdue      bool    `json:"overdue"`
	Severity     string  `json:"severity"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// Initiative groups items under a due date and color.
type Initiative struct {
	ID          string  `json:"id"`
	AccountID   string  `json:"account_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Color       string  `json:"color"`
	DueDate     *string `json:"due_date"`
	Status      string  `json:"status"`
	ItemsCount  int     `json:"items_count"`
}

// CloseResult reports what happened to each member of a closed initiative.
// Partial is true when some members could not be closed.
type CloseResult struct {
	Initiative Initiative `json:"initiative"`
	Closed     []string   `json:"closed"`
	Skipped    []string   `json:"skipped"`
	Failed     []struct {
		Ref   string `json:"ref"`
		Error string `json:"error"`
	} `json:"failed"`
	Partial bool `json:"partial"`
}

// Board is the grouped tracker view.
type Board struct {
	Windows []struct {
		Window string `json:"window"`
		Label  string `json:"label"`
		Bucket string `json:"bucket"`
		Items  []Item `json:"items"`
	} `json:"windows"`
	ActiveInitiatives []InitiativeGroup `json:"active_initiatives"`
	ClosedInitiatives []InitiativeGroup `json:"closed_initiatives"`
	ClosedCount       int               `json:"closed_count"`
}

type InitiativeGroup struct {
	Initiative Initiative `json:"initiative"`
	Items      []Item     `json:"items"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	AccountID  string `json:"account_id"`
	EntityID   string `json:"entity_id"`
	EntityKind string `json:"entity_kind"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateItem creates an action item, or an item of another kind when kind is set.
func (c *Client) CreateItem(ctx context.Context, kind, title, priority string, target *Target) (Item, error) {
	body := map[string]any{"title": title}
	if kind != "" {
		body["kind"] = kind
	}
	if priority != "" {
		body["priority"] = priority
	}
	if target != nil {
		body["target"] = target
	}
	var resp Item
	err := c.do(ctx, http.MethodPost, "items", body, &resp)
	return resp, err
}

// GetItem fetches one item.
func (c *Client) GetItem(ctx context.Context, kind, id string) (Item, error) {
	var resp Item
	err := c.do(ctx, http.MethodGet, itemPath(kind, id), nil, &resp)
	return resp, err
}

// Move reallocates an item.
func (c *Client) Move(ctx context.Context, kind, id string, target Target) (Item, error) {
	var resp Item
	err := c.do(ctx, http.MethodPost, itemPath(kind, id)+"/move", target, &resp)
	return resp, err
}

// Ingest normalizes one source record of the given kind.
func (c *Client) Ingest(ctx context.Context, kind string, record any) (Item, error) {
	var resp Item
	err := c.do(ctx, http.MethodPost, "sources/"+url.PathEscape(kind), record, &resp)
	return resp, err
}

// CreateInitiative creates an initiative. dueDate is YYYY-MM-DD or empty.
func (c *Client) CreateInitiative(ctx context.Context, name, color, dueDate string) (Initiative, error) {
	body := map[string]any{"name": name}
	if color != "" {
		body["color"] = color
	}
	if dueDate != "" {
		body["due_date"] = dueDate
	}
	var resp Initiative
	err := c.do(ctx, http.MethodPost, "initiatives", body, &resp)
	return resp, err
}

// CloseInitiative completes an initiative and closes its open items.
func (c *Client) CloseInitiative(ctx context.Context, id string) (CloseResult, error) {
	var resp CloseResult
	err := c.do(ctx, http.MethodPost, "initiatives/"+url.PathEscape(id)+"/close", nil, &resp)
	return resp, err
}

// Board returns the grouped tracker view.
func (c *Client) Board(ctx context.Context, showClosed bool) (Board, error) {
	var resp Board
	endpoint := "board"
	if showClosed {
		endpoint += "?show_closed=true"
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func itemPath(kind, id string) string {
	if kind == "" {
		kind = "action_item"
	}
	return "items/" + url.PathEscape(kind) + "/" + url.PathEscape(id)
}
