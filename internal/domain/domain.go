package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when an item or initiative does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports a rejected input before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

type SourceKind string

const (
	KindPainPoint      SourceKind = "pain_point"
	KindRisk           SourceKind = "risk"
	KindFieldRequest   SourceKind = "field_request"
	KindHazard         SourceKind = "hazard"
	KindDistressSignal SourceKind = "distress_signal"
	KindActionItem     SourceKind = "action_item"
)

var sourceKinds = []SourceKind{KindPainPoint, KindRisk, KindFieldRequest, KindHazard, KindDistressSignal, KindActionItem}

// SourceKinds lists every supported origin kind.
func SourceKinds() []SourceKind {
	out := make([]SourceKind, len(sourceKinds))
	copy(out, sourceKinds)
	return out
}

func ParseSourceKind(s string) (SourceKind, error) {
	k := SourceKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range sourceKinds {
		if k == known {
			return k, nil
		}
	}
	return "", Invalid("kind", "unknown source kind %q", s)
}

type Priority string

const (
	P1 Priority = "P1"
	P2 Priority = "P2"
	P3 Priority = "P3"
)

// Rank orders priorities with P1 first.
func (p Priority) Rank() int {
	switch p {
	case P1:
		return 1
	case P2:
		return 2
	default:
		return 3
	}
}

// ParsePriority accepts canonical codes and their display aliases.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "p1", "critical":
		return P1, true
	case "p2", "high":
		return P2, true
	case "p3", "medium", "low":
		return P3, true
	}
	return "", false
}

// Label returns the display alias of a priority.
func (p Priority) Label() string {
	switch p {
	case P1:
		return "Critical"
	case P2:
		return "High"
	default:
		return "Medium"
	}
}

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusClosed     Status = "closed"
)

// IsDone reports whether the item is completed or closed.
func (s Status) IsDone() bool {
	return s == StatusCompleted || s == StatusClosed
}

func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusClosed:
		return st, true
	}
	return "", false
}

// Bucket is the persisted coarse horizon code. The empty bucket means backlog.
type Bucket string

const (
	Bucket30      Bucket = "30"
	Bucket60      Bucket = "60"
	Bucket90      Bucket = "90"
	BucketBacklog Bucket = ""
)

// NormalizeBucket keeps the three known codes and maps anything else to backlog.
func NormalizeBucket(s string) Bucket {
	switch b := Bucket(strings.TrimSpace(s)); b {
	case Bucket30, Bucket60, Bucket90:
		return b
	}
	return BucketBacklog
}

type InitiativeStatus string

const (
	InitiativeActive    InitiativeStatus = "active"
	InitiativeCompleted InitiativeStatus = "completed"
	InitiativeArchived  InitiativeStatus = "archived"
)

func ParseInitiativeStatus(s string) (InitiativeStatus, bool) {
	switch st := InitiativeStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case InitiativeActive, InitiativeCompleted, InitiativeArchived:
		return st, true
	}
	return "", false
}

const DefaultColor = "blue"

var palette = []string{"blue", "green", "purple", "orange", "red"}

// Colors returns the initiative color palette.
func Colors() []string {
	out := make([]string, len(palette))
	copy(out, palette)
	return out
}

func ValidColor(c string) bool {
	for _, p := range palette {
		if p == c {
			return true
		}
	}
	return false
}

// ItemRef identifies an item. Ids are only unique within a source kind.
type ItemRef struct {
	Kind SourceKind `json:"kind"`
	ID   string     `json:"id"`
}

func (r ItemRef) String() string { return string(r.Kind) + "/" + r.ID }

type TrackableItem struct {
	ID           string     `json:"id"`
	AccountID    string     `json:"account_id"`
	Kind         SourceKind `json:"kind"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Priority     Priority   `json:"priority" enum:"P1,P2,P3"`
	Status       Status     `json:"status" enum:"open,in_progress,completed,closed"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	Bucket       Bucket     `json:"bucket"`
	InitiativeID *string    `json:"initiative_id,omitempty"`
	Severity     string     `json:"severity,omitempty"`
	SignalType   string     `json:"signal_type,omitempty"`
	SourceURL    string     `json:"source_url,omitempty"`
	CreatedAt    string     `json:"created_at" format:"date-time"`
	UpdatedAt    string     `json:"updated_at" format:"date-time"`
}

func (it TrackableItem) Ref() ItemRef { return ItemRef{Kind: it.Kind, ID: it.ID} }

type Initiative struct {
	ID          string           `json:"id"`
	AccountID   string           `json:"account_id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Color       string           `json:"color"`
	DueDate     *time.Time       `json:"due_date,omitempty"`
	Status      InitiativeStatus `json:"status" enum:"active,completed,archived"`
	ItemsCount  int              `json:"items_count"`
	CreatedAt   string           `json:"created_at" format:"date-time"`
	UpdatedAt   string           `json:"updated_at" format:"date-time"`
}

type Account struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	AccountID  string `json:"account_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}
