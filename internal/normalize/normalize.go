// Package normalize converts the six source record shapes into canonical
// tracker items. Adapters are pure: they never touch storage or the clock.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"scoutline/internal/domain"
)

const untitled = "Untitled"

// Source is a raw record from one of the supported source kinds.
type Source interface {
	Kind() domain.SourceKind
	sealed()
}

// Common carries the allocation fields every source record may already hold.
type Common struct {
	AccountID    string `json:"account_id,omitempty"`
	InitiativeID string `json:"initiative_id,omitempty"`
	Bucket       string `json:"bucket,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

type PainPoint struct {
	Common
	PainPointID string `json:"pain_point_id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Status      string `json:"status,omitempty"`
	TargetDate  string `json:"target_date,omitempty"`
}

type Risk struct {
	Common
	RiskID         string `json:"risk_id"`
	Title          string `json:"title,omitempty"`
	Description    string `json:"description,omitempty"`
	Severity       string `json:"severity,omitempty"`
	Status         string `json:"status,omitempty"`
	TargetDate     string `json:"target_date,omitempty"`
	MitigationPlan string `json:"mitigation_plan,omitempty"`
}

type FieldRequest struct {
	Common
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Status      string `json:"status,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	TargetDate  string `json:"target_date,omitempty"`
}

type Hazard struct {
	Common
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Status      string `json:"status,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	TargetDate  string `json:"target_date,omitempty"`
}

type DistressSignal struct {
	Common
	SignalID    string `json:"signal_id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Severity    string `json:"severity,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
}

type ActionItem struct {
	Common
	ActionID    string `json:"action_id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Status      string `json:"status,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
}

func (PainPoint) Kind() domain.SourceKind      { return domain.KindPainPoint }
func (Risk) Kind() domain.SourceKind           { return domain.KindRisk }
func (FieldRequest) Kind() domain.SourceKind   { return domain.KindFieldRequest }
func (Hazard) Kind() domain.SourceKind         { return domain.KindHazard }
func (DistressSignal) Kind() domain.SourceKind { return domain.KindDistressSignal }
func (ActionItem) Kind() domain.SourceKind     { return domain.KindActionItem }

func (PainPoint) sealed()      {}
func (Risk) sealed()           {}
func (FieldRequest) sealed()   {}
func (Hazard) sealed()         {}
func (DistressSignal) sealed() {}
func (ActionItem) sealed()     {}

// Item is the single normalization entry point.
func Item(src Source) domain.TrackableItem {
	var it domain.TrackableItem
	var c Common
	switch s := deref(src).(type) {
	case PainPoint:
		c = s.Common
		it = domain.TrackableItem{
			ID:          s.PainPointID,
			Title:       title(s.Title, s.Description),
			Description: s.Description,
			Priority:    severityPriority(s.Severity),
			Status:      lookupStatus(painPointStatus, s.Status),
			DueDate:     firstDate(s.TargetDate),
			Severity:    s.Severity,
		}
	case Risk:
		c = s.Common
		desc := s.Description
		if strings.TrimSpace(desc) == "" {
			desc = s.MitigationPlan
		}
		it = domain.TrackableItem{
			ID:          s.RiskID,
			Title:       title(s.Title, s.Description),
			Description: desc,
			Priority:    severityPriority(s.Severity),
			Status:      lookupStatus(riskStatus, s.Status),
			DueDate:     firstDate(s.TargetDate),
			Severity:    s.Severity,
		}
	case FieldRequest:
		c = s.Common
		it = domain.TrackableItem{
			ID:          s.ID,
			Title:       title(s.Title, s.Description),
			Description: s.Description,
			Priority:    fieldPriority(s.Priority),
			Status:      lookupStatus(canonicalStatus, s.Status),
			DueDate:     firstDate(s.DueDate, s.TargetDate),
		}
	case Hazard:
		c = s.Common
		it = domain.TrackableItem{
			ID:          s.ID,
			Title:       title(s.Title, s.Description),
			Description: s.Description,
			Priority:    severityPriority(s.Severity),
			Status:      lookupStatus(canonicalStatus, s.Status),
			DueDate:     firstDate(s.DueDate, s.TargetDate),
			Severity:    s.Severity,
		}
	case DistressSignal:
		c = s.Common
		it = domain.TrackableItem{
			ID:          s.SignalID,
			Title:       title(s.Title, s.Description),
			Description: s.Description,
			Priority:    severityPriority(s.Severity),
			Status:      domain.StatusOpen,
			Severity:    s.Severity,
			SignalType:  s.Type,
			SourceURL:   s.SourceURL,
		}
	case ActionItem:
		c = s.Common
		it = domain.TrackableItem{
			ID:          s.ActionID,
			Title:       title(s.Title, s.Description),
			Description: s.Description,
			Priority:    fieldPriority(s.Priority),
			Status:      lookupStatus(canonicalStatus, s.Status),
			DueDate:     firstDate(s.DueDate),
		}
	default:
		panic(fmt.Sprintf("normalize: unsupported source %T", src))
	}
	it.Kind = src.Kind()
	it.AccountID = c.AccountID
	it.Bucket = domain.NormalizeBucket(c.Bucket)
	if id := strings.TrimSpace(c.InitiativeID); id != "" {
		it.InitiativeID = &id
	}
	it.CreatedAt = c.CreatedAt
	return it
}

func deref(src Source) Source {
	switch s := src.(type) {
	case *PainPoint:
		return *s
	case *Risk:
		return *s
	case *FieldRequest:
		return *s
	case *Hazard:
		return *s
	case *DistressSignal:
		return *s
	case *ActionItem:
		return *s
	}
	return src
}

// Decode parses a raw JSON record of the given kind.
func Decode(kind domain.SourceKind, data []byte) (Source, error) {
	var (
		src Source
		err error
	)
	switch kind {
	case domain.KindPainPoint:
		var v PainPoint
		err = json.Unmarshal(data, &v)
		src = v
	case domain.KindRisk:
		var v Risk
		err = json.Unmarshal(data, &v)
		src = v
	case domain.KindFieldRequest:
		var v FieldRequest
		err = json.Unmarshal(data, &v)
		src = v
	case domain.KindHazard:
		var v Hazard
		err = json.Unmarshal(data, &v)
		src = v
	case domain.KindDistressSignal:
		var v DistressSignal
		err = json.Unmarshal(data, &v)
		src = v
	case domain.KindActionItem:
		var v ActionItem
		err = json.Unmarshal(data, &v)
		src = v
	default:
		return nil, domain.Invalid("kind", "unknown source kind %q", kind)
	}
	if err != nil {
		return nil, domain.Invalid("record", "decode %s: %v", kind, err)
	}
	if SourceID(src) == "" {
		return nil, domain.Invalid("record", "%s record has no id", kind)
	}
	return src, nil
}

// SourceID returns the identifier field of a source record.
func SourceID(src Source) string {
	switch s := deref(src).(type) {
	case PainPoint:
		return s.PainPointID
	case Risk:
		return s.RiskID
	case FieldRequest:
		return s.ID
	case Hazard:
		return s.ID
	case DistressSignal:
		return s.SignalID
	case ActionItem:
		return s.ActionID
	}
	return ""
}

// InitiativeRecord is the legacy grouping record imported as an initiative.
type InitiativeRecord struct {
	BucketID    string `json:"bucket_id"`
	AccountID   string `json:"account_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	TargetDate  string `json:"target_date,omitempty"`
	Status      string `json:"status,omitempty"`
}

// InitiativeFromRecord converts a legacy grouping record. Membership counts
// are never taken from the record.
func InitiativeFromRecord(rec InitiativeRecord) domain.Initiative {
	color := strings.ToLower(strings.TrimSpace(rec.Color))
	if !domain.ValidColor(color) {
		color = domain.DefaultColor
	}
	status, ok := domain.ParseInitiativeStatus(rec.Status)
	if !ok {
		status = domain.InitiativeActive
	}
	return domain.Initiative{
		ID:          rec.BucketID,
		AccountID:   rec.AccountID,
		Name:        rec.Name,
		Description: rec.Description,
		Color:       color,
		DueDate:     firstDate(rec.TargetDate),
		Status:      status,
	}
}

func title(candidates ...string) string {
	for _, c := range candidates {
		if t := strings.TrimSpace(c); t != "" {
			return t
		}
	}
	return untitled
}

func severityPriority(severity string) domain.Priority {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "critical":
		return domain.P1
	case "significant", "high":
		return domain.P2
	default:
		return domain.P3
	}
}

func fieldPriority(raw string) domain.Priority {
	if strings.TrimSpace(raw) == "" {
		return domain.P2
	}
	if p, ok := domain.ParsePriority(raw); ok {
		return p
	}
	return domain.P3
}

var (
	painPointStatus = map[string]domain.Status{
		"addressed": domain.StatusCompleted,
	}
	riskStatus = map[string]domain.Status{
		"mitigated": domain.StatusCompleted,
		"closed":    domain.StatusClosed,
	}
	canonicalStatus = map[string]domain.Status{
		"open":        domain.StatusOpen,
		"in_progress": domain.StatusInProgress,
		"completed":   domain.StatusCompleted,
		"closed":      domain.StatusClosed,
	}
)

// lookupStatus maps a source status through a fixed table; anything not
// listed is open.
func lookupStatus(table map[string]domain.Status, raw string) domain.Status {
	if st, ok := table[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return st
	}
	return domain.StatusOpen
}

// firstDate returns the first candidate that parses as a date.
func firstDate(candidates ...string) *time.Time {
	for _, c := range candidates {
		if t, ok := ParseDate(c); ok {
			return &t
		}
	}
	return nil
}

// ParseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates (UTC midnight).
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}
