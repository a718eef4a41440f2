package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"scoutline/internal/domain"
)

// Event types written by the engine.
const (
	ItemCreated        = "item.created"
	ItemUpdated        = "item.updated"
	ItemMoved          = "item.moved"
	ItemDeleted        = "item.deleted"
	ItemIngested       = "item.ingested"
	InitiativeCreated  = "initiative.created"
	InitiativeUpdated  = "initiative.updated"
	InitiativeClosed   = "initiative.closed"
	InitiativeReopened = "initiative.reopened"
	InitiativeArchived = "initiative.archived"
	InitiativeDeleted  = "initiative.deleted"
	InitiativeImported = "initiative.imported"
)

const (
	entityItem       = "item"
	entityInitiative = "initiative"
)

// Writer appends rows to the events journal and reads them back.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Entry is one journal row before it is written.
type Entry struct {
	Type       string
	AccountID  string
	EntityKind string
	EntityID   string
	Payload    EventPayload
	// TS is the event time; zero means the writer's clock.
	TS time.Time
}

// ItemEntry builds an entry about an item, keyed by "kind/id".
func ItemEntry(evtType, accountID, ref string, payload EventPayload) Entry {
	return Entry{Type: evtType, AccountID: accountID, EntityKind: entityItem, EntityID: ref, Payload: payload}
}

// InitiativeEntry builds an entry about an initiative.
func InitiativeEntry(evtType, accountID, id string, payload EventPayload) Entry {
	return Entry{Type: evtType, AccountID: accountID, EntityKind: entityInitiative, EntityID: id, Payload: payload}
}

func (w Writer) Append(ctx context.Context, e Entry) error {
	if w.DB == nil {
		return fmt.Errorf("events writer has no database")
	}
	at := e.TS
	if at.IsZero() {
		now := w.Now
		if now == nil {
			now = time.Now
		}
		at = now()
	}
	ts := at.UTC().Format(time.RFC3339)
	payload := e.Payload
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = w.DB.ExecContext(ctx, `INSERT INTO events(ts,type,account_id,entity_kind,entity_id,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, e.Type, nullable(e.AccountID), e.EntityKind, nullable(e.EntityID), string(data))
	return err
}

// List returns journal rows newest first.
func (w Writer) List(ctx context.Context, f domain.EventFilter) ([]domain.Event, error) {
	if w.DB == nil {
		return nil, fmt.Errorf("events writer has no database")
	}
	var (
		clauses []string
		args    []any
	)
	if f.AccountID != "" {
		clauses = append(clauses, "account_id=?")
		args = append(args, f.AccountID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.BeforeID > 0 {
		clauses = append(clauses, "id < ?")
		args = append(args, f.BeforeID)
	}
	query := `SELECT id,ts,type,account_id,entity_kind,entity_id,payload_json FROM events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := w.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var (
			e                 domain.Event
			account, entityID sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &account, &e.EntityKind, &entityID, &e.Payload); err != nil {
			return nil, err
		}
		e.AccountID = account.String
		e.EntityID = entityID.String
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
