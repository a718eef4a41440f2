package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"scoutline/internal/domain"
)

// Repo is the SQLite record store for items, initiatives and the event journal.
type Repo struct {
	DB *sql.DB
}

// ErrNotFound aliases the domain sentinel so callers can match either.
var ErrNotFound = domain.ErrNotFound

func (r Repo) EnsureAccount(ctx context.Context, id, name, createdAt string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO accounts(id,name,created_at) VALUES (?,?,?) ON CONFLICT(id) DO NOTHING`,
		id, nullable(name), createdAt)
	return err
}

func (r Repo) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	var a domain.Account
	var name sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,created_at FROM accounts WHERE id=?`, id).Scan(&a.ID, &name, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	a.Name = name.String
	return a, err
}

// SingleAccount returns the only account, for workspaces that never set one.
func (r Repo) SingleAccount(ctx context.Context) (domain.Account, error) {
	accounts, err := r.ListAccounts(ctx)
	if err != nil {
		return domain.Account{}, err
	}
	if len(accounts) == 0 {
		return domain.Account{}, ErrNotFound
	}
	if len(accounts) > 1 {
		return domain.Account{}, fmt.Errorf("multiple accounts exist; specify --account")
	}
	return accounts[0], nil
}

func (r Repo) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,COALESCE(name,''),created_at FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

const itemColumns = `kind,id,account_id,title,description,priority,status,due_date,bucket,initiative_id,severity,signal_type,source_url,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.TrackableItem, error) {
	var (
		it                                    domain.TrackableItem
		kind, priority, status, bucket        string
		desc, due, initiative, sev, sig, link sql.NullString
	)
	if err := row.Scan(&kind, &it.ID, &it.AccountID, &it.Title, &desc, &priority, &status, &due, &bucket,
		&initiative, &sev, &sig, &link, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return it, err
	}
	it.Kind = domain.SourceKind(kind)
	it.Priority = domain.Priority(priority)
	it.Status = domain.Status(status)
	it.Bucket = domain.Bucket(bucket)
	it.Description = desc.String
	it.Severity = sev.String
	it.SignalType = sig.String
	it.SourceURL = link.String
	if initiative.Valid && initiative.String != "" {
		id := initiative.String
		it.InitiativeID = &id
	}
	d, err := parseTime(due)
	if err != nil {
		return it, fmt.Errorf("item %s/%s due_date: %w", kind, it.ID, err)
	}
	it.DueDate = d
	return it, nil
}

func (r Repo) CreateItem(ctx context.Context, it domain.TrackableItem) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO items(`+itemColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, itemArgs(it)...)
	return err
}

// UpsertItem inserts an item or replaces every mutable field of an existing one.
// created_at of an existing row is preserved.
func (r Repo) UpsertItem(ctx context.Context, it domain.TrackableItem) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO items(`+itemColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(kind,id) DO UPDATE SET
  account_id=excluded.account_id, title=excluded.title, description=excluded.description,
  priority=excluded.priority, status=excluded.status, due_date=excluded.due_date, bucket=excluded.bucket,
  initiative_id=excluded.initiative_id, severity=excluded.severity, signal_type=excluded.signal_type,
  source_url=excluded.source_url, updated_at=excluded.updated_at`, itemArgs(it)...)
	return err
}

func itemArgs(it domain.TrackableItem) []any {
	return []any{
		string(it.Kind), it.ID, it.AccountID, it.Title, nullable(it.Description), string(it.Priority), string(it.Status),
		formatTime(it.DueDate), string(it.Bucket), nullableStringPtr(it.InitiativeID), nullable(it.Severity),
		nullable(it.SignalType), nullable(it.SourceURL), it.CreatedAt, it.UpdatedAt,
	}
}

func (r Repo) GetItem(ctx context.Context, ref domain.ItemRef) (domain.TrackableItem, error) {
	it, err := scanItem(r.DB.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE kind=? AND id=?`, string(ref.Kind), ref.ID))
	if err == sql.ErrNoRows {
		return it, ErrNotFound
	}
	return it, err
}

// UpdateItem writes every set field of the patch in a single statement, so an
// allocation change lands as one unit.
func (r Repo) UpdateItem(ctx context.Context, ref domain.ItemRef, p domain.ItemPatch) error {
	var (
		fields []string
		args   []any
	)
	if p.Title != nil {
		fields = append(fields, "title=?")
		args = append(args, *p.Title)
	}
	if p.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*p.Description))
	}
	if p.Priority != nil {
		fields = append(fields, "priority=?")
		args = append(args, string(*p.Priority))
	}
	if p.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, string(*p.Status))
	}
	if p.Severity != nil {
		fields = append(fields, "severity=?")
		args = append(args, nullable(*p.Severity))
	}
	if a := p.Allocation; a != nil {
		fields = append(fields, "due_date=?", "bucket=?", "initiative_id=?")
		args = append(args, formatTime(a.DueDate), string(a.Bucket), nullableStringPtr(a.InitiativeID))
	}
	if len(fields) == 0 {
		return nil
	}
	if p.UpdatedAt != "" {
		fields = append(fields, "updated_at=?")
		args = append(args, p.UpdatedAt)
	}
	args = append(args, string(ref.Kind), ref.ID)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE items SET %s WHERE kind=? AND id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteItem(ctx context.Context, ref domain.ItemRef) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM items WHERE kind=? AND id=?`, string(ref.Kind), ref.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListItems(ctx context.Context, f domain.ItemFilter) ([]domain.TrackableItem, error) {
	var (
		clauses []string
		args    []any
	)
	if f.AccountID != "" {
		clauses = append(clauses, "account_id=?")
		args = append(args, f.AccountID)
	}
	if f.Kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, string(f.Kind))
	}
	if f.InitiativeID != "" {
		clauses = append(clauses, "initiative_id=?")
		args = append(args, f.InitiativeID)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		clauses = append(clauses, "status IN ("+strings.Join(marks, ",")+")")
	}
	query := `SELECT ` + itemColumns + ` FROM items`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, kind, id"
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.TrackableItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, it)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

// dueLayout keeps nanoseconds at a fixed width so stored due dates round-trip
// exactly and still sort as text.
const dueLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(dueLayout)
}

func parseTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
