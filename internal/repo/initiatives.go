package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"scoutline/internal/domain"
)

// items_count is always derived from membership, never stored.
const initiativeSelect = `SELECT i.id,i.account_id,i.name,i.description,i.color,i.due_date,i.status,i.created_at,i.updated_at,
  (SELECT COUNT(*) FROM items it WHERE it.initiative_id = i.id) AS items_count
FROM initiatives i`

func scanInitiative(row rowScanner) (domain.Initiative, error) {
	var (
		in        domain.Initiative
		desc, due sql.NullString
		status    string
	)
	if err := row.Scan(&in.ID, &in.AccountID, &in.Name, &desc, &in.Color, &due, &status, &in.CreatedAt, &in.UpdatedAt, &in.ItemsCount); err != nil {
		return in, err
	}
	in.Description = desc.String
	in.Status = domain.InitiativeStatus(status)
	d, err := parseTime(due)
	if err != nil {
		return in, fmt.Errorf("initiative %s due_date: %w", in.ID, err)
	}
	in.DueDate = d
	return in, nil
}

func (r Repo) CreateInitiative(ctx context.Context, in domain.Initiative) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO initiatives(id,account_id,name,description,color,due_date,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		in.ID, in.AccountID, in.Name, nullable(in.Description), in.Color, formatTime(in.DueDate), string(in.Status), in.CreatedAt, in.UpdatedAt)
	return err
}

func (r Repo) GetInitiative(ctx context.Context, id string) (domain.Initiative, error) {
	in, err := scanInitiative(r.DB.QueryRowContext(ctx, initiativeSelect+` WHERE i.id=?`, id))
	if err == sql.ErrNoRows {
		return in, ErrNotFound
	}
	return in, err
}

func (r Repo) UpdateInitiative(ctx context.Context, id string, p domain.InitiativePatch) error {
	var (
		fields []string
		args   []any
	)
	if p.Name != nil {
		fields = append(fields, "name=?")
		args = append(args, *p.Name)
	}
	if p.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*p.Description))
	}
	if p.Color != nil {
		fields = append(fields, "color=?")
		args = append(args, *p.Color)
	}
	switch {
	case p.ClearDueDate:
		fields = append(fields, "due_date=NULL")
	case p.DueDate != nil:
		fields = append(fields, "due_date=?")
		args = append(args, formatTime(p.DueDate))
	}
	if p.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, string(*p.Status))
	}
	if len(fields) == 0 {
		return nil
	}
	if p.UpdatedAt != "" {
		fields = append(fields, "updated_at=?")
		args = append(args, p.UpdatedAt)
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE initiatives SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteInitiative removes the row only; member items keep their reference.
func (r Repo) DeleteInitiative(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM initiatives WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListInitiatives(ctx context.Context, f domain.InitiativeFilter) ([]domain.Initiative, error) {
	var (
		clauses []string
		args    []any
	)
	if f.AccountID != "" {
		clauses = append(clauses, "i.account_id=?")
		args = append(args, f.AccountID)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		clauses = append(clauses, "i.status IN ("+strings.Join(marks, ",")+")")
	}
	query := initiativeSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY i.created_at, i.id"
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Initiative{}
	for rows.Next() {
		in, err := scanInitiative(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, in)
	}
	return res, rows.Err()
}
