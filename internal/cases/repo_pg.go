package cases

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
)

var (
	psql        = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	caseColumns = []string{"id", "title", "case_text", "judge_decision", "decided_on", "created_at", "updated_at"}
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, c Case) error {
	query, args, err := psql.Insert("cases").
		Columns(caseColumns...).
		Values(c.ID, c.Title, c.Text, c.JudgeDecision, c.DecidedOn, c.CreatedAt, c.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query, args...)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Case, error) {
	query, args, err := psql.Select(caseColumns...).From("cases").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return Case{}, err
	}
	c, err := scanCase(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Case{}, ErrNotFound
	}
	return c, err
}

func (r *PGRepo) GetMany(ctx context.Context, ids []string) (map[string]Case, error) {
	out := make(map[string]Case, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := psql.Select(caseColumns...).From("cases").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Case, error) {
	builder := psql.Select(caseColumns...).From("cases").OrderBy("created_at DESC", "id")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PGRepo) Delete(ctx context.Context, id string) error {
	query, args, err := psql.Delete("cases").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (Case, error) {
	var c Case
	err := row.Scan(&c.ID, &c.Title, &c.Text, &c.JudgeDecision, &c.DecidedOn, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

var _ Repo = (*PGRepo)(nil)
