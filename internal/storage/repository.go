// Package storage implements store.Store on a relational database. SQLite
// (modernc.org/sqlite) and PostgreSQL (pgx) share one set of queries
// written with ? placeholders.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository is a store.Store over *sql.DB. A Repository handed to an
// Atomic callback runs every query on the enclosing transaction.
type Repository struct {
	db      *sql.DB
	q       queryer
	dialect Dialect
	inTx    bool
	now     func() time.Time
}

var _ store.Store = (*Repository)(nil)

// Open connects to the database, applies migrations and returns the
// repository. For SQLite dsn is a file path or ":memory:".
func Open(ctx context.Context, dialect Dialect, dsn string) (*Repository, error) {
	db, err := openDB(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(db, dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.InfoContext(ctx, "Relational store ready", "dialect", dialect)
	return &Repository{db: db, q: db, dialect: dialect, now: time.Now}, nil
}

// NewSQLiteRepository opens a SQLite database at dbPath.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	return Open(context.Background(), SQLite, dbPath)
}

func (r *Repository) Dialect() Dialect { return r.dialect }

func (r *Repository) Close() error {
	if r.inTx || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return core.NewStorageError("ping", err)
	}
	return nil
}

// Atomic runs fn inside a database transaction. Nested calls join the
// outer transaction.
func (r *Repository) Atomic(ctx context.Context, fn func(store.Store) error) error {
	if r.inTx {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewStorageError("begin", err)
	}
	view := &Repository{db: r.db, q: tx, dialect: r.dialect, inTx: true, now: r.now}
	if err := fn(view); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return core.NewStorageError("commit", err)
	}
	return nil
}

func (r *Repository) stamp() time.Time {
	return r.now().UTC()
}

func (r *Repository) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	res, err := r.q.ExecContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	return res, nil
}

func (r *Repository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, r.dialect.rebind(query), args...)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.q.QueryContext(ctx, r.dialect.rebind(query), args...)
}

// insert runs an INSERT ... RETURNING id and returns the new id.
func (r *Repository) insert(ctx context.Context, op, query string, args ...any) (int64, error) {
	var id int64
	if err := r.queryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, wrap(op, err)
	}
	return id, nil
}

// deleteByID reports whether a row was removed.
func (r *Repository) deleteByID(ctx context.Context, op, table string, id int64) (bool, error) {
	res, err := r.exec(ctx, op, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap(op, err)
	}
	return n > 0, nil
}

// update applies the set columns to the row. It returns ErrNotFound when no
// row matches; an empty set only checks existence.
func (r *Repository) update(ctx context.Context, op, table string, id int64, set *setList) error {
	if set.empty() {
		var one int
		err := r.queryRow(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
		return wrap(op, err)
	}
	args := append(set.args, id)
	res, err := r.exec(ctx, op, "UPDATE "+table+" SET "+set.clause()+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// wrap maps driver errors onto the store error contract.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return store.ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, core.ErrConflict)
	}
	return core.NewStorageError(op, err)
}

// cents converts m for a *_cents column. Overflow is reported against field
// so it surfaces like any other rejected input.
func cents(field string, m core.Money) (int64, error) {
	c, err := m.Cents()
	if err != nil {
		v := core.NewValidationError()
		v.Add(field, err.Error())
		return 0, v
	}
	return c, nil
}

type setList struct {
	cols []string
	args []any
}

func (s *setList) add(col string, v any) {
	s.cols = append(s.cols, col+" = ?")
	s.args = append(s.args, v)
}

func (s *setList) empty() bool { return len(s.cols) == 0 }

func (s *setList) clause() string { return strings.Join(s.cols, ", ") }

type scanner interface {
	Scan(dest ...any) error
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

// dateArg is the stored form of a business date.
func dateArg(d core.Date) time.Time {
	return d.Time.UTC()
}

func scanDate(t time.Time) core.Date {
	return core.DateOf(t.UTC())
}
