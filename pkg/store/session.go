package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Per-statement bind variable budget; SQLite's historic default limit is 999.
const maxBindArgs = 800

type pendingBatch struct {
	table string
	cols  []string
	rows  [][]any
}

// Session is one unit of work on a dedicated connection. BulkInsert buffers
// rows; Flush writes them inside the open transaction (making them visible
// to in-transaction reads without finalizing); Commit finalizes. Anything
// short of Commit rolls back in its entirety.
type Session struct {
	db      *DB
	conn    *sql.Conn
	tx      *sql.Tx
	pending []pendingBatch
}

func (d *DB) NewSession(ctx context.Context) (*Session, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &Session{db: d, conn: conn}, nil
}

func (s *Session) Begin(ctx context.Context) error {
	if s.tx != nil {
		return errors.New("transaction already open")
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

// SetForeignKeyEnforcement toggles statement-time checks on this session's
// connection. Must be called outside a transaction; the toggle is a no-op on
// dialects with deferred constraints.
func (s *Session) SetForeignKeyEnforcement(ctx context.Context, on bool) error {
	if s.tx != nil {
		return errors.New("cannot toggle foreign keys inside a transaction")
	}
	return s.db.dialect.SetForeignKeyEnforcement(ctx, s.conn, on)
}

// BulkInsert buffers rows for table. All rows share the column list; nil
// values become NULL.
func (s *Session) BulkInsert(table string, cols []string, rows [][]any) {
	if len(rows) == 0 {
		return
	}
	s.pending = append(s.pending, pendingBatch{table: table, cols: cols, rows: rows})
}

// Flush executes all buffered inserts inside the open transaction.
func (s *Session) Flush(ctx context.Context) error {
	if s.tx == nil {
		return errors.New("flush requires an open transaction")
	}
	for _, batch := range s.pending {
		if err := s.execBatch(ctx, batch); err != nil {
			return err
		}
	}
	s.pending = nil
	return nil
}

func (s *Session) execBatch(ctx context.Context, batch pendingBatch) error {
	chunk := maxBindArgs / len(batch.cols)
	if chunk < 1 {
		chunk = 1
	}
	for start := 0; start < len(batch.rows); start += chunk {
		end := min(start+chunk, len(batch.rows))
		rows := batch.rows[start:end]
		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			batch.table,
			strings.Join(batch.cols, ", "),
			placeholderRows(s.db.dialect, len(batch.cols), len(rows)))
		args := make([]any, 0, len(rows)*len(batch.cols))
		for _, row := range rows {
			args = append(args, row...)
		}
		if _, err := s.tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", batch.table, err)
		}
	}
	return nil
}

// Commit flushes anything still buffered and finalizes the transaction.
func (s *Session) Commit(ctx context.Context) error {
	if s.tx == nil {
		return errors.New("commit requires an open transaction")
	}
	if len(s.pending) > 0 {
		if err := s.Flush(ctx); err != nil {
			return err
		}
	}
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.tx = nil
	return nil
}

// Rollback discards the open transaction and any buffered rows.
func (s *Session) Rollback() error {
	s.pending = nil
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to rollback: %w", err)
	}
	return nil
}

// Close rolls back any open transaction and releases the connection.
func (s *Session) Close() error {
	rbErr := s.Rollback()
	closeErr := s.conn.Close()
	if rbErr != nil {
		return rbErr
	}
	return closeErr
}

// ExecContext runs a statement inside the open transaction, or directly on
// the session connection when none is open.
func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.tx != nil {
		return s.tx.ExecContext(ctx, query, args...)
	}
	return s.conn.ExecContext(ctx, query, args...)
}

func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if s.tx != nil {
		return s.tx.QueryContext(ctx, query, args...)
	}
	return s.conn.QueryContext(ctx, query, args...)
}

func (s *Session) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if s.tx != nil {
		return s.tx.QueryRowContext(ctx, query, args...)
	}
	return s.conn.QueryRowContext(ctx, query, args...)
}
