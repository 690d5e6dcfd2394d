package pgx

import (
	"context"
	"fmt"
	"time"

	"github.com/osintbuddy/backend/pkg/apperror"
	"github.com/osintbuddy/backend/pkg/logger"
	"github.com/osintbuddy/backend/pkg/query"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// DefaultTimeout bounds a whole graph transaction.
const DefaultTimeout = 30 * time.Second

// GraphDBStorage implements store.GraphStorage on Postgres with Apache AGE.
type GraphDBStorage struct {
	conn    pgxIConn
	timeout time.Duration
}

type GraphDBStorageOption func(*GraphDBStorage)

// WithTimeout overrides DefaultTimeout. Zero disables the timeout.
func WithTimeout(d time.Duration) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.timeout = d
	}
}

// NewGraphDBStorageWithConnection creates a GraphDBStorage on an existing
// pool or connection. Connections must have AGE loaded, see AfterConnect.
func NewGraphDBStorageWithConnection(conn pgxIConn, opts ...GraphDBStorageOption) *GraphDBStorage {
	s := &GraphDBStorage{
		conn:    conn,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// AfterConnect prepares a pooled connection for cypher() calls.
func AfterConnect(ctx context.Context, conn *pgxv5.Conn) error {
	if _, err := conn.Exec(ctx, "LOAD 'age'"); err != nil {
		return fmt.Errorf("load age: %w", err)
	}
	if _, err := conn.Exec(ctx, `SET search_path = ag_catalog, "$user", public`); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}
	return nil
}

// GraphTx runs statements inside one transaction.
type GraphTx struct {
	tx pgxv5.Tx
}

// Query runs a statement and returns the raw agtype text of every column
// of every row.
func (t *GraphTx) Query(ctx context.Context, stmt query.Statement) ([][]string, error) {
	sql, err := stmt.SQL()
	if err != nil {
		return nil, apperror.ErrBadRequest.WithInternal(err)
	}
	rows, err := t.tx.Query(ctx, sql)
	if err != nil {
		return nil, queryError(stmt, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		cols := make([]string, len(stmt.Columns))
		dest := make([]any, len(cols))
		for i := range cols {
			dest[i] = &cols[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, queryError(stmt, err)
		}
		out = append(out, cols)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(stmt, err)
	}
	return out, nil
}

// Exec runs a statement whose rows are not needed.
func (t *GraphTx) Exec(ctx context.Context, stmt query.Statement) error {
	sql, err := stmt.SQL()
	if err != nil {
		return apperror.ErrBadRequest.WithInternal(err)
	}
	if _, err := t.tx.Exec(ctx, sql); err != nil {
		return queryError(stmt, err)
	}
	return nil
}

func queryError(stmt query.Statement, err error) error {
	logger.Error("[Graph] Statement failed", "op", stmt.Op.String(), "graph", stmt.Graph, "err", err)
	return apperror.NewQuery(fmt.Errorf("%s: %w", stmt.Op, err))
}

// WithGraphTransaction runs fn inside a transaction. It commits when fn
// returns nil and rolls back on error or panic; a panic is re-raised after
// the rollback.
func (s *GraphDBStorage) WithGraphTransaction(ctx context.Context, fn func(ctx context.Context, tx *GraphTx) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return apperror.NewQuery(fmt.Errorf("begin: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err := fn(ctx, &GraphTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			logger.Warn("[Graph] Rollback failed", "err", rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperror.NewQuery(fmt.Errorf("commit: %w", err))
	}
	return nil
}
