// Package sqldb is the database/sql implementation of warehouse.Session shared
// by the sqlite and mssql backends.
package sqldb

import (
	"context"
	"database/sql"

	"dwh/internal/warehouse"
)

// Session wraps a *sql.DB capped at one open connection, which gives the
// single-connection contract the pipeline relies on.
type Session struct {
	db        *sql.DB
	dialect   warehouse.Dialect
	batchSize int
	closed    bool
}

// Open opens driverName with dsn, pins the pool to one connection and pings.
func Open(ctx context.Context, d warehouse.Dialect, driverName, dsn string) (*Session, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, warehouse.WithKind(warehouse.KindConnectivity, err)
	}
	return &Session{db: db, dialect: d}, nil
}

func (s *Session) Dialect() warehouse.Dialect { return s.dialect }

// Exec runs sql outside any explicit transaction; database/sql autocommits
// each statement.
func (s *Session) Exec(ctx context.Context, sql string) (int64, error) {
	res, err := s.db.ExecContext(ctx, sql)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1, nil
	}
	return n, nil
}

func (s *Session) CopyRows(ctx context.Context, table string, columns []string, src warehouse.RowSource) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	exec := func(ctx context.Context, query string, args ...any) (int64, error) {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}

	n, err := warehouse.InsertBatches(ctx, s.dialect, exec, table, columns, src, s.batchSize)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Session) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "select count(*) from "+s.dialect.Quote(table)).Scan(&n)
	return n, err
}

func (s *Session) Close(ctx context.Context) error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Session) SetBatchSize(n int) { s.batchSize = n }

// DB exposes the handle for callers that need ad-hoc queries, such as tests
// inspecting loaded rows.
func (s *Session) DB() *sql.DB { return s.db }

var (
	_ warehouse.Session    = (*Session)(nil)
	_ warehouse.BatchSizer = (*Session)(nil)
)
