package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"dwh/internal/warehouse"
)

const (
	redshiftPort = 5439
	postgresPort = 5432
)

func init() {
	warehouse.Register("redshift", warehouse.Backend{Dialect: Redshift, Open: OpenRedshift})
	warehouse.Register("postgres", warehouse.Backend{Dialect: Postgres, Open: OpenPostgres})
}

// Session is a warehouse.Session over one *pgx.Conn.
//
// Exec relies on autocommit: every statement is its own transaction. CopyRows
// wraps its work in an explicit transaction.
type Session struct {
	conn      *pgx.Conn
	dialect   Dialect
	batchSize int
	closed    bool
}

// OpenRedshift connects to a Redshift cluster. Redshift only partially speaks
// the extended protocol, so the connection uses the simple protocol.
func OpenRedshift(ctx context.Context, p warehouse.ConnParams) (warehouse.Session, error) {
	return open(ctx, Redshift, p)
}

// OpenPostgres connects to a Postgres server.
func OpenPostgres(ctx context.Context, p warehouse.ConnParams) (warehouse.Session, error) {
	return open(ctx, Postgres, p)
}

func open(ctx context.Context, d Dialect, p warehouse.ConnParams) (*Session, error) {
	cfg, err := pgx.ParseConfig(buildDSN(d, p))
	if err != nil {
		return nil, fmt.Errorf("%s: parse connection config: %w", d.Name(), err)
	}
	if p.ConnectTimeout > 0 {
		cfg.ConnectTimeout = p.ConnectTimeout
	}
	if d.redshift {
		cfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, warehouse.WithKind(warehouse.KindConnectivity,
			fmt.Errorf("%s: connect %s/%s: %w", d.Name(), cfg.Host, cfg.Database, err))
	}
	return &Session{conn: conn, dialect: d}, nil
}

// buildDSN renders a postgres:// URL from discrete parameters. An explicit DSN
// is returned unchanged.
func buildDSN(d Dialect, p warehouse.ConnParams) string {
	if p.DSN != "" {
		return p.DSN
	}
	def := postgresPort
	if d.redshift {
		def = redshiftPort
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   p.HostPort(def),
		Path:   "/" + p.Database,
	}
	if p.User != "" {
		if p.Password != "" {
			u.User = url.UserPassword(p.User, p.Password)
		} else {
			u.User = url.User(p.User)
		}
	}
	q := url.Values{}
	if p.SSLMode != "" {
		q.Set("sslmode", p.SSLMode)
	}
	if p.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(p.ConnectTimeout/time.Second)))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Session) Dialect() warehouse.Dialect { return s.dialect }

func (s *Session) Exec(ctx context.Context, sql string) (int64, error) {
	tag, err := s.conn.Exec(ctx, sql)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CopyRows uses the COPY protocol on Postgres. Redshift does not accept
// COPY FROM STDIN, so there the rows go through batched INSERTs inside one
// transaction.
func (s *Session) CopyRows(ctx context.Context, table string, columns []string, src warehouse.RowSource) (int64, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var n int64
	if s.dialect.redshift {
		exec := func(ctx context.Context, query string, args ...any) (int64, error) {
			tag, err := tx.Exec(ctx, query, args...)
			if err != nil {
				return 0, err
			}
			return tag.RowsAffected(), nil
		}
		n, err = warehouse.InsertBatches(ctx, s.dialect, exec, table, columns, src, s.batchSize)
	} else {
		n, err = tx.CopyFrom(ctx, pgx.Identifier{table}, columns, src)
	}
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Session) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.conn.QueryRow(ctx, "select count(*) from "+s.dialect.Quote(table)).Scan(&n)
	return n, err
}

func (s *Session) Close(ctx context.Context) error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close(ctx)
}

// SetBatchSize sets the rows per INSERT used by CopyRows on Redshift.
func (s *Session) SetBatchSize(n int) { s.batchSize = n }

var _ warehouse.Session = (*Session)(nil)
