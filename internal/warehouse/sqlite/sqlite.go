// Package sqlite is the local warehouse backend on modernc.org/sqlite.
//
// Tables are created STRICT. SQLite's CAST never fails, so integer casts are
// left to the STRICT column check instead: numeric text converts losslessly,
// anything else is rejected with SQLITE_CONSTRAINT_DATATYPE, which classifies
// as malformed data just like a failed cast on the warehouse.
//
// Event timestamps go through the epoch_ms_to_ts scalar function registered
// here, which rejects text that is not whole epoch milliseconds rather than
// letting CAST turn it into 1970-01-01.
package sqlite

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"dwh/internal/schema"
	"dwh/internal/warehouse"
	"dwh/internal/warehouse/sqldb"
)

const epochFunc = "epoch_ms_to_ts"

// errBadEpoch marks values epoch_ms_to_ts refuses; Classify matches its text
// because the driver only hands back the message.
const errBadEpoch = "invalid epoch milliseconds"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(epochFunc, 1, epochMillisToTimestamp)
	warehouse.Register("sqlite", warehouse.Backend{Dialect: Dialect{}, Open: Open})
}

// epochMillisToTimestamp renders epoch milliseconds as "YYYY-MM-DD HH:MM:SS"
// UTC. NULL and blank text yield NULL.
func epochMillisToTimestamp(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	var ms int64
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case int64:
		ms = v
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%s: %s %v", epochFunc, errBadEpoch, v)
		}
		ms = int64(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
		n, err := parseEpochText(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %s %q", epochFunc, errBadEpoch, v)
		}
		ms = n
	default:
		return nil, fmt.Errorf("%s: %s of type %T", epochFunc, errBadEpoch, v)
	}
	return time.UnixMilli(ms).UTC().Truncate(time.Second).Format(time.DateTime), nil
}

// parseEpochText accepts integers and integral decimals such as "1.5e12".
func parseEpochText(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not integral: %s", s)
	}
	return int64(f), nil
}

// Open opens the database file named by p.DSN, or p.Database when DSN is
// empty. An empty name opens a private in-memory database.
func Open(ctx context.Context, p warehouse.ConnParams) (warehouse.Session, error) {
	dsn := p.DSN
	if dsn == "" {
		dsn = p.Database
	}
	if dsn == "" {
		dsn = ":memory:"
	}
	s, err := sqldb.Open(ctx, Dialect{}, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dsn, err)
	}
	return s, nil
}

type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) Quote(ident string) string { return warehouse.QuoteDouble(ident) }

func (Dialect) ColumnType(t schema.Type) string {
	switch t {
	case schema.Int32, schema.SmallInt:
		return "integer"
	case schema.Float64:
		return "real"
	default:
		// timestamps are stored as "YYYY-MM-DD HH:MM:SS" text
		return "text"
	}
}

func (Dialect) IdentityColumn() string { return "integer primary key autoincrement" }

func (Dialect) InformationalKeys() bool { return false }

func (Dialect) LayoutClause(schema.Layout) string { return "strict" }

func (d Dialect) DropTable(table string) string {
	return "drop table if exists " + d.Quote(table)
}

func (d Dialect) TruncateTable(table string) string {
	return "delete from " + d.Quote(table)
}

func (Dialect) IfNull(expr, alt string) string {
	return fmt.Sprintf("ifnull(%s, %s)", expr, alt)
}

func (Dialect) EpochMillisToTimestamp(expr string) string {
	return fmt.Sprintf("%s(%s)", epochFunc, expr)
}

var strftimeFormats = map[warehouse.DatePart]string{
	warehouse.PartHour:    "%H",
	warehouse.PartDay:     "%d",
	warehouse.PartWeek:    "%V",
	warehouse.PartMonth:   "%m",
	warehouse.PartYear:    "%Y",
	warehouse.PartWeekday: "%w",
}

func (Dialect) DatePart(part warehouse.DatePart, expr string) string {
	return fmt.Sprintf("cast(strftime('%s', %s) as integer)", strftimeFormats[part], expr)
}

// CastInt hands the trimmed text to the STRICT integer column; see the
// package comment.
func (Dialect) CastInt(expr string) string {
	return fmt.Sprintf("trim(%s)", expr)
}

func (Dialect) Placeholder(int) string { return "?" }

// MaxBindParams is SQLITE_MAX_VARIABLE_NUMBER for builds since 3.32.
func (Dialect) MaxBindParams() int { return 32766 }

func (Dialect) ObjectStoreCopy() bool { return false }

func (Dialect) Classify(err error) warehouse.ErrorKind {
	if kind, ok := warehouse.ClassifyCommon(err); ok {
		return kind
	}

	msg := strings.ToLower(err.Error())
	// STRICT type mismatches surface as a constraint code.
	if strings.Contains(msg, "cannot store") || strings.Contains(msg, errBadEpoch) {
		return warehouse.KindMalformedData
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_DATATYPE {
			return warehouse.KindMalformedData
		}
		switch code & 0xff {
		case sqlite3.SQLITE_CONSTRAINT:
			return warehouse.KindConstraint
		case sqlite3.SQLITE_MISMATCH:
			return warehouse.KindMalformedData
		case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_IOERR:
			return warehouse.KindConnectivity
		case sqlite3.SQLITE_AUTH, sqlite3.SQLITE_PERM, sqlite3.SQLITE_READONLY:
			return warehouse.KindAccess
		}
	}

	if strings.Contains(msg, "constraint failed") {
		return warehouse.KindConstraint
	}
	return warehouse.KindUnknown
}

var _ warehouse.Dialect = Dialect{}
