// Package mssql is the SQL Server warehouse backend on go-mssqldb.
package mssql

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	mssqldb "github.com/microsoft/go-mssqldb"

	"dwh/internal/schema"
	"dwh/internal/warehouse"
	"dwh/internal/warehouse/sqldb"
)

const defaultPort = 1433

func init() {
	warehouse.Register("mssql", warehouse.Backend{Dialect: Dialect{}, Open: Open})
}

// Open connects with SQL authentication.
func Open(ctx context.Context, p warehouse.ConnParams) (warehouse.Session, error) {
	dsn := buildDSN(p)
	s, err := sqldb.Open(ctx, Dialect{}, "sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("mssql: connect %s/%s: %w", p.Host, p.Database, err)
	}
	return s, nil
}

// buildDSN renders a sqlserver:// URL. An explicit DSN is returned unchanged.
func buildDSN(p warehouse.ConnParams) string {
	if p.DSN != "" {
		return p.DSN
	}
	q := url.Values{}
	q.Add("database", p.Database)
	switch strings.ToLower(p.SSLMode) {
	case "", "prefer", "allow":
	case "disable":
		q.Add("encrypt", "disable")
	default:
		q.Add("encrypt", "true")
	}
	if p.ConnectTimeout > 0 {
		q.Add("connection timeout", strconv.Itoa(int(p.ConnectTimeout/time.Second)))
	}

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(p.User, p.Password),
		Host:     p.HostPort(defaultPort),
		RawQuery: q.Encode(),
	}
	return u.String()
}

type Dialect struct{}

func (Dialect) Name() string { return "mssql" }

// Quote returns a bracket-quoted identifier, escaping ']' as ']]'.
func (Dialect) Quote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

func (Dialect) ColumnType(t schema.Type) string {
	switch t {
	case schema.Int32:
		return "int"
	case schema.Float64:
		return "float"
	case schema.Timestamp:
		return "datetime2(0)"
	case schema.SmallInt:
		return "smallint"
	default:
		return "nvarchar(max)"
	}
}

func (Dialect) IdentityColumn() string { return "int identity(0,1) not null primary key" }

func (Dialect) InformationalKeys() bool { return false }

func (Dialect) LayoutClause(schema.Layout) string { return "" }

func (d Dialect) DropTable(table string) string {
	return "drop table if exists " + d.Quote(table)
}

func (d Dialect) TruncateTable(table string) string {
	return "truncate table " + d.Quote(table)
}

func (Dialect) IfNull(expr, alt string) string {
	return fmt.Sprintf("isnull(%s, %s)", expr, alt)
}

func (Dialect) EpochMillisToTimestamp(expr string) string {
	return fmt.Sprintf("dateadd(second, cast(cast(%s as bigint) / 1000 as int), cast('1970-01-01' as datetime2(0)))", expr)
}

func (Dialect) DatePart(part warehouse.DatePart, expr string) string {
	switch part {
	case warehouse.PartWeek:
		return fmt.Sprintf("datepart(iso_week, %s)", expr)
	case warehouse.PartWeekday:
		// Sunday=0 regardless of the session's DATEFIRST.
		return fmt.Sprintf("(datepart(weekday, %s) + @@datefirst - 1) %% 7", expr)
	default:
		return fmt.Sprintf("datepart(%s, %s)", part, expr)
	}
}

func (Dialect) CastInt(expr string) string {
	return fmt.Sprintf("cast(%s as int)", expr)
}

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

// MaxBindParams stays under SQL Server's 2100 parameter cap.
func (Dialect) MaxBindParams() int { return 2000 }

func (Dialect) ObjectStoreCopy() bool { return false }

func (Dialect) Classify(err error) warehouse.ErrorKind {
	if kind, ok := warehouse.ClassifyCommon(err); ok {
		return kind
	}

	var me mssqldb.Error
	if errors.As(err, &me) {
		return classifyNumber(me.Number)
	}
	var mp *mssqldb.Error
	if errors.As(err, &mp) && mp != nil {
		return classifyNumber(mp.Number)
	}
	return warehouse.KindUnknown
}

func classifyNumber(n int32) warehouse.ErrorKind {
	switch n {
	case 2627, 2601, 515, 547:
		return warehouse.KindConstraint
	case 245, 241, 8114, 8115, 242:
		return warehouse.KindMalformedData
	case 229, 230, 262, 4834:
		return warehouse.KindAccess
	case 18456, 4060, 40613:
		return warehouse.KindConnectivity
	}
	return warehouse.KindUnknown
}

var _ warehouse.Dialect = Dialect{}
