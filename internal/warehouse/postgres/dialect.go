// Package postgres implements the redshift and postgres warehouse backends on
// top of a single pgx connection.
package postgres

import (
	"fmt"
	"strings"

	"dwh/internal/schema"
	"dwh/internal/warehouse"
)

// Dialect renders SQL for Redshift and for plain Postgres. The two share
// almost everything; Redshift adds layout hints, informational keys and
// COPY from S3.
type Dialect struct {
	redshift bool
}

var (
	Redshift = Dialect{redshift: true}
	Postgres = Dialect{}
)

func (d Dialect) Name() string {
	if d.redshift {
		return "redshift"
	}
	return "postgres"
}

func (d Dialect) Quote(ident string) string { return warehouse.QuoteDouble(ident) }

func (d Dialect) ColumnType(t schema.Type) string {
	switch t {
	case schema.Int32:
		return "integer"
	case schema.Float64:
		if d.redshift {
			return "float"
		}
		return "double precision"
	case schema.Timestamp:
		return "timestamp"
	case schema.SmallInt:
		return "smallint"
	default:
		return "varchar"
	}
}

func (d Dialect) IdentityColumn() string {
	if d.redshift {
		return "integer identity(0,1) not null"
	}
	return "integer generated by default as identity primary key"
}

func (d Dialect) InformationalKeys() bool { return d.redshift }

func (d Dialect) LayoutClause(l schema.Layout) string {
	if !d.redshift {
		return ""
	}
	var parts []string
	switch l.DistStyle {
	case schema.DistKey:
		parts = append(parts, "distkey("+d.Quote(l.DistKey)+")")
	case schema.DistAll, schema.DistEven, schema.DistAuto:
		parts = append(parts, "diststyle "+string(l.DistStyle))
	}
	if len(l.SortKey) > 0 {
		parts = append(parts, "sortkey("+warehouse.QuoteList(d, l.SortKey)+")")
	}
	return strings.Join(parts, "\n")
}

func (d Dialect) DropTable(table string) string {
	return "drop table if exists " + d.Quote(table)
}

func (d Dialect) TruncateTable(table string) string {
	return "truncate table " + d.Quote(table)
}

func (d Dialect) IfNull(expr, alt string) string {
	if d.redshift {
		return fmt.Sprintf("nvl(%s, %s)", expr, alt)
	}
	return fmt.Sprintf("coalesce(%s, %s)", expr, alt)
}

func (d Dialect) EpochMillisToTimestamp(expr string) string {
	return fmt.Sprintf("timestamp 'epoch' + cast(%s as bigint) / 1000 * interval '1 second'", expr)
}

func (d Dialect) DatePart(part warehouse.DatePart, expr string) string {
	field := string(part)
	if part == warehouse.PartWeekday {
		field = "dow"
	}
	return fmt.Sprintf("extract(%s from %s)", field, expr)
}

func (d Dialect) CastInt(expr string) string {
	return fmt.Sprintf("cast(%s as integer)", expr)
}

func (d Dialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (d Dialect) MaxBindParams() int {
	if d.redshift {
		return 32767
	}
	return 65535
}

func (d Dialect) ObjectStoreCopy() bool { return d.redshift }

func (d Dialect) Classify(err error) warehouse.ErrorKind { return classify(err) }

var _ warehouse.Dialect = Dialect{}
