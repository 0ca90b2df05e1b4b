package warehouse

import (
	"strings"

	"dwh/internal/schema"
)

// DatePart names a calendar field extracted from a timestamp.
type DatePart string

const (
	PartHour    DatePart = "hour"
	PartDay     DatePart = "day"
	PartWeek    DatePart = "week"
	PartMonth   DatePart = "month"
	PartYear    DatePart = "year"
	PartWeekday DatePart = "weekday"
)

// Dialect renders the SQL fragments that differ between warehouse engines.
//
// The transformation queries are written once against this interface; each
// backend package supplies an implementation and registers it with Register.
type Dialect interface {
	// Name is the registry kind, e.g. "redshift".
	Name() string

	// Quote returns a quoted identifier.
	Quote(ident string) string

	// ColumnType maps a semantic type onto the engine's column type.
	ColumnType(t schema.Type) string

	// IdentityColumn renders the type clause of an auto-incrementing surrogate
	// key column (everything after the column name).
	IdentityColumn() string

	// InformationalKeys reports whether PRIMARY KEY constraints are
	// informational only. Engines that enforce them get only the identity
	// key, so that append-mode reruns behave like the warehouse.
	InformationalKeys() bool

	// LayoutClause renders the table options that follow the column list:
	// distribution/sort hints on Redshift, STRICT on SQLite.
	LayoutClause(l schema.Layout) string

	DropTable(table string) string
	TruncateTable(table string) string

	// IfNull renders "expr, or alt when expr is NULL".
	IfNull(expr, alt string) string

	// EpochMillisToTimestamp converts a text column holding epoch
	// milliseconds into a timestamp, truncated to whole seconds.
	EpochMillisToTimestamp(expr string) string

	// DatePart extracts a calendar field as an integer. Weekday is 0 for
	// Sunday through 6 for Saturday; week is the ISO week number.
	DatePart(part DatePart, expr string) string

	// CastInt casts a text expression to a 32-bit integer.
	CastInt(expr string) string

	// Placeholder returns the bind parameter marker for the n-th (1-based)
	// argument.
	Placeholder(n int) string

	// MaxBindParams bounds the number of bind parameters per statement for
	// batched inserts.
	MaxBindParams() int

	// ObjectStoreCopy reports whether the engine can bulk-load JSON directly
	// from object storage with a COPY statement.
	ObjectStoreCopy() bool

	// Classify maps a driver error onto the pipeline error taxonomy.
	Classify(err error) ErrorKind
}

// QuoteDouble is the ANSI double-quote identifier quoting shared by the
// Postgres family and SQLite.
func QuoteDouble(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// QuoteList quotes and comma-joins identifiers.
func QuoteList(d Dialect, idents []string) string {
	parts := make([]string, 0, len(idents))
	for _, id := range idents {
		parts = append(parts, d.Quote(id))
	}
	return strings.Join(parts, ", ")
}

// Literal renders s as a single-quoted SQL string literal.
//
// Values coming from legacy configuration files are often already wrapped in
// single quotes ('s3://bucket/prefix'); one level of surrounding quotes is
// removed before escaping so the rendered literal is never double-quoted.
func Literal(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		s = s[1 : len(s)-1]
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Unquote strips one level of surrounding single quotes, as Literal does.
func Unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}
