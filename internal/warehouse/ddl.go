package warehouse

import (
	"strings"

	"dwh/internal/schema"
)

// Statement is one unit of work the driver executes and commits on its own.
type Statement struct {
	// Name identifies the statement in logs, metrics and errors,
	// e.g. "create_users" or "load_staging_events".
	Name  string
	Table string
	SQL   string
}

// CreateTableSQL renders the CREATE TABLE statement for t.
//
// Redshift gets table-level PRIMARY KEY clauses (informational there) and the
// layout hints. Engines that enforce keys only get the surrogate identity key:
// the dimension tables are append-only and a rerun without truncation must
// duplicate rows rather than fail.
func CreateTableSQL(d Dialect, t schema.Table) string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		defs = append(defs, buildColumnDef(d, c))
	}
	if d.InformationalKeys() && len(t.PrimaryKey) > 0 {
		defs = append(defs, "primary key("+QuoteList(d, t.PrimaryKey)+")")
	}

	var b strings.Builder
	b.WriteString("create table ")
	b.WriteString(d.Quote(t.Name))
	b.WriteString(" (\n    ")
	b.WriteString(strings.Join(defs, ",\n    "))
	b.WriteString("\n)")
	if layout := d.LayoutClause(t.Layout); layout != "" {
		b.WriteString("\n")
		b.WriteString(layout)
	}
	return b.String()
}

// buildColumnDef renders a single column definition. Columns are nullable
// unless declared NotNull.
func buildColumnDef(d Dialect, c schema.Column) string {
	if c.Identity {
		return d.Quote(c.Name) + " " + d.IdentityColumn()
	}
	def := d.Quote(c.Name) + " " + d.ColumnType(c.Type)
	if c.NotNull {
		def += " not null"
	}
	return def
}

// DropStatements returns drop-if-exists statements for all seven tables.
func DropStatements(d Dialect) []Statement {
	cat := schema.Catalog()
	out := make([]Statement, 0, len(cat))
	for _, t := range cat {
		out = append(out, Statement{Name: "drop_" + t.Name, Table: t.Name, SQL: d.DropTable(t.Name)})
	}
	return out
}

// CreateStatements returns create statements for all seven tables in catalog
// order. The tables must not exist; run DropStatements first.
func CreateStatements(d Dialect) []Statement {
	cat := schema.Catalog()
	out := make([]Statement, 0, len(cat))
	for _, t := range cat {
		out = append(out, Statement{Name: "create_" + t.Name, Table: t.Name, SQL: CreateTableSQL(d, t)})
	}
	return out
}

// TruncateStatements returns truncate statements for the five non-staging
// tables.
func TruncateStatements(d Dialect) []Statement {
	return truncateTables(d, schema.Targets(), "truncate_")
}

// ResetStagingStatements empties both staging tables ahead of a load.
func ResetStagingStatements(d Dialect) []Statement {
	return truncateTables(d, schema.Staging(), "reset_")
}

func truncateTables(d Dialect, tables []schema.Table, prefix string) []Statement {
	out := make([]Statement, 0, len(tables))
	for _, t := range tables {
		out = append(out, Statement{Name: prefix + t.Name, Table: t.Name, SQL: d.TruncateTable(t.Name)})
	}
	return out
}
