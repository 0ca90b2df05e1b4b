// Package schema declares the warehouse tables the pipeline creates, loads and
// transforms. Everything here is pure data: SQL rendering lives in
// internal/warehouse so that one table definition serves every dialect.
package schema

import "strings"

// Type is the semantic column type. Dialects map it to a concrete SQL type.
type Type int

const (
	String Type = iota
	Int32
	Float64
	Timestamp
	SmallInt
)

func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Int32:
		return "int32"
	case Float64:
		return "float64"
	case Timestamp:
		return "timestamp"
	case SmallInt:
		return "smallint"
	default:
		return "unknown"
	}
}

// Role says where a table sits in the star schema.
type Role string

const (
	RoleStaging   Role = "staging"
	RoleDimension Role = "dimension"
	RoleFact      Role = "fact"
)

// DistStyle is the Redshift distribution style hint.
type DistStyle string

const (
	DistAuto DistStyle = "auto"
	DistAll  DistStyle = "all"
	DistEven DistStyle = "even"
	DistKey  DistStyle = "key"
)

// Layout carries the physical layout hints. Only dialects with a
// distributed storage engine render it; the others ignore it.
type Layout struct {
	DistStyle DistStyle
	DistKey   string
	SortKey   []string
}

// Column is one column of a table.
//
// Columns are nullable unless NotNull is set. Identity columns are assigned
// by the warehouse and never appear in INSERT column lists.
type Column struct {
	Name     string
	Type     Type
	NotNull  bool
	Identity bool
}

// Table is a warehouse table definition.
type Table struct {
	Name       string
	Role       Role
	Columns    []Column
	PrimaryKey []string
	Layout     Layout
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		out = append(out, c.Name)
	}
	return out
}

// InsertColumns returns the columns a loader or INSERT ... SELECT must supply,
// i.e. every column except identity columns.
func (t Table) InsertColumns() []Column {
	out := make([]Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.Identity {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Column looks a column up by name, case-insensitively.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}
