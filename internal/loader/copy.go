// Package loader fills the two staging tables from object storage.
//
// On Redshift it issues one COPY statement per table and the warehouse reads
// the objects itself. Engines that cannot read object storage get the same
// rows through a client-side load: the loader lists and decodes the objects
// and bulk-inserts them over the session in a single transaction.
package loader

import (
	"fmt"

	"dwh/internal/schema"
	"dwh/internal/warehouse"
)

// FormatAuto asks the warehouse to map JSON keys onto columns by name.
const FormatAuto = "auto"

// Sources are the object-store locations and the identity the warehouse
// assumes to read them. Values may arrive wrapped in single quotes, as the
// legacy cfg file stores them.
type Sources struct {
	LogData     string
	LogJSONPath string
	SongData    string
	IAMRoleARN  string
	Region      string
}

// CopySpec describes one COPY statement.
type CopySpec struct {
	Table       string
	Location    string
	Credentials string
	// Format is a JSONPaths manifest location or FormatAuto.
	Format string
	Region string
}

// SQL renders the statement. Every value is emitted as an escaped string
// literal, never interpolated raw:
//
//	copy <table> from '<location>' credentials 'aws_iam_role=<arn>' json '<format>' region '<region>';
func (c CopySpec) SQL() string {
	return fmt.Sprintf("copy %s from %s credentials %s json %s region %s;",
		c.Table,
		warehouse.Literal(c.Location),
		warehouse.Literal("aws_iam_role="+warehouse.Unquote(c.Credentials)),
		warehouse.Literal(c.Format),
		warehouse.Literal(c.Region),
	)
}

// EventsCopy loads the event log using the JSONPaths manifest.
func EventsCopy(src Sources) CopySpec {
	return CopySpec{
		Table:       schema.StagingEvents,
		Location:    src.LogData,
		Credentials: src.IAMRoleARN,
		Format:      src.LogJSONPath,
		Region:      src.Region,
	}
}

// SongsCopy loads the song catalog with key-name mapping.
func SongsCopy(src Sources) CopySpec {
	return CopySpec{
		Table:       schema.StagingSongs,
		Location:    src.SongData,
		Credentials: src.IAMRoleARN,
		Format:      FormatAuto,
		Region:      src.Region,
	}
}

// CopyStatements returns both COPY statements, events first.
func CopyStatements(src Sources) []warehouse.Statement {
	ev, so := EventsCopy(src), SongsCopy(src)
	return []warehouse.Statement{
		{Name: "load_" + ev.Table, Table: ev.Table, SQL: ev.SQL()},
		{Name: "load_" + so.Table, Table: so.Table, SQL: so.SQL()},
	}
}
