package loader

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dwh/internal/objectstore"
	"dwh/internal/warehouse"
)

// Mode selects how staging tables are filled.
type Mode string

const (
	// ModeCopy issues COPY statements; the warehouse reads object storage.
	ModeCopy Mode = "copy"
	// ModeClient reads object storage in-process and bulk-inserts the rows.
	ModeClient Mode = "client"
)

// ParseMode accepts "", "copy" and "client". Empty means "pick by dialect".
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeCopy, ModeClient:
		return m, nil
	default:
		return "", fmt.Errorf("loader: unknown load mode %q (want copy or client)", s)
	}
}

// Loader appends source records to the staging tables. It never truncates;
// resetting staging is the driver's job.
type Loader struct {
	Session warehouse.Session
	Sources Sources
	// Mode defaults to copy when the dialect supports it, client otherwise.
	Mode Mode
	// Store is required in client mode.
	Store     objectstore.Store
	BatchSize int
	Log       *zap.Logger
}

func (l *Loader) log() *zap.Logger {
	if l.Log == nil {
		return zap.NewNop()
	}
	return l.Log
}

// EffectiveMode resolves the configured mode against the session dialect.
func (l *Loader) EffectiveMode() (Mode, error) {
	return resolveMode(l.Session.Dialect(), l.Mode)
}

func resolveMode(d warehouse.Dialect, m Mode) (Mode, error) {
	switch m {
	case "":
		if d.ObjectStoreCopy() {
			return ModeCopy, nil
		}
		return ModeClient, nil
	case ModeCopy:
		if !d.ObjectStoreCopy() {
			return "", fmt.Errorf("loader: %s cannot COPY from object storage; use load.mode=client", d.Name())
		}
		return ModeCopy, nil
	default:
		return m, nil
	}
}

// Statements returns the statements the loader runs, for logging.
func (l *Loader) Statements() []warehouse.Statement {
	stmts, err := Plan(l.Session.Dialect(), l.Mode, l.Sources)
	if err != nil {
		return CopyStatements(l.Sources)
	}
	return stmts
}

// Plan renders the load statements for dialect d without a connection. In
// client mode there is no SQL to show, so each entry carries a descriptive
// comment instead.
func Plan(d warehouse.Dialect, mode Mode, src Sources) ([]warehouse.Statement, error) {
	mode, err := resolveMode(d, mode)
	if err != nil {
		return nil, err
	}
	stmts := CopyStatements(src)
	if mode == ModeClient {
		for i, spec := range []CopySpec{EventsCopy(src), SongsCopy(src)} {
			stmts[i].SQL = fmt.Sprintf("-- client load of %s from %s (format %s)",
				spec.Table, warehouse.Unquote(spec.Location), warehouse.Unquote(spec.Format))
		}
	}
	return stmts, nil
}

// LoadEvents fills staging_events from LogData using the JSONPaths manifest.
func (l *Loader) LoadEvents(ctx context.Context) (int64, error) {
	return l.load(ctx, EventsCopy(l.Sources))
}

// LoadSongs fills staging_songs from SongData, mapping keys by name.
func (l *Loader) LoadSongs(ctx context.Context) (int64, error) {
	return l.load(ctx, SongsCopy(l.Sources))
}

func (l *Loader) load(ctx context.Context, spec CopySpec) (int64, error) {
	mode, err := l.EffectiveMode()
	if err != nil {
		return 0, err
	}
	if mode == ModeCopy {
		return l.Session.Exec(ctx, spec.SQL())
	}
	return l.loadClient(ctx, spec)
}
