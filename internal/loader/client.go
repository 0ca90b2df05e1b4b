package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dwh/internal/loader/ndjson"
	"dwh/internal/objectstore"
	"dwh/internal/schema"
	"dwh/internal/warehouse"
)

// mapper turns one decoded record into a row for the staging table.
type mapper func(fields map[string]any) ([]any, error)

// loadClient lists the objects under spec.Location, decodes them and writes
// every row through one CopyRows call. Any unreadable object or bad record
// aborts the load and nothing is committed.
func (l *Loader) loadClient(ctx context.Context, spec CopySpec) (int64, error) {
	if l.Store == nil {
		return 0, fmt.Errorf("loader: client mode needs an object store")
	}
	table, err := schema.Lookup(spec.Table)
	if err != nil {
		return 0, err
	}

	m, err := l.buildMapper(ctx, table, spec.Format)
	if err != nil {
		return 0, err
	}

	objs, err := l.Store.List(ctx, spec.Location)
	if err != nil {
		return 0, err
	}
	if len(objs) == 0 {
		return 0, warehouse.WithKind(warehouse.KindAccess,
			fmt.Errorf("%w: %s", objectstore.ErrNoObjects, warehouse.Unquote(spec.Location)))
	}

	if bs, ok := l.Session.(warehouse.BatchSizer); ok && l.BatchSize > 0 {
		bs.SetBatchSize(l.BatchSize)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	src := newStreamSource(ctx, func(ctx context.Context, emit func([]any) error) error {
		for _, obj := range objs {
			if err := l.readObject(ctx, obj, m, emit); err != nil {
				return err
			}
		}
		return nil
	})

	n, err := l.Session.CopyRows(ctx, table.Name, table.ColumnNames(), src)
	if err != nil {
		return 0, err
	}

	l.log().Info("client load complete",
		zap.String("table", table.Name),
		zap.Int("objects", len(objs)),
		zap.Int64("rows", n),
	)
	return n, nil
}

func (l *Loader) readObject(ctx context.Context, obj objectstore.Object, m mapper, emit func([]any) error) error {
	rc, err := l.Store.Open(ctx, obj.URI)
	if err != nil {
		return err
	}
	defer rc.Close()

	err = ndjson.Stream(ctx, rc, func(rec ndjson.Record) error {
		row, err := m(rec.Fields)
		if err != nil {
			return warehouse.WithKind(warehouse.KindMalformedData,
				fmt.Errorf("%s record %d: %w", obj.URI, rec.Index, err))
		}
		return emit(row)
	})
	if err != nil {
		if _, ok := warehouse.ClassifyCommon(err); ok || errors.Is(err, context.Canceled) {
			return err
		}
		return warehouse.WithKind(warehouse.KindMalformedData, fmt.Errorf("%s: %w", obj.URI, err))
	}
	l.log().Debug("object decoded", zap.String("uri", obj.URI), zap.Int64("bytes", obj.Size))
	return nil
}

// buildMapper returns a positional JSONPaths mapper, or a by-name mapper for
// FormatAuto.
func (l *Loader) buildMapper(ctx context.Context, table schema.Table, format string) (mapper, error) {
	format = warehouse.Unquote(format)
	if strings.EqualFold(format, FormatAuto) {
		return autoMapper(table), nil
	}

	rc, err := l.Store.Open(ctx, format)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	manifest, err := ndjson.ReadManifest(rc)
	if err != nil {
		return nil, warehouse.WithKind(warehouse.KindMalformedData, err)
	}
	return pathMapper(table, manifest)
}

func autoMapper(table schema.Table) mapper {
	cols := table.Columns
	return func(fields map[string]any) ([]any, error) {
		lower := make(map[string]any, len(fields))
		for k, v := range fields {
			lower[strings.ToLower(k)] = v
		}
		row := make([]any, len(cols))
		for i, c := range cols {
			v, err := coerce(lower[strings.ToLower(c.Name)], c.Type)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			row[i] = v
		}
		return row, nil
	}
}

func pathMapper(table schema.Table, manifest ndjson.Manifest) (mapper, error) {
	cols := table.Columns
	if len(manifest.Paths) != len(cols) {
		return nil, warehouse.WithKind(warehouse.KindMalformedData,
			fmt.Errorf("jsonpaths: %d paths for %d columns of %s", len(manifest.Paths), len(cols), table.Name))
	}
	return func(fields map[string]any) ([]any, error) {
		row := make([]any, len(cols))
		for i, c := range cols {
			v, _ := manifest.Paths[i].Lookup(fields)
			cv, err := coerce(v, c.Type)
			if err != nil {
				return nil, fmt.Errorf("column %s (%s): %w", c.Name, manifest.Paths[i], err)
			}
			row[i] = cv
		}
		return row, nil
	}, nil
}

// streamSource adapts a push-style producer to warehouse.RowSource. The
// producer runs in its own goroutine and stops when ctx is cancelled.
type streamSource struct {
	rows <-chan []any
	errc <-chan error
	cur  []any
	err  error
	done bool
}

func newStreamSource(ctx context.Context, produce func(ctx context.Context, emit func([]any) error) error) *streamSource {
	rows := make(chan []any, 256)
	errc := make(chan error, 1)

	go func() {
		defer close(rows)
		errc <- produce(ctx, func(row []any) error {
			select {
			case rows <- row:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	return &streamSource{rows: rows, errc: errc}
}

func (s *streamSource) Next() bool {
	if s.done {
		return false
	}
	row, ok := <-s.rows
	if !ok {
		s.done = true
		s.err = <-s.errc
		return false
	}
	s.cur = row
	return true
}

func (s *streamSource) Values() ([]any, error) { return s.cur, nil }
func (s *streamSource) Err() error             { return s.err }
