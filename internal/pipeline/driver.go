// Package pipeline drives a warehouse run: optional truncation of the
// target tables, the staging load and the transform, over one session.
//
// Every statement runs and commits on its own. A failure stops the run at
// that statement; whatever committed before it stays, and the driver state
// does not advance.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dwh/internal/loader"
	"dwh/internal/logging"
	"dwh/internal/metrics"
	"dwh/internal/transform"
	"dwh/internal/warehouse"
)

// State is the driver lifecycle position.
type State int

const (
	Idle State = iota
	Truncated
	StagingLoaded
	Transformed
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Truncated:
		return "truncated"
	case StagingLoaded:
		return "staging_loaded"
	case Transformed:
		return "transformed"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RunOptions controls Run.
type RunOptions struct {
	// Truncate empties the five target tables before loading.
	Truncate bool
}

// Driver sequences the pipeline over a single session.
type Driver struct {
	session warehouse.Session
	loader  *loader.Loader
	log     *zap.Logger
	now     func() time.Time

	state  State
	report Report
}

// New returns an Idle driver. l may be nil when only DDL is needed; a nil
// log discards output.
func New(s warehouse.Session, l *loader.Loader, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{session: s, loader: l, log: log, now: time.Now}
}

func (d *Driver) State() State { return d.state }

// Report returns what has run so far.
func (d *Driver) Report() Report { return d.report }

func (d *Driver) transition(op string, to State, from ...State) error {
	for _, f := range from {
		if d.state == f {
			return nil
		}
	}
	return fmt.Errorf("%w: %s from %s (to %s)", ErrInvalidTransition, op, d.state, to)
}

// CreateTables drops and recreates all seven tables. Allowed only while Idle.
func (d *Driver) CreateTables(ctx context.Context) error {
	if err := d.transition("create-tables", Idle, Idle); err != nil {
		return err
	}
	dl := d.session.Dialect()
	if err := d.execAll(ctx, "drop", warehouse.DropStatements(dl)); err != nil {
		return err
	}
	return d.execAll(ctx, "create", warehouse.CreateStatements(dl))
}

// Truncate empties the five non-staging tables, fact table first.
func (d *Driver) Truncate(ctx context.Context) error {
	if err := d.transition("truncate", Truncated, Idle); err != nil {
		return err
	}
	if err := d.execAll(ctx, "truncate", warehouse.TruncateStatements(d.session.Dialect())); err != nil {
		return err
	}
	d.state = Truncated
	return nil
}

// Load resets both staging tables, then fills them: events first, songs
// second.
func (d *Driver) Load(ctx context.Context) error {
	if err := d.transition("load", StagingLoaded, Idle, Truncated); err != nil {
		return err
	}
	if d.loader == nil {
		return fmt.Errorf("pipeline: load: no loader configured")
	}
	if err := d.execAll(ctx, "reset", warehouse.ResetStagingStatements(d.session.Dialect())); err != nil {
		return err
	}

	stmts := d.loader.Statements()
	for i, fn := range []func(context.Context) (int64, error){d.loader.LoadEvents, d.loader.LoadSongs} {
		if err := d.step(ctx, "load", stmts[i], fn); err != nil {
			return err
		}
	}
	d.state = StagingLoaded
	return nil
}

// Transform runs the five populate statements in dependency order.
func (d *Driver) Transform(ctx context.Context) error {
	if err := d.transition("transform", Transformed, StagingLoaded); err != nil {
		return err
	}
	if err := d.execAll(ctx, "transform", transform.Statements(d.session.Dialect())); err != nil {
		return err
	}
	d.state = Transformed
	return nil
}

// Close releases the session. It is safe to call more than once.
func (d *Driver) Close(ctx context.Context) error {
	if d.state == Closed {
		return nil
	}
	d.state = Closed
	if err := d.session.Close(ctx); err != nil {
		return fmt.Errorf("pipeline: close: %w", err)
	}
	return nil
}

// Run performs [Truncate], Load and Transform, collects final table counts
// and closes the session. The session is closed on failure too; the first
// error wins.
func (d *Driver) Run(ctx context.Context, opts RunOptions) (rep Report, err error) {
	d.report.Started = d.now()
	d.log.Info("run started", zap.Bool("truncate", opts.Truncate), zap.String("dialect", d.session.Dialect().Name()))

	defer func() {
		d.report.Finished = d.now()
		if cerr := d.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
		rep = d.report
		if err != nil {
			d.log.Error("run failed", append(d.report.Fields(), logging.Err(err), zap.String("kind", KindOf(err).String()))...)
		} else {
			d.log.Info("run complete", d.report.Fields()...)
		}
		if ferr := metrics.Flush(); ferr != nil {
			d.log.Warn("metrics flush failed", logging.Err(ferr))
		}
	}()

	if opts.Truncate {
		if err := d.Truncate(ctx); err != nil {
			return d.report, err
		}
	}
	if err := d.Load(ctx); err != nil {
		return d.report, err
	}
	if err := d.Transform(ctx); err != nil {
		return d.report, err
	}
	d.collectCounts(ctx)
	return d.report, nil
}

func (d *Driver) execAll(ctx context.Context, step string, stmts []warehouse.Statement) error {
	for _, st := range stmts {
		sql := st.SQL
		if err := d.step(ctx, step, st, func(ctx context.Context) (int64, error) {
			return d.session.Exec(ctx, sql)
		}); err != nil {
			return err
		}
	}
	return nil
}

// step runs one statement, records its outcome and classifies a failure.
func (d *Driver) step(ctx context.Context, step string, st warehouse.Statement, fn func(context.Context) (int64, error)) error {
	if err := ctx.Err(); err != nil {
		return d.fail(step, st.Name, err)
	}

	start := d.now()
	n, err := fn(ctx)
	dur := d.now().Sub(start)

	res := StatementResult{Step: step, Statement: st.Name, Table: st.Table, Rows: n, Duration: dur, Status: "ok"}
	if err != nil {
		se := d.classify(step, st.Name, err)
		res.Status = se.Kind.String()
		d.report.Statements = append(d.report.Statements, res)
		metrics.RecordStep(st.Name, res.Status, dur)
		d.log.Error("statement failed",
			zap.String("stage", step),
			zap.String("statement", st.Name),
			zap.String("table", st.Table),
			zap.Duration("duration", dur),
			zap.String("kind", se.Kind.String()),
			logging.Err(err),
		)
		return se
	}

	d.report.Statements = append(d.report.Statements, res)
	metrics.RecordStep(st.Name, "ok", dur)
	if step == "load" || step == "transform" {
		metrics.RecordRows(st.Table, n)
	}
	d.log.Info("statement complete",
		zap.String("stage", step),
		zap.String("statement", st.Name),
		zap.String("table", st.Table),
		zap.Duration("duration", dur),
		zap.Int64("rows", n),
	)
	return nil
}

func (d *Driver) classify(step, statement string, err error) *StepError {
	return &StepError{Step: step, Statement: statement, Kind: d.session.Dialect().Classify(err), Err: err}
}

func (d *Driver) fail(step, statement string, err error) error {
	se := d.classify(step, statement, err)
	d.log.Error("step aborted", zap.String("stage", step), zap.String("statement", statement), logging.Err(err))
	return se
}
