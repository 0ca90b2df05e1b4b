package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dwh/internal/config"
	"dwh/internal/loader"
	"dwh/internal/logging"
	"dwh/internal/objectstore"
	"dwh/internal/warehouse"
)

// Runner builds drivers from a Config. The function fields are seams for
// tests; NewDefaultRunner fills them with the real implementations.
type Runner struct {
	OpenSession func(ctx context.Context, kind string, p warehouse.ConnParams) (warehouse.Session, error)
	NewStore    func(ctx context.Context, cfg *config.Config) (objectstore.Store, error)
	Log         *zap.Logger
}

func NewDefaultRunner(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		OpenSession: warehouse.Open,
		NewStore:    DefaultStore,
		Log:         log,
	}
}

// DefaultStore routes local paths to the filesystem and, when any source is
// an s3:// URI, s3 locations to an S3 client built from the default AWS
// credential chain.
func DefaultStore(ctx context.Context, cfg *config.Config) (objectstore.Store, error) {
	r := &objectstore.Router{Local: objectstore.LocalStore{}}
	for _, loc := range []string{cfg.S3.LogData, cfg.S3.LogJSONPath, cfg.S3.SongData} {
		if objectstore.IsS3(loc) {
			s3, err := objectstore.NewS3Store(ctx, cfg.S3Options())
			if err != nil {
				return nil, err
			}
			r.S3 = s3
			break
		}
	}
	return r, nil
}

// Open connects and returns an Idle driver wired with a loader. The caller
// owns the driver and must Close it.
func (r *Runner) Open(ctx context.Context, cfg *config.Config) (*Driver, error) {
	mode, err := loader.ParseMode(cfg.Load.Mode)
	if err != nil {
		return nil, err
	}

	kind := cfg.Warehouse.Kind
	params := cfg.ConnParams()
	s, err := r.OpenSession(ctx, kind, params)
	if err != nil {
		return nil, r.connectErr(kind, err)
	}
	r.Log.Info("connected",
		zap.String("kind", kind),
		zap.String("target", target(params)),
	)

	l := &loader.Loader{
		Session:   s,
		Sources:   cfg.Sources(),
		Mode:      mode,
		BatchSize: cfg.Load.BatchSize,
		Log:       r.Log.Named("loader"),
	}
	effective, err := l.EffectiveMode()
	if err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	if effective == loader.ModeClient {
		store, err := r.NewStore(ctx, cfg)
		if err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("pipeline: object store: %w", err)
		}
		l.Store = store
	}

	return New(s, l, r.Log.Named("driver")), nil
}

// Run opens a driver and performs a full run.
func (r *Runner) Run(ctx context.Context, cfg *config.Config, opts RunOptions) (Report, error) {
	d, err := r.Open(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	return d.Run(ctx, opts)
}

// CreateTables drops and recreates the seven tables.
func (r *Runner) CreateTables(ctx context.Context, cfg *config.Config) error {
	return r.once(ctx, cfg, (*Driver).CreateTables)
}

// Truncate empties the five target tables without loading anything.
func (r *Runner) Truncate(ctx context.Context, cfg *config.Config) error {
	return r.once(ctx, cfg, (*Driver).Truncate)
}

func (r *Runner) once(ctx context.Context, cfg *config.Config, op func(*Driver, context.Context) error) error {
	s, err := r.OpenSession(ctx, cfg.Warehouse.Kind, cfg.ConnParams())
	if err != nil {
		return r.connectErr(cfg.Warehouse.Kind, err)
	}
	d := New(s, nil, r.Log.Named("driver"))
	err = op(d, ctx)
	if cerr := d.Close(ctx); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// StorageCheck is the result of probing one source location.
type StorageCheck struct {
	Path     string
	Location string
	Objects  int
	Err      error
}

// CheckStorage lists every source location through the configured store and
// reports which are unreadable or empty. It never connects to the warehouse.
func (r *Runner) CheckStorage(ctx context.Context, cfg *config.Config) ([]StorageCheck, error) {
	store, err := r.NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	locs := []StorageCheck{
		{Path: "s3.log_data", Location: cfg.S3.LogData},
		{Path: "s3.log_jsonpath", Location: cfg.S3.LogJSONPath},
		{Path: "s3.song_data", Location: cfg.S3.SongData},
	}
	for i := range locs {
		locs[i].Objects, locs[i].Err = objectstore.Probe(ctx, store, locs[i].Location)
		if locs[i].Err != nil {
			r.Log.Warn("storage check failed", zap.String("path", locs[i].Path), logging.Err(locs[i].Err))
		}
	}
	return locs, nil
}

func (r *Runner) connectErr(kind string, err error) error {
	b, lerr := warehouse.Lookup(kind)
	if lerr != nil {
		return err
	}
	// A failed open is a connectivity failure unless the driver says otherwise.
	k := b.Dialect.Classify(err)
	if k == warehouse.KindUnknown {
		k = warehouse.KindConnectivity
	}
	r.Log.Error("connect failed", zap.String("kind", kind), zap.String("class", k.String()), logging.Err(err))
	return &StepError{Step: "connect", Statement: "open_" + kind, Kind: k, Err: err}
}

func target(p warehouse.ConnParams) string {
	if p.DSN != "" {
		return logging.SanitizeConnectionString(p.DSN)
	}
	if p.Host == "" {
		return p.Database
	}
	if p.Port == 0 {
		return p.Host + "/" + p.Database
	}
	return p.HostPort(0) + "/" + p.Database
}
