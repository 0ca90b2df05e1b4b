package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dwh/internal/config"
	"dwh/internal/loader"
	"dwh/internal/logging"
	"dwh/internal/pipeline"
	"dwh/internal/schema"
	"dwh/internal/transform"
	"dwh/internal/warehouse"
)

type app struct {
	deps   appDeps
	stdout io.Writer
	stderr io.Writer

	cfgPath     string
	logLevel    string
	logFormat   string
	metricsName string
	metricsTags string

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "dwh",
		Short: "Build the Sparkify song-play star schema in a warehouse",
		Long: `dwh stages the Sparkify event log and song catalog from object storage and
populates the songplays fact table and its four dimensions.

Configuration comes from --config (a legacy dwh.cfg, YAML or JSON file)
overlaid by DWH_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "dwh.cfg", "config file (.cfg/.ini, .yaml or .json); empty reads the environment only")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides log.level")
	pf.StringVar(&a.logFormat, "log-format", "", "log format (json, console); overrides log.format")
	pf.StringVar(&a.metricsName, "metrics-backend", "", "metrics backend (none, datadog, pushgateway); overrides metrics.backend")
	pf.StringVar(&a.metricsTags, "metrics-tags", "", "extra comma-separated metrics tags, e.g. team:data,region:us")

	root.AddCommand(
		newCreateTablesCmd(a),
		newTruncateCmd(a),
		newRunCmd(a),
		newCheckCmd(a),
		newSQLCmd(a),
	)
	return root
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageError{err}
	}
	return nil
}

// setup loads the config and builds the logger. Flags override file and
// environment values.
func (a *app) setup() error {
	cfg, err := a.deps.loadConfig(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if a.metricsName != "" {
		cfg.Metrics.Backend = a.metricsName
	}
	if a.metricsTags != "" {
		cfg.Metrics.Tags = mergeTags(cfg.Metrics.Tags, a.metricsTags)
	}

	log, err := a.deps.newLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return usageError{err}
	}
	a.cfg, a.log = cfg, log
	return nil
}

// validate prints every issue and fails when any is an error.
func (a *app) validate() error {
	issues := config.Validate(a.cfg)
	for _, iss := range issues {
		fmt.Fprintln(a.stderr, iss)
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("configuration %s is invalid", a.cfgPath)
	}
	return nil
}

// withPipeline runs fn with a validated config, metrics and a runner.
func (a *app) withPipeline(cmd *cobra.Command, fn func(r runner) error) error {
	if err := a.setup(); err != nil {
		return err
	}
	defer a.log.Sync() //nolint:errcheck
	if err := a.validate(); err != nil {
		return err
	}

	cleanup, err := a.deps.initMetrics(cmd.Context(), a.cfg.Metrics, a.cfg.Pipeline.Job, a.log)
	if err != nil {
		a.log.Warn("metrics disabled", logging.Err(err))
	}
	defer cleanup()

	return fn(a.deps.newRunner(a.log))
}

func newCreateTablesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create-tables",
		Short: "Drop and recreate the seven warehouse tables",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withPipeline(cmd, func(r runner) error {
				if err := r.CreateTables(cmd.Context(), a.cfg); err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, "tables created")
				return nil
			})
		},
	}
}

func newTruncateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "truncate",
		Short: "Empty the fact and dimension tables",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withPipeline(cmd, func(r runner) error {
				if err := r.Truncate(cmd.Context(), a.cfg); err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, "tables truncated")
				return nil
			})
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	var truncate bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load staging and populate the star schema",
		Long: `run loads staging_events and staging_songs, then populates users, songs,
artists, time and songplays. Each statement commits on its own; a failure
stops the run and leaves earlier statements committed.

Without truncation the target tables accumulate across runs.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withPipeline(cmd, func(r runner) error {
				opts := pipeline.RunOptions{Truncate: a.cfg.Pipeline.Truncate}
				if cmd.Flags().Changed("truncate") {
					opts.Truncate = truncate
				}
				rep, err := r.Run(cmd.Context(), a.cfg, opts)
				if err != nil {
					return err
				}
				printReport(a.stdout, rep)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&truncate, "truncate", true, "empty the target tables before loading (default from pipeline.truncate)")
	return cmd
}

func printReport(w io.Writer, rep pipeline.Report) {
	fmt.Fprintf(w, "run complete in %s\n", rep.Duration().Round(time.Millisecond))
	for _, t := range schema.Catalog() {
		if n, ok := rep.Counts[t.Name]; ok {
			fmt.Fprintf(w, "  %-16s %d\n", t.Name, n)
		}
	}
}

func newCheckCmd(a *app) *cobra.Command {
	var storage bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and optionally check the source locations",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			defer a.log.Sync() //nolint:errcheck
			if err := a.validate(); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "configuration %s is valid\n", a.cfgPath)
			if !storage {
				return nil
			}

			checks, err := a.deps.newRunner(a.log).CheckStorage(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			failed := 0
			for _, c := range checks {
				if c.Err != nil {
					failed++
					fmt.Fprintf(a.stdout, "FAIL %-16s %s: %s\n", c.Path, warehouse.Unquote(c.Location), logging.SanitizeError(c.Err))
					continue
				}
				fmt.Fprintf(a.stdout, "ok   %-16s %s (%d objects)\n", c.Path, warehouse.Unquote(c.Location), c.Objects)
			}
			if failed > 0 {
				return warehouse.WithKind(warehouse.KindAccess, fmt.Errorf("%d of %d source locations unreadable", failed, len(checks)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&storage, "storage", false, "also list every source location")
	return cmd
}

var phases = []string{"drop", "create", "truncate", "load", "transform"}

func newSQLCmd(a *app) *cobra.Command {
	var phase string
	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Print the rendered statements without connecting",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			b, err := warehouse.Lookup(a.cfg.Warehouse.Kind)
			if err != nil {
				return err
			}
			mode, err := loader.ParseMode(a.cfg.Load.Mode)
			if err != nil {
				return err
			}

			selected := phases
			if phase != "" {
				selected = []string{strings.ToLower(phase)}
			}
			for _, p := range selected {
				stmts, err := renderPhase(b.Dialect, p, mode, a.cfg.Sources())
				if err != nil {
					return err
				}
				for _, st := range stmts {
					sql := st.SQL
					if !strings.HasPrefix(sql, "--") && !strings.HasSuffix(sql, ";") {
						sql += ";"
					}
					fmt.Fprintf(a.stdout, "-- %s\n%s\n\n", st.Name, sql)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&phase, "phase", "", "one of "+strings.Join(phases, "|")+"; empty prints all")
	return cmd
}

func renderPhase(d warehouse.Dialect, phase string, mode loader.Mode, src loader.Sources) ([]warehouse.Statement, error) {
	switch phase {
	case "drop":
		return warehouse.DropStatements(d), nil
	case "create":
		return warehouse.CreateStatements(d), nil
	case "truncate":
		return warehouse.TruncateStatements(d), nil
	case "load":
		return loader.Plan(d, mode, src)
	case "transform":
		return transform.Statements(d), nil
	default:
		return nil, usageError{fmt.Errorf("unknown phase %q (want %s)", phase, strings.Join(phases, "|"))}
	}
}
