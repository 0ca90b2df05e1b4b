// Command dwh builds the Sparkify star schema in a warehouse: it stages the
// event log and song catalog from object storage and populates the fact and
// dimension tables.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"dwh/internal/config"
	"dwh/internal/logging"
	"dwh/internal/pipeline"
	"dwh/internal/warehouse"

	// every backend is compiled in; the config picks one.
	_ "dwh/internal/warehouse/all"
)

// runner is the subset of *pipeline.Runner the commands use.
type runner interface {
	Run(ctx context.Context, cfg *config.Config, opts pipeline.RunOptions) (pipeline.Report, error)
	CreateTables(ctx context.Context, cfg *config.Config) error
	Truncate(ctx context.Context, cfg *config.Config) error
	CheckStorage(ctx context.Context, cfg *config.Config) ([]pipeline.StorageCheck, error)
}

// appDeps are the side-effecting seams of the CLI.
type appDeps struct {
	loadConfig  func(path string) (*config.Config, error)
	newLogger   func(level, format string) (*zap.Logger, error)
	newRunner   func(log *zap.Logger) runner
	initMetrics func(ctx context.Context, mc config.MetricsConfig, job string, log *zap.Logger) (func(), error)
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:  config.Load,
		newLogger:   logging.New,
		newRunner:   func(log *zap.Logger) runner { return pipeline.NewDefaultRunner(log) },
		initMetrics: initMetrics,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// usageError marks bad flags or arguments; they exit 2 instead of 1.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// runMain executes one command and returns the process exit status: 0 on
// success, 1 on any failure, 2 on usage errors.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	root := newRootCmd(&app{deps: deps, stdout: stdout, stderr: stderr})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(stderr, "usage error: %v\n", err)
		fmt.Fprintln(stderr, "run 'dwh --help' for usage")
		return 2
	}

	msg := logging.SanitizeError(err)
	var se *pipeline.StepError
	if !errors.As(err, &se) {
		if kind := pipeline.KindOf(err); kind != warehouse.KindUnknown {
			msg = fmt.Sprintf("%s (%s)", msg, kind)
		}
	}
	fmt.Fprintf(stderr, "dwh: %s\n", msg)
	return 1
}
