package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dwh/internal/config"
	"dwh/internal/logging"
	"dwh/internal/metrics"
	"dwh/internal/metrics/datadog"
	"dwh/internal/metrics/prompush"
)

// metricsBackend is a metrics.Backend that owns a shutdown path.
type metricsBackend interface {
	metrics.Backend
	Close() error
}

// pushBackend adapts the Pushgateway backend: closing it pushes once more.
type pushBackend struct{ *prompush.Backend }

func (b pushBackend) Close() error { return b.Flush() }

// Seams for tests.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	newPushBackend = func(job, url string) (metricsBackend, error) {
		b, err := prompush.NewBackend(job, url)
		if err != nil {
			return nil, err
		}
		return pushBackend{b}, nil
	}
	setMetricsBackend = func(b metrics.Backend) { metrics.SetBackend(b) }
)

// initMetrics wires the configured backend into the metrics package. The
// returned cleanup is never nil and performs the final flush.
func initMetrics(ctx context.Context, mc config.MetricsConfig, job string, zl *zap.Logger) (func(), error) {
	noop := func() {}
	if zl == nil {
		zl = zap.NewNop()
	}

	var (
		b   metricsBackend
		err error
	)
	switch name := strings.ToLower(strings.TrimSpace(mc.Backend)); name {
	case "", "none", "noop":
		return noop, nil
	case "datadog", "dd":
		b, err = newDatadogBackend(ctx, datadog.Options{
			JobName:    job,
			Tags:       mc.Tags,
			FlushEvery: mc.FlushEvery,
		})
	case "pushgateway", "prometheus":
		b, err = newPushBackend(job, mc.PushgatewayURL)
	default:
		return noop, fmt.Errorf("unknown metrics backend %q (want none|datadog|pushgateway)", mc.Backend)
	}
	if err != nil {
		return noop, err
	}

	zl.Info("metrics enabled",
		zap.String("backend", mc.Backend),
		zap.String("job", job),
		zap.Strings("tags", mc.Tags),
	)
	setMetricsBackend(b)

	return func() {
		if err := b.Close(); err != nil {
			zl.Warn("metrics close failed", zap.String("backend", mc.Backend), logging.Err(err))
		}
		setMetricsBackend(nil)
	}, nil
}

// mergeTags appends the comma-separated extra tags to base.
func mergeTags(base []string, csv string) []string {
	return append(append([]string(nil), base...), datadog.ParseTagsCSV(csv)...)
}
