package config

import (
	"fmt"
	"sort"
	"strings"

	"dwh/internal/loader"
	"dwh/internal/objectstore"
	"dwh/internal/warehouse"
)

// Severity of a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is the dotted config key.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// Validate checks that every value the selected backend and load mode need
// is present. It does not contact anything.
func Validate(c *Config) []Issue {
	var issues []Issue
	add := func(sev Severity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}
	missing := func(path, value string) {
		if strings.TrimSpace(value) == "" {
			add(SeverityError, path, "is required")
		}
	}

	kind := c.Warehouse.Kind
	known, canCopy := false, false
	if b, err := warehouse.Lookup(kind); err != nil {
		add(SeverityError, "warehouse.kind", "unknown backend %q (registered: %s)", kind, strings.Join(warehouse.Kinds(), ", "))
	} else {
		known, canCopy = true, b.Dialect.ObjectStoreCopy()
	}

	if c.Warehouse.DSN == "" {
		switch kind {
		case "sqlite":
			if c.Warehouse.Database == "" {
				add(SeverityWarning, "warehouse.database", "empty; using an in-memory database")
			}
		default:
			missing("warehouse.host", c.Warehouse.Host)
			missing("warehouse.database", c.Warehouse.Database)
			missing("warehouse.user", c.Warehouse.User)
			if c.Warehouse.Password == "" {
				add(SeverityWarning, "warehouse.password", "empty; set DWH_DB_PASSWORD")
			}
		}
	}
	if c.Warehouse.Port < 0 || c.Warehouse.Port > 65535 {
		add(SeverityError, "warehouse.port", "%d is out of range", c.Warehouse.Port)
	}

	missing("s3.log_data", c.S3.LogData)
	missing("s3.log_jsonpath", c.S3.LogJSONPath)
	missing("s3.song_data", c.S3.SongData)

	mode, err := loader.ParseMode(c.Load.Mode)
	if err != nil {
		add(SeverityError, "load.mode", "%v", err)
	}
	if known && mode == loader.ModeCopy && !canCopy {
		add(SeverityError, "load.mode", "backend %q cannot COPY from object storage; use client", kind)
	}
	if mode == loader.ModeCopy || (mode == "" && canCopy) {
		missing("iam_role.arn", c.IAMRole.ARN)
		missing("region", c.Region)
		for path, loc := range map[string]string{
			"s3.log_data":     c.S3.LogData,
			"s3.log_jsonpath": c.S3.LogJSONPath,
			"s3.song_data":    c.S3.SongData,
		} {
			if loc != "" && !objectstore.IsS3(loc) {
				add(SeverityError, path, "COPY reads only s3:// locations, got %q", loc)
			}
		}
	}
	if c.Load.BatchSize < 0 {
		add(SeverityError, "load.batch_size", "must not be negative")
	}

	switch c.Metrics.Backend {
	case "", "none", "datadog":
	case "pushgateway":
		missing("metrics.pushgateway_url", c.Metrics.PushgatewayURL)
	default:
		add(SeverityError, "metrics.backend", "unknown backend %q (want none, datadog or pushgateway)", c.Metrics.Backend)
	}

	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
	return issues
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}
