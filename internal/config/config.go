// Package config holds the run configuration of the warehouse pipeline.
//
// A Config is built once in main, from a YAML/JSON file or the legacy INI
// cfg file, with environment variables layered on top, and is then passed
// explicitly to every component. Nothing here is global.
package config

import (
	"time"

	"dwh/internal/loader"
	"dwh/internal/objectstore"
	"dwh/internal/warehouse"
)

// Config is the complete run configuration.
type Config struct {
	Warehouse WarehouseConfig `yaml:"warehouse" json:"warehouse"`
	S3        S3Config        `yaml:"s3" json:"s3"`
	IAMRole   IAMRoleConfig   `yaml:"iam_role" json:"iam_role"`

	// Region is where the source bucket lives. COPY requires it; there is
	// no default.
	Region string `yaml:"region" json:"region" env:"DWH_REGION"`

	Load     LoadConfig     `yaml:"load" json:"load"`
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
}

// WarehouseConfig selects the backend and how to reach it.
type WarehouseConfig struct {
	// Kind is a registered backend: redshift, postgres, sqlite or mssql.
	Kind     string `yaml:"kind" json:"kind" env:"DWH_KIND" env-default:"redshift"`
	Host     string `yaml:"host" json:"host" env:"DWH_DB_HOST"`
	Port     int    `yaml:"port" json:"port" env:"DWH_DB_PORT"`
	Database string `yaml:"database" json:"database" env:"DWH_DB_NAME"`
	User     string `yaml:"user" json:"user" env:"DWH_DB_USER"`
	Password string `yaml:"password" json:"password" env:"DWH_DB_PASSWORD"`
	SSLMode  string `yaml:"sslmode" json:"sslmode" env:"DWH_DB_SSLMODE"`
	// DSN overrides the discrete fields above when set.
	DSN            string        `yaml:"dsn" json:"dsn" env:"DWH_DB_DSN"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout" env:"DWH_DB_CONNECT_TIMEOUT" env-default:"30s"`
}

// S3Config locates the source data.
type S3Config struct {
	LogData     string `yaml:"log_data" json:"log_data" env:"DWH_LOG_DATA"`
	LogJSONPath string `yaml:"log_jsonpath" json:"log_jsonpath" env:"DWH_LOG_JSONPATH"`
	SongData    string `yaml:"song_data" json:"song_data" env:"DWH_SONG_DATA"`
	// Endpoint points client-side reads at an S3-compatible store.
	Endpoint string `yaml:"endpoint" json:"endpoint" env:"DWH_S3_ENDPOINT"`
}

// IAMRoleConfig is the role the warehouse assumes to read S3.
type IAMRoleConfig struct {
	ARN string `yaml:"arn" json:"arn" env:"DWH_IAM_ROLE_ARN"`
}

// LoadConfig tunes the staging load.
type LoadConfig struct {
	// Mode is copy or client; empty picks copy when the backend can read S3.
	Mode      string `yaml:"mode" json:"mode" env:"DWH_LOAD_MODE"`
	BatchSize int    `yaml:"batch_size" json:"batch_size" env:"DWH_LOAD_BATCH_SIZE" env-default:"500"`
}

// PipelineConfig controls the run itself.
type PipelineConfig struct {
	Job string `yaml:"job" json:"job" env:"DWH_JOB" env-default:"dwh"`
	// Truncate empties the five target tables before loading. Default
	// true, set by Default rather than a tag so an explicit false survives.
	Truncate bool `yaml:"truncate" json:"truncate" env:"DWH_TRUNCATE"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" env:"DWH_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" json:"format" env:"DWH_LOG_FORMAT" env-default:"json"`
}

// MetricsConfig selects a metrics backend.
type MetricsConfig struct {
	// Backend is none, datadog or pushgateway.
	Backend        string        `yaml:"backend" json:"backend" env:"METRICS_BACKEND" env-default:"none"`
	PushgatewayURL string        `yaml:"pushgateway_url" json:"pushgateway_url" env:"PUSHGATEWAY_URL" env-default:"http://localhost:9091"`
	Tags           []string      `yaml:"tags" json:"tags" env:"METRICS_TAGS"`
	FlushEvery     time.Duration `yaml:"flush_every" json:"flush_every" env:"METRICS_FLUSH_EVERY" env-default:"60s"`
}

// Default returns the values that cannot be expressed as tag defaults.
func Default() Config {
	return Config{Pipeline: PipelineConfig{Truncate: true}}
}

// ConnParams maps the warehouse section onto session parameters.
func (c Config) ConnParams() warehouse.ConnParams {
	w := c.Warehouse
	return warehouse.ConnParams{
		Host:           w.Host,
		Port:           w.Port,
		Database:       w.Database,
		User:           w.User,
		Password:       w.Password,
		SSLMode:        w.SSLMode,
		DSN:            w.DSN,
		ConnectTimeout: w.ConnectTimeout,
	}
}

// Sources maps the S3, IAM role and region settings onto loader sources.
func (c Config) Sources() loader.Sources {
	return loader.Sources{
		LogData:     c.S3.LogData,
		LogJSONPath: c.S3.LogJSONPath,
		SongData:    c.S3.SongData,
		IAMRoleARN:  c.IAMRole.ARN,
		Region:      c.Region,
	}
}

// S3Options maps the settings used by client-side reads. Credentials come
// from the default AWS chain.
func (c Config) S3Options() objectstore.S3Options {
	return objectstore.S3Options{
		Region:   warehouse.Unquote(c.Region),
		Endpoint: c.S3.Endpoint,
	}
}
