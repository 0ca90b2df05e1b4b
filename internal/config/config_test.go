package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "dwh/internal/warehouse/all"
)

const legacyCfg = `[CLUSTER]
HOST=dwhcluster.abc123.us-west-2.redshift.amazonaws.com
DB_NAME=dev
DB_USER=awsuser
DB_PASSWORD=Passw0rd
DB_PORT=5439
REGION=us-west-2

[IAM_ROLE]
ARN='arn:aws:iam::123456789012:role/dwhRole'

[S3]
LOG_DATA='s3://udacity-dend/log_data'
LOG_JSONPATH='s3://udacity-dend/log_json_path.json'
SONG_DATA='s3://udacity-dend/song_data'
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_LegacyCfg(t *testing.T) {
	cfg, err := Load(writeFile(t, "dwh.cfg", legacyCfg))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Warehouse.Kind != "redshift" || cfg.Warehouse.Port != 5439 || cfg.Warehouse.Database != "dev" {
		t.Fatalf("warehouse=%+v", cfg.Warehouse)
	}
	if cfg.IAMRole.ARN != "arn:aws:iam::123456789012:role/dwhRole" {
		t.Fatalf("arn not unquoted: %q", cfg.IAMRole.ARN)
	}
	if cfg.S3.LogJSONPath != "s3://udacity-dend/log_json_path.json" {
		t.Fatalf("log_jsonpath=%q", cfg.S3.LogJSONPath)
	}
	if !cfg.Pipeline.Truncate {
		t.Fatalf("truncate should default to true")
	}
	if cfg.Load.BatchSize != 500 || cfg.Warehouse.ConnectTimeout != 30*time.Second {
		t.Fatalf("defaults not applied: batch=%d timeout=%s", cfg.Load.BatchSize, cfg.Warehouse.ConnectTimeout)
	}
	if issues := Validate(cfg); HasErrors(issues) {
		t.Fatalf("unexpected issues: %v", issues)
	}

	src := cfg.Sources()
	if src.Region != "us-west-2" || src.SongData != "s3://udacity-dend/song_data" {
		t.Fatalf("sources=%+v", src)
	}
	if p := cfg.ConnParams(); p.Host != cfg.Warehouse.Host || p.Password != "Passw0rd" {
		t.Fatalf("conn params=%+v", p)
	}
}

func TestLoad_LegacyCfgWithoutRegion(t *testing.T) {
	body := strings.Replace(legacyCfg, "REGION=us-west-2\n", "", 1)
	cfg, err := Load(writeFile(t, "dwh.cfg", body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Region != "" {
		t.Fatalf("region=%q, want empty when REGION is absent", cfg.Region)
	}

	issues := Validate(cfg)
	if !HasErrors(issues) {
		t.Fatalf("missing region accepted: %v", issues)
	}
	found := false
	for _, iss := range issues {
		if iss.Path == "region" && iss.Severity == SeverityError {
			found = true
		}
	}
	if !found {
		t.Fatalf("issues=%v, want region error", issues)
	}
}

func TestLoad_LegacyBadPort(t *testing.T) {
	body := strings.Replace(legacyCfg, "DB_PORT=5439", "DB_PORT=fivefourthreenine", 1)
	if _, err := Load(writeFile(t, "dwh.ini", body)); err == nil {
		t.Fatalf("expected error for non-numeric port")
	}
}

func TestLoad_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("DWH_DB_PASSWORD", "from-env")
	t.Setenv("DWH_TRUNCATE", "false")

	cfg, err := Load(writeFile(t, "dwh.cfg", legacyCfg))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Warehouse.Password != "from-env" {
		t.Fatalf("password=%q, want env override", cfg.Warehouse.Password)
	}
	if cfg.Pipeline.Truncate {
		t.Fatalf("DWH_TRUNCATE=false not applied")
	}
}

func TestLoad_YAML(t *testing.T) {
	body := `
warehouse:
  kind: SQLite
  database: /tmp/dwh.db
  connect_timeout: 5s
s3:
  log_data: ./data/log_data
  log_jsonpath: ./data/log_json_path.json
  song_data: ./data/song_data
load:
  mode: client
  batch_size: 250
pipeline:
  job: nightly
  truncate: false
metrics:
  backend: pushgateway
  pushgateway_url: http://gw:9091
  tags: [env:test, team:data]
`
	cfg, err := Load(writeFile(t, "dwh.yaml", body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Warehouse.Kind != "sqlite" {
		t.Fatalf("kind=%q, want sqlite", cfg.Warehouse.Kind)
	}
	if cfg.Pipeline.Truncate {
		t.Fatalf("explicit truncate=false was overridden")
	}
	if cfg.Load.BatchSize != 250 || cfg.Warehouse.ConnectTimeout != 5*time.Second {
		t.Fatalf("load=%+v timeout=%s", cfg.Load, cfg.Warehouse.ConnectTimeout)
	}
	if len(cfg.Metrics.Tags) != 2 || cfg.Metrics.FlushEvery != time.Minute {
		t.Fatalf("metrics=%+v", cfg.Metrics)
	}
	if cfg.Region != "" {
		t.Fatalf("region=%q, want empty", cfg.Region)
	}
	if issues := Validate(cfg); HasErrors(issues) {
		t.Fatalf("unexpected issues: %v", issues)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			Warehouse: WarehouseConfig{Kind: "redshift", Host: "h", Database: "dev", User: "u", Password: "p"},
			S3: S3Config{
				LogData:     "s3://b/log_data",
				LogJSONPath: "s3://b/log_json_path.json",
				SongData:    "s3://b/song_data",
			},
			IAMRole: IAMRoleConfig{ARN: "arn:aws:iam::1:role/r"},
			Region:  "us-west-2",
		}
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantPaths []string
		wantErr   bool
	}{
		{"complete", func(*Config) {}, nil, false},
		{"unknown kind", func(c *Config) { c.Warehouse.Kind = "oracle" }, []string{"warehouse.kind"}, true},
		{"missing host and arn", func(c *Config) { c.Warehouse.Host = ""; c.IAMRole.ARN = "" },
			[]string{"iam_role.arn", "warehouse.host"}, true},
		{"copy needs s3", func(c *Config) { c.S3.SongData = "/data/song_data" }, []string{"s3.song_data"}, true},
		{"client mode skips role", func(c *Config) { c.Load.Mode = "client"; c.IAMRole.ARN = "" }, nil, false},
		{"sqlite cannot copy", func(c *Config) { c.Warehouse.Kind = "sqlite"; c.Load.Mode = "copy" }, []string{"load.mode"}, true},
		{"empty password warns", func(c *Config) { c.Warehouse.Password = "" }, []string{"warehouse.password"}, false},
		{"dsn replaces fields", func(c *Config) { c.Warehouse = WarehouseConfig{Kind: "postgres", DSN: "postgres://x"} }, nil, false},
		{"bad metrics backend", func(c *Config) { c.Metrics.Backend = "statsd" }, []string{"metrics.backend"}, true},
	}
	for _, tt := range tests {
		c := base()
		tt.mutate(c)
		issues := Validate(c)
		if HasErrors(issues) != tt.wantErr {
			t.Errorf("%s: HasErrors=%v, want %v (%v)", tt.name, HasErrors(issues), tt.wantErr, issues)
			continue
		}
		for _, p := range tt.wantPaths {
			found := false
			for _, i := range issues {
				if i.Path == p {
					found = true
				}
			}
			if !found {
				t.Errorf("%s: no issue for %s in %v", tt.name, p, issues)
			}
		}
	}
}
