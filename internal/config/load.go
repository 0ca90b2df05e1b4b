package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-ini/ini"
	"github.com/ilyakaznacheev/cleanenv"
)

// Load reads path and applies environment overrides. Files ending in .cfg
// or .ini use the legacy layout:
//
//	[CLUSTER] HOST DB_NAME DB_USER DB_PASSWORD DB_PORT REGION
//	[IAM_ROLE] ARN
//	[S3] LOG_DATA LOG_JSONPATH SONG_DATA
//
// Anything else goes through cleanenv (yaml, yml, json, toml). An empty
// path reads the environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	switch {
	case path == "":
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	case isLegacy(path):
		if err := readLegacy(path, &cfg); err != nil {
			return nil, err
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	default:
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	normalize(&cfg)
	return &cfg, nil
}

func isLegacy(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cfg", ".ini":
		return true
	}
	return false
}

// readLegacy fills cfg from the INI sections. Section and key names are
// matched case-insensitively. The legacy file only ever described a
// Redshift cluster.
func readLegacy(path string, cfg *Config) error {
	f, err := ini.InsensitiveLoad(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	cluster := f.Section("cluster")
	cfg.Warehouse.Kind = "redshift"
	cfg.Warehouse.Host = cluster.Key("host").String()
	cfg.Warehouse.Database = cluster.Key("db_name").String()
	cfg.Warehouse.User = cluster.Key("db_user").String()
	cfg.Warehouse.Password = cluster.Key("db_password").String()
	if raw := strings.TrimSpace(cluster.Key("db_port").String()); raw != "" {
		port, err := cluster.Key("db_port").Int()
		if err != nil {
			return fmt.Errorf("config: %s: [CLUSTER] DB_PORT %q is not a number", path, raw)
		}
		cfg.Warehouse.Port = port
	}
	if r := cluster.Key("region").String(); r != "" {
		cfg.Region = r
	}

	cfg.IAMRole.ARN = f.Section("iam_role").Key("arn").String()

	s3 := f.Section("s3")
	cfg.S3.LogData = s3.Key("log_data").String()
	cfg.S3.LogJSONPath = s3.Key("log_jsonpath").String()
	cfg.S3.SongData = s3.Key("song_data").String()
	return nil
}

// normalize trims whitespace and strips the single quotes the legacy file
// wraps around S3 URIs and the role ARN.
func normalize(cfg *Config) {
	trim := func(s *string) { *s = strings.TrimSpace(*s) }
	unq := func(s *string) {
		trim(s)
		if len(*s) >= 2 && (*s)[0] == '\'' && (*s)[len(*s)-1] == '\'' {
			*s = (*s)[1 : len(*s)-1]
		}
	}

	cfg.Warehouse.Kind = strings.ToLower(strings.TrimSpace(cfg.Warehouse.Kind))
	trim(&cfg.Warehouse.Host)
	trim(&cfg.Warehouse.Database)
	trim(&cfg.Warehouse.User)
	unq(&cfg.S3.LogData)
	unq(&cfg.S3.LogJSONPath)
	unq(&cfg.S3.SongData)
	unq(&cfg.IAMRole.ARN)
	unq(&cfg.Region)
	cfg.Load.Mode = strings.ToLower(strings.TrimSpace(cfg.Load.Mode))
	cfg.Metrics.Backend = strings.ToLower(strings.TrimSpace(cfg.Metrics.Backend))
}
