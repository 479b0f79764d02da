// Package config loads service configuration from the environment (with an
// optional .env file) and an optional yaml file for scheduling tunables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Tuning holds the scheduling knobs. The defaults implement the documented
// budgets: 1s poll, 5s grace, 30min lookback, 48h lookahead, 30min sweep,
// 10x1s readiness probe, 3x1s publish retry.
type Tuning struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	GraceWindow     time.Duration `yaml:"grace_window"`
	Lookback        time.Duration `yaml:"lookback"`
	Lookahead       time.Duration `yaml:"lookahead"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	ProbeAttempts   int           `yaml:"probe_attempts"`
	ProbeBackoff    time.Duration `yaml:"probe_backoff"`
	ProbeTimeout    time.Duration `yaml:"probe_timeout"`
	PublishAttempts int           `yaml:"publish_attempts"`
	PublishBackoff  time.Duration `yaml:"publish_backoff"`
}

// UnmarshalYAML accepts Go duration strings ("250ms", "48h") for the
// duration knobs. Absent keys keep whatever the Tuning already holds.
func (t *Tuning) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		PollInterval    string `yaml:"poll_interval"`
		GraceWindow     string `yaml:"grace_window"`
		Lookback        string `yaml:"lookback"`
		Lookahead       string `yaml:"lookahead"`
		SweepInterval   string `yaml:"sweep_interval"`
		ProbeAttempts   *int   `yaml:"probe_attempts"`
		ProbeBackoff    string `yaml:"probe_backoff"`
		ProbeTimeout    string `yaml:"probe_timeout"`
		PublishAttempts *int   `yaml:"publish_attempts"`
		PublishBackoff  string `yaml:"publish_backoff"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	set := func(dst *time.Duration, value, key string) error {
		if value == "" {
			return nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
		return nil
	}
	for _, f := range []struct {
		dst   *time.Duration
		value string
		key   string
	}{
		{&t.PollInterval, raw.PollInterval, "poll_interval"},
		{&t.GraceWindow, raw.GraceWindow, "grace_window"},
		{&t.Lookback, raw.Lookback, "lookback"},
		{&t.Lookahead, raw.Lookahead, "lookahead"},
		{&t.SweepInterval, raw.SweepInterval, "sweep_interval"},
		{&t.ProbeBackoff, raw.ProbeBackoff, "probe_backoff"},
		{&t.ProbeTimeout, raw.ProbeTimeout, "probe_timeout"},
		{&t.PublishBackoff, raw.PublishBackoff, "publish_backoff"},
	} {
		if err := set(f.dst, f.value, f.key); err != nil {
			return err
		}
	}
	if raw.ProbeAttempts != nil {
		t.ProbeAttempts = *raw.ProbeAttempts
	}
	if raw.PublishAttempts != nil {
		t.PublishAttempts = *raw.PublishAttempts
	}
	return nil
}

// DefaultTuning returns the documented defaults.
func DefaultTuning() Tuning {
	return Tuning{
		PollInterval:    time.Second,
		GraceWindow:     5 * time.Second,
		Lookback:        30 * time.Minute,
		Lookahead:       48 * time.Hour,
		SweepInterval:   1800 * time.Second,
		ProbeAttempts:   10,
		ProbeBackoff:    time.Second,
		ProbeTimeout:    2 * time.Second,
		PublishAttempts: 3,
		PublishBackoff:  time.Second,
	}
}

// Minio configures the optional replication collaborator. Disabled when the
// endpoint is empty.
type Minio struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	BaseDir   string
	UseSSL    bool
}

// Config is the full service configuration.
type Config struct {
	Development bool

	DBDriver    string // "sqlite" or "postgres"
	SQLitePath  string
	PostgresDSN string

	RedisAddr string

	RecordingsDir string
	LocalCopyDir  string // optional second local folder for finished captures

	SchedulerHealthAddr string
	RecorderHealthAddr  string
	RecorderHealthURL   string

	Minio  Minio
	Tuning Tuning
}

// LoadEnv loads environment variables from a .env file if one exists. Looks
// in the working directory and up to two parents; absence is not an error
// since variables may be set system-wide.
func LoadEnv() error {
	envPaths := []string{
		".env",
		".env.local",
		"../.env",
		"../../.env",
	}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return fmt.Errorf("error loading %s file: %w", envPath, err)
			}
			break
		}
	}

	return nil
}

// Load builds the configuration from the environment plus the optional yaml
// tunables file (RADIOREC_CONFIG, default ./radiorec.yaml).
func Load() (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Development:         envBool("RADIOREC_DEV", false),
		DBDriver:            envOr("RADIOREC_DB_DRIVER", "sqlite"),
		SQLitePath:          envOr("RADIOREC_SQLITE_PATH", "data/radiorec.db"),
		PostgresDSN:         os.Getenv("RADIOREC_POSTGRES_DSN"),
		RedisAddr:           envOr("RADIOREC_REDIS_ADDR", "localhost:6379"),
		RecordingsDir:       envOr("RADIOREC_RECORDINGS_DIR", "recordings"),
		LocalCopyDir:        os.Getenv("RADIOREC_LOCAL_COPY_DIR"),
		SchedulerHealthAddr: envOr("RADIOREC_SCHEDULER_HEALTH_ADDR", ":5002"),
		RecorderHealthAddr:  envOr("RADIOREC_RECORDER_HEALTH_ADDR", ":5001"),
		RecorderHealthURL:   envOr("RADIOREC_RECORDER_HEALTH_URL", "http://localhost:5001/health"),
		Minio: Minio{
			Endpoint:  os.Getenv("RADIOREC_MINIO_ENDPOINT"),
			AccessKey: os.Getenv("RADIOREC_MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("RADIOREC_MINIO_SECRET_KEY"),
			Bucket:    envOr("RADIOREC_MINIO_BUCKET", "recordings"),
			BaseDir:   envOr("RADIOREC_MINIO_BASE_DIR", "Recordings"),
			UseSSL:    envBool("RADIOREC_MINIO_USE_SSL", false),
		},
		Tuning: DefaultTuning(),
	}

	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "postgres" {
		return nil, fmt.Errorf("unsupported RADIOREC_DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.DBDriver == "postgres" && cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("RADIOREC_POSTGRES_DSN must be set for the postgres driver")
	}

	yamlPath := envOr("RADIOREC_CONFIG", "radiorec.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		raw, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", yamlPath, err)
		}
		if err := yaml.Unmarshal(raw, &cfg.Tuning); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", yamlPath, err)
		}
	}

	return cfg, nil
}

// GetProjectRoot finds the project root directory by looking for go.mod.
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("could not find project root (go.mod not found)")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
