// Package config loads the terminal configuration file.
//
// The file is YAML. Before it is decoded it is checked against an embedded
// CUE schema, so typos in keys and out-of-range values fail at startup with
// a position rather than surfacing later as odd runtime behaviour.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// EnvAPIToken overrides api.token when set.
const EnvAPIToken = "KIOSKD_API_TOKEN"

// Defaults.
const (
	DefaultDatabase             = "kioskd.db"
	DefaultBackupMarkerName     = ".kioskd-identity.yaml"
	DefaultAPITimeout           = 30 * time.Second
	DefaultSyncInterval         = 60 * time.Second
	DefaultBatchSize            = 5
	DefaultProbePath            = "/health"
	DefaultConnectivityInterval = 10 * time.Second
	DefaultNudgeRate            = 6
	DefaultLogLevel             = "info"
)

// Config is the terminal configuration.
type Config struct {
	Database     string       `yaml:"database,omitempty"`
	BackupMarker string       `yaml:"backup_marker,omitempty"`
	LogLevel     string       `yaml:"log_level,omitempty"`
	API          API          `yaml:"api"`
	Sync         Sync         `yaml:"sync,omitempty"`
	Connectivity Connectivity `yaml:"connectivity,omitempty"`
	Nudge        Nudge        `yaml:"nudge,omitempty"`
}

type API struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

type Sync struct {
	Interval  time.Duration `yaml:"interval,omitempty"`
	BatchSize int           `yaml:"batch_size,omitempty"`
}

type Connectivity struct {
	ProbePath string        `yaml:"probe_path,omitempty"`
	Interval  time.Duration `yaml:"interval,omitempty"`
}

// Nudge configures the optional server nudge channel. An empty URL
// disables it.
type Nudge struct {
	URL  string `yaml:"url,omitempty"`
	Rate int    `yaml:"rate,omitempty"`
}

// Load reads, validates and decodes the file at path, then applies
// defaults and environment overrides.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse is Load for in-memory data. name is used in error positions.
func Parse(name string, data []byte) (Config, error) {
	if err := validateYAML(name, data); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", name, err)
	}
	cfg.ApplyDefaults()
	cfg.ApplyEnv()
	return cfg, nil
}

// Default returns the configuration used when no file is given. It has no
// API endpoint, so only local commands work with it.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	cfg.ApplyEnv()
	return cfg
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.BackupMarker == "" {
		c.BackupMarker = defaultMarkerFor(c.Database)
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = DefaultSyncInterval
	}
	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = DefaultBatchSize
	}
	if c.Connectivity.ProbePath == "" {
		c.Connectivity.ProbePath = DefaultProbePath
	}
	if c.Connectivity.Interval == 0 {
		c.Connectivity.Interval = DefaultConnectivityInterval
	}
	if c.Nudge.Rate == 0 {
		c.Nudge.Rate = DefaultNudgeRate
	}
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	if tok, ok := os.LookupEnv(EnvAPIToken); ok && tok != "" {
		c.API.Token = tok
	}
}

// Validate re-checks a fully resolved configuration against the schema,
// e.g. after command-line overrides.
func (c Config) Validate() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return validateYAML("resolved config", data)
}

// RemoteEnabled reports whether an API endpoint is configured.
func (c Config) RemoteEnabled() bool {
	return c.API.BaseURL != ""
}

// SlogLevel maps log_level onto a slog level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func validateYAML(name string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	file, err := cueyaml.Extract(name, data)
	if err != nil {
		return fmt.Errorf("parse config %s: %w", name, err)
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return fmt.Errorf("parse config %s: %w", name, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config %s: %w", name, err)
	}
	return nil
}

// SetDatabase points the config at a different database. A backup marker
// that was only defaulted follows the database to its new directory.
func (c *Config) SetDatabase(path string) {
	if c.BackupMarker == defaultMarkerFor(c.Database) {
		c.BackupMarker = defaultMarkerFor(path)
	}
	c.Database = path
}

func defaultMarkerFor(database string) string {
	return filepath.Join(filepath.Dir(database), DefaultBackupMarkerName)
}
