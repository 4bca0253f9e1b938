package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/schema"
	"github.com/reloquent/schemacanvas/internal/store"
)

const (
	CurrentVersion = 1
	DefaultPath    = "~/.schemacanvas/schemacanvas.yaml"
)

// Persistence backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMongoDB  = "mongodb"
	BackendMemory   = "memory"
)

var backends = []string{BackendFile, BackendSQLite, BackendPostgres, BackendMongoDB, BackendMemory}

// Config is the top-level configuration.
type Config struct {
	Version     int               `yaml:"version" toml:"version"`
	Server      ServerConfig      `yaml:"server" toml:"server"`
	Canvas      CanvasConfig      `yaml:"canvas" toml:"canvas"`
	Autosave    AutosaveConfig    `yaml:"autosave" toml:"autosave"`
	Persistence PersistenceConfig `yaml:"persistence" toml:"persistence"`
	Import      ImportConfig      `yaml:"import,omitempty" toml:"import,omitempty"`
	Logging     LogConfig         `yaml:"logging,omitempty" toml:"logging,omitempty"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Addr    string `yaml:"addr" toml:"addr"`
	DevMode bool   `yaml:"dev_mode,omitempty" toml:"dev_mode,omitempty"` // enables CORS for a separate dev client
}

// CanvasConfig defines editor limits and connection policy.
type CanvasConfig struct {
	MinZoom            float64 `yaml:"min_zoom" toml:"min_zoom"`
	MaxZoom            float64 `yaml:"max_zoom" toml:"max_zoom"`
	AllowSelfReference bool    `yaml:"allow_self_reference" toml:"allow_self_reference"`
	AllowParallel      *bool   `yaml:"allow_parallel,omitempty" toml:"allow_parallel,omitempty"` // default true
	HistoryLimit       int     `yaml:"history_limit" toml:"history_limit"`
	Templates          string  `yaml:"templates,omitempty" toml:"templates,omitempty"` // explorer palette file, see `import --templates`
}

// AutosaveConfig defines the periodic save loop.
type AutosaveConfig struct {
	Disabled   bool          `yaml:"disabled,omitempty" toml:"disabled,omitempty"`
	Interval   time.Duration `yaml:"interval" toml:"interval"`
	MaxRetries int           `yaml:"max_retries" toml:"max_retries"`
}

// PersistenceConfig selects where documents are stored.
type PersistenceConfig struct {
	Backend    string `yaml:"backend" toml:"backend"`
	Directory  string `yaml:"directory,omitempty" toml:"directory,omitempty"`   // file backend
	DSN        string `yaml:"dsn,omitempty" toml:"dsn,omitempty"`               // sqlite path, postgres or mongodb URI
	Database   string `yaml:"database,omitempty" toml:"database,omitempty"`     // mongodb database
	Collection string `yaml:"collection,omitempty" toml:"collection,omitempty"` // mongodb collection
	CacheSize  int64  `yaml:"cache_size,omitempty" toml:"cache_size,omitempty"` // cached documents, 0 disables
}

// ImportConfig defines the PostgreSQL database tables are imported from.
type ImportConfig struct {
	DSN     string   `yaml:"dsn,omitempty" toml:"dsn,omitempty"`
	Schema  string   `yaml:"schema,omitempty" toml:"schema,omitempty"`
	Include []string `yaml:"include,omitempty" toml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty" toml:"exclude,omitempty"`
	// Types overrides the field type chosen for a source data type.
	Types map[string]string `yaml:"types,omitempty" toml:"types,omitempty"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level     string `yaml:"level,omitempty" toml:"level,omitempty"`         // debug, info, warn, error
	Directory string `yaml:"directory,omitempty" toml:"directory,omitempty"` // default ~/.schemacanvas/logs/
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the config file from the given path. Files ending
// in .toml are parsed as TOML, anything else as YAML.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// LoadOrDefault loads path, falling back to defaults when the file does not
// exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes the config to the given path in the format its extension names.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := c.Marshal(isTOML(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Marshal encodes the config as YAML, or TOML when asTOML is set.
func (c *Config) Marshal(asTOML bool) ([]byte, error) {
	if asTOML {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, fmt.Errorf("marshaling config: %w", err)
		}
		return buf.Bytes(), nil
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8750"
	}
	bounds := geometry.DefaultBounds()
	if c.Canvas.MinZoom == 0 {
		c.Canvas.MinZoom = bounds.MinZoom
	}
	if c.Canvas.MaxZoom == 0 {
		c.Canvas.MaxZoom = bounds.MaxZoom
	}
	if c.Canvas.AllowParallel == nil {
		allow := true
		c.Canvas.AllowParallel = &allow
	}
	if c.Canvas.HistoryLimit == 0 {
		c.Canvas.HistoryLimit = 500
	}
	if c.Autosave.Interval == 0 {
		c.Autosave.Interval = 30 * time.Second
	}
	if c.Autosave.MaxRetries == 0 {
		c.Autosave.MaxRetries = 3
	}
	if c.Canvas.Templates != "" {
		c.Canvas.Templates = ExpandHome(c.Canvas.Templates)
	}
	if c.Persistence.Backend == "" {
		c.Persistence.Backend = BackendFile
	}
	if c.Persistence.Directory == "" {
		c.Persistence.Directory = ExpandHome("~/.schemacanvas/projects/")
	} else {
		c.Persistence.Directory = ExpandHome(c.Persistence.Directory)
	}
	if c.Persistence.Backend == BackendSQLite && c.Persistence.DSN == "" {
		c.Persistence.DSN = ExpandHome("~/.schemacanvas/schemacanvas.db")
	}
	if c.Persistence.Database == "" {
		c.Persistence.Database = "schemacanvas"
	}
	if c.Persistence.Collection == "" {
		c.Persistence.Collection = "documents"
	}
	if c.Import.Schema == "" {
		c.Import.Schema = "public"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Directory == "" {
		c.Logging.Directory = ExpandHome("~/.schemacanvas/logs/")
	}
}

// Validate reports every setting that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Canvas.MinZoom <= 0 || c.Canvas.MaxZoom < c.Canvas.MinZoom {
		errs = append(errs, fmt.Errorf("canvas: zoom bounds [%g, %g] are invalid", c.Canvas.MinZoom, c.Canvas.MaxZoom))
	}
	if c.Canvas.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("canvas: history_limit must not be negative"))
	}
	if c.Autosave.Interval < time.Second {
		errs = append(errs, fmt.Errorf("autosave: interval %s is shorter than 1s", c.Autosave.Interval))
	}
	if c.Autosave.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("autosave: max_retries must not be negative"))
	}
	known := false
	for _, b := range backends {
		if c.Persistence.Backend == b {
			known = true
		}
	}
	switch {
	case !known:
		errs = append(errs, fmt.Errorf("persistence: unknown backend %q (want one of %s)", c.Persistence.Backend, strings.Join(backends, ", ")))
	case (c.Persistence.Backend == BackendPostgres || c.Persistence.Backend == BackendMongoDB) && c.Persistence.DSN == "":
		errs = append(errs, fmt.Errorf("persistence: backend %s needs a dsn", c.Persistence.Backend))
	}
	for from, to := range c.Import.Types {
		if !schema.FieldType(to).Valid() {
			errs = append(errs, fmt.Errorf("import: type override %s -> %q is not a field type", from, to))
		}
	}
	if c.Persistence.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("persistence: cache_size must not be negative"))
	}
	return errors.Join(errs...)
}

// Bounds returns the configured zoom limits.
func (c *Config) Bounds() geometry.Bounds {
	return geometry.Bounds{MinZoom: c.Canvas.MinZoom, MaxZoom: c.Canvas.MaxZoom}
}

// TypeOverrides returns the import type overrides keyed by lower-cased
// source type.
func (c *Config) TypeOverrides() map[string]schema.FieldType {
	if len(c.Import.Types) == 0 {
		return nil
	}
	out := make(map[string]schema.FieldType, len(c.Import.Types))
	for from, to := range c.Import.Types {
		out[strings.ToLower(from)] = schema.FieldType(to)
	}
	return out
}

// Policy returns the configured connection policy.
func (c *Config) Policy() store.Policy {
	p := store.DefaultPolicy()
	p.AllowSelfReference = c.Canvas.AllowSelfReference
	if c.Canvas.AllowParallel != nil {
		p.AllowParallel = *c.Canvas.AllowParallel
	}
	return p
}

var secretPattern = regexp.MustCompile(`\$\{(ENV|VAULT|AWS_SM):([^}]+)\}`)

func (c *Config) resolveSecrets() error {
	var err error
	c.Persistence.DSN, err = ResolveValue(c.Persistence.DSN)
	if err != nil {
		return fmt.Errorf("persistence dsn: %w", err)
	}
	c.Import.DSN, err = ResolveValue(c.Import.DSN)
	if err != nil {
		return fmt.Errorf("import dsn: %w", err)
	}
	return nil
}

// ResolveValue replaces every secret reference in val. References may be
// embedded, as in postgres://app:${ENV:DB_PASS}@db/canvas.
func ResolveValue(val string) (string, error) {
	var firstErr error
	out := secretPattern.ReplaceAllStringFunc(val, func(m string) string {
		if firstErr != nil {
			return m
		}
		parts := secretPattern.FindStringSubmatch(m)
		v, err := resolveOne(parts[1], parts[2])
		if err != nil {
			firstErr = err
			return m
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func resolveOne(provider, ref string) (string, error) {
	switch provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	case "VAULT":
		return resolveVault(ref)
	case "AWS_SM":
		return resolveAWSSecretsManager(ref)
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
