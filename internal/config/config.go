// Package config loads membank settings from a YAML or JSON file with
// MEMBANK_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/membank/internal/prune"
	"github.com/felixgeelhaar/membank/internal/secret"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"

	DefaultFreshnessHours = 24
	DefaultTokenBudget    = 5000
	DefaultTimeoutSeconds = 120

	projectDir = ".membank"
)

type Config struct {
	MemoryRoot            string         `mapstructure:"memoryRoot" yaml:"memoryRoot" json:"memoryRoot"`
	DefaultFreshnessHours float64        `mapstructure:"defaultFreshnessHours" yaml:"defaultFreshnessHours" json:"defaultFreshnessHours"`
	Backend               string         `mapstructure:"backend" yaml:"backend" json:"backend"`
	SQLitePath            string         `mapstructure:"sqlitePath" yaml:"sqlitePath,omitempty" json:"sqlitePath,omitempty"`
	S3                    S3Config       `mapstructure:"s3" yaml:"s3" json:"s3"`
	Resolver              ResolverConfig `mapstructure:"resolver" yaml:"resolver" json:"resolver"`
	Prune                 PruneConfig    `mapstructure:"prune" yaml:"prune" json:"prune"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix,omitempty" json:"prefix,omitempty"`
	AccessKey string `mapstructure:"accessKey" yaml:"accessKey,omitempty" json:"accessKey,omitempty"`
	SecretKey string `mapstructure:"secretKey" yaml:"secretKey,omitempty" json:"secretKey,omitempty"`
	Secure    bool   `mapstructure:"secure" yaml:"secure" json:"secure"`
}

// ResolverConfig points at the external documentation client.
type ResolverConfig struct {
	Command        string   `mapstructure:"command" yaml:"command,omitempty" json:"command,omitempty"`
	Args           []string `mapstructure:"args" yaml:"args,omitempty" json:"args,omitempty"`
	TokenBudget    int      `mapstructure:"tokenBudget" yaml:"tokenBudget" json:"tokenBudget"`
	TimeoutSeconds int      `mapstructure:"timeoutSeconds" yaml:"timeoutSeconds" json:"timeoutSeconds"`
}

type PruneConfig struct {
	Categories []string `mapstructure:"categories" yaml:"categories" json:"categories"`
}

// ValidationResult represents the outcome of a configuration check.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`
}

// envBindings maps config keys to their environment variables.
var envBindings = map[string]string{
	"memoryRoot":              "MEMBANK_ROOT",
	"defaultFreshnessHours":   "MEMBANK_FRESHNESS_HOURS",
	"backend":                 "MEMBANK_BACKEND",
	"sqlitePath":              "MEMBANK_SQLITE_PATH",
	"s3.endpoint":             "MEMBANK_S3_ENDPOINT",
	"s3.bucket":               "MEMBANK_S3_BUCKET",
	"s3.prefix":               "MEMBANK_S3_PREFIX",
	"s3.accessKey":            "MEMBANK_S3_ACCESS_KEY",
	"s3.secretKey":            "MEMBANK_S3_SECRET_KEY",
	"s3.secure":               "MEMBANK_S3_SECURE",
	"resolver.command":        "MEMBANK_RESOLVER_COMMAND",
	"resolver.args":           "MEMBANK_RESOLVER_ARGS",
	"resolver.tokenBudget":    "MEMBANK_RESOLVER_TOKENS",
	"resolver.timeoutSeconds": "MEMBANK_RESOLVER_TIMEOUT",
	"prune.categories":        "MEMBANK_PRUNE_CATEGORIES",
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MemoryRoot:            filepath.Join("~", projectDir),
		DefaultFreshnessHours: DefaultFreshnessHours,
		Backend:               BackendFile,
		S3:                    S3Config{Prefix: "membank", Secure: true},
		Resolver: ResolverConfig{
			TokenBudget:    DefaultTokenBudget,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Prune: PruneConfig{Categories: append([]string(nil), prune.DefaultPatterns...)},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("memoryRoot", d.MemoryRoot)
	v.SetDefault("defaultFreshnessHours", d.DefaultFreshnessHours)
	v.SetDefault("backend", d.Backend)
	v.SetDefault("sqlitePath", d.SQLitePath)
	v.SetDefault("s3.endpoint", d.S3.Endpoint)
	v.SetDefault("s3.bucket", d.S3.Bucket)
	v.SetDefault("s3.prefix", d.S3.Prefix)
	v.SetDefault("s3.accessKey", d.S3.AccessKey)
	v.SetDefault("s3.secretKey", d.S3.SecretKey)
	v.SetDefault("s3.secure", d.S3.Secure)
	v.SetDefault("resolver.command", d.Resolver.Command)
	v.SetDefault("resolver.args", d.Resolver.Args)
	v.SetDefault("resolver.tokenBudget", d.Resolver.TokenBudget)
	v.SetDefault("resolver.timeoutSeconds", d.Resolver.TimeoutSeconds)
	v.SetDefault("prune.categories", d.Prune.Categories)
}

// Load reads configuration from path (JSON or YAML by extension). With an
// empty path it looks for config.yaml in ~/.membank and falls back to the
// defaults when none exists. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".json", ".yaml", ".yml":
		default:
			return nil, fmt.Errorf("unsupported config format: %s (use .json or .yaml)", ext)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, projectDir))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields and expands a leading ~ in paths.
func (c *Config) ApplyDefaults() error {
	d := Default()
	if c.MemoryRoot == "" {
		c.MemoryRoot = d.MemoryRoot
	}
	if c.DefaultFreshnessHours == 0 {
		c.DefaultFreshnessHours = d.DefaultFreshnessHours
	}
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	c.Backend = strings.ToLower(c.Backend)
	if c.Resolver.TokenBudget == 0 {
		c.Resolver.TokenBudget = d.Resolver.TokenBudget
	}
	if c.Resolver.TimeoutSeconds == 0 {
		c.Resolver.TimeoutSeconds = d.Resolver.TimeoutSeconds
	}
	if len(c.Prune.Categories) == 0 {
		c.Prune.Categories = d.Prune.Categories
	}

	root, err := expandHome(c.MemoryRoot)
	if err != nil {
		return err
	}
	c.MemoryRoot = root

	c.SQLitePath, err = expandHome(c.SQLitePath)
	return err
}

// DatabasePath returns the SQLite database file, by default membank.db
// inside the memory root.
func (c *Config) DatabasePath() string {
	if c.SQLitePath != "" {
		return c.SQLitePath
	}
	return filepath.Join(c.MemoryRoot, "membank.db")
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Freshness returns the documentation freshness window.
func (c *Config) Freshness() time.Duration {
	return time.Duration(c.DefaultFreshnessHours * float64(time.Hour))
}

// ResolverTimeout returns the per-call bound on the documentation client.
func (c *Config) ResolverTimeout() time.Duration {
	return time.Duration(c.Resolver.TimeoutSeconds) * time.Second
}

// Validate checks the configuration for completeness and consistency.
func (c *Config) Validate() ValidationResult {
	res := ValidationResult{
		Valid:    true,
		Warnings: []string{},
		Errors:   []string{},
	}
	fail := func(msg string) {
		res.Valid = false
		res.Errors = append(res.Errors, msg)
	}

	if c.MemoryRoot == "" {
		fail("memoryRoot is required")
	}
	if c.DefaultFreshnessHours <= 0 {
		fail("defaultFreshnessHours must be positive")
	}

	switch c.Backend {
	case BackendFile, BackendSQLite:
	case BackendS3:
		if c.S3.Endpoint == "" {
			fail("s3.endpoint is required for the s3 backend")
		}
		if c.S3.Bucket == "" {
			fail("s3.bucket is required for the s3 backend")
		}
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			res.Warnings = append(res.Warnings, "s3 credentials are empty; requests will be anonymous")
		}
		if !c.S3.Secure {
			res.Warnings = append(res.Warnings, "s3 connection is not using TLS")
		}
	default:
		fail(fmt.Sprintf("unknown backend %q (use file, sqlite or s3)", c.Backend))
	}

	if c.Resolver.Command == "" {
		res.Warnings = append(res.Warnings, "resolver.command is not set; documentation fetches are unavailable")
	}
	if c.Resolver.TokenBudget < 0 {
		fail("resolver.tokenBudget must not be negative")
	}
	if c.Resolver.TimeoutSeconds < 0 {
		fail("resolver.timeoutSeconds must not be negative")
	}

	if err := prune.ValidatePatterns(c.Prune.Categories); err != nil {
		fail(err.Error())
	}

	return res
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.S3.SecretKey != "" {
		cp.S3.SecretKey = secret.Mask(cp.S3.SecretKey)
	}
	return &cp
}

// OpenSecrets decrypts sealed S3 credentials in place.
func (c *Config) OpenSecrets(s *secret.Sealer) error {
	for name, field := range map[string]*string{
		"s3.accessKey": &c.S3.AccessKey,
		"s3.secretKey": &c.S3.SecretKey,
	} {
		plain, err := s.Open(*field)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", name, err)
		}
		*field = plain
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
