package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"clusterops/internal/logger"
	"clusterops/internal/redisx"
)

// DefaultPath is read when --config is not given.
const DefaultPath = ".env"

// Config holds connection settings for both clusters plus tool options.
type Config struct {
	Source ClusterConfig `yaml:"source"`
	Target ClusterConfig `yaml:"target"`
	Client ClientConfig  `yaml:"client"`
	Log    LogConfig     `yaml:"log"`
	Dups   DupsConfig    `yaml:"dups"`
	Debug  Boolish       `yaml:"debug"`

	path string
}

// ClusterConfig is one cluster's seed endpoint and credentials.
type ClusterConfig struct {
	Host        string  `yaml:"host"`
	Port        int     `yaml:"port"`
	Auth        string  `yaml:"auth"`
	TLS         Boolish `yaml:"tls"`
	TLSInsecure Boolish `yaml:"tlsInsecure"`
}

// ClientConfig selects and tunes the redisx backend.
type ClientConfig struct {
	Mode             string        `yaml:"mode"`
	Binary           string        `yaml:"binary"`
	Timeout          time.Duration `yaml:"timeout"`
	DiscoveryTimeout time.Duration `yaml:"discoveryTimeout"`
	QPS              float64       `yaml:"qps"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DupsConfig controls the per-node key spool used by the dups action.
type DupsConfig struct {
	TempDir     string `yaml:"tempDir"`
	Compression string `yaml:"compression"`
}

// Boolish accepts true/false, yes/no, on/off and 1/0 in any case.
type Boolish bool

// ParseBoolish parses the values Boolish accepts; "" is false.
func ParseBoolish(s string) (Boolish, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "on", "1":
		return true, nil
	case "false", "no", "n", "off", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("cannot decode %q as bool", s)
}

// UnmarshalYAML allows quoted and YAML 1.1 style booleans.
func (b *Boolish) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a boolean", value.Line)
	}
	v, err := ParseBoolish(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*b = v
	return nil
}

// ValidationError collects configuration issues.
type ValidationError struct {
	Path   string
	Errors []string
}

func (e *ValidationError) Error() string {
	builder := strings.Builder{}
	builder.WriteString("invalid configuration")
	if e.Path != "" {
		builder.WriteString(" ")
		builder.WriteString(e.Path)
	}
	for _, err := range e.Errors {
		builder.WriteString("\n - ")
		builder.WriteString(err)
	}
	return builder.String()
}

// Load reads a settings file. Files ending in .yaml or .yml are YAML;
// anything else is a KEY=value env file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return nil, fmt.Errorf("cannot open config file %s: %w", absPath, err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".yaml", ".yml":
		cfg, err = loadYAML(absPath)
	default:
		cfg, err = loadEnvFile(absPath)
	}
	if err != nil {
		return nil, err
	}

	cfg.path = absPath
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	// DEBUG in the process environment wins, as it does for env files.
	if v := os.Getenv(keyDebug); v != "" {
		debug, err := ParseBoolish(v)
		if err != nil {
			return nil, &ValidationError{Path: path, Errors: []string{fmt.Sprintf("%s: %v", keyDebug, err)}}
		}
		cfg.Debug = debug
	}
	return &cfg, nil
}

// ApplyDefaults populates default values.
func (c *Config) ApplyDefaults() {
	for _, cl := range []*ClusterConfig{&c.Source, &c.Target} {
		if cl.Port == 0 {
			cl.Port = 6379
		}
	}
	if c.Client.Mode == "" {
		c.Client.Mode = string(redisx.ModeCLI)
	}
	if c.Client.Binary == "" {
		c.Client.Binary = "redis-cli"
	}
	if c.Client.DiscoveryTimeout == 0 {
		c.Client.DiscoveryTimeout = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Dups.Compression == "" {
		c.Dups.Compression = "none"
	}
}

// Validate ensures config is usable.
func (c *Config) Validate() error {
	var errs []string

	for _, named := range []struct {
		name string
		cl   ClusterConfig
	}{{"source", c.Source}, {"target", c.Target}} {
		if strings.TrimSpace(named.cl.Host) == "" {
			errs = append(errs, named.name+" cluster host is required")
		}
		if named.cl.Port < 1 || named.cl.Port > 65535 {
			errs = append(errs, fmt.Sprintf("%s port %d out of range", named.name, named.cl.Port))
		}
		if bool(named.cl.TLSInsecure) && !bool(named.cl.TLS) {
			errs = append(errs, named.name+" tlsInsecure requires tls")
		}
	}
	if _, err := redisx.ParseMode(c.Client.Mode); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Client.Timeout < 0 {
		errs = append(errs, "client timeout must not be negative")
	}
	if c.Client.DiscoveryTimeout < 0 {
		errs = append(errs, "discovery timeout must not be negative")
	}
	if c.Client.QPS < 0 {
		errs = append(errs, "qps must not be negative")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err.Error())
	}
	switch strings.ToLower(c.Dups.Compression) {
	case "none", "zstd", "lz4":
	default:
		errs = append(errs, fmt.Sprintf("unknown dups compression %q (want none, zstd or lz4)", c.Dups.Compression))
	}

	if len(errs) > 0 {
		return &ValidationError{Path: c.path, Errors: errs}
	}
	return nil
}

// Path returns the absolute path the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Cluster returns the settings for cl.
func (c *Config) Cluster(cl Cluster) ClusterConfig {
	if cl == Target {
		return c.Target
	}
	return c.Source
}

// Endpoint returns the connection parameters of the selected cluster.
func (c *Config) Endpoint(cl Cluster) redisx.Endpoint {
	cc := c.Cluster(cl)
	return redisx.Endpoint{
		Host:        cc.Host,
		Port:        cc.Port,
		Password:    cc.Auth,
		TLS:         bool(cc.TLS),
		TLSInsecure: bool(cc.TLSInsecure),
	}
}

// ClientOptions returns the redisx construction options.
func (c *Config) ClientOptions() redisx.Options {
	mode, _ := redisx.ParseMode(c.Client.Mode)
	return redisx.Options{
		Mode:        mode,
		Binary:      c.ResolveBinary(),
		DialTimeout: c.Client.DiscoveryTimeout,
		QPS:         c.Client.QPS,
	}
}

// ResolveBinary returns the client binary. Values containing a path
// separator are resolved against the config file directory; bare names
// are left for PATH lookup.
func (c *Config) ResolveBinary() string {
	bin := c.Client.Binary
	if !strings.ContainsRune(bin, filepath.Separator) || filepath.IsAbs(bin) {
		return bin
	}
	return filepath.Clean(filepath.Join(filepath.Dir(c.path), bin))
}

// LogLevel returns the effective level; debug mode forces DEBUG.
func (c *Config) LogLevel() logger.Level {
	if c.Debug {
		return logger.DEBUG
	}
	level, _ := logger.ParseLevel(c.Log.Level)
	return level
}

// Summary returns a one-line overview with credentials omitted.
func (c *Config) Summary(cl Cluster) string {
	ep := c.Endpoint(cl)
	return fmt.Sprintf("cluster=%s seed=%s tls=%t auth=%t client=%s(%s)",
		cl, ep.Addr(), ep.TLS, ep.Password != "", c.Client.Mode, c.Client.Binary)
}
