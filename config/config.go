// Package config loads the launcher configuration. HCL is the native
// format; files ending in .yaml or .yml are read as YAML.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"

	"github.com/tie/launcher/fetcher"
	"github.com/tie/launcher/pool"
	"github.com/tie/launcher/retry"
)

// DefaultFile is the configuration read when no path is given.
const DefaultFile = "launcher.hcl"

// Pass names accepted by parallelism blocks.
const (
	PassFiles  = "files"
	PassAssets = "assets"
)

type Config struct {
	DistributionURL string `hcl:"distribution_url" yaml:"distribution_url"`
	InstancesDir    string `hcl:"instances_dir,optional" yaml:"instances_dir"`
	CacheDir        string `hcl:"cache_dir,optional" yaml:"cache_dir"`
	JavaPath        string `hcl:"java_path,optional" yaml:"java_path"`
	AccessTokenFile string `hcl:"access_token_file,optional" yaml:"access_token_file"`
	Prune           bool   `hcl:"prune,optional" yaml:"prune"`
	VerifyExisting  bool   `hcl:"verify_existing,optional" yaml:"verify_existing"`
	MetricsFile     string `hcl:"metrics_file,optional" yaml:"metrics_file"`

	Retry       *RetryConfig        `hcl:"retry,block" yaml:"retry"`
	HTTP        *HTTPConfig         `hcl:"http,block" yaml:"http"`
	Parallelism []ParallelismConfig `hcl:"parallelism,block" yaml:"parallelism"`
	Log         *LogConfig          `hcl:"log,block" yaml:"log"`
}

type RetryConfig struct {
	Attempts int    `hcl:"attempts,optional" yaml:"attempts"`
	Backoff  string `hcl:"backoff,optional" yaml:"backoff"`
}

type HTTPConfig struct {
	ConnectTimeout string `hcl:"connect_timeout,optional" yaml:"connect_timeout"`
	RequestTimeout string `hcl:"request_timeout,optional" yaml:"request_timeout"`
	IdlePerHost    int    `hcl:"idle_per_host,optional" yaml:"idle_per_host"`
}

type ParallelismConfig struct {
	Pass       string `hcl:"pass,label" yaml:"pass"`
	Multiplier int    `hcl:"multiplier,optional" yaml:"multiplier"`
	Floor      int    `hcl:"floor,optional" yaml:"floor"`
	Ceiling    int    `hcl:"ceiling,optional" yaml:"ceiling"`
}

type LogConfig struct {
	Level  string `hcl:"level,optional" yaml:"level"`
	Format string `hcl:"format,optional" yaml:"format"`
}

// Load reads, decodes, expands, defaults and validates the file at path.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = ParseYAML(data)
	default:
		cfg, err = ParseHCL(data, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ParseHCL decodes an HCL document without defaults or validation.
func ParseHCL(src []byte, filename string) (*Config, error) {
	var cfg Config
	if diags := DecodeHCL(hclparse.NewParser(), src, filename, &cfg); diags.HasErrors() {
		return nil, diags
	}
	return &cfg, nil
}

// DecodeHCL parses src with p and decodes it into cfg. Diagnostics refer to
// files registered on p.
func DecodeHCL(p *hclparse.Parser, src []byte, filename string, cfg *Config) hcl.Diagnostics {
	file, diags := p.ParseHCL(src, filename)
	if diags.HasErrors() {
		return diags
	}
	return append(diags, gohcl.DecodeBody(file.Body, nil, cfg)...)
}

func ParseYAML(src []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(src, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) expandEnv() {
	c.DistributionURL = os.ExpandEnv(c.DistributionURL)
	c.InstancesDir = os.ExpandEnv(c.InstancesDir)
	c.CacheDir = os.ExpandEnv(c.CacheDir)
	c.JavaPath = os.ExpandEnv(c.JavaPath)
	c.AccessTokenFile = os.ExpandEnv(c.AccessTokenFile)
	c.MetricsFile = os.ExpandEnv(c.MetricsFile)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.InstancesDir == "" {
		c.InstancesDir = "instances"
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir()
	}
	if c.JavaPath == "" {
		c.JavaPath = "java"
	}
	if c.Retry == nil {
		c.Retry = &RetryConfig{}
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = retry.Default.Attempts
	}
	if c.Retry.Backoff == "" {
		c.Retry.Backoff = "1s"
	}
	if c.HTTP == nil {
		c.HTTP = &HTTPConfig{}
	}
	if c.HTTP.ConnectTimeout == "" {
		c.HTTP.ConnectTimeout = "10s"
	}
	if c.HTTP.RequestTimeout == "" {
		c.HTTP.RequestTimeout = "5m"
	}
	if c.HTTP.IdlePerHost == 0 {
		c.HTTP.IdlePerHost = 16
	}
	if c.Log == nil {
		c.Log = &LogConfig{}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".cache"
	}
	return filepath.Join(dir, "launcher")
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.DistributionURL == "" {
		return errors.New("distribution_url is required")
	}
	u, err := url.Parse(c.DistributionURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("distribution_url must be an http(s) URL: %s", c.DistributionURL)
	}

	if c.Retry != nil {
		if c.Retry.Attempts < 1 {
			return fmt.Errorf("retry.attempts must be at least 1: %d", c.Retry.Attempts)
		}
		if err := validDuration("retry.backoff", c.Retry.Backoff); err != nil {
			return err
		}
	}
	if c.HTTP != nil {
		if err := validDuration("http.connect_timeout", c.HTTP.ConnectTimeout); err != nil {
			return err
		}
		if err := validDuration("http.request_timeout", c.HTTP.RequestTimeout); err != nil {
			return err
		}
		if c.HTTP.IdlePerHost < 0 {
			return fmt.Errorf("http.idle_per_host must not be negative: %d", c.HTTP.IdlePerHost)
		}
	}

	seen := make(map[string]bool)
	for _, p := range c.Parallelism {
		switch p.Pass {
		case PassFiles, PassAssets:
		default:
			return fmt.Errorf("invalid parallelism pass: %s (must be files or assets)", p.Pass)
		}
		if seen[p.Pass] {
			return fmt.Errorf("duplicate parallelism block: %s", p.Pass)
		}
		seen[p.Pass] = true
		if p.Multiplier < 0 || p.Floor < 0 || p.Ceiling < 0 {
			return fmt.Errorf("parallelism %s: values must not be negative", p.Pass)
		}
		if p.Ceiling > 0 && p.Floor > p.Ceiling {
			return fmt.Errorf("parallelism %s: floor %d exceeds ceiling %d", p.Pass, p.Floor, p.Ceiling)
		}
	}

	if c.Log != nil {
		switch c.Log.Level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("invalid log.level: %s (must be debug, info, warn or error)", c.Log.Level)
		}
		switch c.Log.Format {
		case "text", "json":
		default:
			return fmt.Errorf("invalid log.format: %s (must be text or json)", c.Log.Format)
		}
	}
	return nil
}

func validDuration(key, s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must not be negative: %s", key, s)
	}
	return nil
}

func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// RetryPolicy returns the fetch retry policy.
func (c *Config) RetryPolicy() retry.Policy {
	if c.Retry == nil {
		return retry.Default
	}
	return retry.Policy{
		Attempts: c.Retry.Attempts,
		Backoff:  retry.Fixed(duration(c.Retry.Backoff)),
	}
}

func (c *Config) ClientOptions() fetcher.ClientOptions {
	if c.HTTP == nil {
		return fetcher.ClientOptions{}
	}
	return fetcher.ClientOptions{
		ConnectTimeout: duration(c.HTTP.ConnectTimeout),
		IdlePerHost:    c.HTTP.IdlePerHost,
	}
}

// RequestTimeout bounds a single file request.
func (c *Config) RequestTimeout() time.Duration {
	if c.HTTP == nil {
		return 0
	}
	return duration(c.HTTP.RequestTimeout)
}

// PoolFor returns the worker pool sizing of pass, with zero fields taken
// from def.
func (c *Config) PoolFor(pass string, def pool.Parallelism) pool.Parallelism {
	for _, p := range c.Parallelism {
		if p.Pass != pass {
			continue
		}
		if p.Multiplier > 0 {
			def.Multiplier = p.Multiplier
		}
		if p.Floor > 0 {
			def.Floor = p.Floor
		}
		if p.Ceiling > 0 {
			def.Ceiling = p.Ceiling
		}
	}
	return def
}

// Token reads the access token file. It returns an empty token when no
// file is configured.
func (c *Config) Token() (string, error) {
	if c.AccessTokenFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.AccessTokenFile)
	if err != nil {
		return "", fmt.Errorf("failed to read access token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// InstanceDir returns the directory of instance id.
func (c *Config) InstanceDir(id string) string {
	return filepath.Join(c.InstancesDir, id)
}
