package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted by index.backend.
const (
	BackendBleve  = "bleve"
	BackendSQLite = "sqlite"
	BackendRemote = "remote"
	BackendNoop   = "noop"
)

// ProjectConfigName is the per-directory config file.
const ProjectConfigName = ".labsearch.yaml"

// Config is the complete labsearch configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Crawler CrawlerConfig `yaml:"crawler" json:"crawler"`
	Sources SourcesConfig `yaml:"sources" json:"sources"`
	Watch   WatchConfig   `yaml:"watch" json:"watch"`
	Remote  RemoteConfig  `yaml:"remote" json:"remote"`
	Server  ServerConfig  `yaml:"server" json:"server"`
}

// IndexConfig configures the work queue, the worker and the backend.
type IndexConfig struct {
	// Backend selects the index backend: bleve, sqlite, remote or noop.
	Backend string `yaml:"backend" json:"backend"`
	// DataDir holds the index, the tracker database and the lock file.
	// Relative paths are resolved against the project directory.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	QueueCapacity int `yaml:"queue_capacity" json:"queue_capacity"`

	// CommitThreshold forces a commit after this many writes.
	CommitThreshold int `yaml:"commit_threshold" json:"commit_threshold"`
	// CommitIdle is how long the worker must be idle before committing.
	CommitIdle string `yaml:"commit_idle" json:"commit_idle"`

	ItemTimeout   string `yaml:"item_timeout" json:"item_timeout"`
	ShutdownGrace string `yaml:"shutdown_grace" json:"shutdown_grace"`

	// TrackerCacheSize is the LRU size in front of the last-indexed table.
	TrackerCacheSize int `yaml:"tracker_cache_size" json:"tracker_cache_size"`
	PageSize         int `yaml:"page_size" json:"page_size"`
	SQLiteCacheMB    int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`

	// Categories are search categories known besides "file" and
	// "navigation". Searches naming any other category are rejected.
	Categories []string `yaml:"categories" json:"categories"`
}

// CrawlerConfig configures scheduled crawls.
type CrawlerConfig struct {
	// Roots are identifiers crawled on startup and every Interval.
	Roots []string `yaml:"roots" json:"roots"`
	// SkipPatterns are path.Match globs applied to collection names, on top
	// of the built-in VCS directory list.
	SkipPatterns []string `yaml:"skip_patterns" json:"skip_patterns"`
	// Interval between recrawls of each root. "0" disables recrawling.
	Interval string `yaml:"interval" json:"interval"`
	// RateLimit is crawl jobs scheduled per second.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`
	Burst     int     `yaml:"burst" json:"burst"`
}

// SourcesConfig configures the resource resolvers.
type SourcesConfig struct {
	// DavRoot is the directory served under the "dav" prefix.
	DavRoot string `yaml:"dav_root" json:"dav_root"`
	// ActionBaseURL is the HTTP base served under the "action" prefix.
	ActionBaseURL string   `yaml:"action_base_url" json:"action_base_url"`
	ActionTimeout string   `yaml:"action_timeout" json:"action_timeout"`
	S3            S3Config `yaml:"s3" json:"s3"`
}

// S3Config configures the "s3" resolver. An empty endpoint disables it.
type S3Config struct {
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	Region    string `yaml:"region" json:"region"`
	AccessKey string `yaml:"access_key" json:"-"`
	SecretKey string `yaml:"secret_key" json:"-"`
	UseSSL    bool   `yaml:"use_ssl" json:"use_ssl"`
}

// WatchConfig configures live filesystem updates for the dav root.
type WatchConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Debounce string `yaml:"debounce" json:"debounce"`
}

// RemoteConfig configures the remote backend.
type RemoteConfig struct {
	URL        string `yaml:"url" json:"url"`
	Timeout    string `yaml:"timeout" json:"timeout"`
	MaxRetries int    `yaml:"max_retries" json:"max_retries"`
}

// ServerConfig configures 'labsearch serve'.
type ServerConfig struct {
	// MetricsAddr is the Prometheus listen address. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	// SocketPath is the control socket. Empty means <data_dir>/labsearch.sock.
	SocketPath string `yaml:"socket_path" json:"socket_path"`
	LogLevel   string `yaml:"log_level" json:"log_level"`
}

// defaultSkipPatterns extend the crawler's built-in VCS list.
var defaultSkipPatterns = []string{
	"node_modules",
	"__pycache__",
	"*.tmp",
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			Backend:          BackendBleve,
			DataDir:          ".labsearch",
			QueueCapacity:    100000,
			CommitThreshold:  10000,
			CommitIdle:       "2s",
			ItemTimeout:      "30s",
			ShutdownGrace:    "2s",
			TrackerCacheSize: 4096,
			PageSize:         20,
			SQLiteCacheMB:    64,
		},
		Crawler: CrawlerConfig{
			Roots:        []string{},
			SkipPatterns: append([]string(nil), defaultSkipPatterns...),
			Interval:     "1h",
			RateLimit:    1.0,
			Burst:        5,
		},
		Sources: SourcesConfig{
			DavRoot:       "",
			ActionTimeout: "10s",
		},
		Watch: WatchConfig{
			Enabled:  false,
			Debounce: "200ms",
		},
		Remote: RemoteConfig{
			Timeout:    "10s",
			MaxRetries: 3,
		},
		Server: ServerConfig{
			MetricsAddr: "127.0.0.1:9464",
			LogLevel:    "info",
		},
	}
}

// GetUserConfigPath returns the user configuration file:
//   - $XDG_CONFIG_HOME/labsearch/config.yaml when XDG_CONFIG_HOME is set
//   - ~/.config/labsearch/config.yaml otherwise
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "labsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "labsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "labsearch", "config.yaml")
}

// loadUserConfig returns nil, nil when no user config exists.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	var cfg Config
	if err := readYAML(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return &cfg, nil
}

// Load loads configuration for dir. Precedence, lowest first:
//  1. Defaults
//  2. User config (~/.config/labsearch/config.yaml)
//  3. Project config (.labsearch.yaml in dir)
//  4. Environment variables (LABSEARCH_*)
//
// Relative data_dir and dav_root values are resolved against dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userCfg, err := loadUserConfig()
	if err != nil {
		return nil, err
	}
	if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()
	cfg.resolvePaths(dir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile merges .labsearch.yaml, or .labsearch.yml, from dir.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{ProjectConfigName, ".labsearch.yml"} {
		path := filepath.Join(dir, name)
		if !fileExists(path) {
			continue
		}
		var parsed Config
		if err := readYAML(path, &parsed); err != nil {
			return err
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

func readYAML(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// mergeWith copies the non-zero values of other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Index
	setString(&c.Index.Backend, other.Index.Backend)
	setString(&c.Index.DataDir, other.Index.DataDir)
	setInt(&c.Index.QueueCapacity, other.Index.QueueCapacity)
	setInt(&c.Index.CommitThreshold, other.Index.CommitThreshold)
	setString(&c.Index.CommitIdle, other.Index.CommitIdle)
	setString(&c.Index.ItemTimeout, other.Index.ItemTimeout)
	setString(&c.Index.ShutdownGrace, other.Index.ShutdownGrace)
	setInt(&c.Index.TrackerCacheSize, other.Index.TrackerCacheSize)
	setInt(&c.Index.PageSize, other.Index.PageSize)
	setInt(&c.Index.SQLiteCacheMB, other.Index.SQLiteCacheMB)
	if len(other.Index.Categories) > 0 {
		c.Index.Categories = append(c.Index.Categories, other.Index.Categories...)
	}

	// Crawler
	if len(other.Crawler.Roots) > 0 {
		c.Crawler.Roots = other.Crawler.Roots
	}
	if len(other.Crawler.SkipPatterns) > 0 {
		// Extend rather than replace the defaults.
		c.Crawler.SkipPatterns = append(c.Crawler.SkipPatterns, other.Crawler.SkipPatterns...)
	}
	setString(&c.Crawler.Interval, other.Crawler.Interval)
	if other.Crawler.RateLimit != 0 {
		c.Crawler.RateLimit = other.Crawler.RateLimit
	}
	setInt(&c.Crawler.Burst, other.Crawler.Burst)

	// Sources
	setString(&c.Sources.DavRoot, other.Sources.DavRoot)
	setString(&c.Sources.ActionBaseURL, other.Sources.ActionBaseURL)
	setString(&c.Sources.ActionTimeout, other.Sources.ActionTimeout)
	if other.Sources.S3.Endpoint != "" {
		// The S3 block is taken as a unit so use_ssl: false survives.
		c.Sources.S3 = other.Sources.S3
	}

	// Watch
	if other.Watch.Enabled {
		c.Watch.Enabled = true
	}
	setString(&c.Watch.Debounce, other.Watch.Debounce)

	// Remote
	setString(&c.Remote.URL, other.Remote.URL)
	setString(&c.Remote.Timeout, other.Remote.Timeout)
	setInt(&c.Remote.MaxRetries, other.Remote.MaxRetries)

	// Server
	setString(&c.Server.MetricsAddr, other.Server.MetricsAddr)
	setString(&c.Server.SocketPath, other.Server.SocketPath)
	setString(&c.Server.LogLevel, other.Server.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// applyEnvOverrides applies LABSEARCH_* environment variables.
func (c *Config) applyEnvOverrides() {
	setString(&c.Index.Backend, os.Getenv("LABSEARCH_BACKEND"))
	setString(&c.Index.DataDir, os.Getenv("LABSEARCH_DATA_DIR"))
	if v := os.Getenv("LABSEARCH_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.QueueCapacity = n
		}
	}
	if v := os.Getenv("LABSEARCH_COMMIT_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.CommitThreshold = n
		}
	}

	setString(&c.Sources.DavRoot, os.Getenv("LABSEARCH_DAV_ROOT"))
	setString(&c.Sources.ActionBaseURL, os.Getenv("LABSEARCH_ACTION_URL"))
	setString(&c.Sources.S3.Endpoint, os.Getenv("LABSEARCH_S3_ENDPOINT"))
	setString(&c.Sources.S3.Bucket, os.Getenv("LABSEARCH_S3_BUCKET"))
	setString(&c.Sources.S3.AccessKey, os.Getenv("LABSEARCH_S3_ACCESS_KEY"))
	setString(&c.Sources.S3.SecretKey, os.Getenv("LABSEARCH_S3_SECRET_KEY"))

	if v := os.Getenv("LABSEARCH_CRAWL_RATE"); v != "" {
		if r, err := parseFloat64(v); err == nil && r >= 0 {
			c.Crawler.RateLimit = r
		}
	}
	if v := os.Getenv("LABSEARCH_WATCH"); v != "" {
		c.Watch.Enabled = strings.ToLower(v) == "true" || v == "1"
	}

	setString(&c.Remote.URL, os.Getenv("LABSEARCH_REMOTE_URL"))
	setString(&c.Server.MetricsAddr, os.Getenv("LABSEARCH_METRICS_ADDR"))
	setString(&c.Server.LogLevel, os.Getenv("LABSEARCH_LOG_LEVEL"))
}

// resolvePaths makes data_dir and dav_root absolute relative to dir.
func (c *Config) resolvePaths(dir string) {
	if c.Index.DataDir != "" && !filepath.IsAbs(c.Index.DataDir) {
		c.Index.DataDir = filepath.Join(dir, c.Index.DataDir)
	}
	if c.Sources.DavRoot != "" && !filepath.IsAbs(c.Sources.DavRoot) {
		c.Sources.DavRoot = filepath.Join(dir, c.Sources.DavRoot)
	}
}

// parseFloat64 parses a trimmed float.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// FindProjectRoot walks up from startDir looking for .labsearch.yaml or a
// .git directory. It returns the absolute startDir when neither is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	current := absDir
	for {
		if fileExists(filepath.Join(current, ProjectConfigName)) ||
			fileExists(filepath.Join(current, ".labsearch.yml")) ||
			dirExists(filepath.Join(current, ".git")) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return absDir, nil
		}
		current = parent
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Index.Backend) {
	case BackendBleve, BackendSQLite, BackendNoop:
	case BackendRemote:
		if c.Remote.URL == "" {
			return fmt.Errorf("remote.url is required when index.backend is 'remote'")
		}
	default:
		return fmt.Errorf("index.backend must be 'bleve', 'sqlite', 'remote' or 'noop', got %s", c.Index.Backend)
	}

	if c.Index.QueueCapacity <= 0 {
		return fmt.Errorf("index.queue_capacity must be positive, got %d", c.Index.QueueCapacity)
	}
	if c.Index.CommitThreshold <= 0 {
		return fmt.Errorf("index.commit_threshold must be positive, got %d", c.Index.CommitThreshold)
	}
	if c.Index.PageSize < 0 {
		return fmt.Errorf("index.page_size must be non-negative, got %d", c.Index.PageSize)
	}
	if c.Crawler.RateLimit < 0 {
		return fmt.Errorf("crawler.rate_limit must be non-negative, got %f", c.Crawler.RateLimit)
	}

	durations := map[string]string{
		"index.commit_idle":      c.Index.CommitIdle,
		"index.item_timeout":     c.Index.ItemTimeout,
		"index.shutdown_grace":   c.Index.ShutdownGrace,
		"crawler.interval":       c.Crawler.Interval,
		"sources.action_timeout": c.Sources.ActionTimeout,
		"watch.debounce":         c.Watch.Debounce,
		"remote.timeout":         c.Remote.Timeout,
	}
	for name, v := range durations {
		if v == "" || v == "0" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: invalid duration %q", name, v)
		}
	}

	if c.Sources.S3.Endpoint != "" && c.Sources.S3.Bucket == "" {
		return fmt.Errorf("sources.s3.bucket is required when sources.s3.endpoint is set")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

// Duration parses a validated duration setting. Empty and "0" yield zero;
// anything unparseable yields def.
func Duration(v string, def time.Duration) time.Duration {
	if v == "" || v == "0" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// SocketPath returns the control socket path.
func (c *Config) SocketPath() string {
	if c.Server.SocketPath != "" {
		return c.Server.SocketPath
	}
	return filepath.Join(c.Index.DataDir, "labsearch.sock")
}

// PIDPath returns the PID file of a running server.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Index.DataDir, "labsearch.pid")
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// BackupFile copies path to path.bak.<timestamp> and returns the copy's
// name. A missing file is not an error.
func BackupFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read config for backup: %w", err)
	}
	backup := fmt.Sprintf("%s.bak.%s", path, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(backup, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	return backup, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
