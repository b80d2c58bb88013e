// Package config resolves gwitter settings. Defaults are merged key by key with
// a YAML file, GWITTER_* environment variables and command line flags, and the
// result is an immutable Config value built once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/h0rv/gwitter/internal/domain"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultEndpoint is the public GitHub GraphQL endpoint.
	DefaultEndpoint = "https://api.github.com/graphql"
	// DefaultFileName is looked up in the working directory and $HOME.
	DefaultFileName = ".gwitter"
	envPrefix       = "GWITTER"
)

// Config is the full gwitter configuration.
type Config struct {
	Request RequestConfig `mapstructure:"request" yaml:"request"`
	App     AppConfig     `mapstructure:"app" yaml:"app"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
}

// RequestConfig holds credentials and the thread source.
type RequestConfig struct {
	Token             string  `mapstructure:"token" yaml:"token,omitempty"`
	ClientID          string  `mapstructure:"client_id" yaml:"client_id,omitempty"`
	ClientSecret      string  `mapstructure:"client_secret" yaml:"client_secret,omitempty"`
	Owner             string  `mapstructure:"owner" yaml:"owner"`
	Repo              string  `mapstructure:"repo" yaml:"repo"`
	PageSize          int     `mapstructure:"page_size" yaml:"page_size"`
	AutoProxy         string  `mapstructure:"auto_proxy" yaml:"auto_proxy,omitempty"`
	Endpoint          string  `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second,omitempty"`
	Burst             int     `mapstructure:"burst" yaml:"burst,omitempty"`
}

// AppConfig holds feature switches.
type AppConfig struct {
	DataSource         domain.DataSource `mapstructure:"data_source" yaml:"data_source"`
	OnlyShowOwner      bool              `mapstructure:"only_show_owner" yaml:"only_show_owner"`
	EnableRepoSwitcher bool              `mapstructure:"enable_repo_switcher" yaml:"enable_repo_switcher"`
	EnableAbout        bool              `mapstructure:"enable_about" yaml:"enable_about"`
	EnableEgg          bool              `mapstructure:"enable_egg" yaml:"enable_egg"`
	ScrollDebounce     time.Duration     `mapstructure:"scroll_debounce" yaml:"scroll_debounce,omitempty"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file,omitempty"`
}

// CacheConfig locates the repo history database.
type CacheConfig struct {
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Request: RequestConfig{
			PageSize:          10,
			Endpoint:          DefaultEndpoint,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		App: AppConfig{
			DataSource:     domain.DataSourceIssue,
			ScrollDebounce: 200 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(defaultStateDir(), "gwitter.log"),
		},
		Cache: CacheConfig{
			Path: filepath.Join(defaultStateDir(), "history.db"),
		},
	}
}

// LoadOptions tells Load where user settings come from.
type LoadOptions struct {
	// Path is an explicit config file. When empty, .gwitter.yaml is looked up
	// in the working directory and $HOME and is optional.
	Path string
	// Flags maps config keys (e.g. "request.owner") to command line flags.
	// Only flags the user actually set override lower layers.
	Flags map[string]*pflag.Flag
}

// Load resolves the configuration. Precedence: flags > env > file > defaults.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if opts.Path != "" {
		v.SetConfigFile(opts.Path)
	} else {
		v.SetConfigName(DefaultFileName)
		v.SetConfigType("yaml")
		if cwd, err := os.Getwd(); err == nil {
			v.AddConfigPath(cwd)
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range opts.Flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.Path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.Log.File = expandHome(cfg.Log.File)
	cfg.Cache.Path = expandHome(cfg.Cache.Path)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("request.token", d.Request.Token)
	v.SetDefault("request.client_id", d.Request.ClientID)
	v.SetDefault("request.client_secret", d.Request.ClientSecret)
	v.SetDefault("request.owner", d.Request.Owner)
	v.SetDefault("request.repo", d.Request.Repo)
	v.SetDefault("request.page_size", d.Request.PageSize)
	v.SetDefault("request.auto_proxy", d.Request.AutoProxy)
	v.SetDefault("request.endpoint", d.Request.Endpoint)
	v.SetDefault("request.requests_per_second", d.Request.RequestsPerSecond)
	v.SetDefault("request.burst", d.Request.Burst)

	v.SetDefault("app.data_source", string(d.App.DataSource))
	v.SetDefault("app.only_show_owner", d.App.OnlyShowOwner)
	v.SetDefault("app.enable_repo_switcher", d.App.EnableRepoSwitcher)
	v.SetDefault("app.enable_about", d.App.EnableAbout)
	v.SetDefault("app.enable_egg", d.App.EnableEgg)
	v.SetDefault("app.scroll_debounce", d.App.ScrollDebounce)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("cache.path", d.Cache.Path)
}

// Validate checks the configuration and normalizes the data source.
func (c *Config) Validate() error {
	ds, err := domain.ParseDataSource(string(c.App.DataSource))
	if err != nil {
		return fmt.Errorf("app.data_source: %w", err)
	}
	c.App.DataSource = ds

	if c.Request.PageSize <= 0 {
		return fmt.Errorf("request.page_size must be positive, got %d", c.Request.PageSize)
	}
	if c.Request.Endpoint == "" {
		return errors.New("request.endpoint is required")
	}
	if c.Request.RequestsPerSecond < 0 {
		return fmt.Errorf("request.requests_per_second must not be negative, got %v", c.Request.RequestsPerSecond)
	}
	if (c.Request.Owner == "") != (c.Request.Repo == "") {
		return errors.New("request.owner and request.repo must be set together")
	}
	if c.App.ScrollDebounce < 0 {
		return fmt.Errorf("app.scroll_debounce must not be negative, got %s", c.App.ScrollDebounce)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q (debug|info|warn|error)", c.Log.Level)
	}
	return nil
}

// OwnerToken returns the operator-configured token with every '?' removed.
// Operators may sprinkle '?' through a token so secret scanners ignore it.
func (r RequestConfig) OwnerToken() string {
	return strings.ReplaceAll(r.Token, "?", "")
}

// RepoRef returns the statically configured repository.
func (r RequestConfig) RepoRef() domain.RepoRef {
	return domain.RepoRef{Owner: r.Owner, Repo: r.Repo}
}

// Write stores cfg as YAML at path, creating parent directories.
func Write(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func defaultStateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "gwitter")
	}
	return filepath.Join(os.TempDir(), "gwitter")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
