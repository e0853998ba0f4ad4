// Package config loads fielddoc settings from fielddoc.yaml and FIELDDOC_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fielddoc/fielddoc/internal/docs"
	"github.com/fielddoc/fielddoc/internal/logging"
	"github.com/fielddoc/fielddoc/internal/metrics"
	"github.com/fielddoc/fielddoc/internal/projection"
	"github.com/fielddoc/fielddoc/internal/resolve"
	"github.com/fielddoc/fielddoc/internal/store"
	"github.com/fielddoc/fielddoc/internal/web/auth"
	"github.com/fielddoc/fielddoc/internal/web/cache"
	"github.com/fielddoc/fielddoc/internal/web/profiling"
	"github.com/fielddoc/fielddoc/internal/web/ratelimit"
	"github.com/fielddoc/fielddoc/internal/web/server"
)

// EnvPrefix prefixes every environment override, e.g. FIELDDOC_SERVER_ADDRESS.
const EnvPrefix = "FIELDDOC"

// FileNames are the config file names searched for, in order.
var FileNames = []string{"fielddoc.yaml", "fielddoc.yml"}

// Config represents the fielddoc configuration
type Config struct {
	Log       logging.Config   `mapstructure:"log"`
	Server    server.Config    `mapstructure:"server"`
	Query     QueryConfig      `mapstructure:"query"`
	Manifests ManifestsConfig  `mapstructure:"manifests"`
	Catalog   CatalogConfig    `mapstructure:"catalog"`
	Cache     cache.Config     `mapstructure:"cache"`
	RateLimit ratelimit.Config `mapstructure:"rate_limit"`
	Store     StoreConfig      `mapstructure:"store"`
	Auth      AuthConfig       `mapstructure:"auth"`
	Metrics   metrics.Config   `mapstructure:"metrics"`
	Docs      DocsConfig       `mapstructure:"docs"`
	Profiling profiling.Config `mapstructure:"profiling"`

	// File is the config file read, if any.
	File string `mapstructure:"-"`
}

// QueryConfig names the query parameters clients use.
type QueryConfig struct {
	resolve.Naming    `mapstructure:",squash"`
	projection.Config `mapstructure:",squash"`
}

// ManifestsConfig locates the endpoint manifests.
type ManifestsConfig struct {
	Dir   string `mapstructure:"dir"`
	Watch bool   `mapstructure:"watch"`
}

// CatalogConfig tunes catalog builds.
type CatalogConfig struct {
	// Workers bounds concurrent endpoint builds; zero uses GOMAXPROCS.
	Workers int `mapstructure:"workers"`
}

// StoreConfig enables publishing to a SQL database.
type StoreConfig struct {
	store.Config `mapstructure:",squash"`
	// Keep is the number of builds retained by publish; zero keeps all.
	Keep int `mapstructure:"keep"`
}

// Enabled reports whether a database is configured.
func (c StoreConfig) Enabled() bool {
	return c.DSN != ""
}

// AuthConfig protects the /docs routes with bearer tokens.
type AuthConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Secret   string        `mapstructure:"secret"`
	Scope    string        `mapstructure:"scope"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`

	// Clients maps client ids to bcrypt hashes of their secrets. Listed
	// clients can exchange their credentials at POST /auth/token. Ids are
	// case-insensitive and stored lowercased.
	Clients auth.Clients `mapstructure:"clients"`
}

// DocsConfig describes the API in exported documentation.
type DocsConfig struct {
	Title       string `mapstructure:"title"`
	Version     string `mapstructure:"version"`
	Description string `mapstructure:"description"`
	BaseURL     string `mapstructure:"base_url"`
	OutputDir   string `mapstructure:"output_dir"`
	// OpenAPI serves /docs/openapi.json.
	OpenAPI bool `mapstructure:"openapi"`
}

// Exporter returns the export settings. docs.output_dir resolves like
// manifests.dir.
func (c *Config) Exporter() *docs.Config {
	return &docs.Config{
		Title:       c.Docs.Title,
		Version:     c.Docs.Version,
		Description: c.Docs.Description,
		BaseURL:     c.Docs.BaseURL,
		OutputDir:   c.resolve(c.Docs.OutputDir),
		Naming:      c.Query.Naming,
	}
}

// Load reads the configuration. An empty path searches the working
// directory and its parents for FileNames; a missing file then means
// defaults. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		if root, err := ProjectRoot(); err == nil {
			path = root
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.File = v.ConfigFileUsed()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// ManifestDir resolves manifests.dir against the directory of the config
// file.
func (c *Config) ManifestDir() string {
	return c.resolve(c.Manifests.Dir)
}

func (c *Config) resolve(path string) string {
	if c.File == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(c.File), path)
}

func setDefaults(v *viper.Viper) {
	srv := server.DefaultConfig()
	naming := resolve.DefaultNaming()
	c := cache.DefaultConfig()
	rl := ratelimit.DefaultConfig()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("server.address", srv.Address)
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")
	v.SetDefault("server.tls.min_version", 0)
	v.SetDefault("server.read_timeout", srv.ReadTimeout)
	v.SetDefault("server.write_timeout", srv.WriteTimeout)
	v.SetDefault("server.idle_timeout", srv.IdleTimeout)
	v.SetDefault("server.read_header_timeout", srv.ReadHeaderTimeout)
	v.SetDefault("server.shutdown_timeout", srv.ShutdownTimeout)
	v.SetDefault("server.max_header_bytes", srv.MaxHeaderBytes)

	v.SetDefault("query.selector_field", naming.SelectorField)
	v.SetDefault("query.filter_wrapper", naming.FilterWrapper)
	v.SetDefault("query.relations_field", naming.RelationsField)
	v.SetDefault("query.sort_field", naming.SortField)
	v.SetDefault("query.response_wrapper", "")

	v.SetDefault("manifests.dir", "api")
	v.SetDefault("manifests.watch", false)

	v.SetDefault("catalog.workers", 0)

	v.SetDefault("cache.backend", c.Backend)
	v.SetDefault("cache.ttl", c.TTL)
	v.SetDefault("cache.prefix", c.Prefix)
	v.SetDefault("cache.redis.addr", c.Redis.Addr)
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.backend", rl.Backend)
	v.SetDefault("rate_limit.limit", rl.Limit)
	v.SetDefault("rate_limit.window", rl.Window)
	v.SetDefault("rate_limit.prefix", rl.Prefix)
	v.SetDefault("rate_limit.redis.addr", rl.Redis.Addr)
	v.SetDefault("rate_limit.redis.password", "")
	v.SetDefault("rate_limit.redis.db", 0)

	v.SetDefault("store.driver", store.DriverSQLite)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.prefix", "fielddoc_")
	v.SetDefault("store.keep", 10)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.scope", "docs:read")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "fielddoc")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.path", profiling.DefaultConfig().Path)
	v.SetDefault("profiling.block_rate", 0)
	v.SetDefault("profiling.mutex_fraction", 0)

	v.SetDefault("docs.title", "API")
	v.SetDefault("docs.version", "1.0.0")
	v.SetDefault("docs.description", "")
	v.SetDefault("docs.base_url", "")
	v.SetDefault("docs.output_dir", "docs")
	v.SetDefault("docs.openapi", true)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level must be debug, info, warn or error, got: %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		add("log.format must be json or console, got: %q", c.Log.Format)
	}

	if c.Server.Address == "" {
		add("server.address is required")
	}
	if c.Server.TLS.CertFile != "" && c.Server.TLS.KeyFile == "" || c.Server.TLS.CertFile == "" && c.Server.TLS.KeyFile != "" {
		add("server.tls.cert_file and server.tls.key_file must be set together")
	}

	names := map[string]string{
		"query.selector_field":  c.Query.SelectorField,
		"query.filter_wrapper":  c.Query.FilterWrapper,
		"query.relations_field": c.Query.RelationsField,
		"query.sort_field":      c.Query.SortField,
	}
	seen := make(map[string]string, len(names))
	for _, key := range []string{"query.selector_field", "query.filter_wrapper", "query.relations_field", "query.sort_field"} {
		name := names[key]
		if name == "" {
			add("%s must not be empty", key)
			continue
		}
		if other, dup := seen[name]; dup {
			add("%s and %s both use %q", other, key, name)
		}
		seen[name] = key
	}

	if c.Manifests.Dir == "" {
		add("manifests.dir is required")
	}
	if c.Catalog.Workers < 0 {
		add("catalog.workers must not be negative, got: %d", c.Catalog.Workers)
	}

	switch c.Cache.Backend {
	case cache.BackendMemory, cache.BackendRedis, cache.BackendNone:
	default:
		add("cache.backend must be memory, redis or none, got: %q", c.Cache.Backend)
	}

	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case ratelimit.BackendMemory, ratelimit.BackendRedis:
		default:
			add("rate_limit.backend must be memory or redis, got: %q", c.RateLimit.Backend)
		}
		if c.RateLimit.Limit <= 0 {
			add("rate_limit.limit must be positive, got: %d", c.RateLimit.Limit)
		}
		if c.RateLimit.Window <= 0 {
			add("rate_limit.window must be positive, got: %s", c.RateLimit.Window)
		}
	}

	if c.Store.Enabled() {
		switch c.Store.Driver {
		case store.DriverSQLite, store.DriverPostgres:
		default:
			add("store.driver must be %s or %s, got: %q", store.DriverSQLite, store.DriverPostgres, c.Store.Driver)
		}
	}
	if c.Store.Keep < 0 {
		add("store.keep must not be negative, got: %d", c.Store.Keep)
	}

	if c.Auth.Enabled && c.Auth.Secret == "" {
		add("auth.secret is required when auth is enabled")
	}
	if len(c.Auth.Clients) > 0 && !c.Auth.Enabled {
		add("auth.clients requires auth.enabled")
	}
	ids := make([]string, 0, len(c.Auth.Clients))
	for id := range c.Auth.Clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := auth.ValidHash(c.Auth.Clients[id]); err != nil {
			add("auth.clients.%s: %v", id, err)
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		add("metrics.path must start with '/', got: %s", c.Metrics.Path)
	}

	if c.Profiling.Enabled && !strings.HasPrefix(c.Profiling.Path, "/") {
		add("profiling.path must start with '/', got: %s", c.Profiling.Path)
	}
	if c.Profiling.Enabled && !c.Auth.Enabled {
		add("profiling requires auth.enabled")
	}

	if c.Docs.OutputDir == "" {
		add("docs.output_dir is required")
	}

	return errors.Join(errs...)
}

// ProjectRoot returns the first config file found walking up from the
// working directory.
func ProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found", FileNames[0])
		}
		dir = parent
	}
}
