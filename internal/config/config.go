// Package config loads service configuration from defaults, an optional
// YAML file, .env files and SITECOVER_* environment variables, in increasing
// order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/signalsfoundry/sitecover/core"
	"github.com/signalsfoundry/sitecover/internal/logging"
	"github.com/signalsfoundry/sitecover/internal/observability"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SITECOVER"

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	AddSource bool   `mapstructure:"add_source"`
}

type EngineConfig struct {
	Epsilon   float64 `mapstructure:"epsilon"`
	EarlyExit bool    `mapstructure:"early_exit"`
	Backend   string  `mapstructure:"backend"`
}

type LinkConfig struct {
	Template    string `mapstructure:"template"`
	Placeholder string `mapstructure:"placeholder"`
	Quote       string `mapstructure:"quote"`
	QueryEscape bool   `mapstructure:"query_escape"`
}

// OverlaySearchConfig describes the upstream imagery search endpoint.
// QueryParams is "k=v&k2=v2"; Headers is "Name:value,Other:value".
type OverlaySearchConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Endpoint          string        `mapstructure:"endpoint"`
	QueryParams       string        `mapstructure:"query_params"`
	Headers           string        `mapstructure:"headers"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RateLimit         float64       `mapstructure:"rate_limit"`
	Burst             int           `mapstructure:"burst"`
	ImagingTechniques []string      `mapstructure:"imaging_techniques"`
}

type EnrichConfig struct {
	Concurrency  int           `mapstructure:"concurrency"`
	Window       time.Duration `mapstructure:"window"`
	// SharedSearch runs one overlay search over the merged footprints of a
	// group instead of one per site.
	SharedSearch bool          `mapstructure:"shared_search"`
}

type CacheConfig struct {
	Backend       string        `mapstructure:"backend"`
	TTL           time.Duration `mapstructure:"ttl"`
	MaxCost       int64         `mapstructure:"max_cost"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisPrefix   string        `mapstructure:"redis_prefix"`
}

type StoreConfig struct {
	PostgresDSN string `mapstructure:"postgres_dsn"`
	SeedFile    string `mapstructure:"seed_file"`
}

type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Groups   []int64       `mapstructure:"groups"`
}

type ServerConfig struct {
	GRPCAddr    string `mapstructure:"grpc_addr"`
	HTTPAddr    string `mapstructure:"http_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// SimulationConfig drives the synthetic overlay provider.
type SimulationConfig struct {
	TLEFile         string        `mapstructure:"tle_file"`
	FootprintKm     float64       `mapstructure:"footprint_km"`
	Step            time.Duration `mapstructure:"step"`
	ResolutionPerKm float64       `mapstructure:"resolution_per_km"`
}

// Config is the complete service configuration.
type Config struct {
	Log           LogConfig           `mapstructure:"log"`
	Engine        EngineConfig        `mapstructure:"engine"`
	Link          LinkConfig          `mapstructure:"link"`
	OverlaySearch OverlaySearchConfig `mapstructure:"overlay_search"`
	Enrich        EnrichConfig        `mapstructure:"enrich"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Store         StoreConfig         `mapstructure:"store"`
	Refresh       RefreshConfig       `mapstructure:"refresh"`
	Server        ServerConfig        `mapstructure:"server"`
	Tracing       TracingConfig       `mapstructure:"tracing"`
	Simulation    SimulationConfig    `mapstructure:"simulation"`
}

// LoadOptions selects the optional sources read by Load.
type LoadOptions struct {
	// ConfigFile is a YAML file; empty skips it.
	ConfigFile string
	// EnvFiles are loaded with godotenv before the environment is read.
	// Missing files are ignored. Existing variables are never overridden.
	EnvFiles []string
}

// Load builds a Config and validates it.
func Load(opts LoadOptions) (Config, error) {
	for _, f := range opts.EnvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without consulting any source.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.add_source", false)

	v.SetDefault("engine.epsilon", core.DefaultEpsilon)
	v.SetDefault("engine.early_exit", true)
	v.SetDefault("engine.backend", core.BackendPlanar)

	v.SetDefault("link.template", core.DefaultLinkTemplate)
	v.SetDefault("link.placeholder", core.DefaultPlaceholder)
	v.SetDefault("link.quote", core.DefaultQuote)
	v.SetDefault("link.query_escape", false)

	v.SetDefault("overlay_search.base_url", "")
	v.SetDefault("overlay_search.endpoint", "/search")
	v.SetDefault("overlay_search.query_params", "")
	v.SetDefault("overlay_search.headers", "")
	v.SetDefault("overlay_search.timeout", 15*time.Second)
	v.SetDefault("overlay_search.rate_limit", 5.0)
	v.SetDefault("overlay_search.burst", 5)
	v.SetDefault("overlay_search.imaging_techniques", []string{"EO"})

	v.SetDefault("enrich.concurrency", 4)
	v.SetDefault("enrich.window", 30*24*time.Hour)
	v.SetDefault("enrich.shared_search", false)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.max_cost", int64(100_000))
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_prefix", "sitecover:")

	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.seed_file", "")

	v.SetDefault("refresh.interval", 15*time.Minute)
	v.SetDefault("refresh.groups", []int64{})

	v.SetDefault("server.grpc_addr", ":50051")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.metrics_addr", ":9090")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "sitecover")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("simulation.tle_file", "")
	v.SetDefault("simulation.footprint_km", 40.0)
	v.SetDefault("simulation.step", time.Minute)
	v.SetDefault("simulation.resolution_per_km", 0.002)
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Link.Template) == "" {
		errs = append(errs, errors.New("link.template must not be empty"))
	}
	engine := c.CoreConfig()
	if err := engine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := core.OpsForBackend(c.Engine.Backend); err != nil {
		errs = append(errs, fmt.Errorf("engine.backend: %w", err))
	}
	switch strings.ToLower(c.Cache.Backend) {
	case "memory", "redis", "none":
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of memory, redis, none", c.Cache.Backend))
	}
	switch strings.ToLower(c.Tracing.Exporter) {
	case "", "stdout", "otlp", "otlpgrpc":
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter %q is not supported", c.Tracing.Exporter))
	}
	if c.Enrich.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("enrich.concurrency must be at least 1, got %d", c.Enrich.Concurrency))
	}
	if c.OverlaySearch.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("overlay_search.rate_limit must not be negative"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// CoreConfig converts the engine section.
func (c Config) CoreConfig() core.Config {
	return core.Config{Epsilon: c.Engine.Epsilon, EarlyExit: c.Engine.EarlyExit}
}

// LinkBuilder converts the link section.
func (c Config) LinkBuilder() core.LinkBuilder {
	return core.LinkBuilder{
		Template:    c.Link.Template,
		Placeholder: c.Link.Placeholder,
		Quote:       c.Link.Quote,
		QueryEscape: c.Link.QueryEscape,
	}
}

// LoggingConfig converts the log section.
func (c Config) LoggingConfig() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format, AddSource: c.Log.AddSource}
}

// TracingConfig converts the tracing section.
func (c Config) TracingConfig() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}

// ParseHeaders accepts either a JSON object or "Name:value,Other:value".
// Entries without a colon are ignored.
func ParseHeaders(raw string) map[string]string {
	out := make(map[string]string)
	if trimmed := strings.TrimSpace(raw); strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
			return out
		}
		out = make(map[string]string)
	}
	for _, part := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out[name] = strings.TrimSpace(value)
	}
	return out
}
