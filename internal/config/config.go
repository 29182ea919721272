package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/fluxbase-eu/criteria/internal/observability"
	"github.com/fluxbase-eu/criteria/internal/permit"
	"github.com/fluxbase-eu/criteria/internal/resolver"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Order    OrderConfig    `mapstructure:"order"`
	Pager    PagerConfig    `mapstructure:"pager"`
	Tables   []TableConfig  `mapstructure:"tables"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Debug    bool           `mapstructure:"debug"`
}

// TracingConfig contains OpenTelemetry settings
type TracingConfig = observability.TracerConfig

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`

	// RateLimit is the number of criteria requests allowed per client and
	// window. Zero disables limiting.
	RateLimit       int           `mapstructure:"rate_limit"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
}

// DatabaseConfig contains PostgreSQL connection settings. The database is
// only used to introspect table columns into permits and is optional.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	Schema          string        `mapstructure:"schema"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int32         `mapstructure:"max_connections"`
	MinConnections  int32         `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheck     time.Duration `mapstructure:"health_check_period"`
	SchemaCacheTTL  time.Duration `mapstructure:"schema_cache_ttl"`
}

// FilterConfig contains filter resolver settings
type FilterConfig struct {
	Limit        int               `mapstructure:"limit"`
	MinLength    int               `mapstructure:"min_length"`
	ParameterMap map[string]string `mapstructure:"parameter_map"`
}

// OrderConfig contains order resolver settings
type OrderConfig struct {
	Limit        int               `mapstructure:"limit"`
	ParameterMap map[string]string `mapstructure:"parameter_map"`
}

// PagerConfig contains pager resolver settings. When PageSizes is set the
// pager only accepts the enumerated sizes, otherwise limits are clamped to
// MaxLimit.
type PagerConfig struct {
	PageSizes    []int             `mapstructure:"page_sizes"`
	MaxLimit     int               `mapstructure:"max_limit"`
	ParameterMap map[string]string `mapstructure:"parameter_map"`
}

// TableConfig is a static allow-list for one table. A table without fields
// takes its permit from the database.
type TableConfig struct {
	Name   string         `mapstructure:"name"`
	Schema string         `mapstructure:"schema"`
	Fields []permit.Field `mapstructure:"fields"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from path, or from the default locations when
// path is empty.
func LoadFile(path string) (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("criteria")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/criteria")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("CRITERIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Info().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Info().Str("file", v.ConfigFileUsed()).Msg("Config file loaded")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads environment variables from .env file
func loadEnvFile() error {
	locations := []string{
		".env",
		".env.local",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err != nil {
				return fmt.Errorf("error loading .env file from %s: %w", location, err)
			}
			log.Info().Str("file", location).Msg(".env file loaded")
			return nil
		}
	}

	return fmt.Errorf("no .env file found")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.body_limit", 1024*1024) // 1MB
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_limit_window", "1m")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.database", "postgres")
	v.SetDefault("database.schema", "public")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "1m")
	v.SetDefault("database.schema_cache_ttl", "5m")

	// Resolver defaults
	v.SetDefault("filter.limit", resolver.DefaultFilterLimit)
	v.SetDefault("filter.min_length", resolver.DefaultFilterMinLength)
	v.SetDefault("order.limit", resolver.DefaultOrderLimit)
	v.SetDefault("pager.max_limit", resolver.DefaultMaxLimit)

	// Tracing defaults
	tracing := observability.DefaultTracerConfig()
	v.SetDefault("tracing.enabled", tracing.Enabled)
	v.SetDefault("tracing.endpoint", tracing.Endpoint)
	v.SetDefault("tracing.service_name", tracing.ServiceName)
	v.SetDefault("tracing.environment", tracing.Environment)
	v.SetDefault("tracing.sample_rate", tracing.SampleRate)
	v.SetDefault("tracing.insecure", tracing.Insecure)

	v.SetDefault("debug", false)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server configuration error: %w", err)
	}

	if c.Database.Enabled {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database configuration error: %w", err)
		}
	}

	if err := c.Filter.Validate(); err != nil {
		return fmt.Errorf("filter configuration error: %w", err)
	}
	if err := c.Order.Validate(); err != nil {
		return fmt.Errorf("order configuration error: %w", err)
	}
	if err := c.Pager.Validate(); err != nil {
		return fmt.Errorf("pager configuration error: %w", err)
	}
	if err := validateTracing(&c.Tracing); err != nil {
		return fmt.Errorf("tracing configuration error: %w", err)
	}

	seen := make(map[string]bool, len(c.Tables))
	for i := range c.Tables {
		t := &c.Tables[i]
		if err := t.Validate(); err != nil {
			return fmt.Errorf("table configuration error: %w", err)
		}
		if seen[t.Name] {
			return fmt.Errorf("table %q is configured twice", t.Name)
		}
		seen[t.Name] = true
		if len(t.Fields) == 0 && !c.Database.Enabled {
			return fmt.Errorf("table %q has no fields and the database is disabled", t.Name)
		}
	}

	return nil
}

// Validate validates server configuration
func (sc *ServerConfig) Validate() error {
	if sc.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if sc.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive")
	}
	if sc.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive")
	}
	if sc.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be positive")
	}
	if sc.BodyLimit <= 0 {
		return fmt.Errorf("body_limit must be positive")
	}
	if sc.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative")
	}
	if sc.RateLimit > 0 && sc.RateLimitWindow <= 0 {
		return fmt.Errorf("rate_limit_window must be positive")
	}
	return nil
}

func validateTracing(tc *TracingConfig) error {
	if !tc.Enabled {
		return nil
	}
	if tc.Endpoint == "" {
		return fmt.Errorf("tracing endpoint cannot be empty")
	}
	if tc.SampleRate < 0 || tc.SampleRate > 1 {
		return fmt.Errorf("sample_rate must be between 0 and 1")
	}
	return nil
}

// Validate validates database configuration
func (dc *DatabaseConfig) Validate() error {
	if dc.Host == "" {
		return fmt.Errorf("database host cannot be empty")
	}
	if dc.Port <= 0 || dc.Port > 65535 {
		return fmt.Errorf("database port must be between 1 and 65535")
	}
	if dc.User == "" {
		return fmt.Errorf("database user cannot be empty")
	}
	if dc.Database == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if dc.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive")
	}
	if dc.MinConnections < 0 {
		return fmt.Errorf("min_connections cannot be negative")
	}
	if dc.MaxConnections < dc.MinConnections {
		return fmt.Errorf("max_connections must be greater than or equal to min_connections")
	}
	if dc.SchemaCacheTTL < 0 {
		return fmt.Errorf("schema_cache_ttl cannot be negative")
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (dc *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		dc.User, dc.Password, dc.Host, dc.Port, dc.Database, dc.SSLMode)
}

// Validate validates filter configuration
func (fc *FilterConfig) Validate() error {
	if fc.Limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	if fc.MinLength < 0 {
		return fmt.Errorf("min_length cannot be negative")
	}
	return nil
}

// Validate validates order configuration
func (oc *OrderConfig) Validate() error {
	if oc.Limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	return nil
}

// Validate validates pager configuration
func (pc *PagerConfig) Validate() error {
	for _, size := range pc.PageSizes {
		if size <= 0 {
			return fmt.Errorf("page_sizes must be positive, got %d", size)
		}
	}
	if len(pc.PageSizes) == 0 && pc.MaxLimit <= 0 {
		return fmt.Errorf("max_limit must be positive")
	}
	return nil
}

// Validate validates a table allow-list
func (tc *TableConfig) Validate() error {
	if tc.Name == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	if err := permit.New(tc.Fields...).Validate(); err != nil {
		return fmt.Errorf("table %q: %w", tc.Name, err)
	}
	return nil
}

// Table returns the configuration of the named table.
func (c *Config) Table(name string) (*TableConfig, bool) {
	for i := range c.Tables {
		if c.Tables[i].Name == name {
			return &c.Tables[i], true
		}
	}
	return nil, false
}

// Permit returns the static allow-list of the table, nil when it has none.
func (tc *TableConfig) Permit() *permit.Permit {
	if len(tc.Fields) == 0 {
		return nil
	}
	return permit.New(tc.Fields...)
}

// Resolver builds a filter resolver for p.
func (fc *FilterConfig) Resolver(p *permit.Permit) *resolver.FilterResolver {
	r := resolver.NewFilterResolver().
		SetLimit(fc.Limit).
		SetMinLength(fc.MinLength).
		SetPermit(p)
	if len(fc.ParameterMap) > 0 {
		r.SetParameterMap(resolver.DefaultFilterMap().Merge(fc.ParameterMap))
	}
	return r
}

// Resolver builds an order resolver for p.
func (oc *OrderConfig) Resolver(p *permit.Permit) *resolver.OrderResolver {
	r := resolver.NewOrderResolver().
		SetLimit(oc.Limit).
		SetPermit(p)
	if len(oc.ParameterMap) > 0 {
		r.SetParameterMap(resolver.DefaultOrderMap().Merge(oc.ParameterMap))
	}
	return r
}

// Resolver builds a pager resolver.
func (pc *PagerConfig) Resolver() *resolver.PagerResolver {
	r := resolver.NewPagerResolver()
	if len(pc.PageSizes) > 0 {
		r.SetPageSizes(pc.PageSizes...)
	} else {
		r.SetMaxLimit(pc.MaxLimit)
	}
	if len(pc.ParameterMap) > 0 {
		r.SetParameterMap(resolver.DefaultPagerMap().Merge(pc.ParameterMap))
	}
	return r
}

// Chain builds the filter, order and pager chain for p.
func (c *Config) Chain(p *permit.Permit) *resolver.Chain {
	return resolver.NewDefaultChain(c.Filter.Resolver(p), c.Order.Resolver(p), c.Pager.Resolver())
}
