package config

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`
	Load     LoadConfig     `yaml:"load" mapstructure:"load"`
	Wait     WaitConfig     `yaml:"wait" mapstructure:"wait"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DatabaseConfig holds PostGIS connection settings. URL, when set, wins over
// the individual fields.
type DatabaseConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	AdminURL string `yaml:"admin_url" mapstructure:"admin_url"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Name     string `yaml:"name" mapstructure:"name"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
	MaxConns int    `yaml:"max_conns" mapstructure:"max_conns"`
}

// SourceConfig locates the input files.
type SourceConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Suffix string `yaml:"suffix" mapstructure:"suffix"`
}

// LoadConfig configures how validated features are written.
type LoadConfig struct {
	Strategy    string `yaml:"strategy" mapstructure:"strategy"`
	CommitMode  string `yaml:"commit_mode" mapstructure:"commit_mode"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
	Table       string `yaml:"table" mapstructure:"table"`
}

// WaitConfig controls how long to wait for the database to come up.
type WaitConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// legacyEnv maps config keys to the environment variables used by the
// Postgres container image and earlier deployments of the loader.
var legacyEnv = map[string]string{
	"database.name":     "POSTGRES_DB",
	"database.user":     "POSTGRES_USER",
	"database.password": "POSTGRES_PASSWORD",
	"database.host":     "DB_HOST",
	"database.port":     "DB_PORT",
	"source.dir":        "GEOJSON_DIR",
}

// Load reads configuration from .env, geoload.yaml and the environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("geoload")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := "GEOLOAD_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", legacy)
		}
	}

	// Defaults
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("source.dir", "/geojson")
	v.SetDefault("source.suffix", ".geojson")
	v.SetDefault("load.strategy", "insert")
	v.SetDefault("load.commit_mode", "run")
	v.SetDefault("load.concurrency", 1)
	v.SetDefault("load.batch_size", 5000)
	v.SetDefault("load.schema", "public")
	v.SetDefault("load.table", "geo_features")
	v.SetDefault("wait.max_attempts", 30)
	v.SetDefault("wait.initial_backoff_ms", 500)
	v.SetDefault("wait.max_backoff_ms", 5000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings the load command depends on. All missing
// connection settings are reported together.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		var missing []string
		if c.Database.Name == "" {
			missing = append(missing, legacyEnv["database.name"])
		}
		if c.Database.User == "" {
			missing = append(missing, legacyEnv["database.user"])
		}
		if c.Database.Password == "" {
			missing = append(missing, legacyEnv["database.password"])
		}
		if c.Database.Host == "" {
			missing = append(missing, legacyEnv["database.host"])
		}
		if c.Database.Port == 0 {
			missing = append(missing, legacyEnv["database.port"])
		}
		if len(missing) > 0 {
			return eris.Errorf("config: missing required settings (set database.url or %s)", strings.Join(missing, ", "))
		}
	}

	switch c.Load.Strategy {
	case "insert", "copy":
	default:
		return eris.Errorf("config: load.strategy must be insert or copy, got %q", c.Load.Strategy)
	}

	switch c.Load.CommitMode {
	case "run", "file":
	default:
		return eris.Errorf("config: load.commit_mode must be run or file, got %q", c.Load.CommitMode)
	}

	if c.Load.Concurrency < 1 {
		return eris.Errorf("config: load.concurrency must be at least 1, got %d", c.Load.Concurrency)
	}
	if c.Load.Concurrency > 1 && c.Load.CommitMode != "file" {
		return eris.New("config: load.concurrency > 1 requires load.commit_mode=file")
	}

	if c.Source.Suffix == "" {
		return eris.New("config: source.suffix must not be empty")
	}

	return nil
}

// DSN returns the connection string for the application database.
func (c *Config) DSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Database.User, c.Database.Password),
		Host:   net.JoinHostPort(c.Database.Host, strconv.Itoa(c.Database.Port)),
		Path:   "/" + c.Database.Name,
	}
	if c.Database.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.Database.SSLMode}}.Encode()
	}
	return u.String()
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
