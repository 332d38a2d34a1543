// Package config loads process configuration from config.yaml, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/rpattn/sapingest/internal/db"
	"github.com/rpattn/sapingest/internal/ingestion"
	"github.com/rpattn/sapingest/internal/lock"
	"github.com/rpattn/sapingest/internal/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SAPINGEST_SERVER_ADDR.
const EnvPrefix = "SAPINGEST"

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Config is the complete process configuration.
type Config struct {
	Database db.Config        `mapstructure:"database"`
	Server   ServerConfig     `mapstructure:"server"`
	Layout   ingestion.Layout `mapstructure:"layout"`
	Lock     lock.Config      `mapstructure:"lock"`
	Log      logging.Config   `mapstructure:"log"`

	// Source is the config file that was read, empty when none was found.
	Source string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	dbDefaults := db.DefaultConfig()
	v.SetDefault("database.host", dbDefaults.Host)
	v.SetDefault("database.port", dbDefaults.Port)
	v.SetDefault("database.user", dbDefaults.User)
	v.SetDefault("database.password", dbDefaults.Password)
	v.SetDefault("database.dbname", dbDefaults.DBName)
	v.SetDefault("database.sslmode", dbDefaults.SSLMode)
	v.SetDefault("database.max_conns", dbDefaults.MaxConns)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	layout := ingestion.DefaultLayout()
	v.SetDefault("layout.sheet", layout.SheetName)
	v.SetDefault("layout.header_row", layout.HeaderRow)
	v.SetDefault("layout.legend_rows", []int{})
	v.SetDefault("layout.first_data_row", layout.FirstDataRow)
	v.SetDefault("layout.raw_cell_values", layout.RawCellValues)

	v.SetDefault("lock.enabled", false)
	v.SetDefault("lock.redis_addr", "localhost:6379")
	v.SetDefault("lock.password", "")
	v.SetDefault("lock.db", 0)
	v.SetDefault("lock.ttl", 15*time.Minute)
	v.SetDefault("lock.wait", time.Duration(0))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads config.yaml from configPath (optional), then .env, then the
// environment. Later sources win.
func Load(configPath string) (Config, error) {
	if err := godotenv.Load(filepath.Join(configPath, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Plain DB_* variables are still honoured for the database connection.
	for _, key := range []string{"host", "port", "user", "password", "dbname", "sslmode"} {
		if err := v.BindEnv("database."+key, EnvPrefix+"_DATABASE_"+strings.ToUpper(key), "DB_"+strings.ToUpper(key)); err != nil {
			return Config{}, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Source = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c Config) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr is required")
	}
	if c.Lock.Enabled && strings.TrimSpace(c.Lock.RedisAddr) == "" {
		return errors.New("lock.redis_addr is required when locking is enabled")
	}
	return nil
}
