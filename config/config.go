/*
Package config loads server settings from an optional YAML file and the
environment.

PRECEDENCE (highest first):
  1. Environment: SHOPLEDGER_<SECTION>_<KEY>, e.g. SHOPLEDGER_HTTP_PORT
  2. Config file: the path given to Load, else config.yaml in . or ./config
  3. Defaults below

REQUIRED:
  auth.jwt_secret must be non-empty. db.driver must be sqlite or postgres,
  and postgres needs db.dsn.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTP HTTPConfig `mapstructure:"http"`
	DB   DBConfig   `mapstructure:"db"`
	Auth AuthConfig `mapstructure:"auth"`
	Log  LogConfig  `mapstructure:"log"`
	Seed SeedConfig `mapstructure:"seed"`
}

type HTTPConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | postgres
	Path   string `mapstructure:"path"`   // sqlite file, or ":memory:"
	DSN    string `mapstructure:"dsn"`    // postgres connection string
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// SeedConfig names an admin account created at startup if missing.
type SeedConfig struct {
	AdminEmail    string `mapstructure:"admin_email"`
	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`
}

const envPrefix = "SHOPLEDGER"

// Load reads configuration. An empty path searches for config.yaml; a
// missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", "shopledger.db")
	v.SetDefault("db.dsn", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("seed.admin_email", "")
	v.SetDefault("seed.admin_username", "admin")
	v.SetDefault("seed.admin_password", "")
}

func (c Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwt_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("config: auth.token_ttl must be positive")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("config: http.port %d out of range", c.HTTP.Port)
	}
	switch c.DB.Driver {
	case "sqlite":
		if c.DB.Path == "" {
			return errors.New("config: db.path is required for sqlite")
		}
	case "postgres":
		if c.DB.DSN == "" {
			return errors.New("config: db.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown db.driver %q", c.DB.Driver)
	}
	return nil
}
