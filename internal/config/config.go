// Package config assembles run configuration from, in order of precedence,
// command-line flags (applied by the caller), PSGC_* environment variables,
// .env files, an optional psgcshape.yaml and built-in defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/psgc-shape/internal/normalize"
)

// EnvPrefix prefixes every environment variable read through viper.
const EnvPrefix = "PSGC"

// Database holds the run store connection settings.
type Database struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN renders the settings as a lib/pq connection string.
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// Server holds the report server settings.
type Server struct {
	Host string
	Port int
}

// Addr returns host:port.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Config is the resolved configuration of one invocation.
type Config struct {
	Geometry   map[normalize.Tier]string
	Overrides  string
	OutputDir  string
	SampleSize int
	Watch      []string
	Store      bool
	Database   Database
	Server     Server

	LogLevel  string
	LogFormat string
	LogOutput string
	NoColor   bool

	ConfigFile string
}

// Load reads configuration from every source except flags.
func Load() (*Config, error) {
	LoadEnv()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	v.SetConfigName("psgcshape")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output.dir", "dist")
	v.SetDefault("sample.size", 20)
	v.SetDefault("store.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "psgc")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "psgc_shape")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	for tier := normalize.TierRegion; tier <= normalize.TierBarangay; tier++ {
		v.SetDefault("geometry."+tier.String(), "")
	}
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Geometry:   make(map[normalize.Tier]string),
		Overrides:  v.GetString("overrides"),
		OutputDir:  v.GetString("output.dir"),
		SampleSize: v.GetInt("sample.size"),
		Watch:      SplitList(v.GetString("watch")),
		Store:      v.GetBool("store.enabled"),
		Database: Database{
			Host:     v.GetString("db.host"),
			Port:     v.GetInt("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			Name:     v.GetString("db.name"),
			SSLMode:  v.GetString("db.sslmode"),
		},
		Server: Server{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		LogLevel:   GetEnv("LOG_LEVEL", "info"),
		LogFormat:  GetEnv("LOG_FORMAT", "auto"),
		LogOutput:  GetEnv("LOG_OUTPUT", "stderr"),
		NoColor:    GetEnvBool("NO_COLOR", false),
		ConfigFile: v.ConfigFileUsed(),
	}
	for tier := normalize.TierRegion; tier <= normalize.TierBarangay; tier++ {
		if path := v.GetString("geometry." + tier.String()); path != "" {
			cfg.Geometry[tier] = path
		}
	}
	return cfg
}

// SplitList splits a comma separated value, dropping blanks. Names may
// contain spaces, so whitespace is not a separator.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
