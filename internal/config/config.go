// Package config handles loading and parsing application configuration.
// It supports these sources (later ones override earlier ones):
//  1. An optional .env file in the working directory
//  2. A YAML file given by CONFIG_PATH=/path/to/config.yaml or
//     --config=/path/to/config.yaml
//  3. Environment variables (env:"..." tags below)
//
// Without a YAML file the configuration comes from the environment alone,
// so `MONGODB_URI=... PORT=5000 students-api` works out of the box.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Supported storage drivers.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Config is the root configuration structure.
// Every field maps to a key in the YAML file AND can be overridden
// by the corresponding environment variable (env:"...").
type Config struct {
	// Env controls log format and verbosity.
	// Valid values: "dev", "staging", "prod"
	Env string `yaml:"env" env:"ENV" env-default:"dev"`

	Storage Storage `yaml:"storage"`

	// HTTPServer is embedded so its fields are promoted: cfg.Addr works
	// as well as cfg.HTTPServer.Addr.
	HTTPServer `yaml:"http_server"`
}

// Storage selects and configures the persistence backend.
type Storage struct {
	// Driver is "mongo" (default) or "sqlite".
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"mongo"`

	// MongoURI is the MongoDB connection string. Required for mongo.
	MongoURI string `yaml:"mongo_uri" env:"MONGODB_URI"`

	// Database and Collection name the MongoDB namespace.
	Database   string `yaml:"database" env:"DB_NAME" env-default:"student_db"`
	Collection string `yaml:"collection" env:"DB_COLLECTION" env-default:"students"`

	// StoragePath is the filesystem path to the SQLite .db file.
	// Required for sqlite.
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH"`

	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"DB_CONNECT_TIMEOUT" env-default:"10s"`
}

// HTTPServer holds settings specific to the HTTP server.
// Nested under http_server: in the YAML file.
type HTTPServer struct {
	// Addr is the TCP address the server listens on, e.g. "localhost:8082".
	// When empty it becomes ":" + Port.
	Addr string `yaml:"address" env:"HTTP_SERVER_ADDR"`
	Port int    `yaml:"port" env:"PORT" env-default:"5000"`

	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

// MustLoad reads, validates, and returns the application config.
//
// Functions prefixed with "Must" are allowed to fatal on failure: if this
// returns, the config is valid.
func MustLoad() *Config {
	// A missing .env is fine; a broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("cannot read .env: %s", err.Error())
	}

	// ── Source 1: environment variable ───────────────────────────────
	configPath := os.Getenv("CONFIG_PATH")

	// ── Source 2: command-line flag ───────────────────────────────────
	if configPath == "" {
		flags := flag.String("config", "", "Path to the configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err.Error())
	}

	return cfg
}

// Load reads the YAML file at path (if path is non-empty) plus the
// environment, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		// Verify the file exists first for a clearer message than the
		// "open: no such file" cleanenv would give later.
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if cfg.Addr == "" {
		cfg.Addr = fmt.Sprintf(":%d", cfg.Port)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			return errors.New("storage.mongo_uri (MONGODB_URI) is required for the mongo driver")
		}
	case DriverSQLite:
		if c.Storage.StoragePath == "" {
			return errors.New("storage.storage_path (STORAGE_PATH) is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	return nil
}
