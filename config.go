package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	sourceDir      = "dir"
	sourceHTTP     = "http"
	sourcePostgres = "postgres"
)

type SourceConfig struct {
	Kind        string        `yaml:"kind"`     // dir | http | postgres
	DataDir     string        `yaml:"data_dir"` // default ./data
	BaseURL     string        `yaml:"base_url"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

type DatabaseConfig struct {
	URL    string `yaml:"url"`
	Schema string `yaml:"schema"`
}

type ServerConfig struct {
	ListenAddress string        `yaml:"listen_address"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
}

type Config struct {
	Datasets    []string       `yaml:"datasets"`
	Source      SourceConfig   `yaml:"source"`
	Database    DatabaseConfig `yaml:"database"`
	Server      ServerConfig   `yaml:"server"`
	Concurrency int            `yaml:"concurrency"`
	Verbose     bool           `yaml:"verbose"`
}

// loadConfig reads an optional .env file and an optional YAML file, then
// applies environment overrides and defaults. A missing file at the
// default path is not an error. Callers validate after applying flags.
func loadConfig(path string, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && path == defaultConfigPath:
		default:
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	applyDefaults(&cfg)
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if value := envValue("SAFETY_AUDIT_DB_URL", "DATABASE_URL"); value != "" {
		c.Database.URL = value
	}
	if value := envValue("SAFETY_AUDIT_DATA_DIR"); value != "" {
		c.Source.DataDir = value
	}
	if value := envValue("SAFETY_AUDIT_BASE_URL"); value != "" {
		c.Source.BaseURL = value
	}
	if value := envValue("SAFETY_AUDIT_SOURCE"); value != "" {
		c.Source.Kind = value
	}
	if value := envValue("SAFETY_AUDIT_LISTEN"); value != "" {
		c.Server.ListenAddress = value
	}
}

func envValue(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

func applyDefaults(cfg *Config) {
	if len(cfg.Datasets) == 0 {
		cfg.Datasets = append([]string{}, DefaultDatasets...)
	}
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = sourceDir
	}
	if cfg.Source.DataDir == "" {
		cfg.Source.DataDir = "data"
	}
	if cfg.Source.HTTPTimeout <= 0 {
		cfg.Source.HTTPTimeout = 15 * time.Second
	}
	if cfg.Database.Schema == "" {
		cfg.Database.Schema = "safety_audit"
	}
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = ":8080"
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout <= 0 {
		cfg.Server.IdleTimeout = 60 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
}

func validateConfig(cfg Config) error {
	switch cfg.Source.Kind {
	case sourceDir:
	case sourceHTTP:
		if strings.TrimSpace(cfg.Source.BaseURL) == "" {
			return errors.New("source.base_url is required for the http source")
		}
	case sourcePostgres:
		if strings.TrimSpace(cfg.Database.URL) == "" {
			return errors.New("database URL missing; set SAFETY_AUDIT_DB_URL or DATABASE_URL")
		}
	default:
		return fmt.Errorf("unsupported source kind: %s", cfg.Source.Kind)
	}
	if _, err := sanitizeSchema(cfg.Database.Schema); err != nil {
		return err
	}
	seen := make(map[string]bool, len(cfg.Datasets))
	for _, identifier := range cfg.Datasets {
		identifier = strings.TrimSpace(identifier)
		if identifier == "" {
			return errors.New("datasets must not contain empty identifiers")
		}
		if seen[identifier] {
			return fmt.Errorf("duplicate dataset identifier: %s", identifier)
		}
		seen[identifier] = true
	}
	return nil
}
