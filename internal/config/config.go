// Package config provides configuration loading and structs for the nasab
// server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend kinds.
const (
	BackendElasticsearch = "elasticsearch"
	BackendLocal         = "local"
)

// Environment variables that override the backend section.
const (
	EnvAPIURL   = "NASAB_API_URL"
	EnvAPIUser  = "NASAB_API_USER"
	EnvAPIPass  = "NASAB_API_PASS"
	EnvAPIIndex = "NASAB_API_INDEX"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Search  SearchConfig  `yaml:"search"`
	Catalog CatalogConfig `yaml:"catalog"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// SessionTTL closes sessions idle for longer.
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// BackendConfig selects and configures the search backend.
type BackendConfig struct {
	Kind     string        `yaml:"kind"`
	URL      string        `yaml:"url"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Index    string        `yaml:"index"`
	Timeout  time.Duration `yaml:"timeout"`
	// LocalPath is the Bleve index directory used by the local backend.
	LocalPath string `yaml:"local_path"`
}

// SearchConfig holds paging and highlight settings.
type SearchConfig struct {
	PageSize       int `yaml:"page_size"`
	PagesPerBatch  int `yaml:"pages_per_batch"`
	MaxResults     int `yaml:"max_results"`
	FragmentSize   int `yaml:"fragment_size"`
	FragmentsCount int `yaml:"fragments_count"`
}

// CatalogConfig locates the metadata workbooks and their cache.
type CatalogConfig struct {
	TextsPath   string        `yaml:"texts_path"`
	AuthorsPath string        `yaml:"authors_path"`
	CachePath   string        `yaml:"cache_path"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	Watch       bool          `yaml:"watch"`
}

// Load reads and parses the config file at path, applies environment
// overrides, expands paths and applies defaults. A .env file next to the
// config, or in the working directory, is loaded first when present.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	loadDotEnv(configDir)
	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	cfg.Backend.LocalPath = expandPath(cfg.Backend.LocalPath, configDir)
	cfg.Catalog.TextsPath = expandPath(cfg.Catalog.TextsPath, configDir)
	cfg.Catalog.AuthorsPath = expandPath(cfg.Catalog.AuthorsPath, configDir)
	cfg.Catalog.CachePath = expandPath(cfg.Catalog.CachePath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the defaults with environment overrides, for running
// without a config file.
func Default() *Config {
	var cfg Config
	loadDotEnv(".")
	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)
	return &cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case BackendElasticsearch:
		if c.Backend.URL == "" {
			return fmt.Errorf("backend.url is required for the %s backend", BackendElasticsearch)
		}
	case BackendLocal:
		if c.Backend.LocalPath == "" {
			return fmt.Errorf("backend.local_path is required for the %s backend", BackendLocal)
		}
	default:
		return fmt.Errorf("unknown backend kind %q", c.Backend.Kind)
	}
	if c.Search.MaxResults < c.Search.PageSize {
		return fmt.Errorf("search.max_results (%d) is smaller than search.page_size (%d)", c.Search.MaxResults, c.Search.PageSize)
	}
	return nil
}

// ApplyEnv overrides backend credentials from the environment.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv(EnvAPIUser); v != "" {
		cfg.Backend.Username = v
	}
	if v := os.Getenv(EnvAPIPass); v != "" {
		cfg.Backend.Password = v
	}
	if v := os.Getenv(EnvAPIIndex); v != "" {
		cfg.Backend.Index = v
	}
}

// loadDotEnv loads dir/.env, falling back to ./.env. Variables already set
// in the environment win.
func loadDotEnv(dir string) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
		return
	}
	_ = godotenv.Load()
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
