package config

import (
	"time"

	"github.com/hyperjump/nasab/internal/models"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.SessionTTL == 0 {
		cfg.Server.SessionTTL = 30 * time.Minute
	}
	if cfg.Backend.Kind == "" {
		if cfg.Backend.URL != "" {
			cfg.Backend.Kind = BackendElasticsearch
		} else {
			cfg.Backend.Kind = BackendLocal
		}
	}
	if cfg.Backend.Index == "" {
		cfg.Backend.Index = "pages"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 30 * time.Second
	}
	if cfg.Backend.LocalPath == "" {
		cfg.Backend.LocalPath = "/usr/local/var/nasab/data/indices/pages"
	}
	if cfg.Search.PageSize == 0 {
		cfg.Search.PageSize = models.DefaultSize
	}
	if cfg.Search.PagesPerBatch == 0 {
		cfg.Search.PagesPerBatch = 4
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = models.MaxResults
	}
	if cfg.Search.FragmentSize == 0 {
		cfg.Search.FragmentSize = 200
	}
	if cfg.Search.FragmentsCount == 0 {
		cfg.Search.FragmentsCount = 10
	}
	if cfg.Catalog.CachePath == "" {
		cfg.Catalog.CachePath = "/usr/local/var/nasab/data/db/catalog.db"
	}
	if cfg.Catalog.CacheTTL == 0 {
		cfg.Catalog.CacheTTL = 24 * time.Hour
	}
}
