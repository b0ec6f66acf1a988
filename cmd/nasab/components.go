package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/nasab/internal/backend"
	"github.com/hyperjump/nasab/internal/catalog"
	"github.com/hyperjump/nasab/internal/config"
	"github.com/hyperjump/nasab/internal/metrics"
	"github.com/hyperjump/nasab/internal/pager"
	"github.com/hyperjump/nasab/internal/query"
	"github.com/hyperjump/nasab/internal/session"
)

// Components holds initialized services.
type Components struct {
	Metrics  *metrics.Recorder
	Backend  *backend.Instrumented
	Local    *backend.Local
	Catalog  *catalog.Store
	Cache    *catalog.Cache
	Sessions *session.Manager
}

func (c *Components) Close() {
	if c.Sessions != nil {
		c.Sessions.CloseAll()
	}
	if c.Backend != nil {
		_ = c.Backend.Close()
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
}

// searchOptions maps the search section onto backend request options.
func searchOptions(cfg *config.SearchConfig) query.Options {
	opts := query.DefaultOptions()
	opts.FragmentSize = cfg.FragmentSize
	opts.Fragments[query.FieldContent] = cfg.FragmentsCount
	return opts
}

func openBackend(cfg *config.Config, logger *zap.Logger) (backend.Backend, *backend.Local, error) {
	switch cfg.Backend.Kind {
	case config.BackendElasticsearch:
		opts := searchOptions(&cfg.Search)
		es, err := backend.NewElasticsearch(backend.ElasticsearchConfig{
			URL:      cfg.Backend.URL,
			Username: cfg.Backend.Username,
			Password: cfg.Backend.Password,
			Index:    cfg.Backend.Index,
			Timeout:  cfg.Backend.Timeout,
			Options:  &opts,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return es, nil, nil
	case config.BackendLocal:
		if err := os.MkdirAll(filepath.Dir(cfg.Backend.LocalPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		local, err := backend.OpenLocal(cfg.Backend.LocalPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return local, local, nil
	}
	return nil, nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
}

// initializeComponents opens the backend and, when workbooks are
// configured, the catalog store. The catalog is not loaded here.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{Metrics: metrics.New()}

	b, local, err := openBackend(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize backend: %w", err)
	}
	c.Backend = backend.Instrument(b, c.Metrics, logger)
	c.Local = local
	logger.Info("backend initialized", zap.String("backend", b.Name()))

	titles := func(int) string { return catalog.UnknownTitle }
	if cfg.Catalog.TextsPath != "" && cfg.Catalog.AuthorsPath != "" {
		storeOpts := []catalog.StoreOption{catalog.WithStoreLogger(logger)}
		if cfg.Catalog.CachePath != "" {
			cache, err := catalog.OpenCache(cfg.Catalog.CachePath, cfg.Catalog.CacheTTL)
			if err != nil {
				logger.Warn("metadata cache disabled", zap.Error(err))
			} else {
				c.Cache = cache
				storeOpts = append(storeOpts, catalog.WithCache(cache))
			}
		}
		c.Catalog = catalog.NewStore(cfg.Catalog.TextsPath, cfg.Catalog.AuthorsPath, storeOpts...)
		titles = c.Catalog.Title
	}

	c.Sessions = session.NewManager(c.Backend, c.Metrics, logger,
		session.WithTitles(titles),
		session.WithLogger(logger),
		session.WithPagerOptions(
			pager.WithPageSize(cfg.Search.PageSize),
			pager.WithPagesPerBatch(cfg.Search.PagesPerBatch),
			pager.WithMaxResults(cfg.Search.MaxResults),
			pager.WithMetrics(c.Metrics),
			pager.WithLogger(logger),
		),
	)
	return c, nil
}

// loadCatalog loads the catalog, reporting ErrUnavailable when no workbooks
// are configured.
func (c *Components) loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	if c.Catalog == nil {
		return nil, fmt.Errorf("%w: catalog.texts_path and catalog.authors_path are not set", catalog.ErrUnavailable)
	}
	if err := c.Catalog.Load(ctx); err != nil {
		return nil, err
	}
	return c.Catalog.Catalog()
}
