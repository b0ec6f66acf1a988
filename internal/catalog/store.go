package catalog

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Store holds the current catalog and its load state. It is safe for
// concurrent use.
type Store struct {
	textsPath   string
	authorsPath string
	cache       *Cache
	logger      *zap.Logger

	mu      sync.RWMutex
	catalog *Catalog
	loading bool
	err     error
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCache makes Load consult and refresh c.
func WithCache(c *Cache) StoreOption {
	return func(s *Store) { s.cache = c }
}

// WithStoreLogger sets the logger.
func WithStoreLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore returns an unloaded store for the given workbooks.
func NewStore(textsPath, authorsPath string, opts ...StoreOption) *Store {
	s := &Store{
		textsPath:   textsPath,
		authorsPath: authorsPath,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Paths returns the workbook paths.
func (s *Store) Paths() (texts, authors string) {
	return s.textsPath, s.authorsPath
}

// Load uses a fresh cached catalog when there is one, otherwise reads the
// workbooks and refreshes the cache.
func (s *Store) Load(ctx context.Context) error {
	if s.cache != nil {
		cat, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("metadata cache unreadable", zap.Error(err))
		} else if cat != nil {
			s.logger.Debug("using cached metadata", zap.Int("texts", len(cat.Texts)))
			s.set(cat, nil)
			return nil
		}
	}
	return s.Reload(ctx)
}

// Reload reads the workbooks, bypassing the cache. On failure the previous
// catalog stays in place and the error is kept for Status.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	s.logger.Info("loading metadata", zap.String("texts", s.textsPath), zap.String("authors", s.authorsPath))
	cat, err := LoadWorkbooks(s.textsPath, s.authorsPath)
	if err != nil {
		s.logger.Error("failed to load metadata", zap.Error(err))
		s.mu.Lock()
		s.loading = false
		s.err = err
		s.mu.Unlock()
		return err
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, cat); err != nil {
			s.logger.Warn("failed to cache metadata", zap.Error(err))
		}
	}
	s.set(cat, nil)
	s.logger.Info("metadata loaded",
		zap.Int("texts", len(cat.Texts)),
		zap.Int("authors", len(cat.Authors)),
		zap.Int("collections", len(cat.Collections)))
	return nil
}

func (s *Store) set(cat *Catalog, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = cat
	s.err = err
	s.loading = false
}

// Set installs cat directly.
func (s *Store) Set(cat *Catalog) {
	s.set(cat, nil)
}

// Catalog returns the current catalog or ErrUnavailable.
func (s *Store) Catalog() (*Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.catalog == nil {
		if s.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, s.err)
		}
		return nil, ErrUnavailable
	}
	return s.catalog, nil
}

// Status reports whether a load is running and the last load error.
func (s *Store) Status() (loading bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading, s.err
}

// Title returns the title of a text, or UnknownTitle when the catalog is
// not loaded or lacks the id.
func (s *Store) Title(id int) string {
	cat, err := s.Catalog()
	if err != nil {
		return UnknownTitle
	}
	return cat.Title(id)
}
