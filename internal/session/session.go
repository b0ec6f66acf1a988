// Package session holds the state of one user's searches: the current
// parameters, the result pager and export.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/nasab/internal/export"
	"github.com/hyperjump/nasab/internal/models"
	"github.com/hyperjump/nasab/internal/pager"
	"github.com/hyperjump/nasab/internal/query"
)

// ErrClosed is returned by a session after Close.
var ErrClosed = errors.New("session closed")

// MaxPageButtons is how many page buttons the pagination window shows.
const MaxPageButtons = 3

// TitleFunc resolves a text id to a display title.
type TitleFunc func(textID int) string

// Hit is a result with its text title.
type Hit struct {
	models.SearchResult
	Title string `json:"title"`
}

// Result is one page of a search.
type Result struct {
	Query     string `json:"query"`
	Page      int    `json:"page"`
	PageCount int    `json:"page_count"`
	Total     int    `json:"total"`
	// WindowStart and WindowEnd bound the page buttons around Page.
	WindowStart int   `json:"window_start"`
	WindowEnd   int   `json:"window_end"`
	Hits        []Hit `json:"hits"`
}

// Session is an explicitly created, explicitly closed search context.
type Session struct {
	ID        string
	CreatedAt time.Time

	searcher pager.Searcher
	pager    *pager.Pager
	titles   TitleFunc
	logger   *zap.Logger

	mu       sync.Mutex
	params   SearchParams
	lastUsed time.Time
	closed   bool
}

// Option configures a Session.
type Option func(*Session)

// WithTitles sets the title resolver used for hits and exports.
func WithTitles(fn TitleFunc) Option {
	return func(s *Session) { s.titles = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPagerOptions passes options to the session's pager.
func WithPagerOptions(opts ...pager.Option) Option {
	return func(s *Session) { s.pager = pager.New(s.searcher, opts...) }
}

// New starts a session searching through searcher.
func New(searcher pager.Searcher, opts ...Option) *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		searcher:  searcher,
		titles:    func(int) string { return "" },
		logger:    zap.NewNop(),
		lastUsed:  now,
	}
	s.pager = pager.New(searcher)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Params returns the parameters of the last search.
func (s *Session) Params() SearchParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// LastUsed returns when the session last served a request.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) touch(p *SearchParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.lastUsed = time.Now()
	if p != nil {
		s.params = *p
	}
	return nil
}

func (s *Session) compose(p SearchParams) (*models.SearchConfig, error) {
	return query.Compose(p.Forms, p.SelectedTextIDs, 0, s.pager.PageSize())
}

// Search runs p and returns the requested page. Changing anything but the
// page starts a fresh result set; paging within a result set reuses cached
// batches.
func (s *Session) Search(ctx context.Context, p SearchParams) (*Result, error) {
	if err := s.touch(&p); err != nil {
		return nil, err
	}
	cfg, err := s.compose(p)
	if err != nil {
		return nil, err
	}
	s.pager.SetQuery(pager.Query{Forms: cfg.Forms, SelectedTextIDs: cfg.SelectedTextIDs})

	number := max(p.Page, 1)
	page, err := s.pager.Page(ctx, number)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("search page",
		zap.String("session", s.ID),
		zap.Int("page", number),
		zap.Int("total", page.Total))

	res := &Result{
		Query:     Encode(p),
		Page:      page.Number,
		PageCount: page.PageCount,
		Total:     page.Total,
		Hits:      make([]Hit, len(page.Hits)),
	}
	res.WindowStart, res.WindowEnd = pager.Window(page.Number, page.PageCount, MaxPageButtons)
	for i, h := range page.Hits {
		res.Hits[i] = Hit{SearchResult: h, Title: s.titles(h.TextID)}
	}
	return res, nil
}

// Export fetches every result of p up to the result limit in one request
// and flattens it into rows.
func (s *Session) Export(ctx context.Context, p SearchParams) ([]export.Row, error) {
	if err := s.touch(nil); err != nil {
		return nil, err
	}
	cfg, err := s.compose(p)
	if err != nil {
		return nil, err
	}

	s.pager.SetQuery(pager.Query{Forms: cfg.Forms, SelectedTextIDs: cfg.SelectedTextIDs})
	total, known := s.pager.Total()
	if !known {
		if _, err := s.pager.Page(ctx, 1); err != nil {
			return nil, err
		}
		total, _ = s.pager.Total()
	}
	if total == 0 {
		return []export.Row{}, nil
	}

	cfg.From = 0
	cfg.Size = min(total, models.MaxResults)
	resp, err := s.searcher.Search(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export",
		zap.String("session", s.ID),
		zap.Int("hits", len(resp.Hits)))
	return export.Rows(resp.Hits, s.titles), nil
}

// Close drops cached results. Later calls return ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.pager.Reset()
}
