// Package pager serves fixed-size result pages from a sparse cache that is
// filled in aligned batches.
package pager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/nasab/internal/metrics"
	"github.com/hyperjump/nasab/internal/models"
	"github.com/hyperjump/nasab/internal/ranges"
)

// Defaults for page geometry.
const (
	DefaultPageSize      = 50
	DefaultPagesPerBatch = 4
)

var (
	// ErrStaleResult is returned to a caller whose fetch was overtaken by a
	// query change. Its results are discarded.
	ErrStaleResult = errors.New("result superseded by a newer query")
	// ErrPageOutOfRange is returned for pages past the last one.
	ErrPageOutOfRange = errors.New("page out of range")
	// ErrNoQuery is returned when no query has been set.
	ErrNoQuery = errors.New("no query set")
)

// Searcher runs one search window.
type Searcher interface {
	Search(ctx context.Context, cfg *models.SearchConfig) (*models.SearchResponse, error)
}

// State is the fetch state of the current query.
type State int

const (
	Idle State = iota
	Fetching
	Ready
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Ready:
		return "ready"
	case Errored:
		return "errored"
	}
	return "unknown"
}

// Query identifies a result set. The page number is not part of it.
type Query struct {
	Forms           []models.FormPatterns
	SelectedTextIDs []int
}

// Key is the cache key of q: its forms plus the compressed text selection.
func (q Query) Key() string {
	forms, _ := json.Marshal(q.Forms)
	return string(forms) + "|" + ranges.Compress(q.SelectedTextIDs)
}

// Page is one page of results.
type Page struct {
	Number    int                   `json:"page"`
	PageCount int                   `json:"page_count"`
	Total     int                   `json:"total"`
	Hits      []models.SearchResult `json:"hits"`
}

// Pager caches results for one query at a time.
type Pager struct {
	searcher      Searcher
	pageSize      int
	pagesPerBatch int
	maxResults    int
	metrics       *metrics.Recorder
	logger        *zap.Logger
	group         singleflight.Group

	mu         sync.Mutex
	query      Query
	key        string
	generation uint64
	results    []*models.SearchResult
	fetched    map[int]bool
	total      int
	known      bool
	state      State
	err        error
	inflight   int
}

// Option configures a Pager.
type Option func(*Pager)

// WithPageSize sets results per page.
func WithPageSize(n int) Option {
	return func(p *Pager) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// WithPagesPerBatch sets how many pages one backend call fills.
func WithPagesPerBatch(n int) Option {
	return func(p *Pager) {
		if n > 0 {
			p.pagesPerBatch = n
		}
	}
}

// WithMaxResults lowers the result clamp.
func WithMaxResults(n int) Option {
	return func(p *Pager) {
		if n > 0 && n <= models.MaxResults {
			p.maxResults = n
		}
	}
}

// WithMetrics records cache hits and misses.
func WithMetrics(r *metrics.Recorder) Option {
	return func(p *Pager) { p.metrics = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pager) {
		if l != nil {
			p.logger = l
		}
	}
}

// New returns an idle pager backed by s.
func New(s Searcher, opts ...Option) *Pager {
	p := &Pager{
		searcher:      s,
		pageSize:      DefaultPageSize,
		pagesPerBatch: DefaultPagesPerBatch,
		maxResults:    models.MaxResults,
		logger:        zap.NewNop(),
		fetched:       make(map[int]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PageSize returns results per page.
func (p *Pager) PageSize() int { return p.pageSize }

// BatchSize returns results per backend call.
func (p *Pager) BatchSize() int { return p.pageSize * p.pagesPerBatch }

// SetQuery makes q current. A different key clears the cache and
// invalidates every fetch still in flight; the same key is a no-op.
func (p *Pager) SetQuery(q Query) {
	key := q.Key()
	p.mu.Lock()
	defer p.mu.Unlock()
	if key == p.key {
		return
	}
	p.query = q
	p.key = key
	p.generation++
	p.results = nil
	p.fetched = make(map[int]bool)
	p.total = 0
	p.known = false
	p.state = Idle
	p.err = nil
	p.inflight = 0
}

// Reset drops the current query and everything cached for it.
func (p *Pager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.query = Query{}
	p.key = ""
	p.generation++
	p.results = nil
	p.fetched = make(map[int]bool)
	p.total = 0
	p.known = false
	p.state = Idle
	p.err = nil
	p.inflight = 0
}

// State returns the fetch state and the last fetch error.
func (p *Pager) State() (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.err
}

// Total returns the clamped total, and false until the first batch arrives.
func (p *Pager) Total() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total, p.known
}

// PageCount is the number of pages for the clamped total.
func (p *Pager) PageCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pageCount()
}

func (p *Pager) pageCount() int {
	return (p.total + p.pageSize - 1) / p.pageSize
}

// Page returns page number (1-based) of the current query, fetching the
// batch that contains it when it is not cached.
func (p *Pager) Page(ctx context.Context, number int) (*Page, error) {
	if number < 1 {
		return nil, fmt.Errorf("%w: %d", ErrPageOutOfRange, number)
	}
	if number > p.maxPages() {
		return nil, fmt.Errorf("%w: %d past the %d result limit", ErrPageOutOfRange, number, p.maxResults)
	}
	batch := (number - 1) / p.pagesPerBatch

	p.mu.Lock()
	if p.key == "" {
		p.mu.Unlock()
		return nil, ErrNoQuery
	}
	if p.known && (number-1)*p.pageSize >= p.total && !(number == 1 && p.total == 0) {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, number, p.pageCount())
	}
	if p.fetched[batch] {
		page := p.slice(number)
		p.mu.Unlock()
		p.metrics.PagerHit()
		return page, nil
	}
	p.mu.Unlock()

	p.metrics.PagerMiss()
	if err := p.FetchBatch(ctx, batch); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.known && (number-1)*p.pageSize >= p.total && !(number == 1 && p.total == 0) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, number, p.pageCount())
	}
	return p.slice(number), nil
}

// maxPages is the number of pages that fit under the result clamp.
func (p *Pager) maxPages() int {
	return (p.maxResults + p.pageSize - 1) / p.pageSize
}

// slice copies a page out of the sparse cache. Callers hold mu.
func (p *Pager) slice(number int) *Page {
	start := (number - 1) * p.pageSize
	end := min(start+p.pageSize, len(p.results))
	page := &Page{Number: number, PageCount: p.pageCount(), Total: p.total, Hits: []models.SearchResult{}}
	for i := start; i < end; i++ {
		if r := p.results[i]; r != nil {
			page.Hits = append(page.Hits, *r)
		}
	}
	return page
}

// window returns the from/size of a batch, trimmed to the result clamp.
func (p *Pager) window(batch int) (from, size int) {
	if batch < 0 || batch >= (p.maxResults+p.BatchSize()-1)/p.BatchSize() {
		return 0, 0
	}
	from = batch * p.BatchSize()
	size = min(p.BatchSize(), p.maxResults-from)
	return from, size
}

// FetchBatch loads one aligned batch of the current query. Already fetched
// batches are not requested again, and concurrent callers for the same batch
// share one backend call.
func (p *Pager) FetchBatch(ctx context.Context, batch int) error {
	p.mu.Lock()
	if p.key == "" {
		p.mu.Unlock()
		return ErrNoQuery
	}
	if p.fetched[batch] {
		p.mu.Unlock()
		return nil
	}
	from, size := p.window(batch)
	if size <= 0 {
		p.mu.Unlock()
		return fmt.Errorf("%w: batch %d", ErrPageOutOfRange, batch)
	}
	gen := p.generation
	cfg := &models.SearchConfig{
		Forms:           p.query.Forms,
		SelectedTextIDs: p.query.SelectedTextIDs,
		From:            from,
		Size:            size,
	}
	p.state = Fetching
	p.inflight++
	p.mu.Unlock()

	flightKey := strconv.FormatUint(gen, 10) + "/" + strconv.Itoa(batch)
	_, err, shared := p.group.Do(flightKey, func() (any, error) {
		if p.isFetched(gen, batch) {
			return nil, nil
		}
		resp, err := p.searcher.Search(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return nil, p.commit(gen, batch, from, resp)
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return ErrStaleResult
	}
	p.inflight--
	if err != nil {
		if p.inflight == 0 {
			p.state = Errored
		}
		p.err = err
		return err
	}
	if p.inflight == 0 {
		p.state = Ready
		p.err = nil
	}
	p.logger.Debug("batch fetched",
		zap.Int("batch", batch),
		zap.Int("from", from),
		zap.Int("size", size),
		zap.Bool("shared", shared))
	return nil
}

func (p *Pager) isFetched(gen uint64, batch int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return gen == p.generation && p.fetched[batch]
}

// commit stores a batch if it still belongs to the current generation.
func (p *Pager) commit(gen uint64, batch, from int, resp *models.SearchResponse) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return ErrStaleResult
	}
	p.total = min(resp.Total, p.maxResults)
	p.known = true
	hits := resp.Hits[:min(len(resp.Hits), p.maxResults-from)]
	if need := from + len(hits); need > len(p.results) {
		grown := make([]*models.SearchResult, need)
		copy(grown, p.results)
		p.results = grown
	}
	for i := range hits {
		hit := hits[i]
		p.results[from+i] = &hit
	}
	p.fetched[batch] = true
	return nil
}

// Window returns the first and last page buttons to show around current
// when at most maxButtons fit. Pages are 1-based.
func Window(current, pageCount, maxButtons int) (start, end int) {
	if pageCount <= 0 || maxButtons <= 0 {
		return 0, 0
	}
	current = max(1, min(current, pageCount))
	if pageCount <= maxButtons {
		return 1, pageCount
	}
	half := maxButtons / 2
	switch {
	case current <= half+1:
		return 1, maxButtons
	case current+half >= pageCount:
		return pageCount - maxButtons + 1, pageCount
	default:
		return current - half, current - half + maxButtons - 1
	}
}
