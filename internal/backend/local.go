package backend

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/hyperjump/nasab/internal/arabic"
	"github.com/hyperjump/nasab/internal/models"
	"github.com/hyperjump/nasab/internal/query"
	"github.com/hyperjump/nasab/internal/ranges"
)

// The proclitic field is flattened for Bleve, which has no sub-fields.
const localProcliticField = "page_content_proclitic"

// Local searches an on-disk Bleve index with the same phrase semantics as
// the remote index: content and proclitic-stripped content fields, an AND of
// per-form ORs, and an optional text filter.
type Local struct {
	index  bleve.Index
	opts   query.Options
	logger *zap.Logger
}

// OpenLocal creates or opens a page index at path. Changing the mapping
// requires removing the directory and re-indexing.
func OpenLocal(path string, logger *zap.Logger) (*Local, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Local{opts: query.DefaultOptions(), logger: logger}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		l.index = index
		return l, nil
	}

	index, err := bleve.New(path, pageMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	l.index = index
	return l, nil
}

func pageMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	doc.AddFieldMappingsAt(query.FieldContent, text)
	doc.AddFieldMappingsAt(localProcliticField, text)

	keyword := bleve.NewKeywordFieldMapping()
	doc.AddFieldMappingsAt(query.FieldURI, keyword)
	doc.AddFieldMappingsAt(query.FieldPageID, keyword)
	doc.AddFieldMappingsAt(query.FieldVol, keyword)

	numeric := bleve.NewNumericFieldMapping()
	doc.AddFieldMappingsAt(query.FieldTextID, numeric)
	doc.AddFieldMappingsAt(query.FieldPageNum, numeric)

	im.AddDocumentMapping("page", doc)
	im.DefaultType = "page"
	im.DefaultMapping = doc
	return im
}

// Name implements Backend.
func (l *Local) Name() string { return "local" }

// Close closes the index.
func (l *Local) Close() error { return l.index.Close() }

// DocCount returns the number of indexed pages.
func (l *Local) DocCount() (uint64, error) { return l.index.DocCount() }

// Index adds pages in one batch. Content is normalized before indexing so
// that normalized patterns match.
func (l *Local) Index(ctx context.Context, pages []models.Page) error {
	batch := l.index.NewBatch()
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.ID == "" {
			return fmt.Errorf("page without id in text %d", p.TextID)
		}
		content := arabic.Normalize(p.Content)
		doc := map[string]any{
			query.FieldContent:  content,
			localProcliticField: arabic.ProcliticForm(content),
			query.FieldTextID:   float64(p.TextID),
			query.FieldPageID:   p.ID,
			query.FieldURI:      p.URI,
			query.FieldVol:      p.Vol,
			query.FieldPageNum:  float64(p.PageNum),
		}
		if err := batch.Index(p.ID, doc); err != nil {
			return fmt.Errorf("failed to index page %s: %w", p.ID, err)
		}
	}
	if err := l.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	l.logger.Debug("indexed pages", zap.Int("count", len(pages)))
	return nil
}

// Search implements Backend.
func (l *Local) Search(ctx context.Context, cfg *models.SearchConfig) (*models.SearchResponse, error) {
	q, err := l.buildQuery(cfg)
	if err != nil {
		return nil, err
	}
	req := bleve.NewSearchRequestOptions(q, cfg.Size, cfg.From, false)
	req.SortBy([]string{query.FieldURI, query.FieldPageID})
	req.Fields = query.SourceFields
	if l.opts.Highlight {
		req.Highlight = bleve.NewHighlightWithStyle(html.Name)
		req.Highlight.AddField(query.FieldContent)
		req.Highlight.AddField(localProcliticField)
	}

	start := time.Now()
	results, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("local search: %w", ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := &models.SearchResponse{
		Hits:      make([]models.SearchResult, 0, len(results.Hits)),
		Total:     int(results.Total),
		QueryTime: time.Since(start).Milliseconds(),
	}
	for _, hit := range results.Hits {
		out.Hits = append(out.Hits, models.SearchResult{
			TextID:     fieldInt(hit.Fields[query.FieldTextID]),
			PageID:     fieldString(hit.Fields[query.FieldPageID]),
			Vol:        fieldString(hit.Fields[query.FieldVol]),
			PageNum:    fieldInt(hit.Fields[query.FieldPageNum]),
			URI:        fieldString(hit.Fields[query.FieldURI]),
			Highlights: l.fragments(hit.Fragments),
		})
	}
	return out, nil
}

func (l *Local) buildQuery(cfg *models.SearchConfig) (blevequery.Query, error) {
	if cfg == nil || len(cfg.Forms) == 0 {
		return nil, query.ErrInvalidQuery
	}
	var must []blevequery.Query
	for _, form := range cfg.Forms {
		if len(form.SearchPatterns) == 0 {
			continue
		}
		var should []blevequery.Query
		for _, p := range query.ByLength(form.SearchPatterns) {
			content := bleve.NewMatchPhraseQuery(arabic.Normalize(p))
			content.SetField(query.FieldContent)
			proclitic := bleve.NewMatchPhraseQuery(arabic.ProcliticForm(p))
			proclitic.SetField(localProcliticField)
			should = append(should, content, proclitic)
		}
		d := bleve.NewDisjunctionQuery(should...)
		d.SetMin(1)
		must = append(must, d)
	}
	if len(must) == 0 {
		return nil, query.ErrInvalidQuery
	}

	if len(cfg.SelectedTextIDs) > 0 {
		inclusive := true
		var runs []blevequery.Query
		for _, r := range ranges.Runs(cfg.SelectedTextIDs) {
			lo, hi := float64(r.Lo), float64(r.Hi)
			nq := bleve.NewNumericRangeInclusiveQuery(&lo, &hi, &inclusive, &inclusive)
			nq.SetField(query.FieldTextID)
			runs = append(runs, nq)
		}
		must = append(must, bleve.NewDisjunctionQuery(runs...))
	}
	return bleve.NewConjunctionQuery(must...), nil
}

// fragments renames the flattened proclitic field and swaps Bleve's <mark>
// tags for the configured ones.
func (l *Local) fragments(in map[string][]string) map[string][]string {
	if len(in) == 0 {
		return nil
	}
	tags := strings.NewReplacer("<mark>", l.opts.PreTag, "</mark>", l.opts.PostTag)
	out := make(map[string][]string, len(in))
	for field, frags := range in {
		if field == localProcliticField {
			field = query.FieldProclitic
		}
		converted := make([]string, len(frags))
		for i, f := range frags {
			converted[i] = tags.Replace(f)
		}
		out[field] = converted
	}
	return out
}

func fieldString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	}
	return ""
}

func fieldInt(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case string:
		var n int
		_, _ = fmt.Sscanf(x, "%d", &n)
		return n
	}
	return 0
}
