package query

import (
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v9/typedapi/types"

	"github.com/hyperjump/nasab/internal/models"
)

// Index field names.
const (
	FieldContent   = "page_content"
	FieldProclitic = "page_content.proclitic"
	FieldTextID    = "text_id"
	FieldPageID    = "page_id"
	FieldURI       = "uri"
	FieldVol       = "vol"
	FieldPageNum   = "page_num"
)

// SourceFields are the stored fields returned with every hit.
var SourceFields = []string{FieldTextID, FieldPageID, FieldVol, FieldPageNum, FieldURI}

// Options tune how a request body is rendered.
type Options struct {
	// Fields receives a match_phrase clause per pattern.
	Fields []string
	// Highlight enables fragment highlighting for Fields.
	Highlight bool
	// FragmentSize is the highlight fragment length in characters.
	FragmentSize int
	// Fragments is the number of fragments per field, keyed by field name.
	Fragments map[string]int
	PreTag    string
	PostTag   string
}

// DefaultOptions matches the production index layout.
func DefaultOptions() Options {
	return Options{
		Fields:       []string{FieldContent, FieldProclitic},
		Highlight:    true,
		FragmentSize: 200,
		Fragments:    map[string]int{FieldContent: 10, FieldProclitic: 3},
		PreTag:       `<span class="highlight">`,
		PostTag:      `</span>`,
	}
}

// Request is the JSON body of a _search call.
type Request struct {
	From      int                 `json:"from"`
	Size      int                 `json:"size"`
	Source    []string            `json:"_source"`
	Query     *types.Query        `json:"query"`
	Sort      []map[string]string `json:"sort"`
	Highlight *Highlight          `json:"highlight,omitempty"`
}

// Highlight is the highlight section of a request.
type Highlight struct {
	Fields map[string]HighlightField `json:"fields"`
}

// HighlightField configures highlighting for one field.
type HighlightField struct {
	Type              string   `json:"type"`
	NumberOfFragments int      `json:"number_of_fragments"`
	FragmentSize      int      `json:"fragment_size"`
	PreTags           []string `json:"pre_tags"`
	PostTags          []string `json:"post_tags"`
}

// BuildRequest renders cfg as an AND over forms of an OR over each form's
// patterns. A non-empty text selection becomes a terms filter.
func BuildRequest(cfg *models.SearchConfig, opts Options) (*Request, error) {
	if cfg == nil || len(cfg.Forms) == 0 {
		return nil, ErrInvalidQuery
	}
	if len(opts.Fields) == 0 {
		return nil, fmt.Errorf("no match fields configured")
	}

	must := make([]types.Query, 0, len(cfg.Forms))
	for _, form := range cfg.Forms {
		if len(form.SearchPatterns) == 0 {
			continue
		}
		should := make([]types.Query, 0, len(form.SearchPatterns)*len(opts.Fields))
		for _, p := range ByLength(form.SearchPatterns) {
			for _, field := range opts.Fields {
				should = append(should, types.Query{
					MatchPhrase: map[string]types.MatchPhraseQuery{field: {Query: p}},
				})
			}
		}
		must = append(must, types.Query{
			Bool: &types.BoolQuery{Should: should, MinimumShouldMatch: 1},
		})
	}
	if len(must) == 0 {
		return nil, ErrInvalidQuery
	}

	root := &types.BoolQuery{Must: must}
	if len(cfg.SelectedTextIDs) > 0 {
		ids := make([]types.FieldValue, len(cfg.SelectedTextIDs))
		for i, id := range cfg.SelectedTextIDs {
			ids[i] = id
		}
		root.Filter = []types.Query{{
			Terms: &types.TermsQuery{TermsQuery: map[string]types.TermsQueryField{FieldTextID: ids}},
		}}
	}

	req := &Request{
		From:   cfg.From,
		Size:   cfg.Size,
		Source: SourceFields,
		Query:  &types.Query{Bool: root},
		Sort:   []map[string]string{{FieldURI: "asc"}, {FieldPageID: "asc"}},
	}
	if opts.Highlight {
		req.Highlight = &Highlight{Fields: make(map[string]HighlightField, len(opts.Fields))}
		for _, field := range opts.Fields {
			n, ok := opts.Fragments[field]
			if !ok {
				n = 3
			}
			req.Highlight.Fields[field] = HighlightField{
				Type:              "fvh",
				NumberOfFragments: n,
				FragmentSize:      opts.FragmentSize,
				PreTags:           []string{opts.PreTag},
				PostTags:          []string{opts.PostTag},
			}
		}
	}
	return req, nil
}

// Marshal builds the request and encodes it as JSON.
func Marshal(cfg *models.SearchConfig, opts Options) ([]byte, error) {
	req, err := BuildRequest(cfg, opts)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}
	return body, nil
}
