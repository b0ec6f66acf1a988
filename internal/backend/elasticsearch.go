package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
	"go.uber.org/zap"

	"github.com/hyperjump/nasab/internal/models"
	"github.com/hyperjump/nasab/internal/query"
)

// ElasticsearchConfig holds connection settings for the remote index.
type ElasticsearchConfig struct {
	URL      string
	Username string
	Password string
	Index    string
	Timeout  time.Duration
	// Options overrides the default match fields and highlighting.
	Options *query.Options
}

// Elasticsearch searches a remote index over its REST API.
type Elasticsearch struct {
	client  *elasticsearch.TypedClient
	index   string
	timeout time.Duration
	opts    query.Options
	logger  *zap.Logger
}

// NewElasticsearch builds a client for cfg. No request is made until the
// first search.
func NewElasticsearch(cfg ElasticsearchConfig, logger *zap.Logger) (*Elasticsearch, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("elasticsearch url is required")
	}
	if cfg.Index == "" {
		return nil, fmt.Errorf("elasticsearch index is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := elasticsearch.NewTypedClient(elasticsearch.Config{
		Addresses:    []string{cfg.URL},
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	opts := query.DefaultOptions()
	if cfg.Options != nil {
		opts = *cfg.Options
	}
	return &Elasticsearch{
		client:  client,
		index:   cfg.Index,
		timeout: cfg.Timeout,
		opts:    opts,
		logger:  logger,
	}, nil
}

// Name implements Backend.
func (e *Elasticsearch) Name() string { return "elasticsearch" }

// Close implements Backend.
func (e *Elasticsearch) Close() error { return nil }

// Search implements Backend.
func (e *Elasticsearch) Search(ctx context.Context, cfg *models.SearchConfig) (*models.SearchResponse, error) {
	body, err := query.Marshal(cfg, e.opts)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("elasticsearch request", zap.String("index", e.index), zap.ByteString("body", body))

	// A timeout of our own is reported as unavailability; only the caller's
	// cancellation passes through as a context error.
	reqCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	start := time.Now()
	res, err := e.client.Search().Index(e.index).Raw(bytes.NewReader(body)).Do(reqCtx)
	if err != nil {
		return nil, classify(ctx, err)
	}

	out := &models.SearchResponse{
		Hits:      make([]models.SearchResult, 0, len(res.Hits.Hits)),
		QueryTime: time.Since(start).Milliseconds(),
	}
	if res.Hits.Total != nil {
		out.Total = int(res.Hits.Total.Value)
	}
	for _, hit := range res.Hits.Hits {
		var src pageSource
		if err := json.Unmarshal(hit.Source_, &src); err != nil {
			e.logger.Warn("failed to decode hit source", zap.Error(err))
			continue
		}
		out.Hits = append(out.Hits, src.result(hit.Highlight))
	}
	return out, nil
}

func classify(ctx context.Context, err error) error {
	var esErr *types.ElasticsearchError
	if errors.As(err, &esErr) {
		reason := esErr.ErrorCause.Type
		if esErr.ErrorCause.Reason != nil {
			reason = *esErr.ErrorCause.Reason
		}
		return &Error{Status: esErr.Status, Reason: reason}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("elasticsearch search: %w", ctxErr)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
