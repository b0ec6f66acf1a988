// Package backend runs composed searches against a full-text engine.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/nasab/internal/metrics"
	"github.com/hyperjump/nasab/internal/models"
)

// ErrUnavailable means the backend could not be reached.
var ErrUnavailable = errors.New("search backend unavailable")

// Error is a non-success response from the backend.
type Error struct {
	Status int
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("search backend returned status %d", e.Status)
	}
	return fmt.Sprintf("search backend returned status %d: %s", e.Status, e.Reason)
}

// Backend executes one search window. Implementations never retry.
type Backend interface {
	Search(ctx context.Context, cfg *models.SearchConfig) (*models.SearchResponse, error)
	Name() string
	Close() error
}

// Instrumented wraps a Backend with logging and metrics.
type Instrumented struct {
	Backend
	metrics *metrics.Recorder
	logger  *zap.Logger
}

// Instrument returns b with every search timed and logged.
func Instrument(b Backend, rec *metrics.Recorder, logger *zap.Logger) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{Backend: b, metrics: rec, logger: logger}
}

// Search validates cfg and delegates to the wrapped backend.
func (i *Instrumented) Search(ctx context.Context, cfg *models.SearchConfig) (*models.SearchResponse, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := i.Backend.Search(ctx, cfg)
	elapsed := time.Since(start)
	i.metrics.ObserveBackend(i.Name(), elapsed, err)
	if err != nil {
		i.logger.Error("backend search failed",
			zap.String("backend", i.Name()),
			zap.Int("from", cfg.From),
			zap.Int("size", cfg.Size),
			zap.Error(err))
		return nil, err
	}
	i.logger.Debug("backend search",
		zap.String("backend", i.Name()),
		zap.Int("from", cfg.From),
		zap.Int("size", cfg.Size),
		zap.Int("hits", len(resp.Hits)),
		zap.Int("total", resp.Total),
		zap.Duration("took", elapsed))
	return resp, nil
}
