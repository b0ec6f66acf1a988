// Package query turns name forms into a backend search request.
package query

import (
	"errors"
	"slices"
	"unicode/utf8"

	"github.com/hyperjump/nasab/internal/models"
	"github.com/hyperjump/nasab/internal/names"
)

// ErrInvalidQuery is returned when no form produced a search pattern.
var ErrInvalidQuery = errors.New("invalid query: no search patterns")

// Compose generates patterns for every form and assembles the search config.
// Forms without patterns are dropped; if none remain ErrInvalidQuery is
// returned and nothing should be sent to a backend.
func Compose(forms []names.NameForm, selectedTextIDs []int, from, size int) (*models.SearchConfig, error) {
	cfg := &models.SearchConfig{
		SelectedTextIDs: selectedTextIDs,
		From:            from,
		Size:            size,
	}
	for _, f := range forms {
		p := f.Patterns()
		if len(p.SearchPatterns) == 0 {
			continue
		}
		cfg.Forms = append(cfg.Forms, models.FormPatterns{
			SearchPatterns: p.SearchPatterns,
			FilterPatterns: p.FilterPatterns,
		})
	}
	if len(cfg.Forms) == 0 {
		return nil, ErrInvalidQuery
	}
	return cfg, nil
}

// ByLength returns a copy of patterns ordered longest first. Patterns of
// equal length keep their generation order.
func ByLength(patterns []string) []string {
	out := slices.Clone(patterns)
	slices.SortStableFunc(out, func(a, b string) int {
		return utf8.RuneCountInString(b) - utf8.RuneCountInString(a)
	})
	return out
}
