package models

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid search config")

// Defaults and limits for a search window.
const (
	DefaultSize = 50
	// MaxResults is the deepest rank a backend will page to.
	MaxResults = 10000
)

// FormPatterns carries the search patterns generated for one name form.
type FormPatterns struct {
	SearchPatterns []string `json:"search_patterns"`
	FilterPatterns []string `json:"filter_patterns"`
}

// SearchConfig is the only request object handed to a backend.
type SearchConfig struct {
	Forms           []FormPatterns `json:"forms"`
	SelectedTextIDs []int          `json:"selected_text_ids,omitempty"`
	From            int            `json:"from"`
	Size            int            `json:"size"`
}

// Validate checks the window and fills in the default size.
func (c *SearchConfig) Validate() error {
	if len(c.Forms) == 0 {
		return fmt.Errorf("%w: no forms", ErrInvalidConfig)
	}
	if c.From < 0 {
		return fmt.Errorf("%w: from cannot be negative: %d", ErrInvalidConfig, c.From)
	}
	if c.Size <= 0 {
		c.Size = DefaultSize
	}
	if c.Size > MaxResults || c.From > MaxResults-c.Size {
		return fmt.Errorf("%w: window %d+%d exceeds %d results", ErrInvalidConfig, c.From, c.Size, MaxResults)
	}
	return nil
}
