package backend

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/hyperjump/nasab/internal/models"
)

// looseString accepts a JSON string or number.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	if string(b) == "null" {
		return nil
	}
	*s = looseString(strings.TrimSpace(string(b)))
	return nil
}

// looseInt accepts a JSON number or a numeric string.
type looseInt int

func (n *looseInt) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	*n = looseInt(f)
	return nil
}

// pageSource is the _source of an indexed page.
type pageSource struct {
	TextID  looseInt    `json:"text_id"`
	PageID  looseString `json:"page_id"`
	Vol     looseString `json:"vol"`
	PageNum looseInt    `json:"page_num"`
	URI     looseString `json:"uri"`
}

func (s pageSource) result(highlights map[string][]string) models.SearchResult {
	return models.SearchResult{
		TextID:     int(s.TextID),
		PageID:     string(s.PageID),
		Vol:        string(s.Vol),
		PageNum:    int(s.PageNum),
		URI:        string(s.URI),
		Highlights: highlights,
	}
}
