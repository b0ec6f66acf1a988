package catalog

import (
	"slices"
	"strings"
)

// Filter narrows the catalog for text selection. Zero fields do not filter.
type Filter struct {
	Collections []string
	Genres      []string
	DateRange   *DateRange
	// Term matches titles and author names; Latin fields case-insensitively.
	Term string
}

// IsZero reports whether f filters nothing.
func (f Filter) IsZero() bool {
	return len(f.Collections) == 0 && len(f.Genres) == 0 && f.DateRange == nil && f.Term == ""
}

// Filter returns the texts that pass every populated criterion, in catalog
// order.
func (c *Catalog) Filter(f Filter) []Text {
	if c == nil {
		return nil
	}
	out := []Text{}
	term := strings.TrimSpace(f.Term)
	lower := strings.ToLower(term)
	for _, t := range c.Texts {
		if len(f.Collections) > 0 && (t.Collection == "" || !slices.Contains(f.Collections, t.Collection)) {
			continue
		}
		if len(f.Genres) > 0 && !slices.ContainsFunc(t.Tags, func(tag string) bool {
			return slices.Contains(f.Genres, tag)
		}) {
			continue
		}
		if term != "" && !matchesTerm(t, term, lower) {
			continue
		}
		if f.DateRange != nil {
			// Texts without a numeric death date count as year 0.
			death := 0
			if a, ok := t.FirstAuthor(); ok {
				if n, ok := a.Death(); ok {
					death = n
				}
			}
			if death < f.DateRange.Min || death > f.DateRange.Max {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

func matchesTerm(t Text, term, lower string) bool {
	if strings.Contains(t.TitleAr, term) || strings.Contains(strings.ToLower(t.TitleLat), lower) {
		return true
	}
	a, ok := t.FirstAuthor()
	if !ok {
		return false
	}
	return strings.Contains(a.NameAr, term) ||
		strings.Contains(a.ShortAr, term) ||
		strings.Contains(strings.ToLower(a.NameLat), lower) ||
		strings.Contains(strings.ToLower(a.ShortLat), lower)
}

// AddAll unions the ids of texts into selected, keeping selected's order.
func AddAll(selected []int, texts []Text) []int {
	out := slices.Clone(selected)
	seen := make(map[int]bool, len(out))
	for _, id := range out {
		seen[id] = true
	}
	for _, t := range texts {
		if !seen[t.ID] {
			seen[t.ID] = true
			out = append(out, t.ID)
		}
	}
	return out
}

// RemoveAll drops the ids of texts from selected.
func RemoveAll(selected []int, texts []Text) []int {
	drop := make(map[int]bool, len(texts))
	for _, t := range texts {
		drop[t.ID] = true
	}
	out := []int{}
	for _, id := range selected {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}
