// Package catalog loads text and author metadata and answers the lookups
// and filters used to pick which texts a search covers.
package catalog

import (
	"errors"
	"slices"
	"strconv"
	"strings"
)

// ErrUnavailable is returned while the catalog is not loaded.
var ErrUnavailable = errors.New("metadata unavailable")

// UnknownTitle is shown for text ids missing from the catalog.
const UnknownTitle = "Unknown Text"

// Author is one row of the authors workbook.
type Author struct {
	ID        int    `json:"au_id"`
	NameAr    string `json:"au_ar"`
	ShortAr   string `json:"au_sh_ar"`
	NameLat   string `json:"au_lat"`
	ShortLat  string `json:"au_sh_lat"`
	DeathDate string `json:"au_death"`
}

// Death parses the death year, reporting false when it is not a number.
func (a Author) Death() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(a.DeathDate))
	return n, err == nil
}

// Text is one row of the texts workbook joined with its authors.
type Text struct {
	ID         int      `json:"text_id"`
	URI        string   `json:"text_uri"`
	TitleAr    string   `json:"title_ar"`
	TitleLat   string   `json:"title_lat"`
	EditionAr  string   `json:"ed_ar,omitempty"`
	EditionLat string   `json:"ed_tl,omitempty"`
	AuthorIDs  []int    `json:"au_ids"`
	Authors    []Author `json:"authors,omitempty"`
	Collection string   `json:"collection"`
	Tags       []string `json:"tags"`
	TokenLen   int      `json:"tok_len,omitempty"`
	PageLen    int      `json:"pg_len,omitempty"`
}

// FirstAuthor returns the first resolved author.
func (t Text) FirstAuthor() (Author, bool) {
	if len(t.Authors) == 0 {
		return Author{}, false
	}
	return t.Authors[0], true
}

// DateRange is an inclusive range of death years.
type DateRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Catalog is the processed metadata.
type Catalog struct {
	Texts       []Text     `json:"texts"`
	Authors     []Author   `json:"authors"`
	Collections []string   `json:"collections"`
	Genres      []string   `json:"genres"`
	DateRange   *DateRange `json:"date_range,omitempty"`

	byID map[int]int
}

// New joins authors to texts, sorts texts by URI with empty URIs last, and
// derives the collection, genre and death-date summaries.
func New(texts []Text, authors []Author) *Catalog {
	c := &Catalog{Texts: texts, Authors: authors}

	byAuthor := make(map[int]Author, len(authors))
	for _, a := range authors {
		byAuthor[a.ID] = a
	}
	for i := range c.Texts {
		t := &c.Texts[i]
		t.Authors = nil
		for _, id := range t.AuthorIDs {
			if a, ok := byAuthor[id]; ok {
				t.Authors = append(t.Authors, a)
			}
		}
	}

	slices.SortStableFunc(c.Texts, func(a, b Text) int {
		switch {
		case a.URI == "" && b.URI == "":
			return 0
		case a.URI == "":
			return 1
		case b.URI == "":
			return -1
		}
		return strings.Compare(a.URI, b.URI)
	})

	seenCollection := map[string]bool{}
	seenGenre := map[string]bool{}
	c.Collections = []string{}
	c.Genres = []string{}
	for _, t := range c.Texts {
		if t.Collection != "" && !seenCollection[t.Collection] {
			seenCollection[t.Collection] = true
			c.Collections = append(c.Collections, t.Collection)
		}
		for _, tag := range t.Tags {
			if tag != "" && !seenGenre[tag] {
				seenGenre[tag] = true
				c.Genres = append(c.Genres, tag)
			}
		}
	}

	for _, a := range authors {
		d, ok := a.Death()
		if !ok {
			continue
		}
		if c.DateRange == nil {
			c.DateRange = &DateRange{Min: d, Max: d}
			continue
		}
		c.DateRange.Min = min(c.DateRange.Min, d)
		c.DateRange.Max = max(c.DateRange.Max, d)
	}

	c.reindex()
	return c
}

func (c *Catalog) reindex() {
	c.byID = make(map[int]int, len(c.Texts))
	for i, t := range c.Texts {
		c.byID[t.ID] = i
	}
}

// Text looks up a text by id.
func (c *Catalog) Text(id int) (Text, bool) {
	if c == nil {
		return Text{}, false
	}
	if c.byID == nil {
		c.reindex()
	}
	i, ok := c.byID[id]
	if !ok {
		return Text{}, false
	}
	return c.Texts[i], true
}

// Title returns the Arabic title of a text, or UnknownTitle.
func (c *Catalog) Title(id int) string {
	t, ok := c.Text(id)
	if !ok || t.TitleAr == "" {
		return UnknownTitle
	}
	return t.TitleAr
}

// IDs returns the ids of texts in order.
func IDs(texts []Text) []int {
	ids := make([]int, len(texts))
	for i, t := range texts {
		ids[i] = t.ID
	}
	return ids
}
