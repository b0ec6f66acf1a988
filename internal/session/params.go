package session

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/hyperjump/nasab/internal/names"
	"github.com/hyperjump/nasab/internal/ranges"
)

// ErrInvalidParams is returned for query strings that do not decode.
var ErrInvalidParams = errors.New("invalid search parameters")

// SearchParams is the complete, serializable state of a search.
type SearchParams struct {
	Forms           []names.NameForm `json:"forms"`
	SelectedTextIDs []int            `json:"selected_text_ids,omitempty"`
	// Page is 1-based; 0 means the first page.
	Page int `json:"page,omitempty"`
}

const (
	keyForms = "forms"
	keyTexts = "texts"
	keyPage  = "page"
)

var formKey = regexp.MustCompile(`^f(\d+)_(kunya|nasab|nisba|flags)$`)

func fieldKey(i int, field string) string {
	return "f" + strconv.Itoa(i+1) + "_" + field
}

// Encode renders p as a query string. The text selection is written in
// range form, so Decode returns it sorted and de-duplicated.
func Encode(p SearchParams) string {
	v := url.Values{}
	if len(p.Forms) > 0 {
		v.Set(keyForms, strconv.Itoa(len(p.Forms)))
	}
	for i, f := range p.Forms {
		for _, k := range f.Kunyas {
			v.Add(fieldKey(i, "kunya"), k)
		}
		if f.Nasab != "" {
			v.Set(fieldKey(i, "nasab"), f.Nasab)
		}
		for _, n := range f.Nisbas {
			v.Add(fieldKey(i, "nisba"), n)
		}
		if flags := f.Flags.Names(); len(flags) > 0 {
			v.Set(fieldKey(i, "flags"), strings.Join(flags, ","))
		}
	}
	if len(p.SelectedTextIDs) > 0 {
		v.Set(keyTexts, ranges.Compress(p.SelectedTextIDs))
	}
	if p.Page > 0 {
		v.Set(keyPage, strconv.Itoa(p.Page))
	}
	return v.Encode()
}

// Decode parses a query string produced by Encode. A leading "?" is allowed.
func Decode(query string) (SearchParams, error) {
	v, err := url.ParseQuery(strings.TrimPrefix(query, "?"))
	if err != nil {
		return SearchParams{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return DecodeValues(v)
}

// DecodeValues is Decode for already parsed values. Unknown keys are ignored.
func DecodeValues(v url.Values) (SearchParams, error) {
	var p SearchParams

	count := 0
	if s := v.Get(keyForms); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return p, fmt.Errorf("%w: forms=%q", ErrInvalidParams, s)
		}
		count = n
	}
	for key := range v {
		m := formKey.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return p, fmt.Errorf("%w: %s", ErrInvalidParams, key)
		}
		count = max(count, n)
	}
	const maxForms = 16
	if count > maxForms {
		return p, fmt.Errorf("%w: %d forms, at most %d allowed", ErrInvalidParams, count, maxForms)
	}

	if count > 0 {
		p.Forms = make([]names.NameForm, count)
	}
	for i := range p.Forms {
		f := &p.Forms[i]
		f.Kunyas = v[fieldKey(i, "kunya")]
		f.Nasab = v.Get(fieldKey(i, "nasab"))
		f.Nisbas = v[fieldKey(i, "nisba")]
		if s := v.Get(fieldKey(i, "flags")); s != "" {
			for _, name := range strings.Split(s, ",") {
				if !f.Flags.Set(strings.TrimSpace(name)) {
					return p, fmt.Errorf("%w: unknown flag %q", ErrInvalidParams, name)
				}
			}
		}
	}

	if v.Has(keyTexts) {
		ids, err := ranges.Decompress(v.Get(keyTexts))
		if err != nil {
			return p, fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		if len(ids) > 0 {
			p.SelectedTextIDs = ids
		}
	}

	if s := v.Get(keyPage); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return p, fmt.Errorf("%w: page=%q", ErrInvalidParams, s)
		}
		p.Page = n
	}
	return p, nil
}
