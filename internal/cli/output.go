// Package cli formats command output for the nasab CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/hyperjump/nasab/internal/catalog"
	"github.com/hyperjump/nasab/internal/export"
	"github.com/hyperjump/nasab/internal/names"
	"github.com/hyperjump/nasab/internal/session"
	"github.com/hyperjump/nasab/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat maps a -format flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

// snippetLen is how many runes of a highlight the text format shows.
const snippetLen = 200

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WritePatterns writes generated patterns, longest first in text form.
func WritePatterns(w io.Writer, p names.Patterns, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, p)
	}
	if len(p.SearchPatterns) == 0 {
		fmt.Fprintln(w, "No patterns.")
		return nil
	}
	fmt.Fprintf(w, "%d patterns\n", len(p.SearchPatterns))
	for i, s := range p.SearchPatterns {
		fmt.Fprintf(w, "%3d. %s\n", i+1, s)
	}
	return nil
}

// WriteSearchResult writes one page of results.
func WriteSearchResult(w io.Writer, res *session.Result, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "\nFound %d results (page %d of %d)\n\n", res.Total, res.Page, res.PageCount)
	for _, h := range res.Hits {
		writeHit(w, h)
	}
	return nil
}

func writeHit(w io.Writer, h session.Hit) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "[%d] %s | vol %s, p. %d\n", h.TextID, h.Title, h.Vol, h.PageNum)
	fmt.Fprintf(w, "URI: %s\n", h.URI)
	fields := make([]string, 0, len(h.Highlights))
	for f := range h.Highlights {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	for _, f := range fields {
		for _, frag := range h.Highlights[f] {
			fmt.Fprintf(w, "\n  %s\n", utils.Truncate(export.StripHTML(frag), snippetLen))
		}
	}
	fmt.Fprintln(w)
}

// TextList is the texts command output: matching texts and their ids in
// range form.
type TextList struct {
	Texts []catalog.Text `json:"texts"`
	IDs   string         `json:"ids"`
}

// WriteTexts writes a filtered catalog listing.
func WriteTexts(w io.Writer, list TextList, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, list)
	}
	fmt.Fprintf(w, "%d texts\n", len(list.Texts))
	for _, t := range list.Texts {
		author := ""
		if a, ok := t.FirstAuthor(); ok {
			author = a.ShortAr
			if d, ok := a.Death(); ok {
				author = fmt.Sprintf("%s (d. %d)", author, d)
			}
		}
		fmt.Fprintf(w, "%6d  %-40s  %s\n", t.ID, utils.TruncateWords(t.TitleAr, 8), author)
	}
	if list.IDs != "" {
		fmt.Fprintf(w, "\nids: %s\n", list.IDs)
	}
	return nil
}

// WriteRows writes export rows, for inspecting an export without a
// spreadsheet.
func WriteRows(w io.Writer, rows []export.Row, format OutputFormat) error {
	if format == OutputJSON {
		if rows == nil {
			rows = []export.Row{}
		}
		return writeJSON(w, rows)
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", r.TextID, r.Title, r.Volume, r.Page, utils.Truncate(r.Content, snippetLen))
	}
	return nil
}

// PrintSearchResult prints a page of results to stdout in text format.
func PrintSearchResult(res *session.Result) {
	_ = WriteSearchResult(os.Stdout, res, OutputText)
}
