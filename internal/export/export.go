// Package export flattens search results into spreadsheet rows.
package export

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html"

	"github.com/hyperjump/nasab/internal/models"
)

// SheetName is the name of the single sheet in an export.
const SheetName = "Search Results"

// Columns is the header row.
var Columns = []string{"text_id", "title", "volume", "page", "content"}

// Row is one highlight fragment of one hit.
type Row struct {
	TextID  int    `json:"text_id"`
	Title   string `json:"title"`
	Volume  string `json:"volume"`
	Page    int    `json:"page"`
	Content string `json:"content"`
}

// Rows emits a row per highlight fragment, fields in name order, with markup
// removed. Hits without highlights produce no rows.
func Rows(results []models.SearchResult, title func(textID int) string) []Row {
	var rows []Row
	for _, r := range results {
		fields := make([]string, 0, len(r.Highlights))
		for f := range r.Highlights {
			fields = append(fields, f)
		}
		slices.Sort(fields)
		name := ""
		if title != nil {
			name = title(r.TextID)
		}
		for _, f := range fields {
			for _, frag := range r.Highlights[f] {
				rows = append(rows, Row{
					TextID:  r.TextID,
					Title:   name,
					Volume:  r.Vol,
					Page:    r.PageNum,
					Content: StripHTML(frag),
				})
			}
		}
	}
	return rows
}

// StripHTML returns the text content of an HTML fragment with entities
// decoded.
func StripHTML(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

// FileName is the download name for an export made at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("search_results_%s.xlsx", t.Format("2006-01-02"))
}

// WriteXLSX writes rows as a one-sheet workbook.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{r.TextID, r.Title, r.Volume, r.Page, r.Content}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
