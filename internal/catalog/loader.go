package catalog

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// readSheet returns the first sheet of an xlsx file as header-keyed rows.
func readSheet(path string) ([]map[string]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	out := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(header))
		empty := true
		for i, name := range header {
			name = strings.TrimSpace(name)
			if name == "" || i >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[i])
			if v != "" {
				empty = false
			}
			rec[name] = v
		}
		if !empty {
			out = append(out, rec)
		}
	}
	return out, nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		// Spreadsheet numbers sometimes come through as "12.0".
		f, ferr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if ferr != nil {
			return 0
		}
		return int(f)
	}
	return n
}

func parseAuthor(rec map[string]string) Author {
	return Author{
		ID:        atoi(rec["au_id"]),
		NameAr:    rec["au_ar"],
		ShortAr:   rec["au_sh_ar"],
		NameLat:   rec["au_lat"],
		ShortLat:  rec["au_sh_lat"],
		DeathDate: rec["au_death"],
	}
}

func parseText(rec map[string]string) Text {
	t := Text{
		ID:         atoi(rec["text_id"]),
		URI:        rec["text_uri"],
		TitleAr:    rec["title_ar"],
		TitleLat:   rec["title_lat"],
		EditionAr:  rec["ed"],
		EditionLat: rec["ed_tl"],
		Collection: rec["collection"],
		TokenLen:   atoi(rec["tok_len"]),
		PageLen:    atoi(rec["pg_len"]),
		Tags:       []string{},
	}
	for _, field := range strings.Fields(rec["au_id"]) {
		if id, err := strconv.Atoi(field); err == nil {
			t.AuthorIDs = append(t.AuthorIDs, id)
		}
	}
	if tags := rec["tags"]; tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			t.Tags = append(t.Tags, strings.TrimSpace(tag))
		}
	}
	return t
}

// LoadWorkbooks reads the texts and authors workbooks and builds a catalog.
func LoadWorkbooks(textsPath, authorsPath string) (*Catalog, error) {
	for _, p := range []string{textsPath, authorsPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	textRows, err := readSheet(textsPath)
	if err != nil {
		return nil, err
	}
	authorRows, err := readSheet(authorsPath)
	if err != nil {
		return nil, err
	}

	authors := make([]Author, 0, len(authorRows))
	for _, rec := range authorRows {
		authors = append(authors, parseAuthor(rec))
	}
	texts := make([]Text, 0, len(textRows))
	for _, rec := range textRows {
		texts = append(texts, parseText(rec))
	}
	return New(texts, authors), nil
}
