package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/nasab/internal/catalog"
	"github.com/hyperjump/nasab/internal/export"
	"github.com/hyperjump/nasab/internal/models"
	"github.com/hyperjump/nasab/internal/names"
	"github.com/hyperjump/nasab/internal/session"
)

func testResult() *session.Result {
	return &session.Result{
		Query:     "f1_nasab=x",
		Page:      2,
		PageCount: 3,
		Total:     120,
		Hits: []session.Hit{{
			SearchResult: models.SearchResult{
				TextID:  7,
				PageID:  "p1",
				Vol:     "2",
				PageNum: 15,
				URI:     "0310Tabari.Tarikh",
				Highlights: map[string][]string{
					"page_content": {`حدثنا <span class="highlight">ابو منصور</span> &amp; غيره`},
				},
			},
			Title: "تاريخ الطبري",
		}},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWritePatterns(t *testing.T) {
	p := names.GeneratePatterns([]string{"أبو منصور"}, "معمر بن أحمد", nil, names.Flags{})

	var buf bytes.Buffer
	require.NoError(t, WritePatterns(&buf, p, OutputText))
	assert.Contains(t, buf.String(), "ابو منصور معمر بن احمد")

	buf.Reset()
	require.NoError(t, WritePatterns(&buf, p, OutputJSON))
	var decoded names.Patterns
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, p, decoded)

	buf.Reset()
	require.NoError(t, WritePatterns(&buf, names.Patterns{}, OutputText))
	assert.Equal(t, "No patterns.\n", buf.String())
}

func TestWriteSearchResult_text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSearchResult(&buf, testResult(), OutputText))
	out := buf.String()
	for _, sub := range []string{"Found 120 results", "page 2 of 3", "[7] تاريخ الطبري", "vol 2, p. 15", "0310Tabari.Tarikh", "حدثنا ابو منصور & غيره"} {
		assert.Contains(t, out, sub)
	}
	assert.NotContains(t, out, "<span")
}

func TestWriteSearchResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSearchResult(&buf, testResult(), OutputJSON))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 120.0, decoded["total"])
	hits := decoded["hits"].([]any)
	require.Len(t, hits, 1)
	hit := hits[0].(map[string]any)
	assert.Equal(t, 7.0, hit["text_id"], "embedded result fields are flattened")
	assert.Equal(t, "تاريخ الطبري", hit["title"])
	assert.Contains(t, buf.String(), `<span class="highlight">`, "markup is not escaped")
}

func TestWriteTexts(t *testing.T) {
	cat := catalog.New([]catalog.Text{
		{ID: 1, URI: "a", TitleAr: "كتاب الاول", AuthorIDs: []int{9}},
		{ID: 2, URI: "b", TitleAr: "كتاب الثاني"},
	}, []catalog.Author{{ID: 9, ShortAr: "الطبري", DeathDate: "310"}})
	list := TextList{Texts: cat.Texts, IDs: "1-2"}

	var buf bytes.Buffer
	require.NoError(t, WriteTexts(&buf, list, OutputText))
	out := buf.String()
	assert.Contains(t, out, "2 texts")
	assert.Contains(t, out, "الطبري (d. 310)")
	assert.Contains(t, out, "ids: 1-2")

	buf.Reset()
	require.NoError(t, WriteTexts(&buf, list, OutputJSON))
	var decoded TextList
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "1-2", decoded.IDs)
	assert.Len(t, decoded.Texts, 2)
}

func TestWriteRows(t *testing.T) {
	rows := []export.Row{{TextID: 1, Title: "t", Volume: "1", Page: 3, Content: "نص"}}

	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, rows, OutputText))
	assert.Equal(t, "1\tt\t1\t3\tنص\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteRows(&buf, nil, OutputJSON))
	assert.Equal(t, "[]\n", buf.String())
}

func TestPrintSearchResult(t *testing.T) {
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() {
		os.Stdout = oldStdout
		_ = w.Close()
	}()
	PrintSearchResult(&session.Result{})
	_ = w.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	assert.True(t, strings.Contains(buf.String(), "Found 0 results"))
}
