package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/nasab/internal/models"
	"github.com/hyperjump/nasab/internal/names"
)

var (
	fullForm = names.NameForm{
		Kunyas: []string{"أبو منصور"},
		Nasab:  "معمر بن أحمد بن زياد",
		Nisbas: []string{"الأصبهاني"},
	}
	nisbaForm = names.NameForm{Nisbas: []string{"الرازي"}}
	emptyForm = names.NameForm{}
)

func TestCompose_DropsEmptyForms(t *testing.T) {
	cfg, err := Compose([]names.NameForm{fullForm, emptyForm, nisbaForm}, []int{3, 4}, 0, 50)
	require.NoError(t, err)
	assert.Len(t, cfg.Forms, 2)
	assert.Equal(t, []int{3, 4}, cfg.SelectedTextIDs)
	assert.Equal(t, 50, cfg.Size)

	req, err := BuildRequest(cfg, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, req.Query.Bool.Must, 2)
}

func TestCompose_InvalidQuery(t *testing.T) {
	tests := []struct {
		name    string
		forms   []names.NameForm
		wantErr bool
	}{
		{"no forms", nil, true},
		{"all empty", []names.NameForm{emptyForm, {Nasab: "  "}}, true},
		{"single kunya has no patterns", []names.NameForm{{Kunyas: []string{"ابو منصور"}}}, true},
		{"one usable", []names.NameForm{emptyForm, nisbaForm}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compose(tt.forms, nil, 0, 50)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQuery)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestByLength(t *testing.T) {
	in := []string{"ab", "abcd", "xy", "abc"}
	assert.Equal(t, []string{"abcd", "abc", "ab", "xy"}, ByLength(in))
	assert.Equal(t, []string{"ab", "abcd", "xy", "abc"}, in, "input is not modified")
}

func decode(t *testing.T, cfg *models.SearchConfig, opts Options) map[string]any {
	t.Helper()
	body, err := Marshal(cfg, opts)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestMarshal_Body(t *testing.T) {
	cfg := &models.SearchConfig{
		Forms: []models.FormPatterns{
			{SearchPatterns: []string{"معمر", "ابو منصور معمر"}},
			{SearchPatterns: []string{"الرازي"}},
		},
		SelectedTextIDs: []int{7, 9},
		From:            200,
		Size:            50,
	}
	body := decode(t, cfg, DefaultOptions())

	assert.EqualValues(t, 200, body["from"])
	assert.EqualValues(t, 50, body["size"])
	assert.ElementsMatch(t, []any{"text_id", "page_id", "vol", "page_num", "uri"}, body["_source"])
	assert.Equal(t, []any{
		map[string]any{"uri": "asc"},
		map[string]any{"page_id": "asc"},
	}, body["sort"])

	boolQ := body["query"].(map[string]any)["bool"].(map[string]any)
	must := boolQ["must"].([]any)
	require.Len(t, must, 2)

	first := must[0].(map[string]any)["bool"].(map[string]any)
	assert.EqualValues(t, 1, first["minimum_should_match"])
	should := first["should"].([]any)
	require.Len(t, should, 4)

	// longest pattern first, on both fields
	mp := should[0].(map[string]any)["match_phrase"].(map[string]any)
	assert.Equal(t, "ابو منصور معمر", mp[FieldContent].(map[string]any)["query"])
	mp = should[1].(map[string]any)["match_phrase"].(map[string]any)
	assert.Equal(t, "ابو منصور معمر", mp[FieldProclitic].(map[string]any)["query"])

	filter := boolQ["filter"].([]any)
	require.Len(t, filter, 1)
	terms := filter[0].(map[string]any)["terms"].(map[string]any)
	assert.Equal(t, []any{float64(7), float64(9)}, terms["text_id"])

	hl := body["highlight"].(map[string]any)["fields"].(map[string]any)
	content := hl[FieldContent].(map[string]any)
	assert.Equal(t, "fvh", content["type"])
	assert.EqualValues(t, 10, content["number_of_fragments"])
	assert.EqualValues(t, 200, content["fragment_size"])
	assert.Equal(t, []any{`<span class="highlight">`}, content["pre_tags"])
	assert.EqualValues(t, 3, hl[FieldProclitic].(map[string]any)["number_of_fragments"])
}

func TestMarshal_NoSelectionNoFilter(t *testing.T) {
	cfg := &models.SearchConfig{Forms: []models.FormPatterns{{SearchPatterns: []string{"الرازي"}}}, Size: 10}
	opts := DefaultOptions()
	opts.Highlight = false
	body := decode(t, cfg, opts)

	boolQ := body["query"].(map[string]any)["bool"].(map[string]any)
	assert.NotContains(t, boolQ, "filter")
	assert.NotContains(t, body, "highlight")
}

func TestBuildRequest_Errors(t *testing.T) {
	_, err := BuildRequest(nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = BuildRequest(&models.SearchConfig{Forms: []models.FormPatterns{{}}}, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = BuildRequest(&models.SearchConfig{Forms: []models.FormPatterns{{SearchPatterns: []string{"x"}}}}, Options{})
	assert.Error(t, err)
}
