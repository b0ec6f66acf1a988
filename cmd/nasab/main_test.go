package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/nasab/internal/catalog"
	"github.com/hyperjump/nasab/internal/config"
	"github.com/hyperjump/nasab/internal/export"
	"github.com/hyperjump/nasab/internal/models"
	"github.com/hyperjump/nasab/internal/names"
	"github.com/hyperjump/nasab/internal/server"
	"github.com/hyperjump/nasab/internal/session"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{config.EnvAPIURL, config.EnvAPIUser, config.EnvAPIPass, config.EnvAPIIndex} {
		t.Setenv(k, "")
	}
}

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after positionals are moved first",
			args:     []string{"pages.jsonl", "-config", "/etc/nasab.yaml"},
			expected: []string{"-config", "/etc/nasab.yaml", "pages.jsonl"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-config", "/etc/nasab.yaml", "pages.jsonl"},
			expected: []string{"-config", "/etc/nasab.yaml", "pages.jsonl"},
		},
		{
			name:     "positional only returns unchanged",
			args:     []string{"pages.jsonl"},
			expected: []string{"pages.jsonl"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("debug: true\n"), 0600))

	origWd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { _ = os.Chdir(origWd) }()
	require.NoError(t, os.Chdir(dir))

	cfg, resolved, err := loadConfig(defaultConfigPath)
	require.NoError(t, err)
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	assert.Equal(t, configPathCanon, resolvedCanon)
	assert.True(t, cfg.Debug)
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  host: \"127.0.0.1\"\n  port: 9000\n"), 0600))

	cfg, resolved, err := loadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, configPath, resolved)
	assert.Equal(t, 9000, cfg.Server.Port)

	_, _, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFormFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	ff := addFormFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"-kunya", "ابو منصور", "-kunya", "ابو بكر",
		"-nasab", "معمر بن احمد",
		"-nisba", "الاصبهاني",
		"-flags", "two_nasab, kunya_nasab",
	}))
	form, err := ff.form()
	require.NoError(t, err)
	assert.Equal(t, []string{"ابو منصور", "ابو بكر"}, form.Kunyas)
	assert.Equal(t, "معمر بن احمد", form.Nasab)
	assert.Equal(t, []string{"الاصبهاني"}, form.Nisbas)
	assert.Equal(t, names.Flags{AllowTwoNasab: true, AllowKunyaNasab: true}, form.Flags)

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	ff = addFormFlags(fs)
	require.NoError(t, fs.Parse([]string{"-flags", "bogus"}))
	_, err = ff.form()
	assert.Error(t, err)
}

func TestSearchFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	sf := addSearchFlags(fs)
	require.NoError(t, fs.Parse([]string{"-nasab", "معمر", "-texts", "3,1-2", "-page", "2"}))
	p, err := sf.params()
	require.NoError(t, err)
	require.Len(t, p.Forms, 1)
	assert.Equal(t, []int{1, 2, 3}, p.SelectedTextIDs)
	assert.Equal(t, 2, p.Page)

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	sf = addSearchFlags(fs)
	encoded := session.Encode(session.SearchParams{Forms: []names.NameForm{{Nasab: "x"}, {Nisbas: []string{"y"}}}})
	require.NoError(t, fs.Parse([]string{"-nasab", "ignored", "-q", encoded}))
	p, err = sf.params()
	require.NoError(t, err)
	assert.Len(t, p.Forms, 2)

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	sf = addSearchFlags(fs)
	require.NoError(t, fs.Parse([]string{"-texts", "9-1"}))
	_, err = sf.params()
	assert.Error(t, err)
}

func TestRunPatterns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runPatterns([]string{"-nasab", "معمر بن أحمد", "-output", "json"}, &buf))
	var p names.Patterns
	require.NoError(t, json.Unmarshal(buf.Bytes(), &p))
	assert.Contains(t, p.SearchPatterns, "معمر بن احمد")

	assert.Error(t, runPatterns([]string{"-output", "xml"}, &buf))
}

func TestRunRanges(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runRanges([]string{"compress", "7", "1,2", "3"}, &buf))
	assert.Equal(t, "1-3,7\n", buf.String())

	buf.Reset()
	require.NoError(t, runRanges([]string{"decompress", "1-3,7"}, &buf))
	assert.Equal(t, "1,2,3,7\n", buf.String())

	assert.Error(t, runRanges([]string{"compress", "x"}, &buf))
	assert.Error(t, runRanges([]string{"decompress", "3-1"}, &buf))
	assert.Error(t, runRanges([]string{"compress", "-3"}, &buf))
	assert.Error(t, runRanges([]string{"decompress", "0-9223372036854775807"}, &buf))
	assert.Error(t, runRanges([]string{"shuffle"}, &buf))
	assert.Error(t, runRanges(nil, &buf))
}

func TestReadPages(t *testing.T) {
	input := `{"page_id":"a","text_id":1,"page_content":"x"}

{"page_id":"b","text_id":1,"page_content":"y"}
{"page_id":"c","text_id":2,"page_content":"z"}
`
	var batches [][]string
	n, err := readPages(strings.NewReader(input), 2, func(pages []models.Page) error {
		ids := make([]string, len(pages))
		for i, p := range pages {
			ids[i] = p.ID
		}
		batches = append(batches, ids)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, batches)

	_, err = readPages(strings.NewReader("{\"text_id\":1}\n"), 2, func([]models.Page) error { return nil })
	assert.ErrorContains(t, err, "line 1")
	_, err = readPages(strings.NewReader("not json\n"), 2, func([]models.Page) error { return nil })
	assert.Error(t, err)
}

func TestTextFilter(t *testing.T) {
	cat := catalog.New(nil, []catalog.Author{{ID: 1, DeathDate: "310"}, {ID: 2, DeathDate: "571"}})

	f := textFilter(cat, nil, nil, -1, -1, "")
	assert.True(t, f.IsZero())

	f = textFilter(cat, []string{"shamela"}, nil, -1, 400, "")
	require.NotNil(t, f.DateRange)
	assert.Equal(t, catalog.DateRange{Min: 310, Max: 400}, *f.DateRange)
	assert.Equal(t, []string{"shamela"}, f.Collections)
}

const corpus = `{"page_id":"0001-001","text_id":1,"uri":"0300Isfahani.Tarikh","vol":"01","page_num":1,"page_content":"حدثنا أبو منصور مَعْمَر بن أحمد بن زياد الأصبهاني قال"}
{"page_id":"0001-002","text_id":1,"uri":"0300Isfahani.Tarikh","vol":"01","page_num":2,"page_content":"ذكر معمر بن احمد بن زياد في الطبقة"}
{"page_id":"0002-001","text_id":2,"uri":"0400Dhahabi.Siyar","vol":"03","page_num":17,"page_content":"وأبو منصور معمر بن احمد الاصبهاني ثقة"}
{"page_id":"0003-001","text_id":3,"uri":"0500Razi.Tafsir","vol":"01","page_num":9,"page_content":"قال الرازي في تفسيره"}
`

func TestIndexSearchExport_Local(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf(`
backend:
  kind: local
  local_path: %q
`, filepath.Join(dir, "index", "pages"))), 0600))
	pagesPath := filepath.Join(dir, "pages.jsonl")
	require.NoError(t, os.WriteFile(pagesPath, []byte(corpus), 0600))

	var buf bytes.Buffer
	require.NoError(t, runIndex([]string{pagesPath, "-config", configPath}, &buf))
	assert.Contains(t, buf.String(), "Indexed 4 page(s)")

	nameArgs := []string{
		"-config", configPath,
		"-kunya", "أبو منصور",
		"-nasab", "معمر بن أحمد بن زياد",
		"-nisba", "الأصبهاني",
	}

	buf.Reset()
	require.NoError(t, runSearch(append(append([]string{}, nameArgs...), "-output", "json"), &buf))
	var res session.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Hits, 3)
	assert.Equal(t, "0001-001", res.Hits[0].PageID)
	assert.Equal(t, catalog.UnknownTitle, res.Hits[0].Title)

	buf.Reset()
	require.NoError(t, runExport(append(append([]string{}, nameArgs...), "-out", "-", "-output", "json"), &buf))
	var rows []export.Row
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	assert.NotEmpty(t, rows)
	for _, r := range rows {
		assert.NotContains(t, r.Content, "<")
	}

	buf.Reset()
	out := filepath.Join(dir, "out.xlsx")
	require.NoError(t, runExport(append(append([]string{}, nameArgs...), "-out", out), &buf))
	assert.FileExists(t, out)
}

func TestRunIndex_RequiresLocalBackend(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("backend:\n  url: \"http://localhost:9200\"\n"), 0600))
	assert.Error(t, runIndex([]string{"-config", configPath, "pages.jsonl"}, &bytes.Buffer{}))
}

type fakeSearcher struct{}

func (fakeSearcher) Search(_ context.Context, cfg *models.SearchConfig) (*models.SearchResponse, error) {
	resp := &models.SearchResponse{Total: 2}
	for i := cfg.From; i < 2; i++ {
		resp.Hits = append(resp.Hits, models.SearchResult{TextID: 5, PageID: fmt.Sprintf("p%d", i)})
	}
	return resp, nil
}

func TestSearchViaHTTP(t *testing.T) {
	mgr := session.NewManager(fakeSearcher{}, nil, nil)
	srv := server.NewServer(mgr, nil, nil, &config.ServerConfig{}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	res, err := searchViaHTTP(ts.URL+"/", session.SearchParams{Forms: []names.NameForm{{Nasab: "معمر بن احمد"}}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Len(t, res.Hits, 2)
	assert.Equal(t, 0, mgr.Len(), "the session is closed after the search")

	_, err = searchViaHTTP(ts.URL, session.SearchParams{})
	assert.ErrorContains(t, err, "400")
}
