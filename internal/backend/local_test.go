package backend

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/nasab/internal/metrics"
	"github.com/hyperjump/nasab/internal/models"
	"github.com/hyperjump/nasab/internal/names"
	"github.com/hyperjump/nasab/internal/query"
)

var testPages = []models.Page{
	{ID: "0001-001", TextID: 1, URI: "0300Isfahani.Tarikh", Vol: "01", PageNum: 1,
		Content: "حدثنا أبو منصور مَعْمَر بن أحمد بن زياد الأصبهاني قال"},
	{ID: "0001-002", TextID: 1, URI: "0300Isfahani.Tarikh", Vol: "01", PageNum: 2,
		Content: "ذكر معمر بن احمد بن زياد في الطبقة"},
	{ID: "0002-001", TextID: 2, URI: "0400Dhahabi.Siyar", Vol: "03", PageNum: 17,
		Content: "وأبو منصور معمر بن احمد الاصبهاني ثقة"},
	{ID: "0003-001", TextID: 3, URI: "0500Razi.Tafsir", Vol: "01", PageNum: 9,
		Content: "قال الرازي في تفسيره"},
}

var isfahani = names.NameForm{
	Kunyas: []string{"أبو منصور"},
	Nasab:  "معمر بن أحمد بن زياد",
	Nisbas: []string{"الأصبهاني"},
}

func openTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := OpenLocal(filepath.Join(t.TempDir(), "pages.bleve"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	require.NoError(t, l.Index(context.Background(), testPages))
	return l
}

func compose(t *testing.T, forms []names.NameForm, ids []int, from, size int) *models.SearchConfig {
	t.Helper()
	cfg, err := query.Compose(forms, ids, from, size)
	require.NoError(t, err)
	return cfg
}

func pageIDs(resp *models.SearchResponse) []string {
	ids := make([]string, len(resp.Hits))
	for i, h := range resp.Hits {
		ids[i] = h.PageID
	}
	return ids
}

func TestLocal_SearchSortedByURIAndPage(t *testing.T) {
	l := openTestLocal(t)

	resp, err := l.Search(context.Background(), compose(t, []names.NameForm{isfahani}, nil, 0, 50))
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, []string{"0001-001", "0001-002", "0002-001"}, pageIDs(resp))

	first := resp.Hits[0]
	assert.Equal(t, 1, first.TextID)
	assert.Equal(t, "0300Isfahani.Tarikh", first.URI)
	assert.Equal(t, "01", first.Vol)
	assert.Equal(t, 1, first.PageNum)
}

func TestLocal_ProcliticMatch(t *testing.T) {
	l := openTestLocal(t)

	form := names.NameForm{Kunyas: []string{"ابو منصور"}, Nasab: "معمر بن احمد"}
	resp, err := l.Search(context.Background(), compose(t, []names.NameForm{form}, []int{2}, 0, 50))
	require.NoError(t, err)
	assert.Equal(t, []string{"0002-001"}, pageIDs(resp))
}

func TestLocal_TextFilterAndWindow(t *testing.T) {
	l := openTestLocal(t)

	resp, err := l.Search(context.Background(), compose(t, []names.NameForm{isfahani}, []int{1, 3}, 0, 50))
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, []string{"0001-001", "0001-002"}, pageIDs(resp))

	resp, err = l.Search(context.Background(), compose(t, []names.NameForm{isfahani}, nil, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, []string{"0001-002"}, pageIDs(resp))
}

func TestLocal_FormsAreANDed(t *testing.T) {
	l := openTestLocal(t)

	nisba := names.NameForm{Nisbas: []string{"الاصبهاني"}}
	resp, err := l.Search(context.Background(), compose(t, []names.NameForm{isfahani, nisba}, nil, 0, 50))
	require.NoError(t, err)
	assert.Equal(t, []string{"0001-001", "0002-001"}, pageIDs(resp))

	razi := names.NameForm{Nisbas: []string{"الرازي"}}
	resp, err = l.Search(context.Background(), compose(t, []names.NameForm{isfahani, razi}, nil, 0, 50))
	require.NoError(t, err)
	assert.Zero(t, resp.Total)
	assert.Empty(t, resp.Hits)
}

func TestLocal_Highlights(t *testing.T) {
	l := openTestLocal(t)

	razi := names.NameForm{Nisbas: []string{"الرازي"}}
	resp, err := l.Search(context.Background(), compose(t, []names.NameForm{razi}, nil, 0, 50))
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)

	var all []string
	for _, frags := range resp.Hits[0].Highlights {
		all = append(all, frags...)
	}
	require.NotEmpty(t, all)
	assert.True(t, strings.Contains(strings.Join(all, " "), `<span class="highlight">`))
}

func TestLocal_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.bleve")
	l, err := OpenLocal(path, nil)
	require.NoError(t, err)
	require.NoError(t, l.Index(context.Background(), testPages))
	require.NoError(t, l.Close())

	l, err = OpenLocal(path, nil)
	require.NoError(t, err)
	defer l.Close()
	n, err := l.DocCount()
	require.NoError(t, err)
	assert.EqualValues(t, len(testPages), n)
}

func TestLocal_Errors(t *testing.T) {
	l := openTestLocal(t)

	_, err := l.Search(context.Background(), &models.SearchConfig{Size: 10})
	assert.ErrorIs(t, err, query.ErrInvalidQuery)

	err = l.Index(context.Background(), []models.Page{{TextID: 5}})
	assert.Error(t, err)
}

type failingBackend struct{ err error }

func (f failingBackend) Search(context.Context, *models.SearchConfig) (*models.SearchResponse, error) {
	return nil, f.err
}
func (f failingBackend) Name() string { return "failing" }
func (f failingBackend) Close() error { return nil }

func TestInstrumented(t *testing.T) {
	l := openTestLocal(t)
	inst := Instrument(l, metrics.New(), nil)
	assert.Equal(t, "local", inst.Name())

	resp, err := inst.Search(context.Background(), compose(t, []names.NameForm{isfahani}, nil, 0, 50))
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Total)

	boom := &Error{Status: 500}
	_, err = Instrument(failingBackend{err: boom}, nil, nil).Search(context.Background(), compose(t, []names.NameForm{isfahani}, nil, 0, 50))
	var backendErr *Error
	assert.True(t, errors.As(err, &backendErr))

	_, err = inst.Search(context.Background(), &models.SearchConfig{})
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
}

func TestLocal_ContextCanceled(t *testing.T) {
	l := openTestLocal(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := l.Search(ctx, compose(t, []names.NameForm{isfahani}, nil, 0, 50))
	if err != nil {
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
}
