package chart

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"IndexTracker/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestFileName(t *testing.T) {
	assert.Equal(t, "CSI_300-HS300ETF.html", FileName("CSI 300/HS300ETF"))
	assert.Equal(t, "plain.html", FileName("plain"))
}

func TestRender(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	r, err := NewRenderer(dir, 6, "", zaptest.NewLogger(t))
	require.NoError(t, err)

	cfg := model.PairConfig{Title: "CSI 300", IndexSymbol: "sh000300", ETFSymbol: "sh510300"}
	joined := model.JoinedSeries{
		{Date: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), IndexPrice: 3461.69, ETFPrice: 3.512},
		{Date: time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC), IndexPrice: 3451.31, ETFPrice: 3.503},
	}
	path, err := r.Render(cfg, joined)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "CSI_300.html"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(raw)
	assert.Contains(t, html, "CSI 300")
	assert.Contains(t, html, "2024-07-01")
	assert.Contains(t, html, "sh510300")
	assert.Contains(t, html, "toFixed(2)")
	assert.Contains(t, html, "saveAsImage")
	assert.Contains(t, html, "restore")
}

func TestRender_ReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRenderer(dir, 6, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	cfg := model.PairConfig{Title: "HSI", IndexSymbol: "hkHSI", ETFSymbol: "sz159920"}
	row := func(day int, idx float64) model.JoinedPoint {
		return model.JoinedPoint{Date: time.Date(2024, 7, day, 0, 0, 0, 0, time.UTC), IndexPrice: idx, ETFPrice: 1.1}
	}

	path, err := r.Render(cfg, model.JoinedSeries{row(1, 17000)})
	require.NoError(t, err)
	path, err = r.Render(cfg, model.JoinedSeries{row(1, 17000), row(2, 17250)})
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "2024-07-02")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "HSI.html", entries[0].Name())
}

func TestRender_FailedWriteLeavesNoPartialFile(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRenderer(dir, 6, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	// a directory in place of the chart makes the final rename fail
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "blocked.html", "keep"), 0o755))

	joined := model.JoinedSeries{{Date: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), IndexPrice: 1, ETFPrice: 2}}
	_, err = r.Render(model.PairConfig{Title: "blocked"}, joined)
	var re *RenderError
	require.ErrorAs(t, err, &re)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDir())
}

func TestRender_Empty(t *testing.T) {
	r, err := NewRenderer(t.TempDir(), 6, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = r.Render(model.PairConfig{Title: "x"}, nil)
	var re *RenderError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, "x", re.Title)
}
