package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
data_dir: /var/lib/tracker/data
chart_dir: /var/lib/tracker/html
workers: 4
data_source:
  provider: eastmoney
  timeout: 10s
schedule:
  cron: "0 0 17 * * 1-5"
  run_on_start: true
pairs:
  - title: CSI 300
    index_symbol: sh000300
    index_file: csi300_index.csv
    etf_symbol: sh510300
    etf_file: csi300_etf.csv
`

const legacyPairs = `[
  {"title": "ChiNext", "index_symbol": "sz399006", "etf_symbol": "sz159915",
   "index_file": "chinext_index.csv", "etf_file": "chinext_etf.csv"}
]`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(writeFile(t, dir, "config.yaml", sample))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/var/lib/tracker/data", cfg.DataDir)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 6, cfg.WindowMonths)
	assert.Equal(t, "eastmoney", cfg.DataSource.Provider)
	assert.Equal(t, 10*time.Second, cfg.DataSource.Timeout)
	assert.True(t, cfg.Schedule.RunOnStart)
	require.Len(t, cfg.Pairs, 1)
	assert.Equal(t, "sh510300", cfg.Pairs[0].ETFSymbol)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", "/tmp/override")
	t.Setenv("WINDOW_MONTHS", "12")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := Load(writeFile(t, dir, "config.yaml", sample))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override", cfg.DataDir)
	assert.Equal(t, 12, cfg.WindowMonths)
	assert.Equal(t, "/var/lib/tracker/html", cfg.ChartDir)
	assert.True(t, cfg.TelegramEnabled())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "html", cfg.ChartDir)
	assert.Equal(t, "auto", cfg.DataSource.Provider)
	assert.Error(t, cfg.Validate(), "no pairs configured")
}

func TestLoad_LegacyPairsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "configs.json", legacyPairs)
	cfg, err := Load(writeFile(t, dir, "config.yaml", sample+"pairs_file: configs.json\n"))
	require.NoError(t, err)
	require.Len(t, cfg.Pairs, 2)
	assert.Equal(t, "ChiNext", cfg.Pairs[1].Title)
	assert.Equal(t, "chinext_etf.csv", cfg.Pairs[1].ETFFile)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(writeFile(t, dir, "config.yaml", sample))
	require.NoError(t, err)

	bad := *cfg
	bad.Pairs = append(bad.Pairs[:0:0], cfg.Pairs...)
	bad.Pairs[0].ETFFile = ""
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.DataSource.Provider = "bloomberg"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Telegram.BotToken = "only-token"
	assert.Error(t, bad.Validate())

	for _, key := range []string{"cn/idx.csv", "../idx.csv", ".."} {
		bad = *cfg
		bad.Pairs = append(bad.Pairs[:0:0], cfg.Pairs...)
		bad.Pairs[0].IndexFile = key
		assert.Error(t, bad.Validate(), key)
	}
}

func TestLoad_ProxyUnderDataSource(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "")
	os.Unsetenv("HTTPS_PROXY")
	dir := t.TempDir()
	withProxy := strings.Replace(sample, "  timeout: 10s\n", "  timeout: 10s\n  proxy: http://127.0.0.1:7890\n", 1)
	cfg, err := Load(writeFile(t, dir, "config.yaml", withProxy))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:7890", cfg.DataSource.Proxy)

	t.Setenv("HTTPS_PROXY", "http://proxy.local:3128")
	cfg, err = Load(writeFile(t, dir, "config.yaml", sample))
	require.NoError(t, err)
	assert.Equal(t, "http://proxy.local:3128", cfg.DataSource.Proxy)
}
