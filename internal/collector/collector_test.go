package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"IndexTracker/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSecID(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
		ok     bool
	}{
		{"sh000300", "1.000300", true},
		{"sh510300", "1.510300", true},
		{"sz399006", "0.399006", true},
		{"sz159915", "0.159915", true},
		{"hkHSI", "100.HSI", true},
		{"hk00700", "116.00700", true},
		{"510300", "1.510300", true},
		{"159915", "0.159915", true},
		{"1.000905", "1.000905", true},
		{"SPY", "", false},
		{"SHY", "", false},
		{"BRK.B", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := SecID(tt.symbol)
		if !tt.ok {
			assert.Error(t, err, tt.symbol)
			continue
		}
		require.NoError(t, err, tt.symbol)
		assert.Equal(t, tt.want, got, tt.symbol)
	}
}

func TestEastmoneyFetcher_FetchDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/qt/stock/kline/get", r.URL.Path)
		assert.Equal(t, "1.510300", r.URL.Query().Get("secid"))
		assert.Equal(t, "101", r.URL.Query().Get("klt"))
		fmt.Fprint(w, `{"rc":0,"data":{"code":"510300","name":"300ETF","klines":[
			"2024-01-03,3.40,3.45,3.47,3.39,1000",
			"2024-01-02,3.50,3.41,3.52,3.40,1200"]}}`)
	}))
	defer srv.Close()

	f := NewEastmoneyFetcher("", time.Second)
	f.BaseURL = srv.URL
	got, err := f.FetchDaily(context.Background(), "sh510300")
	require.NoError(t, err)
	want := model.Series{
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Price: 3.41},
		{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Price: 3.45},
	}
	assert.Equal(t, want, got)
}

func TestEastmoneyFetcher_NoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rc":0,"data":null}`)
	}))
	defer srv.Close()

	f := NewEastmoneyFetcher("", time.Second)
	f.BaseURL = srv.URL
	_, err := f.FetchDaily(context.Background(), "sz159915")
	assert.Error(t, err)
}

func TestYahooFetcher_FetchDaily(t *testing.T) {
	// 2024-01-02 14:30 UTC and 2024-01-03 14:30 UTC sessions, one null close
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/^GSPC", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		fmt.Fprint(w, `{"chart":{"result":[{"meta":{"gmtoffset":-18000},
			"timestamp":[1704205800,1704292200,1704378600],
			"indicators":{"quote":[{"close":[4742.83,null,4688.68]}]}}],"error":null}}`)
	}))
	defer srv.Close()

	f := NewYahooFetcher("", time.Second, "1mo")
	f.BaseURL = srv.URL
	got, err := f.FetchDaily(context.Background(), "SPX")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), got[0].Date)
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), got[1].Date)
	assert.Equal(t, 4688.68, got[1].Price)
}

func TestYahooFetcher_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	}))
	defer srv.Close()

	f := NewYahooFetcher("", time.Second, "")
	f.BaseURL = srv.URL
	_, err := f.FetchDaily(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No data found")
}

func TestCollector_Route(t *testing.T) {
	em, yh := NewMockFetcher(), NewMockFetcher()
	c := NewCollector(ProviderAuto, em, yh, zaptest.NewLogger(t))
	assert.Same(t, em, c.Route("sh000300"))
	assert.Same(t, em, c.Route("510300"))
	assert.Same(t, yh, c.Route("SPY"))

	c = NewCollector(ProviderYahoo, em, yh, zaptest.NewLogger(t))
	assert.Same(t, yh, c.Route("sh000300"))
}

func TestCollector_EmptyIsError(t *testing.T) {
	em := NewMockFetcher()
	c := NewCollector(ProviderAuto, em, NewMockFetcher(), zaptest.NewLogger(t))
	_, err := c.FetchETF(context.Background(), "sh510300")
	assert.Error(t, err)

	boom := errors.New("boom")
	em.Fail("sh000300", boom)
	_, err = c.FetchIndex(context.Background(), "sh000300")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, em.CallCount("sh000300"))
}
