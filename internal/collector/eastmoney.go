package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"IndexTracker/internal/model"
)

const eastmoneyBaseURL = "https://push2his.eastmoney.com"

// EastmoneyFetcher implements Fetcher using the Eastmoney daily kline API.
// It covers Shanghai/Shenzhen indexes and ETFs and Hong Kong listings.
type EastmoneyFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewEastmoneyFetcher creates a new fetcher with optional proxy support.
func NewEastmoneyFetcher(proxyURL string, timeout time.Duration) *EastmoneyFetcher {
	return &EastmoneyFetcher{
		BaseURL: eastmoneyBaseURL,
		Client:  newHTTPClient(proxyURL, timeout),
	}
}

func (f *EastmoneyFetcher) Name() string { return "eastmoney" }

// emKline is the expected JSON shape from the kline endpoint.
type emKline struct {
	RC   int `json:"rc"`
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// SecID maps a tracker symbol to an Eastmoney security id ("market.code").
//
//	sh000300, sh510300 -> 1.000300, 1.510300
//	sz399006, sz159915 -> 0.399006, 0.159915
//	hkHSI, hk00700     -> 100.HSI, 116.00700
//	510300, 159915     -> 1.510300, 0.159915 (bare fund codes)
func SecID(symbol string) (string, error) {
	s := strings.TrimSpace(symbol)
	if s == "" {
		return "", fmt.Errorf("empty symbol")
	}
	if market, code, ok := strings.Cut(s, "."); ok && isDigits(market) && code != "" {
		return s, nil
	}
	// market prefixes are lowercase; uppercase tickers belong to other sources
	prefix, code := s[:min(2, len(s))], ""
	if len(s) > 2 {
		code = s[2:]
	}
	switch {
	case prefix == "sh" && isDigits(code):
		return "1." + code, nil
	case prefix == "sz" && isDigits(code):
		return "0." + code, nil
	case prefix == "hk" && isDigits(code):
		return "116." + code, nil
	case prefix == "hk" && isLetters(code):
		return "100." + strings.ToUpper(code), nil
	}
	if len(s) == 6 && isDigits(s) {
		if s[0] == '5' || s[0] == '6' {
			return "1." + s, nil
		}
		return "0." + s, nil
	}
	return "", fmt.Errorf("unsupported symbol %q", symbol)
}

// IsEastmoneySymbol reports whether SecID understands symbol.
func IsEastmoneySymbol(symbol string) bool {
	_, err := SecID(symbol)
	return err == nil
}

func isLetters(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return s != ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// FetchDaily returns the full unadjusted daily close history for symbol.
func (f *EastmoneyFetcher) FetchDaily(ctx context.Context, symbol string) (model.Series, error) {
	secid, err := SecID(symbol)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("secid", secid)
	params.Set("fields1", "f1,f2,f3,f4,f5,f6")
	params.Set("fields2", "f51,f52,f53,f54,f55,f56")
	params.Set("klt", "101")
	params.Set("fqt", "0")
	params.Set("beg", "0")
	params.Set("end", "20500101")
	endpoint := fmt.Sprintf("%s/api/qt/stock/kline/get?%s", f.BaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch klines: status %d, body: %s", resp.StatusCode, string(body))
	}
	var result emKline
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	if result.Data == nil || len(result.Data.Klines) == 0 {
		return nil, fmt.Errorf("eastmoney: no data returned for %s", secid)
	}
	return parseKlines(result.Data.Klines)
}

// parseKlines reads "date,open,close,high,low,volume" rows.
func parseKlines(rows []string) (model.Series, error) {
	series := make(model.Series, 0, len(rows))
	for _, row := range rows {
		fields := strings.Split(row, ",")
		if len(fields) < 3 {
			return nil, fmt.Errorf("malformed kline %q", row)
		}
		d, err := model.ParseDay(fields[0])
		if err != nil {
			return nil, fmt.Errorf("kline date %q: %w", fields[0], err)
		}
		price, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("kline close %q: %w", fields[2], err)
		}
		series = append(series, model.PricePoint{Date: d, Price: price})
	}
	// Ensure chronological order
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, nil
}
