package collector

import (
	"context"
	"fmt"
	"sync"

	"IndexTracker/internal/model"

	"go.uber.org/zap"
)

// Provider names accepted by NewCollector.
const (
	ProviderAuto      = "auto"
	ProviderYahoo     = "yahoo"
	ProviderEastmoney = "eastmoney"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	mu     sync.Mutex
	Data   map[string]model.Series
	Errors map[string]error
	Calls  map[string]int
}

// NewMockFetcher creates an empty MockFetcher.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		Data:   make(map[string]model.Series),
		Errors: make(map[string]error),
		Calls:  make(map[string]int),
	}
}

func (m *MockFetcher) Name() string { return "mock" }

// Set replaces the series returned for symbol.
func (m *MockFetcher) Set(symbol string, s model.Series) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[symbol] = s
}

// Fail makes every fetch of symbol return err.
func (m *MockFetcher) Fail(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[symbol] = err
}

// CallCount returns how many times symbol was fetched.
func (m *MockFetcher) CallCount(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[symbol]
}

func (m *MockFetcher) FetchDaily(_ context.Context, symbol string) (model.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[symbol]++
	if err := m.Errors[symbol]; err != nil {
		return nil, err
	}
	return append(model.Series(nil), m.Data[symbol]...), nil
}

// Collector routes index and ETF symbols to the right data source.
type Collector struct {
	Provider  string
	Eastmoney Fetcher
	Yahoo     Fetcher
	logger    *zap.Logger
}

// NewCollector creates a new Collector.
func NewCollector(provider string, eastmoney, yahoo Fetcher, logger *zap.Logger) *Collector {
	if provider == "" {
		provider = ProviderAuto
	}
	return &Collector{Provider: provider, Eastmoney: eastmoney, Yahoo: yahoo, logger: logger}
}

// FetchIndex fetches the daily series of an index.
func (c *Collector) FetchIndex(ctx context.Context, symbol string) (model.Series, error) {
	s, err := c.fetch(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch index %s: %w", symbol, err)
	}
	return s, nil
}

// FetchETF fetches the daily series of an ETF.
func (c *Collector) FetchETF(ctx context.Context, symbol string) (model.Series, error) {
	s, err := c.fetch(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch etf %s: %w", symbol, err)
	}
	return s, nil
}

// Route returns the fetcher responsible for symbol.
func (c *Collector) Route(symbol string) Fetcher {
	switch c.Provider {
	case ProviderYahoo:
		return c.Yahoo
	case ProviderEastmoney:
		return c.Eastmoney
	}
	if IsEastmoneySymbol(symbol) {
		return c.Eastmoney
	}
	return c.Yahoo
}

func (c *Collector) fetch(ctx context.Context, symbol string) (model.Series, error) {
	f := c.Route(symbol)
	if f == nil {
		return nil, fmt.Errorf("no data source for provider %q", c.Provider)
	}
	c.logger.Debug("fetching", zap.String("symbol", symbol), zap.String("source", f.Name()))
	s, err := f.FetchDaily(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(s) == 0 {
		return nil, fmt.Errorf("%s: empty series", f.Name())
	}
	return s, nil
}
