package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"IndexTracker/internal/model"

	"go.uber.org/zap"
)

// DefaultWindowMonths is the trailing window charted for each pair.
const DefaultWindowMonths = 6

// Source supplies raw daily series for index and ETF symbols.
type Source interface {
	FetchIndex(ctx context.Context, symbol string) (model.Series, error)
	FetchETF(ctx context.Context, symbol string) (model.Series, error)
}

// Processor updates both series of a pair and joins them for charting.
type Processor struct {
	updater      *Updater
	source       Source
	windowMonths int
	now          func() time.Time
	logger       *zap.Logger
}

// NewProcessor creates a Processor. windowMonths <= 0 selects DefaultWindowMonths.
func NewProcessor(updater *Updater, source Source, windowMonths int, logger *zap.Logger) *Processor {
	if windowMonths <= 0 {
		windowMonths = DefaultWindowMonths
	}
	return &Processor{
		updater:      updater,
		source:       source,
		windowMonths: windowMonths,
		now:          time.Now,
		logger:       logger,
	}
}

// WindowMonths returns the trailing window length.
func (p *Processor) WindowMonths() int { return p.windowMonths }

// Refresh fetches and stores the latest index and ETF data for cfg. A storage
// failure is returned as is; otherwise any failed fetch is reported as a
// *RetrievalError and the stored data stays in place.
func (p *Processor) Refresh(ctx context.Context, cfg model.PairConfig) error {
	_, _, fetchErr, err := p.update(ctx, cfg)
	if err != nil {
		return err
	}
	return fetchErr
}

// Process refreshes both series, inner-joins them on date and trims the
// result to the trailing window. The window falls back to the whole join
// when it would otherwise be empty. An empty result means there is nothing
// to chart.
func (p *Processor) Process(ctx context.Context, cfg model.PairConfig) (model.JoinedSeries, error) {
	index, etf, _, err := p.update(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(index) == 0 || len(etf) == 0 {
		return nil, nil
	}
	joined := Join(index, etf)
	if len(joined) == 0 {
		return nil, nil
	}
	cutoff := SubMonths(model.Day(p.now()), p.windowMonths)
	if recent := Since(joined, cutoff); len(recent) > 0 {
		return recent, nil
	}
	p.logger.Info("no data inside window, charting full history",
		zap.String("pair", cfg.Title), zap.Time("cutoff", cutoff))
	return joined, nil
}

func (p *Processor) update(ctx context.Context, cfg model.PairConfig) (index, etf model.Series, fetchErr, err error) {
	index, indexFetchErr, err := p.updater.Update(ctx, cfg.IndexFile, func(ctx context.Context) (model.Series, error) {
		return p.source.FetchIndex(ctx, cfg.IndexSymbol)
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("update index %s: %w", cfg.IndexFile, err)
	}
	etf, etfFetchErr, err := p.updater.Update(ctx, cfg.ETFFile, func(ctx context.Context) (model.Series, error) {
		return p.source.FetchETF(ctx, cfg.ETFSymbol)
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("update etf %s: %w", cfg.ETFFile, err)
	}
	return index, etf, errors.Join(indexFetchErr, etfFetchErr), nil
}

// Join returns the rows whose date appears in both series, in index order.
func Join(index, etf model.Series) model.JoinedSeries {
	etfByDate := make(map[time.Time]float64, len(etf))
	for _, p := range etf {
		etfByDate[p.Date] = p.Price
	}
	joined := make(model.JoinedSeries, 0, min(len(index), len(etf)))
	for _, p := range index {
		if price, ok := etfByDate[p.Date]; ok {
			joined = append(joined, model.JoinedPoint{Date: p.Date, IndexPrice: p.Price, ETFPrice: price})
		}
	}
	return joined
}

// Since returns the rows dated on or after cutoff.
func Since(joined model.JoinedSeries, cutoff time.Time) model.JoinedSeries {
	out := make(model.JoinedSeries, 0, len(joined))
	for _, row := range joined {
		if !row.Date.Before(cutoff) {
			out = append(out, row)
		}
	}
	return out
}

// SubMonths moves d back by n calendar months, clamping to the last day of
// the target month (Aug 31 minus 6 months is Feb 28 or 29).
func SubMonths(d time.Time, n int) time.Time {
	y, m, day := d.Date()
	first := time.Date(y, m-time.Month(n), 1, 0, 0, 0, 0, d.Location())
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, d.Location())
}
