package collector

import (
	"context"

	"IndexTracker/internal/model"
)

// Fetcher defines the interface for fetching daily closing prices.
type Fetcher interface {
	FetchDaily(ctx context.Context, symbol string) (model.Series, error)
	Name() string
}
