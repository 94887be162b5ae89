package tracker

import (
	"context"
	"errors"
	"fmt"

	"IndexTracker/internal/model"

	"go.uber.org/zap"
)

// ErrNoData is reported when a fetch succeeds but returns no points.
var ErrNoData = errors.New("no data returned")

// RetrievalError reports a failed fetch for a series key. The stored series
// is still used when it occurs.
type RetrievalError struct {
	Key string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Key, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// SeriesStore persists series snapshots by key.
type SeriesStore interface {
	Load(key string) (model.Series, error)
	Merge(key string, incoming model.Series) (model.Series, error)
}

// FetchFunc retrieves the latest raw series for one symbol.
type FetchFunc func(ctx context.Context) (model.Series, error)

// Updater merges freshly fetched data into the stored series.
type Updater struct {
	store  SeriesStore
	logger *zap.Logger
}

// NewUpdater creates a new Updater.
func NewUpdater(store SeriesStore, logger *zap.Logger) *Updater {
	return &Updater{store: store, logger: logger}
}

// Update fetches and merges the series stored under key. A failed or empty
// fetch contributes nothing: the last known series is returned together with
// a *RetrievalError as fetchErr. err is only set for storage failures.
func (u *Updater) Update(ctx context.Context, key string, fetch FetchFunc) (series model.Series, fetchErr, err error) {
	incoming, ferr := fetch(ctx)
	switch {
	case ferr != nil:
		u.logger.Warn("fetch failed, keeping stored data", zap.String("key", key), zap.Error(ferr))
		incoming = nil
		fetchErr = &RetrievalError{Key: key, Err: ferr}
	case len(incoming) == 0:
		u.logger.Warn("fetch returned no data, keeping stored data", zap.String("key", key))
		fetchErr = &RetrievalError{Key: key, Err: ErrNoData}
	}
	series, err = u.store.Merge(key, incoming)
	if err != nil {
		return nil, fetchErr, err
	}
	return series, fetchErr, nil
}
