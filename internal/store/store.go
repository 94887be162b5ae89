package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"IndexTracker/internal/model"

	"go.uber.org/zap"
)

var header = []string{"date", "price"}

// ErrInvalidKey is returned for keys that are not plain file names.
var ErrInvalidKey = errors.New("series key must be a plain file name")

// ValidKey reports whether key names a file directly inside the data dir.
func ValidKey(key string) bool {
	return key != "" && key != "." && key != ".." && filepath.Base(key) == key && !strings.ContainsAny(key, `/\`)
}

// legacy snapshots may carry a midnight time component
var readLayouts = []string{model.DateLayout, "2006-01-02 15:04:05"}

// ReadError reports a malformed snapshot. It is never recovered automatically.
type ReadError struct {
	Key  string
	Line int
	Err  error
}

func (e *ReadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("read series %q line %d: %v", e.Key, e.Line, e.Err)
	}
	return fmt.Sprintf("read series %q: %v", e.Key, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Store persists each series key as a CSV snapshot under a data directory.
type Store struct {
	dir    string
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir, logger: logger, locks: make(map[string]*sync.Mutex)}, nil
}

// Path returns the snapshot file for key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key)
}

// Load returns the persisted series for key, or an empty series if none exists.
func (s *Store) Load(key string) (model.Series, error) {
	if !ValidKey(key) {
		return nil, &ReadError{Key: key, Err: ErrInvalidKey}
	}
	f, err := os.Open(s.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.Series{}, nil
		}
		return nil, &ReadError{Key: key, Err: err}
	}
	defer f.Close()
	return decode(key, f)
}

// Merge appends the points of incoming dated after the stored maximum and
// persists the result. Nothing is written when incoming contributes no point.
func (s *Store) Merge(key string, incoming model.Series) (model.Series, error) {
	if !ValidKey(key) {
		return nil, fmt.Errorf("merge series %q: %w", key, ErrInvalidKey)
	}
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.Load(key)
	if err != nil {
		return nil, err
	}

	fresh := forward(existing, incoming)
	if len(fresh) == 0 {
		return existing, nil
	}

	merged := make(model.Series, 0, len(existing)+len(fresh))
	merged = append(merged, existing...)
	merged = append(merged, fresh...)
	merged = dedupSort(merged)

	if err := s.write(key, merged); err != nil {
		return nil, err
	}
	s.logger.Debug("series merged",
		zap.String("key", key),
		zap.Int("added", len(merged)-len(existing)),
		zap.Int("rows", len(merged)))
	return merged, nil
}

func (s *Store) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// forward keeps the valid incoming points strictly after the latest stored date.
func forward(existing, incoming model.Series) model.Series {
	var latest time.Time
	for _, p := range existing {
		if p.Date.After(latest) {
			latest = p.Date
		}
	}
	hasLatest := len(existing) > 0
	out := make(model.Series, 0, len(incoming))
	for _, p := range incoming {
		if p.Date.IsZero() || math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
			continue
		}
		p.Date = model.Day(p.Date)
		if hasLatest && !p.Date.After(latest) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// dedupSort keeps the last occurrence of every date and sorts ascending.
func dedupSort(points model.Series) model.Series {
	index := make(map[time.Time]int, len(points))
	out := make(model.Series, 0, len(points))
	for _, p := range points {
		if i, ok := index[p.Date]; ok {
			out[i] = p
			continue
		}
		index[p.Date] = len(out)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (s *Store) write(key string, series model.Series) error {
	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(key)+".*")
	if err != nil {
		return fmt.Errorf("write series %q: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp, series); err != nil {
		tmp.Close()
		return fmt.Errorf("write series %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write series %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(key)); err != nil {
		return fmt.Errorf("write series %q: %w", key, err)
	}
	return nil
}

func encode(w io.Writer, series model.Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range series {
		rec := []string{p.Date.Format(model.DateLayout), strconv.FormatFloat(p.Price, 'f', -1, 64)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func decode(key string, r io.Reader) (model.Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err == io.EOF {
		return model.Series{}, nil
	}
	if err != nil {
		return nil, &ReadError{Key: key, Line: 1, Err: err}
	}
	dateCol, priceCol := -1, -1
	for i, name := range head {
		switch name {
		case "date":
			dateCol = i
		case "price":
			priceCol = i
		}
	}
	if dateCol < 0 || priceCol < 0 {
		return nil, &ReadError{Key: key, Line: 1, Err: fmt.Errorf("missing date/price columns in header %v", head)}
	}

	series := model.Series{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ReadError{Key: key, Line: line, Err: err}
		}
		if dateCol >= len(rec) || priceCol >= len(rec) {
			return nil, &ReadError{Key: key, Line: line, Err: fmt.Errorf("short record %v", rec)}
		}
		d, err := parseDate(rec[dateCol])
		if err != nil {
			return nil, &ReadError{Key: key, Line: line, Err: err}
		}
		price, err := strconv.ParseFloat(rec[priceCol], 64)
		if err != nil {
			return nil, &ReadError{Key: key, Line: line, Err: err}
		}
		series = append(series, model.PricePoint{Date: d, Price: price})
	}
	return series, nil
}

func parseDate(s string) (time.Time, error) {
	var err error
	for _, layout := range readLayouts {
		var d time.Time
		if d, err = time.Parse(layout, s); err == nil {
			return model.Day(d), nil
		}
	}
	return time.Time{}, err
}
