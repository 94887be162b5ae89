package calculator

import (
	"errors"
	"math"
	"time"

	"IndexTracker/internal/model"
)

// WindowStats summarises a joined index/ETF window.
type WindowStats struct {
	From, To     time.Time
	Rows         int
	LastIndex    float64
	LastETF      float64
	IndexReturn  float64 // fractional, 0.05 = +5%
	ETFReturn    float64
	TrackingDiff float64 // ETFReturn - IndexReturn
	IndexHigh    float64
	IndexLow     float64
	ETFHigh      float64
	ETFLow       float64
	Correlation  float64 // of daily returns, 0 when undefined
}

// Summarize computes WindowStats over joined.
func Summarize(joined model.JoinedSeries) (WindowStats, error) {
	if len(joined) == 0 {
		return WindowStats{}, errors.New("no joined rows provided")
	}
	first, last := joined[0], joined[len(joined)-1]
	st := WindowStats{
		From:      first.Date,
		To:        last.Date,
		Rows:      len(joined),
		LastIndex: last.IndexPrice,
		LastETF:   last.ETFPrice,
	}

	var err error
	if st.IndexReturn, err = PeriodReturn(first.IndexPrice, last.IndexPrice); err != nil {
		return st, err
	}
	if st.ETFReturn, err = PeriodReturn(first.ETFPrice, last.ETFPrice); err != nil {
		return st, err
	}
	st.TrackingDiff = st.ETFReturn - st.IndexReturn

	st.IndexHigh, st.IndexLow = math.Inf(-1), math.Inf(1)
	st.ETFHigh, st.ETFLow = math.Inf(-1), math.Inf(1)
	for _, r := range joined {
		st.IndexHigh = math.Max(st.IndexHigh, r.IndexPrice)
		st.IndexLow = math.Min(st.IndexLow, r.IndexPrice)
		st.ETFHigh = math.Max(st.ETFHigh, r.ETFPrice)
		st.ETFLow = math.Min(st.ETFLow, r.ETFPrice)
	}

	if c, err := ReturnCorrelation(joined); err == nil {
		st.Correlation = c
	}
	return st, nil
}

// PeriodReturn returns the fractional change from start to end.
func PeriodReturn(start, end float64) (float64, error) {
	if start == 0 {
		return 0, errors.New("start price must be non-zero")
	}
	return end/start - 1, nil
}

// ReturnCorrelation is the Pearson correlation of the daily returns of both legs.
// Requires at least three rows.
func ReturnCorrelation(joined model.JoinedSeries) (float64, error) {
	if len(joined) < 3 {
		return 0, errors.New("not enough data for correlation")
	}
	n := len(joined) - 1
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 1; i < len(joined); i++ {
		prev, cur := joined[i-1], joined[i]
		if prev.IndexPrice == 0 || prev.ETFPrice == 0 {
			continue
		}
		xs = append(xs, cur.IndexPrice/prev.IndexPrice-1)
		ys = append(ys, cur.ETFPrice/prev.ETFPrice-1)
	}
	if len(xs) < 2 {
		return 0, errors.New("not enough data for correlation")
	}

	mx, my := mean(xs), mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, errors.New("constant returns")
	}
	return sxy / math.Sqrt(sxx*syy), nil
}

func mean(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
