package model

import "time"

// DateLayout is the on-disk and display format of a trading day.
const DateLayout = "2006-01-02"

// PricePoint is a single daily closing price.
type PricePoint struct {
	Date  time.Time
	Price float64
}

// Series holds daily prices sorted ascending by date, one point per date.
type Series []PricePoint

// JoinedPoint is one row of an index/ETF comparison.
type JoinedPoint struct {
	Date       time.Time
	IndexPrice float64
	ETFPrice   float64
}

// JoinedSeries is the inner join of an index series and an ETF series on date.
type JoinedSeries []JoinedPoint

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a calendar date in DateLayout.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
