package domain

import (
	"fmt"
	"time"
)

// Candle is one OHLCV bar. Timestamp is the period start in unix milliseconds.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Time returns the candle period start.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}

// Interval is a candle timeframe such as "1m" or "1h".
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval1d  Interval = "1d"
)

var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval3m:  3 * time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
	Interval2h:  2 * time.Hour,
	Interval4h:  4 * time.Hour,
	Interval6h:  6 * time.Hour,
	Interval8h:  8 * time.Hour,
	Interval1d:  24 * time.Hour,
}

// Duration returns the length of one candle of this interval.
func (i Interval) Duration() time.Duration {
	return intervalDurations[i]
}

// Validate reports an error for unknown intervals.
func (i Interval) Validate() error {
	if _, ok := intervalDurations[i]; !ok {
		return fmt.Errorf("unknown interval %q", string(i))
	}
	return nil
}

// Align truncates t to the start of the interval period that contains it.
func (i Interval) Align(t time.Time) time.Time {
	d := i.Duration()
	if d == 0 {
		return t.UTC()
	}
	ms := t.UnixMilli()
	step := d.Milliseconds()
	return time.UnixMilli(ms - ms%step).UTC()
}
