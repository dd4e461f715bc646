// Package candle defines OHLCV candles aggregated from real-time ticks.
package candle

import "time"

// HourCandle is a one-hour candle for a stock, keyed by (stock, date, hour).
type HourCandle struct {
	StockCode  string
	Date       time.Time // date only, midnight
	Hour       int
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
}

// MinuteCandle is a one-minute candle for a stock.
type MinuteCandle struct {
	StockCode string
	Date      time.Time // date only, midnight
	// Time is the bucket start within the day, formatted HH:MM:SS in APIs.
	Time       time.Time
	Interval   int
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
}
