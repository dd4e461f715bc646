// Package stock defines listed stock metadata and daily closes.
package stock

import "time"

// Metadata describes a listed stock.
type Metadata struct {
	Code      string
	Name      string
	Exchange  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DailyPrice is one day's close for a stock.
type DailyPrice struct {
	ID        int64
	StockCode string
	Date      time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}
