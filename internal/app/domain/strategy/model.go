// Package strategy defines trading strategies and their daily execution plans.
package strategy

import "time"

// Status of a user strategy.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusPaused   Status = "paused"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusPaused:
		return true
	}
	return false
}

// Info is a catalog entry describing an available strategy.
type Info struct {
	ID          int64
	Name        string
	Description string
}

// WeightType is a catalog entry describing an investment weighting scheme.
type WeightType struct {
	ID          int64
	Name        string
	Description string
}

// UserStrategy is a strategy subscribed by an account with its risk settings.
// At most one strategy per account should be active at a time.
type UserStrategy struct {
	ID           int64
	AccountID    int64
	StrategyID   int64
	WeightTypeID int64

	InvestmentWeight float64
	// LossCutRatio and TakeProfitRatio are percentages.
	LossCutRatio    float64
	TakeProfitRatio float64
	IsAuto          bool
	Status          Status

	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DailyStrategy is one day's execution of a user strategy, with profit
// totals rolled up from its stocks as orders fill.
type DailyStrategy struct {
	ID             int64
	UserStrategyID int64
	Timestamp      time.Time

	BuyAmount         float64
	SellAmount        float64
	TotalProfitAmount float64
	TotalProfitRate   float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DailyStrategyStock is one stock inside a daily plan: the planned entry and
// exit levels plus the realized fills.
type DailyStrategyStock struct {
	ID              int64
	DailyStrategyID int64

	StockCode string
	StockName string
	Exchange  string
	StockOpen float64

	TargetPrice     float64
	TargetQuantity  int64
	TargetSellPrice float64
	StopLossPrice   float64

	// Realized fills. Zero means not yet bought/sold.
	BuyPrice     float64
	BuyQuantity  int64
	SellPrice    float64
	SellQuantity int64
	ProfitRate   float64
}

// HoldingQuantity returns the currently held share count.
func (s DailyStrategyStock) HoldingQuantity() int64 {
	return s.BuyQuantity - s.SellQuantity
}
