// Package order defines broker orders and their executions.
package order

import "time"

// Type is the order side.
type Type string

const (
	TypeBuy  Type = "BUY"
	TypeSell Type = "SELL"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusOrdered           Status = "ordered"
	StatusPartiallyExecuted Status = "partially_executed"
	StatusExecuted          Status = "executed"
)

// Order is a broker order tied to a daily strategy stock. Execution totals
// accumulate as fills arrive.
type Order struct {
	ID                   int64
	DailyStrategyStockID int64

	OrderNo  string
	Type     Type
	Quantity int64
	Price    float64
	// Dvsn is the KIS order division code (00 limit, 01 market, ...).
	Dvsn      string
	AccountNo string
	IsMock    bool
	Status    Status

	TotalExecutedQuantity int64
	// TotalExecutedPrice is the volume-weighted average fill price.
	TotalExecutedPrice float64
	RemainingQuantity  int64
	IsFullyExecuted    bool

	OrderedAt time.Time
}

// Execution is a single fill notification for an order, numbered in arrival
// order and carrying the cumulative state after this fill.
type Execution struct {
	ID       int64
	OrderID  int64
	Sequence int64

	ExecutedQuantity int64
	ExecutedPrice    float64

	TotalExecutedQuantityAfter int64
	TotalExecutedPriceAfter    float64
	RemainingQuantityAfter     int64
	IsFullyExecutedAfter       bool

	ExecutedAt time.Time
}
