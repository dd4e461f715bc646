// Package market holds real-time market data records and the message
// payloads that arrive over Kafka. Upstream producers are inconsistent
// about numeric typing, so the message types accept both JSON numbers
// and numeric strings.
package market

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Number is a float64 that unmarshals from either a JSON number or a
// numeric string. Empty strings and null decode to zero.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

func (n Number) Float() float64 { return float64(n) }

func (n Number) Int() int64 { return int64(n) }

// PriceTick is a single real-time execution tick as relayed from the
// broker websocket feed.
type PriceTick struct {
	StockCode         string `json:"stock_code"`
	TradeTime         string `json:"trade_time"`
	CurrentPrice      Number `json:"current_price"`
	OpenPrice         Number `json:"open_price"`
	HighPrice         Number `json:"high_price"`
	LowPrice          Number `json:"low_price"`
	TradeVolume       Number `json:"trade_volume"`
	AccumulatedVolume Number `json:"accumulated_volume"`
	ChangeRate        Number `json:"change_rate"`
	AskPrice          Number `json:"ask_price"`
	BidPrice          Number `json:"bid_price"`

	ReceivedAt time.Time `json:"-"`
}

// AskingPrice is a best-quote snapshot from the order book feed.
type AskingPrice struct {
	StockCode      string `json:"stock_code"`
	TradeTime      string `json:"trade_time"`
	AskPrice       Number `json:"ask_price"`
	BidPrice       Number `json:"bid_price"`
	TotalAskVolume Number `json:"total_ask_volume"`
	TotalBidVolume Number `json:"total_bid_volume"`

	ReceivedAt time.Time `json:"-"`
}

// WSCommand controls the upstream websocket relay. A STOP command marks
// the end of the trading session and triggers the hourly candle flush.
type WSCommand struct {
	Command   string `json:"command"`
	Timestamp string `json:"timestamp"`
}

const (
	CommandStop  = "STOP"
	CommandStart = "START"
)

// DailyStrategyStockMessage is one stock entry inside a daily strategy
// plan message.
type DailyStrategyStockMessage struct {
	StockCode       string `json:"stock_code"`
	StockName       string `json:"stock_name"`
	Exchange        string `json:"exchange"`
	StockOpen       Number `json:"stock_open"`
	TargetPrice     Number `json:"target_price"`
	TargetQuantity  Number `json:"target_quantity"`
	TargetSellPrice Number `json:"target_sell_price"`
	StopLossPrice   Number `json:"stop_loss_price"`
}

// DailyStrategyEntry is one user strategy's plan inside a daily strategy
// message.
type DailyStrategyEntry struct {
	UserStrategyID int64                       `json:"user_strategy_id"`
	BuyAmount      Number                      `json:"buy_amount"`
	Stocks         []DailyStrategyStockMessage `json:"stocks"`
}

// DailyStrategyMessage is the trading plan published each morning before
// the session opens, grouped per user strategy.
type DailyStrategyMessage struct {
	Timestamp  string               `json:"timestamp"`
	Strategies []DailyStrategyEntry `json:"strategies_by_user"`
}

// Order statuses reported by the trading engine.
const (
	OrderStatusOrdered  = "ordered"
	OrderStatusExecuted = "executed"
)

// OrderMessage covers everything on the order signal topic. Messages with
// an order number are order results from the engine: status "ordered"
// acknowledges placement, execution statuses report fills. Messages
// without one are legacy buy/sell signals.
type OrderMessage struct {
	OrderNo   string `json:"order_no"`
	AccountNo string `json:"account_no"`
	StockCode string `json:"stock_code"`
	StockName string `json:"stock_name"`
	Status    string `json:"status"`
	OrderType string `json:"order_type"`
	OrderDvsn string `json:"order_dvsn"`
	Price     Number `json:"price"`
	Quantity  Number `json:"quantity"`

	ExecutedQuantity  Number `json:"executed_quantity"`
	ExecutedPrice     Number `json:"executed_price"`
	RemainingQuantity Number `json:"remaining_quantity"`
	IsFullyExecuted   bool   `json:"is_fully_executed"`

	IsMock    bool   `json:"is_mock"`
	Timestamp string `json:"timestamp"`
}

// HasOrderNo reports whether the message references an engine order.
func (m OrderMessage) HasOrderNo() bool { return strings.TrimSpace(m.OrderNo) != "" }
