package kalshi

import (
	"encoding/json"
	"fmt"
	"time"
)

// Market is the subset of a Kalshi market the book source reads. Prices are
// in cents.
type Market struct {
	Ticker      string  `json:"ticker"`
	EventTicker string  `json:"event_ticker"`
	Title       string  `json:"title"`
	Status      string  `json:"status"` // "initialized", "active", "open", "closed", "settled"
	YesBid      float64 `json:"yes_bid"`
	YesAsk      float64 `json:"yes_ask"`
	NoBid       float64 `json:"no_bid"`
	NoAsk       float64 `json:"no_ask"`
	LastPrice   float64 `json:"last_price"`
	Volume      int64   `json:"volume"`
	Volume24H   int64   `json:"volume_24h"`
	CloseTime   string  `json:"close_time"`
}

// Tradable reports whether the market is accepting orders.
func (m Market) Tradable() bool {
	return m.Status == "open" || m.Status == "active"
}

// Orderbook holds the resting bids on both sides of a binary market. Kalshi
// only publishes bids: a YES ask at p is a NO bid at 100 − p.
type Orderbook struct {
	Ticker     string       `json:"ticker"`
	YesBids    []PriceLevel `json:"yes"`
	NoBids     []PriceLevel `json:"no"`
	ObservedAt time.Time    `json:"-"`
}

// PriceLevel is a single price+quantity entry in the Kalshi orderbook.
type PriceLevel struct {
	Price    int64 `json:"price"`    // in cents (1-99)
	Quantity int64 `json:"quantity"` // number of contracts
}

// UnmarshalJSON accepts both the [price, quantity] pairs the REST API sends
// and the object form.
func (l *PriceLevel) UnmarshalJSON(data []byte) error {
	var pair []int64
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("kalshi: price level: want 2 elements, got %d", len(pair))
		}
		l.Price, l.Quantity = pair[0], pair[1]
		return nil
	}
	type plain PriceLevel
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("kalshi: price level: %w", err)
	}
	*l = PriceLevel(p)
	return nil
}

// ErrorResponse represents a Kalshi API error response.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
