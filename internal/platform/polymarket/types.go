package polymarket

// BookResponse is the CLOB REST order book for one outcome token. Prices and
// sizes arrive as decimal strings.
type BookResponse struct {
	Market         string      `json:"market"`
	AssetID        string      `json:"asset_id"`
	Timestamp      string      `json:"timestamp"`
	Hash           string      `json:"hash"`
	Bids           []BookLevel `json:"bids"`
	Asks           []BookLevel `json:"asks"`
	TickSize       string      `json:"tick_size"`
	MinOrderSize   string      `json:"min_order_size"`
	LastTradePrice string      `json:"last_trade_price"`
}

// BookLevel is a single bid/ask level in the CLOB order book.
type BookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}
