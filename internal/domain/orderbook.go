package domain

import "time"

// PriceLevel is a single price+size entry in an order book. Prices are
// probabilities in [0,1]; sizes are outcome-token quantities.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderBook is a depth snapshot for one outcome token. Bids are sorted
// descending by price, asks ascending; within a side prices are strictly
// monotonic (no duplicate levels).
type OrderBook struct {
	TokenRef  string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// BestBid returns the highest bid, or false if there are no bids.
func (b OrderBook) BestBid() (PriceLevel, bool) {
	if len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask, or false if there are no asks.
func (b OrderBook) BestAsk() (PriceLevel, bool) {
	if len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

// Empty reports whether the book has no levels on either side. An empty book
// is a valid, cleared state and is distinct from "no snapshot received".
func (b OrderBook) Empty() bool {
	return len(b.Bids) == 0 && len(b.Asks) == 0
}
