package domain

import "time"

// TradeEvent is a single fill observed on a venue's public tape. Append-only;
// used for monitoring, never mutated.
type TradeEvent struct {
	Venue     Venue
	GroupRef  string // market or condition identifier used to group the tape
	TokenRef  string
	Side      OrderSide
	Size      float64
	Price     float64
	Notional  float64
	Timestamp int64 // Unix seconds
}

// Time returns the event timestamp as a UTC time.
func (t TradeEvent) Time() time.Time {
	return time.Unix(t.Timestamp, 0).UTC()
}
