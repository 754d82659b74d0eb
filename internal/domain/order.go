package domain

// OrderSide indicates whether an order buys or sells outcome tokens.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Outcome names one side of a two-outcome market.
type Outcome string

const (
	OutcomeYes Outcome = "yes"
	OutcomeNo  Outcome = "no"
)

// Opposite returns the complementary outcome.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

// OrderRequest describes a limit order to be placed on a venue.
type OrderRequest struct {
	MarketID   string
	TokenRef   string
	Side       OrderSide
	Size       float64
	LimitPrice float64
	// ClientID carries caller-assigned idempotency where the venue
	// supports it.
	ClientID string
}

// OrderResult is the venue's immediate answer to an order submission.
type OrderResult struct {
	OrderID    string
	Filled     bool
	FilledSize float64
	AvgPrice   float64
	FeeUSD     float64
}
