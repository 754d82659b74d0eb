package domain

import "time"

// Route is a complementary-outcome pairing across the two venues.
type Route string

const (
	// RouteANoBYes buys NO on venue A and YES on venue B.
	RouteANoBYes Route = "A_NO_PLUS_B_YES"
	// RouteAYesBNo buys YES on venue A and NO on venue B.
	RouteAYesBNo Route = "A_YES_PLUS_B_NO"
)

// Outcomes returns the outcome bought on each venue for this route.
func (r Route) Outcomes() (a, b Outcome) {
	if r == RouteANoBYes {
		return OutcomeNo, OutcomeYes
	}
	return OutcomeYes, OutcomeNo
}

// ArbOpportunity is a decision snapshot: buying both legs at the simulated
// depth-aware prices costs less than the guaranteed 1.0 payout. It is valid
// only for the instant the underlying books were read.
type ArbOpportunity struct {
	ID            string
	Pair          MatchedMarket
	Route         Route
	Cost          float64 // legA avg price + legB avg price
	ProfitPercent float64 // (1 - Cost) * 100
	FillSize      float64 // min of both legs' simulated filled sizes
	LegAPrice     float64
	LegBPrice     float64
	// EstFeeBps is advisory: venue fees are not netted into Cost.
	EstFeeBps      float64
	PriceBreakdown string
	DetectedAt     time.Time
}
