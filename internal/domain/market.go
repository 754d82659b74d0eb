package domain

import "time"

// Market is a two-outcome prediction market on one venue. Identity is
// (Venue, ID); instances are immutable between catalog refreshes.
type Market struct {
	Venue        Venue
	ID           string
	Title        string
	ConditionRef string
	YesTokenRef  string
	NoTokenRef   string
	EndDate      *time.Time
	Volume       float64
	Liquidity    float64
}

// TokenFor returns the token reference for the given outcome.
func (m Market) TokenFor(outcome Outcome) string {
	if outcome == OutcomeYes {
		return m.YesTokenRef
	}
	return m.NoTokenRef
}

// Key returns the venue-qualified identity of the market.
func (m Market) Key() string {
	return string(m.Venue) + ":" + m.ID
}
