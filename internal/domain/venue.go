package domain

import "context"

// Venue identifies one of the two supported trading venues.
type Venue string

const (
	VenuePolymarket Venue = "polymarket"
	VenueOpinion    Venue = "opinion"
)

// Balance is the available collateral on a venue, in USD-denominated units.
type Balance struct {
	Venue     Venue
	Asset     string
	Total     float64
	Available float64
}

// VenueAdapter is the per-venue capability the engine trades through. Both
// venues expose the same surface; wire formats and pagination live behind it.
type VenueAdapter interface {
	// Venue returns the adapter's venue identity.
	Venue() Venue

	// ListActiveMarkets returns up to limit open two-outcome markets.
	ListActiveMarkets(ctx context.Context, limit int) ([]Market, error)

	// GetOrderBook fetches the current book for an outcome token.
	// Returns ErrNotFound for unknown tokens, ErrVenueUnavailable on
	// transport failure.
	GetOrderBook(ctx context.Context, tokenRef string) (OrderBook, error)

	// PlaceOrder submits a limit order and reports the immediate result.
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)

	// CancelOrder attempts to cancel an open order. True means the order
	// was cancelled before any fill.
	CancelOrder(ctx context.Context, orderID string) (bool, error)

	// GetBalances returns the account's collateral balances.
	GetBalances(ctx context.Context) ([]Balance, error)
}
