package polymarket

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// AdapterConfig carries the endpoints and throttle for one adapter.
type AdapterConfig struct {
	GammaURL string
	ClobURL  string
	// RequestsPerSecond bounds outbound REST calls. Zero means 10 rps.
	RequestsPerSecond float64
}

// Adapter implements the venue surface for Polymarket: catalog via Gamma,
// books and orders via the CLOB. All REST calls share one rate limiter.
type Adapter struct {
	gamma   *GammaClient
	clob    *ClobClient
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ domain.VenueAdapter = (*Adapter)(nil)

// NewAdapter wires the two REST clients behind the VenueAdapter surface.
func NewAdapter(cfg AdapterConfig, clob *ClobClient, logger *slog.Logger) *Adapter {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	return &Adapter{
		gamma:   NewGammaClient(cfg.GammaURL),
		clob:    clob,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		logger:  logger.With(slog.String("component", "polymarket_adapter")),
	}
}

// Venue identifies the adapter.
func (a *Adapter) Venue() domain.Venue {
	return domain.VenuePolymarket
}

// ListActiveMarkets returns open markets that have both outcome tokens.
func (a *Adapter) ListActiveMarkets(ctx context.Context, limit int) ([]domain.Market, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("polymarket: rate wait: %w", err)
	}

	rows, err := a.gamma.ListActiveMarkets(ctx, limit)
	if err != nil {
		return nil, err
	}

	markets := make([]domain.Market, 0, len(rows))
	for i := range rows {
		m := rows[i].toDomain()
		if m.YesTokenRef == "" || m.NoTokenRef == "" {
			continue
		}
		markets = append(markets, m)
	}
	a.logger.Debug("catalog fetched",
		slog.Int("raw", len(rows)),
		slog.Int("usable", len(markets)),
	)
	return markets, nil
}

// GetOrderBook fetches the book for one outcome token.
func (a *Adapter) GetOrderBook(ctx context.Context, tokenRef string) (domain.OrderBook, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return domain.OrderBook{}, fmt.Errorf("polymarket: rate wait: %w", err)
	}
	return a.clob.GetOrderBook(ctx, tokenRef)
}

// PlaceOrder submits a signed limit order.
func (a *Adapter) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket: rate wait: %w", err)
	}
	return a.clob.PlaceOrder(ctx, req)
}

// CancelOrder cancels a resting order.
func (a *Adapter) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("polymarket: rate wait: %w", err)
	}
	return a.clob.CancelOrder(ctx, orderID)
}

// GetBalances returns the USDC collateral balance.
func (a *Adapter) GetBalances(ctx context.Context) ([]domain.Balance, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("polymarket: rate wait: %w", err)
	}
	bal, err := a.clob.GetCollateralBalance(ctx)
	if err != nil {
		return nil, err
	}
	bal.Venue = domain.VenuePolymarket
	return []domain.Balance{bal}, nil
}
