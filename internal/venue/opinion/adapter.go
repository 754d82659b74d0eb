package opinion

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// AdapterConfig carries the endpoint, credentials, and throttle.
type AdapterConfig struct {
	BaseURL string
	APIKey  string
	// RequestsPerSecond bounds outbound REST calls. Zero means 10 rps.
	RequestsPerSecond float64
}

// Adapter implements the venue surface for Opinion over the Open API.
type Adapter struct {
	client  *Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ domain.VenueAdapter = (*Adapter)(nil)

// NewAdapter wires the REST client behind the VenueAdapter surface.
func NewAdapter(cfg AdapterConfig, logger *slog.Logger) *Adapter {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	return &Adapter{
		client:  NewClient(cfg.BaseURL, cfg.APIKey),
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		logger:  logger.With(slog.String("component", "opinion_adapter")),
	}
}

// Venue identifies the adapter.
func (a *Adapter) Venue() domain.Venue {
	return domain.VenueOpinion
}

// ListActiveMarkets returns open binary markets.
func (a *Adapter) ListActiveMarkets(ctx context.Context, limit int) ([]domain.Market, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("opinion: rate wait: %w", err)
	}
	markets, err := a.client.ListActiveMarkets(ctx, limit)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("catalog fetched", slog.Int("markets", len(markets)))
	return markets, nil
}

// GetOrderBook fetches the book for one outcome token.
func (a *Adapter) GetOrderBook(ctx context.Context, tokenRef string) (domain.OrderBook, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return domain.OrderBook{}, fmt.Errorf("opinion: rate wait: %w", err)
	}
	return a.client.GetOrderBook(ctx, tokenRef)
}

// PlaceOrder submits a limit order.
func (a *Adapter) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return domain.OrderResult{}, fmt.Errorf("opinion: rate wait: %w", err)
	}
	return a.client.PlaceOrder(ctx, req)
}

// CancelOrder cancels a resting order.
func (a *Adapter) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("opinion: rate wait: %w", err)
	}
	return a.client.CancelOrder(ctx, orderID)
}

// GetBalances returns per-token balances.
func (a *Adapter) GetBalances(ctx context.Context) ([]domain.Balance, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("opinion: rate wait: %w", err)
	}
	return a.client.GetBalances(ctx)
}
