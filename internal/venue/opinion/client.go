// Package opinion adapts the Opinion Open API to the engine's venue
// interfaces. Reads need only an API key; trading endpoints use the same
// key-authenticated surface.
package opinion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// openAPIPageSize is the server-side cap on /openapi/market page size.
const openAPIPageSize = 20

// Client is the Opinion Open API REST client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the given API root, e.g.
// "https://openapi.opinion.trade".
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListActiveMarkets pages through activated binary markets up to limit.
func (c *Client) ListActiveMarkets(ctx context.Context, limit int) ([]domain.Market, error) {
	if limit <= 0 {
		limit = 100
	}

	var collected []domain.Market
	for page := 1; len(collected) < limit; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("size", strconv.Itoa(openAPIPageSize))
		params.Set("status", "activated")
		params.Set("marketType", "0")

		var result marketPage
		if err := c.doGet(ctx, "/openapi/market?"+params.Encode(), &result); err != nil {
			return nil, fmt.Errorf("opinion: list markets: %w", err)
		}
		if len(result.List) == 0 {
			break
		}

		for i := range result.List {
			m := result.List[i].toDomain()
			if m.YesTokenRef == "" || m.NoTokenRef == "" {
				continue
			}
			collected = append(collected, m)
			if len(collected) >= limit {
				break
			}
		}
		if len(result.List) < openAPIPageSize {
			break
		}
	}
	return collected, nil
}

// GetOrderBook fetches the book for one outcome token.
func (c *Client) GetOrderBook(ctx context.Context, tokenRef string) (domain.OrderBook, error) {
	params := url.Values{}
	params.Set("token_id", tokenRef)

	var book apiBook
	if err := c.doGet(ctx, "/openapi/token/orderbook?"+params.Encode(), &book); err != nil {
		return domain.OrderBook{}, fmt.Errorf("opinion: get book %s: %w", tokenRef, err)
	}
	return book.toDomain(tokenRef), nil
}

// PlaceOrder submits a limit order. Opinion reports immediate fills in the
// placement response.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	side := "BUY"
	if req.Side == domain.OrderSideSell {
		side = "SELL"
	}
	payload := map[string]any{
		"tokenId":  req.TokenRef,
		"side":     side,
		"price":    req.LimitPrice,
		"size":     req.Size,
	}
	if req.ClientID != "" {
		payload["clientOrderId"] = req.ClientID
	}

	var result orderResult
	if err := c.doPost(ctx, "/openapi/order", payload, &result); err != nil {
		return domain.OrderResult{}, fmt.Errorf("opinion: place order: %w", err)
	}
	if result.Status == "rejected" {
		return domain.OrderResult{OrderID: result.OrderID.String()},
			fmt.Errorf("opinion: order rejected: %w", domain.ErrInvalidOrder)
	}

	out := domain.OrderResult{
		OrderID:    result.OrderID.String(),
		FilledSize: numFloat(result.FilledSize),
		AvgPrice:   numFloat(result.AvgPrice),
		FeeUSD:     numFloat(result.FeeAmount),
	}
	out.Filled = result.Status == "filled" && out.FilledSize > 0
	return out, nil
}

// CancelOrder cancels a resting order; false with nil error means the venue
// refused (already matched or unknown).
func (c *Client) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/openapi/order/"+url.PathEscape(orderID), nil)
	if err != nil {
		return false, fmt.Errorf("opinion: create cancel request: %w", err)
	}

	var result struct {
		Cancelled bool `json:"cancelled"`
	}
	if err := c.do(req, &result); err != nil {
		return false, fmt.Errorf("opinion: cancel order %s: %w", orderID, err)
	}
	return result.Cancelled, nil
}

// GetBalances returns per-token available balances.
func (c *Client) GetBalances(ctx context.Context) ([]domain.Balance, error) {
	var rows struct {
		List []balanceRow `json:"list"`
	}
	if err := c.doGet(ctx, "/openapi/balance", &rows); err != nil {
		return nil, fmt.Errorf("opinion: balances: %w", err)
	}

	out := make([]domain.Balance, 0, len(rows.List))
	for _, row := range rows.List {
		out = append(out, domain.Balance{
			Venue:     domain.VenueOpinion,
			Asset:     row.Token,
			Total:     numFloat(row.Balance),
			Available: numFloat(row.Available),
		})
	}
	return out, nil
}

func (c *Client) doGet(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) doPost(ctx context.Context, path string, payload, result any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

// do sends the request with the apikey header and decodes the enveloped
// result payload into result.
func (c *Client) do(req *http.Request, result any) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVenueUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := checkStatus(resp.StatusCode, body); err != nil {
		return err
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Code != 0 && envelope.Code != http.StatusOK {
		return fmt.Errorf("api code %d: %s", envelope.Code, envelope.Message)
	}
	if result == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// checkStatus maps HTTP failures onto the engine's sentinel errors.
func checkStatus(statusCode int, body []byte) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, body)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, body)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, body)
	case statusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrInvalidOrder, body)
	case statusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrVenueUnavailable, statusCode, body)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, body)
	}
}
