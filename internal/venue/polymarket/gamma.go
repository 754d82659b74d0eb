// Package polymarket adapts the Polymarket Gamma and CLOB APIs to the
// engine's venue interfaces: catalog discovery over Gamma, books and orders
// over the CLOB, and streaming book state over the market WebSocket channel.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// GammaClient reads market metadata from the Gamma API. All endpoints are
// public; no auth is attached.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a Gamma client for the given API root, e.g.
// "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListActiveMarkets returns up to limit open, orderbook-enabled markets,
// paging through Gamma until the limit is reached or the API runs dry.
func (g *GammaClient) ListActiveMarkets(ctx context.Context, limit int) ([]gammaMarket, error) {
	if limit <= 0 {
		limit = 100
	}

	const pageSize = 100
	var collected []gammaMarket
	for offset := 0; len(collected) < limit; offset += pageSize {
		params := url.Values{}
		params.Set("active", "true")
		params.Set("closed", "false")
		params.Set("archived", "false")
		params.Set("enableOrderBook", "true")
		params.Set("limit", strconv.Itoa(pageSize))
		params.Set("offset", strconv.Itoa(offset))

		body, err := g.doGet(ctx, "/markets?"+params.Encode())
		if err != nil {
			return nil, fmt.Errorf("polymarket/gamma: list markets: %w", err)
		}

		var page []gammaMarket
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
		}
		if len(page) == 0 {
			break
		}
		collected = append(collected, page...)
		if len(page) < pageSize {
			break
		}
	}

	if len(collected) > limit {
		collected = collected[:limit]
	}
	return collected, nil
}

// GetMarket returns one market by Gamma ID.
func (g *GammaClient) GetMarket(ctx context.Context, id string) (gammaMarket, error) {
	body, err := g.doGet(ctx, "/markets/"+url.PathEscape(id))
	if err != nil {
		return gammaMarket{}, fmt.Errorf("polymarket/gamma: get market %s: %w", id, err)
	}
	var m gammaMarket
	if err := json.Unmarshal(body, &m); err != nil {
		return gammaMarket{}, fmt.Errorf("polymarket/gamma: decode market: %w", err)
	}
	return m, nil
}

func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}
