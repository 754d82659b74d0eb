package polymarket

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/polyarb/internal/crypto"
	"github.com/alanyoungcy/polyarb/internal/domain"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// usdcDecimals scales human sizes and prices to on-chain integer amounts.
const usdcDecimals = 1e6

// ClobClient talks to the Polymarket CLOB: public book reads plus signed
// order placement and cancellation. Order endpoints need a Signer and, after
// DeriveAPIKey, HMAC credentials.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
	creds      *crypto.APICreds
}

// NewClobClient creates a CLOB client for the given API root, e.g.
// "https://clob.polymarket.com". signer may be nil for read-only use.
func NewClobClient(baseURL string, signer *crypto.Signer) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer: signer,
	}
}

// SetCreds installs HMAC credentials obtained out of band, skipping the
// derive flow.
func (c *ClobClient) SetCreds(creds crypto.APICreds) {
	c.creds = &creds
}

// GetOrderBook fetches the public book for one token.
func (c *ClobClient) GetOrderBook(ctx context.Context, tokenRef string) (domain.OrderBook, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/book?token_id="+tokenRef, nil, false)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenRef, err)
	}

	var book clobBook
	if err := json.Unmarshal(body, &book); err != nil {
		return domain.OrderBook{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}
	return book.toDomain(tokenRef), nil
}

// PlaceOrder signs and submits a limit order. A "matched" status is reported
// as an immediate fill at the limit price; a resting order comes back
// unfilled with its ID so the caller can cancel it.
func (c *ClobClient) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if c.signer == nil || c.creds == nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: place order: %w: signer or API creds missing", domain.ErrUnauthorized)
	}

	order, err := c.buildSignedOrder(req)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: build order: %w", err)
	}

	payload := map[string]any{
		"order":     order,
		"owner":     c.creds.Key,
		"orderType": "FOK",
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/order", payload, true)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order response: %w", err)
	}
	if !resp.Success {
		return domain.OrderResult{OrderID: resp.OrderID},
			fmt.Errorf("polymarket/clob: order rejected: %w: %s", domain.ErrInvalidOrder, resp.ErrorMsg)
	}

	result := domain.OrderResult{OrderID: resp.OrderID}
	if resp.Status == "matched" {
		result.Filled = true
		result.FilledSize = req.Size
		result.AvgPrice = req.LimitPrice
	}
	return result, nil
}

// CancelOrder cancels one resting order. A false return with nil error means
// the venue refused the cancel (already matched or unknown).
func (c *ClobClient) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	payload := map[string]any{"orderID": orderID}
	body, err := c.doRequest(ctx, http.MethodDelete, "/order", payload, true)
	if err != nil {
		return false, fmt.Errorf("polymarket/clob: cancel order %s: %w", orderID, err)
	}

	var resp struct {
		Success  bool   `json:"success"`
		ErrorMsg string `json:"errorMsg"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("polymarket/clob: decode cancel response: %w", err)
	}
	return resp.Success, nil
}

// GetCollateralBalance returns the available USDC collateral.
func (c *ClobClient) GetCollateralBalance(ctx context.Context) (domain.Balance, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/balance-allowance?asset_type=COLLATERAL", nil, true)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("polymarket/clob: balance: %w", err)
	}

	var resp struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Balance{}, fmt.Errorf("polymarket/clob: decode balance: %w", err)
	}
	raw, err := strconv.ParseFloat(resp.Balance, 64)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("polymarket/clob: parse balance %q: %w", resp.Balance, err)
	}
	return domain.Balance{Asset: "USDC", Available: raw / usdcDecimals}, nil
}

// DeriveAPIKey runs the L1 auth flow: sign a ClobAuth message and exchange
// it for HMAC credentials, which are installed on the client.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) error {
	if c.signer == nil {
		return fmt.Errorf("polymarket/clob: derive api key: %w: no signer", domain.ErrUnauthorized)
	}

	address := c.signer.Address().Hex()
	timestamp := time.Now().Unix()

	sig, err := c.signer.SignAuthMessage(address, timestamp, 0)
	if err != nil {
		return fmt.Errorf("polymarket/clob: sign auth message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return fmt.Errorf("polymarket/clob: create auth request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", address)
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("POLY_NONCE", "0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polymarket/clob: auth request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: read auth response: %w", err)
	}
	if err := checkStatus(resp.StatusCode, body); err != nil {
		return fmt.Errorf("polymarket/clob: derive api key: %w", err)
	}

	var creds struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(body, &creds); err != nil {
		return fmt.Errorf("polymarket/clob: decode auth response: %w", err)
	}

	c.creds = &crypto.APICreds{
		Key:        creds.APIKey,
		Secret:     creds.Secret,
		Passphrase: creds.Passphrase,
	}
	return nil
}

// signedOrder is the wire form of an order: the signed struct fields plus
// the signature itself.
type signedOrder struct {
	crypto.SignableOrder
	Signature string `json:"signature"`
}

// buildSignedOrder converts a request into a signed EIP-712 order. Buying
// spends makerAmount USDC for takerAmount shares; selling is the reverse.
func (c *ClobClient) buildSignedOrder(req domain.OrderRequest) (signedOrder, error) {
	salt, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 60))
	if err != nil {
		return signedOrder{}, fmt.Errorf("salt: %w", err)
	}

	shares := big.NewInt(int64(req.Size * usdcDecimals))
	notional := big.NewInt(int64(req.Size * req.LimitPrice * usdcDecimals))

	address := c.signer.Address().Hex()
	order := crypto.SignableOrder{
		Salt:       salt.String(),
		Maker:      address,
		Signer:     address,
		Taker:      zeroAddress,
		TokenID:    req.TokenRef,
		Expiration: "0",
		Nonce:      "0",
		FeeRateBps: "0",
	}
	if req.Side == domain.OrderSideBuy {
		order.Side = 0
		order.MakerAmount = notional.String()
		order.TakerAmount = shares.String()
	} else {
		order.Side = 1
		order.MakerAmount = shares.String()
		order.TakerAmount = notional.String()
	}

	sig, err := c.signer.SignOrder(order)
	if err != nil {
		return signedOrder{}, err
	}
	return signedOrder{SignableOrder: order, Signature: sig}, nil
}

func (c *ClobClient) doRequest(ctx context.Context, method, path string, payload any, signed bool) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(raw)
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if signed && c.creds != nil && c.signer != nil {
		for k, v := range c.creds.L2Headers(c.signer.Address().Hex(), method, path, bodyStr) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVenueUnavailable, err)
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

// checkStatus maps HTTP failures onto the engine's sentinel errors so
// retry policy can key off errors.Is.
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
