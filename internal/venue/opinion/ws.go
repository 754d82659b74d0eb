package opinion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polyarb/internal/bookstate"
	"github.com/alanyoungcy/polyarb/internal/domain"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// TokenSetFunc supplies the token IDs to subscribe to on each (re)connect.
type TokenSetFunc func() []string

// WSFeed streams Opinion orderbook and trade messages for a token set. The
// API key rides on the handshake.
type WSFeed struct {
	wsURL  string
	apiKey string
	tokens TokenSetFunc
}

// NewWSFeed creates a feed against the Opinion stream endpoint.
func NewWSFeed(wsURL, apiKey string, tokens TokenSetFunc) *WSFeed {
	return &WSFeed{wsURL: wsURL, apiKey: apiKey, tokens: tokens}
}

// Venue identifies the feed's venue.
func (f *WSFeed) Venue() domain.Venue {
	return domain.VenueOpinion
}

// Stream dials, subscribes, and returns the event channel. The channel
// closes on disconnect; cancelling ctx tears the connection down.
func (f *WSFeed) Stream(ctx context.Context) (<-chan bookstate.Event, error) {
	tokenIDs := f.tokens()
	if len(tokenIDs) == 0 {
		return nil, fmt.Errorf("opinion/ws: no tokens to subscribe")
	}

	header := http.Header{}
	if f.apiKey != "" {
		header.Set("apikey", f.apiKey)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("opinion/ws: dial: %w", err)
	}

	sub := map[string]any{"type": "subscribe", "tokenIds": tokenIDs}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opinion/ws: subscribe: %w", err)
	}

	ch := make(chan bookstate.Event, 256)
	done := make(chan struct{})

	go func() {
		defer close(ch)
		defer close(done)
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(wsPongWait))
			return nil
		})

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ev, ok := parseMessage(raw)
			if !ok {
				continue
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	return ch, nil
}

func parseMessage(raw []byte) (bookstate.Event, bool) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return bookstate.Event{}, false
	}

	switch msg.Type {
	case "orderbook":
		return bookstate.Event{
			Type:     bookstate.EventBookSnapshot,
			Venue:    domain.VenueOpinion,
			TokenRef: msg.TokenID,
			Bids:     toLevels(msg.Bids),
			Asks:     toLevels(msg.Asks),
		}, true
	case "trade":
		price := numFloat(msg.Price)
		size := numFloat(msg.Size)
		if price <= 0 || size <= 0 {
			return bookstate.Event{}, false
		}
		ts := msg.TS / 1000
		if ts == 0 {
			ts = time.Now().Unix()
		}
		side := domain.OrderSideBuy
		if strings.EqualFold(msg.Side, "SELL") {
			side = domain.OrderSideSell
		}
		return bookstate.Event{
			Type:     bookstate.EventTrade,
			Venue:    domain.VenueOpinion,
			TokenRef: msg.TokenID,
			Trade: &domain.TradeEvent{
				Venue:     domain.VenueOpinion,
				GroupRef:  msg.Market,
				TokenRef:  msg.TokenID,
				Side:      side,
				Size:      size,
				Price:     price,
				Notional:  price * size,
				Timestamp: ts,
			},
		}, true
	default:
		return bookstate.Event{}, false
	}
}
