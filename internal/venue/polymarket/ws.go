package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
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

// TokenSetFunc supplies the asset IDs to subscribe to. It is called on every
// (re)connect so the subscription tracks the current matched catalog.
type TokenSetFunc func() []string

// WSFeed streams the CLOB market channel: full book snapshots and last
// trade prints for a set of tokens. One Stream call is one connection; the
// event channel closes on disconnect and the caller reconnects.
type WSFeed struct {
	wsURL  string
	tokens TokenSetFunc
}

// NewWSFeed creates a feed against the market WebSocket endpoint, e.g.
// "wss://ws-subscriptions-clob.polymarket.com/ws/market".
func NewWSFeed(wsURL string, tokens TokenSetFunc) *WSFeed {
	return &WSFeed{wsURL: wsURL, tokens: tokens}
}

// Venue identifies the feed's venue.
func (f *WSFeed) Venue() domain.Venue {
	return domain.VenuePolymarket
}

// Stream dials the endpoint, subscribes, and returns the event channel. The
// channel closes when the connection drops; cancelling ctx tears the
// connection down.
func (f *WSFeed) Stream(ctx context.Context) (<-chan bookstate.Event, error) {
	assetIDs := f.tokens()
	if len(assetIDs) == 0 {
		return nil, fmt.Errorf("polymarket/ws: no tokens to subscribe")
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/ws: dial: %w", err)
	}

	sub := wsSubscribe{AssetIDs: assetIDs, Type: "market"}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("polymarket/ws: subscribe: %w", err)
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
			for _, ev := range parseFrame(raw) {
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
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

// parseFrame normalizes one WS frame. Frames carry either a single envelope
// or an array of them; unknown event types are dropped.
func parseFrame(raw []byte) []bookstate.Event {
	var envelopes []wsEnvelope
	if err := json.Unmarshal(raw, &envelopes); err != nil {
		var single wsEnvelope
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil
		}
		envelopes = []wsEnvelope{single}
	}

	var out []bookstate.Event
	for _, env := range envelopes {
		switch env.EventType {
		case "book":
			out = append(out, bookstate.Event{
				Type:     bookstate.EventBookSnapshot,
				Venue:    domain.VenuePolymarket,
				TokenRef: env.AssetID,
				Bids:     toLevels(env.Bids),
				Asks:     toLevels(env.Asks),
			})
		case "last_trade_price":
			price, err1 := strconv.ParseFloat(env.Price, 64)
			size, err2 := strconv.ParseFloat(env.Size, 64)
			if err1 != nil || err2 != nil {
				continue
			}
			ts, _ := strconv.ParseInt(env.Timestamp, 10, 64)
			if ts > 1_000_000_000_000 { // milliseconds on the wire
				ts /= 1000
			}
			if ts == 0 {
				ts = time.Now().Unix()
			}
			side := domain.OrderSideBuy
			if strings.EqualFold(env.Side, "SELL") {
				side = domain.OrderSideSell
			}
			out = append(out, bookstate.Event{
				Type:     bookstate.EventTrade,
				Venue:    domain.VenuePolymarket,
				TokenRef: env.AssetID,
				Trade: &domain.TradeEvent{
					Venue:     domain.VenuePolymarket,
					GroupRef:  env.Market,
					TokenRef:  env.AssetID,
					Side:      side,
					Size:      size,
					Price:     price,
					Notional:  price * size,
					Timestamp: ts,
				},
			})
		}
	}
	return out
}
