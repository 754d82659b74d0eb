package polymarket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyarb/internal/bookstate"
	"github.com/alanyoungcy/polyarb/internal/domain"
)

func TestGammaMarketToDomain(t *testing.T) {
	raw := `{
		"id": "512329",
		"question": "Will BTC hit $100k by December?",
		"conditionId": "0xcond",
		"active": "true",
		"closed": false,
		"endDate": "2026-12-31T12:00:00Z",
		"volume24hrClob": "12345.5",
		"liquidityClob": 678.9,
		"clobTokenIds": "[\"yes-token-id\", \"no-token-id\"]",
		"enableOrderBook": "1"
	}`

	var m gammaMarket
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.True(t, bool(m.Active), "string true")
	assert.False(t, bool(m.Closed), "native bool")
	assert.True(t, bool(m.EnableBook), "string 1")

	out := m.toDomain()
	assert.Equal(t, domain.VenuePolymarket, out.Venue)
	assert.Equal(t, "512329", out.ID)
	assert.Equal(t, "Will BTC hit $100k by December?", out.Title)
	assert.Equal(t, "0xcond", out.ConditionRef)
	assert.Equal(t, "yes-token-id", out.YesTokenRef, "stringified list, YES first")
	assert.Equal(t, "no-token-id", out.NoTokenRef)
	assert.InDelta(t, 12345.5, out.Volume, 1e-9)
	assert.InDelta(t, 678.9, out.Liquidity, 1e-9)
	require.NotNil(t, out.EndDate)
	assert.Equal(t, time.Date(2026, 12, 31, 12, 0, 0, 0, time.UTC), out.EndDate.UTC())
}

func TestGammaMarketIDFallsBackToCondition(t *testing.T) {
	m := gammaMarket{ConditionID: "0xcond"}
	assert.Equal(t, "0xcond", m.toDomain().ID)
}

func TestGammaMarketToleratesBadFields(t *testing.T) {
	m := gammaMarket{
		ID:           "1",
		ClobTokenIDs: "not json",
		EndDate:      "whenever",
	}
	out := m.toDomain()
	assert.Empty(t, out.YesTokenRef)
	assert.Empty(t, out.NoTokenRef)
	assert.Nil(t, out.EndDate)

	m.ClobTokenIDs = `["only-one"]`
	assert.Empty(t, m.toDomain().YesTokenRef, "a one-element list is not a binary market")
}

func TestGammaMarketDateLayouts(t *testing.T) {
	for _, date := range []string{"2026-12-31T12:00:00Z", "2026-12-31T12:00:00+0000", "2026-12-31"} {
		m := gammaMarket{ID: "1", EndDate: date}
		assert.NotNil(t, m.toDomain().EndDate, "layout %q", date)
	}
}

func TestFlexFloatRejectsGarbage(t *testing.T) {
	var f flexFloat
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &f))
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &f))

	require.NoError(t, json.Unmarshal([]byte(`"3.5"`), &f))
	assert.InDelta(t, 3.5, float64(f), 1e-9)
}

func TestClobBookToDomain(t *testing.T) {
	raw := `{
		"market": "0xcond",
		"asset_id": "tok",
		"bids": [{"price": "0.40", "size": "100"}, {"price": "bad", "size": "1"}],
		"asks": [{"price": "0.45", "size": "50"}]
	}`
	var b clobBook
	require.NoError(t, json.Unmarshal([]byte(raw), &b))

	book := b.toDomain("tok")
	assert.Equal(t, "tok", book.TokenRef)
	require.Len(t, book.Bids, 1, "unparseable level dropped")
	assert.InDelta(t, 0.40, book.Bids[0].Price, 1e-9)
	assert.InDelta(t, 100, book.Bids[0].Size, 1e-9)
	require.Len(t, book.Asks, 1)
	assert.False(t, book.Timestamp.IsZero())
}

func TestParseFrameBookArray(t *testing.T) {
	raw := `[
		{"event_type": "book", "asset_id": "tok-1",
		 "bids": [{"price": "0.40", "size": "10"}],
		 "asks": [{"price": "0.45", "size": "10"}]},
		{"event_type": "price_change", "asset_id": "tok-1"}
	]`
	events := parseFrame([]byte(raw))
	require.Len(t, events, 1, "price_change is dropped")

	ev := events[0]
	assert.Equal(t, bookstate.EventBookSnapshot, ev.Type)
	assert.Equal(t, domain.VenuePolymarket, ev.Venue)
	assert.Equal(t, "tok-1", ev.TokenRef)
	require.Len(t, ev.Bids, 1)
	assert.InDelta(t, 0.40, ev.Bids[0].Price, 1e-9)
}

func TestParseFrameSingleEnvelope(t *testing.T) {
	raw := `{"event_type": "book", "asset_id": "tok-2", "asks": [{"price": "0.5", "size": "1"}]}`
	events := parseFrame([]byte(raw))
	require.Len(t, events, 1)
	assert.Equal(t, "tok-2", events[0].TokenRef)
}

func TestParseFrameLastTrade(t *testing.T) {
	raw := `[{"event_type": "last_trade_price", "asset_id": "tok-1", "market": "0xcond",
		"price": "0.42", "size": "3", "side": "SELL", "timestamp": "1700000000000"}]`
	events := parseFrame([]byte(raw))
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, bookstate.EventTrade, ev.Type)
	require.NotNil(t, ev.Trade)
	assert.Equal(t, "0xcond", ev.Trade.GroupRef)
	assert.Equal(t, domain.OrderSideSell, ev.Trade.Side)
	assert.InDelta(t, 0.42, ev.Trade.Price, 1e-9)
	assert.InDelta(t, 1.26, ev.Trade.Notional, 1e-9)
	assert.Equal(t, int64(1700000000), ev.Trade.Timestamp, "milliseconds collapsed to seconds")
}

func TestParseFrameGarbage(t *testing.T) {
	assert.Nil(t, parseFrame([]byte("not json")))
	assert.Empty(t, parseFrame([]byte(`[{"event_type": "last_trade_price", "price": "x", "size": "1"}]`)))
}
