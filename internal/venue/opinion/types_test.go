package opinion

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyarb/internal/bookstate"
	"github.com/alanyoungcy/polyarb/internal/domain"
)

func TestEnvelopeAndMarketPageDecode(t *testing.T) {
	raw := `{
		"code": 0,
		"message": "ok",
		"result": {
			"total": 2,
			"list": [
				{"marketId": 1042, "marketTitle": "Will BTC hit 100k",
				 "yesTokenId": "yes-1", "noTokenId": "no-1",
				 "cutoffAt": 1767139200, "volume": 5000.5, "status": "activated"},
				{"marketId": "1043", "marketTitle": "No cutoff market",
				 "yesTokenId": "yes-2", "noTokenId": "no-2"}
			]
		}
	}`

	var env apiEnvelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	assert.Zero(t, env.Code)

	var page marketPage
	require.NoError(t, json.Unmarshal(env.Result, &page))
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.List, 2)

	first := page.List[0].toDomain()
	assert.Equal(t, domain.VenueOpinion, first.Venue)
	assert.Equal(t, "1042", first.ID, "numeric id stringified")
	assert.Equal(t, "Will BTC hit 100k", first.Title)
	assert.Equal(t, "yes-1", first.YesTokenRef)
	assert.Equal(t, "no-1", first.NoTokenRef)
	assert.InDelta(t, 5000.5, first.Volume, 1e-9)
	require.NotNil(t, first.EndDate)
	assert.Equal(t, time.Unix(1767139200, 0).UTC(), *first.EndDate)

	second := page.List[1].toDomain()
	assert.Equal(t, "1043", second.ID, "string id passes through")
	assert.Nil(t, second.EndDate, "zero cutoff means no end date")
}

func TestAPIBookToDomain(t *testing.T) {
	raw := `{
		"bids": [{"price": "0.40", "size": 100}, {"price": 0.39, "size": "50"}],
		"asks": [{"price": 0.45, "size": 70}, {"price": "oops", "size": 1}]
	}`
	var b apiBook
	require.NoError(t, json.Unmarshal([]byte(raw), &b))

	book := b.toDomain("tok")
	assert.Equal(t, "tok", book.TokenRef)
	require.Len(t, book.Bids, 2, "number and string forms both decode")
	assert.InDelta(t, 0.40, book.Bids[0].Price, 1e-9)
	assert.InDelta(t, 50, book.Bids[1].Size, 1e-9)
	require.Len(t, book.Asks, 1, "unparseable level dropped")
	assert.False(t, book.Timestamp.IsZero())
}

func TestOrderResultDecode(t *testing.T) {
	raw := `{"orderId": 991, "status": "filled", "filledSize": "10", "avgPrice": 0.55, "feeAmount": "0.02"}`
	var res orderResult
	require.NoError(t, json.Unmarshal([]byte(raw), &res))
	assert.Equal(t, "991", res.OrderID.String())
	assert.Equal(t, "filled", res.Status)
	assert.InDelta(t, 10, numFloat(res.FilledSize), 1e-9)
	assert.InDelta(t, 0.55, numFloat(res.AvgPrice), 1e-9)
	assert.InDelta(t, 0.02, numFloat(res.FeeAmount), 1e-9)
}

func TestParseMessageOrderbook(t *testing.T) {
	raw := `{"type": "orderbook", "tokenId": "tok-1",
		"bids": [{"price": 0.40, "size": 10}],
		"asks": [{"price": 0.45, "size": 10}]}`

	ev, ok := parseMessage([]byte(raw))
	require.True(t, ok)
	assert.Equal(t, bookstate.EventBookSnapshot, ev.Type)
	assert.Equal(t, domain.VenueOpinion, ev.Venue)
	assert.Equal(t, "tok-1", ev.TokenRef)
	require.Len(t, ev.Bids, 1)
	assert.InDelta(t, 0.40, ev.Bids[0].Price, 1e-9)
}

func TestParseMessageTrade(t *testing.T) {
	raw := `{"type": "trade", "tokenId": "tok-1", "marketId": "1042",
		"price": "0.42", "size": 3, "side": "sell", "ts": 1700000000000}`

	ev, ok := parseMessage([]byte(raw))
	require.True(t, ok)
	assert.Equal(t, bookstate.EventTrade, ev.Type)
	require.NotNil(t, ev.Trade)
	assert.Equal(t, "1042", ev.Trade.GroupRef)
	assert.Equal(t, domain.OrderSideSell, ev.Trade.Side)
	assert.InDelta(t, 0.42, ev.Trade.Price, 1e-9)
	assert.InDelta(t, 1.26, ev.Trade.Notional, 1e-9)
	assert.Equal(t, int64(1700000000), ev.Trade.Timestamp)
}

func TestParseMessageDrops(t *testing.T) {
	_, ok := parseMessage([]byte("not json"))
	assert.False(t, ok)

	_, ok = parseMessage([]byte(`{"type": "pong"}`))
	assert.False(t, ok)

	_, ok = parseMessage([]byte(`{"type": "trade", "price": 0, "size": 1}`))
	assert.False(t, ok, "non-positive price dropped")
}
