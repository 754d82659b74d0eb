package opinion

import (
	"encoding/json"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// apiEnvelope wraps every Open API response body.
type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// marketPage is the result payload of GET /openapi/market.
type marketPage struct {
	Total int         `json:"total"`
	List  []apiMarket `json:"list"`
}

type apiMarket struct {
	MarketID    json.Number `json:"marketId"`
	MarketTitle string      `json:"marketTitle"`
	YesTokenID  string      `json:"yesTokenId"`
	NoTokenID   string      `json:"noTokenId"`
	CutoffAt    int64       `json:"cutoffAt"` // Unix seconds; zero when absent
	Volume      float64     `json:"volume"`
	Status      string      `json:"status"`
}

func (m *apiMarket) toDomain() domain.Market {
	out := domain.Market{
		Venue:       domain.VenueOpinion,
		ID:          m.MarketID.String(),
		Title:       m.MarketTitle,
		YesTokenRef: m.YesTokenID,
		NoTokenRef:  m.NoTokenID,
		Volume:      m.Volume,
	}
	if m.CutoffAt > 0 {
		t := time.Unix(m.CutoffAt, 0).UTC()
		out.EndDate = &t
	}
	return out
}

// apiBook is the result payload of GET /openapi/token/orderbook.
type apiBook struct {
	Bids []apiLevel `json:"bids"`
	Asks []apiLevel `json:"asks"`
}

// apiLevel tolerates price/size arriving as number or string.
type apiLevel struct {
	Price json.Number `json:"price"`
	Size  json.Number `json:"size"`
}

func (b *apiBook) toDomain(tokenRef string) domain.OrderBook {
	return domain.OrderBook{
		TokenRef:  tokenRef,
		Bids:      toLevels(b.Bids),
		Asks:      toLevels(b.Asks),
		Timestamp: time.Now().UTC(),
	}
}

func toLevels(raw []apiLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		price, err1 := lvl.Price.Float64()
		size, err2 := lvl.Size.Float64()
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, domain.PriceLevel{Price: price, Size: size})
	}
	return out
}

// orderResult is the result payload of POST /openapi/order.
type orderResult struct {
	OrderID    json.Number `json:"orderId"`
	Status     string      `json:"status"` // "filled", "open", "rejected"
	FilledSize json.Number `json:"filledSize"`
	AvgPrice   json.Number `json:"avgPrice"`
	FeeAmount  json.Number `json:"feeAmount"`
}

// balanceRow is one entry of GET /openapi/balance.
type balanceRow struct {
	Token     string      `json:"token"`
	Balance   json.Number `json:"balance"`
	Available json.Number `json:"available"`
}

// wsMessage is one frame on the Opinion market stream.
type wsMessage struct {
	Type    string      `json:"type"` // "orderbook", "trade", "pong"
	TokenID string      `json:"tokenId"`
	Market  string      `json:"marketId"`
	Bids    []apiLevel  `json:"bids"`
	Asks    []apiLevel  `json:"asks"`
	Price   json.Number `json:"price"`
	Size    json.Number `json:"size"`
	Side    string      `json:"side"`
	TS      int64       `json:"ts"` // Unix milliseconds
}

func numFloat(n json.Number) float64 {
	f, _ := n.Float64()
	return f
}
