package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// flexBool accepts JSON bool or the strings "true"/"false"/"1"; Gamma sends
// both forms depending on the field.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat accepts JSON number or numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// gammaMarket is a market row from the Gamma /markets endpoint.
type gammaMarket struct {
	ID           string    `json:"id"`
	Question     string    `json:"question"`
	ConditionID  string    `json:"conditionId"`
	Slug         string    `json:"slug"`
	Active       flexBool  `json:"active"`
	Closed       flexBool  `json:"closed"`
	EndDate      string    `json:"endDate"`
	Volume24hr   flexFloat `json:"volume24hrClob"`
	Liquidity    flexFloat `json:"liquidityClob"`
	ClobTokenIDs string    `json:"clobTokenIds"` // JSON-encoded list, YES first
	EnableBook   flexBool  `json:"enableOrderBook"`
}

// toDomain maps a Gamma row to the engine's market type. The clobTokenIds
// field is a stringified two-element list with the YES token first.
func (m *gammaMarket) toDomain() domain.Market {
	out := domain.Market{
		Venue:        domain.VenuePolymarket,
		ID:           m.ID,
		Title:        m.Question,
		ConditionRef: m.ConditionID,
		Volume:       float64(m.Volume24hr),
		Liquidity:    float64(m.Liquidity),
	}
	if m.ID == "" {
		out.ID = m.ConditionID
	}

	var tokenIDs []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &tokenIDs); err == nil && len(tokenIDs) >= 2 {
		out.YesTokenRef = tokenIDs[0]
		out.NoTokenRef = tokenIDs[1]
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z0700", "2006-01-02"} {
		if t, err := time.Parse(layout, m.EndDate); err == nil {
			out.EndDate = &t
			break
		}
	}
	return out
}

// clobBook is the /book response and the book snapshot WS payload.
type clobBook struct {
	Market    string      `json:"market"`
	AssetID   string      `json:"asset_id"`
	Bids      []clobLevel `json:"bids"`
	Asks      []clobLevel `json:"asks"`
	Timestamp string      `json:"timestamp"`
}

type clobLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

func (b *clobBook) toDomain(tokenRef string) domain.OrderBook {
	return domain.OrderBook{
		TokenRef:  tokenRef,
		Bids:      toLevels(b.Bids),
		Asks:      toLevels(b.Asks),
		Timestamp: time.Now().UTC(),
	}
}

func toLevels(raw []clobLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		price, err1 := strconv.ParseFloat(lvl.Price, 64)
		size, err2 := strconv.ParseFloat(lvl.Size, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, domain.PriceLevel{Price: price, Size: size})
	}
	return out
}

// orderResponse is the CLOB's answer to POST /order.
type orderResponse struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"` // "live", "matched", "delayed"
}

// wsEnvelope is one event inside a market-channel WS frame. Frames arrive
// as a JSON array of these.
type wsEnvelope struct {
	EventType string      `json:"event_type"` // "book", "price_change", "last_trade_price"
	AssetID   string      `json:"asset_id"`
	Market    string      `json:"market"`
	Bids      []clobLevel `json:"bids"`
	Asks      []clobLevel `json:"asks"`
	Price     string      `json:"price"`
	Size      string      `json:"size"`
	Side      string      `json:"side"`
	Timestamp string      `json:"timestamp"`
}

type wsSubscribe struct {
	AssetIDs []string `json:"assets_ids"`
	Type     string   `json:"type"`
}
