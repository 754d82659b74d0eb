package scanner

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyarb/internal/bookstate"
	"github.com/alanyoungcy/polyarb/internal/domain"
)

// fakeVenue serves canned catalogs and books over the adapter surface.
type fakeVenue struct {
	venue   domain.Venue
	markets []domain.Market
	books   map[string]domain.OrderBook
	bookErr error

	bookFetches int
}

func (f *fakeVenue) Venue() domain.Venue { return f.venue }

func (f *fakeVenue) ListActiveMarkets(ctx context.Context, limit int) ([]domain.Market, error) {
	if limit > 0 && len(f.markets) > limit {
		return f.markets[:limit], nil
	}
	return f.markets, nil
}

func (f *fakeVenue) GetOrderBook(ctx context.Context, tokenRef string) (domain.OrderBook, error) {
	f.bookFetches++
	if f.bookErr != nil {
		return domain.OrderBook{}, f.bookErr
	}
	book, ok := f.books[tokenRef]
	if !ok {
		return domain.OrderBook{}, domain.ErrNotFound
	}
	return book, nil
}

func (f *fakeVenue) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	return domain.OrderResult{}, domain.ErrInvalidOrder
}

func (f *fakeVenue) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	return false, nil
}

func (f *fakeVenue) GetBalances(ctx context.Context) ([]domain.Balance, error) {
	return nil, nil
}

func asks(levels ...domain.PriceLevel) domain.OrderBook {
	return domain.OrderBook{Asks: levels}
}

func testConfig() Config {
	return Config{
		DefaultQuoteSize: 10,
		MinTradeSize:     5,
		MaxSlippageBps:   500,
		MinProfitPercent: 1,
		PerVenueFeeBps: map[domain.Venue]float64{
			domain.VenuePolymarket: 20,
			domain.VenueOpinion:    30,
		},
	}
}

func testVenues() (*fakeVenue, *fakeVenue) {
	a := &fakeVenue{
		venue: domain.VenuePolymarket,
		markets: []domain.Market{{
			Venue:       domain.VenuePolymarket,
			ID:          "pm-1",
			Title:       "Will BTC hit 100k by December",
			YesTokenRef: "pm-yes",
			NoTokenRef:  "pm-no",
		}},
		books: map[string]domain.OrderBook{
			// Deep books on both outcomes so both routes resolve.
			"pm-no":  asks(domain.PriceLevel{Price: 0.40, Size: 20}),
			"pm-yes": asks(domain.PriceLevel{Price: 0.56, Size: 20}),
		},
	}
	b := &fakeVenue{
		venue: domain.VenueOpinion,
		markets: []domain.Market{{
			Venue:       domain.VenueOpinion,
			ID:          "op-1",
			Title:       "Will BTC hit 100k by December",
			YesTokenRef: "op-yes",
			NoTokenRef:  "op-no",
		}},
		books: map[string]domain.OrderBook{
			"op-yes": asks(domain.PriceLevel{Price: 0.55, Size: 20}),
			"op-no":  asks(domain.PriceLevel{Price: 0.41, Size: 20}),
		},
	}
	return a, b
}

func newTestScanner(a, b *fakeVenue, cfg Config) *Scanner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(a, b, bookstate.New(0), nil, cfg, logger)
}

func TestScanOnceDetectsArb(t *testing.T) {
	a, b := testVenues()
	scan := newTestScanner(a, b, testConfig())

	opps, stats, err := scan.ScanOnce(context.Background(), 50, 0.6)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PairsMatched)
	require.Len(t, opps, 2, "both routes clear the gates")

	top := opps[0]
	assert.Equal(t, domain.RouteANoBYes, top.Route, "0.40 + 0.55 beats 0.56 + 0.41")
	assert.InDelta(t, 0.95, top.Cost, 1e-9)
	assert.InDelta(t, 5.0, top.ProfitPercent, 1e-9)
	assert.InDelta(t, 10, top.FillSize, 1e-9)
	assert.InDelta(t, 0.40, top.LegAPrice, 1e-9)
	assert.InDelta(t, 0.55, top.LegBPrice, 1e-9)
	assert.InDelta(t, 50, top.EstFeeBps, 1e-9, "fees are advisory, summed across venues")
	assert.NotEmpty(t, top.ID)
	assert.NotEmpty(t, top.PriceBreakdown)
	assert.False(t, top.DetectedAt.IsZero())

	assert.Greater(t, top.ProfitPercent, opps[1].ProfitPercent)
}

func TestScanOnceRejectsCostAtOrAboveOne(t *testing.T) {
	a, b := testVenues()
	a.books["pm-no"] = asks(domain.PriceLevel{Price: 0.45, Size: 20})
	b.books["op-yes"] = asks(domain.PriceLevel{Price: 0.55, Size: 20}) // cost exactly 1.0
	a.books["pm-yes"] = asks(domain.PriceLevel{Price: 0.70, Size: 20})
	b.books["op-no"] = asks(domain.PriceLevel{Price: 0.40, Size: 20}) // cost 1.10

	scan := newTestScanner(a, b, testConfig())
	opps, stats, err := scan.ScanOnce(context.Background(), 50, 0.6)
	require.NoError(t, err)
	assert.Empty(t, opps)
	assert.Equal(t, 2, stats.RoutesRejected)
}

func TestScanOnceRejectsThinDepth(t *testing.T) {
	a, b := testVenues()
	b.books["op-yes"] = asks(domain.PriceLevel{Price: 0.55, Size: 2}) // below MinTradeSize
	b.books["op-no"] = asks(domain.PriceLevel{Price: 0.41, Size: 2})

	scan := newTestScanner(a, b, testConfig())
	opps, _, err := scan.ScanOnce(context.Background(), 50, 0.6)
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestScanOnceRejectsExcessSlippage(t *testing.T) {
	a, b := testVenues()
	// Only 1 share inside the 500 bps band, the rest far beyond it: the
	// bounded fill is below the minimum trade size.
	a.books["pm-no"] = asks(
		domain.PriceLevel{Price: 0.40, Size: 1},
		domain.PriceLevel{Price: 0.55, Size: 19},
	)

	cfg := testConfig()
	scan := newTestScanner(a, b, cfg)
	opps, _, err := scan.ScanOnce(context.Background(), 50, 0.6)
	require.NoError(t, err)
	for _, opp := range opps {
		assert.NotEqual(t, domain.RouteANoBYes, opp.Route)
	}
}

func TestScanOnceThinTopOfBookCapsFill(t *testing.T) {
	a, b := testVenues()
	// 4 at the quoted price, then a cliff: the fill stops at the band edge
	// instead of averaging into 0.70.
	b.books["op-yes"] = asks(
		domain.PriceLevel{Price: 0.55, Size: 4},
		domain.PriceLevel{Price: 0.70, Size: 96},
	)

	cfg := testConfig()
	cfg.MinTradeSize = 2
	scan := newTestScanner(a, b, cfg)

	opps, _, err := scan.ScanOnce(context.Background(), 50, 0.6)
	require.NoError(t, err)

	for _, opp := range opps {
		if opp.Route == domain.RouteANoBYes {
			assert.InDelta(t, 4, opp.FillSize, 1e-9, "capped at the thinner leg")
			assert.InDelta(t, 0.55, opp.LegBPrice, 1e-9)
			assert.InDelta(t, 0.95, opp.Cost, 1e-9)
			return
		}
	}
	t.Fatal("expected the A_NO_PLUS_B_YES route to survive at reduced size")
}

func TestScanOnceFillSizeIsMinOfLegs(t *testing.T) {
	a, b := testVenues()
	b.books["op-yes"] = asks(domain.PriceLevel{Price: 0.55, Size: 7})

	scan := newTestScanner(a, b, testConfig())
	opps, _, err := scan.ScanOnce(context.Background(), 50, 0.6)
	require.NoError(t, err)

	for _, opp := range opps {
		if opp.Route == domain.RouteANoBYes {
			assert.InDelta(t, 7, opp.FillSize, 1e-9)
			return
		}
	}
	t.Fatal("expected the A_NO_PLUS_B_YES route to survive")
}

func TestScanOncePrefersStreamedBooks(t *testing.T) {
	a, b := testVenues()
	books := bookstate.New(0)
	for token, book := range a.books {
		require.True(t, books.ApplyBookSnapshot(domain.VenuePolymarket, token, book.Bids, book.Asks))
	}
	for token, book := range b.books {
		require.True(t, books.ApplyBookSnapshot(domain.VenueOpinion, token, book.Bids, book.Asks))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	scan := New(a, b, books, nil, testConfig(), logger)

	opps, _, err := scan.ScanOnce(context.Background(), 50, 0.6)
	require.NoError(t, err)
	assert.NotEmpty(t, opps)
	assert.Zero(t, a.bookFetches, "streamed state served every leg")
	assert.Zero(t, b.bookFetches)
}

func TestScanOnceFetchErrorsDoNotAbort(t *testing.T) {
	a, b := testVenues()
	b.bookErr = domain.ErrVenueUnavailable

	scan := newTestScanner(a, b, testConfig())
	opps, stats, err := scan.ScanOnce(context.Background(), 50, 0.6)
	require.NoError(t, err, "leg fetch errors are contained, not fatal")
	assert.Empty(t, opps)
	assert.Equal(t, 2, stats.FetchErrors)
	assert.Equal(t, 1, stats.PairsSkipped)
}

func TestScanOnceNoPairs(t *testing.T) {
	a, b := testVenues()
	b.markets[0].Title = "Lakers to win the NBA finals"

	scan := newTestScanner(a, b, testConfig())
	opps, stats, err := scan.ScanOnce(context.Background(), 50, 0.6)
	require.NoError(t, err)
	assert.Empty(t, opps)
	assert.Zero(t, stats.PairsMatched)
}
