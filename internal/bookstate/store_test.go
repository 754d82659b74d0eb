package bookstate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

func TestApplyBookSnapshotReplaces(t *testing.T) {
	s := New(0)

	ok := s.ApplyBookSnapshot(domain.VenuePolymarket, "tok",
		[]domain.PriceLevel{{Price: 0.40, Size: 5}},
		[]domain.PriceLevel{{Price: 0.45, Size: 5}},
	)
	require.True(t, ok)

	ok = s.ApplyBookSnapshot(domain.VenuePolymarket, "tok",
		[]domain.PriceLevel{{Price: 0.41, Size: 3}},
		[]domain.PriceLevel{{Price: 0.44, Size: 3}},
	)
	require.True(t, ok)

	book, found := s.GetBook(domain.VenuePolymarket, "tok")
	require.True(t, found)
	require.Len(t, book.Bids, 1)
	assert.InDelta(t, 0.41, book.Bids[0].Price, 1e-9, "last write wins, no merge")
	assert.False(t, book.Timestamp.IsZero())
}

func TestApplyBookSnapshotRejectsMalformed(t *testing.T) {
	s := New(0)
	require.True(t, s.ApplyBookSnapshot(domain.VenuePolymarket, "tok",
		[]domain.PriceLevel{{Price: 0.40, Size: 5}}, nil))

	cases := []struct {
		name       string
		bids, asks []domain.PriceLevel
	}{
		{"negative size", []domain.PriceLevel{{Price: 0.4, Size: -1}}, nil},
		{"price above one", []domain.PriceLevel{{Price: 1.5, Size: 1}}, nil},
		{"negative price", []domain.PriceLevel{{Price: -0.1, Size: 1}}, nil},
		{"nan price", []domain.PriceLevel{{Price: math.NaN(), Size: 1}}, nil},
		{"duplicate prices", []domain.PriceLevel{{Price: 0.4, Size: 1}, {Price: 0.4, Size: 2}}, nil},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, s.ApplyBookSnapshot(domain.VenuePolymarket, "tok", tc.bids, tc.asks))
			assert.Equal(t, uint64(i+1), s.Discards())

			book, found := s.GetBook(domain.VenuePolymarket, "tok")
			require.True(t, found)
			assert.InDelta(t, 0.40, book.Bids[0].Price, 1e-9, "previous snapshot retained")
		})
	}

	assert.False(t, s.ApplyBookSnapshot(domain.VenuePolymarket, "", nil, nil), "empty token ref rejected")
}

func TestGetBookNeverSeenVsCleared(t *testing.T) {
	s := New(0)

	_, found := s.GetBook(domain.VenueOpinion, "tok")
	assert.False(t, found, "never seen")

	require.True(t, s.ApplyBookSnapshot(domain.VenueOpinion, "tok", nil, nil))
	book, found := s.GetBook(domain.VenueOpinion, "tok")
	require.True(t, found, "an applied empty book is a valid cleared state")
	assert.True(t, book.Empty())
}

func TestApplyBookSnapshotSortsLevels(t *testing.T) {
	s := New(0)
	require.True(t, s.ApplyBookSnapshot(domain.VenuePolymarket, "tok",
		[]domain.PriceLevel{{Price: 0.30, Size: 1}, {Price: 0.40, Size: 1}, {Price: 0.35, Size: 1}},
		[]domain.PriceLevel{{Price: 0.50, Size: 1}, {Price: 0.45, Size: 1}},
	))

	book, found := s.GetBook(domain.VenuePolymarket, "tok")
	require.True(t, found)
	assert.Equal(t, []float64{0.40, 0.35, 0.30}, prices(book.Bids), "bids descending")
	assert.Equal(t, []float64{0.45, 0.50}, prices(book.Asks), "asks ascending")

	best, ok := book.BestBid()
	require.True(t, ok)
	assert.InDelta(t, 0.40, best.Price, 1e-9)
}

func TestGetBookCopiesLevels(t *testing.T) {
	s := New(0)
	require.True(t, s.ApplyBookSnapshot(domain.VenuePolymarket, "tok",
		[]domain.PriceLevel{{Price: 0.40, Size: 5}}, nil))

	book, _ := s.GetBook(domain.VenuePolymarket, "tok")
	book.Bids[0].Price = 0.99

	again, _ := s.GetBook(domain.VenuePolymarket, "tok")
	assert.InDelta(t, 0.40, again.Bids[0].Price, 1e-9)
}

func TestTapeEviction(t *testing.T) {
	s := New(3)
	for i := 1; i <= 5; i++ {
		s.ApplyTrade(domain.TradeEvent{
			Venue:    domain.VenuePolymarket,
			GroupRef: "grp",
			Price:    float64(i),
			Size:     1,
		})
	}

	got := s.GetRecentTrades("grp", 0)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{3, 4, 5}, tradePrices(got), "oldest evicted, oldest-first order")

	got = s.GetRecentTrades("grp", 2)
	assert.Equal(t, []float64{4, 5}, tradePrices(got))

	assert.Nil(t, s.GetRecentTrades("other", 10))
}

func TestApplyTradeRejectsEmptyGroup(t *testing.T) {
	s := New(0)
	s.ApplyTrade(domain.TradeEvent{Venue: domain.VenuePolymarket, Price: 0.5, Size: 1})
	assert.Equal(t, uint64(1), s.Discards())
}

func prices(levels []domain.PriceLevel) []float64 {
	out := make([]float64, len(levels))
	for i, lvl := range levels {
		out[i] = lvl.Price
	}
	return out
}

func tradePrices(evs []domain.TradeEvent) []float64 {
	out := make([]float64, len(evs))
	for i, ev := range evs {
		out[i] = ev.Price
	}
	return out
}
