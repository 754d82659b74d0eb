package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

func TestSimulateFill(t *testing.T) {
	book := domain.OrderBook{
		TokenRef: "tok-yes",
		Asks: []domain.PriceLevel{
			{Price: 0.40, Size: 5},
			{Price: 0.42, Size: 10},
		},
		Bids: []domain.PriceLevel{
			{Price: 0.38, Size: 8},
		},
	}

	t.Run("weighted average across levels", func(t *testing.T) {
		fill := SimulateFill(book, domain.OrderSideBuy, 10)
		require.InDelta(t, 10, fill.FilledSize, 1e-9)
		assert.InDelta(t, 0.41, fill.AvgPrice, 1e-9)
		assert.InDelta(t, 4.10, fill.Notional, 1e-9)
		assert.False(t, fill.Partial(10))
	})

	t.Run("partial when depth runs out", func(t *testing.T) {
		fill := SimulateFill(book, domain.OrderSideBuy, 100)
		assert.InDelta(t, 15, fill.FilledSize, 1e-9)
		assert.True(t, fill.Partial(100))
	})

	t.Run("sell walks bids", func(t *testing.T) {
		fill := SimulateFill(book, domain.OrderSideSell, 4)
		assert.InDelta(t, 0.38, fill.AvgPrice, 1e-9)
		assert.InDelta(t, 4, fill.FilledSize, 1e-9)
	})

	t.Run("empty side yields zero fill", func(t *testing.T) {
		fill := SimulateFill(domain.OrderBook{}, domain.OrderSideBuy, 10)
		assert.Zero(t, fill.AvgPrice)
		assert.Zero(t, fill.FilledSize)
		assert.Zero(t, fill.Notional)
		assert.True(t, fill.Partial(10))
	})

	t.Run("input book is not mutated", func(t *testing.T) {
		before := append([]domain.PriceLevel(nil), book.Asks...)
		_ = SimulateFill(book, domain.OrderSideBuy, 12)
		assert.Equal(t, before, book.Asks)
	})
}

func TestSimulateFillLimit(t *testing.T) {
	book := domain.OrderBook{
		Asks: []domain.PriceLevel{
			{Price: 0.55, Size: 4},
			{Price: 0.70, Size: 96},
		},
		Bids: []domain.PriceLevel{
			{Price: 0.50, Size: 5},
			{Price: 0.30, Size: 5},
		},
	}

	t.Run("stops at the price bound", func(t *testing.T) {
		fill := SimulateFillLimit(book, domain.OrderSideBuy, 10, 0.56)
		assert.InDelta(t, 4, fill.FilledSize, 1e-9)
		assert.InDelta(t, 0.55, fill.AvgPrice, 1e-9)
		assert.True(t, fill.Partial(10))
	})

	t.Run("permissive bound matches plain walk", func(t *testing.T) {
		assert.Equal(t,
			SimulateFill(book, domain.OrderSideBuy, 10),
			SimulateFillLimit(book, domain.OrderSideBuy, 10, 1.0),
		)
	})

	t.Run("sell bound is a floor", func(t *testing.T) {
		fill := SimulateFillLimit(book, domain.OrderSideSell, 10, 0.45)
		assert.InDelta(t, 5, fill.FilledSize, 1e-9)
		assert.InDelta(t, 0.50, fill.AvgPrice, 1e-9)
	})

	t.Run("bound below best yields zero fill", func(t *testing.T) {
		fill := SimulateFillLimit(book, domain.OrderSideBuy, 10, 0.50)
		assert.Zero(t, fill.FilledSize)
	})
}

func TestBestPrice(t *testing.T) {
	book := domain.OrderBook{
		Bids: []domain.PriceLevel{{Price: 0.55, Size: 3}},
		Asks: []domain.PriceLevel{{Price: 0.57, Size: 3}},
	}

	price, ok := BestPrice(book, domain.OrderSideBuy)
	require.True(t, ok)
	assert.InDelta(t, 0.57, price, 1e-9)

	price, ok = BestPrice(book, domain.OrderSideSell)
	require.True(t, ok)
	assert.InDelta(t, 0.55, price, 1e-9)

	_, ok = BestPrice(domain.OrderBook{}, domain.OrderSideBuy)
	assert.False(t, ok)
}

func TestSlippageBps(t *testing.T) {
	assert.InDelta(t, 250, SlippageBps(0.40, 0.41), 1e-6)
	assert.InDelta(t, -250, SlippageBps(0.40, 0.39), 1e-6)
	assert.Zero(t, SlippageBps(0, 0.41))
}

func TestWithinSlippage(t *testing.T) {
	assert.True(t, WithinSlippage(0.40, 0.41, 250))
	assert.False(t, WithinSlippage(0.40, 0.41, 249))
	assert.True(t, WithinSlippage(0.40, 0.39, 250), "improvement beyond the band still passes symmetric check")
	assert.False(t, WithinSlippage(0, 0.40, 1000))
	assert.True(t, WithinSlippage(0.40, 0.40, 0))
}

func TestFillAvgPriceFinite(t *testing.T) {
	book := domain.OrderBook{Asks: []domain.PriceLevel{{Price: 0.5, Size: 0.0001}}}
	fill := SimulateFill(book, domain.OrderSideBuy, 1)
	assert.False(t, math.IsNaN(fill.AvgPrice))
	assert.InDelta(t, 0.5, fill.AvgPrice, 1e-9)
}
