// Package pricing turns raw order-book depth into executable prices. All
// functions are pure: they never mutate the input book and perform no I/O.
package pricing

import "github.com/alanyoungcy/polyarb/internal/domain"

// Fill is the result of walking the book for a target size. FilledSize may be
// less than the requested size when depth runs out; callers must check it
// rather than assume a full fill.
type Fill struct {
	AvgPrice   float64
	FilledSize float64
	Notional   float64
}

// Partial reports whether the fill consumed less than the requested size.
func (f Fill) Partial(target float64) bool {
	return f.FilledSize < target
}

// BestPrice returns the top-of-book price for the side a taker would hit:
// the best ask for buys, the best bid for sells. The second return is false
// when that side of the book is empty.
func BestPrice(book domain.OrderBook, side domain.OrderSide) (float64, bool) {
	if side == domain.OrderSideBuy {
		lvl, ok := book.BestAsk()
		return lvl.Price, ok
	}
	lvl, ok := book.BestBid()
	return lvl.Price, ok
}

// SimulateFill walks price levels best-first, accumulating size until
// targetSize is reached or the book is exhausted. AvgPrice is the
// size-weighted mean over the consumed levels.
//
// targetSize must be positive; that is a caller contract, not a runtime
// condition this function recovers from.
func SimulateFill(book domain.OrderBook, side domain.OrderSide, targetSize float64) Fill {
	levels := book.Asks
	if side == domain.OrderSideSell {
		levels = book.Bids
	}

	remaining := targetSize
	var filled, notional float64
	for _, lvl := range levels {
		take := lvl.Size
		if take > remaining {
			take = remaining
		}
		notional += take * lvl.Price
		filled += take
		remaining -= take
		if remaining <= 0 {
			break
		}
	}

	if filled == 0 {
		return Fill{}
	}
	return Fill{
		AvgPrice:   notional / filled,
		FilledSize: filled,
		Notional:   notional,
	}
}

// SimulateFillLimit walks like SimulateFill but stops at the first level
// priced worse than limitPrice (above it for buys, below it for sells). The
// fill is therefore bounded in price, and a thin top of book yields a small
// FilledSize instead of a worse average.
func SimulateFillLimit(book domain.OrderBook, side domain.OrderSide, targetSize, limitPrice float64) Fill {
	levels := book.Asks
	if side == domain.OrderSideSell {
		levels = book.Bids
	}

	remaining := targetSize
	var filled, notional float64
	for _, lvl := range levels {
		if side == domain.OrderSideBuy && lvl.Price > limitPrice {
			break
		}
		if side == domain.OrderSideSell && lvl.Price < limitPrice {
			break
		}
		take := lvl.Size
		if take > remaining {
			take = remaining
		}
		notional += take * lvl.Price
		filled += take
		remaining -= take
		if remaining <= 0 {
			break
		}
	}

	if filled == 0 {
		return Fill{}
	}
	return Fill{
		AvgPrice:   notional / filled,
		FilledSize: filled,
		Notional:   notional,
	}
}

// SlippageBps is the deviation of an achieved average price from the quoted
// entry price, in basis points. Positive means worse for a buyer.
func SlippageBps(entryPrice, avgPrice float64) float64 {
	if entryPrice == 0 {
		return 0
	}
	return (avgPrice - entryPrice) / entryPrice * 10_000
}

// WithinSlippage reports whether avgPrice stays within maxBps of entryPrice
// in either direction. A zero entry price never passes.
func WithinSlippage(entryPrice, avgPrice float64, maxBps float64) bool {
	if entryPrice == 0 {
		return false
	}
	diff := SlippageBps(entryPrice, avgPrice)
	if diff < 0 {
		diff = -diff
	}
	return diff <= maxBps
}
