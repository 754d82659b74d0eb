// Package scanner is the decision function of the engine: it combines the
// matched catalogs with live book state and emits ranked arbitrage
// opportunities.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polyarb/internal/bookstate"
	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/matcher"
	"github.com/alanyoungcy/polyarb/internal/pricing"
)

// Config holds the scanner's trade-sizing and acceptance parameters.
type Config struct {
	DefaultQuoteSize float64
	MinTradeSize     float64
	MaxTradeSize     float64
	MaxSlippageBps   float64
	MinProfitPercent float64
	MatchOverrides   map[string]string
	MaxEndDateGapHrs float64
	CatalogTTL       time.Duration
	// PerVenueFeeBps feeds the advisory EstFeeBps on emitted opportunities;
	// fees are not netted into cost.
	PerVenueFeeBps map[domain.Venue]float64
}

// Stats summarizes one scan cycle for observability. Fetch errors are
// contained here; they never abort the remaining scan.
type Stats struct {
	PairsMatched   int
	PairsSkipped   int
	RoutesRejected int
	FetchErrors    int
	Elapsed        time.Duration
}

// Scanner evaluates matched pairs against live depth. It prefers streamed
// book state and falls back to a REST fetch only on a miss; that fallback is
// the single point where a scan blocks on the network per leg.
type Scanner struct {
	venueA domain.VenueAdapter
	venueB domain.VenueAdapter
	books  *bookstate.Store
	cache  domain.MarketCache // optional
	cfg    Config
	logger *slog.Logger
}

// New creates a Scanner over the two venue adapters.
func New(venueA, venueB domain.VenueAdapter, books *bookstate.Store, cache domain.MarketCache, cfg Config, logger *slog.Logger) *Scanner {
	return &Scanner{
		venueA: venueA,
		venueB: venueB,
		books:  books,
		cache:  cache,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "scanner")),
	}
}

// ScanOnce fetches both catalogs, matches them, and evaluates both
// complementary routes per pair. The returned list is sorted by profit
// descending, with larger fill size and then lower cost breaking ties. The
// output is advisory: nothing is reserved, and books may move before a
// consumer acts.
func (s *Scanner) ScanOnce(ctx context.Context, limit int, threshold float64) ([]domain.ArbOpportunity, Stats, error) {
	start := time.Now()
	var stats Stats

	catalogA, err := s.catalog(ctx, s.venueA, limit)
	if err != nil {
		return nil, stats, fmt.Errorf("scanner: venue %s catalog: %w", s.venueA.Venue(), err)
	}
	catalogB, err := s.catalog(ctx, s.venueB, limit)
	if err != nil {
		return nil, stats, fmt.Errorf("scanner: venue %s catalog: %w", s.venueB.Venue(), err)
	}

	pairs := matcher.Match(catalogA, catalogB, matcher.Config{
		Threshold:     threshold,
		MaxEndDateGap: s.cfg.MaxEndDateGapHrs,
		Overrides:     s.cfg.MatchOverrides,
	})
	stats.PairsMatched = len(pairs)

	var opps []domain.ArbOpportunity
	for _, pair := range pairs {
		routeOpps, skipped := s.evaluatePair(ctx, pair, &stats)
		if skipped {
			stats.PairsSkipped++
			continue
		}
		opps = append(opps, routeOpps...)
	}

	sort.Slice(opps, func(i, j int) bool {
		if opps[i].ProfitPercent != opps[j].ProfitPercent {
			return opps[i].ProfitPercent > opps[j].ProfitPercent
		}
		if opps[i].FillSize != opps[j].FillSize {
			return opps[i].FillSize > opps[j].FillSize
		}
		return opps[i].Cost < opps[j].Cost
	})

	stats.Elapsed = time.Since(start)
	s.logger.Info("scan complete",
		slog.Int("pairs", stats.PairsMatched),
		slog.Int("opportunities", len(opps)),
		slog.Int("skipped", stats.PairsSkipped),
		slog.Int("fetch_errors", stats.FetchErrors),
		slog.Duration("elapsed", stats.Elapsed),
	)
	return opps, stats, nil
}

// evaluatePair runs both routes for one matched pair. skipped is true when
// neither leg's data could be resolved.
func (s *Scanner) evaluatePair(ctx context.Context, pair domain.MatchedMarket, stats *Stats) (opps []domain.ArbOpportunity, skipped bool) {
	resolved := 0
	for _, route := range []domain.Route{domain.RouteANoBYes, domain.RouteAYesBNo} {
		outcomeA, outcomeB := route.Outcomes()

		bookA, okA := s.resolveBook(ctx, s.venueA, pair.A.TokenFor(outcomeA), stats)
		bookB, okB := s.resolveBook(ctx, s.venueB, pair.B.TokenFor(outcomeB), stats)
		if !okA || !okB {
			continue
		}
		resolved++

		opp, ok := s.evaluateRoute(pair, route, bookA, bookB)
		if !ok {
			stats.RoutesRejected++
			continue
		}
		opps = append(opps, opp)
	}
	return opps, resolved == 0
}

// evaluateRoute applies the acceptance gates from depth-simulated fills on
// the buy side of each leg. Fills are price-bounded at best plus the
// slippage cap, so a thin top of book shrinks the fill instead of worsening
// the average.
func (s *Scanner) evaluateRoute(pair domain.MatchedMarket, route domain.Route, bookA, bookB domain.OrderBook) (domain.ArbOpportunity, bool) {
	target := s.cfg.DefaultQuoteSize
	if s.cfg.MaxTradeSize > 0 && target > s.cfg.MaxTradeSize {
		target = s.cfg.MaxTradeSize
	}

	bestA, okA := pricing.BestPrice(bookA, domain.OrderSideBuy)
	bestB, okB := pricing.BestPrice(bookB, domain.OrderSideBuy)
	if !okA || !okB {
		return domain.ArbOpportunity{}, false
	}

	band := 1 + s.cfg.MaxSlippageBps/10_000
	fillA := pricing.SimulateFillLimit(bookA, domain.OrderSideBuy, target, bestA*band)
	fillB := pricing.SimulateFillLimit(bookB, domain.OrderSideBuy, target, bestB*band)
	if fillA.FilledSize < s.cfg.MinTradeSize || fillB.FilledSize < s.cfg.MinTradeSize {
		return domain.ArbOpportunity{}, false
	}

	cost := fillA.AvgPrice + fillB.AvgPrice
	profit := (1 - cost) * 100
	if cost >= 1 || profit < s.cfg.MinProfitPercent {
		return domain.ArbOpportunity{}, false
	}

	size := fillA.FilledSize
	if fillB.FilledSize < size {
		size = fillB.FilledSize
	}

	outcomeA, outcomeB := route.Outcomes()
	return domain.ArbOpportunity{
		ID:            uuid.New().String(),
		Pair:          pair,
		Route:         route,
		Cost:          cost,
		ProfitPercent: profit,
		FillSize:      size,
		LegAPrice:     fillA.AvgPrice,
		LegBPrice:     fillB.AvgPrice,
		EstFeeBps:     s.cfg.PerVenueFeeBps[pair.A.Venue] + s.cfg.PerVenueFeeBps[pair.B.Venue],
		PriceBreakdown: fmt.Sprintf("%s_%s %.4f | %s_%s %.4f",
			pair.A.Venue, outcomeA, fillA.AvgPrice,
			pair.B.Venue, outcomeB, fillB.AvgPrice,
		),
		DetectedAt: time.Now().UTC(),
	}, true
}

// resolveBook prefers streamed state; on a miss it falls back to a REST
// fetch through the adapter. A hard fetch error is counted and the leg is
// treated as unavailable.
func (s *Scanner) resolveBook(ctx context.Context, venue domain.VenueAdapter, tokenRef string, stats *Stats) (domain.OrderBook, bool) {
	if tokenRef == "" {
		return domain.OrderBook{}, false
	}
	if book, ok := s.books.GetBook(venue.Venue(), tokenRef); ok {
		return book, true
	}

	book, err := venue.GetOrderBook(ctx, tokenRef)
	if err != nil {
		stats.FetchErrors++
		s.logger.Warn("orderbook fetch failed",
			slog.String("venue", string(venue.Venue())),
			slog.String("token", tokenRef),
			slog.String("error", err.Error()),
		)
		return domain.OrderBook{}, false
	}
	return book, true
}

// catalog returns a venue's active markets, consulting the market cache
// first when one is wired.
func (s *Scanner) catalog(ctx context.Context, venue domain.VenueAdapter, limit int) ([]domain.Market, error) {
	if s.cache != nil {
		if markets, err := s.cache.GetCatalog(ctx, venue.Venue()); err == nil && len(markets) > 0 {
			if limit > 0 && len(markets) > limit {
				markets = markets[:limit]
			}
			return markets, nil
		}
	}

	markets, err := venue.ListActiveMarkets(ctx, limit)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && len(markets) > 0 {
		if err := s.cache.SetCatalog(ctx, venue.Venue(), markets, s.cfg.CatalogTTL); err != nil {
			s.logger.Debug("catalog cache write failed", slog.String("error", err.Error()))
		}
	}
	return markets, nil
}
