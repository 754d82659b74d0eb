package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/executor"
	"github.com/alanyoungcy/polyarb/internal/notify"
	"github.com/alanyoungcy/polyarb/internal/scanner"
)

const (
	// archiveInterval and archiveRetention drive the cold-storage job: rows
	// older than the retention window are moved to object storage daily.
	archiveInterval  = 24 * time.Hour
	archiveRetention = 30 * 24 * time.Hour

	// exposureCheckInterval drives the open-exposure report in the
	// long-running modes.
	exposureCheckInterval = 5 * time.Minute
)

// ScanMode runs one scan cycle, logs and persists the results, and exits.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	scan := a.buildScanner(deps)
	opps, stats, err := scan.ScanOnce(ctx, a.cfg.Scan.MarketLimit, a.cfg.Match.Threshold)
	if err != nil {
		return err
	}

	for i, opp := range opps {
		a.logger.InfoContext(ctx, "opportunity",
			slog.Int("rank", i+1),
			slog.String("opp_id", opp.ID),
			slog.String("route", string(opp.Route)),
			slog.Float64("profit_percent", opp.ProfitPercent),
			slog.Float64("cost", opp.Cost),
			slog.Float64("fill_size", opp.FillSize),
			slog.String("a_title", opp.Pair.A.Title),
			slog.String("b_title", opp.Pair.B.Title),
			slog.String("breakdown", opp.PriceBreakdown),
		)
		if err := deps.OpportunityStore.Insert(ctx, opp); err != nil {
			a.logger.WarnContext(ctx, "opportunity insert failed",
				slog.String("opp_id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	a.logger.InfoContext(ctx, "scan finished",
		slog.Int("pairs", stats.PairsMatched),
		slog.Int("opportunities", len(opps)),
		slog.Int("fetch_errors", stats.FetchErrors),
		slog.Duration("elapsed", stats.Elapsed),
	)
	return nil
}

// MonitorMode runs the continuous detection loop with streaming feeds but
// never executes: opportunities are persisted, published, and alerted only.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startFeeds(ctx, g, deps)

	runner := a.buildRunner(deps, nil, false)
	g.Go(func() error { return runner.Run(ctx) })

	g.Go(func() error { return a.exposureLoop(ctx, deps) })
	a.startArchiver(ctx, g, deps)
	return g.Wait()
}

// BotMode runs the full loop: feeds, scanning, and dual-leg execution of the
// top-ranked opportunity per tick when auto-execute is enabled.
func (a *App) BotMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting bot mode",
		slog.Bool("auto_execute", a.cfg.Execution.AutoExecute),
	)

	g, ctx := errgroup.WithContext(ctx)
	a.startFeeds(ctx, g, deps)

	coord := executor.New(
		deps.VenueA, deps.VenueB, deps.Books,
		deps.ExecutionStore, deps.AuditStore, deps.Locks, deps.Notifier,
		executor.Config{
			Deadline:         a.cfg.Execution.Deadline.Duration,
			MaxAttempts:      a.cfg.Execution.MaxAttempts,
			RetryBackoff:     a.cfg.Execution.RetryBackoff.Duration,
			MaxSlippageBps:   a.cfg.Scan.MaxSlippageBps,
			MinProfitPercent: a.cfg.Scan.MinProfitPercent,
			PairCooldown:     a.cfg.Execution.PairCooldown.Duration,
			CheckBalances:    a.cfg.Execution.CheckBalances,
		},
		a.logger,
	)

	execute := func(ctx context.Context, opp domain.ArbOpportunity) (domain.ExecutionRecord, error) {
		rec, err := coord.Execute(ctx, opp)
		if err == nil && deps.Notifier != nil {
			title, message := notify.FormatExecution(rec)
			_ = deps.Notifier.Notify(ctx, notify.EventExecutionComplete, title, message)
		}
		return rec, err
	}

	runner := a.buildRunner(deps, execute, a.cfg.Execution.AutoExecute)
	g.Go(func() error { return runner.Run(ctx) })

	g.Go(func() error { return a.exposureLoop(ctx, deps) })
	a.startArchiver(ctx, g, deps)
	return g.Wait()
}

// exposureLoop reports open one-sided fills so an operator can hedge them.
func (a *App) exposureLoop(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(exposureCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			recs, err := deps.ExecutionStore.ListExposed(ctx)
			if err != nil {
				a.logger.WarnContext(ctx, "exposure query failed", slog.String("error", err.Error()))
				continue
			}
			if len(recs) == 0 {
				continue
			}
			a.logger.WarnContext(ctx, "unhedged exposure open", slog.Int("count", len(recs)))
			for _, rec := range recs {
				title, message := notify.FormatExecution(rec)
				_ = deps.Notifier.Notify(ctx, notify.EventExposure, title, message)
			}
		}
	}
}

// buildScanner assembles the scanner from configuration.
func (a *App) buildScanner(deps *Dependencies) *scanner.Scanner {
	feeBps := make(map[domain.Venue]float64, len(a.cfg.Scan.PerVenueFeeBps))
	for venue, bps := range a.cfg.Scan.PerVenueFeeBps {
		feeBps[domain.Venue(venue)] = bps
	}

	return scanner.New(deps.VenueA, deps.VenueB, deps.Books, deps.MarketCache, scanner.Config{
		DefaultQuoteSize: a.cfg.Scan.DefaultQuoteSize,
		MinTradeSize:     a.cfg.Scan.MinTradeSize,
		MaxTradeSize:     a.cfg.Scan.MaxTradeSize,
		MaxSlippageBps:   a.cfg.Scan.MaxSlippageBps,
		MinProfitPercent: a.cfg.Scan.MinProfitPercent,
		MatchOverrides:   a.cfg.Match.Overrides,
		MaxEndDateGapHrs: a.cfg.Match.MaxEndDateGapHours,
		CatalogTTL:       a.cfg.Scan.CatalogTTL.Duration,
		PerVenueFeeBps:   feeBps,
	}, a.logger)
}

// buildRunner assembles the periodic scan loop.
func (a *App) buildRunner(deps *Dependencies, execute scanner.ExecuteFunc, autoExecute bool) *scanner.Runner {
	return scanner.NewRunner(
		a.buildScanner(deps), deps.OpportunityStore, deps.SignalBus, deps.Notifier, execute,
		scanner.RunnerConfig{
			Interval:    a.cfg.Scan.Interval.Duration,
			Limit:       a.cfg.Scan.MarketLimit,
			Threshold:   a.cfg.Match.Threshold,
			AutoExecute: autoExecute,
		},
		a.logger,
	)
}

// startFeeds launches one goroutine per venue stream.
func (a *App) startFeeds(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	for _, feed := range deps.Feeds {
		f := feed
		g.Go(func() error { return f.Run(ctx) })
	}
}

// startArchiver launches the daily cold-storage job when object storage is
// wired for this mode.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}
	g.Go(func() error {
		ticker := time.NewTicker(archiveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-archiveRetention)
				if n, err := deps.Archiver.ArchiveOpportunities(ctx, cutoff); err != nil {
					a.logger.WarnContext(ctx, "opportunity archive failed", slog.String("error", err.Error()))
				} else if n > 0 {
					a.logger.InfoContext(ctx, "opportunities archived", slog.Int64("count", n))
				}
				if n, err := deps.Archiver.ArchiveExecutions(ctx, cutoff); err != nil {
					a.logger.WarnContext(ctx, "execution archive failed", slog.String("error", err.Error()))
				} else if n > 0 {
					a.logger.InfoContext(ctx, "executions archived", slog.Int64("count", n))
				}
			}
		}
	})
}
