package scanner

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/notify"
)

// ExecuteFunc hands a selected opportunity to the execution coordinator.
type ExecuteFunc func(ctx context.Context, opp domain.ArbOpportunity) (domain.ExecutionRecord, error)

// RunnerConfig configures the periodic scan loop.
type RunnerConfig struct {
	Interval    time.Duration
	Limit       int
	Threshold   float64
	AutoExecute bool
}

// Runner drives ScanOnce on a fixed interval. Each tick runs to completion;
// cancellation is honored between ticks, never mid-tick. Accepted
// opportunities are persisted, published on the signal bus, and optionally
// handed to the executor (top-ranked only, one execution per tick).
type Runner struct {
	scanner  *Scanner
	store    domain.OpportunityStore // optional
	bus      domain.SignalBus        // optional
	notifier *notify.Notifier        // optional
	execute  ExecuteFunc             // required when AutoExecute is set
	cfg      RunnerConfig
	logger   *slog.Logger
}

// NewRunner creates a scan-loop runner. Nil store, bus, and notifier are
// allowed; the corresponding step is skipped.
func NewRunner(s *Scanner, store domain.OpportunityStore, bus domain.SignalBus, notifier *notify.Notifier, execute ExecuteFunc, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Runner{
		scanner:  s,
		store:    store,
		bus:      bus,
		notifier: notifier,
		execute:  execute,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "scan_runner")),
	}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("scan loop started",
		slog.Duration("interval", r.cfg.Interval),
		slog.Bool("auto_execute", r.cfg.AutoExecute),
	)
	defer r.logger.Info("scan loop stopped")

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	// First tick immediately rather than waiting a full interval.
	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	opps, stats, err := r.scanner.ScanOnce(ctx, r.cfg.Limit, r.cfg.Threshold)
	if err != nil {
		r.logger.Error("scan tick failed", slog.String("error", err.Error()))
		return
	}
	if stats.FetchErrors > 0 {
		r.logger.Warn("scan tick had fetch errors", slog.Int("count", stats.FetchErrors))
	}
	if len(opps) == 0 {
		return
	}

	for _, opp := range opps {
		r.record(ctx, opp)
	}

	if r.notifier != nil {
		title, message := notify.FormatOpportunity(opps[0])
		_ = r.notifier.Notify(ctx, notify.EventArbDetected, title, message)
	}

	if r.cfg.AutoExecute && r.execute != nil {
		rec, err := r.execute(ctx, opps[0])
		if err != nil {
			r.logger.Error("auto execution failed",
				slog.String("opp_id", opps[0].ID),
				slog.String("error", err.Error()),
			)
			return
		}
		r.logger.Info("auto execution finished",
			slog.String("opp_id", opps[0].ID),
			slog.String("outcome", string(rec.Outcome)),
		)
	}
}

func (r *Runner) record(ctx context.Context, opp domain.ArbOpportunity) {
	if r.store != nil {
		if err := r.store.Insert(ctx, opp); err != nil {
			r.logger.Warn("opportunity insert failed",
				slog.String("opp_id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if r.bus != nil {
		payload, _ := json.Marshal(map[string]any{
			"event":          notify.EventArbDetected,
			"opp_id":         opp.ID,
			"route":          opp.Route,
			"cost":           opp.Cost,
			"profit_percent": opp.ProfitPercent,
			"fill_size":      opp.FillSize,
			"a_market":       opp.Pair.A.ID,
			"b_market":       opp.Pair.B.ID,
		})
		if err := r.bus.Publish(ctx, "arb", payload); err != nil {
			r.logger.Warn("opportunity publish failed", slog.String("error", err.Error()))
		}
	}
}
