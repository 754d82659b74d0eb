// Package executor carries out a chosen arbitrage opportunity as two
// economically-coupled but operationally-independent trades. There is no
// shared transaction boundary across venues, so a one-sided fill is modeled
// as an explicit terminal state with a remediation policy, never an
// exception.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyarb/internal/bookstate"
	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/notify"
	"github.com/alanyoungcy/polyarb/internal/pricing"
)

// Config tunes the coordinator.
type Config struct {
	// Deadline bounds the whole dual-leg attempt. Exceeding it triggers
	// remediation, never an indefinite wait.
	Deadline time.Duration

	// MaxAttempts bounds retries per leg for retryable errors.
	MaxAttempts int

	// RetryBackoff is the base delay; attempts back off exponentially.
	RetryBackoff time.Duration

	// MaxSlippageBps and MinProfitPercent gate the pre-trade
	// re-validation against fresh depth.
	MaxSlippageBps   float64
	MinProfitPercent float64

	// PairCooldown suppresses a second execution on the same matched pair
	// within the window.
	PairCooldown time.Duration

	// CheckBalances caps leg size by available venue collateral when set.
	CheckBalances bool
}

func (c *Config) applyDefaults() {
	if c.Deadline <= 0 {
		c.Deadline = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.PairCooldown <= 0 {
		c.PairCooldown = 30 * time.Second
	}
}

// Coordinator owns the execution state machine:
//
//	PENDING -> legs submitted concurrently -> {BOTH_FILLED |
//	PARTIAL_A_ONLY | PARTIAL_B_ONLY | BOTH_FAILED} (or STALE before any
//	order is placed).
//
// Every attempt yields exactly one immutable ExecutionRecord.
type Coordinator struct {
	venueA   domain.VenueAdapter
	venueB   domain.VenueAdapter
	books    *bookstate.Store
	store    domain.ExecutionStore // optional
	audit    domain.AuditStore     // optional
	locks    domain.LockManager    // optional
	notifier *notify.Notifier      // optional
	dedup    *Dedup
	cfg      Config
	logger   *slog.Logger
}

// New creates a Coordinator. Store, audit, locks, and notifier may be nil;
// the corresponding step is skipped.
func New(venueA, venueB domain.VenueAdapter, books *bookstate.Store, store domain.ExecutionStore, audit domain.AuditStore, locks domain.LockManager, notifier *notify.Notifier, cfg Config, logger *slog.Logger) *Coordinator {
	cfg.applyDefaults()
	return &Coordinator{
		venueA:   venueA,
		venueB:   venueB,
		books:    books,
		store:    store,
		audit:    audit,
		locks:    locks,
		notifier: notifier,
		dedup:    NewDedup(cfg.PairCooldown),
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "executor")),
	}
}

// Execute runs one attempt for the given opportunity. The returned record is
// always populated, including for STALE aborts; the error reports
// infrastructure failures (lock contention, duplicate fire), not trading
// outcomes.
func (c *Coordinator) Execute(ctx context.Context, opp domain.ArbOpportunity) (domain.ExecutionRecord, error) {
	pairKey := opp.Pair.A.Key() + "|" + opp.Pair.B.Key()
	if c.dedup.IsDuplicate(pairKey) {
		return domain.ExecutionRecord{}, fmt.Errorf("executor: pair %s in cooldown: %w", pairKey, domain.ErrLockHeld)
	}
	if c.locks != nil {
		unlock, err := c.locks.Acquire(ctx, "exec:"+pairKey, c.cfg.Deadline+5*time.Second)
		if err != nil {
			return domain.ExecutionRecord{}, fmt.Errorf("executor: acquire pair lock: %w", err)
		}
		defer unlock()
	}

	rec := domain.ExecutionRecord{
		ID:          uuid.New().String(),
		Opportunity: opp,
		StartedAt:   time.Now().UTC(),
	}
	log := c.logger.With(
		slog.String("exec_id", rec.ID),
		slog.String("opp_id", opp.ID),
		slog.String("route", string(opp.Route)),
	)

	// Re-validate against fresh depth before placing anything. Books move
	// between scan and act; a drifted opportunity is aborted, not traded.
	legA, legB, err := c.revalidate(ctx, opp)
	if err != nil {
		rec.Outcome = domain.OutcomeStale
		rec.Notes = err.Error()
		rec.CompletedAt = time.Now().UTC()
		log.Warn("execution aborted as stale", slog.String("reason", err.Error()))
		c.finalize(ctx, &rec)
		return rec, nil
	}

	if c.cfg.CheckBalances {
		c.capByBalances(ctx, &legA, &legB, log)
	}

	// Submit both legs in parallel under a shared hard deadline.
	legCtx, cancel := context.WithTimeout(ctx, c.cfg.Deadline)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error { c.runLeg(legCtx, c.venueA, &legA, log); return nil })
	g.Go(func() error { c.runLeg(legCtx, c.venueB, &legB, log); return nil })
	_ = g.Wait()

	rec.LegA = legA
	rec.LegB = legB
	rec.Outcome = classify(legA, legB)
	rec.Remediation = c.remediate(ctx, &rec, log)
	rec.CompletedAt = time.Now().UTC()

	log.Info("execution finished",
		slog.String("outcome", string(rec.Outcome)),
		slog.String("remediation", string(rec.Remediation)),
		slog.Float64("leg_a_filled", legA.FilledSize),
		slog.Float64("leg_b_filled", legB.FilledSize),
	)
	c.finalize(ctx, &rec)
	return rec, nil
}

// revalidate re-runs the depth simulation on live books and rebuilds both
// legs at fresh prices. It fails when cost or slippage drifted outside
// tolerance.
func (c *Coordinator) revalidate(ctx context.Context, opp domain.ArbOpportunity) (legA, legB domain.LegResult, err error) {
	outcomeA, outcomeB := opp.Route.Outcomes()
	tokenA := opp.Pair.A.TokenFor(outcomeA)
	tokenB := opp.Pair.B.TokenFor(outcomeB)

	bookA, err := c.freshBook(ctx, c.venueA, tokenA)
	if err != nil {
		return legA, legB, fmt.Errorf("%w: venue %s book: %v", domain.ErrStaleOpportunity, c.venueA.Venue(), err)
	}
	bookB, err := c.freshBook(ctx, c.venueB, tokenB)
	if err != nil {
		return legA, legB, fmt.Errorf("%w: venue %s book: %v", domain.ErrStaleOpportunity, c.venueB.Venue(), err)
	}

	bestA, okA := pricing.BestPrice(bookA, domain.OrderSideBuy)
	bestB, okB := pricing.BestPrice(bookB, domain.OrderSideBuy)
	if !okA || !okB {
		return legA, legB, fmt.Errorf("%w: book side empty", domain.ErrStaleOpportunity)
	}

	band := 1 + c.cfg.MaxSlippageBps/10_000
	fillA := pricing.SimulateFillLimit(bookA, domain.OrderSideBuy, opp.FillSize, bestA*band)
	fillB := pricing.SimulateFillLimit(bookB, domain.OrderSideBuy, opp.FillSize, bestB*band)
	if fillA.FilledSize < opp.FillSize || fillB.FilledSize < opp.FillSize {
		return legA, legB, fmt.Errorf("%w: depth shrank below fill size %.2f", domain.ErrStaleOpportunity, opp.FillSize)
	}

	// The fresh averages must also stay within the band of the prices the
	// decision was made at.
	if !pricing.WithinSlippage(opp.LegAPrice, fillA.AvgPrice, c.cfg.MaxSlippageBps) ||
		!pricing.WithinSlippage(opp.LegBPrice, fillB.AvgPrice, c.cfg.MaxSlippageBps) {
		return legA, legB, fmt.Errorf("%w: price drifted beyond %.0f bps of quote", domain.ErrStaleOpportunity, c.cfg.MaxSlippageBps)
	}

	cost := fillA.AvgPrice + fillB.AvgPrice
	if cost >= 1 || (1-cost)*100 < c.cfg.MinProfitPercent {
		return legA, legB, fmt.Errorf("%w: cost drifted to %.4f", domain.ErrStaleOpportunity, cost)
	}

	legA = domain.LegResult{
		Venue:      c.venueA.Venue(),
		MarketID:   opp.Pair.A.ID,
		TokenRef:   tokenA,
		Outcome:    outcomeA,
		Side:       domain.OrderSideBuy,
		Size:       opp.FillSize,
		LimitPrice: fillA.AvgPrice,
		Status:     domain.LegStatusPending,
	}
	legB = domain.LegResult{
		Venue:      c.venueB.Venue(),
		MarketID:   opp.Pair.B.ID,
		TokenRef:   tokenB,
		Outcome:    outcomeB,
		Side:       domain.OrderSideBuy,
		Size:       opp.FillSize,
		LimitPrice: fillB.AvgPrice,
		Status:     domain.LegStatusPending,
	}
	return legA, legB, nil
}

// runLeg submits one leg with bounded retries. Only venue-classified
// transient failures are retried; fatal order errors abort immediately.
func (c *Coordinator) runLeg(ctx context.Context, venue domain.VenueAdapter, leg *domain.LegResult, log *slog.Logger) {
	req := domain.OrderRequest{
		MarketID:   leg.MarketID,
		TokenRef:   leg.TokenRef,
		Side:       leg.Side,
		Size:       leg.Size,
		LimitPrice: leg.LimitPrice,
		ClientID:   uuid.New().String(),
	}

	backoff := c.cfg.RetryBackoff
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		leg.Attempts = attempt
		leg.Status = domain.LegStatusSubmitted

		res, err := venue.PlaceOrder(ctx, req)
		if err == nil {
			leg.OrderID = res.OrderID
			if res.Filled {
				leg.Status = domain.LegStatusFilled
				leg.FilledSize = res.FilledSize
				leg.AvgPrice = res.AvgPrice
				leg.FeeUSD = res.FeeUSD
				return
			}
			// Accepted but resting unfilled at the deadline counts as a
			// failed leg; remediation will try to cancel it.
			leg.Status = domain.LegStatusFailed
			leg.Error = "order accepted but not filled before deadline"
			return
		}

		leg.Error = err.Error()
		if !domain.IsRetryable(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			leg.Status = domain.LegStatusFailed
			return
		}

		log.Warn("leg attempt failed, retrying",
			slog.String("venue", string(venue.Venue())),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			leg.Status = domain.LegStatusFailed
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	leg.Status = domain.LegStatusFailed
}

// remediate applies the partial-fill policy: cancel the unfilled leg when an
// order is still open, and flag the surviving exposure for hedging. Both
// failed or both filled need no remediation.
func (c *Coordinator) remediate(ctx context.Context, rec *domain.ExecutionRecord, log *slog.Logger) domain.RemediationAction {
	var open *domain.LegResult
	var venue domain.VenueAdapter
	switch rec.Outcome {
	case domain.OutcomePartialAOnly:
		open, venue = &rec.LegB, c.venueB
	case domain.OutcomePartialBOnly:
		open, venue = &rec.LegA, c.venueA
	default:
		return domain.RemediationNone
	}

	c.notifyExposure(ctx, rec)

	if open.OrderID == "" {
		// Nothing to cancel; the filled leg cannot be unwound post-fill.
		return domain.RemediationHedgeRequired
	}

	// Use a fresh context: the leg deadline has typically expired by now.
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	ok, err := venue.CancelOrder(cancelCtx, open.OrderID)
	if err != nil || !ok {
		log.Error("remediation cancel failed",
			slog.String("venue", string(venue.Venue())),
			slog.String("order_id", open.OrderID),
		)
		return domain.RemediationCancelFailed
	}
	open.Status = domain.LegStatusCancelled
	return domain.RemediationCancelRequested
}

func (c *Coordinator) notifyExposure(ctx context.Context, rec *domain.ExecutionRecord) {
	if c.notifier == nil {
		return
	}
	filled := rec.LegA
	if rec.Outcome == domain.OutcomePartialBOnly {
		filled = rec.LegB
	}
	_ = c.notifier.Notify(ctx, notify.EventExposure,
		"Unhedged exposure",
		fmt.Sprintf("exec %s: %s filled %.1f %s @ %.4f on %s, other leg failed",
			rec.ID, filled.Outcome, filled.FilledSize, filled.TokenRef, filled.AvgPrice, filled.Venue),
	)
}

// finalize persists and audits the record. Failures here are logged, never
// raised: the record already exists in memory and the caller gets it.
func (c *Coordinator) finalize(ctx context.Context, rec *domain.ExecutionRecord) {
	// Persist with a context that survives caller cancellation so audit
	// records are not lost on shutdown.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if c.store != nil {
		if err := c.store.Create(saveCtx, *rec); err != nil {
			c.logger.Error("execution record persist failed",
				slog.String("exec_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if c.audit != nil {
		_ = c.audit.Log(saveCtx, "execution_completed", map[string]any{
			"exec_id":     rec.ID,
			"opp_id":      rec.Opportunity.ID,
			"outcome":     string(rec.Outcome),
			"remediation": string(rec.Remediation),
			"leg_a":       string(rec.LegA.Status),
			"leg_b":       string(rec.LegB.Status),
		})
	}
}

func (c *Coordinator) capByBalances(ctx context.Context, legA, legB *domain.LegResult, log *slog.Logger) {
	capLeg := func(venue domain.VenueAdapter, leg *domain.LegResult) {
		balances, err := venue.GetBalances(ctx)
		if err != nil {
			log.Debug("balance check skipped",
				slog.String("venue", string(venue.Venue())),
				slog.String("error", err.Error()),
			)
			return
		}
		var available float64
		for _, b := range balances {
			available += b.Available
		}
		if leg.LimitPrice > 0 {
			if maxSize := available / leg.LimitPrice; maxSize < leg.Size {
				leg.Size = maxSize
			}
		}
	}
	capLeg(c.venueA, legA)
	capLeg(c.venueB, legB)
	// Keep the legs economically coupled: both shrink to the smaller size.
	if legA.Size < legB.Size {
		legB.Size = legA.Size
	} else {
		legA.Size = legB.Size
	}
}

// freshBook prefers the streamed store but requires a recent snapshot; it
// falls back to REST when the store has nothing.
func (c *Coordinator) freshBook(ctx context.Context, venue domain.VenueAdapter, tokenRef string) (domain.OrderBook, error) {
	if book, ok := c.books.GetBook(venue.Venue(), tokenRef); ok {
		return book, nil
	}
	return venue.GetOrderBook(ctx, tokenRef)
}

// classify maps the two leg results onto the terminal outcome.
func classify(legA, legB domain.LegResult) domain.ExecutionOutcome {
	aFilled := legA.Status == domain.LegStatusFilled
	bFilled := legB.Status == domain.LegStatusFilled
	switch {
	case aFilled && bFilled:
		return domain.OutcomeBothFilled
	case aFilled:
		return domain.OutcomePartialAOnly
	case bFilled:
		return domain.OutcomePartialBOnly
	default:
		return domain.OutcomeBothFailed
	}
}
