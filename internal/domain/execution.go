package domain

import "time"

// LegStatus tracks one leg of a dual-venue execution.
type LegStatus string

const (
	LegStatusPending   LegStatus = "pending"
	LegStatusSubmitted LegStatus = "submitted"
	LegStatusFilled    LegStatus = "filled"
	LegStatusFailed    LegStatus = "failed"
	LegStatusCancelled LegStatus = "cancelled"
)

// LegResult is the final state of one leg of an execution attempt.
type LegResult struct {
	Venue      Venue
	MarketID   string
	TokenRef   string
	Outcome    Outcome
	Side       OrderSide
	Size       float64
	LimitPrice float64
	OrderID    string
	FilledSize float64
	AvgPrice   float64
	FeeUSD     float64
	Status     LegStatus
	Error      string
	Attempts   int
}

// ExecutionOutcome is the terminal state of a dual-leg execution. There is no
// shared settlement across venues, so a one-sided fill is a first-class
// outcome, not an error.
type ExecutionOutcome string

const (
	OutcomeBothFilled   ExecutionOutcome = "BOTH_FILLED"
	OutcomePartialAOnly ExecutionOutcome = "PARTIAL_A_ONLY"
	OutcomePartialBOnly ExecutionOutcome = "PARTIAL_B_ONLY"
	OutcomeBothFailed   ExecutionOutcome = "BOTH_FAILED"
	// OutcomeStale means the opportunity failed re-validation before any
	// order was placed. No exposure was created.
	OutcomeStale ExecutionOutcome = "STALE"
)

// RemediationAction records what was done about a one-sided fill.
type RemediationAction string

const (
	RemediationNone            RemediationAction = ""
	RemediationCancelRequested RemediationAction = "cancel_requested"
	RemediationCancelFailed    RemediationAction = "cancel_failed"
	// RemediationHedgeRequired flags unhedged directional exposure that a
	// human or a hedging policy must resolve.
	RemediationHedgeRequired RemediationAction = "hedge_required"
)

// ExecutionRecord is the immutable audit record of one execution attempt.
// Created when execution starts, finalized when both legs resolve or the
// deadline elapses; owned solely by the coordinator.
type ExecutionRecord struct {
	ID          string
	Opportunity ArbOpportunity
	LegA        LegResult
	LegB        LegResult
	Outcome     ExecutionOutcome
	Remediation RemediationAction
	Notes       string
	StartedAt   time.Time
	CompletedAt time.Time
}

// Exposed reports whether the record left an unhedged position behind.
func (r ExecutionRecord) Exposed() bool {
	return r.Outcome == OutcomePartialAOnly || r.Outcome == OutcomePartialBOnly
}
