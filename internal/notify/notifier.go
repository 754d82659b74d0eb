// Package notify delivers operator alerts over Telegram and Discord. Alerts
// carry an event type; the notifier forwards only event types the operator
// subscribed to, so a scan-only deployment can mute execution chatter.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// Event types emitted by the engine.
const (
	EventArbDetected       = "arb_detected"
	EventExecutionComplete = "execution_complete"
	EventExposure          = "exposure"
	EventError             = "error"
)

// Sender delivers a single alert on one channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans alerts out to every configured sender, filtered by event
// type. An empty subscription list means all events are delivered.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a notifier over the given senders and event
// subscriptions.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers the alert if its event type is subscribed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event not subscribed", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyAll delivers the alert regardless of subscriptions.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// dispatch sends to every sender; one failing channel does not block the
// rest. Failures are combined into a single error.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "alert sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// FormatOpportunity renders a detected opportunity as a one-screen alert.
func FormatOpportunity(opp domain.ArbOpportunity) (title, message string) {
	title = fmt.Sprintf("Arb %.2f%%: %s", opp.ProfitPercent, truncate(opp.Pair.A.Title, 80))
	message = fmt.Sprintf(
		"route=%s cost=%.4f size=%.1f\nA: %s @ %.4f (%s)\nB: %s @ %.4f (%s)",
		opp.Route, opp.Cost, opp.FillSize,
		truncate(opp.Pair.A.Title, 60), opp.LegAPrice, opp.Pair.A.Venue,
		truncate(opp.Pair.B.Title, 60), opp.LegBPrice, opp.Pair.B.Venue,
	)
	return title, message
}

// FormatExecution renders an execution result as a one-screen alert.
func FormatExecution(rec domain.ExecutionRecord) (title, message string) {
	title = fmt.Sprintf("Execution %s: %s", rec.Outcome, rec.ID)
	message = fmt.Sprintf(
		"opp=%s route=%s\nleg A %s size=%.1f avg=%.4f\nleg B %s size=%.1f avg=%.4f",
		rec.Opportunity.ID, rec.Opportunity.Route,
		rec.LegA.Status, rec.LegA.FilledSize, rec.LegA.AvgPrice,
		rec.LegB.Status, rec.LegB.FilledSize, rec.LegB.AvgPrice,
	)
	if rec.Remediation != "" {
		message += "\nremediation: " + string(rec.Remediation)
	}
	return title, message
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
