package bookstate

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// EventType discriminates normalized stream events.
type EventType string

const (
	EventBookSnapshot EventType = "BOOK_SNAPSHOT"
	EventTrade        EventType = "TRADE"
)

// Event is the normalized form of a streaming-feed message. Wire parsing is
// a venue adapter concern; by the time an Event reaches the feed it is
// already typed.
type Event struct {
	Type     EventType
	Venue    domain.Venue
	TokenRef string
	Bids     []domain.PriceLevel
	Asks     []domain.PriceLevel
	Trade    *domain.TradeEvent
}

// StreamSource opens a venue's market-data stream. The returned channel is
// closed when the connection drops; Stream is then called again by the feed
// after backoff.
type StreamSource interface {
	Venue() domain.Venue
	Stream(ctx context.Context) (<-chan Event, error)
}

const (
	feedBaseBackoff = 1 * time.Second
	feedMaxBackoff  = 30 * time.Second
)

// Feed pumps one venue's stream into the Store, reconnecting with
// exponential backoff on disconnect. Run finishes the in-flight message
// before honoring cancellation.
type Feed struct {
	source StreamSource
	store  *Store
	logger *slog.Logger
}

// NewFeed creates a feed for one venue stream.
func NewFeed(source StreamSource, store *Store, logger *slog.Logger) *Feed {
	return &Feed{
		source: source,
		store:  store,
		logger: logger.With(
			slog.String("component", "book_feed"),
			slog.String("venue", string(source.Venue())),
		),
	}
}

// Run blocks until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	backoff := feedBaseBackoff
	f.logger.Info("book feed started")
	defer f.logger.Info("book feed stopped")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ch, err := f.source.Stream(ctx)
		if err != nil {
			f.logger.Warn("stream connect failed, backing off",
				slog.Duration("backoff", backoff),
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff)
			continue
		}

		backoff = feedBaseBackoff
		if err := f.consume(ctx, ch); err != nil {
			return err
		}
		f.logger.Warn("stream closed, reconnecting")
	}
}

// consume drains events until the channel closes (disconnect) or ctx is
// done. It returns a non-nil error only on cancellation.
func (f *Feed) consume(ctx context.Context, ch <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			f.apply(ev)
		}
	}
}

func (f *Feed) apply(ev Event) {
	switch ev.Type {
	case EventBookSnapshot:
		if !f.store.ApplyBookSnapshot(ev.Venue, ev.TokenRef, ev.Bids, ev.Asks) {
			f.logger.Debug("book snapshot discarded",
				slog.String("token", ev.TokenRef),
				slog.Uint64("discards", f.store.Discards()),
			)
		}
	case EventTrade:
		if ev.Trade != nil {
			f.store.ApplyTrade(*ev.Trade)
		}
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > feedMaxBackoff {
		d = feedMaxBackoff
	}
	return d
}
