package bookstate

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// fakeSource emits one canned batch of events per connection, then closes the
// channel to simulate a disconnect.
type fakeSource struct {
	events   []Event
	connects atomic.Int32
}

func (f *fakeSource) Venue() domain.Venue { return domain.VenuePolymarket }

func (f *fakeSource) Stream(ctx context.Context) (<-chan Event, error) {
	f.connects.Add(1)
	ch := make(chan Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFeedAppliesEvents(t *testing.T) {
	store := New(0)
	source := &fakeSource{events: []Event{
		{
			Type:     EventBookSnapshot,
			Venue:    domain.VenuePolymarket,
			TokenRef: "tok",
			Bids:     []domain.PriceLevel{{Price: 0.40, Size: 5}},
			Asks:     []domain.PriceLevel{{Price: 0.45, Size: 5}},
		},
		{
			Type:  EventTrade,
			Venue: domain.VenuePolymarket,
			Trade: &domain.TradeEvent{Venue: domain.VenuePolymarket, GroupRef: "grp", Price: 0.42, Size: 2},
		},
	}}

	feed := NewFeed(source, store, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, found := store.GetBook(domain.VenuePolymarket, "tok")
		return found && len(store.GetRecentTrades("grp", 0)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop on cancel")
	}
}

func TestFeedReconnectsAfterDisconnect(t *testing.T) {
	store := New(0)
	source := &fakeSource{}

	feed := NewFeed(source, store, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	// Every channel close triggers a fresh Stream call with no backoff on a
	// clean connect, so the counter climbs past one quickly.
	require.Eventually(t, func() bool {
		return source.connects.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop on cancel")
	}
}

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second))
	assert.Equal(t, feedMaxBackoff, nextBackoff(20*time.Second))
	assert.Equal(t, feedMaxBackoff, nextBackoff(feedMaxBackoff))
}
