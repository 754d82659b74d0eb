// Package bookstate is the single source of truth for current order-book
// state per (venue, token). Streaming feeds write into it; the scanner reads
// from it. Each token has its own lock so unrelated markets never serialize
// on a global mutex.
package bookstate

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// DefaultTapeCapacity bounds the per-group trade ring buffer.
const DefaultTapeCapacity = 200

// Store holds the latest known book per (venue, tokenRef) and a bounded tape
// of recent trades per group ref. Snapshot replacement is atomic and
// last-write-wins; there are no partial merges.
type Store struct {
	mu    sync.RWMutex // guards the cell maps, not cell contents
	books map[string]*bookCell
	tapes map[string]*tape

	tapeCap  int
	discards atomic.Uint64
}

type bookCell struct {
	mu   sync.RWMutex
	book domain.OrderBook
}

// New creates an empty Store. tapeCapacity <= 0 uses DefaultTapeCapacity.
func New(tapeCapacity int) *Store {
	if tapeCapacity <= 0 {
		tapeCapacity = DefaultTapeCapacity
	}
	return &Store{
		books:   make(map[string]*bookCell),
		tapes:   make(map[string]*tape),
		tapeCap: tapeCapacity,
	}
}

func bookKey(venue domain.Venue, tokenRef string) string {
	return string(venue) + ":" + tokenRef
}

// ApplyBookSnapshot atomically replaces the stored book for a token. A
// malformed snapshot is discarded and the previous state retained; the
// return value reports acceptance and the discard counter tracks rejects
// for observability.
func (s *Store) ApplyBookSnapshot(venue domain.Venue, tokenRef string, bids, asks []domain.PriceLevel) bool {
	if tokenRef == "" || !validSide(bids) || !validSide(asks) {
		s.discards.Add(1)
		return false
	}

	book := domain.OrderBook{
		TokenRef:  tokenRef,
		Bids:      sortLevels(bids, true),
		Asks:      sortLevels(asks, false),
		Timestamp: time.Now().UTC(),
	}
	if hasDuplicatePrices(book.Bids) || hasDuplicatePrices(book.Asks) {
		s.discards.Add(1)
		return false
	}

	cell := s.cell(venue, tokenRef)
	cell.mu.Lock()
	cell.book = book
	cell.mu.Unlock()
	return true
}

// GetBook returns the latest snapshot for a token. The second return is
// false when no snapshot has ever arrived; an empty book with ok==true is a
// valid, cleared state and must be treated differently by callers.
func (s *Store) GetBook(venue domain.Venue, tokenRef string) (domain.OrderBook, bool) {
	s.mu.RLock()
	cell, ok := s.books[bookKey(venue, tokenRef)]
	s.mu.RUnlock()
	if !ok {
		return domain.OrderBook{}, false
	}

	cell.mu.RLock()
	book := cell.book
	cell.mu.RUnlock()
	if book.TokenRef == "" {
		return domain.OrderBook{}, false
	}

	// Copy level slices so readers can never observe a later overwrite.
	out := book
	out.Bids = append([]domain.PriceLevel(nil), book.Bids...)
	out.Asks = append([]domain.PriceLevel(nil), book.Asks...)
	return out, true
}

// ApplyTrade appends a fill to the bounded ring buffer for its group ref,
// evicting the oldest entry once the buffer is full.
func (s *Store) ApplyTrade(ev domain.TradeEvent) {
	if ev.GroupRef == "" {
		s.discards.Add(1)
		return
	}

	s.mu.Lock()
	t, ok := s.tapes[ev.GroupRef]
	if !ok {
		t = newTape(s.tapeCap)
		s.tapes[ev.GroupRef] = t
	}
	s.mu.Unlock()

	t.append(ev)
}

// GetRecentTrades returns up to limit most recent trades for a group ref,
// oldest first.
func (s *Store) GetRecentTrades(groupRef string, limit int) []domain.TradeEvent {
	s.mu.RLock()
	t, ok := s.tapes[groupRef]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return t.recent(limit)
}

// Discards returns how many malformed payloads have been rejected.
func (s *Store) Discards() uint64 {
	return s.discards.Load()
}

func (s *Store) cell(venue domain.Venue, tokenRef string) *bookCell {
	key := bookKey(venue, tokenRef)
	s.mu.RLock()
	cell, ok := s.books[key]
	s.mu.RUnlock()
	if ok {
		return cell
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cell, ok = s.books[key]; ok {
		return cell
	}
	cell = &bookCell{}
	s.books[key] = cell
	return cell
}

func validSide(levels []domain.PriceLevel) bool {
	for _, lvl := range levels {
		if lvl.Price < 0 || lvl.Price > 1 || lvl.Size < 0 {
			return false
		}
		if lvl.Price != lvl.Price || lvl.Size != lvl.Size { // NaN
			return false
		}
	}
	return true
}

func sortLevels(levels []domain.PriceLevel, descending bool) []domain.PriceLevel {
	out := append([]domain.PriceLevel(nil), levels...)
	// Insertion sort: feeds deliver levels already ordered, so this is
	// normally a single pass.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			swap := out[j-1].Price < out[j].Price
			if !descending {
				swap = out[j-1].Price > out[j].Price
			}
			if !swap {
				break
			}
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func hasDuplicatePrices(levels []domain.PriceLevel) bool {
	for i := 1; i < len(levels); i++ {
		if levels[i].Price == levels[i-1].Price {
			return true
		}
	}
	return false
}

// tape is a fixed-capacity ring buffer of trade events.
type tape struct {
	mu    sync.Mutex
	buf   []domain.TradeEvent
	next  int
	count int
}

func newTape(capacity int) *tape {
	return &tape{buf: make([]domain.TradeEvent, capacity)}
}

func (t *tape) append(ev domain.TradeEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf[t.next] = ev
	t.next = (t.next + 1) % len(t.buf)
	if t.count < len(t.buf) {
		t.count++
	}
}

func (t *tape) recent(limit int) []domain.TradeEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	if limit <= 0 || limit > t.count {
		limit = t.count
	}
	out := make([]domain.TradeEvent, 0, limit)
	start := t.next - limit
	if start < 0 {
		start += len(t.buf)
	}
	for i := 0; i < limit; i++ {
		out = append(out, t.buf[(start+i)%len(t.buf)])
	}
	return out
}
