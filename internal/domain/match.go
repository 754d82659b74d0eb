package domain

// MatchedMarket pairs one market per venue judged to be the same underlying
// event. Valid for a single scan cycle; recomputed on every catalog refresh.
type MatchedMarket struct {
	A          Market // polymarket side
	B          Market // opinion side
	Similarity float64
	// ManualOverride marks pairs taken from the override map rather than
	// title similarity.
	ManualOverride bool
}
