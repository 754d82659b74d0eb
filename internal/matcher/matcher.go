// Package matcher pairs semantically equivalent markets across the two
// venue catalogs by normalized title similarity.
package matcher

import (
	"sort"
	"strings"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// DefaultThreshold is the minimum similarity for an automatic pair.
const DefaultThreshold = 0.6

// Config tunes the matcher.
type Config struct {
	// Threshold is the minimum token-set similarity; <= 0 uses
	// DefaultThreshold.
	Threshold float64

	// MaxEndDateGap gates pairs whose end dates differ by more than this
	// when both venues expose one. Zero disables the gate.
	MaxEndDateGap float64 // hours

	// Overrides maps venue-A market IDs to venue-B market IDs. Overridden
	// pairs bypass similarity scoring entirely and always win.
	Overrides map[string]string
}

// Match pairs markets from catalog A against catalog B. It is deterministic
// for identical inputs and holds no state across calls: every (a,b)
// combination is scored, pairs are claimed greedily from the highest
// similarity down, and a market participates in at most one pair.
func Match(a, b []domain.Market, cfg Config) []domain.MatchedMarket {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	usedA := make(map[string]bool, len(a))
	usedB := make(map[string]bool, len(b))
	var matches []domain.MatchedMarket

	// Manual overrides claim their markets first.
	if len(cfg.Overrides) > 0 {
		byIDB := make(map[string]domain.Market, len(b))
		for _, mb := range b {
			byIDB[mb.ID] = mb
		}
		for _, ma := range a {
			targetID, ok := cfg.Overrides[ma.ID]
			if !ok {
				continue
			}
			mb, ok := byIDB[targetID]
			if !ok || usedB[mb.ID] {
				continue
			}
			usedA[ma.ID] = true
			usedB[mb.ID] = true
			matches = append(matches, domain.MatchedMarket{
				A:              ma,
				B:              mb,
				Similarity:     1.0,
				ManualOverride: true,
			})
		}
	}

	type candidate struct {
		ia, ib int
		score  float64
	}

	tokensA := make([]map[string]struct{}, len(a))
	for i, m := range a {
		tokensA[i] = tokenSet(m.Title)
	}
	tokensB := make([]map[string]struct{}, len(b))
	for i, m := range b {
		tokensB[i] = tokenSet(m.Title)
	}

	var candidates []candidate
	for i, ma := range a {
		if usedA[ma.ID] {
			continue
		}
		for j, mb := range b {
			if usedB[mb.ID] {
				continue
			}
			if cfg.MaxEndDateGap > 0 && ma.EndDate != nil && mb.EndDate != nil {
				gap := ma.EndDate.Sub(*mb.EndDate).Hours()
				if gap < 0 {
					gap = -gap
				}
				if gap > cfg.MaxEndDateGap {
					continue
				}
			}
			score := jaccard(tokensA[i], tokensB[j])
			if score >= threshold {
				candidates = append(candidates, candidate{ia: i, ib: j, score: score})
			}
		}
	}

	// Highest similarity claims first; index order breaks ties so the
	// result is stable for identical inputs.
	sort.Slice(candidates, func(x, y int) bool {
		if candidates[x].score != candidates[y].score {
			return candidates[x].score > candidates[y].score
		}
		if candidates[x].ia != candidates[y].ia {
			return candidates[x].ia < candidates[y].ia
		}
		return candidates[x].ib < candidates[y].ib
	})

	for _, c := range candidates {
		ma, mb := a[c.ia], b[c.ib]
		if usedA[ma.ID] || usedB[mb.ID] {
			continue
		}
		usedA[ma.ID] = true
		usedB[mb.ID] = true
		matches = append(matches, domain.MatchedMarket{
			A:          ma,
			B:          mb,
			Similarity: c.score,
		})
	}

	return matches
}

// Normalize lowercases a title, replaces punctuation and hyphens with spaces,
// and collapses runs of whitespace.
func Normalize(title string) string {
	var sb strings.Builder
	sb.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func tokenSet(title string) map[string]struct{} {
	words := strings.Fields(Normalize(title))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// jaccard is |A∩B| / |A∪B| over word tokens. Two empty titles score zero.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
