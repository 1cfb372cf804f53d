// Package matchmaking pairs queued players by rating and deck power using an
// expanding search window.
package matchmaking

import (
	"time"
)

// Policy controls the search window.
type Policy struct {
	InitialRatingRange int
	MaxRatingRange     int
	RatingStep         int
	InitialPowerRange  int
	PowerStep          int
	// MaxWait excludes entries that have waited this long from being matched.
	MaxWait time.Duration
}

// DefaultPolicy returns the standard search window.
func DefaultPolicy() Policy {
	return Policy{
		InitialRatingRange: 100,
		MaxRatingRange:     500,
		RatingStep:         50,
		InitialPowerRange:  200,
		PowerStep:          100,
		MaxWait:            5 * time.Minute,
	}
}

// Request describes the player looking for an opponent.
type Request struct {
	PlayerID  string
	Rating    int
	DeckPower int
}

// Candidate is a queued player that may be matched.
type Candidate struct {
	PlayerID   string
	Rating     int
	DeckPower  int
	EnqueuedAt time.Time
}

// Matcher runs the expanding-window search.
type Matcher struct {
	policy Policy
}

// NewMatcher creates a matcher with the given policy.
func NewMatcher(policy Policy) *Matcher {
	return &Matcher{policy: policy}
}

// FindMatch returns the best candidate for req, widening the tolerances until
// one is found or the rating range passes its maximum.
func (m *Matcher) FindMatch(req Request, pool []Candidate, now time.Time) (Candidate, bool) {
	p := m.policy
	ratingRange, powerRange := p.InitialRatingRange, p.InitialPowerRange
	for ratingRange <= p.MaxRatingRange {
		if c, ok := m.best(req, pool, now, ratingRange, powerRange); ok {
			return c, true
		}
		if p.RatingStep <= 0 {
			break
		}
		ratingRange += p.RatingStep
		powerRange += p.PowerStep
	}
	return Candidate{}, false
}

func (m *Matcher) best(req Request, pool []Candidate, now time.Time, ratingRange, powerRange int) (Candidate, bool) {
	var (
		best      Candidate
		bestScore float64
		found     bool
	)
	for _, c := range pool {
		if c.PlayerID == req.PlayerID {
			continue
		}
		ratingDiff := abs(c.Rating - req.Rating)
		powerDiff := abs(c.DeckPower - req.DeckPower)
		if ratingDiff > ratingRange || powerDiff > powerRange {
			continue
		}
		wait := now.Sub(c.EnqueuedAt)
		if m.policy.MaxWait > 0 && wait >= m.policy.MaxWait {
			continue
		}
		score := Score(ratingDiff, powerDiff, wait)
		if !found || score < bestScore || (score == bestScore && earlier(c, best)) {
			best, bestScore, found = c, score, true
		}
	}
	return best, found
}

// Score ranks a candidate; lower is better and longer waits are preferred.
func Score(ratingDiff, powerDiff int, wait time.Duration) float64 {
	return float64(ratingDiff) + 0.5*float64(powerDiff) - 0.1*wait.Seconds()
}

func earlier(a, b Candidate) bool {
	if !a.EnqueuedAt.Equal(b.EnqueuedAt) {
		return a.EnqueuedAt.Before(b.EnqueuedAt)
	}
	return a.PlayerID < b.PlayerID
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
