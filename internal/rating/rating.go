// Package rating implements the ELO rating model and rank tiers.
package rating

import "math"

const (
	// DefaultRating is assigned to a player on first access.
	DefaultRating = 1000
	// DefaultK is the standard K-factor.
	DefaultK = 32
	// ForfeitK is the reduced K-factor applied when a battle ends by forfeit.
	ForfeitK = 16
)

// Expected returns the expected score of a player rated a against a player rated b.
func Expected(a, b int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(b-a)/400.0))
}

// Change returns the rating gained by the winner. It is always at least 1.
func Change(winnerRating, loserRating, k int) int {
	expected := Expected(winnerRating, loserRating)
	delta := int(math.Round(float64(k) * (1 - expected)))
	if delta < 1 {
		delta = 1
	}
	return delta
}

// LoserChange returns the (negative) rating change of the loser.
// It is computed from the loser's own expected score, so it is not required to
// mirror Change exactly.
func LoserChange(winnerRating, loserRating, k int) int {
	expected := Expected(loserRating, winnerRating)
	delta := int(math.Round(float64(k) * expected))
	if delta < 1 {
		delta = 1
	}
	return -delta
}

// Deltas returns the winner and loser changes for a decisive result.
func Deltas(winnerRating, loserRating, k int) (winner, loser int) {
	return Change(winnerRating, loserRating, k), LoserChange(winnerRating, loserRating, k)
}

type tier struct {
	below int
	title string
	color string
}

// tiers are ordered by exclusive upper bound. The last entry has no bound.
var tiers = []tier{
	{800, "Bronze", "#CD7F32"},
	{1000, "Silver", "#C0C0C0"},
	{1200, "Gold", "#FFD700"},
	{1500, "Platinum", "#E5E4E2"},
	{1800, "Diamond", "#B9F2FF"},
	{2200, "Master", "#9966CC"},
}

var grandmaster = tier{title: "Grandmaster", color: "#FF4500"}

func tierFor(r int) tier {
	for _, t := range tiers {
		if r < t.below {
			return t
		}
	}
	return grandmaster
}

// RankTitle returns the rank label for a rating.
func RankTitle(r int) string {
	return tierFor(r).title
}

// RankColor returns the display colour for a rating's rank.
func RankColor(r int) string {
	return tierFor(r).color
}
