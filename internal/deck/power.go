// Package deck scores creature rosters for matchmaking balance.
package deck

import (
	"math"

	"github.com/creaturequest/pvp-server/internal/battle"
)

// Rarity tiers recognised by the scorer.
const (
	Common    = "Common"
	Rare      = "Rare"
	Epic      = "Epic"
	Legendary = "Legendary"
)

var rarityMultipliers = map[string]float64{
	Common:    1.0,
	Rare:      1.3,
	Epic:      1.6,
	Legendary: 2.0,
}

// RarityMultiplier returns the power multiplier for a rarity; unknown rarities count as Common.
func RarityMultiplier(rarity string) float64 {
	if m, ok := rarityMultipliers[rarity]; ok {
		return m
	}
	return 1.0
}

// CreaturePower scores a single creature.
func CreaturePower(c battle.Creature) int {
	form := 1 + 0.3*float64(c.Form)
	combo := 1 + 0.15*float64(c.CombinationLevel)
	return int(math.Floor(float64(c.Stats.Total()) * form * RarityMultiplier(c.Rarity) * combo))
}

// Power is the deck power of a roster: each creature is floored before summing.
func Power(creatures []battle.Creature) int {
	total := 0
	for _, c := range creatures {
		total += CreaturePower(c)
	}
	return total
}
