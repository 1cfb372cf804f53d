package battle

import (
	"fmt"
	"time"
)

// Limits and costs of the battle rules.
const (
	MaxEnergy      = 25
	StartingEnergy = 10
	EnergyRegen    = 3
	MaxHandSize    = 5
	MaxFieldSize   = 4
	StartingHand   = 3

	AttackCost = 2
	DefendCost = 1
	SpellCost  = 4

	DefendBonus = 0.5

	ShieldBoost = 10
	SurgeBoost  = 15
	MaxToolHeal = 30
	SurgeBase   = 20
	AOEDamage   = 15
	deployBase  = 5
)

// Status is the lifecycle state of a battle.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Stats are a creature's base statistics.
type Stats struct {
	Energy   int `json:"energy"`
	Strength int `json:"strength"`
	Magic    int `json:"magic"`
	Stamina  int `json:"stamina"`
	Speed    int `json:"speed"`
}

// Total sums all base statistics.
func (s Stats) Total() int {
	return s.Energy + s.Strength + s.Magic + s.Stamina + s.Speed
}

func (s Stats) nonNegative() bool {
	return min(s.Energy, s.Strength, s.Magic, s.Stamina, s.Speed) >= 0
}

// BattleStats are the derived combat statistics of a creature.
type BattleStats struct {
	PhysicalAttack  int `json:"physicalAttack"`
	MagicalAttack   int `json:"magicalAttack"`
	PhysicalDefense int `json:"physicalDefense"`
	MagicalDefense  int `json:"magicalDefense"`
	MaxHealth       int `json:"maxHealth"`
}

func (s BattleStats) nonNegative() bool {
	return min(s.PhysicalAttack, s.MagicalAttack, s.PhysicalDefense, s.MagicalDefense, s.MaxHealth) >= 0
}

// EffectKind identifies a lingering effect on a creature.
type EffectKind string

// Effect is a lingering effect that ticks down once per end of turn.
type Effect struct {
	Kind              EffectKind `json:"kind"`
	Magnitude         int        `json:"magnitude"`
	RemainingDuration int        `json:"remainingDuration"`
}

// Creature is a creature instance carried in a deck, hand or field.
type Creature struct {
	ID               string      `json:"id"`
	SpeciesID        string      `json:"speciesId,omitempty"`
	SpeciesName      string      `json:"speciesName"`
	Form             int         `json:"form"`
	Rarity           string      `json:"rarity,omitempty"`
	CombinationLevel int         `json:"combinationLevel,omitempty"`
	Stats            Stats       `json:"stats"`
	BattleStats      BattleStats `json:"battleStats"`
	CurrentHealth    int         `json:"currentHealth"`
	IsDefending      bool        `json:"isDefending"`
	DefenseBonus     float64     `json:"defenseBonus,omitempty"`
	ActiveEffects    []Effect    `json:"activeEffects,omitempty"`
}

// DeployCost is the energy needed to put the creature on the field.
func (c *Creature) DeployCost() int {
	return deployBase + c.Form
}

func (c *Creature) attackPower() int {
	return max(c.BattleStats.PhysicalAttack, c.BattleStats.MagicalAttack)
}

func (c *Creature) defensePower() int {
	return max(c.BattleStats.PhysicalDefense, c.BattleStats.MagicalDefense)
}

func (c *Creature) label() string {
	if c.SpeciesName != "" {
		return c.SpeciesName
	}
	return c.ID
}

// Validate checks the creature record supplied by the roster.
func (c *Creature) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("creature id is required")
	}
	if c.Form < 0 || c.Form > 3 {
		return fmt.Errorf("creature %s: form %d out of range", c.ID, c.Form)
	}
	if c.CombinationLevel < 0 {
		return fmt.Errorf("creature %s: combination level must not be negative", c.ID)
	}
	if !c.Stats.nonNegative() {
		return fmt.Errorf("creature %s: stats must not be negative", c.ID)
	}
	if !c.BattleStats.nonNegative() {
		return fmt.Errorf("creature %s: battle stats must not be negative", c.ID)
	}
	if c.BattleStats.MaxHealth <= 0 {
		return fmt.Errorf("creature %s: max health must be positive", c.ID)
	}
	if c.CurrentHealth < 0 || c.CurrentHealth > c.BattleStats.MaxHealth {
		return fmt.Errorf("creature %s: current health out of range", c.ID)
	}
	return nil
}

// ToolEffect enumerates what a tool does when used.
type ToolEffect string

const (
	ToolNone        ToolEffect = "none"
	ToolShield      ToolEffect = "shield"
	ToolSurge       ToolEffect = "surge"
	ToolStaminaHeal ToolEffect = "stamina_heal"
)

// SpellEffect enumerates what a spell does when cast.
type SpellEffect string

const (
	SpellNone  SpellEffect = "none"
	SpellSurge SpellEffect = "surge"
	SpellAOE   SpellEffect = "aoe_damage"
)

// ParseToolEffect classifies a roster tool by its effect and type strings.
// The effect name wins over the tool type.
func ParseToolEffect(toolType, toolEffect string) ToolEffect {
	switch toolEffect {
	case "Shield":
		return ToolShield
	case "Surge":
		return ToolSurge
	}
	if toolType == "stamina" {
		return ToolStaminaHeal
	}
	return ToolNone
}

// ParseSpellEffect classifies a roster spell by its type and effect strings.
func ParseSpellEffect(spellType, spellEffect string) SpellEffect {
	if spellEffect == "Surge" {
		return SpellSurge
	}
	if spellType == "energy" {
		return SpellAOE
	}
	return SpellNone
}

// Tool is a single-use item owned by one player.
type Tool struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Effect ToolEffect `json:"effect"`
}

// Spell is a single-use spell owned by one player.
type Spell struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Effect SpellEffect `json:"effect"`
}

// PlayerState is one side of a battle.
type PlayerState struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Energy      int         `json:"energy"`
	Hand        []*Creature `json:"hand"`
	Field       []*Creature `json:"field"`
	Deck        []*Creature `json:"deck"`
	Tools       []*Tool     `json:"tools"`
	Spells      []*Spell    `json:"spells"`
	DamageDealt int         `json:"damageDealt"`
	DamageTaken int         `json:"damageTaken"`
}

// Exhausted reports whether the player has no creature left anywhere.
func (p *PlayerState) Exhausted() bool {
	return len(p.Field) == 0 && len(p.Hand) == 0 && len(p.Deck) == 0
}

func (p *PlayerState) gainEnergy(n int) {
	p.Energy = min(MaxEnergy, max(0, p.Energy+n))
}

func (p *PlayerState) draw() *Creature {
	if len(p.Deck) == 0 || len(p.Hand) >= MaxHandSize {
		return nil
	}
	card := p.Deck[0]
	p.Deck = p.Deck[1:]
	p.Hand = append(p.Hand, card)
	return card
}

// LogEntry is one line of the battle log.
type LogEntry struct {
	ID      int       `json:"id"`
	Turn    int       `json:"turn"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Battle is the full authoritative state of one battle.
type Battle struct {
	ID           string       `json:"id"`
	Player1      *PlayerState `json:"player1"`
	Player2      *PlayerState `json:"player2"`
	Turn         int          `json:"turn"`
	ActivePlayer string       `json:"activePlayer"`
	Log          []LogEntry   `json:"battleLog"`
	Status       Status       `json:"status"`
	WinnerID     string       `json:"winnerId,omitempty"`
	ForfeitedBy  string       `json:"forfeitedBy,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	LastActionAt time.Time    `json:"lastActionAt"`
}

// Loadout is what a player brings into a battle.
type Loadout struct {
	ID        string
	Name      string
	Creatures []Creature
	Tools     []Tool
	Spells    []Spell
}

// Validate checks every creature and rejects ids repeated within the loadout.
func (l Loadout) Validate() error {
	seen := make(map[string]bool, len(l.Creatures))
	for i := range l.Creatures {
		c := &l.Creatures[i]
		if err := c.Validate(); err != nil {
			return err
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate creature id %s", c.ID)
		}
		seen[c.ID] = true
	}
	tools := make(map[string]bool, len(l.Tools))
	for _, t := range l.Tools {
		if t.ID == "" || tools[t.ID] {
			return fmt.Errorf("tool id %q is missing or repeated", t.ID)
		}
		tools[t.ID] = true
	}
	spells := make(map[string]bool, len(l.Spells))
	for _, s := range l.Spells {
		if s.ID == "" || spells[s.ID] {
			return fmt.Errorf("spell id %q is missing or repeated", s.ID)
		}
		spells[s.ID] = true
	}
	return nil
}

// SharesCreature reports whether both loadouts carry a creature with the same id.
func (l Loadout) SharesCreature(other Loadout) bool {
	ids := make(map[string]bool, len(l.Creatures))
	for _, c := range l.Creatures {
		ids[c.ID] = true
	}
	for _, c := range other.Creatures {
		if ids[c.ID] {
			return true
		}
	}
	return false
}

// NewBattle builds the initial state of a battle. Player 1 acts first and each
// side starts with three cards drawn from the front of its deck. Creature ids
// are expected to be unique across both loadouts; targets whose id is on both
// fields are rejected by the machine.
func NewBattle(id string, p1, p2 Loadout, now time.Time) *Battle {
	b := &Battle{
		ID:           id,
		Player1:      newPlayerState(p1),
		Player2:      newPlayerState(p2),
		Turn:         1,
		ActivePlayer: p1.ID,
		Log:          make([]LogEntry, 0, 32),
		Status:       StatusActive,
		CreatedAt:    now,
		LastActionAt: now,
	}
	for i := 0; i < StartingHand; i++ {
		b.Player1.draw()
		b.Player2.draw()
	}
	b.addLog(now, fmt.Sprintf("Battle started: %s vs %s", b.Player1.Name, b.Player2.Name))
	return b
}

func newPlayerState(l Loadout) *PlayerState {
	name := l.Name
	if name == "" {
		name = "Player " + l.ID
	}
	p := &PlayerState{
		ID:     l.ID,
		Name:   name,
		Energy: StartingEnergy,
		Hand:   make([]*Creature, 0, MaxHandSize),
		Field:  make([]*Creature, 0, MaxFieldSize),
		Deck:   make([]*Creature, 0, len(l.Creatures)),
		Tools:  make([]*Tool, 0, len(l.Tools)),
		Spells: make([]*Spell, 0, len(l.Spells)),
	}
	for i := range l.Creatures {
		c := l.Creatures[i]
		if c.CurrentHealth == 0 {
			c.CurrentHealth = c.BattleStats.MaxHealth
		}
		c.ActiveEffects = append([]Effect(nil), c.ActiveEffects...)
		p.Deck = append(p.Deck, &c)
	}
	for i := range l.Tools {
		t := l.Tools[i]
		p.Tools = append(p.Tools, &t)
	}
	for i := range l.Spells {
		s := l.Spells[i]
		p.Spells = append(p.Spells, &s)
	}
	return p
}

// Player returns the state of the given participant.
func (b *Battle) Player(id string) (*PlayerState, bool) {
	switch id {
	case b.Player1.ID:
		return b.Player1, true
	case b.Player2.ID:
		return b.Player2, true
	}
	return nil, false
}

// Opponent returns the other participant.
func (b *Battle) Opponent(id string) (*PlayerState, bool) {
	switch id {
	case b.Player1.ID:
		return b.Player2, true
	case b.Player2.ID:
		return b.Player1, true
	}
	return nil, false
}

// Involves reports whether the player is one of the two participants.
func (b *Battle) Involves(playerID string) bool {
	_, ok := b.Player(playerID)
	return ok
}

// IsDraw reports whether a completed battle has no winner.
func (b *Battle) IsDraw() bool {
	return b.Status == StatusCompleted && b.WinnerID == ""
}

func (b *Battle) addLog(at time.Time, message string) {
	b.Log = append(b.Log, LogEntry{
		ID:      len(b.Log) + 1,
		Turn:    b.Turn,
		Message: message,
		At:      at,
	})
}
