package battle

// EventKind names what a successful transition did. It is carried in action
// results and in notifications pushed to clients.
type EventKind string

const (
	EventBattleStarted   EventKind = "BATTLE_STARTED"
	EventDeployed        EventKind = "DEPLOYED"
	EventAttacked        EventKind = "ATTACKED"
	EventCreatureDefeat  EventKind = "CREATURE_DEFEATED"
	EventDefending       EventKind = "DEFENDING"
	EventToolUsed        EventKind = "TOOL_USED"
	EventSpellCast       EventKind = "SPELL_CAST"
	EventTurnEnded       EventKind = "TURN_ENDED"
	EventBattleCompleted EventKind = "BATTLE_COMPLETED"
	EventForfeited       EventKind = "FORFEITED"
)

// Result is the structured summary of one successful action, enough for a
// client to render the event without diffing states.
type Result struct {
	Event          EventKind  `json:"event"`
	Action         ActionType `json:"action"`
	PlayerID       string     `json:"playerId"`
	EnergySpent    int        `json:"energySpent"`
	Damage         int        `json:"damage,omitempty"`
	AOEDamage      int        `json:"aoeDamage,omitempty"`
	Healing        int        `json:"healing,omitempty"`
	AttackBoost    int        `json:"attackBoost,omitempty"`
	DefenseBoost   int        `json:"defenseBoost,omitempty"`
	SourceID       string     `json:"sourceId,omitempty"`
	TargetID       string     `json:"targetId,omitempty"`
	TargetDefeated bool       `json:"targetDefeated"`
	Defeated       []string   `json:"defeated,omitempty"`
	DrawnCardID    string     `json:"drawnCardId,omitempty"`
	Turn           int        `json:"turn"`
	ActivePlayer   string     `json:"activePlayer"`
}
