package battle

import "strings"

// ActionType is the wire name of an action.
type ActionType string

const (
	ActionDeploy   ActionType = "deploy"
	ActionAttack   ActionType = "attack"
	ActionDefend   ActionType = "defend"
	ActionUseTool  ActionType = "useTool"
	ActionUseSpell ActionType = "useSpell"
	ActionEndTurn  ActionType = "endTurn"
)

// Action is a player's request to change the battle. The set of variants is
// closed: Deploy, Attack, Defend, UseTool, UseSpell, EndTurn and Unknown.
type Action interface {
	Type() ActionType
	action()
}

// Deploy moves a creature from hand to field.
type Deploy struct {
	CreatureID string
}

// Attack strikes an opposing creature.
type Attack struct {
	AttackerID string
	TargetID   string
}

// Defend puts a creature in a defensive stance until its owner's next end of turn.
type Defend struct {
	CreatureID string
}

// UseTool consumes a tool on a creature of either side.
type UseTool struct {
	ToolID   string
	TargetID string
}

// UseSpell casts a spell through a creature on the caster's field.
type UseSpell struct {
	SpellID  string
	CasterID string
	TargetID string
}

// EndTurn passes control to the opponent.
type EndTurn struct{}

// Unknown carries an unrecognized action type so it can be rejected after the
// turn check.
type Unknown struct {
	Name string
}

func (Deploy) Type() ActionType { return ActionDeploy }
func (Attack) Type() ActionType { return ActionAttack }
func (Defend) Type() ActionType { return ActionDefend }
func (UseTool) Type() ActionType { return ActionUseTool }
func (UseSpell) Type() ActionType { return ActionUseSpell }
func (EndTurn) Type() ActionType { return ActionEndTurn }
func (u Unknown) Type() ActionType { return ActionType(u.Name) }

func (Deploy) action() {}
func (Attack) action() {}
func (Defend) action() {}
func (UseTool) action() {}
func (UseSpell) action() {}
func (EndTurn) action() {}
func (Unknown) action() {}

// ParseAction builds an action from a decoded client payload such as
// {"type": "attack", "attackerId": "c1", "targetId": "c9"}.
// It never fails: missing ids are left empty and rejected by the machine, and
// unrecognized types become Unknown.
func ParseAction(fields map[string]any) Action {
	str := func(key string) string {
		v, _ := fields[key].(string)
		return strings.TrimSpace(v)
	}

	switch ActionType(str("type")) {
	case ActionDeploy:
		return Deploy{CreatureID: str("creatureId")}
	case ActionAttack:
		return Attack{AttackerID: str("attackerId"), TargetID: str("targetId")}
	case ActionDefend:
		return Defend{CreatureID: str("creatureId")}
	case ActionUseTool:
		return UseTool{ToolID: str("toolId"), TargetID: str("targetId")}
	case ActionUseSpell:
		return UseSpell{SpellID: str("spellId"), CasterID: str("casterId"), TargetID: str("targetId")}
	case ActionEndTurn:
		return EndTurn{}
	default:
		return Unknown{Name: str("type")}
	}
}
