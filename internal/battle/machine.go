package battle

import (
	"fmt"
	"time"
)

// Machine applies actions to one battle. It is a short-lived projection: the
// caller decodes a battle, builds a machine, applies one action and persists
// the result.
type Machine struct {
	battle *Battle
	now    time.Time
}

// NewMachine wraps b. Log entries and LastActionAt are stamped with now.
func NewMachine(b *Battle, now time.Time) *Machine {
	return &Machine{battle: b, now: now}
}

// Battle returns the state the machine operates on.
func (m *Machine) Battle() *Battle {
	return m.battle
}

// ProcessAction validates and applies one action for the acting player.
// A rejected action leaves the battle untouched.
func (m *Machine) ProcessAction(playerID string, action Action) (Result, error) {
	b := m.battle
	if b.Status != StatusActive {
		return Result{}, ErrBattleOver
	}
	if playerID != b.ActivePlayer {
		return Result{}, ErrNotYourTurn
	}
	me, _ := b.Player(playerID)
	opp, _ := b.Opponent(playerID)
	if me == nil || opp == nil {
		return Result{}, ErrNotParticipant
	}

	var (
		res Result
		err error
	)
	switch a := action.(type) {
	case Deploy:
		res, err = m.deploy(me, a)
	case Attack:
		res, err = m.attack(me, opp, a)
	case Defend:
		res, err = m.defend(me, a)
	case UseTool:
		res, err = m.useTool(me, opp, a)
	case UseSpell:
		res, err = m.useSpell(me, opp, a)
	case EndTurn:
		res = m.endTurn(me, opp)
	case Unknown:
		return Result{}, unknownAction(a.Name)
	default:
		return Result{}, unknownAction(fmt.Sprintf("%T", action))
	}
	if err != nil {
		return Result{}, err
	}

	b.LastActionAt = m.now
	res.Action = action.Type()
	res.PlayerID = playerID
	res.Turn = b.Turn
	res.ActivePlayer = b.ActivePlayer
	return res, nil
}

func (m *Machine) deploy(me *PlayerState, a Deploy) (Result, error) {
	if a.CreatureID == "" {
		return Result{}, invalid("No creature ID provided")
	}
	idx := indexOf(me.Hand, a.CreatureID)
	if idx < 0 {
		return Result{}, violation("Creature not in hand")
	}
	if len(me.Field) >= MaxFieldSize {
		return Result{}, violation("Field is full")
	}
	c := me.Hand[idx]
	cost := c.DeployCost()
	if me.Energy < cost {
		return Result{}, violation("Not enough energy. Need %d", cost)
	}

	me.Hand = append(me.Hand[:idx], me.Hand[idx+1:]...)
	me.Field = append(me.Field, c)
	me.Energy -= cost
	m.log("%s deployed %s (-%d energy)", me.Name, c.label(), cost)

	return Result{
		Event:       EventDeployed,
		EnergySpent: cost,
		SourceID:    c.ID,
	}, nil
}

func (m *Machine) attack(me, opp *PlayerState, a Attack) (Result, error) {
	if a.AttackerID == "" || a.TargetID == "" {
		return Result{}, invalid("Attacker and target are required")
	}
	ai := indexOf(me.Field, a.AttackerID)
	if ai < 0 {
		return Result{}, violation("Attacker not on field")
	}
	ti := indexOf(opp.Field, a.TargetID)
	if ti < 0 {
		return Result{}, violation("Target not on field")
	}
	if me.Energy < AttackCost {
		return Result{}, violation("Not enough energy. Need %d", AttackCost)
	}

	attacker, target := me.Field[ai], opp.Field[ti]
	damage := Damage(attacker, target)
	me.Energy -= AttackCost
	m.hit(me, opp, target, damage)

	res := Result{
		Event:       EventAttacked,
		EnergySpent: AttackCost,
		Damage:      damage,
		SourceID:    attacker.ID,
		TargetID:    target.ID,
	}
	if target.CurrentHealth <= 0 {
		opp.Field = append(opp.Field[:ti], opp.Field[ti+1:]...)
		res.Event = EventCreatureDefeat
		res.TargetDefeated = true
		res.Defeated = []string{target.ID}
		m.log("%s's %s defeated %s!", me.Name, attacker.label(), target.label())
	} else {
		m.log("%s's %s dealt %d damage to %s", me.Name, attacker.label(), damage, target.label())
	}
	return res, nil
}

// Damage is the damage attacker deals to target in a plain attack.
func Damage(attacker, target *Creature) int {
	damage := max(1, attacker.attackPower()-target.defensePower()/2)
	return mitigate(target, damage)
}

func mitigate(target *Creature, damage int) int {
	if target.IsDefending {
		damage = int(float64(damage) * (1 - target.DefenseBonus))
	}
	return max(1, damage)
}

func (m *Machine) defend(me *PlayerState, a Defend) (Result, error) {
	if a.CreatureID == "" {
		return Result{}, invalid("No creature ID provided")
	}
	idx := indexOf(me.Field, a.CreatureID)
	if idx < 0 {
		return Result{}, violation("Creature not on field")
	}
	if me.Energy < DefendCost {
		return Result{}, violation("Not enough energy. Need %d", DefendCost)
	}

	c := me.Field[idx]
	c.IsDefending = true
	c.DefenseBonus = DefendBonus
	me.Energy -= DefendCost
	m.log("%s's %s is defending", me.Name, c.label())

	return Result{
		Event:       EventDefending,
		EnergySpent: DefendCost,
		SourceID:    c.ID,
	}, nil
}

func (m *Machine) useTool(me, opp *PlayerState, a UseTool) (Result, error) {
	if a.ToolID == "" || a.TargetID == "" {
		return Result{}, invalid("Tool and target are required")
	}
	ti := -1
	for i, t := range me.Tools {
		if t.ID == a.ToolID {
			ti = i
			break
		}
	}
	if ti < 0 {
		return Result{}, violation("Tool not available")
	}
	target, err := findTarget(a.TargetID, me, opp)
	if err != nil {
		return Result{}, err
	}

	tool := me.Tools[ti]
	res := Result{Event: EventToolUsed, SourceID: tool.ID, TargetID: target.ID}
	switch tool.Effect {
	case ToolShield:
		target.BattleStats.PhysicalDefense += ShieldBoost
		target.BattleStats.MagicalDefense += ShieldBoost
		res.DefenseBoost = ShieldBoost
	case ToolSurge:
		target.BattleStats.PhysicalAttack += SurgeBoost
		target.BattleStats.MagicalAttack += SurgeBoost
		res.AttackBoost = SurgeBoost
	case ToolStaminaHeal:
		heal := min(MaxToolHeal, target.BattleStats.MaxHealth-target.CurrentHealth)
		target.CurrentHealth += heal
		res.Healing = heal
	}
	me.Tools = append(me.Tools[:ti], me.Tools[ti+1:]...)
	m.log("%s used %s on %s", me.Name, tool.Name, target.label())
	return res, nil
}

func (m *Machine) useSpell(me, opp *PlayerState, a UseSpell) (Result, error) {
	if a.SpellID == "" || a.CasterID == "" {
		return Result{}, invalid("Spell and caster are required")
	}
	si := -1
	for i, s := range me.Spells {
		if s.ID == a.SpellID {
			si = i
			break
		}
	}
	if si < 0 {
		return Result{}, violation("Spell not available")
	}
	ci := indexOf(me.Field, a.CasterID)
	if ci < 0 {
		return Result{}, violation("Caster not on field")
	}
	if me.Energy < SpellCost {
		return Result{}, violation("Not enough energy. Need %d", SpellCost)
	}
	spell, caster := me.Spells[si], me.Field[ci]

	var target *Creature
	if spell.Effect == SpellSurge {
		if a.TargetID == "" {
			return Result{}, invalid("Spell requires a target")
		}
		var err error
		if target, err = findTarget(a.TargetID, me, opp); err != nil {
			return Result{}, err
		}
	}

	me.Spells = append(me.Spells[:si], me.Spells[si+1:]...)
	me.Energy -= SpellCost
	res := Result{Event: EventSpellCast, EnergySpent: SpellCost, SourceID: caster.ID}

	switch spell.Effect {
	case SpellSurge:
		damage := mitigate(target, SurgeBase+2*caster.Stats.Magic)
		owner := opp
		if indexOf(me.Field, target.ID) >= 0 {
			owner = me
		}
		m.hit(me, owner, target, damage)
		res.Damage = damage
		res.TargetID = target.ID
		res.TargetDefeated = target.CurrentHealth <= 0
		m.log("%s's %s cast %s dealing %d damage to %s", me.Name, caster.label(), spell.Name, damage, target.label())
	case SpellAOE:
		for _, c := range opp.Field {
			m.hit(me, opp, c, AOEDamage)
		}
		res.AOEDamage = AOEDamage
		m.log("%s's %s cast %s dealing %d damage to all enemies", me.Name, caster.label(), spell.Name, AOEDamage)
	default:
		m.log("%s's %s cast %s", me.Name, caster.label(), spell.Name)
	}

	res.Defeated = append(m.removeDefeated(me), m.removeDefeated(opp)...)
	return res, nil
}

func (m *Machine) endTurn(me, opp *PlayerState) Result {
	b := m.battle
	for _, c := range me.Field {
		c.IsDefending = false
		c.DefenseBonus = 0
	}
	tickEffects(me)
	tickEffects(opp)

	b.ActivePlayer = opp.ID
	if opp.ID == b.Player1.ID {
		b.Turn++
	}
	b.Player1.gainEnergy(EnergyRegen)
	b.Player2.gainEnergy(EnergyRegen)

	res := Result{Event: EventTurnEnded}
	if card := opp.draw(); card != nil {
		res.DrawnCardID = card.ID
	}
	m.log("Turn %d - %s's turn", b.Turn, opp.Name)
	return res
}

// CheckEnd reports whether the battle is over and who won. An empty winner
// with ended set means a draw.
func (m *Machine) CheckEnd() (bool, string) {
	b := m.battle
	p1, p2 := b.Player1.Exhausted(), b.Player2.Exhausted()
	switch {
	case p1 && p2:
		return true, ""
	case p1:
		return true, b.Player2.ID
	case p2:
		return true, b.Player1.ID
	}
	return false, ""
}

// Complete marks the battle finished with the given winner (empty for a draw).
func (m *Machine) Complete(winnerID string) Result {
	b := m.battle
	b.Status = StatusCompleted
	b.WinnerID = winnerID
	b.LastActionAt = m.now
	if p, ok := b.Player(winnerID); ok {
		m.log("%s wins!", p.Name)
	} else {
		m.log("Battle ended in a draw")
	}
	return Result{
		Event:        EventBattleCompleted,
		Turn:         b.Turn,
		ActivePlayer: b.ActivePlayer,
	}
}

// Forfeit ends an active battle with the opponent of playerID as winner.
func (m *Machine) Forfeit(playerID string) (Result, error) {
	b := m.battle
	if b.Status != StatusActive {
		return Result{}, ErrBattleOver
	}
	me, ok := b.Player(playerID)
	if !ok {
		return Result{}, ErrNotParticipant
	}
	opp, _ := b.Opponent(playerID)

	b.ForfeitedBy = playerID
	m.log("%s forfeited", me.Name)
	res := m.Complete(opp.ID)
	res.Event = EventForfeited
	res.PlayerID = playerID
	return res, nil
}

func (m *Machine) hit(attacker, owner *PlayerState, target *Creature, damage int) {
	target.CurrentHealth = max(0, target.CurrentHealth-damage)
	attacker.DamageDealt += damage
	owner.DamageTaken += damage
}

func (m *Machine) removeDefeated(p *PlayerState) []string {
	var defeated []string
	alive := p.Field[:0]
	for _, c := range p.Field {
		if c.CurrentHealth <= 0 {
			defeated = append(defeated, c.ID)
			m.log("%s was defeated!", c.label())
			continue
		}
		alive = append(alive, c)
	}
	p.Field = alive
	return defeated
}

func (m *Machine) log(format string, args ...any) {
	m.battle.addLog(m.now, fmt.Sprintf(format, args...))
}

func tickEffects(p *PlayerState) {
	for _, c := range p.Field {
		if len(c.ActiveEffects) == 0 {
			continue
		}
		kept := c.ActiveEffects[:0]
		for _, e := range c.ActiveEffects {
			e.RemainingDuration--
			if e.RemainingDuration > 0 {
				kept = append(kept, e)
			}
		}
		c.ActiveEffects = kept
	}
}

func indexOf(cs []*Creature, id string) int {
	for i, c := range cs {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// findTarget resolves a creature on either field. An id present on both
// fields cannot be resolved to one side and is rejected.
func findTarget(id string, me, opp *PlayerState) (*Creature, error) {
	mi, oi := indexOf(me.Field, id), indexOf(opp.Field, id)
	switch {
	case mi >= 0 && oi >= 0:
		return nil, violation("Target is ambiguous")
	case mi >= 0:
		return me.Field[mi], nil
	case oi >= 0:
		return opp.Field[oi], nil
	}
	return nil, violation("Target not found")
}
