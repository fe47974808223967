// Package combatant defines the combatant reference model shared by the
// turn queue, command gateway, and turn orchestrator. The combat core holds
// references to combatants; their lifetime is owned by the scenario/entity
// layer that created them.
package combatant

// Faction is the allegiance grouping used for turn-order end-condition checks.
type Faction string

const (
	FactionPlayer  Faction = "player"
	FactionAlly    Faction = "ally"
	FactionHostile Faction = "hostile"
	FactionNeutral Faction = "neutral"
)

// IsPlayerAligned reports whether the faction fights on the player's side.
//
// Postcondition: Returns true iff f is FactionPlayer or FactionAlly.
func (f Faction) IsPlayerAligned() bool {
	return f == FactionPlayer || f == FactionAlly
}

// IsHostile reports whether the faction opposes the player.
func (f Faction) IsHostile() bool { return f == FactionHostile }

// LifeState is the combatant's survival condition.
type LifeState int

const (
	Alive LifeState = iota
	// Downed combatants are at 0 HP and rolling death saves each turn.
	Downed
	// Unconscious combatants have stabilised (three death-save successes)
	// but remain down until woken.
	Unconscious
	Dead
)

// String returns the human-readable life state label.
func (s LifeState) String() string {
	switch s {
	case Alive:
		return "alive"
	case Downed:
		return "downed"
	case Unconscious:
		return "unconscious"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// Position is a world-space coordinate triple.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// ActionBudget is the per-turn allowance of action, bonus-action, reaction,
// and movement resources.
type ActionBudget struct {
	Actions      int
	BonusActions int
	Reactions    int
	// MovementRemaining is in world distance units; clamped at >= 0.
	MovementRemaining float64
}

// Combatant is one participant in combat.
//
// Invariant: ID is stable for the combatant's whole lifetime.
type Combatant struct {
	ID   string
	Name string

	Faction Faction
	// ControlledByPlayer selects the human decision path; false routes the
	// turn to the AI executor.
	ControlledByPlayer bool

	Initiative int
	// InitiativeTiebreaker breaks initiative ties before the final ID-order
	// tiebreak.
	InitiativeTiebreaker int

	LifeState LifeState
	// Active combatants participate in the turn order; inactive ones are
	// skipped when the order is recomputed.
	Active bool

	HP        int
	MaxHP     int
	BaseSpeed float64
	Prone     bool

	Budget ActionBudget

	DeathSaveSuccesses int
	DeathSaveFailures  int

	Pos       Position
	Abilities []string
	Tags      []string
}

// IsConscious reports whether the combatant can act on their turn.
func (c *Combatant) IsConscious() bool {
	return c.LifeState == Alive
}

// IsDown reports whether the combatant is downed or unconscious.
func (c *Combatant) IsDown() bool {
	return c.LifeState == Downed || c.LifeState == Unconscious
}

// ApplyDamage reduces HP by amount, flooring at zero.
//
// Precondition: amount >= 0.
// Postcondition: HP >= 0.
func (c *Combatant) ApplyDamage(amount int) {
	c.HP -= amount
	if c.HP < 0 {
		c.HP = 0
	}
}

// Heal raises HP by amount, capped at MaxHP.
//
// Precondition: amount >= 0.
// Postcondition: HP <= MaxHP.
func (c *Combatant) Heal(amount int) {
	c.HP += amount
	if c.HP > c.MaxHP {
		c.HP = c.MaxHP
	}
}

// ResetDeathSaves clears both death-save counters.
//
// Postcondition: DeathSaveSuccesses == 0 && DeathSaveFailures == 0.
func (c *Combatant) ResetDeathSaves() {
	c.DeathSaveSuccesses = 0
	c.DeathSaveFailures = 0
}

// ResetBudgetForTurn restores action/bonus/reaction charges and sets the
// movement allowance for the new turn.
//
// Precondition: actions >= 0, bonusActions >= 0, movement >= 0.
func (c *Combatant) ResetBudgetForTurn(actions, bonusActions int, movement float64) {
	c.Budget = ActionBudget{
		Actions:           actions,
		BonusActions:      bonusActions,
		Reactions:         1,
		MovementRemaining: movement,
	}
}

// SpendMovement deducts cost from the movement allowance, flooring at zero.
//
// Postcondition: Budget.MovementRemaining >= 0.
func (c *Combatant) SpendMovement(cost float64) {
	c.Budget.MovementRemaining -= cost
	if c.Budget.MovementRemaining < 0 {
		c.Budget.MovementRemaining = 0
	}
}

// StateHash folds the combatant's identity and mutable combat state into a
// base-31 polynomial hash for cross-run determinism comparison.
func (c *Combatant) StateHash() uint64 {
	h := uint64(17)
	for _, r := range c.ID {
		h = h*31 + uint64(r)
	}
	h = h*31 + uint64(c.LifeState)
	h = h*31 + uint64(int64(c.HP)&0xffffffff)
	h = h*31 + uint64(int64(c.Initiative)&0xffffffff)
	h = h*31 + uint64(int64(c.InitiativeTiebreaker)&0xffffffff)
	if c.Active {
		h = h*31 + 1
	}
	return h
}
