package status

import (
	"fmt"
	"sort"
)

// Active tracks one applied status on a combatant.
type Active struct {
	Def               *Def
	Stacks            int
	DurationRemaining int // -1 = permanent
}

// ActiveSet tracks all statuses currently applied to one combatant.
// It is not safe for concurrent use; the caller must serialise access.
type ActiveSet struct {
	active map[string]*Active
}

// NewActiveSet creates an empty ActiveSet.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{active: make(map[string]*Active)}
}

// Apply adds or refreshes a status. Re-applying a stackable status adds
// stacks up to MaxStacks; an unstackable status (MaxStacks == 0) stays at
// one stack. DurationRemaining is extended, never shortened, on re-apply.
//
// Precondition: def must not be nil.
// Postcondition: Has(def.ID) is true.
func (s *ActiveSet) Apply(def *Def, stacks, duration int) error {
	if def == nil {
		return fmt.Errorf("status: Apply requires a definition")
	}

	if existing, ok := s.active[def.ID]; ok {
		if duration > existing.DurationRemaining {
			existing.DurationRemaining = duration
		}
		if def.MaxStacks > 0 {
			existing.Stacks = min(existing.Stacks+stacks, def.MaxStacks)
		}
		return nil
	}

	effective := stacks
	if def.MaxStacks == 0 {
		effective = 1
	} else if effective > def.MaxStacks {
		effective = def.MaxStacks
	}
	s.active[def.ID] = &Active{
		Def:               def,
		Stacks:            effective,
		DurationRemaining: duration,
	}
	return nil
}

// Remove deletes the status with the given ID; a no-op if absent.
// Postcondition: Has(id) is false.
func (s *ActiveSet) Remove(id string) {
	delete(s.active, id)
}

// Tick decrements DurationRemaining of every rounds-typed status by 1 and
// removes those that reach 0. Permanent statuses (DurationRemaining < 0)
// are unaffected. The expired IDs are returned in sorted order so callers
// can emit log entries deterministically.
func (s *ActiveSet) Tick() []string {
	var expired []string
	for id, a := range s.active {
		if a.Def.DurationType != DurationRounds || a.DurationRemaining < 0 {
			continue
		}
		a.DurationRemaining--
		if a.DurationRemaining <= 0 {
			expired = append(expired, id)
			delete(s.active, id)
		}
	}
	sort.Strings(expired)
	return expired
}

// Has reports whether the status with id is currently active.
func (s *ActiveSet) Has(id string) bool {
	_, ok := s.active[id]
	return ok
}

// Stacks returns the current stack count for id, or 0 if absent.
func (s *ActiveSet) Stacks(id string) int {
	if a, ok := s.active[id]; ok {
		return a.Stacks
	}
	return 0
}

// All returns the active statuses sorted by ID. The slice is a new
// allocation but the pointed-to Active values are shared.
func (s *ActiveSet) All() []*Active {
	out := make([]*Active, 0, len(s.active))
	for _, a := range s.active {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Def.ID < out[j].Def.ID })
	return out
}

// IsIncapacitated reports whether any active status is incapacitating.
func (s *ActiveSet) IsIncapacitated() bool {
	for _, a := range s.active {
		if a.Def.Incapacitating {
			return true
		}
	}
	return false
}

// SpeedPenalty returns the total speed reduction from active statuses,
// with stackable penalties multiplied by stack count.
// Postcondition: Returns >= 0.
func (s *ActiveSet) SpeedPenalty() int {
	total := 0
	for _, a := range s.active {
		if a.Def.SpeedPenalty > 0 {
			total += a.Def.SpeedPenalty * a.Stacks
		}
	}
	return total
}

// AttackPenalty returns the total attack roll reduction from active
// statuses, with stackable penalties multiplied by stack count.
// Postcondition: Returns >= 0.
func (s *ActiveSet) AttackPenalty() int {
	total := 0
	for _, a := range s.active {
		if a.Def.AttackPenalty > 0 {
			total += a.Def.AttackPenalty * a.Stacks
		}
	}
	return total
}
