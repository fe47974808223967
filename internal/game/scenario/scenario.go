// Package scenario loads combat setups from YAML or JSON files into
// combatants ready to seed the turn queue.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Interzoneism/qdnd-sub003/internal/game/combatant"
)

// Member is one combatant entry in a scenario file.
type Member struct {
	ID                   string   `json:"id" yaml:"id"`
	Name                 string   `json:"name" yaml:"name"`
	Faction              string   `json:"faction" yaml:"faction"`
	HP                   int      `json:"hp" yaml:"hp"`
	MaxHP                int      `json:"maxHp" yaml:"maxHp"`
	Initiative           int      `json:"initiative" yaml:"initiative"`
	InitiativeTiebreaker int      `json:"initiativeTiebreaker" yaml:"initiativeTiebreaker"`
	Speed                float64  `json:"speed" yaml:"speed"`
	X                    float64  `json:"x" yaml:"x"`
	Y                    float64  `json:"y" yaml:"y"`
	Z                    float64  `json:"z" yaml:"z"`
	Abilities            []string `json:"abilities,omitempty" yaml:"abilities,omitempty"`
	Tags                 []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Scenario is a full combat setup.
type Scenario struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Seed    int64    `json:"seed" yaml:"seed"`
	Members []Member `json:"combatants" yaml:"combatants"`
}

// Load reads a scenario from path. The extension selects the format:
// .json parses as JSON, anything else as YAML.
//
// Postcondition: The returned scenario passed Validate.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: reading %q: %w", path, err)
	}

	var s Scenario
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("scenario: parsing %q: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("scenario: parsing %q: %w", path, err)
		}
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario: %q: %w", path, err)
	}
	return &s, nil
}

// Validate checks structural invariants: unique member IDs, known
// factions, sane hit points, and at least one member on each side.
func (s *Scenario) Validate() error {
	var errs []string
	if len(s.Members) == 0 {
		errs = append(errs, "scenario has no combatants")
	}

	seen := make(map[string]bool)
	hostile, aligned := false, false
	for i, m := range s.Members {
		if m.ID == "" {
			errs = append(errs, fmt.Sprintf("combatant %d has no id", i))
			continue
		}
		if seen[m.ID] {
			errs = append(errs, fmt.Sprintf("duplicate combatant id %q", m.ID))
		}
		seen[m.ID] = true

		f := combatant.Faction(m.Faction)
		switch f {
		case combatant.FactionPlayer, combatant.FactionAlly, combatant.FactionHostile, combatant.FactionNeutral:
		default:
			errs = append(errs, fmt.Sprintf("combatant %q has unknown faction %q", m.ID, m.Faction))
			continue
		}
		if f.IsHostile() {
			hostile = true
		}
		if f.IsPlayerAligned() {
			aligned = true
		}

		if m.MaxHP <= 0 {
			errs = append(errs, fmt.Sprintf("combatant %q has maxHp %d", m.ID, m.MaxHP))
		}
		if m.HP < 0 || m.HP > m.MaxHP {
			errs = append(errs, fmt.Sprintf("combatant %q has hp %d outside [0,%d]", m.ID, m.HP, m.MaxHP))
		}
	}
	if !hostile {
		errs = append(errs, "scenario has no hostile combatant")
	}
	if !aligned {
		errs = append(errs, "scenario has no player-aligned combatant")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Combatants materialises the members into combat-ready combatants.
// Player-faction members are marked player-controlled; everyone starts
// alive and active at their scenario position.
func (s *Scenario) Combatants() []*combatant.Combatant {
	out := make([]*combatant.Combatant, 0, len(s.Members))
	for _, m := range s.Members {
		f := combatant.Faction(m.Faction)
		speed := m.Speed
		if speed <= 0 {
			speed = 30
		}
		out = append(out, &combatant.Combatant{
			ID:                   m.ID,
			Name:                 m.Name,
			Faction:              f,
			ControlledByPlayer:   f == combatant.FactionPlayer,
			Initiative:           m.Initiative,
			InitiativeTiebreaker: m.InitiativeTiebreaker,
			LifeState:            combatant.Alive,
			Active:               true,
			HP:                   m.HP,
			MaxHP:                m.MaxHP,
			BaseSpeed:            speed,
			Pos:                  combatant.Position{X: m.X, Y: m.Y, Z: m.Z},
			Abilities:            append([]string(nil), m.Abilities...),
			Tags:                 append([]string(nil), m.Tags...),
		})
	}
	return out
}
