// Package status tracks per-combatant status effects: static definitions
// loaded from YAML, active instances with stacks and durations, and the
// turn/round tick processing the orchestrator drives.
package status

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DurationRounds statuses expire after a fixed number of round ticks.
	DurationRounds = "rounds"
	// DurationPermanent statuses persist until explicitly removed.
	DurationPermanent = "permanent"
)

// Well-known status IDs the orchestrator reasons about directly.
const (
	StatusProne       = "prone"
	StatusUnconscious = "unconscious"
)

// Def is the static definition of a status effect, loaded from YAML.
type Def struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	DurationType   string `yaml:"duration_type"` // "rounds" | "permanent"
	MaxStacks      int    `yaml:"max_stacks"`    // 0 = unstackable
	Incapacitating bool   `yaml:"incapacitating"`
	SpeedPenalty   int    `yaml:"speed_penalty"`
	AttackPenalty  int    `yaml:"attack_penalty"`
	LuaOnApply     string `yaml:"lua_on_apply"`  // Lua hook name, "" = none
	LuaOnRemove    string `yaml:"lua_on_remove"` // Lua hook name, "" = none
	LuaOnTick      string `yaml:"lua_on_tick"`   // Lua hook name, "" = none
}

// Registry holds all known Defs keyed by ID.
type Registry struct {
	defs map[string]*Def
}

// NewRegistry creates a Registry pre-populated with the built-in statuses
// the orchestrator depends on (prone, unconscious).
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]*Def)}
	r.Register(&Def{
		ID:           StatusProne,
		Name:         "Prone",
		Description:  "Knocked down; standing costs half of the turn's movement.",
		DurationType: DurationPermanent,
	})
	r.Register(&Def{
		ID:             StatusUnconscious,
		Name:           "Unconscious",
		Description:    "Down and unable to act.",
		DurationType:   DurationPermanent,
		Incapacitating: true,
	})
	return r
}

// Register adds def to the registry, overwriting any existing entry with
// the same ID.
// Precondition: def must not be nil and def.ID must not be empty.
func (r *Registry) Register(def *Def) {
	r.defs[def.ID] = def
}

// Get returns the Def for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*Def, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// All returns a snapshot slice of all registered Defs.
func (r *Registry) All() []*Def {
	out := make([]*Def, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	return out
}

// LoadDirectory reads every *.yaml file in dir, parses each as a Def, and
// registers it into r. Built-in definitions may be overridden by ID.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns an error if any file fails to parse; on error the
// registry may contain a partial load.
func (r *Registry) LoadDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("status: reading definition dir %q: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("status: reading %q: %w", path, err)
		}
		var def Def
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return fmt.Errorf("status: parsing %q: %w", path, err)
		}
		if def.ID == "" {
			return fmt.Errorf("status: %q has no id", path)
		}
		r.Register(&def)
	}
	return nil
}
