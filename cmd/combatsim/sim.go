package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Interzoneism/qdnd-sub003/internal/config"
	"github.com/Interzoneism/qdnd-sub003/internal/game/combatant"
	"github.com/Interzoneism/qdnd-sub003/internal/game/combatlog"
	"github.com/Interzoneism/qdnd-sub003/internal/game/command"
	"github.com/Interzoneism/qdnd-sub003/internal/game/dice"
	"github.com/Interzoneism/qdnd-sub003/internal/game/fsm"
	"github.com/Interzoneism/qdnd-sub003/internal/game/movement"
	"github.com/Interzoneism/qdnd-sub003/internal/game/resources"
	"github.com/Interzoneism/qdnd-sub003/internal/game/scenario"
	"github.com/Interzoneism/qdnd-sub003/internal/game/status"
	"github.com/Interzoneism/qdnd-sub003/internal/game/turnorch"
	"github.com/Interzoneism/qdnd-sub003/internal/game/turnqueue"
	"github.com/Interzoneism/qdnd-sub003/internal/observability"
	"github.com/Interzoneism/qdnd-sub003/internal/scripting"
)

// maxDriverSteps bounds the end-turn driver loop so a stalled combat cannot
// hang the process.
const maxDriverSteps = 10000

// simResult captures the outcome of one complete simulated combat.
type simResult struct {
	LogHash   uint64
	QueueHash uint64
	Rounds    int
	Entries   int
	Text      string
}

// session is one fully wired combat: queue, machine, log, status manager
// with Lua hooks, and the orchestrator driving them.
type session struct {
	queue    *turnqueue.Queue
	machine  *fsm.Machine
	log      *combatlog.Log
	sched    *turnorch.ManualScheduler
	hooks    *scripting.Hooks
	statuses *status.Manager
	gateway  *command.Gateway
	orch     *turnorch.Orchestrator
}

// newSession builds a session from the scenario. When statusDir is given,
// both the status YAML definitions and any .lua hook scripts in it are
// loaded; the scripts' engine.* calls are bound to this session's
// combatants and log.
func newSession(cfg config.Config, logger *zap.Logger, scn *scenario.Scenario, seed int64, statusDir string) (*session, error) {
	s := &session{
		queue:   turnqueue.New(logger),
		machine: fsm.New(logger),
		log:     combatlog.New(),
		sched:   turnorch.NewManualScheduler(),
		hooks:   scripting.NewHooks(logger, scripting.DefaultOpcodeBudget),
	}

	registry := status.NewRegistry()
	if statusDir != "" {
		if err := registry.LoadDirectory(statusDir); err != nil {
			return nil, fmt.Errorf("loading status definitions: %w", err)
		}
		if err := s.hooks.LoadDirectory(statusDir); err != nil {
			return nil, fmt.Errorf("loading status scripts: %w", err)
		}
	}
	s.statuses = status.NewManager(registry, s.log, s.hooks, logger)
	s.bindHooks()

	pools := resources.NewManager(logger)
	mover := movement.NewService(logger)

	for _, c := range scn.Combatants() {
		if err := s.queue.AddCombatant(c); err != nil {
			return nil, fmt.Errorf("adding combatant: %w", err)
		}
	}

	orch, err := turnorch.New(turnorch.Environment{
		Queue:     s.queue,
		Machine:   s.machine,
		Log:       s.log,
		Source:    dice.NewSeededSource(seed),
		Logger:    logger,
		Combat:    cfg.Combat,
		Statuses:  s.statuses,
		Resources: pools,
		Movement:  mover,
		Scheduler: s.sched,
	})
	if err != nil {
		return nil, fmt.Errorf("building orchestrator: %w", err)
	}
	s.orch = orch

	s.gateway = command.NewGateway(s.queue, s.machine, s.log, mover, logger)
	s.gateway.SetEndTurn(orch.EndCurrentTurn)
	return s, nil
}

// bindHooks connects the Lua engine.* functions to the session's queue,
// status manager, and log.
func (s *session) bindHooks() {
	s.hooks.GetCombatant = func(id string) *scripting.CombatantInfo {
		c, ok := s.queue.Combatant(id)
		if !ok {
			return nil
		}
		info := &scripting.CombatantInfo{ID: c.ID, Name: c.Name, HP: c.HP, MaxHP: c.MaxHP}
		for _, a := range s.statuses.ActiveFor(id) {
			info.Statuses = append(info.Statuses, a.Def.ID)
		}
		return info
	}
	s.hooks.ApplyDamage = func(id string, amount int) error {
		c, ok := s.queue.Combatant(id)
		if !ok {
			return fmt.Errorf("unknown combatant %q", id)
		}
		c.ApplyDamage(amount)
		tgt := combatlog.Participant{ID: c.ID, Name: c.Name}
		s.log.Damage(combatlog.Participant{}, tgt, float64(amount))
		if c.HP == 0 && c.LifeState == combatant.Alive {
			c.LifeState = combatant.Downed
			s.log.CombatantDowned(tgt)
		}
		return nil
	}
	s.hooks.ApplyHealing = func(id string, amount int) error {
		c, ok := s.queue.Combatant(id)
		if !ok {
			return fmt.Errorf("unknown combatant %q", id)
		}
		c.Heal(amount)
		tgt := combatlog.Participant{ID: c.ID, Name: c.Name}
		s.log.Healing(combatlog.Participant{}, tgt, float64(amount))
		return nil
	}
	s.hooks.Note = func(msg string) {
		s.log.Debug(msg)
	}
}

// drive runs the combat to completion with a naive end-turn driver. Player
// turns end immediately through the command gateway; AI turns end through
// the orchestrator's scheduled turn-end check, run synchronously on the
// manual scheduler. If combat has not resolved after maxRounds full rounds
// it is ended as a draw.
func (s *session) drive(logger *zap.Logger, maxRounds int) (*simResult, error) {
	s.orch.StartCombat()
	s.sched.RunAll(maxDriverSteps)

	for steps := 0; !s.orch.Finished(); steps++ {
		if steps >= maxDriverSteps {
			return nil, fmt.Errorf("combat did not finish within %d driver steps", maxDriverSteps)
		}
		if s.queue.Round() > maxRounds {
			logger.Info("round limit reached, ending combat", zap.Int("max_rounds", maxRounds))
			s.orch.EndCombat()
			break
		}
		cur := s.queue.CurrentCombatant()
		if cur == nil {
			break
		}
		if cur.ControlledByPlayer {
			s.gateway.Execute(command.Command{Kind: command.KindEndTurn, ActorID: cur.ID})
		}
		s.sched.RunAll(maxDriverSteps)
	}

	return &simResult{
		LogHash:   s.log.CalculateHash(),
		QueueHash: s.queue.GetStateHash(),
		Rounds:    s.queue.Round(),
		Entries:   s.log.Len(),
		Text:      s.log.ExportText(),
	}, nil
}

// simulate builds a session from the scenario and drives one full combat.
func simulate(cfg config.Config, logger *zap.Logger, scn *scenario.Scenario, seed int64, statusDir string, maxRounds int) (*simResult, error) {
	s, err := newSession(cfg, logger, scn, seed, statusDir)
	if err != nil {
		return nil, err
	}
	return s.drive(logger, maxRounds)
}

// loadConfig reads the config file at path, or the built-in defaults when
// path is empty.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// newLogger builds the zap logger for the session.
func newLogger(cfg config.Config) (*zap.Logger, error) {
	return observability.NewLogger(cfg.Logging)
}

// loadScenario resolves the scenario path from the flag, falling back to the
// configured path.
func loadScenario(flagPath string, cfg config.Config) (*scenario.Scenario, error) {
	path := flagPath
	if path == "" {
		path = cfg.Scenario.Path
	}
	if path == "" {
		return nil, fmt.Errorf("no scenario given; pass --scenario or set scenario.path in the config")
	}
	return scenario.Load(path)
}

// resolveSeed picks the session seed: the flag wins, then the scenario's
// seed, then the configured seed, then a fresh random one.
func resolveSeed(flagSeed int64, scn *scenario.Scenario, cfg config.Config) (int64, error) {
	switch {
	case flagSeed != 0:
		return flagSeed, nil
	case scn.Seed != 0:
		return scn.Seed, nil
	case cfg.Scenario.Seed != 0:
		return cfg.Scenario.Seed, nil
	}
	return dice.NewSeed()
}
