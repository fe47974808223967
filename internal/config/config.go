// Package config provides Viper-based configuration loading for the combat core.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// CombatConfig holds the turn-orchestration tuning knobs.
type CombatConfig struct {
	// ActionsPerTurn is the number of action charges a combatant gets each turn.
	ActionsPerTurn int `mapstructure:"actions_per_turn"`
	// BonusActionsPerTurn is the number of bonus-action charges per turn.
	BonusActionsPerTurn int `mapstructure:"bonus_actions_per_turn"`
	// PresentationPollInterval is how long the orchestrator waits between
	// checks for outstanding animation playback before ending a turn.
	PresentationPollInterval time.Duration `mapstructure:"presentation_poll_interval"`
	// PresentationRetryCeiling is the maximum number of deferred polls before
	// outstanding playback is force-completed and the turn ends anyway.
	PresentationRetryCeiling int `mapstructure:"presentation_retry_ceiling"`
	// AITurnEndDelay is how long an AI-controlled combatant's turn lingers
	// before the scheduled end-turn fires.
	AITurnEndDelay time.Duration `mapstructure:"ai_turn_end_delay"`
	// ProneStandCostFactor is the fraction of movement spent standing from prone.
	ProneStandCostFactor float64 `mapstructure:"prone_stand_cost_factor"`
}

// ScenarioConfig selects the scenario file and random seed for a run.
type ScenarioConfig struct {
	// Path is the scenario YAML/JSON file to load.
	Path string `mapstructure:"path"`
	// Seed seeds the session random source; identical seeds replay identically.
	Seed int64 `mapstructure:"seed"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Combat   CombatConfig   `mapstructure:"combat"`
	Scenario ScenarioConfig `mapstructure:"scenario"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateCombat(c.Combat); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateCombat(c CombatConfig) error {
	var errs []string
	if c.ActionsPerTurn < 1 {
		errs = append(errs, fmt.Sprintf("combat.actions_per_turn must be >= 1, got %d", c.ActionsPerTurn))
	}
	if c.BonusActionsPerTurn < 0 {
		errs = append(errs, fmt.Sprintf("combat.bonus_actions_per_turn must be >= 0, got %d", c.BonusActionsPerTurn))
	}
	if c.PresentationPollInterval <= 0 {
		errs = append(errs, "combat.presentation_poll_interval must be > 0")
	}
	if c.PresentationRetryCeiling < 1 {
		errs = append(errs, fmt.Sprintf("combat.presentation_retry_ceiling must be >= 1, got %d", c.PresentationRetryCeiling))
	}
	if c.AITurnEndDelay < 0 {
		errs = append(errs, "combat.ai_turn_end_delay must not be negative")
	}
	if c.ProneStandCostFactor < 0 || c.ProneStandCostFactor > 1 {
		errs = append(errs, fmt.Sprintf("combat.prone_stand_cost_factor must be in [0,1], got %g", c.ProneStandCostFactor))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with QDND_ prefix
	v.SetEnvPrefix("QDND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Default returns the built-in configuration used when no config file is given.
//
// Postcondition: Default().Validate() == nil.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: unmarshalling defaults: %v", err))
	}
	return cfg
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("combat.actions_per_turn", 1)
	v.SetDefault("combat.bonus_actions_per_turn", 1)
	v.SetDefault("combat.presentation_poll_interval", "100ms")
	v.SetDefault("combat.presentation_retry_ceiling", 40)
	v.SetDefault("combat.ai_turn_end_delay", "500ms")
	v.SetDefault("combat.prone_stand_cost_factor", 0.5)

	v.SetDefault("scenario.path", "")
	v.SetDefault("scenario.seed", 1)
}
