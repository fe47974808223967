package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger so every roll leaves a debug audit trail
// with expression, die values, modifier, and total.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Source returns the underlying randomness source.
func (r *Roller) Source() Source { return r.src }

// D20 rolls a d20 and logs the result at debug level.
//
// Postcondition: Returns a value in [1, 20].
func (r *Roller) D20() int {
	v := D20(r.src)
	r.logger.Debug("dice roll",
		zap.String("expression", "d20"),
		zap.Int("total", v),
	)
	return v
}

// RollN rolls count dice of the given sides plus modifier and logs the result.
func (r *Roller) RollN(count, sides, modifier int) RollResult {
	result := RollN(count, sides, modifier, r.src)
	r.logger.Debug("dice roll",
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Dice),
		zap.Int("modifier", result.Modifier),
		zap.Int("total", result.Total()),
	)
	return result
}
