// Package movement resolves Move commands against a combatant's remaining
// movement budget. Legality beyond budget (terrain, pathing, opportunity
// attacks) is out of scope here; CanMove is deliberately permissive.
package movement

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/Interzoneism/qdnd-sub003/internal/game/combatant"
)

// Result reports the outcome of one resolved move.
type Result struct {
	Moved     bool
	Cost      float64
	Remaining float64
	Reason    string
}

// Service resolves movement for the command gateway.
type Service struct {
	logger *zap.Logger
}

// NewService creates a Service.
// Precondition: logger must be non-nil.
func NewService(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// Cost returns the Euclidean distance between two positions.
func Cost(from, to combatant.Position) float64 {
	dx := to.X - from.X
	dy := to.Y - from.Y
	dz := to.Z - from.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// CanMove reports whether c may attempt movement at all. Always true in
// this phase; budget enforcement happens in Move.
func (s *Service) CanMove(c *combatant.Combatant) bool {
	return true
}

// Move charges the Euclidean cost of reaching dest against c's remaining
// movement and updates the position on success. A move that exceeds the
// budget fails without mutation.
//
// Precondition: c must be non-nil.
// Postcondition: On success c.Pos == dest and the cost is deducted.
func (s *Service) Move(c *combatant.Combatant, dest combatant.Position) Result {
	cost := Cost(c.Pos, dest)
	remaining := c.Budget.MovementRemaining
	if cost > remaining {
		return Result{
			Moved:     false,
			Cost:      cost,
			Remaining: remaining,
			Reason:    fmt.Sprintf("needs %.1f movement, has %.1f", cost, remaining),
		}
	}

	c.Pos = dest
	c.SpendMovement(cost)
	s.logger.Debug("combatant moved",
		zap.String("combatant", c.ID),
		zap.Float64("cost", cost),
		zap.Float64("remaining", c.Budget.MovementRemaining),
	)
	return Result{
		Moved:     true,
		Cost:      cost,
		Remaining: c.Budget.MovementRemaining,
	}
}
