// Package presentation defines the contract to the external animation and
// tweening layer. The combat core only reads completion state and issues a
// hard stop; it never starts presentation work.
package presentation

import "time"

// Service is implemented by the rendering layer.
type Service interface {
	// HasAnyPlaying reports whether any tracked timeline is still playing.
	HasAnyPlaying() bool
	// ForceCompleteAllPlaying snaps every outstanding timeline to its end
	// state immediately.
	ForceCompleteAllPlaying()
	// AnimationRemaining returns how long the combatant's current
	// animation has left, or 0 if none is playing.
	AnimationRemaining(combatantID string) time.Duration
	// IsMovementTweening reports whether the combatant's visual is still
	// interpolating towards its position.
	IsMovementTweening(combatantID string) bool
}

// Null is the no-presentation implementation: nothing ever plays. Used
// when the core runs headless.
type Null struct{}

func (Null) HasAnyPlaying() bool                     { return false }
func (Null) ForceCompleteAllPlaying()                {}
func (Null) AnimationRemaining(string) time.Duration { return 0 }
func (Null) IsMovementTweening(string) bool          { return false }

var _ Service = Null{}
