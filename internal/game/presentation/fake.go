package presentation

import (
	"sync"
	"time"
)

// Fake is a scripted Service for tests. PlayingPolls sets how many
// HasAnyPlaying calls report true before the fake goes idle on its own;
// ForceCompleteAllPlaying ends playback immediately and is counted.
type Fake struct {
	mu            sync.Mutex
	playingPolls  int
	forceCalls    int
	pollCalls     int
	tweening      map[string]bool
	animRemaining map[string]time.Duration
}

// NewFake creates a Fake that reports playing for the first playingPolls
// HasAnyPlaying calls.
func NewFake(playingPolls int) *Fake {
	return &Fake{
		playingPolls:  playingPolls,
		tweening:      make(map[string]bool),
		animRemaining: make(map[string]time.Duration),
	}
}

// SetTweening scripts IsMovementTweening for a combatant.
func (f *Fake) SetTweening(combatantID string, tweening bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tweening[combatantID] = tweening
}

// SetAnimationRemaining scripts AnimationRemaining for a combatant.
func (f *Fake) SetAnimationRemaining(combatantID string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.animRemaining[combatantID] = d
}

// ForceCalls returns how many times ForceCompleteAllPlaying ran.
func (f *Fake) ForceCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forceCalls
}

// PollCalls returns how many times HasAnyPlaying ran.
func (f *Fake) PollCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pollCalls
}

func (f *Fake) HasAnyPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollCalls++
	if f.playingPolls > 0 {
		f.playingPolls--
		return true
	}
	return false
}

func (f *Fake) ForceCompleteAllPlaying() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forceCalls++
	f.playingPolls = 0
	for id := range f.tweening {
		f.tweening[id] = false
	}
	for id := range f.animRemaining {
		f.animRemaining[id] = 0
	}
}

func (f *Fake) AnimationRemaining(combatantID string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.animRemaining[combatantID]
}

func (f *Fake) IsMovementTweening(combatantID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tweening[combatantID]
}

var _ Service = (*Fake)(nil)
