package combatlog

import (
	"strings"
	"time"
)

// Filter selects entries. All set criteria are ANDed; zero values mean
// "no constraint".
type Filter struct {
	// MinSeverity excludes entries below this tier.
	MinSeverity Severity
	// IncludeTypes, when non-empty, admits only these types.
	IncludeTypes []EntryType
	// ExcludeTypes rejects these types.
	ExcludeTypes []EntryType
	// ParticipantID matches entries whose source or target ID equals it.
	ParticipantID string
	// Round, when > 0, matches entries stamped with that round.
	Round int
	// RequiredTags must all be present on the entry.
	RequiredTags []string
	// After/Before bound the entry timestamp when non-zero.
	After  time.Time
	Before time.Time
	// MessageContains is a case-insensitive substring match on the message.
	MessageContains string
}

func (f Filter) matches(e Entry) bool {
	if e.Severity < f.MinSeverity {
		return false
	}
	if len(f.IncludeTypes) > 0 {
		found := false
		for _, t := range f.IncludeTypes {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, t := range f.ExcludeTypes {
		if e.Type == t {
			return false
		}
	}
	if f.ParticipantID != "" && e.SourceID != f.ParticipantID && e.TargetID != f.ParticipantID {
		return false
	}
	if f.Round > 0 && e.Round != f.Round {
		return false
	}
	for _, tag := range f.RequiredTags {
		if !e.HasTag(tag) {
			return false
		}
	}
	if !f.After.IsZero() && e.Timestamp.Before(f.After) {
		return false
	}
	if !f.Before.IsZero() && e.Timestamp.After(f.Before) {
		return false
	}
	if f.MessageContains != "" &&
		!strings.Contains(strings.ToLower(e.Message), strings.ToLower(f.MessageContains)) {
		return false
	}
	return true
}

// Entries returns a copy of all entries matching the filter, in insertion order.
func (l *Log) Entries(f Filter) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Entry
	for _, e := range l.entries {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// AllEntries returns a copy of every entry in insertion order.
func (l *Log) AllEntries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// RecentEntries returns a copy of the last n entries in insertion order.
// If n exceeds the entry count, all entries are returned.
//
// Precondition: n >= 0.
func (l *Log) RecentEntries(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Entry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}
