package combatlog

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// jsonEntry is the compact export shape: optional fields are omitted when
// absent so the output stays small.
type jsonEntry struct {
	ID         string         `json:"id"`
	Type       EntryType      `json:"type"`
	Severity   string         `json:"severity"`
	Timestamp  time.Time      `json:"timestamp"`
	Round      int            `json:"round"`
	Turn       int            `json:"turn"`
	SourceID   string         `json:"sourceId,omitempty"`
	SourceName string         `json:"sourceName,omitempty"`
	TargetID   string         `json:"targetId,omitempty"`
	TargetName string         `json:"targetName,omitempty"`
	Message    string         `json:"message"`
	Value      float64        `json:"value,omitempty"`
	Breakdown  map[string]any `json:"breakdown,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
}

// ExportJSON serialises the full entry list as indented JSON. Optional fields
// (source/target, breakdown, tags, zero value) are omitted.
func (l *Log) ExportJSON() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]jsonEntry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, jsonEntry{
			ID:         e.ID,
			Type:       e.Type,
			Severity:   e.Severity.String(),
			Timestamp:  e.Timestamp,
			Round:      e.Round,
			Turn:       e.Turn,
			SourceID:   e.SourceID,
			SourceName: e.SourceName,
			TargetID:   e.TargetID,
			TargetName: e.TargetName,
			Message:    e.Message,
			Value:      e.Value,
			Breakdown:  e.Breakdown,
			Tags:       e.Tags,
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling combat log: %w", err)
	}
	return data, nil
}

// ExportText renders one line per entry plus a trailing summary line with the
// entry count.
func (l *Log) ExportText() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var b strings.Builder
	for _, e := range l.entries {
		fmt.Fprintf(&b, "[R%d T%d] [%s] %s: %s\n",
			e.Round, e.Turn, e.Severity, e.Type, e.Message)
	}
	fmt.Fprintf(&b, "--- %d entries ---\n", len(l.entries))
	return b.String()
}
