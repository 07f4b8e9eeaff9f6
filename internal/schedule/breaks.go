// Package schedule models the door's schedule exceptions: time
// windows during which the door unlocks without a card ("breaks").
package schedule

import (
	"encoding/json"
	"fmt"
	"time"
)

// Break is one schedule exception, times in "HH:MM".
type Break struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Parse decodes and validates the breaks JSON the operator edits: a
// list of objects with "from" and "to" in HH:MM.
func Parse(text string) ([]Break, error) {
	var breaks []Break
	if err := json.Unmarshal([]byte(text), &breaks); err != nil {
		return nil, fmt.Errorf("breaks must be a JSON list of {from, to}: %w", err)
	}
	for i, b := range breaks {
		if err := validate(b); err != nil {
			return nil, fmt.Errorf("break %d: %w", i+1, err)
		}
	}
	return breaks, nil
}

// Format renders breaks as indented JSON for the editor buffer.
func Format(breaks []Break) string {
	if breaks == nil {
		breaks = []Break{}
	}
	data, err := json.MarshalIndent(breaks, "", "  ")
	if err != nil {
		// A []Break can always be marshalled.
		return "[]"
	}
	return string(data)
}

func validate(b Break) error {
	from, err := time.Parse("15:04", b.From)
	if err != nil {
		return fmt.Errorf("from %q is not HH:MM", b.From)
	}
	to, err := time.Parse("15:04", b.To)
	if err != nil {
		return fmt.Errorf("to %q is not HH:MM", b.To)
	}
	if !from.Before(to) {
		return fmt.Errorf("from %q must be before to %q", b.From, b.To)
	}
	return nil
}
