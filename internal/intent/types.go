package intent

import (
	"fmt"
	"strings"

	"pluginrunner/internal/catalog"
)

// Intent is the most recently requested user action for a component.
type Intent int

const (
	Unset Intent = iota
	Start
	Stop
)

func (i Intent) String() string {
	switch i {
	case Unset:
		return "unset"
	case Start:
		return "start"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("Intent(%d)", int(i))
	}
}

// ParseIntent parses "start", "stop" or "unset" (also "", "none").
func ParseIntent(s string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "start", "started":
		return Start, nil
	case "stop", "stopped":
		return Stop, nil
	case "", "unset", "none":
		return Unset, nil
	default:
		return Unset, fmt.Errorf("unknown intent %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Intent) UnmarshalText(text []byte) error {
	parsed, err := ParseIntent(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Status is the system-level configuration of a component. It applies to
// every user and is consulted when the user expressed no intent.
type Status int

const (
	// StatusManual leaves the decision to the user.
	StatusManual Status = iota
	// StatusAutomaticStart starts the component unless the user stopped it.
	StatusAutomaticStart
	// StatusDisabled keeps the component stopped whatever the user asks.
	StatusDisabled
)

func (s Status) String() string {
	switch s {
	case StatusManual:
		return "manual"
	case StatusAutomaticStart:
		return "automaticStart"
	case StatusDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseStatus parses "manual", "automaticStart" or "disabled", ignoring case.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "manual":
		return StatusManual, nil
	case "automaticstart", "auto":
		return StatusAutomaticStart, nil
	case "disabled":
		return StatusDisabled, nil
	default:
		return StatusManual, fmt.Errorf("unknown status %q", s)
	}
}

// Source provides the intent of a component.
type Source interface {
	GetIntent(id catalog.ComponentID) Intent
}

// Snapshot reads the intents of the given components once. The result is
// what a single Apply works with, whatever happens to the source meanwhile.
func Snapshot(src Source, ids []catalog.ComponentID) map[catalog.ComponentID]Intent {
	snapshot := make(map[catalog.ComponentID]Intent, len(ids))
	for _, id := range ids {
		if i := src.GetIntent(id); i != Unset {
			snapshot[id] = i
		}
	}
	return snapshot
}
