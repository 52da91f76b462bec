package catalog

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ComponentID uniquely identifies a component for its lifetime in the catalog.
type ComponentID uuid.UUID

// NilComponentID is the zero identifier. It never names a real component and
// is used for catalog-wide notifications.
var NilComponentID = ComponentID(uuid.Nil)

// NewComponentID returns a random identifier.
func NewComponentID() ComponentID {
	return ComponentID(uuid.New())
}

// ParseComponentID parses the textual UUID form (with or without braces).
func ParseComponentID(s string) (ComponentID, error) {
	s = strings.Trim(strings.TrimSpace(s), "{}")
	u, err := uuid.Parse(s)
	if err != nil {
		return NilComponentID, fmt.Errorf("invalid component id %q: %w", s, err)
	}
	return ComponentID(u), nil
}

// MustParseComponentID is ParseComponentID for constants in tests and fixtures.
func MustParseComponentID(s string) ComponentID {
	id, err := ParseComponentID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ComponentID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether id is the zero identifier.
func (id ComponentID) IsNil() bool {
	return id == NilComponentID
}

// MarshalText implements encoding.TextMarshaler.
func (id ComponentID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ComponentID) UnmarshalText(text []byte) error {
	parsed, err := ParseComponentID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ServiceID names a capability a component can provide.
type ServiceID string

// RequirementLevel is the strength of a dependency on a service.
type RequirementLevel int

const (
	// Optional: the requirer starts whether or not a provider exists; the
	// provider is left untouched.
	Optional RequirementLevel = iota
	// OptionalTryStart: like Optional, but an existing provider is started.
	OptionalTryStart
	// MustExist: a provider must exist; it is not started.
	MustExist
	// MustExistTryStart: a provider must exist and is started if possible.
	// A failed start of the provider does not block the requirer.
	MustExistTryStart
	// MustExistAndRun: a provider must exist and must end up running.
	MustExistAndRun
)

var levelNames = map[RequirementLevel]string{
	Optional:          "Optional",
	OptionalTryStart:  "OptionalTryStart",
	MustExist:         "MustExist",
	MustExistTryStart: "MustExistTryStart",
	MustExistAndRun:   "MustExistAndRun",
}

func (l RequirementLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("RequirementLevel(%d)", int(l))
}

// IsValid reports whether l is one of the five known levels.
func (l RequirementLevel) IsValid() bool {
	_, ok := levelNames[l]
	return ok
}

// RequiresProvider reports whether the level fails when no provider exists.
func (l RequirementLevel) RequiresProvider() bool {
	return l == MustExist || l == MustExistTryStart || l == MustExistAndRun
}

// StartsProvider reports whether an existing provider is auto-started.
func (l RequirementLevel) StartsProvider() bool {
	return l == OptionalTryStart || l == MustExistTryStart || l == MustExistAndRun
}

// RequiresRunning reports whether the provider must end up running.
func (l RequirementLevel) RequiresRunning() bool {
	return l == MustExistAndRun
}

// ParseRequirementLevel parses a level name, ignoring case.
func ParseRequirementLevel(s string) (RequirementLevel, error) {
	for level, name := range levelNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return level, nil
		}
	}
	return Optional, fmt.Errorf("unknown requirement level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l RequirementLevel) MarshalText() ([]byte, error) {
	if !l.IsValid() {
		return nil, fmt.Errorf("cannot marshal invalid requirement level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *RequirementLevel) UnmarshalText(text []byte) error {
	level, err := ParseRequirementLevel(string(text))
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// Requirement is a dependency of a component on a service.
type Requirement struct {
	Service ServiceID        `json:"service" yaml:"service"`
	Level   RequirementLevel `json:"level" yaml:"level"`
}

// Hooks are host commands associated with a component. The engine never
// interprets them; host activators may.
type Hooks struct {
	Start string `json:"start,omitempty" yaml:"start,omitempty"`
	Stop  string `json:"stop,omitempty" yaml:"stop,omitempty"`
}

// ComponentDescriptor describes a discovered component.
type ComponentDescriptor struct {
	ID           ComponentID   `json:"id" yaml:"id"`
	Name         string        `json:"name,omitempty" yaml:"name,omitempty"`
	Version      string        `json:"version,omitempty" yaml:"version,omitempty"`
	Description  string        `json:"description,omitempty" yaml:"description,omitempty"`
	Provides     []ServiceID   `json:"provides,omitempty" yaml:"provides,omitempty"`
	Requirements []Requirement `json:"requires,omitempty" yaml:"requires,omitempty"`
	Hooks        Hooks         `json:"hooks,omitempty" yaml:"hooks,omitempty"`
}

// DisplayName returns the name, falling back to the id.
func (d ComponentDescriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID.String()
}

// Catalog exposes discovered components in stable discovery order.
type Catalog interface {
	// GetComponent returns the descriptor for id.
	GetComponent(id ComponentID) (*ComponentDescriptor, bool)

	// AllComponents returns every component in discovery order.
	AllComponents() []ComponentDescriptor
}
