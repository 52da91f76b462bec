package planner

import (
	"errors"
	"fmt"

	"pluginrunner/internal/catalog"
)

// Kind classifies why a component cannot start.
type Kind int

const (
	// MissingProvider: a Must* requirement resolves to no component.
	MissingProvider Kind = iota
	// ProviderUnsatisfiable: a MustExistAndRun provider cannot start itself.
	ProviderUnsatisfiable
	// ProviderStopped: a MustExistAndRun provider has a Stop intent.
	ProviderStopped
	// UnresolvedCycle: the unsatisfiable provider itself depends, through
	// MustExistAndRun edges, on the component.
	UnresolvedCycle
)

func (k Kind) String() string {
	switch k {
	case MissingProvider:
		return "MissingProvider"
	case ProviderUnsatisfiable:
		return "ProviderUnsatisfiable"
	case ProviderStopped:
		return "ProviderStopped"
	case UnresolvedCycle:
		return "UnresolvedCycle"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// RequirementError explains why a component is unsatisfiable.
type RequirementError struct {
	Kind      Kind
	Component catalog.ComponentID
	Service   catalog.ServiceID
	Level     catalog.RequirementLevel
	// Provider is nil for MissingProvider.
	Provider catalog.ComponentID
	// ComponentName and ProviderName are the friendly names shown in the
	// message. The ids are used when they are empty.
	ComponentName string
	ProviderName  string
}

func (e *RequirementError) Error() string {
	component := label(e.ComponentName, e.Component)
	provider := label(e.ProviderName, e.Provider)
	switch e.Kind {
	case MissingProvider:
		return fmt.Sprintf("component %s: no provider for service %s required at %s", component, e.Service, e.Level)
	case ProviderStopped:
		return fmt.Sprintf("component %s: provider %s of service %s is asked to stop", component, provider, e.Service)
	case UnresolvedCycle:
		return fmt.Sprintf("component %s: provider %s of service %s is unsatisfiable within a requirement cycle", component, provider, e.Service)
	default:
		return fmt.Sprintf("component %s: provider %s of service %s is unsatisfiable", component, provider, e.Service)
	}
}

func label(name string, id catalog.ComponentID) string {
	if name != "" {
		return name
	}
	return id.String()
}

// IsKind reports whether err wraps a *RequirementError of the given kind.
func IsKind(err error, kind Kind) bool {
	var re *RequirementError
	return errors.As(err, &re) && re != nil && re.Kind == kind
}
