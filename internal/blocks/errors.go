package blocks

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Error kinds. Match with errors.Is.
var (
	// ErrSchema indicates declared inputs/outputs that do not match the
	// free symbols of the equations, or a malformed name or equation.
	ErrSchema = errors.New("blocks: schema mismatch")

	// ErrNamespaceCollision indicates duplicate subsystem names or colliding
	// promoted names.
	ErrNamespaceCollision = errors.New("blocks: namespace collision")

	// ErrInvalidMap indicates a user namespace map with keys outside the legal
	// candidate set or with non-unique promoted names.
	ErrInvalidMap = errors.New("blocks: invalid namespace map")

	// ErrUnresolvedConnection indicates a connection that does not join a
	// subsystem input to a subsystem output.
	ErrUnresolvedConnection = errors.New("blocks: unresolved connection")

	// ErrStructural indicates a non-square system or an equation/state
	// alignment that is not a bijection.
	ErrStructural = errors.New("blocks: structural error")

	// ErrArgument indicates invalid caller-supplied ordering hints.
	ErrArgument = errors.New("blocks: invalid argument")

	// ErrInvariant indicates an internal invariant violation.
	ErrInvariant = errors.New("blocks: invariant violation")

	// ErrNotFound indicates a symbol lookup miss.
	ErrNotFound = errors.New("blocks: symbol not found")
)

// ModelError wraps an error kind with the operation and component it occurred in.
type ModelError struct {
	Op        string
	Component string
	Symbols   []string
	Wrapped   error
}

func (e *ModelError) Error() string {
	msg := fmt.Sprintf("%s %q: %v", e.Op, e.Component, e.Wrapped)
	if len(e.Symbols) > 0 {
		msg += ": " + strings.Join(e.Symbols, ", ")
	}
	return msg
}

func (e *ModelError) Unwrap() error {
	return e.Wrapped
}

func newError(op, component string, kind error, detail string, symbols ...string) error {
	wrapped := kind
	if detail != "" {
		wrapped = errors.Wrap(kind, detail)
	}
	return &ModelError{Op: op, Component: component, Symbols: symbols, Wrapped: wrapped}
}
