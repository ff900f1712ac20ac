package behavior

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateID is returned when an ID is registered twice.
	ErrDuplicateID = errors.New("duplicate node ID")
	// ErrInvalidID is returned for empty or reserved registration IDs.
	ErrInvalidID = errors.New("invalid node ID")
	// ErrUnknownNode is returned when a definition references an unregistered ID.
	ErrUnknownNode = errors.New("unknown node")
	// ErrUnknownTree is returned when a tree ID is not in the catalog.
	ErrUnknownTree = errors.New("unknown tree")
	// ErrRecursiveSubTree is returned when SubTree expansion loops.
	ErrRecursiveSubTree = errors.New("recursive subtree")
	// ErrMalformed is returned for structurally invalid definitions.
	ErrMalformed = errors.New("malformed tree definition")
	// ErrPort is returned for invalid port declarations or usage.
	ErrPort = errors.New("invalid port")
	// ErrMaxTicks is returned by Tree.Run when the tick budget is exhausted.
	ErrMaxTicks = errors.New("tick limit reached")
)

// DefinitionError locates a problem within a tree definition.
type DefinitionError struct {
	Source string
	Line   int
	Err    error
}

func (e *DefinitionError) Error() string {
	switch {
	case e.Source != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %v", e.Source, e.Line, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	case e.Source != "":
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *DefinitionError) Unwrap() error { return e.Err }

func (el *element) errorf(sentinel error, format string, args ...any) error {
	return &DefinitionError{
		Source: el.source,
		Line:   el.line,
		Err:    fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)),
	}
}
