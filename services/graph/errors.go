package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStructural is the class of every validator diagnostic.
	ErrStructural = errors.New("structural error")
	// ErrCycle is additionally matched by cycle diagnostics.
	ErrCycle = errors.New("cycle detected")
)

// Reason identifies which structural check failed.
type Reason string

const (
	ReasonEmptyID           Reason = "empty_id"
	ReasonDuplicateID       Reason = "duplicate_id"
	ReasonWhitespaceID      Reason = "whitespace_id"
	ReasonDanglingReference Reason = "dangling_reference"
	ReasonCycle             Reason = "cycle"
)

// StructuralError is the single diagnostic returned by Validate.
type StructuralError struct {
	Reason Reason
	NodeID string
	Kind   Kind
	Slot   string   // set for dangling references
	Target string   // missing id for dangling references
	Path   []string // cycle path, first and last element equal
}

func (e *StructuralError) Error() string {
	if e == nil {
		return ""
	}
	switch e.Reason {
	case ReasonEmptyID:
		return fmt.Sprintf("Node with op '%s' has an empty ID.", e.Kind)
	case ReasonDuplicateID:
		return fmt.Sprintf("Duplicate node ID detected: '%s'. IDs must be unique.", e.NodeID)
	case ReasonWhitespaceID:
		return fmt.Sprintf("Node ID '%s' contains whitespace. IDs must not contain spaces.", e.NodeID)
	case ReasonDanglingReference:
		return fmt.Sprintf("Node '%s' has an invalid input '%s' pointing to a non-existent node '%s'.", e.NodeID, e.Slot, e.Target)
	case ReasonCycle:
		return "Cycle detected: " + strings.Join(e.Path, " -> ")
	default:
		return ErrStructural.Error()
	}
}

func (e *StructuralError) Unwrap() []error {
	if e.Reason == ReasonCycle {
		return []error{ErrStructural, ErrCycle}
	}
	return []error{ErrStructural}
}
