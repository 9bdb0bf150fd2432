package store

import (
	"errors"
	"fmt"
)

// ErrInvalidImport is the sentinel behind every import rejection.
var ErrInvalidImport = errors.New("invalid import data")

// ValidationError reports a rejected save.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ImportError describes why an import document was rejected. Index is the
// offending array element, or -1 when the document itself is malformed.
type ImportError struct {
	Index  int
	Reason string
}

func (e *ImportError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", ErrInvalidImport, e.Reason)
	}
	return fmt.Sprintf("%s: element %d: %s", ErrInvalidImport, e.Index, e.Reason)
}

func (e *ImportError) Unwrap() error {
	return ErrInvalidImport
}
