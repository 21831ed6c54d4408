package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Update and Delete for an unknown identifier.
	ErrNotFound = errors.New("entity not found")

	// ErrMalformedRecord is matched by every *MalformedRecordError.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrIDCollision is returned by Create when the generator keeps producing
	// identifiers that are already taken.
	ErrIDCollision = errors.New("identifier collision")
)

// MalformedRecordError reports a bootstrap row that cannot become an entity.
type MalformedRecordError struct {
	Source string
	Line   int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: malformed record: %s", e.Source, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: malformed record: %s", e.Source, e.Reason)
}

// Is makes errors.Is(err, ErrMalformedRecord) hold.
func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
