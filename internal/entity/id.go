package entity

import (
	"fmt"

	"github.com/google/uuid"
)

// IDGenerator allocates identifiers for new entities.
// Implemented by RandomIDs (production) and testutil generators (tests).
type IDGenerator interface {
	NewID() (string, error)
}

// RandomIDs generates random (version 4) UUIDs.
//
// IDs double as the external reference for update and delete, so they must
// be unpredictable: uuid.NewRandom reads crypto/rand and carries 122 random
// bits.
//
// Thread-safety: RandomIDs is stateless and safe for concurrent use.
type RandomIDs struct{}

// NewID returns a new random UUID as a hyphenated string.
func (RandomIDs) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}
