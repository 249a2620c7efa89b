// Package idgen produces entity identifiers.
package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator returns a new unique ID per call.
type Generator interface {
	NewID() string
}

// UUID generates random version 4 UUIDs.
type UUID struct{}

func (UUID) NewID() string { return uuid.NewString() }

// Sequence generates prefix-1, prefix-2, ... Useful where IDs must be
// predictable, such as fixtures.
type Sequence struct {
	prefix string
	n      atomic.Int64
}

// NewSequence creates a Sequence with the given prefix.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

func (s *Sequence) NewID() string {
	return fmt.Sprintf("%s-%d", s.prefix, s.n.Add(1))
}
