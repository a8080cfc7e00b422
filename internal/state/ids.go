package state

import (
	"github.com/google/uuid"
)

// NewShapeID returns a fresh id for a shape created on this client.
func NewShapeID() string {
	return uuid.NewString()
}
