package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job ID
func NewJobID() string {
	return uuid.New().String()
}
