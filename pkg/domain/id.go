package domain

import "github.com/google/uuid"

// NewID returns a fresh identifier for trips, expenses, public updates, and
// synthesized entities.
func NewID() string { return uuid.NewString() }
