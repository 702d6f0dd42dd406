package tester

import "github.com/google/uuid"

// NewID returns a random identifier for messages and subscriptions.
func NewID() string {
	return uuid.NewString()
}
