package domain

import "errors"

// Validation errors are surfaced to the caller and never retried.
var (
	// ErrEmptyAction indicates a turn was submitted with no action text.
	ErrEmptyAction = errors.New("user action is required")
	// ErrEmptyActionID indicates a turn was submitted with no idempotency key.
	ErrEmptyActionID = errors.New("user action id is required")
	// ErrNoNPCs indicates a session was started without any NPC.
	ErrNoNPCs = errors.New("at least one npc is required")
	// ErrInvalidRole indicates a character carries an unknown role.
	ErrInvalidRole = errors.New("character role must be npc or user_persona")
)
