package domain

import "time"

// Session is the root record for one ongoing simulation. The current scene
// pointer and turn index advance only through a committed turn; model routing
// keys change only through an explicit configuration update.
type Session struct {
	// ID is the session identifier.
	ID string
	// OwnerUserID is the user who started the session.
	OwnerUserID string
	// RulesetID selects the rulebook and schemas governing this session.
	RulesetID string
	// WorldLoreID selects the world-lore snippet fed to generation steps.
	WorldLoreID string
	// CurrentSceneID points at the single current scene.
	CurrentSceneID string
	// CurrentTurnIndex counts committed turns, starting at 0.
	CurrentTurnIndex int
	// FastModelKey routes cheap, high-volume generation steps.
	FastModelKey string
	// CarefulModelKey routes adjudication and narration steps.
	CarefulModelKey string
	// CreatedAt is when the session was started.
	CreatedAt time.Time
	// UpdatedAt is when the session last advanced.
	UpdatedAt time.Time
}

// TurnResult is the contract a transport layer renders to the end user after
// a committed (or idempotently replayed) turn.
type TurnResult struct {
	SessionID string
	TurnIndex int
	SceneID   string
	Narration string
	// Suggestions holds up to three suggested next actions.
	Suggestions []string
	// MetaText is a human-readable summary of outcomes, rolls, and state
	// changes. It is for debugging and auditing, never for engine logic.
	MetaText string
}
