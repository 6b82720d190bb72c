package domain

import "time"

// Observation importance bounds.
const (
	MinImportance = 1
	MaxImportance = 5
)

// Observation is a scene-scoped memory fact for one character, written by the
// narration step and read back with exponential time-decay weighting to bound
// what the character-move step remembers.
type Observation struct {
	// ID is the observation identifier.
	ID string
	// SessionID is the owning session.
	SessionID string
	// SceneID is the scene the fact was observed in.
	SceneID string
	// CharacterID is the remembering character.
	CharacterID string
	// Content is the remembered fact.
	Content string
	// Importance weighs retrieval priority (MinImportance..MaxImportance).
	Importance int
	// Reinforcement counts repeat observations of the same fact.
	Reinforcement int
	// CreatedAt anchors the decay curve.
	CreatedAt time.Time
}

// WeightedObservation pairs an observation with its decayed retrieval weight.
type WeightedObservation struct {
	Observation Observation
	Weight      float64
}
