package domain

import "time"

// Ruleset bundles the rulebook text and the schemas that constrain character
// stat blocks and scene state. Rulesets are persisted but externally editable.
type Ruleset struct {
	// ID is the ruleset identifier.
	ID string
	// Name is the display name.
	Name string
	// RulebookText is the prose rulebook fed to the GM step.
	RulebookText string
	// MechanicsGuidance is optional extra guidance for adjudication.
	MechanicsGuidance string
	// CharacterSchema constrains derived stat blocks.
	CharacterSchema map[string]any
	// SceneSchema constrains scene state; every seed and post-turn state
	// must validate against it before it may commit.
	SceneSchema map[string]any
	// CreatedAt is when the ruleset was stored.
	CreatedAt time.Time
}

// WorldLore is a descriptive world snippet with optional structured metadata.
type WorldLore struct {
	// ID is the world-lore identifier.
	ID string
	// Name is the display name.
	Name string
	// Description is the lore text fed to narration.
	Description string
	// Metadata holds optional structured lore facts.
	Metadata map[string]any
	// CreatedAt is when the lore was stored.
	CreatedAt time.Time
}

// Identifiers for the rows seeded on first use.
const (
	DefaultRulesetID   = "ruleset-default"
	DefaultWorldLoreID = "lore-default"
)

// DefaultRuleset returns the ruleset seeded when storage is first opened.
func DefaultRuleset(now time.Time) Ruleset {
	return Ruleset{
		ID:   DefaultRulesetID,
		Name: "Freeform d20",
		RulebookText: "Moves that are risky, contested, or uncertain require a skill check " +
			"against a difficulty class between 5 and 25. Social moves key off warmth or " +
			"presence; physical moves key off agility or might. Trivial or purely " +
			"conversational moves succeed automatically.",
		MechanicsGuidance: "Prefer checks only when failure would be interesting. " +
			"Reserve difficulty 20+ for near-impossible attempts.",
		CharacterSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"warmth":   map[string]any{"type": "integer", "minimum": 0, "maximum": 10},
				"presence": map[string]any{"type": "integer", "minimum": 0, "maximum": 10},
				"agility":  map[string]any{"type": "integer", "minimum": 0, "maximum": 10},
				"might":    map[string]any{"type": "integer", "minimum": 0, "maximum": 10},
			},
		},
		SceneSchema: map[string]any{
			"type":     "object",
			"required": []any{StateKeyLocation, StateKeyPressureClock, StateKeyPresentCharacters},
			"properties": map[string]any{
				StateKeyLocation:      map[string]any{"type": "string", "minLength": 1},
				StateKeyPressureClock: map[string]any{"type": "integer", "minimum": 0},
				StateKeyPresentCharacters: map[string]any{
					"type":     "array",
					"minItems": 1,
					"items":    map[string]any{"type": "string"},
				},
				StateKeyRelations: map[string]any{
					"type":                 "object",
					"additionalProperties": map[string]any{"type": "number"},
				},
				StateKeyElapsedMinutes: map[string]any{"type": "number", "minimum": 0},
			},
		},
		CreatedAt: now,
	}
}

// DefaultWorldLore returns the world lore seeded when storage is first opened.
func DefaultWorldLore(now time.Time) WorldLore {
	return WorldLore{
		ID:   DefaultWorldLoreID,
		Name: "The Lantern Coast",
		Description: "A fog-bound trade coast where lighthouse keepers barter in rumors " +
			"and every harbor town keeps one door unlocked for strangers.",
		Metadata: map[string]any{
			"tone":   "low-key, grounded, personal stakes",
			"period": "lantern-age",
		},
		CreatedAt: now,
	}
}
