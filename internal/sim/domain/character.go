package domain

// CharacterRole identifies who controls a character in the scene.
type CharacterRole string

const (
	// RoleNPC marks a character driven by the character-move generation step.
	RoleNPC CharacterRole = "npc"
	// RoleUserPersona marks the single character driven by the user.
	RoleUserPersona CharacterRole = "user_persona"
)

// IsValid reports whether the role is usable.
func (r CharacterRole) IsValid() bool {
	return r == RoleNPC || r == RoleUserPersona
}

// CharacterRuntime is a character's in-session runtime record. The stat block
// is derived once at session start and never mutated afterwards.
type CharacterRuntime struct {
	// CharacterID is the character identifier.
	CharacterID string
	// SessionID is the owning session.
	SessionID string
	// Name is the character's display name, used for move target inference.
	Name string
	// Role distinguishes NPCs from the user persona.
	Role CharacterRole
	// Backstory is free-form prompt context from the character profile.
	Backstory string
	// Stats maps named attributes to numeric/string/boolean/array/object
	// values, clamped to the ruleset's character schema bounds.
	Stats map[string]any
}

// DeriveStats builds a stat block from a character's raw stat values and the
// ruleset's character schema. Numeric values for schema-declared attributes
// are clamped to the schema's bounds; attributes absent from the raw values
// take the schema's default when one is declared. Attributes the schema does
// not mention pass through untouched.
func DeriveStats(raw map[string]any, characterSchema map[string]any) map[string]any {
	stats := CopyState(raw)
	if stats == nil {
		stats = map[string]any{}
	}

	properties, _ := characterSchema["properties"].(map[string]any)
	for name, propAny := range properties {
		prop, ok := propAny.(map[string]any)
		if !ok {
			continue
		}
		value, present := stats[name]
		if !present {
			if def, hasDefault := prop["default"]; hasDefault {
				stats[name] = copyValue(def)
			}
			continue
		}
		number, isNumber := asFloat(value)
		if !isNumber {
			continue
		}
		if min, ok := schemaBound(prop, "minimum", "min"); ok && number < min {
			number = min
		}
		if max, ok := schemaBound(prop, "maximum", "max"); ok && number > max {
			number = max
		}
		if _, isInt := value.(int); isInt {
			stats[name] = int(number)
		} else {
			stats[name] = number
		}
	}

	return stats
}

// schemaBound reads a numeric bound, accepting the legacy key as a fallback.
func schemaBound(prop map[string]any, key, legacyKey string) (float64, bool) {
	if value, ok := asFloat(prop[key]); ok {
		return value, true
	}
	return asFloat(prop[legacyKey])
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
