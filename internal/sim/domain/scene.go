package domain

import "time"

// Scene is an immutable snapshot of simulated world state. A turn never edits
// a scene in place; it derives the next one from a deep copy.
type Scene struct {
	// ID is the scene identifier.
	ID string
	// SessionID is the owning session.
	SessionID string
	// SceneIndex increases strictly per session, starting at 0.
	SceneIndex int
	// State is the structured scene state validated against the ruleset's
	// scene schema: location, pressure clock, present characters, relations,
	// elapsed time.
	State map[string]any
	// CreatedAt is when the scene was committed.
	CreatedAt time.Time
}

// Well-known scene state keys seeded at session start.
const (
	StateKeyLocation          = "location"
	StateKeyPressureClock     = "pressure_clock"
	StateKeyPresentCharacters = "present_characters"
	StateKeyRelations         = "relations"
	StateKeyElapsedMinutes    = "elapsed_minutes"
)

// StateOpKind enumerates the declarative mutation vocabulary narration steps
// use to express world-state change without writing state directly.
type StateOpKind string

const (
	OpSet          StateOpKind = "set"
	OpIncrement    StateOpKind = "increment"
	OpDecrement    StateOpKind = "decrement"
	OpAppendUnique StateOpKind = "append_unique"
	OpRemoveValue  StateOpKind = "remove_value"
)

// IsValid reports whether the kind is part of the mutation vocabulary.
func (k StateOpKind) IsValid() bool {
	switch k {
	case OpSet, OpIncrement, OpDecrement, OpAppendUnique, OpRemoveValue:
		return true
	}
	return false
}

// StateOp is one declarative mutation against scene state at a dotted path.
type StateOp struct {
	Op    StateOpKind `json:"op"`
	Path  string      `json:"path"`
	Value any         `json:"value"`
}

// CopyState returns a deep copy of a scene state tree. Maps and slices are
// duplicated; scalar leaves are shared (they are immutable JSON values).
func CopyState(state map[string]any) map[string]any {
	if state == nil {
		return nil
	}
	out := make(map[string]any, len(state))
	for key, value := range state {
		out[key] = copyValue(value)
	}
	return out
}

func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return CopyState(v)
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = copyValue(item)
		}
		return items
	default:
		return v
	}
}
