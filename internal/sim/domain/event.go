package domain

import "time"

// EventType identifies the kind of a turn event.
type EventType string

const (
	// EventSessionStart records the creation of a session and its first scene.
	EventSessionStart EventType = "session_start"
	// EventUserAction records the user's submitted action and its action id.
	EventUserAction EventType = "user_action"
	// EventModelOutput records a generation step's output.
	EventModelOutput EventType = "model_output"
	// EventToolCall records a deterministic mechanics invocation (dice).
	EventToolCall EventType = "tool_call"
	// EventStateApply records the state operations applied to produce the
	// next scene.
	EventStateApply EventType = "state_apply"
)

// Step names recorded on turn events.
const (
	StepSessionStart    = "session_start"
	StepUserAction      = "user_action"
	StepCharacterAction = "character_action"
	StepGMResolution    = "gm_resolution"
	StepNarrator        = "narrator"
	StepSuggestions     = "suggestions"
	StepDice            = "dice"
	StepStateApply      = "state_apply"
)

// TurnEvent is one append-only journal row. The journal is the system of
// record for idempotency and for reconstructing what happened in a turn.
type TurnEvent struct {
	// ID is the event identifier.
	ID string
	// SessionID is the owning session.
	SessionID string
	// SceneID is the scene the event was committed against.
	SceneID string
	// TurnIndex is the turn the event belongs to.
	TurnIndex int
	// Type identifies the kind of event.
	Type EventType
	// Step names the pipeline step that produced the event.
	Step string
	// PayloadJSON holds step-specific data as JSON.
	PayloadJSON []byte
	// ModelKey is the routing key used, empty for deterministic steps.
	ModelKey string
	// PromptVersion tags the prompt/schema revision that produced the output.
	PromptVersion string
	// UserActionID is the caller-supplied idempotency key, set on
	// EventUserAction rows.
	UserActionID string
	// Timestamp is when the event was committed.
	Timestamp time.Time
}
