package domain

import "fmt"

// MoveType identifies how a move relates to the turn's flow.
type MoveType string

const (
	MoveTypeAction   MoveType = "action"
	MoveTypeReaction MoveType = "reaction"
)

// MoveSource identifies who authored a move.
type MoveSource string

const (
	MoveSourceUser      MoveSource = "user"
	MoveSourceCharacter MoveSource = "character"
)

// TargetScene is the default move target when no present character matches.
const TargetScene = "scene"

// SceneMove is one actor's declared move within a turn, prior to adjudication.
type SceneMove struct {
	// ID is stable and derivable from the actor and the move's ordinal
	// within the turn; see MoveID.
	ID string
	// ActorID is the character making the move.
	ActorID string
	// Type distinguishes initiating actions from reactions.
	Type MoveType
	// Target is a present character's id or TargetScene.
	Target string
	// Description is the declared move text.
	Description string
	// Source records whether the user or a generation step authored the move.
	Source MoveSource
}

// MoveID derives the stable move identifier for an actor's move at the given
// ordinal within a turn. Idempotent re-resolution of a turn must reproduce
// the same ids.
func MoveID(actorID string, ordinal int) string {
	return fmt.Sprintf("move-%s-%d", actorID, ordinal)
}

// AutoOutcome is a GM ruling that skips dice entirely.
type AutoOutcome string

const (
	AutoSuccess AutoOutcome = "success"
	AutoFailure AutoOutcome = "failure"
)

// Difficulty class bounds for skill checks.
const (
	MinDifficulty = 1
	MaxDifficulty = 40
)

// MoveAdjudication is the GM decision for one move: either a skill check
// with a difficulty class, or an explicit automatic outcome.
type MoveAdjudication struct {
	// MoveID keys the adjudication to its move.
	MoveID string
	// RequiresCheck is true when the move is resolved by dice.
	RequiresCheck bool
	// Skill names the skill rolled when RequiresCheck is true.
	Skill string
	// Difficulty is the difficulty class (MinDifficulty..MaxDifficulty).
	Difficulty int
	// Auto is the explicit outcome when RequiresCheck is false.
	Auto AutoOutcome
	// Defaulted is true when the GM step returned no adjudication for the
	// move and the engine fell back to automatic success.
	Defaulted bool
	// Reasoning is the GM's free-form justification.
	Reasoning string
}

// RollDetails captures a resolved skill check for auditing.
type RollDetails struct {
	// Expression is the dice expression rolled, e.g. "1d20+3".
	Expression string
	// Rolls holds the individual die results.
	Rolls []int
	// Modifier is the actor's resolved skill modifier.
	Modifier int
	// Total is the sum of rolls plus modifier.
	Total int
	// Difficulty is the difficulty class the total was checked against.
	Difficulty int
}

// MoveOutcome is the resolved result of one move.
type MoveOutcome struct {
	// Move echoes the adjudicated move.
	Move SceneMove
	// Success is the resolved pass/fail.
	Success bool
	// Check carries roll details when a skill check occurred, nil otherwise.
	Check *RollDetails
	// Reasoning explains the resolution for the narration step.
	Reasoning string
}
