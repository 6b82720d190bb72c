package genai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/louisbranch/sceneforge/internal/sim/domain"
	"github.com/louisbranch/sceneforge/internal/sim/mechanics"
)

// PromptVersion tags model-output events with the prompt revision that
// produced them.
const PromptVersion = "v1"

// CharacterMoveInput is the context handed to the character-action step for
// one NPC.
type CharacterMoveInput struct {
	Character         domain.CharacterRuntime
	PresentCharacters []domain.CharacterRuntime
	SceneState        map[string]any
	Observations      []domain.WeightedObservation
	UserMove          domain.SceneMove
	Lore              domain.WorldLore
}

// CharacterMoveResult is the parsed character-action output, plus the raw
// JSON for the event journal.
type CharacterMoveResult struct {
	Type        domain.MoveType
	Target      string
	Description string
	Raw         json.RawMessage
}

type characterMovePayload struct {
	Type        string `json:"type"`
	Target      string `json:"target"`
	Description string `json:"description"`
}

func characterMoveShape() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"type", "description"},
		"properties": map[string]any{
			"type":        map[string]any{"type": "string", "minLength": 1},
			"target":      map[string]any{"type": "string"},
			"description": map[string]any{"type": "string", "minLength": 1},
		},
	}
}

// CharacterMove runs the character-action step for one NPC.
func CharacterMove(ctx context.Context, p Processor, in CharacterMoveInput) (CharacterMoveResult, error) {
	system, prompt := characterMovePrompt(in)
	shape := characterMoveShape()

	return retryStep(ctx, domain.StepCharacterAction, func() (CharacterMoveResult, error) {
		raw, err := p.GenerateJSON(ctx, system, prompt, shape)
		if err != nil {
			return CharacterMoveResult{}, err
		}
		var payload characterMovePayload
		if err := decodeStep(raw, shape, &payload); err != nil {
			return CharacterMoveResult{}, err
		}
		moveType := domain.MoveType(payload.Type)
		if moveType != domain.MoveTypeAction && moveType != domain.MoveTypeReaction {
			return CharacterMoveResult{}, fmt.Errorf("invalid move type %q", payload.Type)
		}
		target := payload.Target
		if target == "" {
			target = domain.TargetScene
		}
		return CharacterMoveResult{
			Type:        moveType,
			Target:      target,
			Description: payload.Description,
			Raw:         raw,
		}, nil
	})
}

// AdjudicationInput is the context handed to the GM-resolution step: every
// move of the turn, adjudicated in one call.
type AdjudicationInput struct {
	Moves        []domain.SceneMove
	Characters   []domain.CharacterRuntime
	SceneState   map[string]any
	Ruleset      domain.Ruleset
	Observations []domain.WeightedObservation
}

// AdjudicationResult is the parsed GM-resolution output. Adjudications may
// cover a subset of the turn's moves; the engine defaults the rest.
type AdjudicationResult struct {
	Adjudications []domain.MoveAdjudication
	Raw           json.RawMessage
}

type adjudicationPayload struct {
	Adjudications []struct {
		MoveID        string `json:"move_id"`
		RequiresCheck bool   `json:"requires_check"`
		Skill         string `json:"skill"`
		Difficulty    int    `json:"difficulty"`
		AutoOutcome   string `json:"auto_outcome"`
		Reasoning     string `json:"reasoning"`
	} `json:"adjudications"`
}

func adjudicationShape() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"adjudications"},
		"properties": map[string]any{
			"adjudications": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"move_id", "requires_check"},
					"properties": map[string]any{
						"move_id":        map[string]any{"type": "string", "minLength": 1},
						"requires_check": map[string]any{"type": "boolean"},
						"skill":          map[string]any{"type": "string"},
						"difficulty":     map[string]any{"type": "integer"},
						"auto_outcome":   map[string]any{"type": "string"},
						"reasoning":      map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

// Adjudicate runs the GM-resolution step once for all of the turn's moves.
func Adjudicate(ctx context.Context, p Processor, in AdjudicationInput) (AdjudicationResult, error) {
	system, prompt := adjudicationPrompt(in)
	shape := adjudicationShape()

	return retryStep(ctx, domain.StepGMResolution, func() (AdjudicationResult, error) {
		raw, err := p.GenerateJSON(ctx, system, prompt, shape)
		if err != nil {
			return AdjudicationResult{}, err
		}
		var payload adjudicationPayload
		if err := decodeStep(raw, shape, &payload); err != nil {
			return AdjudicationResult{}, err
		}

		adjudications := make([]domain.MoveAdjudication, 0, len(payload.Adjudications))
		for _, item := range payload.Adjudications {
			adjudication := domain.MoveAdjudication{
				MoveID:        item.MoveID,
				RequiresCheck: item.RequiresCheck,
				Reasoning:     item.Reasoning,
			}
			if item.RequiresCheck {
				if item.Skill == "" {
					return AdjudicationResult{}, fmt.Errorf("adjudication %s requires a check but names no skill", item.MoveID)
				}
				adjudication.Skill = item.Skill
				adjudication.Difficulty = clampDifficulty(item.Difficulty)
			} else {
				switch domain.AutoOutcome(item.AutoOutcome) {
				case domain.AutoSuccess, domain.AutoFailure:
					adjudication.Auto = domain.AutoOutcome(item.AutoOutcome)
				default:
					return AdjudicationResult{}, fmt.Errorf("adjudication %s has invalid auto outcome %q", item.MoveID, item.AutoOutcome)
				}
			}
			adjudications = append(adjudications, adjudication)
		}
		return AdjudicationResult{Adjudications: adjudications, Raw: raw}, nil
	})
}

func clampDifficulty(difficulty int) int {
	if difficulty < domain.MinDifficulty {
		return domain.MinDifficulty
	}
	if difficulty > domain.MaxDifficulty {
		return domain.MaxDifficulty
	}
	return difficulty
}

// NarrationInput is the context handed to the narration step after every
// move has been resolved.
type NarrationInput struct {
	UserMove   domain.SceneMove
	Outcomes   []domain.MoveOutcome
	Characters []domain.CharacterRuntime
	SceneState map[string]any
	Lore       domain.WorldLore
}

// NarrationObservation is one memory fact authored by the narration step.
type NarrationObservation struct {
	CharacterID string `json:"character_id"`
	Content     string `json:"content"`
	Importance  int    `json:"importance"`
}

// NarrationResult is the parsed narration output: prose, memory facts, and
// the state operations that produce the next scene.
type NarrationResult struct {
	Narration    string
	Observations []NarrationObservation
	StateOps     []domain.StateOp
	Raw          json.RawMessage
}

type narrationPayload struct {
	Narration    string                 `json:"narration"`
	Observations []NarrationObservation `json:"observations"`
	StateOps     []domain.StateOp       `json:"state_ops"`
}

func narrationShape() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"narration"},
		"properties": map[string]any{
			"narration": map[string]any{"type": "string", "minLength": 1},
			"observations": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"character_id", "content", "importance"},
					"properties": map[string]any{
						"character_id": map[string]any{"type": "string", "minLength": 1},
						"content":      map[string]any{"type": "string", "minLength": 1},
						"importance":   map[string]any{"type": "integer"},
					},
				},
			},
			"state_ops": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"op", "path"},
					"properties": map[string]any{
						"op":   map[string]any{"type": "string", "minLength": 1},
						"path": map[string]any{"type": "string", "minLength": 1},
					},
				},
			},
		},
	}
}

// Narrate runs the narration step.
func Narrate(ctx context.Context, p Processor, in NarrationInput) (NarrationResult, error) {
	system, prompt := narrationPrompt(in)
	shape := narrationShape()

	return retryStep(ctx, domain.StepNarrator, func() (NarrationResult, error) {
		raw, err := p.GenerateJSON(ctx, system, prompt, shape)
		if err != nil {
			return NarrationResult{}, err
		}
		var payload narrationPayload
		if err := decodeStep(raw, shape, &payload); err != nil {
			return NarrationResult{}, err
		}
		for i, op := range payload.StateOps {
			if !op.Op.IsValid() {
				return NarrationResult{}, fmt.Errorf("state op %d has invalid op %q", i, op.Op)
			}
		}
		for i := range payload.Observations {
			payload.Observations[i].Importance = clampImportance(payload.Observations[i].Importance)
		}
		return NarrationResult{
			Narration:    payload.Narration,
			Observations: payload.Observations,
			StateOps:     payload.StateOps,
			Raw:          raw,
		}, nil
	})
}

func clampImportance(importance int) int {
	if importance < domain.MinImportance {
		return domain.MinImportance
	}
	if importance > domain.MaxImportance {
		return domain.MaxImportance
	}
	return importance
}

// SuggestionInput is the context handed to the suggestion step.
type SuggestionInput struct {
	Narration  string
	Outcomes   []domain.MoveOutcome
	Persona    domain.CharacterRuntime
	SceneState map[string]any
}

// SuggestionResult is the parsed suggestion output, pre-normalization.
type SuggestionResult struct {
	Suggestions []string
	Raw         json.RawMessage
}

type suggestionPayload struct {
	Suggestions []string `json:"suggestions"`
}

func suggestionShape() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"suggestions"},
		"properties": map[string]any{
			"suggestions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    map[string]any{"type": "string", "minLength": 1},
			},
		},
	}
}

// Suggest runs the suggestion step. Callers treat any error as soft and fall
// back to fixed suggestions.
func Suggest(ctx context.Context, p Processor, in SuggestionInput) (SuggestionResult, error) {
	system, prompt := suggestionPrompt(in)
	shape := suggestionShape()

	return retryStep(ctx, domain.StepSuggestions, func() (SuggestionResult, error) {
		raw, err := p.GenerateJSON(ctx, system, prompt, shape)
		if err != nil {
			return SuggestionResult{}, err
		}
		var payload suggestionPayload
		if err := decodeStep(raw, shape, &payload); err != nil {
			return SuggestionResult{}, err
		}
		return SuggestionResult{Suggestions: payload.Suggestions, Raw: raw}, nil
	})
}

// decodeStep checks raw against the step's output shape, then decodes it into
// the typed payload. Shape violations and malformed JSON are both treated as
// attempt failures.
func decodeStep(raw json.RawMessage, shape map[string]any, payload any) error {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("decode step output: %w", err)
	}
	if err := mechanics.ValidateSchema(generic, shape); err != nil {
		return fmt.Errorf("step output: %w", err)
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return fmt.Errorf("decode step output: %w", err)
	}
	return nil
}
