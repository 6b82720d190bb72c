package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/sceneforge/internal/sim/domain"
	"github.com/louisbranch/sceneforge/internal/sim/genai"
	"github.com/louisbranch/sceneforge/internal/sim/mechanics"
	"github.com/louisbranch/sceneforge/internal/sim/storage"
)

// observationWindow bounds how many recent observations per character feed
// the generation steps.
const observationWindow = 12

// checkExpression is the skill-check die.
const checkExpression = "1d20"

// RunTurn executes one user action end to end: idempotency gate, load, move
// construction, adjudication, deterministic resolution, narration, state
// application, suggestions, and the CAS-guarded atomic commit. Nothing is
// persisted until the commit.
func (s *Service) RunTurn(ctx context.Context, sessionID, userID, userAction, userActionID string) (domain.TurnResult, error) {
	ctx, span := s.tracer.Start(ctx, "sim.RunTurn",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	userAction = strings.TrimSpace(userAction)
	if userAction == "" {
		return domain.TurnResult{}, domain.ErrEmptyAction
	}
	if strings.TrimSpace(userActionID) == "" {
		return domain.TurnResult{}, domain.ErrEmptyActionID
	}

	committed, err := s.store.HasCommittedAction(ctx, sessionID, userActionID)
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("run turn: idempotency check: %w", err)
	}
	if committed {
		result, err := s.store.GetCommittedResult(ctx, sessionID, userActionID)
		if err != nil {
			return domain.TurnResult{}, fmt.Errorf("run turn: load committed result: %w", err)
		}
		return result, nil
	}

	load, err := s.loadTurnContext(ctx, sessionID, userID)
	if err != nil {
		return domain.TurnResult{}, err
	}

	turnIndex := load.session.CurrentTurnIndex + 1
	span.SetAttributes(attribute.Int("turn.index", turnIndex))

	fast, err := s.router.Resolve(load.session.FastModelKey)
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("run turn: %w", err)
	}
	careful, err := s.router.Resolve(load.session.CarefulModelKey)
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("run turn: %w", err)
	}

	var events []domain.TurnEvent

	userPayload, err := json.Marshal(map[string]any{"action": userAction})
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("run turn: encode action: %w", err)
	}
	events = append(events, domain.TurnEvent{
		Type:         domain.EventUserAction,
		Step:         domain.StepUserAction,
		PayloadJSON:  userPayload,
		UserActionID: userActionID,
	})

	userMove := domain.SceneMove{
		ID:          domain.MoveID(load.persona.CharacterID, 0),
		ActorID:     load.persona.CharacterID,
		Type:        domain.MoveTypeAction,
		Target:      inferMoveTarget(userAction, load.persona.CharacterID, load.characters),
		Description: userAction,
		Source:      domain.MoveSourceUser,
	}
	moves := []domain.SceneMove{userMove}

	for _, npc := range load.npcs {
		ordinal := len(moves)
		result, err := genai.CharacterMove(ctx, fast, genai.CharacterMoveInput{
			Character:         npc,
			PresentCharacters: load.characters,
			SceneState:        load.scene.State,
			Observations:      load.observations[npc.CharacterID],
			UserMove:          userMove,
			Lore:              load.lore,
		})
		if err != nil {
			return domain.TurnResult{}, fmt.Errorf("run turn: %w", err)
		}
		moves = append(moves, domain.SceneMove{
			ID:          domain.MoveID(npc.CharacterID, ordinal),
			ActorID:     npc.CharacterID,
			Type:        result.Type,
			Target:      resolveMoveTarget(result.Target, load.characters),
			Description: result.Description,
			Source:      domain.MoveSourceCharacter,
		})
		events = append(events, domain.TurnEvent{
			Type:          domain.EventModelOutput,
			Step:          domain.StepCharacterAction,
			PayloadJSON:   result.Raw,
			ModelKey:      load.session.FastModelKey,
			PromptVersion: genai.PromptVersion,
		})
	}

	adjudication, err := genai.Adjudicate(ctx, careful, genai.AdjudicationInput{
		Moves:        moves,
		Characters:   load.characters,
		SceneState:   load.scene.State,
		Ruleset:      load.ruleset,
		Observations: load.allObservations,
	})
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("run turn: %w", err)
	}
	adjudications, defaulted := keyAdjudications(moves, adjudication.Adjudications)
	if len(defaulted) > 0 {
		log.Printf("run turn: session %s turn %d: defaulted %d move(s) to automatic success: %s",
			sessionID, turnIndex, len(defaulted), strings.Join(defaulted, ", "))
	}
	adjudicationPayload, err := json.Marshal(map[string]any{
		"output":             json.RawMessage(adjudication.Raw),
		"defaulted_move_ids": defaulted,
	})
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("run turn: encode adjudication: %w", err)
	}
	events = append(events, domain.TurnEvent{
		Type:          domain.EventModelOutput,
		Step:          domain.StepGMResolution,
		PayloadJSON:   adjudicationPayload,
		ModelKey:      load.session.CarefulModelKey,
		PromptVersion: genai.PromptVersion,
	})

	outcomes, dicePayload, err := s.resolveOutcomes(sessionID, turnIndex, userActionID, moves, adjudications, load)
	if err != nil {
		return domain.TurnResult{}, err
	}
	if dicePayload != nil {
		events = append(events, domain.TurnEvent{
			Type:        domain.EventToolCall,
			Step:        domain.StepDice,
			PayloadJSON: dicePayload,
		})
	}

	narration, err := genai.Narrate(ctx, careful, genai.NarrationInput{
		UserMove:   userMove,
		Outcomes:   outcomes,
		Characters: load.characters,
		SceneState: load.scene.State,
		Lore:       load.lore,
	})
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("run turn: %w", err)
	}
	events = append(events, domain.TurnEvent{
		Type:          domain.EventModelOutput,
		Step:          domain.StepNarrator,
		PayloadJSON:   narration.Raw,
		ModelKey:      load.session.CarefulModelKey,
		PromptVersion: genai.PromptVersion,
	})

	stateOps := mechanics.NormalizeStateOps(narration.StateOps)
	newState, err := mechanics.ApplyStateOps(load.scene.State, stateOps)
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("run turn: apply state ops: %w", err)
	}
	if err := mechanics.ValidateSchema(newState, load.ruleset.SceneSchema); err != nil {
		return domain.TurnResult{}, fmt.Errorf("run turn: post-turn state: %w", err)
	}
	statePayload, err := json.Marshal(map[string]any{"ops": stateOps})
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("run turn: encode state ops: %w", err)
	}
	events = append(events, domain.TurnEvent{
		Type:        domain.EventStateApply,
		Step:        domain.StepStateApply,
		PayloadJSON: statePayload,
	})

	suggestions := s.suggestNextActions(ctx, fast, load, narration.Narration, outcomes, &events)

	newSceneID, err := s.idGenerator()
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("run turn: generate id: %w", err)
	}
	now := s.clock()
	newScene := domain.Scene{
		ID:         newSceneID,
		SessionID:  sessionID,
		SceneIndex: load.scene.SceneIndex + 1,
		State:      newState,
		CreatedAt:  now,
	}

	result := domain.TurnResult{
		SessionID:   sessionID,
		TurnIndex:   turnIndex,
		SceneID:     newSceneID,
		Narration:   narration.Narration,
		Suggestions: suggestions,
		MetaText:    buildMetaText(outcomes, stateOps),
	}

	params := storage.CommitTurnParams{
		SessionID:         sessionID,
		ExpectedSceneID:   load.scene.ID,
		ExpectedTurnIndex: load.session.CurrentTurnIndex,
		NewScene:          newScene,
		NewTurnIndex:      turnIndex,
		Result:            result,
		UserActionID:      userActionID,
		Relations:         relationRecords(sessionID, newSceneID, newState),
		CommittedAt:       now,
	}

	params.Actions, err = s.actionRecords(sessionID, newSceneID, turnIndex, outcomes, now)
	if err != nil {
		return domain.TurnResult{}, err
	}
	params.Observations, err = s.observationRecords(sessionID, newSceneID, narration.Observations, now)
	if err != nil {
		return domain.TurnResult{}, err
	}
	params.Events, err = s.stampEvents(events, sessionID, newSceneID, turnIndex, now)
	if err != nil {
		return domain.TurnResult{}, err
	}

	if err := s.store.CommitTurn(ctx, params); err != nil {
		return domain.TurnResult{}, fmt.Errorf("run turn: commit: %w", err)
	}
	log.Printf("run turn: session %s committed turn %d (scene %s, %d move(s))",
		sessionID, turnIndex, newSceneID, len(outcomes))
	return result, nil
}

// turnContext is everything loaded before the pipeline runs.
type turnContext struct {
	session         domain.Session
	ruleset         domain.Ruleset
	lore            domain.WorldLore
	scene           domain.Scene
	characters      []domain.CharacterRuntime
	persona         domain.CharacterRuntime
	npcs            []domain.CharacterRuntime
	observations    map[string][]domain.WeightedObservation
	allObservations []domain.WeightedObservation
}

func (s *Service) loadTurnContext(ctx context.Context, sessionID, userID string) (turnContext, error) {
	var load turnContext

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return load, fmt.Errorf("run turn: load session %s: %w", sessionID, err)
	}
	if session.OwnerUserID != userID {
		return load, fmt.Errorf("run turn: load session %s: %w", sessionID, storage.ErrNotFound)
	}
	load.session = session

	if load.ruleset, err = s.store.GetRuleset(ctx, session.RulesetID); err != nil {
		return load, fmt.Errorf("run turn: load ruleset %s: %w", session.RulesetID, err)
	}
	if load.lore, err = s.store.GetWorldLore(ctx, session.WorldLoreID); err != nil {
		return load, fmt.Errorf("run turn: load world lore %s: %w", session.WorldLoreID, err)
	}
	if load.scene, err = s.store.GetScene(ctx, session.CurrentSceneID); err != nil {
		return load, fmt.Errorf("run turn: load scene %s: %w", session.CurrentSceneID, err)
	}
	if load.characters, err = s.store.ListCharacters(ctx, sessionID); err != nil {
		return load, fmt.Errorf("run turn: load characters: %w", err)
	}

	personaFound := false
	for _, character := range load.characters {
		switch character.Role {
		case domain.RoleUserPersona:
			load.persona = character
			personaFound = true
		case domain.RoleNPC:
			load.npcs = append(load.npcs, character)
		}
	}
	if !personaFound {
		return load, fmt.Errorf("run turn: session %s: %w", sessionID, domain.ErrInvalidRole)
	}

	now := s.clock()
	load.observations = make(map[string][]domain.WeightedObservation, len(load.characters))
	for _, character := range load.characters {
		recent, err := s.store.ListRecentObservations(ctx, sessionID, character.CharacterID, observationWindow)
		if err != nil {
			return load, fmt.Errorf("run turn: load observations for %s: %w", character.CharacterID, err)
		}
		weighted := mechanics.WeighObservations(recent, now)
		load.observations[character.CharacterID] = weighted
		load.allObservations = append(load.allObservations, weighted...)
	}
	return load, nil
}

// inferMoveTarget scans the action text for a present character's name.
func inferMoveTarget(action, actorID string, characters []domain.CharacterRuntime) string {
	lowered := strings.ToLower(action)
	for _, character := range characters {
		if character.CharacterID == actorID || character.Name == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(character.Name)) {
			return character.CharacterID
		}
	}
	return domain.TargetScene
}

// resolveMoveTarget keeps a generated target only when it names a present
// character.
func resolveMoveTarget(target string, characters []domain.CharacterRuntime) string {
	for _, character := range characters {
		if character.CharacterID == target {
			return target
		}
	}
	return domain.TargetScene
}

// keyAdjudications pairs every move with its adjudication, defaulting moves
// the GM step omitted to automatic success.
func keyAdjudications(moves []domain.SceneMove, returned []domain.MoveAdjudication) (map[string]domain.MoveAdjudication, []string) {
	byID := make(map[string]domain.MoveAdjudication, len(returned))
	for _, adjudication := range returned {
		byID[adjudication.MoveID] = adjudication
	}

	var defaulted []string
	for _, move := range moves {
		if _, ok := byID[move.ID]; ok {
			continue
		}
		byID[move.ID] = domain.MoveAdjudication{
			MoveID:        move.ID,
			RequiresCheck: false,
			Auto:          domain.AutoSuccess,
			Defaulted:     true,
			Reasoning:     "no ruling returned",
		}
		defaulted = append(defaulted, move.ID)
	}
	return byID, defaulted
}

// diceResult is one resolved check inside the tool_call event payload.
type diceResult struct {
	MoveID     string `json:"move_id"`
	Ordinal    int    `json:"ordinal"`
	Expression string `json:"expression"`
	Rolls      []int  `json:"rolls"`
	Modifier   int    `json:"modifier"`
	Total      int    `json:"total"`
	Difficulty int    `json:"difficulty"`
	Success    bool   `json:"success"`
}

// resolveOutcomes applies the adjudications deterministically: seeded 1d20
// checks for rolls, explicit auto outcomes otherwise. Roll ordinals increase
// in move order so a committed turn always replays identically.
func (s *Service) resolveOutcomes(sessionID string, turnIndex int, userActionID string, moves []domain.SceneMove, adjudications map[string]domain.MoveAdjudication, load turnContext) ([]domain.MoveOutcome, []byte, error) {
	stats := make(map[string]map[string]any, len(load.characters))
	for _, character := range load.characters {
		stats[character.CharacterID] = character.Stats
	}

	outcomes := make([]domain.MoveOutcome, 0, len(moves))
	var rolls []diceResult
	ordinal := 0
	for _, move := range moves {
		adjudication := adjudications[move.ID]
		outcome := domain.MoveOutcome{Move: move, Reasoning: adjudication.Reasoning}

		if !adjudication.RequiresCheck {
			outcome.Success = adjudication.Auto == domain.AutoSuccess
			outcomes = append(outcomes, outcome)
			continue
		}

		modifier := mechanics.ResolveSkillModifier(adjudication.Skill, stats[move.ActorID])
		seed := mechanics.DeriveTurnSeed(sessionID, turnIndex, userActionID, ordinal)
		roll, err := mechanics.RollDice(checkExpression, seed)
		if err != nil {
			return nil, nil, fmt.Errorf("run turn: roll for %s: %w", move.ID, err)
		}
		total := roll.Total + modifier
		expression := mechanics.DiceExpression{Count: 1, Sides: 20, Modifier: modifier}.String()
		outcome.Success = total >= adjudication.Difficulty
		outcome.Check = &domain.RollDetails{
			Expression: expression,
			Rolls:      roll.Rolls,
			Modifier:   modifier,
			Total:      total,
			Difficulty: adjudication.Difficulty,
		}
		rolls = append(rolls, diceResult{
			MoveID:     move.ID,
			Ordinal:    ordinal,
			Expression: expression,
			Rolls:      roll.Rolls,
			Modifier:   modifier,
			Total:      total,
			Difficulty: adjudication.Difficulty,
			Success:    outcome.Success,
		})
		ordinal++
		outcomes = append(outcomes, outcome)
	}

	if len(rolls) == 0 {
		return outcomes, nil, nil
	}
	payload, err := json.Marshal(map[string]any{"rolls": rolls})
	if err != nil {
		return nil, nil, fmt.Errorf("run turn: encode dice payload: %w", err)
	}
	return outcomes, payload, nil
}

// suggestNextActions runs the suggestion step and normalizes its output,
// falling back to fixed suggestions on any failure. This is the only step
// allowed to fail without aborting the turn.
func (s *Service) suggestNextActions(ctx context.Context, fast genai.Processor, load turnContext, narration string, outcomes []domain.MoveOutcome, events *[]domain.TurnEvent) []string {
	result, err := genai.Suggest(ctx, fast, genai.SuggestionInput{
		Narration:  narration,
		Outcomes:   outcomes,
		Persona:    load.persona,
		SceneState: load.scene.State,
	})
	if err != nil {
		log.Printf("run turn: session %s: suggestion step failed, using fallback: %v", load.session.ID, err)
		return fallbackSuggestions()
	}
	suggestions := normalizeSuggestions(result.Suggestions)
	if len(suggestions) == 0 {
		return fallbackSuggestions()
	}
	*events = append(*events, domain.TurnEvent{
		Type:          domain.EventModelOutput,
		Step:          domain.StepSuggestions,
		PayloadJSON:   result.Raw,
		ModelKey:      load.session.FastModelKey,
		PromptVersion: genai.PromptVersion,
	})
	return suggestions
}

// actionRecords builds one persisted action row per resolved move.
func (s *Service) actionRecords(sessionID, sceneID string, turnIndex int, outcomes []domain.MoveOutcome, now time.Time) ([]storage.ActionRecord, error) {
	records := make([]storage.ActionRecord, 0, len(outcomes))
	for _, outcome := range outcomes {
		id, err := s.idGenerator()
		if err != nil {
			return nil, fmt.Errorf("run turn: generate id: %w", err)
		}
		records = append(records, storage.ActionRecord{
			ID:        id,
			SessionID: sessionID,
			SceneID:   sceneID,
			TurnIndex: turnIndex,
			MoveID:    outcome.Move.ID,
			ActorID:   outcome.Move.ActorID,
			Summary:   outcomeSummary(outcome),
			CreatedAt: now,
		})
	}
	return records, nil
}

// observationRecords turns narration-authored observations into persisted
// rows.
func (s *Service) observationRecords(sessionID, sceneID string, observations []genai.NarrationObservation, now time.Time) ([]domain.Observation, error) {
	records := make([]domain.Observation, 0, len(observations))
	for _, observation := range observations {
		id, err := s.idGenerator()
		if err != nil {
			return nil, fmt.Errorf("run turn: generate id: %w", err)
		}
		records = append(records, domain.Observation{
			ID:          id,
			SessionID:   sessionID,
			SceneID:     sceneID,
			CharacterID: observation.CharacterID,
			Content:     observation.Content,
			Importance:  observation.Importance,
			CreatedAt:   now,
		})
	}
	return records, nil
}

// relationRecords snapshots the numeric relation entries of the new scene
// state.
func relationRecords(sessionID, sceneID string, state map[string]any) []storage.RelationRecord {
	relations, _ := state[domain.StateKeyRelations].(map[string]any)
	records := make([]storage.RelationRecord, 0, len(relations))
	for key, value := range relations {
		fromID, toID, ok := splitRelationKey(key)
		if !ok {
			continue
		}
		number, ok := asRelationValue(value)
		if !ok {
			continue
		}
		records = append(records, storage.RelationRecord{
			SessionID: sessionID,
			SceneID:   sceneID,
			FromID:    fromID,
			ToID:      toID,
			Value:     number,
		})
	}
	return records
}

func asRelationValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// stampEvents assigns ids, scene/turn scope, and the commit timestamp to the
// turn's ordered events.
func (s *Service) stampEvents(events []domain.TurnEvent, sessionID, sceneID string, turnIndex int, now time.Time) ([]domain.TurnEvent, error) {
	stamped := make([]domain.TurnEvent, 0, len(events))
	for _, event := range events {
		id, err := s.idGenerator()
		if err != nil {
			return nil, fmt.Errorf("run turn: generate id: %w", err)
		}
		event.ID = id
		event.SessionID = sessionID
		event.SceneID = sceneID
		event.TurnIndex = turnIndex
		event.Timestamp = now
		stamped = append(stamped, event)
	}
	return stamped, nil
}
