// Package service implements the turn engine: session start, the per-turn
// pipeline, and model-routing configuration. One user action becomes exactly
// one committed, idempotent state transition.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/sceneforge/internal/sim/domain"
	"github.com/louisbranch/sceneforge/internal/sim/genai"
	"github.com/louisbranch/sceneforge/internal/sim/mechanics"
	"github.com/louisbranch/sceneforge/internal/sim/storage"
)

// Store is the persistence surface the engine needs.
type Store interface {
	storage.RulesetStore
	storage.SessionStore
	storage.SceneStore
	storage.ObservationStore
	storage.EventStore
	storage.TurnStore
}

// CharacterProfile is the external character data consumed at session start.
type CharacterProfile struct {
	Name      string
	Backstory string
	Stats     map[string]any
}

// CharacterProvider loads character profiles from outside the engine.
type CharacterProvider interface {
	LoadCharacter(ctx context.Context, characterID, userID string) (CharacterProfile, error)
}

// Service coordinates generation steps, mechanics, and storage.
type Service struct {
	store    Store
	provider CharacterProvider
	router   *genai.Router

	clock       func() time.Time
	idGenerator func() (string, error)
	tracer      trace.Tracer
}

// New creates a turn engine backed by store, provider, and router.
func New(store Store, provider CharacterProvider, router *genai.Router) *Service {
	return &Service{
		store:    store,
		provider: provider,
		router:   router,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		idGenerator: func() (string, error) {
			id, err := uuid.NewRandom()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
		tracer: otel.Tracer("sceneforge/sim"),
	}
}

// StartSessionInput captures everything needed to open a session.
type StartSessionInput struct {
	OwnerUserID string
	// PersonaID is the user-driven character.
	PersonaID string
	// NPCIDs are the generation-driven characters; at least one is required.
	NPCIDs []string
	// RulesetID and WorldLoreID default to the seeded rows when empty.
	RulesetID   string
	WorldLoreID string
	// Location seeds the scene's starting location.
	Location string
	// Intro is free-form opening context recorded on the session_start event.
	Intro string
	// FastModelKey and CarefulModelKey route generation steps.
	FastModelKey    string
	CarefulModelKey string
}

// StartSession derives stat blocks, seeds and validates the first scene, and
// persists the session atomically. Nothing is written when validation fails.
func (s *Service) StartSession(ctx context.Context, input StartSessionInput) (domain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "sim.StartSession")
	defer span.End()

	if len(input.NPCIDs) == 0 {
		return domain.Session{}, domain.ErrNoNPCs
	}
	if strings.TrimSpace(input.OwnerUserID) == "" {
		return domain.Session{}, fmt.Errorf("start session: owner user id is required")
	}
	if strings.TrimSpace(input.PersonaID) == "" {
		return domain.Session{}, fmt.Errorf("start session: persona id is required")
	}

	rulesetID := input.RulesetID
	if rulesetID == "" {
		rulesetID = domain.DefaultRulesetID
	}
	worldLoreID := input.WorldLoreID
	if worldLoreID == "" {
		worldLoreID = domain.DefaultWorldLoreID
	}

	ruleset, err := s.store.GetRuleset(ctx, rulesetID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("start session: load ruleset %s: %w", rulesetID, err)
	}
	if _, err := s.store.GetWorldLore(ctx, worldLoreID); err != nil {
		return domain.Session{}, fmt.Errorf("start session: load world lore %s: %w", worldLoreID, err)
	}

	sessionID, err := s.idGenerator()
	if err != nil {
		return domain.Session{}, fmt.Errorf("start session: generate id: %w", err)
	}

	characters, err := s.buildCharacters(ctx, sessionID, input, ruleset)
	if err != nil {
		return domain.Session{}, err
	}

	state := seedSceneState(input.Location, characters)
	if err := mechanics.ValidateSchema(state, ruleset.SceneSchema); err != nil {
		return domain.Session{}, fmt.Errorf("start session: scene seed: %w", err)
	}

	sceneID, err := s.idGenerator()
	if err != nil {
		return domain.Session{}, fmt.Errorf("start session: generate id: %w", err)
	}
	eventID, err := s.idGenerator()
	if err != nil {
		return domain.Session{}, fmt.Errorf("start session: generate id: %w", err)
	}

	now := s.clock()
	session := domain.Session{
		ID:               sessionID,
		OwnerUserID:      input.OwnerUserID,
		RulesetID:        rulesetID,
		WorldLoreID:      worldLoreID,
		CurrentSceneID:   sceneID,
		CurrentTurnIndex: 0,
		FastModelKey:     input.FastModelKey,
		CarefulModelKey:  input.CarefulModelKey,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	scene := domain.Scene{
		ID:         sceneID,
		SessionID:  sessionID,
		SceneIndex: 0,
		State:      state,
		CreatedAt:  now,
	}

	payload, err := json.Marshal(map[string]any{
		"persona_id": input.PersonaID,
		"npc_ids":    input.NPCIDs,
		"intro":      input.Intro,
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("start session: encode event payload: %w", err)
	}
	event := domain.TurnEvent{
		ID:          eventID,
		SessionID:   sessionID,
		SceneID:     sceneID,
		TurnIndex:   0,
		Type:        domain.EventSessionStart,
		Step:        domain.StepSessionStart,
		PayloadJSON: payload,
		Timestamp:   now,
	}

	if err := s.store.CreateSession(ctx, session, scene, characters, event); err != nil {
		return domain.Session{}, fmt.Errorf("start session: persist: %w", err)
	}
	span.SetAttributes(attribute.String("session.id", sessionID))
	return session, nil
}

// buildCharacters loads profiles and derives clamped stat blocks, persona
// first, NPCs in the given order.
func (s *Service) buildCharacters(ctx context.Context, sessionID string, input StartSessionInput, ruleset domain.Ruleset) ([]domain.CharacterRuntime, error) {
	ids := append([]string{input.PersonaID}, input.NPCIDs...)
	characters := make([]domain.CharacterRuntime, 0, len(ids))
	for i, characterID := range ids {
		profile, err := s.provider.LoadCharacter(ctx, characterID, input.OwnerUserID)
		if err != nil {
			return nil, fmt.Errorf("start session: load character %s: %w", characterID, err)
		}
		role := domain.RoleNPC
		if i == 0 {
			role = domain.RoleUserPersona
		}
		characters = append(characters, domain.CharacterRuntime{
			CharacterID: characterID,
			SessionID:   sessionID,
			Name:        profile.Name,
			Role:        role,
			Backstory:   profile.Backstory,
			Stats:       domain.DeriveStats(profile.Stats, ruleset.CharacterSchema),
		})
	}
	return characters, nil
}

// seedSceneState builds the initial scene state: the present-character list,
// zeroed pairwise relations, a zeroed pressure clock, and zero elapsed time.
func seedSceneState(location string, characters []domain.CharacterRuntime) map[string]any {
	present := make([]any, 0, len(characters))
	for _, character := range characters {
		present = append(present, character.CharacterID)
	}
	relations := map[string]any{}
	for _, from := range characters {
		for _, to := range characters {
			if from.CharacterID == to.CharacterID {
				continue
			}
			relations[relationKey(from.CharacterID, to.CharacterID)] = 0
		}
	}
	return map[string]any{
		domain.StateKeyLocation:          location,
		domain.StateKeyPressureClock:     0,
		domain.StateKeyPresentCharacters: present,
		domain.StateKeyRelations:         relations,
		domain.StateKeyElapsedMinutes:    0,
	}
}

// relationKey names one directed relation inside scene state.
func relationKey(fromID, toID string) string {
	return fromID + "|" + toID
}

// splitRelationKey is the inverse of relationKey; ok is false for keys that
// do not name a directed pair.
func splitRelationKey(key string) (fromID, toID string, ok bool) {
	fromID, toID, ok = strings.Cut(key, "|")
	if !ok || fromID == "" || toID == "" {
		return "", "", false
	}
	return fromID, toID, true
}

// ConfigureSessionModels updates the routing keys for a session owned by
// userID. It reports false when the session is missing or owned by someone
// else.
func (s *Service) ConfigureSessionModels(ctx context.Context, sessionID, userID, fastKey, carefulKey string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "sim.ConfigureSessionModels",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	if strings.TrimSpace(fastKey) == "" || strings.TrimSpace(carefulKey) == "" {
		return false, fmt.Errorf("configure session models: both model keys are required")
	}
	updated, err := s.store.UpdateSessionModels(ctx, sessionID, userID, fastKey, carefulKey)
	if err != nil {
		return false, fmt.Errorf("configure session models: %w", err)
	}
	return updated, nil
}

// IsValidationError reports whether err is a caller error that must not be
// retried.
func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, domain.ErrEmptyAction),
		errors.Is(err, domain.ErrEmptyActionID),
		errors.Is(err, domain.ErrNoNPCs),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, mechanics.ErrSchema):
		return true
	}
	return false
}
