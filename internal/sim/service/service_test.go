package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/sceneforge/internal/sim/domain"
	"github.com/louisbranch/sceneforge/internal/sim/genai"
	"github.com/louisbranch/sceneforge/internal/sim/mechanics"
	"github.com/louisbranch/sceneforge/internal/sim/storage"
	"github.com/louisbranch/sceneforge/internal/sim/storage/sqlite"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stubProvider map[string]CharacterProfile

func (p stubProvider) LoadCharacter(ctx context.Context, characterID, userID string) (CharacterProfile, error) {
	profile, ok := p[characterID]
	if !ok {
		return CharacterProfile{}, fmt.Errorf("character %s: %w", characterID, storage.ErrNotFound)
	}
	return profile, nil
}

type scriptedResponse struct {
	body string
	err  error
}

type scriptedProcessor struct {
	calls     int
	responses []scriptedResponse
}

func (s *scriptedProcessor) GenerateJSON(ctx context.Context, system, prompt string, shape map[string]any) (json.RawMessage, error) {
	if s.calls >= len(s.responses) {
		return nil, errors.New("no scripted response left")
	}
	response := s.responses[s.calls]
	s.calls++
	if response.err != nil {
		return nil, response.err
	}
	return json.RawMessage(response.body), nil
}

func (s *scriptedProcessor) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	return "", errors.New("unexpected text call")
}

func testProvider() stubProvider {
	return stubProvider{
		"char-hero": {
			Name:      "Aria",
			Backstory: "A drifter who reads people better than charts.",
			Stats:     map[string]any{"warmth": 12, "might": 3},
		},
		"char-keeper": {
			Name:      "Keeper Ilsa",
			Backstory: "Keeps the north lighthouse and its secrets.",
			Stats:     map[string]any{"warmth": 5, "presence": 6},
		},
	}
}

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "sim.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	if err := store.EnsureDefaults(context.Background(), testNow); err != nil {
		t.Fatalf("ensure defaults: %v", err)
	}
	return store
}

func newTestService(t *testing.T, store Store, fast, careful genai.Processor) *Service {
	t.Helper()
	router := genai.NewRouter(func(modelKey string) (genai.Processor, error) {
		switch modelKey {
		case "fast":
			return fast, nil
		case "careful":
			return careful, nil
		}
		return nil, fmt.Errorf("unknown model key %q", modelKey)
	})
	svc := New(store, testProvider(), router)
	svc.clock = func() time.Time { return testNow }
	counter := 0
	svc.idGenerator = func() (string, error) {
		counter++
		return fmt.Sprintf("id-%04d", counter), nil
	}
	return svc
}

func startTestSession(t *testing.T, svc *Service) domain.Session {
	t.Helper()
	session, err := svc.StartSession(context.Background(), StartSessionInput{
		OwnerUserID:     "user-1",
		PersonaID:       "char-hero",
		NPCIDs:          []string{"char-keeper"},
		Location:        "harbor",
		Intro:           "A fog horn sounds across the water.",
		FastModelKey:    "fast",
		CarefulModelKey: "careful",
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return session
}

func TestStartSessionSeedsSceneAndCharacters(t *testing.T) {
	store := openTestStore(t)
	svc := newTestService(t, store, &scriptedProcessor{}, &scriptedProcessor{})
	session := startTestSession(t, svc)
	ctx := context.Background()

	if session.CurrentTurnIndex != 0 {
		t.Errorf("turn index = %d, want 0", session.CurrentTurnIndex)
	}
	if session.RulesetID != domain.DefaultRulesetID {
		t.Errorf("ruleset = %q, want default", session.RulesetID)
	}

	scene, err := store.GetScene(ctx, session.CurrentSceneID)
	if err != nil {
		t.Fatalf("get scene: %v", err)
	}
	if scene.State[domain.StateKeyLocation] != "harbor" {
		t.Errorf("location = %v", scene.State[domain.StateKeyLocation])
	}
	present, ok := scene.State[domain.StateKeyPresentCharacters].([]any)
	if !ok || len(present) != 2 {
		t.Fatalf("present characters = %v", scene.State[domain.StateKeyPresentCharacters])
	}

	characters, err := store.ListCharacters(ctx, session.ID)
	if err != nil {
		t.Fatalf("list characters: %v", err)
	}
	if len(characters) != 2 {
		t.Fatalf("characters = %d, want 2", len(characters))
	}
	for _, character := range characters {
		switch character.CharacterID {
		case "char-hero":
			if character.Role != domain.RoleUserPersona {
				t.Errorf("hero role = %q", character.Role)
			}
			if warmth := statNumber(t, character.Stats, "warmth"); warmth != 10 {
				t.Errorf("hero warmth = %v, want clamped to 10", warmth)
			}
		case "char-keeper":
			if character.Role != domain.RoleNPC {
				t.Errorf("keeper role = %q", character.Role)
			}
		default:
			t.Errorf("unexpected character %q", character.CharacterID)
		}
	}

	event, err := store.GetEventByStep(ctx, session.ID, 0, domain.StepSessionStart)
	if err != nil {
		t.Fatalf("get session_start event: %v", err)
	}
	if event.Type != domain.EventSessionStart {
		t.Errorf("event type = %q", event.Type)
	}
}

func TestStartSessionRequiresNPC(t *testing.T) {
	store := openTestStore(t)
	svc := newTestService(t, store, &scriptedProcessor{}, &scriptedProcessor{})

	_, err := svc.StartSession(context.Background(), StartSessionInput{
		OwnerUserID: "user-1",
		PersonaID:   "char-hero",
		Location:    "harbor",
	})
	if !errors.Is(err, domain.ErrNoNPCs) {
		t.Fatalf("error = %v, want ErrNoNPCs", err)
	}
}

func TestStartSessionInvalidSeedPersistsNothing(t *testing.T) {
	store := openTestStore(t)
	svc := newTestService(t, store, &scriptedProcessor{}, &scriptedProcessor{})

	_, err := svc.StartSession(context.Background(), StartSessionInput{
		OwnerUserID: "user-1",
		PersonaID:   "char-hero",
		NPCIDs:      []string{"char-keeper"},
		// Empty location violates the scene schema's minLength.
		Location: "",
	})
	if !errors.Is(err, mechanics.ErrSchema) {
		t.Fatalf("error = %v, want schema violation", err)
	}

	// The id generator produced the would-be session id first.
	if _, err := store.GetSession(context.Background(), "id-0001"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("session lookup = %v, want ErrNotFound", err)
	}
}

func TestStartSessionUnknownCharacter(t *testing.T) {
	store := openTestStore(t)
	svc := newTestService(t, store, &scriptedProcessor{}, &scriptedProcessor{})

	_, err := svc.StartSession(context.Background(), StartSessionInput{
		OwnerUserID: "user-1",
		PersonaID:   "char-hero",
		NPCIDs:      []string{"char-ghost"},
		Location:    "harbor",
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestConfigureSessionModels(t *testing.T) {
	store := openTestStore(t)
	svc := newTestService(t, store, &scriptedProcessor{}, &scriptedProcessor{})
	session := startTestSession(t, svc)
	ctx := context.Background()

	updated, err := svc.ConfigureSessionModels(ctx, session.ID, "user-1", "fast-2", "careful-2")
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	if !updated {
		t.Fatal("configure reported false for the owner")
	}
	reloaded, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if reloaded.FastModelKey != "fast-2" || reloaded.CarefulModelKey != "careful-2" {
		t.Errorf("model keys = %q/%q", reloaded.FastModelKey, reloaded.CarefulModelKey)
	}

	updated, err = svc.ConfigureSessionModels(ctx, session.ID, "user-2", "x", "y")
	if err != nil {
		t.Fatalf("configure as stranger: %v", err)
	}
	if updated {
		t.Fatal("configure reported true for a non-owner")
	}
}

func TestIsValidationError(t *testing.T) {
	validation := []error{
		domain.ErrEmptyAction,
		domain.ErrEmptyActionID,
		domain.ErrNoNPCs,
		fmt.Errorf("load session: %w", storage.ErrNotFound),
		fmt.Errorf("post-turn state: %w", mechanics.ErrSchema),
	}
	for _, err := range validation {
		if !IsValidationError(err) {
			t.Errorf("IsValidationError(%v) = false", err)
		}
	}
	if IsValidationError(storage.ErrConflict) {
		t.Error("conflict classified as validation error")
	}
	if IsValidationError(&genai.StepError{Step: domain.StepNarrator}) {
		t.Error("step error classified as validation error")
	}
}

func statNumber(t *testing.T, stats map[string]any, key string) float64 {
	t.Helper()
	switch v := stats[key].(type) {
	case int:
		return float64(v)
	case float64:
		return v
	default:
		t.Fatalf("stat %s = %T(%v)", key, stats[key], stats[key])
		return 0
	}
}
