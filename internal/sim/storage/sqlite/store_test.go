package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/sceneforge/internal/sim/domain"
	"github.com/louisbranch/sceneforge/internal/sim/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "sim.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func seedTestSession(t *testing.T, store *Store, sessionID string) (domain.Session, domain.Scene) {
	t.Helper()
	now := testClock()

	if err := store.EnsureDefaults(context.Background(), now); err != nil {
		t.Fatalf("ensure defaults: %v", err)
	}

	scene := domain.Scene{
		ID:        sessionID + "-scene-0",
		SessionID: sessionID,
		State: map[string]any{
			domain.StateKeyLocation:          "harbor",
			domain.StateKeyPressureClock:     0,
			domain.StateKeyPresentCharacters: []any{"npc-1", "persona-1"},
		},
		CreatedAt: now,
	}
	session := domain.Session{
		ID:              sessionID,
		OwnerUserID:     "user-1",
		RulesetID:       domain.DefaultRulesetID,
		WorldLoreID:     domain.DefaultWorldLoreID,
		CurrentSceneID:  scene.ID,
		FastModelKey:    "fast",
		CarefulModelKey: "careful",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	characters := []domain.CharacterRuntime{
		{SessionID: sessionID, CharacterID: "npc-1", Name: "Maren", Role: domain.RoleNPC, Stats: map[string]any{"warmth": 5}},
		{SessionID: sessionID, CharacterID: "persona-1", Name: "Juno", Role: domain.RoleUserPersona, Stats: map[string]any{"warmth": 3}},
	}
	event := domain.TurnEvent{
		ID:        sessionID + "-evt-start",
		SessionID: sessionID,
		SceneID:   scene.ID,
		Type:      domain.EventSessionStart,
		Step:      domain.StepSessionStart,
		Timestamp: now,
	}

	if err := store.CreateSession(context.Background(), session, scene, characters, event); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session, scene
}

func TestEnsureDefaultsSeedsOnce(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.EnsureDefaults(ctx, testClock()); err != nil {
		t.Fatalf("ensure defaults: %v", err)
	}
	if err := store.EnsureDefaults(ctx, testClock().Add(time.Hour)); err != nil {
		t.Fatalf("re-ensure defaults: %v", err)
	}

	ruleset, err := store.GetRuleset(ctx, domain.DefaultRulesetID)
	if err != nil {
		t.Fatalf("get default ruleset: %v", err)
	}
	if !ruleset.CreatedAt.Equal(testClock()) {
		t.Fatalf("expected first seed preserved, got %v", ruleset.CreatedAt)
	}

	lore, err := store.GetWorldLore(ctx, domain.DefaultWorldLoreID)
	if err != nil {
		t.Fatalf("get default lore: %v", err)
	}
	if lore.Description == "" {
		t.Fatal("expected seeded lore description")
	}
}

func TestGetRulesetRoundTripsSchemas(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.EnsureDefaults(ctx, testClock()); err != nil {
		t.Fatalf("ensure defaults: %v", err)
	}
	ruleset, err := store.GetRuleset(ctx, domain.DefaultRulesetID)
	if err != nil {
		t.Fatalf("get ruleset: %v", err)
	}

	properties, ok := ruleset.SceneSchema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected decoded scene schema properties, got %#v", ruleset.SceneSchema)
	}
	if _, ok := properties[domain.StateKeyPressureClock]; !ok {
		t.Fatal("expected pressure clock in decoded schema")
	}
}

func TestGetSessionNotFound(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.GetSession(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestCreateSessionPersistsAllRows(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	session, scene := seedTestSession(t, store, "sess-create")

	loaded, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if loaded.CurrentSceneID != scene.ID || loaded.CurrentTurnIndex != 0 {
		t.Fatalf("unexpected session pointer: %+v", loaded)
	}

	loadedScene, err := store.GetScene(ctx, scene.ID)
	if err != nil {
		t.Fatalf("get scene: %v", err)
	}
	if loadedScene.State[domain.StateKeyLocation] != "harbor" {
		t.Fatalf("unexpected scene state: %#v", loadedScene.State)
	}

	characters, err := store.ListCharacters(ctx, session.ID)
	if err != nil {
		t.Fatalf("list characters: %v", err)
	}
	if len(characters) != 2 {
		t.Fatalf("expected 2 characters, got %d", len(characters))
	}
	if characters[0].CharacterID != "npc-1" {
		t.Fatalf("expected stable character order, got %q first", characters[0].CharacterID)
	}

	event, err := store.GetEventByStep(ctx, session.ID, 0, domain.StepSessionStart)
	if err != nil {
		t.Fatalf("get session start event: %v", err)
	}
	if event.Type != domain.EventSessionStart {
		t.Fatalf("unexpected event type %q", event.Type)
	}
}

func TestUpdateSessionModelsOwnership(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	session, _ := seedTestSession(t, store, "sess-models")

	ok, err := store.UpdateSessionModels(ctx, session.ID, "user-1", "fast-2", "careful-2")
	if err != nil {
		t.Fatalf("update models: %v", err)
	}
	if !ok {
		t.Fatal("expected owner update to succeed")
	}

	ok, err = store.UpdateSessionModels(ctx, session.ID, "intruder", "x", "y")
	if err != nil {
		t.Fatalf("update models: %v", err)
	}
	if ok {
		t.Fatal("expected foreign-owner update to report false")
	}

	ok, err = store.UpdateSessionModels(ctx, "missing", "user-1", "x", "y")
	if err != nil {
		t.Fatalf("update models: %v", err)
	}
	if ok {
		t.Fatal("expected missing-session update to report false")
	}

	loaded, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if loaded.FastModelKey != "fast-2" || loaded.CarefulModelKey != "careful-2" {
		t.Fatalf("unexpected routing keys: %+v", loaded)
	}
}
