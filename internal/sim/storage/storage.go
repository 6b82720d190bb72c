// Package storage defines the persistence contracts for the simulation
// engine. Implementations must make CommitTurn atomic and guard it with the
// optimistic-concurrency check described on CommitTurnParams.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/sceneforge/internal/sim/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrConflict indicates the session advanced since the turn was loaded and
// the commit lost the optimistic-concurrency check. Callers must re-fetch
// session state and retry the whole turn.
var ErrConflict = errors.New("session advanced concurrently")

// RulesetStore persists rulesets and world lore.
type RulesetStore interface {
	PutRuleset(ctx context.Context, ruleset domain.Ruleset) error
	GetRuleset(ctx context.Context, id string) (domain.Ruleset, error)
	PutWorldLore(ctx context.Context, lore domain.WorldLore) error
	GetWorldLore(ctx context.Context, id string) (domain.WorldLore, error)
	// EnsureDefaults seeds the default ruleset and world lore rows when
	// they are absent. Safe to call on every startup.
	EnsureDefaults(ctx context.Context, now time.Time) error
}

// SessionStore persists sessions and their character runtimes.
type SessionStore interface {
	// CreateSession atomically writes the session, its first scene, its
	// character runtimes, and the session_start event.
	CreateSession(ctx context.Context, session domain.Session, scene domain.Scene, characters []domain.CharacterRuntime, event domain.TurnEvent) error
	GetSession(ctx context.Context, id string) (domain.Session, error)
	// UpdateSessionModels updates the routing keys for a session owned by
	// ownerUserID. It reports false without error when the session does not
	// exist or is owned by someone else.
	UpdateSessionModels(ctx context.Context, sessionID, ownerUserID, fastKey, carefulKey string) (bool, error)
	ListCharacters(ctx context.Context, sessionID string) ([]domain.CharacterRuntime, error)
}

// SceneStore reads immutable scene snapshots.
type SceneStore interface {
	GetScene(ctx context.Context, id string) (domain.Scene, error)
}

// ObservationStore reads character memory written by committed turns.
type ObservationStore interface {
	// ListRecentObservations returns up to limit observations for one
	// character, newest first.
	ListRecentObservations(ctx context.Context, sessionID, characterID string, limit int) ([]domain.Observation, error)
}

// EventStore reads the append-only turn journal.
type EventStore interface {
	// GetEventByStep returns the event for one pipeline step of one turn.
	GetEventByStep(ctx context.Context, sessionID string, turnIndex int, step string) (domain.TurnEvent, error)
	// ListTurnEvents returns a turn's events in committed order.
	ListTurnEvents(ctx context.Context, sessionID string, turnIndex int) ([]domain.TurnEvent, error)
}

// ActionRecord is a persisted per-move action row with a short outcome
// summary, written at commit.
type ActionRecord struct {
	ID        string
	SessionID string
	SceneID   string
	TurnIndex int
	MoveID    string
	ActorID   string
	Summary   string
	CreatedAt time.Time
}

// RelationRecord snapshots one pairwise relation value at a scene.
type RelationRecord struct {
	SessionID string
	SceneID   string
	FromID    string
	ToID      string
	Value     float64
}

// CommitTurnParams is the atomic multi-row write that concludes a turn.
type CommitTurnParams struct {
	// SessionID is the session being advanced.
	SessionID string
	// ExpectedSceneID and ExpectedTurnIndex are the session pointer loaded
	// at the start of the turn. The commit must fail with ErrConflict when
	// the stored pointer no longer matches.
	ExpectedSceneID   string
	ExpectedTurnIndex int
	// NewScene is the next immutable scene.
	NewScene domain.Scene
	// NewTurnIndex is ExpectedTurnIndex+1.
	NewTurnIndex int
	// Result is the committed turn result, stored for idempotent replays.
	Result domain.TurnResult
	// UserActionID is the caller's idempotency key; a unique index on
	// (session, action id) enforces at-most-once commit.
	UserActionID string
	// Actions, Observations, Relations, and Events are the turn's rows,
	// written in order inside the same transaction.
	Actions      []ActionRecord
	Observations []domain.Observation
	Relations    []RelationRecord
	Events       []domain.TurnEvent
	// CommittedAt stamps the scene and session update.
	CommittedAt time.Time
}

// TurnStore persists committed turns and answers idempotency lookups.
type TurnStore interface {
	// HasCommittedAction reports whether a user action id already committed
	// for the session.
	HasCommittedAction(ctx context.Context, sessionID, userActionID string) (bool, error)
	// GetCommittedResult returns the stored result for a committed action id.
	GetCommittedResult(ctx context.Context, sessionID, userActionID string) (domain.TurnResult, error)
	// CommitTurn performs the atomic write described by params.
	CommitTurn(ctx context.Context, params CommitTurnParams) error
}
