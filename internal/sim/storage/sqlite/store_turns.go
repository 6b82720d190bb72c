package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/sceneforge/internal/sim/domain"
	"github.com/louisbranch/sceneforge/internal/sim/storage"
)

// HasCommittedAction reports whether the user action id already committed
// for the session.
func (s *Store) HasCommittedAction(ctx context.Context, sessionID, userActionID string) (bool, error) {
	var found int
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT 1 FROM turns WHERE session_id = ? AND user_action_id = ?",
		sessionID, userActionID)
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check committed action: %w", err)
	}
	return true, nil
}

// GetCommittedResult returns the stored turn result for a committed action id.
func (s *Store) GetCommittedResult(ctx context.Context, sessionID, userActionID string) (domain.TurnResult, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT session_id, turn_index, scene_id, narration, suggestions, meta_text
FROM turns WHERE session_id = ? AND user_action_id = ?`,
		sessionID, userActionID)

	var (
		result         domain.TurnResult
		suggestionsRaw string
	)
	if err := row.Scan(&result.SessionID, &result.TurnIndex, &result.SceneID,
		&result.Narration, &suggestionsRaw, &result.MetaText); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TurnResult{}, storage.ErrNotFound
		}
		return domain.TurnResult{}, fmt.Errorf("get committed result: %w", err)
	}

	suggestions, err := decodeJSONStrings(suggestionsRaw)
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("decode suggestions: %w", err)
	}
	result.Suggestions = suggestions
	return result, nil
}

// CommitTurn performs the atomic multi-row write that concludes a turn,
// guarded by compare-and-swap on the session's current pointer.
func (s *Store) CommitTurn(ctx context.Context, params storage.CommitTurnParams) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// The CAS guard: advance the pointer only when it still matches the
	// snapshot loaded at the start of the turn.
	updated, err := tx.ExecContext(ctx, `
UPDATE sessions
SET current_scene_id = ?, current_turn_index = ?, updated_at = ?
WHERE id = ? AND current_scene_id = ? AND current_turn_index = ?`,
		params.NewScene.ID, params.NewTurnIndex, toMillis(params.CommittedAt),
		params.SessionID, params.ExpectedSceneID, params.ExpectedTurnIndex)
	if err != nil {
		return fmt.Errorf("advance session pointer: %w", err)
	}
	affected, err := updated.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrConflict
	}

	state, err := encodeJSON(params.NewScene.State)
	if err != nil {
		return fmt.Errorf("encode scene state: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO scenes (id, session_id, scene_index, state, created_at)
VALUES (?, ?, ?, ?, ?)`,
		params.NewScene.ID, params.NewScene.SessionID, params.NewScene.SceneIndex,
		state, toMillis(params.NewScene.CreatedAt)); err != nil {
		return fmt.Errorf("insert scene: %w", err)
	}

	suggestions, err := encodeJSON(params.Result.Suggestions)
	if err != nil {
		return fmt.Errorf("encode suggestions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO turns
  (session_id, user_action_id, turn_index, scene_id, narration, suggestions, meta_text, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		params.SessionID, params.UserActionID, params.NewTurnIndex,
		params.NewScene.ID, params.Result.Narration, suggestions,
		params.Result.MetaText, toMillis(params.CommittedAt)); err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}

	for _, action := range params.Actions {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO actions (id, session_id, scene_id, turn_index, move_id, actor_id, summary, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			action.ID, action.SessionID, action.SceneID, action.TurnIndex,
			action.MoveID, action.ActorID, action.Summary, toMillis(action.CreatedAt)); err != nil {
			return fmt.Errorf("insert action %s: %w", action.MoveID, err)
		}
	}

	for _, obs := range params.Observations {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO observations
  (id, session_id, scene_id, character_id, content, importance, reinforcement, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			obs.ID, obs.SessionID, obs.SceneID, obs.CharacterID,
			obs.Content, obs.Importance, obs.Reinforcement, toMillis(obs.CreatedAt)); err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}
	}

	for _, relation := range params.Relations {
		if _, err := tx.ExecContext(ctx, `
INSERT OR REPLACE INTO relations (session_id, scene_id, from_id, to_id, value)
VALUES (?, ?, ?, ?, ?)`,
			relation.SessionID, relation.SceneID, relation.FromID,
			relation.ToID, relation.Value); err != nil {
			return fmt.Errorf("insert relation %s->%s: %w", relation.FromID, relation.ToID, err)
		}
	}

	for _, event := range params.Events {
		if err := insertEventTx(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
