package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/sceneforge/internal/sim/domain"
	"github.com/louisbranch/sceneforge/internal/sim/storage"
)

// CreateSession atomically writes a session, its first scene, its character
// runtimes, and the session_start journal event.
func (s *Store) CreateSession(ctx context.Context, session domain.Session, scene domain.Scene, characters []domain.CharacterRuntime, event domain.TurnEvent) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	state, err := encodeJSON(scene.State)
	if err != nil {
		return fmt.Errorf("encode scene state: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO scenes (id, session_id, scene_index, state, created_at)
VALUES (?, ?, ?, ?, ?)`,
		scene.ID, scene.SessionID, scene.SceneIndex, state, toMillis(scene.CreatedAt)); err != nil {
		return fmt.Errorf("insert scene: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO sessions
  (id, owner_user_id, ruleset_id, world_lore_id, current_scene_id, current_turn_index,
   fast_model_key, careful_model_key, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.OwnerUserID, session.RulesetID, session.WorldLoreID,
		session.CurrentSceneID, session.CurrentTurnIndex,
		session.FastModelKey, session.CarefulModelKey,
		toMillis(session.CreatedAt), toMillis(session.UpdatedAt)); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for _, character := range characters {
		stats, err := encodeJSON(character.Stats)
		if err != nil {
			return fmt.Errorf("encode stats for %s: %w", character.CharacterID, err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO characters (session_id, character_id, name, role, backstory, stats)
VALUES (?, ?, ?, ?, ?, ?)`,
			character.SessionID, character.CharacterID, character.Name,
			string(character.Role), character.Backstory, stats); err != nil {
			return fmt.Errorf("insert character %s: %w", character.CharacterID, err)
		}
	}

	if err := insertEventTx(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetSession loads a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (domain.Session, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, owner_user_id, ruleset_id, world_lore_id, current_scene_id, current_turn_index,
       fast_model_key, careful_model_key, created_at, updated_at
FROM sessions WHERE id = ?`, id)

	var (
		session   domain.Session
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&session.ID, &session.OwnerUserID, &session.RulesetID,
		&session.WorldLoreID, &session.CurrentSceneID, &session.CurrentTurnIndex,
		&session.FastModelKey, &session.CarefulModelKey, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, storage.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}

	session.CreatedAt = fromMillis(createdAt)
	session.UpdatedAt = fromMillis(updatedAt)
	return session, nil
}

// UpdateSessionModels updates routing keys for a session owned by ownerUserID.
// It reports false without error when no matching row exists.
func (s *Store) UpdateSessionModels(ctx context.Context, sessionID, ownerUserID, fastKey, carefulKey string) (bool, error) {
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE sessions SET fast_model_key = ?, careful_model_key = ?
WHERE id = ? AND owner_user_id = ?`,
		fastKey, carefulKey, sessionID, ownerUserID)
	if err != nil {
		return false, fmt.Errorf("update session models: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListCharacters returns a session's character runtimes ordered by character id.
func (s *Store) ListCharacters(ctx context.Context, sessionID string) ([]domain.CharacterRuntime, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT session_id, character_id, name, role, backstory, stats
FROM characters WHERE session_id = ? ORDER BY character_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	var characters []domain.CharacterRuntime
	for rows.Next() {
		var (
			character domain.CharacterRuntime
			role      string
			statsRaw  string
		)
		if err := rows.Scan(&character.SessionID, &character.CharacterID,
			&character.Name, &role, &character.Backstory, &statsRaw); err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		stats, err := decodeJSONMap(statsRaw)
		if err != nil {
			return nil, fmt.Errorf("decode stats for %s: %w", character.CharacterID, err)
		}
		character.Role = domain.CharacterRole(role)
		character.Stats = stats
		characters = append(characters, character)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate characters: %w", err)
	}
	return characters, nil
}

// GetScene loads a scene by id.
func (s *Store) GetScene(ctx context.Context, id string) (domain.Scene, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, session_id, scene_index, state, created_at FROM scenes WHERE id = ?`, id)

	var (
		scene     domain.Scene
		stateRaw  string
		createdAt int64
	)
	if err := row.Scan(&scene.ID, &scene.SessionID, &scene.SceneIndex, &stateRaw, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Scene{}, storage.ErrNotFound
		}
		return domain.Scene{}, fmt.Errorf("get scene: %w", err)
	}

	state, err := decodeJSONMap(stateRaw)
	if err != nil {
		return domain.Scene{}, fmt.Errorf("decode scene state: %w", err)
	}
	scene.State = state
	scene.CreatedAt = fromMillis(createdAt)
	return scene, nil
}
