package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/sceneforge/internal/sim/domain"
	"github.com/louisbranch/sceneforge/internal/sim/storage"
)

const turnEventColumns = `
id, session_id, scene_id, turn_index, event_type, step, payload,
model_key, prompt_version, user_action_id, timestamp`

// insertEventTx appends one journal row inside an open transaction. Rows are
// ordered within a turn by insertion order (rowid).
func insertEventTx(ctx context.Context, tx *sql.Tx, event domain.TurnEvent) error {
	payload := event.PayloadJSON
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO turn_events
  (id, session_id, scene_id, turn_index, event_type, step, payload,
   model_key, prompt_version, user_action_id, timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.SessionID, event.SceneID, event.TurnIndex,
		string(event.Type), event.Step, string(payload),
		event.ModelKey, event.PromptVersion, event.UserActionID,
		toMillis(event.Timestamp)); err != nil {
		return fmt.Errorf("insert turn event %s: %w", event.Step, err)
	}
	return nil
}

func scanTurnEvent(scan func(dest ...any) error) (domain.TurnEvent, error) {
	var (
		event     domain.TurnEvent
		eventType string
		payload   string
		timestamp int64
	)
	if err := scan(&event.ID, &event.SessionID, &event.SceneID, &event.TurnIndex,
		&eventType, &event.Step, &payload, &event.ModelKey, &event.PromptVersion,
		&event.UserActionID, &timestamp); err != nil {
		return domain.TurnEvent{}, err
	}
	event.Type = domain.EventType(eventType)
	event.PayloadJSON = []byte(payload)
	event.Timestamp = fromMillis(timestamp)
	return event, nil
}

// GetEventByStep returns the journal row for one pipeline step of one turn.
func (s *Store) GetEventByStep(ctx context.Context, sessionID string, turnIndex int, step string) (domain.TurnEvent, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+turnEventColumns+`
FROM turn_events
WHERE session_id = ? AND turn_index = ? AND step = ?
ORDER BY rowid LIMIT 1`, sessionID, turnIndex, step)

	event, err := scanTurnEvent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TurnEvent{}, storage.ErrNotFound
		}
		return domain.TurnEvent{}, fmt.Errorf("get event by step: %w", err)
	}
	return event, nil
}

// ListTurnEvents returns one turn's journal rows in committed order.
func (s *Store) ListTurnEvents(ctx context.Context, sessionID string, turnIndex int) ([]domain.TurnEvent, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+turnEventColumns+`
FROM turn_events
WHERE session_id = ? AND turn_index = ?
ORDER BY rowid`, sessionID, turnIndex)
	if err != nil {
		return nil, fmt.Errorf("list turn events: %w", err)
	}
	defer rows.Close()

	var events []domain.TurnEvent
	for rows.Next() {
		event, err := scanTurnEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan turn event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn events: %w", err)
	}
	return events, nil
}

// ListRecentObservations returns up to limit observations for a character,
// newest first.
func (s *Store) ListRecentObservations(ctx context.Context, sessionID, characterID string, limit int) ([]domain.Observation, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, session_id, scene_id, character_id, content, importance, reinforcement, created_at
FROM observations
WHERE session_id = ? AND character_id = ?
ORDER BY created_at DESC, rowid DESC
LIMIT ?`, sessionID, characterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	defer rows.Close()

	var observations []domain.Observation
	for rows.Next() {
		var (
			obs       domain.Observation
			createdAt int64
		)
		if err := rows.Scan(&obs.ID, &obs.SessionID, &obs.SceneID, &obs.CharacterID,
			&obs.Content, &obs.Importance, &obs.Reinforcement, &createdAt); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		obs.CreatedAt = fromMillis(createdAt)
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return observations, nil
}
