package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/sceneforge/internal/sim/domain"
	"github.com/louisbranch/sceneforge/internal/sim/storage"
)

// PutRuleset persists a ruleset record, replacing any existing row.
func (s *Store) PutRuleset(ctx context.Context, ruleset domain.Ruleset) error {
	characterSchema, err := encodeJSON(ruleset.CharacterSchema)
	if err != nil {
		return fmt.Errorf("encode character schema: %w", err)
	}
	sceneSchema, err := encodeJSON(ruleset.SceneSchema)
	if err != nil {
		return fmt.Errorf("encode scene schema: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT OR REPLACE INTO rulesets
  (id, name, rulebook_text, mechanics_guidance, character_schema, scene_schema, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ruleset.ID, ruleset.Name, ruleset.RulebookText, ruleset.MechanicsGuidance,
		characterSchema, sceneSchema, toMillis(ruleset.CreatedAt))
	if err != nil {
		return fmt.Errorf("put ruleset: %w", err)
	}
	return nil
}

// GetRuleset loads a ruleset by id.
func (s *Store) GetRuleset(ctx context.Context, id string) (domain.Ruleset, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, rulebook_text, mechanics_guidance, character_schema, scene_schema, created_at
FROM rulesets WHERE id = ?`, id)

	var (
		ruleset            domain.Ruleset
		characterSchemaRaw string
		sceneSchemaRaw     string
		createdAt          int64
	)
	if err := row.Scan(&ruleset.ID, &ruleset.Name, &ruleset.RulebookText,
		&ruleset.MechanicsGuidance, &characterSchemaRaw, &sceneSchemaRaw, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Ruleset{}, storage.ErrNotFound
		}
		return domain.Ruleset{}, fmt.Errorf("get ruleset: %w", err)
	}

	characterSchema, err := decodeJSONMap(characterSchemaRaw)
	if err != nil {
		return domain.Ruleset{}, fmt.Errorf("decode character schema: %w", err)
	}
	sceneSchema, err := decodeJSONMap(sceneSchemaRaw)
	if err != nil {
		return domain.Ruleset{}, fmt.Errorf("decode scene schema: %w", err)
	}

	ruleset.CharacterSchema = characterSchema
	ruleset.SceneSchema = sceneSchema
	ruleset.CreatedAt = fromMillis(createdAt)
	return ruleset, nil
}

// PutWorldLore persists a world-lore record, replacing any existing row.
func (s *Store) PutWorldLore(ctx context.Context, lore domain.WorldLore) error {
	metadata, err := encodeJSON(lore.Metadata)
	if err != nil {
		return fmt.Errorf("encode lore metadata: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT OR REPLACE INTO world_lore (id, name, description, metadata, created_at)
VALUES (?, ?, ?, ?, ?)`,
		lore.ID, lore.Name, lore.Description, metadata, toMillis(lore.CreatedAt))
	if err != nil {
		return fmt.Errorf("put world lore: %w", err)
	}
	return nil
}

// GetWorldLore loads a world-lore record by id.
func (s *Store) GetWorldLore(ctx context.Context, id string) (domain.WorldLore, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, description, metadata, created_at FROM world_lore WHERE id = ?`, id)

	var (
		lore        domain.WorldLore
		metadataRaw string
		createdAt   int64
	)
	if err := row.Scan(&lore.ID, &lore.Name, &lore.Description, &metadataRaw, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.WorldLore{}, storage.ErrNotFound
		}
		return domain.WorldLore{}, fmt.Errorf("get world lore: %w", err)
	}

	metadata, err := decodeJSONMap(metadataRaw)
	if err != nil {
		return domain.WorldLore{}, fmt.Errorf("decode lore metadata: %w", err)
	}
	lore.Metadata = metadata
	lore.CreatedAt = fromMillis(createdAt)
	return lore, nil
}

// EnsureDefaults seeds the default ruleset and world lore when absent.
func (s *Store) EnsureDefaults(ctx context.Context, now time.Time) error {
	if _, err := s.GetRuleset(ctx, domain.DefaultRulesetID); errors.Is(err, storage.ErrNotFound) {
		if err := s.PutRuleset(ctx, domain.DefaultRuleset(now)); err != nil {
			return fmt.Errorf("seed default ruleset: %w", err)
		}
	} else if err != nil {
		return err
	}

	if _, err := s.GetWorldLore(ctx, domain.DefaultWorldLoreID); errors.Is(err, storage.ErrNotFound) {
		if err := s.PutWorldLore(ctx, domain.DefaultWorldLore(now)); err != nil {
			return fmt.Errorf("seed default world lore: %w", err)
		}
	} else if err != nil {
		return err
	}

	return nil
}
