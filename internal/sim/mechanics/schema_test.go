package mechanics

import (
	"errors"
	"testing"
)

func sceneSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"location", "pressure_clock"},
		"properties": map[string]any{
			"location":       map[string]any{"type": "string", "minLength": 1},
			"pressure_clock": map[string]any{"type": "integer", "minimum": 0},
			"present_characters": map[string]any{
				"type":     "array",
				"minItems": 1,
				"maxItems": 8,
				"items":    map[string]any{"type": "string"},
			},
			"relations": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "number"},
			},
			"sealed": map[string]any{"type": "boolean"},
		},
	}
}

func TestValidateSchemaAcceptsValidState(t *testing.T) {
	state := map[string]any{
		"location":           "harbor",
		"pressure_clock":     3,
		"present_characters": []any{"npc-1", "persona-1"},
		"relations":          map[string]any{"npc-1->persona-1": 0.5},
		"sealed":             false,
	}
	if err := ValidateSchema(state, sceneSchema()); err != nil {
		t.Fatalf("ValidateSchema returned error: %v", err)
	}
}

func TestValidateSchemaRejections(t *testing.T) {
	tests := []struct {
		name  string
		state map[string]any
	}{
		{"missing required", map[string]any{"location": "harbor"}},
		{"wrong type", map[string]any{"location": 7, "pressure_clock": 0}},
		{"negative clock", map[string]any{"location": "harbor", "pressure_clock": -1}},
		{"non-integer clock", map[string]any{"location": "harbor", "pressure_clock": 1.5}},
		{"empty string", map[string]any{"location": "", "pressure_clock": 0}},
		{"empty array", map[string]any{"location": "h", "pressure_clock": 0, "present_characters": []any{}}},
		{"bad item type", map[string]any{"location": "h", "pressure_clock": 0, "present_characters": []any{1}}},
		{"bad relation value", map[string]any{"location": "h", "pressure_clock": 0, "relations": map[string]any{"pair": "close"}}},
		{"bad boolean", map[string]any{"location": "h", "pressure_clock": 0, "sealed": "yes"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateSchema(tc.state, sceneSchema()); !errors.Is(err, ErrSchema) {
				t.Fatalf("ValidateSchema error = %v, want ErrSchema", err)
			}
		})
	}
}

func TestValidateSchemaLegacyBounds(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"warmth": map[string]any{"type": "integer", "min": 1, "max": 5},
		},
	}

	if err := ValidateSchema(map[string]any{"warmth": 3}, schema); err != nil {
		t.Fatalf("ValidateSchema returned error: %v", err)
	}
	if err := ValidateSchema(map[string]any{"warmth": 0}, schema); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected legacy min to reject, got %v", err)
	}
	if err := ValidateSchema(map[string]any{"warmth": 6}, schema); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected legacy max to reject, got %v", err)
	}
}

func TestValidateSchemaAdditionalPropertiesFalse(t *testing.T) {
	schema := map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"known": map[string]any{"type": "string"}},
		"additionalProperties": false,
	}

	if err := ValidateSchema(map[string]any{"known": "ok"}, schema); err != nil {
		t.Fatalf("ValidateSchema returned error: %v", err)
	}
	if err := ValidateSchema(map[string]any{"known": "ok", "extra": 1}, schema); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected undeclared property rejection, got %v", err)
	}
}

func TestValidateSchemaUntypedSchemaAcceptsAnything(t *testing.T) {
	if err := ValidateSchema(map[string]any{"free": "form"}, nil); err != nil {
		t.Fatalf("ValidateSchema returned error: %v", err)
	}
	if err := ValidateSchema("anything", map[string]any{}); err != nil {
		t.Fatalf("ValidateSchema returned error: %v", err)
	}
}

func TestValidateSchemaIntegerAcceptsIntegralFloat(t *testing.T) {
	schema := map[string]any{"type": "integer", "minimum": 0}
	if err := ValidateSchema(float64(4), schema); err != nil {
		t.Fatalf("expected integral float accepted, got %v", err)
	}
}
