package mechanics

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/louisbranch/sceneforge/internal/sim/domain"
)

// State-op evaluation errors. All are validation-class: they indicate
// malformed generation-step output, never a storage failure.
var (
	// ErrUnknownStateOp indicates an operation outside the mutation vocabulary.
	ErrUnknownStateOp = errors.New("unknown state operation")
	// ErrBadStatePath indicates an empty path or a non-map intermediate segment.
	ErrBadStatePath = errors.New("invalid state path")
	// ErrNotNumeric indicates increment/decrement against non-numeric operands.
	ErrNotNumeric = errors.New("operand is not numeric")
	// ErrNotList indicates remove_value against a non-list target.
	ErrNotList = errors.New("target is not a list")
)

// NormalizeStateOps coerces numeric strings to numbers for increment and
// decrement values. Other malformed values are left for ApplyStateOps to
// reject; coercion is the single tolerated fix-up.
func NormalizeStateOps(ops []domain.StateOp) []domain.StateOp {
	normalized := make([]domain.StateOp, len(ops))
	for i, op := range ops {
		if op.Op == domain.OpIncrement || op.Op == domain.OpDecrement {
			if text, ok := op.Value.(string); ok {
				if number, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
					op.Value = number
				}
			}
		}
		normalized[i] = op
	}
	return normalized
}

// ApplyStateOps applies operations against a deep copy of state and returns
// the mutated copy. The input state is never modified. Intermediate missing
// path segments are created as empty maps; a non-map intermediate segment is
// an error.
func ApplyStateOps(state map[string]any, ops []domain.StateOp) (map[string]any, error) {
	next := domain.CopyState(state)
	if next == nil {
		next = map[string]any{}
	}

	for _, op := range ops {
		if !op.Op.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStateOp, op.Op)
		}
		parent, leaf, err := descend(next, op.Path)
		if err != nil {
			return nil, err
		}

		switch op.Op {
		case domain.OpSet:
			parent[leaf] = op.Value

		case domain.OpIncrement, domain.OpDecrement:
			current, ok := toNumber(parent[leaf])
			if !ok {
				if _, present := parent[leaf]; !present {
					current = 0
				} else {
					return nil, fmt.Errorf("%w: current value at %q", ErrNotNumeric, op.Path)
				}
			}
			delta, ok := toNumber(op.Value)
			if !ok {
				return nil, fmt.Errorf("%w: value for %q", ErrNotNumeric, op.Path)
			}
			if op.Op == domain.OpDecrement {
				delta = -delta
			}
			parent[leaf] = normalizeNumber(current + delta)

		case domain.OpAppendUnique:
			existing, present := parent[leaf]
			if !present || existing == nil {
				parent[leaf] = []any{op.Value}
				continue
			}
			list, ok := existing.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: append target at %q", ErrNotList, op.Path)
			}
			if containsValue(list, op.Value) {
				continue
			}
			parent[leaf] = append(list, op.Value)

		case domain.OpRemoveValue:
			list, ok := parent[leaf].([]any)
			if !ok {
				return nil, fmt.Errorf("%w: remove target at %q", ErrNotList, op.Path)
			}
			filtered := make([]any, 0, len(list))
			for _, item := range list {
				if !valuesEqual(item, op.Value) {
					filtered = append(filtered, item)
				}
			}
			parent[leaf] = filtered
		}
	}

	return next, nil
}

// descend walks dot-separated path segments, creating missing intermediates,
// and returns the parent map plus the leaf key.
func descend(state map[string]any, path string) (map[string]any, string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, "", fmt.Errorf("%w: empty path", ErrBadStatePath)
	}
	segments := strings.Split(trimmed, ".")
	current := state
	for _, segment := range segments[:len(segments)-1] {
		if segment == "" {
			return nil, "", fmt.Errorf("%w: %q", ErrBadStatePath, path)
		}
		child, present := current[segment]
		if !present || child == nil {
			next := map[string]any{}
			current[segment] = next
			current = next
			continue
		}
		childMap, ok := child.(map[string]any)
		if !ok {
			return nil, "", fmt.Errorf("%w: segment %q of %q is not a map", ErrBadStatePath, segment, path)
		}
		current = childMap
	}
	leaf := segments[len(segments)-1]
	if leaf == "" {
		return nil, "", fmt.Errorf("%w: %q", ErrBadStatePath, path)
	}
	return current, leaf, nil
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// normalizeNumber stores integral results as int so schema integer checks
// and JSON round-trips stay stable.
func normalizeNumber(value float64) any {
	if value == math.Trunc(value) && !math.IsInf(value, 0) {
		return int(value)
	}
	return value
}

func containsValue(list []any, value any) bool {
	for _, item := range list {
		if valuesEqual(item, value) {
			return true
		}
	}
	return false
}

// valuesEqual compares values with numeric tolerance so 1 and 1.0 dedupe.
func valuesEqual(a, b any) bool {
	na, aNum := toNumber(a)
	nb, bNum := toNumber(b)
	if aNum && bNum {
		return na == nb
	}
	return reflect.DeepEqual(a, b)
}
