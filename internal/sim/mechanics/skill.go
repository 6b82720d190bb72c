package mechanics

import (
	"sort"
	"strings"
)

// ResolveSkillModifier resolves a requested skill name against an actor's
// stat block. Names are normalized (lowercased, stripped of everything but
// letters, digits, and underscores) and matched exactly, then by substring.
// When no named skill matches, the first numeric-valued stat in sorted key
// order is used; when none exists, the modifier is 0.
func ResolveSkillModifier(skill string, stats map[string]any) int {
	wanted := normalizeSkillName(skill)

	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	if wanted != "" {
		for _, key := range keys {
			if normalizeSkillName(key) == wanted {
				if value, ok := numericStat(stats[key]); ok {
					return value
				}
			}
		}
		for _, key := range keys {
			normalized := normalizeSkillName(key)
			if normalized == "" {
				continue
			}
			if strings.Contains(normalized, wanted) || strings.Contains(wanted, normalized) {
				if value, ok := numericStat(stats[key]); ok {
					return value
				}
			}
		}
	}

	for _, key := range keys {
		if value, ok := numericStat(stats[key]); ok {
			return value
		}
	}
	return 0
}

func normalizeSkillName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func numericStat(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	default:
		return 0, false
	}
}
