package service

import "strings"

const (
	maxSuggestions      = 3
	maxSuggestionLength = 160
)

// normalizeSuggestions trims, collapses whitespace, caps length, drops
// duplicates, and caps the count.
func normalizeSuggestions(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	normalized := make([]string, 0, maxSuggestions)
	for _, suggestion := range raw {
		cleaned := strings.Join(strings.Fields(suggestion), " ")
		if cleaned == "" {
			continue
		}
		if runes := []rune(cleaned); len(runes) > maxSuggestionLength {
			cleaned = string(runes[:maxSuggestionLength])
		}
		key := strings.ToLower(cleaned)
		if seen[key] {
			continue
		}
		seen[key] = true
		normalized = append(normalized, cleaned)
		if len(normalized) == maxSuggestions {
			break
		}
	}
	return normalized
}

// fallbackSuggestions is what the caller sees when the suggestion step fails.
func fallbackSuggestions() []string {
	return []string{
		"Look around for anything you missed.",
		"Talk to someone nearby.",
		"Press on carefully.",
	}
}
