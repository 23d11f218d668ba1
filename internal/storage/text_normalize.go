package storage

import "strings"

func normalizeClientText(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	// Collapse any repeated whitespace (spaces/tabs/newlines) to a single space.
	return strings.Join(strings.Fields(trimmed), " ")
}

// normalizeClientKey is the lookup form of a client name.
func normalizeClientKey(input string) string {
	return strings.ToLower(normalizeClientText(input))
}
