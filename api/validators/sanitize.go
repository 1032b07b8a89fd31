package validators

import "strings"

func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(input string) string {
	return strings.ToLower(SanitizeString(input, 320))
}
