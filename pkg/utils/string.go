package utils

// Truncate is a simple string truncate
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateHead keeps the last maxLen bytes of s. Used where the most recent
// content matters more than the oldest, e.g. windowing story text for
// extraction.
func TruncateHead(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[len(s)-maxLen:]
}
