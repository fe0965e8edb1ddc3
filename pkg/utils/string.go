package utils

// Truncate shortens s to at most maxLen runes, appending "..." when it cuts.
// Session titles and message previews are often CJK, so it never splits a
// multibyte character.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
