package resolve

import "strings"

// Normalize drops the query string and fragment from raw by cutting it at
// the first '?' or '#'. The rest of the text is returned as given, so
// scheme case and path escapes survive. It never fails and is idempotent.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return strings.TrimSpace(raw[:i])
	}
	return raw
}
