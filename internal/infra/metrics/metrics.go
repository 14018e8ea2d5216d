package metrics

import "strings"

// norm keeps label values lowercase and bounded so a rogue input cannot blow
// up cardinality.
func norm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
