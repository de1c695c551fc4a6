package evaluation

import "strings"

// Recall is the fraction of expected items present in got, compared
// case-insensitively. Returns 1.0 when nothing is expected.
func Recall(expected, got []string) float64 {
	if len(expected) == 0 {
		return 1.0
	}

	gotSet := make(map[string]struct{}, len(got))
	for _, g := range got {
		gotSet[strings.ToLower(strings.TrimSpace(g))] = struct{}{}
	}

	found := 0
	seen := make(map[string]struct{}, len(expected))
	for _, e := range expected {
		key := strings.ToLower(strings.TrimSpace(e))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := gotSet[key]; ok {
			found++
		}
	}
	return float64(found) / float64(len(seen))
}
