package speech

import (
	"sort"

	"github.com/sahilm/fuzzy"
)

// MatchVoices filters voices by a fuzzy pattern, best matches first. An
// empty pattern returns the voices sorted alphabetically.
func MatchVoices(voices []string, pattern string) []string {
	if pattern == "" {
		out := append([]string(nil), voices...)
		sort.Strings(out)
		return out
	}

	matches := fuzzy.Find(pattern, voices)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Str)
	}
	return out
}
