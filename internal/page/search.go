package page

import (
	"unicode"
	"unicode/utf8"
)

// Find returns the byte offsets of the first match of needle in haystack.
// Letters match case-insensitively and any whitespace run in needle matches
// any non-empty whitespace run in haystack.
func Find(haystack, needle string) (start, end int, ok bool) {
	needle = trimSpace(needle)
	if needle == "" {
		return 0, 0, false
	}

	for i := 0; i < len(haystack); {
		if e, ok := matchAt(haystack, i, needle); ok {
			return i, e, true
		}
		_, size := utf8.DecodeRuneInString(haystack[i:])
		i += size
	}
	return 0, 0, false
}

func matchAt(h string, i int, needle string) (int, bool) {
	j := 0
	for j < len(needle) {
		if i >= len(h) {
			return 0, false
		}
		nr, nsize := utf8.DecodeRuneInString(needle[j:])
		hr, hsize := utf8.DecodeRuneInString(h[i:])

		if unicode.IsSpace(nr) {
			if !unicode.IsSpace(hr) {
				return 0, false
			}
			j = skipSpace(needle, j)
			i = skipSpace(h, i)
			continue
		}
		if !equalFold(nr, hr) {
			return 0, false
		}
		i += hsize
		j += nsize
	}
	return i, true
}

func equalFold(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}

func skipSpace(s string, i int) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}

func trimSpace(s string) string {
	start := skipSpace(s, 0)
	end := len(s)
	for end > start {
		r, size := utf8.DecodeLastRuneInString(s[:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	return s[start:end]
}
