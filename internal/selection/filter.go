package selection

import (
	"regexp"
	"strings"
)

// FilterOptions returns the indexes of names matching pattern as a
// case-insensitive regular expression. An empty pattern matches every
// name; a pattern that does not compile is matched as a plain substring.
func FilterOptions(names []string, pattern string) []int {
	out := make([]int, 0, len(names))
	if pattern == "" {
		for i := range names {
			out = append(out, i)
		}
		return out
	}

	match := substringMatcher(pattern)
	if re, err := regexp.Compile("(?i)" + pattern); err == nil {
		match = re.MatchString
	}
	for i, n := range names {
		if match(n) {
			out = append(out, i)
		}
	}
	return out
}

func substringMatcher(pattern string) func(string) bool {
	p := strings.ToLower(pattern)
	return func(s string) bool {
		return strings.Contains(strings.ToLower(s), p)
	}
}
