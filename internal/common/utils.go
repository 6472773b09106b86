package common

import "strings"

// ContainsAnyFold reports whether s contains any of the substrings, ignoring case.
// Empty substrings never match.
func ContainsAnyFold(s string, subs ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
