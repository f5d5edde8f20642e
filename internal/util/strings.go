// Package util holds small text helpers shared by the CLI.
package util

import (
	"fmt"
	"strings"
)

// JoinOrDefault joins items with ", ", or returns def when there are none.
func JoinOrDefault(items []string, def string) string {
	if len(items) == 0 {
		return def
	}
	return strings.Join(items, ", ")
}

// Pluralize returns singular if count is 1, otherwise plural.
func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

// Count formats n with the matching noun, as in "1 host" or "3 hosts".
func Count(n int, singular, plural string) string {
	return fmt.Sprintf("%d %s", n, Pluralize(n, singular, plural))
}
