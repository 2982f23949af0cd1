// Package normalize holds canonicalization helpers for user-supplied
// identifiers.
package normalize

import "strings"

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Username returns the canonical form of a username. Usernames are the
// routing key for presence and conversations, so every boundary (store,
// registry, token claims) must agree on one spelling.
func Username(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}
