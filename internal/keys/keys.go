// Package keys builds every cache key shopcache writes.
package keys

import "strings"

const (
	// RankIndex is the sorted set of products by rating.
	RankIndex = "productsSortedByRating"
	// Emails is the set of registered user emails.
	Emails = "emails"
)

// Entity is the hash key of a cached record: <kind>:<id>.
func Entity(kind, id string) string { return kind + ":" + id }

// Lock is the token key guarding a resource: locks:<kind>:<id>.
func Lock(kind, id string) string { return "locks:" + kind + ":" + id }

// Members maps ids to their sorted-set members for index.
func Members(index string) string { return index + ":members" }

// Seq is the insertion counter for index.
func Seq(index string) string { return index + ":seq" }

// Single is a framed collection entry.
func Single(ns, key string) string { return "single:" + ns + ":" + key }

// NormalizeEmail lowercases and trims an address before set lookups.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
