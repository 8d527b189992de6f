// Package ident derives stable name-based identifiers for papers and authors.
package ident

import "github.com/google/uuid"

// Derive returns the version 5 (SHA-1, name-based) UUID of seed within namespace.
// Equal inputs always produce the same string.
func Derive(namespace uuid.UUID, seed string) string {
	return uuid.NewSHA1(namespace, []byte(seed)).String()
}

// Deriver binds a namespace so callers only pass seeds
type Deriver struct {
	namespace uuid.UUID
}

// NewDeriver returns a Deriver for namespace
func NewDeriver(namespace uuid.UUID) Deriver {
	return Deriver{namespace: namespace}
}

// Derive returns Derive(namespace, seed) for the bound namespace
func (d Deriver) Derive(seed string) string {
	return Derive(d.namespace, seed)
}
