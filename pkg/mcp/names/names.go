// SPDX-FileCopyrightText: Copyright 2026 Truffle AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package names owns the identifier sanitizer and the qualified public name
// format used to disambiguate capabilities across backends.
//
// A capability's public name is either its raw backend name (while exactly
// one backend exposes it) or a qualified name of the form
// "<sanitizedIdentifier><Delim><rawName>". Parsing a qualified name always
// goes through the registry of known sanitized identifiers, never a naive
// string split, so raw names that themselves contain Delim stay addressable.
package names

import (
	"strings"
	"sync"

	"github.com/truffle-ai/saiki-sub006/pkg/mcp"
)

// Delim separates the sanitized backend identifier from the raw capability
// name in a qualified public name.
const Delim = "__"

// placeholder replaces each run of characters outside the safe set.
const placeholder = '_'

// Sanitize maps an arbitrary backend identifier to its canonical form.
// Letters, digits, hyphen and underscore pass through; every run of other
// characters collapses to a single placeholder. Pure and total.
func Sanitize(identifier string) string {
	var b strings.Builder
	b.Grow(len(identifier))

	inRun := false
	for _, r := range identifier {
		if safeRune(r) {
			b.WriteRune(r)
			inRun = false
			continue
		}
		if !inRun {
			b.WriteRune(placeholder)
			inRun = true
		}
	}
	return b.String()
}

func safeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_':
		return true
	default:
		return false
	}
}

// Qualify builds the qualified public name for a raw capability name owned
// by the backend with the given sanitized identifier.
func Qualify(sanitized, rawName string) string {
	return sanitized + Delim + rawName
}

// Registry tracks the canonical form of every registered backend identifier
// and detects when two distinct identifiers would canonicalize identically.
// Safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	byCanonical map[string]string // canonical -> identifier
	byID        map[string]string // identifier -> canonical
}

// NewRegistry creates an empty identifier registry.
func NewRegistry() *Registry {
	return &Registry{
		byCanonical: make(map[string]string),
		byID:        make(map[string]string),
	}
}

// Register inserts the identifier's canonical form into the registry and
// returns it. Re-registering the same identifier is a no-op. If the
// canonical form already maps to a different identifier, registration fails
// with a *mcp.NameCollisionError and the registry is left unchanged.
func (r *Registry) Register(identifier string) (string, error) {
	canonical := Sanitize(identifier)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byCanonical[canonical]; ok {
		if existing == identifier {
			return canonical, nil
		}
		return "", &mcp.NameCollisionError{
			Identifier: identifier,
			Existing:   existing,
			Canonical:  canonical,
		}
	}

	r.byCanonical[canonical] = identifier
	r.byID[identifier] = canonical
	return canonical, nil
}

// Unregister removes the identifier's mapping, freeing its canonical form
// for reuse by a future, different identifier. Unknown identifiers are a
// no-op.
func (r *Registry) Unregister(identifier string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	canonical, ok := r.byID[identifier]
	if !ok {
		return
	}
	delete(r.byID, identifier)
	delete(r.byCanonical, canonical)
}

// Canonical returns the registered canonical form of an identifier.
func (r *Registry) Canonical(identifier string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	canonical, ok := r.byID[identifier]
	return canonical, ok
}

// Identifier returns the identifier registered under a canonical form.
func (r *Registry) Identifier(canonical string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identifier, ok := r.byCanonical[canonical]
	return identifier, ok
}

// SplitQualified parses a qualified public name into the owning backend
// identifier and the raw capability name. Resolution matches the longest
// registered sanitized-identifier prefix that is followed by Delim, so both
// identifiers and raw names containing Delim remain addressable. Returns
// ok=false when no registered prefix matches.
func (r *Registry) SplitQualified(publicName string) (identifier, rawName string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Walk Delim occurrences from the end so the longest known prefix wins.
	for idx := strings.LastIndex(publicName, Delim); idx > 0; idx = strings.LastIndex(publicName[:idx], Delim) {
		prefix := publicName[:idx]
		raw := publicName[idx+len(Delim):]
		if raw == "" {
			continue
		}
		if id, known := r.byCanonical[prefix]; known {
			return id, raw, true
		}
	}
	return "", "", false
}
