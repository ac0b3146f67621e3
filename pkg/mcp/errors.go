// SPDX-FileCopyrightText: Copyright 2026 Truffle AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common domain errors used across the mcp subpackages.
// These errors should be checked using errors.Is().

var (
	// ErrCapabilityNotFound indicates a public capability name resolved to no
	// backend, even after an index refresh and retry. Distinguished from the
	// confirmation errors below: this means "does not exist here", not
	// "exists but blocked".
	ErrCapabilityNotFound = errors.New("capability not found")

	// ErrExecutionDenied indicates the confirmation step explicitly denied
	// the invocation.
	ErrExecutionDenied = errors.New("execution denied")

	// ErrConfirmationTimeout indicates no confirmation response arrived
	// within the configured timeout. Callers may treat this as "try later".
	ErrConfirmationTimeout = errors.New("confirmation timed out")

	// ErrConfirmationCancelled indicates the pending confirmation was
	// cancelled before a response arrived.
	ErrConfirmationCancelled = errors.New("confirmation cancelled")

	// ErrNameCollision indicates two distinct backend identifiers sanitize
	// to the same canonical form. Registration is rejected with no partial
	// mutation.
	ErrNameCollision = errors.New("backend name collision")

	// ErrConnectionFailed indicates a backend connection attempt failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrNotConnected indicates an operation was attempted against a backend
	// whose transport is not established.
	ErrNotConnected = errors.New("backend not connected")

	// ErrUnsupportedTransport indicates an unknown transport type in a
	// backend connection descriptor.
	ErrUnsupportedTransport = errors.New("unsupported transport type")
)

// NameCollisionError reports that registering Identifier would canonicalize
// to the same value as the already-registered Existing identifier.
type NameCollisionError struct {
	// Identifier is the identifier whose registration was rejected.
	Identifier string

	// Existing is the previously registered identifier.
	Existing string

	// Canonical is the shared sanitized form.
	Canonical string
}

func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("%v: identifiers %q and %q both sanitize to %q",
		ErrNameCollision, e.Identifier, e.Existing, e.Canonical)
}

// Unwrap lets errors.Is match ErrNameCollision.
func (*NameCollisionError) Unwrap() error {
	return ErrNameCollision
}

// BatchConnectionError aggregates every per-backend failure from a
// connection batch whose success policy was not met.
type BatchConnectionError struct {
	// Failures maps backend identifier to its connection error message.
	Failures map[string]string
}

func (e *BatchConnectionError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s: %s", id, e.Failures[id]))
	}
	return fmt.Sprintf("%v: %s", ErrConnectionFailed, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match ErrConnectionFailed.
func (*BatchConnectionError) Unwrap() error {
	return ErrConnectionFailed
}
