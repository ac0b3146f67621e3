// SPDX-FileCopyrightText: Copyright 2026 Truffle AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package confirm

import (
	"sync"

	"github.com/truffle-ai/saiki-sub006/pkg/mcp"
)

// GlobalScope is the scope id for entries that apply to every caller.
const GlobalScope = ""

// memoryAllowList is an in-process allow-list. Entries scoped to a caller
// apply only to that caller; global entries apply to everyone.
type memoryAllowList struct {
	mu      sync.RWMutex
	entries map[string]map[string]struct{} // scopeID -> toolName set
}

// NewMemoryAllowList creates an empty in-memory allow-list provider.
func NewMemoryAllowList() mcp.AllowListProvider {
	return &memoryAllowList{
		entries: make(map[string]map[string]struct{}),
	}
}

// IsAllowed reports whether toolName is approved for scopeID, either
// directly or through a global entry.
func (m *memoryAllowList) IsAllowed(toolName, scopeID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.entries[scopeID][toolName]; ok {
		return true
	}
	_, ok := m.entries[GlobalScope][toolName]
	return ok
}

// Allow records toolName as approved for scopeID.
func (m *memoryAllowList) Allow(toolName, scopeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.entries[scopeID]
	if !ok {
		set = make(map[string]struct{})
		m.entries[scopeID] = set
	}
	set[toolName] = struct{}{}
	return nil
}
