// SPDX-FileCopyrightText: Copyright 2026 Truffle AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package confirm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/truffle-ai/saiki-sub006/pkg/logger"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp"
)

// lockTimeout bounds how long a writer waits for the allow-list lock file.
const lockTimeout = 1 * time.Second

// allowListFile is the on-disk shape of the persisted allow-list.
type allowListFile struct {
	// Entries maps scope id to the approved tool names for that scope.
	Entries map[string][]string `json:"entries"`
}

// fileAllowList persists approvals to a JSON file so they survive process
// restarts. Writes are serialized through a flock lock file, making the
// store safe to share between processes.
type fileAllowList struct {
	mu    sync.RWMutex
	path  string
	cache *memoryAllowList
}

// NewFileAllowList creates an allow-list provider backed by path, loading
// any existing entries. A missing file starts empty.
func NewFileAllowList(path string) (mcp.AllowListProvider, error) {
	f := &fileAllowList{
		path:  path,
		cache: &memoryAllowList{entries: make(map[string]map[string]struct{})},
	}
	if err := f.load(); err != nil {
		return nil, fmt.Errorf("failed to load allow-list from %s: %w", path, err)
	}
	return f, nil
}

// IsAllowed reports whether toolName is approved for scopeID.
func (f *fileAllowList) IsAllowed(toolName, scopeID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cache.IsAllowed(toolName, scopeID)
}

// Allow records the approval in memory and rewrites the backing file under
// a cross-process file lock.
func (f *fileAllowList) Allow(toolName, scopeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.cache.Allow(toolName, scopeID); err != nil {
		return err
	}

	fileLock := flock.New(f.path + ".lock")
	lockCtx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to acquire allow-list lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire allow-list lock: timeout after %v", lockTimeout)
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			logger.Warnf("Failed to release allow-list lock: %v", err)
		}
	}()

	return f.save()
}

func (f *fileAllowList) load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var file allowListFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}

	for scopeID, tools := range file.Entries {
		for _, tool := range tools {
			if err := f.cache.Allow(tool, scopeID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *fileAllowList) save() error {
	file := allowListFile{Entries: make(map[string][]string, len(f.cache.entries))}
	for scopeID, tools := range f.cache.entries {
		for tool := range tools {
			file.Entries[scopeID] = append(file.Entries[scopeID], tool)
		}
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o600)
}
