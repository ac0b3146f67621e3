// SPDX-FileCopyrightText: Copyright 2026 Truffle AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package index derives the global, collision-resolved capability lookup
// table from the capabilities each connected backend advertises.
//
// Per raw name and capability kind, the index tracks the set of backends
// currently exposing it. A name owned by exactly one backend is published
// unqualified; the moment a second owner appears, both instances are
// re-keyed to qualified names and the unqualified entry disappears. The
// transition is symmetric under removal: when a conflict resolves back to a
// single owner, the unqualified entry is restored and the qualified entries
// for the resolved conflict become unresolvable.
package index

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/truffle-ai/saiki-sub006/pkg/logger"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp/names"
)

// maxConcurrentQueries caps parallel capability queries during a full
// rebuild to avoid overwhelming backends.
const maxConcurrentQueries = 10

// Entry is one row of the public capability table.
type Entry struct {
	// PublicName is the name clients use: the raw name while unambiguous,
	// the qualified form while in conflict.
	PublicName string

	// RawName is the name the owning backend knows the capability by.
	RawName string

	// Backend owns the capability.
	Backend *mcp.Backend

	// Kind is the capability namespace this entry belongs to.
	Kind mcp.CapabilityKind
}

// contribution is one backend's current advertised capability set, keyed by
// raw name (URI for resources).
type contribution struct {
	tools     map[string]mcp.ToolInfo
	prompts   map[string]mcp.PromptInfo
	resources map[string]mcp.ResourceInfo
}

func emptyContribution() *contribution {
	return &contribution{
		tools:     make(map[string]mcp.ToolInfo),
		prompts:   make(map[string]mcp.PromptInfo),
		resources: make(map[string]mcp.ResourceInfo),
	}
}

func (c *contribution) namesByKind() map[mcp.CapabilityKind][]string {
	out := make(map[mcp.CapabilityKind][]string, 3)
	for name := range c.tools {
		out[mcp.KindTool] = append(out[mcp.KindTool], name)
	}
	for name := range c.prompts {
		out[mcp.KindPrompt] = append(out[mcp.KindPrompt], name)
	}
	for uri := range c.resources {
		out[mcp.KindResource] = append(out[mcp.KindResource], uri)
	}
	return out
}

// Index owns the per-backend capability sets and the derived public lookup
// tables. Safe for concurrent use; rebuilds are idempotent given the current
// set of backends, so overlapping rebuilds settle on "last rebuild wins".
type Index struct {
	mu       sync.RWMutex
	registry *names.Registry

	// contribs holds each backend's current capability set.
	contribs map[string]*contribution

	// backends holds the backend records contributing to the table.
	backends map[string]*mcp.Backend

	// owners tracks, per kind and raw name, the set of owning backends.
	owners map[mcp.CapabilityKind]map[string]map[string]*mcp.Backend

	// public is the derived lookup table, per kind and public name.
	public map[mcp.CapabilityKind]map[string]Entry
}

// New creates an empty index backed by the given identifier registry.
func New(registry *names.Registry) *Index {
	ix := &Index{
		registry: registry,
		contribs: make(map[string]*contribution),
		backends: make(map[string]*mcp.Backend),
		owners:   make(map[mcp.CapabilityKind]map[string]map[string]*mcp.Backend),
		public:   make(map[mcp.CapabilityKind]map[string]Entry),
	}
	for _, kind := range []mcp.CapabilityKind{mcp.KindTool, mcp.KindPrompt, mcp.KindResource} {
		ix.owners[kind] = make(map[string]map[string]*mcp.Backend)
		ix.public[kind] = make(map[string]Entry)
	}
	return ix
}

// RebuildAll clears all derived tables and recomputes them from scratch by
// querying every connected backend. Queries run concurrently and settle
// before any table mutation, so partial results are never visible to
// Lookup. A backend whose query fails degrades to zero capabilities; the
// failure is logged, not returned.
func (ix *Index) RebuildAll(ctx context.Context, backends []*mcp.Backend) {
	logger.Debugf("Rebuilding capability index from %d backends", len(backends))

	contribs := make(map[string]*contribution, len(backends))
	var contribMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQueries)
	for _, backend := range backends {
		g.Go(func() error {
			c := queryBackend(gctx, backend)
			contribMu.Lock()
			contribs[backend.Identifier] = c
			contribMu.Unlock()
			return nil
		})
	}
	// Workers never return errors; failures degrade to empty contributions.
	_ = g.Wait()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.contribs = make(map[string]*contribution, len(backends))
	ix.backends = make(map[string]*mcp.Backend, len(backends))
	for _, kind := range []mcp.CapabilityKind{mcp.KindTool, mcp.KindPrompt, mcp.KindResource} {
		ix.owners[kind] = make(map[string]map[string]*mcp.Backend)
		ix.public[kind] = make(map[string]Entry)
	}

	for _, backend := range backends {
		ix.backends[backend.Identifier] = backend
		c := contribs[backend.Identifier]
		if c == nil {
			c = emptyContribution()
		}
		ix.contribs[backend.Identifier] = c
		affected := ix.addOwnersLocked(backend, c)
		ix.recomputeLocked(affected)
	}

	logger.Infof("Capability index rebuilt: %d tools, %d prompts, %d resources",
		len(ix.public[mcp.KindTool]), len(ix.public[mcp.KindPrompt]), len(ix.public[mcp.KindResource]))
}

// RefreshOne re-queries a single backend and updates only its contributed
// entries, recomputing collisions touching that backend's names without
// disturbing unrelated backends' unqualified entries.
func (ix *Index) RefreshOne(ctx context.Context, backend *mcp.Backend) {
	c := queryBackend(ctx, backend)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	affected := ix.dropContributionLocked(backend.Identifier)

	ix.backends[backend.Identifier] = backend
	ix.contribs[backend.Identifier] = c
	mergeAffected(affected, ix.addOwnersLocked(backend, c))
	ix.recomputeLocked(affected)

	logger.Debugf("Refreshed capability index for backend %s: %d tools, %d prompts, %d resources",
		backend.Identifier, len(c.tools), len(c.prompts), len(c.resources))
}

// Remove drops a backend's contribution from the index, restoring the
// unqualified entry for any raw name whose conflict it resolves.
func (ix *Index) Remove(identifier string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	affected := ix.dropContributionLocked(identifier)
	delete(ix.backends, identifier)
	ix.recomputeLocked(affected)
}

// Lookup resolves a public name (unqualified or qualified) to the owning
// backend and the raw name to forward to it. O(1).
func (ix *Index) Lookup(kind mcp.CapabilityKind, publicName string) (*mcp.Backend, string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entry, ok := ix.public[kind][publicName]
	if !ok {
		return nil, "", false
	}
	return entry.Backend, entry.RawName, true
}

// ResolveQualified splits a qualified name via the sanitized-identifier
// registry and verifies the raw name is currently owned by that backend.
// Returns ok=false for unknown identifiers or unowned names.
func (ix *Index) ResolveQualified(kind mcp.CapabilityKind, qualifiedName string) (*mcp.Backend, string, bool) {
	identifier, rawName, ok := ix.registry.SplitQualified(qualifiedName)
	if !ok {
		return nil, "", false
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	set, ok := ix.owners[kind][rawName]
	if !ok {
		return nil, "", false
	}
	backend, ok := set[identifier]
	if !ok {
		return nil, "", false
	}
	return backend, rawName, true
}

// Owner returns the backend identified by identifier if it currently
// contributes to the index.
func (ix *Index) Owner(identifier string) (*mcp.Backend, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	backend, ok := ix.backends[identifier]
	return backend, ok
}

// Entries returns a snapshot of the public table for one capability kind.
func (ix *Index) Entries(kind mcp.CapabilityKind) []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entries := make([]Entry, 0, len(ix.public[kind]))
	for _, entry := range ix.public[kind] {
		entries = append(entries, entry)
	}
	return entries
}

// Tool returns the advertised schema for a tool owned by a backend.
func (ix *Index) Tool(identifier, rawName string) (mcp.ToolInfo, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	c, ok := ix.contribs[identifier]
	if !ok {
		return mcp.ToolInfo{}, false
	}
	info, ok := c.tools[rawName]
	return info, ok
}

// addOwnersLocked inserts a backend's contribution into the owner sets and
// returns the affected raw names per kind.
func (ix *Index) addOwnersLocked(backend *mcp.Backend, c *contribution) map[mcp.CapabilityKind][]string {
	affected := c.namesByKind()
	for kind, rawNames := range affected {
		for _, rawName := range rawNames {
			set, ok := ix.owners[kind][rawName]
			if !ok {
				set = make(map[string]*mcp.Backend)
				ix.owners[kind][rawName] = set
			}
			set[backend.Identifier] = backend
		}
	}
	return affected
}

// dropContributionLocked removes a backend from the owner sets and returns
// the raw names whose public entries must be recomputed. The backend's
// stale qualified entries are deleted during recompute.
func (ix *Index) dropContributionLocked(identifier string) map[mcp.CapabilityKind][]string {
	c, ok := ix.contribs[identifier]
	if !ok {
		return make(map[mcp.CapabilityKind][]string)
	}
	delete(ix.contribs, identifier)

	affected := c.namesByKind()
	for kind, rawNames := range affected {
		for _, rawName := range rawNames {
			set := ix.owners[kind][rawName]
			if backend, owned := set[identifier]; owned {
				delete(set, identifier)
				// Stale qualified entry for the departing owner.
				delete(ix.public[kind], names.Qualify(backend.Sanitized, rawName))
			}
			if len(set) == 0 {
				delete(ix.owners[kind], rawName)
			}
		}
	}
	return affected
}

// recomputeLocked re-derives the public entries for the affected raw names.
// Size 0 owner sets leave the table; size 1 publishes the unqualified name;
// size >= 2 publishes one qualified entry per owner and removes the
// unqualified entry.
func (ix *Index) recomputeLocked(affected map[mcp.CapabilityKind][]string) {
	for kind, rawNames := range affected {
		for _, rawName := range rawNames {
			set := ix.owners[kind][rawName]

			// Drop the unqualified entry unconditionally; the single-owner
			// case below re-publishes it.
			if existing, ok := ix.public[kind][rawName]; ok && existing.RawName == rawName && existing.PublicName == rawName {
				delete(ix.public[kind], rawName)
			}

			switch {
			case len(set) == 0:
				// Absent from the public table.

			case len(set) == 1:
				for _, backend := range set {
					// The owner's qualified entry is only valid while the
					// name is in conflict.
					delete(ix.public[kind], names.Qualify(backend.Sanitized, rawName))
					ix.public[kind][rawName] = Entry{
						PublicName: rawName,
						RawName:    rawName,
						Backend:    backend,
						Kind:       kind,
					}
				}

			default:
				for _, backend := range set {
					qualified := names.Qualify(backend.Sanitized, rawName)
					ix.public[kind][qualified] = Entry{
						PublicName: qualified,
						RawName:    rawName,
						Backend:    backend,
						Kind:       kind,
					}
				}
				logger.Debugf("Capability name conflict on %s %q: %d owners, published qualified entries",
					kind, rawName, len(set))
			}
		}
	}
}

// queryBackend fetches a backend's advertised capabilities. Any query
// failure degrades the backend to zero capabilities rather than aborting
// the caller's rebuild.
func queryBackend(ctx context.Context, backend *mcp.Backend) *contribution {
	c := emptyContribution()
	if backend == nil || backend.Client == nil || !backend.Connected {
		return c
	}

	tools, err := backend.Client.ListTools(ctx)
	if err != nil {
		logger.Warnf("Failed to list tools from backend %s, degrading to zero capabilities: %v",
			backend.Identifier, err)
		return emptyContribution()
	}
	for _, tool := range tools {
		c.tools[tool.Name] = tool
	}

	prompts, err := backend.Client.ListPrompts(ctx)
	if err != nil {
		logger.Warnf("Failed to list prompts from backend %s, degrading to zero capabilities: %v",
			backend.Identifier, err)
		return emptyContribution()
	}
	for _, prompt := range prompts {
		c.prompts[prompt.Name] = prompt
	}

	resources, err := backend.Client.ListResources(ctx)
	if err != nil {
		logger.Warnf("Failed to list resources from backend %s, degrading to zero capabilities: %v",
			backend.Identifier, err)
		return emptyContribution()
	}
	for _, resource := range resources {
		c.resources[resource.URI] = resource
	}

	return c
}

func mergeAffected(dst, src map[mcp.CapabilityKind][]string) {
	for kind, rawNames := range src {
		seen := make(map[string]struct{}, len(dst[kind]))
		for _, name := range dst[kind] {
			seen[name] = struct{}{}
		}
		for _, name := range rawNames {
			if _, ok := seen[name]; !ok {
				dst[kind] = append(dst[kind], name)
			}
		}
	}
}
