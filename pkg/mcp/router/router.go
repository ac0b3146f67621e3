// SPDX-FileCopyrightText: Copyright 2026 Truffle AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package router provides the capability router façade: it registers and
// removes backends, keeps the capability index current, and serves
// capability invocations by resolving public names, passing tool calls
// through the confirmation gate, and delegating to the owning backend with
// the raw capability name. Qualified public names are purely an addressing
// concern and never reach a backend.
package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/truffle-ai/saiki-sub006/pkg/logger"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp/confirm"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp/index"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp/names"
)

// Router aggregates the capabilities of every registered backend into one
// collision-resolved namespace and dispatches invocations. Safe for
// concurrent use. Construct one per process or session; all shared state
// is reached only through its methods.
type Router struct {
	mu       sync.RWMutex
	backends map[string]*mcp.Backend

	registry *names.Registry
	index    *index.Index

	// gate intercepts tool invocations before delegation. nil disables the
	// confirmation step entirely.
	gate *confirm.Gate
}

// Option configures a Router.
type Option func(*Router)

// WithConfirmationGate installs the approve/deny checkpoint applied to
// every tool invocation.
func WithConfirmationGate(gate *confirm.Gate) Option {
	return func(r *Router) {
		r.gate = gate
	}
}

// New creates an empty capability router.
func New(opts ...Option) *Router {
	registry := names.NewRegistry()
	r := &Router{
		backends: make(map[string]*mcp.Backend),
		registry: registry,
		index:    index.New(registry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterBackend adds a connected backend under identifier and refreshes
// its index contribution. The sanitizer collision check runs before any
// mutation, so a rejected registration leaves the router unchanged.
// Re-registering the same identifier overwrites its client in place.
func (r *Router) RegisterBackend(ctx context.Context, identifier string, client mcp.TransportClient) error {
	sanitized, err := r.registry.Register(identifier)
	if err != nil {
		return err
	}

	backend := &mcp.Backend{
		Identifier: identifier,
		Sanitized:  sanitized,
		Client:     client,
		Connected:  true,
	}

	r.mu.Lock()
	r.backends[identifier] = backend
	r.mu.Unlock()

	r.index.RefreshOne(ctx, backend)
	logger.Infof("Registered backend %s (canonical %s)", identifier, sanitized)
	return nil
}

// HasBackend reports whether identifier is currently registered.
func (r *Router) HasBackend(identifier string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.backends[identifier]
	return ok
}

// Backends returns a snapshot of the registered backends.
func (r *Router) Backends() []*mcp.Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*mcp.Backend, 0, len(r.backends))
	for _, backend := range r.backends {
		out = append(out, backend)
	}
	return out
}

// RemoveBackend disconnects and deregisters a backend, then recomputes the
// index so names the backend was conflicting over become unqualified again.
// Transport-level disconnect failures are logged, not returned.
func (r *Router) RemoveBackend(identifier string) error {
	r.mu.Lock()
	backend, ok := r.backends[identifier]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("backend %s is not registered", identifier)
	}
	delete(r.backends, identifier)
	r.mu.Unlock()

	// The Backend record stays immutable here: a concurrent rebuild may
	// still be reading it, and deregistration below is what makes the
	// backend unreachable.
	if backend.Client != nil {
		if err := backend.Client.Disconnect(); err != nil {
			logger.Warnf("Failed to disconnect backend %s: %v", identifier, err)
		}
	}

	r.registry.Unregister(identifier)
	r.index.Remove(identifier)
	logger.Infof("Removed backend %s", identifier)
	return nil
}

// RebuildIndex recomputes the whole capability index from the current
// backend registry snapshot.
func (r *Router) RebuildIndex(ctx context.Context) {
	r.index.RebuildAll(ctx, r.Backends())
}

// Capabilities returns the current public capability table for one kind.
func (r *Router) Capabilities(kind mcp.CapabilityKind) []index.Entry {
	return r.index.Entries(kind)
}

// Tool returns the advertised schema for a tool owned by a backend.
func (r *Router) Tool(identifier, rawName string) (mcp.ToolInfo, bool) {
	return r.index.Tool(identifier, rawName)
}

// Pending returns the in-flight confirmations, if a gate is installed.
func (r *Router) Pending() []confirm.PendingConfirmation {
	if r.gate == nil {
		return nil
	}
	return r.gate.Pending()
}

// HandleConfirmationResponse forwards an approval or denial to the gate.
// A no-op when no gate is installed or the execution id is unknown.
func (r *Router) HandleConfirmationResponse(resp mcp.ConfirmationResponse) {
	if r.gate != nil {
		r.gate.HandleResponse(resp)
	}
}

// CancelConfirmations settles every in-flight confirmation with a
// cancellation error before returning.
func (r *Router) CancelConfirmations() {
	if r.gate != nil {
		r.gate.CancelAll()
	}
}

// CallTool resolves publicName, passes the confirmation gate, and invokes
// the tool on its owning backend using the raw name. Lookup misses trigger
// one index refresh and a single retry before failing with
// mcp.ErrCapabilityNotFound; a denial fails with mcp.ErrExecutionDenied.
func (r *Router) CallTool(ctx context.Context, publicName string, args map[string]any, scopeID string) (*mcp.ToolResult, error) {
	backend, rawName, err := r.resolve(ctx, mcp.KindTool, publicName)
	if err != nil {
		return nil, err
	}

	if r.gate != nil {
		approved, err := r.gate.RequestConfirmation(ctx, publicName, args, scopeID)
		if err != nil {
			return nil, err
		}
		if !approved {
			return nil, fmt.Errorf("%w: tool %s", mcp.ErrExecutionDenied, publicName)
		}
	}

	logger.Debugf("Calling tool %s (raw %s) on backend %s", publicName, rawName, backend.Identifier)
	return backend.Client.CallTool(ctx, rawName, args)
}

// GetPrompt resolves publicName and retrieves the prompt from its owning
// backend using the raw name.
func (r *Router) GetPrompt(ctx context.Context, publicName string, args map[string]any) (*mcp.PromptResult, error) {
	backend, rawName, err := r.resolve(ctx, mcp.KindPrompt, publicName)
	if err != nil {
		return nil, err
	}
	return backend.Client.GetPrompt(ctx, rawName, args)
}

// ReadResource resolves publicURI and reads the resource from its owning
// backend using the raw URI.
func (r *Router) ReadResource(ctx context.Context, publicURI string) (*mcp.ResourceResult, error) {
	backend, rawURI, err := r.resolve(ctx, mcp.KindResource, publicURI)
	if err != nil {
		return nil, err
	}
	return backend.Client.ReadResource(ctx, rawURI)
}

// resolve maps a public name to its owning backend and raw name. On a miss
// it refreshes once and retries once: when the name parses as a qualified
// name of a known backend only that backend is refreshed, otherwise the
// whole index is rebuilt.
func (r *Router) resolve(ctx context.Context, kind mcp.CapabilityKind, publicName string) (*mcp.Backend, string, error) {
	if backend, rawName, ok := r.lookup(kind, publicName); ok {
		return backend, rawName, nil
	}

	if identifier, _, ok := r.registry.SplitQualified(publicName); ok {
		if backend, registered := r.index.Owner(identifier); registered {
			logger.Debugf("Cache miss for %s %q, refreshing backend %s", kind, publicName, identifier)
			r.index.RefreshOne(ctx, backend)
			if backend, rawName, ok := r.lookup(kind, publicName); ok {
				return backend, rawName, nil
			}
		}
	}

	logger.Debugf("Cache miss for %s %q, rebuilding index", kind, publicName)
	r.RebuildIndex(ctx)

	if backend, rawName, ok := r.lookup(kind, publicName); ok {
		return backend, rawName, nil
	}
	return nil, "", fmt.Errorf("%w: %s %q", mcp.ErrCapabilityNotFound, kind, publicName)
}

// lookup checks the public table first, then falls back to qualified-name
// resolution so the qualified form of an unconflicted capability keeps
// working even while only its unqualified entry is published.
func (r *Router) lookup(kind mcp.CapabilityKind, publicName string) (*mcp.Backend, string, bool) {
	if backend, rawName, ok := r.index.Lookup(kind, publicName); ok {
		return backend, rawName, ok
	}
	return r.index.ResolveQualified(kind, publicName)
}
