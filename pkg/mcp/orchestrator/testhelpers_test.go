// SPDX-FileCopyrightText: Copyright 2026 Truffle AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package orchestrator_test

import (
	"context"
	"sync"

	"github.com/truffle-ai/saiki-sub006/pkg/mcp"
)

// fakeClient is a minimal transport whose connect behavior is scripted.
type fakeClient struct {
	mu            sync.Mutex
	connectErr    error
	connectCalls  int
	disconnected  bool
	disconnectErr error
}

func (f *fakeClient) Connect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	return f.connectErr
}

func (f *fakeClient) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
	return f.disconnectErr
}

func (f *fakeClient) wasDisconnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls
}

func (*fakeClient) ListTools(context.Context) ([]mcp.ToolInfo, error)         { return nil, nil }
func (*fakeClient) ListPrompts(context.Context) ([]mcp.PromptInfo, error)     { return nil, nil }
func (*fakeClient) ListResources(context.Context) ([]mcp.ResourceInfo, error) { return nil, nil }

func (*fakeClient) CallTool(context.Context, string, map[string]any) (*mcp.ToolResult, error) {
	return nil, nil
}

func (*fakeClient) GetPrompt(context.Context, string, map[string]any) (*mcp.PromptResult, error) {
	return nil, nil
}

func (*fakeClient) ReadResource(context.Context, string) (*mcp.ResourceResult, error) {
	return nil, nil
}

// fakeRegistry records registrations and can be scripted to reject them.
type fakeRegistry struct {
	mu          sync.Mutex
	registered  map[string]mcp.TransportClient
	registerErr map[string]error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		registered:  make(map[string]mcp.TransportClient),
		registerErr: make(map[string]error),
	}
}

func (r *fakeRegistry) RegisterBackend(_ context.Context, identifier string, client mcp.TransportClient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.registerErr[identifier]; err != nil {
		return err
	}
	r.registered[identifier] = client
	return nil
}

func (r *fakeRegistry) HasBackend(identifier string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.registered[identifier]
	return ok
}

func (r *fakeRegistry) identifiers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.registered))
	for id := range r.registered {
		out = append(out, id)
	}
	return out
}
