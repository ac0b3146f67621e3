// SPDX-FileCopyrightText: Copyright 2026 Truffle AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package router_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/truffle-ai/saiki-sub006/pkg/mcp"
)

// fakeClient is a scripted backend transport. Every invocation records the
// raw name the router delegated with.
type fakeClient struct {
	mu        sync.Mutex
	tools     []string
	toolDescs map[string]string
	prompts   []string
	resources []string

	calledTools   []string
	readPrompts   []string
	readResources []string
	disconnected  bool
}

func (f *fakeClient) Connect(context.Context) error { return nil }

func (f *fakeClient) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
	return nil
}

func (f *fakeClient) ListTools(context.Context) ([]mcp.ToolInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]mcp.ToolInfo, 0, len(f.tools))
	for _, name := range f.tools {
		out = append(out, mcp.ToolInfo{Name: name, Description: f.toolDescs[name]})
	}
	return out, nil
}

func (f *fakeClient) ListPrompts(context.Context) ([]mcp.PromptInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]mcp.PromptInfo, 0, len(f.prompts))
	for _, name := range f.prompts {
		out = append(out, mcp.PromptInfo{Name: name})
	}
	return out, nil
}

func (f *fakeClient) ListResources(context.Context) ([]mcp.ResourceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]mcp.ResourceInfo, 0, len(f.resources))
	for _, uri := range f.resources {
		out = append(out, mcp.ResourceInfo{URI: uri, Name: uri})
	}
	return out, nil
}

func (f *fakeClient) CallTool(_ context.Context, name string, _ map[string]any) (*mcp.ToolResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calledTools = append(f.calledTools, name)
	return &mcp.ToolResult{
		Content: []mcp.Content{{Type: "text", Text: fmt.Sprintf("result of %s", name)}},
	}, nil
}

func (f *fakeClient) GetPrompt(_ context.Context, name string, _ map[string]any) (*mcp.PromptResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readPrompts = append(f.readPrompts, name)
	return &mcp.PromptResult{Description: name}, nil
}

func (f *fakeClient) ReadResource(_ context.Context, uri string) (*mcp.ResourceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readResources = append(f.readResources, uri)
	return &mcp.ResourceResult{Contents: []byte("contents of " + uri), MimeType: "text/plain"}, nil
}

// addTool makes the backend advertise one more tool, simulating a backend
// whose capability set changed after the last index refresh.
func (f *fakeClient) addTool(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tools = append(f.tools, name)
}

func (f *fakeClient) toolCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calledTools...)
}

func (f *fakeClient) wasDisconnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected
}

// approveAll answers every confirmation request immediately.
type approveAll struct {
	respond func(mcp.ConfirmationResponse)
}

func (a *approveAll) Notify(_ context.Context, req mcp.ConfirmationRequest) error {
	go a.respond(mcp.ConfirmationResponse{ExecutionID: req.ExecutionID, Approved: true})
	return nil
}

// denyAll answers every confirmation request with a denial.
type denyAll struct {
	respond func(mcp.ConfirmationResponse)
}

func (d *denyAll) Notify(_ context.Context, req mcp.ConfirmationRequest) error {
	go d.respond(mcp.ConfirmationResponse{ExecutionID: req.ExecutionID, Approved: false})
	return nil
}
