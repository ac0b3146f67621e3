// SPDX-FileCopyrightText: Copyright 2026 Truffle AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package index_test

import (
	"context"
	"errors"

	"github.com/truffle-ai/saiki-sub006/pkg/mcp"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp/names"
)

// fakeClient is a scriptable TransportClient advertising fixed capability
// sets. A non-nil listErr fails every list query.
type fakeClient struct {
	tools     []string
	prompts   []string
	resources []string
	listErr   error
}

var _ mcp.TransportClient = (*fakeClient)(nil)

func (*fakeClient) Connect(context.Context) error { return nil }
func (*fakeClient) Disconnect() error             { return nil }

func (f *fakeClient) ListTools(context.Context) ([]mcp.ToolInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	tools := make([]mcp.ToolInfo, len(f.tools))
	for i, name := range f.tools {
		tools[i] = mcp.ToolInfo{Name: name}
	}
	return tools, nil
}

func (f *fakeClient) ListPrompts(context.Context) ([]mcp.PromptInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	prompts := make([]mcp.PromptInfo, len(f.prompts))
	for i, name := range f.prompts {
		prompts[i] = mcp.PromptInfo{Name: name}
	}
	return prompts, nil
}

func (f *fakeClient) ListResources(context.Context) ([]mcp.ResourceInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	resources := make([]mcp.ResourceInfo, len(f.resources))
	for i, uri := range f.resources {
		resources[i] = mcp.ResourceInfo{URI: uri}
	}
	return resources, nil
}

func (*fakeClient) CallTool(context.Context, string, map[string]any) (*mcp.ToolResult, error) {
	return nil, errors.New("not implemented")
}

func (*fakeClient) GetPrompt(context.Context, string, map[string]any) (*mcp.PromptResult, error) {
	return nil, errors.New("not implemented")
}

func (*fakeClient) ReadResource(context.Context, string) (*mcp.ResourceResult, error) {
	return nil, errors.New("not implemented")
}

// newBackend builds a connected backend with a registered identifier.
func newBackend(registry *names.Registry, identifier string, client *fakeClient) *mcp.Backend {
	sanitized, err := registry.Register(identifier)
	if err != nil {
		panic(err)
	}
	return &mcp.Backend{
		Identifier: identifier,
		Sanitized:  sanitized,
		Client:     client,
		Connected:  true,
	}
}
