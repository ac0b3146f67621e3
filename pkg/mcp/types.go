// SPDX-FileCopyrightText: Copyright 2026 Truffle AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"time"
)

// This file contains shared domain types used across the mcp subpackages.
// These are the core concepts that cross package boundaries: backends, the
// capabilities they advertise, and the results of invoking them.

// CapabilityKind distinguishes the three capability namespaces a backend
// can contribute to.
type CapabilityKind string

const (
	// KindTool is an invocable tool.
	KindTool CapabilityKind = "tool"

	// KindPrompt is a retrievable prompt template.
	KindPrompt CapabilityKind = "prompt"

	// KindResource is a readable resource, addressed by URI.
	KindResource CapabilityKind = "resource"
)

// Backend is one independently-connected service exposing tools, prompts
// and resources. Identity is the caller-supplied identifier (typically a
// configuration key); Sanitized is its canonical form used in qualified
// public names.
type Backend struct {
	// Identifier is the unique, caller-supplied backend identifier.
	Identifier string

	// Sanitized is the canonical identifier produced by the name sanitizer.
	// It is safe for embedding in qualified capability names.
	Sanitized string

	// Client is the transport connection to the backend.
	Client TransportClient

	// Connected reports whether the backend's transport is currently up.
	Connected bool
}

// ToolInfo describes a tool advertised by a backend.
type ToolInfo struct {
	// Name is the raw tool name as the backend knows it
	// (may conflict with other backends).
	Name string

	// Description describes what the tool does.
	Description string

	// InputSchema is the JSON Schema for tool parameters. Schemas are
	// backend-defined and runtime-variable, so this stays untyped.
	InputSchema map[string]any
}

// PromptInfo describes a prompt advertised by a backend.
type PromptInfo struct {
	// Name is the raw prompt name as the backend knows it.
	Name string

	// Description describes the prompt.
	Description string
}

// ResourceInfo describes a resource advertised by a backend.
type ResourceInfo struct {
	// URI is the resource URI as the backend knows it.
	URI string

	// Name is a human-readable name.
	Name string

	// Description describes the resource.
	Description string

	// MimeType is the resource's MIME type (optional).
	MimeType string
}

// Content represents one item of tool or prompt output
// (text, image, audio, embedded resource).
type Content struct {
	// Type indicates the content type: "text", "image", "audio", "resource".
	Type string

	// Text is the content text (for text content).
	Text string

	// Data is the base64-encoded data (for image/audio content).
	Data string

	// MimeType is the MIME type (for image/audio content).
	MimeType string

	// URI is the resource URI (for embedded resources).
	URI string
}

// ToolResult wraps a tool call response.
type ToolResult struct {
	// Content is the tool output returned by the backend.
	Content []Content

	// IsError indicates the backend reported a tool-level failure.
	IsError bool

	// Meta contains protocol-level metadata from the backend (_meta field).
	Meta map[string]any
}

// PromptResult wraps a prompt response.
type PromptResult struct {
	// Messages is the concatenated prompt text from all messages.
	Messages string

	// Description is an optional description of the prompt.
	Description string

	// Meta contains protocol-level metadata from the backend (_meta field).
	Meta map[string]any
}

// ResourceResult wraps a resource read response.
type ResourceResult struct {
	// Contents is the concatenated resource data.
	Contents []byte

	// MimeType is the content type of the resource.
	MimeType string

	// Meta contains protocol-level metadata from the backend (_meta field).
	Meta map[string]any
}

// TransportClient abstracts one backend connection. Implementations own the
// wire transport and handshake; failures are returned, never assumed fatal.
//
// All capability names passed to Call/Get/Read methods are the raw names the
// backend itself advertised. Qualified public names never reach a backend.
type TransportClient interface {
	// Connect establishes the connection. Safe to call once per client.
	Connect(ctx context.Context) error

	// ListTools returns the tools the backend currently advertises.
	ListTools(ctx context.Context) ([]ToolInfo, error)

	// ListPrompts returns the prompts the backend currently advertises.
	ListPrompts(ctx context.Context) ([]PromptInfo, error)

	// ListResources returns the resources the backend currently advertises.
	ListResources(ctx context.Context) ([]ResourceInfo, error)

	// CallTool invokes a tool by its raw name.
	CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error)

	// GetPrompt retrieves a prompt by its raw name.
	GetPrompt(ctx context.Context, name string, args map[string]any) (*PromptResult, error)

	// ReadResource reads a resource by its raw URI.
	ReadResource(ctx context.Context, uri string) (*ResourceResult, error)

	// Disconnect tears down the connection. Idempotent.
	Disconnect() error
}

// AllowListProvider persists previously-approved capability names so future
// invocations can skip the confirmation step. Scope is an opaque caller
// identity ("" means global).
type AllowListProvider interface {
	// IsAllowed reports whether toolName is pre-approved for scopeID.
	IsAllowed(toolName, scopeID string) bool

	// Allow records toolName as approved for scopeID.
	Allow(toolName, scopeID string) error
}

// ConfirmationRequest is the outward notification emitted when an invocation
// needs approval, e.g. to a UI.
type ConfirmationRequest struct {
	ExecutionID string         `json:"executionId"`
	ToolName    string         `json:"toolName"`
	Args        map[string]any `json:"args"`
	Description string         `json:"description,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	ScopeID     string         `json:"scopeId,omitempty"`
}

// ConfirmationResponse is the inward answer to a ConfirmationRequest.
type ConfirmationResponse struct {
	ExecutionID    string `json:"executionId"`
	Approved       bool   `json:"approved"`
	RememberChoice bool   `json:"rememberChoice,omitempty"`
	ScopeID        string `json:"scopeId,omitempty"`
}
