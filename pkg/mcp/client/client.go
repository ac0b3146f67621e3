// SPDX-FileCopyrightText: Copyright 2026 Truffle AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client implements the TransportClient contract over the
// mark3labs/mcp-go SDK. It supports stdio, SSE and streamable-HTTP backend
// servers, performs the MCP initialize handshake on connect, and converts
// SDK types to the domain types the rest of the router works with.
package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpsdk "github.com/mark3labs/mcp-go/mcp"

	"github.com/truffle-ai/saiki-sub006/pkg/logger"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp"
)

const (
	// clientName identifies this router to backend servers during the
	// initialize handshake.
	clientName = "capability-router"

	// defaultHTTPTimeout bounds individual HTTP requests to backends.
	defaultHTTPTimeout = 30 * time.Second

	// defaultConnectRetries is the number of additional connection attempts
	// after the initial one fails with a transient error.
	defaultConnectRetries = 2
)

// Config describes how to reach one backend server.
type Config struct {
	// Transport selects the connection type: "stdio", "sse" or
	// "streamable-http".
	Transport string `yaml:"transport"`

	// Command and Args launch a stdio backend as a subprocess.
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`

	// Env is extra environment for a stdio subprocess, KEY=VALUE.
	Env []string `yaml:"env,omitempty"`

	// URL is the base URL of an HTTP backend.
	URL string `yaml:"url,omitempty"`

	// Headers are added to every HTTP request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// ConnectRetries overrides the retry count for transient connection
	// failures. Negative disables retries.
	ConnectRetries int `yaml:"connectRetries,omitempty"`
}

// Client is a TransportClient backed by one mark3labs MCP client.
type Client struct {
	mu        sync.Mutex
	cfg       Config
	sdk       *mcpclient.Client
	connected bool
}

var _ mcp.TransportClient = (*Client)(nil)

// New creates an unconnected client for the given descriptor.
func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Connect establishes the transport and performs the MCP initialize
// handshake, retrying transient failures with exponential backoff.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	retries := c.cfg.ConnectRetries
	if retries == 0 {
		retries = defaultConnectRetries
	}
	if retries < 0 {
		retries = 0
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 250 * time.Millisecond

	attempt := 0
	operation := func() (*mcpclient.Client, error) {
		attempt++
		sdk, err := c.dial(ctx)
		if err != nil {
			logger.Warnf("Connection attempt %d/%d failed: %v", attempt, retries+1, err)
			return nil, err
		}
		return sdk, nil
	}

	sdk, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(uint(retries+1)),
		backoff.WithNotify(func(_ error, duration time.Duration) {
			logger.Debugf("Retrying connection after %v", duration)
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", mcp.ErrConnectionFailed, err)
	}

	c.sdk = sdk
	c.connected = true
	return nil
}

// dial creates, starts and initializes one SDK client.
func (c *Client) dial(ctx context.Context) (*mcpclient.Client, error) {
	var (
		sdk        *mcpclient.Client
		err        error
		needsStart bool
	)

	switch c.cfg.Transport {
	case "stdio":
		// NewStdioMCPClient launches the subprocess and starts the
		// transport itself.
		sdk, err = mcpclient.NewStdioMCPClient(c.cfg.Command, c.cfg.Env, c.cfg.Args...)
		if err != nil {
			return nil, fmt.Errorf("failed to create stdio client: %w", err)
		}

	case "sse":
		sdk, err = mcpclient.NewSSEMCPClient(c.cfg.URL, transport.WithHeaders(c.cfg.Headers))
		if err != nil {
			return nil, fmt.Errorf("failed to create SSE client: %w", err)
		}
		needsStart = true

	case "streamable-http", "streamable":
		sdk, err = mcpclient.NewStreamableHttpClient(c.cfg.URL,
			transport.WithHTTPTimeout(defaultHTTPTimeout),
			transport.WithHTTPHeaders(c.cfg.Headers),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create streamable-http client: %w", err)
		}
		needsStart = true

	default:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s (supported: stdio, sse, streamable-http)",
			mcp.ErrUnsupportedTransport, c.cfg.Transport))
	}

	if needsStart {
		if err := sdk.Start(ctx); err != nil {
			closeQuietly(sdk)
			return nil, fmt.Errorf("failed to start client connection: %w", err)
		}
	}

	if _, err := sdk.Initialize(ctx, mcpsdk.InitializeRequest{
		Params: mcpsdk.InitializeParams{
			ProtocolVersion: mcpsdk.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcpsdk.Implementation{
				Name:    clientName,
				Version: "0.1.0",
			},
		},
	}); err != nil {
		closeQuietly(sdk)
		return nil, fmt.Errorf("initialize handshake failed: %w", err)
	}

	return sdk, nil
}

// ListTools returns the tools the backend currently advertises.
func (c *Client) ListTools(ctx context.Context) ([]mcp.ToolInfo, error) {
	sdk, err := c.session()
	if err != nil {
		return nil, err
	}

	result, err := sdk.ListTools(ctx, mcpsdk.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	tools := make([]mcp.ToolInfo, len(result.Tools))
	for i, tool := range result.Tools {
		tools[i] = mcp.ToolInfo{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: convertInputSchema(tool.InputSchema),
		}
	}
	return tools, nil
}

// ListPrompts returns the prompts the backend currently advertises.
func (c *Client) ListPrompts(ctx context.Context) ([]mcp.PromptInfo, error) {
	sdk, err := c.session()
	if err != nil {
		return nil, err
	}

	result, err := sdk.ListPrompts(ctx, mcpsdk.ListPromptsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}

	prompts := make([]mcp.PromptInfo, len(result.Prompts))
	for i, prompt := range result.Prompts {
		prompts[i] = mcp.PromptInfo{
			Name:        prompt.Name,
			Description: prompt.Description,
		}
	}
	return prompts, nil
}

// ListResources returns the resources the backend currently advertises.
func (c *Client) ListResources(ctx context.Context) ([]mcp.ResourceInfo, error) {
	sdk, err := c.session()
	if err != nil {
		return nil, err
	}

	result, err := sdk.ListResources(ctx, mcpsdk.ListResourcesRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}

	resources := make([]mcp.ResourceInfo, len(result.Resources))
	for i, resource := range result.Resources {
		resources[i] = mcp.ResourceInfo{
			URI:         resource.URI,
			Name:        resource.Name,
			Description: resource.Description,
			MimeType:    resource.MIMEType,
		}
	}
	return resources, nil
}

// CallTool invokes a tool by its raw name.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.ToolResult, error) {
	sdk, err := c.session()
	if err != nil {
		return nil, err
	}

	result, err := sdk.CallTool(ctx, mcpsdk.CallToolRequest{
		Params: mcpsdk.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tool call %s failed: %w", name, err)
	}

	content := make([]mcp.Content, len(result.Content))
	for i, item := range result.Content {
		content[i] = convertContent(item)
	}

	return &mcp.ToolResult{
		Content: content,
		IsError: result.IsError,
		Meta:    fromMeta(result.Meta),
	}, nil
}

// GetPrompt retrieves a prompt by its raw name.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]any) (*mcp.PromptResult, error) {
	sdk, err := c.session()
	if err != nil {
		return nil, err
	}

	// MCP prompt arguments are strings on the wire.
	stringArgs := make(map[string]string, len(args))
	for k, v := range args {
		stringArgs[k] = fmt.Sprintf("%v", v)
	}

	result, err := sdk.GetPrompt(ctx, mcpsdk.GetPromptRequest{
		Params: mcpsdk.GetPromptParams{
			Name:      name,
			Arguments: stringArgs,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("prompt get %s failed: %w", name, err)
	}

	var messages string
	for _, msg := range result.Messages {
		if msg.Role != "" {
			messages += fmt.Sprintf("[%s] ", msg.Role)
		}
		if textContent, ok := mcpsdk.AsTextContent(msg.Content); ok {
			messages += textContent.Text + "\n"
		}
	}

	return &mcp.PromptResult{
		Messages:    messages,
		Description: result.Description,
		Meta:        fromMeta(result.Meta),
	}, nil
}

// ReadResource reads a resource by its raw URI. Multiple contents are
// concatenated; blob contents are base64-decoded first.
func (c *Client) ReadResource(ctx context.Context, uri string) (*mcp.ResourceResult, error) {
	sdk, err := c.session()
	if err != nil {
		return nil, err
	}

	result, err := sdk.ReadResource(ctx, mcpsdk.ReadResourceRequest{
		Params: mcpsdk.ReadResourceParams{
			URI: uri,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("resource read %s failed: %w", uri, err)
	}

	var data []byte
	var mimeType string
	for i, content := range result.Contents {
		if textContent, ok := mcpsdk.AsTextResourceContents(content); ok {
			data = append(data, []byte(textContent.Text)...)
			if i == 0 && textContent.MIMEType != "" {
				mimeType = textContent.MIMEType
			}
		} else if blobContent, ok := mcpsdk.AsBlobResourceContents(content); ok {
			decoded, err := base64.StdEncoding.DecodeString(blobContent.Blob)
			if err != nil {
				logger.Warnf("Failed to decode base64 blob from resource %s: %v", uri, err)
				data = append(data, []byte(blobContent.Blob)...)
			} else {
				data = append(data, decoded...)
			}
			if i == 0 && blobContent.MIMEType != "" {
				mimeType = blobContent.MIMEType
			}
		}
	}

	return &mcp.ResourceResult{
		Contents: data,
		MimeType: mimeType,
	}, nil
}

// Disconnect tears down the connection. Idempotent.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false

	if err := c.sdk.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}
	return nil
}

// session returns the live SDK client or mcp.ErrNotConnected.
func (c *Client) session() (*mcpclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.sdk == nil {
		return nil, mcp.ErrNotConnected
	}
	return c.sdk, nil
}

func closeQuietly(sdk *mcpclient.Client) {
	if err := sdk.Close(); err != nil {
		logger.Debugf("Failed to close client: %v", err)
	}
}

// convertInputSchema flattens the SDK's tool input schema into the untyped
// JSON-Schema map the domain types carry.
func convertInputSchema(schema mcpsdk.ToolInputSchema) map[string]any {
	out := map[string]any{
		"type": schema.Type,
	}
	if schema.Properties != nil {
		out["properties"] = schema.Properties
	}
	if len(schema.Required) > 0 {
		out["required"] = schema.Required
	}
	if schema.Defs != nil {
		out["$defs"] = schema.Defs
	}
	return out
}

// convertContent converts SDK content to the domain content type. Unknown
// content types are preserved with type "unknown" rather than dropped.
func convertContent(content mcpsdk.Content) mcp.Content {
	if textContent, ok := mcpsdk.AsTextContent(content); ok {
		return mcp.Content{
			Type: "text",
			Text: textContent.Text,
		}
	}
	if imageContent, ok := mcpsdk.AsImageContent(content); ok {
		return mcp.Content{
			Type:     "image",
			Data:     imageContent.Data,
			MimeType: imageContent.MIMEType,
		}
	}
	if audioContent, ok := mcpsdk.AsAudioContent(content); ok {
		return mcp.Content{
			Type:     "audio",
			Data:     audioContent.Data,
			MimeType: audioContent.MIMEType,
		}
	}
	logger.Warnf("Encountered unknown content type %T, marking as unknown content", content)
	return mcp.Content{Type: "unknown"}
}

// fromMeta converts the SDK _meta field to a plain map, preserving the
// progress token and custom fields. Nil or empty meta stays nil.
func fromMeta(meta *mcpsdk.Meta) map[string]any {
	if meta == nil {
		return nil
	}

	out := make(map[string]any)
	if meta.ProgressToken != nil {
		out["progressToken"] = meta.ProgressToken
	}
	for k, v := range meta.AdditionalFields {
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
