// SPDX-FileCopyrightText: Copyright 2026 Truffle AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates the YAML configuration describing the
// backends to connect, the batch connection policy, and the confirmation
// settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/truffle-ai/saiki-sub006/pkg/mcp"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp/client"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp/orchestrator"
)

// defaultConfirmationTimeout applies when the file doesn't set one.
const defaultConfirmationTimeout = 2 * time.Minute

// Duration wraps time.Duration for YAML values like "30s".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration back to its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Value returns the wrapped time.Duration.
func (d Duration) Value() time.Duration {
	return time.Duration(d)
}

// BackendConfig describes one backend connection.
type BackendConfig struct {
	client.Config `yaml:",inline"`

	// ConnectionMode overrides the top-level mode for this backend:
	// "strict" or "lenient".
	ConnectionMode string `yaml:"connectionMode,omitempty"`
}

// Config is the full router configuration.
type Config struct {
	// ConnectionMode is the default batch policy for backends that don't
	// set their own: "strict" or "lenient". Defaults to lenient.
	ConnectionMode string `yaml:"connectionMode,omitempty"`

	// ConfirmationTimeout bounds how long a tool invocation waits for an
	// approval before failing.
	ConfirmationTimeout Duration `yaml:"confirmationTimeout,omitempty"`

	// AllowListPath, when set, persists remembered approvals to this file.
	AllowListPath string `yaml:"allowListPath,omitempty"`

	// Backends maps backend identifier to its connection descriptor.
	Backends map[string]BackendConfig `yaml:"backends"`
}

// Load reads, parses, defaults and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.ConnectionMode == "" {
		c.ConnectionMode = string(orchestrator.RequirementLenient)
	}
	if c.ConfirmationTimeout == 0 {
		c.ConfirmationTimeout = Duration(defaultConfirmationTimeout)
	}
}

// Validate checks the configuration for contradictions and omissions.
func (c *Config) Validate() error {
	if err := validateMode(c.ConnectionMode); err != nil {
		return err
	}

	for identifier, backend := range c.Backends {
		if identifier == "" {
			return fmt.Errorf("backend identifiers cannot be empty")
		}
		if backend.ConnectionMode != "" {
			if err := validateMode(backend.ConnectionMode); err != nil {
				return fmt.Errorf("backend %s: %w", identifier, err)
			}
		}

		switch backend.Transport {
		case "stdio":
			if backend.Command == "" {
				return fmt.Errorf("backend %s: stdio transport requires a command", identifier)
			}
		case "sse", "streamable-http", "streamable":
			if backend.URL == "" {
				return fmt.Errorf("backend %s: %s transport requires a url", identifier, backend.Transport)
			}
		case "":
			return fmt.Errorf("backend %s: transport is required", identifier)
		default:
			return fmt.Errorf("backend %s: %w: %s", identifier, mcp.ErrUnsupportedTransport, backend.Transport)
		}
	}
	return nil
}

func validateMode(mode string) error {
	switch orchestrator.SuccessRequirement(mode) {
	case orchestrator.RequirementStrict, orchestrator.RequirementLenient:
		return nil
	default:
		return fmt.Errorf("invalid connection mode %q (expected strict or lenient)", mode)
	}
}

// Requirement returns the effective success requirement for one backend.
func (c *Config) Requirement(identifier string) orchestrator.SuccessRequirement {
	backend, ok := c.Backends[identifier]
	if ok && backend.ConnectionMode != "" {
		return orchestrator.SuccessRequirement(backend.ConnectionMode)
	}
	return orchestrator.SuccessRequirement(c.ConnectionMode)
}

// Descriptors builds the orchestrator batch from the configured backends.
func (c *Config) Descriptors() map[string]orchestrator.Descriptor {
	descriptors := make(map[string]orchestrator.Descriptor, len(c.Backends))
	for identifier, backend := range c.Backends {
		descriptors[identifier] = orchestrator.Descriptor{
			Client:      client.New(backend.Config),
			Requirement: c.Requirement(identifier),
		}
	}
	return descriptors
}
