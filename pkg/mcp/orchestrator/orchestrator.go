// SPDX-FileCopyrightText: Copyright 2026 Truffle AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator establishes and supervises connections to backend
// services.
//
// A batch of connection descriptors is attempted concurrently; every
// attempt's outcome is recorded per identifier and one attempt's failure
// never cancels another. Overall batch success is evaluated after all
// attempts settle: backends declared strict must all have connected, and a
// purely lenient batch needs at least one success. Failures that the policy
// tolerates stay queryable rather than being thrown.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/truffle-ai/saiki-sub006/pkg/logger"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp"
)

// SuccessRequirement declares how a backend's connection failure affects
// its batch.
type SuccessRequirement string

const (
	// RequirementStrict fails the batch when this backend cannot connect.
	RequirementStrict SuccessRequirement = "strict"

	// RequirementLenient tolerates this backend's failure as long as at
	// least one backend in the batch connected.
	RequirementLenient SuccessRequirement = "lenient"
)

// Descriptor is one backend's connection request within a batch.
type Descriptor struct {
	// Client is the transport to connect. Construction (and therefore the
	// concrete connection config) belongs to the caller.
	Client mcp.TransportClient

	// Requirement is this backend's contribution to the batch policy.
	// Empty defaults to lenient.
	Requirement SuccessRequirement
}

// BackendRegistry receives successfully connected backends. Implemented by
// the capability router so its sanitizer collision check runs before any
// index mutation.
type BackendRegistry interface {
	// RegisterBackend adds a connected backend under identifier.
	RegisterBackend(ctx context.Context, identifier string, client mcp.TransportClient) error

	// HasBackend reports whether identifier is already registered.
	HasBackend(identifier string) bool
}

// Orchestrator connects batches of backends and records per-backend
// outcomes. Safe for concurrent use.
type Orchestrator struct {
	mu       sync.RWMutex
	registry BackendRegistry
	failed   map[string]string // identifier -> last connection error
}

// New creates an orchestrator registering connected backends into registry.
func New(registry BackendRegistry) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		failed:   make(map[string]string),
	}
}

// connectOutcome is one settled connection attempt.
type connectOutcome struct {
	identifier  string
	requirement SuccessRequirement
	client      mcp.TransportClient
	err         error
}

// Initialize attempts every descriptor concurrently, registers the
// successful connections, and evaluates the batch policy. All attempts are
// issued before any is awaited, and registration happens only after the
// whole batch settles. When the policy is unmet the returned
// *mcp.BatchConnectionError enumerates every per-identifier failure; when
// met, tolerated failures remain queryable via FailedConnections.
func (o *Orchestrator) Initialize(ctx context.Context, descriptors map[string]Descriptor) error {
	if len(descriptors) == 0 {
		logger.Debug("No backend descriptors to connect")
		return nil
	}

	logger.Infof("Connecting %d backends", len(descriptors))

	outcomes := make(chan connectOutcome, len(descriptors))
	for identifier, desc := range descriptors {
		go func() {
			err := desc.Client.Connect(ctx)
			outcomes <- connectOutcome{
				identifier:  identifier,
				requirement: desc.Requirement,
				client:      desc.Client,
				err:         err,
			}
		}()
	}

	settled := make([]connectOutcome, 0, len(descriptors))
	for range descriptors {
		settled = append(settled, <-outcomes)
	}

	failures := make(map[string]string)
	strictFailed := false
	connected := 0
	for _, outcome := range settled {
		if outcome.err != nil {
			logger.Warnf("Backend %s failed to connect: %v", outcome.identifier, outcome.err)
			failures[outcome.identifier] = outcome.err.Error()
			if outcome.requirement == RequirementStrict {
				strictFailed = true
			}
			continue
		}
		connected++
	}

	if strictFailed || connected == 0 {
		o.recordFailures(failures)
		return &mcp.BatchConnectionError{Failures: failures}
	}

	// Index mutation starts only now, after every attempt has settled.
	for _, outcome := range settled {
		if outcome.err != nil {
			continue
		}
		if err := o.registry.RegisterBackend(ctx, outcome.identifier, outcome.client); err != nil {
			logger.Errorf("Failed to register connected backend %s: %v", outcome.identifier, err)
			failures[outcome.identifier] = err.Error()
			if disconnectErr := outcome.client.Disconnect(); disconnectErr != nil {
				logger.Debugf("Failed to disconnect backend %s after rejected registration: %v",
					outcome.identifier, disconnectErr)
			}
			connected--
		}
	}

	o.recordFailures(failures)
	if connected == 0 {
		return &mcp.BatchConnectionError{Failures: failures}
	}

	logger.Infof("Connected %d/%d backends", connected, len(descriptors))
	return nil
}

// ConnectOne dynamically adds one backend after initialization. A no-op for
// identifiers that are already registered. Unlike a batch, the failure of a
// single dynamic add always propagates to the caller.
func (o *Orchestrator) ConnectOne(ctx context.Context, identifier string, client mcp.TransportClient) error {
	if o.registry.HasBackend(identifier) {
		logger.Debugf("Backend %s already registered, skipping connect", identifier)
		return nil
	}

	if err := client.Connect(ctx); err != nil {
		o.recordFailures(map[string]string{identifier: err.Error()})
		return fmt.Errorf("%w: backend %s: %v", mcp.ErrConnectionFailed, identifier, err)
	}

	if err := o.registry.RegisterBackend(ctx, identifier, client); err != nil {
		if disconnectErr := client.Disconnect(); disconnectErr != nil {
			logger.Debugf("Failed to disconnect backend %s after rejected registration: %v",
				identifier, disconnectErr)
		}
		return err
	}

	o.clearFailure(identifier)
	return nil
}

// FailedConnections returns the per-identifier error messages of every
// recorded connection failure.
func (o *Orchestrator) FailedConnections() map[string]string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make(map[string]string, len(o.failed))
	for id, msg := range o.failed {
		out[id] = msg
	}
	return out
}

func (o *Orchestrator) recordFailures(failures map[string]string) {
	if len(failures) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, msg := range failures {
		o.failed[id] = msg
	}
}

func (o *Orchestrator) clearFailure(identifier string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.failed, identifier)
}
