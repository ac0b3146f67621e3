// SPDX-FileCopyrightText: Copyright 2026 Truffle AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package confirm implements the asynchronous approve/deny checkpoint that
// precedes capability execution.
//
// Each invocation that is not pre-approved by the allow-list creates a
// pending confirmation keyed by a fresh execution id, emits a notification
// to an injected Notifier (e.g. a UI), and suspends the caller until a
// response, a per-request wall-clock timeout, or cancellation settles it.
// A pending confirmation settles exactly once; late or unknown responses
// and cancellations are silent no-ops.
package confirm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/truffle-ai/saiki-sub006/pkg/logger"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp"
)

// DefaultTimeout bounds how long a confirmation waits for a response when
// the gate is constructed without an explicit timeout.
const DefaultTimeout = 2 * time.Minute

// Notifier carries confirmation requests to whoever answers them.
type Notifier interface {
	// Notify delivers a confirmation request. A delivery failure denies the
	// invocation rather than leaving it pending forever.
	Notify(ctx context.Context, req mcp.ConfirmationRequest) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, req mcp.ConfirmationRequest) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, req mcp.ConfirmationRequest) error {
	return f(ctx, req)
}

// outcome is the single terminal transition of a pending confirmation.
type outcome int

const (
	outcomeApproved outcome = iota
	outcomeDenied
	outcomeTimedOut
	outcomeCancelled
)

// PendingConfirmation is a read-only view of one in-flight confirmation.
type PendingConfirmation struct {
	ExecutionID string
	ToolName    string
	Args        map[string]any
	ScopeID     string
	CreatedAt   time.Time
}

// pending is the gate's record of one in-flight confirmation. The done
// channel is buffered so the settling side never blocks on the waiter.
type pending struct {
	view     PendingConfirmation
	done     chan outcome
	timer    *time.Timer
	remember bool
}

// Gate owns the pending-confirmation table. Safe for concurrent use.
type Gate struct {
	mu        sync.Mutex
	pending   map[string]*pending
	notifier  Notifier
	allowList mcp.AllowListProvider
	timeout   time.Duration
}

// Option configures a Gate.
type Option func(*Gate)

// WithTimeout overrides the per-request confirmation timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithAllowList installs the provider consulted before any pending
// confirmation is created.
func WithAllowList(p mcp.AllowListProvider) Option {
	return func(g *Gate) {
		g.allowList = p
	}
}

// NewGate creates a confirmation gate that emits requests through notifier.
func NewGate(notifier Notifier, opts ...Option) *Gate {
	g := &Gate{
		pending:   make(map[string]*pending),
		notifier:  notifier,
		allowList: NewMemoryAllowList(),
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RequestConfirmation asks for approval to invoke toolName with args on
// behalf of scopeID. Pre-approved names short-circuit to true with no
// pending state. Otherwise the call blocks until the confirmation settles:
// approved or denied by a response, mcp.ErrConfirmationTimeout after the
// configured timeout, or mcp.ErrConfirmationCancelled.
func (g *Gate) RequestConfirmation(ctx context.Context, toolName string, args map[string]any, scopeID string) (bool, error) {
	if g.allowList != nil && g.allowList.IsAllowed(toolName, scopeID) {
		logger.Debugf("Tool %s pre-approved by allow-list, skipping confirmation", toolName)
		return true, nil
	}

	executionID := uuid.NewString()
	p := &pending{
		view: PendingConfirmation{
			ExecutionID: executionID,
			ToolName:    toolName,
			Args:        args,
			ScopeID:     scopeID,
			CreatedAt:   time.Now(),
		},
		done: make(chan outcome, 1),
	}
	// Register before arming the timer so a very short timeout cannot fire
	// against an id the table does not know yet.
	g.mu.Lock()
	g.pending[executionID] = p
	p.timer = time.AfterFunc(g.timeout, func() {
		g.settle(executionID, outcomeTimedOut, false)
	})
	g.mu.Unlock()

	req := mcp.ConfirmationRequest{
		ExecutionID: executionID,
		ToolName:    toolName,
		Args:        args,
		Timestamp:   p.view.CreatedAt,
		ScopeID:     scopeID,
	}
	if err := g.notifier.Notify(ctx, req); err != nil {
		g.settle(executionID, outcomeDenied, false)
		<-p.done
		return false, fmt.Errorf("%w: failed to deliver confirmation request for %s: %v",
			mcp.ErrExecutionDenied, toolName, err)
	}

	logger.Infow("Awaiting confirmation", "executionId", executionID, "tool", toolName)

	select {
	case result := <-p.done:
		switch result {
		case outcomeApproved:
			if p.remember && g.allowList != nil {
				if err := g.allowList.Allow(toolName, scopeID); err != nil {
					logger.Warnf("Failed to persist allow-list entry for %s: %v", toolName, err)
				}
			}
			return true, nil
		case outcomeDenied:
			return false, nil
		case outcomeTimedOut:
			return false, fmt.Errorf("%w: no response for tool %s within %s",
				mcp.ErrConfirmationTimeout, toolName, g.timeout)
		default:
			return false, fmt.Errorf("%w: tool %s", mcp.ErrConfirmationCancelled, toolName)
		}

	case <-ctx.Done():
		g.settle(executionID, outcomeCancelled, false)
		<-p.done
		return false, fmt.Errorf("%w: tool %s: %v", mcp.ErrConfirmationCancelled, toolName, ctx.Err())
	}
}

// HandleResponse resolves a pending confirmation. Responses referencing an
// unknown or already-settled execution id are silently ignored. When an
// approval carries rememberChoice, the tool name is added to the allow-list
// so future identical requests short-circuit.
func (g *Gate) HandleResponse(resp mcp.ConfirmationResponse) {
	result := outcomeDenied
	if resp.Approved {
		result = outcomeApproved
	}
	g.settle(resp.ExecutionID, result, resp.Approved && resp.RememberChoice)
}

// Cancel settles one pending confirmation with a cancellation error. The
// target settles before Cancel returns; unknown ids are a no-op.
func (g *Gate) Cancel(executionID string) {
	g.settle(executionID, outcomeCancelled, false)
}

// CancelAll settles every pending confirmation with a cancellation error.
// All targets settle before CancelAll returns, so a caller can safely tear
// down resources immediately after.
func (g *Gate) CancelAll() {
	g.mu.Lock()
	ids := make([]string, 0, len(g.pending))
	for id := range g.pending {
		ids = append(ids, id)
	}
	g.mu.Unlock()

	for _, id := range ids {
		g.settle(id, outcomeCancelled, false)
	}
}

// Pending returns a read-only snapshot of the in-flight confirmations.
func (g *Gate) Pending() []PendingConfirmation {
	g.mu.Lock()
	defer g.mu.Unlock()

	snapshots := make([]PendingConfirmation, 0, len(g.pending))
	for _, p := range g.pending {
		snapshots = append(snapshots, p.view)
	}
	return snapshots
}

// settle performs the single terminal transition for an execution id. The
// pending record is removed and its waiter released before settle returns;
// a second settle for the same id is a no-op.
func (g *Gate) settle(executionID string, result outcome, remember bool) {
	g.mu.Lock()
	p, ok := g.pending[executionID]
	if !ok {
		g.mu.Unlock()
		return
	}
	delete(g.pending, executionID)
	p.remember = remember
	g.mu.Unlock()

	p.timer.Stop()
	p.done <- result
}
