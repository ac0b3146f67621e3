// SPDX-FileCopyrightText: Copyright 2026 Truffle AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package router_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truffle-ai/saiki-sub006/pkg/mcp"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp/confirm"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp/index"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp/router"
)

// twoBackendRouter registers alpha{tool_a, shared} and beta{tool_b, shared},
// the canonical overlapping-namespace setup.
func twoBackendRouter(t *testing.T, opts ...router.Option) (*router.Router, *fakeClient, *fakeClient) {
	t.Helper()

	alpha := &fakeClient{tools: []string{"tool_a", "shared"}}
	beta := &fakeClient{tools: []string{"tool_b", "shared"}}

	r := router.New(opts...)
	require.NoError(t, r.RegisterBackend(context.Background(), "alpha", alpha))
	require.NoError(t, r.RegisterBackend(context.Background(), "beta", beta))
	return r, alpha, beta
}

func publicNames(entries []index.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.PublicName)
	}
	return out
}

func TestRouter_AggregatesWithQualifiedConflicts(t *testing.T) {
	t.Parallel()

	r, _, _ := twoBackendRouter(t)

	assert.ElementsMatch(t,
		[]string{"tool_a", "tool_b", "alpha__shared", "beta__shared"},
		publicNames(r.Capabilities(mcp.KindTool)))
}

func TestCallTool_UnqualifiedConflictedNameIsNotFound(t *testing.T) {
	t.Parallel()

	r, alpha, beta := twoBackendRouter(t)

	// "shared" is owned by two backends, so the bare name resolves to
	// nothing rather than silently picking one.
	_, err := r.CallTool(context.Background(), "shared", nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, mcp.ErrCapabilityNotFound)
	assert.Empty(t, alpha.toolCalls())
	assert.Empty(t, beta.toolCalls())
}

func TestCallTool_QualifiedNameReachesOwningBackend(t *testing.T) {
	t.Parallel()

	r, alpha, beta := twoBackendRouter(t)

	result, err := r.CallTool(context.Background(), "beta__shared", map[string]any{"k": "v"}, "")
	require.NoError(t, err)
	require.NotNil(t, result)

	// The backend sees its own raw name, never the qualified one.
	assert.Equal(t, []string{"shared"}, beta.toolCalls())
	assert.Empty(t, alpha.toolCalls())
}

func TestCallTool_UnconflictedNameNeedsNoQualifier(t *testing.T) {
	t.Parallel()

	r, alpha, _ := twoBackendRouter(t)

	_, err := r.CallTool(context.Background(), "tool_a", nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"tool_a"}, alpha.toolCalls())
}

func TestCallTool_QualifiedFormOfUnconflictedNameWorks(t *testing.T) {
	t.Parallel()

	r, alpha, _ := twoBackendRouter(t)

	// "tool_a" has one owner and is published unqualified, but its qualified
	// form stays addressable.
	_, err := r.CallTool(context.Background(), "alpha__tool_a", nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"tool_a"}, alpha.toolCalls())
}

func TestCallTool_GateApprovalRequired(t *testing.T) {
	t.Parallel()

	notifier := &approveAll{}
	gate := confirm.NewGate(notifier)
	notifier.respond = gate.HandleResponse

	r, alpha, _ := twoBackendRouter(t, router.WithConfirmationGate(gate))

	result, err := r.CallTool(context.Background(), "tool_a", nil, "user-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, []string{"tool_a"}, alpha.toolCalls())
}

func TestCallTool_GateDenialBlocksExecution(t *testing.T) {
	t.Parallel()

	notifier := &denyAll{}
	gate := confirm.NewGate(notifier)
	notifier.respond = gate.HandleResponse

	r, alpha, _ := twoBackendRouter(t, router.WithConfirmationGate(gate))

	_, err := r.CallTool(context.Background(), "tool_a", nil, "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, mcp.ErrExecutionDenied)

	// Denial happens before any delegation.
	assert.Empty(t, alpha.toolCalls())
}

func TestCallTool_GateTimeoutBlocksExecution(t *testing.T) {
	t.Parallel()

	// A notifier that never answers.
	gate := confirm.NewGate(
		confirm.NotifierFunc(func(context.Context, mcp.ConfirmationRequest) error { return nil }),
		confirm.WithTimeout(50*time.Millisecond),
	)

	r, alpha, _ := twoBackendRouter(t, router.WithConfirmationGate(gate))

	_, err := r.CallTool(context.Background(), "tool_a", nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, mcp.ErrConfirmationTimeout)
	assert.Empty(t, alpha.toolCalls())
}

func TestCallTool_CacheMissTriggersRefresh(t *testing.T) {
	t.Parallel()

	r, alpha, _ := twoBackendRouter(t)

	// The backend gains a tool after the last refresh; the stale index
	// recovers on demand instead of failing the call.
	alpha.addTool("late_tool")

	result, err := r.CallTool(context.Background(), "late_tool", nil, "")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, []string{"late_tool"}, alpha.toolCalls())
}

func TestCallTool_QualifiedCacheMissRefreshesOnlyThatBackend(t *testing.T) {
	t.Parallel()

	r, alpha, _ := twoBackendRouter(t)
	alpha.addTool("extra")

	// "alpha__extra" parses as a qualified name of a known backend, so the
	// miss is recoverable by refreshing alpha alone.
	_, err := r.CallTool(context.Background(), "alpha__extra", nil, "")
	require.NoError(t, err)
	assert.Contains(t, alpha.toolCalls(), "extra")
}

func TestRegisterBackend_SanitizerCollisionRejectsRegistration(t *testing.T) {
	t.Parallel()

	r := router.New()
	require.NoError(t, r.RegisterBackend(context.Background(), "my server", &fakeClient{tools: []string{"t1"}}))

	// "my.server" sanitizes to the same canonical form as "my server".
	err := r.RegisterBackend(context.Background(), "my.server", &fakeClient{tools: []string{"t2"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, mcp.ErrNameCollision)

	// The rejected backend left no trace.
	assert.False(t, r.HasBackend("my.server"))
	assert.ElementsMatch(t, []string{"t1"}, publicNames(r.Capabilities(mcp.KindTool)))
}

func TestRemoveBackend_RestoresUnqualifiedNames(t *testing.T) {
	t.Parallel()

	r, alpha, beta := twoBackendRouter(t)

	require.NoError(t, r.RemoveBackend("beta"))
	assert.True(t, beta.wasDisconnected())
	assert.False(t, r.HasBackend("beta"))

	// With beta gone, "shared" has a single owner again.
	assert.ElementsMatch(t,
		[]string{"tool_a", "shared"},
		publicNames(r.Capabilities(mcp.KindTool)))

	_, err := r.CallTool(context.Background(), "shared", nil, "")
	require.NoError(t, err)
	assert.Contains(t, alpha.toolCalls(), "shared")
}

func TestRemoveBackend_ConcurrentWithRebuild(t *testing.T) {
	t.Parallel()

	// Removal must not mutate shared backend records while a rebuild is
	// reading them; exercised repeatedly so the race detector sees the
	// interleaving.
	for range 25 {
		r, _, _ := twoBackendRouter(t)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.RebuildIndex(context.Background())
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, r.RemoveBackend("alpha"))
		}()
		wg.Wait()

		// Whatever the interleaving, the settled state is beta alone.
		r.RebuildIndex(context.Background())
		assert.ElementsMatch(t,
			[]string{"tool_b", "shared"},
			publicNames(r.Capabilities(mcp.KindTool)))
	}
}

func TestRemoveBackend_UnknownIdentifier(t *testing.T) {
	t.Parallel()

	r := router.New()
	require.Error(t, r.RemoveBackend("ghost"))
}

func TestTool_ReturnsAdvertisedSchema(t *testing.T) {
	t.Parallel()

	alpha := &fakeClient{
		tools:     []string{"read_file"},
		toolDescs: map[string]string{"read_file": "Read a file from disk"},
	}
	r := router.New()
	require.NoError(t, r.RegisterBackend(context.Background(), "alpha", alpha))

	info, ok := r.Tool("alpha", "read_file")
	require.True(t, ok)
	assert.Equal(t, "Read a file from disk", info.Description)

	_, ok = r.Tool("alpha", "ghost_tool")
	assert.False(t, ok)
	_, ok = r.Tool("ghost_backend", "read_file")
	assert.False(t, ok)
}

func TestGetPrompt_ResolvesAndDelegates(t *testing.T) {
	t.Parallel()

	alpha := &fakeClient{prompts: []string{"summarize"}}
	r := router.New()
	require.NoError(t, r.RegisterBackend(context.Background(), "alpha", alpha))

	result, err := r.GetPrompt(context.Background(), "summarize", nil)
	require.NoError(t, err)
	assert.Equal(t, "summarize", result.Description)
}

func TestReadResource_ResolvesAndDelegates(t *testing.T) {
	t.Parallel()

	alpha := &fakeClient{resources: []string{"file:///data.txt"}}
	r := router.New()
	require.NoError(t, r.RegisterBackend(context.Background(), "alpha", alpha))

	result, err := r.ReadResource(context.Background(), "file:///data.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("contents of file:///data.txt"), result.Contents)
}

func TestPending_ReflectsInFlightConfirmations(t *testing.T) {
	t.Parallel()

	requests := make(chan mcp.ConfirmationRequest, 1)
	gate := confirm.NewGate(confirm.NotifierFunc(func(_ context.Context, req mcp.ConfirmationRequest) error {
		requests <- req
		return nil
	}))

	r, _, _ := twoBackendRouter(t, router.WithConfirmationGate(gate))

	errs := make(chan error, 1)
	go func() {
		_, err := r.CallTool(context.Background(), "tool_a", nil, "")
		errs <- err
	}()

	req := <-requests
	pending := r.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, req.ExecutionID, pending[0].ExecutionID)

	r.HandleConfirmationResponse(mcp.ConfirmationResponse{ExecutionID: req.ExecutionID, Approved: true})
	require.NoError(t, <-errs)
	assert.Empty(t, r.Pending())
}

func TestCancelConfirmations_AbortsInFlightCalls(t *testing.T) {
	t.Parallel()

	notified := make(chan struct{}, 1)
	gate := confirm.NewGate(confirm.NotifierFunc(func(context.Context, mcp.ConfirmationRequest) error {
		notified <- struct{}{}
		return nil
	}))

	r, alpha, _ := twoBackendRouter(t, router.WithConfirmationGate(gate))

	errs := make(chan error, 1)
	go func() {
		_, err := r.CallTool(context.Background(), "tool_a", nil, "")
		errs <- err
	}()

	<-notified
	r.CancelConfirmations()

	err := <-errs
	require.Error(t, err)
	assert.ErrorIs(t, err, mcp.ErrConfirmationCancelled)
	assert.Empty(t, alpha.toolCalls())
}
