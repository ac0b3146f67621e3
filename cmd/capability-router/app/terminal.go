// SPDX-FileCopyrightText: Copyright 2026 Truffle AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/truffle-ai/saiki-sub006/pkg/mcp"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp/confirm"
)

// terminalPrompter answers confirmation requests interactively on the
// terminal. It is the CLI's stand-in for a real front-end: it prints the
// request, reads y/n/a, and posts the response back to the gate.
type terminalPrompter struct {
	gate *confirm.Gate
	in   *bufio.Reader
}

func newTerminalPrompter() *terminalPrompter {
	return &terminalPrompter{in: bufio.NewReader(os.Stdin)}
}

// Notify implements confirm.Notifier.
func (p *terminalPrompter) Notify(_ context.Context, req mcp.ConfirmationRequest) error {
	args, err := json.Marshal(req.Args)
	if err != nil {
		args = []byte("{}")
	}

	fmt.Fprintf(os.Stderr, "Allow tool %q with args %s? [y]es / [n]o / [a]lways: ", req.ToolName, args)
	line, err := p.in.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read confirmation answer: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	p.gate.HandleResponse(mcp.ConfirmationResponse{
		ExecutionID:    req.ExecutionID,
		Approved:       answer == "y" || answer == "yes" || answer == "a" || answer == "always",
		RememberChoice: answer == "a" || answer == "always",
		ScopeID:        req.ScopeID,
	})
	return nil
}
