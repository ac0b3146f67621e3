// SPDX-FileCopyrightText: Copyright 2026 Truffle AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the capability router CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/truffle-ai/saiki-sub006/cmd/capability-router/app"
	"github.com/truffle-ai/saiki-sub006/pkg/logger"
)

func main() {
	logger.Initialize()

	// Create a context that will be canceled on signal
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if err := app.NewRootCmd().ExecuteContext(ctx); err != nil {
		logger.Errorf("Error executing command: %v", err)
		os.Exit(1)
	}
}
