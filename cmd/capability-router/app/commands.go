// SPDX-FileCopyrightText: Copyright 2026 Truffle AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the command tree for the capability router CLI.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/truffle-ai/saiki-sub006/pkg/logger"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp/config"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp/confirm"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp/orchestrator"
	"github.com/truffle-ai/saiki-sub006/pkg/mcp/router"
	"github.com/truffle-ai/saiki-sub006/pkg/versions"
)

var rootCmd = &cobra.Command{
	Use:               "capability-router",
	DisableAutoGenTag: true,
	Short:             "Aggregate and route capabilities across multiple MCP servers",
	Long: `capability-router connects to an arbitrary number of MCP (Model Context
Protocol) servers, aggregates the tools, prompts and resources they expose
into one collision-resolved namespace, and gates every tool invocation
behind an approve/deny confirmation step.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates the root command for the capability router CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.PersistentFlags().StringP("config", "c", "router.yaml", "Path to configuration file")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorf("Error binding config flag: %v", err)
	}

	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newCallCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.SilenceUsage = true
	return rootCmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(viper.GetString("config"))
			if err != nil {
				return err
			}
			cmd.Printf("Configuration is valid: %d backends\n", len(cfg.Backends))
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Connect to the configured backends and list the aggregated capabilities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, _, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer shutdown(r)

			table := tablewriter.NewWriter(os.Stdout)
			table.Options(tablewriter.WithHeader([]string{"Kind", "Public Name", "Backend", "Raw Name", "Description"}))

			for _, kind := range []mcp.CapabilityKind{mcp.KindTool, mcp.KindPrompt, mcp.KindResource} {
				entries := r.Capabilities(kind)
				sort.Slice(entries, func(i, j int) bool { return entries[i].PublicName < entries[j].PublicName })
				for _, entry := range entries {
					description := ""
					if kind == mcp.KindTool {
						if info, ok := r.Tool(entry.Backend.Identifier, entry.RawName); ok {
							description = info.Description
						}
					}
					if err := table.Append([]string{
						string(kind), entry.PublicName, entry.Backend.Identifier, entry.RawName, description,
					}); err != nil {
						return fmt.Errorf("failed to render capability table: %w", err)
					}
				}
			}
			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render capability table: %w", err)
			}
			return nil
		},
	}
}

func newCallCmd() *cobra.Command {
	var argsJSON string

	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke a tool through the confirmation gate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			toolArgs := map[string]any{}
			if argsJSON != "" {
				if err := json.Unmarshal([]byte(argsJSON), &toolArgs); err != nil {
					return fmt.Errorf("invalid --args JSON: %w", err)
				}
			}

			r, _, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer shutdown(r)

			result, err := r.CallTool(cmd.Context(), posArgs[0], toolArgs, confirm.GlobalScope)
			if err != nil {
				return err
			}

			for _, content := range result.Content {
				if content.Type == "text" {
					cmd.Println(content.Text)
				}
			}
			if result.IsError {
				return fmt.Errorf("tool %s reported an error", posArgs[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&argsJSON, "args", "", "Tool arguments as a JSON object")
	return cmd
}

func newVersionCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()

			if jsonOutput {
				encoded, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode version info: %w", err)
				}
				cmd.Println(string(encoded))
				return nil
			}

			cmd.Printf("capability-router %s\n", info.Version)
			cmd.Printf("Commit: %s\n", info.Commit)
			cmd.Printf("Built: %s\n", info.BuildDate)
			cmd.Printf("Go version: %s\n", info.GoVersion)
			cmd.Printf("Platform: %s\n", info.Platform)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version information as JSON")
	return cmd
}

// connect loads the configuration, builds the router with a terminal
// confirmation prompter, and connects the configured backend batch.
func connect(ctx context.Context) (*router.Router, *orchestrator.Orchestrator, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, nil, err
	}

	gateOpts := []confirm.Option{confirm.WithTimeout(cfg.ConfirmationTimeout.Value())}
	if cfg.AllowListPath != "" {
		allowList, err := confirm.NewFileAllowList(cfg.AllowListPath)
		if err != nil {
			return nil, nil, err
		}
		gateOpts = append(gateOpts, confirm.WithAllowList(allowList))
	}

	prompter := newTerminalPrompter()
	gate := confirm.NewGate(prompter, gateOpts...)
	prompter.gate = gate
	r := router.New(router.WithConfirmationGate(gate))

	orch := orchestrator.New(r)
	if err := orch.Initialize(ctx, cfg.Descriptors()); err != nil {
		return nil, nil, err
	}
	for identifier, message := range orch.FailedConnections() {
		logger.Warnf("Backend %s unavailable: %s", identifier, message)
	}
	return r, orch, nil
}

func shutdown(r *router.Router) {
	r.CancelConfirmations()
	for _, backend := range r.Backends() {
		if err := r.RemoveBackend(backend.Identifier); err != nil {
			logger.Debugf("Failed to remove backend %s: %v", backend.Identifier, err)
		}
	}
}
