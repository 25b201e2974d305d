// Package main provides the aicore-cli command-line tool for operating the
// LeadForge AI core.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	aicore "github.com/leadforge/ai-core"
	"github.com/leadforge/ai-core/internal/modes"
	"github.com/leadforge/ai-core/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:   "aicore-cli",
		Short: "LeadForge AI core command line tool",
		Long:  "Inspect and validate the configuration of the LeadForge AI usage-governance core.",
	}
	root.AddCommand(validateCmd(), modesCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a config file (JSON/YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := aicore.LoadConfig(args[0])
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := aicore.ValidateConfig(*cfg); err != nil {
				return fmt.Errorf("validation: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "✓ Config is valid")
			fmt.Fprintf(out, "  Provider:       %s\n", defaultStr(cfg.Provider.Name, aicore.ProviderOpenAI))
			fmt.Fprintf(out, "  Limit backend:  %s\n", defaultStr(cfg.RateLimit.Backend, aicore.LimitBackendMemory))
			fmt.Fprintf(out, "  Usage backend:  %s\n", defaultStr(cfg.Usage.Backend, aicore.UsageBackendSQLite))
			if cfg.RateLimit.Limit > 0 {
				fmt.Fprintf(out, "  Quota:          %d per %s\n", cfg.RateLimit.Limit, defaultStr(cfg.RateLimit.Window, "1h"))
			}
			if len(cfg.Modes) > 0 {
				fmt.Fprintf(out, "  Mode overrides: %d\n", len(cfg.Modes))
			}
			return nil
		},
	}
}

func modesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List the supported operation modes and their defaults",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := modes.NewRegistry()
			out := cmd.OutOrStdout()
			for _, m := range registry.Modes() {
				_, p, err := registry.Resolve(string(m))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-16s max_tokens=%-5d temperature=%.1f\n", m, p.MaxTokens, p.Temperature)
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "aicore-cli %s\n", version.String())
		},
	}
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
