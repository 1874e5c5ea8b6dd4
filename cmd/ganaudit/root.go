package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/ganaudit/pkg/config"
	"github.com/codeready-toolchain/ganaudit/pkg/version"
)

// rootFlags holds the persistent flags shared by every subcommand.
var rootFlags struct {
	configDir string
	workDir   string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "ganaudit",
		Short:   "Iterative adversarial code-audit orchestrator",
		Long:    "ganaudit loops a submitted code candidate through an external judge process, scores it against a weighted rubric, and tracks completion across a multi-turn session.",
		Version: version.Full(),
	}

	root.PersistentFlags().StringVar(&rootFlags.configDir, "config-dir", ".", "directory to load ganaudit.yaml and .env from")
	root.PersistentFlags().StringVar(&rootFlags.workDir, "work-dir", ".", "working directory the audit operates against (diff/paths/workspace scope, session id derivation)")

	root.AddCommand(newAuditCmd())
	root.AddCommand(newJudgeCmd())
	root.AddCommand(newSessionCmd())

	return root
}

// loadSystemConfig loads and validates ambient configuration from the
// directory named by the --config-dir flag.
func loadSystemConfig(ctx context.Context) (*config.System, error) {
	sys, err := config.Initialize(ctx, rootFlags.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return sys, nil
}
