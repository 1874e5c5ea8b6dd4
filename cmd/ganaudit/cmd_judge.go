package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/ganaudit/internal/stubjudge"
)

// newJudgeCmd groups judge-process subcommands. Today it has exactly one:
// the built-in development-fallback judge, invoked as a subprocess of this
// same binary by judge.SubprocessClient when no external reviewer is
// configured (executable "ganaudit", args ["judge", "stub"]).
func newJudgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "judge",
		Short: "Judge subprocess implementations",
	}
	cmd.AddCommand(newJudgeStubCmd())
	return cmd
}

func newJudgeStubCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stub",
		Short: "Run the built-in heuristic judge over a request read from stdin",
		Long:  "Reads a single JSON judge request from stdin and writes a single JSON verdict to stdout. This is a development fallback, not a substitute for a real adversarial judge.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return stubjudge.Run(os.Stdin, os.Stdout)
		},
	}
}
