package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/ganaudit/pkg/envelope"
	"github.com/codeready-toolchain/ganaudit/pkg/session"
)

var sessionEvictFlags struct {
	maxAgeSeconds int
}

// newSessionCmd groups session-inspection operations that sit outside the
// audit loop itself: showing a session's durable state and manually
// triggering the idle-eviction sweep the gate's cleanup ticker otherwise
// runs on its own schedule.
func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or maintain persisted audit sessions",
	}
	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionProgressCmd())
	cmd.AddCommand(newSessionEvictCmd())
	return cmd
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session's persisted state as JSON",
		Long:  "Loads the session file from disk if it exists; if no session with this id has ever run, a fresh in-progress session is created and shown (the same fallback GetOrCreate gives the engine).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := loadSystemConfig(cmd.Context())
			if err != nil {
				return err
			}
			store, err := session.NewStore(sys.StateDir)
			if err != nil {
				return fmt.Errorf("opening session store: %w", err)
			}
			st, corruption, err := store.GetOrCreate(args[0], session.DefaultConfig())
			if err != nil {
				return printEnvelope(envelope.FromMessage(err.Error()))
			}
			if corruption != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", corruption)
			}
			return printJSON(st)
		},
	}
}

func newSessionProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <session-id>",
		Short: "Print a session's score trajectory and average improvement as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := loadSystemConfig(cmd.Context())
			if err != nil {
				return err
			}
			store, err := session.NewStore(sys.StateDir)
			if err != nil {
				return fmt.Errorf("opening session store: %w", err)
			}
			if _, corruption, err := store.GetOrCreate(args[0], session.DefaultConfig()); err != nil {
				return printEnvelope(envelope.FromMessage(err.Error()))
			} else if corruption != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", corruption)
			}
			progress, err := store.AnalyzeProgress(args[0])
			if err != nil {
				return printEnvelope(envelope.FromMessage(err.Error()))
			}
			return printJSON(progress)
		},
	}
}

func newSessionEvictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evict",
		Short: "Evict sessions idle past max-age and report how many were removed",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := loadSystemConfig(cmd.Context())
			if err != nil {
				return err
			}
			store, err := session.NewStore(sys.StateDir)
			if err != nil {
				return fmt.Errorf("opening session store: %w", err)
			}
			maxAge := sys.MaxSessionAge
			if sessionEvictFlags.maxAgeSeconds > 0 {
				maxAge = time.Duration(sessionEvictFlags.maxAgeSeconds) * time.Second
			}
			n, err := store.EvictIdle(maxAge)
			if err != nil {
				return fmt.Errorf("evicting idle sessions: %w", err)
			}
			return printJSON(map[string]int{"evicted": n})
		},
	}
	cmd.Flags().IntVar(&sessionEvictFlags.maxAgeSeconds, "max-age-seconds", 0, "override the configured max session age, in seconds")
	return cmd
}
