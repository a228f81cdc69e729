package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func runCmd(configPath *string) *cobra.Command {
	var strict bool

	c := &cobra.Command{
		Use:   "run",
		Short: "Download and extract every target archive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, cleanup, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			run, err := env.orch.ProcessAll(ctx)
			if err != nil {
				return err
			}

			// Per-item failures are reported, not escalated, unless the
			// caller opts into strict mode.
			if strict && run.Failed() {
				return fmt.Errorf("run %s finished with failures", run.ID)
			}

			return nil
		},
	}

	c.Flags().BoolVar(&strict, "strict", false, "exit nonzero if any item failed")

	return c
}
