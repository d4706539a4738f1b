package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewResetCommand creates the reset command.
func NewResetCommand(opts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe the device identity and all local data",
		Long: `Remove the backup marker and every local collection (configuration,
terminals, roster, attendance history). Pending entries that were never
delivered are lost. The device must be activated again afterwards.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return NewExitError(ExitCommandError, "refusing to reset without --yes")
			}
			a, err := openApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			pending, err := a.store.CountPending(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to count pending entries", err)
			}
			if err := a.identity().Reset(cmd.Context()); err != nil {
				return WrapExitError(ExitFailure, "reset failed", err)
			}
			return a.out.Success(map[string]int{"discarded_pending": pending}, func(w io.Writer) {
				fmt.Fprintln(w, "Device reset.")
				if pending > 0 {
					fmt.Fprintf(w, "%d undelivered entries were discarded.\n", pending)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
