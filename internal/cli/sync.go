package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sitepulse/kioskd/internal/engine"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle now",
		Long: `Push pending attendance entries and pull the latest configuration and
roster once. Entries that could not be delivered stay pending for the
next cycle.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.identity().RestoreIdentity(cmd.Context()); err != nil {
				return exitFor("failed to restore identity", err)
			}

			notified := false
			eng := a.engine(engine.WithNotifier(func(engine.Result) { notified = true }))
			res := eng.SyncNow(cmd.Context())

			pending := 0
			if st, err := eng.Status(cmd.Context()); err == nil {
				pending = st.Pending
			}

			out := syncResult{
				Pushed:     res.Pushed,
				Batches:    res.Batches,
				Pulled:     res.Pulled,
				RosterSize: res.RosterSize,
				Pending:    pending,
			}
			if res.PushErr != nil {
				out.PushError = res.PushErr.Error()
			}
			if res.PullErr != nil {
				out.PullError = res.PullErr.Error()
			}

			if err := a.out.Success(out, func(w io.Writer) {
				if notified {
					fmt.Fprintln(w, "Sync complete.")
				}
				fmt.Fprintf(w, "Pushed: %d entries in %d batches (%d pending)\n", res.Pushed, res.Batches, pending)
				if res.PushErr != nil {
					fmt.Fprintf(w, "Push stopped: %v\n", res.PushErr)
				}
				if res.Pulled {
					fmt.Fprintf(w, "Pulled: config and %d employees\n", res.RosterSize)
				} else {
					fmt.Fprintf(w, "Pull failed: %v\n", res.PullErr)
				}
			}); err != nil {
				return err
			}

			if err := res.Err(); err != nil {
				return WrapExitError(ExitFailure, "sync incomplete", err)
			}
			return nil
		},
	}
}

type syncResult struct {
	Pushed     int    `json:"pushed"`
	Batches    int    `json:"batches"`
	Pulled     bool   `json:"pulled"`
	RosterSize int    `json:"roster_size"`
	Pending    int    `json:"pending"`
	PushError  string `json:"push_error,omitempty"`
	PullError  string `json:"pull_error,omitempty"`
}
