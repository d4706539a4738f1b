package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sitepulse/kioskd/internal/model"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show identity and delivery status",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := a.restoreIdentity(ctx); err != nil {
				return err
			}
			st := statusResult{}
			values := []struct {
				key string
				dst *string
			}{
				{model.KeyDeviceID, &st.TerminalID},
				{model.KeyKioskName, &st.TerminalName},
				{model.KeySiteName, &st.SiteName},
				{model.KeyOrgName, &st.OrgName},
				{model.KeyLastSyncAt, &st.LastSyncAt},
			}
			for _, v := range values {
				if *v.dst, err = a.store.GetString(ctx, v.key); err != nil {
					return WrapExitError(ExitFailure, "failed to read configuration", err)
				}
			}
			if st.PhotoRequired, err = a.store.GetBool(ctx, model.KeyPhotoRequired); err != nil {
				return WrapExitError(ExitFailure, "failed to read configuration", err)
			}
			if st.Marker, err = a.backup.Load(); err != nil {
				st.Marker = ""
			}
			if st.Pending, err = a.store.CountPending(ctx); err != nil {
				return WrapExitError(ExitFailure, "failed to count pending entries", err)
			}
			employees, err := a.store.ListEmployees(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read roster", err)
			}
			st.RosterSize = len(employees)

			if err := a.out.Success(st, func(w io.Writer) {
				if st.TerminalID == "" {
					fmt.Fprintln(w, "Not activated.")
					return
				}
				fmt.Fprintf(w, "Terminal:   %s (%s)\n", st.TerminalName, st.TerminalID)
				fmt.Fprintf(w, "Site:       %s\n", st.SiteName)
				fmt.Fprintf(w, "Org:        %s\n", st.OrgName)
				fmt.Fprintf(w, "Photo:      %s\n", yesNo(st.PhotoRequired))
				fmt.Fprintf(w, "Roster:     %d employees\n", st.RosterSize)
				fmt.Fprintf(w, "Pending:    %d entries\n", st.Pending)
				last := st.LastSyncAt
				if last == "" {
					last = "never"
				}
				fmt.Fprintf(w, "Last sync:  %s\n", last)
				if st.Marker != st.TerminalID {
					fmt.Fprintln(w, "Backup marker out of date; it is repaired on next run.")
				}
			}); err != nil {
				return err
			}

			if st.TerminalID == "" {
				return NewExitError(ExitNeedsActivation, "device is not activated")
			}
			return nil
		},
	}
}

type statusResult struct {
	TerminalID    string `json:"terminal_id"`
	TerminalName  string `json:"terminal_name,omitempty"`
	SiteName      string `json:"site_name,omitempty"`
	OrgName       string `json:"organization_name,omitempty"`
	PhotoRequired bool   `json:"photo_required"`
	RosterSize    int    `json:"roster_size"`
	Pending       int    `json:"pending"`
	LastSyncAt    string `json:"last_sync_at,omitempty"`
	Marker        string `json:"backup_marker,omitempty"`
}

func yesNo(b bool) string {
	if b {
		return "required"
	}
	return "optional"
}
