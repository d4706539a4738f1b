package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sitepulse/kioskd/internal/presence"
)

// NewStaffCommand creates the staff command.
func NewStaffCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "staff",
		Short: "Show who is on site",
		Long: `List the cached roster with each employee's current presence, derived
from the local attendance history. Works offline.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.restoreIdentity(cmd.Context()); err != nil {
				return err
			}

			board, err := presence.Board(cmd.Context(), a.store)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to load staff list", err)
			}

			rows := make([]staffRow, len(board))
			for i, e := range board {
				rows[i] = staffRow{
					EmployeeID: e.Employee.ID,
					Name:       e.Employee.FullName(),
					JobTitle:   e.Employee.JobTitle,
					Present:    e.Present,
				}
				if !e.At.IsZero() {
					at := e.At
					rows[i].At = &at
				}
			}

			return a.out.Success(rows, func(w io.Writer) {
				renderStaff(w, board, a.location())
			})
		},
	}
}

type staffRow struct {
	EmployeeID string     `json:"employee_id"`
	Name       string     `json:"name"`
	JobTitle   string     `json:"job_title,omitempty"`
	Present    bool       `json:"present"`
	At         *time.Time `json:"at,omitempty"`
}

func renderStaff(w io.Writer, board []presence.Entry, loc *time.Location) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tROLE\tSTATUS\tSINCE")
	for _, e := range board {
		status := "OFF SITE"
		if e.Present {
			status = "ON SITE"
		}
		since := "-"
		if !e.At.IsZero() {
			since = e.At.In(loc).Format("2006-01-02 15:04")
		}
		role := e.Employee.JobTitle
		if role == "" {
			role = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Employee.FullName(), role, status, since)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d of %d on site\n", presence.CountPresent(board), len(board))
}
