package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sitepulse/kioskd/internal/engine"
	"github.com/sitepulse/kioskd/internal/model"
)

// ClockOptions holds flags for the clock command.
type ClockOptions struct {
	*RootOptions
	PhotoPath string
	Direction string
}

// NewClockCommand creates the clock command.
func NewClockCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClockOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clock <pin>",
		Short: "Clock an employee in or out by PIN",
		Long: `Record a clock event for the employee with the given 4-digit PIN.

The entry is written locally first and is never lost, then delivery is
attempted right away. Without --direction the employee is clocked out if
currently on site and in otherwise.

Example:
  kioskd clock 4821
  kioskd clock 4821 --photo ./capture.jpg
  kioskd clock 4821 --direction out`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClock(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.PhotoPath, "photo", "", "path to a captured photo")
	cmd.Flags().StringVar(&opts.Direction, "direction", "", "force direction (in|out)")

	return cmd
}

func runClock(cmd *cobra.Command, opts *ClockOptions, pin string) error {
	req := engine.ClockRequest{PIN: pin}
	if opts.Direction != "" {
		dir, err := model.ParseDirection(opts.Direction)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --direction", err)
		}
		req.Direction = dir
	}
	if opts.PhotoPath != "" {
		photo, err := os.ReadFile(opts.PhotoPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read photo", err)
		}
		req.Photo = photo
	}

	a, err := openApp(cmd, opts.RootOptions, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.restoreIdentity(cmd.Context()); err != nil {
		return err
	}

	eng := a.engine()
	res, err := eng.ClockAction(cmd.Context(), req)
	if err != nil {
		return a.out.Fail("clock action rejected", err)
	}
	// Let the immediate push finish before the process exits.
	eng.Wait()

	delivered := false
	if l, ok, err := a.store.GetLog(cmd.Context(), res.Entry.ID); err == nil && ok {
		delivered = l.Status == model.StatusSynced
	}

	return a.out.Success(clockResult{
		LogID:      res.Entry.ID,
		EmployeeID: res.Employee.ID,
		Name:       res.Employee.FullName(),
		Direction:  res.Entry.Direction,
		Timestamp:  res.Entry.Timestamp,
		Delivered:  delivered,
	}, func(w io.Writer) {
		verb := "Clocked in"
		if res.Entry.Direction == model.DirectionOut {
			verb = "Clocked out"
		}
		fmt.Fprintf(w, "%s: %s at %s\n", verb, res.Employee.FullName(), res.Entry.Timestamp.In(a.location()).Format("15:04"))
		if !delivered {
			fmt.Fprintln(w, "Saved on this terminal; it will be sent when the connection allows.")
		}
	})
}

type clockResult struct {
	LogID      string          `json:"log_id"`
	EmployeeID string          `json:"employee_id"`
	Name       string          `json:"name"`
	Direction  model.Direction `json:"direction"`
	Timestamp  time.Time       `json:"timestamp"`
	Delivered  bool            `json:"delivered"`
}
