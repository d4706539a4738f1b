package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sitepulse/kioskd/internal/engine"
	"github.com/sitepulse/kioskd/internal/model"
	"github.com/sitepulse/kioskd/internal/terminals"
)

// NewTerminalsCommand creates the terminals command.
func NewTerminalsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "terminals",
		Short:         "List terminal identities known to this device",
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

			sw := terminals.NewSwitcher(a.store, a.backup, nil)
			all, err := sw.List(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list terminals", err)
			}
			activeID, err := a.identity().ActiveTerminalID(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read active terminal", err)
			}

			rows := make([]terminalRow, len(all))
			for i, t := range all {
				rows[i] = terminalRow{Terminal: t, Active: t.ID == activeID}
			}
			return a.out.Success(rows, func(w io.Writer) {
				if len(rows) == 0 {
					fmt.Fprintln(w, "No terminals registered. Run: kioskd activate <code>")
					return
				}
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "\tID\tNAME\tSITE\tORGANIZATION")
				for _, r := range rows {
					mark := ""
					if r.Active {
						mark = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", mark, r.ID, r.Name, r.SiteName, r.OrgName)
				}
				tw.Flush()
			})
		},
	}
}

type terminalRow struct {
	model.Terminal
	Active bool `json:"active"`
}

// NewSwitchCommand creates the switch command.
func NewSwitchCommand(opts *RootOptions) *cobra.Command {
	var noSync bool

	cmd := &cobra.Command{
		Use:   "switch <terminal-id>",
		Short: "Make another registered terminal the active identity",
		Long: `Switch the active identity to a terminal already registered on this
device, then sync so its roster and configuration are current. Other
terminal records are kept.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, !noSync)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.restoreIdentity(cmd.Context()); err != nil {
				return err
			}

			var syncer terminals.Syncer
			fg := &foregroundSyncer{ctx: cmd.Context()}
			if !noSync {
				fg.eng = a.engine()
				syncer = fg
			}

			term, err := terminals.NewSwitcher(a.store, a.backup, syncer).SwitchTo(cmd.Context(), args[0])
			if err != nil {
				return a.out.Fail("switch failed", err)
			}
			synced := fg.res.Pulled

			return a.out.Success(switchResult{Terminal: term, Synced: synced}, func(w io.Writer) {
				fmt.Fprintf(w, "Active terminal: %s (%s) at %s\n", displayName(term), term.ID, term.SiteName)
				if !noSync && !synced {
					fmt.Fprintln(w, "Roster not refreshed yet; it will sync when the remote is reachable.")
				}
			})
		},
	}

	cmd.Flags().BoolVar(&noSync, "no-sync", false, "skip the sync after switching")
	return cmd
}

type switchResult struct {
	Terminal model.Terminal `json:"terminal"`
	Synced   bool           `json:"synced"`
}

// foregroundSyncer runs a requested cycle to completion. The switch command
// has no Run loop to hand the trigger to.
type foregroundSyncer struct {
	ctx context.Context
	eng *engine.Engine
	res engine.Result
}

func (s *foregroundSyncer) Kick(trigger engine.Trigger) {
	s.res = s.eng.Cycle(s.ctx, trigger, true)
}
