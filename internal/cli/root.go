package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/sitepulse/kioskd/internal/config"
	"github.com/sitepulse/kioskd/internal/remote"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string

	// NewRemote overrides the remote client (for testing).
	// If nil, an HTTP client for cfg.API is used.
	NewRemote func(cfg config.Config) remote.Client

	// Now and Location override the clock and display zone (for testing).
	Now      func() time.Time
	Location *time.Location
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the kioskd CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kioskd",
		Short: "kioskd - site attendance terminal agent",
		Long: `kioskd runs an attendance terminal: it pairs the device with an
organization, records clock-ins and clock-outs locally even while offline,
and keeps the local roster and the remote attendance record in sync.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to kioskd.yaml")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	cmd.AddCommand(NewActivateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewClockCommand(opts))
	cmd.AddCommand(NewStaffCommand(opts))
	cmd.AddCommand(NewTerminalsCommand(opts))
	cmd.AddCommand(NewSwitchCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))

	return cmd
}
