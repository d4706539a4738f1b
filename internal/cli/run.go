package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sitepulse/kioskd/internal/connectivity"
	"github.com/sitepulse/kioskd/internal/engine"
	"github.com/sitepulse/kioskd/internal/nudge"
)

// NewRunCommand creates the run command.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the terminal agent",
		Long: `Run the terminal agent until interrupted.

At boot the active identity is restored (from the database, or from the
backup marker if the database was wiped). A first sync runs immediately,
then every sync.interval while the remote is reachable, and again whenever
connectivity comes back. When nudge.url is set the server can request a
sync over a websocket.

Example:
  kioskd run --config /etc/kioskd/kioskd.yaml
  kioskd run --config ./kioskd.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, true)
			if err != nil {
				return err
			}
			defer a.Close()
			return runAgent(cmd, a)
		},
	}
}

func runAgent(cmd *cobra.Command, a *app) error {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	id, err := a.identity().RestoreIdentity(ctx)
	if err != nil {
		return exitFor("failed to restore identity", err)
	}
	slog.Info("identity restored", "terminal_id", id.TerminalID, "source", id.Source, "healed", id.Healed)

	engineOpts := []engine.EngineOption{
		engine.WithNotifier(func(r engine.Result) {
			slog.Info("sync complete", "pushed", r.Pushed, "roster", r.RosterSize)
		}),
	}

	var monitor *connectivity.Monitor
	if a.transport != nil {
		monitor = connectivity.NewMonitor(a.transport, a.cfg.Connectivity.ProbePath, a.cfg.Connectivity.Interval)
		engineOpts = append(engineOpts, engine.WithConnectivity(monitor))
	}
	eng := a.engine(engineOpts...)

	done := make(chan struct{})
	var helpers int
	if monitor != nil {
		monitor.OnOnline(func() { eng.Kick(engine.TriggerOnline) })
		helpers++
		go func() {
			defer func() { done <- struct{}{} }()
			monitor.Run(ctx)
		}()
	}
	if a.cfg.Nudge.URL != "" {
		listener := nudge.NewListener(a.cfg.Nudge.URL, a.cfg.API.Token, a.cfg.Nudge.Rate,
			func() { eng.Kick(engine.TriggerNudge) })
		helpers++
		go func() {
			defer func() { done <- struct{}{} }()
			listener.Run(ctx, a.identity())
		}()
	}

	fmt.Fprintf(a.out.Writer, "Terminal %s running. Press Ctrl-C to stop.\n", id.TerminalID)

	err = eng.Run(ctx)
	cancel()
	for i := 0; i < helpers; i++ {
		<-done
	}
	if err != nil && !isCancel(err) {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	slog.Info("agent stopped gracefully")
	return nil
}
