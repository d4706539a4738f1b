package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/sitepulse/kioskd/internal/config"
	"github.com/sitepulse/kioskd/internal/engine"
	"github.com/sitepulse/kioskd/internal/identity"
	"github.com/sitepulse/kioskd/internal/model"
	"github.com/sitepulse/kioskd/internal/remote"
	"github.com/sitepulse/kioskd/internal/store"
)

// app bundles what a command needs. Fields stay nil when the command did
// not ask for them.
type app struct {
	opts      *RootOptions
	cfg       config.Config
	out       *OutputFormatter
	store     *store.Store
	backup    *identity.FileBackup
	remote    remote.Client
	transport *remote.Transport
}

// openApp loads config, configures logging and opens the store. When
// needRemote is set a missing API endpoint is a command error.
func openApp(cmd *cobra.Command, opts *RootOptions, needRemote bool) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	configureLogging(cmd.ErrOrStderr(), opts, cfg)

	a := &app{
		opts: opts,
		cfg:  cfg,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
		backup: identity.NewFileBackup(cfg.BackupMarker),
	}

	if needRemote {
		switch {
		case opts.NewRemote != nil:
			a.remote = opts.NewRemote(cfg)
		case cfg.RemoteEnabled():
			client := remote.NewHTTPClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout)
			a.remote = client
			a.transport = client.Transport()
		default:
			return nil, NewExitError(ExitCommandError, "api.base_url is not configured (use --config)")
		}
	}

	slog.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database, store.WithNow(a.now))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	a.store = st
	return a, nil
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

func (a *app) now() time.Time {
	if a.opts.Now != nil {
		return a.opts.Now()
	}
	return time.Now()
}

func (a *app) location() *time.Location {
	if a.opts.Location != nil {
		return a.opts.Location
	}
	return time.Local
}

func (a *app) identity() *identity.Manager {
	return identity.NewManager(a.store, a.remote, a.backup)
}

// restoreIdentity resolves the active identity before a command reads it,
// so a wiped database is recovered from the backup marker. An unpaired
// device is not an error here; commands report that themselves.
func (a *app) restoreIdentity(ctx context.Context) error {
	id, err := a.identity().RestoreIdentity(ctx)
	if model.IsCode(err, model.ErrCodeNeedsActivation) {
		return nil
	}
	if err != nil {
		return exitFor("failed to restore identity", err)
	}
	slog.Debug("identity restored", "terminal_id", id.TerminalID, "source", id.Source, "healed", id.Healed)
	return nil
}

func (a *app) engine(opts ...engine.EngineOption) *engine.Engine {
	base := []engine.EngineOption{
		engine.WithBatchSize(a.cfg.Sync.BatchSize),
		engine.WithInterval(a.cfg.Sync.Interval),
		engine.WithNow(a.now),
	}
	return engine.New(a.store, a.remote, append(base, opts...)...)
}

func loadConfig(opts *RootOptions) (config.Config, error) {
	var cfg config.Config
	if opts.ConfigPath == "" {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}
	if opts.Database != "" {
		cfg.SetDatabase(opts.Database)
	}
	if cfg.RemoteEnabled() {
		if err := cfg.Validate(); err != nil {
			return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
		}
	}
	return cfg, nil
}

// configureLogging installs a slog TextHandler on w. --verbose wins over
// the configured level.
func configureLogging(w io.Writer, opts *RootOptions, cfg config.Config) {
	level := cfg.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
