package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"garage-backend-go/internal/app"
	"garage-backend-go/internal/config"
)

// OpenFunc builds the app a command runs against and the function that
// releases it.
type OpenFunc func(ctx context.Context, opts *RootOptions) (*app.App, func(), error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Open overrides how the app is built (for testing). If nil,
	// configuration is loaded and the app bootstrapped.
	Open OpenFunc

	serving bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the garage CLI.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	if opts == nil {
		opts = &RootOptions{}
	}

	cmd := &cobra.Command{
		Use:   "garage",
		Short: "Collector's Garage - die-cast collection tracker",
		Long: `Track owned models, a wanted list and incoming pre-orders, synced to the
per-user collections in Firestore.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default: environment and .env)")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewLookupCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewMoveCommand(opts))
	cmd.AddCommand(NewMovesCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// openApp loads the configuration and bootstraps the app. Commands log at
// warn level unless verbose; serve uses LOG_LEVEL.
func openApp(ctx context.Context, opts *RootOptions) (*app.App, func(), error) {
	cfg, warnings, err := config.LoadFrom(opts.ConfigFile)
	if err != nil {
		return nil, nil, err
	}

	level := "warn"
	switch {
	case opts.Verbose:
		level = "debug"
	case opts.serving:
		level = cfg.LogLevel
	}
	logger, err := app.NewLogger(level, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range warnings {
		logger.Warn("Configuration warning", zap.String("warning", w))
	}

	a, err := app.Bootstrap(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return a, func() {
		if err := a.Close(); err != nil {
			logger.Error("Error closing app", zap.Error(err))
		}
		_ = logger.Sync()
	}, nil
}

// withApp runs fn against a freshly opened app.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app.App, out *OutputFormatter) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	open := opts.Open
	if open == nil {
		open = openApp
	}
	a, release, err := open(ctx, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start", err)
	}
	defer release()
	return fn(ctx, a, newFormatter(cmd, opts))
}

// requireSession fails unless someone is signed in.
func requireSession(a *app.App) error {
	if a.Sessions.Current() == nil {
		return NewExitError(ExitCommandError, "not signed in: run 'garage login --guest' or 'garage login --id-token <token>'")
	}
	return nil
}
