package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"garage-backend-go/internal/api"
	"garage-backend-go/internal/app"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the view API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rootOpts.serving = true
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				if port == "" {
					port = a.Config.Port
				}
				router := api.NewRouter(a, a.Logger)
				if err := api.Serve(ctx, fmt.Sprintf(":%s", port), router, a.Logger); err != nil {
					return WrapExitError(ExitFailure, "server stopped", err)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "port to listen on (default: PORT)")
	return cmd
}
