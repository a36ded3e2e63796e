package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"garage-backend-go/internal/app"
	"garage-backend-go/internal/lookup"
)

// NewLookupCommand creates the lookup command.
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <model-number>",
		Short: "Fetch a model's name and image from the lookup service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				md, err := a.Lookup.Fetch(ctx, args[0])
				if err != nil {
					return WrapExitError(ExitFailure, lookup.UserMessage(err), err)
				}
				return out.Success(md, func(w io.Writer) {
					fmt.Fprintf(w, "%s  %s\n", md.ModelNumber, md.ModelName)
					if md.ImageURL != "" {
						fmt.Fprintf(w, "Image: %s\n", md.ImageURL)
					}
				})
			})
		},
	}
}
