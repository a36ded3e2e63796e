package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"garage-backend-go/internal/app"
)

// NewMovesCommand creates the moves command.
func NewMovesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "moves",
		Short: "List moves that did not finish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if err := requireSession(a); err != nil {
					return err
				}
				moves, err := a.Sync.PendingMoves(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "listing moves failed", err)
				}
				return out.Success(moves, func(w io.Writer) {
					if len(moves) == 0 {
						fmt.Fprintln(w, "No pending moves")
						return
					}
					for _, m := range moves {
						fmt.Fprintf(w, "%s  %s -> %s  source %s  target %s  %s", m.ID, m.From, m.To, m.SourceID, orNone(m.TargetID), m.Status)
						if m.LastError != "" {
							fmt.Fprintf(w, "  (%s)", m.LastError)
						}
						fmt.Fprintln(w)
					}
				})
			})
		},
	}
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Finish moves that were interrupted",
		Long: `Finish every pending move: a move whose copy was created gets its
original removed; a move that never got that far is dropped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if err := requireSession(a); err != nil {
					return err
				}
				report, err := a.Sync.Reconcile(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "reconcile failed", err)
				}
				if err := out.Success(report, func(w io.Writer) {
					fmt.Fprintf(w, "Completed %s, abandoned %s, failed %s\n",
						out.Count(len(report.Completed)), out.Count(len(report.Abandoned)), out.Count(len(report.Failed)))
					ids := make([]string, 0, len(report.Failed))
					for id := range report.Failed {
						ids = append(ids, id)
					}
					sort.Strings(ids)
					for _, id := range ids {
						fmt.Fprintf(w, "  %s: %s\n", id, report.Failed[id])
					}
				}); err != nil {
					return err
				}
				if len(report.Failed) > 0 {
					return NewExitError(ExitFailure, "some moves could not be reconciled")
				}
				return nil
			})
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
