package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"garage-backend-go/internal/app"
	"garage-backend-go/internal/core"
	"garage-backend-go/internal/form"
	"garage-backend-go/internal/models"
)

// loadTimeout bounds the wait for the first snapshots.
const loadTimeout = 10 * time.Second

// waitLoaded waits for the mirrors of the restored session.
func waitLoaded(ctx context.Context, a *app.App) error {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	if err := a.Sync.WaitLoaded(ctx); err != nil {
		return WrapExitError(ExitFailure, "collections did not load", err)
	}
	return nil
}

func parseCategory(name string) (models.Category, error) {
	cat, err := models.ParseCategory(name)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "invalid category", err)
	}
	return cat, nil
}

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Into string

	Price     string
	Value     string
	SameValue bool
	Condition string
	Packaging string
	Date      string
	Source    string
	Notes     string
	Chase     bool

	Expected string
	Paid     string
	ETAMonth string
	ETAYear  string
	Delayed  bool
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <model-number>",
		Short: "Look a model up and add it to a list",
		Long: `Look the model number up and save it with the given details.

Example:
  garage add 844 --price 150.50
  garage add 844 --price 150 --value 220
  garage add 77 --into preorder --expected 35 --paid 10 --eta-month May`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := parseCategory(opts.Into)
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if err := requireSession(a); err != nil {
					return err
				}
				return runAdd(ctx, cmd, a, out, opts, cat, args[0])
			})
		},
	}

	cmd.Flags().StringVar(&opts.Into, "into", "owned", "list to add to (owned|wanted|preorder)")
	cmd.Flags().StringVar(&opts.Price, "price", "", "purchase price")
	cmd.Flags().StringVar(&opts.Value, "value", "", "current value (unlinks it from the price)")
	cmd.Flags().BoolVar(&opts.SameValue, "same-value", true, "current value follows the purchase price")
	cmd.Flags().StringVar(&opts.Condition, "condition", string(models.ConditionMintInBox), "condition")
	cmd.Flags().StringVar(&opts.Packaging, "packaging", string(models.PackagingBlister), "packaging (Blister|Box|Loose)")
	cmd.Flags().StringVar(&opts.Date, "date", "", "purchase date")
	cmd.Flags().StringVar(&opts.Source, "source", "", "where it was bought or pre-ordered")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	cmd.Flags().BoolVar(&opts.Chase, "chase", false, "mark as a chase model")
	cmd.Flags().StringVar(&opts.Expected, "expected", "", "pre-order expected price")
	cmd.Flags().StringVar(&opts.Paid, "paid", "", "pre-order amount paid")
	cmd.Flags().StringVar(&opts.ETAMonth, "eta-month", "", "pre-order ETA month, e.g. May")
	cmd.Flags().StringVar(&opts.ETAYear, "eta-year", "", "pre-order ETA year")
	cmd.Flags().BoolVar(&opts.Delayed, "delayed", false, "pre-order is delayed")

	return cmd
}

func runAdd(ctx context.Context, cmd *cobra.Command, a *app.App, out *OutputFormatter, opts *AddOptions, cat models.Category, modelNumber string) error {
	flow := a.NewAddFlow()
	md, err := flow.Lookup(ctx, modelNumber)
	if err != nil {
		return WrapExitError(ExitFailure, flow.State().Error, err)
	}

	if cat == models.CategoryPreorder {
		err = flow.EditPreorder(func(f *form.PreorderForm) error {
			f.ExpectedPrice = opts.Expected
			f.PaidAmount = opts.Paid
			f.Source = opts.Source
			f.Notes = opts.Notes
			f.IsDelayed = opts.Delayed
			if opts.ETAYear != "" {
				f.ETAYear = opts.ETAYear
			}
			if opts.ETAMonth != "" {
				return f.SetETAMonth(opts.ETAMonth)
			}
			return nil
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid pre-order details", err)
		}
	} else {
		linked := opts.SameValue
		if cmd.Flags().Changed("value") && !cmd.Flags().Changed("same-value") {
			linked = false
		}
		flow.EditOwned(func(f *form.OwnedForm) {
			if f.UseSameValue != linked {
				f.ToggleSameValue()
			}
			f.SetPurchasePrice(opts.Price)
			f.SetCurrentValue(opts.Value)
			f.Condition = opts.Condition
			f.Packaging = opts.Packaging
			f.PurchaseDate = opts.Date
			f.Source = opts.Source
			f.Notes = opts.Notes
			f.IsChase = opts.Chase
		})
	}

	id, err := flow.Save(ctx, cat)
	if err != nil {
		return WrapExitError(ExitFailure, "save failed", err)
	}
	return out.Success(map[string]interface{}{"id": id, "category": cat, "model": md}, func(w io.Writer) {
		fmt.Fprintf(w, "Added %s %s to %s (%s)\n", md.ModelNumber, md.ModelName, cat, id)
	})
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <category>",
		Short: "List a collection with its totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := parseCategory(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if err := requireSession(a); err != nil {
					return err
				}
				if err := waitLoaded(ctx, a); err != nil {
					return err
				}
				m, err := a.Sync.Mirror(cat)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid category", err)
				}
				if m.Error != "" {
					return NewExitError(ExitFailure, m.Error)
				}
				return out.Success(m, func(w io.Writer) { printMirror(w, out, m) })
			})
		},
	}
}

func printMirror(w io.Writer, out *OutputFormatter, m core.Mirror) {
	if len(m.Items) == 0 {
		fmt.Fprintf(w, "No items in %s\n", m.Category)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	switch m.Category {
	case models.CategoryOwned:
		fmt.Fprintln(tw, "ID\tMODEL\tNAME\tCONDITION\tPAID\tVALUE\tCHASE")
		for _, it := range m.Items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", it.ID, it.ModelNumber, it.ModelName, it.Condition,
				out.Money(it.PurchasePrice), out.Money(it.CurrentValue), chaseMark(it.IsChase))
		}
	case models.CategoryPreorder:
		fmt.Fprintln(tw, "ID\tMODEL\tNAME\tETA\tEXPECTED\tPAID\tDELAYED")
		for _, it := range m.Items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\t%s\t%s\n", it.ID, it.ModelNumber, it.ModelName, it.ETAMonth, it.ETAYear,
				out.Money(it.ExpectedPrice), out.Money(it.PaidAmount), chaseMark(it.IsDelayed))
		}
	default:
		fmt.Fprintln(tw, "ID\tMODEL\tNAME\tNOTES\tCHASE")
		for _, it := range m.Items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.ModelNumber, it.ModelName, it.Notes, chaseMark(it.IsChase))
		}
	}
	_ = tw.Flush()

	t := m.Totals
	switch m.Category {
	case models.CategoryOwned:
		fmt.Fprintf(w, "%s models, %s chase. Value %s, cost %s\n",
			out.Count(t.Count), out.Count(t.ChaseCount), out.Money(t.CurrentValue), out.Money(t.PurchaseCost))
	case models.CategoryPreorder:
		fmt.Fprintf(w, "%s pre-orders. Exposure %s, paid %s\n",
			out.Count(t.Count), out.Money(t.TotalExposure), out.Money(t.PaidAmount))
	default:
		fmt.Fprintf(w, "%s wanted\n", out.Count(t.Count))
	}
}

func chaseMark(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

// NewUpdateCommand creates the update command. Only the flags given are
// written.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		name, image, condition, notes, packaging, date, source string
		price, value, expected, paid                           string
		etaMonth, etaYear                                      string
		chase, delayed                                         bool
	)

	cmd := &cobra.Command{
		Use:   "update <category> <id>",
		Short: "Edit fields of an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := parseCategory(args[0])
			if err != nil {
				return err
			}

			var req models.UpdateItemRequest
			flags := cmd.Flags()
			str := func(flag string, v string) *string {
				if flags.Changed(flag) {
					return &v
				}
				return nil
			}
			amount := func(flag string, v string) *models.AmountInput {
				if flags.Changed(flag) {
					a := models.AmountInput(v)
					return &a
				}
				return nil
			}
			boolean := func(flag string, v bool) *bool {
				if flags.Changed(flag) {
					return &v
				}
				return nil
			}
			req.ModelName = str("name", name)
			req.ImageURL = str("image", image)
			req.Condition = str("condition", condition)
			req.Notes = str("notes", notes)
			req.IsChase = boolean("chase", chase)
			req.PurchasePrice = amount("price", price)
			req.CurrentValue = amount("value", value)
			req.Packaging = str("packaging", packaging)
			req.PurchaseDate = str("date", date)
			req.Source = str("source", source)
			req.ExpectedPrice = amount("expected", expected)
			req.PaidAmount = amount("paid", paid)
			req.ETAMonth = str("eta-month", etaMonth)
			req.ETAYear = str("eta-year", etaYear)
			req.IsDelayed = boolean("delayed", delayed)

			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if err := requireSession(a); err != nil {
					return err
				}
				if err := a.Sync.Update(ctx, cat, args[1], req); err != nil {
					return WrapExitError(ExitFailure, "update failed", err)
				}
				return out.Success(map[string]string{"id": args[1], "category": cat.String()}, func(w io.Writer) {
					fmt.Fprintf(w, "Updated %s in %s\n", args[1], cat)
				})
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&name, "name", "", "model name")
	f.StringVar(&image, "image", "", "image URL")
	f.StringVar(&condition, "condition", "", "condition")
	f.StringVar(&notes, "notes", "", "notes")
	f.BoolVar(&chase, "chase", false, "chase model")
	f.StringVar(&price, "price", "", "purchase price (owned)")
	f.StringVar(&value, "value", "", "current value (owned)")
	f.StringVar(&packaging, "packaging", "", "packaging (owned)")
	f.StringVar(&date, "date", "", "purchase date (owned)")
	f.StringVar(&source, "source", "", "source (owned, preorder)")
	f.StringVar(&expected, "expected", "", "expected price (preorder)")
	f.StringVar(&paid, "paid", "", "amount paid (preorder)")
	f.StringVar(&etaMonth, "eta-month", "", "ETA month (preorder)")
	f.StringVar(&etaYear, "eta-year", "", "ETA year (preorder)")
	f.BoolVar(&delayed, "delayed", false, "delayed (preorder)")

	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <category> <id>",
		Short: "Delete an item after confirmation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := parseCategory(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if err := requireSession(a); err != nil {
					return err
				}
				if err := waitLoaded(ctx, a); err != nil {
					return err
				}
				ticket, err := a.Sync.RequestDelete(ctx, cat, args[1])
				if err != nil {
					return WrapExitError(ExitFailure, "delete failed", err)
				}

				confirmed := yes
				if !confirmed {
					if confirmed, err = confirm(cmd, ticket.Prompt); err != nil {
						return WrapExitError(ExitFailure, "reading answer", err)
					}
				}
				deleted, err := a.Sync.ConfirmDelete(ctx, ticket.ID, confirmed)
				if err != nil {
					return WrapExitError(ExitFailure, "delete failed", err)
				}
				return out.Success(map[string]bool{"deleted": deleted}, func(w io.Writer) {
					if deleted {
						fmt.Fprintf(w, "Deleted %s from %s\n", args[1], cat)
					} else {
						fmt.Fprintln(w, "Nothing deleted")
					}
				})
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// NewMoveCommand creates the move command.
func NewMoveCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		to           string
		price, value string
		yes          bool
	)

	cmd := &cobra.Command{
		Use:   "move <from> <id>",
		Short: "Move an item into another list",
		Long: `Move an item, e.g. a wanted model that was bought or a pre-order that arrived.

Example:
  garage move wanted Xk2... --to owned --price 12.50
  garage move preorder Q9a... --to owned --yes`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseCategory(args[0])
			if err != nil {
				return err
			}
			target, err := parseCategory(to)
			if err != nil {
				return err
			}
			var moveOpts core.MoveOptions
			if cmd.Flags().Changed("price") {
				v := models.Amount(price)
				moveOpts.PurchasePrice = &v
			}
			if cmd.Flags().Changed("value") {
				v := models.Amount(value)
				moveOpts.CurrentValue = &v
			}

			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if err := requireSession(a); err != nil {
					return err
				}
				if err := waitLoaded(ctx, a); err != nil {
					return err
				}
				if !yes {
					ok, err := confirm(cmd, core.MovePrompt(from, target))
					if err != nil {
						return WrapExitError(ExitFailure, "reading answer", err)
					}
					if !ok {
						return out.Success(map[string]bool{"moved": false}, func(w io.Writer) {
							fmt.Fprintln(w, "Nothing moved")
						})
					}
				}

				result, err := a.Sync.Move(ctx, from, args[1], target, moveOpts)
				if err != nil {
					return WrapExitError(ExitFailure, "move failed", err)
				}
				return out.Success(result, func(w io.Writer) {
					fmt.Fprintf(w, "Moved %s from %s to %s (%s)\n", result.SourceID, result.From, result.To, result.TargetID)
				})
			})
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "target list (owned|wanted|preorder)")
	cmd.Flags().StringVar(&price, "price", "", "purchase price in the target")
	cmd.Flags().StringVar(&value, "value", "", "current value in the target")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
