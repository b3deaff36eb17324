package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	sdk "github.com/globalassist/globalassist/sdk/go"
	"github.com/globalassist/globalassist/sdk/go/guard"
)

func newPlansCmd(st *state) *cobra.Command {
	var paidOnly bool
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "List subscription plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				plans []sdk.Plan
				err   error
			)
			if paidOnly {
				plans, err = st.app.Client.Payment.PaidPlans(cmd.Context())
			} else {
				plans, err = st.app.Client.Payment.Plans(cmd.Context())
			}
			if err != nil {
				return err
			}
			p := st.app.Printer
			return p.Result(plans, func(w io.Writer) {
				for _, plan := range plans {
					price := fmt.Sprintf("$%.0f/%s", plan.Price, plan.Billing)
					if plan.IsFree() {
						price = "free"
					}
					line := fmt.Sprintf("%-12s %-12s %s", plan.ID, plan.Name, price)
					if plan.Savings != "" {
						line += " " + p.Badge(plan.Savings)
					}
					fmt.Fprintln(w, line)
					if len(plan.Features) > 0 {
						fmt.Fprintln(w, "             "+p.Muted(strings.Join(plan.Features, ", ")))
					}
				}
			})
		},
	}
	cmd.Flags().BoolVar(&paidOnly, "paid", false, "only list plans you can upgrade to")
	return cmd
}

func newCheckoutCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <plan-id>",
		Short: "Start a checkout for a plan and print its URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := st.app.Require(ctx, guard.Request{Path: guard.PathPayment}); err != nil {
				return err
			}
			session, err := st.app.Client.Payment.CreateCheckout(ctx, args[0])
			if err != nil {
				return err
			}
			p := st.app.Printer
			return p.Result(session, func(w io.Writer) {
				fmt.Fprintln(w, "Continue the checkout in your browser:")
				fmt.Fprintln(w, session.URL)
			})
		},
	}
}

func newSubscriptionCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscription",
		Short: "Show or manage your subscription",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := st.app.Require(ctx, guard.Request{Path: guard.PathPayment}); err != nil {
				return err
			}
			sub, err := st.app.Client.Payment.Subscription(ctx)
			if err != nil {
				return err
			}
			p := st.app.Printer
			return p.Result(sub, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s %s\n", p.Title("Plan:"), sdk.ParseTier(string(sub.Tier)), p.Muted(sub.Status))
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "cancel",
		Short: "Cancel at the end of the billing period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := st.app.Require(ctx, guard.Request{Path: guard.PathPayment}); err != nil {
				return err
			}
			if err := st.app.Client.Payment.Cancel(ctx); err != nil {
				return err
			}
			st.app.Printer.Notice("Subscription cancelled")
			return nil
		},
	}, &cobra.Command{
		Use:   "portal",
		Short: "Print a link to the billing portal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := st.app.Require(ctx, guard.Request{Path: guard.PathPayment}); err != nil {
				return err
			}
			portal, err := st.app.Client.Payment.Portal(ctx)
			if err != nil {
				return err
			}
			return st.app.Printer.Result(portal, func(w io.Writer) {
				fmt.Fprintln(w, portal.URL)
			})
		},
	})
	return cmd
}
