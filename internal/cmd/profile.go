package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	sdk "github.com/globalassist/globalassist/sdk/go"
	"github.com/globalassist/globalassist/sdk/go/guard"
	"github.com/globalassist/globalassist/sdk/go/session"
)

func newProfileCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := st.app.Require(ctx, guard.Request{Path: guard.PathSettings}); err != nil {
				return err
			}
			user, err := st.app.Client.Profile.Get(ctx)
			if err != nil {
				return err
			}
			return printProfile(st.app.Printer, user)
		},
	}
	cmd.AddCommand(newProfileUpdateCmd(st))
	return cmd
}

func newProfileUpdateCmd(st *state) *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change your name or email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var update sdk.ProfileUpdate
			if cmd.Flags().Changed("name") {
				update.FullName = sdk.StringPtr(name)
			}
			if cmd.Flags().Changed("email") {
				update.Email = sdk.StringPtr(email)
			}
			if update.FullName == nil && update.Email == nil {
				return usagef("nothing to update: pass --name and/or --email")
			}
			ctx := cmd.Context()
			if err := st.app.Require(ctx, guard.Request{Path: guard.PathSettings}); err != nil {
				return err
			}
			user, err := st.app.Client.Profile.Update(ctx, update)
			if err != nil {
				return err
			}
			if err := st.app.Session.UpdateIdentity(session.PatchFromUser(user)); err != nil {
				return err
			}
			st.app.Printer.Notice("Profile updated")
			return printProfile(st.app.Printer, user)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new full name")
	cmd.Flags().StringVar(&email, "email", "", "new email")
	return cmd
}

func printProfile(p *Printer, u sdk.User) error {
	return p.Result(u, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s\n", p.Title("Name: "), u.FullName)
		fmt.Fprintf(w, "%s %s\n", p.Title("Email:"), u.Email)
		fmt.Fprintf(w, "%s %s\n", p.Title("Plan: "), sdk.ParseTier(string(u.SubscriptionTier)))
	})
}
