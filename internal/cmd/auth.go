package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	sdk "github.com/globalassist/globalassist/sdk/go"
	"github.com/globalassist/globalassist/sdk/go/session"
)

type passwordFlags struct {
	password      string
	passwordStdin bool
}

func (f *passwordFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.password, "password", "", "account password")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "read the password from stdin")
}

func (f *passwordFlags) resolve(st *state) (string, error) {
	if f.passwordStdin {
		if f.password != "" {
			return "", usagef("--password and --password-stdin are mutually exclusive")
		}
		return st.readLine()
	}
	if f.password == "" {
		return "", usagef("--password or --password-stdin is required")
	}
	return f.password, nil
}

func newLoginCmd(st *state) *cobra.Command {
	var (
		email string
		pw    passwordFlags
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Long: `Sign in and store the access token for later commands.

Examples:
  globalassist login --email you@example.com --password-stdin < pw.txt
  globalassist login --email you@example.com --password secret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := pw.resolve(st)
			if err != nil {
				return err
			}
			id, err := st.app.Session.Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			return printSignedIn(st.app.Printer, id)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	pw.bind(cmd)
	return cmd
}

func newRegisterCmd(st *state) *cobra.Command {
	var (
		email, name string
		pw          passwordFlags
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := pw.resolve(st)
			if err != nil {
				return err
			}
			id, err := st.app.Session.Register(cmd.Context(), email, password, name)
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			return printSignedIn(st.app.Printer, id)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "", "full name")
	pw.bind(cmd)
	return cmd
}

func newAuthSuccessCmd(st *state) *cobra.Command {
	var access, refresh string
	cmd := &cobra.Command{
		Use:   "auth-success",
		Short: "Finish an external (OAuth) sign-in with the token it returned",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(access) == "" {
				return usagef("--token is required")
			}
			id, err := st.app.Session.CompleteExternalLogin(cmd.Context(), access, refresh)
			if err != nil {
				return fmt.Errorf("external sign-in failed: %w", err)
			}
			return printSignedIn(st.app.Printer, id)
		},
	}
	cmd.Flags().StringVar(&access, "token", "", "access token from the redirect")
	cmd.Flags().StringVar(&refresh, "refresh-token", "", "refresh token from the redirect, if any")
	return cmd
}

func printSignedIn(p *Printer, id session.Identity) error {
	return p.Result(id, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s %s\n",
			p.Success("Signed in as"), id.Email, p.Badge("["+string(sdk.ParseTier(string(id.SubscriptionTier)))+"]"))
	})
}

func newLogoutCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st.app.Session.Logout(cmd.Context())
			return st.app.Printer.Result(map[string]bool{"signed_in": false}, func(w io.Writer) {
				fmt.Fprintln(w, st.app.Printer.Success("Signed out"))
			})
		},
	}
}

type whoami struct {
	SignedIn     bool              `json:"signed_in"`
	User         *sdk.User         `json:"user,omitempty"`
	Subscription *sdk.Subscription `json:"subscription,omitempty"`
}

func newWhoamiCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and subscription",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := loadWhoami(cmd.Context(), st.app)
			if err != nil {
				return err
			}
			p := st.app.Printer
			return p.Result(info, func(w io.Writer) {
				if !info.SignedIn {
					fmt.Fprintln(w, "Not signed in. Use `globalassist login`.")
					return
				}
				fmt.Fprintf(w, "%s %s\n", p.Title("Email:"), info.User.Email)
				if info.User.FullName != "" {
					fmt.Fprintf(w, "%s %s\n", p.Title("Name: "), info.User.FullName)
				}
				tier, status := info.User.SubscriptionTier, info.User.SubscriptionStatus
				if info.Subscription != nil {
					tier, status = info.Subscription.Tier, info.Subscription.Status
				}
				fmt.Fprintf(w, "%s %s %s\n", p.Title("Plan: "), sdk.ParseTier(string(tier)), p.Muted(status))
			})
		},
	}
}

// loadWhoami initializes the session and, when signed in, fetches the
// profile and subscription concurrently.
func loadWhoami(ctx context.Context, app *App) (whoami, error) {
	snap := app.Session.Initialize(ctx)
	if !snap.Authenticated() {
		return whoami{}, ctx.Err()
	}
	info := whoami{SignedIn: true, User: snap.Identity}

	var (
		profile sdk.User
		sub     sdk.Subscription
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = app.Client.Profile.Get(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sub, err = app.Client.Payment.Subscription(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		app.Logger.Debug().Err(err).Msg("whoami: using cached identity")
		return info, nil
	}
	if err := app.Session.UpdateIdentity(session.PatchFromUser(profile)); err != nil {
		return whoami{}, err
	}
	current := app.Session.Snapshot()
	info.User = current.Identity
	info.Subscription = &sub
	return info, nil
}
