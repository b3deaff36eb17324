package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	sdk "github.com/globalassist/globalassist/sdk/go"
	"github.com/globalassist/globalassist/sdk/go/chat"
	"github.com/globalassist/globalassist/sdk/go/guard"
)

const shellHelp = `Commands:
  open <path>                 navigate (/, /settings, /payment, /history/<type>)
  history [type]              same as open /history/<type>
  login <email> <password>    sign in and resume the interrupted navigation
  register <email> <password> [name]
  logout
  whoami
  models                      list models
  model <id>                  select the model for prompts
  ask <prompt>                generate code (any other line works too)
  messages                    show the conversation
  help
  exit`

func newShellCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session with navigation and chat",
		Long: `Start an interactive session. Protected destinations redirect to login
and are resumed once you sign in.

` + shellHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sh := &shell{
				app:   st.app,
				out:   cmd.OutOrStdout(),
				model: st.app.Config.Model,
				conv:  chat.New(st.app.Client.AI, st.app.Guard, chat.WithLogger(st.app.Logger)),
			}
			return sh.run(cmd.Context(), st.app.in)
		},
	}
}

type shell struct {
	app   *App
	out   io.Writer
	conv  *chat.Conversation
	model string
	// pending is the intent of the last login redirect.
	pending string
}

func (sh *shell) run(ctx context.Context, in io.Reader) error {
	if in == nil {
		return usagef("shell needs an input stream")
	}
	p := sh.app.Printer
	snap := sh.app.Session.Initialize(ctx)
	if snap.Authenticated() {
		fmt.Fprintf(sh.out, "Welcome back, %s.\n", snap.Identity.DisplayName())
	} else {
		fmt.Fprintln(sh.out, "Not signed in. Type `help` for commands.")
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(sh.out, p.Title("globalassist> "))
		if !scanner.Scan() {
			fmt.Fprintln(sh.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		done, err := sh.exec(ctx, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintln(sh.out, "Error:", err)
		}
		if done {
			return nil
		}
	}
}

func (sh *shell) exec(ctx context.Context, line string) (bool, error) {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)
	switch strings.ToLower(verb) {
	case "exit", "quit":
		return true, nil
	case "help", "?":
		fmt.Fprintln(sh.out, shellHelp)
	case "open":
		if len(args) != 1 {
			return false, usagef("usage: open <path>")
		}
		return false, sh.open(ctx, args[0])
	case "history":
		typ, err := historyType(args)
		if err != nil {
			return false, err
		}
		return false, sh.open(ctx, guard.HistoryPath(typ))
	case "login":
		if len(args) != 2 {
			return false, usagef("usage: login <email> <password>")
		}
		if _, err := sh.app.Session.Login(ctx, args[0], args[1]); err != nil {
			return false, err
		}
		return false, sh.afterSignIn(ctx)
	case "register":
		if len(args) < 2 {
			return false, usagef("usage: register <email> <password> [name]")
		}
		name := strings.Join(args[2:], " ")
		if _, err := sh.app.Session.Register(ctx, args[0], args[1], name); err != nil {
			return false, err
		}
		return false, sh.afterSignIn(ctx)
	case "logout":
		sh.app.Session.Logout(ctx)
		sh.pending = ""
		fmt.Fprintln(sh.out, "Signed out.")
	case "whoami":
		info, err := loadWhoami(ctx, sh.app)
		if err != nil {
			return false, err
		}
		if !info.SignedIn {
			fmt.Fprintln(sh.out, "Not signed in.")
			return false, nil
		}
		fmt.Fprintf(sh.out, "%s (%s)\n", info.User.Email, sdk.ParseTier(string(info.User.SubscriptionTier)))
	case "models":
		models, err := sh.app.Client.AI.Models(ctx)
		if err != nil {
			return false, err
		}
		for _, m := range models {
			marker := " "
			if m.ID == sh.model {
				marker = "*"
			}
			fmt.Fprintf(sh.out, "%s %-12s %s %s\n", marker, m.ID, m.Name, sh.app.Printer.Badge(string(m.Tier)))
		}
	case "model":
		if len(args) != 1 {
			return false, usagef("usage: model <id>")
		}
		return false, sh.selectModel(ctx, args[0])
	case "messages":
		for _, m := range sh.conv.Messages() {
			fmt.Fprintf(sh.out, "[%s] %s\n", m.Role, m.Content)
		}
	case "ask":
		return false, sh.ask(ctx, rest)
	default:
		return false, sh.ask(ctx, line)
	}
	return false, nil
}

// open navigates to path and renders the destination when allowed.
func (sh *shell) open(ctx context.Context, path string) error {
	d, err := sh.app.Guard.Navigate(ctx, guard.Request{Path: path})
	if err != nil {
		return err
	}
	if !sh.follow(d) {
		return nil
	}
	return sh.render(ctx, guard.Clean(path))
}

// follow reports whether d allows rendering; redirects are printed and a
// login intent is remembered for the next sign-in.
func (sh *shell) follow(d guard.Decision) bool {
	if d.Allowed() {
		return true
	}
	if d.RedirectsToLogin() && d.Intent != nil {
		sh.pending = d.Intent.ID
	}
	sh.app.Printer.Redirect(d)
	if d.RedirectsToLogin() {
		fmt.Fprintln(sh.out, "Use `login <email> <password>` to continue.")
	}
	return false
}

func (sh *shell) afterSignIn(ctx context.Context) error {
	snap := sh.app.Session.Snapshot()
	if snap.Identity != nil {
		fmt.Fprintf(sh.out, "Signed in as %s.\n", snap.Identity.Email)
	}
	next := sh.app.Guard.ResumeAfterLogin(sh.pending)
	sh.pending = ""
	fmt.Fprintf(sh.out, "-> %s\n", next)
	return sh.open(ctx, next)
}

func (sh *shell) render(ctx context.Context, path string) error {
	p := sh.app.Printer
	switch {
	case path == guard.PathSettings:
		user, err := sh.app.Client.Profile.Get(ctx)
		if err != nil {
			return err
		}
		return printProfile(p, user)
	case path == guard.PathPayment:
		plans, err := sh.app.Client.Payment.PaidPlans(ctx)
		if err != nil {
			return err
		}
		for _, plan := range plans {
			fmt.Fprintf(sh.out, "%-12s %-12s $%.0f/%s\n", plan.ID, plan.Name, plan.Price, plan.Billing)
		}
		return nil
	case strings.HasPrefix(path, guard.PathHistoryPrefix):
		typ, err := sdk.ParseHistoryType(strings.TrimPrefix(path, guard.PathHistoryPrefix))
		if err != nil {
			return err
		}
		page, err := sh.app.Client.History.List(ctx, typ, nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "%s (%d)\n", p.Title(typ.Title()), page.Total)
		for _, item := range page.History {
			fmt.Fprintf(sh.out, "%6d  %s\n", item.ID, item.Title)
		}
		return nil
	case path == guard.PathHome:
		fmt.Fprintf(sh.out, "Home. Model: %s. Type a prompt to generate code.\n", sh.model)
		return nil
	default:
		fmt.Fprintf(sh.out, "%s: page not found\n", path)
		return nil
	}
}

// selectModel mirrors the model picker: a premium model on a free account
// goes to the payment page instead of being selected.
func (sh *shell) selectModel(ctx context.Context, id string) error {
	m, err := resolveModel(ctx, sh.app, id)
	if err != nil {
		return err
	}
	snap := sh.app.Session.Initialize(ctx)
	if m.IsPremium() && snap.Authenticated() && !snap.Tier().IsPaid() {
		d := guard.RedirectTo(guard.PathPayment, nil)
		sh.follow(d)
		return sh.render(ctx, guard.PathPayment)
	}
	sh.model = m.ID
	fmt.Fprintf(sh.out, "Model: %s\n", m.Name)
	return nil
}

func (sh *shell) ask(ctx context.Context, prompt string) error {
	m, err := resolveModel(ctx, sh.app, sh.model)
	if err != nil {
		return err
	}
	before := len(sh.conv.Messages())
	d, err := sh.conv.Submit(ctx, prompt, m)
	if err != nil {
		return err
	}
	if msgs := sh.conv.Messages(); len(msgs) > before {
		last := msgs[len(msgs)-1]
		switch {
		case last.Role != chat.RoleAssistant:
		case last.IsError:
			fmt.Fprintln(sh.out, sh.app.Printer.Muted(last.Content))
		default:
			fmt.Fprintln(sh.out, sh.app.Printer.Muted("# "+last.Model))
			fmt.Fprintln(sh.out, strings.TrimRight(last.Content, "\n"))
		}
	}
	if !sh.follow(d) && d.RedirectsToPayment() {
		return sh.render(ctx, guard.PathPayment)
	}
	return nil
}
