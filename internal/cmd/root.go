// Package cmd implements the globalassist command line client.
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	sdk "github.com/globalassist/globalassist/sdk/go"
	"github.com/globalassist/globalassist/sdk/go/config"
	"github.com/globalassist/globalassist/sdk/go/credentials"
)

// Option customizes Run, mainly for tests.
type Option func(*state)

// WithCredentialStore replaces the configured credential backend.
func WithCredentialStore(s credentials.Store) Option { return func(st *state) { st.creds = s } }

// WithEnvironment replaces the process environment used for configuration.
func WithEnvironment(env map[string]string) Option { return func(st *state) { st.env = env } }

// state is shared by the commands of one invocation.
type state struct {
	streams    Streams
	configPath string
	apiURL     string
	output     string
	logLevel   string
	creds      credentials.Store
	env        map[string]string

	app *App
}

// Run executes the CLI with args and returns the process exit code.
func Run(ctx context.Context, args []string, streams Streams, opts ...Option) int {
	st := &state{streams: streams}
	for _, opt := range opts {
		if opt != nil {
			opt(st)
		}
	}
	root := newRootCmd(st)
	root.SetArgs(args)
	root.SetIn(streams.In)
	root.SetOut(streams.Out)
	root.SetErr(streams.Err)

	err := root.ExecuteContext(ctx)
	if closeErr := st.app.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintln(streams.Err, "Error:", err)
	}
	return exitCode(err)
}

func newRootCmd(st *state) *cobra.Command {
	root := &cobra.Command{
		Use:   "globalassist",
		Short: "GlobalAssist AI code generation from the terminal",
		Long: `globalassist talks to the GlobalAssist backend: sign in, pick a model,
generate code and manage your history and subscription.

Configuration is read from ~/.config/globalassist/config.yaml (or --config)
and GLOBALASSIST_* environment variables.

Exit codes: 0 success, 1 error, 2 usage error, 3 login or upgrade required.`,
		Version:       sdk.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return st.init()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&st.configPath, "config", "", "config file path")
	flags.StringVar(&st.apiURL, "api-url", "", "API base URL (overrides config)")
	flags.StringVarP(&st.output, "output", "o", "", "output format: text, json or yaml")
	flags.StringVar(&st.logLevel, "log-level", "", "log level (overrides config)")

	root.AddCommand(
		newLoginCmd(st),
		newRegisterCmd(st),
		newLogoutCmd(st),
		newWhoamiCmd(st),
		newAuthSuccessCmd(st),
		newModelsCmd(st),
		newGenerateCmd(st),
		newExplainCmd(st),
		newHistoryCmd(st),
		newPlansCmd(st),
		newCheckoutCmd(st),
		newSubscriptionCmd(st),
		newProfileCmd(st),
		newShellCmd(st),
	)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{msg: err.Error()}
	})
	return root
}

func (st *state) init() error {
	if st.app != nil {
		return nil
	}
	cfg, err := config.Load(config.LoadOptions{Path: st.configPath, Environment: st.env})
	if err != nil {
		return err
	}
	if st.apiURL != "" {
		cfg.BaseURL = st.apiURL
	}
	if st.output != "" {
		cfg.Output = strings.ToLower(st.output)
	}
	if st.logLevel != "" {
		cfg.Log.Level = st.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return usageError{msg: err.Error()}
	}
	app, err := NewApp(cfg, st.streams, st.creds)
	if err != nil {
		return err
	}
	st.app = app
	return nil
}

func (st *state) readLine() (string, error) {
	return readLine(st.app.in)
}

func readLine(r io.Reader) (string, error) {
	if r == nil {
		return "", usagef("no input available")
	}
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if err != nil {
			if sb.Len() > 0 {
				break
			}
			return "", err
		}
	}
	return strings.TrimRight(sb.String(), "\r"), nil
}
