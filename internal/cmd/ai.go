package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	sdk "github.com/globalassist/globalassist/sdk/go"
	"github.com/globalassist/globalassist/sdk/go/chat"
)

func newModelsCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			models, err := st.app.Client.AI.Models(cmd.Context())
			if err != nil {
				return err
			}
			p := st.app.Printer
			return p.Result(models, func(w io.Writer) {
				for _, m := range models {
					line := fmt.Sprintf("%-12s %s", m.ID, m.Name)
					if m.IsPremium() {
						line += " " + p.Badge("[pro]")
					}
					if m.ID == st.app.Config.Model {
						line += " " + p.Muted("(default)")
					}
					fmt.Fprintln(w, line)
					if m.Description != "" {
						fmt.Fprintln(w, "             "+p.Muted(m.Description))
					}
				}
			})
		},
	}
}

// resolveModel looks id up in the catalog so tier gating knows the tier.
func resolveModel(ctx context.Context, app *App, id string) (sdk.Model, error) {
	if id == "" {
		id = app.Config.Model
	}
	models, err := app.Client.AI.Models(ctx)
	if err != nil {
		return sdk.Model{}, fmt.Errorf("list models: %w", err)
	}
	m, ok := sdk.FindModel(models, id)
	if !ok {
		return sdk.Model{}, usagef("unknown model %q (see `globalassist models`)", id)
	}
	return m, nil
}

func promptFrom(args []string, in io.Reader) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	if in == nil {
		return "", usagef("provide a prompt as arguments or on stdin")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type generateOutput struct {
	Model       string `json:"model"`
	Code        string `json:"code"`
	Explanation string `json:"explanation,omitempty"`
}

func newGenerateCmd(st *state) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "generate [prompt...]",
		Short: "Generate code for a prompt",
		Long: `Generate code with the selected model. The prompt is read from stdin
when no arguments (or "-") are given.

Premium models need a signed-in Pro account.`,
		Aliases: []string{"gen"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			prompt, err := promptFrom(args, st.app.in)
			if err != nil {
				return err
			}
			m, err := resolveModel(ctx, st.app, model)
			if err != nil {
				return err
			}
			conv := chat.New(st.app.Client.AI, st.app.Guard, chat.WithLogger(st.app.Logger))
			d, err := conv.Submit(ctx, prompt, m)
			if err != nil {
				if errors.Is(err, chat.ErrEmptyPrompt) {
					return usagef("prompt is empty")
				}
				return err
			}
			msgs := conv.Messages()
			if len(msgs) == 0 {
				return decisionError(d)
			}
			last := msgs[len(msgs)-1]
			if last.IsError {
				if redirect := decisionError(d); redirect != nil {
					return redirect
				}
				return errors.New(last.Content)
			}
			p := st.app.Printer
			return p.Result(generateOutput{Model: m.ID, Code: last.Content, Explanation: last.Explanation}, func(w io.Writer) {
				fmt.Fprintln(w, p.Muted("# "+last.Model))
				fmt.Fprintln(w, strings.TrimRight(last.Content, "\n"))
				if last.Explanation != "" {
					fmt.Fprintln(w)
					fmt.Fprintln(w, p.Muted(last.Explanation))
				}
			})
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "model id (default from config)")
	return cmd
}

func newExplainCmd(st *state) *cobra.Command {
	var (
		model string
		file  string
	)
	cmd := &cobra.Command{
		Use:   "explain [code...]",
		Short: "Explain a code snippet",
		RunE: func(cmd *cobra.Command, args []string) error {
			var code string
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				code = string(data)
			} else {
				var err error
				if code, err = promptFrom(args, st.app.in); err != nil {
					return err
				}
			}
			if model == "" {
				model = st.app.Config.Model
			}
			res, err := st.app.Client.AI.Explain(cmd.Context(), sdk.ExplainRequest{Code: code, Model: model})
			if err != nil {
				return err
			}
			return st.app.Printer.Result(res, func(w io.Writer) {
				fmt.Fprintln(w, res.Explanation)
			})
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "model id (default from config)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the code from a file")
	return cmd
}
