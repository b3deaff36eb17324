package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	sdk "github.com/globalassist/globalassist/sdk/go"
	"github.com/globalassist/globalassist/sdk/go/guard"
)

func newHistoryCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse and manage your generation history",
	}
	cmd.AddCommand(newHistoryListCmd(st), newHistoryShowCmd(st), newHistoryDeleteCmd(st), newHistoryClearCmd(st))
	return cmd
}

func historyType(args []string) (sdk.HistoryType, error) {
	if len(args) == 0 {
		return sdk.HistoryAll, nil
	}
	t, err := sdk.ParseHistoryType(args[0])
	if err != nil {
		return "", usagef("%v", err)
	}
	return t, nil
}

func newHistoryListCmd(st *state) *cobra.Command {
	var params sdk.HistoryListParams
	cmd := &cobra.Command{
		Use:   "list [all|chat|code|project|artifact]",
		Short: "List history entries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := historyType(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := st.app.Require(ctx, guard.Request{Path: guard.HistoryPath(typ)}); err != nil {
				return err
			}
			page, err := st.app.Client.History.List(ctx, typ, &params)
			if err != nil {
				return err
			}
			p := st.app.Printer
			return p.Result(page, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s\n", p.Title(typ.Title()), p.Muted(fmt.Sprintf("(%d)", page.Total)))
				if len(page.History) == 0 {
					fmt.Fprintln(w, p.Muted("No history yet."))
					return
				}
				for _, item := range page.History {
					fmt.Fprintf(w, "%6d  %-8s %s %s\n", item.ID, item.Type, item.Title, p.Muted(item.ModelUsed))
				}
			})
		},
	}
	cmd.Flags().IntVar(&params.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&params.PerPage, "per-page", 20, "entries per page")
	return cmd
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, usagef("invalid history id %q", arg)
	}
	return id, nil
}

func newHistoryShowCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one history entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := st.app.Require(ctx, guard.Request{Path: guard.HistoryPath(sdk.HistoryAll)}); err != nil {
				return err
			}
			item, err := st.app.Client.History.Get(ctx, id)
			if err != nil {
				return err
			}
			p := st.app.Printer
			return p.Result(item, func(w io.Writer) {
				fmt.Fprintln(w, p.Title(item.Title))
				fmt.Fprintln(w, p.Muted(item.CreatedAt+" "+item.ModelUsed))
				fmt.Fprintln(w, item.Content)
			})
		},
	}
}

func newHistoryDeleteCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one history entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := st.app.Require(ctx, guard.Request{Path: guard.HistoryPath(sdk.HistoryAll)}); err != nil {
				return err
			}
			if err := st.app.Client.History.Delete(ctx, id); err != nil {
				return err
			}
			st.app.Printer.Notice("Deleted entry %d", id)
			return nil
		},
	}
}

func newHistoryClearCmd(st *state) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear [all|chat|code|project|artifact]",
		Short: "Delete every entry of a type",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := historyType(args)
			if err != nil {
				return err
			}
			if !yes {
				return usagef("refusing to clear %s history without --yes", typ)
			}
			ctx := cmd.Context()
			if err := st.app.Require(ctx, guard.Request{Path: guard.HistoryPath(typ)}); err != nil {
				return err
			}
			if err := st.app.Client.History.Clear(ctx, typ); err != nil {
				return err
			}
			st.app.Printer.Notice("Cleared %s history", typ)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm")
	return cmd
}
