package cli

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"query-scheduler/internal/lifecycle"
	"query-scheduler/internal/tui"
	"query-scheduler/pkg/client"
)

func newQueriesPreviewCmd(c *client.Client) *cobra.Command {
	var claim string

	cmd := &cobra.Command{
		Use:   "preview <id>",
		Short: "Open the interactive preview of a scheduled query",
		Long: `Open the interactive preview of a scheduled query.

Keys: e edit, tab next field, enter save or dismiss, esc cancel,
d delete (press twice), r run now (press twice), l log in, q quit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("preview requires an interactive terminal; use 'qsched queries show' instead")
			}
			requestor, err := principalFromToken(c.Token, claim)
			if err != nil {
				return err
			}

			id := args[0]
			in, err := loadInputs(cmd.Context(), c, id, requestor)
			if err != nil {
				return err
			}

			ctrl := lifecycle.NewController(in, lifecycle.Ports{Saver: c, Deleter: c}, nil)
			defer ctrl.Close()

			load := func(ctx context.Context) (lifecycle.Inputs, error) {
				return loadInputs(ctx, c, id, requestor)
			}
			model := tui.New(ctrl, load,
				tui.WithLoginHint("Run 'qsched auth token --principal <owner> --secret <secret>' and reopen the preview."))
			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&claim, "claim", "email", "Token claim that carries the principal name")
	return cmd
}

// loadInputs assembles controller inputs from the API. A missing query
// yields inputs with a nil Query.
func loadInputs(ctx context.Context, c *client.Client, id, requestor string) (lifecycle.Inputs, error) {
	in := lifecycle.Inputs{Requestor: requestor}

	q, err := c.GetQuery(ctx, id)
	switch {
	case err == nil:
		in.Query = q
	case !isNotFound(err):
		return in, err
	}

	if in.TagCatalog, err = c.ListTags(ctx); err != nil {
		return in, err
	}
	if in.DailyCallBudget, err = c.DailyCalls(ctx); err != nil {
		return in, err
	}
	return in, nil
}
