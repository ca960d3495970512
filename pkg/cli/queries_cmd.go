package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"query-scheduler/internal/api"
	"query-scheduler/internal/domain"
	"query-scheduler/internal/estimate"
	"query-scheduler/internal/lifecycle"
	"query-scheduler/pkg/client"
)

func newQueriesCmd(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "queries",
		Aliases: []string{"query", "q"},
		Short:   "Inspect and manage scheduled queries",
	}

	cmd.AddCommand(newQueriesListCmd(c))
	cmd.AddCommand(newQueriesShowCmd(c))
	cmd.AddCommand(newQueriesPreviewCmd(c))
	cmd.AddCommand(newQueriesRunCmd(c))
	cmd.AddCommand(newQueriesDeleteCmd(c))
	return cmd
}

func newQueriesListCmd(c *client.Client) *cobra.Command {
	var opts client.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := c.ListQueries(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				data := make([]api.ScheduledQuery, len(page.Queries))
				for i, q := range page.Queries {
					data[i] = api.ScheduledQueryToAPI(*q)
				}
				return PrintJSON(out, api.PaginatedScheduledQueries{Data: data, NextPageToken: page.NextPageToken})
			}

			rows := make([][]string, len(page.Queries))
			for i, q := range page.Queries {
				calls, err := estimate.EstimateDailyCalls(q.Schedule)
				callsText := strconv.Itoa(calls)
				if err != nil {
					callsText = "invalid"
				}
				rows[i] = []string{
					q.ID,
					truncate(q.Title(), 40),
					q.Owner,
					q.Schedule.String(),
					callsText,
					lastStatus(q),
					formatTime(q.NextScheduledAt),
				}
			}
			PrintTable(out, []string{"id", "title", "owner", "schedule", "calls/day", "last run", "next run"}, rows)
			if page.NextPageToken != "" {
				_, _ = fmt.Fprintf(out, "\nMore results: --page-token %s\n", page.NextPageToken)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "Only queries owned by this principal")
	cmd.Flags().StringVar(&opts.Tag, "tag", "", "Only queries carrying this tag id")
	cmd.Flags().IntVar(&opts.MaxResults, "max-results", 0, "Page size")
	cmd.Flags().StringVar(&opts.PageToken, "page-token", "", "Page token from a previous listing")
	return cmd
}

func newQueriesShowCmd(c *client.Client) *cobra.Command {
	var claim string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a scheduled query as the preview would",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestor, err := principalFromToken(c.Token, claim)
			if err != nil {
				return err
			}
			in, err := loadInputs(cmd.Context(), c, args[0], requestor)
			if err != nil {
				return err
			}
			if in.Query == nil {
				return domain.ErrNotFound("scheduled query %q not found", args[0])
			}

			ctrl := lifecycle.NewController(in, lifecycle.Ports{}, nil)
			defer ctrl.Close()
			v := ctrl.View()

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), viewJSON(v))
			}
			renderView(cmd.OutOrStdout(), v)
			return nil
		},
	}
	cmd.Flags().StringVar(&claim, "claim", "email", "Token claim that carries the principal name")
	return cmd
}

func newQueriesRunCmd(c *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Run a scheduled query now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := c.RunNow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), api.ScheduledQueryToAPI(*q))
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", q.ID, lastStatus(q))
			return nil
		},
	}
}

func newQueriesDeleteCmd(c *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a scheduled query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), map[string]string{"status": "deleted", "id": args[0]})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

// viewJSON is the machine-readable form of a lifecycle view.
func viewJSON(v lifecycle.View) map[string]interface{} {
	q := v.Query
	tags := make([]string, len(v.Tags))
	for i, t := range v.Tags {
		tags[i] = t.Name
	}
	return map[string]interface{}{
		"id":          q.ID,
		"title":       v.Title,
		"owner":       q.Owner,
		"connection":  q.ConnectionID,
		"sql":         q.SQLText,
		"schedule":    q.Schedule,
		"daily_calls": v.QueryCalls,
		"tags":        tags,
		"last_run":    lastStatus(q),
		"next_run":    q.NextScheduledAt,
		"can_edit":    v.CanEdit,
		"running":     v.Running,
		"notice":      v.Notice,
		"actions":     v.Actions,
	}
}

func renderView(w io.Writer, v lifecycle.View) {
	q := v.Query
	tags := make([]string, len(v.Tags))
	for i, t := range v.Tags {
		tags[i] = t.Name
	}
	_, _ = fmt.Fprintf(w, "%s\n\n", v.Title)
	_, _ = fmt.Fprintf(w, "%-12s %s\n", "ID", q.ID)
	_, _ = fmt.Fprintf(w, "%-12s %s\n", "Owner", q.Owner)
	_, _ = fmt.Fprintf(w, "%-12s %s\n", "Connection", q.ConnectionID)
	_, _ = fmt.Fprintf(w, "%-12s %s\n", "SQL", q.SQLText)
	_, _ = fmt.Fprintf(w, "%-12s %s (%d calls/day)\n", "Schedule", q.Schedule, v.QueryCalls)
	_, _ = fmt.Fprintf(w, "%-12s %s\n", "Tags", orDash(strings.Join(tags, ", ")))
	_, _ = fmt.Fprintf(w, "%-12s %s\n", "Last run", lastStatus(q))
	_, _ = fmt.Fprintf(w, "%-12s %s\n", "Next run", formatTime(q.NextScheduledAt))
	if e := q.LastExecution; e != nil && e.ErrorMessage != nil {
		_, _ = fmt.Fprintf(w, "%-12s %s\n", "Error", *e.ErrorMessage)
	}
	if v.Notice != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n", v.Notice)
	}
}

func lastStatus(q *domain.ScheduledQuery) string {
	e := q.LastExecution
	if e == nil {
		return "never"
	}
	return fmt.Sprintf("%s %s", e.Status, e.StartedAt.Local().Format(time.DateTime))
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func isNotFound(err error) bool {
	var nf *domain.NotFoundError
	return errors.As(err, &nf)
}
