package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"query-scheduler/internal/api"
	"query-scheduler/pkg/client"
)

func newTagsCmd(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Manage the tag catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tags, err := c.ListTags(cmd.Context())
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				out := make([]api.Tag, len(tags))
				for i, t := range tags {
					out[i] = api.TagToAPI(t)
				}
				return PrintJSON(cmd.OutOrStdout(), out)
			}
			rows := make([][]string, len(tags))
			for i, t := range tags {
				rows[i] = []string{t.ID, t.Name, orDash(t.Color), orDash(t.CreatedBy)}
			}
			PrintTable(cmd.OutOrStdout(), []string{"id", "name", "color", "created by"}, rows)
			return nil
		},
	})

	var color string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := c.CreateTag(cmd.Context(), args[0], color)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), api.TagToAPI(*tag))
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created tag %s (%s)\n", tag.Name, tag.ID)
			return nil
		},
	}
	create.Flags().StringVar(&color, "color", "", "Display color, e.g. #2f81f7")
	cmd.AddCommand(create)

	return cmd
}
