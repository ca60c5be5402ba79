package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const previewWidth = 72

func newRecentCmd(o *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent <category>",
		Short: "Show the newest entries of a category",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(o, func(cmd *cobra.Command, args []string, a *app) error {
			results, err := a.engine.GetMostRecent(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if o.json {
				return printJSON(cmd, results)
			}

			w := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(w, dimStyle.Render("(empty)"))
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(w, "%s  %s\n", labelStyle.Render(r.Key), preview(r.Data, previewWidth))
			}
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of entries")
	return cmd
}

func newTagsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tags <category> [tag...]",
		Short: "Find objects carrying all of the given tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(o, func(cmd *cobra.Command, args []string, a *app) error {
			objs, err := a.engine.FindByTags(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			if o.json {
				return printJSON(cmd, objs)
			}

			w := cmd.OutOrStdout()
			if len(objs) == 0 {
				fmt.Fprintln(w, dimStyle.Render("(no matches)"))
				return nil
			}
			for _, obj := range objs {
				fmt.Fprintf(w, "%s  %s  %s\n",
					labelStyle.Render(obj.Metadata.Key),
					dimStyle.Render("["+strings.Join(obj.Metadata.Tags, ", ")+"]"),
					preview(obj.Data, previewWidth))
			}
			return nil
		}),
	}
}
