package cli

import (
	"fmt"

	"github.com/felixgeelhaar/membank/internal/prune"
	"github.com/spf13/cobra"
)

func newPruneCmd(o *options) *cobra.Command {
	var (
		dryRun   bool
		patterns []string
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete objects whose ttl has run out",
		Long: `Visit every category matching the configured patterns (prune.categories,
or --category) and delete objects whose timestamp plus ttl days lies in the
past. Objects without a ttl are never pruned.`,
		Args: cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, args []string, a *app) error {
			if len(patterns) == 0 {
				patterns = a.cfg.Prune.Categories
			}
			sw := prune.New(a.store, patterns, a.obs, a.bus)
			sw.DryRun = dryRun

			report, err := sw.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			if o.json {
				return printJSON(cmd, report)
			}

			w := cmd.OutOrStdout()
			verb := "deleted"
			if report.DryRun {
				verb = "would delete"
			}
			for _, e := range report.Expired {
				fmt.Fprintf(w, "%s %s/%s %s\n", warnStyle.Render(verb), e.Category, e.Key,
					dimStyle.Render("(expired "+e.ExpiredAt.Format("2006-01-02 15:04")+")"))
			}
			for _, f := range report.Failures {
				fmt.Fprintf(w, "%s %s/%s: %s\n", errorStyle.Render("failed"), f.Category, f.Key, f.Error)
			}
			fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf("scanned %d objects in %d categories, %d expired",
				report.Scanned, len(report.Categories), len(report.Expired))))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report expired objects without deleting them")
	cmd.Flags().StringSliceVar(&patterns, "category", nil, "Category glob to sweep (repeatable)")
	return cmd
}
