package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ebalint/stork/internal/backlog"
	"github.com/ebalint/stork/internal/logging"
	"github.com/ebalint/stork/internal/render"
)

var backlogCmd = &cobra.Command{
	Use:   "backlog",
	Short: "Fetch the backlog and print the Epic→Story→Sub-task tree",
	Long: `Fetch Epics, Stories, and Sub-tasks matching the given filters and
assemble them into a hierarchy. Issues whose parent is outside the
result set are listed under "Unparented" rather than dropped.

Example:
  stork backlog -p PROJ --label backend --status "In Progress" --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := map[string]any{}
		if labels, err := cmd.Flags().GetStringArray("label"); err == nil && len(labels) > 0 {
			raw["labels"] = labels
		}
		if assignee, err := cmd.Flags().GetString("assignee"); err == nil && assignee != "" {
			raw["assignee"] = assignee
		}
		if status, err := cmd.Flags().GetString("status"); err == nil && status != "" {
			raw["status"] = status
		}

		filter, err := backlog.ParseFilter(raw)
		if err != nil {
			return err
		}

		engine, err := newEngine(cmd)
		if err != nil {
			return err
		}

		logging.Info("fetching backlog",
			"labels", filter.Labels,
			"assignee", filter.Assignee,
			"status", filter.Status)

		tree, err := engine.FetchHierarchy(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("failed to fetch backlog: %w", err)
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			out, err := render.JSON(tree)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
		default:
			fmt.Fprint(cmd.OutOrStdout(), render.Markdown(tree))
		}

		logging.Info("backlog fetched", "issues", tree.Size())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backlogCmd)
	backlogCmd.Flags().StringArray("label", nil, "Label filter (repeatable; issues must carry every label)")
	backlogCmd.Flags().String("assignee", "", "Assignee filter")
	backlogCmd.Flags().String("status", "", "Status filter (e.g. 'To Do', 'In Progress', 'Done')")
	backlogCmd.Flags().String("format", "md", "Output format: md or json")
}
