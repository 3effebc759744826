package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ebalint/stork/internal/config"
	"github.com/ebalint/stork/internal/github"
	"github.com/ebalint/stork/internal/logging"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Provision tickets from labeled GitHub issues",
	Long: `Read open issues from a GitHub repository and provision them as
tracker tickets. Issues labeled 'epic', 'story', or 'subtask' become
drafts of that type; an "## Issues" section in an epic or story body
links its children by issue URL.

Example:
  stork import -r owner/repo -p PROJ`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repository, err := cmd.Flags().GetString("repository")
		if err != nil {
			return err
		}
		if repository == "" {
			return fmt.Errorf("repository flag is required")
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		ghClient, err := github.NewClient(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize github client: %w", err)
		}

		drafts, err := ghClient.CollectDrafts(cmd.Context(), repository)
		if err != nil {
			return err
		}
		if len(drafts) == 0 {
			logging.Warn("no labeled issues found", "repository", repository)
			return nil
		}

		if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
			out, err := json.MarshalIndent(drafts, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		}

		engine, err := newEngine(cmd)
		if err != nil {
			return err
		}

		logging.Info("provisioning imported drafts",
			"repository", repository,
			"drafts", len(drafts))

		results, err := engine.Provision(cmd.Context(), drafts)
		if err != nil {
			return err
		}

		printResults(cmd, results)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringP("repository", "r", "", "GitHub repository (e.g. 'owner/repo')")
	importCmd.Flags().Bool("dry-run", false, "Print the assembled drafts without creating anything")
}
