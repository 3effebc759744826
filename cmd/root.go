// Package cmd provides the command-line interface for stork.
package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ebalint/stork/internal/backlog"
	"github.com/ebalint/stork/internal/config"
	"github.com/ebalint/stork/internal/jira"
	"github.com/ebalint/stork/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "stork",
	Short: "stork fetches backlogs and provisions tickets in Jira",
	Long: `stork talks to a Jira-like issue tracker. It fetches Epics, Stories,
and Sub-tasks under filter constraints, assembles them into a hierarchy,
and creates new tickets in dependency order with duplicate suppression.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("project", "p", "", "Jira project key (defaults to JIRA_PROJECT)")
}

// newEngine wires configuration, the authenticated retrying tracker
// client, and the engine together for a command invocation.
func newEngine(cmd *cobra.Command) (*backlog.Engine, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateJira(); err != nil {
		return nil, err
	}

	project := cfg.Jira.Project
	if flag, err := cmd.Flags().GetString("project"); err == nil && flag != "" {
		project = flag
	}

	client, err := jira.NewClient(jira.Config{
		BaseURL:       cfg.Jira.URL,
		Username:      cfg.Jira.Username,
		Token:         cfg.Jira.Token,
		AuthMode:      cfg.Jira.AuthMode,
		Project:       project,
		EpicLinkField: cfg.Jira.EpicLinkField,
		Retry: jira.RetryConfig{
			Observer: jira.AttemptObserverFunc(func(attempt int, delay time.Duration, status int) {
				logging.Warn("retrying tracker request",
					"attempt", attempt,
					"delay", delay,
					"status", status)
			}),
		},
	})
	if err != nil {
		return nil, err
	}

	return backlog.New(client), nil
}
