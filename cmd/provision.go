package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ebalint/stork/internal/logging"
	"github.com/ebalint/stork/pkg/models"
)

var provisionCmd = &cobra.Command{
	Use:   "provision <drafts.json>",
	Short: "Create drafted tickets in dependency order",
	Long: `Read ticket drafts from a JSON file and create them in the tracker:
epics first, then stories, then sub-tasks. A draft may reference its
parent by index into the same file ("parent_index") or by the key of an
existing issue ("parent_key"). Tickets that already exist under the
same parent with the same summary are skipped, and a failed draft fails
its descendants without touching its siblings. Already-created tickets
are never rolled back; the per-draft outcomes report exactly what
happened.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read drafts file: %w", err)
		}

		var drafts []models.TicketDraft
		if err := json.Unmarshal(data, &drafts); err != nil {
			return fmt.Errorf("failed to parse drafts file: %w", err)
		}

		engine, err := newEngine(cmd)
		if err != nil {
			return err
		}

		logging.Info("provisioning tickets", "drafts", len(drafts))

		results, err := engine.Provision(cmd.Context(), drafts)
		if err != nil {
			return err
		}

		printResults(cmd, results)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(provisionCmd)
}

func printResults(cmd *cobra.Command, results []models.ProvisioningResult) {
	created, skipped, failed := 0, 0, 0
	for _, r := range results {
		switch r.Outcome {
		case models.OutcomeCreated:
			created++
			fmt.Fprintf(cmd.OutOrStdout(), "created  %-12s %s (%s)\n", r.Key, r.Summary, r.Type)
		case models.OutcomeSkippedDuplicate:
			skipped++
			fmt.Fprintf(cmd.OutOrStdout(), "skipped  %-12s %s (duplicate)\n", r.Key, r.Summary)
		case models.OutcomeFailed:
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "failed   %-12s %s: %s\n", "-", r.Summary, r.Reason)
		}
	}

	logging.Info("provisioning complete",
		"created", created,
		"skipped", skipped,
		"failed", failed)
}
