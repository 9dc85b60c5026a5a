package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSweepCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one enrichment sweep and exit",
		Long: `Selects up to --limit eligible tournaments, walks their websites, and
stages extracted candidates for review. Prints the run summary as JSON.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := a.Orchestrator.Run(cmd.Context(), limit)
			if err != nil {
				a.Logger.Error("sweep failed",
					zap.String("run_id", summary.RunID), zap.Error(err))
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return fmt.Errorf("encode summary: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max targets per run (0 uses the configured default)")
	return cmd
}
