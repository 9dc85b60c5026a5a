package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newEnrichCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Run a targeted contact enrichment pass and exit",
		Long: `Fans out over tournaments that have a website but are missing contact
details, fetching one page each and staging email, phone, and director
candidates. Prints the summary as JSON.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := a.Orchestrator.EnrichContacts(cmd.Context(), limit)
			if err != nil {
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
	cmd.Flags().IntVar(&limit, "limit", 0, "max entities to enrich (0 uses the sweep default)")
	return cmd
}
