package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helical/genefold/config"
	"github.com/helical/genefold/logger"
	"github.com/helical/genefold/ncbi"
)

// SearchCmd searches the nucleotide database for candidate records.
var SearchCmd = &cobra.Command{
	Use:   "search <gene>",
	Short: "Search NCBI for candidate records of a gene",
	Long: `Search the NCBI nucleotide database for records of a gene symbol.

Candidates are ranked the way fetch picks them: MANE Select transcripts
first, then RefSeq transcripts, then everything else. The preferred
candidate is marked with '*'.

Examples:
  genefold search BRCA1
  genefold search TP53 --organism "Mus musculus"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var searchOrganism string

func init() {
	SearchCmd.Flags().StringVar(&searchOrganism, "organism", "Homo sapiens", "Organism to scope the search to")
}

func runSearch(cmd *cobra.Command, args []string) error {
	gene := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client := ncbi.NewClient(cfg.NCBI, logger.Logger)
	candidates, err := client.Search(cmd.Context(), gene, searchOrganism)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		fmt.Printf("No records found for %s (%s)\n", gene, searchOrganism)
		return nil
	}

	preferred := ncbi.PreferredCandidate(candidates)

	fmt.Printf("%-2s %-15s %-10s %-6s %-7s %s\n", "", "ACCESSION", "LENGTH", "MANE", "REFSEQ", "TITLE")
	for _, c := range candidates {
		mark := " "
		if preferred != nil && c.ID == preferred.ID {
			mark = "*"
		}
		fmt.Printf("%-2s %-15s %-10d %-6v %-7v %s\n",
			mark, c.Accession, c.Length, c.IsMANESelect, c.IsRefSeq, truncate(c.Title, 60))
	}
	fmt.Printf("\nTotal: %d candidate(s)\n", len(candidates))
	return nil
}
