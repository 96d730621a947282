package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/helical/genefold/config"
	"github.com/helical/genefold/errors"
	"github.com/helical/genefold/logger"
	"github.com/helical/genefold/ncbi"
)

// FetchCmd fetches a nucleotide sequence and optionally writes a FASTA file.
var FetchCmd = &cobra.Command{
	Use:   "fetch <gene>",
	Short: "Fetch a nucleotide sequence as FASTA",
	Long: `Fetch the preferred nucleotide record for a gene: MANE Select if
available, then RefSeq, then the first search hit. Use --id to fetch a
specific record and skip the search.

Examples:
  genefold fetch BRCA1 --out results/
  genefold fetch BRCA1 --max-len 5000
  genefold fetch --id 1732746264 --out results/`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFetch,
}

var (
	fetchOrganism string
	fetchID       string
	fetchMaxLen   int
	fetchOutDir   string
)

func init() {
	FetchCmd.Flags().StringVar(&fetchOrganism, "organism", "Homo sapiens", "Organism to scope the search to")
	FetchCmd.Flags().StringVar(&fetchID, "id", "", "Fetch a specific record id, skipping the search")
	FetchCmd.Flags().IntVar(&fetchMaxLen, "max-len", 0, "Fetch only the first N bases (0 = whole record)")
	FetchCmd.Flags().StringVar(&fetchOutDir, "out", "", "Write a FASTA file into this directory")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client := ncbi.NewClient(cfg.NCBI, logger.Logger)
	ctx := cmd.Context()

	id := fetchID
	if id == "" {
		if len(args) == 0 {
			return errors.Wrap(errors.ErrValidation, "fetch needs a gene argument or --id")
		}
		gene := args[0]

		candidates, err := client.Search(ctx, gene, fetchOrganism)
		if err != nil {
			return err
		}
		picked := ncbi.PreferredCandidate(candidates)
		if picked == nil {
			return errors.Wrapf(errors.ErrNotFound, "no records match gene %q", gene)
		}
		pterm.Info.Printf("Using %s (%s)\n", picked.Accession, truncate(picked.Title, 70))
		id = picked.ID
	}

	record, err := client.Fetch(ctx, id, fetchMaxLen)
	if err != nil {
		return err
	}

	fmt.Printf("Accession: %s\n", record.Accession)
	fmt.Printf("Length:    %d bases\n", record.Length)
	fmt.Printf("Database:  %s\n", record.Database)

	if fetchOutDir != "" {
		path, err := ncbi.WriteFASTA(fetchOutDir, record)
		if err != nil {
			return err
		}
		pterm.Success.Printf("Wrote %s\n", path)
	}
	return nil
}
