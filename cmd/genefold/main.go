package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helical/genefold/cmd/genefold/commands"
	"github.com/helical/genefold/logger"
)

var rootCmd = &cobra.Command{
	Use:   "genefold",
	Short: "genefold - gene sequence fetching, region detection, and structure prediction jobs",
	Long: `genefold - gene-to-structure prediction pipeline.

Fetch nucleotide sequences from NCBI, detect regions of interest with
IUPAC motif rules, and drive structure prediction jobs through the web
portal with durable, resumable job tracking.

Available commands:
  search - Search NCBI for candidate records of a gene
  fetch  - Fetch a nucleotide sequence as FASTA
  roi    - Scan a FASTA file for regions of interest
  submit - Queue a structure prediction job
  jobs   - Inspect and manage tracked jobs
  daemon - Run the job workers and websocket event server
  db     - Manage the job database
  config - Show the active configuration

Examples:
  genefold search BRCA1                  # List candidate records
  genefold fetch BRCA1 --out results/    # Fetch the preferred transcript
  genefold roi results/NM_007294.4.fasta # Scan for regions of interest
  genefold jobs ls --status polling      # List jobs awaiting the portal
  genefold daemon                        # Process queued jobs`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit machine-readable JSON logs")

	rootCmd.AddCommand(commands.SearchCmd)
	rootCmd.AddCommand(commands.FetchCmd)
	rootCmd.AddCommand(commands.RoiCmd)
	rootCmd.AddCommand(commands.SubmitCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.DaemonCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
