package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helical/genefold/config"
	"github.com/helical/genefold/errors"
	"github.com/helical/genefold/ncbi"
	"github.com/helical/genefold/roi"
)

// RoiCmd scans a FASTA file for regions of interest.
var RoiCmd = &cobra.Command{
	Use:   "roi <fasta-file>",
	Short: "Scan a FASTA file for regions of interest",
	Long: `Scan a nucleotide FASTA file against motif rules and print detected
regions of interest. Rules come from --rules, the configured rule file, or
the built-in default rule, in that order.

Positions are zero-based half-open intervals on the input sequence.

Examples:
  genefold roi results/NM_007294.4.fasta
  genefold roi seq.fasta --rules rules.json --policy keep-all
  genefold roi seq.fasta --threshold 0.9 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRoi,
}

var (
	roiRulesPath string
	roiPolicy    string
	roiThreshold float64
	roiContext   int
	roiJSON      bool
)

func init() {
	RoiCmd.Flags().StringVar(&roiRulesPath, "rules", "", "JSON rule file (default: configured rules)")
	RoiCmd.Flags().StringVar(&roiPolicy, "policy", "", "Overlap policy: merge-overlaps or keep-all")
	RoiCmd.Flags().Float64Var(&roiThreshold, "threshold", -1, "Minimum rule confidence (0..1)")
	RoiCmd.Flags().IntVar(&roiContext, "context", -1, "Bases of flanking context to capture")
	RoiCmd.Flags().BoolVar(&roiJSON, "json", false, "Output regions as JSON")
}

func runRoi(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrapf(err, "read %s", args[0])
	}
	description, sequence, err := ncbi.ParseFASTA(string(data))
	if err != nil {
		return err
	}

	rulesPath := roiRulesPath
	if rulesPath == "" {
		rulesPath = cfg.ROI.RulesPath
	}
	rules := roi.DefaultRules()
	if rulesPath != "" {
		if rules, err = roi.LoadRules(rulesPath); err != nil {
			return err
		}
	}

	opts := roi.Options{
		OverlapPolicy:       cfg.ROI.OverlapPolicy,
		ConfidenceThreshold: cfg.ROI.ConfidenceThreshold,
		ContextSize:         cfg.ROI.ContextSize,
	}
	if roiPolicy != "" {
		opts.OverlapPolicy = roiPolicy
	}
	if roiThreshold >= 0 {
		opts.ConfidenceThreshold = roiThreshold
	}
	if roiContext >= 0 {
		opts.ContextSize = roiContext
	}

	regions, err := roi.Find(sequence, rules, opts)
	if err != nil {
		return err
	}

	if roiJSON {
		out, err := json.MarshalIndent(regions, "", "  ")
		if err != nil {
			return errors.Wrap(err, "marshal regions")
		}
		fmt.Println(string(out))
		return nil
	}

	accession := ncbi.AccessionFromDescription(description)
	fmt.Printf("Scanned %s (%d bases) with %d rule(s)\n\n", accession, len(sequence), len(rules))
	if len(regions) == 0 {
		fmt.Println("No regions of interest found")
		return nil
	}

	fmt.Printf("%-8s %-8s %-15s %-6s %-12s %s\n", "START", "END", "CATEGORY", "CONF", "RULE", "CONTEXT")
	for _, r := range regions {
		fmt.Printf("%-8d %-8d %-15s %-6.2f %-12s %s\n",
			r.Start, r.End, r.Category, r.Confidence, r.RuleID, r.Context)
	}
	fmt.Printf("\nTotal: %d region(s)\n", len(regions))
	return nil
}
