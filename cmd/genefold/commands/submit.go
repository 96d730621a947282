package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/helical/genefold/config"
	"github.com/helical/genefold/errors"
	"github.com/helical/genefold/jobspec"
	"github.com/helical/genefold/ncbi"
	"github.com/helical/genefold/portal"
	"github.com/helical/genefold/roi"
	"github.com/helical/genefold/track"
)

// SubmitCmd queues a structure prediction job for the daemon to process.
var SubmitCmd = &cobra.Command{
	Use:   "submit <fasta-file>",
	Short: "Queue a structure prediction job",
	Long: `Build and queue a structure prediction job from a nucleotide FASTA
file and a protein library. The sequence is scanned for regions of
interest; the DNA window spanning the detected regions is paired with the
selected proteins and queued for the portal.

The job is processed by a running daemon (genefold daemon). Progress can
be followed with 'genefold jobs status <id>' or over the websocket.

With --split, each detected region becomes its own tracked job; the daemon
drives them concurrently, each in its own browser session.

Examples:
  genefold submit results/NM_007294.4.fasta --proteins library.xlsx
  genefold submit seq.fasta --proteins lib.xlsx --protein MAX --name max-ebox
  genefold submit seq.fasta --proteins lib.xlsx --split`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

var (
	submitProteinsPath string
	submitProteinNames []string
	submitJobName      string
	submitRulesPath    string
	submitDBPath       string
	submitSplit        bool
)

func init() {
	SubmitCmd.Flags().StringVar(&submitProteinsPath, "proteins", "", "Protein library spreadsheet (xlsx, name in column A, sequence in column B)")
	SubmitCmd.Flags().StringSliceVar(&submitProteinNames, "protein", nil, "Protein name(s) to include (default: all in the library)")
	SubmitCmd.Flags().StringVar(&submitJobName, "name", "", "Job name (default: the record accession)")
	SubmitCmd.Flags().StringVar(&submitRulesPath, "rules", "", "JSON rule file for region detection")
	SubmitCmd.Flags().StringVar(&submitDBPath, "db-path", "", "Custom database path (overrides config)")
	SubmitCmd.Flags().BoolVar(&submitSplit, "split", false, "Queue one job per detected region instead of one spanning job")
	SubmitCmd.MarkFlagRequired("proteins")
}

func runSubmit(cmd *cobra.Command, args []string) error {
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
	record := &ncbi.SequenceRecord{
		Accession:   ncbi.AccessionFromDescription(description),
		Description: description,
		Sequence:    sequence,
		Length:      len(sequence),
	}

	regions, err := scanRegions(cfg, sequence)
	if err != nil {
		return err
	}
	if len(regions) == 0 {
		return errors.Wrap(errors.ErrNotFound, "no regions of interest found, nothing to predict")
	}
	pterm.Info.Printf("Detected %d region(s) of interest\n", len(regions))

	proteins, err := selectProteins(submitProteinsPath, submitProteinNames)
	if err != nil {
		return err
	}

	selections := [][]roi.ROI{regions}
	if submitSplit {
		selections = selections[:0]
		for _, r := range regions {
			selections = append(selections, []roi.ROI{r})
		}
	}

	database, err := openDatabase(cfg, submitDBPath)
	if err != nil {
		return err
	}
	defer database.Close()
	tracker := track.NewTracker(database)

	for i, selected := range selections {
		name := submitJobName
		if len(selections) > 1 {
			if name == "" {
				name = record.Accession
			}
			name = fmt.Sprintf("%s-%d", name, i+1)
		}
		spec, err := jobspec.Build(record, selected, jobspec.ComplexParams{
			Proteins: proteins,
			JobName:  name,
		})
		if err != nil {
			return err
		}

		payload, err := json.Marshal(portal.PredictPayload{Spec: spec})
		if err != nil {
			return errors.Wrap(err, "marshal job payload")
		}
		job, err := track.NewJob(portal.HandlerName, spec.JobName, spec.Accession, payload)
		if err != nil {
			return err
		}
		if err := tracker.Submit(job); err != nil {
			return err
		}

		pterm.Success.Printf("Queued prediction job %s (%s)\n", job.ID, spec.JobName)
		fmt.Printf("Follow it with: genefold jobs status %s\n", job.ID)
	}
	return nil
}

// scanRegions runs region detection with the configured rules and options.
func scanRegions(cfg *config.Config, sequence string) ([]roi.ROI, error) {
	rulesPath := submitRulesPath
	if rulesPath == "" {
		rulesPath = cfg.ROI.RulesPath
	}
	rules := roi.DefaultRules()
	if rulesPath != "" {
		var err error
		if rules, err = roi.LoadRules(rulesPath); err != nil {
			return nil, err
		}
	}

	return roi.Find(sequence, rules, roi.Options{
		OverlapPolicy:       cfg.ROI.OverlapPolicy,
		ConfidenceThreshold: cfg.ROI.ConfidenceThreshold,
		ContextSize:         cfg.ROI.ContextSize,
	})
}

// selectProteins loads the library and filters it to the requested names.
// With no names requested the whole library is used.
func selectProteins(path string, names []string) ([]jobspec.Molecule, error) {
	library, err := roi.LoadProteinLibrary(path)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[strings.ToLower(name)] = true
	}

	var molecules []jobspec.Molecule
	for _, p := range library {
		if len(wanted) > 0 && !wanted[strings.ToLower(p.Name)] {
			continue
		}
		molecules = append(molecules, jobspec.Molecule{
			Role:     jobspec.RoleProtein,
			Name:     p.Name,
			Sequence: p.Sequence,
		})
	}
	if len(molecules) == 0 {
		return nil, errors.Wrapf(errors.ErrValidation,
			"no matching proteins in %s (requested: %s)", path, strings.Join(names, ", "))
	}
	return molecules, nil
}
