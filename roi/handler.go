package roi

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/helical/genefold/config"
	"github.com/helical/genefold/errors"
	"github.com/helical/genefold/ncbi"
	"github.com/helical/genefold/track"
)

// HandlerName identifies the region scan job handler.
const HandlerName = "roi.scan"

// ScanPayload is the job payload for a region scan. Exactly one sequence
// source is used: an inline sequence, or a FASTA artifact path (typically the
// output of a fetch job).
type ScanPayload struct {
	Sequence  string   `json:"sequence,omitempty"`
	FastaPath string   `json:"fasta_path,omitempty"`
	RulesPath string   `json:"rules_path,omitempty"` // overrides the configured rule file
	Options   *Options `json:"options,omitempty"`    // nil = configured defaults
}

// ScanResult is the job result for a region scan.
type ScanResult struct {
	Accession      string `json:"accession,omitempty"` // from the FASTA header, when scanning a file
	SequenceLength int    `json:"sequence_length"`
	RuleCount      int    `json:"rule_count"`
	Regions        []ROI  `json:"regions"`
}

// ScanHandler executes region scan jobs against configured or per-job rules.
type ScanHandler struct {
	cfg config.ROIConfig
	log *zap.SugaredLogger
}

// NewScanHandler builds a handler around the region detection configuration.
func NewScanHandler(cfg config.ROIConfig, log *zap.SugaredLogger) *ScanHandler {
	return &ScanHandler{cfg: cfg, log: log}
}

func (h *ScanHandler) Name() string { return HandlerName }

// Execute runs one scan job and marshals the detected regions into the job
// result. Scanning is CPU-bound and fast; cancellation is only observed
// before the scan starts.
func (h *ScanHandler) Execute(ctx context.Context, job *track.Job) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCancelled, err.Error())
	}

	var payload ScanPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return errors.Wrap(errors.ErrValidation, err.Error())
	}

	sequence := strings.TrimSpace(payload.Sequence)
	accession := ""
	if sequence == "" && payload.FastaPath != "" {
		data, err := os.ReadFile(payload.FastaPath)
		if err != nil {
			return errors.Wrapf(err, "read FASTA artifact %s", payload.FastaPath)
		}
		description, parsed, err := ncbi.ParseFASTA(string(data))
		if err != nil {
			return err
		}
		sequence = parsed
		accession = ncbi.AccessionFromDescription(description)
	}
	if sequence == "" {
		return errors.Wrap(errors.ErrValidation, "scan payload needs a sequence or a FASTA path")
	}

	rules, err := h.rulesFor(payload)
	if err != nil {
		return err
	}

	regions, err := Find(sequence, rules, h.optionsFor(payload))
	if err != nil {
		return err
	}
	h.log.Infow("Region scan complete",
		"job_id", job.ID, "sequence_length", len(sequence), "regions", len(regions))

	result, err := json.Marshal(ScanResult{
		Accession:      accession,
		SequenceLength: len(sequence),
		RuleCount:      len(rules),
		Regions:        regions,
	})
	if err != nil {
		return errors.Wrap(err, "marshal scan result")
	}
	job.Result = result
	if job.Source == "" {
		job.Source = accession
	}
	return nil
}

// rulesFor resolves the rule set: per-job path, configured path, then the
// built-in default rule.
func (h *ScanHandler) rulesFor(payload ScanPayload) ([]Rule, error) {
	path := payload.RulesPath
	if path == "" {
		path = h.cfg.RulesPath
	}
	if path == "" {
		return DefaultRules(), nil
	}
	return LoadRules(path)
}

func (h *ScanHandler) optionsFor(payload ScanPayload) Options {
	if payload.Options != nil {
		return *payload.Options
	}
	return Options{
		OverlapPolicy:       h.cfg.OverlapPolicy,
		ConfidenceThreshold: h.cfg.ConfidenceThreshold,
		ContextSize:         h.cfg.ContextSize,
	}
}
