package ncbi

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/helical/genefold/errors"
	"github.com/helical/genefold/track"
)

// HandlerName identifies the sequence fetch job handler.
const HandlerName = "ncbi.fetch"

// FetchPayload is the job payload for a sequence fetch. Either ID or Gene
// must be set; an explicit ID skips the search step.
type FetchPayload struct {
	Gene     string `json:"gene,omitempty"`
	Organism string `json:"organism,omitempty"`
	ID       string `json:"id,omitempty"`      // database uid or accession
	MaxLen   int    `json:"max_len,omitempty"` // fetch window cap, 0 = whole record
	OutDir   string `json:"out_dir,omitempty"` // write a FASTA artifact here when set
}

// FetchHandler executes sequence fetch jobs: search (unless an id is given),
// pick the preferred candidate, fetch, and record the result on the job.
type FetchHandler struct {
	client *Client
	log    *zap.SugaredLogger
}

// NewFetchHandler wires the handler to a sequence database client.
func NewFetchHandler(client *Client, log *zap.SugaredLogger) *FetchHandler {
	return &FetchHandler{client: client, log: log}
}

func (h *FetchHandler) Name() string { return HandlerName }

// Execute runs one fetch job. The fetched record is marshalled into the job
// result; when OutDir is set the record is also written as a FASTA artifact
// and the path recorded.
func (h *FetchHandler) Execute(ctx context.Context, job *track.Job) error {
	var payload FetchPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return errors.Wrap(errors.ErrValidation, err.Error())
	}

	id := strings.TrimSpace(payload.ID)
	if id == "" {
		gene := strings.TrimSpace(payload.Gene)
		if gene == "" {
			return errors.Wrap(errors.ErrValidation, "fetch payload needs a gene or an id")
		}
		candidates, err := h.client.Search(ctx, gene, payload.Organism)
		if err != nil {
			return err
		}
		picked := PreferredCandidate(candidates)
		if picked == nil {
			return errors.Wrapf(errors.ErrNotFound, "no records match gene %q", gene)
		}
		h.log.Infow("Resolved gene to record",
			"gene", gene, "accession", picked.Accession, "mane_select", picked.IsMANESelect)
		id = picked.ID
	}

	record, err := h.client.Fetch(ctx, id, payload.MaxLen)
	if err != nil {
		return err
	}

	result, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshal fetched record")
	}
	job.Result = result
	if job.Source == "" {
		job.Source = record.Accession
	}

	if payload.OutDir != "" {
		path, err := WriteFASTA(payload.OutDir, record)
		if err != nil {
			return err
		}
		job.ResultPath = path
	}
	return nil
}
