package ncbi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/helical/genefold/config"
	"github.com/helical/genefold/errors"
	"github.com/helical/genefold/internal/httpclient"
)

const nucleotideDB = "nucleotide"

// Client queries the NCBI E-utilities. All requests pass through a shared
// rate limiter (NCBI allows 3 req/s anonymously, 10 req/s with an API key)
// and transport failures are retried with exponential backoff.
type Client struct {
	http       *http.Client
	baseURL    string
	email      string
	apiKey     string
	retMax     int
	maxRetries int
	limiter    *rate.Limiter
	log        *zap.SugaredLogger
}

// NewClient creates a sequence fetcher client from configuration.
func NewClient(cfg config.NCBIConfig, log *zap.SugaredLogger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 3
	}
	return &Client{
		http:       httpclient.New(timeout),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		email:      cfg.Email,
		apiKey:     cfg.APIKey,
		retMax:     cfg.RetMax,
		maxRetries: cfg.MaxRetries,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		log:        log,
	}
}

// Search queries the nucleotide database for gene sequences matching the
// gene name and organism filter. An empty result list is not an error.
func (c *Client) Search(ctx context.Context, gene, organism string) ([]Candidate, error) {
	term := strings.TrimSpace(organism + " " + gene)
	if term == "" {
		return nil, errors.Wrap(errors.ErrValidation, "search term is empty")
	}

	params := url.Values{}
	params.Set("db", nucleotideDB)
	params.Set("term", term)
	params.Set("retmax", fmt.Sprintf("%d", c.retMax))
	params.Set("retmode", "json")

	body, err := c.get(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, errors.Wrapf(err, "esearch %q", term)
	}

	var search struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.Unmarshal(body, &search); err != nil {
		return nil, errors.Wrap(errors.ErrParse, err.Error())
	}

	ids := search.ESearchResult.IDList
	if len(ids) == 0 {
		return nil, nil
	}

	return c.summaries(ctx, ids)
}

// summaries resolves search ids into candidate record summaries.
func (c *Client) summaries(ctx context.Context, ids []string) ([]Candidate, error) {
	params := url.Values{}
	params.Set("db", nucleotideDB)
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "json")

	body, err := c.get(ctx, "esummary.fcgi", params)
	if err != nil {
		return nil, errors.Wrap(err, "esummary")
	}

	// esummary keys each document summary by its uid, alongside a "uids"
	// array that preserves result order.
	var envelope struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Wrap(errors.ErrParse, err.Error())
	}

	var uids []string
	if raw, ok := envelope.Result["uids"]; ok {
		if err := json.Unmarshal(raw, &uids); err != nil {
			return nil, errors.Wrap(errors.ErrParse, err.Error())
		}
	}

	candidates := make([]Candidate, 0, len(uids))
	for _, uid := range uids {
		raw, ok := envelope.Result[uid]
		if !ok {
			continue
		}
		var doc struct {
			UID     string `json:"uid"`
			Caption string `json:"caption"`
			Title   string `json:"title"`
			SLen    int    `json:"slen"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, errors.Wrap(errors.ErrParse, err.Error())
		}
		candidates = append(candidates, Candidate{
			ID:           uid,
			Accession:    doc.Caption,
			Title:        doc.Title,
			Length:       doc.SLen,
			IsMANESelect: strings.Contains(doc.Title, "MANE Select"),
			IsRefSeq:     isRefSeqAccession(doc.Caption),
		})
	}
	return candidates, nil
}

// Fetch downloads the record for a candidate id and parses it into a
// SequenceRecord. maxLen > 0 limits the fetch to the first maxLen bases
// (efetch seq_start/seq_stop window). Fetch is idempotent: re-fetching the
// same id against an unchanged upstream record yields a byte-identical
// sequence.
func (c *Client) Fetch(ctx context.Context, id string, maxLen int) (*SequenceRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.Wrap(errors.ErrValidation, "record id is empty")
	}

	params := url.Values{}
	params.Set("db", nucleotideDB)
	params.Set("id", id)
	params.Set("rettype", "fasta")
	params.Set("retmode", "text")
	if maxLen > 0 {
		params.Set("seq_start", "1")
		params.Set("seq_stop", fmt.Sprintf("%d", maxLen))
	}

	body, err := c.get(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, errors.Wrapf(err, "efetch %s", id)
	}

	description, sequence, err := ParseFASTA(string(body))
	if err != nil {
		return nil, errors.Wrapf(err, "efetch %s", id)
	}

	return &SequenceRecord{
		Accession:   AccessionFromDescription(description),
		Description: description,
		Sequence:    sequence,
		Length:      len(sequence),
		Database:    nucleotideDB,
		RetrievedAt: time.Now().UTC(),
	}, nil
}

// get issues a rate-limited GET with bounded retries on transport failures
// and 5xx responses. 404/400 map to ErrNotFound (the id no longer resolves).
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.email != "" {
		params.Set("email", c.email)
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	reqURL := c.baseURL + "/" + endpoint + "?" + params.Encode()

	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if c.log != nil {
				c.log.Debugw("Retrying NCBI request",
					"endpoint", endpoint,
					"attempt", attempt,
					"backoff", backoff,
				)
			}
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(errors.ErrNetwork, ctx.Err().Error())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(errors.ErrNetwork, err.Error())
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, errors.Wrap(err, "build request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = errors.Wrap(errors.ErrNetwork, err.Error())
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				lastErr = errors.Wrap(errors.ErrNetwork, readErr.Error())
				continue
			}
			return body, nil
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
			return nil, errors.Wrapf(errors.ErrNotFound, "%s returned %d", endpoint, resp.StatusCode)
		case resp.StatusCode >= 500:
			lastErr = errors.Wrapf(errors.ErrNetwork, "%s returned %d", endpoint, resp.StatusCode)
			continue
		default:
			return nil, errors.Wrapf(errors.ErrNetwork, "%s returned unexpected status %d", endpoint, resp.StatusCode)
		}
	}
	return nil, lastErr
}
