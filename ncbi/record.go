// Package ncbi implements the sequence fetcher against the NCBI E-utilities
// (esearch/esummary/efetch) endpoints.
package ncbi

import (
	"strings"
	"time"
)

// SequenceRecord is an immutable nucleotide record fetched from the sequence
// database. The sequence text never changes after fetch; downstream
// components only reference it.
type SequenceRecord struct {
	Accession   string    `json:"accession"`
	Description string    `json:"description"`
	Organism    string    `json:"organism,omitempty"`
	Gene        string    `json:"gene,omitempty"`
	Sequence    string    `json:"sequence"`
	Length      int       `json:"length"`
	Database    string    `json:"database"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// Candidate is one search hit summary. MANE Select and RefSeq flags follow
// the upstream conventions: MANE annotations appear in the summary title,
// RefSeq transcript accessions start with NM_ or XM_.
type Candidate struct {
	ID           string `json:"id"`
	Accession    string `json:"accession"`
	Title        string `json:"title"`
	Length       int    `json:"length"`
	IsMANESelect bool   `json:"is_mane_select"`
	IsRefSeq     bool   `json:"is_refseq"`
}

// PreferredCandidate picks the best candidate from a search result list:
// MANE Select first, then RefSeq transcripts, then the first hit.
// Returns nil for an empty list.
func PreferredCandidate(candidates []Candidate) *Candidate {
	for i := range candidates {
		if candidates[i].IsMANESelect {
			return &candidates[i]
		}
	}
	for i := range candidates {
		if candidates[i].IsRefSeq {
			return &candidates[i]
		}
	}
	if len(candidates) > 0 {
		return &candidates[0]
	}
	return nil
}

func isRefSeqAccession(accession string) bool {
	return strings.HasPrefix(accession, "NM_") || strings.HasPrefix(accession, "XM_")
}
