// Package jobspec builds prediction portal submission payloads out of a
// fetched sequence and its selected regions of interest.
package jobspec

import (
	"strings"

	"github.com/helical/genefold/errors"
	"github.com/helical/genefold/ncbi"
	"github.com/helical/genefold/roi"
)

// Molecule roles in a complex definition.
const (
	RoleProtein = "protein"
	RoleDNA     = "dna"
)

// Molecule is one chain of the predicted complex.
type Molecule struct {
	Role     string `json:"role"`
	Name     string `json:"name"`
	Sequence string `json:"sequence"`
}

// ComplexParams declares the molecules forming the complex. A prediction
// needs at least one protein chain; the DNA chain is derived from the
// sequence record's selected regions.
type ComplexParams struct {
	Proteins []Molecule `json:"proteins"`
	JobName  string     `json:"job_name"`
}

// Spec is an immutable submission payload: the DNA window covering the
// selected regions, the regions themselves, and the complex definition.
// Built once, consumed by exactly one job.
type Spec struct {
	JobName   string     `json:"job_name"`
	Accession string     `json:"accession"`
	DNA       string     `json:"dna"`
	Regions   []roi.ROI  `json:"regions"`
	Molecules []Molecule `json:"molecules"`
}

// Build validates inputs and assembles a Spec. The DNA window spans the
// selected regions including their flanking context, so the portal receives
// the biologically relevant stretch rather than the whole record or the bare
// motif hits.
func Build(record *ncbi.SequenceRecord, selected []roi.ROI, params ComplexParams) (*Spec, error) {
	if record == nil || record.Sequence == "" {
		return nil, errors.Wrap(errors.ErrValidation, "sequence record is empty")
	}
	if len(selected) == 0 {
		return nil, errors.Wrap(errors.ErrValidation, "no regions selected")
	}
	if err := roi.Validate(selected, len(record.Sequence)); err != nil {
		return nil, errors.WithMessage(err, "selected regions do not belong to the record")
	}
	if len(params.Proteins) == 0 {
		return nil, errors.Wrap(errors.ErrValidation, "complex definition needs at least one protein chain")
	}
	for _, m := range params.Proteins {
		if m.Role != RoleProtein {
			return nil, errors.Wrapf(errors.ErrValidation, "molecule %q has role %q, want %q", m.Name, m.Role, RoleProtein)
		}
		if strings.TrimSpace(m.Sequence) == "" {
			return nil, errors.Wrapf(errors.ErrValidation, "molecule %q has an empty sequence", m.Name)
		}
	}

	lo, hi := window(selected, len(record.Sequence))
	name := strings.TrimSpace(params.JobName)
	if name == "" {
		name = record.Accession
	}

	molecules := make([]Molecule, 0, len(params.Proteins)+1)
	molecules = append(molecules, params.Proteins...)
	molecules = append(molecules, Molecule{
		Role:     RoleDNA,
		Name:     record.Accession,
		Sequence: record.Sequence[lo:hi],
	})

	return &Spec{
		JobName:   name,
		Accession: record.Accession,
		DNA:       record.Sequence[lo:hi],
		Regions:   append([]roi.ROI(nil), selected...),
		Molecules: molecules,
	}, nil
}

// window is the union of the regions' context-padded bounds, clamped to the
// sequence. Regions built without padding fall back to their bare offsets.
func window(regions []roi.ROI, seqLen int) (int, int) {
	lo, hi := seqLen, 0
	for _, r := range regions {
		rlo, rhi := r.Start, r.End
		if r.ContextStart >= 0 && r.ContextEnd > r.ContextStart &&
			r.ContextStart <= r.Start && r.ContextEnd >= r.End {
			rlo, rhi = r.ContextStart, r.ContextEnd
		}
		if rlo < lo {
			lo = rlo
		}
		if rhi > hi {
			hi = rhi
		}
	}
	if lo < 0 {
		lo = 0
	}
	if hi > seqLen {
		hi = seqLen
	}
	return lo, hi
}

// DNASequence returns the DNA chain of the complex.
func (s *Spec) DNASequence() string {
	return s.DNA
}

// ProteinSequences returns the protein chains in declaration order.
func (s *Spec) ProteinSequences() []string {
	var out []string
	for _, m := range s.Molecules {
		if m.Role == RoleProtein {
			out = append(out, m.Sequence)
		}
	}
	return out
}
