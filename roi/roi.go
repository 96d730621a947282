package roi

import (
	"math/bits"

	"github.com/helical/genefold/errors"
)

// ROI is an annotated sub-interval of a nucleotide sequence flagged by a
// pattern rule. Offsets are 0-based and half-open: 0 <= Start < End <= len(seq).
// ContextStart/ContextEnd bound the hit plus its configured flanking padding,
// clamped to the sequence; they equal Start/End when no padding was requested.
type ROI struct {
	Start        int     `json:"start"`
	End          int     `json:"end"`
	ContextStart int     `json:"context_start"`
	ContextEnd   int     `json:"context_end"`
	Category     string  `json:"category"`
	Confidence   float64 `json:"confidence"`
	RuleID       string  `json:"rule_id"`
	Context      string  `json:"context,omitempty"` // motif plus flanking bases
}

// iupacMask maps nucleotide codes to base bitmasks: bit0=A bit1=C bit2=G bit3=T.
// Ambiguity codes carry the union of the bases they stand for; U mirrors T.
var iupacMask [256]byte

func init() {
	set := func(c byte, mask byte) {
		iupacMask[c] = mask
		iupacMask[c|0x20] = mask // lowercase mirrors uppercase
	}
	set('A', 1)
	set('C', 2)
	set('G', 4)
	set('T', 8)
	set('U', 8)
	set('R', 1|4)
	set('Y', 2|8)
	set('S', 2|4)
	set('W', 1|8)
	set('K', 4|8)
	set('M', 1|2)
	set('B', 2|4|8)
	set('D', 1|4|8)
	set('H', 1|2|8)
	set('V', 1|2|4)
	set('N', 1|2|4|8)
}

// baseMatch reports whether sequence base g satisfies motif code p. A
// non-ACGT sequence base is a hard mismatch so N-blocks never produce hits.
func baseMatch(g, p byte) bool {
	if g != 'A' && g != 'C' && g != 'G' && g != 'T' {
		return false
	}
	return iupacMask[p]&iupacMask[g] != 0
}

// positionWeight is the confidence contribution of one motif position: 1.0
// for an exact base, 1/k for an ambiguity code standing for k bases.
func positionWeight(p byte) float64 {
	n := bits.OnesCount8(iupacMask[p])
	if n == 0 {
		return 0
	}
	return 1.0 / float64(n)
}

// ValidateSequence rejects sequences containing characters outside the
// nucleotide alphabet (canonical bases plus IUPAC ambiguity codes).
func ValidateSequence(seq string) error {
	if len(seq) == 0 {
		return errors.Wrap(errors.ErrInvalidSequence, "sequence is empty")
	}
	for i := 0; i < len(seq); i++ {
		if iupacMask[seq[i]] == 0 {
			return errors.Wrapf(errors.ErrInvalidSequence,
				"character %q at offset %d is not a nucleotide code", seq[i], i)
		}
	}
	return nil
}
