package roi

import (
	"sort"
	"strings"

	"github.com/helical/genefold/errors"
)

// Overlap policies.
const (
	PolicyMergeOverlaps = "merge-overlaps"
	PolicyKeepAll       = "keep-all"
)

// Options steers a scan. Zero values fall back to merge-overlaps with no
// confidence cutoff and no context capture.
type Options struct {
	OverlapPolicy       string
	ConfidenceThreshold float64
	ContextSize         int // flanking bases captured either side of a hit
}

// Find scans a sequence against a rule set and returns the matching regions
// in stable order: start offset ascending, then rule priority, then category.
// The scan is pure and deterministic; identical inputs yield identical output.
func Find(sequence string, rules []Rule, opts Options) ([]ROI, error) {
	if err := ValidateSequence(sequence); err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	if opts.OverlapPolicy == "" {
		opts.OverlapPolicy = PolicyMergeOverlaps
	}

	seq := strings.ToUpper(sequence)

	var hits []ROI
	for _, rule := range rules {
		motif := strings.ToUpper(rule.Motif)
		if len(motif) == 0 || len(motif) > len(seq) {
			continue
		}
		confidence := motifConfidence(motif)
		if confidence < opts.ConfidenceThreshold {
			continue
		}
		for i := 0; i+len(motif) <= len(seq); i++ {
			if !windowMatches(seq[i:i+len(motif)], motif) {
				continue
			}
			lo, hi := contextBounds(len(seq), i, i+len(motif), opts.ContextSize)
			hits = append(hits, ROI{
				Start:        i,
				End:          i + len(motif),
				ContextStart: lo,
				ContextEnd:   hi,
				Category:     rule.Category,
				Confidence:   confidence,
				RuleID:       rule.ID,
				Context:      contextWindow(seq, i, i+len(motif), opts.ContextSize),
			})
		}
	}

	sortROIs(hits, rules)

	if opts.OverlapPolicy == PolicyMergeOverlaps {
		hits = mergeOverlaps(hits, seq, opts.ContextSize)
		sortROIs(hits, rules)
	}
	return hits, nil
}

func windowMatches(window, motif string) bool {
	for i := 0; i < len(motif); i++ {
		if !baseMatch(window[i], motif[i]) {
			return false
		}
	}
	return true
}

// motifConfidence is the mean per-position weight of a motif: 1.0 for an
// exact pattern, lower as ambiguity codes widen it.
func motifConfidence(motif string) float64 {
	if len(motif) == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < len(motif); i++ {
		sum += positionWeight(motif[i])
	}
	return sum / float64(len(motif))
}

// contextBounds clamps the padded window [start-size, end+size) to the
// sequence. With no padding the bounds collapse to the hit itself.
func contextBounds(seqLen, start, end, size int) (int, int) {
	if size <= 0 {
		return start, end
	}
	lo := start - size
	if lo < 0 {
		lo = 0
	}
	hi := end + size
	if hi > seqLen {
		hi = seqLen
	}
	return lo, hi
}

func contextWindow(seq string, start, end, size int) string {
	if size <= 0 {
		return ""
	}
	lo, hi := contextBounds(len(seq), start, end, size)
	return seq[lo:hi]
}

func sortROIs(hits []ROI, rules []Rule) {
	priority := make(map[string]int, len(rules))
	for _, r := range rules {
		priority[r.ID] = r.Priority
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Start != hits[j].Start {
			return hits[i].Start < hits[j].Start
		}
		if priority[hits[i].RuleID] != priority[hits[j].RuleID] {
			return priority[hits[i].RuleID] < priority[hits[j].RuleID]
		}
		return hits[i].Category < hits[j].Category
	})
}

// mergeOverlaps collapses overlapping or adjacent hits of the same category
// into one region spanning their union. The merged region keeps the first
// hit's rule id and the highest confidence among its members. Regions of
// different categories never merge, even when interleaved.
func mergeOverlaps(hits []ROI, seq string, contextSize int) []ROI {
	if len(hits) < 2 {
		return hits
	}
	byCategory := make(map[string][]ROI)
	var categories []string
	for _, hit := range hits {
		if _, seen := byCategory[hit.Category]; !seen {
			categories = append(categories, hit.Category)
		}
		byCategory[hit.Category] = append(byCategory[hit.Category], hit)
	}

	merged := make([]ROI, 0, len(hits))
	for _, cat := range categories {
		group := byCategory[cat] // already start-ordered
		merged = append(merged, group[0])
		for _, hit := range group[1:] {
			last := &merged[len(merged)-1]
			if hit.Start > last.End {
				merged = append(merged, hit)
				continue
			}
			if hit.End > last.End {
				last.End = hit.End
				last.ContextStart, last.ContextEnd = contextBounds(len(seq), last.Start, last.End, contextSize)
				last.Context = contextWindow(seq, last.Start, last.End, contextSize)
			}
			if hit.Confidence > last.Confidence {
				last.Confidence = hit.Confidence
			}
		}
	}
	return merged
}

// Validate checks that every region lies within the sequence bounds. Used by
// downstream consumers before trusting externally supplied regions.
func Validate(regions []ROI, seqLen int) error {
	for _, r := range regions {
		if r.Start < 0 || r.Start >= r.End || r.End > seqLen {
			return errors.Wrapf(errors.ErrValidation,
				"region [%d,%d) out of bounds for sequence of length %d", r.Start, r.End, seqLen)
		}
	}
	return nil
}
