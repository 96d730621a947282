package roi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helical/genefold/errors"
)

func eboxRule() []Rule {
	return []Rule{{ID: "ebox", Category: "enhancer", Motif: "CACCTG", Priority: 1}}
}

func TestFindMotifAtKnownOffset(t *testing.T) {
	// CACCTG planted at offset 10.
	seq := "AAAAAAAAAA" + "CACCTG" + "AAAAAAAAAA"

	regions, err := Find(seq, eboxRule(), Options{})
	require.NoError(t, err)

	require.Len(t, regions, 1)
	assert.Equal(t, 10, regions[0].Start)
	assert.Equal(t, 16, regions[0].End)
	assert.Equal(t, "enhancer", regions[0].Category)
	assert.Equal(t, "ebox", regions[0].RuleID)
	assert.Equal(t, 1.0, regions[0].Confidence)

	// Without padding the context bounds collapse to the hit itself.
	assert.Equal(t, 10, regions[0].ContextStart)
	assert.Equal(t, 16, regions[0].ContextEnd)
}

func TestFindIsDeterministic(t *testing.T) {
	seq := "CACCTGAAACACCTGTTTCACCTG"
	rules := []Rule{
		{ID: "ebox", Category: "enhancer", Motif: "CACCTG", Priority: 1},
		{ID: "gc", Category: "promoter", Motif: "SSSS", Priority: 2},
	}

	first, err := Find(seq, rules, Options{OverlapPolicy: PolicyKeepAll})
	require.NoError(t, err)
	second, err := Find(seq, rules, Options{OverlapPolicy: PolicyKeepAll})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFindBoundsInvariant(t *testing.T) {
	seq := "CACCTG" + strings.Repeat("ACGT", 20) + "CACCTG"
	regions, err := Find(seq, eboxRule(), Options{OverlapPolicy: PolicyKeepAll})
	require.NoError(t, err)
	require.NotEmpty(t, regions)
	for _, r := range regions {
		assert.GreaterOrEqual(t, r.Start, 0)
		assert.Less(t, r.Start, r.End)
		assert.LessOrEqual(t, r.End, len(seq))
	}
}

func TestFindOrderingIsStable(t *testing.T) {
	// Two rules with motifs matching at the same offset; priority breaks the tie.
	seq := "AAACACCTGAAA"
	rules := []Rule{
		{ID: "b", Category: "zeta", Motif: "CACCTG", Priority: 2},
		{ID: "a", Category: "alpha", Motif: "CACCTG", Priority: 1},
	}

	regions, err := Find(seq, rules, Options{OverlapPolicy: PolicyKeepAll})
	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.Equal(t, "a", regions[0].RuleID)
	assert.Equal(t, "b", regions[1].RuleID)
}

func TestMergeOverlapsCollapsesSameCategory(t *testing.T) {
	// AAAA hits at 0..4, 1..5, 2..6 all merge into one [0,6) region.
	seq := "AAAAAACCCCCC"
	rules := []Rule{{ID: "polyA", Category: "repeat", Motif: "AAAA", Priority: 1}}

	merged, err := Find(seq, rules, Options{OverlapPolicy: PolicyMergeOverlaps})
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, 0, merged[0].Start)
	assert.Equal(t, 6, merged[0].End)

	kept, err := Find(seq, rules, Options{OverlapPolicy: PolicyKeepAll})
	require.NoError(t, err)
	assert.Len(t, kept, 3)
}

func TestMergeOverlapsNeverMixesCategories(t *testing.T) {
	seq := "AAAAAA"
	rules := []Rule{
		{ID: "r1", Category: "repeat", Motif: "AAAA", Priority: 1},
		{ID: "o1", Category: "other", Motif: "AAAAA", Priority: 2},
	}

	regions, err := Find(seq, rules, Options{OverlapPolicy: PolicyMergeOverlaps})
	require.NoError(t, err)

	seen := map[string]int{}
	for _, r := range regions {
		seen[r.Category]++
	}
	assert.Equal(t, 1, seen["repeat"])
	assert.Equal(t, 1, seen["other"])

	// No two same-category regions overlap after merging.
	for i := range regions {
		for j := i + 1; j < len(regions); j++ {
			if regions[i].Category == regions[j].Category {
				assert.False(t, regions[i].Start < regions[j].End && regions[j].Start < regions[i].End)
			}
		}
	}
}

func TestAmbiguityCodesLowerConfidence(t *testing.T) {
	seq := "AAACAGCTGAAA" // matches CANCTG via N wildcard
	rules := []Rule{{ID: "amb", Category: "enhancer", Motif: "CANCTG", Priority: 1}}

	regions, err := Find(seq, rules, Options{OverlapPolicy: PolicyKeepAll})
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Less(t, regions[0].Confidence, 1.0)

	// Threshold above the motif's confidence discards the hit.
	none, err := Find(seq, rules, Options{OverlapPolicy: PolicyKeepAll, ConfidenceThreshold: 0.95})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestContextWindowClampsAtEdges(t *testing.T) {
	seq := "CACCTGAAAA"
	regions, err := Find(seq, eboxRule(), Options{ContextSize: 10})
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, seq, regions[0].Context)
	assert.Equal(t, 0, regions[0].ContextStart)
	assert.Equal(t, len(seq), regions[0].ContextEnd)
}

func TestContextBoundsCoverFlanking(t *testing.T) {
	seq := "AAAAAAAAAA" + "CACCTG" + "TTTTTTTTTT"
	regions, err := Find(seq, eboxRule(), Options{ContextSize: 5})
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, 5, regions[0].ContextStart)
	assert.Equal(t, 21, regions[0].ContextEnd)
	assert.Equal(t, seq[5:21], regions[0].Context)
}

func TestFindRejectsInvalidAlphabet(t *testing.T) {
	_, err := Find("ACGT-77-ACGT", eboxRule(), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidSequence))

	_, err = Find("", eboxRule(), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidSequence))
}

func TestValidateRegionBounds(t *testing.T) {
	require.NoError(t, Validate([]ROI{{Start: 0, End: 6}}, 10))
	assert.Error(t, Validate([]ROI{{Start: 4, End: 4}}, 10))
	assert.Error(t, Validate([]ROI{{Start: -1, End: 4}}, 10))
	assert.Error(t, Validate([]ROI{{Start: 2, End: 11}}, 10))
}
