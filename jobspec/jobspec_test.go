package jobspec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helical/genefold/errors"
	"github.com/helical/genefold/ncbi"
	"github.com/helical/genefold/roi"
)

func testRecord() *ncbi.SequenceRecord {
	return &ncbi.SequenceRecord{
		Accession: "NM_007294.4",
		Sequence:  strings.Repeat("A", 10) + "CACCTG" + strings.Repeat("T", 10),
	}
}

func maxProtein() Molecule {
	return Molecule{Role: RoleProtein, Name: "MAX", Sequence: "MADKRAHHNALERKRRDHIKDSF"}
}

func TestBuild(t *testing.T) {
	spec, err := Build(testRecord(),
		[]roi.ROI{{Start: 10, End: 16, Category: "enhancer", RuleID: "ebox"}},
		ComplexParams{Proteins: []Molecule{maxProtein()}, JobName: "max-ebox"})
	require.NoError(t, err)

	assert.Equal(t, "max-ebox", spec.JobName)
	assert.Equal(t, "CACCTG", spec.DNA)
	require.Len(t, spec.Molecules, 2)
	assert.Equal(t, RoleProtein, spec.Molecules[0].Role)
	assert.Equal(t, RoleDNA, spec.Molecules[1].Role)
	assert.Equal(t, "CACCTG", spec.Molecules[1].Sequence)
}

func TestBuildDNAIncludesContextPadding(t *testing.T) {
	record := testRecord()
	regions, err := roi.Find(record.Sequence, nil, roi.Options{ContextSize: 10})
	require.NoError(t, err)
	require.Len(t, regions, 1)

	spec, err := Build(record, regions,
		ComplexParams{Proteins: []Molecule{maxProtein()}})
	require.NoError(t, err)

	// The portal receives the padded window, not the bare 6-base motif.
	assert.Equal(t, record.Sequence, spec.DNA)
	assert.Len(t, spec.DNA, 26)
}

func TestBuildWindowSpansAllRegions(t *testing.T) {
	spec, err := Build(testRecord(),
		[]roi.ROI{{Start: 12, End: 16}, {Start: 2, End: 6}},
		ComplexParams{Proteins: []Molecule{maxProtein()}})
	require.NoError(t, err)
	assert.Equal(t, testRecord().Sequence[2:16], spec.DNA)
}

func TestBuildDefaultsJobNameToAccession(t *testing.T) {
	spec, err := Build(testRecord(),
		[]roi.ROI{{Start: 10, End: 16}},
		ComplexParams{Proteins: []Molecule{maxProtein()}})
	require.NoError(t, err)
	assert.Equal(t, "NM_007294.4", spec.JobName)
}

func TestBuildValidation(t *testing.T) {
	record := testRecord()
	region := []roi.ROI{{Start: 10, End: 16}}
	protein := []Molecule{maxProtein()}

	cases := []struct {
		name string
		call func() (*Spec, error)
	}{
		{"nil record", func() (*Spec, error) {
			return Build(nil, region, ComplexParams{Proteins: protein})
		}},
		{"no regions selected", func() (*Spec, error) {
			return Build(record, nil, ComplexParams{Proteins: protein})
		}},
		{"region outside record", func() (*Spec, error) {
			return Build(record, []roi.ROI{{Start: 10, End: 999}}, ComplexParams{Proteins: protein})
		}},
		{"no protein chain", func() (*Spec, error) {
			return Build(record, region, ComplexParams{})
		}},
		{"wrong molecule role", func() (*Spec, error) {
			return Build(record, region, ComplexParams{Proteins: []Molecule{{Role: RoleDNA, Name: "x", Sequence: "ACGT"}}})
		}},
		{"empty protein sequence", func() (*Spec, error) {
			return Build(record, region, ComplexParams{Proteins: []Molecule{{Role: RoleProtein, Name: "x"}}})
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.call()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))
		})
	}
}

func TestSpecAccessors(t *testing.T) {
	spec, err := Build(testRecord(),
		[]roi.ROI{{Start: 10, End: 16}},
		ComplexParams{Proteins: []Molecule{maxProtein()}})
	require.NoError(t, err)

	assert.Equal(t, "CACCTG", spec.DNASequence())
	assert.Equal(t, []string{maxProtein().Sequence}, spec.ProteinSequences())
}
