package roi

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeLibrary(t *testing.T, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	for i, row := range rows {
		for j, cell := range row {
			name, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", name, cell))
		}
	}
	path := filepath.Join(t.TempDir(), "library.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoadProteinLibrary(t *testing.T) {
	path := writeLibrary(t, [][]string{
		{"Name", "Sequence"}, // header row is skipped by the length filter
		{"MAX", "mad vlrqn seliq"},
		{"short", "MKV"},
		{"TP53", "MEEPQSDPSVEPPLSQETFSDLWK"},
	})

	proteins, err := LoadProteinLibrary(path)
	require.NoError(t, err)
	require.Len(t, proteins, 2)

	assert.Equal(t, "MAX", proteins[0].Name)
	assert.Equal(t, "MADVLRQNSELIQ", proteins[0].Sequence) // cleaned and uppercased
	assert.Equal(t, "TP53", proteins[1].Name)
}

func TestLoadProteinLibraryNoUsableRows(t *testing.T) {
	path := writeLibrary(t, [][]string{{"Name", "Sequence"}, {"x", "MK"}})
	_, err := LoadProteinLibrary(path)
	assert.Error(t, err)
}

func TestCleanAminoAcids(t *testing.T) {
	assert.Equal(t, "MKVX", cleanAminoAcids(" m k-v\n1x "))
	assert.Equal(t, "", cleanAminoAcids("123 456"))
}
