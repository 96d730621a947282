package roi

import (
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/helical/genefold/errors"
)

// Protein is one entry from a protein library workbook.
type Protein struct {
	Name     string
	Sequence string
}

// minProteinLength filters out fragments and header noise rows.
const minProteinLength = 10

// LoadProteinLibrary reads a protein library from an Excel workbook. The
// first sheet is scanned row by row: column A is the protein name, column B
// the amino-acid sequence. Sequence cells are cleaned to the standard
// twenty-letter alphabet (plus X for unknown residues); rows whose cleaned
// sequence is shorter than ten residues are skipped.
func LoadProteinLibrary(path string) ([]Protein, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open protein library %s", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.Wrap(errors.ErrParse, "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(errors.ErrParse, err.Error())
	}

	var proteins []Protein
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		name := strings.TrimSpace(row[0])
		seq := cleanAminoAcids(row[1])
		if name == "" || len(seq) < minProteinLength {
			continue
		}
		proteins = append(proteins, Protein{Name: name, Sequence: seq})
	}
	if len(proteins) == 0 {
		return nil, errors.Wrap(errors.ErrParse, "no usable protein rows found")
	}
	return proteins, nil
}

// cleanAminoAcids uppercases and strips everything outside the amino-acid
// alphabet (whitespace, digits, punctuation from copy-pasted sources).
func cleanAminoAcids(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToUpper(raw) {
		if strings.ContainsRune("ACDEFGHIKLMNPQRSTVWYX", r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
