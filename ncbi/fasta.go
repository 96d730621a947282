package ncbi

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/helical/genefold/errors"
)

// fastaLineWidth is the sequence wrap column used when writing records.
const fastaLineWidth = 70

// ParseFASTA parses a single-record FASTA document into its description line
// (without the leading '>') and the concatenated, uppercased sequence.
// Returns ErrParse for anything that is not a well-formed record.
func ParseFASTA(data string) (description string, sequence string, err error) {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return "", "", errors.Wrap(errors.ErrParse, "empty document")
	}
	if !strings.HasPrefix(trimmed, ">") {
		return "", "", errors.Wrap(errors.ErrParse, "missing FASTA header")
	}

	lines := strings.Split(trimmed, "\n")
	description = strings.TrimSpace(strings.TrimPrefix(lines[0], ">"))

	var b strings.Builder
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			// Additional records indicate the fetch returned more than the
			// requested entry; the record boundary is where we stop.
			break
		}
		b.WriteString(line)
	}

	sequence = strings.ToUpper(b.String())
	if sequence == "" {
		return "", "", errors.Wrap(errors.ErrParse, "record has no sequence data")
	}
	return description, sequence, nil
}

// WriteFASTA writes a record into dir as <accession>.fasta and returns the
// file path. The directory is created if missing.
func WriteFASTA(dir string, record *SequenceRecord) (string, error) {
	if record == nil || record.Accession == "" || record.Sequence == "" {
		return "", errors.Wrap(errors.ErrValidation, "record has no accession or sequence")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create output directory %s", dir)
	}

	header := record.Description
	if header == "" {
		header = record.Accession
	}

	var b strings.Builder
	b.WriteString(">")
	b.WriteString(header)
	b.WriteString("\n")
	for start := 0; start < len(record.Sequence); start += fastaLineWidth {
		end := start + fastaLineWidth
		if end > len(record.Sequence) {
			end = len(record.Sequence)
		}
		b.WriteString(record.Sequence[start:end])
		b.WriteString("\n")
	}

	path := filepath.Join(dir, record.Accession+".fasta")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, nil
}

// AccessionFromDescription extracts the accession token (first whitespace
// separated word) from a FASTA description line.
func AccessionFromDescription(description string) string {
	fields := strings.Fields(description)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
