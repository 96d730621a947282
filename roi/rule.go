package roi

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/helical/genefold/errors"
)

// Rule defines one pattern predicate scanned over a sliding window. Motif is
// an IUPAC nucleotide pattern; lower Priority values win ordering tie-breaks.
type Rule struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Motif    string `json:"motif"`
	Priority int    `json:"priority"`
}

//go:embed rules_schema.json
var rulesSchema string

// DefaultRules returns the built-in rule set used when no rule file is
// configured: the canonical E-box enhancer motif.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "ebox", Category: "enhancer", Motif: "CACCTG", Priority: 1},
	}
}

// LoadRules reads and validates a JSON rule file. The file must satisfy the
// embedded schema; rules with malformed motifs are rejected here rather than
// at scan time.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read rule file %s", path)
	}
	return ParseRules(data)
}

// ParseRules validates raw JSON rule data against the rule schema and
// decodes it.
func ParseRules(data []byte) ([]Rule, error) {
	schema, err := jsonschema.CompileString("rules_schema.json", rulesSchema)
	if err != nil {
		return nil, errors.Wrap(err, "compile rule schema")
	}

	var doc any
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrParse, err.Error())
	}
	if err := schema.Validate(doc); err != nil {
		return nil, errors.Wrap(errors.ErrValidation, err.Error())
	}

	var file struct {
		Rules []Rule `json:"rules"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(errors.ErrParse, err.Error())
	}

	for i := range file.Rules {
		file.Rules[i].Motif = strings.ToUpper(file.Rules[i].Motif)
		for j := 0; j < len(file.Rules[i].Motif); j++ {
			if iupacMask[file.Rules[i].Motif[j]] == 0 {
				return nil, errors.Wrapf(errors.ErrValidation,
					"rule %q: motif character %q is not a nucleotide code",
					file.Rules[i].ID, file.Rules[i].Motif[j])
			}
		}
	}
	return file.Rules, nil
}
