package roi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helical/genefold/errors"
)

func TestParseRules(t *testing.T) {
	rules, err := ParseRules([]byte(`{
		"rules": [
			{"id": "ebox", "category": "enhancer", "motif": "cacctg", "priority": 1},
			{"id": "tata", "category": "promoter", "motif": "TATAWAW", "priority": 2}
		]
	}`))
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "CACCTG", rules[0].Motif) // motifs are normalized to uppercase
	assert.Equal(t, "TATAWAW", rules[1].Motif)
}

func TestParseRulesRejectsSchemaViolations(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty rule list", `{"rules": []}`},
		{"missing motif", `{"rules": [{"id": "x", "category": "y"}]}`},
		{"non-nucleotide motif", `{"rules": [{"id": "x", "category": "y", "motif": "QQQQ"}]}`},
		{"unknown field", `{"rules": [{"id": "x", "category": "y", "motif": "ACGT", "window": 5}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tc.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))
		})
	}
}

func TestParseRulesRejectsMalformedJSON(t *testing.T) {
	_, err := ParseRules([]byte(`{"rules": [`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrParse))
}

func TestLoadRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"rules": [{"id": "ebox", "category": "enhancer", "motif": "CACCTG", "priority": 1}]}`,
	), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDefaultRulesAreValid(t *testing.T) {
	rules := DefaultRules()
	require.NotEmpty(t, rules)
	for _, r := range rules {
		for i := 0; i < len(r.Motif); i++ {
			assert.NotZero(t, iupacMask[r.Motif[i]])
		}
	}
}
