package roi

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helical/genefold/config"
	"github.com/helical/genefold/errors"
	"github.com/helical/genefold/track"
)

func scanJob(t *testing.T, payload ScanPayload) *track.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	job, err := track.NewJob(HandlerName, "test scan", "", raw)
	require.NoError(t, err)
	return job
}

func newScanHandler(cfg config.ROIConfig) *ScanHandler {
	return NewScanHandler(cfg, zap.NewNop().Sugar())
}

func TestScanHandlerInlineSequence(t *testing.T) {
	h := newScanHandler(config.ROIConfig{ContextSize: 2})
	job := scanJob(t, ScanPayload{Sequence: "AAAAAAAAAACACCTGAAAA"})

	require.NoError(t, h.Execute(context.Background(), job))

	var result ScanResult
	require.NoError(t, json.Unmarshal(job.Result, &result))
	require.Len(t, result.Regions, 1)
	assert.Equal(t, 10, result.Regions[0].Start)
	assert.Equal(t, 16, result.Regions[0].End)
	assert.Equal(t, "enhancer", result.Regions[0].Category)
	assert.Equal(t, 20, result.SequenceLength)
	assert.Equal(t, 1, result.RuleCount)
}

func TestScanHandlerReadsFastaArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "NM_000001.fasta")
	fasta := ">NM_000001.1 test record\nAAAAAAAAAA\nCACCTGAAAA\n"
	require.NoError(t, os.WriteFile(path, []byte(fasta), 0o644))

	h := newScanHandler(config.ROIConfig{})
	job := scanJob(t, ScanPayload{FastaPath: path})

	require.NoError(t, h.Execute(context.Background(), job))

	var result ScanResult
	require.NoError(t, json.Unmarshal(job.Result, &result))
	require.Len(t, result.Regions, 1)
	assert.Equal(t, 10, result.Regions[0].Start)
	assert.Equal(t, "NM_000001.1", result.Accession)
	assert.Equal(t, "NM_000001.1", job.Source)
}

func TestScanHandlerPerJobRulesOverrideConfig(t *testing.T) {
	rulesPath := filepath.Join(t.TempDir(), "rules.json")
	rules := `{"rules":[{"id":"tata","category":"promoter","motif":"TATAAA","priority":1}]}`
	require.NoError(t, os.WriteFile(rulesPath, []byte(rules), 0o644))

	h := newScanHandler(config.ROIConfig{})
	job := scanJob(t, ScanPayload{Sequence: "CCCCTATAAACCCC", RulesPath: rulesPath})

	require.NoError(t, h.Execute(context.Background(), job))

	var result ScanResult
	require.NoError(t, json.Unmarshal(job.Result, &result))
	require.Len(t, result.Regions, 1)
	assert.Equal(t, "promoter", result.Regions[0].Category)
	assert.Equal(t, "tata", result.Regions[0].RuleID)
}

func TestScanHandlerPayloadOptionsWin(t *testing.T) {
	rulesPath := filepath.Join(t.TempDir(), "rules.json")
	rules := `{"rules":[{"id":"polya","category":"repeat","motif":"AAAA","priority":1}]}`
	require.NoError(t, os.WriteFile(rulesPath, []byte(rules), 0o644))

	h := newScanHandler(config.ROIConfig{OverlapPolicy: PolicyMergeOverlaps})
	job := scanJob(t, ScanPayload{
		Sequence:  "AAAAAA",
		RulesPath: rulesPath,
		Options:   &Options{OverlapPolicy: PolicyKeepAll},
	})

	require.NoError(t, h.Execute(context.Background(), job))

	var result ScanResult
	require.NoError(t, json.Unmarshal(job.Result, &result))
	assert.Len(t, result.Regions, 3, "keep-all from the payload must win over the configured merge")
}

func TestScanHandlerErrors(t *testing.T) {
	h := newScanHandler(config.ROIConfig{})

	t.Run("no sequence source", func(t *testing.T) {
		err := h.Execute(context.Background(), scanJob(t, ScanPayload{}))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("malformed payload", func(t *testing.T) {
		job := scanJob(t, ScanPayload{Sequence: "ACGT"})
		job.Payload = []byte("{not json")
		err := h.Execute(context.Background(), job)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("invalid sequence alphabet", func(t *testing.T) {
		err := h.Execute(context.Background(), scanJob(t, ScanPayload{Sequence: "ACGT123"}))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidSequence))
	})

	t.Run("missing fasta artifact", func(t *testing.T) {
		err := h.Execute(context.Background(), scanJob(t, ScanPayload{FastaPath: "/nonexistent.fasta"}))
		require.Error(t, err)
	})

	t.Run("cancelled before scan", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := h.Execute(ctx, scanJob(t, ScanPayload{Sequence: "ACGT"}))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrCancelled))
	})
}
