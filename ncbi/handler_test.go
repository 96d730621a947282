package ncbi

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helical/genefold/errors"
	"github.com/helical/genefold/track"
)

func fetchJob(t *testing.T, payload FetchPayload) *track.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	job, err := track.NewJob(HandlerName, "test fetch", payload.Gene, raw)
	require.NoError(t, err)
	return job
}

func TestFetchHandlerResolvesGene(t *testing.T) {
	h := NewFetchHandler(newTestClient(t, eutilsHandler(t)), zap.NewNop().Sugar())
	job := fetchJob(t, FetchPayload{Gene: "BRCA1", Organism: "Homo sapiens"})

	require.NoError(t, h.Execute(context.Background(), job))

	var record SequenceRecord
	require.NoError(t, json.Unmarshal(job.Result, &record))
	assert.Equal(t, "NM_007294.4", record.Accession) // MANE Select wins
	assert.NotEmpty(t, record.Sequence)
	assert.Equal(t, "BRCA1", job.Source)
}

func TestFetchHandlerExplicitIDSkipsSearch(t *testing.T) {
	h := NewFetchHandler(newTestClient(t, eutilsHandler(t)), zap.NewNop().Sugar())
	job := fetchJob(t, FetchPayload{ID: "1732746264"})
	job.Source = ""

	require.NoError(t, h.Execute(context.Background(), job))

	var record SequenceRecord
	require.NoError(t, json.Unmarshal(job.Result, &record))
	assert.Equal(t, "NM_007294.4", record.Accession)
	assert.Equal(t, "NM_007294.4", job.Source, "source backfilled from the record")
}

func TestFetchHandlerWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	h := NewFetchHandler(newTestClient(t, eutilsHandler(t)), zap.NewNop().Sugar())
	job := fetchJob(t, FetchPayload{Gene: "BRCA1", Organism: "Homo sapiens", OutDir: dir})

	require.NoError(t, h.Execute(context.Background(), job))
	require.NotEmpty(t, job.ResultPath)

	data, err := os.ReadFile(job.ResultPath)
	require.NoError(t, err)
	description, sequence, err := ParseFASTA(string(data))
	require.NoError(t, err)
	assert.Equal(t, "NM_007294.4", AccessionFromDescription(description))
	assert.NotEmpty(t, sequence)
}

func TestFetchHandlerUnknownGeneIsNotFound(t *testing.T) {
	h := NewFetchHandler(newTestClient(t, eutilsHandler(t)), zap.NewNop().Sugar())
	job := fetchJob(t, FetchPayload{Gene: "NOSUCHGENE", Organism: "Homo sapiens"})

	err := h.Execute(context.Background(), job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestFetchHandlerRejectsEmptyPayload(t *testing.T) {
	h := NewFetchHandler(newTestClient(t, eutilsHandler(t)), zap.NewNop().Sugar())

	job := fetchJob(t, FetchPayload{})
	err := h.Execute(context.Background(), job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	job.Payload = []byte("{not json")
	err = h.Execute(context.Background(), job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}
