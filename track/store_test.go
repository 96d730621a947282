package track

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helical/genefold/errors"
	gftest "github.com/helical/genefold/internal/testing"
)

func newStoreJob(t *testing.T, s *Store, handler string) *Job {
	t.Helper()
	job, err := NewJob(handler, "test-job", "NM_007294.4", json.RawMessage(`{"k":"v"}`))
	require.NoError(t, err)
	require.NoError(t, s.CreateJob(job))
	return job
}

func TestStoreCreateAndGet(t *testing.T) {
	s := NewStore(gftest.CreateTestDB(t))
	job := newStoreJob(t, s, "portal.predict")

	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, StatusQueued, got.Status)
	assert.Equal(t, json.RawMessage(`{"k":"v"}`), got.Payload)
	assert.Empty(t, got.ExternalID)
	assert.Nil(t, got.SubmittedAt)
}

func TestStoreCreatePersistsEmptyPhase(t *testing.T) {
	s := NewStore(gftest.CreateTestDB(t))

	// A fresh job has no phase yet; the insert must still succeed.
	job := newStoreJob(t, s, "portal.predict")

	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Phase)
}

func TestStoreGetMissingJob(t *testing.T) {
	s := NewStore(gftest.CreateTestDB(t))
	_, err := s.GetJob("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestStoreUpdateRoundTrip(t *testing.T) {
	s := NewStore(gftest.CreateTestDB(t))
	job := newStoreJob(t, s, "portal.predict")

	require.NoError(t, job.StartSubmitting())
	require.NoError(t, job.SetExternalID("AF-42"))
	require.NoError(t, job.StartPolling())
	job.TouchPoll()
	job.SetPhase("Polling")
	require.NoError(t, s.UpdateJob(job))

	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPolling, got.Status)
	assert.Equal(t, "AF-42", got.ExternalID)
	assert.Equal(t, "Polling", got.Phase)
	assert.NotNil(t, got.SubmittedAt)
	assert.NotNil(t, got.LastPolledAt)

	missing := *job
	missing.ID = "nope"
	err = s.UpdateJob(&missing)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestStoreUpdateNeverRevivesFinalizedRow(t *testing.T) {
	s := NewStore(gftest.CreateTestDB(t))
	job := newStoreJob(t, s, "portal.predict")

	// Another process cancels the row.
	cancelled := job.Snapshot()
	require.NoError(t, cancelled.Cancel("cancelled by user"))
	require.NoError(t, s.UpdateJob(&cancelled))

	// The stale copy still thinks the job is mid-flight.
	require.NoError(t, job.StartSubmitting())
	err := s.UpdateJob(job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrJobFinalized))

	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestStoreListQueuedJobsOldestFirst(t *testing.T) {
	s := NewStore(gftest.CreateTestDB(t))

	older, err := NewJob("roi.scan", "older", "", nil)
	require.NoError(t, err)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, s.CreateJob(older))

	newer := newStoreJob(t, s, "roi.scan")

	jobs, err := s.ListQueuedJobs(10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, older.ID, jobs[0].ID)
	assert.Equal(t, newer.ID, jobs[1].ID)
}

func TestStoreListJobsByStatus(t *testing.T) {
	s := NewStore(gftest.CreateTestDB(t))
	a := newStoreJob(t, s, "portal.predict")
	b := newStoreJob(t, s, "ncbi.fetch")

	require.NoError(t, b.StartSubmitting())
	require.NoError(t, s.UpdateJob(b))

	queued := StatusQueued
	jobs, err := s.ListJobs(&queued, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, a.ID, jobs[0].ID)

	all, err := s.ListJobs(nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStoreResumableAndOrphanedJobs(t *testing.T) {
	s := NewStore(gftest.CreateTestDB(t))

	// Interrupted before the portal assigned an id.
	orphan := newStoreJob(t, s, "portal.predict")
	require.NoError(t, orphan.StartSubmitting())
	require.NoError(t, s.UpdateJob(orphan))

	// Interrupted mid-poll with the external id already captured.
	resumable := newStoreJob(t, s, "portal.predict")
	require.NoError(t, resumable.StartSubmitting())
	require.NoError(t, resumable.SetExternalID("AF-99"))
	require.NoError(t, resumable.StartPolling())
	require.NoError(t, s.UpdateJob(resumable))

	// Terminal jobs are never recovered.
	done := newStoreJob(t, s, "portal.predict")
	require.NoError(t, done.StartSubmitting())
	require.NoError(t, done.Fail(errors.New("x")))
	require.NoError(t, s.UpdateJob(done))

	orphans, err := s.ListOrphanedJobs(10)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, orphan.ID, orphans[0].ID)

	resumables, err := s.ListResumableJobs(10)
	require.NoError(t, err)
	require.Len(t, resumables, 1)
	assert.Equal(t, resumable.ID, resumables[0].ID)
	assert.Equal(t, "AF-99", resumables[0].ExternalID)
}

func TestStoreDeleteJob(t *testing.T) {
	s := NewStore(gftest.CreateTestDB(t))
	job := newStoreJob(t, s, "roi.scan")

	require.NoError(t, s.DeleteJob(job.ID))

	_, err := s.GetJob(job.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.True(t, errors.Is(s.DeleteJob(job.ID), errors.ErrNotFound))
}

func TestStoreCleanupOldJobs(t *testing.T) {
	s := NewStore(gftest.CreateTestDB(t))

	old := newStoreJob(t, s, "roi.scan")
	require.NoError(t, old.StartSubmitting())
	require.NoError(t, old.Complete("", nil))
	old.UpdatedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, s.UpdateJob(old))

	fresh := newStoreJob(t, s, "roi.scan")
	require.NoError(t, fresh.StartSubmitting())
	require.NoError(t, fresh.Complete("", nil))
	require.NoError(t, s.UpdateJob(fresh))

	active := newStoreJob(t, s, "roi.scan")
	active.UpdatedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, s.UpdateJob(active))

	removed, err := s.CleanupOldJobs(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.GetJob(active.ID)
	assert.NoError(t, err) // non-terminal jobs survive cleanup
}

func TestStoreCountByStatus(t *testing.T) {
	s := NewStore(gftest.CreateTestDB(t))
	newStoreJob(t, s, "roi.scan")
	newStoreJob(t, s, "roi.scan")
	failed := newStoreJob(t, s, "roi.scan")
	require.NoError(t, failed.StartSubmitting())
	require.NoError(t, failed.Fail(errors.New("x")))
	require.NoError(t, s.UpdateJob(failed))

	counts, err := s.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, counts[StatusQueued])
	assert.Equal(t, 1, counts[StatusFailed])
}
