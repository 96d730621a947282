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

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	return NewTracker(gftest.CreateTestDB(t))
}

func submitJob(t *testing.T, tr *Tracker, handler string) *Job {
	t.Helper()
	job, err := NewJob(handler, "test-job", "src", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, tr.Submit(job))
	return job
}

func TestTrackerSubmitAndGet(t *testing.T) {
	tr := newTestTracker(t)
	job := submitJob(t, tr, "portal.predict")

	snap, err := tr.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, snap.ID)
	assert.Equal(t, StatusQueued, snap.Status)
}

func TestTrackerCancelQueuedJob(t *testing.T) {
	tr := newTestTracker(t)
	job := submitJob(t, tr, "portal.predict")

	require.NoError(t, tr.Cancel(job.ID))

	snap, err := tr.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, snap.Status)
	assert.Equal(t, "cancelled by user", snap.Error)

	// Cancelling a terminal job is a no-op, not an error.
	assert.NoError(t, tr.Cancel(job.ID))
}

func TestTrackerCrossProcessCancelWins(t *testing.T) {
	db := gftest.CreateTestDB(t)
	daemon := NewTracker(db)
	cli := NewTracker(db)

	job := submitJob(t, daemon, "portal.predict")
	require.NoError(t, job.StartSubmitting())
	require.NoError(t, daemon.Update(job))

	// A cancel from another process lands while the session is mid-flight.
	require.NoError(t, cli.Cancel(job.ID))

	// The daemon's stale copy finishes its step; the persisted cancel stands.
	require.NoError(t, job.StartPolling())
	err := daemon.Update(job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrJobFinalized))

	snap, err := cli.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, snap.Status)
}

func TestTrackerArchiveRequiresTerminalStatus(t *testing.T) {
	tr := newTestTracker(t)
	job := submitJob(t, tr, "portal.predict")

	err := tr.Archive(job.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	require.NoError(t, tr.Cancel(job.ID))
	require.NoError(t, tr.Archive(job.ID))

	_, err = tr.Get(job.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestTrackerSubscribeReceivesUpdates(t *testing.T) {
	tr := newTestTracker(t)
	ch := tr.Subscribe()
	defer tr.Unsubscribe(ch)

	job := submitJob(t, tr, "portal.predict")

	select {
	case snap := <-ch:
		assert.Equal(t, job.ID, snap.ID)
		assert.Equal(t, StatusQueued, snap.Status)
	case <-time.After(time.Second):
		t.Fatal("no notification received for submitted job")
	}

	require.NoError(t, tr.Cancel(job.ID))
	select {
	case snap := <-ch:
		assert.Equal(t, StatusCancelled, snap.Status)
	case <-time.After(time.Second):
		t.Fatal("no notification received for cancelled job")
	}
}

func TestTrackerUnsubscribeStopsDelivery(t *testing.T) {
	tr := newTestTracker(t)
	ch := tr.Subscribe()
	tr.Unsubscribe(ch)

	submitJob(t, tr, "portal.predict")

	select {
	case <-ch:
		t.Fatal("unsubscribed channel still received an update")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTrackerListActive(t *testing.T) {
	tr := newTestTracker(t)
	a := submitJob(t, tr, "portal.predict")
	b := submitJob(t, tr, "portal.predict")
	require.NoError(t, tr.Cancel(b.ID))

	active, err := tr.ListActive(10)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)
}
